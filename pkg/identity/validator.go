package identity

import (
	"time"

	"github.com/agentic-navigator/navigator/pkg/config"
	"github.com/agentic-navigator/navigator/pkg/models"
)

// Issue names for the four validation checks.
const (
	IssueUntrustedIdentity = "untrusted_identity"
	IssueSignatureMismatch = "signature_mismatch"
	IssueUnauthorisedRoute = "unauthorised_route"
	IssueExpired           = "expired"
)

// MessageClaims is the security-relevant slice of a message handed to the
// validator. The bus builds it from a message and its canonical bytes.
type MessageClaims struct {
	MessageID        string
	FromAgent        string
	ToAgent          string
	ServiceAccountID string
	Signature        string
	Algorithm        Algorithm
	Timestamp        float64
	TTLSeconds       int
	Canonical        []byte
}

// ValidationResult is the outcome of the four independent checks.
type ValidationResult struct {
	IsValid       bool
	Issues        []string
	SecurityScore int
}

// Has reports whether the named issue was raised.
func (r ValidationResult) Has(issue string) bool {
	for _, i := range r.Issues {
		if i == issue {
			return true
		}
	}
	return false
}

// Kind maps a failed validation onto the error taxonomy. Identity and
// routing failures are unauthorised, expiry is expired, a bad signature
// is malformed.
func (r ValidationResult) Kind() models.ErrorKind {
	switch {
	case r.Has(IssueUntrustedIdentity) || r.Has(IssueUnauthorisedRoute):
		return models.ErrorKindUnauthorised
	case r.Has(IssueSignatureMismatch):
		return models.ErrorKindMalformed
	case r.Has(IssueExpired):
		return models.ErrorKindExpired
	default:
		return models.ErrorKindMalformed
	}
}

// Validator runs the four message checks: trusted identity, signature,
// authorised route, and freshness.
type Validator struct {
	signer  *Signer
	trusted map[string]bool
	devMode bool
	skew    time.Duration
	now     func() time.Time
}

// NewValidator builds a validator from the runtime configuration.
func NewValidator(signer *Signer, cfg *config.Config) *Validator {
	trusted := make(map[string]bool, len(cfg.TrustedServiceAccounts))
	for _, acct := range cfg.TrustedServiceAccounts {
		trusted[acct] = true
	}
	return &Validator{
		signer:  signer,
		trusted: trusted,
		devMode: !cfg.IsProduction(),
		skew:    cfg.ClockSkewTolerance,
		now:     time.Now,
	}
}

// Validate runs all four checks unconditionally and reports every issue
// found. security_score is 100 x (1 - failed/4). It never returns an
// error; failures surface in the result.
func (v *Validator) Validate(c MessageClaims) ValidationResult {
	var issues []string

	if !v.identityTrusted(c.ServiceAccountID) {
		issues = append(issues, IssueUntrustedIdentity)
	}
	if !v.signer.Verify(c.Canonical, c.Signature, c.Algorithm) {
		issues = append(issues, IssueSignatureMismatch)
	}
	if !Authorised(c.FromAgent, c.ToAgent) {
		issues = append(issues, IssueUnauthorisedRoute)
	}
	if v.Expired(c.Timestamp, c.TTLSeconds) {
		issues = append(issues, IssueExpired)
	}

	return ValidationResult{
		IsValid:       len(issues) == 0,
		Issues:        issues,
		SecurityScore: 100 * (4 - len(issues)) / 4,
	}
}

// Expired reports whether a message with the given publish timestamp
// (seconds since epoch) and TTL is past its lifetime, allowing the
// configured clock-skew tolerance. A TTL of 0 never expires.
func (v *Validator) Expired(timestamp float64, ttlSeconds int) bool {
	if ttlSeconds <= 0 {
		return false
	}
	deadline := timestamp + float64(ttlSeconds) + v.skew.Seconds()
	return float64(v.now().UnixNano())/1e9 > deadline
}

func (v *Validator) identityTrusted(serviceAccount string) bool {
	if serviceAccount == "" {
		return false
	}
	if v.trusted[serviceAccount] {
		return true
	}
	return v.devMode && serviceAccount == DevServiceAccount
}
