package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

// Algorithm names the signing scheme carried in a message's security block.
type Algorithm string

const (
	AlgorithmHMAC   Algorithm = "HMAC-SHA256"
	AlgorithmPBKDF2 Algorithm = "PBKDF2-HMAC-SHA256"
)

// Signer produces and checks message signatures. The plain mode applies a
// keyed HMAC-SHA256 over the canonical bytes. The PBKDF2 mode first
// stretches the canonical bytes through PBKDF2 before the HMAC; both modes
// verify regardless of which one this process signs with, so peers on
// either mode interoperate.
type Signer struct {
	key        []byte
	usePBKDF2  bool
	iterations int
}

// NewSigner creates a signer for the configured key and mode.
func NewSigner(key string, usePBKDF2 bool, iterations int) *Signer {
	return &Signer{
		key:        []byte(key),
		usePBKDF2:  usePBKDF2,
		iterations: iterations,
	}
}

// Algorithm returns the scheme this signer stamps on outgoing messages.
func (s *Signer) Algorithm() Algorithm {
	if s.usePBKDF2 {
		return AlgorithmPBKDF2
	}
	return AlgorithmHMAC
}

// Sign computes the hex-encoded signature of the canonical message bytes
// using the configured mode.
func (s *Signer) Sign(canonical []byte) string {
	return hex.EncodeToString(s.compute(canonical, s.Algorithm()))
}

// Verify checks a hex-encoded signature against the canonical bytes using
// the algorithm the message declares. Comparison is constant time.
func (s *Signer) Verify(canonical []byte, signature string, alg Algorithm) bool {
	switch alg {
	case AlgorithmHMAC, AlgorithmPBKDF2:
	default:
		return false
	}
	claimed, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(claimed, s.compute(canonical, alg))
}

func (s *Signer) compute(canonical []byte, alg Algorithm) []byte {
	input := canonical
	if alg == AlgorithmPBKDF2 {
		input = pbkdf2.Key(canonical, s.key, s.iterations, sha256.Size, sha256.New)
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write(input)
	return mac.Sum(nil)
}
