// Package identity resolves the process service identity and performs
// symmetric signing, verification and validation of agent messages.
package identity

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentic-navigator/navigator/pkg/config"
)

const (
	// DevServiceAccount is the synthetic identity used in development mode
	// when neither the metadata endpoint nor env vars yield one.
	DevServiceAccount = "navigator-dev@local.test"

	metadataBase        = "http://metadata.google.internal/computeMetadata/v1"
	metadataFlavorKey   = "Metadata-Flavor"
	metadataFlavorValue = "Google"
)

// Identity is the resolved service identity of this process.
type Identity struct {
	Email     string `json:"email"`
	ProjectID string `json:"project_id"`
	UniqueID  string `json:"unique_id"`
}

// Resolver resolves the process identity once and caches it for the
// process lifetime. Resolution order: metadata endpoint, environment
// variables, synthetic development identity.
type Resolver struct {
	cfg        *config.Config
	httpClient *http.Client
	baseURL    string

	once sync.Once
	id   Identity
	err  error
}

// NewResolver creates a resolver. The metadata endpoint is probed with a
// short timeout so startup off-platform is not delayed.
func NewResolver(cfg *config.Config) *Resolver {
	return &Resolver{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 500 * time.Millisecond},
		baseURL:    metadataBase,
	}
}

// CurrentIdentity returns the cached process identity, resolving it on
// first call.
func (r *Resolver) CurrentIdentity(ctx context.Context) (Identity, error) {
	r.once.Do(func() {
		r.id, r.err = r.resolve(ctx)
	})
	return r.id, r.err
}

func (r *Resolver) resolve(ctx context.Context) (Identity, error) {
	if id, ok := r.fromMetadata(ctx); ok {
		return id, nil
	}
	if id, ok := fromEnv(); ok {
		return id, nil
	}
	if !r.cfg.IsProduction() {
		return Identity{
			Email:     DevServiceAccount,
			ProjectID: "navigator-dev",
			UniqueID:  uuid.NewString(),
		}, nil
	}
	return Identity{}, fmt.Errorf("no service identity available: metadata endpoint unreachable and NAVIGATOR_SERVICE_ACCOUNT_EMAIL unset")
}

func (r *Resolver) fromMetadata(ctx context.Context) (Identity, bool) {
	email, err := r.metadataGet(ctx, "/instance/service-accounts/default/email")
	if err != nil {
		return Identity{}, false
	}
	project, err := r.metadataGet(ctx, "/project/project-id")
	if err != nil {
		return Identity{}, false
	}
	return Identity{
		Email:     email,
		ProjectID: project,
		UniqueID:  uuid.NewString(),
	}, true
}

func (r *Resolver) metadataGet(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set(metadataFlavorKey, metadataFlavorValue)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("metadata endpoint returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

func fromEnv() (Identity, bool) {
	email := os.Getenv("NAVIGATOR_SERVICE_ACCOUNT_EMAIL")
	if email == "" {
		return Identity{}, false
	}
	return Identity{
		Email:     email,
		ProjectID: os.Getenv("NAVIGATOR_PROJECT_ID"),
		UniqueID:  uuid.NewString(),
	}, true
}
