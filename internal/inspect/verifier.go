package inspect

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/brizzai/oauth-playground/internal/auth/flow"
	"github.com/brizzai/oauth-playground/internal/config"
	"github.com/brizzai/oauth-playground/internal/logger"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/patrickmn/go-cache"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// discoveryTTL bounds how long an issuer's discovery document and keys are reused.
const discoveryTTL = time.Hour

// Verifier checks id_tokens against the signing keys their issuer publishes.
type Verifier struct {
	client    *http.Client
	providers *cache.Cache
}

// NewVerifier creates a Verifier. A nil client means http.DefaultClient.
func NewVerifier(client *http.Client) *Verifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &Verifier{
		client:    client,
		providers: cache.New(discoveryTTL, 10*time.Minute),
	}
}

// Verify checks signature, issuer, audience and expiry of rawIDToken and returns its claims.
func (v *Verifier) Verify(ctx context.Context, issuer, clientID, rawIDToken string) (map[string]any, error) {
	ctx = oidc.ClientContext(ctx, v.client)

	provider, err := v.provider(ctx, issuer)
	if err != nil {
		return nil, err
	}

	idToken, err := provider.Verifier(&oidc.Config{ClientID: clientID}).Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify id_token: %w", err)
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to read id_token claims: %w", err)
	}
	return claims, nil
}

func (v *Verifier) provider(ctx context.Context, issuer string) (*oidc.Provider, error) {
	if p, ok := v.providers.Get(issuer); ok {
		return p.(*oidc.Provider), nil
	}

	p, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider for %s: %w", issuer, err)
	}
	v.providers.SetDefault(issuer, p)
	logger.Debug("OIDC discovery loaded", zap.String("issuer", issuer))
	return p, nil
}

type VerifierParams struct {
	fx.In

	Config *config.OIDCConfig `optional:"true"`
}

// NewFromConfig returns a Verifier when id_token verification is enabled, else nil.
func NewFromConfig(params VerifierParams) flow.IDTokenVerifier {
	if params.Config == nil || !params.Config.VerifyIDToken {
		return nil
	}
	return NewVerifier(nil)
}

var Module = fx.Module("inspect",
	fx.Provide(NewFromConfig),
)
