package flow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brizzai/oauth-playground/internal/auth/constants"
	"github.com/brizzai/oauth-playground/internal/auth/models"
	"github.com/brizzai/oauth-playground/internal/auth/providers"
	"github.com/brizzai/oauth-playground/internal/logger"
	"github.com/brizzai/oauth-playground/internal/requester"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Transport performs the outbound provider calls.
type Transport interface {
	PostForm(ctx context.Context, endpoint string, form url.Values) (*requester.Response, error)
	Get(ctx context.Context, endpoint string, headers http.Header, query url.Values) (*requester.Response, error)
}

// IDTokenVerifier checks an id_token signature against the issuer keys and returns its claims.
type IDTokenVerifier interface {
	Verify(ctx context.Context, issuer, clientID, rawIDToken string) (map[string]any, error)
}

// Observer is told the outcome of every exchange and profile fetch.
type Observer interface {
	ObserveExchange(provider, result string)
	ObserveProfileFetch(provider, result string)
}

// Outcome labels passed to an Observer.
const (
	ResultSuccess           = "success"
	ResultMissingCredential = "missing_credential"
	ResultFailed            = "failed"
	ResultSkipped           = "skipped"
)

// Engine drives sessions through the authorization-code flow.
type Engine struct {
	transport Transport
	verifier  IDTokenVerifier
	observer  Observer
	now       func() time.Time
}

type Option func(*Engine)

func WithVerifier(v IDTokenVerifier) Option {
	return func(e *Engine) { e.verifier = v }
}

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine sending requests through transport.
func New(transport Transport, opts ...Option) *Engine {
	e := &Engine{transport: transport, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type EngineParams struct {
	fx.In

	Requester *requester.HTTPRequester
	Verifier  IDTokenVerifier `optional:"true"`
	Observer  Observer        `optional:"true"`
}

func NewEngine(params EngineParams) *Engine {
	return New(params.Requester, WithVerifier(params.Verifier), WithObserver(params.Observer))
}

// BuildAuthorizationURL joins the provider's authorization endpoint and its query.
func BuildAuthorizationURL(p providers.Provider, cfg models.ProviderConfig) (string, error) {
	endpoint := strings.TrimSpace(p.AuthorizationEndpoint())
	if endpoint == "" {
		return "", fmt.Errorf("%w: authorization endpoint of %s", ErrNoEndpoint, p.Name())
	}
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + p.AuthorizationParams(cfg).Encode(), nil
}

// AuthorizationURL builds the URL for the session's current config and moves an Idle
// session to AwaitingCode.
func (e *Engine) AuthorizationURL(s *Session) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	authURL, err := BuildAuthorizationURL(s.provider, s.config)
	if err != nil {
		return "", err
	}
	if s.state == StateIdle {
		s.state = StateAwaitingCode
	}
	return authURL, nil
}

// SubmitCode records an authorization code. It reports false when the code equals the
// one already held. An Authenticated session keeps its credentials until the new code
// is exchanged.
func (e *Engine) SubmitCode(s *Session, code string) (bool, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return false, ErrNoCode
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateExchanging {
		return false, ErrExchangeInProgress
	}
	if code == s.code {
		return false, nil
	}
	s.code = code
	if s.state == StateIdle {
		s.state = StateAwaitingCode
	}
	logger.Debug("Authorization code captured",
		zap.String("provider", s.provider.Name()),
		logger.Code(code),
	)
	return true, nil
}

// CaptureCallback reads a redirect URL and submits its code, if it has one.
func (e *Engine) CaptureCallback(s *Session, rawURL string) (Callback, error) {
	cb, err := ParseCallback(rawURL)
	if err != nil {
		return cb, err
	}
	if cb.Error != "" {
		logger.Warn("Provider returned an authorization error",
			zap.String("error", cb.Error),
			zap.String("error_description", cb.ErrorDescription),
		)
	}
	if !cb.HasCode() {
		return cb, nil
	}
	if _, err := e.SubmitCode(s, cb.Code); err != nil {
		return cb, err
	}
	return cb, nil
}

// Exchange trades the session's code for tokens. On success the profile is fetched
// when the provider has a profile endpoint; a failing fetch leaves the profile unset.
func (e *Engine) Exchange(ctx context.Context, s *Session) (*models.TokenSet, error) {
	s.mu.Lock()
	p, cfg, code := s.provider, s.config, s.code

	switch {
	case s.state == StateExchanging:
		s.mu.Unlock()
		return nil, ErrExchangeInProgress
	case code == "":
		s.mu.Unlock()
		return nil, ErrNoCode
	case code == s.exchangedCode:
		s.mu.Unlock()
		// the provider would reject a used code, so it is not sent again
		return nil, &ExchangeFailedError{Err: ErrCodeAlreadyExchanged}
	}

	if err := checkCredentials(cfg); err != nil {
		s.mu.Unlock()
		logger.Warn("Token exchange skipped", zap.String("provider", p.Name()), zap.Error(err))
		e.observeExchange(p, ResultMissingCredential)
		return nil, err
	}
	if strings.TrimSpace(p.TokenEndpoint()) == "" {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: token endpoint of %s", ErrNoEndpoint, p.Name())
	}

	s.state = StateExchanging
	s.mu.Unlock()

	ts, err := e.exchange(ctx, p, cfg, code)
	if err != nil {
		// credentials from an earlier exchange stay until the next success
		s.mu.Lock()
		if s.tokens != nil {
			s.state = StateAuthenticated
		} else {
			s.state = StateAwaitingCode
		}
		s.mu.Unlock()
		e.observeExchange(p, ResultFailed)
		return nil, err
	}

	profile := e.fetchProfile(ctx, p, ts.AccessToken)
	claims := e.verifyIDToken(ctx, p, cfg, ts.IDToken)

	s.mu.Lock()
	s.tokens = ts
	s.profile = profile
	s.idClaims = claims
	s.exchangedCode = code
	s.state = StateAuthenticated
	s.mu.Unlock()

	e.observeExchange(p, ResultSuccess)
	logger.Info("Token exchange succeeded",
		zap.String("provider", p.Name()),
		zap.Bool("refresh_token", ts.RefreshToken != ""),
		zap.Bool("id_token", ts.IDToken != ""),
		zap.Bool("profile", profile != nil),
	)
	return ts, nil
}

func checkCredentials(cfg models.ProviderConfig) error {
	if strings.TrimSpace(cfg.ClientSecret) == "" {
		return &MissingCredentialError{Field: constants.ParamClientSecret}
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		return &MissingCredentialError{Field: constants.ParamClientID}
	}
	return nil
}

func (e *Engine) exchange(ctx context.Context, p providers.Provider, cfg models.ProviderConfig, code string) (*models.TokenSet, error) {
	form := p.TokenExchangeParams(cfg, code)
	logger.Debug("Exchanging authorization code",
		zap.String("provider", p.Name()),
		zap.String("token_url", p.TokenEndpoint()),
		logger.ClientID(cfg.ClientID),
		logger.Secret("client_secret", cfg.ClientSecret),
		zap.String("redirect_uri", cfg.RedirectURI),
		logger.Code(code),
	)

	resp, err := e.transport.PostForm(ctx, p.TokenEndpoint(), form.Values())
	return e.tokenResponse(p, resp, err)
}

func (e *Engine) tokenResponse(p providers.Provider, resp *requester.Response, err error) (*models.TokenSet, error) {
	if err != nil {
		logger.Error("Token request failed", zap.String("provider", p.Name()), zap.Error(err))
		return nil, &ExchangeFailedError{Err: err}
	}
	if !resp.OK() {
		logger.Error("Token endpoint rejected the request",
			zap.String("provider", p.Name()),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", resp.Body),
		)
		return nil, &ExchangeFailedError{StatusCode: resp.StatusCode, Body: resp.Body}
	}

	ts, err := models.ParseTokenSet(resp.Body, e.now())
	if err != nil {
		logger.Error("Token response unusable", zap.String("provider", p.Name()), zap.Error(err))
		return nil, &ExchangeFailedError{StatusCode: resp.StatusCode, Body: resp.Body, Err: err}
	}
	return ts, nil
}

func (e *Engine) fetchProfile(ctx context.Context, p providers.Provider, accessToken string) models.UserProfile {
	endpoint := providers.ProfileEndpoint(p)
	if endpoint == "" || accessToken == "" {
		e.observeProfile(p, ResultSkipped)
		return nil
	}

	req := p.ProfileRequest(accessToken)
	resp, err := e.transport.Get(ctx, endpoint, req.Header, req.Query)
	if err == nil && !resp.OK() {
		err = fmt.Errorf("status %d", resp.StatusCode)
	}

	var profile models.UserProfile
	if err == nil {
		dec := json.NewDecoder(bytes.NewReader(resp.Body))
		dec.UseNumber()
		err = dec.Decode(&profile)
	}
	if err != nil {
		logger.Warn("Profile fetch failed",
			zap.String("provider", p.Name()),
			zap.String("url", endpoint),
			zap.Error(fmt.Errorf("%w: %w", ErrProfileUnavailable, err)),
		)
		e.observeProfile(p, ResultFailed)
		return nil
	}

	e.observeProfile(p, ResultSuccess)
	return profile
}

func (e *Engine) verifyIDToken(ctx context.Context, p providers.Provider, cfg models.ProviderConfig, raw string) map[string]any {
	oidc, ok := p.(providers.OIDCProvider)
	if e.verifier == nil || !ok || raw == "" {
		return nil
	}
	claims, err := e.verifier.Verify(ctx, oidc.Issuer(), cfg.ClientID, raw)
	if err != nil {
		logger.Warn("id_token verification failed", zap.String("provider", p.Name()), zap.Error(err))
		return nil
	}
	return claims
}

// ExchangeLongLived trades the session's access token for a long-lived one on
// providers that support it. The new token replaces the held TokenSet; the profile
// is kept.
func (e *Engine) ExchangeLongLived(ctx context.Context, s *Session) (*models.TokenSet, error) {
	s.mu.Lock()
	p, cfg := s.provider, s.config
	if s.state != StateAuthenticated || s.tokens == nil {
		state := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: long-lived exchange needs credentials, session is %s", ErrInvalidState, state)
	}
	ll, ok := p.(providers.LongLivedExchanger)
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s has no long-lived token exchange", ErrNotSupported, p.Name())
	}
	if err := checkCredentials(cfg); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	accessToken := s.tokens.AccessToken
	s.state = StateExchanging
	s.mu.Unlock()

	params := ll.LongLivedTokenParams(cfg, accessToken)
	resp, err := e.transport.Get(ctx, p.TokenEndpoint(), nil, params.Values())
	ts, err := e.tokenResponse(p, resp, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateAuthenticated
	if err != nil {
		e.observeExchange(p, ResultFailed)
		return nil, err
	}
	s.tokens = ts
	e.observeExchange(p, ResultSuccess)
	logger.Info("Long-lived token obtained", zap.String("provider", p.Name()))
	return ts, nil
}

// Reset drops the code and every credential. It is only valid once Authenticated.
func (e *Engine) Reset(s *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAuthenticated {
		return fmt.Errorf("%w: nothing to reset in state %s", ErrInvalidState, s.state)
	}
	s.clearLocked()
	logger.Debug("Session reset", zap.String("provider", s.provider.Name()))
	return nil
}

// ExchangeDebug is what would be sent on exchange, with the secret masked.
type ExchangeDebug struct {
	TokenURL     string `json:"token_url" yaml:"token_url"`
	GrantType    string `json:"grant_type" yaml:"grant_type"`
	ClientID     string `json:"client_id" yaml:"client_id"`
	ClientSecret string `json:"client_secret" yaml:"client_secret"`
	SecretLength int    `json:"client_secret_length" yaml:"client_secret_length"`
	RedirectURI  string `json:"redirect_uri" yaml:"redirect_uri"`
	CodeLength   int    `json:"code_length" yaml:"code_length"`
}

// Debug describes the next exchange of s without sending it.
func (e *Engine) Debug(s *Session) ExchangeDebug {
	snap := s.Snapshot()
	params := snap.Provider.TokenExchangeParams(snap.Config, snap.Code)
	grant, _ := params.Get(constants.ParamGrantType)
	return ExchangeDebug{
		TokenURL:     snap.Provider.TokenEndpoint(),
		GrantType:    grant,
		ClientID:     logger.Truncate(snap.Config.ClientID, 30),
		ClientSecret: logger.MaskSecret(snap.Config.ClientSecret),
		SecretLength: len(snap.Config.ClientSecret),
		RedirectURI:  snap.Config.RedirectURI,
		CodeLength:   len(snap.Code),
	}
}

func (e *Engine) observeExchange(p providers.Provider, result string) {
	if e.observer != nil {
		e.observer.ObserveExchange(p.Name(), result)
	}
}

func (e *Engine) observeProfile(p providers.Provider, result string) {
	if e.observer != nil {
		e.observer.ObserveProfileFetch(p.Name(), result)
	}
}

// IsLocal reports whether err was raised before anything was sent.
func IsLocal(err error) bool {
	return errors.Is(err, ErrMissingCredential) || errors.Is(err, ErrNoCode) ||
		errors.Is(err, ErrNoEndpoint) || errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrCodeAlreadyExchanged) || errors.Is(err, ErrExchangeInProgress)
}
