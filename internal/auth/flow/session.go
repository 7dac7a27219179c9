package flow

import (
	"sync"

	"github.com/brizzai/oauth-playground/internal/auth/models"
	"github.com/brizzai/oauth-playground/internal/auth/providers"
)

// State of an authorization attempt.
type State int

const (
	StateIdle State = iota
	StateAwaitingCode
	StateExchanging
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingCode:
		return "awaiting_code"
	case StateExchanging:
		return "exchanging"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Session is one operator's flow data. It is safe for concurrent use; nothing in it is
// shared with other sessions.
type Session struct {
	mu sync.Mutex

	provider      providers.Provider
	config        models.ProviderConfig
	state         State
	code          string
	exchangedCode string
	tokens        *models.TokenSet
	profile       models.UserProfile
	idClaims      map[string]any
}

// Snapshot is a consistent copy of a session for presentation.
type Snapshot struct {
	Provider      providers.Provider
	Config        models.ProviderConfig
	State         State
	Code          string
	Tokens        *models.TokenSet
	Profile       models.UserProfile
	IDTokenClaims map[string]any
}

// NewSession starts an Idle session for provider p.
func NewSession(p providers.Provider, cfg models.ProviderConfig) *Session {
	cfg.Name = p.Name()
	return &Session{provider: p, config: cfg}
}

func (s *Session) Provider() providers.Provider {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.provider
}

func (s *Session) Config() models.ProviderConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Code() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code
}

func (s *Session) Tokens() *models.TokenSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens
}

func (s *Session) Profile() models.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Provider:      s.provider,
		Config:        s.config,
		State:         s.state,
		Code:          s.code,
		Tokens:        s.tokens,
		Profile:       s.profile,
		IDTokenClaims: s.idClaims,
	}
}

// UpdateConfig overwrites the operator values. The provider name is kept.
func (s *Session) UpdateConfig(cfg models.ProviderConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg.Name = s.provider.Name()
	s.config = cfg
}

// SwitchProvider replaces the adapter. Any code or credentials belong to the previous
// provider and are dropped.
func (s *Session) SwitchProvider(p providers.Provider, cfg models.ProviderConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateExchanging {
		return ErrExchangeInProgress
	}
	cfg.Name = p.Name()
	s.provider = p
	s.config = cfg
	s.clearLocked()
	return nil
}

func (s *Session) clearLocked() {
	s.state = StateIdle
	s.code = ""
	s.exchangedCode = ""
	s.tokens = nil
	s.profile = nil
	s.idClaims = nil
}
