package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/brizzai/oauth-playground/internal/auth"
	"github.com/brizzai/oauth-playground/internal/auth/flow"
	"github.com/brizzai/oauth-playground/internal/logger"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// SessionCookie names the cookie carrying the browser session id.
const SessionCookie = "oauth_playground_session"

// Flash is a one-shot message shown on the next render.
type Flash struct {
	Kind    string // success, info, warning, error
	Message string
	Detail  string
}

// browserSession is everything one browser owns. Nothing in it is shared.
type browserSession struct {
	ID   string
	Flow *flow.Session

	mu        sync.Mutex
	envLoaded bool
	flashes   []Flash
}

func (b *browserSession) addFlash(f Flash) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flashes = append(b.flashes, f)
}

func (b *browserSession) popFlashes() []Flash {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.flashes
	b.flashes = nil
	return out
}

func (b *browserSession) setEnvLoaded(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.envLoaded = v
}

func (b *browserSession) EnvLoaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.envLoaded
}

// SessionStore keeps browser sessions in memory and drops them after ttl of inactivity.
type SessionStore struct {
	service  *auth.Service
	sessions *cache.Cache
	ttl      time.Duration
	mu       sync.Mutex
}

func NewSessionStore(service *auth.Service, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SessionStore{
		service:  service,
		sessions: cache.New(ttl, ttl/2),
		ttl:      ttl,
	}
}

// Get returns the browser's session, creating one and setting its cookie when there
// is none or it expired.
func (s *SessionStore) Get(w http.ResponseWriter, r *http.Request) *browserSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, err := r.Cookie(SessionCookie); err == nil {
		if v, ok := s.sessions.Get(c.Value); ok {
			sess := v.(*browserSession)
			s.sessions.SetDefault(sess.ID, sess)
			return sess
		}
	}

	choices := s.service.Choices()
	fs, loaded := s.service.NewSession(choices[0])
	sess := &browserSession{ID: uuid.NewString(), Flow: fs, envLoaded: loaded}
	s.sessions.SetDefault(sess.ID, sess)

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.ttl.Seconds()),
	})
	logger.Debug("Browser session created", zap.String("session", sess.ID))
	return sess
}

// Len reports the number of live sessions.
func (s *SessionStore) Len() int {
	return s.sessions.ItemCount()
}
