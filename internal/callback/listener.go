// Package callback runs a short-lived local server on the redirect URI so a terminal
// session can receive the provider redirect without copy and paste.
package callback

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/brizzai/oauth-playground/internal/auth/flow"
	"github.com/brizzai/oauth-playground/internal/logger"
	"go.uber.org/zap"
)

var (
	// ErrNotLocal is returned for redirect URIs that do not point at this machine.
	ErrNotLocal = errors.New("redirect uri is not a local http address")
	// ErrClosed is returned by Wait once the listener has been closed.
	ErrClosed = errors.New("callback listener closed")
)

var page = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head>
	<title>{{.Title}}</title>
	<style>
		body { font-family: system-ui, sans-serif; text-align: center; padding: 50px; }
		.ok { color: #2e7d32; }
		.failed { color: #c62828; }
	</style>
</head>
<body>
	<h1 class="{{.Class}}">{{.Title}}</h1>
	<p>{{.Message}}</p>
	<p>You can close this window and return to the terminal.</p>
</body>
</html>
`))

type pageData struct {
	Title   string
	Class   string
	Message string
}

// Listener receives provider redirects on the redirect URI's host and path.
type Listener struct {
	path     string
	server   *http.Server
	listener net.Listener
	results  chan flow.Callback

	closeOnce sync.Once
	closed    chan struct{}
}

// Listen binds the host and port of redirectURI and starts serving its path. Only
// http redirect URIs on localhost or a loopback address are accepted.
func Listen(redirectURI string) (*Listener, error) {
	u, err := url.Parse(strings.TrimSpace(redirectURI))
	if err != nil {
		return nil, fmt.Errorf("invalid redirect uri: %w", err)
	}
	if u.Scheme != "http" || !isLoopback(u.Hostname()) {
		return nil, fmt.Errorf("%w: %s", ErrNotLocal, redirectURI)
	}

	port := u.Port()
	if port == "" {
		port = "80"
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(u.Hostname(), port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen for callbacks: %w", err)
	}

	l := &Listener{
		path:     path,
		listener: ln,
		results:  make(chan flow.Callback, 1),
		closed:   make(chan struct{}),
	}
	l.server = &http.Server{Handler: l}

	go func() {
		logger.Debug("Callback listener started", zap.String("address", ln.Addr().String()), zap.String("path", path))
		if err := l.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Callback listener stopped", zap.Error(err))
		}
	}()
	return l, nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Addr is the bound address.
func (l *Listener) Addr() string {
	return l.listener.Addr().String()
}

func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != l.path || r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	cb, err := flow.ParseCallback(r.URL.RequestURI())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data := pageData{Title: "Authorization received", Class: "ok", Message: "The authorization code was handed to the playground."}
	status := http.StatusOK
	switch {
	case cb.Error != "":
		data = pageData{Title: "Authorization failed", Class: "failed", Message: strings.TrimSpace(cb.Error + " " + cb.ErrorDescription)}
	case !cb.HasCode():
		data = pageData{Title: "No authorization code", Class: "failed", Message: "The redirect did not carry a code."}
		status = http.StatusBadRequest
	}

	if status == http.StatusOK {
		select {
		case l.results <- cb:
		default:
			// an unread callback is replaced by the newer one
			select {
			case <-l.results:
			default:
			}
			select {
			case l.results <- cb:
			default:
			}
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := page.Execute(w, data); err != nil {
		logger.Error("Failed to render callback page", zap.Error(err))
	}
}

// Results delivers every callback that carried a code or a provider error.
func (l *Listener) Results() <-chan flow.Callback {
	return l.results
}

// Wait blocks for the next callback.
func (l *Listener) Wait(ctx context.Context) (flow.Callback, error) {
	select {
	case cb := <-l.results:
		return cb, nil
	case <-l.closed:
		return flow.Callback{}, ErrClosed
	case <-ctx.Done():
		return flow.Callback{}, ctx.Err()
	}
}

// Close stops the server. It is safe to call more than once.
func (l *Listener) Close(ctx context.Context) error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closed)
		err = l.server.Shutdown(ctx)
	})
	return err
}
