package flow

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brizzai/oauth-playground/internal/auth/constants"
	"github.com/brizzai/oauth-playground/internal/auth/models"
	"github.com/brizzai/oauth-playground/internal/auth/providers"
	"github.com/brizzai/oauth-playground/internal/requester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu    sync.Mutex
	post  func(endpoint string, form url.Values) (*requester.Response, error)
	get   func(endpoint string, headers http.Header, query url.Values) (*requester.Response, error)
	posts []url.Values
	gets  []string
}

func (f *fakeTransport) PostForm(_ context.Context, endpoint string, form url.Values) (*requester.Response, error) {
	f.mu.Lock()
	f.posts = append(f.posts, form)
	f.mu.Unlock()
	return f.post(endpoint, form)
}

func (f *fakeTransport) Get(_ context.Context, endpoint string, headers http.Header, query url.Values) (*requester.Response, error) {
	f.mu.Lock()
	f.gets = append(f.gets, endpoint)
	f.mu.Unlock()
	if f.get == nil {
		return nil, errors.New("unexpected GET " + endpoint)
	}
	return f.get(endpoint, headers, query)
}

func respond(status int, body string) func(string, url.Values) (*requester.Response, error) {
	return func(string, url.Values) (*requester.Response, error) {
		return &requester.Response{StatusCode: status, Body: []byte(body)}, nil
	}
}

type recordingObserver struct {
	exchanges []string
	profiles  []string
}

func (o *recordingObserver) ObserveExchange(_, result string)     { o.exchanges = append(o.exchanges, result) }
func (o *recordingObserver) ObserveProfileFetch(_, result string) { o.profiles = append(o.profiles, result) }

type stubVerifier struct {
	issuer string
	err    error
}

func (v *stubVerifier) Verify(_ context.Context, issuer, _, _ string) (map[string]any, error) {
	v.issuer = issuer
	if v.err != nil {
		return nil, v.err
	}
	return map[string]any{"sub": "42"}, nil
}

const okTokenBody = `{"access_token":"tok123","expires_in":3600,"token_type":"Bearer"}`

func genericProvider(userinfo string) providers.Provider {
	return providers.NewGenericProvider(models.Endpoints{
		AuthURL:     "https://idp.example.com/authorize",
		TokenURL:    "https://idp.example.com/token",
		UserinfoURL: userinfo,
	})
}

func newSession(p providers.Provider) *Session {
	cfg := p.DefaultConfig()
	cfg.ClientID = "client-1"
	cfg.ClientSecret = "secret-1"
	return NewSession(p, cfg)
}

func TestBuildAuthorizationURL(t *testing.T) {
	p := providers.NewGoogleAnalyticsProvider()
	cfg := models.ProviderConfig{ClientID: "abc", RedirectURI: "http://localhost:8501", Scope: "openid email"}

	got, err := BuildAuthorizationURL(p, cfg)
	require.NoError(t, err)
	assert.Equal(t,
		"https://accounts.google.com/o/oauth2/v2/auth?client_id=abc&redirect_uri=http%3A%2F%2Flocalhost%3A8501&response_type=code&scope=openid+email&access_type=offline&prompt=consent",
		got)

	again, err := BuildAuthorizationURL(p, cfg)
	require.NoError(t, err)
	assert.Equal(t, got, again)

	_, err = BuildAuthorizationURL(providers.NewGenericProvider(models.Endpoints{}), cfg)
	assert.ErrorIs(t, err, ErrNoEndpoint)
}

func TestAuthorizationURL_MovesIdleToAwaitingCode(t *testing.T) {
	s := newSession(genericProvider(""))
	e := New(&fakeTransport{})

	_, err := e.AuthorizationURL(s)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingCode, s.State())
}

func TestSubmitCode(t *testing.T) {
	s := newSession(genericProvider(""))
	e := New(&fakeTransport{})

	_, err := e.SubmitCode(s, "   ")
	assert.ErrorIs(t, err, ErrNoCode)
	assert.Equal(t, StateIdle, s.State())

	changed, err := e.SubmitCode(s, " abc ")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "abc", s.Code())
	assert.Equal(t, StateAwaitingCode, s.State())

	changed, err = e.SubmitCode(s, "abc")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestCaptureCallback(t *testing.T) {
	s := newSession(genericProvider(""))
	e := New(&fakeTransport{})

	cb, err := e.CaptureCallback(s, "http://localhost:8501/?code=ABC123&scope=openid")
	require.NoError(t, err)
	assert.Equal(t, "ABC123", cb.Code)
	assert.Equal(t, "http://localhost:8501/", cb.Sanitized)
	assert.Equal(t, "ABC123", s.Code())
	assert.Equal(t, StateAwaitingCode, s.State())
}

func TestParseCallback(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		code      string
		errCode   string
		sanitized string
	}{
		{
			name:      "code and scope removed, other params kept",
			raw:       "http://localhost:8501/?code=xyz&scope=a+b&state=s1",
			code:      "xyz",
			sanitized: "http://localhost:8501/?state=s1",
		},
		{
			name:      "no code",
			raw:       "http://localhost:8501/",
			sanitized: "http://localhost:8501/",
		},
		{
			name:      "provider error",
			raw:       "http://localhost:8501/?error=access_denied&error_description=denied",
			errCode:   "access_denied",
			sanitized: "http://localhost:8501/?error=access_denied&error_description=denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, err := ParseCallback(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.code, cb.Code)
			assert.Equal(t, tt.errCode, cb.Error)
			assert.Equal(t, tt.sanitized, cb.Sanitized)
		})
	}
}

func TestExchange_MissingSecretSendsNothing(t *testing.T) {
	transport := &fakeTransport{post: respond(http.StatusOK, okTokenBody)}
	obs := &recordingObserver{}
	e := New(transport, WithObserver(obs))

	s := newSession(genericProvider(""))
	cfg := s.Config()
	cfg.ClientSecret = ""
	s.UpdateConfig(cfg)
	_, err := e.SubmitCode(s, "code-1")
	require.NoError(t, err)

	_, err = e.Exchange(context.Background(), s)
	var missing *MissingCredentialError
	require.ErrorAs(t, err, &missing)
	assert.ErrorIs(t, err, ErrMissingCredential)
	assert.Equal(t, constants.ParamClientSecret, missing.Field)
	assert.Empty(t, transport.posts)
	assert.Equal(t, StateAwaitingCode, s.State())
	assert.Equal(t, []string{ResultMissingCredential}, obs.exchanges)

	cfg.ClientSecret = "secret-1"
	s.UpdateConfig(cfg)
	ts, err := e.Exchange(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "tok123", ts.AccessToken)
	assert.Equal(t, StateAuthenticated, s.State())
}

func TestExchange_ProviderRejects(t *testing.T) {
	transport := &fakeTransport{post: respond(http.StatusBadRequest, `{"error":"invalid_grant"}`)}
	e := New(transport)

	s := newSession(genericProvider(""))
	_, err := e.SubmitCode(s, "used-code")
	require.NoError(t, err)

	ts, err := e.Exchange(context.Background(), s)
	assert.Nil(t, ts)
	var failed *ExchangeFailedError
	require.ErrorAs(t, err, &failed)
	assert.ErrorIs(t, err, ErrExchangeFailed)
	assert.Equal(t, http.StatusBadRequest, failed.StatusCode)
	assert.JSONEq(t, `{"error":"invalid_grant"}`, string(failed.Body))
	assert.Contains(t, failed.Detail(), `"error": "invalid_grant"`)
	body, ok := failed.JSON()
	require.True(t, ok)
	assert.Equal(t, "invalid_grant", body["error"])

	assert.Equal(t, StateAwaitingCode, s.State())
	assert.Nil(t, s.Tokens())
}

func TestExchange_TransportError(t *testing.T) {
	transport := &fakeTransport{post: func(string, url.Values) (*requester.Response, error) {
		return nil, errors.New("connection refused")
	}}
	e := New(transport)

	s := newSession(genericProvider(""))
	_, _ = e.SubmitCode(s, "c")
	_, err := e.Exchange(context.Background(), s)

	var failed *ExchangeFailedError
	require.ErrorAs(t, err, &failed)
	assert.Zero(t, failed.StatusCode)
	assert.Contains(t, failed.Error(), "connection refused")
	assert.Equal(t, StateAwaitingCode, s.State())
}

func TestExchange_NoAccessTokenIsFailure(t *testing.T) {
	e := New(&fakeTransport{post: respond(http.StatusOK, `{"token_type":"Bearer"}`)})

	s := newSession(genericProvider(""))
	_, _ = e.SubmitCode(s, "c")
	_, err := e.Exchange(context.Background(), s)

	assert.ErrorIs(t, err, ErrExchangeFailed)
	assert.ErrorIs(t, err, models.ErrNoAccessToken)
}

func TestExchange_SuccessWithoutProfileEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		provider providers.Provider
	}{
		{name: "facebook", provider: providers.NewFacebookProvider()},
		{name: "generic without userinfo", provider: genericProvider("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &fakeTransport{post: respond(http.StatusOK, okTokenBody)}
			obs := &recordingObserver{}
			now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
			e := New(transport, WithObserver(obs), WithClock(func() time.Time { return now }))

			s := newSession(tt.provider)
			_, err := e.SubmitCode(s, "code-ok")
			require.NoError(t, err)

			ts, err := e.Exchange(context.Background(), s)
			require.NoError(t, err)
			assert.Equal(t, "tok123", ts.AccessToken)
			require.NotNil(t, ts.ExpiresIn)
			assert.EqualValues(t, 3600, *ts.ExpiresIn)
			assert.Equal(t, now, ts.ReceivedAt)

			assert.Equal(t, StateAuthenticated, s.State())
			assert.Nil(t, s.Profile())
			assert.Empty(t, transport.gets)
			assert.Equal(t, []string{ResultSkipped}, obs.profiles)

			form := transport.posts[0]
			assert.Equal(t, "code-ok", form.Get("code"))
			assert.Equal(t, "authorization_code", form.Get("grant_type"))
			assert.Equal(t, "secret-1", form.Get("client_secret"))
		})
	}
}

func TestExchange_ProfileFetched(t *testing.T) {
	var gotAuth string
	transport := &fakeTransport{
		post: respond(http.StatusOK, okTokenBody),
		get: func(endpoint string, headers http.Header, _ url.Values) (*requester.Response, error) {
			gotAuth = headers.Get("Authorization")
			return &requester.Response{StatusCode: http.StatusOK, Body: []byte(`{"sub":"42","email":"a@b.c","name":"Ada"}`)}, nil
		},
	}
	e := New(transport)

	s := newSession(genericProvider("https://idp.example.com/userinfo"))
	_, _ = e.SubmitCode(s, "c")
	_, err := e.Exchange(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok123", gotAuth)
	assert.Equal(t, []string{"https://idp.example.com/userinfo"}, transport.gets)
	profile := s.Profile()
	assert.Equal(t, "a@b.c", profile.Email())
	assert.Equal(t, "Ada", profile.Name())
}

func TestExchange_ProfileFallbackForGoogleAnalytics(t *testing.T) {
	transport := &fakeTransport{
		post: respond(http.StatusOK, okTokenBody),
		get: func(string, http.Header, url.Values) (*requester.Response, error) {
			return &requester.Response{StatusCode: http.StatusOK, Body: []byte(`{"sub":"1"}`)}, nil
		},
	}
	e := New(transport)

	s := newSession(providers.NewGoogleAnalyticsProvider())
	_, _ = e.SubmitCode(s, "c")
	_, err := e.Exchange(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, []string{constants.GoogleUserinfoURL}, transport.gets)
}

func TestExchange_ProfileFailureIsSwallowed(t *testing.T) {
	tests := []struct {
		name string
		get  func(string, http.Header, url.Values) (*requester.Response, error)
	}{
		{
			name: "status",
			get: func(string, http.Header, url.Values) (*requester.Response, error) {
				return &requester.Response{StatusCode: http.StatusUnauthorized, Body: []byte(`{}`)}, nil
			},
		},
		{
			name: "transport",
			get: func(string, http.Header, url.Values) (*requester.Response, error) {
				return nil, errors.New("timeout")
			},
		},
		{
			name: "not json",
			get: func(string, http.Header, url.Values) (*requester.Response, error) {
				return &requester.Response{StatusCode: http.StatusOK, Body: []byte(`<html>`)}, nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := &recordingObserver{}
			e := New(&fakeTransport{post: respond(http.StatusOK, okTokenBody), get: tt.get}, WithObserver(obs))

			s := newSession(genericProvider("https://idp.example.com/userinfo"))
			_, _ = e.SubmitCode(s, "c")
			ts, err := e.Exchange(context.Background(), s)
			require.NoError(t, err)
			assert.NotNil(t, ts)
			assert.Nil(t, s.Profile())
			assert.Equal(t, StateAuthenticated, s.State())
			assert.Equal(t, []string{ResultFailed}, obs.profiles)
		})
	}
}

func TestExchange_SameCodeNotReExchanged(t *testing.T) {
	transport := &fakeTransport{post: respond(http.StatusOK, okTokenBody)}
	e := New(transport)

	s := newSession(genericProvider(""))
	_, _ = e.SubmitCode(s, "c")
	_, err := e.Exchange(context.Background(), s)
	require.NoError(t, err)

	_, err = e.Exchange(context.Background(), s)
	assert.ErrorIs(t, err, ErrCodeAlreadyExchanged)
	assert.ErrorIs(t, err, ErrExchangeFailed)
	var failed *ExchangeFailedError
	require.ErrorAs(t, err, &failed)
	assert.Zero(t, failed.StatusCode)
	assert.Len(t, transport.posts, 1)
	assert.Equal(t, StateAuthenticated, s.State())

	changed, err := e.SubmitCode(s, "c")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestExchange_NewCodeKeepsCredentialsUntilSuccess(t *testing.T) {
	transport := &fakeTransport{post: respond(http.StatusOK, okTokenBody)}
	e := New(transport)

	s := newSession(genericProvider(""))
	_, _ = e.SubmitCode(s, "first")
	_, err := e.Exchange(context.Background(), s)
	require.NoError(t, err)

	_, err = e.SubmitCode(s, "second")
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, s.State())
	assert.Equal(t, "tok123", s.Tokens().AccessToken)

	transport.post = respond(http.StatusBadRequest, `{"error":"invalid_grant"}`)
	_, err = e.Exchange(context.Background(), s)
	assert.ErrorIs(t, err, ErrExchangeFailed)
	assert.Equal(t, StateAuthenticated, s.State())
	assert.Equal(t, "tok123", s.Tokens().AccessToken)
	assert.Equal(t, "second", s.Code())

	transport.post = respond(http.StatusOK, `{"access_token":"tok456"}`)
	_, err = e.Exchange(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "tok456", s.Tokens().AccessToken)

	require.NoError(t, e.Reset(s))
	assert.Nil(t, s.Tokens())
}

func TestExchange_VerifiesIDToken(t *testing.T) {
	body := `{"access_token":"tok","id_token":"header.payload.sig"}`
	transport := &fakeTransport{
		post: respond(http.StatusOK, body),
		get: func(string, http.Header, url.Values) (*requester.Response, error) {
			return &requester.Response{StatusCode: http.StatusOK, Body: []byte(`{}`)}, nil
		},
	}

	v := &stubVerifier{}
	e := New(transport, WithVerifier(v))
	s := newSession(providers.NewGoogleAnalyticsProvider())
	_, _ = e.SubmitCode(s, "c")
	_, err := e.Exchange(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, constants.GoogleIssuer, v.issuer)
	assert.Equal(t, map[string]any{"sub": "42"}, s.Snapshot().IDTokenClaims)

	bad := &stubVerifier{err: errors.New("bad signature")}
	e = New(transport, WithVerifier(bad))
	s = newSession(providers.NewGoogleAnalyticsProvider())
	_, _ = e.SubmitCode(s, "c")
	_, err = e.Exchange(context.Background(), s)
	require.NoError(t, err)
	assert.Nil(t, s.Snapshot().IDTokenClaims)
}

func TestReset(t *testing.T) {
	e := New(&fakeTransport{post: respond(http.StatusOK, okTokenBody)})
	s := newSession(genericProvider(""))

	assert.ErrorIs(t, e.Reset(s), ErrInvalidState)

	failing := New(&fakeTransport{post: respond(http.StatusBadRequest, `{"error":"invalid_grant"}`)})
	_, _ = failing.SubmitCode(s, "c")
	_, err := failing.Exchange(context.Background(), s)
	require.ErrorIs(t, err, ErrExchangeFailed)
	assert.Equal(t, StateAwaitingCode, s.State())
	assert.ErrorIs(t, e.Reset(s), ErrInvalidState)
	assert.Equal(t, "c", s.Code())

	_, err = e.Exchange(context.Background(), s)
	require.NoError(t, err)

	require.NoError(t, e.Reset(s))
	snap := s.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.Code)
	assert.Nil(t, snap.Tokens)
	assert.Nil(t, snap.Profile)
	assert.Equal(t, "client-1", snap.Config.ClientID)
}

func TestExchangeLongLived(t *testing.T) {
	var gotQuery url.Values
	transport := &fakeTransport{
		post: respond(http.StatusOK, okTokenBody),
		get: func(endpoint string, _ http.Header, query url.Values) (*requester.Response, error) {
			gotQuery = query
			return &requester.Response{StatusCode: http.StatusOK, Body: []byte(`{"access_token":"long","expires_in":5184000}`)}, nil
		},
	}
	e := New(transport)

	generic := newSession(genericProvider(""))
	_, _ = e.SubmitCode(generic, "c")
	_, err := e.Exchange(context.Background(), generic)
	require.NoError(t, err)
	_, err = e.ExchangeLongLived(context.Background(), generic)
	assert.ErrorIs(t, err, ErrNotSupported)

	s := newSession(providers.NewFacebookProvider())
	_, err = e.ExchangeLongLived(context.Background(), s)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, _ = e.SubmitCode(s, "c")
	_, err = e.Exchange(context.Background(), s)
	require.NoError(t, err)

	ts, err := e.ExchangeLongLived(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "long", ts.AccessToken)
	assert.Equal(t, "long", s.Tokens().AccessToken)
	assert.Equal(t, StateAuthenticated, s.State())
	assert.Equal(t, "fb_exchange_token", gotQuery.Get("grant_type"))
	assert.Equal(t, "tok123", gotQuery.Get("fb_exchange_token"))
}

func TestDebug_MasksSecret(t *testing.T) {
	e := New(&fakeTransport{})
	s := newSession(genericProvider(""))
	_, _ = e.SubmitCode(s, "abcd")

	d := e.Debug(s)
	assert.Equal(t, "********...", d.ClientSecret)
	assert.Equal(t, 8, d.SecretLength)
	assert.Equal(t, 4, d.CodeLength)
	assert.Equal(t, "authorization_code", d.GrantType)
	assert.False(t, strings.Contains(d.ClientSecret, "secret"))
}

func TestSwitchProvider(t *testing.T) {
	e := New(&fakeTransport{})
	s := newSession(genericProvider(""))
	_, _ = e.SubmitCode(s, "c")

	fb := providers.NewFacebookProvider()
	require.NoError(t, s.SwitchProvider(fb, fb.DefaultConfig()))
	snap := s.Snapshot()
	assert.Equal(t, providers.FacebookName, snap.Config.Name)
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.Code)
}

func TestIsLocal(t *testing.T) {
	assert.True(t, IsLocal(&MissingCredentialError{Field: "client_id"}))
	assert.True(t, IsLocal(ErrNoCode))
	assert.False(t, IsLocal(&ExchangeFailedError{StatusCode: 400}))
	assert.True(t, IsLocal(&ExchangeFailedError{Err: ErrCodeAlreadyExchanged}))
}
