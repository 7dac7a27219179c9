package tui

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/brizzai/oauth-playground/internal/auth"
	"github.com/brizzai/oauth-playground/internal/auth/flow"
	"github.com/brizzai/oauth-playground/internal/auth/providers"
	"github.com/brizzai/oauth-playground/internal/present"
	"github.com/brizzai/oauth-playground/internal/requester"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func newIDP(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = io.WriteString(w, body)
		case "/userinfo":
			_, _ = io.WriteString(w, `{"sub":"42","email":"ada@example.com","name":"Ada"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestApp(t *testing.T, idp *httptest.Server, opened *[]string) AppModel {
	t.Helper()
	service, err := auth.NewService(providers.DefaultRegistry(), map[string]string{
		"APP_CLIENT_ID":     "client-1",
		"APP_CLIENT_SECRET": "secret-1",
		"AUTH_URL":          idp.URL + "/authorize",
		"TOKEN_URL":         idp.URL + "/token",
		"USERINFO_URL":      idp.URL + "/userinfo",
	})
	require.NoError(t, err)

	return NewAppModel(Options{
		Service: service,
		Engine:  flow.New(requester.NewWithClient(idp.Client())),
		OpenURL: func(u string) error {
			*opened = append(*opened, u)
			return nil
		},
	})
}

func update(t *testing.T, m AppModel, msg tea.Msg) (AppModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	app, ok := next.(AppModel)
	require.True(t, ok)
	return app, cmd
}

// run executes cmd and feeds every message it yields back into the model, one level deep
// into batches.
func run(t *testing.T, m AppModel, cmd tea.Cmd) AppModel {
	t.Helper()
	if cmd == nil {
		return m
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			if c == nil {
				continue
			}
			if inner := c(); inner != nil {
				if _, blink := inner.(tea.BatchMsg); !blink {
					m, _ = update(t, m, inner)
				}
			}
		}
		return m
	}
	if msg == nil {
		return m
	}
	m, _ = update(t, m, msg)
	return m
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+o":
		return tea.KeyMsg{Type: tea.KeyCtrlO}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestAppModel_CustomProviderFlow(t *testing.T) {
	idp := newIDP(t, http.StatusOK, `{"access_token":"tok123","expires_in":3600,"token_type":"Bearer"}`)
	var opened []string
	m := newTestApp(t, idp, &opened)
	assert.Equal(t, pageMain, m.page)

	m, _ = update(t, m, ProviderSelectedMsg{Name: "Custom"})
	require.Equal(t, pageForm, m.page)
	cfg, endpoints := m.form.Values()
	assert.Equal(t, "client-1", cfg.ClientID)
	assert.Equal(t, "secret-1", cfg.ClientSecret)
	require.NotNil(t, endpoints)
	assert.Equal(t, idp.URL+"/token", endpoints.TokenURL)

	var cmd tea.Cmd
	m, cmd = update(t, m, keyPress("ctrl+s"))
	m = run(t, m, cmd)
	require.Equal(t, pageFlow, m.page)
	assert.Contains(t, m.flowPage.AuthURL(), idp.URL+"/authorize?client_id=client-1")
	assert.Equal(t, flow.StateAwaitingCode, m.Session().State())

	m, cmd = update(t, m, keyPress("ctrl+o"))
	m = run(t, m, cmd)
	assert.Equal(t, []string{m.flowPage.AuthURL()}, opened)

	m, _ = update(t, m, CallbackMsg{Callback: flow.Callback{Code: "ABC123"}})
	assert.Equal(t, "ABC123", m.Session().Code())

	m, cmd = update(t, m, keyPress("enter"))
	assert.True(t, m.flowPage.busy)
	m = run(t, m, cmd)
	m = run(t, m, func() tea.Msg { return AuthenticatedMsg{} })
	require.Equal(t, pageCredentials, m.page)
	assert.True(t, m.IsFinished())
	assert.Equal(t, "tok123", m.Session().Tokens().AccessToken)
	assert.Contains(t, m.View(), "ada@example.com")

	m, cmd = update(t, m, keyPress("r"))
	m = run(t, m, cmd)
	assert.Equal(t, pageFlow, m.page)
	assert.Equal(t, flow.StateAwaitingCode, m.Session().State())
	assert.Nil(t, m.Session().Tokens())
	assert.False(t, m.IsFinished())
}

func TestAppModel_ExchangeFailureStaysOnFlowPage(t *testing.T) {
	idp := newIDP(t, http.StatusBadRequest, `{"error":"invalid_grant"}`)
	var opened []string
	m := newTestApp(t, idp, &opened)

	m, _ = update(t, m, ProviderSelectedMsg{Name: "Custom"})
	var cmd tea.Cmd
	m, cmd = update(t, m, keyPress("ctrl+s"))
	m = run(t, m, cmd)

	m, _ = update(t, m, CallbackMsg{Callback: flow.Callback{Code: "XYZ"}})
	m, cmd = update(t, m, keyPress("enter"))
	m = run(t, m, cmd)

	assert.Equal(t, pageFlow, m.page)
	assert.False(t, m.flowPage.busy)
	assert.Contains(t, m.flowPage.Status(), "Token exchange failed with status 400")
	assert.Contains(t, m.flowPage.Status(), "invalid_grant")
	assert.Equal(t, flow.StateAwaitingCode, m.Session().State())
	assert.Equal(t, "XYZ", m.Session().Code())
}

func TestAppModel_CallbackError(t *testing.T) {
	idp := newIDP(t, http.StatusOK, `{}`)
	var opened []string
	m := newTestApp(t, idp, &opened)

	m, _ = update(t, m, ProviderSelectedMsg{Name: providers.FacebookName})
	var cmd tea.Cmd
	m, cmd = update(t, m, keyPress("ctrl+s"))
	m = run(t, m, cmd)
	require.Equal(t, pageFlow, m.page)
	assert.Contains(t, m.flowPage.AuthURL(), "https://www.facebook.com/")

	m, _ = update(t, m, CallbackMsg{Callback: flow.Callback{Error: "access_denied", ErrorDescription: "user said no"}})
	assert.Contains(t, m.flowPage.Status(), "access_denied user said no")
	assert.Empty(t, m.Session().Code())
}

func TestAppModel_BackNavigation(t *testing.T) {
	idp := newIDP(t, http.StatusOK, `{}`)
	var opened []string
	m := newTestApp(t, idp, &opened)

	m, _ = update(t, m, ProviderSelectedMsg{Name: providers.GoogleAnalyticsName})
	var cmd tea.Cmd
	m, cmd = update(t, m, keyPress("esc"))
	m = run(t, m, cmd)
	assert.Equal(t, pageMain, m.page)

	m, _ = update(t, m, ProviderSelectedMsg{Name: "Custom"})
	assert.Equal(t, "Custom", m.Session().Provider().Name())
	_, endpoints := m.form.Values()
	assert.NotNil(t, endpoints)
}

func TestExportCredentialsToFile(t *testing.T) {
	expiresIn := int64(3600)
	creds := &present.Credentials{
		Provider:           "Custom",
		AccessTokenPreview: "tok123",
		AccessToken:        "tok123",
		Details:            present.Details{ExpiresIn: &expiresIn, TokenType: "Bearer"},
	}
	dir := t.TempDir()

	testCases := []struct {
		name     string
		filename string
		written  string
		decode   func([]byte, any) error
	}{
		{name: "json by extension", filename: "creds.json", written: "creds.json", decode: json.Unmarshal},
		{name: "yaml by extension", filename: "creds.yml", written: "creds.yml", decode: yaml.Unmarshal},
		{name: "yaml appended", filename: "creds", written: "creds.yaml", decode: yaml.Unmarshal},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			written, err := ExportCredentialsToFile(creds, filepath.Join(dir, tc.filename))
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, tc.written), written)

			data, err := os.ReadFile(written)
			require.NoError(t, err)
			var out map[string]any
			require.NoError(t, tc.decode(data, &out))
			assert.Equal(t, "tok123", out["access_token"])
			assert.Equal(t, "Custom", out["provider"])

			info, err := os.Stat(written)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
		})
	}

	_, err := ExportCredentialsToFile(nil, filepath.Join(dir, "none.json"))
	assert.Error(t, err)
}
