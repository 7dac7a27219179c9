package web

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/brizzai/oauth-playground/internal/auth/flow"
	"github.com/brizzai/oauth-playground/internal/auth/models"
	"github.com/brizzai/oauth-playground/internal/auth/providers"
	"github.com/brizzai/oauth-playground/internal/logger"
	"github.com/brizzai/oauth-playground/internal/persistence"
	"github.com/brizzai/oauth-playground/internal/present"
	"go.uber.org/zap"
)

type dashboardView struct {
	Choices      []string
	Provider     string
	IsCustom     bool
	Custom       models.Endpoints
	Config       models.ProviderConfig
	SecretMasked string
	EnvLoaded    bool
	EnvKeys      models.EnvKeys

	State      string
	AuthURL    string
	AuthURLErr string
	Code       string
	Debug      flow.ExchangeDebug

	Credentials    *present.Credentials
	LongLived      bool
	PersistEnabled bool
	Flashes        []Flash
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": h.store.Len(),
	})
}

// dashboard renders the page. A provider redirect lands here too: its code is captured
// and the browser is sent to the URL without code and scope so a reload does not
// replay it.
func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	sess := h.store.Get(w, r)

	q := r.URL.Query()
	if q.Has("code") || q.Has("error") {
		cb, err := h.engine.CaptureCallback(sess.Flow, r.URL.RequestURI())
		switch {
		case err != nil:
			sess.addFlash(errorFlash(err))
		case cb.Error != "":
			sess.addFlash(Flash{Kind: "error", Message: "Provider returned " + cb.Error, Detail: cb.ErrorDescription})
		case cb.HasCode():
			sess.addFlash(Flash{Kind: "success", Message: "Authorization code captured, exchange it for tokens."})
		}
		http.Redirect(w, r, landingURL(cb), http.StatusSeeOther)
		return
	}

	view := h.view(sess)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := templates.ExecuteTemplate(w, "dashboard.html", view); err != nil {
		logger.Error("Failed to render dashboard", zap.Error(err))
	}
}

// landingURL is the sanitized callback URL, also without the provider error params,
// which were shown once already.
func landingURL(cb flow.Callback) string {
	u, err := url.Parse(cb.Sanitized)
	if err != nil {
		return "/"
	}
	q := u.Query()
	for _, k := range []string{"error", "error_description", "error_uri"} {
		q.Del(k)
	}
	u.RawQuery = q.Encode()
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

func (h *Handler) view(sess *browserSession) dashboardView {
	snap := sess.Flow.Snapshot()
	p := snap.Provider

	v := dashboardView{
		Choices:        h.service.Choices(),
		Provider:       p.Name(),
		IsCustom:       h.service.Registry().IsCustom(p.Name()),
		Config:         snap.Config,
		SecretMasked:   logger.MaskSecret(snap.Config.ClientSecret),
		EnvLoaded:      sess.EnvLoaded(),
		EnvKeys:        p.EnvKeys(),
		State:          snap.State.String(),
		Code:           snap.Code,
		Debug:          h.engine.Debug(sess.Flow),
		Credentials:    present.FromSnapshot(snap),
		PersistEnabled: h.persister.Enabled(),
		Flashes:        sess.popFlashes(),
	}
	if g, ok := p.(*providers.GenericProvider); ok {
		v.Custom = g.Endpoints()
	}
	_, v.LongLived = p.(providers.LongLivedExchanger)

	authURL, err := flow.BuildAuthorizationURL(p, snap.Config)
	if err != nil {
		v.AuthURLErr = err.Error()
	} else {
		v.AuthURL = authURL
	}
	return v
}

func (h *Handler) updateConfig(w http.ResponseWriter, r *http.Request) {
	sess := h.store.Get(w, r)
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	name := strings.TrimSpace(r.PostFormValue("provider"))
	current := sess.Flow.Provider()
	if name == "" {
		name = current.Name()
	}

	var custom *models.Endpoints
	if h.service.Registry().IsCustom(name) {
		custom = &models.Endpoints{
			AuthURL:     r.PostFormValue("auth_url"),
			TokenURL:    r.PostFormValue("token_url"),
			UserinfoURL: r.PostFormValue("userinfo_url"),
		}
		if *custom == (models.Endpoints{}) {
			e := h.service.CustomEndpoints()
			custom = &e
		}
	}

	if name != current.Name() || custom != nil && !sameEndpoints(current, *custom) {
		loaded, err := h.service.Switch(sess.Flow, name, custom)
		if err != nil {
			sess.addFlash(errorFlash(err))
			redirectHome(w, r)
			return
		}
		sess.setEnvLoaded(loaded)
		if name != current.Name() {
			// the form still shows the previous provider's values
			redirectHome(w, r)
			return
		}
	}

	cfg := sess.Flow.Config()
	cfg.ClientID = strings.TrimSpace(r.PostFormValue("client_id"))
	if secret := r.PostFormValue("client_secret"); secret != "" || r.PostFormValue("clear_secret") != "" {
		cfg.ClientSecret = strings.TrimSpace(secret)
	}
	cfg.RedirectURI = strings.TrimSpace(r.PostFormValue("redirect_uri"))
	cfg.Scope = strings.TrimSpace(r.PostFormValue("scope"))
	sess.Flow.UpdateConfig(cfg)

	sess.addFlash(Flash{Kind: "info", Message: "Configuration saved."})
	redirectHome(w, r)
}

func sameEndpoints(p providers.Provider, e models.Endpoints) bool {
	g, ok := p.(*providers.GenericProvider)
	if !ok {
		return false
	}
	cur := g.Endpoints()
	return cur.AuthURL == strings.TrimSpace(e.AuthURL) &&
		cur.TokenURL == strings.TrimSpace(e.TokenURL) &&
		cur.UserinfoURL == strings.TrimSpace(e.UserinfoURL)
}

func (h *Handler) submitCode(w http.ResponseWriter, r *http.Request) {
	sess := h.store.Get(w, r)

	input := strings.TrimSpace(r.PostFormValue("code"))
	// a pasted callback URL is accepted as well as the bare code
	if strings.Contains(input, "code=") {
		cb, err := flow.ParseCallback(input)
		if err == nil && cb.HasCode() {
			input = cb.Code
		}
	}

	changed, err := h.engine.SubmitCode(sess.Flow, input)
	switch {
	case err != nil:
		sess.addFlash(errorFlash(err))
	case changed:
		sess.addFlash(Flash{Kind: "success", Message: "Authorization code stored."})
	default:
		sess.addFlash(Flash{Kind: "info", Message: "Same authorization code as before."})
	}
	redirectHome(w, r)
}

func (h *Handler) exchange(w http.ResponseWriter, r *http.Request) {
	sess := h.store.Get(w, r)

	ts, err := h.engine.Exchange(r.Context(), sess.Flow)
	if err != nil {
		sess.addFlash(errorFlash(err))
		redirectHome(w, r)
		return
	}

	msg := "Access token obtained."
	if sess.Flow.Profile() == nil {
		msg += " No profile was fetched."
	}
	if ts.RefreshToken == "" {
		msg += " The provider issued no refresh token."
	}
	sess.addFlash(Flash{Kind: "success", Message: msg})
	redirectHome(w, r)
}

func (h *Handler) longLived(w http.ResponseWriter, r *http.Request) {
	sess := h.store.Get(w, r)

	ts, err := h.engine.ExchangeLongLived(r.Context(), sess.Flow)
	if err != nil {
		sess.addFlash(errorFlash(err))
	} else {
		msg := "Long-lived token obtained."
		if ts.ExpiresIn != nil {
			msg = fmt.Sprintf("Long-lived token obtained, valid for %d days.", *ts.ExpiresIn/86400)
		}
		sess.addFlash(Flash{Kind: "success", Message: msg})
	}
	redirectHome(w, r)
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	sess := h.store.Get(w, r)

	if err := h.engine.Reset(sess.Flow); err != nil {
		sess.addFlash(errorFlash(err))
	} else {
		sess.addFlash(Flash{Kind: "info", Message: "Credentials cleared."})
	}
	redirectHome(w, r)
}

func (h *Handler) persist(w http.ResponseWriter, r *http.Request) {
	sess := h.store.Get(w, r)

	rec, err := h.persister.Persist(r.Context(), sess.Flow.Snapshot())
	if err != nil {
		sess.addFlash(errorFlash(err))
	} else {
		sess.addFlash(Flash{Kind: "success", Message: fmt.Sprintf("Credentials for %s saved.", rec.Email)})
	}
	redirectHome(w, r)
}

// credentials downloads the current credentials as json or yaml.
func (h *Handler) credentials(w http.ResponseWriter, r *http.Request) {
	sess := h.store.Get(w, r)

	format, err := present.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	c := present.FromSnapshot(sess.Flow.Snapshot())
	if c == nil {
		writeError(w, http.StatusNotFound, "not_found", "no credentials in this session")
		return
	}
	out, err := present.Marshal(c, format)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	contentType := "application/json"
	if format == present.FormatYAML {
		contentType = "application/yaml"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(out)
}

func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func errorFlash(err error) Flash {
	var failed *flow.ExchangeFailedError
	var missing *flow.MissingCredentialError
	switch {
	case errors.As(err, &missing):
		return Flash{Kind: "warning", Message: fmt.Sprintf("Enter a %s before exchanging.", strings.ReplaceAll(missing.Field, "_", " "))}
	case errors.As(err, &failed):
		msg := "Token exchange failed"
		if failed.StatusCode != 0 {
			msg = fmt.Sprintf("Token exchange failed with status %d", failed.StatusCode)
		}
		return Flash{Kind: "error", Message: msg, Detail: failed.Detail()}
	case errors.Is(err, persistence.ErrPersistenceFailed):
		return Flash{Kind: "error", Message: "Could not save credentials", Detail: err.Error()}
	default:
		return Flash{Kind: "warning", Message: err.Error()}
	}
}
