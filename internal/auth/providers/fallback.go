package providers

import "github.com/brizzai/oauth-playground/internal/auth/constants"

// profileFallbacks lists providers that declare no profile endpoint but are known to
// answer on a well-known userinfo service. Only names listed here get one.
var profileFallbacks = map[string]string{
	"Google":            constants.GoogleUserinfoURL,
	GoogleAnalyticsName: constants.GoogleUserinfoURL,
}

// ProfileEndpoint returns the profile URL to use for p: its own, else its fallback,
// else "".
func ProfileEndpoint(p Provider) string {
	if p == nil {
		return ""
	}
	if u := p.ProfileEndpoint(); u != "" {
		return u
	}
	return profileFallbacks[p.Name()]
}
