package constants

const (
	// DefaultRedirectURI is where providers send the operator back to
	DefaultRedirectURI = "http://localhost:8501"

	// DefaultScope is used when an adapter has no scope of its own
	DefaultScope = "openid profile"

	// AuthHeaderName is the name of the Authorization header
	AuthHeaderName = "Authorization"

	// GoogleUserinfoURL is the OpenID Connect userinfo endpoint of Google
	GoogleUserinfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

	// GoogleIssuer is the OpenID Connect issuer of Google
	GoogleIssuer = "https://accounts.google.com"

	// CustomProviderName is the display name of the fully operator-specified provider
	CustomProviderName = "Custom"
)

// OAuth request parameter names and fixed values
const (
	ParamClientID     = "client_id"
	ParamClientSecret = "client_secret"
	ParamRedirectURI  = "redirect_uri"
	ParamResponseType = "response_type"
	ParamScope        = "scope"
	ParamCode         = "code"
	ParamGrantType    = "grant_type"

	ResponseTypeCode       = "code"
	GrantAuthorizationCode = "authorization_code"
)
