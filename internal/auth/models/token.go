package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// ErrNoAccessToken is returned when a token response lacks access_token.
var ErrNoAccessToken = errors.New("token response has no access_token")

// TokenSet is the result of a successful code exchange. Raw keeps the full response
// for display.
type TokenSet struct {
	AccessToken           string
	RefreshToken          string
	ExpiresIn             *int64
	TokenType             string
	Scope                 string
	RefreshTokenExpiresIn *int64
	IDToken               string
	Raw                   map[string]any
	ReceivedAt            time.Time
}

// ParseTokenSet decodes a token endpoint JSON body.
func ParseTokenSet(body []byte, receivedAt time.Time) (*TokenSet, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	raw := map[string]any{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	ts := &TokenSet{
		AccessToken:  stringValue(raw["access_token"]),
		RefreshToken: stringValue(raw["refresh_token"]),
		TokenType:    stringValue(raw["token_type"]),
		Scope:        stringValue(raw["scope"]),
		IDToken:      stringValue(raw["id_token"]),
		Raw:          raw,
		ReceivedAt:   receivedAt,
	}
	ts.ExpiresIn = intValue(raw["expires_in"])
	ts.RefreshTokenExpiresIn = intValue(raw["refresh_token_expires_in"])

	if ts.AccessToken == "" {
		return ts, ErrNoAccessToken
	}
	return ts, nil
}

// ExpiresAt returns when the access token expires, if the provider said so.
func (t *TokenSet) ExpiresAt() (time.Time, bool) {
	if t == nil || t.ExpiresIn == nil || t.ReceivedAt.IsZero() {
		return time.Time{}, false
	}
	return t.ReceivedAt.Add(time.Duration(*t.ExpiresIn) * time.Second), true
}

// OAuth2Token converts to the x/oauth2 representation.
func (t *TokenSet) OAuth2Token() *oauth2.Token {
	if t == nil {
		return nil
	}
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
	}
	if exp, ok := t.ExpiresAt(); ok {
		tok.Expiry = exp
	}
	if t.Raw != nil {
		tok = tok.WithExtra(t.Raw)
	}
	return tok
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

func intValue(v any) *int64 {
	var n int64
	switch x := v.(type) {
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			f, ferr := x.Float64()
			if ferr != nil {
				return nil
			}
			i = int64(f)
		}
		n = i
	case float64:
		n = int64(x)
	case int64:
		n = x
	case int:
		n = int64(x)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return nil
		}
		n = i
	default:
		return nil
	}
	return &n
}
