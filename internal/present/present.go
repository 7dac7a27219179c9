// Package present turns a flow snapshot into what the operator inspects.
package present

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/brizzai/oauth-playground/internal/auth/flow"
	"github.com/brizzai/oauth-playground/internal/auth/models"
	"github.com/brizzai/oauth-playground/internal/inspect"
	"gopkg.in/yaml.v3"
)

// PreviewLength is how much of the access token is shown before the cut.
const PreviewLength = 50

// Format of a rendered view.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts json, yaml or yml.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format %q, expected json or yaml", s)
	}
}

// Credentials is the inspection view of one successful exchange.
type Credentials struct {
	Provider           string         `json:"provider" yaml:"provider"`
	AccessTokenPreview string         `json:"access_token_preview" yaml:"access_token_preview"`
	AccessToken        string         `json:"access_token" yaml:"access_token"`
	RefreshToken       string         `json:"refresh_token,omitempty" yaml:"refresh_token,omitempty"`
	Details            Details        `json:"details" yaml:"details"`
	Profile            *Profile       `json:"profile,omitempty" yaml:"profile,omitempty"`
	IDToken            *Token         `json:"id_token,omitempty" yaml:"id_token,omitempty"`
	AccessTokenJWT     *Token         `json:"access_token_jwt,omitempty" yaml:"access_token_jwt,omitempty"`
	Response           map[string]any `json:"token_response" yaml:"token_response"`
}

type Details struct {
	ExpiresIn             *int64     `json:"expires_in,omitempty" yaml:"expires_in,omitempty"`
	ExpiresAt             *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	TokenType             string     `json:"token_type,omitempty" yaml:"token_type,omitempty"`
	Scope                 string     `json:"scope,omitempty" yaml:"scope,omitempty"`
	RefreshTokenExpiresIn *int64     `json:"refresh_token_expires_in,omitempty" yaml:"refresh_token_expires_in,omitempty"`
}

type Profile struct {
	Name    string             `json:"name,omitempty" yaml:"name,omitempty"`
	Email   string             `json:"email,omitempty" yaml:"email,omitempty"`
	ID      string             `json:"id,omitempty" yaml:"id,omitempty"`
	Picture string             `json:"picture,omitempty" yaml:"picture,omitempty"`
	Raw     models.UserProfile `json:"raw" yaml:"raw"`
}

// Token is a decoded JWT. Verified is set only when the signature was checked.
type Token struct {
	Verified bool           `json:"verified" yaml:"verified"`
	Header   map[string]any `json:"header,omitempty" yaml:"header,omitempty"`
	Claims   map[string]any `json:"claims" yaml:"claims"`
}

// Row is one labelled line of the details table.
type Row struct {
	Label string
	Value string
}

// FromSnapshot builds the view. It returns nil when the session holds no tokens.
func FromSnapshot(snap flow.Snapshot) *Credentials {
	ts := snap.Tokens
	if ts == nil {
		return nil
	}

	c := &Credentials{
		Provider:           snap.Config.Name,
		AccessTokenPreview: Preview(ts.AccessToken),
		AccessToken:        ts.AccessToken,
		RefreshToken:       ts.RefreshToken,
		Details: Details{
			ExpiresIn:             ts.ExpiresIn,
			TokenType:             ts.TokenType,
			Scope:                 ts.Scope,
			RefreshTokenExpiresIn: ts.RefreshTokenExpiresIn,
		},
		Response: ts.Raw,
	}
	if exp, ok := ts.ExpiresAt(); ok {
		exp = exp.UTC()
		c.Details.ExpiresAt = &exp
	}

	if snap.Profile != nil {
		c.Profile = &Profile{
			Name:    snap.Profile.Name(),
			Email:   snap.Profile.Email(),
			ID:      snap.Profile.ID(),
			Picture: snap.Profile.Picture(),
			Raw:     snap.Profile,
		}
	}

	switch {
	case snap.IDTokenClaims != nil:
		c.IDToken = &Token{Verified: true, Claims: snap.IDTokenClaims}
		if d, err := inspect.Decode(ts.IDToken); err == nil {
			c.IDToken.Header = d.Header
		}
	case ts.IDToken != "":
		if d, err := inspect.Decode(ts.IDToken); err == nil {
			c.IDToken = &Token{Header: d.Header, Claims: d.Claims}
		}
	}
	if d, err := inspect.Decode(ts.AccessToken); err == nil {
		c.AccessTokenJWT = &Token{Header: d.Header, Claims: d.Claims}
	}
	return c
}

// Preview cuts token to PreviewLength characters followed by "...".
func Preview(token string) string {
	if len(token) <= PreviewLength {
		return token
	}
	return token[:PreviewLength] + "..."
}

// Rows lists the token details with their display labels. Missing values are skipped.
func (c *Credentials) Rows() []Row {
	var rows []Row
	if c.Details.ExpiresIn != nil {
		rows = append(rows, Row{"Expires In (seconds)", strconv.FormatInt(*c.Details.ExpiresIn, 10)})
	}
	if c.Details.ExpiresAt != nil {
		rows = append(rows, Row{"Expires At", c.Details.ExpiresAt.Format(time.RFC3339)})
	}
	if c.Details.TokenType != "" {
		rows = append(rows, Row{"Token Type", c.Details.TokenType})
	}
	if c.Details.Scope != "" {
		rows = append(rows, Row{"Scope", c.Details.Scope})
	}
	if c.Details.RefreshTokenExpiresIn != nil {
		rows = append(rows, Row{"Refresh Token Expires In (seconds)", strconv.FormatInt(*c.Details.RefreshTokenExpiresIn, 10)})
	}
	return rows
}

// ProfileRows lists the well-known profile keys that are present.
func (c *Credentials) ProfileRows() []Row {
	if c.Profile == nil {
		return nil
	}
	var rows []Row
	for _, r := range []Row{
		{"Name", c.Profile.Name},
		{"Email", c.Profile.Email},
		{"ID", c.Profile.ID},
		{"Picture", c.Profile.Picture},
	} {
		if r.Value != "" {
			rows = append(rows, r)
		}
	}
	return rows
}

// Marshal renders v as indented JSON or YAML.
func Marshal(v any, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return nil, fmt.Errorf("failed to encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatJSON, "":
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode json: %w", err)
		}
		return append(out, '\n'), nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

// PrettyJSON indents v for display, falling back to fmt for values json rejects.
func PrettyJSON(v any) string {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(out)
}
