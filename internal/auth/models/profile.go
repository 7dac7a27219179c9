package models

import "fmt"

// UserProfile is whatever the profile endpoint returned. Only a handful of well-known
// keys are ever looked at.
type UserProfile map[string]any

// Name returns "name", or "data.display_name" for providers that nest it.
func (p UserProfile) Name() string {
	if p == nil {
		return ""
	}
	if s, ok := p["name"].(string); ok {
		return s
	}
	if data, ok := p["data"].(map[string]any); ok {
		if s, ok := data["display_name"].(string); ok {
			return s
		}
	}
	return ""
}

// Email returns the "email" key.
func (p UserProfile) Email() string {
	if p == nil {
		return ""
	}
	s, _ := p["email"].(string)
	return s
}

// ID returns "sub" (OIDC) or "id".
func (p UserProfile) ID() string {
	if p == nil {
		return ""
	}
	for _, k := range []string{"sub", "id"} {
		switch v := p[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case nil:
		default:
			return fmt.Sprint(v)
		}
	}
	return ""
}

// Picture returns the picture URL, which is either a plain string or nested as
// picture.data.url / picture.url.
func (p UserProfile) Picture() string {
	if p == nil {
		return ""
	}
	switch v := p["picture"].(type) {
	case string:
		return v
	case map[string]any:
		if data, ok := v["data"].(map[string]any); ok {
			if s, ok := data["url"].(string); ok && s != "" {
				return s
			}
		}
		s, _ := v["url"].(string)
		return s
	}
	return ""
}
