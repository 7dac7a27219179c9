package flow

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/brizzai/oauth-playground/internal/auth/constants"
)

// Callback is what a redirect back from the provider carried.
type Callback struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string

	// Sanitized is the callback URL without code and scope, safe to show and reload.
	Sanitized string
}

// HasCode reports whether a non-empty code came back.
func (c Callback) HasCode() bool {
	return c.Code != ""
}

// ParseCallback reads a redirect callback URL.
func ParseCallback(raw string) (Callback, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Callback{}, fmt.Errorf("invalid callback url: %w", err)
	}
	q := u.Query()

	cb := Callback{
		Code:             strings.TrimSpace(q.Get(constants.ParamCode)),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}

	q.Del(constants.ParamCode)
	q.Del(constants.ParamScope)
	u.RawQuery = q.Encode()
	cb.Sanitized = u.String()
	return cb, nil
}
