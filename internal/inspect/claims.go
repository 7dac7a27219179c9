// Package inspect decodes and verifies the JWTs a provider hands back.
package inspect

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT is returned for tokens that are opaque strings rather than JWTs.
var ErrNotJWT = errors.New("token is not a JWT")

// Decoded is a JWT read without checking its signature. It is for display only.
type Decoded struct {
	Header map[string]any `json:"header" yaml:"header"`
	Claims map[string]any `json:"claims" yaml:"claims"`
}

// Decode splits raw into header and claims. Opaque tokens yield ErrNotJWT.
func Decode(raw string) (*Decoded, error) {
	raw = strings.TrimSpace(raw)
	if strings.Count(raw, ".") != 2 {
		return nil, ErrNotJWT
	}

	claims := jwt.MapClaims{}
	token, _, err := jwt.NewParser().ParseUnverified(raw, claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJWT, err)
	}
	return &Decoded{Header: token.Header, Claims: claims}, nil
}

func (d *Decoded) Issuer() string {
	s, _ := jwt.MapClaims(d.Claims).GetIssuer()
	return s
}

func (d *Decoded) Subject() string {
	s, _ := jwt.MapClaims(d.Claims).GetSubject()
	return s
}

// Expiry returns the exp claim, if present.
func (d *Decoded) Expiry() (time.Time, bool) {
	exp, err := jwt.MapClaims(d.Claims).GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Algorithm is the alg header.
func (d *Decoded) Algorithm() string {
	alg, _ := d.Header["alg"].(string)
	return alg
}
