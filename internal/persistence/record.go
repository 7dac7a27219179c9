// Package persistence appends exchanged credentials to an analytics table.
package persistence

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/brizzai/oauth-playground/internal/auth/models"
)

// ErrPersistenceFailed matches every error of this package.
var ErrPersistenceFailed = errors.New("persistence failed")

var (
	ErrSinkNotConfigured = fmt.Errorf("%w: no sink configured", ErrPersistenceFailed)
	ErrMissingEmail      = fmt.Errorf("%w: profile has no email", ErrPersistenceFailed)
	ErrNoTokens          = fmt.Errorf("%w: no credentials to persist", ErrPersistenceFailed)
	ErrInvalidTable      = fmt.Errorf("%w: invalid table name", ErrPersistenceFailed)
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateTable rejects names that are not plain identifiers.
func ValidateTable(name string) error {
	if !tableName.MatchString(name) {
		return fmt.Errorf("%w %q", ErrInvalidTable, name)
	}
	return nil
}

// Record is one flattened row.
type Record struct {
	Email                 string
	Name                  string
	UniqueID              string
	Platform              string
	AccessToken           string
	RefreshToken          string
	ExpiresIn             *int64
	Scope                 string
	TokenType             string
	RefreshTokenExpiresIn *int64
	CreatedAt             time.Time
}

// NewRecord flattens a token set and profile. The profile must carry an email.
func NewRecord(platform string, ts *models.TokenSet, profile models.UserProfile, now time.Time) (Record, error) {
	if ts == nil {
		return Record{}, ErrNoTokens
	}
	email := strings.TrimSpace(profile.Email())
	if email == "" {
		return Record{}, ErrMissingEmail
	}
	return Record{
		Email:                 email,
		Name:                  profile.Name(),
		UniqueID:              profile.ID(),
		Platform:              platform,
		AccessToken:           ts.AccessToken,
		RefreshToken:          ts.RefreshToken,
		ExpiresIn:             ts.ExpiresIn,
		Scope:                 ts.Scope,
		TokenType:             ts.TokenType,
		RefreshTokenExpiresIn: ts.RefreshTokenExpiresIn,
		CreatedAt:             now.UTC(),
	}, nil
}

// args returns the column values in insertColumns order.
func (r Record) args() []any {
	return []any{
		r.Email, r.Name, r.UniqueID, r.Platform, r.AccessToken, r.RefreshToken,
		r.ExpiresIn, r.Scope, r.TokenType, r.RefreshTokenExpiresIn, r.CreatedAt,
	}
}

var insertColumns = []string{
	"email", "name", "unique_id", "platform", "access_token", "refresh_token",
	"expires_in", "scope", "token_type", "refresh_token_expires_in", "created_at",
}

func insertStatement(table string, placeholder func(i int) string) string {
	ph := make([]string, len(insertColumns))
	for i := range insertColumns {
		ph[i] = placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(insertColumns, ", "), strings.Join(ph, ", "))
}
