package logger

import (
	"path/filepath"
	"testing"

	"github.com/brizzai/oauth-playground/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret(""))
	assert.Equal(t, "******...", MaskSecret("s3cret"))
	assert.Equal(t, "********************...", MaskSecret("a-very-long-client-secret-value"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 30))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
}

func TestNewLogger(t *testing.T) {
	_, err := NewLogger(&config.LoggingConfig{Level: "nope"})
	assert.Error(t, err)

	_, err = NewLogger(&config.LoggingConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "logs", "playground.log")
	l, err := NewLogger(&config.LoggingConfig{Level: "debug", Format: "json", OutputPath: path, DisableConsole: true})
	require.NoError(t, err)
	l.Info("hello")
	require.NoError(t, l.Sync())
	assert.FileExists(t, path)
}

func TestSecretFieldNeverLogsValue(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	restore := Replace(zap.New(core))
	defer restore()

	Info("exchange", Secret("client_secret", "topsecretvalue"))

	require.Equal(t, 1, logs.Len())
	ctx := logs.All()[0].ContextMap()
	secret, ok := ctx["client_secret"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "**************...", secret["masked"])
	assert.EqualValues(t, 14, secret["length"])
}

func TestFlowFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	restore := Replace(zap.New(core))
	defer restore()

	Debug("code", ClientID("0123456789012345678901234567890123456789"), Code("ABC123"))

	require.Equal(t, 1, logs.Len())
	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "012345678901234567890123456789...", ctx["client_id"])
	assert.EqualValues(t, 6, ctx["code_length"])
}
