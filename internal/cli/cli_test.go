package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("intent flag populates config with defaults", func(t *testing.T) {
		var out bytes.Buffer
		cfg, exit, err := Parse([]string{"-intent", "intent.json"}, &out)
		require.NoError(t, err)
		require.False(t, exit)

		assert.Equal(t, "intent.json", cfg.IntentPath)
		assert.Equal(t, "rules", cfg.RulesPath)
		assert.Equal(t, "modules", cfg.ModulesPath)
		assert.Equal(t, 60*time.Second, cfg.Deadline)
		assert.Equal(t, 8, cfg.MaxConcurrent)
		assert.InDelta(t, 1.5, cfg.SafetyFactor, 1e-9)
		assert.False(t, cfg.AutoConfirm)
		assert.Equal(t, "json", cfg.LogFormat)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("positional argument works as intent path", func(t *testing.T) {
		var out bytes.Buffer
		cfg, exit, err := Parse([]string{"intent.json"}, &out)
		require.NoError(t, err)
		require.False(t, exit)
		assert.Equal(t, "intent.json", cfg.IntentPath)
	})

	t.Run("shorthand flag", func(t *testing.T) {
		var out bytes.Buffer
		cfg, _, err := Parse([]string{"-i", "x.json"}, &out)
		require.NoError(t, err)
		assert.Equal(t, "x.json", cfg.IntentPath)
	})

	t.Run("no path prints usage and exits cleanly", func(t *testing.T) {
		var out bytes.Buffer
		cfg, exit, err := Parse(nil, &out)
		require.NoError(t, err)
		assert.True(t, exit)
		assert.Nil(t, cfg)
		assert.Contains(t, out.String(), "Usage:")
	})

	t.Run("overrides are honored", func(t *testing.T) {
		var out bytes.Buffer
		cfg, _, err := Parse([]string{
			"-intent", "x.json",
			"-deadline", "90s",
			"-max-concurrent", "3",
			"-safety-factor", "2.0",
			"-auto-confirm",
			"-log-format", "text",
			"-log-level", "debug",
		}, &out)
		require.NoError(t, err)

		assert.Equal(t, 90*time.Second, cfg.Deadline)
		assert.Equal(t, 3, cfg.MaxConcurrent)
		assert.InDelta(t, 2.0, cfg.SafetyFactor, 1e-9)
		assert.True(t, cfg.AutoConfirm)
		assert.Equal(t, "text", cfg.LogFormat)
		assert.Equal(t, "debug", cfg.LogLevel)
	})

	t.Run("invalid log format", func(t *testing.T) {
		var out bytes.Buffer
		_, _, err := Parse([]string{"-intent", "x.json", "-log-format", "xml"}, &out)
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 2, exitErr.Code)
	})

	t.Run("invalid log level", func(t *testing.T) {
		var out bytes.Buffer
		_, _, err := Parse([]string{"-intent", "x.json", "-log-level", "verbose"}, &out)
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 2, exitErr.Code)
	})

	t.Run("safety factor below one rejected", func(t *testing.T) {
		var out bytes.Buffer
		_, _, err := Parse([]string{"-intent", "x.json", "-safety-factor", "0.5"}, &out)
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Contains(t, exitErr.Message, "safety-factor")
	})

	t.Run("non-positive deadline rejected", func(t *testing.T) {
		var out bytes.Buffer
		_, _, err := Parse([]string{"-intent", "x.json", "-deadline", "0s"}, &out)
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Contains(t, exitErr.Message, "Deadline")
	})
}
