package hcl

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func writeHCL(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

const manifestSrc = `
capability "CALL_API" {
  description = "HTTP request."
  handler     = "CallAPI"

  input "url" {
    type = string
  }

  input "method" {
    type    = string
    default = "GET"
  }

  output "body" {
    type = string
  }
}
`

const rulebookSrc = `
rule "get_weather" {
  description = "Fetches and reads the forecast."

  action "fetch" {
    capability     = "CALL_API"
    estimated_time = "2s"
    priority       = 5

    parameters {
      url = "https://example.com/${intent.params.city}"
    }

    fallback {
      capability     = "CALL_API"
      estimated_time = "1s"

      parameters {
        url = "https://backup.example.com"
      }
    }
  }

  action "speak" {
    capability     = "SPEAK"
    estimated_time = "3s"
    after          = ["fetch"]
  }
}

permission "CALL_API" {
  decision = "confirm"
}
`

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("loads manifests rules and permissions from a directory", func(t *testing.T) {
		dir := t.TempDir()
		writeHCL(t, dir, "manifest.hcl", manifestSrc)
		writeHCL(t, dir, "rules.hcl", rulebookSrc)

		model, err := NewLoader().Load(ctx, dir)
		require.NoError(t, err)

		def := model.Capabilities["CALL_API"]
		require.NotNil(t, def)
		assert.Equal(t, "CallAPI", def.Handler)
		require.Contains(t, def.Inputs, "url")
		assert.Equal(t, cty.String, def.Inputs["url"].Type)
		assert.False(t, def.Inputs["url"].Optional)

		method := def.Inputs["method"]
		require.NotNil(t, method.Default)
		assert.Equal(t, "GET", method.Default.AsString())
		assert.True(t, method.Optional, "an input with a default is implicitly optional")

		rule := model.Rules["get_weather"]
		require.NotNil(t, rule)
		require.Len(t, rule.Actions, 2)

		fetch := rule.Actions[0]
		assert.Equal(t, "fetch", fetch.ID)
		assert.Equal(t, 2*time.Second, fetch.EstimatedTime)
		assert.Equal(t, 5, fetch.Priority)
		assert.Contains(t, fetch.Parameters, "url")
		require.NotNil(t, fetch.Fallback)
		assert.Equal(t, time.Second, fetch.Fallback.EstimatedTime)

		speak := rule.Actions[1]
		assert.Equal(t, []string{"fetch"}, speak.After)
		assert.Empty(t, speak.Parameters)

		perm := model.Permissions["CALL_API"]
		require.NotNil(t, perm)
		assert.Equal(t, "confirm", perm.Decision)
	})

	t.Run("missing path yields an empty model", func(t *testing.T) {
		model, err := NewLoader().Load(ctx, filepath.Join(t.TempDir(), "does-not-exist"))
		require.NoError(t, err)
		assert.Empty(t, model.Capabilities)
		assert.Empty(t, model.Rules)
	})

	t.Run("invalid HCL is rejected", func(t *testing.T) {
		dir := t.TempDir()
		writeHCL(t, dir, "broken.hcl", `rule "x" {`)

		_, err := NewLoader().Load(ctx, dir)
		assert.ErrorContains(t, err, "failed to parse HCL file")
	})

	t.Run("zero estimated_time is rejected", func(t *testing.T) {
		dir := t.TempDir()
		writeHCL(t, dir, "rules.hcl", `
rule "bad" {
  action "a" {
    capability     = "SPEAK"
    estimated_time = "0s"
  }
}
`)
		_, err := NewLoader().Load(ctx, dir)
		assert.ErrorContains(t, err, "estimated_time must be positive")
	})

	t.Run("duplicate action ids within a rule are rejected", func(t *testing.T) {
		dir := t.TempDir()
		writeHCL(t, dir, "rules.hcl", `
rule "bad" {
  action "a" {
    capability     = "SPEAK"
    estimated_time = "1s"
  }
  action "a" {
    capability     = "SPEAK"
    estimated_time = "1s"
  }
}
`)
		_, err := NewLoader().Load(ctx, dir)
		assert.ErrorContains(t, err, "duplicate action id")
	})

	t.Run("invalid permission decision is rejected", func(t *testing.T) {
		dir := t.TempDir()
		writeHCL(t, dir, "perm.hcl", `
permission "SPEAK" {
  decision = "maybe"
}
`)
		_, err := NewLoader().Load(ctx, dir)
		assert.ErrorContains(t, err, "invalid decision")
	})

	t.Run("duplicate capability across files is rejected", func(t *testing.T) {
		dir := t.TempDir()
		writeHCL(t, dir, "one.hcl", manifestSrc)
		writeHCL(t, dir, "two.hcl", manifestSrc)

		_, err := NewLoader().Load(ctx, dir)
		assert.ErrorContains(t, err, "duplicate capability manifest")
	})
}
