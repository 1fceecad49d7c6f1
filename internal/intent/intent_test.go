package intent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeIntent(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "intent.json")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	t.Run("simple intent", func(t *testing.T) {
		in, err := LoadFile(writeIntent(t, `{
			"category": "get_weather",
			"confidence": 0.94,
			"parameters": {"city": "Lisbon"}
		}`))
		require.NoError(t, err)
		assert.Equal(t, "get_weather", in.Category)
		assert.InDelta(t, 0.94, in.Confidence, 1e-9)
		assert.Equal(t, "Lisbon", in.Parameters["city"])
	})

	t.Run("missing category and sub_intents rejected", func(t *testing.T) {
		_, err := LoadFile(writeIntent(t, `{"confidence": 0.5}`))
		assert.ErrorContains(t, err, "no category and no sub_intents")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
		assert.ErrorContains(t, err, "failed to read intent file")
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := LoadFile(writeIntent(t, `{`))
		assert.ErrorContains(t, err, "failed to decode intent file")
	})
}

func TestLeaves(t *testing.T) {
	t.Run("no sub-intents yields the intent itself", func(t *testing.T) {
		in := &Intent{Category: "get_weather"}
		leaves := in.Leaves()
		require.Len(t, leaves, 1)
		assert.Equal(t, "get_weather", leaves[0].Category)
	})

	t.Run("sub-intents replace the composite", func(t *testing.T) {
		in := &Intent{
			Category: "evening_routine",
			SubIntents: []Intent{
				{Category: "set_scene"},
				{Category: "get_weather"},
			},
		}
		leaves := in.Leaves()
		require.Len(t, leaves, 2)
		assert.Equal(t, "set_scene", leaves[0].Category)
		assert.Equal(t, "get_weather", leaves[1].Category)
	})
}
