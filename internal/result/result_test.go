package result

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/intentflow/internal/action"
)

func TestAggregate(t *testing.T) {
	ok := Outcome{Status: action.Succeeded}
	failed := Outcome{Status: action.Failed, Kind: KindCapabilityError}
	skipped := Outcome{Status: action.Skipped, Kind: KindSkipped}

	tests := []struct {
		name     string
		outcomes map[string]Outcome
		want     PlanStatus
	}{
		{"all succeeded", map[string]Outcome{"a": ok, "b": ok}, StatusSuccess},
		{"all failed", map[string]Outcome{"a": failed, "b": failed}, StatusFailure},
		{"mixed is partial", map[string]Outcome{"a": ok, "b": failed}, StatusPartial},
		{"skipped counts as non-success", map[string]Outcome{"a": ok, "b": skipped}, StatusPartial},
		{"fallback success still counts", map[string]Outcome{"a": {Status: action.Succeeded, ViaFallback: true}}, StatusSuccess},
		{"failed and skipped only", map[string]Outcome{"a": failed, "b": skipped}, StatusFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Aggregate("plan-1", tt.outcomes, time.Second)
			assert.Equal(t, tt.want, res.Status)
			assert.Equal(t, "plan-1", res.PlanID)
			assert.Len(t, res.PerAction, len(tt.outcomes))
		})
	}
}

func TestOutcomeMarshalJSON(t *testing.T) {
	o := Outcome{
		Status: action.Succeeded,
		Output: cty.ObjectVal(map[string]cty.Value{
			"text":  cty.StringVal("hi"),
			"count": cty.NumberIntVal(2),
		}),
		Duration:    1500 * time.Millisecond,
		ViaFallback: true,
	}

	raw, err := json.Marshal(o)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "succeeded", decoded["status"])
	assert.Equal(t, float64(1500), decoded["duration_ms"])
	assert.Equal(t, true, decoded["via_fallback"])
	out := decoded["output"].(map[string]any)
	assert.Equal(t, "hi", out["text"])
	assert.Equal(t, float64(2), out["count"])
}

func TestOutcomeMarshalJSON_Failure(t *testing.T) {
	o := Outcome{
		Status: action.Failed,
		Kind:   KindTimeout,
		Error:  "context deadline exceeded",
	}

	raw, err := json.Marshal(o)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "failed", decoded["status"])
	assert.Equal(t, "timeout", decoded["kind"])
	assert.Equal(t, "context deadline exceeded", decoded["error"])
	assert.NotContains(t, decoded, "output")
}
