// Package intent defines the typed classified-intent input consumed by the
// planning engine. Classification itself happens upstream; this package only
// carries its result across the boundary.
package intent

import (
	"encoding/json"
	"fmt"
	"os"
)

// Intent is one classified user request. Multi-clause utterances arrive
// already split into SubIntents by the upstream layer; the decomposer maps
// each to actions independently and merges the results into one plan.
type Intent struct {
	// Category names the rulebook rule that decomposes this intent,
	// e.g. "get_weather" or "set_reminder".
	Category string `json:"category"`
	// Confidence is the classifier's score in [0,1]. The engine records it
	// but does not gate on it; thresholds are an upstream policy.
	Confidence float64 `json:"confidence"`
	// Parameters are the slots extracted by the classifier, exposed to
	// rulebook expressions as `intent.params.<name>`.
	Parameters map[string]any `json:"parameters"`

	SubIntents []Intent `json:"sub_intents,omitempty"`
}

// Leaves returns the intents that actually decompose into actions: the
// sub-intents if any were supplied, otherwise the intent itself.
func (in *Intent) Leaves() []Intent {
	if len(in.SubIntents) == 0 {
		return []Intent{*in}
	}
	return in.SubIntents
}

// LoadFile reads a JSON-encoded intent from disk. This is the CLI's inbound
// transport; a server front end would construct the Intent directly.
func LoadFile(path string) (*Intent, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read intent file: %w", err)
	}
	var in Intent
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("failed to decode intent file %s: %w", path, err)
	}
	if in.Category == "" && len(in.SubIntents) == 0 {
		return nil, fmt.Errorf("intent file %s has no category and no sub_intents", path)
	}
	return &in, nil
}
