// Package memory provides the RETRIEVE_MEMORY capability: keyword search
// over a local SQLite store of remembered facts.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"

	"github.com/zclconf/go-cty/cty"
	_ "modernc.org/sqlite"

	"github.com/vk/intentflow/internal/ctxlog"
	"github.com/vk/intentflow/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the parameters of the RETRIEVE_MEMORY capability.
type Input struct {
	Query string `hcl:"query"`
	Path  string `hcl:"path,optional"`
	Limit int64  `hcl:"limit,optional"`
}

const defaultPath = "memory.db"

// Retrieve is the handler for the RETRIEVE_MEMORY capability. It matches the
// query against the content column of the entries table and returns matching
// rows newest first.
func Retrieve(ctx context.Context, input *Input) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx).With("capability", "RETRIEVE_MEMORY", "query", input.Query)
	logger.Debug("Handler started")
	defer logger.Debug("Handler finished")

	path := input.Path
	if path == "" {
		path = defaultPath
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to open memory store: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx,
		`SELECT content FROM entries WHERE content LIKE '%' || ? || '%' ORDER BY created_at DESC LIMIT ?`,
		input.Query, limit)
	if err != nil {
		return cty.NilVal, fmt.Errorf("memory query failed: %w", err)
	}
	defer rows.Close()

	var entries []cty.Value
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return cty.NilVal, fmt.Errorf("failed to scan memory row: %w", err)
		}
		entries = append(entries, cty.StringVal(content))
	}
	if err := rows.Err(); err != nil {
		return cty.NilVal, fmt.Errorf("memory query failed: %w", err)
	}
	logger.Debug("Memory retrieved.", "count", len(entries))

	entriesVal := cty.ListValEmpty(cty.String)
	if len(entries) > 0 {
		entriesVal = cty.ListVal(entries)
	}
	return cty.ObjectVal(map[string]cty.Value{
		"entries": entriesVal,
		"count":   cty.NumberIntVal(int64(len(entries))),
	}), nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterCapability("RetrieveMemory", &registry.Capability{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		Fn: func(ctx context.Context, input any) (cty.Value, error) {
			return Retrieve(ctx, input.(*Input))
		},
	})
}
