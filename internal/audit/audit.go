// Package audit emits a record for every action state transition. The engine
// produces records; consumption is external and pluggable.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/vk/intentflow/internal/action"
	"github.com/vk/intentflow/internal/ctxlog"
)

// Record is one action state transition.
type Record struct {
	PlanID    string
	ActionID  string
	From      action.Status
	To        action.Status
	Timestamp time.Time
	// Err carries the terminal error for transitions into failed or
	// skipped; nil otherwise.
	Err error
}

// Sink consumes audit records. Implementations must be safe for concurrent
// use: actions within a stage report transitions in parallel.
type Sink interface {
	Record(ctx context.Context, rec Record)
}

// SlogSink writes records to the context logger.
type SlogSink struct{}

// NewSlogSink returns the default logging sink.
func NewSlogSink() *SlogSink {
	return &SlogSink{}
}

// Record implements Sink.
func (s *SlogSink) Record(ctx context.Context, rec Record) {
	logger := ctxlog.FromContext(ctx)
	args := []any{
		"plan_id", rec.PlanID,
		"action_id", rec.ActionID,
		"from", rec.From.String(),
		"to", rec.To.String(),
	}
	if rec.Err != nil {
		args = append(args, "error", rec.Err)
	}
	logger.Info("Action transition.", args...)
}

// CaptureSink retains all records in memory. Used by tests asserting on the
// exact transition history of a plan.
type CaptureSink struct {
	mu      sync.Mutex
	records []Record
}

// NewCaptureSink returns an empty capture sink.
func NewCaptureSink() *CaptureSink {
	return &CaptureSink{}
}

// Record implements Sink.
func (c *CaptureSink) Record(_ context.Context, rec Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
}

// Records returns a copy of everything recorded so far.
func (c *CaptureSink) Records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// ForAction filters the captured records for one action id, in order.
func (c *CaptureSink) ForAction(actionID string) []Record {
	var out []Record
	for _, rec := range c.Records() {
		if rec.ActionID == actionID {
			out = append(out, rec)
		}
	}
	return out
}
