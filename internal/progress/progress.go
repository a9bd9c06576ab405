// Package progress carries percentage completion from the pipelines to
// whoever is listening, deduplicating flat deltas on the way.
package progress

import "github.com/qishuigrab/api/internal/model"

// Sink receives percentage updates for one operation kind. The websocket
// hub provides the production implementation; tests use recorders.
type Sink interface {
	Publish(op model.Operation, percent int)
}

// Discard is a Sink that drops every update.
var Discard Sink = discard{}

type discard struct{}

func (discard) Publish(model.Operation, int) {}

// Tracker emits strictly increasing percentages for a single operation's
// lifetime. Redundant zero-delta updates are swallowed, so a sequence of
// Update calls produces a monotone series ending at 100.
type Tracker struct {
	sink Sink
	op   model.Operation
	last int
}

// NewTracker returns a tracker publishing under op. A nil sink disables
// emission entirely.
func NewTracker(sink Sink, op model.Operation) *Tracker {
	if sink == nil {
		sink = Discard
	}
	return &Tracker{sink: sink, op: op}
}

// Update recomputes the percentage as floor(done/total*100) and publishes it
// if it strictly increased since the previous emission.
func (t *Tracker) Update(done, total int) {
	if total <= 0 {
		return
	}
	t.Set(done * 100 / total)
}

// Set publishes percent if it strictly increased. Values are clamped to
// the 0..100 range.
func (t *Tracker) Set(percent int) {
	if percent > 100 {
		percent = 100
	}
	if percent <= t.last {
		return
	}
	t.last = percent
	t.sink.Publish(t.op, percent)
}
