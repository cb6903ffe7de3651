package mmu

import "log/slog"

// Events receives pipeline lifecycle notifications. Implementations must
// not call back into the pipeline.
type Events interface {
	// StageTransition fires when an operation moves between stages,
	// including moves onto the stalled and replay queues.
	StageTransition(op *Operation, from, to Stage)
	// Dropped fires when an operation leaves the pipeline without
	// completing.
	Dropped(op *Operation, reason StallReason)
	// Drained fires once per drain with the number of operations
	// cleared.
	Drained(count int)
}

// NullEvents discards all notifications.
type NullEvents struct{}

func (NullEvents) StageTransition(*Operation, Stage, Stage) {}
func (NullEvents) Dropped(*Operation, StallReason)          {}
func (NullEvents) Drained(int)                              {}

// SlogEvents logs pipeline notifications at debug level. A nil Logger
// falls back to the process default.
type SlogEvents struct {
	Logger *slog.Logger
}

func (e SlogEvents) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e SlogEvents) StageTransition(op *Operation, from, to Stage) {
	e.logger().Debug("translation stage",
		"op", op.ID,
		"kind", op.Kind.String(),
		"va", op.VA,
		"from", from.String(),
		"to", to.String())
}

func (e SlogEvents) Dropped(op *Operation, reason StallReason) {
	e.logger().Debug("translation dropped",
		"op", op.ID,
		"va", op.VA,
		"replays", op.Replays,
		"reason", reason.String())
}

func (e SlogEvents) Drained(count int) {
	e.logger().Debug("translation queues drained", "count", count)
}
