package mmu

import (
	"fmt"
	"sync"
)

// Stage identifies where an operation sits in the translation pipeline.
// Operations walk the main path one stage per advance; the stalled and
// replay stages sit off the path.
type Stage uint8

// Pipeline stages.
const (
	StageIdle Stage = iota
	StageAddressDecode
	StageTlbLookup
	StagePermissionCheck
	StageCollisionDetect
	StageTranslationComplete
	StageStalled
	StageReplayPending
)

var stageNames = map[Stage]string{
	StageIdle:                "idle",
	StageAddressDecode:       "address-decode",
	StageTlbLookup:           "tlb-lookup",
	StagePermissionCheck:     "permission-check",
	StageCollisionDetect:     "collision-detect",
	StageTranslationComplete: "translation-complete",
	StageStalled:             "stalled",
	StageReplayPending:       "replay-pending",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "stage?"
}

// StallReason records why an operation left the main path.
type StallReason uint8

// Stall reasons.
const (
	StallNone StallReason = iota
	StallCollision
	StallPermission
	StallResource
	StallDependency
	StallQueueFull
)

var stallReasonNames = map[StallReason]string{
	StallNone:       "none",
	StallCollision:  "collision",
	StallPermission: "permission",
	StallResource:   "resource",
	StallDependency: "dependency",
	StallQueueFull:  "queue-full",
}

func (r StallReason) String() string {
	if name, ok := stallReasonNames[r]; ok {
		return name
	}
	return "reason?"
}

// Operation is one in-flight translation. Callers fill Kind, VA, ASN,
// TID, and Priority before submitting; the pipeline owns the rest.
type Operation struct {
	ID       uint64
	Kind     Access
	VA       uint64
	ASN      uint64
	TID      uint64
	Priority bool

	Stage  Stage
	Reason StallReason
	// Submitted is the cycle the operation entered the pipeline.
	Submitted uint64
	// StageStart is the cycle the current stage began.
	StageStart uint64
	// Replays counts trips through the replay queue.
	Replays int
}

// PipelineConfig bounds the translation pipeline.
type PipelineConfig struct {
	// ActiveDepth caps the operations on the main path.
	ActiveDepth int
	// StallDepth caps the stalled queue.
	StallDepth int
	// ReplayDepth caps the replay queue.
	ReplayDepth int
	// StallTimeout is the number of cycles an operation may sit stalled
	// before it moves to the replay queue.
	StallTimeout uint64
	// MaxReplays is the number of replay trips an operation may take
	// before it drops.
	MaxReplays int
}

// DefaultPipelineConfig returns the stock pipeline bounds.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		ActiveDepth:  16,
		StallDepth:   8,
		ReplayDepth:  8,
		StallTimeout: 64,
		MaxReplays:   3,
	}
}

// Validate checks the bounds for consistency.
func (c PipelineConfig) Validate() error {
	if c.ActiveDepth <= 0 {
		return fmt.Errorf("pipeline: active depth %d must be positive", c.ActiveDepth)
	}
	if c.StallDepth <= 0 {
		return fmt.Errorf("pipeline: stall depth %d must be positive", c.StallDepth)
	}
	if c.ReplayDepth <= 0 {
		return fmt.Errorf("pipeline: replay depth %d must be positive", c.ReplayDepth)
	}
	if c.StallTimeout == 0 {
		return fmt.Errorf("pipeline: stall timeout must be positive")
	}
	if c.MaxReplays < 0 {
		return fmt.Errorf("pipeline: max replays %d must not be negative", c.MaxReplays)
	}
	return nil
}

// PipelineStats holds pipeline activity counters.
type PipelineStats struct {
	Submitted uint64
	Completed uint64
	Stalls    uint64
	Replays   uint64
	Dropped   uint64
	Drained   uint64
}

// Pipeline tracks outstanding translation operations through a fixed
// stage sequence. Time is the caller's logical clock, passed into Submit
// and Advance; the pipeline keeps no clock of its own. All three queues
// stay within their configured bounds at all times. Safe for concurrent
// use.
type Pipeline struct {
	config PipelineConfig
	events Events

	mu      sync.Mutex
	active  []*Operation
	stalled []*Operation
	replay  []*Operation
	nextID  uint64
	stats   PipelineStats
}

// NewPipeline creates a pipeline with the given bounds. A nil events sink
// discards notifications.
func NewPipeline(config PipelineConfig, events Events) *Pipeline {
	if events == nil {
		events = NullEvents{}
	}
	return &Pipeline{
		config: config,
		events: events,
		nextID: 1,
	}
}

// Config returns the pipeline bounds.
func (p *Pipeline) Config() PipelineConfig {
	return p.config
}

// Submit enters an operation onto the main path. Normal operations join
// the tail; priority operations join the head. When the path is full a
// normal submission drops, while a priority submission displaces the
// youngest active operation onto the stalled queue and drops only when
// that queue is also full.
func (p *Pipeline) Submit(op *Operation, now uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	op.ID = p.nextID
	p.nextID++
	op.Stage = StageIdle
	op.Reason = StallNone
	op.Submitted = now
	op.StageStart = now
	op.Replays = 0

	if len(p.active) >= p.config.ActiveDepth {
		if !op.Priority || len(p.stalled) >= p.config.StallDepth {
			p.drop(op, StallQueueFull)
			return false
		}
		victim := p.active[len(p.active)-1]
		p.active = p.active[:len(p.active)-1]
		p.stall(victim, StallQueueFull, now)
	}

	if op.Priority {
		p.active = append(p.active, nil)
		copy(p.active[1:], p.active)
		p.active[0] = op
	} else {
		p.active = append(p.active, op)
	}
	p.stats.Submitted++
	return true
}

// Advance moves the pipeline one stage. Stalled operations past the
// timeout shift to the replay queue, replay-pending operations refill the
// main path, and every active operation steps forward once. Operations
// reaching the final stage retire and are returned.
func (p *Pipeline) Advance(now uint64) []*Operation {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.expireStalled(now)
	p.refillFromReplay(now)
	return p.advanceActive(now)
}

// expireStalled moves timed-out stalled operations to the replay queue.
// An operation past its replay allowance drops as a dependency failure.
func (p *Pipeline) expireStalled(now uint64) {
	kept := p.stalled[:0]
	for _, op := range p.stalled {
		if now-op.StageStart < p.config.StallTimeout {
			kept = append(kept, op)
			continue
		}
		op.Replays++
		if op.Replays > p.config.MaxReplays {
			p.drop(op, StallDependency)
			continue
		}
		if len(p.replay) >= p.config.ReplayDepth {
			p.drop(op, StallQueueFull)
			continue
		}
		from := op.Stage
		op.Stage = StageReplayPending
		op.Reason = StallNone
		op.StageStart = now
		p.replay = append(p.replay, op)
		p.stats.Replays++
		p.events.StageTransition(op, from, StageReplayPending)
	}
	p.stalled = kept
}

// refillFromReplay moves replay-pending operations back onto the main
// path while it has room. Replayed operations restart from the idle
// stage.
func (p *Pipeline) refillFromReplay(now uint64) {
	for len(p.replay) > 0 && len(p.active) < p.config.ActiveDepth {
		op := p.replay[0]
		p.replay = p.replay[1:]
		from := op.Stage
		op.Stage = StageIdle
		op.StageStart = now
		p.active = append(p.active, op)
		p.events.StageTransition(op, from, StageIdle)
	}
	if len(p.replay) == 0 {
		p.replay = nil
	}
}

// advanceActive steps every operation on the main path one stage and
// retires those reaching the final stage. Leaving collision detect, an
// operation stalls when another operation at least as far along targets
// the same page in the same address space.
func (p *Pipeline) advanceActive(now uint64) []*Operation {
	pre := make([]Stage, len(p.active))
	for i, op := range p.active {
		pre[i] = op.Stage
	}

	var completed []*Operation
	kept := make([]*Operation, 0, len(p.active))
	for i, op := range p.active {
		if op.Stage == StageCollisionDetect && p.collides(pre, i) {
			p.stall(op, StallCollision, now)
			continue
		}
		from := op.Stage
		op.Stage++
		op.StageStart = now
		p.events.StageTransition(op, from, op.Stage)
		if op.Stage == StageTranslationComplete {
			p.stats.Completed++
			completed = append(completed, op)
			continue
		}
		kept = append(kept, op)
	}
	p.active = kept
	return completed
}

// collides reports whether the operation at index i conflicts with
// another active operation on the same page. Stages are compared as they
// stood when the advance began, with queue position breaking ties.
func (p *Pipeline) collides(pre []Stage, i int) bool {
	op := p.active[i]
	page := op.VA &^ uint64(PageMask)
	for j, other := range p.active {
		if j == i {
			continue
		}
		if other.ASN != op.ASN || other.VA&^uint64(PageMask) != page {
			continue
		}
		if pre[j] > pre[i] || (pre[j] == pre[i] && j < i) {
			return true
		}
	}
	return false
}

// Stall moves an active operation onto the stalled queue. It reports
// false when the operation is not on the main path; an operation that
// cannot fit on the stalled queue drops.
func (p *Pipeline) Stall(op *Operation, reason StallReason, now uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, cur := range p.active {
		if cur != op {
			continue
		}
		p.active = append(p.active[:i], p.active[i+1:]...)
		p.stall(op, reason, now)
		return true
	}
	return false
}

// stall parks an operation on the stalled queue, dropping it when the
// queue is full. The caller has already removed it from the main path.
func (p *Pipeline) stall(op *Operation, reason StallReason, now uint64) {
	if len(p.stalled) >= p.config.StallDepth {
		p.drop(op, StallQueueFull)
		return
	}
	from := op.Stage
	op.Stage = StageStalled
	op.Reason = reason
	op.StageStart = now
	p.stalled = append(p.stalled, op)
	p.stats.Stalls++
	p.events.StageTransition(op, from, StageStalled)
}

func (p *Pipeline) drop(op *Operation, reason StallReason) {
	op.Reason = reason
	p.stats.Dropped++
	p.events.Dropped(op, reason)
}

// Drain clears all three queues at once and reports how many operations
// were removed. A single drained notification fires per call.
func (p *Pipeline) Drain() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	count := len(p.active) + len(p.stalled) + len(p.replay)
	p.active = nil
	p.stalled = nil
	p.replay = nil
	p.stats.Drained += uint64(count)
	p.events.Drained(count)
	return count
}

// ActiveLen returns the number of operations on the main path.
func (p *Pipeline) ActiveLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// StalledLen returns the number of stalled operations.
func (p *Pipeline) StalledLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.stalled)
}

// ReplayLen returns the number of replay-pending operations.
func (p *Pipeline) ReplayLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.replay)
}

// Stats returns a snapshot of the activity counters.
func (p *Pipeline) Stats() PipelineStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Reset clears the queues and counters without notifications.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.active = nil
	p.stalled = nil
	p.replay = nil
	p.nextID = 1
	p.stats = PipelineStats{}
}
