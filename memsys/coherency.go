package memsys

import "sync"

// CoherencyState is one CPU's claim on a cache line.
type CoherencyState uint8

const (
	// Invalid means the CPU holds no copy of the line.
	Invalid CoherencyState = iota

	// Shared means the CPU holds a clean copy alongside others.
	Shared

	// Exclusive means the CPU holds the only copy, clean.
	Exclusive

	// Modified means the CPU holds the only copy, dirty.
	Modified

	// Owned means the CPU holds a dirty copy that other CPUs share.
	Owned
)

var coherencyStateNames = map[CoherencyState]string{
	Invalid:   "invalid",
	Shared:    "shared",
	Exclusive: "exclusive",
	Modified:  "modified",
	Owned:     "owned",
}

func (s CoherencyState) String() string {
	if name, ok := coherencyStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// CoherencyStats counts protocol transitions.
type CoherencyStats struct {
	// Invalidations is the number of copies yanked from other CPUs by
	// a write.
	Invalidations uint64

	// Downgrades is the number of exclusive holders demoted to shared
	// by another CPU's read.
	Downgrades uint64

	// Interventions is the number of modified holders demoted to owned
	// by another CPU's read.
	Interventions uint64
}

// Coherency tracks per-line, per-CPU states across the cache stacks.
// Reads join a line shared, or take it exclusive when alone; writes
// invalidate every other holder.
type Coherency struct {
	mu    sync.Mutex
	lines map[uint64]map[int]CoherencyState
	stats CoherencyStats
}

// NewCoherency creates an empty tracker.
func NewCoherency() *Coherency {
	return &Coherency{lines: map[uint64]map[int]CoherencyState{}}
}

// OnRead records cpu reading the line at lineAddr and returns its
// resulting state. A read by an existing holder changes nothing.
func (c *Coherency) OnRead(cpu int, lineAddr uint64) CoherencyState {
	c.mu.Lock()
	defer c.mu.Unlock()

	states := c.lines[lineAddr]
	if states == nil {
		states = map[int]CoherencyState{}
		c.lines[lineAddr] = states
	}
	if state, ok := states[cpu]; ok {
		return state
	}

	shared := false
	for other, state := range states {
		shared = true
		switch state {
		case Modified:
			states[other] = Owned
			c.stats.Interventions++
		case Exclusive:
			states[other] = Shared
			c.stats.Downgrades++
		}
	}

	if shared {
		states[cpu] = Shared
	} else {
		states[cpu] = Exclusive
	}
	return states[cpu]
}

// OnWrite records cpu writing the line at lineAddr. Every other holder
// is invalidated and the writer ends up modified.
func (c *Coherency) OnWrite(cpu int, lineAddr uint64) CoherencyState {
	c.mu.Lock()
	defer c.mu.Unlock()

	states := c.lines[lineAddr]
	if states == nil {
		states = map[int]CoherencyState{}
		c.lines[lineAddr] = states
	}

	for other := range states {
		if other == cpu {
			continue
		}
		delete(states, other)
		c.stats.Invalidations++
	}

	states[cpu] = Modified
	return Modified
}

// StateOf returns cpu's state for the line, Invalid when it holds none.
func (c *Coherency) StateOf(cpu int, lineAddr uint64) CoherencyState {
	c.mu.Lock()
	defer c.mu.Unlock()

	if states, ok := c.lines[lineAddr]; ok {
		if state, ok := states[cpu]; ok {
			return state
		}
	}
	return Invalid
}

// InvalidateLine drops every claim on the line.
func (c *Coherency) InvalidateLine(lineAddr uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.lines, lineAddr)
}

// Stats returns a snapshot of the transition counters.
func (c *Coherency) Stats() CoherencyStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Reset drops all line states and zeroes the counters.
func (c *Coherency) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = map[uint64]map[int]CoherencyState{}
	c.stats = CoherencyStats{}
}
