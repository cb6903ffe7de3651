package emu

import (
	"sync"
	"sync/atomic"
)

// ReservationBlockSize is the granularity of load-locked reservations.
// A reservation covers the aligned 16-byte block holding the locked
// address; any store into that block clears it.
const ReservationBlockSize = 16

type reservation struct {
	valid bool
	block uint64
}

// ReservationTable tracks one load-locked reservation per CPU. A single
// mutex guards the whole table, including reads: validation, the guarded
// store, and the cross-CPU invalidations of a store-conditional happen in
// one critical section, so outcomes are linearizable.
type ReservationTable struct {
	mu    sync.Mutex
	slots []reservation

	successes     atomic.Uint64
	failures      atomic.Uint64
	invalidations atomic.Uint64
}

// NewReservationTable creates an empty table. Slots are added the first
// time a CPU index is seen.
func NewReservationTable() *ReservationTable {
	return &ReservationTable{}
}

// slot returns cpu's entry, growing the table if needed. Caller holds mu.
func (t *ReservationTable) slot(cpu int) *reservation {
	for len(t.slots) <= cpu {
		t.slots = append(t.slots, reservation{})
	}
	return &t.slots[cpu]
}

func reservationBlock(addr uint64) uint64 {
	return addr &^ uint64(ReservationBlockSize-1)
}

// Set establishes cpu's reservation on the block holding addr, replacing
// any previous reservation. Callers set the reservation before reading
// memory so a racing store cannot slip between the read and the set.
func (t *ReservationTable) Set(cpu int, addr uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	*t.slot(cpu) = reservation{valid: true, block: reservationBlock(addr)}
}

// Clear drops cpu's reservation, if any.
func (t *ReservationTable) Clear(cpu int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.slot(cpu).valid = false
}

// InvalidateOverlapping clears every reservation whose block overlaps the
// store [addr, addr+size). Plain stores and atomic updates call this
// before writing.
func (t *ReservationTable) InvalidateOverlapping(addr uint64, size uint8) {
	t.InvalidateRange(addr, uint64(size))
}

// InvalidateRange is InvalidateOverlapping for bulk writes of any length,
// such as loaded images and system-call buffers.
func (t *ReservationTable) InvalidateRange(addr, n uint64) {
	if n == 0 {
		return
	}
	first := reservationBlock(addr)
	last := reservationBlock(addr + n - 1)

	t.mu.Lock()
	for i := range t.slots {
		s := &t.slots[i]
		if s.valid && s.block >= first && s.block <= last {
			s.valid = false
			t.invalidations.Add(1)
		}
	}
	t.mu.Unlock()
}

// StoreConditional performs the conditional-store protocol for cpu on the
// block holding addr. If the reservation is still valid, commit runs while
// the table is locked and every other CPU's reservation on the block is
// cleared. The issuer's reservation is cleared whether or not the store
// happens. Returns whether commit ran.
func (t *ReservationTable) StoreConditional(cpu int, addr uint64, commit func()) bool {
	block := reservationBlock(addr)

	t.mu.Lock()
	defer t.mu.Unlock()

	own := t.slot(cpu)
	ok := own.valid && own.block == block
	if ok {
		commit()
		for i := range t.slots {
			if i == cpu {
				continue
			}
			s := &t.slots[i]
			if s.valid && s.block == block {
				s.valid = false
				t.invalidations.Add(1)
			}
		}
		t.successes.Add(1)
	} else {
		t.failures.Add(1)
	}
	own.valid = false
	return ok
}

// Successes returns the number of conditional stores that committed.
func (t *ReservationTable) Successes() uint64 { return t.successes.Load() }

// Failures returns the number of conditional stores that did not commit.
func (t *ReservationTable) Failures() uint64 { return t.failures.Load() }

// Invalidations returns the number of reservations cleared by stores from
// other CPUs.
func (t *ReservationTable) Invalidations() uint64 { return t.invalidations.Load() }

// Reset clears all reservations and counters.
func (t *ReservationTable) Reset() {
	t.mu.Lock()
	for i := range t.slots {
		t.slots[i] = reservation{}
	}
	t.mu.Unlock()
	t.successes.Store(0)
	t.failures.Store(0)
	t.invalidations.Store(0)
}
