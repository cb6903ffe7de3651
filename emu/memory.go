package emu

import (
	"sync"
	"sync/atomic"
)

const (
	memPageShift = 13
	memPageBytes = 1 << memPageShift // 8 KiB, the architectural page size
	memPageMask  = memPageBytes - 1
)

// Memory is sparse byte-addressable physical memory. Pages are allocated
// on first write; reads from unbacked pages return zero. All accesses are
// little-endian. Memory is safe for concurrent use by multiple CPUs and
// implements MemPort with identity translation, so the emulation core can
// run with or without the cache hierarchy in front of it.
type Memory struct {
	mu    sync.RWMutex
	pages map[uint64]*[memPageBytes]byte

	res   *ReservationTable
	fence atomic.Uint64
}

// NewMemory creates an empty memory with a fresh reservation table.
func NewMemory() *Memory {
	return &Memory{
		pages: make(map[uint64]*[memPageBytes]byte),
		res:   NewReservationTable(),
	}
}

// Reservations returns the table tracking load-locked reservations.
func (m *Memory) Reservations() *ReservationTable {
	return m.res
}

// readByte returns the byte at addr. Caller holds mu for reading.
func (m *Memory) readByte(addr uint64) byte {
	page, ok := m.pages[addr>>memPageShift]
	if !ok {
		return 0
	}
	return page[addr&memPageMask]
}

// writeByte sets the byte at addr. Caller holds mu for writing.
func (m *Memory) writeByte(addr uint64, value byte) {
	idx := addr >> memPageShift
	page, ok := m.pages[idx]
	if !ok {
		page = new([memPageBytes]byte)
		m.pages[idx] = page
	}
	page[addr&memPageMask] = value
}

// load reads size bytes starting at addr. Caller holds mu for reading.
func (m *Memory) load(addr uint64, size uint8) uint64 {
	var v uint64
	for i := uint8(0); i < size; i++ {
		v |= uint64(m.readByte(addr+uint64(i))) << (8 * i)
	}
	return v
}

// store writes the low size bytes of value at addr. Caller holds mu.
func (m *Memory) store(addr uint64, size uint8, value uint64) {
	for i := uint8(0); i < size; i++ {
		m.writeByte(addr+uint64(i), byte(value>>(8*i)))
	}
}

// Read8 reads one byte.
func (m *Memory) Read8(addr uint64) uint8 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint8(m.load(addr, 1))
}

// Read16 reads a little-endian 16-bit value.
func (m *Memory) Read16(addr uint64) uint16 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint16(m.load(addr, 2))
}

// Read32 reads a little-endian 32-bit value.
func (m *Memory) Read32(addr uint64) uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint32(m.load(addr, 4))
}

// Read64 reads a little-endian 64-bit value.
func (m *Memory) Read64(addr uint64) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.load(addr, 8)
}

// write invalidates overlapping reservations and then performs the store.
// The reservation table is released before the memory lock is taken, so
// the lock order is always table before memory.
func (m *Memory) write(addr uint64, size uint8, value uint64) {
	m.res.InvalidateOverlapping(addr, size)
	m.mu.Lock()
	m.store(addr, size, value)
	m.mu.Unlock()
}

// Write8 stores one byte.
func (m *Memory) Write8(addr uint64, value uint8) { m.write(addr, 1, uint64(value)) }

// Write16 stores a little-endian 16-bit value.
func (m *Memory) Write16(addr uint64, value uint16) { m.write(addr, 2, uint64(value)) }

// Write32 stores a little-endian 32-bit value.
func (m *Memory) Write32(addr uint64, value uint32) { m.write(addr, 4, uint64(value)) }

// Write64 stores a little-endian 64-bit value.
func (m *Memory) Write64(addr uint64, value uint64) { m.write(addr, 8, value) }

// ReadBytes copies n bytes starting at addr.
func (m *Memory) ReadBytes(addr uint64, n int) []byte {
	buf := make([]byte, n)
	m.mu.RLock()
	for i := range buf {
		buf[i] = m.readByte(addr + uint64(i))
	}
	m.mu.RUnlock()
	return buf
}

// WriteBytes copies data into memory starting at addr.
func (m *Memory) WriteBytes(addr uint64, data []byte) {
	m.res.InvalidateRange(addr, uint64(len(data)))
	m.mu.Lock()
	for i, b := range data {
		m.writeByte(addr+uint64(i), b)
	}
	m.mu.Unlock()
}

// Load implements MemPort.
func (m *Memory) Load(cpu int, addr uint64, size uint8) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.load(addr, size), nil
}

// Store implements MemPort.
func (m *Memory) Store(cpu int, addr uint64, size uint8, value uint64) error {
	m.write(addr, size, value)
	return nil
}

// LoadLocked implements MemPort. The reservation is set before the read
// so a store racing with the read is guaranteed to clear it.
func (m *Memory) LoadLocked(cpu int, addr uint64, size uint8) (uint64, error) {
	m.res.Set(cpu, addr)
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.load(addr, size), nil
}

// StoreConditional implements MemPort. Validation, the store, and the
// invalidation of other CPUs' reservations form one critical section.
func (m *Memory) StoreConditional(cpu int, addr uint64, size uint8, value uint64) (bool, error) {
	ok := m.res.StoreConditional(cpu, addr, func() {
		m.mu.Lock()
		m.store(addr, size, value)
		m.mu.Unlock()
	})
	return ok, nil
}

// Exchange implements MemPort.
func (m *Memory) Exchange(cpu int, addr uint64, size uint8, value uint64) (uint64, error) {
	m.res.InvalidateOverlapping(addr, size)
	m.mu.Lock()
	defer m.mu.Unlock()
	old := m.load(addr, size)
	m.store(addr, size, value)
	return old, nil
}

// CompareExchange implements MemPort.
func (m *Memory) CompareExchange(cpu int, addr uint64, size uint8, old, new uint64) (uint64, bool, error) {
	m.res.InvalidateOverlapping(addr, size)
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.load(addr, size)
	if prev != old {
		return prev, false, nil
	}
	m.store(addr, size, new)
	return prev, true, nil
}

// FetchOp implements MemPort.
func (m *Memory) FetchOp(cpu int, addr uint64, size uint8, op AtomicOp, operand uint64) (uint64, error) {
	m.res.InvalidateOverlapping(addr, size)
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.load(addr, size)
	m.store(addr, size, applyAtomicOp(op, prev, operand))
	return prev, nil
}

// Prefetch implements MemPort. Plain memory has nothing to warm.
func (m *Memory) Prefetch(cpu int, addr uint64, modifyIntent bool) {}

// Evict implements MemPort. Plain memory has nothing to evict.
func (m *Memory) Evict(cpu int, addr uint64) {}

// WriteHint64 implements MemPort. Plain memory takes no action.
func (m *Memory) WriteHint64(cpu int, addr uint64) {}

// Fence implements MemPort. Every access already happens under the
// memory lock, so a sequentially consistent atomic update of the fence
// cell supplies the cross-CPU edge for all three strengths.
func (m *Memory) Fence(cpu int, kind FenceKind) {
	switch kind {
	case FenceLoad:
		m.fence.Load()
	default:
		m.fence.Add(1)
	}
}
