package memsys

import (
	"fmt"
	"sync"

	"github.com/sarchlab/axpsim/emu"
	"github.com/sarchlab/axpsim/mmu"
)

// Level identifies where in the hierarchy a request was served.
type Level uint8

const (
	// LevelMemory means every cache level missed.
	LevelMemory Level = iota
	LevelL1
	LevelL2
	LevelL3
)

var levelNames = map[Level]string{
	LevelMemory: "memory",
	LevelL1:     "L1",
	LevelL2:     "L2",
	LevelL3:     "L3",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "unknown"
}

// WalkFunc resolves a page absent from the TLB, returning the physical
// page address and its protection flags. ok is false when the page does
// not exist, which surfaces as a translation fault.
type WalkFunc func(asn, va uint64) (pa uint64, flags mmu.Flag, ok bool)

// IdentityWalk maps every canonical page to itself with full
// permissions. It stands in for a page-table walker in flat-memory
// runs, where virtual and physical addresses coincide.
func IdentityWalk(asn, va uint64) (uint64, mmu.Flag, bool) {
	flags := mmu.FlagValid | mmu.FlagKernel | mmu.FlagUser |
		mmu.FlagWrite | mmu.FlagExec
	return va &^ uint64(mmu.PageMask), flags, true
}

// IntegratorStats aggregates request counters across all CPUs.
type IntegratorStats struct {
	Reads          uint64
	Writes         uint64
	MapHits        uint64
	MapMisses      uint64
	L1Hits         uint64
	L2Hits         uint64
	L3Hits         uint64
	MemoryAccesses uint64
	Prefetches     uint64
	Faults         uint64
	MapFlushes     uint64
}

// Efficiency returns the fraction of probes served by any cache level.
func (s IntegratorStats) Efficiency() float64 {
	hits := s.L1Hits + s.L2Hits + s.L3Hits
	total := hits + s.MemoryAccesses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

type pageKey struct {
	asn  uint64
	page uint64
}

// mapping is one cached page translation. The protection flags ride
// along so map hits still enforce them.
type mapping struct {
	pa    uint64
	flags mmu.Flag
}

// cpuState is one CPU's view of the memory system. ASN and mode are
// written from the owning CPU's goroutine only, matching the engine's
// one-goroutine-per-CPU discipline.
type cpuState struct {
	asn  uint64
	mode emu.Mode
	l1d  *Cache
	l2   *Cache
	l3   *Cache
}

// Integrator bridges the executors to address translation and the
// cache hierarchy. It implements emu.MemPort, so the engine can route
// data accesses through it, and emu.TLBInvalidator, so PALcode TLB
// operations reach both the TLB and the mapping cache.
//
// Each data access translates its virtual address, first through a
// page-granular mapping cache and on a miss through the TLB pipeline,
// then probes the requesting CPU's cache stack in order L1 data, L2,
// L3, and finally forwards the operation to the backing port at the
// physical address.
type Integrator struct {
	config Config
	port   emu.MemPort

	tlb        *mmu.TLB
	translator *mmu.Translator
	recorder   *mmu.CountingRecorder
	pipeline   *mmu.Pipeline
	walk       WalkFunc

	// pipeMu serializes pipeline submission; clock advances under it.
	pipeMu sync.Mutex
	clock  uint64

	mapMu   sync.RWMutex
	pageMap map[pageKey]mapping

	cpuMu sync.Mutex
	cpus  map[int]*cpuState

	l1dGeom CacheConfig
	l2Geom  CacheConfig
	l3Geom  CacheConfig

	coherency *Coherency

	statMu sync.Mutex
	stats  IntegratorStats
}

// IntegratorOption configures an Integrator at construction.
type IntegratorOption func(*Integrator)

// WithWalk sets the page resolver consulted on TLB misses.
func WithWalk(walk WalkFunc) IntegratorOption {
	return func(ig *Integrator) {
		ig.walk = walk
	}
}

// WithTLB replaces the default TLB.
func WithTLB(tlb *mmu.TLB) IntegratorOption {
	return func(ig *Integrator) {
		ig.tlb = tlb
	}
}

// WithPipeline replaces the default translation pipeline, letting the
// caller attach an event sink.
func WithPipeline(pipeline *mmu.Pipeline) IntegratorOption {
	return func(ig *Integrator) {
		ig.pipeline = pipeline
	}
}

// WithCacheGeometry replaces the per-level cache geometries.
func WithCacheGeometry(l1d, l2, l3 CacheConfig) IntegratorOption {
	return func(ig *Integrator) {
		ig.l1dGeom = l1d
		ig.l2Geom = l2
		ig.l3Geom = l3
	}
}

// NewIntegrator creates an Integrator over the given backing port. A
// nil config uses DefaultConfig. Without WithWalk, pages resolve
// through IdentityWalk.
func NewIntegrator(config *Config, port emu.MemPort, opts ...IntegratorOption) *Integrator {
	if config == nil {
		config = DefaultConfig()
	}

	ig := &Integrator{
		config:  *config,
		port:    port,
		walk:    IdentityWalk,
		pageMap: map[pageKey]mapping{},
		cpus:    map[int]*cpuState{},
	}

	ig.l1dGeom = DefaultL1DConfig()
	ig.l2Geom = DefaultL2Config()
	ig.l3Geom = DefaultL3Config()
	ig.l1dGeom.BlockSize = ig.config.CacheLineSize
	ig.l2Geom.BlockSize = ig.config.CacheLineSize
	ig.l3Geom.BlockSize = ig.config.CacheLineSize

	for _, opt := range opts {
		opt(ig)
	}

	if ig.tlb == nil {
		ig.tlb = mmu.NewTLB(mmu.DefaultTLBConfig())
	}
	if ig.pipeline == nil {
		ig.pipeline = mmu.NewPipeline(mmu.DefaultPipelineConfig(), nil)
	}
	ig.recorder = mmu.NewCountingRecorder()
	ig.translator = mmu.NewTranslator(ig.tlb, ig.recorder)

	if ig.config.EnableCoherency {
		ig.coherency = NewCoherency()
	}

	return ig
}

// Config returns a copy of the integrator configuration.
func (ig *Integrator) Config() Config {
	return ig.config
}

// TLB returns the translation buffer.
func (ig *Integrator) TLB() *mmu.TLB {
	return ig.tlb
}

// Pipeline returns the translation pipeline.
func (ig *Integrator) Pipeline() *mmu.Pipeline {
	return ig.pipeline
}

// Coherency returns the line state tracker, nil when coherency is
// disabled.
func (ig *Integrator) Coherency() *Coherency {
	return ig.coherency
}

// Translation returns the translation outcome counters.
func (ig *Integrator) Translation() mmu.TranslationStats {
	return ig.recorder.Stats()
}

// Stats returns a snapshot of the request counters.
func (ig *Integrator) Stats() IntegratorStats {
	ig.statMu.Lock()
	defer ig.statMu.Unlock()
	return ig.stats
}

// MeetsTarget reports whether cache efficiency has reached the
// configured target.
func (ig *Integrator) MeetsTarget() bool {
	return ig.Stats().Efficiency() >= ig.config.EfficiencyTarget
}

// CacheAt returns one CPU's cache at the given level, nil for
// LevelMemory or a CPU that has made no accesses.
func (ig *Integrator) CacheAt(cpu int, level Level) *Cache {
	ig.cpuMu.Lock()
	defer ig.cpuMu.Unlock()

	st, ok := ig.cpus[cpu]
	if !ok {
		return nil
	}
	switch level {
	case LevelL1:
		return st.l1d
	case LevelL2:
		return st.l2
	case LevelL3:
		return st.l3
	}
	return nil
}

// SetASN points the CPU's subsequent requests at the given address
// space.
func (ig *Integrator) SetASN(cpu int, asn uint64) {
	if st := ig.cpu(cpu); st != nil {
		st.asn = asn
	}
}

// SetMode sets the privilege level translation checks against for the
// CPU. New CPUs start in kernel mode.
func (ig *Integrator) SetMode(cpu int, mode emu.Mode) {
	if st := ig.cpu(cpu); st != nil {
		st.mode = mode
	}
}

// cpu returns the CPU's state, creating it on first use. It returns nil
// when the id falls outside the configured CPU bound.
func (ig *Integrator) cpu(id int) *cpuState {
	ig.cpuMu.Lock()
	defer ig.cpuMu.Unlock()

	if st, ok := ig.cpus[id]; ok {
		return st
	}
	if id < 0 || id >= ig.config.MaxCPUs {
		return nil
	}

	st := &cpuState{
		mode: emu.ModeKernel,
		l1d:  NewCache(ig.l1dGeom),
		l2:   NewCache(ig.l2Geom),
		l3:   NewCache(ig.l3Geom),
	}
	ig.cpus[id] = st
	return st
}

func (ig *Integrator) lineOf(pa uint64) uint64 {
	line := uint64(ig.config.CacheLineSize)
	return pa / line * line
}

// Access translates va for the given CPU and probes its cache stack,
// reporting the level that served the request and the physical address.
// The MemPort methods wrap it around the backing port operations.
func (ig *Integrator) Access(cpu int, va uint64, kind mmu.Access) (Level, uint64, error) {
	st := ig.cpu(cpu)
	if st == nil {
		return LevelMemory, 0, fmt.Errorf(
			"memsys: cpu %d outside configured max of %d", cpu, ig.config.MaxCPUs)
	}

	write := kind == mmu.AccessStore
	ig.statMu.Lock()
	if write {
		ig.stats.Writes++
	} else {
		ig.stats.Reads++
	}
	ig.statMu.Unlock()

	pa, err := ig.resolve(st, cpu, va, kind)
	if err != nil {
		ig.statMu.Lock()
		ig.stats.Faults++
		ig.statMu.Unlock()
		return LevelMemory, 0, err
	}

	level := ig.probe(st, pa, write)
	ig.statMu.Lock()
	switch level {
	case LevelL1:
		ig.stats.L1Hits++
	case LevelL2:
		ig.stats.L2Hits++
	case LevelL3:
		ig.stats.L3Hits++
	default:
		ig.stats.MemoryAccesses++
	}
	ig.statMu.Unlock()

	if ig.coherency != nil {
		lineAddr := ig.lineOf(pa)
		if write {
			ig.coherency.OnWrite(cpu, lineAddr)
			ig.invalidateOthers(cpu, lineAddr)
		} else {
			ig.coherency.OnRead(cpu, lineAddr)
		}
	}

	if level == LevelMemory && ig.config.EnablePrefetch && ig.config.PrefetchDepth > 0 {
		ig.prefetch(st, pa)
	}

	return level, pa, nil
}

// resolve maps va to a physical address for the CPU, through the
// page-granular mapping cache first and the TLB pipeline on a miss.
// Cached translations re-check protection, so a mode switch or a
// read-only page faults the same with or without the shortcut.
func (ig *Integrator) resolve(st *cpuState, cpu int, va uint64, kind mmu.Access) (uint64, error) {
	key := pageKey{asn: st.asn, page: va &^ uint64(mmu.PageMask)}

	ig.mapMu.RLock()
	m, ok := ig.pageMap[key]
	ig.mapMu.RUnlock()
	if ok {
		ig.statMu.Lock()
		ig.stats.MapHits++
		ig.statMu.Unlock()
		if !m.flags.Permits(kind, st.mode) {
			return 0, emu.TrapAt(emu.ExcProtectionViolation, va)
		}
		return m.pa | va&uint64(mmu.PageMask), nil
	}

	ig.statMu.Lock()
	ig.stats.MapMisses++
	ig.statMu.Unlock()

	pa, flags, err := ig.translate(st, cpu, va, kind)
	if err != nil {
		return 0, err
	}

	ig.mapMu.Lock()
	ig.pageMap[key] = mapping{pa: pa &^ uint64(mmu.PageMask), flags: flags}
	ig.mapMu.Unlock()

	return pa, nil
}

// translate runs one operation through the translation pipeline and the
// TLB. Misses consult the page walker and retry once the entry lands.
func (ig *Integrator) translate(st *cpuState, cpu int, va uint64, kind mmu.Access) (uint64, mmu.Flag, error) {
	ig.pipeMu.Lock()
	defer ig.pipeMu.Unlock()

	op := &mmu.Operation{
		Kind:     kind,
		VA:       va,
		ASN:      st.asn,
		TID:      uint64(cpu),
		Priority: kind == mmu.AccessIFetch,
	}
	submitted := ig.pipeline.Submit(op, ig.clock)
	if !submitted {
		ig.clock++
		ig.pipeline.Advance(ig.clock)
		submitted = ig.pipeline.Submit(op, ig.clock)
	}

	req := mmu.Request{VA: va, ASN: st.asn, Kind: kind, Mode: st.mode, Now: ig.clock}
	resp := ig.translator.Translate(req)
	if resp.Result == mmu.Miss && ig.walk != nil {
		if paPage, flags, ok := ig.walk(st.asn, va); ok {
			ig.tlb.Insert(st.asn, va, paPage, flags)
			resp = ig.translator.Translate(req)
		}
	}

	if submitted {
		for i := 0; i < 8; i++ {
			ig.clock++
			if opRetired(ig.pipeline.Advance(ig.clock), op) {
				break
			}
		}
	}

	switch resp.Result {
	case mmu.Hit:
		return resp.PA, resp.Flags, nil
	case mmu.ProtectionViolation:
		return 0, 0, emu.TrapAt(emu.ExcProtectionViolation, va)
	case mmu.InvalidAddress:
		return 0, 0, emu.TrapAt(emu.ExcInvalidAddress, va)
	default:
		return 0, 0, emu.TrapAt(emu.ExcTranslationFault, va)
	}
}

func opRetired(done []*mmu.Operation, op *mmu.Operation) bool {
	for _, d := range done {
		if d == op {
			return true
		}
	}
	return false
}

// probe walks the CPU's cache stack. Each level installs the line on
// its own miss, so a hit below refills everything above it.
func (ig *Integrator) probe(st *cpuState, pa uint64, write bool) Level {
	dirty := write && ig.config.EnableWriteback

	if levelAccess(st.l1d, pa, write, dirty).Hit {
		return LevelL1
	}
	if levelAccess(st.l2, pa, write, false).Hit {
		return LevelL2
	}
	if levelAccess(st.l3, pa, write, false).Hit {
		return LevelL3
	}
	return LevelMemory
}

func levelAccess(c *Cache, pa uint64, write, dirty bool) AccessResult {
	if write {
		return c.Write(pa, dirty)
	}
	return c.Read(pa)
}

// prefetch fills lines ahead of a demand access that reached memory,
// starting PrefetchDistance bytes past it and never crossing the page
// boundary.
func (ig *Integrator) prefetch(st *cpuState, pa uint64) {
	line := uint64(ig.config.CacheLineSize)
	pageEnd := pa&^uint64(ig.config.PageSize-1) + uint64(ig.config.PageSize)

	addr := pa + uint64(ig.config.PrefetchDistance)
	for i := 0; i < ig.config.PrefetchDepth; i++ {
		addr += line
		if addr >= pageEnd {
			break
		}
		st.l1d.Fill(addr)
		ig.statMu.Lock()
		ig.stats.Prefetches++
		ig.statMu.Unlock()
	}
}

// invalidateOthers drops the line from every other CPU's cache stack
// after a write claimed it.
func (ig *Integrator) invalidateOthers(cpu int, lineAddr uint64) {
	ig.cpuMu.Lock()
	defer ig.cpuMu.Unlock()

	for id, other := range ig.cpus {
		if id == cpu {
			continue
		}
		other.l1d.Invalidate(lineAddr)
		other.l2.Invalidate(lineAddr)
		other.l3.Invalidate(lineAddr)
	}
}

// Load implements emu.MemPort.
func (ig *Integrator) Load(cpu int, addr uint64, size uint8) (uint64, error) {
	_, pa, err := ig.Access(cpu, addr, mmu.AccessLoad)
	if err != nil {
		return 0, err
	}
	return ig.port.Load(cpu, pa, size)
}

// Store implements emu.MemPort.
func (ig *Integrator) Store(cpu int, addr uint64, size uint8, value uint64) error {
	_, pa, err := ig.Access(cpu, addr, mmu.AccessStore)
	if err != nil {
		return err
	}
	return ig.port.Store(cpu, pa, size, value)
}

// LoadLocked implements emu.MemPort.
func (ig *Integrator) LoadLocked(cpu int, addr uint64, size uint8) (uint64, error) {
	_, pa, err := ig.Access(cpu, addr, mmu.AccessLoad)
	if err != nil {
		return 0, err
	}
	return ig.port.LoadLocked(cpu, pa, size)
}

// StoreConditional implements emu.MemPort.
func (ig *Integrator) StoreConditional(cpu int, addr uint64, size uint8, value uint64) (bool, error) {
	_, pa, err := ig.Access(cpu, addr, mmu.AccessStore)
	if err != nil {
		return false, err
	}
	return ig.port.StoreConditional(cpu, pa, size, value)
}

// Exchange implements emu.MemPort.
func (ig *Integrator) Exchange(cpu int, addr uint64, size uint8, value uint64) (uint64, error) {
	_, pa, err := ig.Access(cpu, addr, mmu.AccessStore)
	if err != nil {
		return 0, err
	}
	return ig.port.Exchange(cpu, pa, size, value)
}

// CompareExchange implements emu.MemPort.
func (ig *Integrator) CompareExchange(cpu int, addr uint64, size uint8, old, new uint64) (uint64, bool, error) {
	_, pa, err := ig.Access(cpu, addr, mmu.AccessStore)
	if err != nil {
		return 0, false, err
	}
	return ig.port.CompareExchange(cpu, pa, size, old, new)
}

// FetchOp implements emu.MemPort.
func (ig *Integrator) FetchOp(cpu int, addr uint64, size uint8, op emu.AtomicOp, operand uint64) (uint64, error) {
	_, pa, err := ig.Access(cpu, addr, mmu.AccessStore)
	if err != nil {
		return 0, err
	}
	return ig.port.FetchOp(cpu, pa, size, op, operand)
}

// Prefetch implements emu.MemPort. Hints never fault; a failed
// translation drops the hint.
func (ig *Integrator) Prefetch(cpu int, addr uint64, modifyIntent bool) {
	_, pa, err := ig.Access(cpu, addr, mmu.AccessPrefetch)
	if err != nil {
		return
	}
	ig.port.Prefetch(cpu, pa, modifyIntent)
}

// Evict implements emu.MemPort. Only pages already in the mapping cache
// resolve; the hint is not worth a page walk.
func (ig *Integrator) Evict(cpu int, addr uint64) {
	st := ig.cpu(cpu)
	if st == nil {
		return
	}

	key := pageKey{asn: st.asn, page: addr &^ uint64(mmu.PageMask)}
	ig.mapMu.RLock()
	m, ok := ig.pageMap[key]
	ig.mapMu.RUnlock()
	if !ok {
		return
	}

	pa := m.pa | addr&uint64(mmu.PageMask)
	lineAddr := ig.lineOf(pa)
	st.l1d.Invalidate(lineAddr)
	st.l2.Invalidate(lineAddr)
	st.l3.Invalidate(lineAddr)
	ig.port.Evict(cpu, pa)
}

// WriteHint64 implements emu.MemPort. The block is claimed for writing
// without faulting; a failed translation drops the hint.
func (ig *Integrator) WriteHint64(cpu int, addr uint64) {
	_, pa, err := ig.Access(cpu, addr, mmu.AccessStore)
	if err != nil {
		return
	}
	ig.port.WriteHint64(cpu, pa)
}

// Fence implements emu.MemPort. A full barrier also drains the
// translation pipeline before ordering the backing port.
func (ig *Integrator) Fence(cpu int, kind emu.FenceKind) {
	if kind == emu.FenceFull {
		ig.pipeMu.Lock()
		ig.pipeline.Drain()
		ig.pipeMu.Unlock()
	}
	ig.port.Fence(cpu, kind)
}

// InvalidateAll implements emu.TLBInvalidator. The whole TLB and the
// mapping cache empty together.
func (ig *Integrator) InvalidateAll() {
	ig.tlb.InvalidateAll()
	ig.TLBFlush()
}

// InvalidateASN implements emu.TLBInvalidator.
func (ig *Integrator) InvalidateASN(asn uint64) {
	ig.tlb.InvalidateASN(asn)
	ig.ProcessFlush(asn)
}

// InvalidatePage implements emu.TLBInvalidator. The page drops from the
// mapping cache under every address space, since a global entry may
// have fed mappings to several.
func (ig *Integrator) InvalidatePage(asn, va uint64) {
	ig.tlb.InvalidatePage(asn, va)

	page := va &^ uint64(mmu.PageMask)
	ig.mapMu.Lock()
	for key := range ig.pageMap {
		if key.page == page {
			delete(ig.pageMap, key)
		}
	}
	ig.mapMu.Unlock()

	ig.statMu.Lock()
	ig.stats.MapFlushes++
	ig.statMu.Unlock()
}

// TLBFlush drops every cached page mapping. The next access per page
// re-translates.
func (ig *Integrator) TLBFlush() {
	ig.mapMu.Lock()
	ig.pageMap = map[pageKey]mapping{}
	ig.mapMu.Unlock()

	ig.statMu.Lock()
	ig.stats.MapFlushes++
	ig.statMu.Unlock()
}

// ProcessFlush drops the cached mappings of one address space.
func (ig *Integrator) ProcessFlush(asn uint64) {
	ig.mapMu.Lock()
	for key := range ig.pageMap {
		if key.asn == asn {
			delete(ig.pageMap, key)
		}
	}
	ig.mapMu.Unlock()

	ig.statMu.Lock()
	ig.stats.MapFlushes++
	ig.statMu.Unlock()
}

// Reset restores the integrator to its initial state: caches, TLB,
// pipeline, mapping cache, coherency states, and counters all clear.
// Configured geometry and the walker stay.
func (ig *Integrator) Reset() {
	ig.cpuMu.Lock()
	for _, st := range ig.cpus {
		st.l1d.Reset()
		st.l2.Reset()
		st.l3.Reset()
	}
	ig.cpuMu.Unlock()

	ig.tlb.Reset()

	ig.pipeMu.Lock()
	ig.pipeline.Reset()
	ig.clock = 0
	ig.pipeMu.Unlock()

	ig.mapMu.Lock()
	ig.pageMap = map[pageKey]mapping{}
	ig.mapMu.Unlock()

	if ig.coherency != nil {
		ig.coherency.Reset()
	}

	ig.recorder = mmu.NewCountingRecorder()
	ig.translator = mmu.NewTranslator(ig.tlb, ig.recorder)

	ig.statMu.Lock()
	ig.stats = IntegratorStats{}
	ig.statMu.Unlock()
}
