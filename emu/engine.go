package emu

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sarchlab/axpsim/insts"
)

// CycleModel supplies the consumed-cycle count reported in outcomes.
type CycleModel interface {
	Cycles(inst *insts.Instruction) uint64
}

// Stats aggregates dispatcher-level counters. All counters are atomic
// and never participate in correctness.
type Stats struct {
	executed   [insts.ClassCount]atomic.Uint64
	exceptions atomic.Uint64
}

// Executed returns how many instructions of the given class ran.
func (s *Stats) Executed(class insts.Class) uint64 {
	return s.executed[class].Load()
}

// TotalExecuted returns the number of dispatched instructions.
func (s *Stats) TotalExecuted() uint64 {
	var total uint64
	for i := range s.executed {
		total += s.executed[i].Load()
	}
	return total
}

// Exceptions returns the number of instructions that raised an exception.
func (s *Stats) Exceptions() uint64 {
	return s.exceptions.Load()
}

func (s *Stats) reset() {
	for i := range s.executed {
		s.executed[i].Store(0)
	}
	s.exceptions.Store(0)
}

// Engine executes Alpha instructions functionally. One Engine drives any
// number of CPUs against a shared memory; Step is safe to call from one
// goroutine per CPU.
type Engine struct {
	decoder *insts.Decoder
	memory  *Memory
	port    MemPort
	cpus    []*CPU
	cycles  CycleModel

	evFamily EVFamily
	syscalls SyscallHandler
	tlb      TLBInvalidator

	unalignedFixup bool

	intUnit       *IntUnit
	loadStoreUnit *LoadStoreUnit
	unalignedUnit *UnalignedUnit
	lockUnit      *LockUnit
	byteUnit      *ByteUnit
	bitUnit       *BitUnit
	fpUnit        *FPUnit
	controlUnit   *ControlUnit
	orderUnit     *OrderUnit
	palUnit       *PalUnit

	predictors []*Predictor

	stats Stats

	maxInstructions  uint64
	instructionCount atomic.Uint64
}

// EngineOption is a functional option for configuring the Engine.
type EngineOption func(*Engine)

// WithCPUCount sets the number of simulated CPUs. The default is 1.
func WithCPUCount(n int) EngineOption {
	return func(e *Engine) {
		e.cpus = make([]*CPU, n)
		for i := range e.cpus {
			e.cpus[i] = NewCPU(i)
		}
	}
}

// WithMemory supplies a shared memory, replacing the engine's own.
func WithMemory(m *Memory) EngineOption {
	return func(e *Engine) {
		e.memory = m
	}
}

// WithMemPort routes data accesses through the given port instead of
// straight to memory. The cache integrator is the intended implementation.
func WithMemPort(p MemPort) EngineOption {
	return func(e *Engine) {
		e.port = p
	}
}

// WithEVFamily selects the PALcode numbering of the given EV generation.
func WithEVFamily(family EVFamily) EngineOption {
	return func(e *Engine) {
		e.evFamily = family
	}
}

// WithCycleModel replaces the built-in latency model.
func WithCycleModel(m CycleModel) EngineOption {
	return func(e *Engine) {
		e.cycles = m
	}
}

// WithSyscallHandler sets the handler that services CALLSYS dispatches.
func WithSyscallHandler(h SyscallHandler) EngineOption {
	return func(e *Engine) {
		e.syscalls = h
	}
}

// WithTLBInvalidator binds the translation structures flushed by the
// TBI family of PAL calls.
func WithTLBInvalidator(t TLBInvalidator) EngineOption {
	return func(e *Engine) {
		e.tlb = t
	}
}

// WithUnalignedFixup emulates misaligned ordinary loads and stores with
// split aligned accesses instead of raising AlignmentFault.
func WithUnalignedFixup() EngineOption {
	return func(e *Engine) {
		e.unalignedFixup = true
	}
}

// WithMaxInstructions caps Run. A value of 0 means no limit.
func WithMaxInstructions(max uint64) EngineOption {
	return func(e *Engine) {
		e.maxInstructions = max
	}
}

// NewEngine creates an engine with the given options applied.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		decoder:  insts.NewDecoder(),
		memory:   NewMemory(),
		evFamily: EV6,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.cpus == nil {
		e.cpus = []*CPU{NewCPU(0)}
	}
	if e.port == nil {
		e.port = e.memory
	}
	if e.cycles == nil {
		e.cycles = defaultCycleModel{}
	}
	if e.syscalls == nil {
		e.syscalls = NewHaltSyscallHandler()
	}

	e.buildUnits()
	return e
}

func (e *Engine) buildUnits() {
	e.predictors = make([]*Predictor, len(e.cpus))
	for i := range e.predictors {
		e.predictors[i] = NewPredictor()
	}

	e.intUnit = NewIntUnit(e.evFamily)
	e.unalignedUnit = NewUnalignedUnit(e.port)
	e.loadStoreUnit = NewLoadStoreUnit(e.port)
	if e.unalignedFixup {
		e.loadStoreUnit.EnableFixup(e.unalignedUnit)
	}
	e.lockUnit = NewLockUnit(e.port)
	e.byteUnit = NewByteUnit()
	e.bitUnit = NewBitUnit()
	e.fpUnit = NewFPUnit()
	e.controlUnit = NewControlUnit(e.predictors)
	e.orderUnit = NewOrderUnit(e.port)
	e.palUnit = NewPalUnit(e.evFamily, e.syscalls, e.tlb, e.memory.Reservations())
}

// CPU returns the CPU with the given index.
func (e *Engine) CPU(id int) *CPU {
	return e.cpus[id]
}

// NumCPUs returns the number of simulated CPUs.
func (e *Engine) NumCPUs() int {
	return len(e.cpus)
}

// Memory returns the shared memory.
func (e *Engine) Memory() *Memory {
	return e.memory
}

// Reservations returns the shared load-locked reservation table.
func (e *Engine) Reservations() *ReservationTable {
	return e.memory.Reservations()
}

// Predictor returns the branch predictor of the given CPU.
func (e *Engine) Predictor(cpu int) *Predictor {
	return e.predictors[cpu]
}

// Stats returns the dispatcher counters.
func (e *Engine) Stats() *Stats {
	return &e.stats
}

// Unaligned returns the unaligned-access executor, which carries the
// crossing counters and the access-pattern classifier.
func (e *Engine) Unaligned() *UnalignedUnit {
	return e.unalignedUnit
}

// Pal returns the PALcode executor, which carries the per-group counters.
func (e *Engine) Pal() *PalUnit {
	return e.palUnit
}

// InstructionCount returns the number of instructions stepped.
func (e *Engine) InstructionCount() uint64 {
	return e.instructionCount.Load()
}

// LoadProgram writes the program words to memory at entry and points the
// given CPU's PC at them.
func (e *Engine) LoadProgram(cpu int, entry uint64, program []uint32) {
	for i, word := range program {
		e.memory.Write32(entry+uint64(i)*4, word)
	}
	e.cpus[cpu].PC = entry
}

// Reset restores power-up state: registers, memory, counters, predictors.
func (e *Engine) Reset() {
	for _, cpu := range e.cpus {
		cpu.Reset()
	}
	e.memory = NewMemory()
	if _, ok := e.port.(*Memory); ok {
		e.port = e.memory
	}
	e.stats.reset()
	e.instructionCount.Store(0)
	e.buildUnits()
}

// Step executes a single instruction word on the given CPU at pc. The
// returned outcome carries the architectural effects; register writes
// have already been committed unless an exception is reported, in which
// case no state changed and NextPC holds the faulting pc.
func (e *Engine) Step(cpuID int, word uint32, pc uint64) Outcome {
	cpu := e.cpus[cpuID]
	cpu.PC = pc

	inst := e.decoder.Decode(word)

	out := Outcome{NextPC: pc + 4}
	out.Cycles = e.cycles.Cycles(&inst)

	e.stats.executed[inst.Class].Add(1)
	e.instructionCount.Add(1)

	err := e.dispatch(cpu, &inst, &out)
	if err != nil {
		e.stats.exceptions.Add(1)
		out.Exception = asException(err)
		out.RegWrites = nil
		out.NextPC = pc
		cpu.Cycles += out.Cycles
		return out
	}

	for _, w := range out.RegWrites {
		if w.FP {
			cpu.WriteFReg(w.Reg, w.Value)
		} else {
			cpu.WriteReg(w.Reg, w.Value)
		}
	}
	cpu.PC = out.NextPC
	cpu.Cycles += out.Cycles
	return out
}

// StepPC fetches the word at the CPU's PC and executes it.
func (e *Engine) StepPC(cpuID int) Outcome {
	cpu := e.cpus[cpuID]
	return e.Step(cpuID, e.memory.Read32(cpu.PC), cpu.PC)
}

// RunResult reports why Run stopped.
type RunResult struct {
	// Instructions executed during this run.
	Instructions uint64

	// Halted is true when a CALL_PAL HALT stopped the CPU.
	Halted bool

	// Exception is the first exception raised, or ExcNone.
	Exception Exception

	// PC is the program counter at stop time.
	PC uint64
}

// Run steps the given CPU until it halts, raises an exception, or hits
// the instruction limit.
func (e *Engine) Run(cpuID int) RunResult {
	var result RunResult
	for {
		if e.maxInstructions > 0 && result.Instructions >= e.maxInstructions {
			result.PC = e.cpus[cpuID].PC
			return result
		}
		out := e.StepPC(cpuID)
		result.Instructions++
		if out.Halt {
			result.Halted = true
			result.PC = out.NextPC
			return result
		}
		if out.Exception != ExcNone {
			result.Exception = out.Exception
			result.PC = out.NextPC
			return result
		}
	}
}

func (e *Engine) dispatch(cpu *CPU, inst *insts.Instruction, out *Outcome) error {
	if inst.Class == insts.ClassIllegal {
		return NewTrap(ExcIllegalOpcode)
	}
	if !cpu.PS.FEN && usesFPRegs(inst) {
		return NewTrap(ExcGenericTrap)
	}

	switch inst.Class {
	case insts.ClassInteger:
		return e.intUnit.Execute(cpu, inst, out)
	case insts.ClassLoadStore:
		return e.loadStoreUnit.Execute(cpu, inst, out)
	case insts.ClassUnaligned:
		return e.unalignedUnit.Execute(cpu, inst, out)
	case insts.ClassLLSC:
		return e.lockUnit.Execute(cpu, inst, out)
	case insts.ClassBytes:
		return e.byteUnit.Execute(cpu, inst, out)
	case insts.ClassBits:
		return e.bitUnit.Execute(cpu, inst, out)
	case insts.ClassFP:
		return e.fpUnit.Execute(cpu, inst, out)
	case insts.ClassControl:
		return e.controlUnit.Execute(cpu, inst, out)
	case insts.ClassMemOrder:
		return e.orderUnit.Execute(cpu, inst, out)
	case insts.ClassPal:
		return e.palUnit.Execute(cpu, inst, out)
	}
	return NewTrap(ExcIllegalOpcode)
}

// usesFPRegs reports whether the instruction touches the FP register
// file, which faults when PS.FEN is clear.
func usesFPRegs(inst *insts.Instruction) bool {
	if inst.Class == insts.ClassFP {
		return true
	}
	switch inst.Opcode {
	case insts.OpLDF, insts.OpLDG, insts.OpLDS, insts.OpLDT,
		insts.OpSTF, insts.OpSTG, insts.OpSTS, insts.OpSTT,
		insts.OpFBEQ, insts.OpFBLT, insts.OpFBLE,
		insts.OpFBNE, insts.OpFBGE, insts.OpFBGT:
		return true
	}
	return false
}

// asException maps an executor failure to the outcome exception kind.
func asException(err error) Exception {
	var trap *Trap
	if errors.As(err, &trap) {
		return trap.Kind
	}
	return ExcBugCheck
}

// defaultCycleModel mirrors documented EV6-era issue-to-retire latencies.
type defaultCycleModel struct{}

func (defaultCycleModel) Cycles(inst *insts.Instruction) uint64 {
	switch inst.Class {
	case insts.ClassInteger:
		if inst.Opcode == insts.OpINTM {
			switch inst.Fn {
			case insts.FnMULQ, insts.FnMULQV, insts.FnUMULH:
				return 7
			default:
				return 3
			}
		}
		return 1
	case insts.ClassLoadStore, insts.ClassUnaligned, insts.ClassLLSC:
		if isStoreOpcode(inst.Opcode) {
			return 1
		}
		return 3
	case insts.ClassBytes, insts.ClassBits:
		return 2
	case insts.ClassFP:
		return fpCycles(inst)
	case insts.ClassControl:
		return 1
	case insts.ClassMemOrder:
		if inst.Format == insts.FormatOperate {
			return 8 // atomic read-modify-write
		}
		return 5
	case insts.ClassPal:
		return 30
	}
	return 1
}

func fpCycles(inst *insts.Instruction) uint64 {
	op := inst.Fn & 0x00F
	switch inst.Opcode {
	case insts.OpFLTI, insts.OpFLTV:
		if op == 0x3 { // divide
			if fpIsSingle(inst) {
				return 12
			}
			return 15
		}
	case insts.OpITFP:
		if op == 0xB { // square root
			if fpIsSingle(inst) {
				return 18
			}
			return 33
		}
	}
	return 4
}

// fpIsSingle reports whether the source-datatype bits select a 32-bit
// format (IEEE S or VAX F).
func fpIsSingle(inst *insts.Instruction) bool {
	return inst.Fn&0x030 == 0
}

// String renders engine statistics for the monitor.
func (e *Engine) StatsString() string {
	s := &e.stats
	out := fmt.Sprintf("instructions: %d\n", e.InstructionCount())
	for c := insts.Class(0); int(c) < insts.ClassCount; c++ {
		n := s.Executed(c)
		if n == 0 {
			continue
		}
		out += fmt.Sprintf("  %-12s %d\n", c.String(), n)
	}
	out += fmt.Sprintf("exceptions: %d\n", s.Exceptions())
	return out
}
