// Package emu provides functional Alpha AXP emulation.
package emu

// Mode is the processor privilege level.
type Mode uint8

// Privilege levels, most privileged first.
const (
	ModeKernel Mode = iota
	ModeExecutive
	ModeSupervisor
	ModeUser
)

var modeNames = map[Mode]string{
	ModeKernel:     "kernel",
	ModeExecutive:  "executive",
	ModeSupervisor: "supervisor",
	ModeUser:       "user",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return "unknown"
}

// PS is the processor status.
type PS struct {
	// Mode is the current privilege level.
	Mode Mode

	// IPL is the interrupt priority level (0-31).
	IPL uint8

	// IntrFlag backs the RC/RS instructions.
	IntrFlag bool

	// FEN enables floating-point instructions.
	FEN bool
}

// FPCR bit positions (quadword layout).
const (
	FPCRInvD uint64 = 1 << 49 // invalid operation trap disable
	FPCRDzeD uint64 = 1 << 50 // division by zero trap disable
	FPCROvfD uint64 = 1 << 51 // overflow trap disable
	FPCRInv  uint64 = 1 << 52 // invalid operation
	FPCRDze  uint64 = 1 << 53 // division by zero
	FPCROvf  uint64 = 1 << 54 // overflow
	FPCRUnf  uint64 = 1 << 55 // underflow
	FPCRIne  uint64 = 1 << 56 // inexact
	FPCRIov  uint64 = 1 << 57 // integer overflow
	FPCRUndZ uint64 = 1 << 60 // underflow to zero
	FPCRUnfD uint64 = 1 << 61 // underflow trap disable
	FPCRIneD uint64 = 1 << 62 // inexact trap disable
	FPCRSum  uint64 = 1 << 63 // summary, OR of status bits

	fpcrDynShift        = 58
	fpcrDynMask  uint64 = 3 << fpcrDynShift
	fpcrStatus          = FPCRInv | FPCRDze | FPCROvf | FPCRUnf | FPCRIne | FPCRIov
)

// Dynamic rounding field values (FPCR bits 59:58).
const (
	RoundChopped uint8 = 0
	RoundMinus   uint8 = 1
	RoundNearest uint8 = 2
	RoundPlus    uint8 = 3
)

// RegFile represents one CPU's architectural register state.
type RegFile struct {
	// R holds integer registers R0-R30. R[31] is wired to zero.
	R [32]uint64

	// F holds floating-point registers F0-F30. F[31] is wired to zero.
	F [32]uint64

	// PC is the program counter.
	PC uint64

	// PS is the processor status.
	PS PS

	// FPCR is the floating-point control register.
	FPCR uint64

	// Unique backs the RDUNIQUE/WRUNIQUE PAL pair.
	Unique uint64
}

// ReadReg reads an integer register. Register 31 reads as zero.
func (r *RegFile) ReadReg(reg uint8) uint64 {
	if reg >= 31 {
		return 0
	}
	return r.R[reg]
}

// WriteReg writes an integer register. Writes to register 31 are ignored.
func (r *RegFile) WriteReg(reg uint8, value uint64) {
	if reg >= 31 {
		return
	}
	r.R[reg] = value
}

// ReadFReg reads a floating-point register. F31 reads as zero.
func (r *RegFile) ReadFReg(reg uint8) uint64 {
	if reg >= 31 {
		return 0
	}
	return r.F[reg]
}

// WriteFReg writes a floating-point register. Writes to F31 are ignored.
func (r *RegFile) WriteFReg(reg uint8, value uint64) {
	if reg >= 31 {
		return
	}
	r.F[reg] = value
}

// DynRounding returns the FPCR dynamic rounding field.
func (r *RegFile) DynRounding() uint8 {
	return uint8((r.FPCR & fpcrDynMask) >> fpcrDynShift)
}

// SetFPCR replaces the FPCR, recomputing the summary bit.
func (r *RegFile) SetFPCR(value uint64) {
	value &^= FPCRSum
	if value&fpcrStatus != 0 {
		value |= FPCRSum
	}
	r.FPCR = value
}

// RaiseFPFlags ORs status bits into the FPCR and updates the summary.
func (r *RegFile) RaiseFPFlags(bits uint64) {
	r.SetFPCR(r.FPCR | bits)
}

// CPU is one simulated processor: its register file, identity, and
// accumulated cycle count. The per-CPU lock flag of the architecture
// lives in the shared ReservationTable, keyed by ID.
type CPU struct {
	RegFile

	// ID is the CPU index used for reservations and cache binding.
	ID int

	// Cycles accumulates consumed cycles; RPCC reads it.
	Cycles uint64
}

// NewCPU creates a CPU with the given index. CPUs start in kernel mode
// with floating point enabled.
func NewCPU(id int) *CPU {
	cpu := &CPU{ID: id}
	cpu.PS.FEN = true
	cpu.SetFPCR(uint64(RoundNearest) << fpcrDynShift)
	return cpu
}

// Reset returns the CPU to its power-up state.
func (c *CPU) Reset() {
	id := c.ID
	*c = CPU{ID: id}
	c.PS.FEN = true
	c.SetFPCR(uint64(RoundNearest) << fpcrDynShift)
}
