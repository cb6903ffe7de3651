package emu

import (
	"sync"
	"sync/atomic"

	"github.com/sarchlab/axpsim/insts"
)

// PalOp names a PALcode operation independent of the numeric function
// code, which varies by EV family and operating-system dialect.
type PalOp uint8

// Named PALcode operations.
const (
	PalNone PalOp = iota
	PalHalt
	PalCflush
	PalDraina
	PalSwpctx
	PalSwppal
	PalWrfen
	PalClrfen
	PalSwpipl
	PalRdirql
	PalDi
	PalEi
	PalTbi
	PalTbia
	PalTbiap
	PalTbis
	PalTbisync
	PalWrvptptr
	PalRdvptb
	PalWrent
	PalWrkgp
	PalWrusp
	PalRdusp
	PalWhami
	PalRetsys
	PalRti
	PalUrti
	PalRdps
	PalRscc
	PalProber
	PalProbew
	PalBpt
	PalBugchk
	PalCallsys
	PalImb
	PalRdunique
	PalWrunique
	PalGentrap
)

var palNames = map[PalOp]string{
	PalNone:     "none",
	PalHalt:     "HALT",
	PalCflush:   "CFLUSH",
	PalDraina:   "DRAINA",
	PalSwpctx:   "SWPCTX",
	PalSwppal:   "SWPPAL",
	PalWrfen:    "WRFEN",
	PalClrfen:   "CLRFEN",
	PalSwpipl:   "SWPIPL",
	PalRdirql:   "RDIRQL",
	PalDi:       "DI",
	PalEi:       "EI",
	PalTbi:      "TBI",
	PalTbia:     "TBIA",
	PalTbiap:    "TBIAP",
	PalTbis:     "TBIS",
	PalTbisync:  "TBISYNC",
	PalWrvptptr: "WRVPTPTR",
	PalRdvptb:   "RDVPTB",
	PalWrent:    "WRENT",
	PalWrkgp:    "WRKGP",
	PalWrusp:    "WRUSP",
	PalRdusp:    "RDUSP",
	PalWhami:    "WHAMI",
	PalRetsys:   "RETSYS",
	PalRti:      "RTI",
	PalUrti:     "URTI",
	PalRdps:     "RDPS",
	PalRscc:     "RSCC",
	PalProber:   "PROBER",
	PalProbew:   "PROBEW",
	PalBpt:      "BPT",
	PalBugchk:   "BUGCHK",
	PalCallsys:  "CALLSYS",
	PalImb:      "IMB",
	PalRdunique: "RDUNIQUE",
	PalWrunique: "WRUNIQUE",
	PalGentrap:  "GENTRAP",
}

func (op PalOp) String() string {
	if s, ok := palNames[op]; ok {
		return s
	}
	return "PAL?"
}

// Privileged reports whether the operation requires kernel mode. The
// check happens before any effect of the operation.
func (op PalOp) Privileged() bool {
	switch op {
	case PalClrfen, PalUrti, PalRdps, PalRscc,
		PalBpt, PalBugchk, PalCallsys, PalImb,
		PalRdunique, PalWrunique, PalGentrap:
		return false
	case PalNone:
		return false
	}
	return true
}

// palAliases maps the VMS, OSF, and NT dialect names onto the canonical
// operations. The monitor accepts these on its pal command.
var palAliases = map[string]PalOp{
	"REBOOT":     PalHalt,
	"RESTART":    PalHalt,
	"CHMK":       PalCallsys,
	"REI":        PalRti,
	"RFE":        PalRti,
	"SWPIRQL":    PalSwpipl,
	"RD_PS":      PalRdps,
	"READ_UNQ":   PalRdunique,
	"WRITE_UNQ":  PalWrunique,
	"MTPR_FEN":   PalWrfen,
	"MTPR_IPL":   PalSwpipl,
	"MTPR_TBIA":  PalTbia,
	"MTPR_TBIAP": PalTbiap,
	"MTPR_TBIS":  PalTbis,
	"MTPR_USP":   PalWrusp,
	"MFPR_USP":   PalRdusp,
	"MTPR_VPTB":  PalWrvptptr,
	"MFPR_VPTB":  PalRdvptb,
	"MFPR_WHAMI": PalWhami,
}

// PalOpByName resolves an operation name, accepting the per-dialect
// aliases alongside the canonical names.
func PalOpByName(name string) (PalOp, bool) {
	for op, s := range palNames {
		if s == name && op != PalNone {
			return op, true
		}
	}
	if op, ok := palAliases[name]; ok {
		return op, true
	}
	return PalNone, false
}

// PalTable maps CALL_PAL function codes to operations under one EV
// family's PALcode numbering.
type PalTable map[uint32]PalOp

// NewPalTable builds the numbering for the given family. EV4 and EV5
// shipped with the VMS console PALcode, where the privileged entries are
// MTPR/MFPR register moves; EV6 and later use the OSF/1 numbering.
func NewPalTable(family EVFamily) PalTable {
	switch family {
	case EV4, EV5:
		return PalTable{
			0x00: PalHalt,
			0x01: PalCflush,
			0x02: PalDraina,
			0x05: PalSwpctx,
			0x0A: PalSwppal,
			0x0C: PalWrfen,    // MTPR_FEN
			0x0F: PalSwpipl,   // MTPR_IPL
			0x1B: PalTbia,     // MTPR_TBIA
			0x1C: PalTbiap,    // MTPR_TBIAP
			0x1D: PalTbis,     // MTPR_TBIS
			0x1E: PalTbisync,  // MTPR_TBISYNC
			0x22: PalRdusp,    // MFPR_USP
			0x23: PalWrusp,    // MTPR_USP
			0x29: PalRdvptb,   // MFPR_VPTB
			0x2A: PalWrvptptr, // MTPR_VPTB
			0x3B: PalDi,
			0x3C: PalEi,
			0x3F: PalWhami, // MFPR_WHAMI
			0x80: PalBpt,
			0x81: PalBugchk,
			0x83: PalCallsys, // CHMK
			0x86: PalImb,
			0x87: PalProber,
			0x88: PalProbew,
			0x89: PalRdps, // RD_PS
			0x8A: PalRti,  // REI
			0x8D: PalRscc,
			0x9E: PalRdunique,  // READ_UNQ
			0x9F: PalWrunique,  // WRITE_UNQ
			0xAA: PalGentrap,
		}
	default:
		return PalTable{
			0x00: PalHalt,
			0x01: PalCflush,
			0x02: PalDraina,
			0x07: PalRdirql,
			0x0A: PalSwppal,
			0x2B: PalWrfen,
			0x2D: PalWrvptptr,
			0x30: PalSwpctx,
			0x33: PalTbi,
			0x34: PalWrent,
			0x35: PalSwpipl,
			0x36: PalRdps,
			0x37: PalWrkgp,
			0x38: PalWrusp,
			0x3A: PalRdusp,
			0x3C: PalWhami,
			0x3D: PalRetsys,
			0x3F: PalRti,
			0x80: PalBpt,
			0x81: PalBugchk,
			0x83: PalCallsys,
			0x86: PalImb,
			0x87: PalProber,
			0x88: PalProbew,
			0x8D: PalRscc,
			0x92: PalUrti,
			0x9E: PalRdunique,
			0x9F: PalWrunique,
			0xAA: PalGentrap,
			0xAE: PalClrfen,
		}
	}
}

// SyscallHandler services CALLSYS dispatches. The convention is OSF/1:
// v0 carries the call number, a0-a2 the arguments; results are staged
// through the outcome like any other register write.
type SyscallHandler interface {
	Syscall(cpu *CPU, out *Outcome) error
}

// HaltSyscallHandler stops the CPU on any system call. It is the engine
// default, for bare-metal programs that never reach an operating system.
type HaltSyscallHandler struct{}

// NewHaltSyscallHandler creates the default CALLSYS handler.
func NewHaltSyscallHandler() *HaltSyscallHandler {
	return &HaltSyscallHandler{}
}

// Syscall implements SyscallHandler.
func (*HaltSyscallHandler) Syscall(cpu *CPU, out *Outcome) error {
	out.Halt = true
	return nil
}

// TLBInvalidator receives the TBI family of PALcode invalidations. The
// cache integrator implements it; with none bound the dispatches still
// count but invalidate nothing.
type TLBInvalidator interface {
	InvalidateAll()
	InvalidateASN(asn uint64)
	InvalidatePage(asn, va uint64)
}

// OSF/1 calling-convention registers used by PALcode.
const (
	regV0 = 0  // return value
	regA0 = 16 // first argument
	regA1 = 17 // second argument
	regA2 = 18 // third argument
	regA3 = 19 // system-call error flag
)

// TBI selector values passed in a0.
const (
	tbiASM = -2 // all entries, address-space-match included
	tbiAP  = -1 // all entries of the current address space
	tbiSI  = 1  // single instruction-stream page
	tbiSD  = 2  // single data-stream page
	tbiS   = 3  // single page, both streams
)

// iprFile is the per-CPU internal processor register state PALcode owns:
// stack pointer, global pointer, page-table base, context and entry
// vectors. The unique value lives in the register file because RDUNIQUE
// is unprivileged.
type iprFile struct {
	usp     uint64
	kgp     uint64
	vptb    uint64
	pcbb    uint64
	palBase uint64
	asn     uint64
	entries [8]uint64
}

// PalStats is a snapshot of the PAL executor's counters.
type PalStats struct {
	TLBOps              uint64
	CacheOps            uint64
	ContextSwitches     uint64
	Syscalls            uint64
	Traps               uint64
	PrivilegeViolations uint64
	Other               uint64
}

// PalUnit executes CALL_PAL instructions: it resolves the function code
// through the EV family's table, enforces the privilege level before any
// effect, and dispatches to the operation. The simulator models the
// architectural surface of each operation, not the firmware behind it.
type PalUnit struct {
	table   PalTable
	family  EVFamily
	handler SyscallHandler
	tlb     TLBInvalidator
	rsv     *ReservationTable

	mu   sync.Mutex
	iprs map[int]*iprFile

	tlbOps   atomic.Uint64
	cacheOps atomic.Uint64
	ctx      atomic.Uint64
	syscalls atomic.Uint64
	traps    atomic.Uint64
	privViol atomic.Uint64
	other    atomic.Uint64
}

// NewPalUnit creates a PAL executor with the given family's numbering.
func NewPalUnit(family EVFamily, syscalls SyscallHandler, tlb TLBInvalidator, rsv *ReservationTable) *PalUnit {
	return &PalUnit{
		table:   NewPalTable(family),
		family:  family,
		handler: syscalls,
		tlb:     tlb,
		rsv:     rsv,
		iprs:    make(map[int]*iprFile),
	}
}

// Stats returns a snapshot of the dispatch counters.
func (u *PalUnit) Stats() PalStats {
	return PalStats{
		TLBOps:              u.tlbOps.Load(),
		CacheOps:            u.cacheOps.Load(),
		ContextSwitches:     u.ctx.Load(),
		Syscalls:            u.syscalls.Load(),
		Traps:               u.traps.Load(),
		PrivilegeViolations: u.privViol.Load(),
		Other:               u.other.Load(),
	}
}

// Table returns the function-code numbering in effect.
func (u *PalUnit) Table() PalTable {
	return u.table
}

func (u *PalUnit) ipr(cpu int) *iprFile {
	u.mu.Lock()
	defer u.mu.Unlock()
	f, ok := u.iprs[cpu]
	if !ok {
		f = &iprFile{}
		u.iprs[cpu] = f
	}
	return f
}

// Execute runs one CALL_PAL instruction.
func (u *PalUnit) Execute(cpu *CPU, inst *insts.Instruction, out *Outcome) error {
	op, ok := u.table[inst.PalFn]
	if !ok {
		return NewTrap(ExcIllegalOpcode)
	}
	out.PalOp = op

	if op.Privileged() && cpu.PS.Mode != ModeKernel {
		u.privViol.Add(1)
		return NewTrap(ExcPrivilegeViolation)
	}
	return u.run(cpu, op, out)
}

func (u *PalUnit) run(cpu *CPU, op PalOp, out *Outcome) error {
	a0 := cpu.ReadReg(regA0)
	a1 := cpu.ReadReg(regA1)

	switch op {
	case PalHalt:
		u.other.Add(1)
		out.Halt = true

	case PalCflush, PalImb:
		u.cacheOps.Add(1)

	case PalDraina, PalTbisync:
		// Ordering points; a synchronous interpreter has nothing in
		// flight to drain. TBISYNC counts with the TLB group.
		if op == PalTbisync {
			u.tlbOps.Add(1)
		} else {
			u.other.Add(1)
		}

	case PalSwpctx:
		// a0 carries the new context block, a1 the new address space
		// number. Switching contexts abandons the lock reservation.
		u.ctx.Add(1)
		ipr := u.ipr(cpu.ID)
		out.writeReg(regV0, ipr.pcbb)
		ipr.pcbb = a0
		ipr.asn = a1
		u.rsv.Clear(cpu.ID)

	case PalSwppal:
		u.ctx.Add(1)
		u.ipr(cpu.ID).palBase = a0
		out.writeReg(regV0, 0)

	case PalWrfen:
		u.other.Add(1)
		cpu.PS.FEN = a0&1 != 0
	case PalClrfen:
		u.other.Add(1)
		cpu.PS.FEN = false

	case PalSwpipl:
		u.other.Add(1)
		out.writeReg(regV0, uint64(cpu.PS.IPL))
		cpu.PS.IPL = uint8(a0 & 31)
	case PalRdirql:
		u.other.Add(1)
		out.writeReg(regV0, uint64(cpu.PS.IPL))
	case PalDi:
		u.other.Add(1)
		cpu.PS.IPL = 31
	case PalEi:
		u.other.Add(1)
		cpu.PS.IPL = 0

	case PalTbi:
		u.tlbOps.Add(1)
		u.invalidate(cpu, int64(a0), a1)
	case PalTbia:
		u.tlbOps.Add(1)
		u.invalidate(cpu, tbiASM, 0)
	case PalTbiap:
		u.tlbOps.Add(1)
		u.invalidate(cpu, tbiAP, 0)
	case PalTbis:
		u.tlbOps.Add(1)
		u.invalidate(cpu, tbiS, a0)

	case PalWrvptptr:
		u.tlbOps.Add(1)
		u.ipr(cpu.ID).vptb = a0
	case PalRdvptb:
		u.tlbOps.Add(1)
		out.writeReg(regV0, u.ipr(cpu.ID).vptb)

	case PalWrent:
		u.other.Add(1)
		u.ipr(cpu.ID).entries[a1&7] = a0
	case PalWrkgp:
		u.other.Add(1)
		u.ipr(cpu.ID).kgp = a0
	case PalWrusp:
		u.other.Add(1)
		u.ipr(cpu.ID).usp = a0
	case PalRdusp:
		u.other.Add(1)
		out.writeReg(regV0, u.ipr(cpu.ID).usp)

	case PalWhami:
		u.other.Add(1)
		out.writeReg(regV0, uint64(cpu.ID))

	case PalRetsys:
		// Return to user mode. Exception frames belong to the harness;
		// the architectural effects are the mode change and the loss of
		// the lock reservation.
		u.ctx.Add(1)
		cpu.PS.Mode = ModeUser
		u.rsv.Clear(cpu.ID)
	case PalRti, PalUrti:
		u.ctx.Add(1)
		u.rsv.Clear(cpu.ID)

	case PalRdps:
		u.other.Add(1)
		out.writeReg(regV0, psWord(cpu.PS))
	case PalRscc:
		u.other.Add(1)
		out.writeReg(regV0, cpu.Cycles)

	case PalProber, PalProbew:
		// Sparse memory backs every address, so probes always succeed.
		u.other.Add(1)
		out.writeReg(regV0, 1)

	case PalBpt:
		u.traps.Add(1)
		return NewTrap(ExcBreakpoint)
	case PalBugchk:
		u.traps.Add(1)
		return NewTrap(ExcBugCheck)
	case PalGentrap:
		// a0 carries the software trap code.
		u.traps.Add(1)
		return TrapAt(ExcGenericTrap, a0)

	case PalCallsys:
		u.syscalls.Add(1)
		return u.handler.Syscall(cpu, out)

	case PalRdunique:
		u.other.Add(1)
		out.writeReg(regV0, cpu.Unique)
	case PalWrunique:
		u.other.Add(1)
		cpu.Unique = a0

	default:
		return NewTrap(ExcIllegalOpcode)
	}
	return nil
}

// invalidate routes one TBI dispatch to the bound translation structures.
// Unassigned selector values invalidate everything, the architecture
// leaving their effect unpredictable.
func (u *PalUnit) invalidate(cpu *CPU, selector int64, va uint64) {
	if u.tlb == nil {
		return
	}
	switch selector {
	case tbiAP:
		u.tlb.InvalidateASN(u.ipr(cpu.ID).asn)
	case tbiSI, tbiSD, tbiS:
		u.tlb.InvalidatePage(u.ipr(cpu.ID).asn, va)
	default:
		u.tlb.InvalidateAll()
	}
}

// psWord renders the processor status as RDPS reports it: IPL in bits
// 4:0, current mode in bits 6:5, FEN in bit 7.
func psWord(ps PS) uint64 {
	w := uint64(ps.IPL & 31)
	w |= uint64(ps.Mode&3) << 5
	if ps.FEN {
		w |= 1 << 7
	}
	return w
}
