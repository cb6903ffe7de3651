package emu

// RegWrite is a staged register update. Staged writes are committed by
// the dispatcher only when the instruction raised no exception.
type RegWrite struct {
	FP    bool
	Reg   uint8
	Value uint64
}

// MemWrite records a memory effect an instruction performed.
type MemWrite struct {
	Addr  uint64
	Size  uint8
	Value uint64
}

// StallReason explains a requested replay.
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

var stallNames = map[StallReason]string{
	StallNone:       "none",
	StallCollision:  "collision",
	StallPermission: "permission",
	StallResource:   "resource",
	StallDependency: "dependency",
	StallQueueFull:  "queue-full",
}

func (r StallReason) String() string {
	if s, ok := stallNames[r]; ok {
		return s
	}
	return "unknown"
}

// Outcome is the structured result of executing one instruction.
type Outcome struct {
	// NextPC is the architectural successor of the executed instruction.
	NextPC uint64

	// RegWrites are the register updates staged by the executor.
	RegWrites []RegWrite

	// MemWrites records memory effects already applied.
	MemWrites []MemWrite

	// Cycles consumed, from the latency table.
	Cycles uint64

	// Exception raised, ExcNone when the instruction completed.
	Exception Exception

	// Replay asks the harness to re-issue the instruction later.
	Replay bool

	// Stall explains the replay request.
	Stall StallReason

	// Halt is set by CALL_PAL HALT; the harness stops the CPU loop.
	Halt bool

	// PalOp names the privileged operation a CALL_PAL resolved to.
	PalOp PalOp

	// Mispredicted is set when the branch predictor disagreed with the
	// resolved direction or target. Informational only.
	Mispredicted bool
}

func (o *Outcome) writeReg(reg uint8, value uint64) {
	if reg >= 31 {
		return
	}
	o.RegWrites = append(o.RegWrites, RegWrite{Reg: reg, Value: value})
}

func (o *Outcome) writeFReg(reg uint8, value uint64) {
	if reg >= 31 {
		return
	}
	o.RegWrites = append(o.RegWrites, RegWrite{FP: true, Reg: reg, Value: value})
}

func (o *Outcome) recordWrite(addr uint64, size uint8, value uint64) {
	o.MemWrites = append(o.MemWrites, MemWrite{Addr: addr, Size: size, Value: value})
}
