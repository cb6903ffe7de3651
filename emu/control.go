package emu

import (
	"sync/atomic"

	"github.com/sarchlab/axpsim/insts"
)

// ControlUnit executes branches, jumps, and integer conditional moves.
// Every resolved branch trains the per-CPU predictor; the outcome
// reports whether the prediction would have redirected the front end.
type ControlUnit struct {
	predictors []*Predictor

	branches atomic.Uint64
	taken    atomic.Uint64
	jumps    atomic.Uint64
	moves    atomic.Uint64
}

// NewControlUnit creates a control-flow executor over the per-CPU
// predictors.
func NewControlUnit(predictors []*Predictor) *ControlUnit {
	return &ControlUnit{predictors: predictors}
}

// Branches returns the number of branch instructions resolved.
func (u *ControlUnit) Branches() uint64 {
	return u.branches.Load()
}

// Taken returns how many of them redirected the PC.
func (u *ControlUnit) Taken() uint64 {
	return u.taken.Load()
}

// Jumps returns the number of register-indirect jumps.
func (u *ControlUnit) Jumps() uint64 {
	return u.jumps.Load()
}

// ConditionalMoves returns the number of CMOV instructions executed.
func (u *ControlUnit) ConditionalMoves() uint64 {
	return u.moves.Load()
}

// Execute runs one control-flow instruction.
func (u *ControlUnit) Execute(cpu *CPU, inst *insts.Instruction, out *Outcome) error {
	switch inst.Opcode {
	case insts.OpINTL:
		u.moves.Add(1)
		if cmovCondition(inst.Fn, cpu.ReadReg(inst.Ra)) {
			out.writeReg(inst.Rc, operandB(cpu, inst))
		}
		return nil
	case insts.OpJSR:
		return u.jump(cpu, inst, out)
	}
	return u.branch(cpu, inst, out)
}

// jump handles the four opcode 0x1A variants, which share one
// datapath: the target comes from Rb with the low bits cleared, and
// the return address lands in Ra.
func (u *ControlUnit) jump(cpu *CPU, inst *insts.Instruction, out *Outcome) error {
	u.jumps.Add(1)
	pred := u.predictors[cpu.ID].Predict(cpu.PC)

	target := cpu.ReadReg(inst.Rb) &^ 3
	out.writeReg(inst.Ra, cpu.PC+4)
	out.NextPC = target

	u.predictors[cpu.ID].Update(cpu.PC, true, target)
	out.Mispredicted = mispredicted(pred, true, target)
	return nil
}

// branch resolves a PC-relative branch. BR and BSR additionally write
// the return address; the FP forms test Fa with the FCMOV predicates.
func (u *ControlUnit) branch(cpu *CPU, inst *insts.Instruction, out *Outcome) error {
	u.branches.Add(1)
	pred := u.predictors[cpu.ID].Predict(cpu.PC)

	target := uint64(int64(cpu.PC) + 4 + int64(inst.BranchDisp)*4)
	taken := true
	switch inst.Opcode {
	case insts.OpBR, insts.OpBSR:
		out.writeReg(inst.Ra, cpu.PC+4)
	case insts.OpFBEQ, insts.OpFBNE, insts.OpFBLT,
		insts.OpFBGE, insts.OpFBLE, insts.OpFBGT:
		taken = fcmovCondition(fpBranchPredicate(inst.Opcode), cpu.ReadFReg(inst.Ra))
	default:
		taken = branchCondition(inst.Opcode, cpu.ReadReg(inst.Ra))
	}

	if taken {
		u.taken.Add(1)
		out.NextPC = target
	}
	u.predictors[cpu.ID].Update(cpu.PC, taken, target)
	out.Mispredicted = mispredicted(pred, taken, target)
	return nil
}

// mispredicted reports whether the front end would have gone the wrong
// way: wrong direction, or a taken branch whose target the BTB did not
// supply.
func mispredicted(pred Prediction, taken bool, target uint64) bool {
	if pred.Taken != taken {
		return true
	}
	return taken && (!pred.TargetKnown || pred.Target != target)
}

// fpBranchPredicate maps an FP branch opcode onto the matching FCMOV
// predicate. NaN satisfies only FBNE.
func fpBranchPredicate(opcode uint8) uint16 {
	switch opcode {
	case insts.OpFBEQ:
		return insts.FnFCMOVEQ
	case insts.OpFBNE:
		return insts.FnFCMOVNE
	case insts.OpFBLT:
		return insts.FnFCMOVLT
	case insts.OpFBGE:
		return insts.FnFCMOVGE
	case insts.OpFBLE:
		return insts.FnFCMOVLE
	}
	return insts.FnFCMOVGT
}

// branchCondition evaluates an integer branch predicate against Ra.
func branchCondition(opcode uint8, v uint64) bool {
	switch opcode {
	case insts.OpBEQ:
		return v == 0
	case insts.OpBNE:
		return v != 0
	case insts.OpBLT:
		return int64(v) < 0
	case insts.OpBLE:
		return int64(v) <= 0
	case insts.OpBGT:
		return int64(v) > 0
	case insts.OpBGE:
		return int64(v) >= 0
	case insts.OpBLBC:
		return v&1 == 0
	case insts.OpBLBS:
		return v&1 == 1
	}
	return false
}

// cmovCondition evaluates a conditional-move predicate against Ra.
func cmovCondition(fn uint16, v uint64) bool {
	switch fn {
	case insts.FnCMOVEQ:
		return v == 0
	case insts.FnCMOVNE:
		return v != 0
	case insts.FnCMOVLT:
		return int64(v) < 0
	case insts.FnCMOVGE:
		return int64(v) >= 0
	case insts.FnCMOVLE:
		return int64(v) <= 0
	case insts.FnCMOVGT:
		return int64(v) > 0
	case insts.FnCMOVLBS:
		return v&1 == 1
	case insts.FnCMOVLBC:
		return v&1 == 0
	}
	return false
}
