// Package latency provides instruction timing models for the simulator.
//
// The latency values approximate EV6-generation issue-to-retire counts
// and can be configured via TimingConfig.
package latency

import (
	"github.com/sarchlab/axpsim/insts"
)

// Table provides instruction latency lookups. It satisfies the engine's
// cycle model, so a configured table can replace the built-in one.
type Table struct {
	config *TimingConfig
}

// NewTable creates a latency table with default EV6 timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a latency table with a custom timing
// configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// GetLatency returns the execution latency in cycles for the given
// instruction. For variable-latency operations it returns the latency
// of the encoded datum width.
func (t *Table) GetLatency(inst *insts.Instruction) uint64 {
	if inst == nil {
		return 1
	}

	switch inst.Class {
	case insts.ClassInteger:
		return t.integerLatency(inst)

	case insts.ClassLoadStore, insts.ClassUnaligned, insts.ClassLLSC:
		if inst.Opcode == insts.OpLDA || inst.Opcode == insts.OpLDAH {
			return t.config.IntegerLatency
		}
		if isStore(inst.Opcode) {
			return t.config.StoreLatency
		}
		return t.config.LoadLatency

	case insts.ClassBytes, insts.ClassBits:
		return t.config.ByteLatency

	case insts.ClassFP:
		return t.fpLatency(inst)

	case insts.ClassControl:
		return t.config.BranchLatency

	case insts.ClassMemOrder:
		if inst.Format == insts.FormatOperate {
			return t.config.AtomicLatency
		}
		return t.config.BarrierLatency

	case insts.ClassPal:
		return t.config.PalLatency

	default:
		return 1
	}
}

// Cycles implements the engine's cycle model.
func (t *Table) Cycles(inst *insts.Instruction) uint64 {
	return t.GetLatency(inst)
}

// BranchCycles returns the control-flow cost, including the front-end
// refill penalty when the predictor missed.
func (t *Table) BranchCycles(mispredicted bool) uint64 {
	if mispredicted {
		return t.config.BranchLatency + t.config.BranchMispredictPenalty
	}
	return t.config.BranchLatency
}

func (t *Table) integerLatency(inst *insts.Instruction) uint64 {
	if inst.Opcode != insts.OpINTM {
		return t.config.IntegerLatency
	}
	switch inst.Fn {
	case insts.FnMULQ, insts.FnMULQV, insts.FnUMULH:
		return t.config.Multiply64Latency
	default:
		return t.config.MultiplyLatency
	}
}

// fpLatency separates divide and square root, whose cost depends on the
// encoded precision, from the pipelined operate group.
func (t *Table) fpLatency(inst *insts.Instruction) uint64 {
	op := inst.Fn & 0x00F
	single := inst.Fn&0x030 == 0

	switch inst.Opcode {
	case insts.OpFLTI, insts.OpFLTV:
		if op == 0x3 {
			if single {
				return t.config.FPDivSingleLatency
			}
			return t.config.FPDivDoubleLatency
		}
	case insts.OpITFP:
		if op == 0xB {
			if single {
				return t.config.FPSqrtSingleLatency
			}
			return t.config.FPSqrtDoubleLatency
		}
	}
	return t.config.FPLatency
}

// IsMemoryOp returns true if the instruction accesses memory. Address
// computations (LDA/LDAH) do not.
func (t *Table) IsMemoryOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	switch inst.Class {
	case insts.ClassLoadStore, insts.ClassUnaligned, insts.ClassLLSC:
		return inst.Opcode != insts.OpLDA && inst.Opcode != insts.OpLDAH
	}
	return false
}

// IsLoadOp returns true if the instruction reads memory.
func (t *Table) IsLoadOp(inst *insts.Instruction) bool {
	return t.IsMemoryOp(inst) && !isStore(inst.Opcode)
}

// IsStoreOp returns true if the instruction writes memory.
func (t *Table) IsStoreOp(inst *insts.Instruction) bool {
	return t.IsMemoryOp(inst) && isStore(inst.Opcode)
}

// IsBranchOp returns true for control-transfer instructions.
// Conditional moves share the control class but not the branch cost
// structure, so they are excluded.
func (t *Table) IsBranchOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	return inst.Class == insts.ClassControl && inst.Format != insts.FormatOperate
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}

func isStore(opcode uint8) bool {
	switch opcode {
	case insts.OpSTB, insts.OpSTW, insts.OpSTL, insts.OpSTQ,
		insts.OpSTF, insts.OpSTG, insts.OpSTS, insts.OpSTT,
		insts.OpSTQ_U, insts.OpSTL_C, insts.OpSTQ_C:
		return true
	}
	return false
}
