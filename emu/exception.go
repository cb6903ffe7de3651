// Package emu provides functional Alpha AXP emulation.
package emu

import "fmt"

// Exception identifies an architectural fault raised by an instruction.
type Exception uint8

// Exception kinds surfaced through Outcome.Exception.
const (
	ExcNone Exception = iota
	ExcIllegalOpcode
	ExcPrivilegeViolation
	ExcAlignmentFault
	ExcIntegerOverflow
	ExcDivideByZero
	ExcFPInvalidOp
	ExcFPOverflow
	ExcFPUnderflow
	ExcFPInexact
	ExcFPDivideByZero
	ExcTranslationFault
	ExcProtectionViolation
	ExcInvalidAddress
	ExcBreakpoint
	ExcBugCheck
	ExcGenericTrap
)

var excNames = map[Exception]string{
	ExcNone:                "none",
	ExcIllegalOpcode:       "illegal opcode",
	ExcPrivilegeViolation:  "privilege violation",
	ExcAlignmentFault:      "alignment fault",
	ExcIntegerOverflow:     "integer overflow",
	ExcDivideByZero:        "divide by zero",
	ExcFPInvalidOp:         "fp invalid operation",
	ExcFPOverflow:          "fp overflow",
	ExcFPUnderflow:         "fp underflow",
	ExcFPInexact:           "fp inexact",
	ExcFPDivideByZero:      "fp divide by zero",
	ExcTranslationFault:    "translation fault",
	ExcProtectionViolation: "protection violation",
	ExcInvalidAddress:      "invalid address",
	ExcBreakpoint:          "breakpoint",
	ExcBugCheck:            "bugcheck",
	ExcGenericTrap:         "generic trap",
}

func (e Exception) String() string {
	if s, ok := excNames[e]; ok {
		return s
	}
	return "unknown"
}

// Fatal reports whether the exception terminates the core loop for the
// raising CPU. Everything else is recoverable by the harness.
func (e Exception) Fatal() bool {
	return e == ExcBugCheck
}

// Trap is the typed failure family executors return. The dispatcher is
// the only place a Trap becomes an Outcome exception.
type Trap struct {
	Kind Exception
	Addr uint64 // faulting address when one applies
}

func (t *Trap) Error() string {
	if t.Addr != 0 {
		return fmt.Sprintf("%s at %#x", t.Kind, t.Addr)
	}
	return t.Kind.String()
}

// NewTrap returns a Trap of the given kind.
func NewTrap(kind Exception) *Trap {
	return &Trap{Kind: kind}
}

// TrapAt returns a Trap carrying the faulting address.
func TrapAt(kind Exception, addr uint64) *Trap {
	return &Trap{Kind: kind, Addr: addr}
}
