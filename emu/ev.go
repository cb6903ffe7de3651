package emu

// EVFamily selects the Alpha implementation generation being modeled.
// It controls the AMASK feature mask, the IMPLVER value, and the PALcode
// entry numbering used by the PAL unit.
type EVFamily int

// Supported implementation generations. EV67 and EV68 share the EV6
// core but report the CIX extension.
const (
	EV4  EVFamily = 4
	EV5  EVFamily = 5
	EV6  EVFamily = 6
	EV67 EVFamily = 67
	EV68 EVFamily = 68
	EV7  EVFamily = 7
)

func (f EVFamily) String() string {
	switch f {
	case EV4:
		return "EV4"
	case EV5:
		return "EV5"
	case EV6:
		return "EV6"
	case EV67:
		return "EV67"
	case EV68:
		return "EV68"
	case EV7:
		return "EV7"
	default:
		return "EV?"
	}
}

// Valid reports whether f names a generation the simulator models.
func (f EVFamily) Valid() bool {
	switch f {
	case EV4, EV5, EV6, EV67, EV68, EV7:
		return true
	}
	return false
}

// AmaskBits returns the architecture feature bits implemented by the
// family. AMASK clears these bits from its operand.
//
// Bit 0: BWX byte/word extension. Bit 1: FIX square root and FP/integer
// moves. Bit 2: CIX count extension. Bit 8: MVI multimedia extension.
// Bit 9: precise arithmetic trap reporting.
func (f EVFamily) AmaskBits() uint64 {
	switch f {
	case EV4, EV5:
		return 0
	case EV6:
		return 0x303
	case EV67, EV68, EV7:
		return 0x307
	default:
		return 0
	}
}

// Implver returns the value written by the IMPLVER instruction.
func (f EVFamily) Implver() uint64 {
	switch f {
	case EV4:
		return 0
	case EV5:
		return 1
	case EV6, EV67, EV68:
		return 2
	case EV7:
		return 3
	default:
		return 0
	}
}
