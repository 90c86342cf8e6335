package wire

import "fmt"

// ProtocolVersion is the wire protocol version the codec encodes for
// or decodes against. V4_2_0 is the boundary spec.md §4.6 pivots the
// mode encoding on.
type ProtocolVersion int32

const V4_2_0 ProtocolVersion = 420

// DuplicateKeyAction is the `duplicateKeyAction` enum from spec.md §3.
type DuplicateKeyAction int32

const (
	DuplicateKeyIgnore DuplicateKeyAction = iota
	DuplicateKeyOverwrite
	DuplicateKeyUpdateOrFail
)

// Mode is the per-request set of booleans and the duplicate-key
// action spec.md §4.6 encodes either as a packed bitfield (>= V4_2_0)
// or as separate fields (< V4_2_0).
type Mode struct {
	ContinueOnError     bool
	ValidateConstraints bool
	DuplicateKeyAction  DuplicateKeyAction
}

const (
	bitContinueOnError     = 1 << 0
	bitValidateConstraints = 1 << 1
	bitDuplicateKeyIgnore  = 1 << 2
	bitDuplicateKeyOverwrite = 1 << 3
	bitDuplicateKeyUpdateOrFail = 1 << 4
)

func encodeModeBitfield(m Mode) (int32, error) {
	var bits int32
	if m.ContinueOnError {
		bits |= bitContinueOnError
	}
	if m.ValidateConstraints {
		bits |= bitValidateConstraints
	}
	switch m.DuplicateKeyAction {
	case DuplicateKeyIgnore:
		bits |= bitDuplicateKeyIgnore
	case DuplicateKeyOverwrite:
		bits |= bitDuplicateKeyOverwrite
	case DuplicateKeyUpdateOrFail:
		bits |= bitDuplicateKeyUpdateOrFail
	default:
		return 0, fmt.Errorf("unknown duplicate key action %d", m.DuplicateKeyAction)
	}
	return bits, nil
}

func decodeModeBitfield(bits int32) (Mode, error) {
	var m Mode
	m.ContinueOnError = bits&bitContinueOnError != 0
	m.ValidateConstraints = bits&bitValidateConstraints != 0

	set := 0
	if bits&bitDuplicateKeyIgnore != 0 {
		m.DuplicateKeyAction = DuplicateKeyIgnore
		set++
	}
	if bits&bitDuplicateKeyOverwrite != 0 {
		m.DuplicateKeyAction = DuplicateKeyOverwrite
		set++
	}
	if bits&bitDuplicateKeyUpdateOrFail != 0 {
		m.DuplicateKeyAction = DuplicateKeyUpdateOrFail
		set++
	}
	if set != 1 {
		return Mode{}, fmt.Errorf("mode bitfield must set exactly one DUPLICATE_KEY_* bit, found %d", set)
	}
	return m, nil
}
