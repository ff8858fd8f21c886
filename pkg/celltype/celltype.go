// Package celltype defines the packed 16-bit data cell type field: a
// single on-wire value encoding a cell's kind, byte width, and access
// flags. The bit layout is part of the protocol and must stay stable.
package celltype

// Kind identifies the value family a cell holds.
type Kind uint8

const (
	KindBool Kind = iota
	KindChar
	KindUint
	KindInt
	KindFloat
)

// Type is the packed 16-bit cell type word.
//
//	bit 0    enabled in current strobe
//	bits 1-3 byte width code (0->1, 1->2, 2->4, 3->8)
//	bits 4-7 kind
//	bit 8    writeable by client
//	bit 9    permanent strobe member
type Type uint16

const (
	bitEnabled    = 0
	shiftWidth    = 1
	maskWidth     = 0x7
	shiftKind     = 4
	maskKind      = 0xF
	bitWriteable  = 8
	bitPermanent  = 9
)

// widthCode maps a byte width to its 3-bit wire code (a sequential
// index, not the byte count itself: 0,1,2,3 encode widths 1,2,4,8 -
// three bits cannot hold the literal value 8), and back.
var widthToCode = map[uint8]uint8{1: 0, 2: 1, 4: 2, 8: 3}
var codeToWidth = map[uint8]uint8{0: 1, 1: 2, 2: 4, 3: 8}

// New builds a Type from its components. byteWidth must be one of
// 1, 2, 4, 8 or New panics: this is a programming-time invariant, not
// a runtime input to validate.
func New(kind Kind, byteWidth uint8, enabled, writeable, permanent bool) Type {
	code, ok := widthToCode[byteWidth]
	if !ok {
		panic("celltype: byte width must be 1, 2, 4 or 8")
	}
	var t Type
	if enabled || permanent {
		t |= 1 << bitEnabled
	}
	t |= Type(code&maskWidth) << shiftWidth
	t |= Type(uint8(kind)&maskKind) << shiftKind
	if writeable {
		t |= 1 << bitWriteable
	}
	if permanent {
		t |= 1 << bitPermanent
	}
	return t
}

// Enabled reports whether the cell currently contributes to the strobe.
func (t Type) Enabled() bool { return t&(1<<bitEnabled) != 0 }

// ByteWidth returns the per-element byte width (1, 2, 4 or 8).
func (t Type) ByteWidth() uint8 {
	code := uint8((t >> shiftWidth) & maskWidth)
	return codeToWidth[code]
}

// Kind returns the value family.
func (t Type) Kind() Kind {
	return Kind((t >> shiftKind) & maskKind)
}

// Writeable reports whether a client may SetDataCellValue this cell.
func (t Type) Writeable() bool { return t&(1<<bitWriteable) != 0 }

// Permanent reports whether the cell can never be disabled.
func (t Type) Permanent() bool { return t&(1<<bitPermanent) != 0 }

// WithEnabled returns a copy of t with the enabled bit set or cleared.
// Permanent cells always report enabled regardless of the requested
// value, matching spec.md's "permanent bit set -> cell is forcibly
// enabled" rule.
func (t Type) WithEnabled(enabled bool) Type {
	if t.Permanent() {
		enabled = true
	}
	if enabled {
		return t | (1 << bitEnabled)
	}
	return t &^ (1 << bitEnabled)
}

// String renders the kind as a short ASCII tag, used by wire.ASCII
// replies to GetDataCellParams.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindChar:
		return "char"
	case KindUint:
		return "uint"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return "unknown"
	}
}
