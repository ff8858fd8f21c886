// Package codec implements the three wire framing codecs named in
// spec.md 4.1: COBS, ESCS and RN. Each codec provides a one-shot
// Encode and a byte-at-a-time inline Decoder, since the host never
// has a whole frame buffered before a decision must be made about it
// (spec.md 5: "single-threaded, cooperative, no blocking").
package codec

import lasso "github.com/sleven79/lasso-host"

// Kind identifies which framing codec a Config or strobe buffer uses.
type Kind uint8

const (
	RN Kind = iota
	COBS
	ESCS
)

func (k Kind) String() string {
	switch k {
	case RN:
		return "rn"
	case COBS:
		return "cobs"
	case ESCS:
		return "escs"
	default:
		return "unknown"
	}
}

// Overhead returns the worst-case encoded size of a payload of n bytes
// (payload plus framing). ESCS is doubled because every payload byte
// can in the worst case require an escape pair. pkg/planner does not
// call it; it applies its own fixed per-codec overheads (spec.md 4.4).
func (k Kind) Overhead(n int) int {
	switch k {
	case RN:
		return n + 2 // payload + "\r\n"
	case COBS:
		// one leading 0x00, one trailing 0x00/0xFF, plus one code
		// byte per started block of up to 253 data bytes.
		blocks := n/253 + 1
		return n + blocks + 2
	case ESCS:
		return 2*n + 2 // every byte may escape, plus delimiters
	default:
		return n
	}
}

// Decoder is the common interface all three inline decoders satisfy.
// Push feeds one incoming byte, writing any decoded payload bytes into
// dst starting at the decoder's internal cursor. It returns the
// decoded frame length and true when a full frame has just completed;
// a length of 0 on completion means an empty/duplicate delimiter and
// should be ignored by the caller, not treated as a zero-length frame.
type Decoder interface {
	Push(b byte, dst []byte) (frameLen int, complete bool, err error)
	Reset()
}

// errOverflow is returned by every decoder when dst is too small to
// hold the decoded frame; spec.md 4.1 describes this as the frame
// being abandoned, which here means the decoder resets itself so the
// next delimiter starts a clean frame.
var errOverflow = lasso.ErrOverflow
