package codec

import lasso "github.com/sleven79/lasso-host"

// EncodeRN appends the "\r\n" line terminator spec.md 4.1 uses for
// the plain-ASCII framing mode. No CRC, no byte stuffing.
func EncodeRN(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+2)
	out = append(out, payload...)
	out = append(out, '\r', '\n')
	return out
}

// RNDecoder is the inline decoder for RN framing: it accumulates
// bytes until it sees "\n", requiring the immediately preceding byte
// to be "\r". A bare "\n" with no preceding "\r" is an illegal
// sequence (spec.md 4.1) and resets the accumulator.
type RNDecoder struct {
	pos    int
	sawCR  bool
}

func NewRNDecoder() *RNDecoder { return &RNDecoder{} }

func (d *RNDecoder) Reset() {
	d.pos = 0
	d.sawCR = false
}

func (d *RNDecoder) Push(b byte, dst []byte) (int, bool, error) {
	if b == '\n' {
		if !d.sawCR {
			d.Reset()
			return 0, false, lasso.ErrIllegalSequence
		}
		// the trailing \r belongs to the terminator, not the payload.
		n := d.pos
		d.Reset()
		return n, true, nil
	}
	if d.sawCR {
		// the held-back \r was not followed by \n: it is payload data.
		if d.pos >= len(dst) {
			d.Reset()
			return 0, false, errOverflow
		}
		dst[d.pos] = '\r'
		d.pos++
	}
	d.sawCR = b == '\r'
	if d.sawCR {
		return 0, false, nil
	}
	if d.pos >= len(dst) {
		d.Reset()
		return 0, false, errOverflow
	}
	dst[d.pos] = b
	d.pos++
	return 0, false, nil
}

func DecodeRN(frame []byte, dst []byte) (int, error) {
	d := NewRNDecoder()
	var n int
	for _, b := range frame {
		l, complete, err := d.Push(b, dst)
		if err != nil {
			return 0, err
		}
		if complete {
			n = l
		}
	}
	return n, nil
}
