package codec

const (
	escsDelimiter = 0x7E
	escsEscape    = 0x7D
	escsXOR       = 0x20
)

// EncodeESCS wraps payload in an HDLC-style escaped frame: delimiter
// 0x7E at both ends, with any 0x7D/0x7E byte in the payload replaced
// by 0x7D followed by the original XOR 0x20 (spec.md 4.1).
func EncodeESCS(payload []byte) []byte {
	out := make([]byte, 0, 2*len(payload)+2)
	out = append(out, escsDelimiter)
	for _, b := range payload {
		if b == escsDelimiter || b == escsEscape {
			out = append(out, escsEscape, b^escsXOR)
		} else {
			out = append(out, b)
		}
	}
	out = append(out, escsDelimiter)
	return out
}

type escsState int

const (
	escsIdle escsState = iota
	escsInFrame
	escsEscaping
)

// ESCSDecoder is the inline decoder for the escape-framed codec. Its
// state machine is exactly {idle, in_frame, escape} from spec.md 4.1.
type ESCSDecoder struct {
	state escsState
	pos   int
}

func NewESCSDecoder() *ESCSDecoder {
	return &ESCSDecoder{state: escsIdle}
}

func (d *ESCSDecoder) Reset() {
	d.state = escsIdle
	d.pos = 0
}

func (d *ESCSDecoder) Push(b byte, dst []byte) (int, bool, error) {
	switch d.state {
	case escsIdle:
		if b == escsDelimiter {
			d.state = escsInFrame
			d.pos = 0
		}
		return 0, false, nil
	case escsEscaping:
		if d.pos >= len(dst) {
			d.Reset()
			return 0, false, errOverflow
		}
		dst[d.pos] = b ^ escsXOR
		d.pos++
		d.state = escsInFrame
		return 0, false, nil
	default: // escsInFrame
		switch b {
		case escsDelimiter:
			n := d.pos
			d.Reset()
			if n == 0 {
				// back-to-back delimiters: treat as the start of
				// the next frame rather than an empty one.
				d.state = escsInFrame
				return 0, false, nil
			}
			return n, true, nil
		case escsEscape:
			d.state = escsEscaping
			return 0, false, nil
		default:
			if d.pos >= len(dst) {
				d.Reset()
				return 0, false, errOverflow
			}
			dst[d.pos] = b
			d.pos++
			return 0, false, nil
		}
	}
}

func DecodeESCS(frame []byte, dst []byte) (int, error) {
	d := NewESCSDecoder()
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
