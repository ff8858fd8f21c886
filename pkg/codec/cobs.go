package codec

// fullRunCode is the code-byte value that means "253 literal bytes
// follow with no implicit terminating zero" (spec.md 4.1: "If the
// 254-byte frame is full with no zero found, a continuation code 254
// is emitted"). A normal block's code is 1..253, meaning code-1
// literal bytes followed by an implicit zero.
const fullRunCode = 254

// maxRunBytes is the number of literal bytes in a full (unterminated)
// run, i.e. fullRunCode-1.
const maxRunBytes = fullRunCode - 1

// EncodeCOBS returns payload wrapped in a complete COBS frame: a
// leading 0x00, the classic COBS-encoded body, and a trailing 0x00.
// Matches spec.md 8 scenario S6 byte-for-byte.
func EncodeCOBS(payload []byte) []byte {
	// Worst case: every byte is non-zero and runs are capped at
	// maxRunBytes, needing one extra code byte per run, plus the two
	// frame delimiters.
	out := make([]byte, 0, len(payload)+len(payload)/maxRunBytes+4)
	out = append(out, 0x00) // leading delimiter

	codePos := len(out)
	out = append(out, 0) // placeholder
	run := 0

	flush := func(code byte) {
		out[codePos] = code
	}
	for _, b := range payload {
		if b == 0x00 {
			flush(byte(run + 1))
			codePos = len(out)
			out = append(out, 0)
			run = 0
			continue
		}
		out = append(out, b)
		run++
		if run == maxRunBytes {
			flush(fullRunCode)
			codePos = len(out)
			out = append(out, 0)
			run = 0
		}
	}
	flush(byte(run + 1))
	out = append(out, 0x00) // trailing delimiter
	return out
}

// COBSDecoder is the inline (streaming) COBS decoder described in
// spec.md 4.1: it consumes one wire byte at a time and reconstructs
// the original payload into a caller-supplied buffer, since a full
// frame is never buffered ahead of decoding.
type COBSDecoder struct {
	pos          int
	awaitingCode bool
	pendingZero  bool
	wasFullRun   bool
	remaining    int
}

// NewCOBSDecoder returns a decoder ready to receive the first byte of
// a frame.
func NewCOBSDecoder() *COBSDecoder {
	d := &COBSDecoder{}
	d.Reset()
	return d
}

// Reset discards any partially-decoded frame.
func (d *COBSDecoder) Reset() {
	d.pos = 0
	d.awaitingCode = true
	d.pendingZero = false
	d.wasFullRun = false
	d.remaining = 0
}

// Push implements Decoder. The implicit zero a block's code byte
// promises is deferred until the decoder knows whether the stream
// continues (another code byte) or the frame actually ends (an
// explicit 0x00 delimiter) — a real terminating zero never gets an
// extra implicit zero appended after it.
func (d *COBSDecoder) Push(b byte, dst []byte) (int, bool, error) {
	if b == 0x00 {
		n := d.pos
		d.Reset()
		return n, true, nil
	}

	if d.awaitingCode {
		if d.pendingZero {
			if d.pos >= len(dst) {
				d.Reset()
				return 0, false, errOverflow
			}
			dst[d.pos] = 0x00
			d.pos++
			d.pendingZero = false
		}
		d.wasFullRun = b == fullRunCode
		d.remaining = int(b) - 1
		d.awaitingCode = false
		if d.remaining == 0 {
			d.pendingZero = !d.wasFullRun
			d.awaitingCode = true
		}
		return 0, false, nil
	}

	if d.pos >= len(dst) {
		d.Reset()
		return 0, false, errOverflow
	}
	dst[d.pos] = b
	d.pos++
	d.remaining--
	if d.remaining == 0 {
		d.awaitingCode = true
		d.pendingZero = !d.wasFullRun
	}
	return 0, false, nil
}

// DecodeCOBS is a convenience one-shot decode over a complete frame
// (including its leading/trailing 0x00 delimiters), for tests and
// callers that already have the whole frame in hand.
func DecodeCOBS(frame []byte, dst []byte) (int, error) {
	d := NewCOBSDecoder()
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
