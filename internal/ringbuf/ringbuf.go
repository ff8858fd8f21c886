// Package ringbuf implements a byte-granular circular buffer, adapted
// from the CANopen SDO block-transfer FIFO idiom but trimmed to what
// Lasso's host uses it for: the TX pump's strobe and response queues,
// where a producer writes an encoded frame (optionally CRC-folding as
// it goes) and a single consumer drains it chunk by chunk. The
// alternate-read checkpoint machinery needed for block-transfer
// retries has no analogue here and was dropped.
package ringbuf

import "github.com/sleven79/lasso-host/internal/crc"

// Ring is a fixed-size circular byte buffer.
type Ring struct {
	buffer   []byte
	writePos int
	readPos  int
}

// New allocates a ring buffer of the given size.
func New(size int) *Ring {
	return &Ring{buffer: make([]byte, size)}
}

// Reset empties the buffer.
func (r *Ring) Reset() {
	r.readPos = 0
	r.writePos = 0
}

// Space returns the number of bytes that can still be written.
func (r *Ring) Space() int {
	left := r.readPos - r.writePos - 1
	if left < 0 {
		left += len(r.buffer)
	}
	return left
}

// Occupied returns the number of unread bytes.
func (r *Ring) Occupied() int {
	occupied := r.writePos - r.readPos
	if occupied < 0 {
		occupied += len(r.buffer)
	}
	return occupied
}

// WriteByte appends one byte, folding it into crcAccum if non-nil.
// Returns false if the buffer is full (byte was not written).
func (r *Ring) WriteByte(b byte, crcAccum *crc.CRC16) bool {
	next := r.writePos + 1
	if next == r.readPos || (next == len(r.buffer) && r.readPos == 0) {
		return false
	}
	r.buffer[r.writePos] = b
	if crcAccum != nil {
		crcAccum.Single(b)
	}
	if next == len(r.buffer) {
		r.writePos = 0
	} else {
		r.writePos = next
	}
	return true
}

// Read drains up to len(dst) unread bytes into dst, returning the
// count actually read.
func (r *Ring) Read(dst []byte) int {
	n := 0
	for n < len(dst) {
		if r.readPos == r.writePos {
			break
		}
		dst[n] = r.buffer[r.readPos]
		n++
		r.readPos++
		if r.readPos == len(r.buffer) {
			r.readPos = 0
		}
	}
	return n
}

// Peek copies up to len(dst) unread bytes into dst without advancing
// the read cursor, letting a caller try a transport send and only
// commit the bytes as consumed via Advance once the send succeeds -
// the TX pump's "busy" retry needs this (spec.md 4.7/5: "the pump
// leaves frame pointers unchanged and retries next tick").
func (r *Ring) Peek(dst []byte) int {
	n := 0
	pos := r.readPos
	for n < len(dst) {
		if pos == r.writePos {
			break
		}
		dst[n] = r.buffer[pos]
		n++
		pos++
		if pos == len(r.buffer) {
			pos = 0
		}
	}
	return n
}

// Advance discards n already-peeked bytes from the front of the
// buffer. n must not exceed Occupied().
func (r *Ring) Advance(n int) {
	r.readPos = (r.readPos + n) % len(r.buffer)
}

// WriteBytes appends b in full, folding each byte into crcAccum if
// non-nil. Returns false (no bytes written) if b does not fit.
func (r *Ring) WriteBytes(b []byte, crcAccum *crc.CRC16) bool {
	if len(b) > r.Space() {
		return false
	}
	for _, c := range b {
		r.WriteByte(c, crcAccum)
	}
	return true
}
