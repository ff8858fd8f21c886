// Package msgpack implements the minimal subset of MessagePack that
// Lasso's wire formatter needs: array headers and the scalar types a
// data cell can hold (unsigned/signed integers, float32/float64,
// strings and raw byte strings). No pack example in the retrieved
// corpus imports a MessagePack library, so this is a small from-scratch
// encoder/decoder built on encoding/binary and math, not a stdlib
// stand-in for an ecosystem package (see DESIGN.md).
//
// One MessagePack detail matters beyond the scalar encodings: 0xC1 is
// permanently reserved as "never used" by the format. spec.md's design
// notes repurpose that byte as a strobe/reply discriminator: a
// well-formed MessagePack reply never begins with 0xC1, so a client
// can distinguish an unsolicited control/strobe frame from a
// GetDataCellValue-style reply by looking at the first byte alone.
package msgpack

import (
	"encoding/binary"
	"math"

	lasso "github.com/sleven79/lasso-host"
)

// ControlByte is the reserved MessagePack head byte repurposed as the
// strobe/reply discriminator.
const ControlByte = 0xC1

// Writer appends MessagePack-encoded values to an internal byte slice.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with capacity hinted by size.
func NewWriter(size int) *Writer {
	return &Writer{buf: make([]byte, 0, size)}
}

// Bytes returns the encoded bytes written so far.
func (w *Writer) Bytes() []byte { return w.buf }

// Reset clears the writer for reuse.
func (w *Writer) Reset() { w.buf = w.buf[:0] }

// WriteControlByte emits the reserved 0xC1 discriminator.
func (w *Writer) WriteControlByte() { w.buf = append(w.buf, ControlByte) }

// WriteRaw appends already-encoded MessagePack bytes verbatim, for
// callers assembling an array element-by-element from pre-built
// values (pkg/interp's reply builder).
func (w *Writer) WriteRaw(b []byte) { w.buf = append(w.buf, b...) }

// WriteArrayHeader emits a MessagePack array header for n elements.
func (w *Writer) WriteArrayHeader(n int) {
	switch {
	case n < 16:
		w.buf = append(w.buf, 0x90|byte(n))
	case n < 1<<16:
		w.buf = append(w.buf, 0xDC)
		w.buf = appendU16(w.buf, uint16(n))
	default:
		w.buf = append(w.buf, 0xDD)
		w.buf = appendU32(w.buf, uint32(n))
	}
}

// WriteUint emits the smallest unsigned integer encoding that fits v.
func (w *Writer) WriteUint(v uint64) {
	switch {
	case v <= 0x7F:
		w.buf = append(w.buf, byte(v))
	case v <= 0xFF:
		w.buf = append(w.buf, 0xCC, byte(v))
	case v <= 0xFFFF:
		w.buf = append(w.buf, 0xCD)
		w.buf = appendU16(w.buf, uint16(v))
	case v <= 0xFFFFFFFF:
		w.buf = append(w.buf, 0xCE)
		w.buf = appendU32(w.buf, uint32(v))
	default:
		w.buf = append(w.buf, 0xCF)
		w.buf = appendU64(w.buf, v)
	}
}

// WriteInt emits the smallest signed integer encoding that fits v.
func (w *Writer) WriteInt(v int64) {
	if v >= 0 {
		w.WriteUint(uint64(v))
		return
	}
	switch {
	case v >= -32:
		w.buf = append(w.buf, byte(v))
	case v >= math.MinInt8:
		w.buf = append(w.buf, 0xD0, byte(int8(v)))
	case v >= math.MinInt16:
		w.buf = append(w.buf, 0xD1)
		w.buf = appendU16(w.buf, uint16(int16(v)))
	case v >= math.MinInt32:
		w.buf = append(w.buf, 0xD2)
		w.buf = appendU32(w.buf, uint32(int32(v)))
	default:
		w.buf = append(w.buf, 0xD3)
		w.buf = appendU64(w.buf, uint64(v))
	}
}

// WriteFloat32 emits a 4-byte MessagePack float.
func (w *Writer) WriteFloat32(v float32) {
	w.buf = append(w.buf, 0xCA)
	w.buf = appendU32(w.buf, math.Float32bits(v))
}

// WriteFloat64 emits an 8-byte MessagePack float.
func (w *Writer) WriteFloat64(v float64) {
	w.buf = append(w.buf, 0xCB)
	w.buf = appendU64(w.buf, math.Float64bits(v))
}

// WriteBool emits a MessagePack boolean.
func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf = append(w.buf, 0xC3)
	} else {
		w.buf = append(w.buf, 0xC2)
	}
}

// WriteStr emits a MessagePack string (identifiers: cell names/units).
func (w *Writer) WriteStr(s string) {
	n := len(s)
	switch {
	case n < 32:
		w.buf = append(w.buf, 0xA0|byte(n))
	case n < 1<<8:
		w.buf = append(w.buf, 0xD9, byte(n))
	case n < 1<<16:
		w.buf = append(w.buf, 0xDA)
		w.buf = appendU16(w.buf, uint16(n))
	default:
		w.buf = append(w.buf, 0xDB)
		w.buf = appendU32(w.buf, uint32(n))
	}
	w.buf = append(w.buf, s...)
}

// WriteBin emits a MessagePack raw byte string (a cell's memory, for
// types that do not map to one of the scalar encodings above).
func (w *Writer) WriteBin(b []byte) {
	n := len(b)
	switch {
	case n < 1<<8:
		w.buf = append(w.buf, 0xC4, byte(n))
	case n < 1<<16:
		w.buf = append(w.buf, 0xC5)
		w.buf = appendU16(w.buf, uint16(n))
	default:
		w.buf = append(w.buf, 0xC6)
		w.buf = appendU32(w.buf, uint32(n))
	}
	w.buf = append(w.buf, b...)
}

func appendU16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

// Reader reads MessagePack-encoded values from a byte slice in order.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential reads.
func NewReader(buf []byte) *Reader { return &Reader{buf: buf} }

// Remaining reports how many bytes have not yet been consumed.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

// RemainingBytes returns the unread tail of the buffer without
// consuming it, letting a caller hand it to another decoder (e.g.
// pkg/wire's MsgPack.ParseValue) and then report back how many bytes
// that decoder used via Advance.
func (r *Reader) RemainingBytes() []byte { return r.buf[r.pos:] }

// Advance consumes n bytes without interpreting them, for use after a
// caller has decoded a value from RemainingBytes() itself.
func (r *Reader) Advance(n int) { r.pos += n }

func (r *Reader) take(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, lasso.ErrOverflow
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// PeekIsControlByte reports whether the next unread byte is the
// reserved 0xC1 strobe/reply discriminator, without consuming it.
func (r *Reader) PeekIsControlByte() bool {
	return r.Remaining() > 0 && r.buf[r.pos] == ControlByte
}

// ReadArrayHeader reads an array header and returns its element count.
func (r *Reader) ReadArrayHeader() (int, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	head := b[0]
	switch {
	case head&0xF0 == 0x90:
		return int(head & 0x0F), nil
	case head == 0xDC:
		v, err := r.take(2)
		if err != nil {
			return 0, err
		}
		return int(binary.BigEndian.Uint16(v)), nil
	case head == 0xDD:
		v, err := r.take(4)
		if err != nil {
			return 0, err
		}
		return int(binary.BigEndian.Uint32(v)), nil
	default:
		return 0, lasso.ErrNotSupported
	}
}

// ReadUint reads an unsigned integer of any width the encoder may
// have chosen.
func (r *Reader) ReadUint() (uint64, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	head := b[0]
	switch {
	case head <= 0x7F:
		return uint64(head), nil
	case head == 0xCC:
		v, err := r.take(1)
		if err != nil {
			return 0, err
		}
		return uint64(v[0]), nil
	case head == 0xCD:
		v, err := r.take(2)
		if err != nil {
			return 0, err
		}
		return uint64(binary.BigEndian.Uint16(v)), nil
	case head == 0xCE:
		v, err := r.take(4)
		if err != nil {
			return 0, err
		}
		return uint64(binary.BigEndian.Uint32(v)), nil
	case head == 0xCF:
		v, err := r.take(8)
		if err != nil {
			return 0, err
		}
		return binary.BigEndian.Uint64(v), nil
	default:
		return 0, lasso.ErrNotSupported
	}
}

// ReadInt reads a signed integer of any width the encoder may have
// chosen, including the positive encodings (a signed cell value may
// legitimately be non-negative).
func (r *Reader) ReadInt() (int64, error) {
	if r.Remaining() == 0 {
		return 0, lasso.ErrOverflow
	}
	head := r.buf[r.pos]
	switch {
	case head >= 0xE0: // negative fixint
		r.pos++
		return int64(int8(head)), nil
	case head == 0xD0:
		r.pos++
		v, err := r.take(1)
		if err != nil {
			return 0, err
		}
		return int64(int8(v[0])), nil
	case head == 0xD1:
		r.pos++
		v, err := r.take(2)
		if err != nil {
			return 0, err
		}
		return int64(int16(binary.BigEndian.Uint16(v))), nil
	case head == 0xD2:
		r.pos++
		v, err := r.take(4)
		if err != nil {
			return 0, err
		}
		return int64(int32(binary.BigEndian.Uint32(v))), nil
	case head == 0xD3:
		r.pos++
		v, err := r.take(8)
		if err != nil {
			return 0, err
		}
		return int64(binary.BigEndian.Uint64(v)), nil
	default:
		u, err := r.ReadUint()
		return int64(u), err
	}
}

// ReadFloat32 reads a 4-byte MessagePack float.
func (r *Reader) ReadFloat32() (float32, error) {
	head, err := r.take(1)
	if err != nil {
		return 0, err
	}
	if head[0] != 0xCA {
		return 0, lasso.ErrNotSupported
	}
	v, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.BigEndian.Uint32(v)), nil
}

// ReadFloat64 reads an 8-byte MessagePack float.
func (r *Reader) ReadFloat64() (float64, error) {
	head, err := r.take(1)
	if err != nil {
		return 0, err
	}
	if head[0] != 0xCB {
		return 0, lasso.ErrNotSupported
	}
	v, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(v)), nil
}

// ReadBool reads a MessagePack boolean.
func (r *Reader) ReadBool() (bool, error) {
	b, err := r.take(1)
	if err != nil {
		return false, err
	}
	switch b[0] {
	case 0xC2:
		return false, nil
	case 0xC3:
		return true, nil
	default:
		return false, lasso.ErrNotSupported
	}
}

// ReadStr reads a MessagePack string.
func (r *Reader) ReadStr() (string, error) {
	head, err := r.take(1)
	if err != nil {
		return "", err
	}
	var n int
	switch {
	case head[0]&0xE0 == 0xA0:
		n = int(head[0] & 0x1F)
	case head[0] == 0xD9:
		v, err := r.take(1)
		if err != nil {
			return "", err
		}
		n = int(v[0])
	case head[0] == 0xDA:
		v, err := r.take(2)
		if err != nil {
			return "", err
		}
		n = int(binary.BigEndian.Uint16(v))
	case head[0] == 0xDB:
		v, err := r.take(4)
		if err != nil {
			return "", err
		}
		n = int(binary.BigEndian.Uint32(v))
	default:
		return "", lasso.ErrNotSupported
	}
	b, err := r.take(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadBin reads a MessagePack raw byte string.
func (r *Reader) ReadBin() ([]byte, error) {
	head, err := r.take(1)
	if err != nil {
		return nil, err
	}
	var n int
	switch head[0] {
	case 0xC4:
		v, err := r.take(1)
		if err != nil {
			return nil, err
		}
		n = int(v[0])
	case 0xC5:
		v, err := r.take(2)
		if err != nil {
			return nil, err
		}
		n = int(binary.BigEndian.Uint16(v))
	case 0xC6:
		v, err := r.take(4)
		if err != nil {
			return nil, err
		}
		n = int(binary.BigEndian.Uint32(v))
	default:
		return nil, lasso.ErrNotSupported
	}
	b, err := r.take(n)
	if err != nil {
		return nil, err
	}
	return append([]byte{}, b...), nil
}
