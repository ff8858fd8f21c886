// Package wire formats and parses typed cell values for the two
// reply encodings spec.md 6 offers: plain ASCII (used with RN framing)
// and MessagePack (used with COBS/ESCS framing). Both formatters
// implement the same ValueCodec interface so pkg/interp can pick one
// at construction time and never branch on encoding again afterward -
// the same shape as the teacher's gateway/http schemas picking a JSON
// encoder once per response.
package wire

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	lasso "github.com/sleven79/lasso-host"
	"github.com/sleven79/lasso-host/pkg/celltype"
	"github.com/sleven79/lasso-host/pkg/msgpack"
)

// ValueCodec formats a cell's raw host-order memory as a wire value
// and parses a wire value back into raw host-order bytes ready for
// DataCell.Write.
type ValueCodec interface {
	// AppendValue appends one formatted value to dst and returns the
	// extended slice.
	AppendValue(dst []byte, kind celltype.Kind, byteWidth uint8, raw []byte) []byte
	// ParseValue consumes one formatted value from src, returning the
	// raw host-order bytes (byteWidth long, or len(raw) long for a
	// char cell) and the number of src bytes consumed.
	ParseValue(src []byte, kind celltype.Kind, byteWidth uint8) (raw []byte, consumed int, err error)
}

// ASCII formats values as whitespace-separated decimal tokens, the
// RN-framing encoding (spec.md 6: "RN implies ASCII").
type ASCII struct{}

func (ASCII) AppendValue(dst []byte, kind celltype.Kind, byteWidth uint8, raw []byte) []byte {
	tok := formatASCII(kind, byteWidth, raw)
	if len(dst) > 0 && dst[len(dst)-1] != ' ' {
		dst = append(dst, ' ')
	}
	return append(dst, tok...)
}

func formatASCII(kind celltype.Kind, byteWidth uint8, raw []byte) string {
	switch kind {
	case celltype.KindChar:
		return strings.TrimRight(string(raw), "\x00")
	case celltype.KindBool:
		if raw[0] != 0 {
			return "1"
		}
		return "0"
	case celltype.KindUint:
		return strconv.FormatUint(decodeUint(raw), 10)
	case celltype.KindInt:
		return strconv.FormatInt(decodeInt(raw, byteWidth), 10)
	case celltype.KindFloat:
		if byteWidth == 4 {
			return strconv.FormatFloat(float64(math.Float32frombits(uint32(decodeUint(raw)))), 'g', -1, 32)
		}
		return strconv.FormatFloat(math.Float64frombits(decodeUint(raw)), 'g', -1, 64)
	default:
		return ""
	}
}

func (ASCII) ParseValue(src []byte, kind celltype.Kind, byteWidth uint8) ([]byte, int, error) {
	src = trimLeadingSpace(src)
	end := 0
	for end < len(src) && src[end] != ' ' && src[end] != '\r' && src[end] != '\n' {
		end++
	}
	if end == 0 {
		return nil, 0, lasso.ErrIllegalArgument
	}
	tok := string(src[:end])
	raw, err := parseASCIIToken(tok, kind, byteWidth)
	if err != nil {
		return nil, 0, err
	}
	return raw, len(src) - len(trimLeadingSpace(src)) + end, nil
}

func trimLeadingSpace(b []byte) []byte {
	i := 0
	for i < len(b) && b[i] == ' ' {
		i++
	}
	return b[i:]
}

func parseASCIIToken(tok string, kind celltype.Kind, byteWidth uint8) ([]byte, error) {
	switch kind {
	case celltype.KindChar:
		return []byte(tok), nil
	case celltype.KindBool:
		if tok == "0" {
			return []byte{0}, nil
		}
		return []byte{1}, nil
	case celltype.KindUint:
		v, err := strconv.ParseUint(tok, 10, int(byteWidth)*8)
		if err != nil {
			return nil, lasso.ErrIllegalArgument
		}
		return encodeUint(v, byteWidth), nil
	case celltype.KindInt:
		v, err := strconv.ParseInt(tok, 10, int(byteWidth)*8)
		if err != nil {
			return nil, lasso.ErrIllegalArgument
		}
		return encodeUint(uint64(v)&widthMask(byteWidth), byteWidth), nil
	case celltype.KindFloat:
		v, err := strconv.ParseFloat(tok, int(byteWidth)*8)
		if err != nil {
			return nil, lasso.ErrIllegalArgument
		}
		if byteWidth == 4 {
			return encodeUint(uint64(math.Float32bits(float32(v))), 4), nil
		}
		return encodeUint(math.Float64bits(v), 8), nil
	default:
		return nil, lasso.ErrNotSupported
	}
}

// MsgPack formats values as MessagePack scalars, used with COBS/ESCS
// framing (spec.md 6). It never emits a value whose leading byte is
// msgpack.ControlByte, since that byte is reserved as the strobe/reply
// discriminator (see pkg/msgpack doc comment).
type MsgPack struct{}

func (MsgPack) AppendValue(dst []byte, kind celltype.Kind, byteWidth uint8, raw []byte) []byte {
	w := msgpack.NewWriter(len(raw) + 9)
	switch kind {
	case celltype.KindChar:
		w.WriteStr(strings.TrimRight(string(raw), "\x00"))
	case celltype.KindBool:
		w.WriteBool(raw[0] != 0)
	case celltype.KindUint:
		w.WriteUint(decodeUint(raw))
	case celltype.KindInt:
		w.WriteInt(decodeInt(raw, byteWidth))
	case celltype.KindFloat:
		if byteWidth == 4 {
			w.WriteFloat32(math.Float32frombits(uint32(decodeUint(raw))))
		} else {
			w.WriteFloat64(math.Float64frombits(decodeUint(raw)))
		}
	}
	return append(dst, w.Bytes()...)
}

func (MsgPack) ParseValue(src []byte, kind celltype.Kind, byteWidth uint8) ([]byte, int, error) {
	r := msgpack.NewReader(src)
	before := r.Remaining()
	var raw []byte
	var err error
	switch kind {
	case celltype.KindChar:
		var s string
		s, err = r.ReadStr()
		raw = []byte(s)
	case celltype.KindBool:
		var b bool
		b, err = r.ReadBool()
		if b {
			raw = []byte{1}
		} else {
			raw = []byte{0}
		}
	case celltype.KindUint:
		var v uint64
		v, err = r.ReadUint()
		raw = encodeUint(v, byteWidth)
	case celltype.KindInt:
		var v int64
		v, err = r.ReadInt()
		raw = encodeUint(uint64(v)&widthMask(byteWidth), byteWidth)
	case celltype.KindFloat:
		if byteWidth == 4 {
			var v float32
			v, err = r.ReadFloat32()
			raw = encodeUint(uint64(math.Float32bits(v)), 4)
		} else {
			var v float64
			v, err = r.ReadFloat64()
			raw = encodeUint(math.Float64bits(v), 8)
		}
	default:
		err = lasso.ErrNotSupported
	}
	if err != nil {
		return nil, 0, err
	}
	return raw, before - r.Remaining(), nil
}

func widthMask(byteWidth uint8) uint64 {
	if byteWidth >= 8 {
		return math.MaxUint64
	}
	return 1<<(byteWidth*8) - 1
}

// decodeUint reads raw (little-endian, host order) as an unsigned
// integer of its own width.
func decodeUint(raw []byte) uint64 {
	var v uint64
	for i := len(raw) - 1; i >= 0; i-- {
		v = v<<8 | uint64(raw[i])
	}
	return v
}

func decodeInt(raw []byte, byteWidth uint8) int64 {
	u := decodeUint(raw)
	switch byteWidth {
	case 1:
		return int64(int8(u))
	case 2:
		return int64(int16(u))
	case 4:
		return int64(int32(u))
	default:
		return int64(u)
	}
}

func floatBits(v float32) uint32 { return math.Float32bits(v) }

func encodeUint(v uint64, byteWidth uint8) []byte {
	raw := make([]byte, byteWidth)
	for i := uint8(0); i < byteWidth; i++ {
		raw[i] = byte(v)
		v >>= 8
	}
	return raw
}

// FormatASCIIToken renders a single typed value as the decimal/char
// token ASCII.AppendValue would emit, without the separator logic.
func FormatASCIIToken(kind celltype.Kind, byteWidth uint8, raw []byte) string {
	return formatASCII(kind, byteWidth, raw)
}

// ParseASCIIToken parses a single already-split ASCII token - pkg/interp
// tokenizes comma-separated command arguments itself (RN framing's
// reply fields are comma-separated, so commands follow the same
// convention) and hands each token here.
func ParseASCIIToken(tok string, kind celltype.Kind, byteWidth uint8) ([]byte, error) {
	return parseASCIIToken(tok, kind, byteWidth)
}

// FormatError renders err as an "ERR <code>" token. pkg/interp's ASCII
// replies do not use it: they end with the bare numeric code.
func FormatError(err error) string {
	return fmt.Sprintf("ERR %d", lasso.Errno(err))
}
