package msgpack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestUintRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 0x7F, 0x80, 0xFF, 0x100, 0xFFFF, 0x10000, 0xFFFFFFFF, 1 << 40} {
		w := NewWriter(16)
		w.WriteUint(v)
		r := NewReader(w.Bytes())
		got, err := r.ReadUint()
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestIntRoundTrip(t *testing.T) {
	for _, v := range []int64{0, -1, -32, -33, -128, -129, -32768, -32769, math_MinInt32, math_MinInt32 - 1, 127} {
		w := NewWriter(16)
		w.WriteInt(v)
		r := NewReader(w.Bytes())
		got, err := r.ReadInt()
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

const math_MinInt32 = -(1 << 31)

func TestFloatRoundTrip(t *testing.T) {
	w := NewWriter(16)
	w.WriteFloat32(3.5)
	w.WriteFloat64(-12.25)
	r := NewReader(w.Bytes())
	f32, err := r.ReadFloat32()
	require.NoError(t, err)
	assert.Equal(t, float32(3.5), f32)
	f64, err := r.ReadFloat64()
	require.NoError(t, err)
	assert.Equal(t, -12.25, f64)
}

func TestStrAndBinRoundTrip(t *testing.T) {
	w := NewWriter(64)
	w.WriteStr("pwm")
	w.WriteBin([]byte{1, 2, 3, 4})
	r := NewReader(w.Bytes())
	s, err := r.ReadStr()
	require.NoError(t, err)
	assert.Equal(t, "pwm", s)
	b, err := r.ReadBin()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, b)
}

func TestArrayHeaderRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 15, 16, 300, 70000} {
		w := NewWriter(16)
		w.WriteArrayHeader(n)
		r := NewReader(w.Bytes())
		got, err := r.ReadArrayHeader()
		require.NoError(t, err)
		assert.Equal(t, n, got)
	}
}

func TestControlByteNeverCollidesWithArrayOrScalarHeads(t *testing.T) {
	// spec.md's design notes repurpose 0xC1 as a strobe/reply
	// discriminator on the assumption that no well-formed encoding
	// this package produces ever starts with it.
	w := NewWriter(16)
	w.WriteArrayHeader(5)
	assert.NotEqual(t, byte(ControlByte), w.Bytes()[0])

	for _, v := range []uint64{0, 200, 70000, 1 << 40} {
		w := NewWriter(16)
		w.WriteUint(v)
		assert.NotEqual(t, byte(ControlByte), w.Bytes()[0])
	}
}

func TestReaderOverflowReturnsError(t *testing.T) {
	r := NewReader([]byte{0xCD, 0x01}) // uint16 header with only 1 of 2 bytes
	_, err := r.ReadUint()
	assert.Error(t, err)
}

func TestUintRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(tt *rapid.T) {
		v := rapid.Uint64().Draw(tt, "v")
		w := NewWriter(16)
		w.WriteUint(v)
		r := NewReader(w.Bytes())
		got, err := r.ReadUint()
		require.NoError(tt, err)
		assert.Equal(tt, v, got)
	})
}
