package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleven79/lasso-host/pkg/celltype"
)

func TestASCIIUintRoundTrip(t *testing.T) {
	raw := encodeUint(1234, 2)
	dst := ASCII{}.AppendValue(nil, celltype.KindUint, 2, raw)
	assert.Equal(t, "1234", string(dst))

	got, n, err := ASCII{}.ParseValue(dst, celltype.KindUint, 2)
	require.NoError(t, err)
	assert.Equal(t, len(dst), n)
	assert.Equal(t, raw, got)
}

func TestASCIINegativeInt(t *testing.T) {
	raw := encodeUint(uint64(int64(-5))&widthMask(2), 2)
	dst := ASCII{}.AppendValue(nil, celltype.KindInt, 2, raw)
	assert.Equal(t, "-5", string(dst))

	got, _, err := ASCII{}.ParseValue(dst, celltype.KindInt, 2)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestASCIIFloat(t *testing.T) {
	raw := encodeUint(uint64(floatBits(3.5)), 4)
	dst := ASCII{}.AppendValue(nil, celltype.KindFloat, 4, raw)
	got, _, err := ASCII{}.ParseValue(dst, celltype.KindFloat, 4)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestASCIIMultipleValuesSpaceSeparated(t *testing.T) {
	var dst []byte
	dst = ASCII{}.AppendValue(dst, celltype.KindUint, 2, encodeUint(1, 2))
	dst = ASCII{}.AppendValue(dst, celltype.KindUint, 2, encodeUint(2, 2))
	assert.Equal(t, "1 2", string(dst))

	first, n, err := ASCII{}.ParseValue(dst, celltype.KindUint, 2)
	require.NoError(t, err)
	assert.Equal(t, encodeUint(1, 2), first)
	second, _, err := ASCII{}.ParseValue(dst[n:], celltype.KindUint, 2)
	require.NoError(t, err)
	assert.Equal(t, encodeUint(2, 2), second)
}

func TestMsgPackUintRoundTrip(t *testing.T) {
	raw := encodeUint(1234, 2)
	dst := MsgPack{}.AppendValue(nil, celltype.KindUint, 2, raw)
	assert.NotEqual(t, byte(0xC1), dst[0])

	got, n, err := MsgPack{}.ParseValue(dst, celltype.KindUint, 2)
	require.NoError(t, err)
	assert.Equal(t, len(dst), n)
	assert.Equal(t, raw, got)
}

func TestMsgPackFloatRoundTrip(t *testing.T) {
	raw := encodeUint(uint64(floatBits(-12.5)), 4)
	dst := MsgPack{}.AppendValue(nil, celltype.KindFloat, 4, raw)
	got, _, err := MsgPack{}.ParseValue(dst, celltype.KindFloat, 4)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestMsgPackCharRoundTrip(t *testing.T) {
	raw := []byte("pwm\x00\x00")
	dst := MsgPack{}.AppendValue(nil, celltype.KindChar, 1, raw)
	got, _, err := MsgPack{}.ParseValue(dst, celltype.KindChar, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("pwm"), got)
}
