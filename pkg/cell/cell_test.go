package cell

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lasso "github.com/sleven79/lasso-host"
	"github.com/sleven79/lasso-host/pkg/celltype"
)

func TestRegisterMonotonicity(t *testing.T) {
	r := New(nil)
	speed := make([]byte, 4)
	pwm := make([]byte, 8)

	_, err := r.Register(celltype.KindFloat, 4, 1, speed, "speed", "rpm", true, false, true, nil, 0, false)
	require.NoError(t, err)
	_, err = r.Register(celltype.KindUint, 2, 4, pwm, "pwm", "rpm", false, false, false, nil, 0, false)
	require.NoError(t, err)

	assert.Equal(t, 2, r.Count())

	_, offset, err := r.Seek(1)
	require.NoError(t, err)
	assert.EqualValues(t, 4, offset, "offset is sum of enabled footprints before index 1")
}

func TestRegisterRejectsNilMemWithoutExternalSource(t *testing.T) {
	r := New(nil)
	_, err := r.Register(celltype.KindBool, 1, 1, nil, "x", "", false, false, false, nil, 0, false)
	assert.Error(t, err)
}

func TestRegisterAllowsExternalSource(t *testing.T) {
	r := New(nil)
	c, err := r.Register(celltype.KindBool, 1, 1, nil, "x", "", false, false, true, nil, 0, true)
	require.NoError(t, err)
	assert.True(t, c.ExternalSource())
}

func TestPermanentCellForcedEnabled(t *testing.T) {
	r := New(nil)
	mem := make([]byte, 1)
	c, err := r.Register(celltype.KindBool, 1, 1, mem, "permanent", "", false, true, false, nil, 0, false)
	require.NoError(t, err)
	assert.True(t, c.Type.Enabled())

	err = r.SetEnabled(0, false)
	assert.Error(t, err, "permanent cells cannot be disabled")
	assert.True(t, c.Type.Enabled())
}

func TestEnabledBytesTotal(t *testing.T) {
	r := New(nil)
	mem1 := make([]byte, 4)
	mem2 := make([]byte, 8)
	_, _ = r.Register(celltype.KindFloat, 4, 1, mem1, "a", "", false, false, true, nil, 0, false)
	_, _ = r.Register(celltype.KindUint, 2, 4, mem2, "b", "", false, false, false, nil, 0, false)

	assert.EqualValues(t, 4, r.EnabledBytesTotal())
	assert.EqualValues(t, 12, r.WorstCaseBytesTotal())

	require.NoError(t, r.SetEnabled(1, true))
	assert.EqualValues(t, 12, r.EnabledBytesTotal())
}

func TestWriteRejectsReadOnly(t *testing.T) {
	r := New(nil)
	mem := make([]byte, 4)
	c, _ := r.Register(celltype.KindFloat, 4, 1, mem, "ro", "", false, false, true, nil, 0, false)
	err := c.Write([]byte{1, 2, 3, 4})
	assert.ErrorIs(t, err, lasso.ErrPermissionDenied)
}

func TestWriteCommitsThroughOnChange(t *testing.T) {
	r := New(nil)
	mem := make([]byte, 4)
	var seen []byte
	onChange := func(c *DataCell, v []byte) bool {
		seen = append([]byte{}, v...)
		return true
	}
	c, _ := r.Register(celltype.KindFloat, 4, 1, mem, "rw", "", true, false, true, onChange, 0, false)
	require.NoError(t, c.Write([]byte{1, 2, 3, 4}))
	assert.Equal(t, []byte{1, 2, 3, 4}, mem)
	assert.Equal(t, []byte{1, 2, 3, 4}, seen)
}

func TestWriteRejectedByOnChangeLeavesMemoryUnchanged(t *testing.T) {
	r := New(nil)
	mem := []byte{9, 9, 9, 9}
	onChange := func(c *DataCell, v []byte) bool { return false }
	c, _ := r.Register(celltype.KindFloat, 4, 1, mem, "rw", "", true, false, true, onChange, 0, false)
	err := c.Write([]byte{1, 2, 3, 4})
	require.NoError(t, err, "rejected write is not an error")
	assert.Equal(t, []byte{9, 9, 9, 9}, mem)
}

func TestWriteCharPadsAndTruncates(t *testing.T) {
	r := New(nil)
	mem := make([]byte, 8)
	c, _ := r.Register(celltype.KindChar, 1, 8, mem, "name", "", true, false, true, nil, 0, false)
	require.NoError(t, c.Write([]byte("hi")))
	assert.Equal(t, []byte("hi\x00\x00\x00\x00\x00\x00"), mem)

	require.NoError(t, c.Write([]byte("abcdefghij")))
	assert.Equal(t, []byte("abcdefgh"), mem)
}
