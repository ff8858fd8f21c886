package celltype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAndAccessors(t *testing.T) {
	ty := New(KindUint, 2, true, false, false)
	assert.True(t, ty.Enabled())
	assert.EqualValues(t, 2, ty.ByteWidth())
	assert.Equal(t, KindUint, ty.Kind())
	assert.False(t, ty.Writeable())
	assert.False(t, ty.Permanent())
}

func TestSpecPWMExample(t *testing.T) {
	// spec.md scenario S2: uint16[4] pwm, type-code 0x0022, enabled -> 0x0023 (35)
	ty := New(KindUint, 2, false, false, false)
	assert.EqualValues(t, 0x0022, ty)
	ty = ty.WithEnabled(true)
	assert.EqualValues(t, 0x0023, ty)
}

func TestPermanentForcesEnabled(t *testing.T) {
	ty := New(KindFloat, 4, false, true, true)
	assert.True(t, ty.Enabled())
	ty = ty.WithEnabled(false)
	assert.True(t, ty.Enabled(), "permanent cell cannot be disabled")
}

func TestWithEnabledToggle(t *testing.T) {
	ty := New(KindBool, 1, true, true, false)
	ty2 := ty.WithEnabled(false)
	assert.False(t, ty2.Enabled())
	ty3 := ty2.WithEnabled(true)
	assert.True(t, ty3.Enabled())
}
