package interp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleven79/lasso-host/internal/crc"
	"github.com/sleven79/lasso-host/pkg/cell"
	"github.com/sleven79/lasso-host/pkg/celltype"
)

func asciiParams() Params {
	return Params{
		ASCIIMode:            true,
		RNFraming:            true,
		StrobePeriodMinTicks: 1,
		StrobePeriodMaxTicks: 1000,
		StrobePeriodTicks:    10,
		TickPeriodMs:         10,
		CommandTimeoutTicks:  50,
		ResponseLatencyTicks: 1,
		BaudRate:             115200,
		CRCWidth:             crc.Width2,
		CommandBufferSize:    32,
		ResponseBufferSize:   64,
		MaxFrameSize:         256,
	}
}

func TestGetDataCellCountASCII(t *testing.T) {
	r := cell.New(nil)
	_, err := r.Register(celltype.KindUint, 2, 1, []byte{1, 2}, "a", "", false, false, true, nil, 0, false)
	require.NoError(t, err)

	ip := New(nil, r, asciiParams(), Hooks{})
	reply := ip.Handle([]byte("n"))
	assert.Equal(t, "n,1,0", string(reply))
}

func TestSetAdvertiseIsSilent(t *testing.T) {
	r := cell.New(nil)
	ip := New(nil, r, asciiParams(), Hooks{})
	assert.Nil(t, ip.Handle([]byte("A")))
	assert.Equal(t, Advertising, ip.State())
}

func TestSetDataSpaceStrobeFromAdvertisingIsSilent(t *testing.T) {
	r := cell.New(nil)
	ip := New(nil, r, asciiParams(), Hooks{})
	reply := ip.Handle([]byte("W,1"))
	assert.Nil(t, reply)
	assert.Equal(t, Strobing, ip.State())
}

func TestSetDataSpaceStrobeFromIdleReplies(t *testing.T) {
	r := cell.New(nil)
	ip := New(nil, r, asciiParams(), Hooks{})
	ip.state = Idle
	reply := ip.Handle([]byte("W,1"))
	assert.Equal(t, "W,0", string(reply))
	assert.Equal(t, Strobing, ip.State())
}

func TestSetDataCellStrobeRejectedWhileStrobing(t *testing.T) {
	r := cell.New(nil)
	_, err := r.Register(celltype.KindUint, 1, 1, []byte{0}, "a", "", false, false, true, nil, 0, false)
	require.NoError(t, err)
	ip := New(nil, r, asciiParams(), Hooks{})
	ip.state = Strobing

	reply := ip.Handle([]byte("S,0,0"))
	assert.Equal(t, "S,11", string(reply)) // errno(ErrBusy) == 11
}

func TestSetDataCellValueRoundTrip(t *testing.T) {
	r := cell.New(nil)
	mem := []byte{0, 0}
	_, err := r.Register(celltype.KindUint, 2, 1, mem, "a", "", true, false, true, nil, 0, false)
	require.NoError(t, err)
	ip := New(nil, r, asciiParams(), Hooks{})

	reply := ip.Handle([]byte("V,0,500"))
	assert.Equal(t, "V,0", string(reply))

	getReply := ip.Handle([]byte("v,0"))
	assert.Equal(t, "v,500,0", string(getReply))
}

func TestSetDataCellValuePermissionDenied(t *testing.T) {
	r := cell.New(nil)
	_, err := r.Register(celltype.KindUint, 1, 1, []byte{0}, "a", "", false, false, true, nil, 0, false)
	require.NoError(t, err)
	ip := New(nil, r, asciiParams(), Hooks{})

	reply := ip.Handle([]byte("V,0,1"))
	assert.Equal(t, "V,2", string(reply))
}

func TestGetDataCellValueRejectedForExternalSource(t *testing.T) {
	r := cell.New(nil)
	_, err := r.Register(celltype.KindUint, 1, 1, nil, "a", "", false, false, true, nil, 0, true)
	require.NoError(t, err)
	ip := New(nil, r, asciiParams(), Hooks{})

	reply := ip.Handle([]byte("v,0"))
	assert.Equal(t, "v,6", string(reply))
}

func TestIgnoresGetOpcodeWhileStrobingUnderRN(t *testing.T) {
	r := cell.New(nil)
	_, err := r.Register(celltype.KindUint, 1, 1, []byte{9}, "a", "", false, false, true, nil, 0, false)
	require.NoError(t, err)
	ip := New(nil, r, asciiParams(), Hooks{})
	ip.state = Strobing

	assert.Nil(t, ip.Handle([]byte("v,0")))
}

func TestControlPassthroughInvokesHookAndIsSilent(t *testing.T) {
	r := cell.New(nil)
	var got []byte
	ip := New(nil, r, asciiParams(), Hooks{OnControl: func(b []byte) { got = append([]byte{}, b...) }})

	reply := ip.Handle([]byte{0xC1, 0x01, 0x02})
	assert.Nil(t, reply)
	assert.Equal(t, []byte{0x01, 0x02}, got)
}

func TestAdvertisementShape(t *testing.T) {
	r := cell.New(nil)
	ip := New(nil, r, asciiParams(), Hooks{})
	adv := ip.Advertisement()
	require.Len(t, adv, 16)
	assert.Equal(t, "lassoHost/", string(adv[:10]))
	assert.Equal(t, byte('\r'), adv[14])
	assert.Equal(t, byte('\n'), adv[15])
}
