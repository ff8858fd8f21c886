package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestScenarioS6 reproduces spec.md 8's worked COBS round-trip byte
// sequence exactly.
func TestScenarioS6(t *testing.T) {
	payload := []byte{0x01, 0x00, 0x02, 0x03, 0x04, 0x00, 0x00, 0x05, 0x06, 0x07, 0x08}
	want := []byte{0x00, 0x02, 0x01, 0x04, 0x02, 0x03, 0x04, 0x01, 0x05, 0x05, 0x06, 0x07, 0x08, 0x00}

	got := EncodeCOBS(payload)
	assert.True(t, bytes.Equal(want, got), "encode mismatch: got % x want % x", got, want)

	dst := make([]byte, len(payload))
	n, err := DecodeCOBS(got, dst)
	require.NoError(t, err)
	assert.Equal(t, payload, dst[:n])
}

func TestCOBSEmptyPayload(t *testing.T) {
	got := EncodeCOBS(nil)
	assert.Equal(t, []byte{0x00, 0x01, 0x00}, got)

	dst := make([]byte, 0)
	n, err := DecodeCOBS(got, dst)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCOBSFullRunContinuation(t *testing.T) {
	payload := make([]byte, 600) // forces multiple maxRunBytes-sized blocks
	for i := range payload {
		payload[i] = byte(i%250 + 1) // never zero
	}
	frame := EncodeCOBS(payload)
	dst := make([]byte, len(payload))
	n, err := DecodeCOBS(frame, dst)
	require.NoError(t, err)
	assert.Equal(t, payload, dst[:n])
}

func TestCOBSOverflowAbandonsFrame(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5}
	frame := EncodeCOBS(payload)
	dst := make([]byte, 2)
	d := NewCOBSDecoder()
	var sawErr bool
	for _, b := range frame {
		_, _, err := d.Push(b, dst)
		if err != nil {
			sawErr = true
			break
		}
	}
	assert.True(t, sawErr)
}

// TestCOBSRoundTripProperty checks spec.md 8 property 1 for COBS:
// decode(encode(p)) == p for arbitrary byte payloads.
func TestCOBSRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(tt *rapid.T) {
		payload := rapid.SliceOfN(rapid.Byte(), 0, 600).Draw(tt, "payload")
		frame := EncodeCOBS(payload)
		dst := make([]byte, len(payload))
		n, err := DecodeCOBS(frame, dst)
		require.NoError(tt, err)
		assert.Equal(tt, payload, dst[:n])
	})
}

// TestCOBSStreamingSplitAnywhere checks that feeding a frame byte by
// byte split at an arbitrary point (simulating bytes arriving across
// multiple ticks) gives the same result as feeding it all at once,
// since the host's ReceiveByte hands the decoder one byte at a time
// as bytes arrive (spec.md 5).
func TestCOBSStreamingSplitAnywhere(t *testing.T) {
	rapid.Check(t, func(tt *rapid.T) {
		payload := rapid.SliceOfN(rapid.Byte(), 1, 300).Draw(tt, "payload")
		frame := EncodeCOBS(payload)
		d := NewCOBSDecoder()
		dst := make([]byte, len(payload))
		var n int
		for _, b := range frame {
			l, complete, err := d.Push(b, dst)
			require.NoError(tt, err)
			if complete {
				n = l
			}
		}
		assert.Equal(tt, payload, dst[:n])
	})
}
