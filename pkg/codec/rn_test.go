package codec

import (
	"testing"

	lasso "github.com/sleven79/lasso-host"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestRNRoundTrip(t *testing.T) {
	payload := []byte("GET 3 4\r")[:7] // no embedded \r\n of its own
	frame := EncodeRN(payload)
	assert.Equal(t, append(append([]byte{}, payload...), '\r', '\n'), frame)

	dst := make([]byte, len(payload))
	n, err := DecodeRN(frame, dst)
	require.NoError(t, err)
	assert.Equal(t, payload, dst[:n])
}

func TestRNBareLineFeedIsIllegalSequence(t *testing.T) {
	d := NewRNDecoder()
	dst := make([]byte, 16)
	_, _, err := d.Push('a', dst)
	require.NoError(t, err)
	_, _, err = d.Push('\n', dst)
	assert.ErrorIs(t, err, lasso.ErrIllegalSequence)
}

func TestRNRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(tt *rapid.T) {
		n := rapid.IntRange(0, 200).Draw(tt, "n")
		payload := make([]byte, n)
		for i := range payload {
			// avoid \r and \n inside the payload: RN framing has no
			// escaping, so a caller is responsible for never putting
			// the terminator bytes inside payload data.
			b := byte(rapid.IntRange(0, 253).Draw(tt, "b"))
			if b >= 10 {
				b++
			}
			if b >= 13 {
				b++
			}
			payload[i] = b
		}
		frame := EncodeRN(payload)
		dst := make([]byte, len(payload))
		nn, err := DecodeRN(frame, dst)
		require.NoError(tt, err)
		assert.Equal(tt, payload, dst[:nn])
	})
}
