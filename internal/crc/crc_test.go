package crc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCcittSingle(t *testing.T) {
	var c CRC16
	c.Single(10)
	assert.EqualValues(t, 0xA14A, c)
}

func TestCcittBlockMatchesSingle(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	var viaSingle CRC16
	for _, b := range data {
		viaSingle.Single(b)
	}
	assert.EqualValues(t, viaSingle, CCITT16(data))
}

func TestAppendAndVerify(t *testing.T) {
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	buf := make([]byte, len(payload)+2)
	copy(buf, payload)
	n := Append(buf[len(payload):], payload, CCITT16AsFunc, Width2)
	assert.Equal(t, 2, n)
	assert.True(t, Verify(buf, CCITT16AsFunc, Width2))

	buf[len(buf)-1] ^= 0xFF
	assert.False(t, Verify(buf, CCITT16AsFunc, Width2))
}

func TestXOR8(t *testing.T) {
	assert.EqualValues(t, 0x00, XOR8([]byte{0x0F, 0x0F}))
	assert.EqualValues(t, 0x0F, XOR8([]byte{0x0F}))
}
