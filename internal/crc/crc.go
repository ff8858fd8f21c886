// Package crc implements the pluggable CRC primitive used by the framing
// codecs and the command/strobe buffers. Two algorithms are provided:
// a plain XOR checksum (XOR8), which is the host's default, and a
// CRC-16-CCITT (poly 0x1021, init 0).
package crc

// Width is the number of trailing bytes a CRC value is truncated to
// when appended to a frame.
type Width int

const (
	Width1 Width = 1
	Width2 Width = 2
	Width4 Width = 4
)

// CRC16 is a running CRC-16-CCITT accumulator. The zero value is the
// correct initial state (init = 0).
type CRC16 uint16

var ccittTable [256]uint16

func init() {
	for i := 0; i < 256; i++ {
		crc := uint16(i) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc = crc << 1
			}
		}
		ccittTable[i] = crc
	}
}

// Single folds one byte into the running CRC.
func (c *CRC16) Single(b byte) {
	*c = CRC16(uint16(*c<<8) ^ ccittTable[byte(*c>>8)^b])
}

// Block folds a byte range into the running CRC.
func (c *CRC16) Block(data []byte) {
	for _, b := range data {
		c.Single(b)
	}
}

// CCITT16 computes a CRC-16-CCITT over a byte range from a fresh
// accumulator (init = 0).
func CCITT16(data []byte) uint16 {
	var c CRC16
	c.Block(data)
	return uint16(c)
}

// XOR8 is the placeholder algorithm: an 8-bit running XOR checksum,
// widened to whatever truncation width is configured. It has no error
// detection properties beyond catching single-byte corruption and
// exists only so the host is runnable without a real CRC installed.
func XOR8(data []byte) uint32 {
	var x byte
	for _, b := range data {
		x ^= b
	}
	return uint32(x)
}

// Func computes a CRC (or checksum) over a byte range. Append and
// Verify truncate the result to the configured width, little-endian.
type Func func(data []byte) uint32

// Append writes crc(data) to dst using width bytes, little-endian, and
// returns the number of bytes written.
func Append(dst []byte, data []byte, fn Func, width Width) int {
	value := fn(data)
	for i := 0; i < int(width); i++ {
		dst[i] = byte(value >> (8 * uint(i)))
	}
	return int(width)
}

// Verify recomputes crc(data) and compares it against the width
// trailing bytes already present at the end of data.
func Verify(data []byte, fn Func, width Width) bool {
	if len(data) < int(width) {
		return false
	}
	payload := data[:len(data)-int(width)]
	want := fn(payload)
	var got uint32
	for i := 0; i < int(width); i++ {
		got |= uint32(data[len(data)-int(width)+i]) << (8 * uint(i))
	}
	return got == want
}

// CCITT16AsFunc adapts CCITT16 to the Func signature.
func CCITT16AsFunc(data []byte) uint32 {
	return uint32(CCITT16(data))
}
