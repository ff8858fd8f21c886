// Package strobe implements the periodic broadcast of enabled data
// cells into a wire buffer: the dynamic update-rate mask and the
// per-tick sampler (spec.md 4.5), grounded on the teacher's TPDO
// periodic-transmission logic the same way spec.md's strobe maps
// conceptually onto CANopen's TPDO.
package strobe

import (
	"log/slog"

	"github.com/sleven79/lasso-host/internal/crc"
	"github.com/sleven79/lasso-host/pkg/cell"
	"github.com/sleven79/lasso-host/pkg/planner"
)

// Frame is one strobe transmit buffer: a fixed-size byte slice plus
// the bookkeeping the sampler and TX pump need to track how much of
// it holds live data.
type Frame struct {
	Buf []byte
	// BytesTotal is the current payload length (spec.md 4.5 step 4),
	// counted from the start of Buf: the codec disambiguator byte (if
	// any), dynamic mask bytes, cell data and CRC.
	BytesTotal uint32
	// Layout describes the head/tail reservations this buffer was
	// planned with (pkg/planner).
	Layout planner.Layout
}

// NewFrame allocates a Frame sized per layout. A zero-value Layout
// (external source) yields a Frame with a nil buffer; the caller owns
// sampling in that case.
func NewFrame(layout planner.Layout) *Frame {
	if layout.PhysicalSize == 0 {
		return &Frame{Layout: layout}
	}
	return &Frame{Buf: make([]byte, layout.PhysicalSize), Layout: layout}
}

// Sampler copies enabled cell values into a Frame on each strobe tick.
type Sampler struct {
	logger    *slog.Logger
	registry  *cell.Registry
	crcFunc   crc.Func
	crcWidth  crc.Width
	crcOn     bool
	dynamic   bool
	cellCount int
}

// NewSampler builds a Sampler. crcFunc/crcWidth are ignored when
// crcOn is false.
func NewSampler(logger *slog.Logger, registry *cell.Registry, dynamic bool, crcOn bool, crcFunc crc.Func, crcWidth crc.Width) *Sampler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{
		logger:    logger.With("component", "strobe-sampler"),
		registry:  registry,
		crcFunc:   crcFunc,
		crcWidth:  crcWidth,
		crcOn:     crcOn,
		dynamic:   dynamic,
		cellCount: registry.Count(),
	}
}

// Sample runs one strobe tick (spec.md 4.5). It returns the number of
// cells actually copied this cycle (always every enabled cell in
// static mode, a subset in dynamic mode).
func (s *Sampler) Sample(f *Frame) int {
	if f.Buf == nil {
		return 0 // external source: nothing to sample into
	}
	cursor := f.Layout.CodecPrefix
	maskStart := cursor
	if s.dynamic {
		for i := 0; i < f.Layout.MaskBytes; i++ {
			f.Buf[cursor+i] = 0
		}
		cursor += f.Layout.MaskBytes
	}

	sampled := 0
	s.registry.Each(func(index int, c *cell.DataCell) bool {
		if !c.Type.Enabled() {
			return true
		}
		if s.dynamic {
			c.UpdateRateRunning--
			if c.UpdateRateRunning > 0 {
				return true
			}
			reload := c.UpdateRateReload
			if reload == 0 {
				reload = 1
			}
			c.UpdateRateRunning = reload
			byteIndex := index / 8
			bitIndex := uint(index % 8)
			f.Buf[maskStart+byteIndex] |= 1 << bitIndex
		}
		n := copy(f.Buf[cursor:], c.Mem())
		cursor += n
		sampled++
		return true
	})

	payloadEnd := cursor
	if s.crcOn && s.crcFunc != nil {
		payloadStart := f.Layout.CodecPrefix
		n := crc.Append(f.Buf[payloadEnd:], f.Buf[payloadStart:payloadEnd], s.crcFunc, s.crcWidth)
		payloadEnd += n
	}
	if f.Layout.CodecPrefix > 0 {
		f.Buf[0] = controlByte
	}
	// bytes_total counts everything from the buffer start: the
	// disambiguator byte (if any), the mask prefix, sampled cell
	// bytes and the trailing CRC (spec.md 8 property 4).
	f.BytesTotal = uint32(payloadEnd)
	return sampled
}

// controlByte is MessagePack's reserved 0xC1, written at the head of
// a byte-stuffed strobe so the client can discriminate it from a
// reply sharing the same channel (spec.md 4.4/6).
const controlByte = 0xC1
