// Package planner computes the buffer layout a Lasso host needs once
// all cells are registered (spec.md 4.4, register_mem): how many
// bytes of head reservation (codec disambiguator, dynamic mask),
// tail reservation (CRC), and framing overhead a strobe or response
// buffer needs, rounded to the configured alignment.
package planner

import (
	"github.com/sleven79/lasso-host/internal/crc"
	lasso "github.com/sleven79/lasso-host"
	"github.com/sleven79/lasso-host/pkg/codec"
)

// Layout is the computed buffer plan for one direction (strobe or
// response).
type Layout struct {
	// CodecPrefix is 1 when the buffer is COBS/ESCS framed (the
	// 0xC1 disambiguator byte), 0 otherwise.
	CodecPrefix int
	// MaskBytes is ceil(cellCount/8) when dynamic strobing reserves a
	// mask prefix, 0 otherwise. Always 0 for the response buffer.
	MaskBytes int
	// CRCWidth is the number of trailing CRC bytes, 0 if disabled.
	CRCWidth int
	// PhysicalSize is the number of bytes actually allocated,
	// rounded to alignment. For ESCS this is the doubled
	// write-high/encode-low allocation.
	PhysicalSize int
	// LogicalMax is the usable payload capacity: equal to
	// PhysicalSize except for ESCS, where it is PhysicalSize/2.
	LogicalMax int
}

// HeadReserve is CodecPrefix+MaskBytes, the offset the sampler must
// position its write cursor past before copying cell data (spec.md
// 4.5 step 1).
func (l Layout) HeadReserve() int { return l.CodecPrefix + l.MaskBytes }

func roundUp(n, alignment int) int {
	if alignment <= 1 {
		return n
	}
	if rem := n % alignment; rem != 0 {
		n += alignment - rem
	}
	return n
}

// PlanStrobe computes the strobe buffer layout. externalSource skips
// allocation entirely (an external strobe source owns its own
// buffer). maxSize is the configured cap (response_buffer_size-style
// option); exceeding it is ErrOutOfMemory.
func PlanStrobe(enc codec.Kind, dynamic bool, cellCount int, worstCaseBytes uint32, crcEnabled bool, crcWidth crc.Width, alignment int, externalSource bool, maxSize int) (Layout, error) {
	if externalSource {
		return Layout{}, nil
	}
	l := Layout{}
	if enc == codec.COBS || enc == codec.ESCS {
		l.CodecPrefix = 1
	}
	if dynamic {
		l.MaskBytes = (cellCount + 7) / 8
	}
	if crcEnabled {
		l.CRCWidth = int(crcWidth)
	}
	payload := int(worstCaseBytes) + l.CodecPrefix + l.MaskBytes + l.CRCWidth

	var physical int
	switch enc {
	case codec.COBS:
		physical = payload + 3
	case codec.RN:
		physical = payload + 2
	case codec.ESCS:
		physical = (payload + 2) * 2
	default:
		physical = payload
	}
	physical = roundUp(physical, alignment)
	l.PhysicalSize = physical
	if enc == codec.ESCS {
		l.LogicalMax = physical / 2
	} else {
		l.LogicalMax = physical
	}
	if maxSize > 0 && physical > maxSize {
		return Layout{}, lasso.ErrOutOfMemory
	}
	return l, nil
}

// PlanResponse computes the response buffer layout. Responses never
// carry a dynamic mask prefix; the codec disambiguator only applies
// when the command-reply channel is byte-stuffed (shared with a
// byte-stuffed strobe).
func PlanResponse(enc codec.Kind, sharesStuffedChannel bool, worstCaseBytes uint32, crcEnabled bool, crcWidth crc.Width, alignment int, maxSize int) (Layout, error) {
	l := Layout{}
	if sharesStuffedChannel && (enc == codec.COBS || enc == codec.ESCS) {
		l.CodecPrefix = 1
	}
	if crcEnabled {
		l.CRCWidth = int(crcWidth)
	}
	payload := int(worstCaseBytes) + l.CodecPrefix + l.CRCWidth

	var physical int
	switch enc {
	case codec.COBS:
		physical = payload + 3
	case codec.RN:
		physical = payload + 2
	case codec.ESCS:
		physical = (payload + 2) * 2
	default:
		physical = payload
	}
	physical = roundUp(physical, alignment)
	l.PhysicalSize = physical
	if enc == codec.ESCS {
		l.LogicalMax = physical / 2
	} else {
		l.LogicalMax = physical
	}
	if maxSize > 0 && physical > maxSize {
		return Layout{}, lasso.ErrOutOfMemory
	}
	return l, nil
}
