package lasso

import (
	"github.com/sirupsen/logrus"

	"github.com/sleven79/lasso-host/internal/crc"
	"github.com/sleven79/lasso-host/internal/ringbuf"
	"github.com/sleven79/lasso-host/pkg/cell"
	"github.com/sleven79/lasso-host/pkg/codec"
	"github.com/sleven79/lasso-host/pkg/config"
	"github.com/sleven79/lasso-host/pkg/interp"
	"github.com/sleven79/lasso-host/pkg/planner"
	"github.com/sleven79/lasso-host/pkg/strobe"
)

// SendFunc is the non-blocking transport primitive (spec.md 5): it
// must not block, returning ErrBusy when the link cannot accept chunk
// right now (the pump retries next tick) or any other error to abandon
// the remainder of the current frame.
type SendFunc func(chunk []byte) error

const advertisePeriodMs = 250

// Host is the single owned value that replaces the teacher's file-scope
// globals (pkg/node's controller singleton): one struct parameterizing
// the tick handler, the byte-at-a-time ingress path, and the TX pump,
// matching spec.md 9's "reshape as a single owned Host value" design
// note and SPEC_FULL.md's module map entry for the root package.
type Host struct {
	logger *logrus.Entry
	cfg    config.Config
	reg    *cell.Registry
	interp *interp.Interp
	send   SendFunc

	cmdDecoder codec.Decoder
	cmdScratch []byte
	pendingCmd []byte

	rxIdleTicks int

	strobeFrame         *strobe.Frame
	sampler             *strobe.Sampler
	strobeCountdown     uint16
	advertiseCountdown  uint16
	advertiseEveryTicks uint16

	txStrobe   *ringbuf.Ring
	txResponse *ringbuf.Ring

	crcFunc crc.Func
}

// NewHost plans the strobe/response buffers from the registered cells,
// builds the interpreter and sampler, and returns a Host ready to
// receive bytes and tick.
func NewHost(logger *logrus.Entry, cfg config.Config, reg *cell.Registry, send SendFunc, hooks interp.Hooks) (*Host, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	crcFunc := crc.XOR8

	// Config's callbacks fill any hook the caller left nil.
	if hooks.OnActivate == nil {
		hooks.OnActivate = cfg.OnActivate
	}
	if hooks.OnPeriodChange == nil {
		hooks.OnPeriodChange = cfg.OnPeriodChange
	}
	if hooks.OnControl == nil {
		hooks.OnControl = cfg.OnControl
	}

	// unframedKind has no case in planner.PlanStrobe's encoding switch,
	// so it falls to the "no extra framing overhead" default - the
	// correct arithmetic for a NONE-encoded (raw) strobe, which
	// codec.Kind itself has no value to name (RN/COBS/ESCS are all
	// real framings).
	const unframedKind = codec.Kind(0xFF)
	strobeKind := unframedKind
	if cfg.StrobeEncoding != config.StrobeNone {
		strobeKind = cfg.StrobeEncoding.Kind()
	}
	strobeLayout, err := planner.PlanStrobe(
		strobeKind, cfg.StrobeDynamic, reg.Count(),
		reg.WorstCaseBytesTotal(), cfg.StrobeCRCEnable, cfg.CRCByteWidth,
		cfg.MemoryAlign, false, cfg.ResponseBufferSize*4,
	)
	if err != nil {
		return nil, err
	}

	respSharesStuffed := cfg.StrobeEncoding != config.StrobeNone
	responseLayout, err := planner.PlanResponse(
		cfg.CommandEncoding, respSharesStuffed, uint32(cfg.ResponseBufferSize),
		cfg.CommandCRCEnable, cfg.CRCByteWidth, cfg.MemoryAlign, cfg.ResponseBufferSize*4,
	)
	if err != nil {
		return nil, err
	}

	advertiseEvery := uint16(advertisePeriodMs / cfg.TickPeriodMs)
	if advertiseEvery == 0 {
		advertiseEvery = 1
	}

	h := &Host{
		logger:              logger.WithField("component", "host"),
		cfg:                 cfg,
		reg:                 reg,
		interp:              interp.New(logger, reg, hostInterpParams(cfg), hooks),
		send:                send,
		cmdDecoder:          newCommandDecoder(cfg.CommandEncoding),
		cmdScratch:          make([]byte, cfg.CommandBufferSize),
		strobeFrame:         strobe.NewFrame(strobeLayout),
		sampler:             strobe.NewSampler(nil, reg, cfg.StrobeDynamic, cfg.StrobeCRCEnable, crcFunc, cfg.CRCByteWidth),
		strobeCountdown:     cfg.StrobePeriodMinTicks,
		advertiseCountdown:  advertiseEvery,
		advertiseEveryTicks: advertiseEvery,
		txStrobe:            ringbuf.New(maxInt(strobeLayout.PhysicalSize, 1) + 8),
		txResponse:          ringbuf.New(maxInt(responseLayout.PhysicalSize, 1) + 8),
		crcFunc:             crcFunc,
	}
	return h, nil
}

func hostInterpParams(cfg config.Config) interp.Params {
	return interp.Params{
		ASCIIMode:            cfg.ProcessingMode == config.ASCII,
		RNFraming:            cfg.CommandEncoding == codec.RN,
		StrobePeriodMinTicks: cfg.StrobePeriodMinTicks,
		StrobePeriodMaxTicks: cfg.StrobePeriodMaxTicks,
		StrobePeriodTicks:    cfg.StrobePeriodMinTicks,
		TickPeriodMs:         uint16(cfg.TickPeriodMs),
		CommandTimeoutTicks:  uint16(cfg.CommandTimeoutTicks),
		ResponseLatencyTicks: uint16(cfg.ResponseLatencyTicks),
		BaudRate:             cfg.BaudRate,
		CRCWidth:             cfg.CRCByteWidth,
		CommandCRCEnabled:    cfg.CommandCRCEnable,
		StrobeCRCEnabled:     cfg.StrobeCRCEnable,
		LittleEndian:         cfg.LittleEndian,
		CommandBufferSize:    cfg.CommandBufferSize,
		ResponseBufferSize:   cfg.ResponseBufferSize,
		MaxFrameSize:         cfg.MaxFrameSize,
		CommandEncoding:      cfg.CommandEncoding,
		StrobeDynamic:        cfg.StrobeDynamic,
	}
}

func newCommandDecoder(enc codec.Kind) codec.Decoder {
	switch enc {
	case codec.COBS:
		return codec.NewCOBSDecoder()
	case codec.ESCS:
		return codec.NewESCSDecoder()
	default:
		return codec.NewRNDecoder()
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// ReceiveByte is the ingress entry point (spec.md 5: "byte-at-a-time
// receive_byte callable from the transport"). It writes only to the
// decode scratch buffer; it never blocks and never triggers a reply.
// It returns ErrBusy while a previously decoded command is still
// awaiting HandleTick (spec.md 5's "response.valid blocks any further
// ingress until the interpreter consumes it").
func (h *Host) ReceiveByte(b byte) error {
	if h.pendingCmd != nil {
		return ErrBusy
	}
	h.rxIdleTicks = 0

	n, complete, err := h.cmdDecoder.Push(b, h.cmdScratch)
	if err != nil {
		h.logger.WithError(err).Debug("framing error, resetting receive buffer")
		h.cmdDecoder.Reset()
		return nil
	}
	if !complete {
		return nil
	}
	if n == 0 {
		// empty/duplicate delimiter (codec.go: Decoder.Push doc) - not a
		// zero-length command, ignore and keep waiting for a real frame.
		return nil
	}
	frame := h.cmdScratch[:n]
	if h.cfg.CommandCRCEnable {
		width := int(h.cfg.CRCByteWidth)
		if len(frame) < width || !crc.Verify(frame, h.crcFunc, h.cfg.CRCByteWidth) {
			h.logger.Debug("command CRC mismatch, discarding frame")
			return nil
		}
		frame = frame[:len(frame)-width]
	}
	h.pendingCmd = append([]byte{}, frame...)
	return nil
}

// HandleTick is the single periodic entry point (spec.md 5's
// handle_com): timeout bookkeeping, advertise/strobe countdown,
// command processing, then exactly one TX pump attempt.
func (h *Host) HandleTick() {
	h.tickTimeout()
	h.tickSchedule()
	h.tickCommand()
	h.pump()
}

func (h *Host) tickTimeout() {
	h.rxIdleTicks++
	if h.rxIdleTicks >= h.cfg.CommandTimeoutTicks {
		h.cmdDecoder.Reset()
		h.rxIdleTicks = 0
	}
}

func (h *Host) tickSchedule() {
	switch h.interp.State() {
	case interp.Advertising:
		h.advertiseCountdown--
		if h.advertiseCountdown == 0 {
			h.advertiseCountdown = h.advertiseEveryTicks
			if h.txStrobe.Occupied() == 0 {
				h.txStrobe.WriteBytes(h.interp.Advertisement(), nil)
			}
		}
	case interp.Strobing:
		h.strobeCountdown--
		if h.strobeCountdown == 0 {
			h.strobeCountdown = h.interp.StrobePeriodTicks()
			if h.strobeCountdown == 0 {
				h.strobeCountdown = 1
			}
			if h.txStrobe.Occupied() > 0 {
				h.interp.SetOverdrive(true)
				return
			}
			h.interp.SetOverdrive(false)
			n := h.sampler.Sample(h.strobeFrame)
			if n == 0 {
				return
			}
			payload := h.strobeFrame.Buf[:h.strobeFrame.BytesTotal]
			h.enqueueStrobe(payload)
		}
	}
}

func (h *Host) enqueueStrobe(payload []byte) {
	switch h.cfg.StrobeEncoding {
	case config.StrobeCOBS:
		h.txStrobe.WriteBytes(codec.EncodeCOBS(payload), nil)
	case config.StrobeESCS:
		h.txStrobe.WriteBytes(codec.EncodeESCS(payload), nil)
	default:
		h.txStrobe.WriteBytes(payload, nil)
	}
}

func (h *Host) tickCommand() {
	if h.pendingCmd == nil {
		return
	}
	prevState := h.interp.State()
	reply := h.interp.Handle(h.pendingCmd)
	h.pendingCmd = nil
	newState := h.interp.State()

	// spec.md 5/182: SetAdvertise cancels any in-flight strobe frame by
	// zeroing its byte count before further transmission, and
	// SetDataSpaceStrobe(true) cancels any in-flight advertisement the
	// same way - both advertisement and strobe payloads are queued on
	// txStrobe, so dropping whatever is still unsent there covers
	// either direction.
	if newState != prevState && (newState == interp.Advertising || newState == interp.Strobing) {
		h.txStrobe.Reset()
	}
	if newState == interp.Strobing && prevState != interp.Strobing {
		// spec.md 141: "starts strobing from the next cycle (countdown=1)".
		h.strobeCountdown = 1
	}

	if reply == nil {
		return
	}
	switch h.cfg.CommandEncoding {
	case codec.COBS:
		h.txResponse.WriteBytes(codec.EncodeCOBS(reply), nil)
	case codec.ESCS:
		h.txResponse.WriteBytes(codec.EncodeESCS(reply), nil)
	default:
		h.txResponse.WriteBytes(codec.EncodeRN(reply), nil)
	}
}

// chunkSize returns the TX pump's per-tick byte budget for enc,
// adapting spec.md 4.7's COBS-specific "up to 253 payload bytes"
// chunking rule (which exists to let an embedded target re-encode a
// fixed buffer incrementally without a second allocation) to a whole
// frame already encoded in Go: the byte budget is preserved, but the
// offset-2/offset-255 restore trick is not needed since nothing here
// re-encodes in place (see DESIGN.md).
func (h *Host) chunkSize(enc codec.Kind) int {
	switch enc {
	case codec.COBS, codec.ESCS:
		if h.cfg.MaxFrameSize > 0 && h.cfg.MaxFrameSize < 253 {
			return h.cfg.MaxFrameSize
		}
		return 253
	default:
		if h.cfg.MaxFrameSize > 0 {
			return h.cfg.MaxFrameSize
		}
		return 256
	}
}

// pump performs exactly one transmit attempt per tick (spec.md 4.7,
// property 8): the strobe queue has priority over the response queue
// when both have pending bytes.
func (h *Host) pump() {
	var ring *ringbuf.Ring
	var enc codec.Kind
	switch {
	case h.txStrobe.Occupied() > 0:
		ring = h.txStrobe
		enc = h.cfg.StrobeEncoding.Kind()
	case h.txResponse.Occupied() > 0:
		ring = h.txResponse
		enc = h.cfg.CommandEncoding
	default:
		return
	}

	budget := h.chunkSize(enc)
	chunk := make([]byte, minInt(budget, ring.Occupied()))
	n := ring.Peek(chunk)
	if n == 0 {
		return
	}
	if err := h.send(chunk[:n]); err != nil {
		if err == ErrBusy {
			return
		}
		h.logger.WithError(err).Warn("transport error, abandoning remainder of frame")
		ring.Reset()
		return
	}
	ring.Advance(n)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Registry exposes the underlying cell registry for application code
// registering cells before the first HandleTick.
func (h *Host) Registry() *cell.Registry { return h.reg }

// Interp exposes the interpreter, mainly for tests and for a caller
// that wants to read State()/StrobePeriodTicks() directly.
func (h *Host) Interp() *interp.Interp { return h.interp }
