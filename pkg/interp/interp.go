// Package interp implements the Lasso command interpreter: the opcode
// table, argument decoding, reply formatting and the
// Advertising/Idle/Strobing scheduler state machine (spec.md 4.6).
// It is grounded on the teacher's pkg/sdo/server.go: a mutex-guarded
// state struct whose exported entry point is called once per received
// frame, mirroring SDOServer.Handle/Process but without the channel
// and goroutine machinery a CANopen bus needs - a Lasso command
// arrives already framed and complete, so there is no block-transfer
// state to stream across multiple calls.
package interp

import (
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	lasso "github.com/sleven79/lasso-host"
	"github.com/sleven79/lasso-host/internal/crc"
	"github.com/sleven79/lasso-host/pkg/cell"
	"github.com/sleven79/lasso-host/pkg/celltype"
	"github.com/sleven79/lasso-host/pkg/codec"
	"github.com/sleven79/lasso-host/pkg/msgpack"
	"github.com/sleven79/lasso-host/pkg/wire"
)

// State is the scheduler state named in spec.md 4.6.
type State int

const (
	Advertising State = iota
	Idle
	Strobing
)

func (s State) String() string {
	switch s {
	case Advertising:
		return "advertising"
	case Idle:
		return "idle"
	case Strobing:
		return "strobing"
	default:
		return "unknown"
	}
}

const protocolVersion = "1.0"

// Hooks are the optional extension callbacks SPEC_FULL.md 3.1 adds,
// matching the teacher's od.Entry.AddExtension idiom of passing
// read/write side-effects in at construction time instead of
// subclassing.
type Hooks struct {
	OnActivate     func()
	OnPeriodChange func(oldTicks, newTicks uint16) uint16
	OnControl      func([]byte)
}

// Params is the construction-time configuration Interp needs from
// pkg/config, copied in rather than holding a config.Config directly
// so this package does not import pkg/config (which already imports
// pkg/codec - keeping the dependency graph one-directional).
type Params struct {
	ASCIIMode            bool
	RNFraming            bool
	StrobePeriodMinTicks uint16
	StrobePeriodMaxTicks uint16
	StrobePeriodTicks    uint16
	TickPeriodMs         uint16
	CommandTimeoutTicks  uint16
	ResponseLatencyTicks uint16
	BaudRate             int
	CRCWidth             crc.Width
	CommandCRCEnabled    bool
	StrobeCRCEnabled     bool
	LittleEndian         bool
	CommandBufferSize    int
	ResponseBufferSize   int
	MaxFrameSize         int
	CommandEncoding      codec.Kind
	StrobeDynamic        bool
}

// Interp holds the interpreter's mutable scheduler state and dispatches
// decoded command frames to the opcode table.
type Interp struct {
	logger *logrus.Entry
	params Params
	hooks  Hooks
	reg    *cell.Registry
	codec  wire.ValueCodec

	mu           sync.Mutex
	state        State
	strobePeriod uint16
	bytesTotal   uint32
	overdrive    bool
}

// New builds an Interp starting in the Advertising state, matching
// spec.md 4.6's "power-on enters advertising" framing.
func New(logger *logrus.Entry, reg *cell.Registry, params Params, hooks Hooks) *Interp {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	var c wire.ValueCodec
	if params.ASCIIMode {
		c = wire.ASCII{}
	} else {
		c = wire.MsgPack{}
	}
	return &Interp{
		logger:       logger.WithField("component", "interp"),
		params:       params,
		hooks:        hooks,
		reg:          reg,
		codec:        c,
		state:        Advertising,
		strobePeriod: params.StrobePeriodTicks,
		bytesTotal:   reg.EnabledBytesTotal(),
	}
}

// State reports the current scheduler state.
func (ip *Interp) State() State {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	return ip.state
}

// StrobePeriodTicks reports the currently configured strobe period.
func (ip *Interp) StrobePeriodTicks() uint16 {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	return ip.strobePeriod
}

// BytesTotal reports the current strobe footprint (spec.md 8 "strobe
// size law"), kept current as SetDataCellStrobe enables/disables cells.
func (ip *Interp) BytesTotal() uint32 {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	return ip.bytesTotal
}

// SetOverdrive latches the sticky overdrive flag spec.md 7 names: a
// strobe cycle arriving while the previous frame is still
// transmitting. The host's strobe scheduler calls this on every strobe
// cycle; GetTimingInfo reports
// it until a caller clears it with SetOverdrive(false).
func (ip *Interp) SetOverdrive(v bool) {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	ip.overdrive = v
}

// protocolInfoWord bit-packs the Advertisement word from spec.md 4.6.
func (ip *Interp) protocolInfoWord() uint32 {
	p := ip.params
	var w uint32
	w |= uint32(p.CommandEncoding) & 0x3
	// bit 2: encoding-match flag. Lasso negotiates no alternate
	// encoding at runtime, so the advertised and active encodings
	// always match.
	w |= 1 << 2
	if !p.ASCIIMode {
		w |= 1 << 3
	}
	if p.StrobeDynamic {
		w |= 1 << 4
	}
	switch p.CRCWidth {
	case crc.Width1:
		w |= 0 << 5
	case crc.Width2:
		w |= 1 << 5
	case crc.Width4:
		w |= 2 << 5
	}
	if p.CommandCRCEnabled {
		w |= 1 << 7
	}
	if p.StrobeCRCEnabled {
		w |= 1 << 8
	}
	if p.LittleEndian {
		w |= 1 << 9
	}
	w |= (uint32(p.CommandBufferSize) & 0x3F) << 10
	w |= (uint32(p.ResponseBufferSize) & 0xFF) << 16
	w |= (uint32(p.MaxFrameSize) & 0xFF) << 24
	return w
}

// Advertisement builds the fixed 16-byte signature spec.md 4.6 names:
// "lassoHost/" (10 bytes) + the 32-bit protocol-info word (4 bytes,
// big-endian) + "\r\n" (2 bytes).
func (ip *Interp) Advertisement() []byte {
	out := make([]byte, 0, 16)
	out = append(out, "lassoHost/"...)
	w := ip.protocolInfoWord()
	out = append(out, byte(w>>24), byte(w>>16), byte(w>>8), byte(w))
	out = append(out, '\r', '\n')
	return out
}

// cycleMarginTenths implements SPEC_FULL.md 3.1's formula in
// fixed-point tenths: 1 - (bytes_total*10/bytes_per_tick)/period_ticks.
func (ip *Interp) cycleMarginTenths() int32 {
	p := ip.params
	if p.BaudRate <= 0 || p.TickPeriodMs == 0 || ip.strobePeriod == 0 {
		return 10
	}
	bytesPerSecond := p.BaudRate / 10
	bytesPerTick := bytesPerSecond * int(p.TickPeriodMs) / 1000
	if bytesPerTick <= 0 {
		bytesPerTick = 1
	}
	ticksNeeded := int(ip.bytesTotal) * 10 / bytesPerTick
	return int32(10 - ticksNeeded/int(ip.strobePeriod))
}

// Handle processes one complete, de-framed command payload (opcode
// byte/char plus arguments, decoded from whatever codec the transport
// used) and returns the reply frame payload to transmit, or nil if the
// command is silent - either by the opcode's own rules or because the
// RN/non-interleaving ordering policy suppresses it during strobing.
func (ip *Interp) Handle(raw []byte) []byte {
	if len(raw) == 0 {
		return nil
	}
	opcode := raw[0]

	if opcode == msgpack.ControlByte {
		if ip.hooks.OnControl != nil {
			ip.hooks.OnControl(raw[1:])
		}
		return nil
	}

	ip.mu.Lock()
	defer ip.mu.Unlock()

	if ip.params.RNFraming && ip.state == Strobing && opcode >= 'a' && opcode <= 'z' {
		ip.logger.Debug("ignoring GET opcode while strobing under RN framing")
		return nil
	}

	args := ip.newArgSource(raw[1:])
	rb := newReplyBuilder(ip.params.ASCIIMode)

	var err error
	var silent bool
	switch opcode {
	case 'i':
		err = ip.getProtocolInfo(rb)
	case 't':
		err = ip.getTimingInfo(rb)
	case 'n':
		err = ip.getDataCellCount(rb)
	case 'p':
		err = ip.getDataCellParams(rb, args)
	case 'v':
		err = ip.getDataCellValue(rb, args)
	case 'A':
		ip.state = Advertising
		silent = true
	case 'P':
		silent, err = ip.setStrobePeriod(args)
	case 'S':
		err = ip.setDataCellStrobe(args)
	case 'V':
		err = ip.setDataCellValue(args)
	case 'W':
		silent, err = ip.setDataSpaceStrobe(args)
	default:
		err = lasso.ErrNotSupported
	}

	if silent && err == nil {
		return nil
	}
	if err != nil {
		ip.logger.WithError(err).WithField("opcode", string(opcode)).Debug("command failed")
		if err == lasso.ErrCancelled {
			// spec.md's Open Question 3 "reset-to-tiny-reply": discard
			// whatever payload fields were already written.
			rb = newReplyBuilder(ip.params.ASCIIMode)
		}
	}
	return rb.finish(opcode, lasso.Errno(err))
}

func (ip *Interp) getProtocolInfo(rb *replyBuilder) error {
	rb.addUint(uint64(ip.protocolInfoWord()))
	rb.addString(protocolVersion)
	return nil
}

func (ip *Interp) getTimingInfo(rb *replyBuilder) error {
	p := ip.params
	rb.addUint(uint64(p.TickPeriodMs))
	rb.addUint(uint64(p.CommandTimeoutTicks))
	rb.addUint(uint64(p.ResponseLatencyTicks))
	rb.addUint(uint64(p.StrobePeriodMinTicks))
	rb.addUint(uint64(p.StrobePeriodMaxTicks))
	rb.addUint(uint64(ip.strobePeriod))
	rb.addInt(int64(ip.cycleMarginTenths()))
	if ip.overdrive {
		rb.addUint(1)
	} else {
		rb.addUint(0)
	}
	return nil
}

func (ip *Interp) getDataCellCount(rb *replyBuilder) error {
	rb.addUint(uint64(ip.reg.Count()))
	return nil
}

func (ip *Interp) getDataCellParams(rb *replyBuilder, args argSource) error {
	idx, err := args.uint()
	if err != nil {
		return err
	}
	c, offset, err := ip.reg.Seek(int(idx))
	if err != nil {
		return err
	}
	rb.addString(c.Name)
	rb.addUint(uint64(c.Type))
	rb.addUint(uint64(c.Count))
	rb.addString(c.Unit)
	rb.addUint(uint64(c.UpdateRateReload))
	rb.addUint(uint64(offset))
	return nil
}

func (ip *Interp) getDataCellValue(rb *replyBuilder, args argSource) error {
	idx, err := args.uint()
	if err != nil {
		return err
	}
	c, err := ip.reg.At(int(idx))
	if err != nil {
		return err
	}
	if c.ExternalSource() {
		return lasso.ErrNoData
	}
	rb.addCellValue(ip.codec, c.Type.Kind(), c.Type.ByteWidth(), c.Mem())
	return nil
}

// setStrobePeriod validates and stores the requested period, silent
// whenever the ordering policy (advertising, or strobing under a
// non-interleaving RN encoding) would otherwise race the reply against
// a strobe frame - Open Question resolution 1 in SPEC_FULL.md 4.
func (ip *Interp) setStrobePeriod(args argSource) (silent bool, err error) {
	ticks, err := args.uint()
	if err != nil {
		return false, err
	}
	if ticks < uint64(ip.params.StrobePeriodMinTicks) || ticks > uint64(ip.params.StrobePeriodMaxTicks) {
		return false, lasso.ErrIllegalArgument
	}
	newPeriod := uint16(ticks)
	if ip.hooks.OnPeriodChange != nil {
		newPeriod = ip.hooks.OnPeriodChange(ip.strobePeriod, newPeriod)
	}
	ip.strobePeriod = newPeriod
	if ip.state == Advertising {
		return true, nil
	}
	if ip.state == Strobing && ip.params.RNFraming {
		return true, nil
	}
	return false, nil
}

func (ip *Interp) setDataCellStrobe(args argSource) error {
	if ip.state == Strobing {
		return lasso.ErrBusy
	}
	idx, err := args.uint()
	if err != nil {
		return err
	}
	enable, err := args.boolean()
	if err != nil {
		return err
	}
	c, err := ip.reg.At(int(idx))
	if err != nil {
		return err
	}
	wasEnabled := c.Type.Enabled()
	if err := ip.reg.SetEnabled(int(idx), enable); err != nil {
		return err
	}
	nowEnabled := c.Type.Enabled()
	if nowEnabled && !wasEnabled {
		ip.bytesTotal += c.Footprint()
	} else if !nowEnabled && wasEnabled {
		ip.bytesTotal -= c.Footprint()
	}
	return nil
}

func (ip *Interp) setDataCellValue(args argSource) error {
	idx, err := args.uint()
	if err != nil {
		return err
	}
	c, err := ip.reg.At(int(idx))
	if err != nil {
		return err
	}
	if !c.Type.Writeable() {
		return lasso.ErrPermissionDenied
	}
	raw, err := args.cellValue(ip.codec, c.Type.Kind(), c.Type.ByteWidth())
	if err != nil {
		return err
	}
	return c.Write(raw)
}

// setDataSpaceStrobe starts or stops strobing. Starting while
// advertising cancels the in-flight advertisement and is silent,
// matching spec.md 4.6's "cancels any in-flight advertisement frame
// and silently suppresses the reply".
func (ip *Interp) setDataSpaceStrobe(args argSource) (silent bool, err error) {
	enable, err := args.boolean()
	if err != nil {
		return false, err
	}
	if enable {
		wasAdvertising := ip.state == Advertising
		ip.state = Strobing
		if ip.hooks.OnActivate != nil {
			ip.hooks.OnActivate()
		}
		return wasAdvertising, nil
	}
	if ip.state != Strobing {
		return false, lasso.ErrIllegalArgument
	}
	ip.state = Idle
	return false, nil
}

// argSource reads typed command arguments from a decoded frame's
// argument bytes, in whichever wire encoding the command channel uses.
type argSource interface {
	uint() (uint64, error)
	boolean() (bool, error)
	cellValue(codec wire.ValueCodec, kind celltype.Kind, byteWidth uint8) ([]byte, error)
}

func (ip *Interp) newArgSource(b []byte) argSource {
	if ip.params.ASCIIMode {
		s := strings.TrimSpace(string(b))
		s = strings.TrimPrefix(s, ",")
		var tokens []string
		if s != "" {
			tokens = strings.Split(s, ",")
		}
		return &asciiArgs{tokens: tokens}
	}
	return &msgpackArgs{r: msgpack.NewReader(b)}
}

type asciiArgs struct {
	tokens []string
	pos    int
}

func (a *asciiArgs) next() (string, error) {
	if a.pos >= len(a.tokens) || a.tokens[a.pos] == "" {
		return "", lasso.ErrIllegalArgument
	}
	tok := a.tokens[a.pos]
	a.pos++
	return tok, nil
}

func (a *asciiArgs) uint() (uint64, error) {
	tok, err := a.next()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(tok, 10, 64)
	if err != nil {
		return 0, lasso.ErrIllegalArgument
	}
	return v, nil
}

func (a *asciiArgs) boolean() (bool, error) {
	tok, err := a.next()
	if err != nil {
		return false, err
	}
	return tok != "0", nil
}

func (a *asciiArgs) cellValue(_ wire.ValueCodec, kind celltype.Kind, byteWidth uint8) ([]byte, error) {
	tok, err := a.next()
	if err != nil {
		return nil, err
	}
	return wire.ParseASCIIToken(tok, kind, byteWidth)
}

type msgpackArgs struct {
	r *msgpack.Reader
}

func (a *msgpackArgs) uint() (uint64, error)  { return a.r.ReadUint() }
func (a *msgpackArgs) boolean() (bool, error) { return a.r.ReadBool() }

func (a *msgpackArgs) cellValue(c wire.ValueCodec, kind celltype.Kind, byteWidth uint8) ([]byte, error) {
	raw, consumed, err := c.ParseValue(a.r.RemainingBytes(), kind, byteWidth)
	if err != nil {
		return nil, err
	}
	a.r.Advance(consumed)
	return raw, nil
}

// replyBuilder accumulates reply fields in whichever encoding the
// command channel uses, then assembles the final frame in finish.
type replyBuilder struct {
	ascii  bool
	fields [][]byte
}

func newReplyBuilder(ascii bool) *replyBuilder {
	return &replyBuilder{ascii: ascii}
}

func (rb *replyBuilder) addUint(v uint64) {
	if rb.ascii {
		rb.fields = append(rb.fields, []byte(strconv.FormatUint(v, 10)))
		return
	}
	w := msgpack.NewWriter(9)
	w.WriteUint(v)
	rb.fields = append(rb.fields, w.Bytes())
}

func (rb *replyBuilder) addInt(v int64) {
	if rb.ascii {
		rb.fields = append(rb.fields, []byte(strconv.FormatInt(v, 10)))
		return
	}
	w := msgpack.NewWriter(9)
	w.WriteInt(v)
	rb.fields = append(rb.fields, w.Bytes())
}

func (rb *replyBuilder) addString(s string) {
	if rb.ascii {
		rb.fields = append(rb.fields, []byte(s))
		return
	}
	w := msgpack.NewWriter(len(s) + 5)
	w.WriteStr(s)
	rb.fields = append(rb.fields, w.Bytes())
}

func (rb *replyBuilder) addCellValue(codec wire.ValueCodec, kind celltype.Kind, byteWidth uint8, raw []byte) {
	rb.fields = append(rb.fields, codec.AppendValue(nil, kind, byteWidth, raw))
}

// finish assembles the final reply frame: echoed opcode, fields,
// errno, per spec.md 4.6's "Reply shape".
func (rb *replyBuilder) finish(opcode byte, errno int32) []byte {
	if rb.ascii {
		parts := make([]string, 0, len(rb.fields)+2)
		parts = append(parts, string(opcode))
		for _, f := range rb.fields {
			parts = append(parts, string(f))
		}
		parts = append(parts, strconv.Itoa(int(errno)))
		return []byte(strings.Join(parts, ","))
	}
	w := msgpack.NewWriter(16)
	w.WriteArrayHeader(3)
	w.WriteUint(uint64(opcode))
	w.WriteArrayHeader(len(rb.fields))
	for _, f := range rb.fields {
		w.WriteRaw(f)
	}
	w.WriteInt(int64(errno))
	return w.Bytes()
}
