// Package config loads and validates the Lasso host configuration
// option set (spec.md 6) from an INI file, grounded on the teacher's
// gopkg.in/ini.v1 dependency (there used for CiA-301/EDS-shaped node
// configuration).
package config

import (
	"gopkg.in/ini.v1"

	lasso "github.com/sleven79/lasso-host"
	"github.com/sleven79/lasso-host/internal/crc"
	"github.com/sleven79/lasso-host/pkg/codec"
)

// ProcessingMode selects the command/reply value encoding.
type ProcessingMode int

const (
	ASCII ProcessingMode = iota
	MsgPack
)

// StrobeEncoding is the strobe's own framing choice; unlike command
// encoding it may be NONE (raw, unframed strobe).
type StrobeEncoding int

const (
	StrobeNone StrobeEncoding = iota
	StrobeCOBS
	StrobeESCS
)

// Kind adapts a StrobeEncoding to the shared codec.Kind enum for the
// byte-stuffed cases; callers must check StrobeNone separately.
func (s StrobeEncoding) Kind() codec.Kind {
	switch s {
	case StrobeCOBS:
		return codec.COBS
	case StrobeESCS:
		return codec.ESCS
	default:
		return codec.RN
	}
}

// Config is every recognized option from spec.md 6, plus the
// supplemented extension callbacks from SPEC_FULL.md 3.1.
type Config struct {
	TickPeriodMs         int
	CommandBufferSize    int
	ResponseBufferSize   int
	StrobePeriodMinTicks uint16
	StrobePeriodMaxTicks uint16
	CommandTimeoutTicks  int
	ResponseLatencyTicks int

	CommandEncoding codec.Kind
	StrobeEncoding  StrobeEncoding
	ProcessingMode  ProcessingMode
	StrobeDynamic   bool

	CRCByteWidth      crc.Width
	CommandCRCEnable  bool
	StrobeCRCEnable   bool

	MaxFrameSize int
	BaudRate     int

	LittleEndian          bool
	UnalignedMemoryAccess bool
	MemoryAlign           int

	// TimestampEnabled is loaded from the INI file, but nothing in the
	// host reads it: strobes carry no timestamp counter.
	TimestampEnabled bool

	// OnActivate fires when strobing starts (SetDataSpaceStrobe(true)).
	OnActivate func()
	// OnPeriodChange may override a requested strobe period; it
	// returns the period actually applied.
	OnPeriodChange func(oldTicks, newTicks uint16) uint16
	// OnControl receives ControlPassthrough (0xC1) payloads.
	OnControl func([]byte)
}

// Default returns a Config satisfying every constraint in spec.md 6,
// suitable as a starting point before an INI file overrides fields.
func Default() Config {
	return Config{
		TickPeriodMs:          10,
		CommandBufferSize:     32,
		ResponseBufferSize:    64,
		StrobePeriodMinTicks:  1,
		StrobePeriodMaxTicks:  1000,
		CommandTimeoutTicks:   50,
		ResponseLatencyTicks:  1,
		CommandEncoding:       codec.RN,
		StrobeEncoding:        StrobeNone,
		ProcessingMode:        ASCII,
		StrobeDynamic:         false,
		CRCByteWidth:          crc.Width2,
		CommandCRCEnable:      false,
		StrobeCRCEnable:       false,
		MaxFrameSize:          256,
		BaudRate:              115200,
		LittleEndian:          true,
		UnalignedMemoryAccess: true,
		MemoryAlign:           4,
	}
}

// Load reads path as an INI file and returns a Config seeded from
// Default() with every recognized section/key applied.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := ini.Load(path)
	if err != nil {
		return Config{}, err
	}
	sec := f.Section("lasso")

	if k := sec.Key("tick_period_ms"); k.String() != "" {
		cfg.TickPeriodMs = k.MustInt(cfg.TickPeriodMs)
	}
	if k := sec.Key("command_buffer_size"); k.String() != "" {
		cfg.CommandBufferSize = k.MustInt(cfg.CommandBufferSize)
	}
	if k := sec.Key("response_buffer_size"); k.String() != "" {
		cfg.ResponseBufferSize = k.MustInt(cfg.ResponseBufferSize)
	}
	if k := sec.Key("strobe_period_min_ticks"); k.String() != "" {
		cfg.StrobePeriodMinTicks = uint16(k.MustInt(int(cfg.StrobePeriodMinTicks)))
	}
	if k := sec.Key("strobe_period_max_ticks"); k.String() != "" {
		cfg.StrobePeriodMaxTicks = uint16(k.MustInt(int(cfg.StrobePeriodMaxTicks)))
	}
	if k := sec.Key("command_timeout_ticks"); k.String() != "" {
		cfg.CommandTimeoutTicks = k.MustInt(cfg.CommandTimeoutTicks)
	}
	if k := sec.Key("response_latency_ticks"); k.String() != "" {
		cfg.ResponseLatencyTicks = k.MustInt(cfg.ResponseLatencyTicks)
	}
	if k := sec.Key("command_encoding"); k.String() != "" {
		switch k.String() {
		case "RN":
			cfg.CommandEncoding = codec.RN
		case "COBS":
			cfg.CommandEncoding = codec.COBS
		case "ESCS":
			cfg.CommandEncoding = codec.ESCS
		default:
			return Config{}, lasso.ErrIllegalArgument
		}
	}
	if k := sec.Key("strobe_encoding"); k.String() != "" {
		switch k.String() {
		case "NONE":
			cfg.StrobeEncoding = StrobeNone
		case "COBS":
			cfg.StrobeEncoding = StrobeCOBS
		case "ESCS":
			cfg.StrobeEncoding = StrobeESCS
		default:
			return Config{}, lasso.ErrIllegalArgument
		}
	}
	if k := sec.Key("processing_mode"); k.String() != "" {
		switch k.String() {
		case "ASCII":
			cfg.ProcessingMode = ASCII
		case "MSGPACK":
			cfg.ProcessingMode = MsgPack
		default:
			return Config{}, lasso.ErrIllegalArgument
		}
	}
	if k := sec.Key("strobe_dynamics"); k.String() != "" {
		cfg.StrobeDynamic = k.String() == "DYNAMIC"
	}
	if k := sec.Key("crc_byte_width"); k.String() != "" {
		cfg.CRCByteWidth = crc.Width(k.MustInt(int(cfg.CRCByteWidth)))
	}
	if k := sec.Key("command_crc_enable"); k.String() != "" {
		cfg.CommandCRCEnable = k.MustBool(cfg.CommandCRCEnable)
	}
	if k := sec.Key("strobe_crc_enable"); k.String() != "" {
		cfg.StrobeCRCEnable = k.MustBool(cfg.StrobeCRCEnable)
	}
	if k := sec.Key("max_frame_size"); k.String() != "" {
		cfg.MaxFrameSize = k.MustInt(cfg.MaxFrameSize)
	}
	if k := sec.Key("baudrate"); k.String() != "" {
		cfg.BaudRate = k.MustInt(cfg.BaudRate)
	}
	if k := sec.Key("little_endian"); k.String() != "" {
		cfg.LittleEndian = k.MustBool(cfg.LittleEndian)
	}
	if k := sec.Key("unaligned_memory_access"); k.String() != "" {
		cfg.UnalignedMemoryAccess = k.MustBool(cfg.UnalignedMemoryAccess)
	}
	if k := sec.Key("memory_align"); k.String() != "" {
		cfg.MemoryAlign = k.MustInt(cfg.MemoryAlign)
	}
	if k := sec.Key("timestamp_enabled"); k.String() != "" {
		cfg.TimestampEnabled = k.MustBool(cfg.TimestampEnabled)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the cross-field constraints spec.md 6 names:
// RN implies ASCII processing, no strobe encoding and no command CRC;
// dynamic strobing implies a byte-stuffed strobe encoding.
func (c Config) Validate() error {
	if c.TickPeriodMs < 1 || c.TickPeriodMs > 249 {
		return lasso.ErrIllegalArgument
	}
	if c.CommandBufferSize < 16 || c.CommandBufferSize > 64 {
		return lasso.ErrIllegalArgument
	}
	if c.ResponseBufferSize < 32 || c.ResponseBufferSize > 256 {
		return lasso.ErrIllegalArgument
	}
	if c.CommandEncoding == codec.RN {
		if c.ProcessingMode != ASCII {
			return lasso.ErrIllegalArgument
		}
		if c.StrobeEncoding != StrobeNone {
			return lasso.ErrIllegalArgument
		}
		if c.CommandCRCEnable {
			return lasso.ErrIllegalArgument
		}
	}
	if c.StrobeDynamic && c.StrobeEncoding == StrobeNone {
		return lasso.ErrIllegalArgument
	}
	switch c.CRCByteWidth {
	case crc.Width1, crc.Width2, crc.Width4:
	default:
		return lasso.ErrIllegalArgument
	}
	if c.MaxFrameSize%256 != 0 || c.MaxFrameSize <= 0 {
		return lasso.ErrIllegalArgument
	}
	return nil
}
