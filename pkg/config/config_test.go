package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleven79/lasso-host/pkg/codec"
)

func TestDefaultValidates(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestRNRequiresASCIINoStrobeEncodingNoCommandCRC(t *testing.T) {
	cfg := Default()
	cfg.CommandEncoding = codec.RN
	cfg.ProcessingMode = MsgPack
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.StrobeEncoding = StrobeCOBS
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.CommandCRCEnable = true
	assert.Error(t, cfg.Validate())
}

func TestDynamicStrobingRequiresByteStuffedStrobe(t *testing.T) {
	cfg := Default()
	cfg.CommandEncoding = codec.COBS
	cfg.ProcessingMode = MsgPack
	cfg.StrobeDynamic = true
	cfg.StrobeEncoding = StrobeNone
	assert.Error(t, cfg.Validate())

	cfg.StrobeEncoding = StrobeCOBS
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromINI(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lasso.ini")
	content := "[lasso]\n" +
		"tick_period_ms = 5\n" +
		"command_encoding = COBS\n" +
		"strobe_encoding = COBS\n" +
		"processing_mode = MSGPACK\n" +
		"strobe_dynamics = DYNAMIC\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.TickPeriodMs)
	assert.Equal(t, codec.COBS, cfg.CommandEncoding)
	assert.Equal(t, StrobeCOBS, cfg.StrobeEncoding)
	assert.Equal(t, MsgPack, cfg.ProcessingMode)
	assert.True(t, cfg.StrobeDynamic)
}

func TestLoadRejectsInvalidCombination(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lasso.ini")
	content := "[lasso]\ncommand_encoding = RN\nstrobe_encoding = COBS\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
