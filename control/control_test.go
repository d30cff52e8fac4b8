package control_test

import (
	"encoding/binary"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"hz.tools/daq/control"
	"hz.tools/rf"
)

func TestInProcess(t *testing.T) {
	b := control.NewInProcess()

	assert.False(t, b.IsChannelEnabled(3))
	b.SetChannelEnabled(3, true)
	assert.True(t, b.IsChannelEnabled(3))
	b.SetChannelEnabled(3, false)
	assert.False(t, b.IsChannelEnabled(3))

	b.SetChannelRange(3, 42)
	assert.Equal(t, uint32(42), b.ChannelRange(3))

	b.SetChannelAref(3, 1)
	assert.Equal(t, uint32(1), b.ChannelAref(3))

	b.SetSamplingRate(rf.Hz(48000))
	assert.Equal(t, rf.Hz(48000), b.SamplingRate())

	p := control.SpikeParams{Threshold: 1.5, BlankMS: 10, Positive: true, Enabled: true}
	b.SetSpikeConfig(3, p)
	assert.Equal(t, p, b.SpikeConfig(3))

	assert.Equal(t, uint64(0), b.ScanIndex())
}

func TestAttachUnavailable(t *testing.T) {
	_, err := control.Attach("/nonexistent/path/to/control-block")
	assert.ErrorIs(t, err, control.ErrUnavailable)
}

func TestAttachSizeMismatch(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "cb")
	assert.NoError(t, err)
	defer f.Close()
	assert.NoError(t, f.Truncate(4))

	_, err = control.Attach(f.Name())
	assert.ErrorIs(t, err, control.ErrSizeMismatch)
}

func TestAttachVersionMismatch(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "cb")
	assert.NoError(t, err)
	defer f.Close()

	buf := make([]byte, 4096)
	binary.LittleEndian.PutUint32(buf, 0xdeadbeef)
	_, err = f.Write(buf)
	assert.NoError(t, err)

	_, err = control.Attach(f.Name())
	assert.ErrorIs(t, err, control.ErrVersionMismatch)
}

// vim: foldmethod=marker
