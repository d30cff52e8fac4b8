package emulate_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hz.tools/daq/control"
	"hz.tools/daq/emulate"
	"hz.tools/daq/fifo"
)

func TestProducerEnqueuesEnabledChannels(t *testing.T) {
	block := control.NewInProcess()
	block.SetChannelEnabled(0, true)
	block.SetChannelEnabled(2, true)
	block.SetSamplingRate(2000)

	f := fifo.New(64)
	p := emulate.New(emulate.Config{
		Block: block,
		Fifo:  f,
		Waveforms: map[uint8]emulate.Waveform{
			0: emulate.ConstantWaveform(42),
			2: emulate.RampWaveform(0, 10, 5),
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_ = p.Run(ctx)

	s, err := f.Dequeue()
	require.NoError(t, err)
	assert.EqualValues(t, 0, s.ChannelID)
	assert.EqualValues(t, 42, s.Data)

	s, err = f.Dequeue()
	require.NoError(t, err)
	assert.EqualValues(t, 2, s.ChannelID)
}

func TestConstantWaveform(t *testing.T) {
	w := emulate.ConstantWaveform(7)
	assert.EqualValues(t, 7, w(0))
	assert.EqualValues(t, 7, w(100))
}

func TestStepWaveform(t *testing.T) {
	w := emulate.StepWaveform(10, 90, 4)
	assert.EqualValues(t, 100, w(0))
	assert.EqualValues(t, 10, w(1))
	assert.EqualValues(t, 10, w(2))
	assert.EqualValues(t, 10, w(3))
	assert.EqualValues(t, 100, w(4))
}

// vim: foldmethod=marker
