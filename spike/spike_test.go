package spike_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"hz.tools/daq"
	"hz.tools/daq/control"
	"hz.tools/daq/spike"
)

func TestDetectorPositivePolarity(t *testing.T) {
	b := control.NewInProcess()
	b.SetSpikeConfig(0, control.SpikeParams{Threshold: 100, Positive: true, Enabled: true, BlankMS: 0})

	d := spike.New(b)
	s := d.Evaluate(daq.Sample{ChannelID: 0, Data: 150})
	assert.True(t, s.Spike)

	s = d.Evaluate(daq.Sample{ChannelID: 0, Data: 50})
	assert.False(t, s.Spike)
}

func TestDetectorDisabledChannel(t *testing.T) {
	b := control.NewInProcess()
	d := spike.New(b)
	s := d.Evaluate(daq.Sample{ChannelID: 0, Data: 999999})
	assert.False(t, s.Spike)
}

func TestDetectorBlanking(t *testing.T) {
	b := control.NewInProcess()
	b.SetSpikeConfig(0, control.SpikeParams{Threshold: 10, Positive: true, Enabled: true, BlankMS: 1000})

	fakeNow := time.Unix(0, 0)
	d := spike.New(b)
	// The detector uses the real clock; fakeNow is unused. Two
	// back-to-back Evaluate calls land well inside the 1000ms window.
	_ = fakeNow

	s := d.Evaluate(daq.Sample{ChannelID: 0, Data: 20})
	assert.True(t, s.Spike)

	// Immediately after, still within the blanking window.
	s = d.Evaluate(daq.Sample{ChannelID: 0, Data: 20})
	assert.False(t, s.Spike)
}

// vim: foldmethod=marker
