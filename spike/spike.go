// Package spike implements the Spike Detector: per-channel threshold,
// polarity, and blanking-interval logic fed from the Control Block and
// from samples flowing through the Reader Loop.
package spike

import (
	"time"

	"hz.tools/daq"
	"hz.tools/daq/control"
)

// Detector evaluates incoming samples against the Control Block's
// per-channel spike configuration and stamps Sample.Spike /
// Sample.SpikePeriod before the sample is handed to listeners.
type Detector struct {
	block control.Block
	now   func() time.Time

	lastSpike [daq.MaxChannels]time.Time
	everFired [daq.MaxChannels]bool
}

// New creates a Detector reading its per-channel configuration from
// block.
func New(block control.Block) *Detector {
	return &Detector{block: block, now: time.Now}
}

// Evaluate checks s against its channel's spike configuration and
// returns s with Spike and SpikePeriod filled in. Channels that are
// disabled, or for which the blanking interval hasn't elapsed since the
// last accepted spike, never report a spike.
func (d *Detector) Evaluate(s daq.Sample) daq.Sample {
	cfg := d.block.SpikeConfig(s.ChannelID)
	if !cfg.Enabled {
		return s
	}

	now := d.now()
	c := s.ChannelID

	if d.everFired[c] {
		since := now.Sub(d.lastSpike[c])
		if since < time.Duration(cfg.BlankMS)*time.Millisecond {
			return s
		}
	}

	value := float64(s.Data)
	fired := (cfg.Positive && value >= cfg.Threshold) ||
		(!cfg.Positive && value <= cfg.Threshold)
	if !fired {
		return s
	}

	var period uint32
	if d.everFired[c] {
		period = uint32(now.Sub(d.lastSpike[c]).Milliseconds())
	}

	d.lastSpike[c] = now
	d.everFired[c] = true

	s.Spike = true
	s.SpikePeriod = period
	return s
}

// vim: foldmethod=marker
