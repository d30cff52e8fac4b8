// Package emulate provides the in-process stand-in for the external,
// real-time producer task assumed by the Control Block and Sample FIFO
// contracts: a goroutine ticking at the Control Block's configured
// sampling rate, packing one daq.Sample per enabled channel from a
// pluggable per-channel Waveform, running each through a Spike Detector,
// and enqueuing into the Sample FIFO.
//
// Its Config holds pluggable function fields selected by the caller
// rather than an open-ended set of concrete waveform types.
package emulate

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"hz.tools/daq"
	"hz.tools/daq/control"
	"hz.tools/daq/fifo"
	"hz.tools/daq/spike"
)

// Waveform produces the raw integer reading for one channel at scan
// tick. Implementations are free to be stateless (a pure function of
// tick) or to close over their own state.
type Waveform func(tick uint64) uint32

// ConstantWaveform returns a Waveform that always reports value.
func ConstantWaveform(value uint32) Waveform {
	return func(uint64) uint32 { return value }
}

// Config is the set of default values and optional features of the
// emulated producer: the Control Block it reads enable/range/rate/spike
// configuration from, the Sample FIFO it writes into, and the per-channel
// Waveform table driving its output.
type Config struct {
	// Block is the Control Block the producer reads its configuration
	// from and advances the scan index on. Both control.NewInProcess and
	// control.Attach blocks provide the AdvanceScanIndex method the
	// producer uses; cmd/daqd starts a producer only for the in-process
	// block.
	Block control.Block

	// Fifo is the Sample FIFO the producer enqueues into.
	Fifo *fifo.Fifo

	// Spike, if not nil, runs every generated sample through spike
	// detection before it's enqueued.
	Spike *spike.Detector

	// Waveforms maps channel-id to the Waveform generating its readings.
	// A channel enabled on the Control Block with no entry here reports
	// a constant zero.
	Waveforms map[uint8]Waveform

	// Logger receives structured producer lifecycle/drop events. Defaults
	// to log.Default() if nil.
	Logger *log.Logger
}

// scanIndexAdvancer is satisfied by any control.Block backend that also
// exposes the producer-only AdvanceScanIndex method; control.Block itself
// deliberately omits it so ordinary consumer code can't call it.
type scanIndexAdvancer interface {
	control.Block
	AdvanceScanIndex(uint64)
}

// Producer is the emulated real-time sampling task.
type Producer struct {
	cfg Config
	log *log.Logger

	scanIndex uint64
}

// New creates a Producer from cfg.
func New(cfg Config) *Producer {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Producer{cfg: cfg, log: logger}
}

// Run drives the producer loop at the Control Block's configured
// sampling rate until ctx is canceled. Each tick reads one full scan of
// enabled channels, packs a Sample per channel, and writes into the
// Sample FIFO without blocking — consistent with this pipeline's
// best-effort producer contract.
func (p *Producer) Run(ctx context.Context) error {
	advancer, _ := p.cfg.Block.(scanIndexAdvancer)

	for {
		rate := p.cfg.Block.SamplingRate()
		if rate <= 0 {
			rate = 1
		}
		period := time.Second / time.Duration(rate)
		if period <= 0 {
			period = time.Millisecond
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(period):
		}

		p.tick(advancer)
	}
}

func (p *Producer) tick(advancer scanIndexAdvancer) {
	mask := p.cfg.Block.Mask()
	for _, chanID := range mask.ChannelsOn() {
		wave := p.cfg.Waveforms[chanID]
		if wave == nil {
			wave = ConstantWaveform(0)
		}

		s := daq.Sample{
			ChannelID: chanID,
			ScanIndex: p.scanIndex,
			RangeID:   p.cfg.Block.ChannelRange(chanID),
			Data:      wave(p.scanIndex),
		}
		if p.cfg.Spike != nil {
			s = p.cfg.Spike.Evaluate(s)
		}
		p.cfg.Fifo.Enqueue(s)
	}

	p.scanIndex++
	if advancer != nil {
		advancer.AdvanceScanIndex(p.scanIndex)
	}
}

// vim: foldmethod=marker
