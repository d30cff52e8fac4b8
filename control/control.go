// Package control implements the Control Block: the fixed-layout,
// process-wide structure shared between the producer (a real-time
// sampling task, or the in-process emulate.Producer) and the consumer
// (the Reader Loop and everything upstream of it).
//
// Two backends satisfy the Block interface. InProcess is an
// atomics/mutex-guarded Go value used when the producer runs in the same
// process (the common case in this module, via emulate.Producer).
// Attach maps a POSIX shared-memory-style file with golang.org/x/sys/unix
// for interop with an external, out-of-process producer writing the same
// layout — the situation the spec assumes is the norm.
package control

import (
	"fmt"
	"sync"
	"sync/atomic"

	"hz.tools/daq"
	"hz.tools/rf"
)

// Version is the compile-time layout magic. Attach fails with
// ErrVersionMismatch if the mapped region's header disagrees.
const Version uint32 = 0x44415101 // "DAQ" + layout revision 1

var (
	// ErrUnavailable is returned when the shared region is missing or
	// inaccessible.
	ErrUnavailable = fmt.Errorf("daq/control: control block unavailable")

	// ErrVersionMismatch is returned when the mapped region's version
	// header does not match Version.
	ErrVersionMismatch = fmt.Errorf("daq/control: version mismatch")

	// ErrSizeMismatch is returned when the mapped region is smaller than
	// the expected layout.
	ErrSizeMismatch = fmt.Errorf("daq/control: size mismatch")
)

// SpikeParams is the per-channel Spike Detector configuration carried in
// the Control Block.
type SpikeParams struct {
	Threshold float64
	BlankMS   uint32
	Positive  bool
	Enabled   bool
}

// Block is the interface exposed to the rest of the core. It hides
// whether the underlying storage is an in-process Go value or a mapped
// external region.
//
// Per the spec's ownership rule: ai_chan/ao_chan, the enabled masks,
// sampling_rate_hz, and spike params are writable by the consumer; the
// scan index and board-identifying fields are read-only to the consumer
// and are written only by whichever side is acting as producer.
type Block interface {
	// IsChannelEnabled reports whether chan is in the AI enabled mask.
	IsChannelEnabled(chanID uint8) bool
	// SetChannelEnabled sets or clears chan in the AI enabled mask.
	SetChannelEnabled(chanID uint8, enabled bool)

	// ChannelRange returns the range/reference code for chan.
	ChannelRange(chanID uint8) uint32
	// SetChannelRange sets the range/reference code for chan.
	SetChannelRange(chanID uint8, rangeID uint32)

	// ChannelAref returns the analog reference (ground, common, diff,
	// other) configured for chan.
	ChannelAref(chanID uint8) uint32
	// SetChannelAref sets the analog reference for chan.
	SetChannelAref(chanID uint8, arefID uint32)

	// SamplingRate returns the configured sampling rate.
	SamplingRate() rf.Hz
	// SetSamplingRate sets the sampling rate the producer should run at.
	SetSamplingRate(rf.Hz)

	// SpikeConfig returns the Spike Detector parameters for chan.
	SpikeConfig(chanID uint8) SpikeParams
	// SetSpikeConfig sets the Spike Detector parameters for chan.
	SetSpikeConfig(chanID uint8, p SpikeParams)

	// ScanIndex returns the producer's current monotonic scan index.
	// Read-only to the consumer.
	ScanIndex() uint64

	// Mask returns a copy of the current AI enabled-channel mask.
	Mask() daq.Mask
}

// producerBlock is implemented only by backends the producer side (an
// in-process emulate.Producer) is allowed to drive; it is not part of
// the public Block interface so that ordinary consumer code cannot
// accidentally write producer-owned fields.
type producerBlock interface {
	Block
	// AdvanceScanIndex sets the current scan index. Called once per scan
	// by the producer.
	AdvanceScanIndex(uint64)
}

// inProcess is the InProcess backend: a single heap-allocated struct
// guarded by atomics (producer-owned fields) and a mutex (consumer-owned
// fields), used when the producer is emulate.Producer running in this
// process.
type inProcess struct {
	scanIndex atomic.Uint64

	mu           sync.Mutex
	chanRange    [daq.MaxChannels]uint32
	chanAref     [daq.MaxChannels]uint32
	enabledMask  daq.Mask
	samplingRate rf.Hz
	spike        [daq.MaxChannels]SpikeParams
}

// NewInProcess creates a Block backed by plain Go memory, suitable for
// wiring emulate.Producer directly to the rest of the pipeline within a
// single process.
func NewInProcess() Block {
	return &inProcess{}
}

func (b *inProcess) IsChannelEnabled(chanID uint8) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabledMask.IsSet(chanID)
}

func (b *inProcess) SetChannelEnabled(chanID uint8, enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if enabled {
		b.enabledMask.Set(chanID)
	} else {
		b.enabledMask.Clear(chanID)
	}
}

func (b *inProcess) ChannelRange(chanID uint8) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.chanRange[chanID]
}

func (b *inProcess) SetChannelRange(chanID uint8, rangeID uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chanRange[chanID] = rangeID
}

func (b *inProcess) ChannelAref(chanID uint8) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.chanAref[chanID]
}

func (b *inProcess) SetChannelAref(chanID uint8, arefID uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chanAref[chanID] = arefID
}

func (b *inProcess) SamplingRate() rf.Hz {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.samplingRate
}

func (b *inProcess) SetSamplingRate(rate rf.Hz) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samplingRate = rate
}

func (b *inProcess) SpikeConfig(chanID uint8) SpikeParams {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spike[chanID]
}

func (b *inProcess) SetSpikeConfig(chanID uint8, p SpikeParams) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.spike[chanID] = p
}

func (b *inProcess) ScanIndex() uint64 {
	return b.scanIndex.Load()
}

func (b *inProcess) AdvanceScanIndex(idx uint64) {
	b.scanIndex.Store(idx)
}

func (b *inProcess) Mask() daq.Mask {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabledMask
}

// vim: foldmethod=marker
