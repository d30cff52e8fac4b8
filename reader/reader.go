// Package reader implements the Sample Reader: it drives a source.Source,
// tracks per-channel last-seen scan indices to detect dropped scans, and
// exposes read/drop counters.
package reader

import (
	"time"

	"hz.tools/daq"
	"hz.tools/daq/source"
)

// Reader wraps one source.Source and maintains the drop-detection state
// described in the spec's component D.
type Reader struct {
	src source.Source

	blockTime time.Duration

	scanStartedIndex uint64
	started          bool

	lastSeenIndex   [daq.MaxChannels]uint64
	channelSeenOnce [daq.MaxChannels]bool

	totalRead    uint64
	totalDropped uint64
	lastRead     int
	lastDropped  uint64

	buf []daq.Sample
}

// New creates a Reader over src. blockTime is the duration ReadAll blocks
// waiting for data; a negative blockTime blocks indefinitely. bufSize
// bounds how many records a single ReadAll call can return.
func New(src source.Source, blockTime time.Duration, bufSize int) *Reader {
	return &Reader{
		src:       src,
		blockTime: blockTime,
		buf:       make([]daq.Sample, bufSize),
	}
}

// TotalRead returns the cumulative number of records read.
func (r *Reader) TotalRead() uint64 {
	return r.totalRead
}

// TotalDropped returns the cumulative number of scans inferred dropped
// from index gaps.
func (r *Reader) TotalDropped() uint64 {
	return r.totalDropped
}

// LastRead returns the number of records the most recent ReadAll call
// returned.
func (r *Reader) LastRead() int {
	return r.lastRead
}

// LastDropped returns the number of drops inferred during the most
// recent ReadAll call.
func (r *Reader) LastDropped() uint64 {
	return r.lastDropped
}

// ReadAll blocks up to the configured block time, then returns a slice of
// the records available now. The returned slice is a view into an
// internal buffer invalidated by the next call to ReadAll, matching the
// spec's contract.
func (r *Reader) ReadAll() ([]daq.Sample, error) {
	ready, err := r.src.WaitForData(r.blockTime)
	if err != nil {
		return nil, err
	}
	if !ready {
		r.lastRead = 0
		r.lastDropped = 0
		return nil, nil
	}

	n, err := r.src.Read(r.buf)
	if err != nil {
		return nil, err
	}

	r.lastDropped = 0
	for i := 0; i < n; i++ {
		rec := r.buf[i]
		c := rec.ChannelID
		if r.channelSeenOnce[c] && rec.ScanIndex > r.lastSeenIndex[c]+1 {
			gap := rec.ScanIndex - r.lastSeenIndex[c] - 1
			r.totalDropped += gap
			r.lastDropped += gap
		}
		r.lastSeenIndex[c] = rec.ScanIndex
		r.channelSeenOnce[c] = true

		if !r.started {
			r.scanStartedIndex = rec.ScanIndex
			r.started = true
		}
	}

	r.lastRead = n
	r.totalRead += uint64(n)
	return r.buf[:n], nil
}

// ScanStartedIndex returns the scan index of the first record this
// Reader ever saw, or 0 if none has been seen yet.
func (r *Reader) ScanStartedIndex() uint64 {
	return r.scanStartedIndex
}

// vim: foldmethod=marker
