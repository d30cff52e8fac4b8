// Package source implements the Sample Source: the polymorphic interface
// over whatever byte/record channel actually carries samples from the
// producer, whether that is the live Sample FIFO or a previously
// recorded file being replayed.
package source

import (
	"fmt"
	"time"

	"hz.tools/daq"
	"hz.tools/daq/fifo"
)

var (
	// ErrEOF is returned when the underlying channel is permanently
	// closed.
	ErrEOF = fmt.Errorf("daq/source: device eof")

	// ErrDevice is returned for any other read failure on the underlying
	// channel.
	ErrDevice = fmt.Errorf("daq/source: device error")
)

// Source is the capability set the Reader (component D) drives: wait for
// data, check how much is ready, read what's available, flush pending
// data, and suggest how long the caller should wait before polling
// again.
type Source interface {
	// BytesReady reports how many records are currently available
	// without blocking. Named for parity with the spec's
	// bytes_ready(); this implementation counts records, since every
	// concrete Source here already deals in whole records.
	BytesReady() int

	// WaitForData blocks up to maxWait for a record to become
	// available. A negative maxWait waits indefinitely. Returns true if
	// data is ready, false on timeout.
	WaitForData(maxWait time.Duration) (bool, error)

	// Read drains whatever records are presently available into buf,
	// returning the count read. It never blocks; call WaitForData
	// first.
	Read(buf []daq.Sample) (int, error)

	// Flush discards any pending, unread data.
	Flush()

	// SuggestPollWaitMS returns the time, in milliseconds, that brings
	// the next read close to the desired tick while keeping the
	// underlying channel from overflowing.
	SuggestPollWaitMS() int
}

// fifoSource backs Source with the live Sample FIFO.
type fifoSource struct {
	f          *fifo.Fifo
	pollWaitMS int
}

// NewFifoSource wraps a fifo.Fifo as a Source. pollWaitMS is returned
// from SuggestPollWaitMS unchanged; callers size it to their desired UI
// tick while keeping the FIFO from overflowing (e.g. half the scan
// period for the configured sampling rate).
func NewFifoSource(f *fifo.Fifo, pollWaitMS int) Source {
	return &fifoSource{f: f, pollWaitMS: pollWaitMS}
}

func (s *fifoSource) BytesReady() int {
	// The lock-free ring doesn't expose a cheap non-destructive count;
	// callers that need precision should rely on WaitForData instead.
	return 0
}

func (s *fifoSource) WaitForData(maxWait time.Duration) (bool, error) {
	return s.f.WaitForData(maxWait), nil
}

func (s *fifoSource) Read(buf []daq.Sample) (int, error) {
	n := 0
	for n < len(buf) {
		sample, err := s.f.Dequeue()
		if err != nil {
			break
		}
		buf[n] = sample
		n++
	}
	return n, nil
}

func (s *fifoSource) Flush() {
	for {
		if _, err := s.f.Dequeue(); err != nil {
			return
		}
	}
}

func (s *fifoSource) SuggestPollWaitMS() int {
	return s.pollWaitMS
}

// fileSource backs Source with a previously recorded raw record stream,
// read in full up front (recorded runs in this module are expected to
// fit comfortably in memory; the Temp Spooler is what's used for
// unbounded on-disk buffering during acquisition).
type fileSource struct {
	records []daq.Sample
	pos     int
}

// NewFileSource creates a Source that replays records in order and then
// reports ErrEOF. SuggestPollWaitMS is always 0, since there's no device
// cadence to respect.
func NewFileSource(records []daq.Sample) Source {
	return &fileSource{records: records}
}

func (s *fileSource) BytesReady() int {
	return len(s.records) - s.pos
}

func (s *fileSource) WaitForData(maxWait time.Duration) (bool, error) {
	if s.pos >= len(s.records) {
		return false, ErrEOF
	}
	return true, nil
}

func (s *fileSource) Read(buf []daq.Sample) (int, error) {
	if s.pos >= len(s.records) {
		return 0, ErrEOF
	}
	n := copy(buf, s.records[s.pos:])
	s.pos += n
	return n, nil
}

func (s *fileSource) Flush() {
	s.pos = len(s.records)
}

func (s *fileSource) SuggestPollWaitMS() int {
	return 0
}

// vim: foldmethod=marker
