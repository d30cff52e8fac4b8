// Package spool implements the Temp Spooler: a persistent, on-disk FIFO
// typed over a fixed record T, bounded in-memory batching, and full
// in-order replay to a consumer. It's the component any Listener can
// insert between itself and the Reader Loop to decouple memory use from
// archival throughput.
package spool

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
)

// ErrDiskFull is returned by Spool when flushing the in-memory batch to
// disk fails for lack of space. The spooler truncates itself back to
// empty and the caller can recover the count of records lost from the
// error's Lost field.
type ErrDiskFull struct {
	Lost int
	err  error
}

func (e *ErrDiskFull) Error() string {
	return fmt.Sprintf("daq/spool: disk full, %d records lost: %s", e.Lost, e.err)
}

func (e *ErrDiskFull) Unwrap() error {
	return e.err
}

const headerSize = 8 // record_count, u64 little-endian

// Spooler is a persistent FIFO on local disk, typed over a fixed record
// T. Every exported method is safe to call from a single goroutine at a
// time; the spooler does not provide its own cross-goroutine locking
// beyond what's needed to keep a single caller's batch-then-flush
// sequence atomic.
type Spooler[T any] struct {
	mu sync.Mutex

	f          *os.File
	batchSize  int
	batch      []T
	recordSize int64
	recordCnt  uint64
}

// New creates a Spooler backed by a fresh file in dir (or an
// env/filesystem-type-selected directory if dir is empty — see
// pickSpoolDir), batching up to batchSize records in memory before
// appending to disk.
func New[T any](dir string, batchSize int) (*Spooler[T], error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	chosen := pickSpoolDir(dir)
	f, err := os.CreateTemp(chosen, "daq-spool-*.bin")
	if err != nil {
		return nil, fmt.Errorf("daq/spool: %w", err)
	}

	var zero T
	recSize := recordSize(zero)

	s := &Spooler[T]{
		f:          f,
		batchSize:  batchSize,
		recordSize: recSize,
	}
	if err := s.writeHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func recordSize(v any) int64 {
	// binary.Size panics for types it can't reflect over; every record
	// type this module spools (daq.Sample) is a plain fixed-width
	// struct, so this is safe in practice.
	n := binary.Size(v)
	if n < 0 {
		panic("daq/spool: record type has no fixed binary size")
	}
	return int64(n)
}

func (s *Spooler[T]) writeHeader() error {
	var hdr [headerSize]byte
	binary.LittleEndian.PutUint64(hdr[:], s.recordCnt)
	if _, err := s.f.WriteAt(hdr[:], 0); err != nil {
		return fmt.Errorf("daq/spool: writing header: %w", err)
	}
	return nil
}

// Spool buffers records in memory, appending to disk and updating the
// header once the batch reaches its configured size.
func (s *Spooler[T]) Spool(records []T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batch = append(s.batch, records...)
	if len(s.batch) < s.batchSize {
		return nil
	}
	return s.flushLocked()
}

// Flush forces any batched records to disk without waiting for the
// batch to fill.
func (s *Spooler[T]) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *Spooler[T]) flushLocked() error {
	if len(s.batch) == 0 {
		return nil
	}

	if _, err := s.f.Seek(0, io.SeekEnd); err != nil {
		return s.diskFullLocked(err)
	}

	for _, rec := range s.batch {
		if err := binary.Write(s.f, binary.LittleEndian, rec); err != nil {
			return s.diskFullLocked(err)
		}
		s.recordCnt++
	}

	if err := s.writeHeader(); err != nil {
		return s.diskFullLocked(err)
	}

	s.batch = s.batch[:0]
	return nil
}

// diskFullLocked truncates the spooler to empty and reports how many
// records were lost: the in-memory batch that failed to flush, plus
// whatever had already been durably written (since the whole file is
// discarded on this path).
func (s *Spooler[T]) diskFullLocked(cause error) error {
	lost := len(s.batch) + int(s.recordCnt)
	s.batch = s.batch[:0]
	s.recordCnt = 0
	_ = s.f.Truncate(0)
	_ = s.writeHeader()
	return &ErrDiskFull{Lost: lost, err: cause}
}

// ForEach streams every record on disk, in write order, followed by any
// still-batched in-memory tail, through op. It stops and returns op's
// error if op returns one.
func (s *Spooler[T]) ForEach(op func(T) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.f.Seek(headerSize, io.SeekStart); err != nil {
		return fmt.Errorf("daq/spool: %w", err)
	}

	const blockRecords = 10
	buf := make([]byte, blockRecords*int(s.recordSize))

	for i := uint64(0); i < s.recordCnt; {
		n := blockRecords
		if remaining := s.recordCnt - i; uint64(n) > remaining {
			n = int(remaining)
		}
		chunk := buf[:n*int(s.recordSize)]
		if _, err := io.ReadFull(s.f, chunk); err != nil {
			return fmt.Errorf("daq/spool: reading records: %w", err)
		}
		for j := 0; j < n; j++ {
			var rec T
			r := chunk[j*int(s.recordSize) : (j+1)*int(s.recordSize)]
			if err := binary.Read(byteSliceReader{r}, binary.LittleEndian, &rec); err != nil {
				return fmt.Errorf("daq/spool: decoding record: %w", err)
			}
			if err := op(rec); err != nil {
				return err
			}
		}
		i += uint64(n)
	}

	for _, rec := range s.batch {
		if err := op(rec); err != nil {
			return err
		}
	}
	return nil
}

// Truncate resets the spooler to empty, discarding both the on-disk
// records and the in-memory batch.
func (s *Spooler[T]) Truncate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batch = s.batch[:0]
	s.recordCnt = 0
	if err := s.f.Truncate(0); err != nil {
		return fmt.Errorf("daq/spool: %w", err)
	}
	return s.writeHeader()
}

// RecordCount returns the number of records currently durable on disk
// (not counting the still-batched in-memory tail).
func (s *Spooler[T]) RecordCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordCnt
}

// Close flushes any pending batch and closes the backing file. The
// spool file is left on disk; callers that want it removed should
// os.Remove(Path()) after Close.
func (s *Spooler[T]) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	return s.f.Close()
}

// Path returns the backing file's path on disk.
func (s *Spooler[T]) Path() string {
	return s.f.Name()
}

type byteSliceReader struct {
	b []byte
}

func (r byteSliceReader) Read(p []byte) (int, error) {
	n := copy(p, r.b)
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// vim: foldmethod=marker
