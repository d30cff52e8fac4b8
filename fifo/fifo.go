// Package fifo implements the Sample FIFO: the single-producer,
// single-consumer channel between the sampling task and the reader loop.
//
// The producer side never blocks: Enqueue either succeeds or reports that
// the ring is full, in which case the sample is dropped and a counter is
// incremented, matching the "best-effort producer" contract. The consumer
// side can block with a timeout via WaitForData, backed by a notification
// channel rather than a spin/poll loop.
package fifo

import (
	"fmt"
	"time"

	"code.hybscloud.com/lfq"

	"hz.tools/daq"
)

// ErrFifoCorruption is returned if a record boundary could not be
// preserved. The lock-free ring below is typed over daq.Sample rather
// than raw bytes, so a torn record is not reachable through this
// implementation; the error is kept so callers written against the FIFO
// contract (and the C-struct-packed producer this mirrors) have
// something to check for.
var ErrFifoCorruption = fmt.Errorf("daq/fifo: record boundary corrupted")

// Fifo is the lock-free, fixed-capacity ring buffer carrying daq.Sample
// records from the producer domain to the consumer domain.
type Fifo struct {
	ring    *lfq.SPSC[daq.Sample]
	notify  chan struct{}
	dropped uint64
}

// New creates a Fifo with room for capacity records, rounded up to the
// next power of two by the underlying ring.
func New(capacity int) *Fifo {
	return &Fifo{
		ring: lfq.NewSPSC[daq.Sample](capacity),
		// notify is a depth-1 channel: it only needs to wake a sleeping
		// consumer, not queue one wakeup per sample.
		notify: make(chan struct{}, 1),
	}
}

// Cap returns the FIFO's capacity in records.
func (f *Fifo) Cap() int {
	return f.ring.Cap()
}

// Enqueue is called only from the producer domain. It never blocks: if
// the ring is full the sample is dropped and the dropped-sample counter
// is incremented, per the spec's best-effort producer policy.
func (f *Fifo) Enqueue(s daq.Sample) {
	if err := f.ring.Enqueue(&s); err != nil {
		f.dropped++
		return
	}
	select {
	case f.notify <- struct{}{}:
	default:
	}
}

// Dropped returns the number of samples dropped because the ring was
// full when Enqueue was called.
func (f *Fifo) Dropped() uint64 {
	return f.dropped
}

// Dequeue is called only from the consumer domain. It returns
// lfq.ErrWouldBlock immediately if no record is presently available.
func (f *Fifo) Dequeue() (daq.Sample, error) {
	return f.ring.Dequeue()
}

// WaitForData blocks until a sample has been enqueued or maxWait has
// elapsed, whichever comes first. A negative maxWait waits indefinitely.
// It returns true if woken by data, false on timeout.
//
// The wakeup is a hint, not a guarantee: by the time the caller drains
// the ring with Dequeue, another consumer-side delay may mean there's
// nothing left (there is only ever one consumer by contract, but a
// spurious wakeup from a coalesced notify is still possible) or there
// may be more than one record waiting.
func (f *Fifo) WaitForData(maxWait time.Duration) bool {
	if maxWait < 0 {
		<-f.notify
		return true
	}
	timer := time.NewTimer(maxWait)
	defer timer.Stop()
	select {
	case <-f.notify:
		return true
	case <-timer.C:
		return false
	}
}

// vim: foldmethod=marker
