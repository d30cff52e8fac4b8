// Package loop implements the Reader Loop: it owns a source.Source and
// reader.Reader pair, fans each incoming Sample out to the listeners
// subscribed to its channel-id, and schedules itself to run again after
// the source's suggested poll wait.
package loop

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"hz.tools/daq"
	"hz.tools/daq/listener"
	"hz.tools/daq/reader"
	"hz.tools/daq/source"
)

// Grapher is implemented by listeners that provide a live plot, so
// GraphListenerExists can answer without assuming every listener is a
// plotter.
type Grapher interface {
	listener.Listener
	IsGraphListener() bool
}

// Loop is the Reader Loop: single-threaded cooperative scheduling, owned
// source+reader, per-channel listener fan-out.
type Loop struct {
	rdr *reader.Reader
	src source.Source
	log *log.Logger

	mu        sync.Mutex
	listeners [daq.MaxChannels][]listener.Listener

	stop bool

	eofDropped uint64
}

// New creates a Loop driving rdr over src. logger may be nil, in which
// case a default charmbracelet/log logger writing to the process's
// stderr is used.
func New(rdr *reader.Reader, src source.Source, logger *log.Logger) *Loop {
	if logger == nil {
		logger = log.Default()
	}
	return &Loop{rdr: rdr, src: src, log: logger}
}

// AddListener inserts lst into every per-channel vector named by its
// ChannelIDs.
func (l *Loop) AddListener(lst listener.Listener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for c := range lst.ChannelIDs() {
		l.listeners[c] = append(l.listeners[c], lst)
	}
}

// RemoveListener idempotently removes lst from every per-channel vector.
// After this returns, lst.Consume is never called again.
func (l *Loop) RemoveListener(lst listener.Listener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for c := range lst.ChannelIDs() {
		lst := lst
		bucket := l.listeners[c]
		for i, existing := range bucket {
			if existing == lst {
				l.listeners[c] = append(bucket[:i], bucket[i+1:]...)
				break
			}
		}
	}
}

// GraphListenerExists reports whether some Grapher-capable listener is
// attached to chanID.
func (l *Loop) GraphListenerExists(chanID uint8) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, lst := range l.listeners[chanID] {
		if g, ok := lst.(Grapher); ok && g.IsGraphListener() {
			return true
		}
	}
	return false
}

// Stop requests the loop to exit at the top of its next tick. Stopping
// is cooperative: it leaves the source intact for reopening, and the
// loop holds no samples between invocations, so nothing already
// delivered is lost.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stop = true
}

func (l *Loop) stopped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stop
}

// Tick runs exactly one iteration of the loop: reads all available
// records and dispatches them to listeners. It returns the poll wait the
// caller should sleep before calling Tick again, and a bool reporting
// whether the loop should keep running.
//
// SampleDeviceEof stops the loop cleanly (the spec's terminate-on-EOF
// policy); any other source error stops the loop and is returned to the
// caller. A panicking listener is caught, removed, and logged rather
// than propagated, matching the spec's "listener exceptions never
// propagate" rule.
func (l *Loop) Tick() (time.Duration, bool, error) {
	if l.stopped() {
		return 0, false, nil
	}

	records, err := l.rdr.ReadAll()
	if err != nil {
		if errors.Is(err, source.ErrEOF) {
			l.log.Info("reader loop: source reached EOF, stopping",
				"total_read", l.rdr.TotalRead(),
				"total_dropped", l.rdr.TotalDropped())
			return 0, false, nil
		}
		l.log.Error("reader loop: source error, stopping", "err", err)
		return 0, false, err
	}

	for _, rec := range records {
		l.dispatch(rec)
	}

	wait := time.Duration(l.src.SuggestPollWaitMS()) * time.Millisecond
	return wait, true, nil
}

func (l *Loop) dispatch(rec daq.Sample) {
	l.mu.Lock()
	bucket := append([]listener.Listener(nil), l.listeners[rec.ChannelID]...)
	l.mu.Unlock()

	for _, lst := range bucket {
		l.consumeSafely(lst, rec)
	}
}

func (l *Loop) consumeSafely(lst listener.Listener, rec daq.Sample) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("reader loop: listener panicked, removing", "err", fmt.Sprint(r))
			l.RemoveListener(lst)
		}
	}()
	lst.Consume(rec)
}

// Run drives Tick in a blocking loop until Stop is called, the source
// reaches EOF, or a source error occurs. It's the "blocking loop"
// scheduling option the spec allows alongside an external timer or
// async executor calling Tick directly.
func (l *Loop) Run() error {
	for {
		wait, more, err := l.Tick()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
		if wait > 0 {
			time.Sleep(wait)
		}
	}
}

// vim: foldmethod=marker
