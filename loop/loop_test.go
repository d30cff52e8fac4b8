package loop_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"hz.tools/daq"
	"hz.tools/daq/listener"
	"hz.tools/daq/loop"
	"hz.tools/daq/reader"
	"hz.tools/daq/source"
)

func TestLoopFanOut(t *testing.T) {
	records := []daq.Sample{
		{ChannelID: 0, ScanIndex: 0},
		{ChannelID: 1, ScanIndex: 0},
	}
	src := source.NewFileSource(records)
	rdr := reader.New(src, time.Second, 16)
	l := loop.New(rdr, src, nil)

	var a, b []daq.Sample
	listenerA := &listener.Func{
		Channels: listener.ChannelSet(0),
		Fn:       func(s daq.Sample) { a = append(a, s) },
	}
	listenerB := &listener.Func{
		Channels: listener.ChannelSet(0, 1),
		Fn:       func(s daq.Sample) { b = append(b, s) },
	}
	l.AddListener(listenerA)
	l.AddListener(listenerB)

	_, more, err := l.Tick()
	assert.NoError(t, err)
	assert.True(t, more)

	assert.Len(t, a, 1)
	assert.Len(t, b, 2)

	l.RemoveListener(listenerB)
	b = nil

	_, more, err = l.Tick()
	assert.NoError(t, err)
	assert.False(t, more) // file source now exhausted -> EOF
	assert.Empty(t, b)
}

func TestLoopListenerPanicIsolated(t *testing.T) {
	records := []daq.Sample{{ChannelID: 0, ScanIndex: 0}}
	src := source.NewFileSource(records)
	rdr := reader.New(src, time.Second, 16)
	l := loop.New(rdr, src, nil)

	panicky := &listener.Func{
		Channels: listener.ChannelSet(0),
		Fn:       func(daq.Sample) { panic("boom") },
	}
	l.AddListener(panicky)

	assert.NotPanics(t, func() {
		_, _, err := l.Tick()
		assert.NoError(t, err)
	})
}

func TestGraphListenerExists(t *testing.T) {
	records := []daq.Sample{{ChannelID: 0, ScanIndex: 0}}
	src := source.NewFileSource(records)
	rdr := reader.New(src, time.Second, 16)
	l := loop.New(rdr, src, nil)

	assert.False(t, l.GraphListenerExists(0))

	l.AddListener(&graphListener{chans: listener.ChannelSet(0)})
	assert.True(t, l.GraphListenerExists(0))
}

type graphListener struct {
	chans map[uint8]struct{}
}

func (g *graphListener) ChannelIDs() map[uint8]struct{} { return g.chans }
func (g *graphListener) Consume(daq.Sample)             {}
func (g *graphListener) IsGraphListener() bool          { return true }

// vim: foldmethod=marker
