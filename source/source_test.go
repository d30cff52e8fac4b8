package source_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"hz.tools/daq"
	"hz.tools/daq/fifo"
	"hz.tools/daq/source"
)

func TestFifoSource(t *testing.T) {
	f := fifo.New(8)
	f.Enqueue(daq.Sample{ChannelID: 1})
	f.Enqueue(daq.Sample{ChannelID: 2})

	s := source.NewFifoSource(f, 5)
	ready, err := s.WaitForData(time.Second)
	assert.NoError(t, err)
	assert.True(t, ready)

	buf := make([]daq.Sample, 4)
	n, err := s.Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 5, s.SuggestPollWaitMS())
}

func TestFileSource(t *testing.T) {
	records := []daq.Sample{
		{ChannelID: 0, ScanIndex: 0},
		{ChannelID: 1, ScanIndex: 0},
	}
	s := source.NewFileSource(records)

	buf := make([]daq.Sample, 1)
	n, err := s.Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, uint8(0), buf[0].ChannelID)

	n, err = s.Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, uint8(1), buf[0].ChannelID)

	_, err = s.Read(buf)
	assert.ErrorIs(t, err, source.ErrEOF)
}

// vim: foldmethod=marker
