package reader_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"hz.tools/daq"
	"hz.tools/daq/reader"
	"hz.tools/daq/source"
)

func TestReaderDropDetection(t *testing.T) {
	records := []daq.Sample{
		{ChannelID: 0, ScanIndex: 0},
		{ChannelID: 0, ScanIndex: 1},
		{ChannelID: 0, ScanIndex: 4}, // gap of 2: indices 2,3 dropped
	}
	src := source.NewFileSource(records)
	r := reader.New(src, time.Second, 16)

	got, err := r.ReadAll()
	assert.NoError(t, err)
	assert.Equal(t, 3, len(got))
	assert.Equal(t, uint64(2), r.TotalDropped())
	assert.Equal(t, uint64(3), r.TotalRead())
}

func TestReaderNoFalseDropOnFirstSight(t *testing.T) {
	records := []daq.Sample{
		{ChannelID: 0, ScanIndex: 100},
	}
	src := source.NewFileSource(records)
	r := reader.New(src, time.Second, 16)

	_, err := r.ReadAll()
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), r.TotalDropped())
	assert.Equal(t, uint64(100), r.ScanStartedIndex())
}

func TestReaderEOF(t *testing.T) {
	src := source.NewFileSource(nil)
	r := reader.New(src, time.Second, 16)

	_, err := r.ReadAll()
	assert.ErrorIs(t, err, source.ErrEOF)
}

// vim: foldmethod=marker
