package spool_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hz.tools/daq"
	"hz.tools/daq/spool"
)

func TestSpoolForEach(t *testing.T) {
	dir := t.TempDir()
	s, err := spool.New[daq.Sample](dir, 100)
	require.NoError(t, err)
	defer s.Close()

	const total = 250
	records := make([]daq.Sample, total)
	for i := range records {
		records[i] = daq.Sample{ChannelID: 0, ScanIndex: uint64(i), Data: uint32(i)}
	}

	require.NoError(t, s.Spool(records))
	require.NoError(t, s.Flush())

	assert.EqualValues(t, total, s.RecordCount())

	var sum uint64
	var count int
	err = s.ForEach(func(rec daq.Sample) error {
		sum += uint64(rec.Data)
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, total, count)

	var want uint64
	for i := 0; i < total; i++ {
		want += uint64(i)
	}
	assert.Equal(t, want, sum)

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Greater(t, len(raw), 8)
}

func TestSpoolTruncate(t *testing.T) {
	dir := t.TempDir()
	s, err := spool.New[daq.Sample](dir, 10)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Spool([]daq.Sample{{ChannelID: 0}, {ChannelID: 1}}))
	require.NoError(t, s.Flush())
	assert.EqualValues(t, 2, s.RecordCount())

	require.NoError(t, s.Truncate())
	assert.EqualValues(t, 0, s.RecordCount())

	var calls int
	require.NoError(t, s.ForEach(func(daq.Sample) error { calls++; return nil }))
	assert.Equal(t, 0, calls)
}

func TestSpoolBatchesBeforeFlush(t *testing.T) {
	dir := t.TempDir()
	s, err := spool.New[daq.Sample](dir, 5)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Spool([]daq.Sample{{ChannelID: 0}, {ChannelID: 1}}))
	assert.EqualValues(t, 0, s.RecordCount(), "batch not yet flushed to disk")

	var seen int
	require.NoError(t, s.ForEach(func(daq.Sample) error { seen++; return nil }))
	assert.Equal(t, 2, seen, "ForEach still sees the in-memory tail")
}

// vim: foldmethod=marker
