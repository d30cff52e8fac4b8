package dsd_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hz.tools/daq"
	"hz.tools/daq/dsd"
)

// TestScenarioS1 follows spec scenario S1: two channels, two scans.
func TestScenarioS1(t *testing.T) {
	var buf bytes.Buffer
	w, err := dsd.NewWriter(&buf, dsd.Float32)
	require.NoError(t, err)

	require.NoError(t, w.WriteSample(daq.Sample{ChannelID: 0, ScanIndex: 0, Data: 1}))
	require.NoError(t, w.WriteSample(daq.Sample{ChannelID: 1, ScanIndex: 0, Data: 2}))
	require.NoError(t, w.WriteSample(daq.Sample{ChannelID: 0, ScanIndex: 1, Data: 3}))
	require.NoError(t, w.WriteSample(daq.Sample{ChannelID: 1, ScanIndex: 1, Data: 4}))
	require.NoError(t, w.End())

	r, err := dsd.NewReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	scan0, err := r.ReadNextScan()
	require.NoError(t, err)
	assert.EqualValues(t, 1, scan0[0].Data)
	assert.EqualValues(t, 2, scan0[1].Data)

	scan1, err := r.ReadNextScan()
	require.NoError(t, err)
	assert.EqualValues(t, 3, scan1[0].Data)
	assert.EqualValues(t, 4, scan1[1].Data)

	assert.EqualValues(t, 2, r.History().ScanCount)
	assert.EqualValues(t, 4, r.History().SampleCount)
}

// TestScenarioS2 follows spec scenario S2: scans 0..9 on {0,1}, skip to
// scan 20 writing only {0}.
func TestScenarioS2(t *testing.T) {
	var buf bytes.Buffer
	w, err := dsd.NewWriter(&buf, dsd.Float32)
	require.NoError(t, err)

	for i := uint64(0); i < 10; i++ {
		require.NoError(t, w.WriteSample(daq.Sample{ChannelID: 0, ScanIndex: i, Data: uint32(i)}))
		require.NoError(t, w.WriteSample(daq.Sample{ChannelID: 1, ScanIndex: i, Data: uint32(i) + 100}))
	}
	require.NoError(t, w.WriteSample(daq.Sample{ChannelID: 0, ScanIndex: 20, Data: 999}))
	require.NoError(t, w.End())

	r, err := dsd.NewReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	require.Len(t, r.History().SkippedRanges, 1)
	assert.Equal(t, uint64(10), r.History().SkippedRanges[0].From)
	assert.Equal(t, uint64(19), r.History().SkippedRanges[0].To)

	chans := r.ChannelsOn(0, 20)
	assert.ElementsMatch(t, []uint8{0, 1}, chans)

	assert.EqualValues(t, 11, r.ScanCount(0, 20))
}

// TestScenarioS3 follows spec scenario S3: rate change at scan 5 from
// 1000 to 2000 Hz.
func TestScenarioS3(t *testing.T) {
	var buf bytes.Buffer
	w, err := dsd.NewWriter(&buf, dsd.Float32)
	require.NoError(t, err)

	w.SetSamplingRate(1000)
	for i := uint64(0); i < 5; i++ {
		require.NoError(t, w.WriteSample(daq.Sample{ChannelID: 0, ScanIndex: i, Data: uint32(i)}))
	}
	w.SetSamplingRate(2000)
	for i := uint64(5); i < 11; i++ {
		require.NoError(t, w.WriteSample(daq.Sample{ChannelID: 0, ScanIndex: i, Data: uint32(i)}))
	}
	require.NoError(t, w.End())

	r, err := dsd.NewReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	assert.EqualValues(t, 1000, r.RateAt(4))
	assert.EqualValues(t, 2000, r.RateAt(5))
	assert.InDelta(t, 5.0/1000.0+6.0/2000.0, r.TimeAt(10), 1e-9)
}

func TestWriterOutOfOrder(t *testing.T) {
	var buf bytes.Buffer
	w, err := dsd.NewWriter(&buf, dsd.Float32)
	require.NoError(t, err)

	require.NoError(t, w.WriteSample(daq.Sample{ChannelID: 0, ScanIndex: 5, Data: 1}))
	err = w.WriteSample(daq.Sample{ChannelID: 0, ScanIndex: 4, Data: 1})
	assert.ErrorIs(t, err, dsd.ErrOutOfOrder)
}

func TestWriterUserData(t *testing.T) {
	var buf bytes.Buffer
	w, err := dsd.NewWriter(&buf, dsd.Float32)
	require.NoError(t, err)

	require.NoError(t, w.WriteSample(daq.Sample{ChannelID: 0, ScanIndex: 0, Data: 1}))
	require.NoError(t, w.WriteUserData("operator", []byte("jdoe")))
	require.NoError(t, w.WriteSample(daq.Sample{ChannelID: 0, ScanIndex: 1, Data: 2}))
	require.NoError(t, w.End())

	r, err := dsd.NewReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []byte("jdoe"), r.UserData()["operator"])

	_, err = r.ReadNextScan()
	require.NoError(t, err)
	_, err = r.ReadNextScan()
	require.NoError(t, err)
}

// vim: foldmethod=marker
