package dsd_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hz.tools/daq"
	"hz.tools/daq/dsd"
)

func TestRoundTripMaskChangeAndUserData(t *testing.T) {
	var buf bytes.Buffer
	w, err := dsd.NewWriter(&buf, dsd.Float32)
	require.NoError(t, err)

	require.NoError(t, w.WriteUserData("run", []byte("1")))
	require.NoError(t, w.WriteSample(daq.Sample{ChannelID: 0, ScanIndex: 0, Data: 10}))
	require.NoError(t, w.WriteSample(daq.Sample{ChannelID: 1, ScanIndex: 1, Data: 20}))
	require.NoError(t, w.WriteSample(daq.Sample{ChannelID: 0, ScanIndex: 1, Data: 21}))
	require.NoError(t, w.WriteSample(daq.Sample{ChannelID: 1, ScanIndex: 2, Data: 31}))
	require.NoError(t, w.WriteSample(daq.Sample{ChannelID: 0, ScanIndex: 2, Data: 30}))
	require.NoError(t, w.WriteUserData("note", []byte("done")))
	require.NoError(t, w.End())

	r, err := dsd.NewReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	var got []daq.Sample
	for {
		s, err := r.ReadNextSample()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, s)
	}

	require.Len(t, got, 5)
	assert.EqualValues(t, 10, got[0].Data)
	assert.EqualValues(t, 21, got[1].Data)
	assert.EqualValues(t, 20, got[2].Data)
	assert.EqualValues(t, 30, got[3].Data)
	assert.EqualValues(t, 31, got[4].Data)

	assert.Equal(t, []byte("1"), r.UserData()["run"])
	assert.Equal(t, []byte("done"), r.UserData()["note"])
}

func TestReaderCorruptMagic(t *testing.T) {
	_, err := dsd.NewReader(bytes.NewReader([]byte{0, 0, 0, 0, 0, 0, 0, 0}))
	assert.ErrorIs(t, err, dsd.ErrFileCorrupt)
}

func TestReaderMissingFooter(t *testing.T) {
	var buf bytes.Buffer
	w, err := dsd.NewWriter(&buf, dsd.Float32)
	require.NoError(t, err)
	require.NoError(t, w.WriteSample(daq.Sample{ChannelID: 0, ScanIndex: 0, Data: 1}))
	// No End(): no footer gets written.

	_, err = dsd.NewReader(bytes.NewReader(buf.Bytes()))
	assert.ErrorIs(t, err, dsd.ErrFileCorruptNoFooter)
}

func TestSeekForwardAndBackward(t *testing.T) {
	var buf bytes.Buffer
	w, err := dsd.NewWriter(&buf, dsd.Float32)
	require.NoError(t, err)
	for i := uint64(0); i < 5; i++ {
		require.NoError(t, w.WriteSample(daq.Sample{ChannelID: 0, ScanIndex: i, Data: uint32(i)}))
	}
	require.NoError(t, w.End())

	r, err := dsd.NewReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	require.NoError(t, r.Seek(3))
	s, err := r.ReadNextSample()
	require.NoError(t, err)
	assert.EqualValues(t, 3, s.Data)

	require.NoError(t, r.Seek(0))
	s, err = r.ReadNextSample()
	require.NoError(t, err)
	assert.EqualValues(t, 0, s.Data)
}

// vim: foldmethod=marker
