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

// TestScenarioS4 follows spec scenario S4: write 10 scans and crash
// before End(); the repair tool must recover all 10 scans intact.
func TestScenarioS4(t *testing.T) {
	var raw bytes.Buffer
	w, err := dsd.NewWriter(&raw, dsd.Float32)
	require.NoError(t, err)
	for i := uint64(0); i < 10; i++ {
		require.NoError(t, w.WriteSample(daq.Sample{ChannelID: 0, ScanIndex: i, Data: uint32(i)}))
		require.NoError(t, w.WriteSample(daq.Sample{ChannelID: 1, ScanIndex: i, Data: uint32(i) + 100}))
	}
	// No End(): the footer is never written, simulating a crash.

	var recovered bytes.Buffer
	n, err := dsd.Repair(bytes.NewReader(raw.Bytes()), &recovered)
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	r, err := dsd.NewReader(bytes.NewReader(recovered.Bytes()))
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
	require.Len(t, got, 20)
	for i := uint64(0); i < 10; i++ {
		assert.EqualValues(t, i, got[i*2].Data)
		assert.EqualValues(t, i+100, got[i*2+1].Data)
	}
}

func TestRepairIdempotentOnWellFormedFile(t *testing.T) {
	var raw bytes.Buffer
	w, err := dsd.NewWriter(&raw, dsd.Float32)
	require.NoError(t, err)
	for i := uint64(0); i < 3; i++ {
		require.NoError(t, w.WriteSample(daq.Sample{ChannelID: 0, ScanIndex: i, Data: uint32(i)}))
	}
	require.NoError(t, w.End())

	var repaired bytes.Buffer
	n, err := dsd.Repair(bytes.NewReader(raw.Bytes()), &repaired)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	r1, err := dsd.NewReader(bytes.NewReader(raw.Bytes()))
	require.NoError(t, err)
	r2, err := dsd.NewReader(bytes.NewReader(repaired.Bytes()))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		s1, err1 := r1.ReadNextSample()
		s2, err2 := r2.ReadNextSample()
		require.NoError(t, err1)
		require.NoError(t, err2)
		assert.Equal(t, s1.Data, s2.Data)
	}
}

// vim: foldmethod=marker
