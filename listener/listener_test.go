package listener_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"hz.tools/daq"
	"hz.tools/daq/listener"
)

func TestChannelSet(t *testing.T) {
	set := listener.ChannelSet(1, 3, 5)
	assert.Len(t, set, 3)
	_, ok := set[3]
	assert.True(t, ok)
	_, ok = set[2]
	assert.False(t, ok)
}

func TestFunc(t *testing.T) {
	var got []daq.Sample
	f := &listener.Func{
		Channels: listener.ChannelSet(1),
		Fn: func(s daq.Sample) {
			got = append(got, s)
		},
	}

	assert.Contains(t, f.ChannelIDs(), uint8(1))
	f.Consume(daq.Sample{ChannelID: 1, Data: 7})
	assert.Equal(t, []daq.Sample{{ChannelID: 1, Data: 7}}, got)
}

// vim: foldmethod=marker
