package fifo_test

import (
	"testing"
	"time"

	"code.hybscloud.com/lfq"
	"github.com/stretchr/testify/assert"

	"hz.tools/daq"
	"hz.tools/daq/fifo"
)

func TestFifoEnqueueDequeue(t *testing.T) {
	f := fifo.New(8)

	f.Enqueue(daq.Sample{ChannelID: 1, ScanIndex: 0})
	f.Enqueue(daq.Sample{ChannelID: 2, ScanIndex: 0})

	s, err := f.Dequeue()
	assert.NoError(t, err)
	assert.Equal(t, uint8(1), s.ChannelID)

	s, err = f.Dequeue()
	assert.NoError(t, err)
	assert.Equal(t, uint8(2), s.ChannelID)

	_, err = f.Dequeue()
	assert.Equal(t, lfq.ErrWouldBlock, err)
}

func TestFifoDropsWhenFull(t *testing.T) {
	f := fifo.New(2)

	for i := 0; i < 10; i++ {
		f.Enqueue(daq.Sample{ChannelID: uint8(i)})
	}

	assert.True(t, f.Dropped() > 0)
}

func TestFifoWaitForData(t *testing.T) {
	f := fifo.New(8)

	done := make(chan bool, 1)
	go func() {
		done <- f.WaitForData(time.Second)
	}()

	f.Enqueue(daq.Sample{ChannelID: 5})
	assert.True(t, <-done)

	s, err := f.Dequeue()
	assert.NoError(t, err)
	assert.Equal(t, uint8(5), s.ChannelID)
}

func TestFifoWaitForDataTimeout(t *testing.T) {
	f := fifo.New(8)
	woke := f.WaitForData(10 * time.Millisecond)
	assert.False(t, woke)
}

// vim: foldmethod=marker
