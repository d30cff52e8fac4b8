// {{{ Copyright (c) Paul R. Tagliamonte <paul@k3xec.com>, 2020
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE. }}}

package daq

import (
	"fmt"
)

// MaxChannels is the number of channel-ids the Control Block, Sample FIFO
// and DSD/NDS channel mask can address. ChannelID is a byte on the wire,
// so this can never exceed 256.
const MaxChannels = 256

var (
	// ErrChannelOutOfRange is returned when a channel-id outside of
	// [0, MaxChannels) is used to index a mask, listener table, or
	// Control Block field.
	ErrChannelOutOfRange = fmt.Errorf("daq: channel id out of range")
)

// Sample is the fixed-size record that crosses the Sample FIFO, flows
// through the Reader Loop to every Listener, and is what the DSD/NDS
// Stream Writer encodes one channel-scalar at a time.
//
// This is a value type, not a pointer: copying a Sample is the whole
// point, since it's what flows, by value, down the FIFO and through
// every listener's Consume call.
type Sample struct {
	// ChannelID identifies which analog input channel produced this
	// reading, in [0, MaxChannels).
	ChannelID uint8

	// ScanIndex is the monotonic index of the scan this sample belongs
	// to. All samples captured at the same instant across channels
	// share the same ScanIndex.
	ScanIndex uint64

	// RangeID identifies which range/reference setting was active on
	// this channel when the sample was taken.
	RangeID uint32

	// Data is the raw integer reading from the board, in the units of
	// whatever RangeID denotes.
	Data uint32

	// Spike reports whether the Spike Detector flagged this sample.
	Spike bool

	// SpikePeriod is the number of milliseconds since the previous
	// spike on this channel, or 0 if there was none.
	SpikePeriod uint32
}

// String implements fmt.Stringer, mostly for test failure output.
func (s Sample) String() string {
	return fmt.Sprintf(
		"Sample{chan=%d scan=%d range=%d data=%d spike=%v period=%dms}",
		s.ChannelID, s.ScanIndex, s.RangeID, s.Data, s.Spike, s.SpikePeriod,
	)
}

// Mask is a bitset over channel-ids, used for the Control Block's
// ai_chans_in_use/ao_chans_in_use and the DSD/NDS channel mask.
type Mask [MaxChannels / 64]uint64

// Set marks chan as enabled in the mask.
func (m *Mask) Set(chanID uint8) {
	m[chanID/64] |= 1 << (chanID % 64)
}

// Clear marks chan as disabled in the mask.
func (m *Mask) Clear(chanID uint8) {
	m[chanID/64] &^= 1 << (chanID % 64)
}

// IsSet reports whether chan is enabled in the mask.
func (m Mask) IsSet(chanID uint8) bool {
	return m[chanID/64]&(1<<(chanID%64)) != 0
}

// Count returns the number of set bits (popcount) in the mask.
func (m Mask) Count() int {
	n := 0
	for _, word := range m {
		for word != 0 {
			word &= word - 1
			n++
		}
	}
	return n
}

// Equal reports whether two masks have the same bits set.
func (m Mask) Equal(other Mask) bool {
	return m == other
}

// ChannelsOn returns the ordered (ascending) list of channel-ids set in
// the mask. This is the dense ordering used to lay out one scan's worth
// of scalars in the DSD/NDS stream.
func (m Mask) ChannelsOn() []uint8 {
	var out []uint8
	for c := 0; c < MaxChannels; c++ {
		if m.IsSet(uint8(c)) {
			out = append(out, uint8(c))
		}
	}
	return out
}

// vim: foldmethod=marker
