// Package listener defines the Listener Protocol: the small interface
// the Reader Loop fans samples out to, and the channel-id subscription
// set every listener carries.
package listener

import "hz.tools/daq"

// Listener is consumed by the Reader Loop. A Listener declares which
// channel-ids it wants via ChannelIDs and receives every Sample on those
// channels, in producer order, via Consume.
type Listener interface {
	// ChannelIDs returns the set of channel-ids this listener is
	// subscribed to.
	ChannelIDs() map[uint8]struct{}

	// Consume is called once per matching Sample, in insertion order
	// relative to other listeners on the same channel.
	Consume(daq.Sample)
}

// Func adapts a plain function plus a fixed channel set into a Listener,
// for the common case of a listener with no other state (a plotter
// hook, a spike logger).
//
// Register it with loop.Loop by pointer (&Func{...}): the loop's
// RemoveListener identifies a listener by interface equality, and a Func
// value carries a map and a func field, neither of which is comparable.
type Func struct {
	Channels map[uint8]struct{}
	Fn       func(daq.Sample)
}

// ChannelIDs implements the Listener interface.
func (f *Func) ChannelIDs() map[uint8]struct{} {
	return f.Channels
}

// Consume implements the Listener interface.
func (f *Func) Consume(s daq.Sample) {
	f.Fn(s)
}

// ChannelSet builds the map[uint8]struct{} subscription set ChannelIDs
// returns, from a plain list of channel-ids.
func ChannelSet(chans ...uint8) map[uint8]struct{} {
	set := make(map[uint8]struct{}, len(chans))
	for _, c := range chans {
		set[c] = struct{}{}
	}
	return set
}

// vim: foldmethod=marker
