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

package daqtest

import (
	"math"

	"hz.tools/rf"
)

// Sine fills buf with a sine wave of the given frequency and amplitude,
// sampled at sampleRate, starting at phase, scaled into [0, amplitude],
// as a deterministic, non-constant test waveform.
func Sine(buf []uint32, freq rf.Hz, amplitude uint32, sampleRate int, phase float64) {
	var (
		carrierFreq = float64(freq)
		tau         = math.Pi * 2
	)
	for i := range buf {
		now := float64(i) / float64(sampleRate)
		v := math.Sin(tau*carrierFreq*now + phase)
		buf[i] = uint32(float64(amplitude) * (v + 1) / 2)
	}
}

// Ramp fills buf with a sawtooth counting from 0 to amplitude and back to
// 0 over period samples, useful for asserting on ordering and for
// exercising the Spike Detector's blanking interval deterministically.
func Ramp(buf []uint32, amplitude uint32, period int) {
	if period <= 0 {
		period = 1
	}
	for i := range buf {
		pos := i % period
		buf[i] = uint32((int(amplitude) * pos) / period)
	}
}

// Step fills buf with a constant baseline, placing one spike of height
// amplitude at every stride-th sample, a pattern on which a spike
// detector fires on known samples only.
func Step(buf []uint32, baseline, amplitude uint32, stride int) {
	if stride <= 0 {
		stride = len(buf) + 1
	}
	for i := range buf {
		if i%stride == 0 {
			buf[i] = baseline + amplitude
		} else {
			buf[i] = baseline
		}
	}
}

// vim: foldmethod=marker
