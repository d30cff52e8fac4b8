package emulate

import "math"

// SineWaveform returns a Waveform tracing a sine wave of the given
// amplitude and frequency, sampled at sampleRate, offset around
// baseline, as a single scalar channel reading per tick.
func SineWaveform(baseline, amplitude uint32, freqHz float64, sampleRate int) Waveform {
	return func(tick uint64) uint32 {
		phase := 2 * math.Pi * freqHz * float64(tick) / float64(sampleRate)
		v := float64(baseline) + float64(amplitude)*math.Sin(phase)
		if v < 0 {
			return 0
		}
		return uint32(v)
	}
}

// RampWaveform returns a Waveform that counts up from baseline to
// baseline+amplitude over period ticks, then wraps — useful for tests
// that need a deterministic, strictly-ordered sequence of values.
func RampWaveform(baseline, amplitude uint32, period uint64) Waveform {
	if period == 0 {
		period = 1
	}
	return func(tick uint64) uint32 {
		return baseline + uint32(tick%period)*amplitude/uint32(period)
	}
}

// StepWaveform returns a Waveform that reports baseline except every
// stride-th tick, where it reports baseline+amplitude — a periodic spike
// generator useful for exercising the Spike Detector.
func StepWaveform(baseline, amplitude uint32, stride uint64) Waveform {
	if stride == 0 {
		stride = 1
	}
	return func(tick uint64) uint32 {
		if tick%stride == 0 {
			return baseline + amplitude
		}
		return baseline
	}
}

// vim: foldmethod=marker
