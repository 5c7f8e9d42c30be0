package loudness

import (
	"math"

	"github.com/opd-ai/loudnorm/audio"
)

// True peak is estimated on the unweighted signal by interpolating three
// additional sample phases between every pair of input samples (4x
// oversampling) and taking the largest absolute value seen in any phase.
// The plain sample maximum systematically misses inter-sample peaks, so
// phase 0 alone is never enough.
const (
	oversampleFactor = 4

	// interpolatorTaps is the total length of the windowed-sinc kernel.
	// Odd length keeps phase 0 a pure delay, so the raw samples survive
	// the estimate unchanged.
	interpolatorTaps = 49
)

type truePeakInterpolator struct {
	// phases holds one FIR per oversampling phase, each normalized to
	// unity DC gain.
	phases [oversampleFactor][]float64
}

func newTruePeakInterpolator() *truePeakInterpolator {
	center := (interpolatorTaps - 1) / 2

	kernel := make([]float64, interpolatorTaps)
	for n := range kernel {
		t := float64(n-center) / float64(oversampleFactor)
		window := 0.5 * (1.0 - math.Cos(2.0*math.Pi*float64(n)/float64(interpolatorTaps-1)))
		kernel[n] = sinc(t) * window
	}

	ip := &truePeakInterpolator{}
	for p := 0; p < oversampleFactor; p++ {
		var taps []float64
		sum := 0.0
		for n := p; n < interpolatorTaps; n += oversampleFactor {
			taps = append(taps, kernel[n])
			sum += kernel[n]
		}
		for i := range taps {
			taps[i] /= sum
		}
		ip.phases[p] = taps
	}
	return ip
}

func sinc(t float64) float64 {
	if t == 0 {
		return 1.0
	}
	return math.Sin(math.Pi*t) / (math.Pi * t)
}

// channelPeak returns the largest absolute oversampled value of one channel.
func (ip *truePeakInterpolator) channelPeak(samples []float64) float64 {
	peak := 0.0

	// Phase 0 is the identity, so the raw sample maximum covers it.
	for _, s := range samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}

	// Interpolated phases only run where the kernel has full support;
	// truncated convolution at the edges would overshoot instead of
	// interpolate.
	for p := 1; p < oversampleFactor; p++ {
		taps := ip.phases[p]
		for n := len(taps) - 1; n < len(samples); n++ {
			acc := 0.0
			for k, h := range taps {
				acc += h * samples[n-k]
			}
			if a := math.Abs(acc); a > peak {
				peak = a
			}
		}
	}
	return peak
}

// TruePeak estimates the true peak of a buffer in dBTP. A peak of exactly
// zero reports negative infinity.
func TruePeak(buf *audio.Buffer) float64 {
	ip := newTruePeakInterpolator()
	peak := 0.0
	for _, channel := range buf.Data {
		if p := ip.channelPeak(channel); p > peak {
			peak = p
		}
	}
	if peak == 0 {
		return math.Inf(-1)
	}
	return 20.0 * math.Log10(peak)
}
