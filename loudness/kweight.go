package loudness

import "math"

// K-weighting models perceived loudness with two cascaded biquads: a high
// shelf emphasising frequencies the head amplifies, then a high-pass
// removing low-frequency energy the ear discounts. The analog prototype
// parameters below reproduce the published 48 kHz coefficient table when
// bilinear-transformed at that rate, and generalize the filter to any
// sample rate.
const (
	shelfCenterHz = 1681.9744509555319
	shelfGainDB   = 3.99984385397
	shelfQ        = 0.7071752369554196

	highpassCenterHz = 38.13547087602444
	highpassQ        = 0.5003270373238773

	// shelfGainExponent positions the shelf midpoint gain used by the
	// bilinear transform of the pre-filter.
	shelfGainExponent = 0.4996667741545416
)

// biquad is a second-order IIR section with a normalized a0.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// process filters src into dst using direct form II transposed with fresh
// state. dst and src may alias.
func (f biquad) process(dst, src []float64) {
	var z1, z2 float64
	for i, x := range src {
		y := f.b0*x + z1
		z1 = f.b1*x - f.a1*y + z2
		z2 = f.b2*x - f.a2*y
		dst[i] = y
	}
}

// kWeighting is the two-stage perceptual filter cascade for one sample rate.
type kWeighting struct {
	shelf    biquad
	highpass biquad
}

func newKWeighting(sampleRate int) kWeighting {
	return kWeighting{
		shelf:    shelfCoefficients(float64(sampleRate)),
		highpass: highpassCoefficients(float64(sampleRate)),
	}
}

// apply returns the K-weighted copy of one channel.
func (k kWeighting) apply(samples []float64) []float64 {
	out := make([]float64, len(samples))
	k.shelf.process(out, samples)
	k.highpass.process(out, out)
	return out
}

func shelfCoefficients(fs float64) biquad {
	k := math.Tan(math.Pi * shelfCenterHz / fs)
	vh := math.Pow(10.0, shelfGainDB/20.0)
	vb := math.Pow(vh, shelfGainExponent)
	denom := 1.0 + k/shelfQ + k*k

	return biquad{
		b0: (vh + vb*k/shelfQ + k*k) / denom,
		b1: 2.0 * (k*k - vh) / denom,
		b2: (vh - vb*k/shelfQ + k*k) / denom,
		a1: 2.0 * (k*k - 1.0) / denom,
		a2: (1.0 - k/shelfQ + k*k) / denom,
	}
}

func highpassCoefficients(fs float64) biquad {
	k := math.Tan(math.Pi * highpassCenterHz / fs)
	denom := 1.0 + k/highpassQ + k*k

	return biquad{
		b0: 1.0,
		b1: -2.0,
		b2: 1.0,
		a1: 2.0 * (k*k - 1.0) / denom,
		a2: (1.0 - k/highpassQ + k*k) / denom,
	}
}
