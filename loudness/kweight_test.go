package loudness

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShelfCoefficientsMatchPublished48kTable(t *testing.T) {
	// The standard publishes the pre-filter for 48 kHz; the analog
	// prototype derivation must reproduce it.
	f := shelfCoefficients(48000.0)

	assert.InDelta(t, 1.53512485958697, f.b0, 1e-6)
	assert.InDelta(t, -2.69169618940638, f.b1, 1e-6)
	assert.InDelta(t, 1.19839281085285, f.b2, 1e-6)
	assert.InDelta(t, -1.69065929318241, f.a1, 1e-6)
	assert.InDelta(t, 0.73248077421585, f.a2, 1e-6)
}

func TestHighpassCoefficientsMatchPublished48kTable(t *testing.T) {
	f := highpassCoefficients(48000.0)

	assert.InDelta(t, 1.0, f.b0, 1e-9)
	assert.InDelta(t, -2.0, f.b1, 1e-9)
	assert.InDelta(t, 1.0, f.b2, 1e-9)
	assert.InDelta(t, -1.99004745483398, f.a1, 1e-6)
	assert.InDelta(t, 0.99007225036621, f.a2, 1e-6)
}

// filterGainAt measures the cascade's steady-state gain at one frequency
// by running a long sine through it and comparing RMS over the tail.
func filterGainAt(t *testing.T, freq float64, sampleRate int) float64 {
	t.Helper()
	k := newKWeighting(sampleRate)

	frames := 2 * sampleRate
	in := make([]float64, frames)
	for i := range in {
		in[i] = math.Sin(2.0 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	out := k.apply(in)

	// Skip the first half to let the filter settle.
	tail := frames / 2
	inPow, outPow := 0.0, 0.0
	for i := tail; i < frames; i++ {
		inPow += in[i] * in[i]
		outPow += out[i] * out[i]
	}
	require.Greater(t, inPow, 0.0)
	return 10.0 * math.Log10(outPow/inPow)
}

func TestKWeightingResponseShape(t *testing.T) {
	tests := []struct {
		name       string
		freq       float64
		sampleRate int
		wantDB     float64
		delta      float64
	}{
		// The offset constant cancels the gain at the calibration
		// frequency.
		{name: "997 Hz near unity", freq: 997.0, sampleRate: 48000, wantDB: 0.691, delta: 0.15},
		{name: "10 kHz shelf boost", freq: 10000.0, sampleRate: 48000, wantDB: 4.0, delta: 0.5},
		{name: "25 Hz strongly cut", freq: 25.0, sampleRate: 48000, wantDB: -8.0, delta: 4.0},
		{name: "997 Hz at 44.1k", freq: 997.0, sampleRate: 44100, wantDB: 0.691, delta: 0.15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := filterGainAt(t, tt.freq, tt.sampleRate)
			assert.InDelta(t, tt.wantDB, got, tt.delta)
		})
	}
}
