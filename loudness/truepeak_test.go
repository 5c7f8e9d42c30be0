package loudness

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/loudnorm/audio"
)

func TestTruePeakConstantSignal(t *testing.T) {
	buf, err := audio.New(1, 4800, 48000)
	require.NoError(t, err)
	for i := range buf.Data[0] {
		buf.Data[0][i] = 0.5
	}

	tp := TruePeak(buf)
	assert.InDelta(t, -6.02, tp, 0.1)
}

func TestTruePeakFindsInterSamplePeak(t *testing.T) {
	// A sine at a quarter of the sample rate, phase-shifted by 45
	// degrees, never hits its real peak on a sample instant: every sample
	// sits at 0.7071 while the waveform reaches 1.0 between samples.
	const sampleRate = 48000
	buf, err := audio.New(1, 4800, sampleRate)
	require.NoError(t, err)

	samplePeak := 0.0
	for i := range buf.Data[0] {
		buf.Data[0][i] = math.Sin(math.Pi*float64(i)/2.0 + math.Pi/4.0)
		if a := math.Abs(buf.Data[0][i]); a > samplePeak {
			samplePeak = a
		}
	}
	require.InDelta(t, math.Sqrt2/2.0, samplePeak, 1e-9)

	tp := TruePeak(buf)

	// The raw samples alone would report -3.01 dBTP; oversampling must
	// recover the hidden peak near 0 dBTP.
	assert.InDelta(t, 0.0, tp, 0.3)
	assert.Greater(t, tp, 20.0*math.Log10(samplePeak)+2.0)
}

func TestTruePeakNeverBelowSamplePeak(t *testing.T) {
	tests := []struct {
		name string
		gen  func(i int) float64
	}{
		{name: "mid sine", gen: func(i int) float64 {
			return 0.8 * math.Sin(2.0*math.Pi*440.0*float64(i)/48000.0)
		}},
		{name: "mixed tones", gen: func(i int) float64 {
			return 0.4*math.Sin(2.0*math.Pi*997.0*float64(i)/48000.0) +
				0.3*math.Sin(2.0*math.Pi*3333.0*float64(i)/48000.0)
		}},
		{name: "impulse train", gen: func(i int) float64 {
			if i%1000 == 0 {
				return 0.9
			}
			return 0.0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := audio.New(1, 48000, 48000)
			require.NoError(t, err)
			samplePeak := 0.0
			for i := range buf.Data[0] {
				buf.Data[0][i] = tt.gen(i)
				if a := math.Abs(buf.Data[0][i]); a > samplePeak {
					samplePeak = a
				}
			}

			tp := TruePeak(buf)
			assert.GreaterOrEqual(t, tp, 20.0*math.Log10(samplePeak)-1e-9,
				"oversampled estimate can never fall below the raw sample peak")
		})
	}
}

func TestTruePeakSilenceIsNegativeInfinity(t *testing.T) {
	buf, err := audio.New(2, 4800, 48000)
	require.NoError(t, err)

	assert.True(t, math.IsInf(TruePeak(buf), -1))
}

func TestTruePeakPicksLoudestChannel(t *testing.T) {
	buf, err := audio.New(2, 4800, 48000)
	require.NoError(t, err)
	for i := range buf.Data[0] {
		buf.Data[0][i] = 0.1
		buf.Data[1][i] = 0.5
	}

	assert.InDelta(t, -6.02, TruePeak(buf), 0.1)
}

func TestInterpolatorPhasesNormalized(t *testing.T) {
	ip := newTruePeakInterpolator()
	for p, taps := range ip.phases {
		sum := 0.0
		for _, h := range taps {
			sum += h
		}
		assert.InDelta(t, 1.0, sum, 1e-12, "phase %d must have unity DC gain", p)
	}
}

func BenchmarkTruePeak(b *testing.B) {
	buf, err := audio.New(2, 10*48000, 48000)
	if err != nil {
		b.Fatal(err)
	}
	for ch := range buf.Data {
		for i := range buf.Data[ch] {
			buf.Data[ch][i] = 0.3 * math.Sin(2.0*math.Pi*997.0*float64(i)/48000.0)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		TruePeak(buf)
	}
}
