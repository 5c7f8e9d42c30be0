package loudness

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/loudnorm/audio"
)

func TestMeasureReferenceTone(t *testing.T) {
	// 997 Hz is the calibration frequency of the measurement: the -0.691
	// offset cancels the K-weighting gain there, giving exactly known
	// loudness values for sine tones.
	tests := []struct {
		name       string
		channels   int
		amplitude  float64
		sampleRate int
		wantLUFS   float64
	}{
		{
			// Mean square of a full-scale sine is -3.01 dB.
			name:       "full-scale mono at 48k",
			channels:   1,
			amplitude:  1.0,
			sampleRate: 48000,
			wantLUFS:   -3.01,
		},
		{
			// Two identical channels double the energy: -23 dBFS amplitude
			// per channel reads -23 LUFS.
			name:       "stereo -23 dBFS at 48k",
			channels:   2,
			amplitude:  dbfs(-23.0),
			sampleRate: 48000,
			wantLUFS:   -23.0,
		},
		{
			name:       "stereo -23 dBFS at 44.1k",
			channels:   2,
			amplitude:  dbfs(-23.0),
			sampleRate: 44100,
			wantLUFS:   -23.0,
		},
		{
			name:       "stereo -16 dBFS at 48k",
			channels:   2,
			amplitude:  dbfs(-16.0),
			sampleRate: 48000,
			wantLUFS:   -16.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := makeSine(t, tt.channels, 997.0, tt.amplitude, 5.0, tt.sampleRate)

			m, err := Measure(buf)
			require.NoError(t, err)

			assert.InDelta(t, tt.wantLUFS, m.Integrated, 0.5)
			assert.Equal(t, tt.sampleRate, m.SampleRate)
			assert.Greater(t, m.BlockCount, 0)
			assert.Greater(t, m.GatedBlockCount, 0)
		})
	}
}

func TestMeasureSilence(t *testing.T) {
	buf := makeSilence(t, 2, 5.0, 48000)

	m, err := Measure(buf)
	assert.ErrorIs(t, err, ErrSilentInput)
	assert.Nil(t, m, "silence must never produce a numeric loudness")
}

func TestMeasureBelowAbsoluteGate(t *testing.T) {
	// A tone entirely below -70 LUFS is silence as far as gating is
	// concerned.
	buf := makeSine(t, 2, 997.0, dbfs(-80.0), 5.0, 48000)

	_, err := Measure(buf)
	assert.ErrorIs(t, err, ErrSilentInput)
}

func TestMeasureTooShort(t *testing.T) {
	buf := makeSine(t, 2, 997.0, 0.5, 0.3, 48000)

	_, err := Measure(buf)
	assert.ErrorIs(t, err, ErrInsufficientSignal)
}

func TestMeasureSingleBlock(t *testing.T) {
	// Exactly one gating block is the minimum measurable signal.
	buf := makeSine(t, 1, 997.0, 0.5, 0.4, 48000)

	m, err := Measure(buf)
	require.NoError(t, err)
	assert.Equal(t, 1, m.BlockCount)
}

func TestMeasureNonFiniteSamples(t *testing.T) {
	buf := makeSine(t, 1, 997.0, 0.5, 1.0, 48000)
	buf.Data[0][1000] = math.NaN()

	_, err := Measure(buf)
	assert.ErrorIs(t, err, ErrUnmeasurable)
}

func TestRelativeGateExcludesQuietPassages(t *testing.T) {
	// 3 s at -20 dBFS followed by 3 s at -45 dBFS. The quiet half passes
	// the absolute gate but sits more than 10 LU under the mean, so the
	// relative gate must exclude it and the result stays near the loud
	// half's own loudness.
	const sampleRate = 48000
	buf, err := audio.New(1, 6*sampleRate, sampleRate)
	require.NoError(t, err)

	loud, quiet := dbfs(-20.0), dbfs(-45.0)
	for i := range buf.Data[0] {
		amp := loud
		if i >= 3*sampleRate {
			amp = quiet
		}
		buf.Data[0][i] = amp * math.Sin(2.0*math.Pi*997.0*float64(i)/float64(sampleRate))
	}

	m, err := Measure(buf)
	require.NoError(t, err)

	// Loud half alone: -20 dB amplitude - 3.01 dB sine factor.
	assert.InDelta(t, -23.01, m.Integrated, 0.5)
	assert.Less(t, m.GatedBlockCount, m.BlockCount, "quiet blocks must be gated out")
}

func TestMeasureDeterminism(t *testing.T) {
	buf := makeSine(t, 2, 440.0, 0.25, 2.0, 44100)

	first, err := Measure(buf)
	require.NoError(t, err)
	second, err := Measure(buf.Clone())
	require.NoError(t, err)

	assert.Equal(t, first, second, "identical content must measure identically")
}

func TestMeasureDoesNotModifyInput(t *testing.T) {
	buf := makeSine(t, 1, 440.0, 0.5, 1.0, 48000)
	want := buf.Clone()

	_, err := Measure(buf)
	require.NoError(t, err)
	assert.Equal(t, want.Data, buf.Data)
}

func TestMeasureShortTermStatistics(t *testing.T) {
	// Steady tone: the short-term maximum tracks the integrated value and
	// the loudness range collapses to nearly zero.
	buf := makeSine(t, 2, 997.0, dbfs(-23.0), 10.0, 48000)

	m, err := Measure(buf)
	require.NoError(t, err)

	assert.InDelta(t, m.Integrated, m.MaxShortTerm, 0.5)
	assert.InDelta(t, m.Integrated, m.MaxMomentary, 0.5)
	assert.InDelta(t, 0.0, m.LoudnessRange, 0.5)
}

func TestMeasureShortSignalHasNoShortTerm(t *testing.T) {
	// One second is enough for gating blocks but not for a 3 s window.
	buf := makeSine(t, 1, 997.0, 0.25, 1.0, 48000)

	m, err := Measure(buf)
	require.NoError(t, err)

	assert.True(t, math.IsInf(m.MaxShortTerm, -1))
	assert.Equal(t, 0.0, m.LoudnessRange)
}

func TestLoudnessRangeOfTwoLevelSignal(t *testing.T) {
	// 6 s at -33 dBFS then 6 s at -23 dBFS: the short-term distribution
	// clusters at two levels roughly 10 LU apart.
	const sampleRate = 48000
	buf, err := audio.New(1, 12*sampleRate, sampleRate)
	require.NoError(t, err)

	for i := range buf.Data[0] {
		amp := dbfs(-33.0)
		if i >= 6*sampleRate {
			amp = dbfs(-23.0)
		}
		buf.Data[0][i] = amp * math.Sin(2.0*math.Pi*997.0*float64(i)/float64(sampleRate))
	}

	m, err := Measure(buf)
	require.NoError(t, err)

	assert.Greater(t, m.LoudnessRange, 5.0)
	assert.Less(t, m.LoudnessRange, 12.0)
}

func TestChannelWeights(t *testing.T) {
	tests := []struct {
		name     string
		channels int
		want     []float64
	}{
		{name: "mono", channels: 1, want: []float64{1.0}},
		{name: "stereo", channels: 2, want: []float64{1.0, 1.0}},
		{name: "five channel", channels: 5, want: []float64{1.0, 1.0, 1.0, 1.41, 1.41}},
		{name: "five one", channels: 6, want: []float64{1.0, 1.0, 1.0, 0.0, 1.41, 1.41}},
		{name: "undefined layout", channels: 4, want: []float64{1.0, 1.0, 1.0, 1.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, channelWeights(tt.channels))
		})
	}
}

func BenchmarkMeasure(b *testing.B) {
	const sampleRate = 48000
	buf, err := audio.New(2, 10*sampleRate, sampleRate)
	if err != nil {
		b.Fatal(err)
	}
	for ch := range buf.Data {
		for i := range buf.Data[ch] {
			buf.Data[ch][i] = 0.1 * math.Sin(2.0*math.Pi*440.0*float64(i)/float64(sampleRate))
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Measure(buf); err != nil {
			b.Fatal(err)
		}
	}
}
