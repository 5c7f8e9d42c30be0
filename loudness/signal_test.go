package loudness

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opd-ai/loudnorm/audio"
)

// makeSine generates a test tone with the given peak amplitude on every
// channel. Durations are in seconds.
func makeSine(t *testing.T, channels int, freq, amplitude, duration float64, sampleRate int) *audio.Buffer {
	t.Helper()
	frames := int(duration * float64(sampleRate))
	buf, err := audio.New(channels, frames, sampleRate)
	require.NoError(t, err)

	for ch := 0; ch < channels; ch++ {
		for i := 0; i < frames; i++ {
			buf.Data[ch][i] = amplitude * math.Sin(2.0*math.Pi*freq*float64(i)/float64(sampleRate))
		}
	}
	return buf
}

// makeSilence generates an all-zero buffer.
func makeSilence(t *testing.T, channels int, duration float64, sampleRate int) *audio.Buffer {
	t.Helper()
	frames := int(duration * float64(sampleRate))
	buf, err := audio.New(channels, frames, sampleRate)
	require.NoError(t, err)
	return buf
}

// dbfs converts a decibel level to linear amplitude.
func dbfs(db float64) float64 {
	return math.Pow(10.0, db/20.0)
}
