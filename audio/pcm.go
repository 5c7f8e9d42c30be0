package audio

import "math"

// pcmScale maps the int16 range onto [-1, 1).
const pcmScale = 32768.0

// FromPCM16 builds a buffer from frame-interleaved signed 16-bit PCM,
// scaling samples to [-1, 1).
func FromPCM16(samples []int16, channels, sampleRate int) (*Buffer, error) {
	if channels < 1 {
		return nil, ErrChannelCount
	}
	if len(samples) == 0 {
		return nil, ErrEmptyBuffer
	}
	floats := make([]float64, len(samples))
	for i, s := range samples {
		floats[i] = float64(s) / pcmScale
	}
	return FromInterleaved(floats, channels, sampleRate)
}

// ToPCM16 converts the buffer to frame-interleaved signed 16-bit PCM,
// clamping any sample outside [-1, 1] to the int16 range.
func (b *Buffer) ToPCM16() []int16 {
	channels := b.NumChannels()
	frames := b.NumFrames()
	out := make([]int16, 0, channels*frames)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			out = append(out, sampleToInt16(b.Data[ch][i]))
		}
	}
	return out
}

func sampleToInt16(s float64) int16 {
	v := math.Round(s * pcmScale)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
