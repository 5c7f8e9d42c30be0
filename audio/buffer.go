// Package audio defines the sample buffer abstraction shared by every
// processing stage, together with the conversions (interleaving, PCM
// scaling, resampling, channel folding) needed at stage boundaries.
//
// A Buffer holds decoded audio as one float64 slice per channel with
// samples normalized to [-1, 1]. Buffers transfer ownership from stage
// to stage; a stage that needs to retain its input must Clone it.
package audio

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for buffer validation failures.
// These enable reliable error classification using errors.Is().
var (
	// ErrEmptyBuffer indicates a buffer with no channels or no frames.
	ErrEmptyBuffer = errors.New("audio buffer is empty")

	// ErrRaggedChannels indicates channels of unequal length.
	ErrRaggedChannels = errors.New("audio channels have unequal lengths")

	// ErrInvalidSampleRate indicates a zero or negative sample rate.
	ErrInvalidSampleRate = errors.New("invalid sample rate")

	// ErrChannelCount indicates an unsupported or mismatched channel count.
	ErrChannelCount = errors.New("invalid channel count")
)

// Buffer is the uniform in-memory representation of decoded audio.
type Buffer struct {
	// Data holds one sample slice per channel. Every slice has equal length.
	Data [][]float64

	// SampleRate is the number of frames per second.
	SampleRate int
}

// New allocates a zeroed buffer with the given shape.
func New(channels, frames, sampleRate int) (*Buffer, error) {
	if channels < 1 {
		return nil, fmt.Errorf("%w: %d", ErrChannelCount, channels)
	}
	if frames < 1 {
		return nil, fmt.Errorf("%w: %d frames", ErrEmptyBuffer, frames)
	}
	if sampleRate < 1 {
		return nil, fmt.Errorf("%w: %d Hz", ErrInvalidSampleRate, sampleRate)
	}

	data := make([][]float64, channels)
	for ch := range data {
		data[ch] = make([]float64, frames)
	}
	return &Buffer{Data: data, SampleRate: sampleRate}, nil
}

// FromInterleaved builds a buffer from frame-interleaved samples
// (ch0, ch1, ..., chN-1, ch0, ...). The sample count must be an exact
// multiple of the channel count.
func FromInterleaved(samples []float64, channels, sampleRate int) (*Buffer, error) {
	if channels < 1 {
		return nil, fmt.Errorf("%w: %d", ErrChannelCount, channels)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrEmptyBuffer)
	}
	if len(samples)%channels != 0 {
		return nil, fmt.Errorf("%w: %d samples not aligned to %d channels",
			ErrChannelCount, len(samples), channels)
	}

	frames := len(samples) / channels
	buf, err := New(channels, frames, sampleRate)
	if err != nil {
		return nil, err
	}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			buf.Data[ch][i] = samples[i*channels+ch]
		}
	}
	return buf, nil
}

// Interleaved returns the buffer content as frame-interleaved samples.
func (b *Buffer) Interleaved() []float64 {
	channels := b.NumChannels()
	frames := b.NumFrames()
	out := make([]float64, 0, channels*frames)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			out = append(out, b.Data[ch][i])
		}
	}
	return out
}

// NumChannels returns the channel count.
func (b *Buffer) NumChannels() int {
	return len(b.Data)
}

// NumFrames returns the per-channel sample count.
func (b *Buffer) NumFrames() int {
	if len(b.Data) == 0 {
		return 0
	}
	return len(b.Data[0])
}

// Duration returns the playing time of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate < 1 {
		return 0
	}
	return time.Duration(float64(b.NumFrames()) / float64(b.SampleRate) * float64(time.Second))
}

// Clone returns a deep copy sharing no memory with the receiver.
func (b *Buffer) Clone() *Buffer {
	data := make([][]float64, len(b.Data))
	for ch := range b.Data {
		data[ch] = make([]float64, len(b.Data[ch]))
		copy(data[ch], b.Data[ch])
	}
	return &Buffer{Data: data, SampleRate: b.SampleRate}
}

// Validate checks the shape invariants required of any buffer entering a
// processing stage: at least one channel, equal non-zero channel lengths
// and a positive sample rate.
func (b *Buffer) Validate() error {
	if b == nil || len(b.Data) == 0 {
		return ErrEmptyBuffer
	}
	frames := len(b.Data[0])
	if frames == 0 {
		return fmt.Errorf("%w: zero frames", ErrEmptyBuffer)
	}
	for ch, samples := range b.Data {
		if len(samples) != frames {
			return fmt.Errorf("%w: channel %d has %d frames, channel 0 has %d",
				ErrRaggedChannels, ch, len(samples), frames)
		}
	}
	if b.SampleRate < 1 {
		return fmt.Errorf("%w: %d Hz", ErrInvalidSampleRate, b.SampleRate)
	}
	return nil
}
