package audio

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// Conform returns a new buffer converted to the requested sample rate and
// channel count. The input buffer is not modified. Conversion order is
// channel fold first, then resample, so interpolation runs over the fewest
// samples. Only mono and stereo targets are supported.
func Conform(buf *Buffer, sampleRate, channels int) (*Buffer, error) {
	if err := buf.Validate(); err != nil {
		return nil, fmt.Errorf("conform input: %w", err)
	}
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("%w: conform target %d (must be 1 or 2)", ErrChannelCount, channels)
	}

	if buf.SampleRate == sampleRate && buf.NumChannels() == channels {
		return buf.Clone(), nil
	}

	logrus.WithFields(logrus.Fields{
		"function":     "Conform",
		"from_rate":    buf.SampleRate,
		"to_rate":      sampleRate,
		"from_channel": buf.NumChannels(),
		"to_channel":   channels,
		"frames":       buf.NumFrames(),
	}).Debug("Conforming buffer shape")

	folded, err := foldChannels(buf, channels)
	if err != nil {
		return nil, err
	}
	return Resample(folded, sampleRate)
}

// Resample converts a buffer to the target sample rate using linear
// interpolation per channel. A same-rate call returns a copy.
func Resample(buf *Buffer, sampleRate int) (*Buffer, error) {
	if err := buf.Validate(); err != nil {
		return nil, fmt.Errorf("resample input: %w", err)
	}
	if sampleRate < 1 {
		return nil, fmt.Errorf("%w: %d Hz", ErrInvalidSampleRate, sampleRate)
	}
	if sampleRate == buf.SampleRate {
		return buf.Clone(), nil
	}

	inFrames := buf.NumFrames()
	outFrames := int(math.Round(float64(inFrames) * float64(sampleRate) / float64(buf.SampleRate)))
	if outFrames < 1 {
		outFrames = 1
	}
	step := float64(buf.SampleRate) / float64(sampleRate)

	out, err := New(buf.NumChannels(), outFrames, sampleRate)
	if err != nil {
		return nil, err
	}
	for ch, in := range buf.Data {
		dst := out.Data[ch]
		for i := range dst {
			pos := float64(i) * step
			idx := int(pos)
			if idx >= inFrames-1 {
				dst[i] = in[inFrames-1]
				continue
			}
			frac := pos - float64(idx)
			dst[i] = in[idx]*(1.0-frac) + in[idx+1]*frac
		}
	}
	return out, nil
}

// foldChannels reduces or expands the channel count. Stereo from mono
// duplicates the single channel. Mono from anything averages all channels.
// Stereo from multichannel keeps the first two channels and folds the rest
// into both sides at -3 dB, rescaled so the fold cannot clip.
func foldChannels(buf *Buffer, channels int) (*Buffer, error) {
	src := buf.NumChannels()
	if src == channels {
		return buf, nil
	}

	frames := buf.NumFrames()
	out, err := New(channels, frames, buf.SampleRate)
	if err != nil {
		return nil, err
	}

	switch {
	case channels == 1:
		scale := 1.0 / float64(src)
		for i := 0; i < frames; i++ {
			sum := 0.0
			for ch := 0; ch < src; ch++ {
				sum += buf.Data[ch][i]
			}
			out.Data[0][i] = sum * scale
		}
	case channels == 2 && src == 1:
		copy(out.Data[0], buf.Data[0])
		copy(out.Data[1], buf.Data[0])
	case channels == 2 && src > 2:
		extra := float64(src - 2)
		foldGain := math.Sqrt(0.5)
		norm := 1.0 / (1.0 + foldGain*extra)
		for i := 0; i < frames; i++ {
			rest := 0.0
			for ch := 2; ch < src; ch++ {
				rest += buf.Data[ch][i]
			}
			rest *= foldGain
			out.Data[0][i] = (buf.Data[0][i] + rest) * norm
			out.Data[1][i] = (buf.Data[1][i] + rest) * norm
		}
	default:
		return nil, fmt.Errorf("%w: cannot fold %d channels to %d", ErrChannelCount, src, channels)
	}
	return out, nil
}
