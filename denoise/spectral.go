package denoise

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/opd-ai/loudnorm/audio"
)

const (
	// spectralFrameSize is the FFT frame length. Power of two.
	spectralFrameSize = 1024

	// spectralHopSize gives 50% overlap, which sums the periodic Hann
	// window to unity so the identity transform reconstructs exactly.
	spectralHopSize = spectralFrameSize / 2

	// overSubtraction scales the estimated noise floor before
	// subtraction to counter estimation bias.
	overSubtraction = 2.0

	// spectralFloorRatio caps per-bin suppression at -20 dB to avoid
	// musical noise artifacts.
	spectralFloorRatio = 0.1

	// quietFrameFraction of frames with the lowest energy feed the
	// noise floor estimate.
	quietFrameFraction = 0.1

	// minNoiseFrames is the floor on how many frames the estimate uses.
	minNoiseFrames = 5

	// cancelCheckFrames bounds how long a channel runs between context
	// checks.
	cancelCheckFrames = 256
)

// Spectral is an offline spectral-subtraction denoiser. It estimates
// the noise floor from the quietest stretch of the program itself, then
// subtracts that spectrum from every frame.
type Spectral struct {
	strength float64
	window   []float64
	fft      *fourier.FFT
}

// NewSpectral creates a spectral denoiser. Strength ranges from 0.0
// (no suppression) to 1.0 (full over-subtraction of the estimated
// floor).
func NewSpectral(strength float64) (*Spectral, error) {
	if strength < 0.0 || strength > 1.0 {
		return nil, fmt.Errorf("%w: strength must be between 0.0 and 1.0, got %f", ErrDenoise, strength)
	}

	window := make([]float64, spectralFrameSize)
	for i := range window {
		window[i] = 0.5 * (1.0 - math.Cos(2.0*math.Pi*float64(i)/float64(spectralFrameSize)))
	}

	return &Spectral{
		strength: strength,
		window:   window,
		fft:      fourier.NewFFT(spectralFrameSize),
	}, nil
}

// Name identifies the implementation.
func (s *Spectral) Name() string { return "spectral" }

// Close is a no-op; the denoiser holds no external resources.
func (s *Spectral) Close() error { return nil }

// Denoise processes each channel independently and returns a new buffer
// of identical shape.
func (s *Spectral) Denoise(ctx context.Context, buf *audio.Buffer) (*audio.Buffer, error) {
	if err := buf.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDenoise, err)
	}

	out, err := audio.New(buf.NumChannels(), buf.NumFrames(), buf.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDenoise, err)
	}
	for ch := range buf.Data {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cleaned, err := s.denoiseChannel(ctx, buf.Data[ch])
		if err != nil {
			return nil, err
		}
		out.Data[ch] = cleaned
	}

	logrus.WithFields(logrus.Fields{
		"function": "Spectral.Denoise",
		"strength": s.strength,
		"channels": buf.NumChannels(),
		"frames":   buf.NumFrames(),
	}).Debug("Spectral subtraction applied")

	return out, nil
}

// denoiseChannel runs the three passes on one channel: frame energies,
// noise floor estimation over the quietest frames, then subtraction
// with overlap-add reconstruction.
func (s *Spectral) denoiseChannel(ctx context.Context, samples []float64) ([]float64, error) {
	// Pad the head by one hop and the tail by a frame so every real
	// sample is covered by two overlapping windows.
	padded := make([]float64, spectralHopSize+len(samples)+spectralFrameSize)
	copy(padded[spectralHopSize:], samples)

	starts := frameStarts(len(padded))
	noiseFloor := s.estimateNoiseFloor(padded, starts)

	output := make([]float64, len(padded))
	frame := make([]float64, spectralFrameSize)
	coeffs := make([]complex128, spectralFrameSize/2+1)

	for n, start := range starts {
		if n%cancelCheckFrames == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		s.windowFrame(frame, padded[start:])
		coeffs = s.fft.Coefficients(coeffs, frame)
		s.subtractNoise(coeffs, noiseFloor)

		// The inverse transform is unnormalized; a round trip scales by
		// the frame length.
		restored := s.fft.Sequence(frame, coeffs)
		for i, v := range restored {
			output[start+i] += v / spectralFrameSize
		}
	}

	return output[spectralHopSize : spectralHopSize+len(samples)], nil
}

// frameStarts returns the frame offsets covering a padded signal.
func frameStarts(paddedLen int) []int {
	var starts []int
	for pos := 0; pos+spectralFrameSize <= paddedLen; pos += spectralHopSize {
		starts = append(starts, pos)
	}
	return starts
}

// estimateNoiseFloor averages the magnitude spectra of the quietest
// frames. Frame energy comes from the windowed time domain, so only the
// selected frames need a transform.
func (s *Spectral) estimateNoiseFloor(padded []float64, starts []int) []float64 {
	type frameEnergy struct {
		start  int
		energy float64
	}
	energies := make([]frameEnergy, len(starts))
	frame := make([]float64, spectralFrameSize)
	for i, start := range starts {
		s.windowFrame(frame, padded[start:])
		e := 0.0
		for _, v := range frame {
			e += v * v
		}
		energies[i] = frameEnergy{start: start, energy: e}
	}
	sort.Slice(energies, func(a, b int) bool { return energies[a].energy < energies[b].energy })

	count := int(float64(len(energies)) * quietFrameFraction)
	if count < minNoiseFrames {
		count = minNoiseFrames
	}
	if count > len(energies) {
		count = len(energies)
	}

	floor := make([]float64, spectralFrameSize/2+1)
	coeffs := make([]complex128, spectralFrameSize/2+1)
	for _, fe := range energies[:count] {
		s.windowFrame(frame, padded[fe.start:])
		coeffs = s.fft.Coefficients(coeffs, frame)
		for i, c := range coeffs {
			floor[i] += math.Hypot(real(c), imag(c))
		}
	}
	for i := range floor {
		floor[i] /= float64(count)
	}
	return floor
}

// windowFrame fills dst with the Hann-windowed frame starting at src.
func (s *Spectral) windowFrame(dst, src []float64) {
	for i := range dst {
		dst[i] = src[i] * s.window[i]
	}
}

// subtractNoise shrinks each bin toward the spectral floor by the
// over-subtracted noise estimate.
func (s *Spectral) subtractNoise(coeffs []complex128, noiseFloor []float64) {
	for i, c := range coeffs {
		mag := math.Hypot(real(c), imag(c))
		if mag <= 0 {
			continue
		}
		subtracted := mag - overSubtraction*s.strength*noiseFloor[i]
		if floor := spectralFloorRatio * mag; subtracted < floor {
			subtracted = floor
		}
		ratio := complex(subtracted/mag, 0)
		coeffs[i] = c * ratio
	}
}
