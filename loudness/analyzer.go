package loudness

import (
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/loudnorm/audio"
)

// Gating and windowing parameters from the measurement standard. Blocks
// and windows are assembled from 100 ms hops so their energies share one
// set of partial sums.
const (
	// AbsoluteGateLUFS is the floor below which blocks never count.
	AbsoluteGateLUFS = -70.0

	// relativeGateLU is subtracted from the first-pass mean to form the
	// second gate.
	relativeGateLU = 10.0

	// rangeGateLU is the relative gate for the loudness-range
	// distribution.
	rangeGateLU = 20.0

	// loudnessOffset calibrates block energy to LUFS so a 997 Hz sine
	// reads the same before and after K-weighting.
	loudnessOffset = -0.691

	hopSeconds    = 0.1
	blockHops     = 4  // 400 ms gating block
	shortTermHops = 30 // 3 s short-term window
)

// Measure computes the gated integrated loudness, true peak and
// supporting statistics of a buffer. The buffer is not modified.
//
// Identical buffer content and sample rate always produce an identical
// Measurement: filtering, block summation and gating are strictly
// sequential with no order-dependent accumulation.
func Measure(buf *audio.Buffer) (*Measurement, error) {
	if err := buf.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnmeasurable, err)
	}

	hop := int(math.Round(hopSeconds * float64(buf.SampleRate)))
	if hop < 1 {
		hop = 1
	}
	blockFrames := hop * blockHops
	if buf.NumFrames() < blockFrames {
		return nil, fmt.Errorf("%w: %v of audio, need %v",
			ErrInsufficientSignal, buf.Duration(), blockDuration(buf.SampleRate, blockFrames))
	}

	weights := channelWeights(buf.NumChannels())
	hopEnergy, err := hopEnergies(buf, hop)
	if err != nil {
		return nil, err
	}

	blocks := windowLoudness(hopEnergy, weights, hop, blockHops)
	integrated, gatedCount, err := gate(blocks)
	if err != nil {
		return nil, err
	}

	m := &Measurement{
		Integrated:      integrated,
		TruePeak:        TruePeak(buf),
		MaxMomentary:    maxLoudness(blocks),
		MaxShortTerm:    math.Inf(-1),
		SampleRate:      buf.SampleRate,
		BlockCount:      len(blocks),
		GatedBlockCount: gatedCount,
	}

	if shortTerm := windowLoudness(hopEnergy, weights, hop, shortTermHops); len(shortTerm) > 0 {
		m.MaxShortTerm = maxLoudness(shortTerm)
		m.LoudnessRange = loudnessRange(shortTerm)
	}

	logrus.WithFields(logrus.Fields{
		"function":     "Measure",
		"integrated":   m.Integrated,
		"true_peak":    m.TruePeak,
		"lra":          m.LoudnessRange,
		"blocks":       m.BlockCount,
		"gated_blocks": m.GatedBlockCount,
		"sample_rate":  m.SampleRate,
	}).Debug("Loudness measurement complete")

	return m, nil
}

// windowedBlock carries the weighted mean-square energy of one analysis
// window and its loudness.
type windowedBlock struct {
	energy   float64
	loudness float64
}

// hopEnergies K-weights every channel and returns the per-channel sum of
// squares for each complete 100 ms hop. The trailing partial hop is
// discarded.
func hopEnergies(buf *audio.Buffer, hop int) ([][]float64, error) {
	filter := newKWeighting(buf.SampleRate)
	numHops := buf.NumFrames() / hop

	energies := make([][]float64, buf.NumChannels())
	for ch, samples := range buf.Data {
		filtered := filter.apply(samples)
		sums := make([]float64, numHops)
		for h := 0; h < numHops; h++ {
			sum := 0.0
			for _, y := range filtered[h*hop : (h+1)*hop] {
				sum += y * y
			}
			if math.IsNaN(sum) || math.IsInf(sum, 0) {
				return nil, fmt.Errorf("%w: non-finite energy in channel %d", ErrUnmeasurable, ch)
			}
			sums[h] = sum
		}
		energies[ch] = sums
	}
	return energies, nil
}

// windowLoudness slides a window of windowHops hops over the partial sums
// and produces one weighted block per hop step. Returns nil when the
// signal is shorter than one window.
func windowLoudness(hopEnergy [][]float64, weights []float64, hop, windowHops int) []windowedBlock {
	numHops := len(hopEnergy[0])
	if numHops < windowHops {
		return nil
	}

	windowFrames := float64(hop * windowHops)
	blocks := make([]windowedBlock, 0, numHops-windowHops+1)
	for start := 0; start+windowHops <= numHops; start++ {
		energy := 0.0
		for ch := range hopEnergy {
			sum := 0.0
			for h := start; h < start+windowHops; h++ {
				sum += hopEnergy[ch][h]
			}
			energy += weights[ch] * sum / windowFrames
		}
		blocks = append(blocks, windowedBlock{energy: energy, loudness: blockLUFS(energy)})
	}
	return blocks
}

// gate applies the absolute gate, derives the relative gate from the
// survivors, and averages the energy of blocks passing both.
func gate(blocks []windowedBlock) (float64, int, error) {
	sum, count := 0.0, 0
	for _, b := range blocks {
		if b.loudness > AbsoluteGateLUFS {
			sum += b.energy
			count++
		}
	}
	if count == 0 {
		return 0, 0, ErrSilentInput
	}

	relativeGate := blockLUFS(sum/float64(count)) - relativeGateLU

	sum, count = 0.0, 0
	for _, b := range blocks {
		if b.loudness > AbsoluteGateLUFS && b.loudness > relativeGate {
			sum += b.energy
			count++
		}
	}
	if count == 0 {
		return 0, 0, fmt.Errorf("%w: gating removed every block", ErrUnmeasurable)
	}
	return blockLUFS(sum / float64(count)), count, nil
}

// loudnessRange measures the spread of the short-term distribution: gate
// absolutely, re-gate 20 LU below the gated mean, then take the 10th to
// 95th percentile span.
func loudnessRange(shortTerm []windowedBlock) float64 {
	sum, count := 0.0, 0
	for _, b := range shortTerm {
		if b.loudness > AbsoluteGateLUFS {
			sum += b.energy
			count++
		}
	}
	if count == 0 {
		return 0
	}
	threshold := blockLUFS(sum/float64(count)) - rangeGateLU

	values := make([]float64, 0, count)
	for _, b := range shortTerm {
		if b.loudness > AbsoluteGateLUFS && b.loudness > threshold {
			values = append(values, b.loudness)
		}
	}
	if len(values) < 2 {
		return 0
	}
	sort.Float64s(values)

	low := values[percentileRank(len(values), 0.10)]
	high := values[percentileRank(len(values), 0.95)]
	return high - low
}

func percentileRank(n int, fraction float64) int {
	return int(math.Round(fraction * float64(n-1)))
}

func maxLoudness(blocks []windowedBlock) float64 {
	max := math.Inf(-1)
	for _, b := range blocks {
		if b.loudness > max {
			max = b.loudness
		}
	}
	return max
}

// blockLUFS converts a weighted mean-square energy to loudness.
func blockLUFS(energy float64) float64 {
	if energy <= 0 {
		return math.Inf(-1)
	}
	return loudnessOffset + 10.0*math.Log10(energy)
}

// channelWeights returns the per-channel gains of the standard five-channel
// layout: front channels contribute at unity, surrounds at +1.5 dB, and a
// sixth channel in LFE position is excluded. Layouts the standard does not
// define fall back to unity weighting.
func channelWeights(channels int) []float64 {
	weights := make([]float64, channels)
	for i := range weights {
		weights[i] = 1.0
	}
	switch channels {
	case 5: // L R C Ls Rs
		weights[3] = 1.41
		weights[4] = 1.41
	case 6: // L R C LFE Ls Rs
		weights[3] = 0.0
		weights[4] = 1.41
		weights[5] = 1.41
	}
	return weights
}

func blockDuration(sampleRate, frames int) string {
	return fmt.Sprintf("%.0f ms", float64(frames)/float64(sampleRate)*1000.0)
}
