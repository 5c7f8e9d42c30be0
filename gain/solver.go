// Package gain turns a loudness measurement into a concrete, peak-safe
// gain decision and applies it to sample buffers.
//
// Normalization is linear throughout: one gain factor for the whole
// signal, no compression or limiting. When the gain needed to reach the
// target loudness would push the true peak past the configured ceiling,
// the gain is reduced so the projected peak lands exactly on the
// ceiling. The output is then quieter than the target but never clipped.
package gain

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/loudnorm/audio"
	"github.com/opd-ai/loudnorm/loudness"
)

// Decision is the outcome of solving for a normalization gain.
type Decision struct {
	// TargetLUFS is the integrated loudness the gain aims for.
	TargetLUFS float64

	// GainDB is the gain to apply in decibels. Negative values attenuate.
	GainDB float64

	// Linear is GainDB converted to a linear multiplier.
	Linear float64

	// Clamped reports whether the peak ceiling reduced the gain below
	// what the target loudness asked for.
	Clamped bool

	// ProjectedPeak is the true peak in dBTP expected after applying
	// GainDB.
	ProjectedPeak float64

	// PeakCeiling is the dBTP bound the decision honors.
	PeakCeiling float64
}

// Solve computes the linear gain that moves a measured program to
// targetLUFS without letting the true peak exceed ceilingDBTP.
//
// Solve returns loudness.ErrSilentInput when the measurement carries no
// usable level and loudness.ErrUnmeasurable when it is not finite.
func Solve(m *loudness.Measurement, targetLUFS, ceilingDBTP float64) (Decision, error) {
	if m == nil || math.IsInf(m.Integrated, -1) {
		return Decision{}, loudness.ErrSilentInput
	}
	if math.IsNaN(m.Integrated) || math.IsNaN(m.TruePeak) {
		return Decision{}, loudness.ErrUnmeasurable
	}

	d := Decision{
		TargetLUFS:  targetLUFS,
		PeakCeiling: ceilingDBTP,
		GainDB:      targetLUFS - m.Integrated,
	}
	d.ProjectedPeak = m.TruePeak + d.GainDB

	if d.ProjectedPeak > ceilingDBTP {
		d.GainDB = ceilingDBTP - m.TruePeak
		d.ProjectedPeak = ceilingDBTP
		d.Clamped = true
	}
	d.Linear = math.Pow(10.0, d.GainDB/20.0)

	logrus.WithFields(logrus.Fields{
		"function":       "Solve",
		"measured_lufs":  m.Integrated,
		"target_lufs":    targetLUFS,
		"gain_db":        d.GainDB,
		"projected_dbtp": d.ProjectedPeak,
		"clamped":        d.Clamped,
	}).Debug("Gain decision computed")

	return d, nil
}

// Apply returns a copy of buf with the decision's linear gain applied.
// The input buffer is not modified.
func Apply(buf *audio.Buffer, d Decision) *audio.Buffer {
	out := buf.Clone()
	for ch := range out.Data {
		for i := range out.Data[ch] {
			out.Data[ch][i] *= d.Linear
		}
	}
	return out
}
