package loudness

import "fmt"

// Measurement is the immutable result of analyzing one buffer. All values
// derive solely from the buffer content and sample rate.
type Measurement struct {
	// Integrated is the gated program loudness in LUFS.
	Integrated float64

	// TruePeak is the 4x-oversampled peak estimate in dBTP.
	TruePeak float64

	// LoudnessRange is the spread of short-term loudness in LU. Zero when
	// the signal is shorter than one short-term window.
	LoudnessRange float64

	// MaxMomentary is the loudest 400 ms block in LUFS.
	MaxMomentary float64

	// MaxShortTerm is the loudest 3 s window in LUFS, negative infinity
	// when the signal is shorter than one window.
	MaxShortTerm float64

	// SampleRate records the rate the measurement was taken at.
	SampleRate int

	// BlockCount is the number of 400 ms gating blocks examined.
	BlockCount int

	// GatedBlockCount is how many blocks survived both gates and
	// contributed to Integrated.
	GatedBlockCount int
}

// String renders the headline numbers for logs and reports.
func (m *Measurement) String() string {
	return fmt.Sprintf("%.1f LUFS, %.1f dBTP, LRA %.1f LU", m.Integrated, m.TruePeak, m.LoudnessRange)
}
