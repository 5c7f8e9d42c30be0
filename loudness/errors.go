package loudness

import "errors"

// Sentinel errors for measurement failures. All of them classify a single
// input file as unmeasurable for a different reason; callers distinguish
// them using errors.Is().
var (
	// ErrInsufficientSignal indicates the buffer is shorter than one
	// gating block and no valid gated measurement exists for it.
	ErrInsufficientSignal = errors.New("signal too short for a gated loudness measurement")

	// ErrSilentInput indicates no block passed the absolute gate: the
	// input is digital silence or entirely below -70 LUFS.
	ErrSilentInput = errors.New("signal is silent below the absolute gate")

	// ErrUnmeasurable indicates the signal produced non-finite block
	// energies or gating left nothing to average.
	ErrUnmeasurable = errors.New("signal loudness cannot be measured")
)
