// Package loudness measures program loudness the way broadcast delivery
// specifications define it: K-weighted, block-gated energy rather than a
// simple RMS.
//
// # Measurement Pipeline
//
// Measure runs four steps over a buffer:
//
//  1. K-weighting: every channel passes through a shelving pre-filter and
//     a high-pass filter whose coefficients are derived for the buffer's
//     actual sample rate.
//  2. Blocking: the filtered signal is cut into 400 ms blocks advancing
//     every 100 ms, and each block's mean-square energy is summed across
//     channels with surround weighting.
//  3. Gating: blocks below -70 LUFS are discarded, a relative gate 10 LU
//     under the survivors' mean is derived, and the mean energy of the
//     blocks passing both gates becomes the integrated loudness.
//  4. True peak: the unweighted signal is oversampled 4x with a polyphase
//     interpolator and the largest absolute value becomes the dBTP
//     estimate.
//
// The same hop sums also produce the 3 s short-term distribution, from
// which the loudness range (10th to 95th percentile after gating) and the
// short-term maximum are read.
//
// # Failure Modes
//
// Three sentinel errors classify unmeasurable inputs: ErrInsufficientSignal
// for buffers shorter than one gating block, ErrSilentInput when nothing
// passes the absolute gate, and ErrUnmeasurable for non-finite signal
// content. All three mark a single file as unprocessable and are recoverable
// at the batch level.
//
// # Determinism
//
// Measurement is fully deterministic: identical samples at an identical
// rate always yield identical results, which the round-trip and gating
// tests rely on.
package loudness
