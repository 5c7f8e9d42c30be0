package pipeline

import (
	"context"
	"errors"

	"github.com/opd-ai/loudnorm/codec"
	"github.com/opd-ai/loudnorm/denoise"
	"github.com/opd-ai/loudnorm/loudness"
)

// FailureReason classifies why an item failed. Every reason is
// per-file; a failed item never stops the batch.
type FailureReason uint8

const (
	// ReasonNone marks an item that has not failed.
	ReasonNone FailureReason = iota
	// ReasonUnsupportedFormat means no decoder could handle the file.
	ReasonUnsupportedFormat
	// ReasonCorruptFile means a decoder recognized the file but could
	// not parse it.
	ReasonCorruptFile
	// ReasonInsufficientSignal means the file is too short for a gated
	// loudness measurement.
	ReasonInsufficientSignal
	// ReasonSilentInput means the file is silent below the absolute gate.
	ReasonSilentInput
	// ReasonUnmeasurable means analysis produced no usable loudness.
	ReasonUnmeasurable
	// ReasonDenoise means the cleanup stage failed or returned a
	// malformed buffer.
	ReasonDenoise
	// ReasonEncode means the output file could not be written.
	ReasonEncode
	// ReasonCancelled means the operator stopped the batch while this
	// item was mid-stage.
	ReasonCancelled
	// ReasonInternal covers errors outside the taxonomy, such as buffer
	// shape violations between stages.
	ReasonInternal
)

// String returns the snake_case name used in logs, reports and JSON.
func (r FailureReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonUnsupportedFormat:
		return "unsupported_format"
	case ReasonCorruptFile:
		return "corrupt_file"
	case ReasonInsufficientSignal:
		return "insufficient_signal"
	case ReasonSilentInput:
		return "silent_input"
	case ReasonUnmeasurable:
		return "unmeasurable"
	case ReasonDenoise:
		return "denoise_failed"
	case ReasonEncode:
		return "encode_failed"
	case ReasonCancelled:
		return "cancelled"
	case ReasonInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// ClassifyFailure maps an error from any stage onto the failure
// taxonomy. Cancellation is checked first so a stage that was
// interrupted mid-call reports the stop, not a spurious stage error.
func ClassifyFailure(err error) FailureReason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCancelled
	case errors.Is(err, codec.ErrUnsupportedFormat):
		return ReasonUnsupportedFormat
	case errors.Is(err, codec.ErrCorruptFile):
		return ReasonCorruptFile
	case errors.Is(err, loudness.ErrInsufficientSignal):
		return ReasonInsufficientSignal
	case errors.Is(err, loudness.ErrSilentInput):
		return ReasonSilentInput
	case errors.Is(err, loudness.ErrUnmeasurable):
		return ReasonUnmeasurable
	case errors.Is(err, denoise.ErrDenoise):
		return ReasonDenoise
	case errors.Is(err, codec.ErrEncode):
		return ReasonEncode
	default:
		return ReasonInternal
	}
}
