package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opd-ai/loudnorm/codec"
	"github.com/opd-ai/loudnorm/denoise"
	"github.com/opd-ai/loudnorm/loudness"
)

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureReason
	}{
		{name: "nil", err: nil, want: ReasonNone},
		{name: "unsupported format", err: codec.ErrUnsupportedFormat, want: ReasonUnsupportedFormat},
		{name: "corrupt file wrapped", err: fmt.Errorf("decoding x.mp3: %w", codec.ErrCorruptFile), want: ReasonCorruptFile},
		{name: "insufficient signal", err: loudness.ErrInsufficientSignal, want: ReasonInsufficientSignal},
		{name: "silent input", err: loudness.ErrSilentInput, want: ReasonSilentInput},
		{name: "unmeasurable", err: fmt.Errorf("%w: gating removed every block", loudness.ErrUnmeasurable), want: ReasonUnmeasurable},
		{name: "denoise", err: fmt.Errorf("%w: service returned 503", denoise.ErrDenoise), want: ReasonDenoise},
		{name: "encode", err: fmt.Errorf("%w: disk full", codec.ErrEncode), want: ReasonEncode},
		{name: "context cancelled", err: context.Canceled, want: ReasonCancelled},
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: ReasonCancelled},
		{name: "cancellation wins over stage error", err: fmt.Errorf("%w: %w", denoise.ErrDenoise, context.Canceled), want: ReasonCancelled},
		{name: "unknown error", err: errors.New("surprise"), want: ReasonInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyFailure(tt.err))
		})
	}
}

func TestFailureReasonString(t *testing.T) {
	tests := []struct {
		reason FailureReason
		want   string
	}{
		{ReasonNone, "none"},
		{ReasonUnsupportedFormat, "unsupported_format"},
		{ReasonCorruptFile, "corrupt_file"},
		{ReasonInsufficientSignal, "insufficient_signal"},
		{ReasonSilentInput, "silent_input"},
		{ReasonUnmeasurable, "unmeasurable"},
		{ReasonDenoise, "denoise_failed"},
		{ReasonEncode, "encode_failed"},
		{ReasonCancelled, "cancelled"},
		{ReasonInternal, "internal"},
		{FailureReason(99), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.reason.String())
	}
}
