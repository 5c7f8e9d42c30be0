// Package denoise cleans noise from sample buffers ahead of the final
// encode.
//
// Two implementations are provided: a local spectral-subtraction
// denoiser and a client for an external inference service. Both sit
// behind the Denoiser interface so the pipeline treats cleanup as a
// replaceable stage.
package denoise

import (
	"context"
	"errors"

	"github.com/opd-ai/loudnorm/audio"
)

// ErrDenoise indicates the cleanup stage failed and the item cannot be
// enhanced. Classification uses errors.Is().
var ErrDenoise = errors.New("denoise failed")

// Denoiser removes noise from a buffer, returning a new buffer with the
// same sample rate, channel count and frame count.
type Denoiser interface {
	Denoise(ctx context.Context, buf *audio.Buffer) (*audio.Buffer, error)
	Name() string
	Close() error
}

// Func adapts a plain function to the Denoiser interface.
type Func func(ctx context.Context, buf *audio.Buffer) (*audio.Buffer, error)

// Denoise calls f.
func (f Func) Denoise(ctx context.Context, buf *audio.Buffer) (*audio.Buffer, error) {
	return f(ctx, buf)
}

// Name identifies the adapter.
func (f Func) Name() string { return "func" }

// Close is a no-op.
func (f Func) Close() error { return nil }
