package denoise

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/loudnorm/audio"
)

// defaultHTTPTimeout bounds a single inference round trip. Denoising a
// long program on a busy service can take a while.
const defaultHTTPTimeout = 120 * time.Second

// maxErrorBodyBytes limits how much of a failure response ends up in
// the error message.
const maxErrorBodyBytes = 512

// HTTPDenoiser sends raw PCM to an external inference service and reads
// back the cleaned samples. The wire format is little-endian signed
// 16-bit PCM, frame-interleaved, with the shape carried in headers.
type HTTPDenoiser struct {
	endpoint string
	client   *http.Client
}

// NewHTTPDenoiser creates a client for the service at endpoint. A zero
// timeout selects the default.
func NewHTTPDenoiser(endpoint string, timeout time.Duration) *HTTPDenoiser {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &HTTPDenoiser{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Name identifies the implementation.
func (d *HTTPDenoiser) Name() string { return "http" }

// Close releases idle connections.
func (d *HTTPDenoiser) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

// Denoise posts the buffer and validates that the service returned the
// same shape it was sent.
func (d *HTTPDenoiser) Denoise(ctx context.Context, buf *audio.Buffer) (*audio.Buffer, error) {
	if err := buf.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDenoise, err)
	}

	pcm := buf.ToPCM16()
	raw := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		raw[i*2] = byte(s)
		raw[i*2+1] = byte(s >> 8)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDenoise, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Sample-Rate", strconv.Itoa(buf.SampleRate))
	req.Header.Set("X-Channels", strconv.Itoa(buf.NumChannels()))

	logrus.WithFields(logrus.Fields{
		"function": "HTTPDenoiser.Denoise",
		"endpoint": d.endpoint,
		"frames":   buf.NumFrames(),
		"channels": buf.NumChannels(),
	}).Debug("Posting buffer to denoise service")

	resp, err := d.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrDenoise, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, fmt.Errorf("%w: service returned %s: %s", ErrDenoise, resp.Status, bytes.TrimSpace(body))
	}

	cleaned, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: reading response: %v", ErrDenoise, err)
	}
	if len(cleaned) != len(raw) {
		return nil, fmt.Errorf("%w: service returned %d bytes, expected %d", ErrDenoise, len(cleaned), len(raw))
	}

	outPCM := make([]int16, len(cleaned)/2)
	for i := range outPCM {
		outPCM[i] = int16(cleaned[i*2]) | int16(cleaned[i*2+1])<<8
	}
	out, err := audio.FromPCM16(outPCM, buf.NumChannels(), buf.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDenoise, err)
	}
	return out, nil
}
