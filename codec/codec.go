// Package codec decodes input audio files into sample buffers and encodes
// processed buffers back to disk.
//
// Decoding is organized as a registry of per-extension decoder chains.
// Pure-Go decoders run first; an FFmpeg adapter, when the binary is
// available, backs every supported extension as the decoder of last
// resort. A decoder that recognizes a file but cannot parse it reports
// ErrCorruptFile, which stops the chain. A decoder that cannot handle
// the bitstream at all reports ErrUnsupportedFormat, which passes the
// file to the next candidate.
package codec

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/loudnorm/audio"
)

// Decoder reads an audio file into a sample buffer at its native sample
// rate and channel layout.
type Decoder interface {
	Decode(ctx context.Context, path string) (*audio.Buffer, error)
}

// Encoder writes a sample buffer to a file in the requested format.
type Encoder interface {
	Encode(ctx context.Context, buf *audio.Buffer, path string, format Format) error
}

// Format describes an encode target.
type Format struct {
	// Container is the output container name, e.g. "wav" or "mp3".
	Container string

	// BitrateKbps selects the encode bitrate for lossy containers.
	// Zero means the container default.
	BitrateKbps int
}

// Registry routes files to decoder chains by extension and selects
// encoders by output container.
type Registry struct {
	decoders map[string][]Decoder
	wav      *WAVCodec
	ffmpeg   *FFmpeg
}

// ffmpegExtensions lists every input extension the FFmpeg adapter backs.
var ffmpegExtensions = []string{
	".mp3", ".wav", ".ogg", ".flac", ".m4a", ".wma",
	".aac", ".alac", ".aiff", ".opus",
}

// NewRegistry builds the default decoder chains. The WAV and Ogg-Opus
// decoders are always present; FFmpeg-backed formats are registered only
// when the binary is found on PATH.
func NewRegistry() *Registry {
	r := &Registry{
		decoders: make(map[string][]Decoder),
		wav:      NewWAVCodec(),
	}
	r.Register(".wav", r.wav)

	opusDec := NewOggOpusDecoder()
	r.Register(".opus", opusDec)
	r.Register(".ogg", opusDec)

	ff, err := NewFFmpeg()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewRegistry",
			"error":    err.Error(),
		}).Warn("FFmpeg not available, compressed formats limited to pure-Go decoders")
		return r
	}
	r.ffmpeg = ff
	for _, ext := range ffmpegExtensions {
		r.Register(ext, ff)
	}
	return r
}

// Register appends a decoder to the chain for an extension. The
// extension must include the leading dot; matching is case-insensitive.
func (r *Registry) Register(ext string, d Decoder) {
	ext = strings.ToLower(ext)
	r.decoders[ext] = append(r.decoders[ext], d)
}

// Supported reports whether any decoder chain exists for the file's
// extension.
func (r *Registry) Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return len(r.decoders[ext]) > 0
}

// Decode runs the file through its extension's decoder chain and returns
// the first successful result.
func (r *Registry) Decode(ctx context.Context, path string) (*audio.Buffer, error) {
	ext := strings.ToLower(filepath.Ext(path))
	chain := r.decoders[ext]
	if len(chain) == 0 {
		return nil, fmt.Errorf("%w: no decoder registered for %q", ErrUnsupportedFormat, ext)
	}

	logrus.WithFields(logrus.Fields{
		"function":   "Registry.Decode",
		"path":       filepath.Base(path),
		"extension":  ext,
		"candidates": len(chain),
	}).Debug("Decoding input file")

	var lastErr error
	for _, d := range chain {
		buf, err := d.Decode(ctx, path)
		if err == nil {
			return buf, nil
		}
		lastErr = err
		if errors.Is(err, ErrUnsupportedFormat) {
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// Encoder returns the encoder responsible for the format's container.
func (r *Registry) Encoder(format Format) (Encoder, error) {
	switch strings.ToLower(format.Container) {
	case "wav":
		return r.wav, nil
	case "mp3":
		if r.ffmpeg == nil {
			return nil, fmt.Errorf("%w: mp3 output requires ffmpeg on PATH", ErrUnsupportedFormat)
		}
		return r.ffmpeg, nil
	default:
		return nil, fmt.Errorf("%w: no encoder for container %q", ErrUnsupportedFormat, format.Container)
	}
}
