package loudnorm

import (
	"github.com/opd-ai/loudnorm/config"
	"github.com/opd-ai/loudnorm/denoise"
	"github.com/opd-ai/loudnorm/pipeline"
)

// Options contains configuration options for creating an Engine. Zero
// fields select defaults, so an empty Options is valid.
type Options struct {
	// Config supplies the batch settings directly. Takes precedence
	// over ConfigPath.
	Config *config.Config

	// ConfigPath loads settings from a YAML file layered over the
	// defaults. Ignored when Config is set.
	ConfigPath string

	// Codecs overrides the decode/encode surface. Nil builds the
	// default registry: pure-Go WAV and Ogg-Opus decoders plus the
	// FFmpeg adapter when the binary is on PATH.
	Codecs pipeline.Codec

	// Denoiser overrides the enhance-mode cleanup adapter. Nil builds
	// the implementation the configuration names.
	Denoiser denoise.Denoiser
}

// NewOptions creates a new default Options carrying the default
// configuration.
func NewOptions() *Options {
	return &Options{
		Config: config.Default(),
	}
}
