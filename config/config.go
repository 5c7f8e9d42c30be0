// Package config holds the batch engine's settings: loudness targets,
// processing mode, output layout and worker limits.
//
// A Config is built from Default(), optionally overlaid with a YAML
// file, then validated once. After validation the engine treats it as
// read-only; callers who need to vary settings between batches build a
// fresh Config.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig indicates a setting that fails validation.
// Classification uses errors.Is().
var ErrInvalidConfig = errors.New("invalid configuration")

// Preset names a standard loudness target.
type Preset string

const (
	// PresetBroadcast targets -23 LUFS per EBU R128.
	PresetBroadcast Preset = "broadcast"
	// PresetPodcast targets -16 LUFS, the common spoken-word level.
	PresetPodcast Preset = "podcast"
	// PresetStreaming targets -14 LUFS, matching major music platforms.
	PresetStreaming Preset = "streaming"
	// PresetCustom uses the TargetLUFS field directly.
	PresetCustom Preset = "custom"
)

// presetTargets maps each named preset to its integrated target.
var presetTargets = map[Preset]float64{
	PresetBroadcast: -23.0,
	PresetPodcast:   -16.0,
	PresetStreaming: -14.0,
}

// Mode selects the processing chain for a batch.
type Mode string

const (
	// ModeNormalize measures and applies loudness gain only.
	ModeNormalize Mode = "normalize"
	// ModeEnhance adds the denoise stage between gain and encode.
	ModeEnhance Mode = "enhance"
)

// DenoiserKind selects the cleanup implementation for enhance mode.
type DenoiserKind string

const (
	// DenoiserSpectral runs the local spectral-subtraction denoiser.
	DenoiserSpectral DenoiserKind = "spectral"
	// DenoiserHTTP posts audio to an external inference service.
	DenoiserHTTP DenoiserKind = "http"
)

// Config carries every tunable of a batch run.
type Config struct {
	// Preset picks the loudness target; "custom" reads TargetLUFS.
	Preset Preset `yaml:"preset"`

	// TargetLUFS applies only with the custom preset. Valid targets lie
	// strictly between -70 and 0.
	TargetLUFS float64 `yaml:"target_lufs"`

	// PeakCeiling is the true-peak bound in dBTP the applied gain must
	// not push output past.
	PeakCeiling float64 `yaml:"peak_ceiling"`

	// Mode is normalize or enhance.
	Mode Mode `yaml:"mode"`

	// OutputFormat is the final container, "mp3" or "wav".
	OutputFormat string `yaml:"output_format"`

	// BitrateKbps sets the lossy encode bitrate. Zero selects the
	// container default.
	BitrateKbps int `yaml:"bitrate_kbps"`

	// OutputDir receives the final encoded files.
	OutputDir string `yaml:"output_dir"`

	// NormalizedDir receives the normalized WAV copies.
	NormalizedDir string `yaml:"normalized_dir"`

	// TempDir holds decode-stage conversion artifacts.
	TempDir string `yaml:"temp_dir"`

	// IntermediateDir holds pre-denoise intermediates in enhance mode.
	IntermediateDir string `yaml:"intermediate_dir"`

	// KeepIntermediate retains intermediates instead of cleaning them.
	KeepIntermediate bool `yaml:"keep_intermediate"`

	// Extensions lists the input file extensions a scan accepts.
	Extensions []string `yaml:"extensions"`

	// Workers bounds parallel item processing. Zero means one worker
	// per CPU.
	Workers int `yaml:"workers"`

	// Denoiser picks the enhance-mode implementation.
	Denoiser DenoiserKind `yaml:"denoiser"`

	// DenoiserURL is the inference endpoint for the http denoiser.
	DenoiserURL string `yaml:"denoiser_url"`

	// DenoiseStrength sets spectral subtraction strength, 0 to 1.
	DenoiseStrength float64 `yaml:"denoise_strength"`
}

// Default returns the settings a fresh install runs with.
func Default() *Config {
	return &Config{
		Preset:          PresetPodcast,
		PeakCeiling:     -1.0,
		Mode:            ModeNormalize,
		OutputFormat:    "mp3",
		BitrateKbps:     320,
		OutputDir:       "Mastered_Audio_Output",
		NormalizedDir:   "Normalized_Audio_Output",
		TempDir:         "Temp_Conversion_Cache",
		IntermediateDir: "Intermediate_Loudness_Norm",
		Extensions: []string{
			".mp3", ".wav", ".ogg", ".flac", ".m4a",
			".wma", ".aac", ".alac", ".aiff", ".opus",
		},
		Workers:         0,
		Denoiser:        DenoiserSpectral,
		DenoiseStrength: 0.7,
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := Default()
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrInvalidConfig, path, err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalize canonicalizes case and extension dots so validation and
// lookups compare like with like.
func (c *Config) normalize() {
	c.Preset = Preset(strings.ToLower(strings.TrimSpace(string(c.Preset))))
	c.Mode = Mode(strings.ToLower(strings.TrimSpace(string(c.Mode))))
	c.Denoiser = DenoiserKind(strings.ToLower(strings.TrimSpace(string(c.Denoiser))))
	c.OutputFormat = strings.ToLower(strings.TrimSpace(c.OutputFormat))
	for i, ext := range c.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Extensions[i] = ext
	}
}

// ResolveTarget returns the integrated loudness target in LUFS.
func (c *Config) ResolveTarget() float64 {
	if t, ok := presetTargets[c.Preset]; ok {
		return t
	}
	return c.TargetLUFS
}

// ResolveWorkers returns the effective worker count.
func (c *Config) ResolveWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// Validate checks every field and reports the first violation wrapped
// in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch c.Preset {
	case PresetBroadcast, PresetPodcast, PresetStreaming:
	case PresetCustom:
		if c.TargetLUFS <= -70.0 || c.TargetLUFS >= 0.0 {
			return fmt.Errorf("%w: custom target %.1f LUFS outside (-70, 0)", ErrInvalidConfig, c.TargetLUFS)
		}
	default:
		return fmt.Errorf("%w: unknown preset %q", ErrInvalidConfig, c.Preset)
	}

	if c.PeakCeiling > 0.0 || c.PeakCeiling < -20.0 {
		return fmt.Errorf("%w: peak ceiling %.1f dBTP outside [-20, 0]", ErrInvalidConfig, c.PeakCeiling)
	}

	switch c.Mode {
	case ModeNormalize, ModeEnhance:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, c.Mode)
	}

	switch c.OutputFormat {
	case "mp3", "wav":
	default:
		return fmt.Errorf("%w: unknown output format %q", ErrInvalidConfig, c.OutputFormat)
	}
	if c.BitrateKbps < 0 {
		return fmt.Errorf("%w: negative bitrate", ErrInvalidConfig)
	}

	for _, dir := range []struct{ name, value string }{
		{"output_dir", c.OutputDir},
		{"normalized_dir", c.NormalizedDir},
		{"temp_dir", c.TempDir},
		{"intermediate_dir", c.IntermediateDir},
	} {
		if strings.TrimSpace(dir.value) == "" {
			return fmt.Errorf("%w: %s must not be empty", ErrInvalidConfig, dir.name)
		}
	}

	if len(c.Extensions) == 0 {
		return fmt.Errorf("%w: extensions list is empty", ErrInvalidConfig)
	}
	for _, ext := range c.Extensions {
		if len(ext) < 2 || !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("%w: malformed extension %q", ErrInvalidConfig, ext)
		}
	}

	if c.Workers < 0 {
		return fmt.Errorf("%w: negative worker count", ErrInvalidConfig)
	}

	if c.Mode == ModeEnhance {
		switch c.Denoiser {
		case DenoiserSpectral:
			if c.DenoiseStrength < 0.0 || c.DenoiseStrength > 1.0 {
				return fmt.Errorf("%w: denoise strength %.2f outside [0, 1]", ErrInvalidConfig, c.DenoiseStrength)
			}
		case DenoiserHTTP:
			u, err := url.Parse(c.DenoiserURL)
			if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
				return fmt.Errorf("%w: denoiser_url %q is not a usable http(s) endpoint", ErrInvalidConfig, c.DenoiserURL)
			}
		default:
			return fmt.Errorf("%w: unknown denoiser %q", ErrInvalidConfig, c.Denoiser)
		}
	}

	return nil
}

// Clone returns an independent copy.
func (c *Config) Clone() *Config {
	dup := *c
	dup.Extensions = append([]string(nil), c.Extensions...)
	return &dup
}
