package codec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/loudnorm/audio"
)

// Decode output shape requested from ffmpeg. Everything the pipeline
// analyzes is conformed to this anyway, so the conversion happens in
// the child process.
const (
	ffmpegSampleRate = 48000
	ffmpegChannels   = 2
)

// defaultMP3BitrateKbps applies when a Format leaves BitrateKbps zero.
const defaultMP3BitrateKbps = 320

// FFmpeg shells out to the ffmpeg binary for formats without a pure-Go
// decoder and for MP3 encoding.
type FFmpeg struct {
	bin string
}

// NewFFmpeg locates the ffmpeg binary on PATH.
func NewFFmpeg() (*FFmpeg, error) {
	bin, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg binary not found: %w", err)
	}
	return &FFmpeg{bin: bin}, nil
}

// Decode converts any ffmpeg-readable file to 48 kHz stereo PCM piped
// over stdout.
func (f *FFmpeg) Decode(ctx context.Context, path string) (*audio.Buffer, error) {
	cmd := exec.CommandContext(ctx, f.bin, decodeArgs(path)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logrus.WithFields(logrus.Fields{
		"function": "FFmpeg.Decode",
		"path":     filepath.Base(path),
	}).Debug("Decoding via ffmpeg")

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classifyFFmpegError(stderr.String())
	}

	raw := stdout.Bytes()
	if len(raw) < 2 {
		return nil, fmt.Errorf("%w: ffmpeg produced no samples for %s", ErrCorruptFile, filepath.Base(path))
	}
	pcm := make([]int16, len(raw)/2)
	for i := range pcm {
		pcm[i] = int16(raw[i*2]) | int16(raw[i*2+1])<<8
	}
	return audio.FromPCM16(pcm, ffmpegChannels, ffmpegSampleRate)
}

// Encode pipes the buffer to ffmpeg as raw PCM and lets the muxer for
// the output path's extension produce the file.
func (f *FFmpeg) Encode(ctx context.Context, buf *audio.Buffer, path string, format Format) error {
	if err := buf.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}

	pcm := buf.ToPCM16()
	raw := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		raw[i*2] = byte(s)
		raw[i*2+1] = byte(s >> 8)
	}

	cmd := exec.CommandContext(ctx, f.bin, encodeArgs(buf.SampleRate, buf.NumChannels(), path, format)...)
	cmd.Stdin = bytes.NewReader(raw)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logrus.WithFields(logrus.Fields{
		"function":  "FFmpeg.Encode",
		"path":      filepath.Base(path),
		"container": format.Container,
		"bitrate":   format.BitrateKbps,
	}).Debug("Encoding via ffmpeg")

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: ffmpeg: %s", ErrEncode, firstLine(stderr.String()))
	}
	return nil
}

func decodeArgs(path string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-f", "s16le", "-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(ffmpegSampleRate),
		"-ac", strconv.Itoa(ffmpegChannels),
		"-",
	}
}

func encodeArgs(sampleRate, channels int, path string, format Format) []string {
	bitrate := format.BitrateKbps
	if bitrate <= 0 {
		bitrate = defaultMP3BitrateKbps
	}
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"-i", "-",
		"-b:a", fmt.Sprintf("%dk", bitrate),
		path,
	}
}

// classifyFFmpegError maps ffmpeg stderr output onto the codec error
// taxonomy. Missing decoders and unknown containers are format
// problems; anything else that broke a legitimate extension is treated
// as file corruption.
func classifyFFmpegError(stderr string) error {
	line := firstLine(stderr)
	lower := strings.ToLower(line)
	if strings.Contains(lower, "decoder") && strings.Contains(lower, "not found") ||
		strings.Contains(lower, "unknown format") ||
		strings.Contains(lower, "invalid argument") {
		return fmt.Errorf("%w: ffmpeg: %s", ErrUnsupportedFormat, line)
	}
	return fmt.Errorf("%w: ffmpeg: %s", ErrCorruptFile, line)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return "no diagnostic output"
	}
	return s
}
