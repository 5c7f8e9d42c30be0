package codec

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/loudnorm/audio"
)

// wavPCMFormat is the RIFF audio format tag for integer PCM. Float WAV
// files (tag 3) fall through to the FFmpeg chain.
const wavPCMFormat = 1

// WAVCodec decodes integer PCM WAV files and encodes 16-bit PCM WAV.
type WAVCodec struct{}

// NewWAVCodec creates the pure-Go WAV decoder/encoder.
func NewWAVCodec() *WAVCodec {
	return &WAVCodec{}
}

// Decode reads a PCM WAV file into a buffer at its native sample rate
// and channel count. Samples are scaled to [-1, 1) by the source bit
// depth.
func (c *WAVCodec) Decode(ctx context.Context, path string) (*audio.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: %s is not a RIFF/WAVE file", ErrCorruptFile, filepath.Base(path))
	}
	if dec.WavAudioFormat != wavPCMFormat {
		return nil, fmt.Errorf("%w: wav audio format tag %d", ErrUnsupportedFormat, dec.WavAudioFormat)
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptFile, err)
	}
	if pcm == nil || len(pcm.Data) == 0 {
		return nil, fmt.Errorf("%w: %s contains no samples", ErrCorruptFile, filepath.Base(path))
	}

	bits := pcm.SourceBitDepth
	if bits <= 0 {
		bits = 16
	}
	scale := float64(int64(1) << (bits - 1))
	floats := make([]float64, len(pcm.Data))
	for i, v := range pcm.Data {
		floats[i] = float64(v) / scale
	}

	buf, err := audio.FromInterleaved(floats, pcm.Format.NumChannels, pcm.Format.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptFile, err)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "WAVCodec.Decode",
		"path":        filepath.Base(path),
		"sample_rate": buf.SampleRate,
		"channels":    buf.NumChannels(),
		"frames":      buf.NumFrames(),
		"bit_depth":   bits,
	}).Debug("WAV file decoded")

	return buf, nil
}

// Encode writes the buffer as a 16-bit PCM WAV file. The format
// argument is accepted for interface conformance; WAV output is always
// 16-bit PCM.
func (c *WAVCodec) Encode(ctx context.Context, buf *audio.Buffer, path string, _ Format) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := buf.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}

	enc := wav.NewEncoder(out, buf.SampleRate, 16, buf.NumChannels(), wavPCMFormat)
	pcm := buf.ToPCM16()
	data := make([]int, len(pcm))
	for i, s := range pcm {
		data[i] = int(s)
	}
	ib := &gaudio.IntBuffer{
		Format: &gaudio.Format{
			NumChannels: buf.NumChannels(),
			SampleRate:  buf.SampleRate,
		},
		Data:           data,
		SourceBitDepth: 16,
	}

	if err := enc.Write(ib); err != nil {
		out.Close()
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	if err := enc.Close(); err != nil {
		out.Close()
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "WAVCodec.Encode",
		"path":     filepath.Base(path),
		"frames":   buf.NumFrames(),
	}).Debug("WAV file written")

	return nil
}
