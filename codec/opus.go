package codec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pion/opus"
	"github.com/pion/opus/pkg/oggreader"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/loudnorm/audio"
)

// opusFrameBytes holds the largest decodable frame: 60 ms of stereo
// samples at 48 kHz as signed 16-bit PCM.
const opusFrameBytes = 5760 * 2 * 2

// oggSampleRate is the clock Ogg Opus granule positions and pre-skip
// counts are expressed in, independent of the decoded rate.
const oggSampleRate = 48000

// OggOpusDecoder decodes Ogg-encapsulated Opus files with the pure-Go
// pion decoder. The decoder handles SILK-mode streams (voice
// recordings); music-grade CELT streams report ErrUnsupportedFormat so
// the registry can fall through to FFmpeg.
type OggOpusDecoder struct{}

// NewOggOpusDecoder creates the pure-Go Ogg Opus decoder.
func NewOggOpusDecoder() *OggOpusDecoder {
	return &OggOpusDecoder{}
}

// Decode reads every Opus packet in the file and concatenates the
// decoded PCM, honoring the stream's pre-skip.
func (d *OggOpusDecoder) Decode(ctx context.Context, path string) (*audio.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ogg, header, err := oggreader.NewWith(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptFile, err)
	}

	decoder := opus.NewDecoder()
	frame := make([]byte, opusFrameBytes)
	var pcm []int16
	sampleRate := 0
	channels := 1

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		segments, _, err := ogg.ParseNextPage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptFile, err)
		}

		for _, segment := range segments {
			if isOpusMetadata(segment) {
				continue
			}
			bandwidth, isStereo, err := decoder.Decode(segment, frame)
			if err != nil {
				return nil, fmt.Errorf("%w: opus packet: %v", ErrUnsupportedFormat, err)
			}
			sampleRate = bandwidth.SampleRate()
			channels = 1
			if isStereo {
				channels = 2
			}
			pcm = appendFramePCM(pcm, frame, silkFrameSamples(segment[0], sampleRate)*channels)
		}
	}

	if len(pcm) == 0 || sampleRate == 0 {
		return nil, fmt.Errorf("%w: %s contains no audio packets", ErrCorruptFile, filepath.Base(path))
	}

	// Pre-skip is counted at the 48 kHz granule clock regardless of the
	// decoded rate.
	skip := int(header.PreSkip) * sampleRate / oggSampleRate * channels
	if skip >= len(pcm) {
		return nil, fmt.Errorf("%w: pre-skip exceeds decoded samples", ErrCorruptFile)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "OggOpusDecoder.Decode",
		"path":        filepath.Base(path),
		"sample_rate": sampleRate,
		"channels":    channels,
		"pre_skip":    header.PreSkip,
		"samples":     len(pcm) - skip,
	}).Debug("Ogg Opus file decoded")

	return audio.FromPCM16(pcm[skip:], channels, sampleRate)
}

// isOpusMetadata reports whether a packet is an ID or comment header
// rather than audio.
func isOpusMetadata(segment []byte) bool {
	return bytes.HasPrefix(segment, []byte("OpusHead")) ||
		bytes.HasPrefix(segment, []byte("OpusTags"))
}

// silkFrameSamples returns the per-channel sample count of a SILK-mode
// packet from its TOC byte. SILK configurations carry 10, 20, 40 or
// 60 ms frames.
func silkFrameSamples(toc byte, sampleRate int) int {
	durationsMs := [4]int{10, 20, 40, 60}
	config := int(toc >> 3)
	return sampleRate * durationsMs[config&0x03] / 1000
}

// appendFramePCM converts up to n little-endian int16 samples from the
// decode buffer and appends them.
func appendFramePCM(pcm []int16, frame []byte, n int) []int16 {
	if n > len(frame)/2 {
		n = len(frame) / 2
	}
	for i := 0; i < n; i++ {
		pcm = append(pcm, int16(frame[i*2])|int16(frame[i*2+1])<<8)
	}
	return pcm
}
