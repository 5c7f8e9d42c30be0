package codec

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOggOpusDecodeRejectsNonOggData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.opus")
	require.NoError(t, os.WriteFile(path, []byte("definitely not an ogg stream"), 0o644))

	_, err := NewOggOpusDecoder().Decode(context.Background(), path)
	assert.ErrorIs(t, err, ErrCorruptFile)
}

func TestOggOpusDecodeMissingFile(t *testing.T) {
	_, err := NewOggOpusDecoder().Decode(context.Background(), filepath.Join(t.TempDir(), "absent.opus"))
	assert.Error(t, err)
}

func TestSilkFrameSamples(t *testing.T) {
	tests := []struct {
		name       string
		config     byte
		sampleRate int
		want       int
	}{
		{name: "narrowband 10ms", config: 0, sampleRate: 8000, want: 80},
		{name: "narrowband 20ms", config: 1, sampleRate: 8000, want: 160},
		{name: "mediumband 20ms", config: 5, sampleRate: 12000, want: 240},
		{name: "wideband 40ms", config: 10, sampleRate: 16000, want: 640},
		{name: "wideband 60ms", config: 11, sampleRate: 16000, want: 960},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toc := tt.config << 3
			assert.Equal(t, tt.want, silkFrameSamples(toc, tt.sampleRate))
		})
	}
}

func TestIsOpusMetadata(t *testing.T) {
	assert.True(t, isOpusMetadata([]byte("OpusHead\x01\x02")))
	assert.True(t, isOpusMetadata([]byte("OpusTags\x00")))
	assert.False(t, isOpusMetadata([]byte{0x78, 0x01, 0x02}))
	assert.False(t, isOpusMetadata(nil))
}

func TestAppendFramePCM(t *testing.T) {
	frame := []byte{0x00, 0x01, 0xFF, 0x7F, 0x00, 0x80}

	pcm := appendFramePCM(nil, frame, 3)
	require.Len(t, pcm, 3)
	assert.Equal(t, int16(256), pcm[0])
	assert.Equal(t, int16(32767), pcm[1])
	assert.Equal(t, int16(-32768), pcm[2])

	// Requesting more samples than the frame holds is capped.
	pcm = appendFramePCM(nil, frame, 10)
	assert.Len(t, pcm, 3)
}
