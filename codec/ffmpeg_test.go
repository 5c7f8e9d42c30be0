package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeArgsRequestConformedPCM(t *testing.T) {
	args := decodeArgs("/media/in.m4a")

	assert.Contains(t, args, "/media/in.m4a")
	assert.Contains(t, args, "s16le")
	assert.Contains(t, args, "48000")
	assert.Contains(t, args, "pcm_s16le")
	assert.Equal(t, "-", args[len(args)-1], "decode output goes to stdout")
}

func TestEncodeArgs(t *testing.T) {
	args := encodeArgs(48000, 2, "/out/final.mp3", Format{Container: "mp3"})

	assert.Contains(t, args, "-y")
	assert.Contains(t, args, "320k", "default bitrate applies when unset")
	assert.Equal(t, "/out/final.mp3", args[len(args)-1])

	args = encodeArgs(44100, 1, "/out/small.mp3", Format{Container: "mp3", BitrateKbps: 192})
	assert.Contains(t, args, "192k")
	assert.Contains(t, args, "44100")
}

func TestClassifyFFmpegError(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		want   error
	}{
		{
			name:   "corrupt bitstream",
			stderr: "in.mp3: Invalid data found when processing input\n",
			want:   ErrCorruptFile,
		},
		{
			name:   "missing decoder",
			stderr: "Decoder (codec wmalossless) not found for input stream #0:0\n",
			want:   ErrUnsupportedFormat,
		},
		{
			name:   "unknown container",
			stderr: "Unknown format for input\n",
			want:   ErrUnsupportedFormat,
		},
		{
			name:   "no diagnostics",
			stderr: "",
			want:   ErrCorruptFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classifyFFmpegError(tt.stderr), tt.want)
		})
	}
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "line one", firstLine("line one\nline two\n"))
	assert.Equal(t, "only", firstLine("  only  \n"))
	assert.Equal(t, "no diagnostic output", firstLine("   "))
}
