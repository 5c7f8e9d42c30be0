package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		channels   int
		frames     int
		sampleRate int
		wantErr    error
	}{
		{name: "mono", channels: 1, frames: 480, sampleRate: 48000},
		{name: "stereo", channels: 2, frames: 44100, sampleRate: 44100},
		{name: "zero channels", channels: 0, frames: 480, sampleRate: 48000, wantErr: ErrChannelCount},
		{name: "zero frames", channels: 2, frames: 0, sampleRate: 48000, wantErr: ErrEmptyBuffer},
		{name: "zero rate", channels: 2, frames: 480, sampleRate: 0, wantErr: ErrInvalidSampleRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := New(tt.channels, tt.frames, tt.sampleRate)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, buf)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.channels, buf.NumChannels())
			assert.Equal(t, tt.frames, buf.NumFrames())
			assert.Equal(t, tt.sampleRate, buf.SampleRate)
			assert.NoError(t, buf.Validate())
		})
	}
}

func TestFromInterleavedRoundTrip(t *testing.T) {
	samples := []float64{0.1, -0.1, 0.2, -0.2, 0.3, -0.3}

	buf, err := FromInterleaved(samples, 2, 48000)
	require.NoError(t, err)

	assert.Equal(t, 2, buf.NumChannels())
	assert.Equal(t, 3, buf.NumFrames())
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, buf.Data[0])
	assert.Equal(t, []float64{-0.1, -0.2, -0.3}, buf.Data[1])

	assert.Equal(t, samples, buf.Interleaved())
}

func TestFromInterleavedMisaligned(t *testing.T) {
	_, err := FromInterleaved([]float64{0.1, 0.2, 0.3}, 2, 48000)
	assert.ErrorIs(t, err, ErrChannelCount)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		buf     *Buffer
		wantErr error
	}{
		{
			name: "valid stereo",
			buf:  &Buffer{Data: [][]float64{{0, 0}, {0, 0}}, SampleRate: 48000},
		},
		{
			name:    "nil buffer",
			buf:     nil,
			wantErr: ErrEmptyBuffer,
		},
		{
			name:    "no channels",
			buf:     &Buffer{SampleRate: 48000},
			wantErr: ErrEmptyBuffer,
		},
		{
			name:    "zero frames",
			buf:     &Buffer{Data: [][]float64{{}}, SampleRate: 48000},
			wantErr: ErrEmptyBuffer,
		},
		{
			name:    "ragged channels",
			buf:     &Buffer{Data: [][]float64{{0, 0, 0}, {0, 0}}, SampleRate: 48000},
			wantErr: ErrRaggedChannels,
		},
		{
			name:    "bad sample rate",
			buf:     &Buffer{Data: [][]float64{{0, 0}}, SampleRate: -1},
			wantErr: ErrInvalidSampleRate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.buf.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCloneIsIndependent(t *testing.T) {
	buf, err := FromInterleaved([]float64{0.5, -0.5, 0.25, -0.25}, 2, 44100)
	require.NoError(t, err)

	clone := buf.Clone()
	clone.Data[0][0] = 0.99

	assert.Equal(t, 0.5, buf.Data[0][0], "mutating the clone must not touch the original")
	assert.Equal(t, 0.99, clone.Data[0][0])
	assert.Equal(t, buf.SampleRate, clone.SampleRate)
}

func TestDuration(t *testing.T) {
	buf, err := New(2, 24000, 48000)
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, buf.Duration())
}

func TestPCM16RoundTrip(t *testing.T) {
	samples := []int16{0, 16384, -16384, 32767, -32768}

	buf, err := FromPCM16(samples, 1, 48000)
	require.NoError(t, err)
	require.Equal(t, 5, buf.NumFrames())

	assert.InDelta(t, 0.0, buf.Data[0][0], 1e-9)
	assert.InDelta(t, 0.5, buf.Data[0][1], 1e-9)
	assert.InDelta(t, -0.5, buf.Data[0][2], 1e-9)

	back := buf.ToPCM16()
	assert.Equal(t, samples, back)
}

func TestToPCM16Clamps(t *testing.T) {
	buf := &Buffer{Data: [][]float64{{1.5, -1.5, 1.0, -1.0}}, SampleRate: 48000}
	out := buf.ToPCM16()

	assert.Equal(t, int16(32767), out[0], "overdriven positive sample clamps to max")
	assert.Equal(t, int16(-32768), out[1], "overdriven negative sample clamps to min")
	assert.Equal(t, int16(32767), out[2])
	assert.Equal(t, int16(-32768), out[3])
}
