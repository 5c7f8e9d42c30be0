package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/loudnorm/config"
	"github.com/opd-ai/loudnorm/pipeline"
)

func TestBuildConfigFlagOverlay(t *testing.T) {
	target := -18.5
	ceiling := -2.0
	workers := 3
	bitrate := 192

	cli := &CLI{
		Mode:             "Enhance",
		Target:           &target,
		Ceiling:          &ceiling,
		Workers:          &workers,
		Bitrate:          &bitrate,
		KeepIntermediate: true,
		Denoiser:         "HTTP",
		DenoiserURL:      "http://localhost:9000/denoise",
	}

	cfg, err := buildConfig(cli)
	require.NoError(t, err)

	assert.Equal(t, config.ModeEnhance, cfg.Mode)
	assert.Equal(t, config.PresetCustom, cfg.Preset)
	assert.InDelta(t, -18.5, cfg.ResolveTarget(), 1e-9)
	assert.InDelta(t, -2.0, cfg.PeakCeiling, 1e-9)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 192, cfg.BitrateKbps)
	assert.True(t, cfg.KeepIntermediate)
	assert.Equal(t, config.DenoiserHTTP, cfg.Denoiser)
	require.NoError(t, cfg.Validate())
}

func TestBuildConfigDefaultsUntouched(t *testing.T) {
	cfg, err := buildConfig(&CLI{})
	require.NoError(t, err)

	assert.Equal(t, config.ModeNormalize, cfg.Mode)
	assert.Equal(t, config.PresetPodcast, cfg.Preset)
	require.NoError(t, cfg.Validate())
}

// newTestPlanner wires the planner to scripted stdin.
func newTestPlanner(input string, inputs ...string) (*interactivePlanner, *bytes.Buffer) {
	out := &bytes.Buffer{}
	ui := newBatchUI(func() {})
	p := newInteractivePlanner(config.Default(), inputs, ui, strings.NewReader(input), out)
	return p, out
}

func TestPlannerFirstBatchUsesCommandLine(t *testing.T) {
	p, _ := newTestPlanner("", "album/", "extra.wav")

	plan, err := p.NextBatch(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, []string{"album/", "extra.wav"}, plan.Inputs)
	assert.Nil(t, plan.Config)
}

func TestPlannerStopsWhenDeclined(t *testing.T) {
	p, out := newTestPlanner("n\n", "album/")

	_, err := p.NextBatch(context.Background(), nil)
	require.NoError(t, err)

	plan, err := p.NextBatch(context.Background(), &pipeline.Report{})
	require.NoError(t, err)
	assert.Nil(t, plan)
	assert.Contains(t, out.String(), "Process another batch?")
}

func TestPlannerRepeatsWithNewInputsAndTarget(t *testing.T) {
	// Accept, swap inputs, retarget to broadcast.
	p, _ := newTestPlanner("y\nfresh/\nbroadcast\n", "album/")

	_, err := p.NextBatch(context.Background(), nil)
	require.NoError(t, err)

	plan, err := p.NextBatch(context.Background(), &pipeline.Report{})
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, []string{"fresh/"}, plan.Inputs)
	require.NotNil(t, plan.Config)
	assert.InDelta(t, -23.0, plan.Config.ResolveTarget(), 1e-9)
}

func TestPlannerNumericTargetBecomesCustomPreset(t *testing.T) {
	p, _ := newTestPlanner("y\n\n-19.5\n", "album/")

	_, err := p.NextBatch(context.Background(), nil)
	require.NoError(t, err)

	plan, err := p.NextBatch(context.Background(), &pipeline.Report{})
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, []string{"album/"}, plan.Inputs)
	require.NotNil(t, plan.Config)
	assert.Equal(t, config.PresetCustom, plan.Config.Preset)
	assert.InDelta(t, -19.5, plan.Config.ResolveTarget(), 1e-9)
}

func TestPlannerKeepsConfigOnUnusableAnswers(t *testing.T) {
	// Garbage target falls back to the engine configuration.
	p, out := newTestPlanner("y\n\nloudest\n", "album/")

	_, err := p.NextBatch(context.Background(), nil)
	require.NoError(t, err)

	plan, err := p.NextBatch(context.Background(), &pipeline.Report{})
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Nil(t, plan.Config)
	assert.Contains(t, out.String(), "Unrecognized target")
}

func TestPlannerStopsOnCancelledContext(t *testing.T) {
	p, _ := newTestPlanner("y\n", "album/")

	_, err := p.NextBatch(context.Background(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	plan, err := p.NextBatch(ctx, &pipeline.Report{})
	require.NoError(t, err)
	assert.Nil(t, plan)
}

func TestRenderReportShowsOutcomes(t *testing.T) {
	report := &pipeline.Report{
		Mode:       config.ModeNormalize,
		TargetLUFS: -16.0,
		Succeeded:  1,
		Failed:     1,
		Skipped:    1,
		Items: []pipeline.ItemReport{
			{Input: "/in/good.wav", Status: "succeeded", InputLUFS: -21.3, GainDB: 5.3},
			{Input: "/in/bad.wav", Status: "failed", Reason: "corrupt_file", Error: "truncated"},
			{Input: "/in/late.wav", Status: "pending"},
		},
	}

	rendered := renderReport(report)
	assert.Contains(t, rendered, "1 succeeded")
	assert.Contains(t, rendered, "1 failed")
	assert.Contains(t, rendered, "good.wav")
	assert.Contains(t, rendered, "corrupt_file")
	assert.Contains(t, rendered, "skipped")
}
