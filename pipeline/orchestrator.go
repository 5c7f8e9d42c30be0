package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/loudnorm/audio"
	"github.com/opd-ai/loudnorm/codec"
	"github.com/opd-ai/loudnorm/config"
	"github.com/opd-ai/loudnorm/denoise"
	"github.com/opd-ai/loudnorm/gain"
	"github.com/opd-ai/loudnorm/loudness"
)

// Analysis shape every decoded buffer is conformed to before
// measurement, matching the rate the FFmpeg decode path already
// delivers.
const (
	analysisSampleRate = 48000
	analysisChannels   = 2
)

// Codec is the decoding and encoding surface the orchestrator drives.
// A *codec.Registry satisfies it; tests substitute deterministic fakes
// returning canned buffers.
type Codec interface {
	Decode(ctx context.Context, path string) (*audio.Buffer, error)
	Encoder(format codec.Format) (codec.Encoder, error)
}

// Orchestrator drives batches of items through the stage pipeline with
// per-item failure isolation and guaranteed artifact cleanup.
type Orchestrator struct {
	cfg      *config.Config
	codecs   Codec
	denoiser denoise.Denoiser

	mu               sync.RWMutex
	timeProvider     TimeProvider
	onBatchStart     func(run *BatchRun)
	onItemTransition func(item *JobItem, from, to Status)
}

// NewOrchestrator validates the configuration and wires the adapters.
// The denoiser may be nil unless the configuration enables enhance
// mode; configuration problems are fatal here, before any item starts.
func NewOrchestrator(cfg *config.Config, codecs Codec, denoiser denoise.Denoiser) (*Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil configuration", config.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if codecs == nil {
		return nil, fmt.Errorf("%w: no codec adapter", config.ErrInvalidConfig)
	}
	if cfg.Mode == config.ModeEnhance && denoiser == nil {
		return nil, fmt.Errorf("%w: enhance mode needs a denoiser", config.ErrInvalidConfig)
	}

	return &Orchestrator{
		cfg:          cfg.Clone(),
		codecs:       codecs,
		denoiser:     denoiser,
		timeProvider: defaultTimeProvider,
	}, nil
}

// OnBatchStart registers a callback fired once per run, after the batch
// membership is enumerated and before any worker starts.
func (o *Orchestrator) OnBatchStart(cb func(run *BatchRun)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onBatchStart = cb
}

// OnItemTransition registers a callback fired on every item state
// change. Workers invoke it concurrently; the callback must be safe for
// that.
func (o *Orchestrator) OnItemTransition(cb func(item *JobItem, from, to Status)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onItemTransition = cb
}

// SetTimeProvider sets a custom time provider for deterministic testing.
func (o *Orchestrator) SetTimeProvider(tp TimeProvider) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.timeProvider = tp
}

// Run processes one batch: enumerate membership, push every item
// through its stages with a bounded worker pool, clean up, and report.
//
// A failure inside one item never aborts the others. Cancelling ctx
// stops cooperatively: in-flight items finish their current stage and
// fail as cancelled, not-yet-started items stay pending, and the report
// still lists every enumerated item.
func (o *Orchestrator) Run(ctx context.Context, plan BatchPlan) (*Report, error) {
	cfg, err := o.planConfig(plan)
	if err != nil {
		return nil, err
	}

	run, err := newBatchRun(cfg, plan.Inputs)
	if err != nil {
		return nil, err
	}

	o.mu.RLock()
	tp := o.timeProvider
	batchStart := o.onBatchStart
	itemTransition := o.onItemTransition
	o.mu.RUnlock()

	run.started = tp.Now()
	for _, item := range run.Items {
		item.SetTimeProvider(tp)
		item.setTransitionCallback(itemTransition)
	}

	outputRoot := outputRootFor(cfg)
	tempRoot, err := prepareDirs(cfg, outputRoot)
	if err != nil {
		return nil, err
	}
	// The temp root only ever holds this run's staging files; the
	// configured parent is left in place if the operator shares it.
	defer os.Remove(cfg.TempDir)
	defer os.RemoveAll(tempRoot)

	logrus.WithFields(logrus.Fields{
		"function":    "Orchestrator.Run",
		"mode":        string(cfg.Mode),
		"target_lufs": cfg.ResolveTarget(),
		"items":       run.Size(),
		"workers":     workersFor(cfg, run.Size()),
	}).Info("Batch run starting")

	if batchStart != nil {
		batchStart(run)
	}

	o.processAll(ctx, cfg, run, tempRoot)

	report := buildReport(run, tp.Since(run.started))
	if _, err := report.WriteJSON(outputRoot); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Orchestrator.Run",
			"error":    err.Error(),
		}).Warn("Batch report could not be persisted")
	}

	logrus.WithFields(logrus.Fields{
		"function":  "Orchestrator.Run",
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
		"skipped":   report.Skipped,
		"duration":  report.Duration.String(),
	}).Info("Batch run complete")

	return report, nil
}

// planConfig resolves the effective configuration for one run and
// re-validates it together with the stage adapters.
func (o *Orchestrator) planConfig(plan BatchPlan) (*config.Config, error) {
	cfg := o.cfg
	if plan.Config != nil {
		if err := plan.Config.Validate(); err != nil {
			return nil, err
		}
		cfg = plan.Config.Clone()
	}
	if cfg.Mode == config.ModeEnhance && o.denoiser == nil {
		return nil, fmt.Errorf("%w: enhance mode needs a denoiser", config.ErrInvalidConfig)
	}
	return cfg, nil
}

// processAll drains the batch through a bounded worker pool. Each
// worker owns one item end-to-end; items share nothing but the
// read-only configuration.
func (o *Orchestrator) processAll(ctx context.Context, cfg *config.Config, run *BatchRun, tempRoot string) {
	workers := workersFor(cfg, run.Size())
	items := make(chan *JobItem)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range items {
				// Items never started stay pending after a stop.
				if ctx.Err() != nil {
					continue
				}
				o.processItem(ctx, cfg, item, tempRoot)
			}
		}()
	}

	for _, item := range run.Items {
		items <- item
	}
	close(items)
	wg.Wait()
}

// processItem runs one item's full stage sequence. Artifact cleanup is
// deferred so it runs on every exit path, success and failure alike.
func (o *Orchestrator) processItem(ctx context.Context, cfg *config.Config, item *JobItem, tempRoot string) {
	arts := &artifactSet{}
	defer arts.cleanup()

	buf, ok := o.decodeStage(ctx, item)
	if !ok {
		return
	}
	m, ok := o.analyzeStage(ctx, item, buf)
	if !ok {
		return
	}
	buf, ok = o.gainStage(ctx, cfg, item, buf, m)
	if !ok {
		return
	}
	if cfg.Mode == config.ModeEnhance {
		buf, ok = o.denoiseStage(ctx, cfg, item, buf, arts)
		if !ok {
			return
		}
	}
	if !o.encodeStage(ctx, cfg, item, buf, tempRoot, arts) {
		return
	}
	item.succeed()
}

// advance checks for a cooperative stop, then moves the item to its
// next stage. It returns false when the item is done for, already
// marked failed.
func (o *Orchestrator) advance(ctx context.Context, item *JobItem, to Status) bool {
	if err := ctx.Err(); err != nil {
		item.fail(ReasonCancelled, err)
		return false
	}
	if err := item.transition(to); err != nil {
		item.fail(ReasonInternal, err)
		return false
	}
	return true
}

// failItem classifies err and marks the item failed.
func failItem(item *JobItem, err error) {
	item.fail(ClassifyFailure(err), err)
}

// decodeStage reads the input file and conforms it to the analysis
// shape.
func (o *Orchestrator) decodeStage(ctx context.Context, item *JobItem) (*audio.Buffer, bool) {
	if !o.advance(ctx, item, StatusDecoding) {
		return nil, false
	}
	buf, err := o.codecs.Decode(ctx, item.InputPath)
	if err != nil {
		failItem(item, err)
		return nil, false
	}
	buf, err = audio.Conform(buf, analysisSampleRate, analysisChannels)
	if err != nil {
		failItem(item, err)
		return nil, false
	}
	return buf, true
}

// analyzeStage measures the conformed buffer.
func (o *Orchestrator) analyzeStage(ctx context.Context, item *JobItem, buf *audio.Buffer) (*loudness.Measurement, bool) {
	if !o.advance(ctx, item, StatusAnalyzing) {
		return nil, false
	}
	m, err := loudness.Measure(buf)
	if err != nil {
		failItem(item, err)
		return nil, false
	}
	item.setMeasurement(m)
	return m, true
}

// gainStage solves for the peak-safe gain and applies it.
func (o *Orchestrator) gainStage(ctx context.Context, cfg *config.Config, item *JobItem, buf *audio.Buffer, m *loudness.Measurement) (*audio.Buffer, bool) {
	if !o.advance(ctx, item, StatusApplyingGain) {
		return nil, false
	}
	d, err := gain.Solve(m, cfg.ResolveTarget(), cfg.PeakCeiling)
	if err != nil {
		failItem(item, err)
		return nil, false
	}
	item.setDecision(d)
	return gain.Apply(buf, d), true
}

// denoiseStage writes the pre-denoise intermediate, then runs the
// cleanup adapter at most once and validates the returned shape.
func (o *Orchestrator) denoiseStage(ctx context.Context, cfg *config.Config, item *JobItem, buf *audio.Buffer, arts *artifactSet) (*audio.Buffer, bool) {
	if !o.advance(ctx, item, StatusDenoising) {
		return nil, false
	}

	intermediate := filepath.Join(cfg.IntermediateDir, item.Base+"_Normalized.wav")
	arts.register(intermediate, cfg.KeepIntermediate)
	enc, err := o.codecs.Encoder(codec.Format{Container: "wav"})
	if err != nil {
		failItem(item, err)
		return nil, false
	}
	if err := enc.Encode(ctx, buf, intermediate, codec.Format{Container: "wav"}); err != nil {
		failItem(item, err)
		return nil, false
	}
	if cfg.KeepIntermediate {
		if out, err := checksumOutput(intermediate, "intermediate"); err == nil {
			item.addOutput(out)
		}
	}

	cleaned, err := o.denoiser.Denoise(ctx, buf)
	if err != nil {
		failItem(item, err)
		return nil, false
	}
	if err := sameShape(buf, cleaned); err != nil {
		failItem(item, fmt.Errorf("%w: %v", denoise.ErrDenoise, err))
		return nil, false
	}
	return cleaned, true
}

// encodeStage writes the final output through a staging file in the
// temp root, then renames it into place so a failed encode never leaves
// a partial file in the output directory.
func (o *Orchestrator) encodeStage(ctx context.Context, cfg *config.Config, item *JobItem, buf *audio.Buffer, tempRoot string, arts *artifactSet) bool {
	if !o.advance(ctx, item, StatusEncoding) {
		return false
	}

	name, format := outputNameFor(cfg, item)
	enc, err := o.codecs.Encoder(format)
	if err != nil {
		failItem(item, err)
		return false
	}

	staged := filepath.Join(tempRoot, fmt.Sprintf("%d_%s", item.Ordinal, name))
	arts.register(staged, false)
	if err := enc.Encode(ctx, buf, staged, format); err != nil {
		failItem(item, err)
		return false
	}

	final := filepath.Join(outputRootFor(cfg), name)
	if err := os.Rename(staged, final); err != nil {
		failItem(item, fmt.Errorf("%w: %v", codec.ErrEncode, err))
		return false
	}
	arts.release(staged)

	out, err := checksumOutput(final, "output")
	if err != nil {
		os.Remove(final)
		failItem(item, fmt.Errorf("%w: checksumming output: %v", codec.ErrEncode, err))
		return false
	}
	item.addOutput(out)
	return true
}

// sameShape verifies the denoiser honored its contract.
func sameShape(in, out *audio.Buffer) error {
	if err := out.Validate(); err != nil {
		return err
	}
	if out.NumChannels() != in.NumChannels() {
		return fmt.Errorf("returned %d channels, sent %d", out.NumChannels(), in.NumChannels())
	}
	if out.SampleRate != in.SampleRate {
		return fmt.Errorf("returned %d Hz, sent %d Hz", out.SampleRate, in.SampleRate)
	}
	if out.NumFrames() != in.NumFrames() {
		return fmt.Errorf("returned %d frames, sent %d", out.NumFrames(), in.NumFrames())
	}
	return nil
}

// outputRootFor returns the directory receiving the mode's final files.
func outputRootFor(cfg *config.Config) string {
	if cfg.Mode == config.ModeEnhance {
		return cfg.OutputDir
	}
	return cfg.NormalizedDir
}

// outputNameFor derives the deterministic output name and encode format
// for an item. Normalize mode always produces WAV copies; enhance mode
// follows the configured container.
func outputNameFor(cfg *config.Config, item *JobItem) (string, codec.Format) {
	if cfg.Mode == config.ModeEnhance {
		return item.Base + "." + cfg.OutputFormat, codec.Format{
			Container:   cfg.OutputFormat,
			BitrateKbps: cfg.BitrateKbps,
		}
	}
	return item.Base + "_Normalized.wav", codec.Format{Container: "wav"}
}

// prepareDirs creates the run's directory layout and a fresh staging
// root under the configured temp directory.
func prepareDirs(cfg *config.Config, outputRoot string) (string, error) {
	dirs := []string{outputRoot, cfg.TempDir}
	if cfg.Mode == config.ModeEnhance {
		dirs = append(dirs, cfg.IntermediateDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	tempRoot, err := os.MkdirTemp(cfg.TempDir, "batch-*")
	if err != nil {
		return "", fmt.Errorf("creating staging root: %w", err)
	}
	return tempRoot, nil
}

// workersFor bounds the pool at the batch size so small batches do not
// spawn idle workers.
func workersFor(cfg *config.Config, size int) int {
	workers := cfg.ResolveWorkers()
	if size > 0 && workers > size {
		workers = size
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}
