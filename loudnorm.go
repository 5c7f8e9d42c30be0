package loudnorm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/loudnorm/codec"
	"github.com/opd-ai/loudnorm/config"
	"github.com/opd-ai/loudnorm/denoise"
	"github.com/opd-ai/loudnorm/pipeline"
)

// ErrEngineClosed indicates a call on an Engine after Close.
var ErrEngineClosed = errors.New("engine is closed")

// httpDenoiseTimeout bounds one inference round trip of the http
// denoiser when the engine builds it from configuration.
const httpDenoiseTimeout = 2 * time.Minute

// Engine is the top-level entry point. It owns the codec registry, the
// denoise adapter and the batch orchestrator, and runs batches of
// files against them.
type Engine struct {
	cfg      *config.Config
	codecs   pipeline.Codec
	denoiser denoise.Denoiser
	orc      *pipeline.Orchestrator

	mu           sync.Mutex
	ownsDenoiser bool
	closed       bool
}

// New creates an Engine with the given options. A nil options runs
// with the default configuration.
func New(options *Options) (*Engine, error) {
	if options == nil {
		options = NewOptions()
	}

	cfg, err := resolveConfig(options)
	if err != nil {
		return nil, err
	}

	codecs := options.Codecs
	if codecs == nil {
		codecs = codec.NewRegistry()
	}

	den := options.Denoiser
	ownsDenoiser := false
	if den == nil {
		built, err := buildDenoiser(cfg)
		if err != nil {
			// Normalize mode never invokes the denoiser, so a broken
			// denoiser setting only blocks enhance runs.
			if cfg.Mode == config.ModeEnhance {
				return nil, err
			}
		} else {
			den = built
			ownsDenoiser = true
		}
	}

	orc, err := pipeline.NewOrchestrator(cfg, codecs, den)
	if err != nil {
		if ownsDenoiser {
			den.Close()
		}
		return nil, err
	}

	fields := logrus.Fields{
		"function":    "New",
		"mode":        string(cfg.Mode),
		"target_lufs": cfg.ResolveTarget(),
	}
	if den != nil {
		fields["denoiser"] = den.Name()
	}
	logrus.WithFields(fields).Info("Engine created")

	return &Engine{
		cfg:          cfg,
		codecs:       codecs,
		denoiser:     den,
		orc:          orc,
		ownsDenoiser: ownsDenoiser,
	}, nil
}

// resolveConfig picks the effective configuration from the options.
func resolveConfig(options *Options) (*config.Config, error) {
	switch {
	case options.Config != nil:
		cfg := options.Config.Clone()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	case options.ConfigPath != "":
		return config.Load(options.ConfigPath)
	default:
		return config.Default(), nil
	}
}

// buildDenoiser constructs the adapter the configuration names. The
// engine builds one even in normalize mode so a later batch plan can
// switch to enhance without rebuilding the engine.
func buildDenoiser(cfg *config.Config) (denoise.Denoiser, error) {
	switch cfg.Denoiser {
	case config.DenoiserHTTP:
		return denoise.NewHTTPDenoiser(cfg.DenoiserURL, httpDenoiseTimeout), nil
	default:
		return denoise.NewSpectral(cfg.DenoiseStrength)
	}
}

// Config returns a copy of the engine's effective configuration.
func (e *Engine) Config() *config.Config {
	return e.cfg.Clone()
}

// OnBatchStart registers a callback fired once per batch run, after
// membership is enumerated and before any file is processed.
func (e *Engine) OnBatchStart(cb func(run *pipeline.BatchRun)) {
	e.orc.OnBatchStart(cb)
}

// OnItemTransition registers a callback fired on every per-file state
// change. Workers invoke it concurrently.
func (e *Engine) OnItemTransition(cb func(item *pipeline.JobItem, from, to pipeline.Status)) {
	e.orc.OnItemTransition(cb)
}

// Run processes one batch over the given input files and directories
// under the engine's configuration and returns its report.
//
// Cancelling ctx stops the batch cooperatively: the report is still
// returned, listing unprocessed files as skipped.
func (e *Engine) Run(ctx context.Context, inputs ...string) (*pipeline.Report, error) {
	return e.runPlan(ctx, pipeline.BatchPlan{Inputs: inputs})
}

// RunLoop drives continuous operation: it asks the planner for a plan,
// runs it, hands the finished report back to the planner, and repeats
// until the planner returns a nil plan.
//
// Interactive frontends prompt the operator inside the planner;
// embedded callers can feed a fixed sequence with pipeline.PlannerFunc.
func (e *Engine) RunLoop(ctx context.Context, planner pipeline.BatchPlanner) error {
	if planner == nil {
		return fmt.Errorf("%w: nil batch planner", config.ErrInvalidConfig)
	}

	var previous *pipeline.Report
	for {
		plan, err := planner.NextBatch(ctx, previous)
		if err != nil {
			return err
		}
		if plan == nil {
			logrus.WithFields(logrus.Fields{
				"function": "Engine.RunLoop",
			}).Debug("Planner ended the processing loop")
			return nil
		}
		// The planner saw the cancelled report above; do not start
		// another run on a dead context.
		if err := ctx.Err(); err != nil {
			return err
		}

		report, err := e.runPlan(ctx, *plan)
		if err != nil {
			return err
		}
		previous = report
	}
}

// runPlan executes one batch plan unless the engine is closed.
func (e *Engine) runPlan(ctx context.Context, plan pipeline.BatchPlan) (*pipeline.Report, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, ErrEngineClosed
	}
	return e.orc.Run(ctx, plan)
}

// Close releases the engine's resources. Close is idempotent; an
// engine cannot be reused after it.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	var err error
	if e.ownsDenoiser && e.denoiser != nil {
		err = e.denoiser.Close()
	}

	logrus.WithFields(logrus.Fields{
		"function": "Engine.Close",
	}).Debug("Engine closed")
	return err
}
