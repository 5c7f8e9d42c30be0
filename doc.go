// Package loudnorm implements loudness measurement and normalization
// for batches of audio files.
//
// Measurement follows ITU-R BS.1770 and EBU R128: K-weighted, gated
// integrated loudness, loudness range per EBU Tech 3342, and true peak
// estimated over 4x oversampling. Normalization applies one linear
// gain per file that moves it to a target loudness without letting the
// true peak exceed a ceiling. There is no compression or limiting; a
// file whose peak would exceed the ceiling comes out quieter than the
// target instead of clipped.
//
// # Getting Started
//
// Create an Engine with options and run a batch:
//
//	options := loudnorm.NewOptions()
//	options.Config.Preset = config.PresetPodcast
//
//	engine, err := loudnorm.New(options)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
//
//	report, err := engine.Run(ctx, "./recordings")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(report.Summary())
//
// Each input file is decoded, measured, gain-adjusted and re-encoded
// independently. A corrupt or unreadable file fails on its own; the
// rest of the batch completes, and the report names every file with
// its outcome.
//
// # Core Types
//
//   - [Engine]: facade owning the codec registry, denoiser and
//     orchestrator
//   - [Options]: configuration for creating a new Engine
//   - [pipeline.Report]: per-batch outcome with per-file entries
//   - [config.Config]: every tunable of a batch run
//
// # Batch Processing
//
// Inputs may be files, directories or both; directories are walked
// recursively and filtered by extension. Batch membership is fixed
// when the run starts. Files process through a bounded worker pool,
// one worker owning each file end-to-end:
//
//	cfg := config.Default()
//	cfg.Workers = 4
//
//	engine, _ := loudnorm.New(&loudnorm.Options{Config: cfg})
//	report, _ := engine.Run(ctx, "album/", "bonus_track.flac")
//
//	for _, item := range report.Failures() {
//	    fmt.Printf("%s: %s\n", item.Input, item.Reason)
//	}
//
// Cancelling the context stops the batch cooperatively: in-flight
// files finish their current stage and report as cancelled, files not
// yet started report as skipped, and the report still lists everything.
//
// # Continuous Operation
//
// RunLoop keeps the engine processing batch after batch. A
// pipeline.BatchPlanner supplies each plan and receives the previous
// report, which is how interactive frontends prompt between runs:
//
//	planner := pipeline.PlannerFunc(func(ctx context.Context, prev *pipeline.Report) (*pipeline.BatchPlan, error) {
//	    if prev != nil {
//	        fmt.Println(prev.Summary())
//	    }
//	    inputs := askOperatorForInputs()
//	    if len(inputs) == 0 {
//	        return nil, nil // done
//	    }
//	    return &pipeline.BatchPlan{Inputs: inputs}, nil
//	})
//	err := engine.RunLoop(ctx, planner)
//
// # Enhance Mode
//
// Enhance mode inserts a denoise stage between gain and encode and
// writes the final output as MP3. The pre-denoise normalized WAV is
// staged in the intermediate directory and kept when
// KeepIntermediate is set:
//
//	cfg := config.Default()
//	cfg.Mode = config.ModeEnhance
//	cfg.Denoiser = config.DenoiserSpectral
//	cfg.KeepIntermediate = true
//
// The denoiser is pluggable through [Options]. The built-in choices
// are a local spectral-subtraction implementation and an HTTP adapter
// posting audio to an external inference service.
//
// # Progress Callbacks
//
// Register callbacks to observe a running batch:
//
//	engine.OnBatchStart(func(run *pipeline.BatchRun) {
//	    fmt.Printf("processing %d files\n", run.Size())
//	})
//	engine.OnItemTransition(func(item *pipeline.JobItem, from, to pipeline.Status) {
//	    fmt.Printf("%s: %s\n", item.Base, to)
//	})
//
// Transition callbacks run on worker goroutines and must be safe for
// concurrent use.
//
// # Integration Architecture
//
// This package is the integration point over the subsystems:
//
//   - [audio]: sample buffers, PCM conversion, channel/rate conforming
//   - [loudness]: BS.1770 K-weighting, gating, LRA and true peak
//   - [gain]: peak-safe gain solving and application
//   - [codec]: decoder registry, WAV and Ogg-Opus codecs, FFmpeg adapter
//   - [denoise]: spectral and HTTP denoise adapters
//   - [config]: presets, validation, YAML layering
//   - [pipeline]: job state machine, worker pool, reports
//
// The cmd/loudnorm binary wraps the same facade in an interactive
// terminal frontend.
package loudnorm
