package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/loudnorm"
	"github.com/opd-ai/loudnorm/config"
)

var version = "0.1.0"

// CLI defines the command-line interface.
type CLI struct {
	Config           string   `short:"c" type:"path" help:"Path to YAML config file."`
	Mode             string   `help:"Processing mode: normalize or enhance."`
	Preset           string   `help:"Loudness preset: broadcast, podcast, streaming or custom."`
	Target           *float64 `help:"Integrated loudness target in LUFS; implies the custom preset."`
	Ceiling          *float64 `help:"True peak ceiling in dBTP."`
	Format           string   `help:"Output container for enhance mode: mp3 or wav."`
	Bitrate          *int     `help:"Lossy encode bitrate in kbps."`
	Workers          *int     `short:"w" help:"Parallel worker count; 0 means one per CPU."`
	KeepIntermediate bool     `help:"Keep pre-denoise intermediate WAV files (enhance mode)."`
	Denoiser         string   `help:"Enhance-mode denoiser: spectral or http."`
	DenoiserURL      string   `name:"denoiser-url" help:"Endpoint for the http denoiser."`
	Once             bool     `help:"Process one batch and exit without the interactive loop."`
	Verbose          bool     `short:"v" help:"Enable debug logging."`
	Version          bool     `help:"Show version information."`

	Inputs []string `arg:"" optional:"" type:"path" help:"Audio files and/or directories to process."`
}

func main() {
	os.Exit(run())
}

func run() int {
	cli := &CLI{}
	kctx := kong.Parse(cli,
		kong.Name("loudnorm"),
		kong.Description("Batch loudness normalization and mastering per EBU R128."),
		kong.UsageOnError(),
	)

	if cli.Version {
		fmt.Printf("loudnorm %s\n", version)
		return 0
	}

	if cli.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.WarnLevel)
	}

	if len(cli.Inputs) == 0 {
		printError("no input files or directories given")
		kctx.PrintUsage(false)
		return 1
	}

	cfg, err := buildConfig(cli)
	if err != nil {
		printError(err.Error())
		return 1
	}

	engine, err := loudnorm.New(&loudnorm.Options{Config: cfg})
	if err != nil {
		printError(err.Error())
		return 1
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		// After a cancellation the handler resets, so a second signal
		// terminates the process the default way.
		<-ctx.Done()
		stop()
	}()

	if cli.Once {
		report, err := engine.Run(ctx, cli.Inputs...)
		if err != nil {
			printError(err.Error())
			return 1
		}
		fmt.Println(renderReport(report))
		if report.Failed > 0 {
			return 1
		}
		return 0
	}

	ui := newBatchUI(stop)
	engine.OnBatchStart(ui.Start)
	engine.OnItemTransition(ui.Transition)

	planner := newInteractivePlanner(engine.Config(), cli.Inputs, ui, os.Stdin, os.Stdout)
	if err := engine.RunLoop(ctx, planner); err != nil && !errors.Is(err, context.Canceled) {
		printError(err.Error())
		return 1
	}
	return 0
}

// buildConfig resolves the effective configuration: the YAML file or
// the defaults, overlaid with command line flags.
func buildConfig(cli *CLI) (*config.Config, error) {
	cfg := config.Default()
	if cli.Config != "" {
		loaded, err := config.Load(cli.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if cli.Mode != "" {
		cfg.Mode = config.Mode(strings.ToLower(cli.Mode))
	}
	if cli.Preset != "" {
		cfg.Preset = config.Preset(strings.ToLower(cli.Preset))
	}
	if cli.Target != nil {
		cfg.Preset = config.PresetCustom
		cfg.TargetLUFS = *cli.Target
	}
	if cli.Ceiling != nil {
		cfg.PeakCeiling = *cli.Ceiling
	}
	if cli.Format != "" {
		cfg.OutputFormat = strings.ToLower(cli.Format)
	}
	if cli.Bitrate != nil {
		cfg.BitrateKbps = *cli.Bitrate
	}
	if cli.Workers != nil {
		cfg.Workers = *cli.Workers
	}
	if cli.KeepIntermediate {
		cfg.KeepIntermediate = true
	}
	if cli.Denoiser != "" {
		cfg.Denoiser = config.DenoiserKind(strings.ToLower(cli.Denoiser))
	}
	if cli.DenoiserURL != "" {
		cfg.DenoiserURL = cli.DenoiserURL
	}
	return cfg, nil
}
