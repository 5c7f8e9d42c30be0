package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/opd-ai/loudnorm/config"
	"github.com/opd-ai/loudnorm/pipeline"
)

// interactivePlanner drives the continuous operator loop. Between runs
// it closes the progress view, renders the finished report, and asks
// whether to process another batch; the operator can swap the input
// paths or retarget the next run without restarting the program.
type interactivePlanner struct {
	base   *config.Config
	inputs []string
	ui     *batchUI
	in     *bufio.Scanner
	out    io.Writer
	ran    bool
}

func newInteractivePlanner(base *config.Config, inputs []string, ui *batchUI, in io.Reader, out io.Writer) *interactivePlanner {
	return &interactivePlanner{
		base:   base,
		inputs: inputs,
		ui:     ui,
		in:     bufio.NewScanner(in),
		out:    out,
	}
}

// NextBatch implements pipeline.BatchPlanner.
func (p *interactivePlanner) NextBatch(ctx context.Context, previous *pipeline.Report) (*pipeline.BatchPlan, error) {
	p.ui.Finish()

	if previous != nil {
		fmt.Fprintln(p.out, renderReport(previous))
	}

	// The first batch runs straight from the command line.
	if !p.ran {
		p.ran = true
		return &pipeline.BatchPlan{Inputs: p.inputs}, nil
	}

	if ctx.Err() != nil {
		return nil, nil
	}
	if !p.confirm("Process another batch?") {
		return nil, nil
	}

	if paths := p.promptInputs(); len(paths) > 0 {
		p.inputs = paths
	}
	return &pipeline.BatchPlan{
		Inputs: p.inputs,
		Config: p.promptOverride(),
	}, nil
}

// confirm asks a yes/no question, defaulting to no.
func (p *interactivePlanner) confirm(question string) bool {
	fmt.Fprintf(p.out, "%s [y/N] ", question)
	if !p.in.Scan() {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(p.in.Text())) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// promptInputs lets the operator swap the scanned paths. Blank keeps
// the current set.
func (p *interactivePlanner) promptInputs() []string {
	fmt.Fprintf(p.out, "Input paths [%s]: ", strings.Join(p.inputs, " "))
	if !p.in.Scan() {
		return nil
	}
	line := strings.TrimSpace(p.in.Text())
	if line == "" {
		return nil
	}
	return strings.Fields(line)
}

// promptOverride lets the operator retarget the next run with a preset
// name or a numeric LUFS value. Blank keeps the engine configuration;
// unusable answers are reported and ignored.
func (p *interactivePlanner) promptOverride() *config.Config {
	fmt.Fprintf(p.out, "Target [%.1f LUFS] (broadcast/podcast/streaming or LUFS value): ", p.base.ResolveTarget())
	if !p.in.Scan() {
		return nil
	}
	answer := strings.ToLower(strings.TrimSpace(p.in.Text()))
	if answer == "" {
		return nil
	}

	override := p.base.Clone()
	switch answer {
	case "broadcast", "podcast", "streaming":
		override.Preset = config.Preset(answer)
	default:
		lufs, err := strconv.ParseFloat(answer, 64)
		if err != nil {
			fmt.Fprintf(p.out, "Unrecognized target %q, keeping %.1f LUFS\n", answer, p.base.ResolveTarget())
			return nil
		}
		override.Preset = config.PresetCustom
		override.TargetLUFS = lufs
	}

	if err := override.Validate(); err != nil {
		fmt.Fprintf(p.out, "Rejected: %v, keeping %.1f LUFS\n", err, p.base.ResolveTarget())
		return nil
	}
	p.base = override
	return override
}
