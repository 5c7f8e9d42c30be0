package pipeline

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/opd-ai/loudnorm/config"
)

// reportFileName is written into the batch's output root after each run.
const reportFileName = "batch_report.json"

// ItemReport is the per-file slice of a batch report.
type ItemReport struct {
	Input    string        `json:"input"`
	Status   string        `json:"status"`
	Reason   string        `json:"reason,omitempty"`
	Error    string        `json:"error,omitempty"`
	Outputs  []OutputFile  `json:"outputs,omitempty"`
	Duration time.Duration `json:"duration_ns"`

	// Measured and applied levels, present once analysis succeeded.
	InputLUFS     float64 `json:"input_lufs,omitempty"`
	TruePeakDBTP  float64 `json:"true_peak_dbtp,omitempty"`
	LoudnessRange float64 `json:"loudness_range_lu,omitempty"`
	GainDB        float64 `json:"gain_db,omitempty"`
	Clamped       bool    `json:"clamped,omitempty"`
}

// Report is the end-of-batch summary: one entry per enumerated item,
// aggregate counts, and the run's configuration snapshot.
type Report struct {
	Mode       config.Mode   `json:"mode"`
	TargetLUFS float64       `json:"target_lufs"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
	Succeeded  int           `json:"succeeded"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	Items      []ItemReport  `json:"items"`
}

// buildReport snapshots a finished run. Every enumerated item appears
// exactly once, in scan order, whatever order workers finished in.
func buildReport(run *BatchRun, duration time.Duration) *Report {
	report := &Report{
		Mode:       run.Config.Mode,
		TargetLUFS: run.Config.ResolveTarget(),
		StartedAt:  run.started,
		Duration:   duration,
		Items:      make([]ItemReport, len(run.Items)),
	}
	report.Succeeded, report.Failed, report.Skipped = run.counts()

	for i, item := range run.Items {
		entry := ItemReport{
			Input:    item.InputPath,
			Status:   item.Status().String(),
			Outputs:  item.Outputs(),
			Duration: item.Duration(),
		}
		if item.Status() == StatusFailed {
			entry.Reason = item.FailureReason().String()
			if err := item.Err(); err != nil {
				entry.Error = err.Error()
			}
		}
		if m := item.Measurement(); m != nil {
			entry.InputLUFS = m.Integrated
			entry.TruePeakDBTP = m.TruePeak
			entry.LoudnessRange = m.LoudnessRange
		}
		if d := item.Decision(); d != nil {
			entry.GainDB = d.GainDB
			entry.Clamped = d.Clamped
		}
		report.Items[i] = entry
	}
	return report
}

// Failures returns the entries for failed items, preserving scan order.
func (r *Report) Failures() []ItemReport {
	var failed []ItemReport
	for _, item := range r.Items {
		if item.Status == StatusFailed.String() {
			failed = append(failed, item)
		}
	}
	return failed
}

// Summary renders the one-line-per-failure batch outcome used by logs
// and plain-text frontends.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d succeeded, %d failed", r.Succeeded, r.Failed)
	if r.Skipped > 0 {
		fmt.Fprintf(&b, ", %d skipped", r.Skipped)
	}
	fmt.Fprintf(&b, " of %d files in %s", len(r.Items), r.Duration.Round(time.Millisecond))
	for _, item := range r.Failures() {
		fmt.Fprintf(&b, "\n  %s: %s", item.Input, item.Reason)
	}
	return b.String()
}

// WriteJSON persists the report into dir as batch_report.json and
// returns the written path.
func (r *Report) WriteJSON(dir string) (string, error) {
	path := filepath.Join(dir, reportFileName)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("persisting report: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		f.Close()
		return "", fmt.Errorf("persisting report: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("persisting report: %w", err)
	}
	return path, nil
}

// checksumOutput hashes a produced file with BLAKE2b-256 so the report
// can vouch for what was written.
func checksumOutput(path, kind string) (OutputFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return OutputFile{}, err
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return OutputFile{}, err
	}
	n, err := io.Copy(h, f)
	if err != nil {
		return OutputFile{}, err
	}

	return OutputFile{
		Path:     path,
		Bytes:    n,
		Blake2b:  hex.EncodeToString(h.Sum(nil)),
		Artifact: kind,
	}, nil
}
