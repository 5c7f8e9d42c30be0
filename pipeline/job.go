// Package pipeline turns a set of input files into a processed batch:
// scanning, per-item staging, bounded-parallel execution, artifact
// cleanup and the final report.
//
// Every item moves through a validated state machine. A failure in one
// item never aborts the others; cancellation stops work between stages
// and marks the remaining items instead of discarding them.
//
// Example:
//
//	orc, _ := pipeline.NewOrchestrator(cfg, registry, nil)
//	orc.OnItemTransition(func(item *pipeline.JobItem, from, to pipeline.Status) {
//	    fmt.Printf("%s: %s\n", item.Base, to)
//	})
//	report, _ := orc.Run(ctx, pipeline.BatchPlan{Inputs: []string{"./raw"}})
package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/loudnorm/gain"
	"github.com/opd-ai/loudnorm/loudness"
)

// Status represents where a job item is in its life cycle.
type Status uint8

const (
	// StatusPending indicates the item is waiting for a worker.
	StatusPending Status = iota
	// StatusDecoding indicates the input file is being read and conformed.
	StatusDecoding
	// StatusAnalyzing indicates loudness measurement is running.
	StatusAnalyzing
	// StatusApplyingGain indicates the normalization gain is being solved
	// and applied.
	StatusApplyingGain
	// StatusDenoising indicates the enhance-mode cleanup stage is running.
	StatusDenoising
	// StatusEncoding indicates output files are being written.
	StatusEncoding
	// StatusSucceeded indicates all outputs were produced.
	StatusSucceeded
	// StatusFailed indicates the item stopped with a classified reason.
	StatusFailed
)

// String returns the lowercase name used in logs and reports.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusDecoding:
		return "decoding"
	case StatusAnalyzing:
		return "analyzing"
	case StatusApplyingGain:
		return "applying_gain"
	case StatusDenoising:
		return "denoising"
	case StatusEncoding:
		return "encoding"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// validTransitions maps each status to the statuses an item may move to.
// StatusFailed is reachable from every non-terminal status and is not
// listed here.
var validTransitions = map[Status][]Status{
	StatusPending:      {StatusDecoding},
	StatusDecoding:     {StatusAnalyzing},
	StatusAnalyzing:    {StatusApplyingGain},
	StatusApplyingGain: {StatusDenoising, StatusEncoding},
	StatusDenoising:    {StatusEncoding},
	StatusEncoding:     {StatusSucceeded},
}

// terminal reports whether no further transitions are allowed.
func (s Status) terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// TimeProvider abstracts time operations for deterministic testing.
type TimeProvider interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// DefaultTimeProvider uses the standard library time functions.
type DefaultTimeProvider struct{}

// Now returns the current time.
func (DefaultTimeProvider) Now() time.Time { return time.Now() }

// Since returns the duration since t.
func (DefaultTimeProvider) Since(t time.Time) time.Duration { return time.Since(t) }

// defaultTimeProvider is the package-level default time provider.
var defaultTimeProvider TimeProvider = DefaultTimeProvider{}

// OutputFile records one produced file and its integrity checksum.
type OutputFile struct {
	Path     string `json:"path"`
	Bytes    int64  `json:"bytes"`
	Blake2b  string `json:"blake2b256"`
	Artifact string `json:"kind"`
}

// JobItem tracks one input file through the batch.
type JobItem struct {
	// InputPath is the absolute path of the source file.
	InputPath string

	// Base is the file name without directory or extension, used to
	// derive output names.
	Base string

	// Ordinal is the item's position in the batch's scan order. Staging
	// paths include it so items with colliding base names cannot
	// overwrite each other mid-encode.
	Ordinal int

	mu           sync.Mutex
	status       Status
	reason       FailureReason
	err          error
	measurement  *loudness.Measurement
	decision     *gain.Decision
	outputs      []OutputFile
	startTime    time.Time
	endTime      time.Time
	timeProvider TimeProvider
	onTransition func(item *JobItem, from, to Status)
}

// NewJobItem creates a pending item for one input file.
func NewJobItem(path string) *JobItem {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return &JobItem{
		InputPath:    path,
		Base:         base,
		status:       StatusPending,
		timeProvider: defaultTimeProvider,
	}
}

// SetTimeProvider sets a custom time provider for deterministic testing.
func (i *JobItem) SetTimeProvider(tp TimeProvider) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.timeProvider = tp
}

// setTransitionCallback is called by the orchestrator before any
// worker sees the item.
func (i *JobItem) setTransitionCallback(cb func(item *JobItem, from, to Status)) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.onTransition = cb
}

// Status returns the item's current status.
func (i *JobItem) Status() Status {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.status
}

// FailureReason returns the classified reason when the item failed.
func (i *JobItem) FailureReason() FailureReason {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.reason
}

// Err returns the error that failed the item, if any.
func (i *JobItem) Err() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.err
}

// Measurement returns the loudness measurement taken during analysis.
func (i *JobItem) Measurement() *loudness.Measurement {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.measurement
}

// Decision returns the gain decision applied to the item.
func (i *JobItem) Decision() *gain.Decision {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.decision
}

// Outputs returns the files the item produced.
func (i *JobItem) Outputs() []OutputFile {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]OutputFile(nil), i.outputs...)
}

// Duration returns how long the item was being processed.
func (i *JobItem) Duration() time.Duration {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.startTime.IsZero() {
		return 0
	}
	if i.endTime.IsZero() {
		return i.timeProvider.Since(i.startTime)
	}
	return i.endTime.Sub(i.startTime)
}

// transition moves the item to a new in-flight status. The move must be
// listed in validTransitions.
func (i *JobItem) transition(to Status) error {
	i.mu.Lock()
	from := i.status
	if from.terminal() {
		i.mu.Unlock()
		return fmt.Errorf("item %s is already %s", i.Base, from)
	}
	allowed := false
	for _, next := range validTransitions[from] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed {
		i.mu.Unlock()
		return fmt.Errorf("invalid transition %s -> %s for %s", from, to, i.Base)
	}

	i.status = to
	if from == StatusPending {
		i.startTime = i.timeProvider.Now()
	}
	cb := i.onTransition
	i.mu.Unlock()

	if cb != nil {
		cb(i, from, to)
	}
	return nil
}

// fail marks the item failed with a classified reason. Calling fail on
// a terminal item is a no-op so late cancellations cannot clobber a
// result.
func (i *JobItem) fail(reason FailureReason, err error) {
	i.mu.Lock()
	if i.status.terminal() {
		i.mu.Unlock()
		return
	}
	from := i.status
	i.status = StatusFailed
	i.reason = reason
	i.err = err
	if i.startTime.IsZero() {
		i.startTime = i.timeProvider.Now()
	}
	i.endTime = i.timeProvider.Now()
	cb := i.onTransition
	i.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "JobItem.fail",
		"input":    filepath.Base(i.InputPath),
		"from":     from.String(),
		"reason":   reason.String(),
		"error":    fmt.Sprint(err),
	}).Warn("Item failed")

	if cb != nil {
		cb(i, from, StatusFailed)
	}
}

// succeed marks the item complete.
func (i *JobItem) succeed() {
	i.mu.Lock()
	if i.status.terminal() {
		i.mu.Unlock()
		return
	}
	from := i.status
	i.status = StatusSucceeded
	i.endTime = i.timeProvider.Now()
	cb := i.onTransition
	i.mu.Unlock()

	if cb != nil {
		cb(i, from, StatusSucceeded)
	}
}

// setMeasurement records the analysis result.
func (i *JobItem) setMeasurement(m *loudness.Measurement) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.measurement = m
}

// setDecision records the gain decision.
func (i *JobItem) setDecision(d gain.Decision) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.decision = &d
}

// addOutput records a produced file.
func (i *JobItem) addOutput(out OutputFile) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.outputs = append(i.outputs, out)
}
