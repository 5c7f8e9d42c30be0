package pipeline

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// TemporaryArtifact is one intermediate file created while processing a
// job item: an encode staged in the temp root before its rename into
// the output directory, or a pre-denoise WAV in the intermediate root.
type TemporaryArtifact struct {
	// Path is the file's location on disk.
	Path string

	// Keep retains the file at terminal status instead of removing it.
	Keep bool
}

// artifactSet tracks the intermediate files of a single item. The
// worker processing that item is the only goroutine touching the set,
// so cleanup needs no locking across items.
type artifactSet struct {
	files []TemporaryArtifact
}

// register adds a file to be removed when the item reaches a terminal
// status. keep marks it retained instead.
func (a *artifactSet) register(path string, keep bool) {
	a.files = append(a.files, TemporaryArtifact{Path: path, Keep: keep})
}

// release forgets a file that was promoted to a final output and must
// survive cleanup.
func (a *artifactSet) release(path string) {
	for i, f := range a.files {
		if f.Path == path {
			a.files = append(a.files[:i], a.files[i+1:]...)
			return
		}
	}
}

// cleanup removes every registered file that is not marked kept. It
// runs on both success and failure paths; a file that is already gone
// is not an error.
func (a *artifactSet) cleanup() {
	for _, f := range a.files {
		if f.Keep {
			continue
		}
		if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
			logrus.WithFields(logrus.Fields{
				"function": "artifactSet.cleanup",
				"path":     filepath.Base(f.Path),
				"error":    err.Error(),
			}).Warn("Failed to remove temporary artifact")
		}
	}
	a.files = nil
}
