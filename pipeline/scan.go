package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Scan resolves the batch membership from a mix of file and directory
// paths. Directories are walked recursively. Files whose extension is
// not in the accepted set are skipped, never failed. The result is
// deduplicated and sorted, so identical inputs always enumerate the
// same batch.
//
// A path that does not exist fails the scan: batch membership is fixed
// up front, and a missing input is an operator mistake rather than a
// per-file processing error.
func Scan(inputs []string, extensions []string) ([]string, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no input paths given")
	}

	accepted := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		accepted[strings.ToLower(ext)] = true
	}

	seen := make(map[string]bool)
	var paths []string
	add := func(path string) {
		if ext := strings.ToLower(filepath.Ext(path)); !accepted[ext] {
			logrus.WithFields(logrus.Fields{
				"function": "Scan",
				"path":     filepath.Base(path),
			}).Debug("Skipping file with unrecognized extension")
			return
		}
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		if !seen[path] {
			seen[path] = true
			paths = append(paths, path)
		}
	}

	for _, input := range inputs {
		info, err := os.Stat(input)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", input, err)
		}
		if !info.IsDir() {
			add(input)
			continue
		}

		err = filepath.WalkDir(input, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", input, err)
		}
	}

	sort.Strings(paths)

	logrus.WithFields(logrus.Fields{
		"function": "Scan",
		"inputs":   len(inputs),
		"matched":  len(paths),
	}).Debug("Batch membership enumerated")

	return paths, nil
}
