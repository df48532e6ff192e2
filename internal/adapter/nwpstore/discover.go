package nwpstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// LatestComplete returns, per model, the newest run directory that holds a
// field file for every required parameter. A model with no complete run maps
// to the empty string. Directory names that do not look like init ids are
// ignored, as are regular files at the root.
func (s *Store) LatestComplete(models []string, parameters []string) (map[string]string, error) {
	out := make(map[string]string, len(models))
	for _, m := range models {
		out[m] = ""
	}

	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("storage root does not exist yet", "root", s.root)
			return out, nil
		}
		return nil, fmt.Errorf("list runs under %s: %w", s.root, err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && s.initRe.MatchString(e.Name()) {
			ids = append(ids, e.Name())
		}
	}
	// Fixed-width digit ids sort chronologically; walk newest first.
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))

	remaining := len(models)
	for _, id := range ids {
		if remaining == 0 {
			break
		}
		have, err := runFiles(filepath.Join(s.root, id))
		if err != nil {
			return nil, err
		}
		for _, model := range models {
			if out[model] != "" {
				continue
			}
			if runComplete(have, model, id, parameters) {
				out[model] = id
				remaining--
				s.logger.Info("discovered complete run", "model", model, "init", id)
			}
		}
	}
	return out, nil
}

func runFiles(dir string) (map[string]bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list run directory %s: %w", dir, err)
	}
	have := make(map[string]bool, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			have[e.Name()] = true
		}
	}
	return have, nil
}

func runComplete(have map[string]bool, model, init string, parameters []string) bool {
	for _, p := range parameters {
		if !have[fieldFileName(model, init, p)] {
			return false
		}
	}
	return true
}
