package nwpstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/lakewx/nwp-blend/internal/domain"
)

// ArtifactPath returns the final local path of a published artifact:
// {root}/{init}/{site}-{init}-{parameter}.json.
func (s *Store) ArtifactPath(key domain.ArtifactKey) string {
	return filepath.Join(s.root, key.Init, key.FileName())
}

func (s *Store) stagePath(key domain.ArtifactKey) string {
	return s.ArtifactPath(key) + ".tmp"
}

// ArtifactPublished reports whether the final artifact file exists. The
// final file only appears after the remote copy was delivered, so its
// presence is the publish marker that lets re-runs skip the whole item.
func (s *Store) ArtifactPublished(key domain.ArtifactKey) bool {
	_, err := os.Stat(s.ArtifactPath(key))
	return err == nil
}

// StageArtifact writes the artifact bytes to a temporary file next to the
// final location. A leftover stage from an earlier failed publish is
// overwritten.
func (s *Store) StageArtifact(key domain.ArtifactKey, data []byte) error {
	dir := filepath.Join(s.root, key.Init)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create run directory %s: %w", dir, err)
	}
	if err := os.WriteFile(s.stagePath(key), data, 0o644); err != nil {
		return fmt.Errorf("stage artifact %s: %w", key.FileName(), err)
	}
	return nil
}

// CommitArtifact renames the staged file to its final name, marking the
// artifact published.
func (s *Store) CommitArtifact(key domain.ArtifactKey) error {
	if err := os.Rename(s.stagePath(key), s.ArtifactPath(key)); err != nil {
		return fmt.Errorf("commit artifact %s: %w", key.FileName(), err)
	}
	return nil
}

// DiscardArtifact removes the staged file after a failed publish. Best
// effort: a leftover stage is harmless and overwritten on the next attempt.
func (s *Store) DiscardArtifact(key domain.ArtifactKey) {
	if err := os.Remove(s.stagePath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("could not remove staged artifact", "artifact", key.FileName(), "error", err)
	}
}
