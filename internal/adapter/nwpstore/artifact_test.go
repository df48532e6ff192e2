package nwpstore

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakewx/nwp-blend/internal/domain"
)

func TestArtifactLifecycle(t *testing.T) {
	s := testStore(t)
	key := domain.ArtifactKey{Site: "bodensee", Init: "2026012409", Parameter: "T_2M"}
	data := []byte(`{"site":"bodensee"}`)

	assert.False(t, s.ArtifactPublished(key))

	require.NoError(t, s.StageArtifact(key, data))
	assert.False(t, s.ArtifactPublished(key), "staged artifact must not count as published")

	require.NoError(t, s.CommitArtifact(key))
	assert.True(t, s.ArtifactPublished(key))
	assert.NoFileExists(t, s.stagePath(key))

	got, err := os.ReadFile(s.ArtifactPath(key))
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestCommitArtifact_WithoutStage(t *testing.T) {
	s := testStore(t)
	key := domain.ArtifactKey{Site: "bodensee", Init: "2026012409", Parameter: "T_2M"}

	require.Error(t, s.CommitArtifact(key))
	assert.False(t, s.ArtifactPublished(key))
}

func TestDiscardArtifact(t *testing.T) {
	s := testStore(t)
	key := domain.ArtifactKey{Site: "alpstein", Init: "2026012409", Parameter: "TOT_PREC"}

	require.NoError(t, s.StageArtifact(key, []byte("partial")))
	s.DiscardArtifact(key)
	assert.NoFileExists(t, s.stagePath(key))

	// Discarding again is a no-op.
	s.DiscardArtifact(key)
}

func TestStageArtifact_OverwritesLeftover(t *testing.T) {
	s := testStore(t)
	key := domain.ArtifactKey{Site: "bodensee", Init: "2026012409", Parameter: "PMSL"}

	require.NoError(t, s.StageArtifact(key, []byte("old")))
	require.NoError(t, s.StageArtifact(key, []byte("new")))
	require.NoError(t, s.CommitArtifact(key))

	got, err := os.ReadFile(s.ArtifactPath(key))
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got)
}
