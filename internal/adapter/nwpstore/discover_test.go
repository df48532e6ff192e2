package nwpstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// touchRun creates empty field files for one model in a run directory.
// Discovery only looks at file names, never contents.
func touchRun(t *testing.T, root, init, model string, params ...string) {
	t.Helper()
	dir := filepath.Join(root, init)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, p := range params {
		require.NoError(t, os.WriteFile(filepath.Join(dir, fieldFileName(model, init, p)), nil, 0o644))
	}
}

func TestLatestComplete_PicksNewestPerModel(t *testing.T) {
	s := testStore(t)
	params := []string{"T_2M", "TOT_PREC"}

	touchRun(t, s.root, "2026012406", "ICON1", params...)
	touchRun(t, s.root, "2026012406", "ICON2", params...)
	touchRun(t, s.root, "2026012409", "ICON1", params...)
	touchRun(t, s.root, "2026012409", "ICON2", "T_2M") // incomplete

	inits, err := s.LatestComplete([]string{"ICON1", "ICON2"}, params)

	require.NoError(t, err)
	assert.Equal(t, "2026012409", inits["ICON1"])
	assert.Equal(t, "2026012406", inits["ICON2"])
}

func TestLatestComplete_IgnoresMalformedNames(t *testing.T) {
	s := testStore(t)
	params := []string{"T_2M"}

	touchRun(t, s.root, "2026012406", "ICON1", params...)
	require.NoError(t, os.MkdirAll(filepath.Join(s.root, "latest"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(s.root, "20260124"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(s.root, "2026012409abc"), 0o755))
	// A plain file with a run-like name must not be treated as a run.
	require.NoError(t, os.WriteFile(filepath.Join(s.root, "2026012415"), nil, 0o644))

	inits, err := s.LatestComplete([]string{"ICON1"}, params)

	require.NoError(t, err)
	assert.Equal(t, "2026012406", inits["ICON1"])
}

func TestLatestComplete_NothingComplete(t *testing.T) {
	s := testStore(t)
	touchRun(t, s.root, "2026012409", "ICON1", "T_2M") // TOT_PREC missing

	inits, err := s.LatestComplete([]string{"ICON1", "ICON2"}, []string{"T_2M", "TOT_PREC"})

	require.NoError(t, err)
	assert.Equal(t, "", inits["ICON1"])
	assert.Equal(t, "", inits["ICON2"])
}

func TestLatestComplete_EmptyRoot(t *testing.T) {
	s := testStore(t)

	inits, err := s.LatestComplete([]string{"ICON1"}, []string{"T_2M"})

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"ICON1": ""}, inits)
}

func TestLatestComplete_MissingRoot(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "absent"), "2006010215", testLogger())

	inits, err := s.LatestComplete([]string{"ICON1"}, []string{"T_2M"})

	require.NoError(t, err)
	assert.Equal(t, "", inits["ICON1"])
}
