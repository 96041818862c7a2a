package testutils

import (
	"path/filepath"
	"testing"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/stretchr/testify/require"
)

// NewArtifactRepo initializes a Loam repository for artifact documents in a
// temp dir, with the settings OpenRepository uses (strict, unversioned).
// Extra options are applied last. It returns the absolute repository path.
func NewArtifactRepo(t *testing.T, opts ...loam.Option) (string, core.Repository) {
	t.Helper()

	dir, err := filepath.Abs(t.TempDir())
	require.NoError(t, err)

	opts = append([]loam.Option{loam.WithStrict(true), loam.WithVersioning(false)}, opts...)
	repo, err := loam.Init(dir, opts...)
	require.NoError(t, err, "init artifact repository")
	return dir, repo
}
