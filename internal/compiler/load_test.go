package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/framegraph/internal/ir"
)

func TestLoadFileCUE(t *testing.T) {
	specs, err := LoadFile("testdata/deferred.cue")
	require.NoError(t, err)
	require.Len(t, specs, 2)

	assert.Equal(t, deferredSpec(), specs[0])
	assert.Equal(t, "upload", specs[1].Name)
}

func TestLoadFileYAML(t *testing.T) {
	specs, err := LoadFile("testdata/deferred.yaml")
	require.NoError(t, err)
	require.Len(t, specs, 1)

	assert.Equal(t, deferredSpec(), specs[0])
}

func TestLoadFileSameHashAcrossSyntaxes(t *testing.T) {
	fromCUE, err := LoadGraph("testdata/deferred.cue", "deferred")
	require.NoError(t, err)
	fromYAML, err := LoadGraph("testdata/deferred.yaml", "")
	require.NoError(t, err)

	assert.Equal(t, ir.MustSpecHash(fromCUE), ir.MustSpecHash(fromYAML))
}

func TestLoadFileMultiDocumentYAML(t *testing.T) {
	specs, err := LoadFile("testdata/multi.yaml")
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "b", specs[1].Name)
}

func TestLoadFileErrors(t *testing.T) {
	t.Run("unknown yaml field", func(t *testing.T) {
		_, err := LoadFile("testdata/typo.yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pases")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile("testdata/nope.yaml")
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "graph.json")
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
		_, err := LoadFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported")
	})

	t.Run("cue without graphs", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.cue")
		require.NoError(t, os.WriteFile(path, []byte("x: 1\n"), 0o644))
		_, err := LoadFile(path)
		assert.ErrorIs(t, err, ErrNoGraphs)
	})
}

func TestLoadGraphSelection(t *testing.T) {
	_, err := LoadGraph("testdata/deferred.cue", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "holds 2 graphs")

	_, err = LoadGraph("testdata/deferred.cue", "forward")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `graph "forward" not found`)

	spec, err := LoadGraph("testdata/deferred.cue", "upload")
	require.NoError(t, err)
	assert.Equal(t, "upload", spec.Name)
}
