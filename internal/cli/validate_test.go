package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/framegraph/internal/compiler"
	"github.com/roach88/framegraph/internal/ir"
)

func TestValidateValidGraphs(t *testing.T) {
	for _, path := range []string{bloomGraph, deferredGraph, cycleGraph} {
		t.Run(path, func(t *testing.T) {
			stdout, _, err := execute(t, "validate", path)
			require.NoError(t, err)
			assert.Contains(t, stdout, "graph(s) valid")
		})
	}
}

func TestValidateCountsGraphs(t *testing.T) {
	stdout, _, err := execute(t, "validate", deferredGraph)
	require.NoError(t, err)
	assert.Equal(t, "✓ 2 graph(s) valid\n", stdout)

	stdout, _, err = execute(t, "validate", "--graph", "warmup", deferredGraph)
	require.NoError(t, err)
	assert.Equal(t, "✓ 1 graph(s) valid\n", stdout)
}

func TestValidateReportsEveryError(t *testing.T) {
	stdout, _, err := execute(t, "validate", invalidGraph)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "validation failed with 2 error(s)")

	assert.Contains(t, stdout, "✗ Validation failed")
	assert.Contains(t, stdout, "broken:")
	assert.Contains(t, stdout, `E131: passes[0].queue: unknown queue family "async"`)
	assert.Contains(t, stdout, "E134")
}

func TestValidateJSON(t *testing.T) {
	stdout, _, err := execute(t, "--format", "json", "validate", invalidGraph)
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.NotNil(t, resp.Error)
	assert.Equal(t, compiler.ErrUnknownQueue, resp.Error.Code)
	require.Len(t, resp.Data.Graphs, 1)
	assert.Len(t, resp.Data.Graphs[0].Errors, 2)
}

func TestValidateSchemaErrorKeepsPosition(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.cue", `graph: bad: {
	queue: gfx: capabilities: ["general"]
	resource: a: kind: 42
	pass: p: {kind: "compute", queue: "gfx", writes: ["a"]}
}
`)

	stdout, _, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	// schema conflicts carry a CUE position; anything else is a plain load failure
	assert.Regexp(t, `Error \[E00[48]\]`, stdout)
}

func TestValidateGraphs(t *testing.T) {
	good := &ir.GraphSpec{
		Name:   "ok",
		Queues: []ir.QueueSpec{{Name: "gfx", Capabilities: []string{"general"}, Count: 1}},
		Passes: []ir.PassSpec{{Name: "p", Kind: "compute", Queue: "gfx"}},
	}
	bad := &ir.GraphSpec{Name: "bad"}

	result := ValidateGraphs([]*ir.GraphSpec{good, bad})
	assert.False(t, result.Valid)
	require.Len(t, result.Graphs, 2)
	assert.Empty(t, result.Graphs[0].Errors)
	require.NotEmpty(t, result.Graphs[1].Errors)
	assert.Equal(t, compiler.ErrGraphNoPasses, result.Graphs[1].Errors[0].Code)

	assert.True(t, ValidateGraphs([]*ir.GraphSpec{good}).Valid)
}
