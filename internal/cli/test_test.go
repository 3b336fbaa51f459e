package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scenarioDir lays out the cli testdata graphs and scenarios in a temp dir
// so golden files can be written.
func scenarioDir(t *testing.T, scenarios ...string) string {
	t.Helper()
	dir := t.TempDir()
	copyTestdata(t, dir, "graphs/bloom.yaml", "graphs/deferred.cue")
	for _, s := range scenarios {
		copyTestdata(t, dir, filepath.Join("scenarios", s))
	}
	return filepath.Join(dir, "scenarios")
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, _, err := execute(t, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}

func TestTestCommandMissingPath(t *testing.T) {
	_, _, err := execute(t, "test", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenario path not found")
}

func TestTestCommandPassingScenarios(t *testing.T) {
	stdout, _, err := execute(t, "test", "testdata/scenarios", "--filter", "[bt]*")
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ bloom")
	assert.Contains(t, stdout, "✓ temporal")
	assert.Contains(t, stdout, "Test Summary: 2 passed, 0 failed, 2 total")
	assert.Contains(t, stdout, "✓ All scenarios passed")
}

func TestTestCommandFailingAssertion(t *testing.T) {
	stdout, _, err := execute(t, "test", "testdata/scenarios/wrong.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "✗ wrong")
	assert.Contains(t, stdout, "Expected: 2 slots")
	assert.Contains(t, stdout, "Actual: 3 slots")
	assert.Contains(t, stdout, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestTestCommandJSON(t *testing.T) {
	stdout, _, err := execute(t, "--format", "json", "test", "testdata/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	assert.Equal(t, 3, resp.Data.Total)
	assert.Equal(t, 2, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)
}

func TestTestCommandNoScenarios(t *testing.T) {
	stdout, _, err := execute(t, "test", "testdata/scenarios", "--filter", "zzz*")
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", stdout)
}

func TestTestCommandGoldenRoundTrip(t *testing.T) {
	dir := scenarioDir(t, "temporal.yaml")

	stdout, _, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ temporal (golden updated)")

	golden := filepath.Join(dir, "golden", "temporal.golden")
	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario":"temporal"`)
	assert.Contains(t, string(data), `"graph":"warmup"`)

	// the golden directory is not mistaken for scenarios
	stdout, _, err = execute(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Test Summary: 1 passed, 0 failed, 1 total")

	require.NoError(t, os.WriteFile(golden, []byte(`{"scenario":"temporal"}`), 0o644))
	stdout, _, err = execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, stdout, "snapshot does not match golden file")
}

func TestTestCommandLoadError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "name: broken\n")

	stdout, _, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, stdout, "✗ broken.yaml")
	assert.Contains(t, stdout, "failed to load scenario")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("scenarios", "golden", "bloom.golden"), goldenFilePath(filepath.Join("scenarios", "bloom.yaml")))
}
