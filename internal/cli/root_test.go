package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "framegraph", cmd.Use)
	assert.Contains(t, cmd.Long, "physical slots")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"compile", "validate", "run", "test", "history"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	show, _, err := cmd.Find([]string{"history", "show"})
	require.NoError(t, err)
	assert.Equal(t, "show", show.Name())
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	endpoint := cmd.PersistentFlags().Lookup("otlp-endpoint")
	require.NotNil(t, endpoint)
	assert.Empty(t, endpoint.DefValue)
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		command []string
		flag    string
		def     string
	}{
		{[]string{"compile"}, "output", ""},
		{[]string{"compile"}, "ordered-aliasing", "false"},
		{[]string{"validate"}, "graph", ""},
		{[]string{"run"}, "frames", "1"},
		{[]string{"run"}, "history", "2"},
		{[]string{"run"}, "first", ""},
		{[]string{"test"}, "update", "false"},
		{[]string{"test"}, "filter", ""},
		{[]string{"history"}, "limit", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.command[0]+"/"+tt.flag, func(t *testing.T) {
			sub, _, err := NewRootCommand().Find(tt.command)
			require.NoError(t, err)
			f := sub.Flags().Lookup(tt.flag)
			require.NotNil(t, f)
			assert.Equal(t, tt.def, f.DefValue)
		})
	}
}

func TestCompileOutputShorthand(t *testing.T) {
	sub, _, err := NewRootCommand().Find([]string{"compile"})
	require.NoError(t, err)
	assert.Equal(t, "o", sub.Flags().Lookup("output").Shorthand)
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := execute(t, "--format", "xml", "validate", bloomGraph)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestVerboseLogsToStderr(t *testing.T) {
	stdout, stderr, err := execute(t, "--verbose", "run", bloomGraph)
	require.NoError(t, err)
	assert.Contains(t, stdout, "frame 0 bloom")
	assert.Contains(t, stderr, "pass begin")
	assert.NotContains(t, stdout, "pass begin")
}

func TestIsValidFormat(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))
	assert.False(t, isValidFormat("yaml"))
	assert.False(t, isValidFormat(""))
}
