package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "tcc-manager", cmd.Use)
	assert.Contains(t, cmd.Long, "user store first")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"list"}, {"refresh"}, {"grant"}, {"revoke"}, {"doctor"},
		{"cache", "show"}, {"cache", "clear"}, {"cache", "schema"},
		{"config", "show"}, {"config", "check"},
	}

	for _, path := range commands {
		t.Run(path[len(path)-1], func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
}

func TestToggleCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"grant", "revoke"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)

		serviceFlag := sub.Flags().Lookup("service")
		require.NotNil(t, serviceFlag)
		assert.Equal(t, "s", serviceFlag.Shorthand)
		assert.Equal(t, "service", serviceFlag.Value.Type())

		require.NotNil(t, sub.Flags().Lookup("trace"))
	}
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	f := newCLIFixture(t)
	_, err := f.run("--format", "invalid", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInvalidConfig(t *testing.T) {
	f := newCLIFixture(t)
	f.writeConfig("unknown_section:\n  x: 1\n")

	resp, err := f.runJSON("list")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Error.Message, "loading config")
}
