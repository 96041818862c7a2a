package main

import (
	"bytes"
	"testing"

	"github.com/aretw0/ludus/internal/config"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	cmd.Flags().AddFlagSet(rootCmd.PersistentFlags())
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestLoadApp_FlagsOverrideConfig(t *testing.T) {
	t.Chdir(t.TempDir())

	app, err := loadApp(newTestCmd(t, "--store", "memory", "--artifacts", "games", "--debug"))
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, config.BackendMemory, app.Config.Store.Backend)
	assert.Equal(t, "games", app.Config.Artifacts.Path)
	assert.Equal(t, "debug", app.Config.Log.Level)
}

func TestLoadApp_RejectsBadFlags(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := loadApp(newTestCmd(t, "--store", "etcd"))
	assert.ErrorContains(t, err, "unknown store backend")

	_, err = loadApp(newTestCmd(t, "--store", "memory", "--log-level", "loud"))
	assert.Error(t, err)
}

func TestCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"play", "validate", "publish", "graph", "serve", "mcp", "session", "version"} {
		assert.True(t, names[want], want)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--help"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "artifact sets")
}
