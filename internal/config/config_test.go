package config

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "dispatcher"}
	BindFlags(cmd)
	return cmd
}

func TestLoadDefaults(t *testing.T) {
	cmd := newTestCommand()
	require.NoError(t, cmd.ParseFlags(nil))

	cfg, err := Load(cmd, nil)
	require.NoError(t, err)

	assert.Equal(t, uint16(8000), cfg.Port)
	assert.False(t, cfg.MaxConcurrentSet)
	assert.False(t, cfg.KeepExitedSet)
	assert.Equal(t, uint16(3), cfg.UpkeepInterval)
	assert.Equal(t, "socket", cfg.Transport)
	assert.Equal(t, "default", cfg.Namespace)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.Filter)
}

func TestLoadPositionalFilter(t *testing.T) {
	cmd := newTestCommand()
	require.NoError(t, cmd.ParseFlags(nil))

	cfg, err := Load(cmd, []string{".foo"})
	require.NoError(t, err)
	assert.Equal(t, ".foo", cfg.Filter)
}

func TestLoadMaxConcurrentFlagSetsFlag(t *testing.T) {
	cmd := newTestCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--max-concurrent=5"}))

	cfg, err := Load(cmd, nil)
	require.NoError(t, err)
	assert.True(t, cfg.MaxConcurrentSet)
	assert.Equal(t, uint16(5), cfg.MaxConcurrent)
}

func TestLoadMaxConcurrentEnvSetsFlag(t *testing.T) {
	t.Setenv("DISPATCHER_MAX_CONCURRENT", "7")
	cmd := newTestCommand()
	require.NoError(t, cmd.ParseFlags(nil))

	cfg, err := Load(cmd, nil)
	require.NoError(t, err)
	assert.True(t, cfg.MaxConcurrentSet)
	assert.Equal(t, uint16(7), cfg.MaxConcurrent)
}

func TestLoadKeepExitedForFlagSetsFlag(t *testing.T) {
	cmd := newTestCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--keep-exited-for=120"}))

	cfg, err := Load(cmd, nil)
	require.NoError(t, err)
	assert.True(t, cfg.KeepExitedSet)
	assert.Equal(t, uint32(120), cfg.KeepExitedFor)
}

func TestLoadUpkeepIntervalBelowOneFallsBackToDefault(t *testing.T) {
	cmd := newTestCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--upkeep-interval=0"}))

	cfg, err := Load(cmd, nil)
	require.NoError(t, err)
	assert.Equal(t, uint16(3), cfg.UpkeepInterval)
}
