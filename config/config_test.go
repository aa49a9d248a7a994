package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	require.Equal(t, 6262, cfg.Port)
	require.Equal(t, 1, cfg.Workers)
	require.False(t, cfg.EnableCLI)
}

func TestParseOverridesFlags(t *testing.T) {
	cfg, err := Parse([]string{"-port", "7000", "-workers", "4", "-enable-cli", "-db", "/tmp/hector"})
	require.NoError(t, err)
	require.Equal(t, 7000, cfg.Port)
	require.Equal(t, 4, cfg.Workers)
	require.True(t, cfg.EnableCLI)
	require.Equal(t, "/tmp/hector", cfg.DBPath)
}

func TestParseRejectsNonPositiveWorkers(t *testing.T) {
	_, err := Parse([]string{"-workers", "0"})
	require.Error(t, err)
}
