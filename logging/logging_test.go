package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediafx/enginelink/config"
)

func TestSetupConsole(t *testing.T) {
	log, err := Setup(config.LogConfig{Level: "debug", Format: "console", Outputs: []string{"stderr"}})
	require.NoError(t, err)
	log.Debug("console logger works")
	require.NotPanics(t, func() { log.Sync() })
}

func TestSetupJSONWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host.log")
	log, err := Setup(config.LogConfig{
		Level:   "info",
		Format:  "json",
		Outputs: []string{path},
	})
	require.NoError(t, err)

	log.Info("file output works")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"file output works"`)
	assert.Contains(t, string(data), `"level":"info"`)
}

func TestSetupDebugLevelFiltersBelowThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host.log")
	log, err := Setup(config.LogConfig{
		Level:   "warn",
		Format:  "json",
		Outputs: []string{path},
	})
	require.NoError(t, err)

	log.Info("filtered out")
	log.Warn("kept")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "filtered out")
	assert.Contains(t, string(data), "kept")
}

func TestSetupUnknownLevelFallsBackToInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host.log")
	log, err := Setup(config.LogConfig{
		Level:   "chatty",
		Format:  "json",
		Outputs: []string{path},
	})
	require.NoError(t, err)

	log.Debug("dropped at info")
	log.Info("visible at info")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped at info")
	assert.Contains(t, string(data), "visible at info")
}
