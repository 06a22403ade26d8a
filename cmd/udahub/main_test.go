package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmdSubcommands(t *testing.T) {
	cmd := rootCmd()

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}

	assert.Contains(t, names, "run")
	assert.Contains(t, names, "resume")
	assert.Contains(t, names, "chat")
	assert.Contains(t, names, "serve-tools")
	assert.Contains(t, names, "config")
	assert.Contains(t, names, "version")
}

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		logger := newLogger(tt.input)
		assert.True(t, logger.Enabled(t.Context(), tt.want), "level %s", tt.input)
		if tt.want != slog.LevelDebug {
			assert.False(t, logger.Enabled(t.Context(), tt.want-1), "level %s", tt.input)
		}
	}
}

func TestLoadConfigExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "udahub.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  max_resolve_attempts: 3\n"), 0644))

	cfg, err := loadConfig(path, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Engine.MaxResolveAttempts)
}

func TestLoadConfigRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "udahub.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  backend: postgres\n"), 0644))

	_, err := loadConfig(path, slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.backend")
}
