package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/udahub/scoring"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 2, cfg.Engine.MaxResolveAttempts)
	assert.Equal(t, 0.6, cfg.Engine.ResolvedThreshold)
	assert.Equal(t, 60*time.Second, cfg.Engine.CallTimeout)
	assert.Equal(t, "kv", cfg.Store.Backend)
	assert.True(t, cfg.NATS.Embedded)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero retry budget",
			mutate:  func(c *Config) { c.Engine.MaxResolveAttempts = 0 },
			wantErr: "max_resolve_attempts",
		},
		{
			name:    "threshold above one",
			mutate:  func(c *Config) { c.Engine.ResolvedThreshold = 1.5 },
			wantErr: "resolved_threshold",
		},
		{
			name:    "unknown store backend",
			mutate:  func(c *Config) { c.Store.Backend = "postgres" },
			wantErr: "store.backend",
		},
		{
			name: "sqlite without path",
			mutate: func(c *Config) {
				c.Store.Backend = "sqlite"
				c.Store.Path = ""
			},
			wantErr: "store.path",
		},
		{
			name: "publish without subject prefix",
			mutate: func(c *Config) {
				c.Trace.Publish = true
				c.Trace.SubjectPrefix = ""
			},
			wantErr: "subject_prefix",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "udahub.yaml")

	cfg := DefaultConfig()
	cfg.Engine.MaxResolveAttempts = 3
	cfg.Scoring.ResolvedThreshold = 0.7
	cfg.Store.Backend = "sqlite"
	cfg.Store.Path = "sessions.db"
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Engine.MaxResolveAttempts)
	assert.Equal(t, 0.7, loaded.Scoring.ResolvedThreshold)
	assert.Equal(t, "sqlite", loaded.Store.Backend)
	assert.Equal(t, "sessions.db", loaded.Store.Path)
}

func TestLoadFromFilePartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "udahub.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  max_resolve_attempts: 5\n"), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Engine.MaxResolveAttempts)
	assert.Equal(t, 0.6, cfg.Engine.ResolvedThreshold)
	assert.Equal(t, "kv", cfg.Store.Backend)
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()

	other := &Config{}
	other.Engine.MaxResolveAttempts = 4
	other.NATS.URL = "nats://remote:4222"
	other.Store.Backend = "inmem"
	other.Scoring.Weights = scoring.Weights{TopScore: 0.6, SalientOverlap: 0.2, LexicalOverlap: 0.2}
	other.Trace.Metrics = true

	base.Merge(other)

	assert.Equal(t, 4, base.Engine.MaxResolveAttempts)
	assert.Equal(t, 60*time.Second, base.Engine.CallTimeout)
	assert.Equal(t, "nats://remote:4222", base.NATS.URL)
	assert.False(t, base.NATS.Embedded, "explicit URL disables embedded server")
	assert.Equal(t, "inmem", base.Store.Backend)
	assert.Equal(t, 0.6, base.Scoring.Weights.TopScore)
	assert.True(t, base.Trace.Metrics)
}

func TestMergeNilIsNoop(t *testing.T) {
	base := DefaultConfig()
	base.Merge(nil)
	assert.Equal(t, DefaultConfig(), base)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "udahub.yaml")
	require.NoError(t, DefaultConfig().SaveToFile(path))

	w, err := NewWatcher(WatcherConfig{
		Path:          path,
		DebounceDelay: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	cfg := DefaultConfig()
	cfg.Engine.MaxResolveAttempts = 7
	require.NoError(t, cfg.SaveToFile(path))

	select {
	case reloaded := <-w.Configs():
		assert.Equal(t, 7, reloaded.Engine.MaxResolveAttempts)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}

func TestWatcherIgnoresInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "udahub.yaml")
	require.NoError(t, DefaultConfig().SaveToFile(path))

	w, err := NewWatcher(WatcherConfig{
		Path:          path,
		DebounceDelay: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("store:\n  backend: postgres\n"), 0644))

	select {
	case cfg := <-w.Configs():
		t.Fatalf("expected no reload for invalid config, got %+v", cfg)
	case <-time.After(300 * time.Millisecond):
		// No reload emitted, as expected
	}
}
