package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)
	manager, err := NewDefaultManager(store)
	require.NoError(t, err)
	require.NoError(t, manager.LoadAll())

	w, err := NewWatcher(manager, path)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other.json"), []byte(`{}`), 0o600))
	require.NoError(t, os.WriteFile(path, []byte(`{"version":"1.0","sections":{"agent":{"max_steps":3}}}`), 0o600))

	section, ok := manager.GetSection(SectionIDAgent)
	require.True(t, ok)
	agent := section.(*AgentSection)

	deadline := time.After(5 * time.Second)
	for agent.MaxSteps() != 3 {
		select {
		case ev := <-w.Events():
			require.NoError(t, ev.Error)
			assert.Equal(t, filepath.Clean(path), ev.Path)
		case <-deadline:
			t.Fatal("config was not reloaded")
		}
	}
}

func TestWatcherReportsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)
	manager, err := NewDefaultManager(store)
	require.NoError(t, err)

	w, err := NewWatcher(manager, path)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	require.NoError(t, os.WriteFile(path, []byte(`{broken`), 0o600))

	deadline := time.After(5 * time.Second)
	for reported := false; !reported; {
		select {
		case ev := <-w.Events():
			if ev.Error != nil {
				assert.ErrorContains(t, ev.Error, "failed to reload config")
				reported = true
			}
		case <-deadline:
			t.Fatal("no reload error")
		}
	}

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
	for range w.Events() {
	}
}
