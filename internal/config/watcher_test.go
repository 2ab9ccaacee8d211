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

func TestWatcherReloadsOnWrite(t *testing.T) {
	if testing.Short() {
		t.Skip("debounce timing test")
	}

	ws := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(ws, ".leetcoach"), 0755))

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(ws, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	yaml := "practice:\n  session_length: 9\n"
	require.NoError(t, os.WriteFile(filepath.Join(ws, ".leetcoach", "config.yaml"), []byte(yaml), 0644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 9, cfg.Practice.SessionLength)
		assert.GreaterOrEqual(t, w.Reloads(), 1)
	case <-time.After(5 * time.Second):
		t.Fatal("reload never fired")
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	w.Stop()
	w.Stop() // second stop is a no-op
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	if testing.Short() {
		t.Skip("debounce timing test")
	}

	ws := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(ws, ".leetcoach"), 0755))

	w, err := NewWatcher(ws, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(ws, ".leetcoach", "notes.txt"), []byte("hi"), 0644))
	time.Sleep(time.Second)
	assert.Equal(t, 0, w.Reloads())
}
