package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teranos/composels/errors"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "composels.toml"), "[registry]\npage_size = 10\n")

	w, err := newWatcher([]string{path}, func() (*Config, error) { return LoadFromFile(path) }, 20*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	got := make(chan int, 4)
	w.OnReload(func(cfg *Config) error {
		got <- cfg.Registry.PageSize
		return nil
	})

	require.NoError(t, os.WriteFile(path, []byte("[registry]\npage_size = 33\n"), 0644))

	select {
	case size := <-got:
		assert.Equal(t, 33, size)
	case <-time.After(5 * time.Second):
		t.Fatal("reload callback not called")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "composels.toml"), "")

	var calls atomic.Int32
	w, err := newWatcher([]string{path}, func() (*Config, error) {
		calls.Add(1)
		return LoadFromFile(path)
	}, 10*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	writeFile(t, filepath.Join(dir, "docker-compose.yml"), "services: {}\n")
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestWatcher_FailedReloadSkipsCallbacks(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "composels.toml"), "")

	w, err := NewWatcher([]string{path}, func() (*Config, error) {
		return nil, errors.New("broken")
	})
	require.NoError(t, err)
	defer w.Close()

	var calls atomic.Int32
	w.OnReload(func(*Config) error {
		calls.Add(1)
		return nil
	})

	err = w.reload()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.Equal(t, int32(0), calls.Load())
}

func TestWatcher_CallbackErrorDoesNotStopOthers(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "composels.toml"), "")

	w, err := NewWatcher([]string{path}, func() (*Config, error) { return LoadFromFile(path) })
	require.NoError(t, err)
	defer w.Close()

	var second atomic.Bool
	w.OnReload(func(*Config) error { return errors.New("first fails") })
	w.OnReload(func(*Config) error {
		second.Store(true)
		return nil
	})

	require.NoError(t, w.reload())
	assert.True(t, second.Load())
}

func TestWatcher_CloseIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "composels.toml"), "")

	w, err := NewWatcher([]string{path}, func() (*Config, error) { return LoadFromFile(path) })
	require.NoError(t, err)

	abs, err := filepath.Abs(path)
	require.NoError(t, err)
	assert.Equal(t, []string{abs}, w.Files())

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func TestWatch_MissingDirectory(t *testing.T) {
	_, err := NewWatcher([]string{"/definitely/not/here/composels.toml"}, nil)
	require.Error(t, err)
}
