package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME and the working directory at a fresh temp dir so that
// files on the developer machine do not leak into the test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)
	return dir
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), DefaultDirPermissions))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, TransportStdio, cfg.Server.Transport)
	assert.Equal(t, "127.0.0.1:8787", cfg.Server.Listen)
	assert.Equal(t, 100, cfg.Server.MaxDocuments)
	assert.True(t, cfg.Registry.Enabled)
	assert.Equal(t, "https://hub.docker.com", cfg.Registry.BaseURL)
	assert.Equal(t, 25, cfg.Registry.PageSize)
	assert.Equal(t, 10, cfg.Registry.TimeoutSeconds)
	assert.InDelta(t, 2.0, cfg.Registry.RequestsPerSecond, 0.0001)
	assert.Equal(t, 4, cfg.Registry.Burst)
	assert.Equal(t, 300, cfg.Registry.CacheTTLSeconds)
	assert.Equal(t, 256, cfg.Registry.CacheSize)
	assert.Empty(t, cfg.Completion.KeyTablesDir)
	assert.False(t, cfg.Log.JSON)
	assert.Equal(t, 0, cfg.Log.Verbosity)
}

func TestLoad_Precedence(t *testing.T) {
	home := isolate(t)

	writeFile(t, filepath.Join(home, ".composels", "config.toml"), `
[registry]
page_size = 10
burst = 7
`)
	project := filepath.Join(home, "work", "app")
	writeFile(t, filepath.Join(home, "work", ProjectConfigName), `
[registry]
page_size = 15
`)
	require.NoError(t, os.MkdirAll(project, DefaultDirPermissions))
	t.Chdir(project)

	explicit := writeFile(t, filepath.Join(home, "explicit.toml"), `
[server]
max_documents = 12
`)

	cfg, err := Load(explicit)
	require.NoError(t, err)

	assert.Equal(t, 15, cfg.Registry.PageSize, "project file overrides home")
	assert.Equal(t, 7, cfg.Registry.Burst, "home value survives when not overridden")
	assert.Equal(t, 12, cfg.Server.MaxDocuments, "explicit file applied")
}

func TestLoad_EnvOverridesFiles(t *testing.T) {
	home := isolate(t)
	writeFile(t, filepath.Join(home, ProjectConfigName), `
[registry]
enabled = true
page_size = 15
`)
	t.Setenv("COMPOSELS_REGISTRY_ENABLED", "false")
	t.Setenv("COMPOSELS_REGISTRY_PAGE_SIZE", "40")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.False(t, cfg.Registry.Enabled)
	assert.Equal(t, 40, cfg.Registry.PageSize)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	dir := isolate(t)

	_, err := Load(filepath.Join(dir, "nope.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.toml")
}

func TestLoad_InvalidConfig(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, filepath.Join(dir, "bad.toml"), `
[server]
transport = "carrier-pigeon"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "c.toml"), `
[completion]
key_tables_dir = "/opt/tables"

[log]
json = true
verbosity = 2
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/tables", cfg.Completion.KeyTablesDir)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, 2, cfg.Log.Verbosity)
	assert.Equal(t, TransportStdio, cfg.Server.Transport, "defaults still apply")
}

func TestFindProjectConfig(t *testing.T) {
	home := isolate(t)
	assert.Empty(t, findProjectConfig())

	want := writeFile(t, filepath.Join(home, ProjectConfigName), "")
	nested := filepath.Join(home, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, DefaultDirPermissions))
	t.Chdir(nested)

	got := findProjectConfig()
	gotResolved, err := filepath.EvalSymlinks(got)
	require.NoError(t, err)
	wantResolved, err := filepath.EvalSymlinks(want)
	require.NoError(t, err)
	assert.Equal(t, wantResolved, gotResolved)
}

func TestLoadWithViper(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("server.transport", TransportWebSocket)
	v.Set("server.listen", ":9999")

	cfg, err := LoadWithViper(v)
	require.NoError(t, err)
	assert.Equal(t, TransportWebSocket, cfg.Server.Transport)
	assert.Equal(t, ":9999", cfg.Server.Listen)
}
