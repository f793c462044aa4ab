package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teranos/composels/compose"
	"github.com/teranos/composels/compose/keyinfo"
	"github.com/teranos/composels/config"
	"github.com/teranos/composels/errors"
	"github.com/teranos/composels/registry"
	"github.com/teranos/composels/version"
)

var (
	testRootOnce sync.Once
	testRoot     *cobra.Command
)

// root mirrors the global flags of the composels binary. Commands are
// package singletons, so one root is shared by every test.
func root() *cobra.Command {
	testRootOnce.Do(func() {
		pterm.DisableStyling()
		testRoot = &cobra.Command{Use: "composels", SilenceUsage: true, SilenceErrors: true}
		testRoot.PersistentFlags().CountP("verbose", "v", "")
		testRoot.PersistentFlags().Bool("json-logs", false, "")
		testRoot.PersistentFlags().String("config", "", "")
		testRoot.AddCommand(CompleteCmd, KeysCmd, ConfigCmd, VersionCmd)
	})
	return testRoot
}

// isolated writes a config file with registry lookups disabled and points
// HOME and the working directory at a temp dir.
func isolated(t *testing.T, extra string) (dir, cfgPath string) {
	t.Helper()
	dir = t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)
	cfgPath = filepath.Join(dir, "test.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[registry]\nenabled = false\n"+extra), 0644))
	return dir, cfgPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	r := root()
	r.SetOut(&out)
	r.SetErr(&out)
	r.SetArgs(args)
	err := r.Execute()
	return out.String(), err
}

func TestCompleteCommand_JSON(t *testing.T) {
	dir, cfgPath := isolated(t, "")
	file := filepath.Join(dir, "docker-compose.yml")
	require.NoError(t, os.WriteFile(file, []byte("version: \"2\"\nservices:\n  web:\n    \n"), 0644))

	out, err := run(t, "complete", file, "--line", "3", "--character", "4", "--json", "--config", cfgPath)
	require.NoError(t, err)

	var report completionReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "first-token", report.Rule)
	assert.Equal(t, "2", report.SchemaVersion)
	require.NotEmpty(t, report.Items)
	assert.Equal(t, "version", report.Items[0].Label)
	assert.Equal(t, compose.KindKeyword, report.Items[0].Kind)
}

func TestCompleteCommand_Table(t *testing.T) {
	dir, cfgPath := isolated(t, "")
	file := filepath.Join(dir, "docker-compose.yml")
	require.NoError(t, os.WriteFile(file, []byte("web:\n  image: ubu\n"), 0644))

	out, err := run(t, "complete", file, "--line", "1", "--character", "12", "--json=false", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "rule=unquoted-image")
	assert.Contains(t, out, "schema=v1")
	assert.Contains(t, out, "no suggestions")
}

func TestCompleteCommand_MissingFile(t *testing.T) {
	dir, cfgPath := isolated(t, "")
	_, err := run(t, "complete", filepath.Join(dir, "nope.yml"), "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read")
}

func TestKeysCommand(t *testing.T) {
	_, cfgPath := isolated(t, "")

	out, err := run(t, "keys", "--schema", "2", "--json", "--config", cfgPath)
	require.NoError(t, err)
	var entries []keyinfo.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	assert.Equal(t, keyinfo.Default().ForVersion(keyinfo.V2).Len(), len(entries))
	assert.Equal(t, "version", entries[0].Key)

	out, err = run(t, "keys", "--schema", "1", "--json=false", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "v1: ")
	assert.Contains(t, out, "dockerfile")
}

func TestKeysCommand_KeyTablesDir(t *testing.T) {
	dir, _ := isolated(t, "")
	tables := filepath.Join(dir, "tables")
	require.NoError(t, os.MkdirAll(tables, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(tables, "v1.yaml"), []byte("alpha: first\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tables, "v2.yaml"), []byte("beta: second\n"), 0644))

	cfgPath := filepath.Join(dir, "tables.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[registry]\nenabled = false\n[completion]\nkey_tables_dir = '"+tables+"'\n"), 0644))

	out, err := run(t, "keys", "--schema", "2", "--json", "--config", cfgPath)
	require.NoError(t, err)
	var entries []keyinfo.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	assert.Equal(t, []keyinfo.Entry{{Key: "beta", Documentation: "second"}}, entries)
}

func TestConfigShow(t *testing.T) {
	cfg := &config.Config{
		Server:   config.ServerConfig{Transport: config.TransportStdio, Listen: "127.0.0.1:8787", MaxDocuments: 100},
		Registry: config.RegistryConfig{Enabled: true, BaseURL: "https://hub.docker.com", PageSize: 25},
	}

	data, err := marshalConfig(cfg, "yaml")
	require.NoError(t, err)
	assert.Contains(t, string(data), "base_url: https://hub.docker.com")

	data, err = marshalConfig(cfg, "json")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"max_documents": 100`)

	data, err = marshalConfig(cfg, "toml")
	require.NoError(t, err)
	var decoded config.Config
	require.NoError(t, toml.Unmarshal(data, &decoded))
	assert.Equal(t, *cfg, decoded)

	_, err = marshalConfig(cfg, "ini")
	require.Error(t, err)
	assert.Contains(t, errors.FlattenHints(err), "toml, json, yaml")
}

func TestConfigShowCommand(t *testing.T) {
	_, cfgPath := isolated(t, "[server]\nmax_documents = 7\n")

	out, err := run(t, "config", "show", "--format", "json", "--config", cfgPath)
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, 7, cfg.Server.MaxDocuments)
	assert.False(t, cfg.Registry.Enabled)
}

func TestConfigValidateCommand(t *testing.T) {
	_, cfgPath := isolated(t, "")
	out, err := run(t, "config", "validate", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")

	_, badPath := isolated(t, "[server]\ntransport = 'pipe'\n")
	_, err = run(t, "config", "validate", "--config", badPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
}

func TestWriteConfigSources(t *testing.T) {
	dir := t.TempDir()
	found := filepath.Join(dir, "found.toml")
	require.NoError(t, os.WriteFile(found, nil, 0644))

	var out bytes.Buffer
	require.NoError(t, writeConfigSources(&out, []string{found, filepath.Join(dir, "missing.toml")}, ""))
	assert.Contains(t, out.String(), "[found]")
	assert.Contains(t, out.String(), "[missing]")
	assert.Contains(t, out.String(), "COMPOSELS_*")
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version", "--json")
	require.NoError(t, err)

	var info version.Info
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, version.Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}

func TestFirstSentence(t *testing.T) {
	assert.Equal(t, "Short.", firstSentence("Short. And more."))
	assert.Equal(t, "Collapses whitespace", firstSentence("Collapses\n   whitespace"))

	long := firstSentence("This documentation string goes on and on without ever reaching a full stop so it is cut")
	assert.Len(t, long, 80)
	assert.True(t, len(long) > 3 && long[len(long)-3:] == "...")
}

func TestImageSource_ReusedUntilRegistryChanges(t *testing.T) {
	cfg := config.RegistryConfig{
		Enabled:           true,
		BaseURL:           "https://hub.docker.com",
		PageSize:          25,
		TimeoutSeconds:    5,
		RequestsPerSecond: 2,
		Burst:             4,
		CacheSize:         16,
	}
	src := &imageSource{}
	t.Cleanup(src.Close)

	first, ok := src.forConfig(cfg).(*registry.Hub)
	require.True(t, ok)
	again, ok := src.forConfig(cfg).(*registry.Hub)
	require.True(t, ok)
	assert.Same(t, first, again, "unchanged settings keep the hub and its cache")

	cfg.PageSize = 10
	changed, ok := src.forConfig(cfg).(*registry.Hub)
	require.True(t, ok)
	assert.NotSame(t, first, changed)

	cfg.Enabled = false
	_, ok = src.forConfig(cfg).(registry.Disabled)
	assert.True(t, ok)
	assert.NotPanics(t, src.Close)
}
