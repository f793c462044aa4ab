package commands

import (
	"github.com/spf13/cobra"
	"github.com/teranos/composels/compose"
	"github.com/teranos/composels/compose/keyinfo"
	"github.com/teranos/composels/config"
	"github.com/teranos/composels/errors"
	"github.com/teranos/composels/logger"
	"github.com/teranos/composels/registry"
)

// loadConfig loads the configuration named by the global --config flag and
// applies its log settings on top of the command line flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	applyLogConfig(cmd, cfg)
	return cfg, nil
}

// applyLogConfig raises verbosity and switches to JSON when the config asks
// for more than the flags did.
func applyLogConfig(cmd *cobra.Command, cfg *config.Config) {
	flagVerbosity, _ := cmd.Flags().GetCount("verbose")
	flagJSON, _ := cmd.Flags().GetBool("json-logs")

	verbosity := max(flagVerbosity, cfg.Log.Verbosity)
	if cfg.Log.JSON && !flagJSON && !logger.JSONOutput {
		if err := logger.Initialize(true, verbosity); err != nil {
			logger.Warnw("Failed to switch to JSON logs", "error", err)
		}
		return
	}
	logger.SetVerbosity(verbosity)
}

// loadTables returns the built-in key tables or the override directory's.
func loadTables(cfg *config.Config) (*keyinfo.Tables, error) {
	dir := cfg.Completion.KeyTablesDir
	if dir == "" {
		return keyinfo.Default(), nil
	}
	tables, err := keyinfo.LoadDir(dir)
	if err != nil {
		return nil, errors.WithHint(
			errors.Wrapf(err, "failed to load key tables from %s", dir),
			"the directory must contain v1.yaml and v2.yaml",
		)
	}
	return tables, nil
}

// imageSource hands out the image suggester for a registry config. The
// suggester, with its HTTP connections and search cache, is kept across
// reloads until the registry settings change.
type imageSource struct {
	cfg    config.RegistryConfig
	images compose.ImageSuggester
}

func (s *imageSource) forConfig(cfg config.RegistryConfig) compose.ImageSuggester {
	if s.images != nil && cfg == s.cfg {
		return s.images
	}
	s.Close()
	s.cfg = cfg
	s.images = registry.New(cfg, logger.Named("registry"))
	return s.images
}

// Close releases the current suggester's idle connections.
func (s *imageSource) Close() {
	if hub, ok := s.images.(*registry.Hub); ok {
		hub.Close()
	}
}

// buildRouter wires key tables and the image suggester into a router.
func buildRouter(cfg *config.Config, images *imageSource) (*compose.Router, error) {
	tables, err := loadTables(cfg)
	if err != nil {
		return nil, err
	}
	return compose.NewRouter(tables, images.forConfig(cfg.Registry)), nil
}
