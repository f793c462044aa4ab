package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/teranos/composels/errors"
)

// NewViper builds a viper instance with defaults, environment binding and
// every config file that exists merged in precedence order:
//
//	/etc/composels/config.toml
//	~/.composels/config.toml
//	nearest composels.toml walking up from the working directory
//	explicitPath (when non-empty; must exist)
//	COMPOSELS_* environment variables
func NewViper(explicitPath string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	for _, path := range SearchPaths() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := mergeFile(v, path); err != nil {
			return nil, err
		}
	}

	if explicitPath != "" {
		if err := mergeFile(v, explicitPath); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// SearchPaths returns the implicit config file locations, lowest precedence first.
func SearchPaths() []string {
	paths := []string{"/etc/composels/config.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".composels", "config.toml"))
	}
	if project := findProjectConfig(); project != "" {
		paths = append(paths, project)
	}
	return paths
}

func mergeFile(v *viper.Viper, path string) error {
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.MergeInConfig(); err != nil {
		return errors.Wrapf(err, "failed to read config file %s", path)
	}
	return nil
}

// findProjectConfig walks up from the working directory looking for
// composels.toml. Returns "" when none is found.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ProjectConfigName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Load reads the merged configuration and validates it.
func Load(explicitPath string) (*Config, error) {
	v, err := NewViper(explicitPath)
	if err != nil {
		return nil, err
	}
	return LoadWithViper(v)
}

// LoadWithViper unmarshals and validates the configuration held by v.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromFile loads defaults plus a single file, ignoring the environment
// and the implicit search paths.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	if err := mergeFile(v, path); err != nil {
		return nil, err
	}
	return LoadWithViper(v)
}
