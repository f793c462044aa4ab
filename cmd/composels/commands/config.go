package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/composels/config"
	"github.com/teranos/composels/errors"
	"gopkg.in/yaml.v3"
)

// ConfigCmd represents the config command
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or validate configuration",
	Long: `Display and check composels configuration.

Configuration sources (later overrides earlier):
1. Default values
2. System config (/etc/composels/config.toml)
3. User config (~/.composels/config.toml)
4. Project config (composels.toml, searched upwards from the working directory)
5. --config FILE
6. Environment variables (COMPOSELS_* prefix, e.g. COMPOSELS_REGISTRY_ENABLED=false)`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the effective configuration from all sources",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

var configWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show which config files are read",
	Args:  cobra.NoArgs,
	RunE:  runConfigWhere,
}

var configFormat string

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")

	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configValidateCmd)
	ConfigCmd.AddCommand(configWhereCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	data, err := marshalConfig(cfg, configFormat)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

// marshalConfig renders cfg as toml, json or yaml.
func marshalConfig(cfg *config.Config, format string) ([]byte, error) {
	switch format {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal config to JSON")
		}
		return append(data, '\n'), nil

	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal config to YAML")
		}
		return append([]byte("# composels configuration\n"), data...), nil

	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal config to TOML")
		}
		return append([]byte("# composels configuration\n"), data...), nil

	default:
		return nil, errors.WithHint(
			errors.Newf("unsupported format: %s", format),
			"supported: toml, json, yaml",
		)
	}
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	// Load validates; a failure here is the validation result
	if _, err := loadConfig(cmd); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}
	fmt.Fprintln(cmd.OutOrStdout(), pterm.Green("✓ Configuration is valid"))
	return nil
}

func runConfigWhere(cmd *cobra.Command, args []string) error {
	explicit, _ := cmd.Flags().GetString("config")
	return writeConfigSources(cmd.OutOrStdout(), config.SearchPaths(), explicit)
}

func writeConfigSources(w io.Writer, paths []string, explicit string) error {
	fmt.Fprintln(w, "Configuration cascade (later overrides earlier):")
	fmt.Fprintln(w, "  [DEFAULT]  Built-in defaults")
	for _, p := range paths {
		fmt.Fprintf(w, "  %s %s\n", fileState(p), p)
	}
	if explicit != "" {
		fmt.Fprintf(w, "  %s %s (--config)\n", fileState(explicit), explicit)
	}
	fmt.Fprintf(w, "  [ENV]      %s_* environment variables\n", config.EnvPrefix)
	return nil
}

func fileState(path string) string {
	if _, err := os.Stat(path); err != nil {
		return pterm.Gray("[missing]  ")
	}
	return pterm.Green("[found]    ")
}
