// Package config loads composels settings from TOML files, COMPOSELS_*
// environment variables and built-in defaults using viper.
package config

// Config is the full composels configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server" json:"server" yaml:"server" toml:"server"`
	Registry   RegistryConfig   `mapstructure:"registry" json:"registry" yaml:"registry" toml:"registry"`
	Completion CompletionConfig `mapstructure:"completion" json:"completion" yaml:"completion" toml:"completion"`
	Log        LogConfig        `mapstructure:"log" json:"log" yaml:"log" toml:"log"`
}

// ServerConfig configures the language server transport
type ServerConfig struct {
	Transport    string `mapstructure:"transport" json:"transport" yaml:"transport" toml:"transport"`             // stdio or websocket
	Listen       string `mapstructure:"listen" json:"listen" yaml:"listen" toml:"listen"`                         // websocket listen address
	MaxDocuments int    `mapstructure:"max_documents" json:"max_documents" yaml:"max_documents" toml:"max_documents"` // open documents per connection
}

// RegistryConfig configures the image search used for `image:` completions
type RegistryConfig struct {
	Enabled           bool    `mapstructure:"enabled" json:"enabled" yaml:"enabled" toml:"enabled"`
	BaseURL           string  `mapstructure:"base_url" json:"base_url" yaml:"base_url" toml:"base_url"`
	PageSize          int     `mapstructure:"page_size" json:"page_size" yaml:"page_size" toml:"page_size"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds" json:"timeout_seconds" yaml:"timeout_seconds" toml:"timeout_seconds"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" json:"requests_per_second" yaml:"requests_per_second" toml:"requests_per_second"`
	Burst             int     `mapstructure:"burst" json:"burst" yaml:"burst" toml:"burst"`
	CacheTTLSeconds   int     `mapstructure:"cache_ttl_seconds" json:"cache_ttl_seconds" yaml:"cache_ttl_seconds" toml:"cache_ttl_seconds"` // 0 disables the cache
	CacheSize         int     `mapstructure:"cache_size" json:"cache_size" yaml:"cache_size" toml:"cache_size"`                             // max cached queries
}

// CompletionConfig configures key completion
type CompletionConfig struct {
	// KeyTablesDir overrides the built-in key tables with v1.yaml and v2.yaml
	// from this directory. Empty uses the built-in tables.
	KeyTablesDir string `mapstructure:"key_tables_dir" json:"key_tables_dir" yaml:"key_tables_dir" toml:"key_tables_dir"`
}

// LogConfig configures logging
type LogConfig struct {
	JSON      bool `mapstructure:"json" json:"json" yaml:"json" toml:"json"`
	Verbosity int  `mapstructure:"verbosity" json:"verbosity" yaml:"verbosity" toml:"verbosity"`
}

// Transports
const (
	TransportStdio     = "stdio"
	TransportWebSocket = "websocket"
)

const (
	// EnvPrefix prefixes environment overrides: COMPOSELS_REGISTRY_ENABLED=false
	EnvPrefix = "COMPOSELS"
	// ProjectConfigName is searched for from the working directory upwards
	ProjectConfigName = "composels.toml"
	// DefaultDirPermissions is used when creating ~/.composels
	DefaultDirPermissions = 0755
)
