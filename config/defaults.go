package config

import "github.com/spf13/viper"

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.transport", TransportStdio)
	v.SetDefault("server.listen", "127.0.0.1:8787")
	v.SetDefault("server.max_documents", 100)

	// Docker Hub allows unauthenticated search; keep well under its limits
	v.SetDefault("registry.enabled", true)
	v.SetDefault("registry.base_url", "https://hub.docker.com")
	v.SetDefault("registry.page_size", 25)
	v.SetDefault("registry.timeout_seconds", 10)
	v.SetDefault("registry.requests_per_second", 2.0)
	v.SetDefault("registry.burst", 4)
	v.SetDefault("registry.cache_ttl_seconds", 300)
	v.SetDefault("registry.cache_size", 256)

	v.SetDefault("completion.key_tables_dir", "")

	v.SetDefault("log.json", false)
	v.SetDefault("log.verbosity", 0)
}
