package config

import (
	"net/url"

	"github.com/teranos/composels/errors"
)

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	switch c.Server.Transport {
	case TransportStdio:
	case TransportWebSocket:
		if c.Server.Listen == "" {
			return errors.New("server.listen cannot be empty when server.transport is websocket")
		}
	default:
		return errors.WithHint(
			errors.Newf("server.transport %q is not supported", c.Server.Transport),
			"use stdio or websocket",
		)
	}
	if c.Server.MaxDocuments <= 0 {
		return errors.Newf("server.max_documents must be > 0, got %d", c.Server.MaxDocuments)
	}

	// Registry settings only matter when lookups are enabled
	if c.Registry.Enabled {
		if c.Registry.BaseURL == "" {
			return errors.New("registry.base_url cannot be empty when registry is enabled")
		}
		u, err := url.Parse(c.Registry.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.Newf("registry.base_url must be an http(s) URL, got %q", c.Registry.BaseURL)
		}
		if c.Registry.PageSize <= 0 {
			return errors.Newf("registry.page_size must be > 0, got %d", c.Registry.PageSize)
		}
		if c.Registry.TimeoutSeconds <= 0 {
			return errors.Newf("registry.timeout_seconds must be > 0, got %d", c.Registry.TimeoutSeconds)
		}
		if c.Registry.RequestsPerSecond <= 0 {
			return errors.Newf("registry.requests_per_second must be > 0, got %f", c.Registry.RequestsPerSecond)
		}
		if c.Registry.Burst <= 0 {
			return errors.Newf("registry.burst must be > 0, got %d", c.Registry.Burst)
		}
		if c.Registry.CacheTTLSeconds < 0 {
			return errors.Newf("registry.cache_ttl_seconds must be >= 0, got %d", c.Registry.CacheTTLSeconds)
		}
		if c.Registry.CacheSize <= 0 {
			return errors.Newf("registry.cache_size must be > 0, got %d", c.Registry.CacheSize)
		}
	}

	if c.Log.Verbosity < 0 {
		return errors.Newf("log.verbosity must be >= 0, got %d", c.Log.Verbosity)
	}
	return nil
}
