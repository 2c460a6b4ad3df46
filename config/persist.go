package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/loreweave/loreweave/errors"
)

// tomlConfig mirrors Config with toml tags for writing the default file.
// viper reads with mapstructure tags; go-toml writes with these.
type tomlConfig struct {
	Database struct {
		Path string `toml:"path"`
	} `toml:"database"`
	Resolver struct {
		Language              string `toml:"language"`
		FallbackLanguage      string `toml:"fallback_language"`
		MinSummaryLength      int    `toml:"min_summary_length"`
		RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	} `toml:"resolver"`
	Cache struct {
		NegativeTTLHours int `toml:"negative_ttl_hours"`
		PositiveTTLHours int `toml:"positive_ttl_hours"`
	} `toml:"cache"`
	RateLimit struct {
		MaxCalls          int `toml:"max_calls"`
		WindowSeconds     int `toml:"window_seconds"`
		InitialBackoffMS  int `toml:"initial_backoff_ms"`
		MaxBackoffSeconds int `toml:"max_backoff_seconds"`
	} `toml:"rate_limit"`
	Batch struct {
		Workers         int `toml:"workers"`
		OutageThreshold int `toml:"outage_threshold"`
	} `toml:"batch"`
}

// WriteDefault writes a default config file at path, creating parent
// directories as needed. Fails if the file already exists.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return errors.Newf("config file already exists: %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create config directory")
	}

	var tc tomlConfig
	tc.Database.Path = "loreweave.db"
	tc.Resolver.Language = "en"
	tc.Resolver.FallbackLanguage = "en"
	tc.Resolver.MinSummaryLength = 40
	tc.Resolver.RequestTimeoutSeconds = 15
	tc.Cache.NegativeTTLHours = 24
	tc.Cache.PositiveTTLHours = 0
	tc.RateLimit.MaxCalls = 45
	tc.RateLimit.WindowSeconds = 60
	tc.RateLimit.InitialBackoffMS = 1000
	tc.RateLimit.MaxBackoffSeconds = 60
	tc.Batch.Workers = 4
	tc.Batch.OutageThreshold = 3

	data, err := toml.Marshal(tc)
	if err != nil {
		return errors.Wrap(err, "marshal default config")
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "write config file")
	}
	return nil
}
