// Package config holds the loreweave configuration, loaded with viper
// from a TOML file with environment overrides.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Resolver  ResolverConfig  `mapstructure:"resolver"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Synonyms  SynonymsConfig  `mapstructure:"synonyms"`
	Batch     BatchConfig     `mapstructure:"batch"`
}

// DatabaseConfig configures the SQLite database backing the cache.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ResolverConfig configures cascade behavior shared by all sources.
type ResolverConfig struct {
	Language              string `mapstructure:"language"`                // configured lookup language
	FallbackLanguage      string `mapstructure:"fallback_language"`       // language tried when the primary lacks a usable summary
	MinSummaryLength      int    `mapstructure:"min_summary_length"`      // runes; shorter summaries do not terminate the cascade
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"` // per outbound call
}

// RequestTimeout returns the per-call timeout as a duration.
func (r ResolverConfig) RequestTimeout() time.Duration {
	return time.Duration(r.RequestTimeoutSeconds) * time.Second
}

// CacheConfig configures entry lifetimes.
type CacheConfig struct {
	NegativeTTLHours int `mapstructure:"negative_ttl_hours"` // short; not_found verdicts self-correct
	PositiveTTLHours int `mapstructure:"positive_ttl_hours"` // 0 = persist until invalidated
}

// NegativeTTL returns the negative-entry lifetime.
func (c CacheConfig) NegativeTTL() time.Duration {
	return time.Duration(c.NegativeTTLHours) * time.Hour
}

// PositiveTTL returns the positive-entry lifetime (0 = none).
func (c CacheConfig) PositiveTTL() time.Duration {
	return time.Duration(c.PositiveTTLHours) * time.Hour
}

// RateLimitConfig bounds outbound call rate per endpoint class.
type RateLimitConfig struct {
	MaxCalls          int `mapstructure:"max_calls"`           // per window
	WindowSeconds     int `mapstructure:"window_seconds"`      // rolling window length
	InitialBackoffMS  int `mapstructure:"initial_backoff_ms"`  // first pause after throttling
	MaxBackoffSeconds int `mapstructure:"max_backoff_seconds"` // backoff cap
}

// Window returns the rolling window as a duration.
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// InitialBackoff returns the first throttling pause.
func (r RateLimitConfig) InitialBackoff() time.Duration {
	return time.Duration(r.InitialBackoffMS) * time.Millisecond
}

// MaxBackoff returns the backoff cap.
func (r RateLimitConfig) MaxBackoff() time.Duration {
	return time.Duration(r.MaxBackoffSeconds) * time.Second
}

// String renders the limit as "N per window" for logs.
func (r RateLimitConfig) String() string {
	return fmt.Sprintf("%d per %s", r.MaxCalls, r.Window())
}

// SourcesConfig holds per-knowledge-base endpoint settings.
type SourcesConfig struct {
	Wikipedia SourceConfig `mapstructure:"wikipedia"`
	Wikidata  SourceConfig `mapstructure:"wikidata"`
	DBpedia   SourceConfig `mapstructure:"dbpedia"`
}

// SourceConfig configures one knowledge-base endpoint.
type SourceConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Endpoint may contain one %s verb substituted with the language
	// (wikipedia's per-language hosts); others use it verbatim
	Endpoint  string `mapstructure:"endpoint"`
	BatchSize int    `mapstructure:"batch_size"` // max entities per endpoint call
}

// SynonymsConfig configures the external synonym-generation collaborator.
type SynonymsConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	BaseURL     string  `mapstructure:"base_url"`
	MaxSynonyms int     `mapstructure:"max_synonyms"`
	RatePerSec  float64 `mapstructure:"rate_per_sec"` // LLM call pacing
}

// BatchConfig configures the orchestrator.
type BatchConfig struct {
	Workers int `mapstructure:"workers"` // concurrent batch dispatchers per source phase
	// OutageThreshold is how many consecutive hard batch failures mark a
	// source-wide outage
	OutageThreshold int `mapstructure:"outage_threshold"`
}
