package config

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "loreweave.db")

	// Resolver defaults
	v.SetDefault("resolver.language", "en")
	v.SetDefault("resolver.fallback_language", "en")
	v.SetDefault("resolver.min_summary_length", 40)
	v.SetDefault("resolver.request_timeout_seconds", 15)

	// Cache defaults: negatives retry after a day, positives persist
	v.SetDefault("cache.negative_ttl_hours", 24)
	v.SetDefault("cache.positive_ttl_hours", 0)

	// Rate limit defaults, kept under the public API guidance for
	// anonymous MediaWiki clients
	v.SetDefault("rate_limit.max_calls", 45)
	v.SetDefault("rate_limit.window_seconds", 60)
	v.SetDefault("rate_limit.initial_backoff_ms", 1000)
	v.SetDefault("rate_limit.max_backoff_seconds", 60)

	// Source endpoints. The MediaWiki query API accepts up to 50 titles
	// per call; the SPARQL endpoint prefers smaller VALUES blocks.
	v.SetDefault("sources.wikipedia.enabled", true)
	v.SetDefault("sources.wikipedia.endpoint", "https://%s.wikipedia.org/w/api.php")
	v.SetDefault("sources.wikipedia.batch_size", 50)
	v.SetDefault("sources.wikidata.enabled", true)
	v.SetDefault("sources.wikidata.endpoint", "https://www.wikidata.org/w/api.php")
	v.SetDefault("sources.wikidata.batch_size", 50)
	v.SetDefault("sources.dbpedia.enabled", true)
	v.SetDefault("sources.dbpedia.endpoint", "https://dbpedia.org/sparql")
	v.SetDefault("sources.dbpedia.batch_size", 20)

	// Synonym generation is off until an API key is configured
	v.SetDefault("synonyms.enabled", false)
	v.SetDefault("synonyms.model", "openai/gpt-4o-mini")
	v.SetDefault("synonyms.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("synonyms.max_synonyms", 5)
	v.SetDefault("synonyms.rate_per_sec", 1.0)

	// Orchestrator defaults
	v.SetDefault("batch.workers", 4)
	v.SetDefault("batch.outage_threshold", 3)
}
