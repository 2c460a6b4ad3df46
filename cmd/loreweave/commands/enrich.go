package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loreweave/loreweave/batch"
	"github.com/loreweave/loreweave/cache"
	"github.com/loreweave/loreweave/config"
	"github.com/loreweave/loreweave/db"
	"github.com/loreweave/loreweave/errors"
	"github.com/loreweave/loreweave/graph"
	"github.com/loreweave/loreweave/logger"
	"github.com/loreweave/loreweave/producer"
	"github.com/loreweave/loreweave/ratelimit"
	"github.com/loreweave/loreweave/resolve"
	"github.com/loreweave/loreweave/resolve/dbpedia"
	"github.com/loreweave/loreweave/resolve/wikidata"
	"github.com/loreweave/loreweave/resolve/wikipedia"
	"github.com/loreweave/loreweave/synonym"
)

// EnrichCmd resolves an entity list against every configured source.
var EnrichCmd = &cobra.Command{
	Use:   "enrich [entities.yaml | name...]",
	Short: "Resolve entities against the configured knowledge bases",
	Long: `Resolve an ordered entity list against every configured knowledge base.

Entities come from a YAML file or directly from the arguments:

  loreweave enrich entities.yaml
  loreweave enrich Berlin Hamburg "New York City"

Each entity runs through the per-source fallback cascade (cache, batched
primary lookup, language fallback, fuzzy search, synonyms, page scrape).
Results are written as JSON, one context per input entity.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEnrich,
}

var (
	enrichOutputFlag   string
	enrichGraphFlag    string
	enrichLanguageFlag string
)

func init() {
	EnrichCmd.Flags().StringVarP(&enrichOutputFlag, "output", "o", "", "Write enriched contexts to this file (default stdout)")
	EnrichCmd.Flags().StringVar(&enrichGraphFlag, "graph", "", "Also write a knowledge graph JSON to this file")
	EnrichCmd.Flags().StringVar(&enrichLanguageFlag, "language", "", "Override the configured lookup language")
}

func runEnrich(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	language := cfg.Resolver.Language
	if enrichLanguageFlag != "" {
		language = enrichLanguageFlag
	}

	entities, err := entityProducer(args).Entities(cmd.Context())
	if err != nil {
		return err
	}

	database, err := db.Open(cfg.Database.Path, logger.Logger)
	if err != nil {
		return errors.Wrap(err, "failed to open cache database")
	}
	defer database.Close()
	if err := db.Migrate(database, logger.Logger); err != nil {
		return errors.Wrap(err, "failed to migrate cache database")
	}

	store := cache.NewStore(database, logger.Logger,
		cache.WithPositiveTTL(cfg.Cache.PositiveTTL()),
		cache.WithNegativeTTL(cfg.Cache.NegativeTTL()),
	)

	resolvers := buildResolvers(cfg, store)
	if len(resolvers) == 0 {
		return errors.New("no knowledge-base sources enabled")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orchestrator := batch.New(resolvers, cfg.Batch.Workers, cfg.Batch.OutageThreshold, logger.Logger)
	result, runErr := orchestrator.Run(ctx, entities, language)
	if runErr != nil {
		logger.Warnw("Resolution pass interrupted, writing partial results", "error", runErr)
	}

	logger.Infow("Resolution pass complete", "summary", result.Stats.Summary())

	if err := writeJSON(enrichOutputFlag, result.Contexts); err != nil {
		return err
	}
	if enrichGraphFlag != "" {
		g := graph.NewBuilder(logger.Logger).Build(result.Contexts)
		if err := writeJSON(enrichGraphFlag, g); err != nil {
			return err
		}
	}
	fmt.Fprintln(cmd.ErrOrStderr(), result.Stats.Summary())
	return runErr
}

// entityProducer picks the producer: a single YAML-file argument reads
// the file, anything else treats the arguments as entity names.
func entityProducer(args []string) producer.Producer {
	if len(args) == 1 && (strings.HasSuffix(args[0], ".yaml") || strings.HasSuffix(args[0], ".yml")) {
		return producer.NewFileProducer(args[0])
	}
	return producer.NewStaticProducer(args)
}

// buildResolvers constructs one resolver per enabled source, each with
// its own rate limiter: limits are per endpoint class, not global.
func buildResolvers(cfg *config.Config, store *cache.Store) []resolve.Resolver {
	newLimiter := func() *ratelimit.Limiter {
		return ratelimit.NewLimiter(cfg.RateLimit.MaxCalls, cfg.RateLimit.Window())
	}
	newBackoff := func() *ratelimit.Backoff {
		return ratelimit.NewBackoff(cfg.RateLimit.InitialBackoff(), cfg.RateLimit.MaxBackoff())
	}
	timeout := cfg.Resolver.RequestTimeout()
	generator := buildSynonymGenerator(cfg)

	var resolvers []resolve.Resolver
	if cfg.Sources.Wikipedia.Enabled {
		client := wikipedia.NewClient(cfg.Sources.Wikipedia.Endpoint, timeout, newLimiter(), newBackoff(), logger.Logger)
		resolvers = append(resolvers, wikipedia.NewResolver(wikipedia.Config{
			Language:         cfg.Resolver.Language,
			FallbackLanguage: cfg.Resolver.FallbackLanguage,
			MinSummaryLength: cfg.Resolver.MinSummaryLength,
			BatchSize:        cfg.Sources.Wikipedia.BatchSize,
			MaxSynonyms:      cfg.Synonyms.MaxSynonyms,
		}, client, store, generator, logger.Logger))
	}
	if cfg.Sources.Wikidata.Enabled {
		client := wikidata.NewClient(cfg.Sources.Wikidata.Endpoint, timeout, newLimiter(), newBackoff(), logger.Logger)
		resolvers = append(resolvers, wikidata.NewResolver(wikidata.Config{
			Language:         cfg.Resolver.Language,
			FallbackLanguage: cfg.Resolver.FallbackLanguage,
			MinSummaryLength: cfg.Resolver.MinSummaryLength,
			BatchSize:        cfg.Sources.Wikidata.BatchSize,
			MaxSynonyms:      cfg.Synonyms.MaxSynonyms,
		}, client, store, generator, logger.Logger))
	}
	if cfg.Sources.DBpedia.Enabled {
		client := dbpedia.NewClient(cfg.Sources.DBpedia.Endpoint, timeout, newLimiter(), newBackoff(), logger.Logger)
		resolvers = append(resolvers, dbpedia.NewResolver(dbpedia.Config{
			Language:         cfg.Resolver.Language,
			FallbackLanguage: cfg.Resolver.FallbackLanguage,
			MinSummaryLength: cfg.Resolver.MinSummaryLength,
			BatchSize:        cfg.Sources.DBpedia.BatchSize,
			MaxSynonyms:      cfg.Synonyms.MaxSynonyms,
		}, client, store, generator, logger.Logger))
	}
	return resolvers
}

// buildSynonymGenerator prefers the LLM collaborator when configured,
// falling back to deterministic surface-form variants.
func buildSynonymGenerator(cfg *config.Config) synonym.Generator {
	if !cfg.Synonyms.Enabled {
		return nil
	}
	if cfg.Synonyms.APIKey != "" {
		return synonym.NewLLMGenerator(synonym.LLMConfig{
			APIKey:     cfg.Synonyms.APIKey,
			Model:      cfg.Synonyms.Model,
			BaseURL:    cfg.Synonyms.BaseURL,
			RatePerSec: cfg.Synonyms.RatePerSec,
			Logger:     logger.Logger,
		})
	}
	return synonym.StaticGenerator{}
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode output")
	}
	data = append(data, '\n')
	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}
