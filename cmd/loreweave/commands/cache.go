package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/loreweave/loreweave/cache"
	"github.com/loreweave/loreweave/config"
	"github.com/loreweave/loreweave/db"
	"github.com/loreweave/loreweave/errors"
	"github.com/loreweave/loreweave/logger"
)

// CacheCmd manages the resolution cache.
var CacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the resolution cache",
	Long: `Inspect and maintain the knowledge-base resolution cache.

Examples:
  loreweave cache stats    # Show entry counts per source
  loreweave cache purge    # Remove expired entries`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	RunE:  runCacheStats,
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove expired cache entries",
	RunE:  runCachePurge,
}

func init() {
	CacheCmd.AddCommand(cacheStatsCmd)
	CacheCmd.AddCommand(cachePurgeCmd)
}

func openCacheStore() (*cache.Store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load configuration")
	}
	database, err := db.Open(cfg.Database.Path, logger.Logger)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open cache database")
	}
	if err := db.Migrate(database, logger.Logger); err != nil {
		database.Close()
		return nil, nil, errors.Wrap(err, "failed to migrate cache database")
	}
	store := cache.NewStore(database, logger.Logger,
		cache.WithPositiveTTL(cfg.Cache.PositiveTTL()),
		cache.WithNegativeTTL(cfg.Cache.NegativeTTL()),
	)
	return store, func() { database.Close() }, nil
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	store, closeDB, err := openCacheStore()
	if err != nil {
		return err
	}
	defer closeDB()

	stats, err := store.ReadStats(cmd.Context())
	if err != nil {
		return errors.Wrap(err, "failed to read cache statistics")
	}

	fmt.Printf("Cache entries: %d (%d negative)\n", stats.Total, stats.Negative)
	sources := make([]string, 0, len(stats.BySource))
	for source := range stats.BySource {
		sources = append(sources, source)
	}
	sort.Strings(sources)
	for _, source := range sources {
		fmt.Printf("  %-12s %d\n", source, stats.BySource[source])
	}
	return nil
}

func runCachePurge(cmd *cobra.Command, args []string) error {
	store, closeDB, err := openCacheStore()
	if err != nil {
		return err
	}
	defer closeDB()

	removed, err := store.Purge(cmd.Context())
	if err != nil {
		return errors.Wrap(err, "failed to purge cache")
	}
	fmt.Printf("Removed %d expired entries\n", removed)
	return nil
}
