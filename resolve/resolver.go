package resolve

import (
	"context"

	"github.com/loreweave/loreweave/cache"
	"github.com/loreweave/loreweave/kb"
)

// Resolver resolves a batch of entities against one knowledge base. The
// orchestrator partitions entities into BatchSize-sized groups and calls
// Resolve once per group; the resolver runs its batched primary query and
// then the per-entity cascade, writing each result into the entity's
// context exactly once.
//
// Resolve returns an error only for batch-level hard failures (the whole
// endpoint unreachable); per-entity failures become typed outcomes in the
// contexts and never abort the batch.
type Resolver interface {
	Source() kb.Source
	BatchSize() int
	Resolve(ctx context.Context, batch []*kb.EntityContext) error
}

// CacheStage builds the CACHE stage shared by every source resolver: a
// lookup by (source, language, normalized name), falling back to the
// seeded identifier key when one is present. A usable hit exits the
// cascade without any network call.
func CacheStage(store *cache.Store, source kb.Source, idScratchKey string) Stage {
	return Stage{
		Name: kb.StageCache,
		Attempt: func(ctx context.Context, ec *kb.EntityContext) (*kb.SourceRecord, error) {
			rec, hit, err := store.Get(ctx, cache.Key(string(source), ec.Language, ec.Name))
			if err != nil {
				return nil, err
			}
			if hit {
				return rec, nil
			}

			if idScratchKey != "" {
				if id, ok := ec.GetScratch(idScratchKey); ok {
					rec, hit, err = store.Get(ctx, cache.IDKey(string(source), id))
					if err != nil {
						return nil, err
					}
					if hit {
						return rec, nil
					}
				}
			}
			return nil, nil
		},
	}
}

// CacheOutcome classifies a cache lookup for the pre-cascade decision.
type CacheOutcome int

const (
	// CacheMiss: nothing cached, or a stale "found" record below the
	// current minimum summary length; run the full cascade
	CacheMiss CacheOutcome = iota
	// CacheHitUsable: a usable positive record; no network call is
	// issued for this source
	CacheHitUsable
	// CacheHitNegative: a live negative or partial verdict; the entity
	// short-circuits to not_found without re-running the cascade
	CacheHitNegative
)

// DecideCache classifies a cached record. Found-but-below-minimum records
// count as misses so a raised threshold lets the cascade try for better.
func DecideCache(rec *kb.SourceRecord, minSummaryLen int) CacheOutcome {
	switch {
	case rec == nil:
		return CacheMiss
	case rec.Usable(minSummaryLen):
		return CacheHitUsable
	case rec.Status == kb.StatusFound:
		return CacheMiss
	default:
		return CacheHitNegative
	}
}

// StoreResult writes a terminal cascade record back to the cache. Usable
// and partial records are stored positively (partials bound the cost of
// repeated failed lookups); records with no identifying data get a
// negative marker with the short TTL. Cache write failures are returned
// so the caller can log them, but they never affect the entity outcome.
func StoreResult(ctx context.Context, store *cache.Store, source kb.Source, ec *kb.EntityContext, rec *kb.SourceRecord, minSummaryLen int) error {
	key := cache.Key(string(source), ec.Language, ec.Name)
	if rec.Usable(minSummaryLen) || rec.Partial() {
		return store.Put(ctx, key, string(source), rec)
	}
	return store.PutNegative(ctx, key, string(source))
}
