package dbpedia

import (
	"context"

	"go.uber.org/zap"

	"github.com/loreweave/loreweave/cache"
	"github.com/loreweave/loreweave/errors"
	"github.com/loreweave/loreweave/kb"
	"github.com/loreweave/loreweave/resolve"
	"github.com/loreweave/loreweave/synonym"
)

// Config holds resolver settings.
type Config struct {
	Language         string
	FallbackLanguage string
	MinSummaryLength int
	BatchSize        int
	MaxSynonyms      int
}

// Resolver resolves entities against the ontology graph. Resource URIs
// derive from article titles seeded by the encyclopedia pass, so this
// source profits most from running late in the source order.
type Resolver struct {
	cfg      Config
	client   *Client
	cache    *cache.Store
	synonyms synonym.Generator // nil disables SYNONYM_FALLBACK
	logger   *zap.SugaredLogger
}

func NewResolver(cfg Config, client *Client, store *cache.Store, synonyms synonym.Generator, logger *zap.SugaredLogger) *Resolver {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxResourcesPerQuery {
		cfg.BatchSize = MaxResourcesPerQuery
	}
	return &Resolver{
		cfg:      cfg,
		client:   client,
		cache:    store,
		synonyms: synonyms,
		logger:   logger,
	}
}

// Source implements resolve.Resolver.
func (r *Resolver) Source() kb.Source { return kb.SourceDBpedia }

// BatchSize implements resolve.Resolver.
func (r *Resolver) BatchSize() int { return r.cfg.BatchSize }

// Resolve handles one batch: cache short-circuits first, then one VALUES
// query per sub-batch for the remainder, then the per-entity cascade.
func (r *Resolver) Resolve(ctx context.Context, batch []*kb.EntityContext) error {
	cacheStage := resolve.CacheStage(r.cache, kb.SourceDBpedia, kb.ScratchDBpediaURI)

	var pending []*kb.EntityContext
	for _, ec := range batch {
		rec, err := cacheStage.Attempt(ctx, ec)
		if err != nil {
			r.logger.Warnw("Cache lookup failed", "entity", ec.Name, "error", err)
		}
		switch resolve.DecideCache(rec, r.cfg.MinSummaryLength) {
		case resolve.CacheHitUsable, resolve.CacheHitNegative:
			out := rec.Clone()
			out.Provenance = kb.StageCache
			out.Attempts = 0
			r.finish(ec, out, false)
		default:
			pending = append(pending, ec)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	prefetch, prefetchErr := r.prefetch(ctx, pending)
	if prefetchErr != nil {
		r.logger.Warnw("Batched describe query failed, falling back to per-entity calls",
			"entities", len(pending),
			"error", prefetchErr,
		)
	}

	for _, ec := range pending {
		cascade := resolve.NewCascade(kb.SourceDBpedia, r.cfg.MinSummaryLength, r.stages(prefetch, prefetchErr), r.logger)
		rec, err := cascade.Run(ctx, ec)
		if err != nil {
			return err
		}
		r.finish(ec, rec, true)
	}

	if prefetchErr != nil && errors.Is(prefetchErr, errors.ErrServiceUnavailable) {
		return prefetchErr
	}
	return nil
}

func (r *Resolver) finish(ec *kb.EntityContext, rec *kb.SourceRecord, store bool) {
	if err := ec.SetRecord(kb.SourceDBpedia, rec); err != nil {
		r.logger.Errorw("Record slot conflict", "entity", ec.Name, "error", err)
		return
	}
	ec.MarkAttempted(kb.SourceDBpedia)
	if store {
		if err := resolve.StoreResult(context.Background(), r.cache, kb.SourceDBpedia, ec, rec, r.cfg.MinSummaryLength); err != nil {
			r.logger.Warnw("Cache write failed", "entity", ec.Name, "error", err)
		}
	}
}

// resourceURI prefers a URI discovered by an earlier pass, then a seeded
// article title, then the raw name.
func (r *Resolver) resourceURI(ec *kb.EntityContext) string {
	if uri, ok := ec.GetScratch(kb.ScratchDBpediaURI); ok {
		return uri
	}
	if title, ok := ec.GetScratch(kb.ScratchWikipediaTitle); ok {
		return ResourceURI(title)
	}
	return ResourceURI(ec.Name)
}

// prefetch runs one VALUES query per sub-batch of pending entities.
func (r *Resolver) prefetch(ctx context.Context, pending []*kb.EntityContext) (map[string]*Resource, error) {
	uris := make([]string, 0, len(pending))
	for _, ec := range pending {
		uris = append(uris, r.resourceURI(ec))
	}

	out := make(map[string]*Resource)
	var firstErr error
	for start := 0; start < len(uris); start += r.cfg.BatchSize {
		end := start + r.cfg.BatchSize
		if end > len(uris) {
			end = len(uris)
		}
		resources, err := r.client.Describe(ctx, r.cfg.Language, uris[start:end])
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for uri, res := range resources {
			out[uri] = res
		}
	}
	return out, firstErr
}

// stages assembles the network cascade. No scrape stage: every fact the
// rendered page shows is already in the triple store.
func (r *Resolver) stages(prefetch map[string]*Resource, prefetchErr error) []resolve.Stage {
	return []resolve.Stage{
		{Name: kb.StagePrimary, Attempt: r.primaryStage(prefetch, prefetchErr)},
		{Name: kb.StageLanguageFallback, Attempt: r.languageFallbackStage(prefetch, prefetchErr)},
		{Name: kb.StageSearchFallback, Attempt: r.searchFallbackStage()},
		{Name: kb.StageSynonymFallback, Attempt: r.synonymFallbackStage()},
	}
}

// lookupResource consults the prefetch, retrying the single resource when
// the batched query failed.
func (r *Resolver) lookupResource(ctx context.Context, ec *kb.EntityContext, prefetch map[string]*Resource, prefetchErr error) (*Resource, error) {
	uri := r.resourceURI(ec)
	if res, ok := prefetch[uri]; ok {
		return res, nil
	}
	if prefetchErr == nil {
		return nil, nil
	}
	resources, err := r.client.Describe(ctx, r.cfg.Language, []string{uri})
	if err != nil {
		return nil, err
	}
	return resources[uri], nil
}

func (r *Resolver) primaryStage(prefetch map[string]*Resource, prefetchErr error) resolve.StageFunc {
	return func(ctx context.Context, ec *kb.EntityContext) (*kb.SourceRecord, error) {
		res, err := r.lookupResource(ctx, ec, prefetch, prefetchErr)
		if err != nil {
			return nil, err
		}
		return r.recordFromResource(ec, res, r.cfg.Language), nil
	}
}

// languageFallbackStage rebuilds the record from the fallback language's
// abstract; Describe already fetched both languages.
func (r *Resolver) languageFallbackStage(prefetch map[string]*Resource, prefetchErr error) resolve.StageFunc {
	return func(ctx context.Context, ec *kb.EntityContext) (*kb.SourceRecord, error) {
		fallback := r.cfg.FallbackLanguage
		if fallback == "" || fallback == r.cfg.Language {
			return nil, nil
		}
		res, err := r.lookupResource(ctx, ec, prefetch, prefetchErr)
		if err != nil || res == nil {
			return nil, err
		}
		rec := r.recordFromResource(ec, res, fallback)
		if rec != nil && res.Label != "" {
			rec.AltLabel = res.Label
		}
		return rec, nil
	}
}

// searchFallbackStage matches the raw name against resource labels.
func (r *Resolver) searchFallbackStage() resolve.StageFunc {
	return func(ctx context.Context, ec *kb.EntityContext) (*kb.SourceRecord, error) {
		uri, err := r.client.SearchByLabel(ctx, r.cfg.Language, ec.Name)
		if err != nil {
			return nil, err
		}
		if uri == "" || uri == r.resourceURI(ec) {
			return nil, nil
		}
		resources, err := r.client.Describe(ctx, r.cfg.Language, []string{uri})
		if err != nil {
			return nil, err
		}
		rec := r.recordFromResource(ec, resources[uri], r.cfg.Language, r.cfg.FallbackLanguage)
		if rec != nil {
			rec.AltLabel = ec.Name
		}
		return rec, nil
	}
}

// synonymFallbackStage derives resource URIs from generated surface forms
// and describes them in one query, first usable hit in synonym order.
func (r *Resolver) synonymFallbackStage() resolve.StageFunc {
	return func(ctx context.Context, ec *kb.EntityContext) (*kb.SourceRecord, error) {
		if r.synonyms == nil {
			return nil, nil
		}

		max := r.cfg.MaxSynonyms
		if max <= 0 {
			max = 5
		}
		if max > r.cfg.BatchSize {
			max = r.cfg.BatchSize
		}
		syns, err := r.synonyms.Synonyms(ctx, ec.Name, ec.DeclaredType, r.cfg.Language, max)
		if err != nil {
			return nil, err
		}
		if len(syns) == 0 {
			return nil, nil
		}

		uris := make([]string, 0, len(syns))
		for _, syn := range syns {
			uris = append(uris, ResourceURI(syn))
		}
		resources, err := r.client.Describe(ctx, r.cfg.Language, uris)
		if err != nil {
			return nil, err
		}

		var partial *kb.SourceRecord
		for _, uri := range uris {
			rec := r.recordFromResource(ec, resources[uri], r.cfg.Language, r.cfg.FallbackLanguage)
			if rec == nil {
				continue
			}
			rec.AltLabel = ec.Name
			if rec.Usable(r.cfg.MinSummaryLength) {
				return rec, nil
			}
			if partial == nil {
				partial = rec
			}
		}
		return partial, nil
	}
}

// recordFromResource converts a resource into a record using the first
// language with an abstract, and seeds the resource URI for later passes.
func (r *Resolver) recordFromResource(ec *kb.EntityContext, res *Resource, langs ...string) *kb.SourceRecord {
	if res == nil {
		return nil
	}

	ec.SetScratch(kb.ScratchDBpediaURI, res.URI)

	var summary string
	for _, lang := range langs {
		if summary = res.Abstract(lang); summary != "" {
			break
		}
	}
	label := res.Label
	if label == "" {
		label = TitleFromURI(res.URI)
	}

	return &kb.SourceRecord{
		Status:     kb.StatusFound,
		ID:         TitleFromURI(res.URI),
		URI:        res.URI,
		Label:      label,
		Summary:    summary,
		Categories: append([]string(nil), res.Subjects...),
		Types:      append([]string(nil), res.Types...),
		PartOf:     append([]string(nil), res.PartOf...),
		HasPart:    append([]string(nil), res.HasPart...),
	}
}

var _ resolve.Resolver = (*Resolver)(nil)
