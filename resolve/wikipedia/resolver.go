package wikipedia

import (
	"context"
	"strings"

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

// Resolver resolves entities against the encyclopedia. The cascade order
// is fixed: cache, batched primary, language fallback, fuzzy search,
// synonyms, page scrape.
type Resolver struct {
	cfg      Config
	client   *Client
	cache    *cache.Store
	synonyms synonym.Generator // nil disables SYNONYM_FALLBACK
	logger   *zap.SugaredLogger
}

// NewResolver creates the encyclopedia resolver. synonyms and logger may
// be nil.
func NewResolver(cfg Config, client *Client, store *cache.Store, synonyms synonym.Generator, logger *zap.SugaredLogger) *Resolver {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxTitlesPerQuery {
		cfg.BatchSize = MaxTitlesPerQuery
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
func (r *Resolver) Source() kb.Source { return kb.SourceWikipedia }

// BatchSize implements resolve.Resolver.
func (r *Resolver) BatchSize() int { return r.cfg.BatchSize }

// Resolve handles one batch: cache short-circuits first, then one batched
// primary query per language for the remainder, then the per-entity
// cascade. Per-entity failures become records; the returned error is
// non-nil only for cancellation or a batch-wide hard failure, which the
// orchestrator uses for outage detection.
func (r *Resolver) Resolve(ctx context.Context, batch []*kb.EntityContext) error {
	cacheStage := resolve.CacheStage(r.cache, kb.SourceWikipedia, "")

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
		r.logger.Warnw("Batched primary query failed, falling back to per-entity calls",
			"entities", len(pending),
			"error", prefetchErr,
		)
	}

	var batchErr error
	for _, ec := range pending {
		cascade := resolve.NewCascade(kb.SourceWikipedia, r.cfg.MinSummaryLength, r.stages(prefetch, prefetchErr), r.logger)
		rec, err := cascade.Run(ctx, ec)
		if err != nil {
			// Cancellation: the slot stays unwritten, partial state intact
			return err
		}
		r.finish(ec, rec, true)
	}

	if prefetchErr != nil && errors.Is(prefetchErr, errors.ErrServiceUnavailable) {
		batchErr = prefetchErr
	}
	return batchErr
}

// finish writes the record slot, marks the source attempted and updates
// the cache. Cache write failures are logged, never surfaced.
func (r *Resolver) finish(ec *kb.EntityContext, rec *kb.SourceRecord, store bool) {
	if err := ec.SetRecord(kb.SourceWikipedia, rec); err != nil {
		r.logger.Errorw("Record slot conflict", "entity", ec.Name, "error", err)
		return
	}
	ec.MarkAttempted(kb.SourceWikipedia)
	if store {
		if err := resolve.StoreResult(context.Background(), r.cache, kb.SourceWikipedia, ec, rec, r.cfg.MinSummaryLength); err != nil {
			r.logger.Warnw("Cache write failed", "entity", ec.Name, "error", err)
		}
	}
}

// prefetch runs one batched query per language group and returns pages
// keyed by lang+"|"+title.
func (r *Resolver) prefetch(ctx context.Context, pending []*kb.EntityContext) (map[string]*Page, error) {
	byLang := make(map[string][]string)
	for _, ec := range pending {
		lang := r.language(ec)
		byLang[lang] = append(byLang[lang], r.preferredTitle(ec))
	}

	out := make(map[string]*Page)
	var firstErr error
	for lang, titles := range byLang {
		pages, err := r.client.QueryPages(ctx, lang, titles)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for title, page := range pages {
			out[lang+"|"+title] = page
		}
	}
	return out, firstErr
}

func (r *Resolver) language(ec *kb.EntityContext) string {
	if ec.Language != "" {
		return ec.Language
	}
	return r.cfg.Language
}

// preferredTitle prefers a title seeded by an earlier pass over the raw
// name; titles are unambiguous, names are not.
func (r *Resolver) preferredTitle(ec *kb.EntityContext) string {
	if title, ok := ec.GetScratch(kb.ScratchWikipediaTitle); ok {
		return title
	}
	return ec.Name
}

// stages assembles the network cascade. The cache stage runs before the
// cascade in Resolve, so it is not repeated here.
func (r *Resolver) stages(prefetch map[string]*Page, prefetchErr error) []resolve.Stage {
	return []resolve.Stage{
		{Name: kb.StagePrimary, Attempt: r.primaryStage(prefetch, prefetchErr)},
		{Name: kb.StageLanguageFallback, Attempt: r.languageFallbackStage()},
		{Name: kb.StageSearchFallback, Attempt: r.searchFallbackStage()},
		{Name: kb.StageSynonymFallback, Attempt: r.synonymFallbackStage()},
		{Name: kb.StageScrapeFallback, Attempt: r.scrapeFallbackStage()},
	}
}

// primaryStage consults the batched prefetch; when the batch call failed
// the stage retries the single title so one flaky batch does not doom
// every entity in it.
func (r *Resolver) primaryStage(prefetch map[string]*Page, prefetchErr error) resolve.StageFunc {
	return func(ctx context.Context, ec *kb.EntityContext) (*kb.SourceRecord, error) {
		lang := r.language(ec)
		title := r.preferredTitle(ec)

		page, ok := prefetch[lang+"|"+title]
		if !ok {
			if prefetchErr == nil {
				// Batch succeeded but the title is absent entirely
				return nil, nil
			}
			pages, err := r.client.QueryPages(ctx, lang, []string{title})
			if err != nil {
				return nil, err
			}
			page = pages[title]
		}
		return r.recordFromPage(ec, page), nil
	}
}

// languageFallbackStage retries against the fallback language when the
// configured language lacks a usable summary, keeping the original title
// as an auxiliary reference.
func (r *Resolver) languageFallbackStage() resolve.StageFunc {
	return func(ctx context.Context, ec *kb.EntityContext) (*kb.SourceRecord, error) {
		lang := r.language(ec)
		if r.cfg.FallbackLanguage == "" || r.cfg.FallbackLanguage == lang {
			return nil, nil
		}

		title := r.preferredTitle(ec)
		linked, err := r.client.LangLink(ctx, lang, title, r.cfg.FallbackLanguage)
		if err != nil {
			return nil, err
		}
		if linked == "" {
			return nil, nil
		}

		pages, err := r.client.QueryPages(ctx, r.cfg.FallbackLanguage, []string{linked})
		if err != nil {
			return nil, err
		}
		rec := r.recordFromPage(ec, pages[linked])
		if rec != nil {
			rec.AltLabel = title
		}
		return rec, nil
	}
}

// searchFallbackStage asks the fuzzy title-suggestion endpoint for the
// closest title and re-enters primary logic with it.
func (r *Resolver) searchFallbackStage() resolve.StageFunc {
	return func(ctx context.Context, ec *kb.EntityContext) (*kb.SourceRecord, error) {
		lang := r.language(ec)
		suggestion, err := r.client.OpenSearch(ctx, lang, ec.Name)
		if err != nil {
			return nil, err
		}
		if suggestion == "" || strings.EqualFold(suggestion, r.preferredTitle(ec)) {
			return nil, nil
		}

		pages, err := r.client.QueryPages(ctx, lang, []string{suggestion})
		if err != nil {
			return nil, err
		}
		rec := r.recordFromPage(ec, pages[suggestion])
		if rec != nil {
			// The requested name survives as the auxiliary label
			rec.AltLabel = ec.Name
		}
		return rec, nil
	}
}

// synonymFallbackStage generates alternative surface forms and tries them
// all in one batched query, taking the first usable hit in synonym order.
func (r *Resolver) synonymFallbackStage() resolve.StageFunc {
	return func(ctx context.Context, ec *kb.EntityContext) (*kb.SourceRecord, error) {
		if r.synonyms == nil {
			return nil, nil
		}

		max := r.cfg.MaxSynonyms
		if max <= 0 {
			max = 5
		}
		syns, err := r.synonyms.Synonyms(ctx, ec.Name, ec.DeclaredType, r.language(ec), max)
		if err != nil {
			return nil, err
		}
		if len(syns) == 0 {
			return nil, nil
		}

		lang := r.language(ec)
		pages, err := r.client.QueryPages(ctx, lang, syns)
		if err != nil {
			return nil, err
		}

		var partial *kb.SourceRecord
		for _, syn := range syns {
			rec := r.recordFromPage(ec, pages[syn])
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

// scrapeFallbackStage fetches the rendered page when an earlier partial
// attempt discovered a candidate URL.
func (r *Resolver) scrapeFallbackStage() resolve.StageFunc {
	return func(ctx context.Context, ec *kb.EntityContext) (*kb.SourceRecord, error) {
		pageURL, ok := ec.GetScratch(kb.ScratchWikipediaURL)
		if !ok {
			return nil, nil
		}

		scraped, err := r.client.FetchPage(ctx, pageURL)
		if err != nil {
			return nil, err
		}

		return &kb.SourceRecord{
			Status:     kb.StatusFound,
			ID:         scraped.Title,
			URI:        pageURL,
			Label:      scraped.Title,
			Summary:    scraped.Summary,
			Categories: scraped.Categories,
		}, nil
	}
}

// recordFromPage converts an API page into a record and seeds the
// cross-source scratch values (wikibase item, canonical title, page URL)
// even for partial results, so later sources and the scrape stage can use
// them.
func (r *Resolver) recordFromPage(ec *kb.EntityContext, page *Page) *kb.SourceRecord {
	if page == nil || page.Missing {
		return nil
	}

	ec.SetScratch(kb.ScratchWikibaseID, page.WikibaseItem)
	ec.SetScratch(kb.ScratchWikipediaTitle, page.Title)
	ec.SetScratch(kb.ScratchWikipediaURL, page.FullURL)

	return &kb.SourceRecord{
		Status:     kb.StatusFound,
		ID:         page.Title,
		URI:        page.FullURL,
		Label:      page.Title,
		Summary:    page.Extract,
		Categories: page.Categories,
	}
}

var _ resolve.Resolver = (*Resolver)(nil)
