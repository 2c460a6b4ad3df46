package wikidata

import (
	"context"
	"sort"

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

// Resolver resolves entities against the structured-data graph. A Q-number
// seeded by another source is always preferred over a name lookup; claim
// targets (instance-of, part-of, has-part) are resolved to labels in one
// batched call per entity batch.
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
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxIDsPerQuery {
		cfg.BatchSize = MaxIDsPerQuery
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
func (r *Resolver) Source() kb.Source { return kb.SourceWikidata }

// BatchSize implements resolve.Resolver.
func (r *Resolver) BatchSize() int { return r.cfg.BatchSize }

// prefetched holds the batched primary lookups for one Resolve call.
type prefetched struct {
	byID    map[string]*Item
	byTitle map[string]*Item
	err     error
}

// Resolve handles one batch: cache short-circuits first, then batched
// wbgetentities calls split by lookup mode (seeded Q-number vs. title),
// then the per-entity cascade. Claim targets of successful records are
// label-resolved once per batch before the records are published.
func (r *Resolver) Resolve(ctx context.Context, batch []*kb.EntityContext) error {
	cacheStage := resolve.CacheStage(r.cache, kb.SourceWikidata, kb.ScratchWikibaseID)

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

	pre := r.prefetch(ctx, pending)
	if pre.err != nil {
		r.logger.Warnw("Batched entity query failed, falling back to per-entity calls",
			"entities", len(pending),
			"error", pre.err,
		)
	}

	// Hold finished records until relation labels are resolved; SetRecord
	// is single-shot per slot so each slot is written exactly once.
	resolved := make(map[*kb.EntityContext]*kb.SourceRecord, len(pending))
	for _, ec := range pending {
		cascade := resolve.NewCascade(kb.SourceWikidata, r.cfg.MinSummaryLength, r.stages(pre), r.logger)
		rec, err := cascade.Run(ctx, ec)
		if err != nil {
			return err
		}
		resolved[ec] = rec
	}

	r.resolveRelationLabels(ctx, resolved)
	for _, ec := range pending {
		r.finish(ec, resolved[ec], true)
	}

	if pre.err != nil && errors.Is(pre.err, errors.ErrServiceUnavailable) {
		return pre.err
	}
	return nil
}

func (r *Resolver) finish(ec *kb.EntityContext, rec *kb.SourceRecord, store bool) {
	if err := ec.SetRecord(kb.SourceWikidata, rec); err != nil {
		r.logger.Errorw("Record slot conflict", "entity", ec.Name, "error", err)
		return
	}
	ec.MarkAttempted(kb.SourceWikidata)
	if store {
		if err := resolve.StoreResult(context.Background(), r.cache, kb.SourceWikidata, ec, rec, r.cfg.MinSummaryLength); err != nil {
			r.logger.Warnw("Cache write failed", "entity", ec.Name, "error", err)
		}
	}
}

// prefetch splits pending entities into id-seeded and title lookups and
// runs one batched call per group. Identifiers are unambiguous, so a
// seeded Q-number always wins over the name.
func (r *Resolver) prefetch(ctx context.Context, pending []*kb.EntityContext) prefetched {
	var ids, titles []string
	for _, ec := range pending {
		if id, ok := ec.GetScratch(kb.ScratchWikibaseID); ok {
			ids = append(ids, id)
		} else {
			titles = append(titles, r.preferredTitle(ec))
		}
	}

	pre := prefetched{byID: map[string]*Item{}, byTitle: map[string]*Item{}}
	lang := r.cfg.Language
	for start := 0; start < len(ids); start += r.cfg.BatchSize {
		items, err := r.client.GetByIDs(ctx, lang, chunk(ids, start, r.cfg.BatchSize))
		if err != nil {
			if pre.err == nil {
				pre.err = err
			}
			continue
		}
		for id, item := range items {
			pre.byID[id] = item
		}
	}
	for start := 0; start < len(titles); start += r.cfg.BatchSize {
		items, err := r.client.GetByTitles(ctx, lang, chunk(titles, start, r.cfg.BatchSize))
		if err != nil {
			if pre.err == nil {
				pre.err = err
			}
			continue
		}
		// Index by id as well: the primary stage seeds the Q-number into
		// the context, and later stages in the same pass look it up by id.
		for title, item := range items {
			pre.byTitle[title] = item
			pre.byID[item.ID] = item
		}
	}
	return pre
}

func chunk(list []string, start, size int) []string {
	end := start + size
	if end > len(list) {
		end = len(list)
	}
	return list[start:end]
}

func (r *Resolver) preferredTitle(ec *kb.EntityContext) string {
	if title, ok := ec.GetScratch(kb.ScratchWikipediaTitle); ok {
		return title
	}
	return ec.Name
}

// stages assembles the network cascade. There is no scrape stage: the
// structured-data graph has no human-facing page worth extracting beyond
// what the API already returns.
func (r *Resolver) stages(pre prefetched) []resolve.Stage {
	return []resolve.Stage{
		{Name: kb.StagePrimary, Attempt: r.primaryStage(pre)},
		{Name: kb.StageLanguageFallback, Attempt: r.languageFallbackStage(pre)},
		{Name: kb.StageSearchFallback, Attempt: r.searchFallbackStage()},
		{Name: kb.StageSynonymFallback, Attempt: r.synonymFallbackStage()},
	}
}

// lookupItem finds the prefetched item for an entity, retrying the single
// lookup when the batch call failed.
func (r *Resolver) lookupItem(ctx context.Context, ec *kb.EntityContext, pre prefetched) (*Item, error) {
	if id, ok := ec.GetScratch(kb.ScratchWikibaseID); ok {
		if item, ok := pre.byID[id]; ok {
			return item, nil
		}
		if pre.err == nil {
			return nil, nil
		}
		items, err := r.client.GetByIDs(ctx, r.cfg.Language, []string{id})
		if err != nil {
			return nil, err
		}
		return items[id], nil
	}

	title := r.preferredTitle(ec)
	if item, ok := pre.byTitle[title]; ok {
		return item, nil
	}
	if pre.err == nil {
		return nil, nil
	}
	items, err := r.client.GetByTitles(ctx, r.cfg.Language, []string{title})
	if err != nil {
		return nil, err
	}
	return items[title], nil
}

func (r *Resolver) primaryStage(pre prefetched) resolve.StageFunc {
	return func(ctx context.Context, ec *kb.EntityContext) (*kb.SourceRecord, error) {
		item, err := r.lookupItem(ctx, ec, pre)
		if err != nil {
			return nil, err
		}
		return r.recordFromItem(ec, item, r.cfg.Language), nil
	}
}

// languageFallbackStage rebuilds the record from the fallback language's
// text. The batched lookup already carries both languages, so no extra
// call is needed; the original-language label survives as AltLabel.
func (r *Resolver) languageFallbackStage(pre prefetched) resolve.StageFunc {
	return func(ctx context.Context, ec *kb.EntityContext) (*kb.SourceRecord, error) {
		fallback := r.cfg.FallbackLanguage
		if fallback == "" || fallback == r.cfg.Language {
			return nil, nil
		}
		item, err := r.lookupItem(ctx, ec, pre)
		if err != nil || item == nil {
			return nil, err
		}
		rec := r.recordFromItem(ec, item, fallback)
		if rec != nil {
			rec.AltLabel = item.Label(r.cfg.Language)
		}
		return rec, nil
	}
}

// searchFallbackStage asks wbsearchentities for the closest item and
// re-enters primary logic with its id.
func (r *Resolver) searchFallbackStage() resolve.StageFunc {
	return func(ctx context.Context, ec *kb.EntityContext) (*kb.SourceRecord, error) {
		id, err := r.client.Search(ctx, r.cfg.Language, ec.Name)
		if err != nil {
			return nil, err
		}
		if id == "" {
			return nil, nil
		}
		items, err := r.client.GetByIDs(ctx, r.cfg.Language, []string{id})
		if err != nil {
			return nil, err
		}
		rec := r.recordFromItem(ec, items[id], r.cfg.Language, r.cfg.FallbackLanguage)
		if rec != nil {
			rec.AltLabel = ec.Name
		}
		return rec, nil
	}
}

// synonymFallbackStage tries generated surface forms in one batched title
// lookup, first usable hit in synonym order wins.
func (r *Resolver) synonymFallbackStage() resolve.StageFunc {
	return func(ctx context.Context, ec *kb.EntityContext) (*kb.SourceRecord, error) {
		if r.synonyms == nil {
			return nil, nil
		}

		max := r.cfg.MaxSynonyms
		if max <= 0 {
			max = 5
		}
		syns, err := r.synonyms.Synonyms(ctx, ec.Name, ec.DeclaredType, r.cfg.Language, max)
		if err != nil {
			return nil, err
		}
		if len(syns) == 0 {
			return nil, nil
		}

		items, err := r.client.GetByTitles(ctx, r.cfg.Language, syns)
		if err != nil {
			return nil, err
		}

		var partial *kb.SourceRecord
		for _, syn := range syns {
			rec := r.recordFromItem(ec, items[syn], r.cfg.Language, r.cfg.FallbackLanguage)
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

// recordFromItem converts an item into a record using the first language
// with text, and seeds the cross-source scratch values (Q-number, sitelink
// article title) even for partial results.
func (r *Resolver) recordFromItem(ec *kb.EntityContext, item *Item, langs ...string) *kb.SourceRecord {
	if item == nil {
		return nil
	}

	ec.SetScratch(kb.ScratchWikibaseID, item.ID)
	if title, ok := item.SitelinkTitles[siteID(r.cfg.Language)]; ok {
		ec.SetScratch(kb.ScratchWikipediaTitle, title)
	}

	var label, summary string
	for _, lang := range langs {
		if label == "" {
			label = item.Label(lang)
		}
		if summary == "" {
			summary = item.Description(lang)
		}
	}

	return &kb.SourceRecord{
		Status:  kb.StatusFound,
		ID:      item.ID,
		URI:     item.URI(),
		Label:   label,
		Summary: summary,
		Types:   append([]string(nil), item.InstanceOf...),
		PartOf:  append([]string(nil), item.PartOf...),
		HasPart: append([]string(nil), item.HasPart...),
	}
}

// resolveRelationLabels rewrites Q-number relation targets into readable
// labels, one batched call for the whole entity batch. Failures leave the
// Q-numbers in place; they are still valid identifiers.
func (r *Resolver) resolveRelationLabels(ctx context.Context, resolved map[*kb.EntityContext]*kb.SourceRecord) {
	idSet := make(map[string]struct{})
	for _, rec := range resolved {
		if rec == nil {
			continue
		}
		for _, list := range [][]string{rec.Types, rec.PartOf, rec.HasPart} {
			for _, id := range list {
				idSet[id] = struct{}{}
			}
		}
	}
	if len(idSet) == 0 {
		return
	}

	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	labels, err := r.client.Labels(ctx, r.cfg.Language, ids)
	if err != nil {
		r.logger.Warnw("Relation label lookup failed, keeping item ids", "ids", len(ids), "error", err)
		return
	}

	for _, rec := range resolved {
		if rec == nil {
			continue
		}
		relabel(rec.Types, labels)
		relabel(rec.PartOf, labels)
		relabel(rec.HasPart, labels)
	}
}

func relabel(list []string, labels map[string]string) {
	for i, id := range list {
		if label, ok := labels[id]; ok && label != "" {
			list[i] = label
		}
	}
}

var _ resolve.Resolver = (*Resolver)(nil)
