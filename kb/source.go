// Package kb defines the data model for knowledge-base entity resolution:
// sources, per-source records, and the per-entity accumulator that the
// cascade stages write into.
package kb

// Source identifies one external knowledge base.
type Source string

const (
	// SourceWikipedia is the encyclopedia (MediaWiki action API)
	SourceWikipedia Source = "wikipedia"
	// SourceWikidata is the structured-data graph
	SourceWikidata Source = "wikidata"
	// SourceDBpedia is the abstract/ontology graph (SPARQL)
	SourceDBpedia Source = "dbpedia"
)

// AllSources lists sources in the fixed resolution order. Order matters:
// wikipedia runs first because its pageprops seed the wikidata lookup, and
// its titles seed dbpedia resource URIs.
var AllSources = []Source{SourceWikipedia, SourceWikidata, SourceDBpedia}

// Valid reports whether s names a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceWikipedia, SourceWikidata, SourceDBpedia:
		return true
	}
	return false
}

// Stage identifies which cascade stage produced a result (provenance).
type Stage string

const (
	StageCache            Stage = "CACHE"
	StagePrimary          Stage = "PRIMARY"
	StageLanguageFallback Stage = "LANGUAGE_FALLBACK"
	StageSearchFallback   Stage = "SEARCH_FALLBACK"
	StageSynonymFallback  Stage = "SYNONYM_FALLBACK"
	StageScrapeFallback   Stage = "SCRAPE_FALLBACK"
	StageNotFound         Stage = "NOT_FOUND"
)

// RecordStatus is the terminal disposition of one source lookup.
type RecordStatus string

const (
	StatusPending  RecordStatus = "pending"
	StatusFound    RecordStatus = "found"
	StatusNotFound RecordStatus = "not_found"
	StatusError    RecordStatus = "error"
)

// Scratch keys for cross-source seeding. A resolver that discovers an
// identifier in another source's namespace stores it under these keys;
// later resolvers prefer identifier lookup over name lookup.
const (
	ScratchWikibaseID     = "wikibase_id"
	ScratchWikipediaTitle = "wikipedia_title"
	ScratchDBpediaURI     = "dbpedia_uri"
	ScratchWikipediaURL   = "wikipedia_url"
)
