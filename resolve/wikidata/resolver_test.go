package wikidata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loreweave/loreweave/cache"
	"github.com/loreweave/loreweave/db"
	lwtest "github.com/loreweave/loreweave/internal/testing"
	"github.com/loreweave/loreweave/kb"
	"github.com/loreweave/loreweave/ratelimit"
)

// stubItem is the canned upstream state for one Q-number.
type stubItem struct {
	labels       map[string]string
	descriptions map[string]string
	instanceOf   []string
	partOf       []string
	sitelinks    map[string]string // site id -> article title
}

// stubWikibase serves wbgetentities and wbsearchentities from canned data
// and records every request for lookup-mode assertions.
type stubWikibase struct {
	items  map[string]stubItem // by Q-number
	titles map[string]string   // enwiki title -> Q-number
	search map[string]string   // search term -> Q-number

	mu       sync.Mutex
	requests []string // query strings in arrival order
}

func (s *stubWikibase) recordedRequests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *stubWikibase) entityJSON(id string) map[string]interface{} {
	item := s.items[id]
	labels := map[string]interface{}{}
	for lang, v := range item.labels {
		labels[lang] = map[string]string{"language": lang, "value": v}
	}
	descriptions := map[string]interface{}{}
	for lang, v := range item.descriptions {
		descriptions[lang] = map[string]string{"language": lang, "value": v}
	}
	claims := map[string]interface{}{}
	addClaims := func(prop string, targets []string) {
		var list []interface{}
		for _, target := range targets {
			list = append(list, map[string]interface{}{
				"mainsnak": map[string]interface{}{
					"datavalue": map[string]interface{}{
						"type":  "wikibase-entityid",
						"value": map[string]string{"id": target},
					},
				},
			})
		}
		if list != nil {
			claims[prop] = list
		}
	}
	addClaims("P31", item.instanceOf)
	addClaims("P361", item.partOf)

	sitelinks := map[string]interface{}{}
	for site, title := range item.sitelinks {
		sitelinks[site] = map[string]string{"site": site, "title": title}
	}
	return map[string]interface{}{
		"id":           id,
		"labels":       labels,
		"descriptions": descriptions,
		"claims":       claims,
		"sitelinks":    sitelinks,
	}
}

func (s *stubWikibase) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.URL.RawQuery)
		s.mu.Unlock()

		q := r.URL.Query()
		switch q.Get("action") {
		case "wbgetentities":
			entities := map[string]interface{}{}
			if ids := q.Get("ids"); ids != "" {
				for _, id := range strings.Split(ids, "|") {
					if _, ok := s.items[id]; ok {
						entities[id] = s.entityJSON(id)
					} else {
						entities[id] = map[string]interface{}{"id": id, "missing": ""}
					}
				}
			} else {
				missing := -1
				for _, title := range strings.Split(q.Get("titles"), "|") {
					if id, ok := s.titles[title]; ok {
						entities[id] = s.entityJSON(id)
					} else {
						entities[itoa(missing)] = map[string]interface{}{
							"site": q.Get("sites"), "title": title, "missing": "",
						}
						missing--
					}
				}
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"entities": entities})

		case "wbsearchentities":
			var results []interface{}
			if id, ok := s.search[q.Get("search")]; ok {
				results = append(results, map[string]string{"id": id, "label": s.items[id].labels["en"]})
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"search": results})

		default:
			http.Error(w, "unknown action", http.StatusBadRequest)
		}
	})
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func newTestResolver(t *testing.T, stub *stubWikibase) *Resolver {
	t.Helper()

	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	testDB := lwtest.CreateTestDB(t)
	require.NoError(t, db.Migrate(testDB, nil))
	store := cache.NewStore(testDB, nil)

	limiter := ratelimit.NewLimiter(1000, time.Minute)
	client := NewClient(srv.URL, 5*time.Second, limiter, ratelimit.DefaultBackoff(), nil)

	return NewResolver(Config{
		Language:         "en",
		FallbackLanguage: "en",
		MinSummaryLength: 10,
		BatchSize:        50,
	}, client, store, nil, nil)
}

func berlinStub() *stubWikibase {
	return &stubWikibase{
		items: map[string]stubItem{
			"Q64": {
				labels:       map[string]string{"en": "Berlin", "de": "Berlin"},
				descriptions: map[string]string{"en": "capital and largest city of Germany"},
				instanceOf:   []string{"Q515"},
				partOf:       []string{"Q183"},
				sitelinks:    map[string]string{"enwiki": "Berlin"},
			},
			"Q515": {labels: map[string]string{"en": "city"}},
			"Q183": {labels: map[string]string{"en": "Germany"}},
		},
		titles: map[string]string{"Berlin": "Q64"},
		search: map[string]string{},
	}
}

// A Q-number seeded by an earlier source forces an id lookup; the name is
// never sent.
func TestResolver_SeededIdentifierLookup(t *testing.T) {
	stub := berlinStub()
	r := newTestResolver(t, stub)

	ec := kb.NewEntityContext(kb.Entity{Name: "The German Capital", PreKnownID: "Q64"}, "en")
	require.NoError(t, r.Resolve(context.Background(), []*kb.EntityContext{ec}))

	rec := ec.Record(kb.SourceWikidata)
	require.NotNil(t, rec)
	assert.Equal(t, kb.StatusFound, rec.Status)
	assert.Equal(t, kb.StagePrimary, rec.Provenance)
	assert.Equal(t, "Q64", rec.ID)
	assert.Equal(t, "http://www.wikidata.org/entity/Q64", rec.URI)
	assert.Equal(t, "Berlin", rec.Label)

	for _, query := range stub.recordedRequests() {
		assert.NotContains(t, query, "German+Capital", "lookup must be id-based, not name-based")
	}
	requests := stub.recordedRequests()
	require.NotEmpty(t, requests)
	assert.Contains(t, requests[0], "ids=Q64")
}

// Claim targets come back as labels, not Q-numbers.
func TestResolver_RelationLabels(t *testing.T) {
	r := newTestResolver(t, berlinStub())

	ec := kb.NewEntityContext(kb.Entity{Name: "Berlin"}, "en")
	require.NoError(t, r.Resolve(context.Background(), []*kb.EntityContext{ec}))

	rec := ec.Record(kb.SourceWikidata)
	require.NotNil(t, rec)
	assert.Equal(t, []string{"city"}, rec.Types)
	assert.Equal(t, []string{"Germany"}, rec.PartOf)
}

// A title lookup seeds the sitelink article title for later sources.
func TestResolver_SeedsSitelinkTitle(t *testing.T) {
	r := newTestResolver(t, berlinStub())

	ec := kb.NewEntityContext(kb.Entity{Name: "Berlin"}, "en")
	require.NoError(t, r.Resolve(context.Background(), []*kb.EntityContext{ec}))

	qid, ok := ec.GetScratch(kb.ScratchWikibaseID)
	require.True(t, ok)
	assert.Equal(t, "Q64", qid)

	title, ok := ec.GetScratch(kb.ScratchWikipediaTitle)
	require.True(t, ok)
	assert.Equal(t, "Berlin", title)
}

// The fuzzy search recovers entities whose name matches no title.
func TestResolver_SearchFallback(t *testing.T) {
	stub := berlinStub()
	stub.search["Berlln"] = "Q64"
	r := newTestResolver(t, stub)

	ec := kb.NewEntityContext(kb.Entity{Name: "Berlln"}, "en")
	require.NoError(t, r.Resolve(context.Background(), []*kb.EntityContext{ec}))

	rec := ec.Record(kb.SourceWikidata)
	require.NotNil(t, rec)
	assert.Equal(t, kb.StatusFound, rec.Status)
	assert.Equal(t, kb.StageSearchFallback, rec.Provenance)
	assert.Equal(t, 3, rec.Attempts)
	assert.Equal(t, "Q64", rec.ID)
	assert.Equal(t, "Berlln", rec.AltLabel)
}

// The fallback language supplies the description when the configured one
// has none.
func TestResolver_LanguageFallback(t *testing.T) {
	stub := &stubWikibase{
		items: map[string]stubItem{
			"Q1726": {
				labels:       map[string]string{"en": "Munich", "de": "München"},
				descriptions: map[string]string{"en": "capital of Bavaria, Germany"},
				sitelinks:    map[string]string{"dewiki": "München", "enwiki": "Munich"},
			},
		},
		titles: map[string]string{"München": "Q1726"},
		search: map[string]string{},
	}
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	testDB := lwtest.CreateTestDB(t)
	require.NoError(t, db.Migrate(testDB, nil))
	store := cache.NewStore(testDB, nil)

	limiter := ratelimit.NewLimiter(1000, time.Minute)
	client := NewClient(srv.URL, 5*time.Second, limiter, ratelimit.DefaultBackoff(), nil)
	r := NewResolver(Config{
		Language:         "de",
		FallbackLanguage: "en",
		MinSummaryLength: 10,
		BatchSize:        50,
	}, client, store, nil, nil)

	ec := kb.NewEntityContext(kb.Entity{Name: "München"}, "de")
	require.NoError(t, r.Resolve(context.Background(), []*kb.EntityContext{ec}))

	rec := ec.Record(kb.SourceWikidata)
	require.NotNil(t, rec)
	assert.Equal(t, kb.StatusFound, rec.Status)
	assert.Equal(t, kb.StageLanguageFallback, rec.Provenance)
	assert.Equal(t, 2, rec.Attempts)
	assert.Equal(t, "capital of Bavaria, Germany", rec.Summary)
	assert.Equal(t, "München", rec.AltLabel, "original-language label kept as auxiliary")

	// The fallback rebuilds the record from the prefetched batch; the
	// Q-number seeded by the primary stage must not trigger a second
	// wbgetentities call.
	requests := stub.recordedRequests()
	require.Len(t, requests, 1)
	assert.Contains(t, requests[0], "titles=M")
}

// All stages empty: terminal not_found, entity still present.
func TestResolver_Exhausted(t *testing.T) {
	stub := &stubWikibase{items: map[string]stubItem{}, titles: map[string]string{}, search: map[string]string{}}
	r := newTestResolver(t, stub)

	ec := kb.NewEntityContext(kb.Entity{Name: "NonExistentXYZ"}, "en")
	require.NoError(t, r.Resolve(context.Background(), []*kb.EntityContext{ec}))

	rec := ec.Record(kb.SourceWikidata)
	require.NotNil(t, rec)
	assert.Equal(t, kb.StatusNotFound, rec.Status)
	// primary, language, search, synonym
	assert.Equal(t, 4, rec.Attempts)
}

// A cached id-keyed record short-circuits without any network call.
func TestResolver_CachedByIdentifier(t *testing.T) {
	stub := berlinStub()
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	testDB := lwtest.CreateTestDB(t)
	require.NoError(t, db.Migrate(testDB, nil))
	store := cache.NewStore(testDB, nil)

	cached := &kb.SourceRecord{Status: kb.StatusFound, ID: "Q64", Summary: "capital and largest city of Germany"}
	require.NoError(t, store.Put(context.Background(), cache.IDKey("wikidata", "Q64"), "wikidata", cached))

	limiter := ratelimit.NewLimiter(1000, time.Minute)
	client := NewClient(srv.URL, 5*time.Second, limiter, ratelimit.DefaultBackoff(), nil)
	r := NewResolver(Config{Language: "en", MinSummaryLength: 10, BatchSize: 50}, client, store, nil, nil)

	ec := kb.NewEntityContext(kb.Entity{Name: "Berlin", PreKnownID: "Q64"}, "en")
	require.NoError(t, r.Resolve(context.Background(), []*kb.EntityContext{ec}))

	rec := ec.Record(kb.SourceWikidata)
	require.NotNil(t, rec)
	assert.Equal(t, kb.StageCache, rec.Provenance)
	assert.Equal(t, 0, rec.Attempts)
	assert.Empty(t, stub.recordedRequests())
}
