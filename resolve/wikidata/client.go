// Package wikidata resolves entities against the Wikibase structured-data
// graph: wbgetentities for direct lookups, wbsearchentities for fuzzy
// matching, claim traversal for type and part-of relations.
package wikidata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/loreweave/loreweave/errors"
	"github.com/loreweave/loreweave/internal/httpclient"
	"github.com/loreweave/loreweave/ratelimit"
	"github.com/loreweave/loreweave/resolve"
)

// MaxIDsPerQuery is the wbgetentities hard cap.
const MaxIDsPerQuery = 50

// Wikibase property ids carrying the relations we extract.
const (
	propInstanceOf = "P31"
	propPartOf     = "P361"
	propHasPart    = "P527"
)

// conceptURIPrefix builds the canonical entity URI from an item id.
const conceptURIPrefix = "http://www.wikidata.org/entity/"

// Item is one Wikibase entity reduced to the fields the resolver uses.
// Labels and Descriptions are keyed by language; relation slices hold
// target item ids (Q-numbers), resolved to labels separately.
type Item struct {
	ID             string
	Labels         map[string]string
	Descriptions   map[string]string
	InstanceOf     []string
	PartOf         []string
	HasPart        []string
	SitelinkTitles map[string]string // site id ("enwiki") -> article title
}

// URI returns the canonical concept URI for the item.
func (it *Item) URI() string {
	return conceptURIPrefix + it.ID
}

// Label returns the item label in lang, or "" when absent.
func (it *Item) Label(lang string) string {
	return it.Labels[lang]
}

// Description returns the item description in lang, or "" when absent.
func (it *Item) Description(lang string) string {
	return it.Descriptions[lang]
}

// Client wraps the Wikibase action API behind the shared rate limiter.
type Client struct {
	endpoint   string
	httpClient *httpclient.Client
	limiter    *ratelimit.Limiter
	backoff    *ratelimit.Backoff
	logger     *zap.SugaredLogger
}

func NewClient(endpoint string, timeout time.Duration, limiter *ratelimit.Limiter, backoff *ratelimit.Backoff, logger *zap.SugaredLogger) *Client {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: httpclient.New(timeout),
		limiter:    limiter,
		backoff:    backoff,
		logger:     logger,
	}
}

func (c *Client) get(ctx context.Context, params url.Values) ([]byte, error) {
	params.Set("format", "json")

	var body []byte
	err := c.limiter.Do(ctx, c.backoff, c.logger, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
		if err != nil {
			return errors.Wrap(err, "build wikidata request")
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return resolve.ClassifyNetErr(err, c.endpoint)
		}
		if err := resolve.ClassifyStatus(resp.StatusCode, c.endpoint); err != nil {
			resp.Body.Close()
			return err
		}
		body, err = httpclient.ReadBody(resp)
		return err
	})
	return body, err
}

// API response shapes. Claims carry the mainsnak only; qualifiers and
// references are irrelevant here.
type apiText struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

type apiSnak struct {
	Datavalue struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	} `json:"datavalue"`
}

type apiClaim struct {
	Mainsnak apiSnak `json:"mainsnak"`
}

type apiEntity struct {
	ID           string                `json:"id"`
	Missing      *string               `json:"missing"`
	Site         string                `json:"site"`  // set on unresolved title lookups
	Title        string                `json:"title"` // set on unresolved title lookups
	Labels       map[string]apiText    `json:"labels"`
	Descriptions map[string]apiText    `json:"descriptions"`
	Claims       map[string][]apiClaim `json:"claims"`
	Sitelinks    map[string]struct {
		Site  string `json:"site"`
		Title string `json:"title"`
	} `json:"sitelinks"`
}

type getEntitiesResponse struct {
	Entities map[string]apiEntity `json:"entities"`
	Error    *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

// GetByIDs fetches items by Q-number, up to MaxIDsPerQuery per call.
// Missing ids are absent from the result map. Label and description come
// from lang, falling back through the languages wbgetentities returns.
func (c *Client) GetByIDs(ctx context.Context, lang string, ids []string) (map[string]*Item, error) {
	if len(ids) == 0 {
		return map[string]*Item{}, nil
	}
	if len(ids) > MaxIDsPerQuery {
		return nil, errors.Newf("wbgetentities accepts at most %d ids, got %d", MaxIDsPerQuery, len(ids))
	}

	params := url.Values{
		"action":    {"wbgetentities"},
		"ids":       {strings.Join(ids, "|")},
		"props":     {"labels|descriptions|claims|sitelinks"},
		"languages": {languagesParam(lang)},
	}
	ents, err := c.getEntities(ctx, params)
	if err != nil {
		return nil, err
	}

	items := make(map[string]*Item, len(ents))
	for id, ent := range ents {
		if ent.Missing != nil {
			continue
		}
		items[id] = itemFromEntity(ent)
	}
	return items, nil
}

// GetByTitles fetches items via their sitelink on the given wiki
// ("enwiki" for lang "en"). The result is keyed by the requested title;
// unresolved titles are absent.
func (c *Client) GetByTitles(ctx context.Context, lang string, titles []string) (map[string]*Item, error) {
	if len(titles) == 0 {
		return map[string]*Item{}, nil
	}
	if len(titles) > MaxIDsPerQuery {
		return nil, errors.Newf("wbgetentities accepts at most %d titles, got %d", MaxIDsPerQuery, len(titles))
	}

	params := url.Values{
		"action":    {"wbgetentities"},
		"sites":     {siteID(lang)},
		"titles":    {strings.Join(titles, "|")},
		"props":     {"labels|descriptions|claims|sitelinks"},
		"languages": {languagesParam(lang)},
		"normalize": {"1"},
	}
	ents, err := c.getEntities(ctx, params)
	if err != nil {
		return nil, err
	}

	// Title lookups come back keyed by item id; the requested title is
	// recoverable from the item's own sitelink. Unresolved titles appear
	// as negative-keyed stubs carrying site+title.
	site := siteID(lang)
	items := make(map[string]*Item, len(ents))
	for _, ent := range ents {
		if ent.Missing != nil || ent.ID == "" {
			continue
		}
		item := itemFromEntity(ent)
		if title, ok := item.SitelinkTitles[site]; ok {
			items[title] = item
		}
	}

	// Map normalized sitelink titles back to what the caller asked for
	for _, requested := range titles {
		if _, ok := items[requested]; ok {
			continue
		}
		norm := strings.ReplaceAll(requested, "_", " ")
		if item, ok := items[norm]; ok {
			items[requested] = item
		}
	}
	return items, nil
}

func (c *Client) getEntities(ctx context.Context, params url.Values) (map[string]apiEntity, error) {
	body, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}
	var decoded getEntitiesResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decode wbgetentities response"), errors.ErrMalformed)
	}
	if decoded.Error != nil {
		return nil, errors.Mark(errors.Newf("wbgetentities: %s: %s", decoded.Error.Code, decoded.Error.Info), errors.ErrMalformed)
	}
	return decoded.Entities, nil
}

type searchResponse struct {
	Search []struct {
		ID    string `json:"id"`
		Label string `json:"label"`
	} `json:"search"`
}

// Search runs wbsearchentities and returns the best-matching item id, or
// "" when nothing matches.
func (c *Client) Search(ctx context.Context, lang, name string) (string, error) {
	params := url.Values{
		"action":   {"wbsearchentities"},
		"search":   {name},
		"language": {lang},
		"type":     {"item"},
		"limit":    {"1"},
	}
	body, err := c.get(ctx, params)
	if err != nil {
		return "", err
	}
	var decoded searchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", errors.Mark(errors.Wrap(err, "decode wbsearchentities response"), errors.ErrMalformed)
	}
	if len(decoded.Search) == 0 {
		return "", nil
	}
	return decoded.Search[0].ID, nil
}

// Labels resolves item ids to labels in lang, used to turn claim targets
// into readable type and relation names. Unknown ids map to themselves.
func (c *Client) Labels(ctx context.Context, lang string, ids []string) (map[string]string, error) {
	labels := make(map[string]string, len(ids))
	for _, id := range ids {
		labels[id] = id
	}
	for start := 0; start < len(ids); start += MaxIDsPerQuery {
		end := start + MaxIDsPerQuery
		if end > len(ids) {
			end = len(ids)
		}
		params := url.Values{
			"action":    {"wbgetentities"},
			"ids":       {strings.Join(ids[start:end], "|")},
			"props":     {"labels"},
			"languages": {languagesParam(lang)},
		}
		ents, err := c.getEntities(ctx, params)
		if err != nil {
			return nil, err
		}
		for id, ent := range ents {
			if text, ok := pickText(ent.Labels, lang); ok {
				labels[id] = text
			}
		}
	}
	return labels, nil
}

func itemFromEntity(ent apiEntity) *Item {
	item := &Item{
		ID:             ent.ID,
		Labels:         make(map[string]string, len(ent.Labels)),
		Descriptions:   make(map[string]string, len(ent.Descriptions)),
		InstanceOf:     claimTargets(ent.Claims[propInstanceOf]),
		PartOf:         claimTargets(ent.Claims[propPartOf]),
		HasPart:        claimTargets(ent.Claims[propHasPart]),
		SitelinkTitles: make(map[string]string, len(ent.Sitelinks)),
	}
	for lang, text := range ent.Labels {
		if text.Value != "" {
			item.Labels[lang] = text.Value
		}
	}
	for lang, text := range ent.Descriptions {
		if text.Value != "" {
			item.Descriptions[lang] = text.Value
		}
	}
	for _, link := range ent.Sitelinks {
		item.SitelinkTitles[link.Site] = link.Title
	}
	return item
}

// claimTargets extracts wikibase-entityid targets from a claim list.
func claimTargets(claims []apiClaim) []string {
	var targets []string
	for _, claim := range claims {
		if claim.Mainsnak.Datavalue.Type != "wikibase-entityid" {
			continue
		}
		var value struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(claim.Mainsnak.Datavalue.Value, &value); err != nil || value.ID == "" {
			continue
		}
		targets = append(targets, value.ID)
	}
	return targets
}

func pickText(texts map[string]apiText, lang string) (string, bool) {
	if text, ok := texts[lang]; ok && text.Value != "" {
		return text.Value, true
	}
	return "", false
}

// languagesParam asks for the configured language plus English so the
// fallback has material to work with in the same response.
func languagesParam(lang string) string {
	if lang == "en" {
		return "en"
	}
	return lang + "|en"
}

// siteID maps a language code to its Wikipedia site id.
func siteID(lang string) string {
	return lang + "wiki"
}
