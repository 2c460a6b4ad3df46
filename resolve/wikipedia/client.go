// Package wikipedia resolves entities against the encyclopedia via the
// MediaWiki action API, with a rendered-page scrape as the last resort.
package wikipedia

import (
	"context"
	"encoding/json"
	"fmt"
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

// MaxTitlesPerQuery is the MediaWiki limit for batched title queries.
const MaxTitlesPerQuery = 50

// Page is one article as returned by the batched query API.
type Page struct {
	Title        string
	Missing      bool
	Extract      string
	FullURL      string
	WikibaseItem string
	Categories   []string
}

// Client wraps the MediaWiki action API for one wiki family. Endpoint is
// a template with one %s verb for the language subdomain.
type Client struct {
	endpointTemplate string
	httpClient       *httpclient.Client
	limiter          *ratelimit.Limiter
	backoff          *ratelimit.Backoff
	logger           *zap.SugaredLogger
}

// NewClient creates a MediaWiki client. limiter is the shared admission
// gate for this endpoint class; logger may be nil.
func NewClient(endpointTemplate string, timeout time.Duration, limiter *ratelimit.Limiter, backoff *ratelimit.Backoff, logger *zap.SugaredLogger) *Client {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Client{
		endpointTemplate: endpointTemplate,
		httpClient:       httpclient.New(timeout),
		limiter:          limiter,
		backoff:          backoff,
		logger:           logger,
	}
}

func (c *Client) endpoint(lang string) string {
	if strings.Contains(c.endpointTemplate, "%s") {
		return fmt.Sprintf(c.endpointTemplate, lang)
	}
	return c.endpointTemplate
}

// get performs one rate-limited API call and decodes the JSON body into
// out. Throttling is retried inside the limiter; other failures are
// classified for the cascade.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	var body []byte
	err := c.limiter.Do(ctx, c.backoff, c.logger, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
		if err != nil {
			return errors.Wrap(err, "create request")
		}
		req.Header.Set("User-Agent", "loreweave/1.0 (entity enrichment)")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return resolve.ClassifyNetErr(err, endpoint)
		}
		b, err := httpclient.ReadBody(resp)
		if err != nil {
			return err
		}
		if err := resolve.ClassifyStatus(resp.StatusCode, endpoint); err != nil {
			return err
		}
		body = b
		return nil
	})
	return body, err
}

// queryResponse covers action=query with formatversion=2.
type queryResponse struct {
	Query struct {
		Normalized []titleMapping `json:"normalized"`
		Redirects  []titleMapping `json:"redirects"`
		Pages      []struct {
			Title     string `json:"title"`
			Missing   bool   `json:"missing"`
			Extract   string `json:"extract"`
			FullURL   string `json:"fullurl"`
			PageProps struct {
				WikibaseItem string `json:"wikibase_item"`
			} `json:"pageprops"`
			Categories []struct {
				Title string `json:"title"`
			} `json:"categories"`
			LangLinks []struct {
				Lang  string `json:"lang"`
				Title string `json:"title"`
			} `json:"langlinks"`
		} `json:"pages"`
	} `json:"query"`
}

type titleMapping struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// QueryPages runs one batched query for up to MaxTitlesPerQuery titles,
// following redirects, and returns results keyed by the requested title.
// Missing pages are present in the map with Missing set, so callers can
// tell "looked up, absent" from "not part of this batch".
func (c *Client) QueryPages(ctx context.Context, lang string, titles []string) (map[string]*Page, error) {
	if len(titles) == 0 {
		return map[string]*Page{}, nil
	}
	if len(titles) > MaxTitlesPerQuery {
		return nil, errors.Newf("too many titles in one query: %d > %d", len(titles), MaxTitlesPerQuery)
	}

	endpoint := c.endpoint(lang)
	params := url.Values{
		"action":        {"query"},
		"format":        {"json"},
		"formatversion": {"2"},
		"redirects":     {"1"},
		"titles":        {strings.Join(titles, "|")},
		"prop":          {"extracts|pageprops|info|categories"},
		"exintro":       {"1"},
		"explaintext":   {"1"},
		"inprop":        {"url"},
		"ppprop":        {"wikibase_item"},
		"cllimit":       {"20"},
		"clshow":        {"!hidden"},
	}

	body, err := c.get(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	var parsed queryResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decode query response"), errors.ErrMalformed)
	}

	// Requested title -> canonical title, through normalization then
	// redirect resolution
	forward := make(map[string]string, len(titles))
	for _, t := range titles {
		forward[t] = t
	}
	apply := func(mappings []titleMapping) {
		for requested, current := range forward {
			for _, m := range mappings {
				if m.From == current {
					forward[requested] = m.To
					break
				}
			}
		}
	}
	apply(parsed.Query.Normalized)
	apply(parsed.Query.Redirects)

	byCanonical := make(map[string]*Page, len(parsed.Query.Pages))
	for _, p := range parsed.Query.Pages {
		page := &Page{
			Title:        p.Title,
			Missing:      p.Missing,
			Extract:      strings.TrimSpace(p.Extract),
			FullURL:      p.FullURL,
			WikibaseItem: p.PageProps.WikibaseItem,
		}
		for _, cat := range p.Categories {
			page.Categories = append(page.Categories, strings.TrimPrefix(cat.Title, "Category:"))
		}
		byCanonical[p.Title] = page
	}

	out := make(map[string]*Page, len(titles))
	for requested, canonical := range forward {
		if page, ok := byCanonical[canonical]; ok {
			out[requested] = page
		}
	}
	return out, nil
}

// LangLink returns the title of the article in targetLang linked from
// title in lang, or "" when no link exists.
func (c *Client) LangLink(ctx context.Context, lang, title, targetLang string) (string, error) {
	endpoint := c.endpoint(lang)
	params := url.Values{
		"action":        {"query"},
		"format":        {"json"},
		"formatversion": {"2"},
		"redirects":     {"1"},
		"titles":        {title},
		"prop":          {"langlinks"},
		"lllang":        {targetLang},
	}

	body, err := c.get(ctx, endpoint, params)
	if err != nil {
		return "", err
	}

	var parsed queryResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", errors.Mark(errors.Wrap(err, "decode langlinks response"), errors.ErrMalformed)
	}

	for _, p := range parsed.Query.Pages {
		for _, ll := range p.LangLinks {
			if ll.Lang == targetLang && ll.Title != "" {
				return ll.Title, nil
			}
		}
	}
	return "", nil
}

// OpenSearch returns the closest-title suggestion for name, or "" when
// the endpoint has nothing.
func (c *Client) OpenSearch(ctx context.Context, lang, name string) (string, error) {
	endpoint := c.endpoint(lang)
	params := url.Values{
		"action":    {"opensearch"},
		"format":    {"json"},
		"search":    {name},
		"limit":     {"3"},
		"redirects": {"resolve"},
	}

	body, err := c.get(ctx, endpoint, params)
	if err != nil {
		return "", err
	}

	// Response shape: [query, [titles], [descriptions], [urls]]
	var parsed []json.RawMessage
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed) < 2 {
		return "", errors.Mark(errors.New("unexpected opensearch response shape"), errors.ErrMalformed)
	}
	var suggestions []string
	if err := json.Unmarshal(parsed[1], &suggestions); err != nil {
		return "", errors.Mark(errors.Wrap(err, "decode opensearch suggestions"), errors.ErrMalformed)
	}
	if len(suggestions) == 0 {
		return "", nil
	}
	return suggestions[0], nil
}
