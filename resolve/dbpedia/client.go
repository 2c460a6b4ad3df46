// Package dbpedia resolves entities against the abstract/ontology graph
// through its SPARQL endpoint. Resource URIs derive from encyclopedia
// article titles, so a title seeded by an earlier source maps directly to
// a resource; batching uses one VALUES clause per entity batch.
package dbpedia

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

// MaxResourcesPerQuery bounds the VALUES clause; public endpoints reject
// oversized queries long before this.
const MaxResourcesPerQuery = 20

const resourcePrefix = "http://dbpedia.org/resource/"

// Resource is one graph node reduced to the fields the resolver uses.
// Abstracts is keyed by language.
type Resource struct {
	URI       string
	Label     string
	Abstracts map[string]string
	Types     []string
	Subjects  []string
	PartOf    []string
	HasPart   []string
}

// Abstract returns the abstract in lang, or "" when absent.
func (r *Resource) Abstract(lang string) string {
	return r.Abstracts[lang]
}

// ResourceURI derives the canonical resource URI from an article title.
func ResourceURI(title string) string {
	return resourcePrefix + strings.ReplaceAll(strings.TrimSpace(title), " ", "_")
}

// TitleFromURI recovers the human-readable title from a resource URI.
func TitleFromURI(uri string) string {
	name := strings.TrimPrefix(uri, resourcePrefix)
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return strings.ReplaceAll(name, "_", " ")
}

// Client wraps a SPARQL endpoint behind the shared rate limiter.
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

// sparqlResponse is the SPARQL 1.1 JSON results format.
type sparqlResponse struct {
	Results struct {
		Bindings []map[string]struct {
			Type  string `json:"type"`
			Value string `json:"value"`
			Lang  string `json:"xml:lang"`
		} `json:"bindings"`
	} `json:"results"`
}

func (c *Client) query(ctx context.Context, sparql string) (*sparqlResponse, error) {
	params := url.Values{
		"query":  {sparql},
		"format": {"application/sparql-results+json"},
	}

	var body []byte
	err := c.limiter.Do(ctx, c.backoff, c.logger, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
		if err != nil {
			return errors.Wrap(err, "build sparql request")
		}
		req.Header.Set("Accept", "application/sparql-results+json")
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
	if err != nil {
		return nil, err
	}

	var decoded sparqlResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decode sparql response"), errors.ErrMalformed)
	}
	return &decoded, nil
}

// Describe fetches abstracts, labels, ontology types, subjects and
// part-of relations for up to MaxResourcesPerQuery resources in one
// query. Unknown resources are absent from the result map.
func (c *Client) Describe(ctx context.Context, lang string, uris []string) (map[string]*Resource, error) {
	if len(uris) == 0 {
		return map[string]*Resource{}, nil
	}
	if len(uris) > MaxResourcesPerQuery {
		return nil, errors.Newf("describe accepts at most %d resources, got %d", MaxResourcesPerQuery, len(uris))
	}

	var values strings.Builder
	for _, uri := range uris {
		values.WriteString("<" + uri + "> ")
	}

	sparql := `SELECT ?s ?label ?abstract ?type ?subject ?partOf ?hasPart WHERE {
  VALUES ?s { ` + values.String() + `}
  OPTIONAL { ?s rdfs:label ?label . FILTER(lang(?label) = "` + lang + `") }
  OPTIONAL { ?s dbo:abstract ?abstract . FILTER(lang(?abstract) = "` + lang + `" || lang(?abstract) = "en") }
  OPTIONAL { ?s rdf:type ?type . FILTER(strstarts(str(?type), "http://dbpedia.org/ontology/")) }
  OPTIONAL { ?s dct:subject ?subject }
  OPTIONAL { ?s dbo:isPartOf ?partOf }
  OPTIONAL { ?hasPart dbo:isPartOf ?s }
}`

	decoded, err := c.query(ctx, sparql)
	if err != nil {
		return nil, err
	}

	resources := make(map[string]*Resource)
	for _, binding := range decoded.Results.Bindings {
		subject, ok := binding["s"]
		if !ok || subject.Value == "" {
			continue
		}
		res := resources[subject.Value]
		if res == nil {
			res = &Resource{URI: subject.Value, Abstracts: map[string]string{}}
			resources[subject.Value] = res
		}
		if v, ok := binding["label"]; ok && res.Label == "" {
			res.Label = v.Value
		}
		if v, ok := binding["abstract"]; ok && v.Value != "" {
			lang := v.Lang
			if lang == "" {
				lang = "en"
			}
			if _, seen := res.Abstracts[lang]; !seen {
				res.Abstracts[lang] = v.Value
			}
		}
		if v, ok := binding["type"]; ok {
			res.Types = appendUnique(res.Types, localName(v.Value))
		}
		if v, ok := binding["subject"]; ok {
			res.Subjects = appendUnique(res.Subjects, categoryName(v.Value))
		}
		if v, ok := binding["partOf"]; ok {
			res.PartOf = appendUnique(res.PartOf, TitleFromURI(v.Value))
		}
		if v, ok := binding["hasPart"]; ok {
			res.HasPart = appendUnique(res.HasPart, TitleFromURI(v.Value))
		}
	}
	return resources, nil
}

// SearchByLabel finds the resource whose label exactly matches name in
// lang, returning "" when nothing matches.
func (c *Client) SearchByLabel(ctx context.Context, lang, name string) (string, error) {
	sparql := `SELECT ?s WHERE { ?s rdfs:label "` + escapeLiteral(name) + `"@` + lang + ` . ?s dbo:abstract ?a } LIMIT 1`

	decoded, err := c.query(ctx, sparql)
	if err != nil {
		return "", err
	}
	if len(decoded.Results.Bindings) == 0 {
		return "", nil
	}
	if v, ok := decoded.Results.Bindings[0]["s"]; ok {
		return v.Value, nil
	}
	return "", nil
}

// escapeLiteral escapes a string for inclusion in a SPARQL literal.
func escapeLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}

// localName strips an ontology namespace down to the class name.
func localName(uri string) string {
	if i := strings.LastIndexAny(uri, "/#"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}

// categoryName turns a category URI into its readable name.
func categoryName(uri string) string {
	name := localName(uri)
	name = strings.TrimPrefix(name, "Category:")
	return strings.ReplaceAll(name, "_", " ")
}

func appendUnique(list []string, v string) []string {
	if v == "" {
		return list
	}
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
