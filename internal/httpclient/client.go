// Package httpclient provides the hardened HTTP client used for all
// knowledge-base endpoint calls.
package httpclient

import (
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/loreweave/loreweave/errors"
)

// MaxResponseBytes caps how much of an endpoint response is read. KB API
// responses are small; anything larger is a misbehaving upstream.
const MaxResponseBytes = 8 << 20

// Client wraps http.Client with scheme validation and a redirect cap.
type Client struct {
	*http.Client
	allowedSchemes []string
	maxRedirects   int
}

// Options customizes client construction.
type Options struct {
	MaxRedirects *int     // nil = default 10
	Schemes      []string // nil = {"http", "https"}
}

// New creates a client with default options and the given per-request timeout.
func New(timeout time.Duration) *Client {
	return NewWithOptions(timeout, Options{})
}

// NewWithOptions creates a client with custom options.
func NewWithOptions(timeout time.Duration, opts Options) *Client {
	maxRedirects := 10
	if opts.MaxRedirects != nil {
		maxRedirects = *opts.MaxRedirects
	}
	schemes := opts.Schemes
	if schemes == nil {
		schemes = []string{"http", "https"}
	}

	c := &Client{
		Client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		allowedSchemes: schemes,
		maxRedirects:   maxRedirects,
	}

	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= c.maxRedirects {
			return errors.Newf("stopped after %d redirects", c.maxRedirects)
		}
		if err := c.validateURL(req.URL); err != nil {
			return errors.Wrap(err, "redirect blocked")
		}
		return nil
	}

	return c
}

// Do validates the request URL before delegating to http.Client.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := c.validateURL(req.URL); err != nil {
		return nil, err
	}
	return c.Client.Do(req)
}

// ReadBody drains and closes a response body, bounded by MaxResponseBytes.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}
	return body, nil
}

func (c *Client) validateURL(u *url.URL) error {
	if u == nil {
		return errors.New("nil URL")
	}
	for _, scheme := range c.allowedSchemes {
		if u.Scheme == scheme {
			return nil
		}
	}
	return errors.Newf("scheme %q not allowed", u.Scheme)
}
