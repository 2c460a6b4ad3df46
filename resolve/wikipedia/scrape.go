package wikipedia

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"golang.org/x/net/html"

	"github.com/loreweave/loreweave/errors"
	"github.com/loreweave/loreweave/internal/httpclient"
	"github.com/loreweave/loreweave/resolve"
)

// ScrapedPage is what the last-resort page scrape extracts from the
// rendered article structure.
type ScrapedPage struct {
	Title      string
	Summary    string
	Categories []string
}

// FetchPage fetches a rendered article page and extracts title, first
// content paragraph and visible categories. Used only when an earlier
// partial attempt discovered a candidate URL but the API never produced a
// usable extract.
func (c *Client) FetchPage(ctx context.Context, pageURL string) (*ScrapedPage, error) {
	var body []byte
	err := c.limiter.Do(ctx, c.backoff, c.logger, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return errors.Wrap(err, "create page request")
		}
		req.Header.Set("User-Agent", "loreweave/1.0 (entity enrichment)")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return resolve.ClassifyNetErr(err, pageURL)
		}
		b, err := httpclient.ReadBody(resp)
		if err != nil {
			return err
		}
		if err := resolve.ClassifyStatus(resp.StatusCode, pageURL); err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "parse page HTML"), errors.ErrMalformed)
	}

	page := &ScrapedPage{}
	extractPage(doc, page)
	if page.Title == "" && page.Summary == "" {
		return nil, errors.Mark(errors.New("page has no recognizable article structure"), errors.ErrMalformed)
	}
	return page, nil
}

// extractPage walks the DOM filling page. Wikipedia's rendered structure:
// h1#firstHeading, paragraphs under div#mw-content-text, category links
// inside div#catlinks.
func extractPage(n *html.Node, page *ScrapedPage) {
	if n.Type == html.ElementNode {
		switch {
		case n.Data == "h1" && attrVal(n, "id") == "firstHeading":
			page.Title = strings.TrimSpace(nodeText(n))
		case n.Data == "div" && attrVal(n, "id") == "mw-content-text":
			if page.Summary == "" {
				page.Summary = firstParagraph(n)
			}
		case n.Data == "div" && attrVal(n, "id") == "catlinks":
			collectCategoryLinks(n, page)
			return
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		extractPage(child, page)
	}
}

// firstParagraph returns the text of the first <p> with substantive text,
// skipping coordinate spans and empty lead paragraphs.
func firstParagraph(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "p" {
		text := strings.TrimSpace(nodeText(n))
		if len(text) > 20 {
			return text
		}
		return ""
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if text := firstParagraph(child); text != "" {
			return text
		}
	}
	return ""
}

func collectCategoryLinks(n *html.Node, page *ScrapedPage) {
	if n.Type == html.ElementNode && n.Data == "a" {
		href := attrVal(n, "href")
		if strings.Contains(href, "Category:") {
			if text := strings.TrimSpace(nodeText(n)); text != "" && text != "Categories" {
				page.Categories = append(page.Categories, text)
			}
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		collectCategoryLinks(child, page)
	}
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		sb.WriteString(nodeText(child))
	}
	return sb.String()
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
