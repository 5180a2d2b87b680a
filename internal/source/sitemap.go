package source

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultSitemapLimit caps how many discovered pages are fetched per site.
const DefaultSitemapLimit = 10

// SitemapURL returns <base>/sitemap.xml with exactly one slash between them.
func SitemapURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/sitemap.xml"
}

// Discoverer finds page URLs for a website.
type Discoverer struct {
	client    *http.Client
	userAgent string
	limit     int
	robots    *RobotsFilter
}

// NewDiscoverer creates a sitemap discoverer. A limit of zero means
// DefaultSitemapLimit; a negative limit disables truncation. robots may be nil.
func NewDiscoverer(client *http.Client, userAgent string, limit int, robots *RobotsFilter) *Discoverer {
	if client == nil {
		client = http.DefaultClient
	}
	if limit == 0 {
		limit = DefaultSitemapLimit
	}
	return &Discoverer{client: client, userAgent: userAgent, limit: limit, robots: robots}
}

// Discover fetches the site's sitemap and returns its page URLs in document
// order, filtered by robots.txt when configured and truncated to the limit.
func (d *Discoverer) Discover(ctx context.Context, baseURL string) ([]string, error) {
	sitemapURL := SitemapURL(baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create sitemap request: %w", err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap %s: %w", sitemapURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch sitemap %s: HTTP %d", sitemapURL, resp.StatusCode)
	}

	urls, err := ParseLocs(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse sitemap %s: %w", sitemapURL, err)
	}
	if d.robots != nil {
		urls, err = d.robots.Filter(ctx, baseURL, urls)
		if err != nil {
			return nil, err
		}
	}
	if d.limit > 0 && len(urls) > d.limit {
		urls = urls[:d.limit]
	}
	return urls, nil
}

// ParseLocs returns the trimmed text of every <loc> element in r, in
// document order, whatever sitemap flavor contains it.
func ParseLocs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	var (
		locs  []string
		inLoc bool
		text  strings.Builder
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "loc" {
				inLoc = true
				text.Reset()
			}
		case xml.CharData:
			if inLoc {
				text.Write(t)
			}
		case xml.EndElement:
			if t.Name.Local == "loc" && inLoc {
				inLoc = false
				if loc := strings.TrimSpace(text.String()); loc != "" {
					locs = append(locs, loc)
				}
			}
		}
	}
	return locs, nil
}
