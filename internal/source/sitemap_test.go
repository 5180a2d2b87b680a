package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func sitemapXML(n int, base string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "<url><loc>\n  %s/page-%d\n</loc><lastmod>2024-01-01</lastmod></url>", base, i)
	}
	b.WriteString(`</urlset>`)
	return b.String()
}

func TestSitemapURL(t *testing.T) {
	assert.Equal(t, "https://example.com/sitemap.xml", SitemapURL("https://example.com/"))
	assert.Equal(t, "https://example.com/sitemap.xml", SitemapURL("https://example.com"))
	assert.Equal(t, "https://example.com/docs/sitemap.xml", SitemapURL("https://example.com/docs//"))
}

func TestParseLocs(t *testing.T) {
	index := `<sitemapindex><sitemap><loc>https://a/one.xml</loc></sitemap>
<sitemap><loc> https://a/two.xml </loc></sitemap><sitemap><loc></loc></sitemap></sitemapindex>`

	locs, err := ParseLocs(strings.NewReader(index))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a/one.xml", "https://a/two.xml"}, locs)
}

func TestDiscover_TruncatesToLimit(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sitemap.xml", r.URL.Path)
		_, _ = w.Write([]byte(sitemapXML(15, srv.URL)))
	}))
	defer srv.Close()

	d := NewDiscoverer(srv.Client(), "pagerag-test", 0, nil)
	urls, err := d.Discover(context.Background(), srv.URL+"/")
	require.NoError(t, err)

	require.Len(t, urls, 10)
	assert.Equal(t, srv.URL+"/page-1", urls[0])
	assert.Equal(t, srv.URL+"/page-10", urls[9])
}

func TestDiscover_CustomAndUnlimited(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sitemapXML(15, srv.URL)))
	}))
	defer srv.Close()

	urls, err := NewDiscoverer(srv.Client(), "", 3, nil).Discover(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, urls, 3)

	urls, err = NewDiscoverer(srv.Client(), "", -1, nil).Discover(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, urls, 15)
}

func TestDiscover_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewDiscoverer(srv.Client(), "", 0, nil).Discover(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestDiscover_RespectsRobots(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /page-1\n"))
		default:
			_, _ = w.Write([]byte(sitemapXML(12, srv.URL)))
		}
	}))
	defer srv.Close()

	robots := NewRobotsFilter(srv.Client(), "pagerag-test", zaptest.NewLogger(t))
	urls, err := NewDiscoverer(srv.Client(), "pagerag-test", 0, robots).Discover(context.Background(), srv.URL)
	require.NoError(t, err)

	// page-1 and page-10..12 are disallowed by the prefix rule.
	assert.Equal(t, []string{
		srv.URL + "/page-2", srv.URL + "/page-3", srv.URL + "/page-4",
		srv.URL + "/page-5", srv.URL + "/page-6", srv.URL + "/page-7",
		srv.URL + "/page-8", srv.URL + "/page-9",
	}, urls)
}

func TestRobotsFilter_MissingRobotsAllowsAll(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	in := []string{srv.URL + "/a", srv.URL + "/b"}
	out, err := NewRobotsFilter(srv.Client(), "pagerag-test", nil).Filter(context.Background(), srv.URL, in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
