package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

// RobotsFilter drops URLs a site's robots.txt disallows for our user agent.
type RobotsFilter struct {
	client    *http.Client
	userAgent string
	log       *zap.Logger
}

func NewRobotsFilter(client *http.Client, userAgent string, log *zap.Logger) *RobotsFilter {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RobotsFilter{client: client, userAgent: userAgent, log: log}
}

// Filter keeps the URLs allowed by the robots.txt of baseURL's host. A
// robots.txt that cannot be loaded allows everything.
func (f *RobotsFilter) Filter(ctx context.Context, baseURL string, urls []string) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", base.Scheme, base.Host)

	group, err := f.load(ctx, robotsURL)
	if err != nil {
		f.log.Warn("robots.txt unavailable, not filtering", zap.String("url", robotsURL), zap.Error(err))
		return urls, nil
	}

	allowed := make([]string, 0, len(urls))
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		path := u.EscapedPath()
		if path == "" {
			path = "/"
		}
		if group.Test(path) {
			allowed = append(allowed, raw)
			continue
		}
		f.log.Debug("disallowed by robots.txt", zap.String("url", raw))
	}
	return allowed, nil
}

func (f *RobotsFilter) load(ctx context.Context, robotsURL string) (*robotstxt.Group, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, err
	}
	return data.FindGroup(f.userAgent), nil
}
