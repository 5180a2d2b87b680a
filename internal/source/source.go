// Package source models a named origin of pages and how its page list is
// established.
package source

import (
	"net/url"
	"strings"

	"go.uber.org/zap"

	"pagerag/internal/domain"
)

// Source is one logical origin of pages: a Confluence space or a website.
type Source struct {
	Name    string
	BaseURL string
	// RequireAuth marks sources whose pages need a bearer token.
	RequireAuth bool
	// TokenName is the credential looked up when no explicit token is given.
	TokenName string

	urls []string
	log  *zap.Logger
}

// New creates an unconfigured source.
func New(name string, log *zap.Logger) *Source {
	if log == nil {
		log = zap.NewNop()
	}
	return &Source{Name: name, log: log.With(zap.String("source", name))}
}

// Setup assigns the initial page list. An empty list is allowed; pages can be
// added later with Update.
func (s *Source) Setup(urls []string) {
	if len(urls) == 0 {
		s.log.Info("no page URLs yet, add them with Update")
		return
	}
	s.addPages(urls)
}

// Update adds page URLs. An empty list is rejected while the source has no
// pages and ignored once it has some.
func (s *Source) Update(urls []string) error {
	if len(urls) == 0 {
		if len(s.urls) == 0 {
			return domain.ErrInvalidConfiguration
		}
		return nil
	}
	s.addPages(urls)
	return nil
}

// addPages replaces an empty list or appends to an existing one. Duplicates
// are kept.
func (s *Source) addPages(urls []string) {
	if len(s.urls) == 0 {
		s.urls = append([]string(nil), urls...)
		s.log.Info("assigned pages", zap.Int("count", len(urls)))
		return
	}
	s.urls = append(s.urls, urls...)
	s.log.Info("added pages", zap.Int("count", len(urls)), zap.Int("total", len(s.urls)))
}

// URLs returns a copy of the page list in fetch order.
func (s *Source) URLs() []string {
	return append([]string(nil), s.urls...)
}

// Configured reports whether the source has at least one page URL.
func (s *Source) Configured() bool { return len(s.urls) > 0 }

// IndexName is the key the source's index is stored under: the name derived
// from BaseURL when there is one, the source name otherwise.
func (s *Source) IndexName() string {
	if s.BaseURL != "" {
		if name := NameFromURL(s.BaseURL); name != "" {
			return name
		}
	}
	return s.Name
}

// NameFromURL returns the first host label after stripping a leading "www.",
// e.g. "https://www.england.nhs.uk/" gives "england".
func NameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	label, _, _ := strings.Cut(host, ".")
	return label
}
