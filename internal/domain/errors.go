package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration indicates an operation needs page URLs the source does not have.
	ErrInvalidConfiguration = errors.New("invalid configuration: no page URLs defined")

	// ErrBadSetting marks a component setting that names an unknown
	// implementation or lacks a required value.
	ErrBadSetting = errors.New("bad setting")

	// ErrHeadersNotConfigured indicates an authorized fetch was attempted before
	// the authorization headers were built.
	ErrHeadersNotConfigured = errors.New("authorization headers not configured")
)

// MissingCredentialError reports that no token was supplied explicitly and
// none could be found under Name in the environment or .env files.
type MissingCredentialError struct {
	Name string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("no credential found: set %s in the environment or a .env file, or pass a token", e.Name)
}

// Fetch stages reported by PageFetchError.
const (
	OpFetch = "fetch"
	OpParse = "parse"
)

// PageFetchError wraps a failure to fetch or parse a single page.
type PageFetchError struct {
	URL         string
	ReadableURL string
	Op          string
	Err         error
}

func (e *PageFetchError) Error() string {
	return fmt.Sprintf("unable to %s page %s @ %s: %v", e.Op, e.ReadableURL, e.URL, e.Err)
}

func (e *PageFetchError) Unwrap() error { return e.Err }

// IsTransportError reports whether err is a page failure raised while fetching.
func IsTransportError(err error) bool {
	var pfe *PageFetchError
	return errors.As(err, &pfe) && pfe.Op == OpFetch
}

// IsParseError reports whether err is a page failure raised while parsing markup.
func IsParseError(err error) bool {
	var pfe *PageFetchError
	return errors.As(err, &pfe) && pfe.Op == OpParse
}
