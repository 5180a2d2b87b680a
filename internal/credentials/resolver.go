// Package credentials resolves API tokens from explicit values, the process
// environment and .env files.
package credentials

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"pagerag/internal/domain"
)

// Well-known credential names.
const (
	ConfluenceToken = "CONFLUENCE_API_TOKEN"
	OpenAIKey       = "OPENAI_API_KEY"
)

// LookupFunc looks up a named value, reporting whether it was present.
type LookupFunc func(name string) (string, bool)

// Resolver hands out tokens. It is built once at start-up and passed to the
// components that need secrets.
type Resolver struct {
	lookup  LookupFunc
	dotenvs map[string]string
}

// NewResolver creates a resolver that consults the given .env files first and
// then lookup, so a .env entry overrides a stale shell value. Missing .env
// files are skipped; a nil lookup means the process environment.
func NewResolver(lookup LookupFunc, envFiles ...string) (*Resolver, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	r := &Resolver{lookup: lookup, dotenvs: make(map[string]string)}
	for _, path := range envFiles {
		values, err := godotenv.Read(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read env file %s: %w", path, err)
		}
		for k, v := range values {
			// earlier files win
			if _, ok := r.dotenvs[k]; !ok {
				r.dotenvs[k] = v
			}
		}
	}
	return r, nil
}

// Resolve returns explicit when it is longer than one character, otherwise
// the value stored under name.
func (r *Resolver) Resolve(explicit, name string) (string, error) {
	if len(explicit) > 1 {
		return explicit, nil
	}
	if v, ok := r.dotenvs[name]; ok && v != "" {
		return v, nil
	}
	if v, ok := r.lookup(name); ok && v != "" {
		return v, nil
	}
	return "", &domain.MissingCredentialError{Name: name}
}
