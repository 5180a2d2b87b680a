// Package vectorstore opens the configured vector store for a named index.
package vectorstore

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"pagerag/internal/config"
	"pagerag/internal/credentials"
	"pagerag/internal/domain"
	"pagerag/internal/vectorstore/memory"
	"pagerag/internal/vectorstore/qdrant"
	"pagerag/internal/vectorstore/sqlite"
)

// Loader is implemented by stores that can hand back a previously built
// index so it does not have to be rebuilt.
type Loader interface {
	Load(ctx context.Context) ([]domain.Chunk, error)
}

// Opener opens stores by index name.
type Opener struct {
	cfg   config.VectorStoreConfig
	creds *credentials.Resolver

	mu     sync.Mutex
	memory map[string]*memory.Storage
}

func NewOpener(cfg config.VectorStoreConfig, creds *credentials.Resolver) *Opener {
	return &Opener{cfg: cfg, creds: creds, memory: make(map[string]*memory.Storage)}
}

// Open returns the store for index. Memory stores are shared per index for
// the life of the Opener.
func (o *Opener) Open(index string) (domain.VectorStore, error) {
	switch o.cfg.Type {
	case "", "memory":
		o.mu.Lock()
		defer o.mu.Unlock()
		s, ok := o.memory[index]
		if !ok {
			s = memory.NewStorage()
			o.memory[index] = s
		}
		return s, nil
	case "sqlite":
		path := "data/index.db"
		if o.cfg.SQLite != nil && o.cfg.SQLite.Path != "" {
			path = o.cfg.SQLite.Path
		}
		return sqlite.Open(path, index)
	case "qdrant":
		qc := o.cfg.Qdrant
		if qc == nil || qc.URL == "" {
			return nil, fmt.Errorf("%w: qdrant url is required", domain.ErrBadSetting)
		}
		var key string
		if qc.APIKeyEnv != "" {
			// qdrant without auth is common, so a missing key is not fatal
			key, _ = o.creds.Resolve("", qc.APIKeyEnv)
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        qc.URL,
			APIKey:     key,
			Collection: index,
			Timeout:    time.Duration(qc.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown vector store type %q", domain.ErrBadSetting, o.cfg.Type)
	}
}

// Close releases the store if it holds resources.
func Close(store domain.VectorStore) error {
	if c, ok := store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
