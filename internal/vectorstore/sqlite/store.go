// Package sqlite persists chunk vectors in a single SQLite file so an index
// built once can be queried by later runs.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"pagerag/internal/domain"
	"pagerag/internal/vectorstore/similarity"
)

//go:embed schema.sql
var schema string

var (
	ErrInvalidDimension = errors.New("invalid dimension")
	ErrLengthMismatch   = errors.New("chunks and vectors length mismatch")
	ErrNotInitialized   = errors.New("index not initialized")
)

// Store is a vector store scoped to one named index inside the database.
type Store struct {
	db    *sql.DB
	path  string
	index string
}

// Open opens (creating if needed) the database at path and scopes the store
// to index.
func Open(path, index string) (*Store, error) {
	if index == "" {
		return nil, fmt.Errorf("%w: empty index name", domain.ErrBadSetting)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{db: db, path: path, index: index}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Path() string { return s.path }

// Init records the index dimension and drops any chunks stored under it.
func (s *Store) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return ErrInvalidDimension
	}
	return s.tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE index_name = ?`, s.index); err != nil {
			return fmt.Errorf("deleting chunks: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO indexes (name, dimension, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(name) DO UPDATE SET dimension = excluded.dimension, updated_at = CURRENT_TIMESTAMP`,
			s.index, dimension)
		if err != nil {
			return fmt.Errorf("saving index: %w", err)
		}
		return nil
	})
}

func (s *Store) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return ErrLengthMismatch
	}
	dim, err := s.dimension(ctx)
	if err != nil {
		return err
	}
	return s.tx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO chunks (index_name, chunk_id, source_id, source, position, text, embedding)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		for i, c := range chunks {
			if len(vectors[i]) != dim {
				return fmt.Errorf("vector %d has dimension %d, want %d", i, len(vectors[i]), dim)
			}
			if _, err := stmt.ExecContext(ctx, s.index, c.ChunkID, c.SourceID, c.Source, c.Index, c.Text,
				encodeFloat32s(vectors[i])); err != nil {
				return fmt.Errorf("inserting chunk %s: %w", c.ChunkID, err)
			}
		}
		return nil
	})
}

func (s *Store) Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	chunks, vectors, err := s.rows(ctx, true)
	if err != nil {
		return nil, err
	}
	return similarity.TopK(vector, chunks, vectors, topK), nil
}

// Load returns the stored chunks in position order. An index that was never
// built loads as empty.
func (s *Store) Load(ctx context.Context) ([]domain.Chunk, error) {
	chunks, _, err := s.rows(ctx, false)
	return chunks, err
}

func (s *Store) Clear(ctx context.Context) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE index_name = ?`, s.index); err != nil {
			return fmt.Errorf("deleting chunks: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM indexes WHERE name = ?`, s.index); err != nil {
			return fmt.Errorf("deleting index: %w", err)
		}
		return nil
	})
}

func (s *Store) dimension(ctx context.Context) (int, error) {
	var dim int
	err := s.db.QueryRowContext(ctx, `SELECT dimension FROM indexes WHERE name = ?`, s.index).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotInitialized
	}
	if err != nil {
		return 0, fmt.Errorf("reading index: %w", err)
	}
	return dim, nil
}

func (s *Store) rows(ctx context.Context, withVectors bool) ([]domain.Chunk, [][]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, source_id, source, position, text, embedding
		FROM chunks WHERE index_name = ? ORDER BY position`, s.index)
	if err != nil {
		return nil, nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var (
		chunks  []domain.Chunk
		vectors [][]float64
	)
	for rows.Next() {
		var (
			c    domain.Chunk
			blob []byte
		)
		if err := rows.Scan(&c.ChunkID, &c.SourceID, &c.Source, &c.Index, &c.Text, &blob); err != nil {
			return nil, nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, c)
		if withVectors {
			vectors = append(vectors, decodeFloat32s(blob))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, vectors, nil
}

func (s *Store) tx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// encodeFloat32s stores each component as a little-endian float32.
func encodeFloat32s(v []float64) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(f)))
	}
	return buf
}

func decodeFloat32s(data []byte) []float64 {
	out := make([]float64, len(data)/4)
	for i := range out {
		out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
	}
	return out
}
