package vector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// Querier is the subset of pgx operations the store needs. Both *pgxpool.Pool
// and pgx.Tx satisfy it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store implements Index on PostgreSQL with the pgvector extension.
type Store struct {
	db        Querier
	dimension int
	logger    *slog.Logger
}

// NewStore creates a pgvector-backed index. Embeddings are aligned to
// dimension before hitting the database.
func NewStore(db Querier, dimension int, logger *slog.Logger) *Store {
	return &Store{
		db:        db,
		dimension: dimension,
		logger:    logger.With("component", "vector.store"),
	}
}

// Upsert implements Index. Items are written one statement at a time inside
// the caller's context; batch sizing is the ingester's concern.
func (s *Store) Upsert(ctx context.Context, items []Item) error {
	for _, item := range items {
		if item.Namespace == "" {
			return ErrEmptyNamespace
		}
		if len(item.Embedding) == 0 {
			return fmt.Errorf("%w: item %q", ErrEmptyVector, item.ID)
		}

		vec := pgvector.NewVector(AlignVector(item.Embedding, s.dimension))
		_, err := s.db.Exec(ctx, `
			INSERT INTO documents (id, namespace, content, embedding, metadata)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (namespace, id) DO UPDATE
			SET content = EXCLUDED.content,
			    embedding = EXCLUDED.embedding,
			    metadata = EXCLUDED.metadata`,
			item.ID, item.Namespace, item.Text, vec, item.Metadata)
		if err != nil {
			return fmt.Errorf("upserting document %q: %w", item.ID, err)
		}
	}

	s.logger.Debug("upserted documents", "count", len(items))
	return nil
}

// Search implements Index. Ordering uses cosine distance; the returned score
// is 1 - distance so higher means more similar.
func (s *Store) Search(ctx context.Context, embedding []float32, topK int, namespace string) ([]Match, error) {
	if len(embedding) == 0 {
		return nil, ErrEmptyVector
	}
	if namespace == "" {
		return nil, ErrEmptyNamespace
	}
	if topK <= 0 {
		topK = 5
	}

	vec := pgvector.NewVector(AlignVector(embedding, s.dimension))
	rows, err := s.db.Query(ctx, `
		SELECT id, content, metadata, 1 - (embedding <=> $1) AS score
		FROM documents
		WHERE namespace = $2
		ORDER BY embedding <=> $1
		LIMIT $3`,
		vec, namespace, topK)
	if err != nil {
		return nil, fmt.Errorf("searching namespace %q: %w", namespace, err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Text, &m.Metadata, &m.Score); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating matches: %w", err)
	}

	s.logger.Debug("searched index", "namespace", namespace, "top_k", topK, "matches", len(matches))
	return matches, nil
}

// DeleteNamespace implements Index.
func (s *Store) DeleteNamespace(ctx context.Context, namespace string) error {
	if namespace == "" {
		return ErrEmptyNamespace
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM documents WHERE namespace = $1`, namespace)
	if err != nil {
		return fmt.Errorf("deleting namespace %q: %w", namespace, err)
	}

	s.logger.Info("deleted namespace", "namespace", namespace, "rows", tag.RowsAffected())
	return nil
}

// Count returns the number of documents in a namespace. Used by readiness
// checks and the ingest command's summary output.
func (s *Store) Count(ctx context.Context, namespace string) (int64, error) {
	if namespace == "" {
		return 0, ErrEmptyNamespace
	}

	rows, err := s.db.Query(ctx, `SELECT count(*) FROM documents WHERE namespace = $1`, namespace)
	if err != nil {
		return 0, fmt.Errorf("counting namespace %q: %w", namespace, err)
	}
	defer rows.Close()

	var count int64
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, fmt.Errorf("scanning count: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterating count: %w", err)
	}
	return count, nil
}
