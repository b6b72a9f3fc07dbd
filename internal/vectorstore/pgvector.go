package vectorstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/polyrag/polyrag/pkg/models"
)

// PgvectorStore implements VectorStoreDriver on PostgreSQL with the
// pgvector extension. The required table and index are created on startup.
type PgvectorStore struct {
	pool       *pgxpool.Pool
	dimensions int
}

// NewPgvectorStore creates a pgvector-backed vector store.
func NewPgvectorStore(ctx context.Context, connURL string, dimensions int) (*PgvectorStore, error) {
	pool, err := pgxpool.New(ctx, connURL)
	if err != nil {
		return nil, fmt.Errorf("pgvector connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgvector ping: %w", err)
	}

	s := &PgvectorStore{pool: pool, dimensions: dimensions}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgvector migrate: %w", err)
	}

	log.Info().Int("dims", dimensions).Msg("pgvector store initialized")
	return s, nil
}

func (s *PgvectorStore) migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;

		CREATE TABLE IF NOT EXISTS chunks (
			id         TEXT PRIMARY KEY,
			content    TEXT NOT NULL DEFAULT '',
			metadata   JSONB NOT NULL DEFAULT '{}',
			vector     vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_chunks_language ON chunks ((metadata->>'language'));
	`, s.dimensions)

	_, err := s.pool.Exec(ctx, ddl)
	return err
}

func (s *PgvectorStore) Kind() string { return "pgvector" }

func (s *PgvectorStore) Upsert(ctx context.Context, docs []models.VectorDoc) error {
	if len(docs) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO chunks (id, content, metadata, vector, created_at) VALUES `)

	args := make([]any, 0, len(docs)*5)
	for i, d := range docs {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i*5 + 1
		sb.WriteString(fmt.Sprintf("($%d, $%d, $%d, $%d, $%d)", base, base+1, base+2, base+3, base+4))

		id := d.ID
		if id == "" {
			id = uuid.NewString()
		}
		createdAt := d.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		metadata := d.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}
		args = append(args, id, d.Content, metadata, pgvectorArray(d.Vector), createdAt)
	}

	sb.WriteString(` ON CONFLICT (id) DO UPDATE SET
		content = EXCLUDED.content,
		metadata = EXCLUDED.metadata,
		vector = EXCLUDED.vector`)

	_, err := s.pool.Exec(ctx, sb.String(), args...)
	return err
}

func (s *PgvectorStore) Search(ctx context.Context, vector []float64, topK int, filter map[string]string) ([]models.SearchResult, error) {
	query := `SELECT id, content, metadata, created_at,
		1 - (vector <=> $1) AS score
		FROM chunks`

	args := []any{pgvectorArray(vector)}
	conds := make([]string, 0, len(filter))
	for fk, fv := range filter {
		args = append(args, fk, fv)
		conds = append(conds, fmt.Sprintf("metadata->>$%d = $%d", len(args)-1, len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	args = append(args, topK)
	query += fmt.Sprintf(" ORDER BY vector <=> $1 LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgvector search: %w", err)
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		var doc models.VectorDoc
		var score float64
		if err := rows.Scan(&doc.ID, &doc.Content, &doc.Metadata, &doc.CreatedAt, &score); err != nil {
			return nil, fmt.Errorf("pgvector scan: %w", err)
		}
		results = append(results, models.SearchResult{Doc: doc, Score: score})
	}
	return results, rows.Err()
}

func (s *PgvectorStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, "DELETE FROM chunks WHERE id = ANY($1)", ids)
	return err
}

func (s *PgvectorStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM chunks").Scan(&count)
	return count, err
}

func (s *PgvectorStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *PgvectorStore) Close() error {
	s.pool.Close()
	return nil
}

// pgvectorArray renders a vector in pgvector's text format: [1,2,3]
func pgvectorArray(v []float64) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(fmt.Sprintf("%g", f))
	}
	sb.WriteByte(']')
	return sb.String()
}
