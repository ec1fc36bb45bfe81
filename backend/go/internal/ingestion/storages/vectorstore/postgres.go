package vectorstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"RepoChat/backend/go/internal/ingestion/interfaces"
	"RepoChat/backend/go/internal/ingestion/schema"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresIndex upserts records into a pgvector table created ahead of time:
//
//	CREATE TABLE repo_chunks (id text PRIMARY KEY, embedding vector(1536), source text NOT NULL);
type PostgresIndex struct {
	pool  *pgxpool.Pool
	table string
	query string
}

// NewPostgresIndex connects to dsn and targets table.
func NewPostgresIndex(ctx context.Context, dsn, table string) (*PostgresIndex, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresIndex{pool: pool, table: table, query: upsertQuery(table)}, nil
}

var _ interfaces.VectorIndex = (*PostgresIndex)(nil)

func upsertQuery(table string) string {
	return fmt.Sprintf(`INSERT INTO %s (id, embedding, source) VALUES ($1, $2::vector, $3)
ON CONFLICT (id) DO UPDATE SET embedding = EXCLUDED.embedding, source = EXCLUDED.source`,
		pgx.Identifier{table}.Sanitize())
}

func (p *PostgresIndex) Name() string { return p.table }

// Upsert writes records in one transaction so a batch commits as a unit.
func (p *PostgresIndex) Upsert(ctx context.Context, records []schema.VectorRecord) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(p.query, r.ID, vectorLiteral(r.Values), r.Metadata[schema.MetadataKeySource])
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert into %s: %w", p.table, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upsert into %s: %w", p.table, err)
	}
	return nil
}

// Close releases the connection pool.
func (p *PostgresIndex) Close() {
	p.pool.Close()
}

// vectorLiteral renders v in pgvector's text input format, e.g. "[1,2.5,3]".
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.Grow(len(v) * 8)
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
