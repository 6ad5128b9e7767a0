package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oMygpt/readitdeep/internal/jobs"
)

// PostgresStore is a Durable implementation on pgx, for deployments where job
// records must be visible to other processes (team views, reporting).
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store := &PostgresStore{pool: pool}
	if err := store.init(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) init(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	owner_id TEXT NOT NULL DEFAULT '',
	filename TEXT NOT NULL DEFAULT '',
	source_path TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	progress INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	doi TEXT NOT NULL DEFAULT '',
	arxiv_id TEXT NOT NULL DEFAULT '',
	embedding JSONB,
	summary TEXT NOT NULL DEFAULT '',
	methods JSONB,
	structure TEXT NOT NULL DEFAULT '',
	tags JSONB,
	document_id TEXT NOT NULL DEFAULT '',
	target_language TEXT NOT NULL DEFAULT '',
	source_language TEXT NOT NULL DEFAULT '',
	chunks_total INTEGER NOT NULL DEFAULT 0,
	chunks_done INTEGER NOT NULL DEFAULT 0,
	translated_content TEXT NOT NULL DEFAULT '',
	quota_notified BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);`
	if _, err := s.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("create jobs table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, rec *jobs.Record) error {
	embedding, err := nullableJSON(rec.Embedding)
	if err != nil {
		return err
	}
	methods, err := nullableJSON(rec.Methods)
	if err != nil {
		return err
	}
	tags, err := nullableJSON(rec.Tags)
	if err != nil {
		return err
	}

	const q = `
INSERT INTO jobs (id, kind, owner_id, filename, source_path, status, progress, error,
	content, title, doi, arxiv_id, embedding, summary, methods, structure, tags,
	document_id, target_language, source_language, chunks_total, chunks_done,
	translated_content, quota_notified, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26)
ON CONFLICT (id) DO UPDATE SET
	kind=EXCLUDED.kind, owner_id=EXCLUDED.owner_id, filename=EXCLUDED.filename,
	source_path=EXCLUDED.source_path, status=EXCLUDED.status, progress=EXCLUDED.progress,
	error=EXCLUDED.error, content=EXCLUDED.content, title=EXCLUDED.title,
	doi=EXCLUDED.doi, arxiv_id=EXCLUDED.arxiv_id, embedding=EXCLUDED.embedding,
	summary=EXCLUDED.summary, methods=EXCLUDED.methods, structure=EXCLUDED.structure,
	tags=EXCLUDED.tags, document_id=EXCLUDED.document_id,
	target_language=EXCLUDED.target_language, source_language=EXCLUDED.source_language,
	chunks_total=EXCLUDED.chunks_total, chunks_done=EXCLUDED.chunks_done,
	translated_content=EXCLUDED.translated_content, quota_notified=EXCLUDED.quota_notified,
	updated_at=EXCLUDED.updated_at;`

	if _, err := s.pool.Exec(ctx, q,
		rec.ID, string(rec.Kind), rec.OwnerID, rec.Filename, rec.SourcePath,
		string(rec.Status), rec.Progress, rec.Error,
		rec.Content, rec.Title, rec.DOI, rec.ArxivID, embedding, rec.Summary,
		methods, rec.Structure, tags,
		rec.DocumentID, rec.TargetLanguage, rec.SourceLanguage,
		rec.ChunksTotal, rec.ChunksDone, rec.TranslatedContent,
		rec.QuotaNotified, rec.CreatedAt, rec.UpdatedAt,
	); err != nil {
		return fmt.Errorf("upsert job %s: %w", rec.ID, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*jobs.Record, error) {
	const q = `
SELECT id, kind, owner_id, filename, source_path, status, progress, error,
	content, title, doi, arxiv_id, embedding, summary, methods, structure, tags,
	document_id, target_language, source_language, chunks_total, chunks_done,
	translated_content, quota_notified, created_at, updated_at
FROM jobs WHERE id = $1;`

	rec, err := scanPgJob(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*jobs.Record, error) {
	const q = `
SELECT id, kind, owner_id, filename, source_path, status, progress, error,
	content, title, doi, arxiv_id, embedding, summary, methods, structure, tags,
	document_id, target_language, source_language, chunks_total, chunks_done,
	translated_content, quota_notified, created_at, updated_at
FROM jobs ORDER BY created_at ASC;`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*jobs.Record, 0)
	for rows.Next() {
		rec, err := scanPgJob(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, rec)
	}
	return ret, rows.Err()
}

func scanPgJob(row pgx.Row) (*jobs.Record, error) {
	var (
		rec                jobs.Record
		kind, status       string
		embedding, methods []byte
		tags               []byte
	)
	if err := row.Scan(
		&rec.ID, &kind, &rec.OwnerID, &rec.Filename, &rec.SourcePath,
		&status, &rec.Progress, &rec.Error,
		&rec.Content, &rec.Title, &rec.DOI, &rec.ArxivID, &embedding,
		&rec.Summary, &methods, &rec.Structure, &tags,
		&rec.DocumentID, &rec.TargetLanguage, &rec.SourceLanguage,
		&rec.ChunksTotal, &rec.ChunksDone, &rec.TranslatedContent,
		&rec.QuotaNotified, &rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rec.Kind = jobs.Kind(kind)
	rec.Status = jobs.Status(status)
	if embedding != nil {
		if err := json.Unmarshal(embedding, &rec.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding for %s: %w", rec.ID, err)
		}
	}
	if methods != nil {
		if err := json.Unmarshal(methods, &rec.Methods); err != nil {
			return nil, fmt.Errorf("decode methods for %s: %w", rec.ID, err)
		}
	}
	if tags != nil {
		if err := json.Unmarshal(tags, &rec.Tags); err != nil {
			return nil, fmt.Errorf("decode tags for %s: %w", rec.ID, err)
		}
	}
	return &rec, nil
}

func nullableJSON(v any) ([]byte, error) {
	switch val := v.(type) {
	case []float64:
		if len(val) == 0 {
			return nil, nil
		}
	case []string:
		if len(val) == 0 {
			return nil, nil
		}
	case []jobs.TagSuggestion:
		if len(val) == 0 {
			return nil, nil
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json field: %w", err)
	}
	return raw, nil
}
