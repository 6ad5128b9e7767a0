package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/oMygpt/readitdeep/internal/jobs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteStore is the default durable store.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

const jobColumns = `id, kind, owner_id, filename, source_path, status, progress, error,
	content, title, doi, arxiv_id, embedding, summary, methods, structure, tags,
	document_id, target_language, source_language, chunks_total, chunks_done,
	translated_content, quota_notified, created_at, updated_at`

func (s *SQLiteStore) Upsert(ctx context.Context, rec *jobs.Record) error {
	embedding, methods, tags, err := encodeJSONFields(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind=excluded.kind, owner_id=excluded.owner_id, filename=excluded.filename,
			source_path=excluded.source_path, status=excluded.status, progress=excluded.progress,
			error=excluded.error, content=excluded.content, title=excluded.title,
			doi=excluded.doi, arxiv_id=excluded.arxiv_id, embedding=excluded.embedding,
			summary=excluded.summary, methods=excluded.methods, structure=excluded.structure,
			tags=excluded.tags, document_id=excluded.document_id,
			target_language=excluded.target_language, source_language=excluded.source_language,
			chunks_total=excluded.chunks_total, chunks_done=excluded.chunks_done,
			translated_content=excluded.translated_content, quota_notified=excluded.quota_notified,
			updated_at=excluded.updated_at`,
		rec.ID, string(rec.Kind), rec.OwnerID, rec.Filename, rec.SourcePath,
		string(rec.Status), rec.Progress, rec.Error,
		rec.Content, rec.Title, rec.DOI, rec.ArxivID, embedding, rec.Summary,
		methods, rec.Structure, tags,
		rec.DocumentID, rec.TargetLanguage, rec.SourceLanguage,
		rec.ChunksTotal, rec.ChunksDone, rec.TranslatedContent,
		boolToInt(rec.QuotaNotified), rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert job %s: %w", rec.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*jobs.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	rec, err := scanJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*jobs.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*jobs.Record, 0)
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, rec)
	}
	return ret, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*jobs.Record, error) {
	var (
		rec                     jobs.Record
		kind, status            string
		embedding, methods, tag string
		quotaNotified           int
	)
	if err := row.Scan(
		&rec.ID, &kind, &rec.OwnerID, &rec.Filename, &rec.SourcePath,
		&status, &rec.Progress, &rec.Error,
		&rec.Content, &rec.Title, &rec.DOI, &rec.ArxivID, &embedding,
		&rec.Summary, &methods, &rec.Structure, &tag,
		&rec.DocumentID, &rec.TargetLanguage, &rec.SourceLanguage,
		&rec.ChunksTotal, &rec.ChunksDone, &rec.TranslatedContent,
		&quotaNotified, &rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rec.Kind = jobs.Kind(kind)
	rec.Status = jobs.Status(status)
	rec.QuotaNotified = quotaNotified != 0
	if err := decodeJSONFields(&rec, embedding, methods, tag); err != nil {
		return nil, err
	}
	return &rec, nil
}

func encodeJSONFields(rec *jobs.Record) (embedding, methods, tags string, err error) {
	if len(rec.Embedding) > 0 {
		raw, err := json.Marshal(rec.Embedding)
		if err != nil {
			return "", "", "", fmt.Errorf("encode embedding: %w", err)
		}
		embedding = string(raw)
	}
	if len(rec.Methods) > 0 {
		raw, err := json.Marshal(rec.Methods)
		if err != nil {
			return "", "", "", fmt.Errorf("encode methods: %w", err)
		}
		methods = string(raw)
	}
	if len(rec.Tags) > 0 {
		raw, err := json.Marshal(rec.Tags)
		if err != nil {
			return "", "", "", fmt.Errorf("encode tags: %w", err)
		}
		tags = string(raw)
	}
	return embedding, methods, tags, nil
}

func decodeJSONFields(rec *jobs.Record, embedding, methods, tags string) error {
	if embedding != "" {
		if err := json.Unmarshal([]byte(embedding), &rec.Embedding); err != nil {
			return fmt.Errorf("decode embedding for %s: %w", rec.ID, err)
		}
	}
	if methods != "" {
		if err := json.Unmarshal([]byte(methods), &rec.Methods); err != nil {
			return fmt.Errorf("decode methods for %s: %w", rec.ID, err)
		}
	}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil {
			return fmt.Errorf("decode tags for %s: %w", rec.ID, err)
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
