package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/photoblog-ai/internal/core/domain"
)

type PhotoRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewPhotoRepository(db *sql.DB) *PhotoRepository {
	return &PhotoRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the AI columns this service owns. The photos table is
// normally managed by the blog itself, so everything is IF NOT EXISTS.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS photos (
	id TEXT PRIMARY KEY,
	storage_path TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	caption TEXT NOT NULL DEFAULT '',
	tags JSONB NOT NULL DEFAULT '[]'::jsonb,
	semantic_description TEXT NOT NULL DEFAULT '',
	ai_error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_photos_created_at ON photos(created_at);

CREATE TABLE IF NOT EXISTS regeneration_runs (
	id TEXT PRIMARY KEY,
	state TEXT NOT NULL,
	fields JSONB NOT NULL DEFAULT '[]'::jsonb,
	batch_size INTEGER NOT NULL,
	total INTEGER NOT NULL DEFAULT 0,
	processed INTEGER NOT NULL DEFAULT 0,
	progress DOUBLE PRECISION NOT NULL DEFAULT 0,
	batch_index INTEGER NOT NULL DEFAULT 0,
	batches INTEGER NOT NULL DEFAULT 0,
	failed_batches INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_regeneration_runs_started_at ON regeneration_runs(started_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *PhotoRepository) ListPhotoIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM photos ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list photo ids: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan photo id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photo ids: %w", err)
	}
	return ids, nil
}

func (r *PhotoRepository) GetByID(ctx context.Context, id string) (*domain.Photo, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, storage_path, title, caption, tags, semantic_description, updated_at
FROM photos
WHERE id = $1
`, id)

	var photo domain.Photo
	var tagsRaw []byte
	err := row.Scan(&photo.ID, &photo.StoragePath, &photo.Title, &photo.Caption, &tagsRaw, &photo.SemanticDescription, &photo.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrPhotoNotFound, "get photo", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan photo: %w", err)
	}
	if len(tagsRaw) > 0 {
		if err := json.Unmarshal(tagsRaw, &photo.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	return &photo, nil
}

// SaveAIFields writes only the fields that were generated; absent ones keep
// their stored value.
func (r *PhotoRepository) SaveAIFields(ctx context.Context, id string, fields domain.GeneratedFields) error {
	var tagsArg any
	if fields.Tags != nil {
		tagsJSON, err := json.Marshal(SplitTags(*fields.Tags))
		if err != nil {
			return fmt.Errorf("marshal tags: %w", err)
		}
		tagsArg = string(tagsJSON)
	}

	result, err := r.db.ExecContext(ctx, `
UPDATE photos
SET title = COALESCE($2, title),
	caption = COALESCE($3, caption),
	tags = COALESCE($4::jsonb, tags),
	semantic_description = COALESCE($5, semantic_description),
	ai_error = $6,
	updated_at = $7
WHERE id = $1
`, id, fields.Title, fields.Caption, tagsArg, fields.SemanticDescription, fields.Error, r.now())
	if err != nil {
		return fmt.Errorf("save ai fields: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save ai fields rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrPhotoNotFound, "save ai fields", fmt.Errorf("id=%s", id))
	}
	return nil
}

// SplitTags turns the generated comma separated tag line into a list.
func SplitTags(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if tag := strings.TrimSpace(part); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}
