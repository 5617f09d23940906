package repository

import (
	"context"
	"fmt"
	"time"

	"carpics/fetcher/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DownloadRepository keeps a history of fetch attempts.
type DownloadRepository interface {
	EnsureSchema(ctx context.Context) error
	RecordFetch(ctx context.Context, record domain.FetchRecord) error
	RecentFetches(ctx context.Context, limit int) ([]domain.FetchRecord, error)
}

type downloadRepository struct {
	db *pgxpool.Pool
}

func NewDownloadRepository(db *pgxpool.Pool) DownloadRepository {
	return &downloadRepository{
		db: db,
	}
}

func (r *downloadRepository) EnsureSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS fetch_history (
		id          BIGSERIAL PRIMARY KEY,
		url         TEXT NOT NULL,
		filename    TEXT NOT NULL,
		path        TEXT NOT NULL,
		bytes       INTEGER NOT NULL DEFAULT 0,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		error       TEXT NOT NULL DEFAULT '',
		fetched_at  TIMESTAMPTZ NOT NULL
	)`
	if _, err := r.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create fetch_history table: %w", err)
	}
	return nil
}

func (r *downloadRepository) RecordFetch(ctx context.Context, rec domain.FetchRecord) error {
	query := `
	INSERT INTO fetch_history (url, filename, path, bytes, duration_ms, error, fetched_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.Exec(ctx, query,
		rec.URL, rec.Filename, rec.Path, rec.Bytes, rec.Duration.Milliseconds(), rec.Error, rec.FetchedAt)
	if err != nil {
		return fmt.Errorf("failed to save fetch of %s: %w", rec.Filename, err)
	}

	return nil
}

func (r *downloadRepository) RecentFetches(ctx context.Context, limit int) ([]domain.FetchRecord, error) {
	query := `
	SELECT url, filename, path, bytes, duration_ms, error, fetched_at
	FROM fetch_history
	ORDER BY fetched_at DESC, id DESC
	LIMIT $1`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query fetch history: %w", err)
	}
	defer rows.Close()

	var records []domain.FetchRecord
	for rows.Next() {
		var rec domain.FetchRecord
		var durationMS int64
		if err := rows.Scan(&rec.URL, &rec.Filename, &rec.Path, &rec.Bytes, &durationMS, &rec.Error, &rec.FetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan fetch history: %w", err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read fetch history: %w", err)
	}

	return records, nil
}
