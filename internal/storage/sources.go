package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/bilgisen/newsauto/internal/models"
)

var sourceColumns = []string{
	"id", "name", "type", "url", "config", "active", "last_fetched",
	"fetch_frequency_minutes", "error_count", "newsletter_id",
}

// SourceFilter narrows ListSources; zero values match everything
type SourceFilter struct {
	NewsletterID *int64
	IDs          []int64
	ActiveOnly   bool
}

// UpsertSource inserts a source or updates the one with the same name.
// Fetch state (last_fetched, error_count) is preserved on update.
func (s *Store) UpsertSource(ctx context.Context, src *models.ContentSource) (int64, error) {
	cfg, err := encodeJSON(src.Config, "{}")
	if err != nil {
		return 0, fmt.Errorf("encode source config: %w", err)
	}

	query, args, err := s.sb.Insert("content_sources").
		Columns("name", "type", "url", "config", "active", "fetch_frequency_minutes", "newsletter_id").
		Values(src.Name, string(src.Type), src.URL, cfg, src.Active, src.FetchFrequencyMinutes, src.NewsletterID).
		Suffix(`ON CONFLICT(name) DO UPDATE SET
			type = excluded.type,
			url = excluded.url,
			config = excluded.config,
			active = excluded.active,
			fetch_frequency_minutes = excluded.fetch_frequency_minutes,
			newsletter_id = excluded.newsletter_id`).
		ToSql()
	if err != nil {
		return 0, err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("upsert source %s: %w", src.Name, err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM content_sources WHERE name = ?`, src.Name).Scan(&id); err != nil {
		return 0, fmt.Errorf("lookup source %s: %w", src.Name, err)
	}
	src.ID = id
	return id, nil
}

// GetSource loads one source by id
func (s *Store) GetSource(ctx context.Context, id int64) (*models.ContentSource, error) {
	query, args, err := s.sb.Select(sourceColumns...).From("content_sources").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	src, err := scanSource(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return src, err
}

// ListSources returns sources matching f ordered by id
func (s *Store) ListSources(ctx context.Context, f SourceFilter) ([]models.ContentSource, error) {
	b := s.sb.Select(sourceColumns...).From("content_sources").OrderBy("id")
	if f.NewsletterID != nil {
		b = b.Where(sq.Eq{"newsletter_id": *f.NewsletterID})
	}
	if len(f.IDs) > 0 {
		b = b.Where(sq.Eq{"id": f.IDs})
	}
	if f.ActiveOnly {
		b = b.Where(sq.Eq{"active": true}).Where(sq.Lt{"error_count": models.MaxSourceErrors})
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var out []models.ContentSource
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *src)
	}
	return out, rows.Err()
}

// UpdateSourceFetchState records a completed fetch cycle: last_fetched is
// stamped and error_count set to the number of item failures in the cycle.
func (s *Store) UpdateSourceFetchState(ctx context.Context, id int64, fetchedAt time.Time, failures int) error {
	query, args, err := s.sb.Update("content_sources").
		Set("last_fetched", formatTime(fetchedAt)).
		Set("error_count", failures).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	return s.execOne(ctx, query, args...)
}

// RecordSourceFailure increments error_count after a failed fetch,
// leaving last_fetched untouched so the source is retried next cycle.
func (s *Store) RecordSourceFailure(ctx context.Context, id int64) error {
	query, args, err := s.sb.Update("content_sources").
		Set("error_count", sq.Expr("error_count + 1")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	return s.execOne(ctx, query, args...)
}

func (s *Store) execOne(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*models.ContentSource, error) {
	var (
		src          models.ContentSource
		typ, cfg     string
		lastFetched  sql.NullString
		newsletterID sql.NullInt64
	)
	if err := row.Scan(&src.ID, &src.Name, &typ, &src.URL, &cfg, &src.Active, &lastFetched,
		&src.FetchFrequencyMinutes, &src.ErrorCount, &newsletterID); err != nil {
		return nil, err
	}
	src.Type = models.SourceType(typ)
	if err := json.Unmarshal([]byte(cfg), &src.Config); err != nil {
		return nil, fmt.Errorf("decode config for source %d: %w", src.ID, err)
	}
	if src.Config == nil {
		src.Config = map[string]any{}
	}
	t, err := parseTime(lastFetched)
	if err != nil {
		return nil, err
	}
	src.LastFetched = t
	if newsletterID.Valid {
		v := newsletterID.Int64
		src.NewsletterID = &v
	}
	return &src, nil
}
