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

var itemColumns = []string{
	"ci.id", "ci.source_id", "ci.url", "ci.title", "ci.author", "ci.content", "ci.summary",
	"ci.key_points", "ci.score", "ci.content_hash", "ci.metadata", "ci.published_at",
	"ci.fetched_at", "ci.processed_at", "ci.llm_model",
	"ci.quality_score", "ci.hallucination_score", "ci.factual_score", "ci.sentiment_score",
	"ci.confidence_score", "ci.needs_review", "ci.quality_flags", "ci.quality_checked_at",
}

// RecentQuery selects items for candidate retrieval
type RecentQuery struct {
	Since        time.Time
	MinScore     float64
	Limit        int
	NewsletterID *int64
}

// SummaryUpdate is the output of the summarization collaborator for one item
type SummaryUpdate struct {
	Summary     string
	KeyPoints   []string
	Model       string
	Score       *float64
	ProcessedAt time.Time
}

// InsertItem persists one item in its own transaction. A URL collision
// rolls back only this item and yields ErrDuplicate.
func (s *Store) InsertItem(ctx context.Context, item *models.ContentItem) (int64, error) {
	keyPoints, err := encodeJSON(item.KeyPoints, "[]")
	if err != nil {
		return 0, fmt.Errorf("encode key points: %w", err)
	}
	metadata, err := encodeJSON(item.Metadata, "{}")
	if err != nil {
		return 0, fmt.Errorf("encode metadata: %w", err)
	}

	var summary any
	if item.Summary != nil {
		summary = *item.Summary
	}

	query, args, err := s.sb.Insert("content_items").
		Columns("source_id", "url", "title", "author", "content", "summary", "key_points", "score",
			"content_hash", "metadata", "published_at", "fetched_at", "processed_at", "llm_model").
		Values(item.SourceID, item.URL, item.Title, item.Author, item.Content, summary, keyPoints,
			item.RelevanceScore, item.ContentHash, metadata, formatTimePtr(item.PublishedAt),
			formatTime(item.FetchedAt), formatTimePtr(item.ProcessedAt), item.LLMModel).
		ToSql()
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert %s: %w", item.URL, ErrDuplicate)
		}
		return 0, fmt.Errorf("insert %s: %w", item.URL, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert: %w", err)
	}

	item.ID = id
	return id, nil
}

// URLExists reports whether an item with url is already stored
func (s *Store) URLExists(ctx context.Context, url string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM content_items WHERE url = ?`, url).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check url: %w", err)
	}
	return n > 0, nil
}

// GetItem loads one item by id
func (s *Store) GetItem(ctx context.Context, id int64) (*models.ContentItem, error) {
	query, args, err := s.itemSelect().Where(sq.Eq{"ci.id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	item, err := scanItem(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return item, err
}

// ListUnprocessed returns items whose summary has not been produced yet,
// oldest first.
func (s *Store) ListUnprocessed(ctx context.Context, limit int) ([]models.ContentItem, error) {
	b := s.itemSelect().
		Where(sq.Eq{"ci.processed_at": nil}).
		OrderBy("ci.fetched_at ASC", "ci.id ASC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return s.queryItems(ctx, b)
}

// RecentContent returns items fetched since q.Since with score >= q.MinScore,
// highest score first, then most recent.
func (s *Store) RecentContent(ctx context.Context, q RecentQuery) ([]models.ContentItem, error) {
	b := s.itemSelect().
		Where(sq.GtOrEq{"ci.fetched_at": formatTime(q.Since)}).
		Where(sq.GtOrEq{"ci.score": q.MinScore}).
		OrderBy("ci.score DESC", "ci.fetched_at DESC", "ci.id ASC")
	if q.NewsletterID != nil {
		b = b.Join("content_sources cs ON cs.id = ci.source_id").
			Where(sq.Eq{"cs.newsletter_id": *q.NewsletterID})
	}
	if q.Limit > 0 {
		b = b.Limit(uint64(q.Limit))
	}
	return s.queryItems(ctx, b)
}

// ListAuditEligible returns items that have a summary and were fetched since since
func (s *Store) ListAuditEligible(ctx context.Context, since time.Time) ([]models.ContentItem, error) {
	b := s.itemSelect().
		Where(sq.NotEq{"ci.summary": nil}).
		Where(sq.GtOrEq{"ci.fetched_at": formatTime(since)}).
		OrderBy("ci.id ASC")
	return s.queryItems(ctx, b)
}

// ApplySummary writes the summarization result onto an item
func (s *Store) ApplySummary(ctx context.Context, id int64, u SummaryUpdate) error {
	keyPoints, err := encodeJSON(u.KeyPoints, "[]")
	if err != nil {
		return fmt.Errorf("encode key points: %w", err)
	}

	b := s.sb.Update("content_items").
		Set("summary", u.Summary).
		Set("key_points", keyPoints).
		Set("llm_model", u.Model).
		Set("processed_at", formatTime(u.ProcessedAt)).
		Where(sq.Eq{"id": id})
	if u.Score != nil {
		b = b.Set("score", *u.Score)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	if err := s.execOne(ctx, query, args...); err != nil {
		return fmt.Errorf("apply summary to %d: %w", id, err)
	}
	return nil
}

// SaveQuality writes quality scorer output onto an item
func (s *Store) SaveQuality(ctx context.Context, id int64, q models.QualityFields) error {
	flags := q.Flags
	if flags == nil {
		flags = []string{}
	}
	encoded, err := json.Marshal(flags)
	if err != nil {
		return fmt.Errorf("encode quality flags: %w", err)
	}

	query, args, err := s.sb.Update("content_items").
		Set("quality_score", q.QualityScore).
		Set("hallucination_score", q.HallucinationScore).
		Set("factual_score", q.FactualScore).
		Set("sentiment_score", q.SentimentScore).
		Set("confidence_score", q.ConfidenceScore).
		Set("needs_review", q.NeedsReview).
		Set("quality_flags", string(encoded)).
		Set("quality_checked_at", formatTime(q.CheckedAt)).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	if err := s.execOne(ctx, query, args...); err != nil {
		return fmt.Errorf("save quality for %d: %w", id, err)
	}
	return nil
}

// CountItems returns the total number of stored items
func (s *Store) CountItems(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM content_items`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) itemSelect() sq.SelectBuilder {
	return s.sb.Select(itemColumns...).From("content_items ci")
}

// queryItems reads every row before returning so the single connection is free again
func (s *Store) queryItems(ctx context.Context, b sq.SelectBuilder) ([]models.ContentItem, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var out []models.ContentItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	return out, rows.Err()
}

func scanItem(row rowScanner) (*models.ContentItem, error) {
	var (
		item                                models.ContentItem
		summary                             sql.NullString
		keyPoints, metadata, flags          string
		publishedAt, fetchedAt, processedAt sql.NullString
		checkedAt                           sql.NullString
		qualityScore, confidence            float64
		hallucination, factual, sentiment   sql.NullFloat64
		needsReview                         bool
	)
	err := row.Scan(&item.ID, &item.SourceID, &item.URL, &item.Title, &item.Author, &item.Content, &summary,
		&keyPoints, &item.RelevanceScore, &item.ContentHash, &metadata, &publishedAt,
		&fetchedAt, &processedAt, &item.LLMModel,
		&qualityScore, &hallucination, &factual, &sentiment,
		&confidence, &needsReview, &flags, &checkedAt)
	if err != nil {
		return nil, err
	}

	if summary.Valid {
		v := summary.String
		item.Summary = &v
	}
	if err := json.Unmarshal([]byte(keyPoints), &item.KeyPoints); err != nil {
		return nil, fmt.Errorf("decode key points for %d: %w", item.ID, err)
	}
	if err := json.Unmarshal([]byte(metadata), &item.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata for %d: %w", item.ID, err)
	}

	if item.PublishedAt, err = parseTime(publishedAt); err != nil {
		return nil, err
	}
	fetched, err := parseTime(fetchedAt)
	if err != nil {
		return nil, err
	}
	if fetched != nil {
		item.FetchedAt = *fetched
	}
	if item.ProcessedAt, err = parseTime(processedAt); err != nil {
		return nil, err
	}

	checked, err := parseTime(checkedAt)
	if err != nil {
		return nil, err
	}
	if checked != nil {
		q := &models.QualityFields{
			QualityScore:    qualityScore,
			ConfidenceScore: confidence,
			NeedsReview:     needsReview,
			CheckedAt:       *checked,
		}
		if hallucination.Valid {
			q.HallucinationScore = &hallucination.Float64
		}
		if factual.Valid {
			q.FactualScore = &factual.Float64
		}
		if sentiment.Valid {
			q.SentimentScore = &sentiment.Float64
		}
		if err := json.Unmarshal([]byte(flags), &q.Flags); err != nil {
			return nil, fmt.Errorf("decode quality flags for %d: %w", item.ID, err)
		}
		item.Quality = q
	}
	return &item, nil
}
