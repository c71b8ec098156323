package cache

import (
	"context"
	"time"
)

// Cache is the fast path in front of storage: seen-URL markers for the
// aggregator and generated summaries keyed by content hash.
type Cache interface {
	IsProcessed(ctx context.Context, hash string) (bool, error)
	MarkProcessed(ctx context.Context, hash string, ttl time.Duration) error
	ClearProcessed(ctx context.Context) error

	GetSummary(ctx context.Context, key string) (*Summary, error)
	SetSummary(ctx context.Context, key string, s Summary, ttl time.Duration) error

	Close() error
}

// Summary is a cached summarization result
type Summary struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	Model     string   `json:"model"`
}

const (
	seenNamespace    = "seen:"
	summaryNamespace = "summary:"
)
