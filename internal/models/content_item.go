package models

import "time"

// RawItem is an adapter-specific record that lives for one fetch cycle only
type RawItem map[string]any

// ParsedItem is the normalized shape every adapter produces from a RawItem
type ParsedItem struct {
	Title        string         `json:"title" validate:"required"`
	URL          string         `json:"url" validate:"required,url"`
	Author       string         `json:"author,omitempty"`
	Content      string         `json:"content,omitempty"`
	PublishedAt  *time.Time     `json:"published_at,omitempty"`
	Upvotes      *int           `json:"upvotes,omitempty"`
	Score        *float64       `json:"score,omitempty"`
	CommentCount int            `json:"comment_count,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Engagement returns upvotes when present, otherwise score, otherwise zero
func (p ParsedItem) Engagement() float64 {
	if p.Upvotes != nil {
		return float64(*p.Upvotes)
	}
	if p.Score != nil {
		return *p.Score
	}
	return 0
}

// ContentItem is the persisted unit of content
type ContentItem struct {
	ID             int64          `json:"id"`
	SourceID       int64          `json:"source_id"`
	URL            string         `json:"url"`
	Title          string         `json:"title"`
	Author         string         `json:"author,omitempty"`
	Content        string         `json:"content,omitempty"`
	Summary        *string        `json:"summary,omitempty"`
	KeyPoints      []string       `json:"key_points,omitempty"`
	ContentHash    string         `json:"content_hash"`
	RelevanceScore float64        `json:"relevance_score"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	PublishedAt    *time.Time     `json:"published_at,omitempty"`
	FetchedAt      time.Time      `json:"fetched_at"`
	ProcessedAt    *time.Time     `json:"processed_at,omitempty"`
	LLMModel       string         `json:"llm_model,omitempty"`

	Quality *QualityFields `json:"quality,omitempty"`
}

// SummaryText returns the summary when set, falling back to the raw content
func (c ContentItem) SummaryText() string {
	if c.Summary != nil && *c.Summary != "" {
		return *c.Summary
	}
	return c.Content
}

// QualityFields are the persisted outputs of the quality scorer.
// A nil *QualityFields on a ContentItem means the scorer has not run.
type QualityFields struct {
	QualityScore       float64   `json:"quality_score"`
	HallucinationScore *float64  `json:"hallucination_score,omitempty"`
	FactualScore       *float64  `json:"factual_score,omitempty"`
	SentimentScore     *float64  `json:"sentiment_score,omitempty"`
	ConfidenceScore    float64   `json:"confidence_score"`
	NeedsReview        bool      `json:"needs_review"`
	Flags              []string  `json:"quality_flags"`
	CheckedAt          time.Time `json:"quality_checked_at"`
}
