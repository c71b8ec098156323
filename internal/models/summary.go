package models

// SummaryRequest is what the summarization collaborator receives per item
type SummaryRequest struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Content     string `json:"content"`
	ContentHash string `json:"content_hash,omitempty"`
}

// SummaryResult is what it returns. An empty Summary means the item failed.
type SummaryResult struct {
	ID        int64    `json:"id"`
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	ModelUsed string   `json:"model_used"`
	Score     *float64 `json:"score,omitempty"`
}

// QualityResult is the per-call output of the quality scorer
type QualityResult struct {
	QualityScore       float64  `json:"quality_score"`
	HallucinationScore float64  `json:"hallucination_score"`
	FactualScore       float64  `json:"factual_score"`
	SentimentScore     float64  `json:"sentiment_score"`
	ConfidenceScore    float64  `json:"confidence_score"`
	NeedsReview        bool     `json:"needs_review"`
	Flags              []string `json:"flags"`
	Degraded           []string `json:"degraded,omitempty"`
}
