package quality

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bilgisen/newsauto/internal/models"
)

// Review flags
const (
	FlagHighHallucinationRisk = "HIGH_HALLUCINATION_RISK"
	FlagLowFactualAccuracy    = "LOW_FACTUAL_ACCURACY"
	FlagNegativeSentiment     = "NEGATIVE_SENTIMENT"
	FlagOverlyPositive        = "OVERLY_POSITIVE"
)

// Defaults substituted when a detector fails
const (
	DefaultHallucination = 0.0
	DefaultFactual       = 1.0
	DefaultSentiment     = 0.0
)

const (
	reviewQualityThreshold = 0.85
	maxHallucinationRisk   = 0.20
	minFactualScore        = 0.70
	minSentiment           = -0.30
	maxSentiment           = 0.80
)

// Signal is one detector's outcome. Degraded signals carry the documented
// default in Score and say why in Reason.
type Signal struct {
	Score    float64
	Degraded bool
	Reason   string
}

// HallucinationChecker scores a summary against its source text
type HallucinationChecker interface {
	Check(summary, source string) float64
}

// FactChecker scores a summary against its source URL
type FactChecker interface {
	Check(ctx context.Context, summary, sourceURL string) (float64, error)
}

// ToneAnalyzer scores the sentiment of a text
type ToneAnalyzer interface {
	Analyze(text string) float64
}

// Scorer combines the three detectors into one quality result
type Scorer struct {
	hallucination HallucinationChecker
	factual       FactChecker
	sentiment     ToneAnalyzer
	log           zerolog.Logger
}

// NewScorer wires the detectors
func NewScorer(h HallucinationChecker, f FactChecker, s ToneAnalyzer, log zerolog.Logger) *Scorer {
	return &Scorer{
		hallucination: h,
		factual:       f,
		sentiment:     s,
		log:           log.With().Str("component", "quality_scorer").Logger(),
	}
}

// Score runs the detectors concurrently and never fails; a detector that errors
// or panics contributes its default and is listed in Degraded
func (s *Scorer) Score(ctx context.Context, item models.ContentItem) models.QualityResult {
	text := item.SummaryText()
	var (
		wg      sync.WaitGroup
		h, f, t Signal
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		h = runDetector(DefaultHallucination, func() (float64, error) {
			return s.hallucination.Check(text, item.Content), nil
		})
	}()
	go func() {
		defer wg.Done()
		summary := ""
		if item.Summary != nil {
			summary = *item.Summary
		}
		f = runDetector(DefaultFactual, func() (float64, error) {
			return s.factual.Check(ctx, summary, item.URL)
		})
	}()
	go func() {
		defer wg.Done()
		t = runDetector(DefaultSentiment, func() (float64, error) {
			return s.sentiment.Analyze(text), nil
		})
	}()
	wg.Wait()

	res := Combine(h.Score, f.Score, t.Score)
	res.Degraded = []string{}
	healthy := 0
	for _, d := range []struct {
		name string
		sig  Signal
	}{{"hallucination", h}, {"factual", f}, {"sentiment", t}} {
		if d.sig.Degraded {
			res.Degraded = append(res.Degraded, d.name)
			s.log.Warn().Int64("content_id", item.ID).Str("detector", d.name).Str("reason", d.sig.Reason).Msg("Detector degraded")
			continue
		}
		healthy++
	}
	res.ConfidenceScore = round3(float64(healthy) / 3)

	s.log.Debug().
		Int64("content_id", item.ID).
		Float64("quality", res.QualityScore).
		Bool("needs_review", res.NeedsReview).
		Strs("flags", res.Flags).
		Msg("Scored content")
	return res
}

// Analysis is the per-detector breakdown behind a score. Detectors that cannot
// describe themselves leave their part nil.
type Analysis struct {
	Hallucination *HallucinationAnalysis `json:"hallucination,omitempty"`
	Sentiment     *SentimentAnalysis     `json:"sentiment,omitempty"`
	Tone          *ToneReport            `json:"tone,omitempty"`
	Credibility   *CredibilityReport     `json:"credibility,omitempty"`
}

// Explain describes how each detector sees item. It makes no network calls.
func (s *Scorer) Explain(item models.ContentItem) Analysis {
	text := item.SummaryText()
	var out Analysis
	if d, ok := s.hallucination.(interface {
		DetailedAnalysis(summary, source string) HallucinationAnalysis
	}); ok {
		h := d.DetailedAnalysis(text, item.Content)
		out.Hallucination = &h
	}
	if d, ok := s.sentiment.(interface {
		DetailedAnalysis(text string) SentimentAnalysis
		ProfessionalTone(text string) ToneReport
	}); ok {
		sa, tone := d.DetailedAnalysis(text), d.ProfessionalTone(text)
		out.Sentiment, out.Tone = &sa, &tone
	}
	if d, ok := s.factual.(interface {
		CredibilityReport(rawURL string) CredibilityReport
	}); ok {
		c := d.CredibilityReport(item.URL)
		out.Credibility = &c
	}
	return out
}

func runDetector(def float64, fn func() (float64, error)) (sig Signal) {
	defer func() {
		if r := recover(); r != nil {
			sig = Signal{Score: def, Degraded: true, Reason: fmt.Sprintf("panic: %v", r)}
		}
	}()
	v, err := fn()
	if err != nil {
		return Signal{Score: def, Degraded: true, Reason: err.Error()}
	}
	if math.IsNaN(v) {
		return Signal{Score: def, Degraded: true, Reason: "detector returned NaN"}
	}
	return Signal{Score: v}
}

// Combine derives the composite score, review decision and flags from the three
// sub-scores. It depends on nothing else.
func Combine(hallucination, factual, sentiment float64) models.QualityResult {
	// review is decided on the unrounded composite; rounding is for reporting
	quality := 0.40*hallucination + 0.35*factual + 0.25*(1-math.Abs(sentiment))
	quality = math.Max(0, math.Min(1, quality))

	risk := 1 - hallucination
	flags := []string{}
	if risk > maxHallucinationRisk {
		flags = append(flags, FlagHighHallucinationRisk)
	}
	if factual < minFactualScore {
		flags = append(flags, FlagLowFactualAccuracy)
	}
	if sentiment < minSentiment {
		flags = append(flags, FlagNegativeSentiment)
	}
	if sentiment > maxSentiment {
		flags = append(flags, FlagOverlyPositive)
	}

	return models.QualityResult{
		QualityScore:       round3(quality),
		HallucinationScore: hallucination,
		FactualScore:       factual,
		SentimentScore:     sentiment,
		ConfidenceScore:    1.0,
		NeedsReview: quality < reviewQualityThreshold ||
			risk > maxHallucinationRisk ||
			factual < minFactualScore ||
			sentiment < minSentiment,
		Flags: flags,
	}
}

// ToFields converts a result into the persisted quality columns
func ToFields(r models.QualityResult, checkedAt time.Time) models.QualityFields {
	h, f, s := r.HallucinationScore, r.FactualScore, r.SentimentScore
	return models.QualityFields{
		QualityScore:       r.QualityScore,
		HallucinationScore: &h,
		FactualScore:       &f,
		SentimentScore:     &s,
		ConfidenceScore:    r.ConfidenceScore,
		NeedsReview:        r.NeedsReview,
		Flags:              r.Flags,
		CheckedAt:          checkedAt,
	}
}
