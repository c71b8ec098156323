package quality

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

var (
	positiveWords = wordSet(
		"amazing", "excellent", "fantastic", "wonderful", "great", "outstanding",
		"remarkable", "brilliant", "perfect", "incredible", "extraordinary",
		"exceptional", "superb", "magnificent", "spectacular", "phenomenal",
		"revolutionary", "groundbreaking", "gamechanging",
	)
	negativeWords = wordSet(
		"terrible", "awful", "horrible", "disappointing", "disastrous", "catastrophic",
		"catastrophe", "failure", "failed", "worst", "problem", "issue", "concern",
		"controversy", "scandal", "crisis", "nightmare", "disaster", "devastating",
		"alarming", "shocking",
	)
	intensifiers = wordSet(
		"very", "extremely", "highly", "incredibly", "absolutely", "totally", "completely",
	)

	toneChecks = []struct {
		pattern *regexp.Regexp
		issue   string
	}{
		{regexp.MustCompile(`!\s*!+`), "multiple exclamation marks"},
		{regexp.MustCompile(`\?!`), "interrobang"},
		{regexp.MustCompile(`[A-Z]{3,}`), "all-caps words"},
		{regexp.MustCompile(`!!+`), "excessive exclamation"},
		{regexp.MustCompile(`\.\.\.+`), "trailing ellipsis"},
	}
)

const (
	intensifiedWeight = 1.5
	dampingFactor     = 0.3
	maxReportedWords  = 10
)

func wordSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// SentimentAnalyzer is a lexicon-based tone estimator
type SentimentAnalyzer struct{}

// NewSentimentAnalyzer returns an analyzer
func NewSentimentAnalyzer() *SentimentAnalyzer {
	return &SentimentAnalyzer{}
}

// Analyze returns a score in [-1,1]; 0 is neutral
func (a *SentimentAnalyzer) Analyze(text string) float64 {
	c := a.count(text)
	return c.score()
}

type sentimentCounts struct {
	positive      float64
	negative      float64
	positiveWords []string
	negativeWords []string
}

func (c sentimentCounts) score() float64 {
	total := c.positive + c.negative
	if total == 0 {
		return 0
	}
	net := (c.positive - c.negative) / total
	return round3(net * (1 - math.Abs(net)*dampingFactor))
}

func (a *SentimentAnalyzer) count(text string) sentimentCounts {
	var c sentimentCounts
	tokens := tokenize(text)
	for i, tok := range tokens {
		weight := 1.0
		if i > 0 {
			if _, ok := intensifiers[tokens[i-1]]; ok {
				weight = intensifiedWeight
			}
		}
		if _, ok := positiveWords[tok]; ok {
			c.positive += weight
			c.positiveWords = append(c.positiveWords, tok)
		}
		if _, ok := negativeWords[tok]; ok {
			c.negative += weight
			c.negativeWords = append(c.negativeWords, tok)
		}
	}
	return c
}

// tokenize lower-cases text and drops everything but letters, digits and
// underscores, so "game-changing!" becomes "gamechanging"
func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
				return r
			}
			return -1
		}, f)
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

// Classify maps a sentiment score onto a named band
func Classify(score float64) string {
	switch {
	case score >= 0.5:
		return "very_positive"
	case score >= 0.2:
		return "positive"
	case score >= -0.2:
		return "neutral"
	case score >= -0.5:
		return "negative"
	default:
		return "very_negative"
	}
}

// SentimentAnalysis is the expanded output of DetailedAnalysis
type SentimentAnalysis struct {
	SentimentScore float64  `json:"sentiment_score"`
	PositiveCount  float64  `json:"positive_count"`
	NegativeCount  float64  `json:"negative_count"`
	PositiveWords  []string `json:"positive_words"`
	NegativeWords  []string `json:"negative_words"`
	Classification string   `json:"classification"`
	IsNeutral      bool     `json:"is_neutral"`
	BiasWarning    bool     `json:"bias_warning"`
}

func (a *SentimentAnalyzer) DetailedAnalysis(text string) SentimentAnalysis {
	c := a.count(text)
	score := c.score()
	return SentimentAnalysis{
		SentimentScore: score,
		PositiveCount:  c.positive,
		NegativeCount:  c.negative,
		PositiveWords:  firstN(c.positiveWords, maxReportedWords),
		NegativeWords:  firstN(c.negativeWords, maxReportedWords),
		Classification: Classify(score),
		IsNeutral:      math.Abs(score) < 0.2,
		BiasWarning:    math.Abs(score) > 0.5,
	}
}

// ToneReport is the result of ProfessionalTone
type ToneReport struct {
	IsProfessional bool     `json:"is_professional"`
	SentimentScore float64  `json:"sentiment_score"`
	Issues         []string `json:"issues"`
	Recommendation string   `json:"recommendation"`
}

// ProfessionalTone flags shouty punctuation and capitalization on top of sentiment
func (a *SentimentAnalyzer) ProfessionalTone(text string) ToneReport {
	score := a.Analyze(text)
	issues := []string{}
	for _, tc := range toneChecks {
		if tc.pattern.MatchString(text) {
			issues = append(issues, tc.issue)
		}
	}

	var rec string
	switch {
	case math.Abs(score) > 0.5 && score > 0:
		rec = "Tone is overly positive. Use more neutral language."
	case math.Abs(score) > 0.5:
		rec = "Tone is overly negative. Balance with factual observations."
	case len(issues) > 0:
		rec = "Avoid excessive punctuation and capitalization for professional tone."
	default:
		rec = "Tone is appropriate and professional."
	}

	return ToneReport{
		IsProfessional: math.Abs(score) < 0.3 && len(issues) == 0,
		SentimentScore: score,
		Issues:         issues,
		Recommendation: rec,
	}
}

func firstN(s []string, n int) []string {
	if s == nil {
		return []string{}
	}
	if len(s) > n {
		return s[:n]
	}
	return s
}
