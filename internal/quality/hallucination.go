package quality

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

var (
	multiWordEntity = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+){1,2}\b`)
	nonWord         = regexp.MustCompile(`[^\w]`)

	factPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)according to (?:the|a) (?:report|study|research)`),
		regexp.MustCompile(`(?i)studies show`),
		regexp.MustCompile(`(?i)experts say`),
		regexp.MustCompile(`(?i)scientists discovered`),
		regexp.MustCompile(`\d{1,3}% of`),
		regexp.MustCompile(`(?i)(?:increased|decreased) by \d+%`),
		regexp.MustCompile(`\b\d{4}\b`),
		regexp.MustCompile(`(?i)\$[\d,]+(?:\.\d+)?(?:\s+(?:million|billion))?`),
		regexp.MustCompile(`(?i)CEO (?:announced|stated|said)`),
	}

	numberPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d+(?:\.\d+)?%`),
		regexp.MustCompile(`\$\d+(?:,\d{3})*(?:\.\d{2})?`),
		regexp.MustCompile(`\b\d{4}\b`),
		regexp.MustCompile(`\d+(?:\.\d+)?`),
	}
)

const (
	entityWeight  = 0.40
	factWeight    = 0.35
	numericWeight = 0.25

	factPrefixLen   = 20
	maxFlaggedFacts = 5
)

// HallucinationDetector compares a summary against the text it was derived from
type HallucinationDetector struct{}

// NewHallucinationDetector returns a detector
func NewHallucinationDetector() *HallucinationDetector {
	return &HallucinationDetector{}
}

// Check scores summary against source; 1.0 means nothing unsupported was found.
// Either input empty yields the neutral 0.5.
func (d *HallucinationDetector) Check(summary, source string) float64 {
	if strings.TrimSpace(summary) == "" || strings.TrimSpace(source) == "" {
		return 0.5
	}
	s := d.subScores(summary, source)
	return round3(entityWeight*s.Entity + factWeight*s.Fact + numericWeight*s.Numeric)
}

// HallucinationAnalysis breaks a Check result down by signal
type HallucinationAnalysis struct {
	OverallScore       float64  `json:"overall_score"`
	EntityConsistency  float64  `json:"entity_consistency"`
	FactConsistency    float64  `json:"fact_consistency"`
	NumericConsistency float64  `json:"numeric_consistency"`
	FlaggedPatterns    []string `json:"flagged_patterns"`
	RiskLevel          string   `json:"risk_level"`
}

// DetailedAnalysis reports the sub-scores, unverified claims and a risk level
func (d *HallucinationDetector) DetailedAnalysis(summary, source string) HallucinationAnalysis {
	out := HallucinationAnalysis{
		OverallScore:    d.Check(summary, source),
		FlaggedPatterns: []string{},
	}
	if strings.TrimSpace(summary) == "" || strings.TrimSpace(source) == "" {
		out.EntityConsistency, out.FactConsistency, out.NumericConsistency = 0.5, 0.5, 0.5
		out.RiskLevel = riskLevel(0.5)
		return out
	}

	s := d.subScores(summary, source)
	out.EntityConsistency = round3(s.Entity)
	out.FactConsistency = round3(s.Fact)
	out.NumericConsistency = round3(s.Numeric)
	if len(s.Unverified) > 0 {
		out.FlaggedPatterns = s.Unverified[:min(len(s.Unverified), maxFlaggedFacts)]
	}
	out.RiskLevel = riskLevel((s.Entity + s.Fact + s.Numeric) / 3)
	return out
}

type hallucinationScores struct {
	Entity     float64
	Fact       float64
	Numeric    float64
	Unverified []string
}

func (d *HallucinationDetector) subScores(summary, source string) hallucinationScores {
	fact, unverified := factConsistency(summary, source)
	return hallucinationScores{
		Entity:     entityConsistency(summary, source),
		Fact:       fact,
		Numeric:    numericConsistency(summary, source),
		Unverified: unverified,
	}
}

func entityConsistency(summary, source string) float64 {
	want := extractEntities(summary)
	if len(want) == 0 {
		return 1.0
	}
	have := extractEntities(source)
	found := 0
	for e := range want {
		if _, ok := have[e]; ok {
			found++
		}
	}
	return float64(found) / float64(len(want))
}

// extractEntities runs on the original casing; capitalization is the only signal
func extractEntities(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.Fields(text) {
		tok = nonWord.ReplaceAllString(tok, "")
		if len(tok) < 3 {
			continue
		}
		if r := []rune(tok)[0]; unicode.IsUpper(r) {
			out[strings.ToLower(tok)] = struct{}{}
		}
	}
	for _, m := range multiWordEntity.FindAllString(text, -1) {
		out[strings.ToLower(m)] = struct{}{}
	}
	return out
}

func factConsistency(summary, source string) (float64, []string) {
	lowerSource := strings.ToLower(source)
	total := 0
	var unverified []string
	for _, p := range factPatterns {
		for _, m := range p.FindAllString(summary, -1) {
			total++
			prefix := m
			if len(prefix) > factPrefixLen {
				prefix = prefix[:factPrefixLen]
			}
			if !strings.Contains(lowerSource, strings.ToLower(prefix)) {
				unverified = append(unverified, m)
			}
		}
	}
	if total == 0 {
		return 1.0, nil
	}
	return 1.0 - float64(len(unverified))/float64(total), unverified
}

func numericConsistency(summary, source string) float64 {
	want := extractNumbers(summary)
	if len(want) == 0 {
		return 1.0
	}
	have := extractNumbers(source)
	found := 0
	for n := range want {
		if _, ok := have[n]; ok {
			found++
		}
	}
	return float64(found) / float64(len(want))
}

func extractNumbers(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, p := range numberPatterns {
		for _, m := range p.FindAllString(text, -1) {
			out[m] = struct{}{}
		}
	}
	return out
}

func riskLevel(avg float64) string {
	switch {
	case avg >= 0.85:
		return "low"
	case avg >= 0.70:
		return "medium"
	default:
		return "high"
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
