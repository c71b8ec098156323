package ai

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var (
	controlChars   = regexp.MustCompile(`[\x00-\x1F\x7F]`)
	scriptBlock    = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	dangerousTag   = regexp.MustCompile(`(?i)</?(?:script|iframe|object|embed|link|meta)[^>]*>`)
	summaryPrefix  = regexp.MustCompile(`(?i)^(?:here is|here's)?\s*(?:a|the)?\s*summary\s*:\s*`)
	sentenceEnding = regexp.MustCompile(`[.!?]+(?:\s+|$)`)
)

// ErrEmptySummary means the model returned nothing usable
var ErrEmptySummary = errors.New("empty summary")

type PostProcessor struct {
	maxSummaryLength int
	minSummaryLength int
	maxKeyPoints     int
	maxPointLength   int
}

func NewPostProcessor() *PostProcessor {
	return &PostProcessor{
		maxSummaryLength: 800,
		minSummaryLength: 20,
		maxKeyPoints:     5,
		maxPointLength:   200,
	}
}

// ProcessSummary cleans a generated summary and rejects ones that are too short
func (p *PostProcessor) ProcessSummary(s string) (string, error) {
	s = scriptBlock.ReplaceAllString(s, "")
	s = dangerousTag.ReplaceAllString(s, "")
	s = p.cleanText(s)
	s = summaryPrefix.ReplaceAllString(s, "")
	s = strings.Trim(s, `"' `)

	if s == "" {
		return "", ErrEmptySummary
	}
	if len(s) < p.minSummaryLength {
		return "", fmt.Errorf("summary too short, minimum %d characters required", p.minSummaryLength)
	}
	return truncate(s, p.maxSummaryLength), nil
}

// ProcessKeyPoints cleans, dedupes and caps a key point list
func (p *PostProcessor) ProcessKeyPoints(points []string) []string {
	out := make([]string, 0, len(points))
	seen := make(map[string]struct{}, len(points))
	for _, pt := range points {
		pt = p.cleanText(pt)
		if pt == "" {
			continue
		}
		key := strings.ToLower(pt)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, truncate(pt, p.maxPointLength))
		if len(out) == p.maxKeyPoints {
			break
		}
	}
	return out
}

// ExtractiveSummary is the fallback when the model is unavailable: the first n sentences of content
func (p *PostProcessor) ExtractiveSummary(content string, n int) string {
	content = p.cleanText(content)
	if content == "" {
		return ""
	}

	ends := sentenceEnding.FindAllStringIndex(content, n)
	if len(ends) < n {
		return truncate(content, p.maxSummaryLength)
	}
	return truncate(strings.TrimSpace(content[:ends[n-1][1]]), p.maxSummaryLength)
}

// cleanText removes unwanted characters and normalizes whitespace
func (p *PostProcessor) cleanText(s string) string {
	s = controlChars.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// parseKeyPoints keeps numbered or bulleted lines and strips their markers
func parseKeyPoints(text string) []string {
	var points []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		first := []rune(line)[0]
		if !unicode.IsDigit(first) && first != '-' && first != '*' && first != '•' {
			continue
		}
		point := strings.TrimSpace(strings.TrimLeft(line, "0123456789.-)*• "))
		if point != "" {
			points = append(points, point)
		}
	}
	return points
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n-3])) + "..."
}
