package aggregator

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/bilgisen/newsauto/internal/models"
)

const (
	baseRelevance    = 40.0
	maxRelevance     = 100.0
	maxKeywordBonus  = 25.0
	keywordMatchStep = 5.0
)

// Relevance scores a parsed item in [0,100] using the source's
// trusted_authors and keywords config. Every signal only adds.
func Relevance(item models.ParsedItem, src models.ContentSource, now time.Time) float64 {
	score := baseRelevance

	if item.Author != "" {
		score += 5
		if slices.Contains(src.ConfigStrings("trusted_authors"), item.Author) {
			score += 10
		}
	}

	if item.PublishedAt != nil {
		score += ageBonus(now.Sub(*item.PublishedAt).Hours())
	}

	score += engagementBonus(item.Engagement())

	switch {
	case item.CommentCount > 100:
		score += 10
	case item.CommentCount > 50:
		score += 5
	}

	if keywords := src.ConfigStrings("keywords"); len(keywords) > 0 {
		text := strings.ToLower(item.Title + " " + item.Content)
		matches := 0
		for _, kw := range keywords {
			if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
				matches++
			}
		}
		score += math.Min(float64(matches)*keywordMatchStep, maxKeywordBonus)
	}

	return math.Min(score, maxRelevance)
}

func ageBonus(hours float64) float64 {
	switch {
	case hours < 6:
		return 25
	case hours < 24:
		return 20
	case hours < 72:
		return 10
	case hours < 168:
		return 5
	}
	return 0
}

func engagementBonus(engagement float64) float64 {
	switch {
	case engagement > 1000:
		return 20
	case engagement > 500:
		return 15
	case engagement > 100:
		return 10
	case engagement > 50:
		return 5
	}
	return 0
}
