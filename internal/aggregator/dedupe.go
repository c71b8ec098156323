package aggregator

import (
	"slices"
	"strings"

	"github.com/bilgisen/newsauto/internal/models"
)

// DefaultSimilarityThreshold is the title similarity at which two items are near duplicates
const DefaultSimilarityThreshold = 0.8

// Dedupe keeps the highest scoring item among exact URL matches and
// near-duplicate titles. The result is ordered by relevance descending.
func Dedupe(items []models.ContentItem, threshold float64) []models.ContentItem {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}

	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b models.ContentItem) int {
		switch {
		case a.RelevanceScore > b.RelevanceScore:
			return -1
		case a.RelevanceScore < b.RelevanceScore:
			return 1
		}
		return 0
	})

	seenURLs := make(map[string]struct{}, len(sorted))
	var titles []string
	out := make([]models.ContentItem, 0, len(sorted))

	for _, item := range sorted {
		if _, ok := seenURLs[item.URL]; ok {
			continue
		}

		title := strings.ToLower(item.Title)
		duplicate := false
		for _, accepted := range titles {
			if Similarity(title, accepted) >= threshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}

		seenURLs[item.URL] = struct{}{}
		titles = append(titles, title)
		out = append(out, item)
	}
	return out
}

// Similarity is the longest-common-subsequence ratio 2*LCS/(len(a)+len(b))
// over runes. It is symmetric and 1.0 for identical strings.
func Similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	return 2 * float64(lcsLength(ra, rb)) / float64(total)
}

func lcsLength(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
