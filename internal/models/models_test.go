package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSourceEligibility(t *testing.T) {
	now := time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)
	at := func(mins int) *time.Time {
		ts := now.Add(-time.Duration(mins) * time.Minute)
		return &ts
	}

	tests := []struct {
		name  string
		src   ContentSource
		force bool
		want  bool
	}{
		{"never fetched", ContentSource{Active: true, FetchFrequencyMinutes: 60}, false, true},
		{"window elapsed exactly", ContentSource{Active: true, FetchFrequencyMinutes: 60, LastFetched: at(60)}, false, true},
		{"too soon", ContentSource{Active: true, FetchFrequencyMinutes: 60, LastFetched: at(30)}, false, false},
		{"too soon but forced", ContentSource{Active: true, FetchFrequencyMinutes: 60, LastFetched: at(30)}, true, true},
		{"inactive", ContentSource{Active: false}, true, false},
		{"unhealthy", ContentSource{Active: true, ErrorCount: MaxSourceErrors}, true, false},
		{"one below limit", ContentSource{Active: true, ErrorCount: MaxSourceErrors - 1}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.src.Eligible(now, tt.force))
		})
	}
}

func TestSourceConfigAccessors(t *testing.T) {
	src := ContentSource{Config: map[string]any{
		"limit":     float64(30),
		"yaml_int":  12,
		"str_int":   " 7 ",
		"flag":      "true",
		"name":      "golang",
		"empty":     "",
		"keywords":  []any{"go", "", 3, "rust"},
		"single":    "only",
		"bool_real": false,
	}}

	assert.Equal(t, 30, src.ConfigInt("limit", 1))
	assert.Equal(t, 12, src.ConfigInt("yaml_int", 1))
	assert.Equal(t, 7, src.ConfigInt("str_int", 1))
	assert.Equal(t, 5, src.ConfigInt("missing", 5))
	assert.True(t, src.ConfigBool("flag", false))
	assert.False(t, src.ConfigBool("bool_real", true))
	assert.Equal(t, "golang", src.ConfigString("name", "x"))
	assert.Equal(t, "x", src.ConfigString("empty", "x"))
	assert.Equal(t, []string{"go", "rust"}, src.ConfigStrings("keywords"))
	assert.Equal(t, []string{"only"}, src.ConfigStrings("single"))
	assert.Nil(t, src.ConfigStrings("missing"))
}

func TestContentItemSummaryText(t *testing.T) {
	item := ContentItem{Content: "body"}
	assert.Equal(t, "body", item.SummaryText())

	empty := ""
	item.Summary = &empty
	assert.Equal(t, "body", item.SummaryText())

	s := "short"
	item.Summary = &s
	assert.Equal(t, "short", item.SummaryText())
}

func TestParsedItemEngagement(t *testing.T) {
	up, score := 12, 99.0
	assert.Equal(t, 0.0, ParsedItem{}.Engagement())
	assert.Equal(t, 99.0, ParsedItem{Score: &score}.Engagement())
	assert.Equal(t, 12.0, ParsedItem{Upvotes: &up, Score: &score}.Engagement())
}
