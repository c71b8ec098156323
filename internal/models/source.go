package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SourceType tags the adapter responsible for a content source
type SourceType string

const (
	SourceRSS        SourceType = "rss"
	SourceReddit     SourceType = "reddit"
	SourceHackerNews SourceType = "hackernews"
	SourceGitHub     SourceType = "github"
	SourceDevTo      SourceType = "devto"
)

// MaxSourceErrors is the consecutive error count at which a source stops being fetched
const MaxSourceErrors = 5

// ContentSource is a configured origin of content
type ContentSource struct {
	ID                    int64          `json:"id"`
	Name                  string         `json:"name"`
	Type                  SourceType     `json:"type"`
	URL                   string         `json:"url,omitempty"`
	Config                map[string]any `json:"config,omitempty"`
	Active                bool           `json:"active"`
	LastFetched           *time.Time     `json:"last_fetched,omitempty"`
	FetchFrequencyMinutes int            `json:"fetch_frequency_minutes"`
	ErrorCount            int            `json:"error_count"`
	NewsletterID          *int64         `json:"newsletter_id,omitempty"`
}

// IsActive reports whether the source is enabled and healthy enough to fetch
func (s ContentSource) IsActive() bool {
	return s.Active && s.ErrorCount < MaxSourceErrors
}

// NeedsFetch reports whether the cadence window has elapsed at now
func (s ContentSource) NeedsFetch(now time.Time) bool {
	if s.LastFetched == nil {
		return true
	}
	next := s.LastFetched.Add(time.Duration(s.FetchFrequencyMinutes) * time.Minute)
	return !now.Before(next)
}

// Eligible combines IsActive and NeedsFetch; force skips the cadence check only
func (s ContentSource) Eligible(now time.Time, force bool) bool {
	if !s.IsActive() {
		return false
	}
	return force || s.NeedsFetch(now)
}

// ConfigString returns a string config value or def
func (s ContentSource) ConfigString(key, def string) string {
	v, ok := s.Config[key]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case string:
		if t == "" {
			return def
		}
		return t
	default:
		return fmt.Sprint(t)
	}
}

// ConfigInt returns an integer config value or def.
// JSON decoding yields float64, YAML yields int; both are accepted.
func (s ContentSource) ConfigInt(key string, def int) int {
	switch t := s.Config[key].(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
	}
	return def
}

// ConfigBool returns a boolean config value or def
func (s ContentSource) ConfigBool(key string, def bool) bool {
	switch t := s.Config[key].(type) {
	case bool:
		return t
	case string:
		if b, err := strconv.ParseBool(t); err == nil {
			return b
		}
	}
	return def
}

// ConfigStrings returns a list config value; a single string becomes a one-element list
func (s ContentSource) ConfigStrings(key string) []string {
	switch t := s.Config[key].(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, v := range t {
			if str, ok := v.(string); ok && str != "" {
				out = append(out, str)
			}
		}
		return out
	case string:
		if t != "" {
			return []string{t}
		}
	}
	return nil
}
