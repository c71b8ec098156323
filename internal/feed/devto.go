package feed

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/bilgisen/newsauto/internal/models"
)

const (
	DefaultDevToBaseURL = "https://dev.to/api"
	devToFullFetchLimit = 10
)

// DevToAdapter reads top articles from the Dev.to API
type DevToAdapter struct {
	client  *resty.Client
	baseURL string
}

func NewDevToAdapter(client *resty.Client, baseURL string) *DevToAdapter {
	return &DevToAdapter{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (a *DevToAdapter) FetchRaw(ctx context.Context, src models.ContentSource) ([]models.RawItem, error) {
	limit := src.ConfigInt("limit", 30)
	minReactions := src.ConfigInt("min_reactions", 10)

	params := map[string]string{
		"per_page": strconv.Itoa(min(limit*2, 100)),
		"top":      strconv.Itoa(src.ConfigInt("top_period", 7)),
	}
	if tag := src.ConfigString("tag", ""); tag != "" {
		params["tag"] = tag
	}

	var articles []models.RawItem
	if err := getJSON(ctx, a.client, a.baseURL+"/articles", params, &articles); err != nil {
		return nil, err
	}

	filtered := articles[:0]
	for _, art := range articles {
		if minReactions > 0 && rawInt(art, "public_reactions_count") < minReactions {
			continue
		}
		filtered = append(filtered, art)
		if len(filtered) == limit {
			break
		}
	}

	if src.ConfigBool("fetch_full_content", true) {
		for i := 0; i < len(filtered) && i < devToFullFetchLimit; i++ {
			var full models.RawItem
			url := fmt.Sprintf("%s/articles/%d", a.baseURL, rawInt(filtered[i], "id"))
			if err := getJSON(ctx, a.client, url, nil, &full); err == nil && full != nil {
				filtered[i] = full
			}
		}
	}
	return filtered, nil
}

func (a *DevToAdapter) ParseItem(src models.ContentSource, raw models.RawItem) (*models.ParsedItem, error) {
	user := rawMap(raw, "user")
	author := rawString(user, "name")
	if author == "" {
		author = rawString(user, "username")
	}

	reactions := rawInt(raw, "public_reactions_count")
	comments := rawInt(raw, "comments_count")
	tags := devToTags(raw)

	content := rawString(raw, "body_markdown")
	if content == "" {
		content = rawString(raw, "description")
	}
	if content != "" {
		var meta []string
		if len(tags) > 0 {
			meta = append(meta, "**Tags**: "+strings.Join(tags, ", "))
		}
		if rt := rawInt(raw, "reading_time_minutes"); rt > 0 {
			meta = append(meta, fmt.Sprintf("**Reading time**: %d minutes", rt))
		}
		meta = append(meta, fmt.Sprintf("**Reactions**: %d | **Comments**: %d", reactions, comments))
		if org := rawMap(raw, "organization"); org != nil {
			meta = append(meta, "**Organization**: "+rawString(org, "name"))
		}
		content = strings.Join(meta, "\n") + "\n\n---\n\n" + content
	}

	var published *time.Time
	if ts := rawString(raw, "published_at"); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			published = &t
		}
	}

	metadata := map[string]any{
		"source_type":          string(models.SourceDevTo),
		"tags":                 tags,
		"reading_time_minutes": rawInt(raw, "reading_time_minutes"),
		"reactions_count":      reactions,
		"comments_count":       comments,
		"cover_image":          rawString(raw, "cover_image"),
	}
	if org := rawMap(raw, "organization"); org != nil {
		metadata["organization"] = rawString(org, "name")
	}

	return &models.ParsedItem{
		Title:        strings.TrimSpace(rawString(raw, "title")),
		URL:          strings.TrimSpace(rawString(raw, "url")),
		Author:       author,
		Content:      content,
		PublishedAt:  published,
		Upvotes:      intPtr(reactions),
		CommentCount: comments,
		Metadata:     metadata,
	}, nil
}

// devToTags handles both shapes of tag_list: an array in listings and a
// comma separated string on the single-article endpoint.
func devToTags(raw models.RawItem) []string {
	if tags := rawStrings(raw, "tag_list"); tags != nil {
		return tags
	}
	if s := rawString(raw, "tag_list"); s != "" {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return rawStrings(raw, "tags")
}
