package feed

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"

	"github.com/bilgisen/newsauto/internal/models"
)

const (
	DefaultHackerNewsBaseURL = "https://hacker-news.firebaseio.com/v0"
	hackerNewsItemURL        = "https://news.ycombinator.com/item?id=%d"
	hackerNewsBatchSize      = 10
)

// HackerNewsAdapter reads story lists from the HackerNews Firebase API
type HackerNewsAdapter struct {
	client  *resty.Client
	baseURL string
}

func NewHackerNewsAdapter(client *resty.Client, baseURL string) *HackerNewsAdapter {
	return &HackerNewsAdapter{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (a *HackerNewsAdapter) FetchRaw(ctx context.Context, src models.ContentSource) ([]models.RawItem, error) {
	limit := src.ConfigInt("limit", 50)
	minScore := src.ConfigInt("min_score", 0)

	var endpoint string
	switch src.ConfigString("story_type", "top") {
	case "best":
		endpoint = "beststories"
	case "new":
		endpoint = "newstories"
	default:
		endpoint = "topstories"
	}

	var ids []int64
	if err := getJSON(ctx, a.client, fmt.Sprintf("%s/%s.json", a.baseURL, endpoint), nil, &ids); err != nil {
		return nil, err
	}
	// fetch extra for filtering
	if len(ids) > limit*2 {
		ids = ids[:limit*2]
	}

	var stories []models.RawItem
	for start := 0; start < len(ids); start += hackerNewsBatchSize {
		end := min(start+hackerNewsBatchSize, len(ids))
		batch, err := a.fetchBatch(ctx, ids[start:end])
		if err != nil {
			return nil, err
		}
		stories = append(stories, batch...)
	}

	out := stories[:0]
	for _, s := range stories {
		if minScore > 0 && rawInt(s, "score") < minScore {
			continue
		}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// fetchBatch loads item details concurrently; individual failures drop the item
func (a *HackerNewsAdapter) fetchBatch(ctx context.Context, ids []int64) ([]models.RawItem, error) {
	results := make([]models.RawItem, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			var story models.RawItem
			if err := getJSON(ctx, a.client, fmt.Sprintf("%s/item/%d.json", a.baseURL, id), nil, &story); err != nil {
				return nil
			}
			if rawString(story, "type") == "story" {
				results[i] = story
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]models.RawItem, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

func (a *HackerNewsAdapter) ParseItem(src models.ContentSource, raw models.RawItem) (*models.ParsedItem, error) {
	if rawBool(raw, "dead") || rawBool(raw, "deleted") {
		return nil, nil
	}

	id := rawInt(raw, "id")
	if id == 0 {
		return nil, fmt.Errorf("hackernews story without id")
	}
	hnURL := fmt.Sprintf(hackerNewsItemURL, id)

	link := rawString(raw, "url")
	url := link
	if url == "" {
		url = hnURL // text posts link to the discussion
	}

	points := rawInt(raw, "score")
	comments := rawInt(raw, "descendants")

	content := rawString(raw, "text")
	if content == "" && link != "" {
		content = "External link: " + link
	}
	content += fmt.Sprintf("\n\n---\nHackerNews Discussion: %s\nPoints: %d | Comments: %d", hnURL, points, comments)

	title := rawString(raw, "title")
	category := "link"
	switch {
	case strings.HasPrefix(title, "Ask HN:"):
		category = "ask"
	case strings.HasPrefix(title, "Show HN:"):
		category = "show"
	case strings.HasPrefix(title, "Launch HN:"):
		category = "launch"
	}

	return &models.ParsedItem{
		Title:        title,
		URL:          url,
		Author:       rawString(raw, "by"),
		Content:      content,
		PublishedAt:  rawUnix(raw, "time"),
		Upvotes:      intPtr(points),
		CommentCount: comments,
		Metadata: map[string]any{
			"source_type":    string(models.SourceHackerNews),
			"hn_id":          id,
			"hn_score":       points,
			"comment_count":  comments,
			"hn_url":         hnURL,
			"story_category": category,
		},
	}, nil
}
