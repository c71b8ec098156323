package feed

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/bilgisen/newsauto/internal/models"
)

const DefaultRedditBaseURL = "https://www.reddit.com"

// RedditAdapter reads subreddit listings from the public JSON endpoints
type RedditAdapter struct {
	client  *resty.Client
	baseURL string
}

func NewRedditAdapter(client *resty.Client, baseURL string) *RedditAdapter {
	return &RedditAdapter{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

type redditListing struct {
	Data struct {
		Children []struct {
			Kind string         `json:"kind"`
			Data models.RawItem `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (a *RedditAdapter) FetchRaw(ctx context.Context, src models.ContentSource) ([]models.RawItem, error) {
	subreddit := src.ConfigString("subreddit", "programming")
	limit := src.ConfigInt("limit", 50)

	sort := src.ConfigString("sort", "hot")
	switch sort {
	case "hot", "new", "top", "rising":
	default:
		sort = "hot"
	}

	params := map[string]string{"limit": strconv.Itoa(limit), "raw_json": "1"}
	if sort == "top" {
		params["t"] = src.ConfigString("time_filter", "week")
	}

	var listing redditListing
	url := fmt.Sprintf("%s/r/%s/%s.json", a.baseURL, subreddit, sort)
	if err := getJSON(ctx, a.client, url, params, &listing); err != nil {
		return nil, err
	}

	items := make([]models.RawItem, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		if child.Kind == "t3" && child.Data != nil {
			items = append(items, child.Data)
		}
	}
	return items, nil
}

func (a *RedditAdapter) ParseItem(src models.ContentSource, raw models.RawItem) (*models.ParsedItem, error) {
	if rawBool(raw, "stickied") && !src.ConfigBool("include_stickied", false) {
		return nil, nil
	}
	if rawBool(raw, "over_18") && !src.ConfigBool("include_nsfw", false) {
		return nil, nil
	}

	score := rawInt(raw, "score")
	if score < src.ConfigInt("min_score", 0) {
		return nil, nil
	}

	permalink := rawString(raw, "permalink")
	if permalink == "" {
		return nil, fmt.Errorf("reddit post %q without permalink", rawString(raw, "id"))
	}
	redditURL := "https://reddit.com" + permalink

	isSelf := rawBool(raw, "is_self")
	link := rawString(raw, "url")
	url := link
	if isSelf || url == "" {
		url = redditURL
	}

	comments := rawInt(raw, "num_comments")
	subreddit := rawString(raw, "subreddit")

	content := rawString(raw, "selftext")
	if content == "" && !isSelf {
		content = "External link: " + link
	}
	content += fmt.Sprintf("\n\n---\nPosted in r/%s | Score: %d | Comments: %d", subreddit, score, comments)

	author := rawString(raw, "author")
	if author == "" {
		author = "[deleted]"
	}

	return &models.ParsedItem{
		Title:        rawString(raw, "title"),
		URL:          url,
		Author:       author,
		Content:      content,
		PublishedAt:  rawUnix(raw, "created_utc"),
		Upvotes:      intPtr(score),
		CommentCount: comments,
		Metadata: map[string]any{
			"source_type":      string(models.SourceReddit),
			"reddit_id":        rawString(raw, "id"),
			"subreddit":        subreddit,
			"reddit_score":     score,
			"upvote_ratio":     rawFloat(raw, "upvote_ratio"),
			"comment_count":    comments,
			"is_self_post":     isSelf,
			"flair":            rawString(raw, "link_flair_text"),
			"reddit_url":       redditURL,
			"engagement_score": score + comments*2,
		},
	}, nil
}
