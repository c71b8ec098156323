package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/mmcdole/gofeed"

	"github.com/bilgisen/newsauto/internal/models"
)

const feedAccept = "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5"

// RSSAdapter reads RSS and Atom feeds
type RSSAdapter struct {
	client *resty.Client
	parser *Parser
}

func NewRSSAdapter(client *resty.Client, parser *Parser) *RSSAdapter {
	return &RSSAdapter{client: client, parser: parser}
}

func (a *RSSAdapter) FetchRaw(ctx context.Context, src models.ContentSource) ([]models.RawItem, error) {
	feedURL := src.URL
	if feedURL == "" {
		feedURL = src.ConfigString("feed_url", "")
	}
	if feedURL == "" {
		return nil, fmt.Errorf("no feed URL configured for source %s", src.Name)
	}

	body, err := getBody(ctx, a.client, feedURL, nil, feedAccept)
	if err != nil {
		return nil, err
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", feedURL, err)
	}

	items := make([]models.RawItem, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		items = append(items, models.RawItem{
			"entry":      entry,
			"feed_title": parsed.Title,
		})
	}
	return items, nil
}

func (a *RSSAdapter) ParseItem(src models.ContentSource, raw models.RawItem) (*models.ParsedItem, error) {
	entry, ok := raw["entry"].(*gofeed.Item)
	if !ok || entry == nil {
		return nil, errors.New("rss raw item has no feed entry")
	}

	content := entry.Content
	if content == "" {
		content = entry.Description
	}
	if content != "" && src.ConfigBool("parse_full_text", true) {
		content = a.parser.CleanHTML(content)
	}

	var author string
	if entry.Author != nil {
		author = entry.Author.Name
	}
	if author == "" && len(entry.Authors) > 0 && entry.Authors[0] != nil {
		author = entry.Authors[0].Name
	}

	published := entry.PublishedParsed
	if published == nil {
		published = entry.UpdatedParsed
	}

	metadata := map[string]any{
		"source_type": string(models.SourceRSS),
		"feed_title":  rawString(raw, "feed_title"),
	}
	if len(entry.Categories) > 0 {
		metadata["tags"] = entry.Categories
	}

	return &models.ParsedItem{
		Title:       strings.TrimSpace(entry.Title),
		URL:         strings.TrimSpace(entry.Link),
		Author:      author,
		Content:     content,
		PublishedAt: published,
		Metadata:    metadata,
	}, nil
}
