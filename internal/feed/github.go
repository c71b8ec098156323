package feed

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/bilgisen/newsauto/internal/models"
)

const DefaultGitHubTrendingURL = "https://github.com/trending"

var starsTodayRegex = regexp.MustCompile(`([\d,]+)\s+stars`)

// GitHubAdapter scrapes the GitHub trending page
type GitHubAdapter struct {
	client *resty.Client
	url    string
	now    func() time.Time
}

func NewGitHubAdapter(client *resty.Client, trendingURL string) *GitHubAdapter {
	return &GitHubAdapter{client: client, url: trendingURL, now: time.Now}
}

func (a *GitHubAdapter) FetchRaw(ctx context.Context, src models.ContentSource) ([]models.RawItem, error) {
	limit := src.ConfigInt("limit", 25)

	params := map[string]string{}
	if lang := src.ConfigString("language", ""); lang != "" {
		params["language"] = lang
	}
	params["since"] = src.ConfigString("since", "daily")

	body, err := getBody(ctx, a.client, a.url, params, "text/html")
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse trending page: %w", err)
	}

	fetchedAt := a.now().UTC()
	var repos []models.RawItem
	doc.Find("article.Box-row").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if repo := parseRepoRow(row); repo != nil {
			repo["fetched_at"] = fetchedAt
			repos = append(repos, repo)
		}
		return len(repos) < limit
	})
	return repos, nil
}

func parseRepoRow(row *goquery.Selection) models.RawItem {
	href, ok := row.Find("h2 a").First().Attr("href")
	if !ok {
		return nil
	}
	path := strings.Trim(strings.TrimSpace(href), "/")
	owner, name, found := strings.Cut(path, "/")
	if !found || owner == "" || name == "" {
		return nil
	}

	starsToday := 0
	if m := starsTodayRegex.FindStringSubmatch(row.Find("span.d-inline-block.float-sm-right").Text()); m != nil {
		starsToday, _ = strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	}

	return models.RawItem{
		"owner":       owner,
		"name":        name,
		"full_name":   owner + "/" + name,
		"description": strings.TrimSpace(row.Find("p.col-9").Text()),
		"language":    strings.TrimSpace(row.Find(`span[itemprop="programmingLanguage"]`).Text()),
		"stars":       parseCount(row.Find(`a[href$="/stargazers"]`).First().Text()),
		"stars_today": starsToday,
		"forks":       parseCount(row.Find(`a[href$="/forks"]`).First().Text()),
		"url":         "https://github.com/" + owner + "/" + name,
	}
}

// parseCount reads "1,234" or "12.5k"
func parseCount(text string) int {
	text = strings.TrimSpace(text)
	if strings.HasSuffix(text, "k") {
		f, err := strconv.ParseFloat(strings.TrimSuffix(text, "k"), 64)
		if err != nil {
			return 0
		}
		return int(math.Round(f * 1000))
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, text)
	n, _ := strconv.Atoi(digits)
	return n
}

func (a *GitHubAdapter) ParseItem(src models.ContentSource, raw models.RawItem) (*models.ParsedItem, error) {
	fullName := rawString(raw, "full_name")
	if fullName == "" {
		return nil, fmt.Errorf("github repo without name")
	}

	stars := rawInt(raw, "stars")
	starsToday := rawInt(raw, "stars_today")
	forks := rawInt(raw, "forks")
	language := rawString(raw, "language")
	url := rawString(raw, "url")

	title := fullName
	if starsToday > 0 {
		title += fmt.Sprintf(" - %d stars today", starsToday)
	}

	var parts []string
	if desc := rawString(raw, "description"); desc != "" {
		parts = append(parts, "**Description**: "+desc)
	}
	lang := language
	if lang == "" {
		lang = "Unknown"
	}
	parts = append(parts,
		"**Language**: "+lang,
		fmt.Sprintf("**Stars**: %d", stars),
		fmt.Sprintf("**Forks**: %d", forks),
		fmt.Sprintf("\n[View on GitHub](%s)", url),
	)

	var published *time.Time
	if t, ok := raw["fetched_at"].(time.Time); ok {
		published = &t
	}

	return &models.ParsedItem{
		Title:       title,
		URL:         url,
		Author:      rawString(raw, "owner"),
		Content:     strings.Join(parts, "\n\n"),
		PublishedAt: published,
		Upvotes:     intPtr(stars),
		Score:       floatPtr(float64(starsToday)),
		Metadata: map[string]any{
			"source_type": string(models.SourceGitHub),
			"language":    language,
			"stars":       stars,
			"stars_today": starsToday,
			"forks":       forks,
		},
	}, nil
}
