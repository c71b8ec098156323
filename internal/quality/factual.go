package quality

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const (
	credibilityWeight   = 0.35
	accessibilityWeight = 0.25
	consistencyWeight   = 0.40

	maxSourceBytes  = 50 * 1024
	minPhraseLength = 15
)

var (
	trustedDomains = []string{
		"nytimes.com", "reuters.com", "apnews.com", "bbc.com", "bbc.co.uk",
		"theguardian.com", "wsj.com", "ft.com", "bloomberg.com", "techcrunch.com",
		"arstechnica.com", "wired.com", "nature.com", "science.org",
	}
	academicSuffixes = []string{".edu", ".gov", ".ac.uk", ".edu.au"}
	communityDomains = []string{
		"github.com", "stackoverflow.com", "medium.com", "dev.to",
		"news.ycombinator.com", "reddit.com",
	}

	phraseStopWords = map[string]struct{}{
		"the": {}, "and": {}, "but": {}, "or": {}, "a": {}, "an": {},
	}
)

// FactualChecker cross-references a summary with the page it came from
type FactualChecker struct {
	client  *resty.Client
	timeout time.Duration
	log     zerolog.Logger
}

// NewFactualChecker builds a checker whose outbound calls are bounded by timeout.
// The client does not retry; a slow or failing page only lowers the score.
func NewFactualChecker(timeout time.Duration, log zerolog.Logger) *FactualChecker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FactualChecker{
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("User-Agent", "Newsauto-QualityCheck/1.0"),
		timeout: timeout,
		log:     log.With().Str("component", "factual_checker").Logger(),
	}
}

// Check returns a score in [0,1]. Network failures are folded into the score;
// an error is returned only when ctx itself is done.
func (c *FactualChecker) Check(ctx context.Context, summary, sourceURL string) (float64, error) {
	if strings.TrimSpace(summary) == "" || strings.TrimSpace(sourceURL) == "" {
		return 0.5, nil
	}

	credibility := Credibility(sourceURL)
	access := c.accessibility(ctx, sourceURL)
	if err := ctx.Err(); err != nil {
		return 0.5, err
	}

	consistency := credibility
	if access > 0.5 {
		text, err := c.fetchText(ctx, sourceURL)
		switch {
		case err != nil:
			c.log.Debug().Err(err).Str("url", sourceURL).Msg("Source content unavailable")
		case text != "":
			consistency = contentConsistency(summary, text)
		}
	}

	score := round3(credibility*credibilityWeight + access*accessibilityWeight + consistency*consistencyWeight)
	c.log.Debug().
		Str("url", sourceURL).
		Float64("credibility", credibility).
		Float64("accessibility", access).
		Float64("score", score).
		Msg("Factual check")
	return score, nil
}

// Credibility is a domain-only trust estimate
func Credibility(rawURL string) float64 {
	domain, err := domainOf(rawURL)
	if err != nil {
		return 0.5
	}
	switch {
	case matchesDomain(domain, trustedDomains):
		return 1.0
	case hasAnySuffix(domain, academicSuffixes):
		return 0.95
	case matchesDomain(domain, communityDomains):
		return 0.75
	default:
		return 0.60
	}
}

// CredibilityReport describes how a source URL was classified
type CredibilityReport struct {
	URL              string  `json:"url"`
	Domain           string  `json:"domain"`
	IsTrustedSource  bool    `json:"is_trusted_source"`
	IsAcademic       bool    `json:"is_academic"`
	CredibilityScore float64 `json:"credibility_score"`
	TrustLevel       string  `json:"trust_level"`
}

// CredibilityReport classifies rawURL without touching the network
func (c *FactualChecker) CredibilityReport(rawURL string) CredibilityReport {
	domain, _ := domainOf(rawURL)
	score := Credibility(rawURL)
	return CredibilityReport{
		URL:              rawURL,
		Domain:           domain,
		IsTrustedSource:  domain != "" && matchesDomain(domain, trustedDomains),
		IsAcademic:       domain != "" && hasAnySuffix(domain, academicSuffixes),
		CredibilityScore: score,
		TrustLevel:       trustLevel(score),
	}
}

func trustLevel(score float64) string {
	switch {
	case score >= 0.90:
		return "high"
	case score >= 0.70:
		return "medium"
	default:
		return "low"
	}
}

func domainOf(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("no host in %q", rawURL)
	}
	return strings.TrimPrefix(host, "www."), nil
}

func matchesDomain(domain string, list []string) bool {
	for _, d := range list {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

func hasAnySuffix(domain string, suffixes []string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(domain, s) {
			return true
		}
	}
	return false
}

// accessibility maps a HEAD response onto a score
func (c *FactualChecker) accessibility(ctx context.Context, rawURL string) float64 {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.R().SetContext(ctx).Head(rawURL)
	if err != nil {
		var nerr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
			c.log.Warn().Str("url", rawURL).Msg("Timeout checking URL")
		} else {
			c.log.Warn().Err(err).Str("url", rawURL).Msg("Error checking URL accessibility")
		}
		return 0.3
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusOK:
		return 1.0
	case code >= 300 && code < 400:
		return 0.8
	case code == http.StatusForbidden:
		return 0.6
	case code == http.StatusNotFound:
		return 0.0
	default:
		return 0.4
	}
}

// fetchText downloads at most maxSourceBytes of an HTML or plain-text page and
// returns its visible text, lower-cased with whitespace collapsed
func (c *FactualChecker) fetchText(ctx context.Context, rawURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		return "", nil
	}
	contentType := resp.Header().Get("Content-Type")
	isHTML := strings.Contains(contentType, "text/html")
	if !isHTML && !strings.Contains(contentType, "text/plain") {
		return "", nil
	}

	raw, err := io.ReadAll(io.LimitReader(body, maxSourceBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", rawURL, err)
	}

	text := string(raw)
	if isHTML {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
		if err != nil {
			return "", fmt.Errorf("failed to parse %s: %w", rawURL, err)
		}
		doc.Find("script, style, noscript").Remove()
		text = doc.Text()
	}
	return strings.ToLower(strings.Join(strings.Fields(text), " ")), nil
}

// contentConsistency is the share of summary trigrams found verbatim in source,
// doubled and capped at 1
func contentConsistency(summary, source string) float64 {
	words := strings.Fields(strings.ToLower(summary))
	var phrases []string
	for i := 0; i+3 <= len(words); i++ {
		if _, stop := phraseStopWords[words[i]]; stop {
			continue
		}
		phrase := strings.Join(words[i:i+3], " ")
		if len(phrase) >= minPhraseLength {
			phrases = append(phrases, phrase)
		}
	}
	if len(phrases) == 0 {
		return 0.7
	}

	matches := 0
	for _, p := range phrases {
		if strings.Contains(source, p) {
			matches++
		}
	}
	return min(1.0, float64(matches)/float64(len(phrases))*2.0)
}
