package feed

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/bilgisen/newsauto/internal/models"
)

// Parser handles cleaning, normalizing and validating parsed items
type Parser struct {
	htmlTagRegex *regexp.Regexp
	validate     *validator.Validate
}

func NewParser() *Parser {
	return &Parser{
		htmlTagRegex: regexp.MustCompile(`<[^>]*>`),
		validate:     validator.New(),
	}
}

// CleanHTML removes HTML tags and normalizes whitespace
func (p *Parser) CleanHTML(input string) string {
	// Remove HTML tags
	cleaned := p.htmlTagRegex.ReplaceAllString(input, " ")
	// Unescape HTML entities
	cleaned = html.UnescapeString(cleaned)
	// Normalize whitespace
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	return strings.TrimSpace(cleaned)
}

// Normalize trims the identifying fields of a parsed item
func (p *Parser) Normalize(item models.ParsedItem) models.ParsedItem {
	item.Title = strings.TrimSpace(item.Title)
	item.URL = strings.TrimSpace(item.URL)
	item.Author = strings.TrimSpace(item.Author)
	return item
}

// Validate checks that the item has a title and a well-formed URL
func (p *Parser) Validate(item models.ParsedItem) error {
	if err := p.validate.Struct(item); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid field %s: %s", strings.ToLower(verrs[0].Field()), verrs[0].Tag())
		}
		return err
	}
	return nil
}

// Excluded reports whether title or content contains any of the keywords
func (p *Parser) Excluded(item models.ParsedItem, keywords []string) (string, bool) {
	if len(keywords) == 0 {
		return "", false
	}
	text := strings.ToLower(item.Title + " " + item.Content)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(text, kw) {
			return kw, true
		}
	}
	return "", false
}
