package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/bilgisen/newsauto/internal/models"
)

// SourceSpec describes one content source in the YAML seed file.
type SourceSpec struct {
	Name                  string         `yaml:"name" validate:"required"`
	Type                  string         `yaml:"type" validate:"required,oneof=rss reddit hackernews github devto"`
	URL                   string         `yaml:"url" validate:"omitempty,url"`
	Config                map[string]any `yaml:"config"`
	Active                *bool          `yaml:"active"`
	FetchFrequencyMinutes int            `yaml:"fetch_frequency_minutes" validate:"gte=0"`
	NewsletterID          *int64         `yaml:"newsletter_id"`
}

type sourcesFile struct {
	Sources []SourceSpec `yaml:"sources" validate:"dive"`
}

// LoadSources reads and validates a YAML seed file.
func LoadSources(path string) ([]models.ContentSource, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file %s: %w", path, err)
	}
	return ParseSources(raw)
}

// ParseSources decodes YAML seed content into content sources.
func ParseSources(raw []byte) ([]models.ContentSource, error) {
	var file sourcesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse sources: %w", err)
	}

	if err := validator.New().Struct(file); err != nil {
		return nil, fmt.Errorf("validate sources: %w", err)
	}

	out := make([]models.ContentSource, 0, len(file.Sources))
	for _, entry := range file.Sources {
		active := true
		if entry.Active != nil {
			active = *entry.Active
		}
		freq := entry.FetchFrequencyMinutes
		if freq == 0 {
			freq = 60
		}
		cfg := entry.Config
		if cfg == nil {
			cfg = map[string]any{}
		}
		out = append(out, models.ContentSource{
			Name:                  entry.Name,
			Type:                  models.SourceType(entry.Type),
			URL:                   entry.URL,
			Config:                cfg,
			Active:                active,
			FetchFrequencyMinutes: freq,
			NewsletterID:          entry.NewsletterID,
		})
	}
	return out, nil
}
