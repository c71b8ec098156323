package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

type OllamaClient struct {
	client  *resty.Client
	model   string
	baseURL string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

func NewOllamaClient(host, model string, timeout time.Duration) *OllamaClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OllamaClient{
		client:  resty.New().SetTimeout(timeout),
		model:   model,
		baseURL: strings.TrimRight(host, "/"),
	}
}

// Model is the model name sent with every request
func (o *OllamaClient) Model() string {
	return o.model
}

// Summarize returns a 2-4 sentence newsletter summary of an article
func (o *OllamaClient) Summarize(ctx context.Context, title, content string) (string, error) {
	out, err := o.chat(ctx, PromptTemplates.SummarySystem, BuildSummaryPrompt(title, content), map[string]any{
		"temperature": 0.7,
		"num_predict": 300,
	})
	if err != nil {
		return "", fmt.Errorf("error calling Ollama API: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// KeyPoints asks for at most maxPoints key points and parses the numbered list
func (o *OllamaClient) KeyPoints(ctx context.Context, content string, maxPoints int) ([]string, error) {
	out, err := o.chat(ctx, PromptTemplates.KeyPointsSystem, BuildKeyPointsPrompt(content, maxPoints), map[string]any{
		"temperature": 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("error calling Ollama API: %w", err)
	}
	points := parseKeyPoints(out)
	if len(points) > maxPoints {
		points = points[:maxPoints]
	}
	return points, nil
}

// ListModels lists the models installed on the server; it doubles as a health check
func (o *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	var resp tagsResponse
	r, err := o.client.R().
		SetContext(ctx).
		SetResult(&resp).
		Get(o.baseURL + "/api/tags")
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	if r.IsError() {
		return nil, fmt.Errorf("unexpected status code %d", r.StatusCode())
	}

	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// CheckModel fails when the server is unreachable or the configured model is not installed
func (o *OllamaClient) CheckModel(ctx context.Context) error {
	names, err := o.ListModels(ctx)
	if err != nil {
		return err
	}
	for _, n := range names {
		if n == o.model || strings.TrimSuffix(n, ":latest") == o.model {
			return nil
		}
	}
	return fmt.Errorf("model %q is not installed (have %s)", o.model, strings.Join(names, ", "))
}

func (o *OllamaClient) chat(ctx context.Context, system, prompt string, options map[string]any) (string, error) {
	req := chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Stream:  false,
		Options: options,
	}

	var resp chatResponse
	r, err := o.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(o.baseURL + "/api/chat")
	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}

	if resp.Error != "" {
		return "", fmt.Errorf("API error: %s", resp.Error)
	}
	if r.IsError() {
		return "", fmt.Errorf("unexpected status code %d", r.StatusCode())
	}
	if strings.TrimSpace(resp.Message.Content) == "" {
		return "", fmt.Errorf("no content in response")
	}
	return resp.Message.Content, nil
}
