package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const userAgent = "Newsauto/1.0 (+https://github.com/bilgisen/newsauto)"

// NewHTTPClient builds the resty client shared by all adapters
func NewHTTPClient(timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return resty.New().
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(2 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		SetHeader("User-Agent", userAgent)
}

// getJSON fetches url and decodes a JSON body into out
func getJSON(ctx context.Context, client *resty.Client, url string, params map[string]string, out any) error {
	resp, err := client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(params).
		Get(url)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", url, err)
	}

	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("unexpected status code %d from %s", resp.StatusCode(), url)
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", url, err)
	}
	return nil
}

// getBody fetches url and returns the raw body
func getBody(ctx context.Context, client *resty.Client, url string, params map[string]string, accept string) ([]byte, error) {
	resp, err := client.R().
		SetContext(ctx).
		SetHeader("Accept", accept).
		SetQueryParams(params).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode(), url)
	}
	return resp.Body(), nil
}
