package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOllamaServer(t *testing.T, reply func(req chatRequest) (int, chatResponse)) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		status, resp := reply(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"models":[{"name":"llama3.2:latest"},{"name":"mistral:7b"}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaSummarize(t *testing.T) {
	var got chatRequest
	srv := newOllamaServer(t, func(req chatRequest) (int, chatResponse) {
		got = req
		return http.StatusOK, chatResponse{Model: req.Model, Message: chatMessage{Role: "assistant", Content: "  A tidy summary.  "}, Done: true}
	})

	c := NewOllamaClient(srv.URL+"/", "llama3.2", 5*time.Second)
	out, err := c.Summarize(context.Background(), "Go 1.23", "Iterators landed.")
	require.NoError(t, err)
	assert.Equal(t, "A tidy summary.", out)

	assert.Equal(t, "llama3.2", got.Model)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[1].Content, "Title: Go 1.23")
	assert.Contains(t, got.Messages[1].Content, "Iterators landed.")
}

func TestOllamaKeyPoints(t *testing.T) {
	srv := newOllamaServer(t, func(req chatRequest) (int, chatResponse) {
		return http.StatusOK, chatResponse{Message: chatMessage{Content: "Here you go:\n1. First point\n2) Second point\n- Third point\n\n4. Fourth"}}
	})

	c := NewOllamaClient(srv.URL, "llama3.2", 5*time.Second)
	points, err := c.KeyPoints(context.Background(), "body", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"First point", "Second point", "Third point"}, points)
}

func TestOllamaErrors(t *testing.T) {
	srv := newOllamaServer(t, func(req chatRequest) (int, chatResponse) {
		if req.Model == "missing" {
			return http.StatusNotFound, chatResponse{Error: "model 'missing' not found"}
		}
		return http.StatusOK, chatResponse{Message: chatMessage{Content: "   "}}
	})

	_, err := NewOllamaClient(srv.URL, "missing", time.Second).Summarize(context.Background(), "t", "c")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	_, err = NewOllamaClient(srv.URL, "llama3.2", time.Second).Summarize(context.Background(), "t", "c")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no content")
}

func TestOllamaListModels(t *testing.T) {
	srv := newOllamaServer(t, nil)
	names, err := NewOllamaClient(srv.URL, "llama3.2", time.Second).ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3.2:latest", "mistral:7b"}, names)
}

func TestOllamaCheckModel(t *testing.T) {
	srv := newOllamaServer(t, nil)
	ctx := context.Background()

	assert.NoError(t, NewOllamaClient(srv.URL, "llama3.2", time.Second).CheckModel(ctx))
	assert.NoError(t, NewOllamaClient(srv.URL, "mistral:7b", time.Second).CheckModel(ctx))

	err := NewOllamaClient(srv.URL, "phi3", time.Second).CheckModel(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"phi3" is not installed`)

	assert.Error(t, NewOllamaClient("http://127.0.0.1:1", "llama3.2", time.Second).CheckModel(ctx))
}

func TestBuildPrompts(t *testing.T) {
	p := BuildSummaryPrompt("Multi\nline\ttitle", "content")
	assert.Contains(t, p, "Title: Multi line title")

	long := make([]rune, maxPromptContent+10)
	for i := range long {
		long[i] = 'x'
	}
	assert.Contains(t, BuildKeyPointsPrompt(string(long), 0), "Extract the 5 most important points")
	assert.NotContains(t, BuildKeyPointsPrompt(string(long), 3), string(long))
}
