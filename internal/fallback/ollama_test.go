package fallback

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhartmann/sortier/internal/common"
	"github.com/mhartmann/sortier/internal/config"
)

func ollamaFor(host string) *ollamaClient {
	return newOllamaClient(config.FallbackConfig{
		Host:         host,
		Model:        "llama3",
		MaxTextBytes: 20000,
	})
}

func TestOllamaAvailable(t *testing.T) {
	t.Run("daemon up", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/tags", r.URL.Path)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		assert.True(t, ollamaFor(srv.URL).Available(context.Background()))
	})

	t.Run("daemon down", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		assert.False(t, ollamaFor(srv.URL).Available(context.Background()))
	})

	t.Run("unreachable host", func(t *testing.T) {
		assert.False(t, ollamaFor("http://127.0.0.1:1").Available(context.Background()))
	})
}

func TestOllamaExtract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)

		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
			Stream bool   `json:"stream"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req.Model)
		assert.False(t, req.Stream)
		assert.Contains(t, req.Prompt, "invoice_no")

		resp := map[string]string{
			"response": `Here you go: {"invoice_no":"RE-9","supplier":"acme","date":"2024-03-14","gross":119.0,"net":null,"tax":null,"currency":"EUR"}`,
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	partial, err := ollamaFor(srv.URL).Extract(context.Background(), "invoice text")
	require.NoError(t, err)

	require.NotNil(t, partial.InvoiceNumber)
	assert.Equal(t, "RE-9", *partial.InvoiceNumber)
	require.NotNil(t, partial.AmountGross)
	assert.InDelta(t, 119.0, *partial.AmountGross, 0.001)
	assert.Nil(t, partial.AmountNet)
}

func TestOllamaExtractMalformedCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(map[string]string{
			"response": "sorry, I cannot help with that",
		}))
	}))
	defer srv.Close()

	_, err := ollamaFor(srv.URL).Extract(context.Background(), "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrMalformedResponse)
}

func TestOllamaExtractServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := ollamaFor(srv.URL).Extract(context.Background(), "text")
	assert.Error(t, err)
}

func TestOllamaExtractTruncatesText(t *testing.T) {
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotPrompt = req.Prompt
		require.NoError(t, json.NewEncoder(w).Encode(map[string]string{"response": "{}"}))
	}))
	defer srv.Close()

	c := newOllamaClient(config.FallbackConfig{Host: srv.URL, Model: "llama3", MaxTextBytes: 100})
	_, err := c.Extract(context.Background(), strings.Repeat("x", 1000))
	require.NoError(t, err)

	assert.NotContains(t, gotPrompt, strings.Repeat("x", 101))
	assert.Contains(t, gotPrompt, strings.Repeat("x", 100))
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, true},
		{"wrapped in prose", "sure: {\"a\":1} done", `{"a":1}`, true},
		{"markdown fence", "```json\n{\"a\":1}\n```", `{"a":1}`, true},
		{"no object", "nothing here", "", false},
		{"only open brace", "{oops", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractJSON(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
