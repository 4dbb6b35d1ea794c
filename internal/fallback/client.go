// Package fallback integrates the external free-text extraction service.
// The service is optional and possibly unavailable; every failure mode here
// degrades to "no augmentation available" and never aborts a document.
package fallback

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mhartmann/sortier/internal/common"
	"github.com/mhartmann/sortier/internal/config"
	"github.com/mhartmann/sortier/internal/model"
)

// Client defines the interface to an external extraction service.
type Client interface {
	// Available performs a lightweight liveness probe.
	Available(ctx context.Context) bool
	// Extract sends document text and returns the fields the service found.
	Extract(ctx context.Context, text string) (model.PartialRecord, error)
}

// NewClient creates an extraction client based on the configured provider.
func NewClient(cfg config.FallbackConfig) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "ollama":
		return newOllamaClient(cfg), nil
	case "openai":
		return newOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported fallback provider: %s", cfg.Provider)
	}
}

// buildPrompt produces the fixed extraction instruction. The service must
// return strictly a JSON object using the record's field names, with null
// for anything it cannot find.
func buildPrompt(body string) string {
	parts := []string{
		"You are a strict extractor. Respond ONLY with a JSON object, no explanatory text.",
		"Extract the following fields from the invoice below:",
		"invoice_no (string), supplier (string), date (YYYY-MM-DD), gross (number), net (number), tax (number), currency (string, e.g. EUR).",
		"If a field is missing, return null for it.",
		"Text:",
		`"""`,
		body,
		`"""`,
		"Return JSON only.",
	}
	return strings.Join(parts, "\n")
}

// truncate bounds the text payload sent to the service.
func truncate(text string, maxBytes int) string {
	if maxBytes <= 0 || len(text) <= maxBytes {
		return text
	}
	return text[:maxBytes]
}

// extractJSON pulls the outermost {...} object out of a completion, which
// may be wrapped in prose or markdown fences despite the instruction.
func extractJSON(out string) (string, bool) {
	start := strings.Index(out, "{")
	end := strings.LastIndex(out, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return out[start : end+1], true
}

func probeTimeout(cfg config.FallbackConfig) time.Duration {
	if cfg.ProbeTimeout > 0 {
		return cfg.ProbeTimeout
	}
	return 2 * time.Second
}

// postJSON sends the request and returns the response body. Transport errors
// and 5xx responses are retried once; other non-OK statuses are terminal.
func postJSON(ctx context.Context, httpClient *http.Client, url string, headers map[string]string, jsonBody []byte) ([]byte, error) {
	var body []byte
	err := common.WithRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
		if err != nil {
			return &common.RetryableError{Err: err, Retryable: false}
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", common.ErrFallbackUnavailable, err)
		}
		defer func() { _ = resp.Body.Close() }()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("service error (status %d): %s", resp.StatusCode, string(b))
		}
		if resp.StatusCode != http.StatusOK {
			return &common.RetryableError{
				Err:       fmt.Errorf("service error (status %d): %s", resp.StatusCode, string(b)),
				Retryable: false,
			}
		}
		body = b
		return nil
	}, common.RetryOptions{MaxAttempts: 2, InitialDelay: 500 * time.Millisecond})
	return body, err
}
