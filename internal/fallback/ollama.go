package fallback

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mhartmann/sortier/internal/common"
	"github.com/mhartmann/sortier/internal/config"
	"github.com/mhartmann/sortier/internal/model"
)

// ollamaClient talks to a local Ollama instance.
type ollamaClient struct {
	httpClient   *http.Client
	probeClient  *http.Client
	host         string
	model        string
	maxTextBytes int
}

func newOllamaClient(cfg config.FallbackConfig) *ollamaClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ollamaClient{
		host:         strings.TrimRight(cfg.Host, "/"),
		model:        cfg.Model,
		maxTextBytes: cfg.MaxTextBytes,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		probeClient: &http.Client{
			Timeout: probeTimeout(cfg),
		},
	}
}

// Available probes the tags endpoint, which answers quickly when the daemon
// is up.
func (c *ollamaClient) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.probeClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// Extract sends the bounded document text and parses the JSON object out of
// the completion.
func (c *ollamaClient) Extract(ctx context.Context, text string) (model.PartialRecord, error) {
	requestBody := map[string]any{
		"model":  c.model,
		"prompt": buildPrompt(truncate(text, c.maxTextBytes)),
		"stream": false,
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return model.PartialRecord{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	body, err := postJSON(ctx, c.httpClient, c.host+"/api/generate", nil, jsonBody)
	if err != nil {
		return model.PartialRecord{}, fmt.Errorf("ollama request failed: %w", err)
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return model.PartialRecord{}, fmt.Errorf("failed to parse response: %w", err)
	}

	return parseExtraction(response.Response)
}

// parseExtraction decodes the JSON object embedded in a completion.
func parseExtraction(content string) (model.PartialRecord, error) {
	blob, ok := extractJSON(content)
	if !ok {
		return model.PartialRecord{}, fmt.Errorf("%w: no JSON object in completion", common.ErrMalformedResponse)
	}
	var partial model.PartialRecord
	if err := json.Unmarshal([]byte(blob), &partial); err != nil {
		return model.PartialRecord{}, fmt.Errorf("%w: %v", common.ErrMalformedResponse, err)
	}
	return partial, nil
}
