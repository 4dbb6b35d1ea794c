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

// openAIClient implements Client against an OpenAI-compatible chat API.
type openAIClient struct {
	httpClient   *http.Client
	probeClient  *http.Client
	host         string
	apiKey       string
	model        string
	maxTextBytes int
}

func newOpenAIClient(cfg config.FallbackConfig) (*openAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key", common.ErrMissingConfig)
	}

	host := strings.TrimRight(cfg.Host, "/")
	if host == "" {
		host = "https://api.openai.com"
	}
	m := cfg.Model
	if m == "" {
		m = "gpt-4o-mini"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &openAIClient{
		host:         host,
		apiKey:       cfg.APIKey,
		model:        m,
		maxTextBytes: cfg.MaxTextBytes,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		probeClient: &http.Client{
			Timeout: probeTimeout(cfg),
		},
	}, nil
}

// Available probes the models endpoint with the configured credentials.
func (c *openAIClient) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/v1/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.probeClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// Extract sends an extraction request to the chat completions endpoint.
func (c *openAIClient) Extract(ctx context.Context, text string) (model.PartialRecord, error) {
	requestBody := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{
				"role":    "system",
				"content": "You are an invoice field extractor. You MUST respond with ONLY a valid JSON object. Do not include any explanatory text, markdown formatting, or commentary before or after the JSON. Start your response directly with { and end with }.",
			},
			{
				"role":    "user",
				"content": buildPrompt(truncate(text, c.maxTextBytes)),
			},
		},
		"temperature": 0.0,
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return model.PartialRecord{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	body, err := postJSON(ctx, c.httpClient, c.host+"/v1/chat/completions", headers, jsonBody)
	if err != nil {
		return model.PartialRecord{}, fmt.Errorf("OpenAI request failed: %w", err)
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return model.PartialRecord{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(response.Choices) == 0 {
		return model.PartialRecord{}, fmt.Errorf("no completion choices returned")
	}

	return parseExtraction(response.Choices[0].Message.Content)
}
