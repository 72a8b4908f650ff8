package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"cheerpup/apps/backend/internal/config"
	"cheerpup/apps/backend/internal/logger"
)

// OpenAIResponsesClient calls POST {base}/responses.
type OpenAIResponsesClient struct {
	apiKey          string
	baseURL         string
	model           string
	maxOutputTokens int
	httpClient      *http.Client
	log             *logger.Logger
}

func NewOpenAIResponsesClient(cfg config.Config, log *logger.Logger) *OpenAIResponsesClient {
	timeoutSeconds := cfg.AITimeoutSeconds
	if timeoutSeconds <= 0 {
		timeoutSeconds = 20
	}
	if log == nil {
		log = logger.Nop()
	}
	return &OpenAIResponsesClient{
		apiKey:          strings.TrimSpace(cfg.OpenAIAPIKey),
		baseURL:         strings.TrimRight(strings.TrimSpace(cfg.OpenAIBaseURL), "/"),
		model:           strings.TrimSpace(cfg.OpenAIModel),
		maxOutputTokens: cfg.AIMaxOutputTokens,
		httpClient: &http.Client{
			// The caller's context carries the real deadline; this only bounds
			// a hung connection.
			Timeout: time.Duration(timeoutSeconds+5) * time.Second,
		},
		log: log.With("component", "openai"),
	}
}

type inputText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type inputBlock struct {
	Role    string      `json:"role"`
	Content []inputText `json:"content"`
}

func (c *OpenAIResponsesClient) Complete(ctx context.Context, req Request) (Response, error) {
	if c.apiKey == "" {
		return Response{}, errors.New("OPENAI_API_KEY is not configured")
	}
	if c.baseURL == "" {
		return Response{}, errors.New("OPENAI_BASE_URL is not configured")
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.model
	}
	if model == "" {
		return Response{}, errors.New("OPENAI_MODEL is not configured")
	}

	input := make([]inputBlock, 0, 2)
	if system := strings.TrimSpace(req.SystemPrompt); system != "" {
		input = append(input, inputBlock{Role: "system", Content: []inputText{{Type: "input_text", Text: system}}})
	}
	if user := strings.TrimSpace(req.UserPrompt); user != "" {
		input = append(input, inputBlock{Role: "user", Content: []inputText{{Type: "input_text", Text: user}}})
	}
	if len(input) == 0 {
		return Response{}, errors.New("completion request input is empty")
	}

	payload := map[string]any{
		"model": model,
		"input": input,
		"text": map[string]any{
			"format": map[string]any{"type": "json_object"},
		},
	}
	if c.maxOutputTokens > 0 {
		payload["max_output_tokens"] = c.maxOutputTokens
	}
	bodyRaw, err := json.Marshal(payload)
	if err != nil {
		return Response{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(bodyRaw))
	if err != nil {
		return Response{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	defer httpResp.Body.Close()

	responseBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Response{}, err
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return Response{}, &ProviderError{Status: httpResp.StatusCode, Body: string(responseBody)}
	}

	var parsed map[string]any
	if err := json.Unmarshal(responseBody, &parsed); err != nil {
		c.log.Warn("openai response was not json", "body", truncate(string(responseBody), 600))
		return Response{Model: model}, nil
	}

	text := extractOutputText(parsed)
	if text == "" {
		reason := ""
		if details, ok := parsed["incomplete_details"].(map[string]any); ok {
			reason, _ = details["reason"].(string)
		}
		c.log.Warn("openai response had no output text", "incomplete_reason", reason, "body", truncate(string(responseBody), 600))
	}

	usage := Usage{}
	if usageMap, ok := parsed["usage"].(map[string]any); ok {
		usage.InputTokens = intField(usageMap, "input_tokens", "prompt_tokens")
		usage.OutputTokens = intField(usageMap, "output_tokens", "completion_tokens")
		usage.TotalTokens = intField(usageMap, "total_tokens")
	}
	if name, _ := parsed["model"].(string); strings.TrimSpace(name) != "" {
		model = strings.TrimSpace(name)
	}
	return Response{Text: text, Model: model, Usage: usage}, nil
}

func extractOutputText(data map[string]any) string {
	if direct, _ := data["output_text"].(string); strings.TrimSpace(direct) != "" {
		return strings.TrimSpace(direct)
	}
	outputs, _ := data["output"].([]any)
	parts := make([]string, 0, len(outputs))
	for _, item := range outputs {
		block, ok := item.(map[string]any)
		if !ok {
			continue
		}
		contents, _ := block["content"].([]any)
		for _, raw := range contents {
			content, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			kind, _ := content["type"].(string)
			if kind != "output_text" && kind != "text" {
				continue
			}
			if text, _ := content["text"].(string); strings.TrimSpace(text) != "" {
				parts = append(parts, strings.TrimSpace(text))
			}
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func intField(m map[string]any, keys ...string) int {
	for _, key := range keys {
		if v, ok := m[key].(float64); ok {
			return int(v)
		}
	}
	return 0
}
