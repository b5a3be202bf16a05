package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sigma_ai/internal/interfaces"
	"strings"
	"time"
)

// PuterClient talks to the Puter drivers API for GPT-4o chat and txt2img.
type PuterClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type puterCall struct {
	Interface string         `json:"interface"`
	Driver    string         `json:"driver"`
	Method    string         `json:"method"`
	Args      map[string]any `json:"args"`
}

type puterResponse struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   json.RawMessage `json:"error"`
}

func NewPuterClient(baseURL, token string) *PuterClient {
	return &PuterClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *PuterClient) Name() string { return "puter" }

func (c *PuterClient) Chat(ctx context.Context, req interfaces.ChatRequest) (string, error) {
	messages := make([]map[string]any, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, map[string]any{"role": "system", "content": req.SystemPrompt})
	}
	for _, turn := range req.History {
		messages = append(messages, map[string]any{"role": turn.Role, "content": turn.Content})
	}
	if req.ImageURL != "" {
		messages = append(messages, map[string]any{"role": "user", "content": []map[string]any{
			{"type": "text", "text": req.Prompt},
			{"type": "image_url", "image_url": map[string]string{"url": req.ImageURL}},
		}})
	} else {
		messages = append(messages, map[string]any{"role": "user", "content": req.Prompt})
	}

	call := puterCall{
		Interface: "puter-chat-completion",
		Driver:    "openai-completion",
		Method:    "complete",
		Args: map[string]any{
			"messages":    messages,
			"model":       "gpt-4o",
			"max_tokens":  orDefault(req.MaxTokens, 2000),
			"temperature": orDefault(req.Temperature, 0.7),
		},
	}

	body, _, err := c.call(ctx, call)
	if err != nil {
		return "", err
	}

	var resp puterResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode puter response: %w", err)
	}
	if !resp.Success && len(resp.Error) > 0 {
		return "", fmt.Errorf("puter error: %s", string(resp.Error))
	}

	var result struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return "", fmt.Errorf("decode puter result: %w", err)
	}
	text := messageText(result.Message.Content)
	if text == "" {
		return "", errors.New("puter returned an empty answer")
	}
	return text, nil
}

// messageText accepts both a plain string and an array of content parts.
func messageText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range parts {
		sb.WriteString(p.Text)
	}
	return strings.TrimSpace(sb.String())
}

func (c *PuterClient) GenerateImage(ctx context.Context, prompt string, opts interfaces.ImageOptions) (*interfaces.GeneratedImage, error) {
	if opts.Style != "" {
		prompt = fmt.Sprintf("%s, %s style", prompt, opts.Style)
	}
	call := puterCall{
		Interface: "puter-image-generation",
		Driver:    "openai-image-generation",
		Method:    "generate",
		Args: map[string]any{
			"prompt":  prompt,
			"model":   "dall-e-3",
			"quality": "standard",
		},
	}

	body, contentType, err := c.call(ctx, call)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(contentType, "image/") {
		return &interfaces.GeneratedImage{Data: body, ContentType: contentType, Model: "puter/dall-e-3"}, nil
	}

	var resp puterResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode puter image response: %w", err)
	}
	var url string
	if err := json.Unmarshal(resp.Result, &url); err != nil || url == "" {
		return nil, errors.New("puter returned no image")
	}
	return &interfaces.GeneratedImage{URL: url, Model: "puter/dall-e-3"}, nil
}

func (c *PuterClient) call(ctx context.Context, call puterCall) ([]byte, string, error) {
	data, _ := json.Marshal(call)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/drivers/call", bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("puter API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, resp.Header.Get("Content-Type"), nil
}
