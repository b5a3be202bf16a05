package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sigma_ai/internal/interfaces"
	"strings"
	"time"
)

// GPTJClient calls the self-hosted GPT-J backend.
type GPTJClient struct {
	baseURL    string
	httpClient *http.Client
}

type gptjHealth struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

func NewGPTJClient(baseURL string) *GPTJClient {
	return &GPTJClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *GPTJClient) Name() string { return "gptj" }

func (c *GPTJClient) Chat(ctx context.Context, req interfaces.ChatRequest) (string, error) {
	if req.ImageURL != "" {
		return "", errors.New("gptj backend cannot read images")
	}
	data, _ := json.Marshal(map[string]any{
		"prompt":      ContextPrompt(req),
		"max_length":  100,
		"temperature": 0.7,
		"top_p":       0.9,
	})
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gptj backend error: %d", resp.StatusCode)
	}

	var out struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.GeneratedText) == "" {
		return "", errors.New("gptj backend returned an empty answer")
	}
	return out.GeneratedText, nil
}

func (c *GPTJClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var health gptjHealth
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("decode gptj health: %w", err)
	}
	if health.Status != "healthy" || !health.ModelLoaded {
		return fmt.Errorf("gptj backend not ready: status=%s model_loaded=%t", health.Status, health.ModelLoaded)
	}
	return nil
}
