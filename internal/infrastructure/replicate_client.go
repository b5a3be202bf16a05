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

const replicateCreateSlack = 30 * time.Second

// ReplicateClient runs LLaVA v1.6 Mistral 7B predictions on Replicate.
type ReplicateClient struct {
	baseURL string
	token   string
	model   string
	version string

	httpClient   *http.Client
	PollInterval time.Duration
	MaxAttempts  int
}

type replicatePrediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  any             `json:"error"`
}

func NewReplicateClient(baseURL, token, model, version string) *ReplicateClient {
	return &ReplicateClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		token:        token,
		model:        model,
		version:      version,
		httpClient:   &http.Client{Timeout: 45 * time.Second},
		PollInterval: time.Second,
		MaxAttempts:  90,
	}
}

func (c *ReplicateClient) Name() string { return "replicate" }

// CallTimeout covers every polling attempt plus the request that creates the prediction.
func (c *ReplicateClient) CallTimeout() time.Duration {
	return c.PollInterval*time.Duration(c.MaxAttempts) + replicateCreateSlack
}

func (c *ReplicateClient) Chat(ctx context.Context, req interfaces.ChatRequest) (string, error) {
	prompt := req.Prompt
	if req.ImageURL == "" {
		prompt = ContextPrompt(req)
	}
	input := map[string]any{
		"prompt":      fmt.Sprintf("USER: %s\nASSISTANT:", prompt),
		"max_tokens":  1024,
		"temperature": orDefault(req.Temperature, 0.7),
		"top_p":       0.9,
	}
	if req.ImageURL != "" {
		input["image"] = req.ImageURL
	}

	data, _ := json.Marshal(map[string]any{"version": c.version, "input": input})
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predictions", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "Sigma-AI/2.0")

	var prediction replicatePrediction
	if err := c.do(httpReq, &prediction); err != nil {
		return "", fmt.Errorf("create prediction: %w", err)
	}

	output, err := c.waitForPrediction(ctx, prediction.ID)
	if err != nil {
		return "", err
	}
	return CleanLLaVAResponse(output), nil
}

func (c *ReplicateClient) waitForPrediction(ctx context.Context, id string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < c.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.PollInterval):
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/predictions/"+id, nil)
		if err != nil {
			return "", err
		}
		var prediction replicatePrediction
		if err := c.do(httpReq, &prediction); err != nil {
			// Transient polling errors are retried until attempts run out.
			lastErr = err
			continue
		}

		switch prediction.Status {
		case "succeeded":
			return predictionOutput(prediction.Output), nil
		case "failed":
			if prediction.Error == nil {
				return "", errors.New("prediction failed: unknown error")
			}
			return "", fmt.Errorf("prediction failed: %v", prediction.Error)
		case "canceled":
			return "", errors.New("prediction was canceled")
		}
	}
	if lastErr != nil {
		return "", fmt.Errorf("prediction timed out after %d attempts: %w", c.MaxAttempts, lastErr)
	}
	return "", fmt.Errorf("prediction timed out after %d attempts", c.MaxAttempts)
}

// predictionOutput joins streamed token arrays or returns a plain string output.
func predictionOutput(raw json.RawMessage) string {
	var parts []string
	if err := json.Unmarshal(raw, &parts); err == nil {
		return strings.Join(parts, "")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	return string(raw)
}

// Ping checks that the configured model is reachable with the token.
func (c *ReplicateClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models/"+c.model, nil)
	if err != nil {
		return err
	}
	return c.do(httpReq, nil)
}

func (c *ReplicateClient) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Token "+c.token)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("replicate API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
