package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sigma_ai/internal/interfaces"
	"strconv"
	"strings"
	"time"
)

// HuggingFaceClient generates images through the Hugging Face inference API.
type HuggingFaceClient struct {
	baseURL    string
	token      string
	model      string
	httpClient *http.Client
}

func NewHuggingFaceClient(baseURL, token, model string) *HuggingFaceClient {
	return &HuggingFaceClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *HuggingFaceClient) Name() string { return "huggingface" }

func (c *HuggingFaceClient) GenerateImage(ctx context.Context, prompt string, opts interfaces.ImageOptions) (*interfaces.GeneratedImage, error) {
	if opts.Style != "" {
		prompt = fmt.Sprintf("%s, %s style", prompt, opts.Style)
	}
	payload := map[string]any{"inputs": prompt}
	if w, h, ok := ParseSize(opts.Size); ok {
		payload["parameters"] = map[string]int{"width": w, "height": h}
	}
	data, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/models/"+c.model, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/png")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusServiceUnavailable {
		return nil, fmt.Errorf("huggingface model %s is loading", c.model)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("huggingface API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("huggingface returned %q instead of an image", contentType)
	}
	return &interfaces.GeneratedImage{Data: body, ContentType: contentType, Model: c.model}, nil
}

// MaxImageSide is the largest width or height any generator is asked for.
const MaxImageSide = 2048

// ParseSize reads "WIDTHxHEIGHT". Sides above MaxImageSide are rejected.
func ParseSize(size string) (int, int, bool) {
	w, h, found := strings.Cut(strings.ToLower(size), "x")
	if !found {
		return 0, 0, false
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil || width <= 0 || width > MaxImageSide {
		return 0, 0, false
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || height <= 0 || height > MaxImageSide {
		return 0, 0, false
	}
	return width, height, true
}
