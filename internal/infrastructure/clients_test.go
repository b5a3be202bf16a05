package infrastructure

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"sigma_ai/internal/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplicateClient_Chat(t *testing.T) {
	var polls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token secret", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/predictions":
			var body struct {
				Version string         `json:"version"`
				Input   map[string]any `json:"input"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "v1", body.Version)
			assert.Equal(t, "USER: hola\nASSISTANT:", body.Input["prompt"])
			assert.Equal(t, "http://img/cat.png", body.Input["image"])
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"p1","status":"starting"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/predictions/p1":
			if atomic.AddInt32(&polls, 1) < 2 {
				_, _ = w.Write([]byte(`{"id":"p1","status":"processing"}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":"p1","status":"succeeded","output":["ASSISTANT: Veo ","un gato negro"]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewReplicateClient(srv.URL, "secret", "yorickvp/llava", "v1")
	c.PollInterval = time.Millisecond

	got, err := c.Chat(context.Background(), interfaces.ChatRequest{Prompt: "hola", ImageURL: "http://img/cat.png"})
	require.NoError(t, err)
	assert.Equal(t, "Veo un gato negro", got)
	assert.Equal(t, int32(2), atomic.LoadInt32(&polls))
}

func TestReplicateClient_Failures(t *testing.T) {
	status := "failed"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"id":"p1","status":"starting"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"p1","status":"` + status + `","error":"boom"}`))
	}))
	defer srv.Close()

	c := NewReplicateClient(srv.URL, "t", "m", "v")
	c.PollInterval = time.Millisecond

	_, err := c.Chat(context.Background(), interfaces.ChatRequest{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	status = "processing"
	c.MaxAttempts = 3
	_, err = c.Chat(context.Background(), interfaces.ChatRequest{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestReplicateClient_CreateError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"bad token"}`))
	}))
	defer srv.Close()

	c := NewReplicateClient(srv.URL, "t", "m", "v")
	_, err := c.Chat(context.Background(), interfaces.ChatRequest{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Error(t, c.Ping(context.Background()))
}

func TestHuggingFaceClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/flux", r.URL.Path)
		assert.Equal(t, "Bearer hf", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "loading") {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Contains(t, string(body), `"width":512`)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("PNGDATA"))
	}))
	defer srv.Close()

	c := NewHuggingFaceClient(srv.URL, "hf", "flux")
	img, err := c.GenerateImage(context.Background(), "un gato", interfaces.ImageOptions{Size: "512x512"})
	require.NoError(t, err)
	assert.Equal(t, []byte("PNGDATA"), img.Data)
	assert.Equal(t, "image/png", img.ContentType)
	assert.Equal(t, "flux", img.Model)

	_, err = c.GenerateImage(context.Background(), "loading", interfaces.ImageOptions{})
	assert.ErrorContains(t, err, "loading")
}

func TestGPTJClient(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/generate":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.EqualValues(t, 100, body["max_length"])
			_, _ = w.Write([]byte(`{"generated_text":"respuesta de gptj"}`))
		case "/health":
			if healthy {
				_, _ = w.Write([]byte(`{"status":"healthy","model_loaded":true}`))
			} else {
				_, _ = w.Write([]byte(`{"status":"healthy","model_loaded":false}`))
			}
		}
	}))
	defer srv.Close()

	c := NewGPTJClient(srv.URL)
	got, err := c.Chat(context.Background(), interfaces.ChatRequest{Prompt: "hola"})
	require.NoError(t, err)
	assert.Equal(t, "respuesta de gptj", got)
	assert.NoError(t, c.Ping(context.Background()))

	healthy = false
	assert.Error(t, c.Ping(context.Background()))

	_, err = c.Chat(context.Background(), interfaces.ChatRequest{Prompt: "x", ImageURL: "http://img"})
	assert.Error(t, err)
}

func TestPuterClient_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/drivers/call", r.URL.Path)
		var call puterCall
		require.NoError(t, json.NewDecoder(r.Body).Decode(&call))
		assert.Equal(t, "puter-chat-completion", call.Interface)
		assert.Equal(t, "gpt-4o", call.Args["model"])
		msgs := call.Args["messages"].([]any)
		assert.Len(t, msgs, 3)
		_, _ = w.Write([]byte(`{"success":true,"result":{"message":{"role":"assistant","content":"Hola desde Puter"}}}`))
	}))
	defer srv.Close()

	c := NewPuterClient(srv.URL, "tok")
	got, err := c.Chat(context.Background(), interfaces.ChatRequest{
		SystemPrompt: "sys",
		History:      []interfaces.ChatTurn{{Role: "user", Content: "antes"}},
		Prompt:       "hola",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hola desde Puter", got)
}

func TestPuterClient_GenerateImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"result":"https://cdn.puter/img.png"}`))
	}))
	defer srv.Close()

	c := NewPuterClient(srv.URL, "")
	img, err := c.GenerateImage(context.Background(), "gato", interfaces.ImageOptions{Style: "anime"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.puter/img.png", img.URL)
	assert.Empty(t, img.Data)
}

func TestOpenRouterClient_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"m",
			"choices":[{"index":0,"message":{"role":"assistant","content":"hola openrouter"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":1,"completion_tokens":2,"total_tokens":3}}`))
	}))
	defer srv.Close()

	c, err := NewOpenRouterClient(srv.URL, "key", "anthropic/claude-3.5-sonnet")
	require.NoError(t, err)
	got, err := c.Chat(context.Background(), interfaces.ChatRequest{Prompt: "hola", SystemPrompt: "sys"})
	require.NoError(t, err)
	assert.Equal(t, "hola openrouter", got)
}

func TestSupabaseStorage(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, "Bearer svc", r.Header.Get("Authorization"))
		assert.Equal(t, "text/plain", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"Key":"user-files/u1/1.txt"}`))
	}))
	defer srv.Close()

	s := NewSupabaseStorage(srv.URL, "svc", "user-files")
	require.NoError(t, s.Upload(context.Background(), "u1/1.txt", "text/plain", []byte("hi")))
	assert.Equal(t, "/storage/v1/object/user-files/u1/1.txt", gotPath)
	assert.Equal(t, srv.URL+"/storage/v1/object/public/user-files/u1/1.txt", s.PublicURL("u1/1.txt"))
}

func TestLocalStorage(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir, "http://localhost:8080/")
	require.NoError(t, err)

	require.NoError(t, s.Upload(context.Background(), "u1/media/a.png", "image/png", []byte("img")))
	data, err := os.ReadFile(filepath.Join(dir, "u1", "media", "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "img", string(data))
	assert.Equal(t, "http://localhost:8080/files/u1/media/a.png", s.PublicURL("u1/media/a.png"))

	// traversal is clamped inside the root
	require.NoError(t, s.Upload(context.Background(), "../../escape.txt", "text/plain", []byte("x")))
	_, err = os.Stat(filepath.Join(dir, "escape.txt"))
	assert.NoError(t, err)
}

func TestTikaClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/version" {
			_, _ = w.Write([]byte("Apache Tika 2.9"))
			return
		}
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "application/pdf", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte("  texto del pdf \n"))
	}))
	defer srv.Close()

	c := NewTikaClient(srv.URL)
	text, err := c.ExtractText(context.Background(), []byte("%PDF"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "texto del pdf", text)
	assert.NoError(t, c.Ping(context.Background()))
}

func TestPlaceholderMedia(t *testing.T) {
	p := NewPlaceholderMedia()
	p.now = func() time.Time { return time.UnixMilli(42) }

	assert.Equal(t, "https://picsum.photos/512/256?random=42", p.ImageURL("512x256"))
	assert.Equal(t, "https://picsum.photos/1024/1024?random=42", p.ImageURL(""))
	assert.Equal(t, PlaceholderVideoURL, p.VideoURL())
}
