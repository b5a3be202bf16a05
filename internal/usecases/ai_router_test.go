package usecases

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"sigma_ai/internal/infrastructure"
	"sigma_ai/internal/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	name  string
	reply string
	err   error
	delay time.Duration
	calls int32
	last  interfaces.ChatRequest
	ping  error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Chat(ctx context.Context, req interfaces.ChatRequest) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	f.last = req
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeProvider) Calls() int { return int(atomic.LoadInt32(&f.calls)) }

type pingingProvider struct {
	*fakeProvider
}

func (p pingingProvider) Ping(context.Context) error { return p.ping }

func newTestRouter(t *testing.T, providers ...interfaces.ChatProvider) *Router {
	t.Helper()
	r, err := NewRouter(providers, NewResponder(rand.NewSource(1)), RouterOptions{CallTimeout: time.Second}, zap.NewNop())
	require.NoError(t, err)
	return r
}

func TestRouter_FirstSuccessWins(t *testing.T) {
	down := &fakeProvider{name: "puter", err: errors.New("503")}
	up := &fakeProvider{name: "openrouter", reply: "Asistente: Hola!"}
	never := &fakeProvider{name: "replicate", reply: "nope"}
	r := newTestRouter(t, down, up, never)

	text, provider, err := r.Chat(context.Background(), interfaces.ChatRequest{Prompt: "hola"})
	require.NoError(t, err)
	assert.Equal(t, "Hola!", text)
	assert.Equal(t, "openrouter", provider)
	assert.Equal(t, 0, never.Calls())
}

func TestRouter_FallsBackToLocal(t *testing.T) {
	r := newTestRouter(t, &fakeProvider{name: "puter", err: errors.New("down")})

	text, provider, err := r.Chat(context.Background(), interfaces.ChatRequest{Prompt: "hola"})
	require.NoError(t, err)
	assert.Equal(t, "local", provider)
	assert.NotEmpty(t, text)
}

func TestRouter_NoFallback(t *testing.T) {
	r, err := NewRouter([]interfaces.ChatProvider{&fakeProvider{name: "a", err: errors.New("x")}}, nil, RouterOptions{}, zap.NewNop())
	require.NoError(t, err)

	_, _, err = r.Chat(context.Background(), interfaces.ChatRequest{Prompt: "hola"})
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestRouter_CacheShortTextPrompts(t *testing.T) {
	p := &fakeProvider{name: "puter", reply: "respuesta"}
	r := newTestRouter(t, p)
	ctx := context.Background()

	_, _, err := r.Chat(ctx, interfaces.ChatRequest{Prompt: "Hola  Mundo", CacheScope: "u1"})
	require.NoError(t, err)
	text, provider, err := r.Chat(ctx, interfaces.ChatRequest{Prompt: "hola mundo", CacheScope: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "respuesta", text)
	assert.Equal(t, "puter", provider)
	assert.Equal(t, 1, p.Calls())
	assert.Equal(t, 1, r.CacheLen())

	// image prompts are never cached
	_, _, _ = r.Chat(ctx, interfaces.ChatRequest{Prompt: "hola mundo", ImageURL: "http://img", CacheScope: "u1"})
	assert.Equal(t, 2, p.Calls())

	// unscoped requests are never cached
	_, _, _ = r.Chat(ctx, interfaces.ChatRequest{Prompt: "hola mundo"})
	assert.Equal(t, 3, p.Calls())

	r.ClearScope("u1")
	assert.Equal(t, 0, r.CacheLen())
	_, _, _ = r.Chat(ctx, interfaces.ChatRequest{Prompt: "hola mundo", CacheScope: "u1"})
	assert.Equal(t, 4, p.Calls())
}

func TestRouter_CacheIsScopedPerUser(t *testing.T) {
	p := &fakeProvider{name: "puter", reply: "respuesta"}
	r := newTestRouter(t, p)
	ctx := context.Background()

	_, _, err := r.Chat(ctx, interfaces.ChatRequest{Prompt: "¿cuál es mi clave?", CacheScope: "alice"})
	require.NoError(t, err)
	_, _, err = r.Chat(ctx, interfaces.ChatRequest{Prompt: "¿cuál es mi clave?", CacheScope: "bob"})
	require.NoError(t, err)
	assert.Equal(t, 2, p.Calls())
	assert.Equal(t, 2, r.CacheLen())

	// clearing one user keeps the other's answers
	r.ClearScope("alice")
	assert.Equal(t, 1, r.CacheLen())
	_, _, _ = r.Chat(ctx, interfaces.ChatRequest{Prompt: "¿cuál es mi clave?", CacheScope: "bob"})
	assert.Equal(t, 2, p.Calls())
}

func TestRouter_HistoryAnswersAreNotCached(t *testing.T) {
	p := &fakeProvider{name: "puter", reply: "1234"}
	r := newTestRouter(t, p)
	req := interfaces.ChatRequest{
		Prompt:     "¿cuál es mi clave?",
		History:    []interfaces.ChatTurn{{Role: "user", Content: "mi clave es 1234"}},
		CacheScope: "alice",
	}

	for i := 0; i < 2; i++ {
		_, _, err := r.Chat(context.Background(), req)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, p.Calls())
	assert.Equal(t, 0, r.CacheLen())
}

func TestRouter_CacheCapacity(t *testing.T) {
	r := newTestRouter(t, &fakeProvider{name: "p", reply: "ok"})
	for i := 0; i < 15; i++ {
		_, _, err := r.Chat(context.Background(), interfaces.ChatRequest{Prompt: string(rune('a' + i)), CacheScope: "u1"})
		require.NoError(t, err)
	}
	assert.Equal(t, 10, r.CacheLen())
}

func TestRouter_ImageRequestFallsBackToUnavailable(t *testing.T) {
	r := newTestRouter(t, &fakeProvider{name: "replicate", err: errors.New("down")})

	text, provider, err := r.Chat(context.Background(), interfaces.ChatRequest{Prompt: "¿qué ves?", ImageURL: "http://img/cat.png"})
	require.NoError(t, err)
	assert.Equal(t, "local", provider)
	assert.Contains(t, fallbackTemplates, text)
}

func TestRouter_BreakerOpensAfterThreeFailures(t *testing.T) {
	bad := &fakeProvider{name: "puter", err: errors.New("boom")}
	good := &fakeProvider{name: "gptj", reply: "ok"}
	r := newTestRouter(t, bad, good)

	for i := 0; i < 5; i++ {
		// long prompts skip the cache
		_, provider, err := r.Chat(context.Background(), interfaces.ChatRequest{Prompt: longPrompt(i)})
		require.NoError(t, err)
		assert.Equal(t, "gptj", provider)
	}
	assert.Equal(t, 3, bad.Calls())

	statuses := r.Status(context.Background())
	require.Len(t, statuses, 3)
	assert.Equal(t, "open", statuses[0].Breaker)
	assert.Equal(t, "closed", statuses[1].Breaker)
	assert.Equal(t, "local", statuses[2].Name)
}

func TestRouter_CallTimeout(t *testing.T) {
	slow := &fakeProvider{name: "slow", reply: "late", delay: time.Second}
	r, err := NewRouter([]interfaces.ChatProvider{slow}, NewResponder(nil), RouterOptions{CallTimeout: 20 * time.Millisecond}, zap.NewNop())
	require.NoError(t, err)

	_, provider, err := r.Chat(context.Background(), interfaces.ChatRequest{Prompt: "hola"})
	require.NoError(t, err)
	assert.Equal(t, "local", provider)
}

func TestRouter_StatusPings(t *testing.T) {
	healthy := pingingProvider{&fakeProvider{name: "gptj"}}
	sick := pingingProvider{&fakeProvider{name: "replicate", ping: errors.New("401")}}
	r := newTestRouter(t, healthy, sick)

	statuses := r.Status(context.Background())
	require.NotNil(t, statuses[0].Healthy)
	assert.True(t, *statuses[0].Healthy)
	require.NotNil(t, statuses[1].Healthy)
	assert.False(t, *statuses[1].Healthy)
	assert.Equal(t, "401", statuses[1].Error)
}

type slowProvider struct {
	*fakeProvider
	timeout time.Duration
}

func (p slowProvider) CallTimeout() time.Duration { return p.timeout }

func TestRouter_ProviderTimeoutExtendsDefault(t *testing.T) {
	slow := slowProvider{&fakeProvider{name: "replicate", reply: "tarde", delay: 60 * time.Millisecond}, time.Second}
	r, err := NewRouter([]interfaces.ChatProvider{slow}, NewResponder(nil), RouterOptions{CallTimeout: 20 * time.Millisecond}, zap.NewNop())
	require.NoError(t, err)

	text, provider, err := r.Chat(context.Background(), interfaces.ChatRequest{Prompt: "hola"})
	require.NoError(t, err)
	assert.Equal(t, "replicate", provider)
	assert.Equal(t, "tarde", text)
}

func TestRouter_ReplicatePollsAllAttempts(t *testing.T) {
	var polls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"id":"p1","status":"starting"}`))
			return
		}
		atomic.AddInt32(&polls, 1)
		_, _ = w.Write([]byte(`{"id":"p1","status":"processing"}`))
	}))
	defer srv.Close()

	replicate := infrastructure.NewReplicateClient(srv.URL, "t", "m", "v")
	replicate.PollInterval = 10 * time.Millisecond
	replicate.MaxAttempts = 5

	// The polls take longer than the router's default timeout.
	r, err := NewRouter([]interfaces.ChatProvider{replicate}, nil, RouterOptions{CallTimeout: 20 * time.Millisecond}, zap.NewNop())
	require.NoError(t, err)

	_, _, err = r.Chat(context.Background(), interfaces.ChatRequest{Prompt: "hola"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out after 5 attempts")
	assert.Equal(t, int32(5), atomic.LoadInt32(&polls))
}

func longPrompt(i int) string {
	b := make([]byte, 120)
	for j := range b {
		b[j] = 'x'
	}
	return string(b) + string(rune('a'+i))
}
