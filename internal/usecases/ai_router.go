package usecases

import (
	"context"
	"errors"
	"fmt"
	"sigma_ai/internal/infrastructure"
	"sigma_ai/internal/interfaces"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var ErrNoProvider = errors.New("no AI provider available")

const cacheablePromptLen = 100

type RouterOptions struct {
	CallTimeout     time.Duration
	CacheSize       int
	BreakerFailures uint32
	BreakerOpenFor  time.Duration
}

func (o RouterOptions) withDefaults() RouterOptions {
	if o.CallTimeout <= 0 {
		o.CallTimeout = 45 * time.Second
	}
	if o.CacheSize <= 0 {
		o.CacheSize = 10
	}
	if o.BreakerFailures == 0 {
		o.BreakerFailures = 3
	}
	if o.BreakerOpenFor <= 0 {
		o.BreakerOpenFor = 30 * time.Second
	}
	return o
}

// cannedFallback is implemented by a fallback that has a "service unavailable" reply.
type cannedFallback interface {
	Fallback() string
}

type routedProvider struct {
	provider interfaces.ChatProvider
	breaker  *gobreaker.CircuitBreaker
}

// ProviderStatus is reported by GET /api/status.
type ProviderStatus struct {
	Name    string `json:"name"`
	Breaker string `json:"breaker"`
	Healthy *bool  `json:"healthy,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Router sends a chat request through the configured providers in order.
type Router struct {
	providers []*routedProvider
	fallback  interfaces.ChatProvider
	cache     *lru.Cache
	opts      RouterOptions
	log       *zap.Logger
	tracer    trace.Tracer
}

func NewRouter(providers []interfaces.ChatProvider, fallback interfaces.ChatProvider, opts RouterOptions, log *zap.Logger) (*Router, error) {
	opts = opts.withDefaults()
	cache, err := lru.New(opts.CacheSize)
	if err != nil {
		return nil, err
	}

	r := &Router{
		fallback: fallback,
		cache:    cache,
		opts:     opts,
		log:      log,
		tracer:   otel.Tracer("sigma_ai/router"),
	}
	for _, p := range providers {
		name := p.Name()
		r.providers = append(r.providers, &routedProvider{
			provider: p,
			breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
				Name:    name,
				Timeout: opts.BreakerOpenFor,
				ReadyToTrip: func(c gobreaker.Counts) bool {
					return c.ConsecutiveFailures >= opts.BreakerFailures
				},
				OnStateChange: func(name string, from, to gobreaker.State) {
					log.Warn("provider breaker state changed",
						zap.String("provider", name),
						zap.String("from", from.String()),
						zap.String("to", to.String()))
				},
			}),
		})
	}
	return r, nil
}

// Chat returns the first successful answer and the name of the provider that gave it.
func (r *Router) Chat(ctx context.Context, req interfaces.ChatRequest) (string, string, error) {
	key, cacheable := cacheKey(req)
	if cacheable {
		if v, ok := r.cache.Get(key); ok {
			hit := v.(cachedAnswer)
			return hit.text, hit.provider, nil
		}
	}

	var errs []error
	for _, rp := range r.providers {
		text, err := r.try(ctx, rp, req)
		if err == nil {
			if cacheable {
				r.cache.Add(key, cachedAnswer{text: text, provider: rp.provider.Name()})
			}
			return text, rp.provider.Name(), nil
		}
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
		r.log.Warn("provider failed", zap.String("provider", rp.provider.Name()), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", rp.provider.Name(), err))
	}

	if r.fallback == nil {
		if len(errs) == 0 {
			return "", "", ErrNoProvider
		}
		return "", "", fmt.Errorf("%w: %w", ErrNoProvider, errors.Join(errs...))
	}
	// The local responder cannot see images; it says the service is unavailable instead
	// of answering beside the point.
	if cf, ok := r.fallback.(cannedFallback); ok && req.ImageURL != "" {
		return cf.Fallback(), r.fallback.Name(), nil
	}
	text, err := r.fallback.Chat(ctx, req)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrNoProvider, errors.Join(append(errs, err)...))
	}
	return text, r.fallback.Name(), nil
}

type cachedAnswer struct {
	text     string
	provider string
}

func (r *Router) try(ctx context.Context, rp *routedProvider, req interfaces.ChatRequest) (string, error) {
	name := rp.provider.Name()
	ctx, span := r.tracer.Start(ctx, "ai."+name+".chat", trace.WithAttributes(
		attribute.String("ai.provider", name),
		attribute.Bool("ai.has_image", req.ImageURL != ""),
	))
	defer span.End()

	timeout := r.opts.CallTimeout
	if tp, ok := rp.provider.(interfaces.TimeoutProvider); ok && tp.CallTimeout() > timeout {
		timeout = tp.CallTimeout()
	}

	out, err := rp.breaker.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		text, err := rp.provider.Chat(callCtx, req)
		if err != nil {
			return nil, err
		}
		text = infrastructure.CleanResponse(text)
		if text == "" {
			return nil, errors.New("empty answer")
		}
		return text, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("ai.outcome", "error"))
		return "", err
	}
	span.SetAttributes(attribute.String("ai.outcome", "ok"))
	return out.(string), nil
}

// cacheKey only caches short text-only prompts that start a conversation. Answers
// built from history, or without a scope, would leak between users.
func cacheKey(req interfaces.ChatRequest) (string, bool) {
	if req.CacheScope == "" || req.ImageURL != "" || len(req.History) > 0 {
		return "", false
	}
	normalized := strings.Join(strings.Fields(strings.ToLower(req.Prompt)), " ")
	if normalized == "" || len([]rune(normalized)) >= cacheablePromptLen {
		return "", false
	}
	return scopePrefix(req.CacheScope) + normalized, true
}

func scopePrefix(scope string) string {
	return scope + "\x00"
}

// Status reports breaker state for each provider and pings the ones that support it.
func (r *Router) Status(ctx context.Context) []ProviderStatus {
	out := make([]ProviderStatus, 0, len(r.providers)+1)
	for _, rp := range r.providers {
		st := ProviderStatus{
			Name:    rp.provider.Name(),
			Breaker: rp.breaker.State().String(),
		}
		if hc, ok := rp.provider.(interfaces.HealthChecker); ok {
			healthy := true
			if err := hc.Ping(ctx); err != nil {
				healthy = false
				st.Error = err.Error()
			}
			st.Healthy = &healthy
		}
		out = append(out, st)
	}
	if r.fallback != nil {
		out = append(out, ProviderStatus{Name: r.fallback.Name(), Breaker: gobreaker.StateClosed.String()})
	}
	return out
}

// ClearScope drops the cached answers of one scope.
func (r *Router) ClearScope(scope string) {
	prefix := scopePrefix(scope)
	for _, k := range r.cache.Keys() {
		if key, ok := k.(string); ok && strings.HasPrefix(key, prefix) {
			r.cache.Remove(k)
		}
	}
}

func (r *Router) CacheLen() int {
	return r.cache.Len()
}

// HasRemoteProviders is false when only the local responder can answer. It cannot
// describe images.
func (r *Router) HasRemoteProviders() bool {
	return len(r.providers) > 0
}
