package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultProviderOrder is the chat fallback chain used when PROVIDER_ORDER is empty.
var DefaultProviderOrder = []string{"puter", "openrouter", "replicate", "gptj"}

type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	DatabaseURL string
	SQLitePath  string

	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseBucket     string
	SupabaseJWTSecret  string
	LocalStorageDir    string
	PublicBaseURL      string

	PuterURL   string
	PuterToken string

	ReplicateURL     string
	ReplicateToken   string
	ReplicateModel   string
	ReplicateVersion string

	HuggingFaceURL        string
	HuggingFaceToken      string
	HuggingFaceImageModel string

	OpenRouterURL   string
	OpenRouterKey   string
	OpenRouterModel string

	GPTJURL string

	ProviderOrder []string
	ChatTimeout   time.Duration

	TikaURL          string
	TelegramBotToken string

	DailyMessageLimit int
	RateLimitPerSec   float64
	RateLimitBurst    int

	OTLPEndpoint string
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	// A missing .env is normal in containers.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		HTTPAddr:  v.GetString("http_addr"),
		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),

		DatabaseURL: v.GetString("database_url"),
		SQLitePath:  v.GetString("sqlite_path"),

		SupabaseURL:        strings.TrimRight(v.GetString("supabase_url"), "/"),
		SupabaseServiceKey: v.GetString("supabase_service_key"),
		SupabaseBucket:     v.GetString("supabase_bucket"),
		SupabaseJWTSecret:  v.GetString("supabase_jwt_secret"),
		LocalStorageDir:    v.GetString("local_storage_dir"),
		PublicBaseURL:      strings.TrimRight(v.GetString("public_base_url"), "/"),

		PuterURL:   v.GetString("puter_url"),
		PuterToken: v.GetString("puter_token"),

		ReplicateURL:     v.GetString("replicate_url"),
		ReplicateToken:   v.GetString("replicate_api_token"),
		ReplicateModel:   v.GetString("replicate_model"),
		ReplicateVersion: v.GetString("replicate_version"),

		HuggingFaceURL:        v.GetString("huggingface_url"),
		HuggingFaceToken:      v.GetString("huggingface_token"),
		HuggingFaceImageModel: v.GetString("huggingface_image_model"),

		OpenRouterURL:   v.GetString("openrouter_url"),
		OpenRouterKey:   v.GetString("openrouter_api_key"),
		OpenRouterModel: v.GetString("openrouter_model"),

		GPTJURL: v.GetString("gptj_url"),

		ProviderOrder: splitList(v.GetString("provider_order")),
		ChatTimeout:   v.GetDuration("chat_timeout"),

		TikaURL:          v.GetString("tika_url"),
		TelegramBotToken: v.GetString("telegram_bot_token"),

		DailyMessageLimit: v.GetInt("daily_message_limit"),
		RateLimitPerSec:   v.GetFloat64("rate_limit_per_sec"),
		RateLimitBurst:    v.GetInt("rate_limit_burst"),

		OTLPEndpoint: v.GetString("otel_exporter_otlp_endpoint"),
	}
	if len(cfg.ProviderOrder) == 0 {
		cfg.ProviderOrder = DefaultProviderOrder
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", "0.0.0.0:8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("sqlite_path", "sigma.db")
	v.SetDefault("supabase_bucket", "user-files")
	v.SetDefault("local_storage_dir", "uploads")
	v.SetDefault("public_base_url", "http://localhost:8080")
	v.SetDefault("puter_url", "https://api.puter.com")
	v.SetDefault("replicate_url", "https://api.replicate.com/v1")
	v.SetDefault("replicate_model", "yorickvp/llava-v1.6-mistral-7b")
	v.SetDefault("replicate_version", "19be067b589d0c46689ffa7cc3ff321447a441986a7694c01225973c2eafc874")
	v.SetDefault("huggingface_url", "https://api-inference.huggingface.co")
	v.SetDefault("huggingface_image_model", "black-forest-labs/FLUX.1-dev")
	v.SetDefault("openrouter_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter_model", "anthropic/claude-3.5-sonnet")
	v.SetDefault("chat_timeout", 45*time.Second)
	v.SetDefault("daily_message_limit", 200)
	v.SetDefault("rate_limit_per_sec", 5.0)
	v.SetDefault("rate_limit_burst", 10)
}

// IsDemo reports whether the service runs without Supabase, on local SQLite and disk.
func (c *Config) IsDemo() bool {
	return c.DatabaseURL == ""
}

// UsesSupabaseStorage reports whether uploads go to Supabase Storage.
func (c *Config) UsesSupabaseStorage() bool {
	return c.SupabaseURL != "" && c.SupabaseServiceKey != ""
}

func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("HTTP_ADDR must not be empty")
	}
	if !c.IsDemo() && c.SupabaseJWTSecret == "" {
		return errors.New("SUPABASE_JWT_SECRET is required when DATABASE_URL is set")
	}
	if c.RateLimitPerSec <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("invalid rate limit %v/%d", c.RateLimitPerSec, c.RateLimitBurst)
	}
	if c.DailyMessageLimit < 0 {
		return fmt.Errorf("invalid DAILY_MESSAGE_LIMIT %d", c.DailyMessageLimit)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
