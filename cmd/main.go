package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sigma_ai/internal/config"
	"sigma_ai/internal/infrastructure"
	"sigma_ai/internal/interfaces"
	httpapi "sigma_ai/internal/interfaces/http"
	"sigma_ai/internal/repository"
	"sigma_ai/internal/usecases"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log, err := infrastructure.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("sigma ai stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := infrastructure.SetupTracing(ctx, cfg.OTLPEndpoint, "sigma-ai")
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	storage, localDir, err := openStorage(cfg)
	if err != nil {
		return err
	}

	puter := infrastructure.NewPuterClient(cfg.PuterURL, cfg.PuterToken)
	chatProviders, err := buildChatProviders(cfg, puter, log)
	if err != nil {
		return err
	}
	router, err := usecases.NewRouter(chatProviders, usecases.NewResponder(nil), usecases.RouterOptions{CallTimeout: cfg.ChatTimeout}, log)
	if err != nil {
		return err
	}

	imageProviders := []interfaces.ImageProvider{puter}
	if cfg.HuggingFaceToken != "" {
		imageProviders = append([]interfaces.ImageProvider{
			infrastructure.NewHuggingFaceClient(cfg.HuggingFaceURL, cfg.HuggingFaceToken, cfg.HuggingFaceImageModel),
		}, imageProviders...)
	}

	var extractor usecases.TextExtractor
	if cfg.TikaURL != "" {
		extractor = infrastructure.NewTikaClient(cfg.TikaURL)
	}

	limiter := infrastructure.NewMessageRateLimiter(cfg.RateLimitPerSec, cfg.RateLimitBurst)
	go limiter.Cleanup(ctx, 5*time.Minute)

	media := usecases.NewMediaService(store, storage, imageProviders, infrastructure.NewPlaceholderMedia(), log)
	chat := usecases.NewChatService(store, router, media, infrastructure.NewSessionManager(), cfg.DailyMessageLimit, log)
	files := usecases.NewFileService(store, storage, usecases.NewFileAnalyzer(router, extractor, storage, log), chat, log)

	var botName string
	if cfg.TelegramBotToken != "" {
		bot, err := infrastructure.NewTelegramBot(cfg.TelegramBotToken, log)
		if err != nil {
			log.Warn("telegram disabled", zap.Error(err))
		} else {
			botName = bot.API.Self.UserName
			bridge := usecases.NewTelegramBridge(chat, limiter, log)
			go bot.Run(ctx, func(ctx context.Context, b *infrastructure.TelegramBot, u tgbotapi.Update) {
				bridge.HandleUpdate(ctx, b, u)
			})
		}
	}

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	secret := cfg.SupabaseJWTSecret
	if cfg.IsDemo() {
		secret = ""
	}
	httpapi.SetupRoutes(r,
		httpapi.NewHandler(chat, media, files, cfg.IsDemo(), log),
		httpapi.NewMiddleware(secret, limiter, log),
		httpapi.RouteOptions{LocalFilesDir: localDir, Telegram: httpapi.NewTelegramHandler(botName)},
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.Bool("demo", cfg.IsDemo()),
			zap.Bool("remote_providers", router.HasRemoteProviders()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (interfaces.ChatStore, error) {
	if !cfg.IsDemo() {
		pg, err := infrastructure.NewPostgresClient(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, err
		}
		return repository.NewPostgresStore(pg.Pool), nil
	}

	db, err := infrastructure.OpenSQLite(ctx, cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	log.Info("demo mode, using sqlite", zap.String("path", cfg.SQLitePath))
	return repository.NewSQLiteStore(db), nil
}

// openStorage returns the object storage and, for disk storage, the directory to serve.
func openStorage(cfg *config.Config) (interfaces.ObjectStorage, string, error) {
	if cfg.UsesSupabaseStorage() {
		return infrastructure.NewSupabaseStorage(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseBucket), "", nil
	}
	local, err := infrastructure.NewLocalStorage(cfg.LocalStorageDir, cfg.PublicBaseURL)
	if err != nil {
		return nil, "", err
	}
	return local, local.Root(), nil
}

// buildChatProviders follows PROVIDER_ORDER and skips providers that lack credentials.
func buildChatProviders(cfg *config.Config, puter *infrastructure.PuterClient, log *zap.Logger) ([]interfaces.ChatProvider, error) {
	var providers []interfaces.ChatProvider
	for _, name := range cfg.ProviderOrder {
		switch name {
		case "puter":
			providers = append(providers, puter)
		case "openrouter":
			if cfg.OpenRouterKey == "" {
				continue
			}
			client, err := infrastructure.NewOpenRouterClient(cfg.OpenRouterURL, cfg.OpenRouterKey, cfg.OpenRouterModel)
			if err != nil {
				return nil, err
			}
			providers = append(providers, client)
		case "replicate":
			if cfg.ReplicateToken == "" {
				continue
			}
			providers = append(providers, infrastructure.NewReplicateClient(cfg.ReplicateURL, cfg.ReplicateToken, cfg.ReplicateModel, cfg.ReplicateVersion))
		case "gptj":
			if cfg.GPTJURL == "" {
				continue
			}
			providers = append(providers, infrastructure.NewGPTJClient(cfg.GPTJURL))
		default:
			log.Warn("unknown provider in PROVIDER_ORDER", zap.String("provider", name))
		}
	}
	return providers, nil
}
