package usecases

import (
	"context"
	"fmt"
	"math/rand"
	"sigma_ai/internal/entities"
	"sigma_ai/internal/infrastructure"
	"sigma_ai/internal/interfaces"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

const (
	defaultImageStyle = "realistic"
	defaultImageSize  = "1024x1024"

	defaultVideoDuration   = 5
	defaultVideoFPS        = 24
	defaultVideoResolution = "1280x720"
	maxVideoDuration       = 30
	maxVideoFPS            = 60
)

type VideoOptions struct {
	Duration   int
	FPS        int
	Resolution string
}

// MediaService generates images and videos and records them as GeneratedMedia.
type MediaService struct {
	store       interfaces.ChatStore
	storage     interfaces.ObjectStorage
	providers   []interfaces.ImageProvider
	placeholder *infrastructure.PlaceholderMedia
	log         *zap.Logger
	now         func() time.Time
}

func NewMediaService(store interfaces.ChatStore, storage interfaces.ObjectStorage, providers []interfaces.ImageProvider, placeholder *infrastructure.PlaceholderMedia, log *zap.Logger) *MediaService {
	return &MediaService{
		store:       store,
		storage:     storage,
		providers:   providers,
		placeholder: placeholder,
		log:         log,
		now:         time.Now,
	}
}

func (s *MediaService) GenerateImage(ctx context.Context, userID, prompt string, opts interfaces.ImageOptions) (*entities.MediaResult, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", entities.ErrInvalidInput)
	}
	if opts.Style == "" {
		opts.Style = defaultImageStyle
	}
	if opts.Size == "" {
		opts.Size = defaultImageSize
	}
	if _, _, ok := infrastructure.ParseSize(opts.Size); !ok {
		return nil, fmt.Errorf("%w: size must look like 1024x1024, at most %d per side", entities.ErrInvalidInput, infrastructure.MaxImageSide)
	}

	start := s.now()
	params := map[string]any{
		"prompt":         prompt,
		"style":          opts.Style,
		"size":           opts.Size,
		"steps":          50,
		"guidance_scale": 7.5,
	}
	media, err := s.store.CreateGeneratedMedia(ctx, userID, entities.MediaTypeImage, prompt, params)
	if err != nil {
		return nil, err
	}

	url, model, err := s.renderImage(ctx, userID, media.ID, prompt, opts)
	if err != nil {
		s.log.Warn("image generation failed, using placeholder", zap.String("media_id", media.ID), zap.Error(err))
		if ferr := s.store.FailGeneratedMedia(ctx, media.ID); ferr != nil {
			return nil, ferr
		}
		url, model = s.placeholder.ImageURL(opts.Size), infrastructure.PlaceholderModel
	}
	params["model"] = model

	return &entities.MediaResult{
		Success:          true,
		MediaID:          media.ID,
		ImageURL:         url,
		GenerationParams: params,
		ProcessingTime:   processingTime(s.now().Sub(start)),
		ModelUsed:        model,
	}, nil
}

// renderImage tries each provider in order and stores the first image produced.
// With no providers configured the placeholder counts as a successful render.
func (s *MediaService) renderImage(ctx context.Context, userID, mediaID, prompt string, opts interfaces.ImageOptions) (string, string, error) {
	if len(s.providers) == 0 {
		url := s.placeholder.ImageURL(opts.Size)
		if _, err := s.store.CompleteGeneratedMedia(ctx, mediaID, url); err != nil {
			return "", "", err
		}
		return url, infrastructure.PlaceholderModel, nil
	}

	var lastErr error
	for _, p := range s.providers {
		img, err := p.GenerateImage(ctx, prompt, opts)
		if err != nil {
			s.log.Warn("image provider failed", zap.String("provider", p.Name()), zap.Error(err))
			lastErr = err
			continue
		}

		url, path := img.URL, img.URL
		if len(img.Data) > 0 {
			path = fmt.Sprintf("%s/media/%s%s", userID, mediaID, imageExtension(img))
			if err := s.storage.Upload(ctx, path, img.ContentType, img.Data); err != nil {
				lastErr = fmt.Errorf("upload image: %w", err)
				continue
			}
			url = s.storage.PublicURL(path)
		}
		if url == "" {
			lastErr = fmt.Errorf("%s returned no image", p.Name())
			continue
		}
		if _, err := s.store.CompleteGeneratedMedia(ctx, mediaID, path); err != nil {
			return "", "", err
		}
		return url, orModel(img.Model, p.Name()), nil
	}
	return "", "", lastErr
}

func imageExtension(img *interfaces.GeneratedImage) string {
	if m := mimetype.Lookup(img.ContentType); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	return ".png"
}

func orModel(model, provider string) string {
	if model != "" {
		return model
	}
	return provider
}

func (s *MediaService) GenerateVideo(ctx context.Context, userID, prompt string, opts VideoOptions) (*entities.MediaResult, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", entities.ErrInvalidInput)
	}
	if opts.Duration == 0 {
		opts.Duration = defaultVideoDuration
	}
	if opts.FPS == 0 {
		opts.FPS = defaultVideoFPS
	}
	if opts.Resolution == "" {
		opts.Resolution = defaultVideoResolution
	}
	if opts.Duration < 1 || opts.Duration > maxVideoDuration {
		return nil, fmt.Errorf("%w: duration must be between 1 and %d seconds", entities.ErrInvalidInput, maxVideoDuration)
	}
	if opts.FPS < 1 || opts.FPS > maxVideoFPS {
		return nil, fmt.Errorf("%w: fps must be between 1 and %d", entities.ErrInvalidInput, maxVideoFPS)
	}
	if _, _, ok := infrastructure.ParseSize(opts.Resolution); !ok {
		return nil, fmt.Errorf("%w: resolution must look like 1280x720, at most %d per side", entities.ErrInvalidInput, infrastructure.MaxImageSide)
	}

	start := s.now()
	params := map[string]any{
		"prompt":          prompt,
		"duration":        opts.Duration,
		"fps":             opts.FPS,
		"resolution":      opts.Resolution,
		"model":           infrastructure.PlaceholderModel,
		"motion_strength": 0.8,
		"seed":            rand.Intn(1000000),
	}
	media, err := s.store.CreateGeneratedMedia(ctx, userID, entities.MediaTypeVideo, prompt, params)
	if err != nil {
		return nil, err
	}
	url := s.placeholder.VideoURL()
	if _, err := s.store.CompleteGeneratedMedia(ctx, media.ID, url); err != nil {
		return nil, err
	}

	return &entities.MediaResult{
		Success:          true,
		MediaID:          media.ID,
		VideoURL:         url,
		GenerationParams: params,
		ProcessingTime:   processingTime(s.now().Sub(start)),
		ModelUsed:        infrastructure.PlaceholderModel,
		Duration:         opts.Duration,
	}, nil
}

func (s *MediaService) ListMedia(ctx context.Context, userID string) ([]entities.GeneratedMedia, error) {
	return s.store.ListGeneratedMedia(ctx, userID)
}

func processingTime(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
