package http

import (
	"errors"
	"net/http"
	"sigma_ai/internal/entities"
	"sigma_ai/internal/usecases"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	chat  *usecases.ChatService
	media *usecases.MediaService
	files *usecases.FileService
	log   *zap.Logger
	demo  bool
}

func NewHandler(chat *usecases.ChatService, media *usecases.MediaService, files *usecases.FileService, demo bool, log *zap.Logger) *Handler {
	return &Handler{
		chat:  chat,
		media: media,
		files: files,
		log:   log,
		demo:  demo,
	}
}

// RouteOptions carries the optional parts of the router.
type RouteOptions struct {
	// LocalFilesDir is served under /files when set (demo mode storage).
	LocalFilesDir string
	Telegram      *TelegramHandler
}

func SetupRoutes(r *gin.Engine, h *Handler, middleware *Middleware, opts RouteOptions) {
	// Apply Security Middleware
	r.Use(SecurityHeaders())
	r.Use(RequestSizeLimiter(usecases.MaxUploadSize + 1<<20))
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.RequestLogger())

	// Public Routes
	r.GET("/", h.Index)
	r.GET("/health", h.Health)
	if opts.LocalFilesDir != "" {
		r.Static("/files", opts.LocalFilesDir)
	}

	api := r.Group("/api")
	api.Use(middleware.AuthRequired())
	api.Use(middleware.RateLimitPerUser())
	{
		api.GET("/status", h.Status)
		api.GET("/usage", h.GetUsage)
		api.POST("/memory/clear", h.ClearMemory)

		api.GET("/conversations", h.ListConversations)
		api.POST("/conversations", h.CreateConversation)
		api.PATCH("/conversations/:id", h.RenameConversation)
		api.DELETE("/conversations/:id", h.DeleteConversation)
		api.GET("/conversations/:id/messages", h.ListMessages)
		api.POST("/conversations/:id/messages", h.SendMessage)

		api.POST("/media/images", h.GenerateImage)
		api.POST("/media/videos", h.GenerateVideo)
		api.GET("/media", h.ListMedia)

		api.POST("/files", h.UploadFile)
		api.GET("/files", h.ListFiles)
		api.GET("/files/:id", h.GetFile)

		if opts.Telegram != nil {
			opts.Telegram.RegisterRoutes(api)
		}
	}
}

func (h *Handler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "Sigma AI",
		"version": "2.0",
		"demo":    h.demo,
	})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "demo": h.demo})
}

func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"providers":       h.chat.ProviderStatus(c.Request.Context()),
		"active_requests": h.chat.ActiveRequests(),
	})
}

func getUserID(c *gin.Context) string {
	return c.GetString("user_id")
}

// idParam validates the :id path parameter and writes a 400 when it is not a UUID.
func idParam(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if !ValidID(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return "", false
	}
	return id, true
}

// respondError maps domain errors to status codes. Unknown errors are logged and
// reported without detail.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, entities.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, entities.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, entities.ErrQuotaExceeded):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	case errors.Is(err, entities.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, usecases.ErrNoProvider):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No AI provider available"})
	default:
		_ = c.Error(err)
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
