package http

import (
	"net/http"
	"sigma_ai/internal/interfaces"
	"sigma_ai/internal/usecases"

	"github.com/gin-gonic/gin"
)

type imageRequest struct {
	Prompt string `json:"prompt"`
	Style  string `json:"style"`
	Size   string `json:"size"`
}

type videoRequest struct {
	Prompt     string `json:"prompt"`
	Duration   int    `json:"duration"`
	FPS        int    `json:"fps"`
	Resolution string `json:"resolution"`
}

func (h *Handler) GenerateImage(c *gin.Context) {
	var req imageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	req.Prompt = SanitizeString(req.Prompt)
	if !ValidateLength(req.Prompt, 1, MaxPromptLength) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Prompt requerido (máximo 2000 caracteres)"})
		return
	}

	res, err := h.media.GenerateImage(c.Request.Context(), getUserID(c), req.Prompt, interfaces.ImageOptions{
		Style: SanitizeString(req.Style),
		Size:  req.Size,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GenerateVideo(c *gin.Context) {
	var req videoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	req.Prompt = SanitizeString(req.Prompt)
	if !ValidateLength(req.Prompt, 1, MaxPromptLength) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Prompt requerido (máximo 2000 caracteres)"})
		return
	}

	res, err := h.media.GenerateVideo(c.Request.Context(), getUserID(c), req.Prompt, usecases.VideoOptions{
		Duration:   req.Duration,
		FPS:        req.FPS,
		Resolution: req.Resolution,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListMedia(c *gin.Context) {
	media, err := h.media.ListMedia(c.Request.Context(), getUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"media": media})
}
