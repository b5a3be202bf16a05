package http

import (
	"io"
	"net/http"
	"sigma_ai/internal/usecases"

	"github.com/gin-gonic/gin"
)

const maxFilenameLength = 255

func (h *Handler) UploadFile(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Multipart field \"file\" is required"})
		return
	}
	if fh.Size > usecases.MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large (max 10MB)"})
		return
	}

	conversationID := c.PostForm("conversation_id")
	if conversationID != "" && !ValidID(conversationID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation_id"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read upload"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, usecases.MaxUploadSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read upload"})
		return
	}

	rec, err := h.files.Upload(c.Request.Context(), getUserID(c), TruncateString(SanitizeString(fh.Filename), maxFilenameLength), data, conversationID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *Handler) ListFiles(c *gin.Context) {
	files, err := h.files.ListFiles(c.Request.Context(), getUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}

func (h *Handler) GetFile(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	rec, err := h.files.GetFile(c.Request.Context(), getUserID(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}
