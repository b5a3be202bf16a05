package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type conversationRequest struct {
	Title string `json:"title"`
}

type sendMessageRequest struct {
	Content  string `json:"content"`
	ImageURL string `json:"image_url"`
}

func (h *Handler) ListConversations(c *gin.Context) {
	convs, err := h.chat.ListConversations(c.Request.Context(), getUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

func (h *Handler) CreateConversation(c *gin.Context) {
	var req conversationRequest
	// An empty body is allowed and gets the default title.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
	}
	req.Title = SanitizeString(req.Title)
	if req.Title != "" && !ValidateLength(req.Title, 1, MaxTitleLength) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title must be 1-256 characters"})
		return
	}

	conv, err := h.chat.NewConversation(c.Request.Context(), getUserID(c), req.Title)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

func (h *Handler) RenameConversation(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req conversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	req.Title = SanitizeString(req.Title)
	if !ValidateLength(req.Title, 1, MaxTitleLength) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title must be 1-256 characters"})
		return
	}

	conv, err := h.chat.RenameConversation(c.Request.Context(), getUserID(c), id, req.Title)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h *Handler) DeleteConversation(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.chat.DeleteConversation(c.Request.Context(), getUserID(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListMessages(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	msgs, err := h.chat.GetMessages(c.Request.Context(), getUserID(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *Handler) SendMessage(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	req.Content = SanitizeString(req.Content)
	if req.ImageURL == "" && !ValidateLength(req.Content, 1, MaxMessageLength) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message must be 1-10000 characters"})
		return
	}
	if !ValidateLength(req.Content, 0, MaxMessageLength) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message must be 1-10000 characters"})
		return
	}

	ex, err := h.chat.SendMessage(c.Request.Context(), getUserID(c), id, req.Content, req.ImageURL)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ex)
}

func (h *Handler) GetUsage(c *gin.Context) {
	usage, err := h.chat.Usage(c.Request.Context(), getUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, usage)
}

func (h *Handler) ClearMemory(c *gin.Context) {
	h.chat.ClearHistory(getUserID(c))
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}
