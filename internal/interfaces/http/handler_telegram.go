package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
)

// TelegramHandler exposes how to reach the Telegram bot from the web client.
type TelegramHandler struct {
	botName string
}

func NewTelegramHandler(botName string) *TelegramHandler {
	return &TelegramHandler{botName: botName}
}

// RegisterRoutes registers Telegram routes
func (h *TelegramHandler) RegisterRoutes(api *gin.RouterGroup) {
	tg := api.Group("/telegram")
	{
		tg.GET("/status", h.GetStatus)
		tg.GET("/qr", h.GetQRCode)
	}
}

func (h *TelegramHandler) link() string {
	return "https://t.me/" + h.botName
}

func (h *TelegramHandler) GetStatus(c *gin.Context) {
	if h.botName == "" {
		c.JSON(http.StatusOK, gin.H{"enabled": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"enabled":  true,
		"bot_name": h.botName,
		"link":     h.link(),
	})
}

// GetQRCode returns a PNG QR code that opens the bot on a phone.
func (h *TelegramHandler) GetQRCode(c *gin.Context) {
	if h.botName == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Telegram not configured"})
		return
	}
	png, err := qrcode.Encode(h.link(), qrcode.Medium, 256)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate QR code"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
