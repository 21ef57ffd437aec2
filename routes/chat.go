package routes

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cleaning-booking-server/chat"
	"cleaning-booking-server/media"
	"cleaning-booking-server/models"
)

type ChatService interface {
	GetAllChats(ctx context.Context, v chat.Viewer) ([]chat.Thread, error)
	GetThread(ctx context.Context, v chat.Viewer, chatID uint) (*chat.Thread, error)
	Messages(ctx context.Context, v chat.Viewer, chatID uint) ([]models.ChatMessage, error)
	OpenThread(ctx context.Context, v chat.Viewer, chatID uint) ([]models.ChatMessage, error)
	Send(ctx context.Context, v chat.Viewer, chatID uint, out chat.OutgoingMessage) (*models.ChatMessage, error)
	MarkMessageRead(ctx context.Context, v chat.Viewer, messageID uint) error
	GetOrCreateSupportThread(ctx context.Context, v chat.Viewer) (*models.Chat, error)
}

// ChatHandler serves the inbox and thread endpoints. Live updates go over
// the realtime socket.
type ChatHandler struct {
	chats    ChatService
	uploader media.Uploader
}

func NewChatHandler(chats ChatService, uploader media.Uploader) *ChatHandler {
	return &ChatHandler{chats: chats, uploader: uploader}
}

func (h *ChatHandler) RegisterChatRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.inbox)
	rg.POST("/support", h.support)
	rg.GET("/:id", h.thread)
	rg.GET("/:id/messages", h.messages)
	rg.POST("/:id/open", h.open)
	rg.POST("/:id/messages", h.send)
	rg.POST("/:id/attachments", h.sendImage)
	rg.POST("/messages/:id/read", h.markRead)
}

func (h *ChatHandler) inbox(c *gin.Context) {
	threads, err := h.chats.GetAllChats(c.Request.Context(), viewerOf(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if threads == nil {
		threads = []chat.Thread{}
	}
	c.JSON(http.StatusOK, gin.H{"data": threads})
}

func (h *ChatHandler) thread(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	t, err := h.chats.GetThread(c.Request.Context(), viewerOf(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": t})
}

func (h *ChatHandler) messages(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	msgs, err := h.chats.Messages(c.Request.Context(), viewerOf(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"data": msgs})
}

// open marks the thread read for the caller and returns its messages.
func (h *ChatHandler) open(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	msgs, err := h.chats.OpenThread(c.Request.Context(), viewerOf(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"data": msgs})
}

type sendMessageRequest struct {
	Text  string `json:"text" binding:"required,max=2000"`
	Nonce string `json:"nonce" binding:"max=64"`
}

func (h *ChatHandler) send(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req sendMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	msg, err := h.chats.Send(c.Request.Context(), viewerOf(c), id, chat.OutgoingMessage{Text: req.Text, Nonce: req.Nonce})
	if err != nil {
		respondError(c, err)
		return
	}
	// Whitespace-only text is a no-op, not an error.
	if msg == nil {
		c.JSON(http.StatusOK, gin.H{"sent": false})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"sent": true, "data": msg})
}

// sendImage uploads a photo and posts it to the thread as an image message.
func (h *ChatHandler) sendImage(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if h.uploader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "UPLOADS_DISABLED", "message": "Image uploads are not configured"})
		return
	}
	v := viewerOf(c)
	// Access is checked before anything is uploaded.
	if _, err := h.chats.GetThread(c.Request.Context(), v, id); err != nil {
		respondError(c, err)
		return
	}

	fh, err := c.FormFile("image")
	if err != nil {
		badRequest(c, "image file is required")
		return
	}
	if err := media.ValidateImage(fh); err != nil {
		badRequest(c, err.Error())
		return
	}
	file, err := fh.Open()
	if err != nil {
		badRequest(c, "image could not be read")
		return
	}
	defer file.Close()

	name := fmt.Sprintf("%d_%d_%s", v.ID, time.Now().Unix(), media.BaseName(fh.Filename))
	url, err := h.uploader.UploadImage(c.Request.Context(), file, fmt.Sprintf("chat/%d", id), name)
	if err != nil {
		log.Printf("❌ Chat image upload for chat %d failed: %v", id, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "UPLOAD_FAILED", "message": "Image upload failed"})
		return
	}

	msg, err := h.chats.Send(c.Request.Context(), v, id, chat.OutgoingMessage{
		Text:          c.PostForm("caption"),
		Nonce:         c.PostForm("nonce"),
		AttachmentURL: url,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"sent": true, "data": msg})
}

func (h *ChatHandler) markRead(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.chats.MarkMessageRead(c.Request.Context(), viewerOf(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ChatHandler) support(c *gin.Context) {
	thread, err := h.chats.GetOrCreateSupportThread(c.Request.Context(), viewerOf(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": thread})
}
