package routes

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"cleaning-booking-server/models"
	"cleaning-booking-server/notifications"
)

type NotificationService interface {
	List(ctx context.Context, userID uint) (notifications.List, error)
	Select(ctx context.Context, userID, notificationID uint, onOpen func(models.Notification)) (*models.Notification, error)
	MarkAllRead(ctx context.Context, userID uint) (int64, error)
	UnreadCount(ctx context.Context, userID uint) (int64, error)
}

type NotificationHandler struct {
	notifications NotificationService
}

func NewNotificationHandler(svc NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: svc}
}

func (h *NotificationHandler) RegisterNotificationRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.list)
	rg.GET("/unread-count", h.unreadCount)
	rg.POST("/:id/open", h.open)
	rg.POST("/mark-all-read", h.markAllRead)
}

// list returns the all/unread/read tabs. ?tab= narrows to one of them.
func (h *NotificationHandler) list(c *gin.Context) {
	list, err := h.notifications.List(c.Request.Context(), c.GetUint("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	switch c.Query("tab") {
	case "":
		c.JSON(http.StatusOK, gin.H{"data": list})
	case "all":
		c.JSON(http.StatusOK, gin.H{"data": list.All})
	case "unread":
		c.JSON(http.StatusOK, gin.H{"data": list.Unread})
	case "read":
		c.JSON(http.StatusOK, gin.H{"data": list.Read})
	default:
		badRequest(c, "tab must be all, unread or read")
	}
}

func (h *NotificationHandler) unreadCount(c *gin.Context) {
	count, err := h.notifications.UnreadCount(c.Request.Context(), c.GetUint("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

// open marks the notification read if needed and returns it together with
// the screen the client should navigate to.
func (h *NotificationHandler) open(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var target string
	n, err := h.notifications.Select(c.Request.Context(), c.GetUint("user_id"), id, func(n models.Notification) {
		if n.ActionURL != nil {
			target = *n.ActionURL
		}
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": n, "action_url": target})
}

func (h *NotificationHandler) markAllRead(c *gin.Context) {
	marked, err := h.notifications.MarkAllRead(c.Request.Context(), c.GetUint("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": marked})
}
