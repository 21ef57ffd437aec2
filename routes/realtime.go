package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cleaning-booking-server/models"
)

// SocketServer upgrades an authenticated request to the realtime socket.
type SocketServer interface {
	ServeWebSocket(w http.ResponseWriter, r *http.Request, userID uint, role models.UserRole, checkOrigin func(*http.Request) bool)
}

type RealtimeHandler struct {
	hub         SocketServer
	checkOrigin func(*http.Request) bool
}

func NewRealtimeHandler(hub SocketServer, checkOrigin func(*http.Request) bool) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, checkOrigin: checkOrigin}
}

func (h *RealtimeHandler) serve(c *gin.Context) {
	h.hub.ServeWebSocket(c.Writer, c.Request, c.GetUint("user_id"), models.UserRole(c.GetString("role")), h.checkOrigin)
}
