package routes

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"cleaning-booking-server/apperrors"
	"cleaning-booking-server/models"
	"cleaning-booking-server/notifications"
	"cleaning-booking-server/repository"
)

type UserDirectory interface {
	ListByType(ctx context.Context, role models.UserRole) ([]models.User, error)
	UpdatePartnerStatus(ctx context.Context, id uint, status models.PartnerStatus) (*models.User, error)
}

type Broadcaster interface {
	Notifier
	Broadcast(ctx context.Context, userIDs []uint, title, message string) int
}

// AdminHandler covers cleaner approval and system notices. Mount it behind
// RequireRole(admin).
type AdminHandler struct {
	users    UserDirectory
	notifier Broadcaster
}

func NewAdminHandler(users UserDirectory, notifier Broadcaster) *AdminHandler {
	return &AdminHandler{users: users, notifier: notifier}
}

func (h *AdminHandler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/cleaners", h.listCleaners)
	rg.PUT("/cleaners/:id/approve", h.setStatus(models.PartnerApproved))
	rg.PUT("/cleaners/:id/reject", h.setStatus(models.PartnerRejected))
	rg.POST("/notices", h.broadcast)
}

// listCleaners supports ?status=pending|approved|rejected.
func (h *AdminHandler) listCleaners(c *gin.Context) {
	cleaners, err := h.users.ListByType(c.Request.Context(), models.RoleCleaner)
	if err != nil {
		respondError(c, apperrors.RemoteRead("list cleaners", err))
		return
	}
	status := models.PartnerStatus(c.Query("status"))
	out := make([]models.User, 0, len(cleaners))
	for _, u := range cleaners {
		if status == "" || u.Status == status {
			out = append(out, u)
		}
	}
	c.JSON(http.StatusOK, gin.H{"data": out, "total": len(out)})
}

func (h *AdminHandler) setStatus(status models.PartnerStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		user, err := h.users.UpdatePartnerStatus(c.Request.Context(), id, status)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				respondError(c, apperrors.NotFound("cleaner", err))
				return
			}
			respondError(c, apperrors.RemoteWrite("update cleaner status", err))
			return
		}
		log.Printf("✅ Cleaner %d marked %s by admin %d", id, status, c.GetUint("user_id"))

		title, message := "Application approved", "You can now receive cleaning bookings."
		if status == models.PartnerRejected {
			title, message = "Application not approved", "Your cleaner application was not approved. Contact support for details."
		}
		if _, err := h.notifier.Create(c.Request.Context(), notifications.NewNotification{
			UserID:  id,
			Title:   title,
			Message: message,
			Type:    models.NotificationSystem,
		}); err != nil {
			log.Printf("⚠️ Status notice for cleaner %d not sent: %v", id, err)
		}
		c.JSON(http.StatusOK, gin.H{"data": user})
	}
}

type noticeRequest struct {
	Title   string `json:"title" binding:"required,max=255"`
	Message string `json:"message" binding:"required"`
	// Audience is customer, cleaner or empty for both.
	Audience models.UserRole `json:"audience" binding:"omitempty,oneof=customer cleaner"`
}

func (h *AdminHandler) broadcast(c *gin.Context) {
	var req noticeRequest
	if !bindJSON(c, &req) {
		return
	}
	roles := []models.UserRole{models.RoleCustomer, models.RoleCleaner}
	if req.Audience != "" {
		roles = []models.UserRole{req.Audience}
	}
	var ids []uint
	for _, role := range roles {
		users, err := h.users.ListByType(c.Request.Context(), role)
		if err != nil {
			respondError(c, apperrors.RemoteRead(fmt.Sprintf("list %ss", role), err))
			return
		}
		for _, u := range users {
			if u.IsActive {
				ids = append(ids, u.ID)
			}
		}
	}
	sent := h.notifier.Broadcast(c.Request.Context(), ids, req.Title, req.Message)
	log.Printf("📱 Notice %q sent to %d/%d users", req.Title, sent, len(ids))
	c.JSON(http.StatusOK, gin.H{"sent": sent, "recipients": len(ids)})
}
