package routes

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"cleaning-booking-server/apperrors"
	"cleaning-booking-server/chat"
	"cleaning-booking-server/models"
	"cleaning-booking-server/notifications"
	"cleaning-booking-server/repository"
)

type ReservationStore interface {
	GetByID(ctx context.Context, id uint) (*models.Reservation, error)
	ListForParticipant(ctx context.Context, userID uint) ([]models.Reservation, error)
	Cancel(ctx context.Context, id uint, reason string) (*models.Reservation, error)
}

type Notifier interface {
	Create(ctx context.Context, in notifications.NewNotification) (*models.Notification, error)
}

type ReservationThreads interface {
	OpenReservationThread(ctx context.Context, v chat.Viewer, reservationID uint) (*models.Chat, error)
}

type ReservationHandler struct {
	reservations ReservationStore
	notifier     Notifier
	threads      ReservationThreads
}

func NewReservationHandler(reservations ReservationStore, notifier Notifier, threads ReservationThreads) *ReservationHandler {
	return &ReservationHandler{reservations: reservations, notifier: notifier, threads: threads}
}

func (h *ReservationHandler) RegisterReservationRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.list)
	rg.GET("/:id", h.get)
	rg.POST("/:id/cancel", h.cancel)
	rg.POST("/:id/chat", h.openChat)
}

func (h *ReservationHandler) list(c *gin.Context) {
	reservations, err := h.reservations.ListForParticipant(c.Request.Context(), c.GetUint("user_id"))
	if err != nil {
		respondError(c, apperrors.RemoteRead("list reservations", err))
		return
	}
	if reservations == nil {
		reservations = []models.Reservation{}
	}
	c.JSON(http.StatusOK, gin.H{"data": reservations})
}

// load fetches a reservation the caller is a party to. Admins see all.
func (h *ReservationHandler) load(c *gin.Context) (*models.Reservation, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}
	r, err := h.reservations.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, apperrors.NotFound("reservation", err))
		} else {
			respondError(c, apperrors.RemoteRead("get reservation", err))
		}
		return nil, false
	}
	v := viewerOf(c)
	isCleaner := r.CleanerID != nil && *r.CleanerID == v.ID
	if r.UserID != v.ID && !isCleaner && !v.IsAdmin() {
		respondError(c, apperrors.NotFound("reservation", nil))
		return nil, false
	}
	return r, true
}

func (h *ReservationHandler) get(c *gin.Context) {
	r, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": r})
}

type cancelRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

func (h *ReservationHandler) cancel(c *gin.Context) {
	r, ok := h.load(c)
	if !ok {
		return
	}
	if r.UserID != c.GetUint("user_id") {
		respondError(c, apperrors.Forbidden("only the customer can cancel this booking"))
		return
	}
	var req cancelRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	cancelled, err := h.reservations.Cancel(c.Request.Context(), r.ID, req.Reason)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusConflict, gin.H{
				"error":   "ALREADY_CANCELLED",
				"message": "This booking is already cancelled",
			})
			return
		}
		respondError(c, apperrors.RemoteWrite("cancel reservation", err))
		return
	}
	log.Printf("🚫 Reservation %d cancelled by customer %d", r.ID, r.UserID)

	if cancelled.CleanerID != nil && h.notifier != nil {
		_, err := h.notifier.Create(c.Request.Context(), notifications.NewNotification{
			UserID:    *cancelled.CleanerID,
			Title:     "Booking cancelled",
			Message:   fmt.Sprintf("The cleaning on %s was cancelled by the customer.", cancelled.ScheduledAt.Format("Jan 2 15:04")),
			Type:      models.NotificationCancellation,
			ActionURL: fmt.Sprintf("/reservations/%d", cancelled.ID),
			Data:      map[string]interface{}{"reservation_id": cancelled.ID, "reason": req.Reason},
		})
		if err != nil {
			log.Printf("⚠️ Cancellation notice for reservation %d not sent: %v", cancelled.ID, err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Booking cancelled", "data": cancelled})
}

func (h *ReservationHandler) openChat(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	thread, err := h.threads.OpenReservationThread(c.Request.Context(), viewerOf(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": thread})
}
