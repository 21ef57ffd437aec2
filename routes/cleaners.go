package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cleaning-booking-server/booking"
	"cleaning-booking-server/matching"
)

// CleanerHandler serves the cleaner-selection step of the wizard.
type CleanerHandler struct {
	registry *booking.Registry
	matcher  *matching.Service
}

func NewCleanerHandler(registry *booking.Registry, matcher *matching.Service) *CleanerHandler {
	return &CleanerHandler{registry: registry, matcher: matcher}
}

func (h *CleanerHandler) RegisterCleanerRoutes(bookingGroup, protected *gin.RouterGroup) {
	bookingGroup.GET("/cleaners", h.candidates)
	bookingGroup.POST("/cleaners/:id/select", h.selectCleaner)
	bookingGroup.POST("/cleaners/skip", h.skip)

	protected.GET("/cleaners/:id", h.detail)
}

func (h *CleanerHandler) candidates(c *gin.Context) {
	w, ok := wizardOf(c, h.registry)
	if !ok {
		return
	}
	result, err := h.matcher.Candidates(c.Request.Context(), w.Store().Snapshot())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (h *CleanerHandler) detail(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	cleaner, err := h.matcher.Detail(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": cleaner})
}

func (h *CleanerHandler) selectCleaner(c *gin.Context) {
	w, ok := wizardOf(c, h.registry)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	state, err := h.matcher.Select(c.Request.Context(), w, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": state})
}

func (h *CleanerHandler) skip(c *gin.Context) {
	w, ok := wizardOf(c, h.registry)
	if !ok {
		return
	}
	state, err := h.matcher.Skip(c.Request.Context(), w)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": state})
}
