package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cleaning-booking-server/booking"
)

// BookingHandler exposes the signed-in customer's booking wizard.
type BookingHandler struct {
	registry *booking.Registry
}

func NewBookingHandler(registry *booking.Registry) *BookingHandler {
	return &BookingHandler{registry: registry}
}

func (h *BookingHandler) RegisterBookingRoutes(rg *gin.RouterGroup) {
	rg.POST("/start", h.start)
	rg.GET("", h.state)
	rg.PATCH("/draft", h.patchDraft)
	rg.POST("/next", h.next)
	rg.POST("/back", h.back)
	rg.POST("/goto", h.goTo)
	rg.PUT("/resident", h.setResident)
	rg.PUT("/resident/same-as-booker", h.setSameAsBooker)
	rg.POST("/confirm", h.confirm)
	rg.DELETE("", h.abandon)
}

func bookerOf(c *gin.Context) booking.Booker {
	user, _ := currentUser(c)
	return booking.Booker{ID: c.GetUint("user_id"), Name: user.Name, Phone: user.PhoneNumber}
}

// wizardOf returns the caller's open wizard or writes a 404.
func wizardOf(c *gin.Context, registry *booking.Registry) (*booking.Wizard, bool) {
	s, ok := registry.Get(c.GetUint("user_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "NO_BOOKING",
			"message": "No booking in progress. Start a new one.",
		})
		return nil, false
	}
	return s.Wizard, true
}

func (h *BookingHandler) start(c *gin.Context) {
	s := h.registry.Start(bookerOf(c))
	c.JSON(http.StatusCreated, gin.H{
		"session_id": s.ID,
		"data":       s.Wizard.State(),
	})
}

func (h *BookingHandler) state(c *gin.Context) {
	w, ok := wizardOf(c, h.registry)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": w.State()})
}

type patchRequest struct {
	Patch booking.Patch `json:"patch"`
}

func (h *BookingHandler) patchDraft(c *gin.Context) {
	w, ok := wizardOf(c, h.registry)
	if !ok {
		return
	}
	var req patchRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := w.Store().SetDraft(req.Patch); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": w.State()})
}

func (h *BookingHandler) next(c *gin.Context) {
	w, ok := wizardOf(c, h.registry)
	if !ok {
		return
	}
	var req patchRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	state, err := w.GoNext(c.Request.Context(), req.Patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": state})
}

func (h *BookingHandler) back(c *gin.Context) {
	w, ok := wizardOf(c, h.registry)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": w.GoBack()})
}

type goToRequest struct {
	Step string `json:"step" binding:"required"`
}

func (h *BookingHandler) goTo(c *gin.Context) {
	w, ok := wizardOf(c, h.registry)
	if !ok {
		return
	}
	var req goToRequest
	if !bindJSON(c, &req) {
		return
	}
	step, err := booking.ParseStep(req.Step)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	state, err := w.GoTo(step)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": state})
}

type toggleRequest struct {
	Value *bool `json:"value" binding:"required"`
}

func (h *BookingHandler) setResident(c *gin.Context) {
	w, ok := wizardOf(c, h.registry)
	if !ok {
		return
	}
	var req toggleRequest
	if !bindJSON(c, &req) {
		return
	}
	w.Store().SetResident(*req.Value)
	c.JSON(http.StatusOK, gin.H{"data": w.State()})
}

func (h *BookingHandler) setSameAsBooker(c *gin.Context) {
	w, ok := wizardOf(c, h.registry)
	if !ok {
		return
	}
	var req toggleRequest
	if !bindJSON(c, &req) {
		return
	}
	w.Store().SetSameAsBooker(*req.Value, w.Booker())
	c.JSON(http.StatusOK, gin.H{"data": w.State()})
}

func (h *BookingHandler) confirm(c *gin.Context) {
	w, ok := wizardOf(c, h.registry)
	if !ok {
		return
	}
	state, err := w.Confirm(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Booking confirmed",
		"data":    state,
	})
}

func (h *BookingHandler) abandon(c *gin.Context) {
	if !h.registry.Abandon(c.GetUint("user_id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "NO_BOOKING", "message": "No booking in progress"})
		return
	}
	c.Status(http.StatusNoContent)
}
