package routes

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"cleaning-booking-server/apperrors"
	"cleaning-booking-server/booking"
	"cleaning-booking-server/chat"
	"cleaning-booking-server/models"
	"cleaning-booking-server/repository"
)

// respondError writes err as {"error", "message"[, "step", "fields"]}.
func respondError(c *gin.Context, err error) {
	if appErr, ok := apperrors.As(err); ok {
		body := gin.H{
			"error":   string(appErr.Kind),
			"message": appErr.Message,
		}
		if appErr.Step != "" {
			body["step"] = appErr.Step
		}
		if len(appErr.Fields) > 0 {
			body["fields"] = appErr.Fields
		}
		c.JSON(appErr.Status, body)
		return
	}

	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, booking.ErrWizardComplete):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "WIZARD_COMPLETE",
			"message": "This booking is already confirmed. Start a new one.",
		})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "NOT_FOUND", "message": "Resource not found"})
	case errors.As(err, &verrs):
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "INVALID_REQUEST",
			"message": "Invalid request data",
			"fields":  fields,
		})
	default:
		log.Printf("❌ %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "INTERNAL",
			"message": "Something went wrong",
		})
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "INVALID_REQUEST",
		"message": message,
	})
}

// bindJSON binds the body and writes a 400 on failure.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			respondError(c, err)
		} else {
			badRequest(c, "Request body is not valid JSON")
		}
		return false
	}
	return true
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func viewerOf(c *gin.Context) chat.Viewer {
	return chat.Viewer{ID: c.GetUint("user_id"), Role: models.UserRole(c.GetString("role"))}
}

func currentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get("user")
	if !ok {
		return models.User{}, false
	}
	u, ok := v.(models.User)
	return u, ok
}
