package routes

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cleaning-booking-server/apperrors"
	"cleaning-booking-server/models"
)

// AddressHandler manages saved addresses the wizard's address step picks
// from.
type AddressHandler struct {
	db *gorm.DB
}

func NewAddressHandler(db *gorm.DB) *AddressHandler {
	return &AddressHandler{db: db}
}

func (h *AddressHandler) RegisterAddressRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.list)
	rg.POST("", h.create)
	rg.PUT("/:id/default", h.setDefault)
	rg.DELETE("/:id", h.delete)
}

type addressRequest struct {
	Label          string  `json:"label" binding:"max=100"`
	AddressDetails string  `json:"address_details" binding:"required,max=500"`
	City           string  `json:"city" binding:"max=100"`
	AreaSize       float64 `json:"area_size" binding:"gte=0"`
	IsDefault      bool    `json:"is_default"`
}

func (h *AddressHandler) list(c *gin.Context) {
	var addresses []models.Address
	err := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", c.GetUint("user_id")).
		Order("is_default DESC, created_at DESC").
		Find(&addresses).Error
	if err != nil {
		respondError(c, apperrors.RemoteRead("list addresses", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": addresses})
}

func (h *AddressHandler) create(c *gin.Context) {
	userID := c.GetUint("user_id")
	var req addressRequest
	if !bindJSON(c, &req) {
		return
	}
	address := models.Address{
		UserID:         userID,
		Label:          req.Label,
		AddressDetails: req.AddressDetails,
		City:           req.City,
		AreaSize:       req.AreaSize,
		IsDefault:      req.IsDefault,
	}

	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Address{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
			return err
		}
		// The first address is always the default.
		if count == 0 {
			address.IsDefault = true
		} else if address.IsDefault {
			if err := tx.Model(&models.Address{}).Where("user_id = ?", userID).Update("is_default", false).Error; err != nil {
				return err
			}
		}
		return tx.Create(&address).Error
	})
	if err != nil {
		respondError(c, apperrors.RemoteWrite("create address", err))
		return
	}
	log.Printf("✅ Address %d saved for user %d", address.ID, userID)
	c.JSON(http.StatusCreated, gin.H{"data": address})
}

func (h *AddressHandler) setDefault(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	userID := c.GetUint("user_id")
	var address models.Address
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&address).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Address{}).Where("user_id = ?", userID).Update("is_default", false).Error; err != nil {
			return err
		}
		address.IsDefault = true
		return tx.Model(&address).Update("is_default", true).Error
	})
	if err != nil {
		h.fail(c, "set default address", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": address})
}

func (h *AddressHandler) delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", id, c.GetUint("user_id")).
		Delete(&models.Address{})
	if res.Error != nil {
		h.fail(c, "delete address", res.Error)
		return
	}
	if res.RowsAffected == 0 {
		respondError(c, apperrors.NotFound("address", nil))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AddressHandler) fail(c *gin.Context, op string, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, apperrors.NotFound("address", err))
		return
	}
	respondError(c, apperrors.RemoteWrite(op, err))
}
