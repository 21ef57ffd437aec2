package routes

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cleaning-booking-server/models"
	"cleaning-booking-server/repository"
	"cleaning-booking-server/services"
)

type TokenIssuer interface {
	GenerateTokenPair(user *models.User, device services.Device) (*services.TokenPair, error)
	Refresh(refreshToken string) (*services.TokenPair, error)
	Revoke(refreshToken string) error
	RevokeAll(userID uint) error
}

type AuthHandler struct {
	users  repository.UserRepository
	tokens TokenIssuer
}

func NewAuthHandler(users repository.UserRepository, tokens TokenIssuer) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens}
}

// RegisterAuthRoutes mounts sign-up and login on public and the session
// endpoints on protected.
func (h *AuthHandler) RegisterAuthRoutes(public, protected *gin.RouterGroup) {
	public.POST("/register", h.register)
	public.POST("/login", h.login)
	public.POST("/refresh", h.refresh)
	protected.POST("/auth/logout", h.logout)
	protected.POST("/auth/logout-all", h.logoutAll)
	protected.GET("/auth/me", h.me)
}

type registerRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=100"`
	PhoneNumber string `json:"phone_number" binding:"required,min=7,max=20"`
	Password    string `json:"password" binding:"required,min=8,max=128"`
	Role        string `json:"role" binding:"omitempty,oneof=customer cleaner"`
}

func deviceOf(c *gin.Context) services.Device {
	return services.Device{
		ID:        c.GetHeader("X-Device-ID"),
		UserAgent: c.GetHeader("User-Agent"),
		IP:        c.ClientIP(),
	}
}

func (h *AuthHandler) register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}
	phone := strings.TrimSpace(req.PhoneNumber)

	if _, err := h.users.GetByPhone(c.Request.Context(), phone); err == nil {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "User already exists",
			"message": "An account with this phone number already exists",
		})
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		respondError(c, err)
		return
	}

	hash, err := services.HashPassword(req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	// Cleaners wait for admin approval before they can be matched.
	role, status := models.RoleCustomer, models.PartnerApproved
	if req.Role == string(models.RoleCleaner) {
		role, status = models.RoleCleaner, models.PartnerPending
	}
	user := &models.User{
		Name:         strings.TrimSpace(req.Name),
		PhoneNumber:  phone,
		PasswordHash: hash,
		Type:         role,
		Status:       status,
		IsActive:     true,
	}
	if err := h.users.Create(c.Request.Context(), user); err != nil {
		log.Printf("❌ User creation failed: %v", err)
		respondError(c, err)
		return
	}

	pair, err := h.tokens.GenerateTokenPair(user, deviceOf(c))
	if err != nil {
		respondError(c, err)
		return
	}
	log.Printf("✅ User %d registered as %s", user.ID, user.Type)
	c.JSON(http.StatusCreated, gin.H{
		"message": "Account created successfully",
		"data":    gin.H{"user": user, "tokens": pair},
	})
}

type loginRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required"`
	Password    string `json:"password" binding:"required"`
}

func (h *AuthHandler) login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.users.GetByPhone(c.Request.Context(), strings.TrimSpace(req.PhoneNumber))
	if err != nil || !services.CheckPasswordHash(req.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "Invalid credentials",
			"message": "Phone number or password is incorrect",
		})
		return
	}
	if !user.IsActive {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "User inactive",
			"message": "User account is deactivated",
		})
		return
	}

	pair, err := h.tokens.GenerateTokenPair(user, deviceOf(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"data":    gin.H{"user": user, "tokens": pair},
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (h *AuthHandler) refresh(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}
	pair, err := h.tokens.Refresh(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "Invalid refresh token",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": pair})
}

func (h *AuthHandler) logout(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.tokens.Revoke(req.RefreshToken); err != nil {
		log.Printf("⚠️ Logout for user %d: %v", c.GetUint("user_id"), err)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// logoutAll revokes every refresh token of the caller.
func (h *AuthHandler) logoutAll(c *gin.Context) {
	userID := c.GetUint("user_id")
	if err := h.tokens.RevokeAll(userID); err != nil {
		respondError(c, err)
		return
	}
	log.Printf("✅ All sessions revoked for user %d", userID)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out from all devices"})
}

func (h *AuthHandler) me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": user})
}
