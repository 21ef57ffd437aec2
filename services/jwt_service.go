package services

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"cleaning-booking-server/models"
	"cleaning-booking-server/types"
)

const issuer = "cleaning-booking-server"

var (
	ErrInvalidToken        = errors.New("token is invalid or expired")
	ErrRefreshTokenRevoked = errors.New("refresh token is invalid or expired")
)

// TokenPair is returned on login, registration and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Device identifies where a refresh token was issued.
type Device struct {
	ID        string
	UserAgent string
	IP        string
}

// JWTService signs access tokens and keeps refresh tokens in the database.
type JWTService struct {
	db     *gorm.DB
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

func NewJWTService(db *gorm.DB, secret string, expiryHours int) *JWTService {
	return &JWTService{
		db:     db,
		secret: []byte(secret),
		expiry: time.Duration(expiryHours) * time.Hour,
		now:    time.Now,
	}
}

func (js *JWTService) GenerateTokenPair(user *models.User, device Device) (*TokenPair, error) {
	accessToken, err := js.GenerateAccessToken(user.ID, user.Type)
	if err != nil {
		return nil, err
	}
	refreshToken, err := js.generateRefreshToken(user.ID, device)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(js.expiry.Seconds()),
		TokenType:    "Bearer",
	}, nil
}

func (js *JWTService) GenerateAccessToken(userID uint, role models.UserRole) (string, error) {
	now := js.now()
	claims := &types.Claims{
		UserID: userID,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(js.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   strconv.FormatUint(uint64(userID), 10),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(js.secret)
}

// ParseAccessToken verifies signature, method and expiry.
func (js *JWTService) ParseAccessToken(tokenString string) (*types.Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &types.Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return js.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(js.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*types.Claims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (js *JWTService) generateRefreshToken(userID uint, device Device) (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	tokenString := hex.EncodeToString(tokenBytes)

	rt := &models.RefreshToken{
		Token:     tokenString,
		UserID:    userID,
		ExpiresAt: js.now().Add(models.RefreshTokenTTL),
		DeviceID:  device.ID,
		UserAgent: device.UserAgent,
		IPAddress: device.IP,
	}
	if err := js.db.Create(rt).Error; err != nil {
		return "", err
	}
	log.Printf("✅ Refresh token issued for user %d", userID)
	return tokenString, nil
}

// Refresh mints a new access token for a usable refresh token. The
// refresh token itself is kept.
func (js *JWTService) Refresh(refreshToken string) (*TokenPair, error) {
	var rt models.RefreshToken
	if err := js.db.Where("token = ?", refreshToken).First(&rt).Error; err != nil {
		return nil, ErrRefreshTokenRevoked
	}
	if !rt.Usable(js.now()) {
		return nil, ErrRefreshTokenRevoked
	}
	var user models.User
	if err := js.db.First(&user, rt.UserID).Error; err != nil || !user.IsActive {
		return nil, ErrRefreshTokenRevoked
	}

	accessToken, err := js.GenerateAccessToken(user.ID, user.Type)
	if err != nil {
		return nil, err
	}
	now := js.now()
	js.db.Model(&rt).Update("last_used", &now)

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(js.expiry.Seconds()),
		TokenType:    "Bearer",
	}, nil
}

func (js *JWTService) Revoke(refreshToken string) error {
	res := js.db.Model(&models.RefreshToken{}).Where("token = ?", refreshToken).Update("is_revoked", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRefreshTokenRevoked
	}
	return nil
}

func (js *JWTService) RevokeAll(userID uint) error {
	if err := js.db.Model(&models.RefreshToken{}).
		Where("user_id = ? AND is_revoked = ?", userID, false).
		Update("is_revoked", true).Error; err != nil {
		return err
	}
	log.Printf("✅ All refresh tokens revoked for user %d", userID)
	return nil
}

// CleanupExpiredTokens deletes refresh tokens past their expiry.
func (js *JWTService) CleanupExpiredTokens() (int64, error) {
	res := js.db.Where("expires_at < ?", js.now()).Delete(&models.RefreshToken{})
	return res.RowsAffected, res.Error
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
