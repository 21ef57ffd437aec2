package models

import (
	"time"

	"gorm.io/gorm"
)

const RefreshTokenTTL = 30 * 24 * time.Hour

// RefreshToken is an opaque long-lived token bound to one device.
type RefreshToken struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	Token     string     `json:"-" gorm:"size:255;uniqueIndex;not null"`
	UserID    uint       `json:"user_id" gorm:"not null;index"`
	ExpiresAt time.Time  `json:"expires_at" gorm:"not null;index"`
	IsRevoked bool       `json:"is_revoked" gorm:"default:false;index"`
	LastUsed  *time.Time `json:"last_used"`
	CreatedAt time.Time  `json:"created_at" gorm:"autoCreateTime"`

	DeviceID  string `json:"device_id" gorm:"size:255"`
	UserAgent string `json:"user_agent" gorm:"size:500"`
	IPAddress string `json:"ip_address" gorm:"size:45"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

// Usable reports whether the token can still mint access tokens at now.
func (rt *RefreshToken) Usable(now time.Time) bool {
	return !rt.IsRevoked && now.Before(rt.ExpiresAt)
}

func (rt *RefreshToken) BeforeCreate(tx *gorm.DB) error {
	if rt.ExpiresAt.IsZero() {
		rt.ExpiresAt = time.Now().Add(RefreshTokenTTL)
	}
	return nil
}
