package models

import (
	"time"

	"gorm.io/datatypes"
)

type NotificationType string

const (
	NotificationSystem        NotificationType = "system"
	NotificationReminder      NotificationType = "reminder"
	NotificationLate          NotificationType = "late"
	NotificationReschedule    NotificationType = "reschedule"
	NotificationCancellation  NotificationType = "cancellation"
	NotificationPromotion     NotificationType = "promotion"
	NotificationRankPromotion NotificationType = "rank_promotion"
	NotificationOther         NotificationType = "other"
)

func (t NotificationType) IsValid() bool {
	switch t {
	case NotificationSystem, NotificationReminder, NotificationLate, NotificationReschedule,
		NotificationCancellation, NotificationPromotion, NotificationRankPromotion, NotificationOther:
		return true
	}
	return false
}

type NotificationStatus string

const (
	NotificationUnread NotificationStatus = "unread"
	NotificationRead   NotificationStatus = "read"
)

type Notification struct {
	ID        uint               `json:"id" gorm:"primaryKey"`
	UserID    uint               `json:"user_id" gorm:"not null;index"`
	Title     string             `json:"title" gorm:"not null"`
	Message   string             `json:"message" gorm:"type:text;not null"`
	Type      NotificationType   `json:"type" gorm:"type:varchar(20);not null;default:'system'"`
	Status    NotificationStatus `json:"status" gorm:"type:varchar(10);not null;default:'unread'"`
	ActionURL *string            `json:"action_url" gorm:"size:500"`
	Data      datatypes.JSON     `json:"data,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	ReadAt    *time.Time         `json:"read_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) IsUnread() bool {
	return n.Status != NotificationRead
}
