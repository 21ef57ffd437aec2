package models

import (
	"time"
)

// Chat is a conversation between a customer and a cleaner about a
// reservation, or between a customer/cleaner and admin support. Support
// threads have IsAdminChat set and no reservation.
type Chat struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	CustomerID    *uint     `json:"customer_id" gorm:"index"`
	CleanerID     *uint     `json:"cleaner_id" gorm:"index"`
	ReservationID *uint     `json:"reservation_id" gorm:"index"`
	IsAdminChat   bool      `json:"is_admin_chat" gorm:"default:false;index"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasParticipant reports whether userID is the customer or the cleaner.
func (c *Chat) HasParticipant(userID uint) bool {
	return (c.CustomerID != nil && *c.CustomerID == userID) ||
		(c.CleanerID != nil && *c.CleanerID == userID)
}

// OtherParticipant returns the participant that is not userID, or nil when
// there is none (a support thread seen by its only member).
func (c *Chat) OtherParticipant(userID uint) *uint {
	if c.CustomerID != nil && *c.CustomerID != userID {
		return c.CustomerID
	}
	if c.CleanerID != nil && *c.CleanerID != userID {
		return c.CleanerID
	}
	return nil
}

const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
)

// ChatMessage is append-only; only IsRead/ReadAt change after insert.
type ChatMessage struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	ChatID        uint       `json:"chat_id" gorm:"not null;index"`
	SenderID      uint       `json:"sender_id" gorm:"not null"`
	Message       string     `json:"message" gorm:"type:text;not null"`
	MessageType   string     `json:"message_type" gorm:"type:varchar(10);default:text"`
	AttachmentURL string     `json:"attachment_url,omitempty" gorm:"size:500"`
	ClientNonce   string     `json:"client_nonce,omitempty" gorm:"size:36;index"`
	IsRead        bool       `json:"is_read" gorm:"default:false"`
	ReadAt        *time.Time `json:"read_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

// TableName specifies the table name for Chat
func (Chat) TableName() string {
	return "chats"
}

// TableName specifies the table name for ChatMessage
func (ChatMessage) TableName() string {
	return "chat_messages"
}
