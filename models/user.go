package models

import (
	"time"

	"gorm.io/gorm"
)

type UserRole string

const (
	RoleCustomer UserRole = "customer"
	RoleCleaner  UserRole = "cleaner"
	RoleAdmin    UserRole = "admin"
)

// PartnerStatus tracks a cleaner's approval by the back office. Customers
// and admins are created approved.
type PartnerStatus string

const (
	PartnerPending  PartnerStatus = "pending"
	PartnerApproved PartnerStatus = "approved"
	PartnerRejected PartnerStatus = "rejected"
)

type User struct {
	ID           uint          `json:"id" gorm:"primaryKey"`
	Name         string        `json:"name" gorm:"size:255;not null"`
	PhoneNumber  string        `json:"phone_number" gorm:"size:20;uniqueIndex;not null"`
	PasswordHash string        `json:"-" gorm:"size:255;not null"` // Hidden from JSON
	Type         UserRole      `json:"type" gorm:"type:varchar(20);not null;default:'customer';check:type IN ('customer','cleaner','admin')"`
	ProfilePhoto *string       `json:"profile_photo" gorm:"size:500"`
	RankID       *uint         `json:"rank_id"`
	Rank         *Rank         `json:"rank,omitempty" gorm:"foreignKey:RankID"`
	Status       PartnerStatus `json:"status" gorm:"type:varchar(20);not null;default:'approved'"`
	IsActive     bool          `json:"is_active" gorm:"default:true"`
	CreatedAt    time.Time     `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time     `json:"updated_at" gorm:"autoUpdateTime"`

	Addresses []Address `json:"addresses,omitempty" gorm:"foreignKey:UserID"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// BeforeCreate defaults the role and puts new cleaners into the approval queue.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.Type == "" {
		u.Type = RoleCustomer
	}
	if u.Status == "" {
		if u.Type == RoleCleaner {
			u.Status = PartnerPending
		} else {
			u.Status = PartnerApproved
		}
	}
	return nil
}

// IsValidRole checks if the user role is valid
func (u *User) IsValidRole() bool {
	switch u.Type {
	case RoleCustomer, RoleCleaner, RoleAdmin:
		return true
	default:
		return false
	}
}

func (u *User) IsCleaner() bool {
	return u.Type == RoleCleaner
}

func (u *User) IsAdmin() bool {
	return u.Type == RoleAdmin
}

func (u *User) IsCustomer() bool {
	return u.Type == RoleCustomer
}

// IsMatchable reports whether the cleaner may be offered to customers.
func (u *User) IsMatchable() bool {
	return u.IsCleaner() && u.IsActive && u.Status == PartnerApproved
}
