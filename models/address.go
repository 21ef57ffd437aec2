package models

import "time"

type Address struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	UserID         uint      `json:"user_id" gorm:"not null;index"`
	Label          string    `json:"label" gorm:"type:varchar(100)"`
	AddressDetails string    `json:"address_details" gorm:"type:text;not null"`
	City           string    `json:"city" gorm:"type:varchar(100)"`
	AreaSize       float64   `json:"area_size" gorm:"type:decimal(8,2)"`
	IsDefault      bool      `json:"is_default" gorm:"default:false"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Address) TableName() string {
	return "addresses"
}
