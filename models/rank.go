package models

import "time"

type RankTier string

const (
	TierRegular RankTier = "regular"
	TierLuxury  RankTier = "luxury"
)

// Rank is a named cleaner tier (Plum, Forsythia, Rose...). OrderIndex
// controls the order rank groups are shown in.
type Rank struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Name       string    `json:"name" gorm:"type:varchar(100);not null;unique"`
	Tier       RankTier  `json:"tier" gorm:"type:varchar(20);not null;default:'regular'"`
	OrderIndex int       `json:"order_index" gorm:"default:0"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Rank) TableName() string {
	return "ranks"
}
