package database

import (
	"log"

	"gorm.io/gorm"

	"cleaning-booking-server/models"
)

// DefaultRanks are the cleaner ranks every deployment starts with.
var DefaultRanks = []models.Rank{
	{Name: "Plum", Tier: models.TierRegular, OrderIndex: 1},
	{Name: "Forsythia", Tier: models.TierRegular, OrderIndex: 2},
	{Name: "Rose", Tier: models.TierLuxury, OrderIndex: 3},
}

// SeedRanks inserts missing default ranks and leaves existing ones alone.
func SeedRanks(db *gorm.DB) error {
	for _, r := range DefaultRanks {
		rank := r
		res := db.Where(models.Rank{Name: rank.Name}).FirstOrCreate(&rank)
		if res.Error != nil {
			log.Printf("❌ Failed to seed rank %s: %v", rank.Name, res.Error)
			return res.Error
		}
		if res.RowsAffected > 0 {
			log.Printf("✅ Seeded rank %s (%s)", rank.Name, rank.Tier)
		}
	}
	return nil
}
