package booking

import (
	"math"

	"cleaning-booking-server/models"
)

const (
	HourlyRate       = 15000.0
	MinimumHours     = 2.0
	IncludedArea     = 20.0 // pyeong covered by the base rate
	AreaRate         = 500.0
	LuxuryMultiplier = 1.3
)

var categorySurcharge = map[models.ServiceCategory]float64{
	models.CategoryGeneral:  0,
	models.CategoryKitchen:  20000,
	models.CategoryBathroom: 15000,
	models.CategoryFridge:   10000,
}

// CalculatePrice is the regular-tier price.
func CalculatePrice(durationHours, areaSize float64, category models.ServiceCategory, discounts []Discount) float64 {
	return CalculateTierPrice(models.TierRegular, durationHours, areaSize, category, discounts)
}

// CalculateTierPrice prices a booking: hourly base for at least
// MinimumHours, plus category and area surcharges, scaled for luxury
// cleaners, then percent discounts followed by fixed ones. The result is
// rounded to the won and never negative.
func CalculateTierPrice(tier models.RankTier, durationHours, areaSize float64, category models.ServiceCategory, discounts []Discount) float64 {
	hours := math.Max(durationHours, MinimumHours)
	price := hours*HourlyRate + categorySurcharge[category]
	if areaSize > IncludedArea {
		price += (areaSize - IncludedArea) * AreaRate
	}
	if tier == models.TierLuxury {
		price *= LuxuryMultiplier
	}

	for _, d := range discounts {
		if d.Kind == DiscountPercent && d.Value > 0 {
			price -= price * math.Min(d.Value, 100) / 100
		}
	}
	for _, d := range discounts {
		if d.Kind == DiscountFixed && d.Value > 0 {
			price -= d.Value
		}
	}
	return math.Max(0, math.Round(price))
}

func draftPrice(d Draft) float64 {
	if d.ServiceCategory == "" {
		return 0
	}
	return CalculateTierPrice(d.RankTier, d.DurationHours, d.AreaSize, d.ServiceCategory, d.Discounts)
}
