// internal/tracker/scale.go
package tracker

import (
	"mcp-food-log/internal/models"
)

// Scale returns the nutrient contribution of grams of a food whose values
// are given per 100g. Values are not rounded.
func Scale(profile models.NutrientProfile, grams float64) models.Totals {
	factor := grams / 100
	return models.Totals{
		Calories: profile.Calories * factor,
		Protein:  profile.Protein * factor,
		Carbs:    profile.Carbs * factor,
		Fat:      profile.Fat * factor,
		Fiber:    profile.Fiber * factor,
	}
}

// Aggregate folds items, in order, into their nutrient totals.
func Aggregate(items []models.LoggedItem) models.Totals {
	var totals models.Totals
	for _, item := range items {
		totals = totals.Add(item)
	}
	return totals
}
