// internal/models/food.go
package models

import (
	"time"
)

// PortionTable maps a food name to its named units and the grams one unit weighs.
type PortionTable map[string]map[string]float64

// RecognizedFood is one (food, unit) pair proposed by a recognizer for a photo.
type RecognizedFood struct {
	Food string `json:"food" yaml:"food"`
	Unit string `json:"unit" yaml:"unit"`
}

// NutrientProfile holds nutrient values per 100 grams of a food.
type NutrientProfile struct {
	Name     string  `json:"name,omitempty"`
	Calories float64 `json:"energy-kcal_100g"`
	Protein  float64 `json:"proteins_100g"`
	Carbs    float64 `json:"carbohydrates_100g"`
	Fat      float64 `json:"fat_100g"`
	Fiber    float64 `json:"fiber_100g"`
}

type LoggedItem struct {
	Label    string    `json:"label"`
	Food     string    `json:"food"`
	Unit     string    `json:"unit"`
	Quantity float64   `json:"quantity"`
	Grams    float64   `json:"grams"`
	Calories float64   `json:"calories"`
	Protein  float64   `json:"protein"`
	Carbs    float64   `json:"carbs"`
	Fat      float64   `json:"fat"`
	Fiber    float64   `json:"fiber"`
	LoggedAt time.Time `json:"logged_at"`
}

// Totals is the sum of the nutrient fields over a sequence of logged items.
type Totals struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
	Fiber    float64 `json:"fiber"`
}

// Add returns t plus the nutrient contribution of item.
func (t Totals) Add(item LoggedItem) Totals {
	return Totals{
		Calories: t.Calories + item.Calories,
		Protein:  t.Protein + item.Protein,
		Carbs:    t.Carbs + item.Carbs,
		Fat:      t.Fat + item.Fat,
		Fiber:    t.Fiber + item.Fiber,
	}
}

// Photo is a captured image handle. The bytes are never inspected by the tracker.
type Photo struct {
	Data       []byte    `json:"-"`
	Source     string    `json:"source"`
	CapturedAt time.Time `json:"captured_at"`
}
