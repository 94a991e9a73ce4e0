package model

import "time"

// MealType is the slot of the day a meal entry belongs to.
type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealSnacks    MealType = "snacks"
)

// MealTypes lists every slot in display order.
var MealTypes = []MealType{MealBreakfast, MealLunch, MealDinner, MealSnacks}

// Valid reports whether t is one of the known meal slots.
func (t MealType) Valid() bool {
	for _, mt := range MealTypes {
		if t == mt {
			return true
		}
	}
	return false
}

// DateLayout is the wire and storage format of a diary day.
const DateLayout = "2006-01-02"

// MealEntry is one logged food item. Nutrient values are for the logged
// serving, not per 100 g.
//
// JSON uses snake_case keys because that is what diary clients send and expect.
type MealEntry struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Date        string    `json:"date"`
	MealType    MealType  `json:"meal_type"`
	Name        string    `json:"name"`
	Brand       string    `json:"brand,omitempty"`
	ServingSize float64   `json:"serving_size"`
	Calories    float64   `json:"calories"`
	Proteins    float64   `json:"proteins"`
	Carbs       float64   `json:"carbs"`
	Fats        float64   `json:"fats"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// DailySummary aggregates one day of a user's diary against their goal.
type DailySummary struct {
	Date      string               `json:"date"`
	Goal      int                  `json:"goal"`
	Calories  float64              `json:"calories"`
	Proteins  float64              `json:"proteins"`
	Carbs     float64              `json:"carbs"`
	Fats      float64              `json:"fats"`
	Remaining float64              `json:"remaining"`
	ByMeal    map[MealType]float64 `json:"byMeal"`
	Entries   int                  `json:"entries"`
}
