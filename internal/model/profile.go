package model

import "time"

// Gender selects the Mifflin-St Jeor constant.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Profile holds the body metrics a user's calorie goal is derived from.
//
// When UseCustomGoal is false, DailyKcalGoal always equals the value
// computed from the other fields when the profile was last saved.
type Profile struct {
	UserID        string    `json:"user_id"`
	Weight        float64   `json:"weight"`
	Height        float64   `json:"height"`
	Age           int       `json:"age"`
	Gender        Gender    `json:"gender"`
	ActivityLevel float64   `json:"activity_level"`
	DailyKcalGoal int       `json:"daily_kcal_goal"`
	UseCustomGoal bool      `json:"use_custom_goal"`
	UpdatedAt     time.Time `json:"updated_at"`
}
