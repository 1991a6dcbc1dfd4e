package utils

import (
	"time"

	"github.com/mealsnap/food-diary/internal/domain"
)

// Meal windows in minutes since midnight. Anything outside breakfast and
// lunch, including late-night snacks, counts as dinner.
const (
	breakfastStart = 4 * 60
	lunchStart     = 11 * 60
	dinnerStart    = 16 * 60
)

// TimeToMinutes converts a time to minutes since midnight
func TimeToMinutes(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// MealTypeAt guesses the meal slot from the time a photo was taken.
func MealTypeAt(t time.Time) domain.MealType {
	switch m := TimeToMinutes(t); {
	case m >= breakfastStart && m < lunchStart:
		return domain.MealMorning
	case m >= lunchStart && m < dinnerStart:
		return domain.MealNoon
	default:
		return domain.MealEvening
	}
}
