package domain

import (
	"fmt"
	"strings"
	"time"
)

// MealType is the daily slot a meal belongs to
type MealType string

const (
	MealMorning MealType = "MORNING"
	MealNoon    MealType = "NOON"
	MealEvening MealType = "EVENING"
)

// MealTypes lists the slots in display order
var MealTypes = []MealType{MealMorning, MealNoon, MealEvening}

// ParseMealType accepts the slot name in any case
func ParseMealType(s string) (MealType, error) {
	t := MealType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case MealMorning, MealNoon, MealEvening:
		return t, nil
	}
	return "", fmt.Errorf("unknown meal type %q", s)
}

// NutritionRecord holds nutrition facts for a single meal or for a whole day
type NutritionRecord struct {
	Calories    float64  `json:"calories"`
	Protein     float64  `json:"protein"` // grams
	Carbs       float64  `json:"carbs"`   // grams
	Fat         float64  `json:"fat"`     // grams
	FoodItems   []string `json:"foodItems"`
	HealthScore float64  `json:"healthScore"` // 0-100
	Summary     string   `json:"summary"`
}

// Meal is one recorded eating event with its photo
type Meal struct {
	NutritionRecord
	ID        string    `json:"id"`
	Type      MealType  `json:"type"`
	Image     string    `json:"image"` // data URL: data:<mime>;base64,<payload>
	Timestamp time.Time `json:"timestamp"`
}

// DailyReport is the model-written advice for a day of meals
type DailyReport struct {
	Title          string `json:"title"`
	ShortSummary   string `json:"shortSummary"`
	DetailedAdvice string `json:"detailedAdvice"` // markdown
}

// ChatRole tags the author of a chat turn
type ChatRole string

const (
	RoleUser  ChatRole = "user"
	RoleModel ChatRole = "model"
)

// ChatMessage is a transcript entry as shown to the user
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      ChatRole  `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatTurn is the wire shape of a prior turn sent to the model
type ChatTurn struct {
	Role ChatRole
	Text string
}
