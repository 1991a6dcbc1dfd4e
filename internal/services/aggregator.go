package services

import (
	"math"
	"strings"

	"github.com/mealsnap/food-diary/internal/domain"
)

// TotalsSummary is the fixed summary carried by daily totals.
const TotalsSummary = "today's overview"

// Aggregate folds the meals of a day into a single nutrition record.
//
// Macros are summed exactly. Food items are merged as a set union that keeps
// the first spelling and first-seen order; names are compared trimmed and
// case-folded. The health score is the rounded mean of the meal scores, so
// the result depends only on the set of meals, never on the order in which
// they were added. The input slice is not modified.
func Aggregate(meals []domain.Meal) domain.NutritionRecord {
	totals := domain.NutritionRecord{
		FoodItems: []string{},
		Summary:   TotalsSummary,
	}
	if len(meals) == 0 {
		return totals
	}

	seen := make(map[string]struct{})
	var scoreSum float64
	for _, m := range meals {
		totals.Calories += m.Calories
		totals.Protein += m.Protein
		totals.Carbs += m.Carbs
		totals.Fat += m.Fat
		scoreSum += m.HealthScore

		for _, item := range m.FoodItems {
			name := strings.TrimSpace(item)
			if name == "" {
				continue
			}
			key := strings.ToLower(name)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			totals.FoodItems = append(totals.FoodItems, name)
		}
	}

	totals.HealthScore = clampScore(math.Round(scoreSum / float64(len(meals))))
	return totals
}

func clampScore(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
