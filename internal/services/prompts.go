package services

import (
	"fmt"
	"strings"

	"github.com/mealsnap/food-diary/internal/domain"
)

func analyzeImagePrompt(locale string) string {
	return fmt.Sprintf(`You are a professional nutritionist. Analyse the meal in this photo.

TASK:
1. Identify all visible food items
2. Estimate the portion size of each item
3. Compute the total calories (kcal), protein, carbohydrates and fat (grams) for everything on the photo
4. Give the meal a health score from 0 (very unhealthy) to 100 (very healthy)
5. Write a short summary of the meal in one or two sentences

REQUIREMENTS:
- Write food names and the summary in %s
- Use plain numbers without units for all nutrition values
- If the photo contains no food, return zero values, an empty foodItems list and say so in the summary`, locale)
}

func dailyReportPrompt(locale string, totals domain.NutritionRecord) string {
	foods := "none recorded"
	if len(totals.FoodItems) > 0 {
		foods = strings.Join(totals.FoodItems, ", ")
	}
	return fmt.Sprintf(`You are a professional nutritionist reviewing a client's food diary for today.

TODAY'S TOTALS:
- Calories: %.0f kcal
- Protein: %.1f g
- Carbohydrates: %.1f g
- Fat: %.1f g
- Foods eaten: %s
- Average health score: %.0f/100

Write a daily report with:
1. title: a concise title for the day
2. shortSummary: a one or two sentence summary
3. detailedAdvice: detailed advice in markdown covering nutritional balance, possible deficiencies and concrete suggestions for tomorrow

Write everything in %s.`,
		totals.Calories, totals.Protein, totals.Carbs, totals.Fat, foods, totals.HealthScore, locale)
}

func chatPersona(locale string) string {
	return fmt.Sprintf(`You are a professional and friendly nutrition advisor. Answer questions about food, diets and healthy eating clearly and practically. Keep answers concise, use markdown where it helps readability, and recommend seeing a doctor for medical conditions. Always answer in %s.`, locale)
}
