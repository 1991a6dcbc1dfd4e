package menus

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mealsnap/food-diary/internal/bot/keyboards"
	"github.com/mealsnap/food-diary/internal/domain"
	"github.com/mealsnap/food-diary/internal/session"
)

// Sender is the part of the Telegram API the menus need
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// SendMainMenu sends the main menu to a chat
func SendMainMenu(api Sender, chatID int64) error {
	text := `🥗 *Food Diary* — photograph your meals, I'll do the counting

📷 Pick a meal below and send a photo, and I will:
• Identify the food on the plate
• Estimate calories, protein, carbs and fat
• Rate how healthy the meal is

📝 At the end of the day ask for a daily report, or chat with the nutrition advisor any time.

⚠️ *Important:* estimates come from an AI model; consult a professional for medical advice.`

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = keyboards.MainMenu()
	_, err := api.Send(msg)
	return err
}

// SendMarkdown sends text as Markdown and falls back to plain text when
// Telegram rejects the markup.
func SendMarkdown(api Sender, chatID int64, text string, markup interface{}) error {
	text = strings.ToValidUTF8(text, "")
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = markup
	if _, err := api.Send(msg); err != nil {
		msg.ParseMode = ""
		_, err = api.Send(msg)
		return err
	}
	return nil
}

// FormatMeal renders the analysis of a single meal
func FormatMeal(meal domain.Meal) string {
	foods := "—"
	if len(meal.FoodItems) > 0 {
		foods = strings.Join(meal.FoodItems, ", ")
	}
	return fmt.Sprintf("%s *analysed*\n\n"+
		"🍽️ *Food:* %s\n"+
		"🔥 *Calories:* %.0f kcal\n"+
		"🥩 *Protein:* %.1f g\n"+
		"🍞 *Carbs:* %.1f g\n"+
		"🧈 *Fat:* %.1f g\n"+
		"💚 *Health score:* %.0f/100\n\n"+
		"%s",
		keyboards.SlotLabel(meal.Type),
		escapeMarkdown(foods),
		meal.Calories, meal.Protein, meal.Carbs, meal.Fat,
		meal.HealthScore,
		escapeMarkdown(meal.Summary),
	)
}

// FormatTotals renders the totals of the day
func FormatTotals(totals domain.NutritionRecord, meals int) string {
	if meals == 0 {
		return "No meals recorded yet. Pick a meal in the menu and send a photo."
	}
	foods := "—"
	if len(totals.FoodItems) > 0 {
		foods = strings.Join(totals.FoodItems, ", ")
	}
	return fmt.Sprintf("📊 *%s* (%d meals)\n\n"+
		"🔥 *Calories:* %.0f kcal\n"+
		"🥩 *Protein:* %.1f g\n"+
		"🍞 *Carbs:* %.1f g\n"+
		"🧈 *Fat:* %.1f g\n"+
		"💚 *Average health score:* %.0f/100\n"+
		"🍽️ *Foods:* %s",
		escapeMarkdown(totals.Summary), meals,
		totals.Calories, totals.Protein, totals.Carbs, totals.Fat,
		totals.HealthScore,
		escapeMarkdown(foods),
	)
}

// FormatReport renders a daily report
func FormatReport(report domain.DailyReport) string {
	return fmt.Sprintf("📝 *%s*\n\n_%s_\n\n%s",
		escapeMarkdown(report.Title),
		escapeMarkdown(report.ShortSummary),
		report.DetailedAdvice,
	)
}

// FormatMeals renders the meal list grouped by slot
func FormatMeals(state session.State) string {
	if len(state.Meals) == 0 {
		return "No meals recorded yet."
	}
	var sb strings.Builder
	sb.WriteString("🍽️ *Today's meals*\n")
	for _, t := range domain.MealTypes {
		var lines []string
		for _, m := range state.Meals {
			if m.Type == t {
				lines = append(lines, fmt.Sprintf("• %s — %.0f kcal", escapeMarkdown(strings.Join(m.FoodItems, ", ")), m.Calories))
			}
		}
		if len(lines) == 0 {
			continue
		}
		sb.WriteString("\n*" + keyboards.SlotLabel(t) + "*\n")
		sb.WriteString(strings.Join(lines, "\n"))
		sb.WriteString("\n")
	}
	if state.Report.NeedsRegeneration {
		sb.WriteString("\n⚠️ Meals changed since the last report; request a new one.")
	}
	return sb.String()
}

func escapeMarkdown(s string) string {
	r := strings.NewReplacer("_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]", "`", "\\`")
	return r.Replace(s)
}
