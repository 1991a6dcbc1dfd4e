package keyboards

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mealsnap/food-diary/internal/domain"
)

// Callback data
const (
	CallbackMainMenu     = "main_menu"
	CallbackReport       = "report"
	CallbackTotals       = "totals"
	CallbackMeals        = "meals"
	CallbackChat         = "chat"
	CallbackHelp         = "help"
	CallbackSlotPrefix   = "slot:"
	CallbackDeletePrefix = "delete_meal:"
)

// SlotLabel is the button caption of a meal slot
func SlotLabel(t domain.MealType) string {
	switch t {
	case domain.MealMorning:
		return "🌅 Breakfast"
	case domain.MealNoon:
		return "☀️ Lunch"
	case domain.MealEvening:
		return "🌙 Dinner"
	}
	return string(t)
}

// MainMenu creates the main menu keyboard
func MainMenu() tgbotapi.InlineKeyboardMarkup {
	slots := make([]tgbotapi.InlineKeyboardButton, 0, len(domain.MealTypes))
	for _, t := range domain.MealTypes {
		slots = append(slots, tgbotapi.NewInlineKeyboardButtonData(SlotLabel(t), CallbackSlotPrefix+string(t)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		slots,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Totals", CallbackTotals),
			tgbotapi.NewInlineKeyboardButtonData("🍽️ Meals", CallbackMeals),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📝 Daily report", CallbackReport),
			tgbotapi.NewInlineKeyboardButtonData("💬 Ask the advisor", CallbackChat),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❓ Help", CallbackHelp),
		),
	)
}

// BackToMenu creates a single-button keyboard leading to the main menu
func BackToMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀️ Main menu", CallbackMainMenu),
		),
	)
}

// MealList creates one delete button per meal
func MealList(meals []domain.Meal) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(meals)+1)
	for i, m := range meals {
		label := fmt.Sprintf("🗑️ %d. %s, %.0f kcal", i+1, SlotLabel(m.Type), m.Calories)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, CallbackDeletePrefix+m.ID),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("◀️ Main menu", CallbackMainMenu),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
