package handlers

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mealsnap/food-diary/internal/bot/keyboards"
	"github.com/mealsnap/food-diary/internal/bot/menus"
	"github.com/mealsnap/food-diary/internal/bot/state"
	"github.com/mealsnap/food-diary/internal/logger"
)

const helpText = `Available commands:
/start - Show the main menu
/help - Show this message
/meals - List today's meals
/totals - Show today's totals
/report - Generate the daily report
/chat - Talk to the nutrition advisor
/reset - Start a new day

How to log a meal:
1. Pick Breakfast, Lunch or Dinner in the menu
2. Send a photo of the plate
You can also send a photo with the caption "breakfast", "lunch" or "dinner".
Without either, the meal is guessed from the time of day.`

// CommandHandler handles bot commands
type CommandHandler struct {
	api          BotAPI
	deps         Dependencies
	stateManager state.StateManager
	views        *viewSender
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(api BotAPI, deps Dependencies, stateManager state.StateManager) *CommandHandler {
	return &CommandHandler{
		api:          api,
		deps:         deps,
		stateManager: stateManager,
		views:        &viewSender{api: api, sessions: deps.Sessions},
	}
}

// Handle processes a command message
func (h *CommandHandler) Handle(ctx context.Context, message *tgbotapi.Message) error {
	userID := message.From.ID
	chatID := message.Chat.ID
	logger.Info("Handling command", "command", message.Command(), "user_id", userID)

	switch message.Command() {
	case "start":
		h.resetUser(userID)
		return menus.SendMainMenu(h.api, chatID)
	case "help":
		return menus.SendMarkdown(h.api, chatID, helpText, keyboards.BackToMenu())
	case "meals":
		return h.views.sendMeals(chatID)
	case "totals":
		return h.views.sendTotals(chatID)
	case "report":
		return h.views.sendReport(ctx, chatID)
	case "chat":
		h.stateManager.SetUserState(userID, state.Chatting)
		return menus.SendMarkdown(h.api, chatID, chatIntro, keyboards.BackToMenu())
	case "reset":
		h.deps.Sessions.Delete(sessionID(chatID))
		h.resetUser(userID)
		return menus.SendMarkdown(h.api, chatID, "🧹 Diary cleared. A fresh day starts now.", keyboards.MainMenu())
	default:
		return menus.SendMarkdown(h.api, chatID, "Unknown command. Use /help to see the available commands.", nil)
	}
}

func (h *CommandHandler) resetUser(userID int64) {
	h.stateManager.SetUserState(userID, state.None)
	h.stateManager.ClearTempData(userID)
}
