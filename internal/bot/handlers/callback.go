package handlers

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mealsnap/food-diary/internal/bot/keyboards"
	"github.com/mealsnap/food-diary/internal/bot/menus"
	"github.com/mealsnap/food-diary/internal/bot/state"
	"github.com/mealsnap/food-diary/internal/domain"
	"github.com/mealsnap/food-diary/internal/logger"
	"github.com/mealsnap/food-diary/internal/session"
)

// CallbackHandler handles callback query messages
type CallbackHandler struct {
	api          BotAPI
	deps         Dependencies
	stateManager state.StateManager
	views        *viewSender
}

// NewCallbackHandler creates a new callback handler
func NewCallbackHandler(api BotAPI, deps Dependencies, stateManager state.StateManager) *CallbackHandler {
	return &CallbackHandler{
		api:          api,
		deps:         deps,
		stateManager: stateManager,
		views:        &viewSender{api: api, sessions: deps.Sessions},
	}
}

// Handle processes a callback query
func (h *CallbackHandler) Handle(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	// Answer the callback query first
	if _, err := h.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		logger.Warn("Failed to answer callback query", "error", err)
	}

	chatID := query.Message.Chat.ID
	userID := query.From.ID

	switch data := query.Data; {
	case strings.HasPrefix(data, keyboards.CallbackSlotPrefix):
		return h.handleSlot(chatID, userID, strings.TrimPrefix(data, keyboards.CallbackSlotPrefix))
	case strings.HasPrefix(data, keyboards.CallbackDeletePrefix):
		return h.handleDeleteMeal(chatID, strings.TrimPrefix(data, keyboards.CallbackDeletePrefix))
	case data == keyboards.CallbackMainMenu:
		h.stateManager.SetUserState(userID, state.None)
		h.stateManager.ClearTempData(userID)
		return menus.SendMainMenu(h.api, chatID)
	case data == keyboards.CallbackMeals:
		return h.views.sendMeals(chatID)
	case data == keyboards.CallbackTotals:
		return h.views.sendTotals(chatID)
	case data == keyboards.CallbackReport:
		return h.views.sendReport(ctx, chatID)
	case data == keyboards.CallbackChat:
		h.stateManager.SetUserState(userID, state.Chatting)
		return menus.SendMarkdown(h.api, chatID, chatIntro, keyboards.BackToMenu())
	case data == keyboards.CallbackHelp:
		return menus.SendMarkdown(h.api, chatID, helpText, keyboards.BackToMenu())
	default:
		return menus.SendMarkdown(h.api, chatID, "Unknown action. Use /start to open the menu.", nil)
	}
}

func (h *CallbackHandler) handleSlot(chatID, userID int64, raw string) error {
	slot, err := domain.ParseMealType(raw)
	if err != nil {
		return h.views.sendError(chatID, session.ErrUnknownSlot)
	}
	h.stateManager.SetUserState(userID, state.WaitingForPhoto)
	h.stateManager.SetTempData(userID, state.KeySlot, string(slot))

	text := fmt.Sprintf("📷 *%s*\n\nSend a photo of your plate and I will estimate its nutrition.", keyboards.SlotLabel(slot))
	return menus.SendMarkdown(h.api, chatID, text, keyboards.BackToMenu())
}

func (h *CallbackHandler) handleDeleteMeal(chatID int64, mealID string) error {
	if err := h.views.session(chatID).DeleteMeal(mealID); err != nil {
		return h.views.sendError(chatID, err)
	}
	return h.views.sendMeals(chatID)
}
