package handlers

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mealsnap/food-diary/internal/bot/keyboards"
	"github.com/mealsnap/food-diary/internal/bot/menus"
	"github.com/mealsnap/food-diary/internal/bot/state"
)

// TextHandler handles text messages
type TextHandler struct {
	api          BotAPI
	deps         Dependencies
	stateManager state.StateManager
	views        *viewSender
}

// NewTextHandler creates a new text handler
func NewTextHandler(api BotAPI, deps Dependencies, stateManager state.StateManager) *TextHandler {
	return &TextHandler{
		api:          api,
		deps:         deps,
		stateManager: stateManager,
		views:        &viewSender{api: api, sessions: deps.Sessions},
	}
}

// Handle processes a text message
func (h *TextHandler) Handle(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID

	switch h.stateManager.GetUserState(message.From.ID) {
	case state.Chatting:
		return h.handleChat(ctx, chatID, message.Text)
	case state.WaitingForPhoto:
		return menus.SendMarkdown(h.api, chatID, "Please send a photo of your meal.", keyboards.BackToMenu())
	default:
		return menus.SendMarkdown(h.api, chatID, "Please use the menu to choose an action.", keyboards.MainMenu())
	}
}

func (h *TextHandler) handleChat(ctx context.Context, chatID int64, text string) error {
	typing := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	_, _ = h.api.Request(typing)

	reply, err := h.views.session(chatID).SendChat(ctx, text)
	if err != nil {
		return h.views.sendError(chatID, err)
	}
	return menus.SendMarkdown(h.api, chatID, reply.Text, nil)
}
