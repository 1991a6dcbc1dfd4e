package handlers

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mealsnap/food-diary/internal/bot/state"
)

// UpdateHandler handles telegram updates and coordinates other handlers
type UpdateHandler struct {
	callbackHandler *CallbackHandler
	commandHandler  *CommandHandler
	textHandler     *TextHandler
	photoHandler    *PhotoHandler
}

// NewUpdateHandler creates a new update handler
func NewUpdateHandler(api BotAPI, deps Dependencies, stateManager state.StateManager) *UpdateHandler {
	if deps.HTTPClient == nil {
		deps.HTTPClient = defaultHTTPClient
	}
	if deps.MaxImageBytes <= 0 || deps.MaxImageBytes > maxPhotoBytes {
		deps.MaxImageBytes = maxPhotoBytes
	}
	return &UpdateHandler{
		callbackHandler: NewCallbackHandler(api, deps, stateManager),
		commandHandler:  NewCommandHandler(api, deps, stateManager),
		textHandler:     NewTextHandler(api, deps, stateManager),
		photoHandler:    NewPhotoHandler(api, deps, stateManager),
	}
}

// Handle processes a telegram update
func (h *UpdateHandler) Handle(ctx context.Context, update tgbotapi.Update) error {
	if update.CallbackQuery != nil {
		if update.CallbackQuery.Message == nil || update.CallbackQuery.From == nil {
			return nil
		}
		return h.callbackHandler.Handle(ctx, update.CallbackQuery)
	}

	message := update.Message
	if message == nil || message.From == nil {
		return nil
	}

	switch {
	case message.IsCommand():
		return h.commandHandler.Handle(ctx, message)
	case len(message.Photo) > 0:
		return h.photoHandler.Handle(ctx, message)
	case message.Text != "":
		return h.textHandler.Handle(ctx, message)
	}
	return nil
}
