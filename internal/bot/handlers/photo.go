package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mealsnap/food-diary/internal/bot/keyboards"
	"github.com/mealsnap/food-diary/internal/bot/menus"
	"github.com/mealsnap/food-diary/internal/bot/state"
	"github.com/mealsnap/food-diary/internal/domain"
	"github.com/mealsnap/food-diary/internal/logger"
	"github.com/mealsnap/food-diary/internal/utils"
)

// Telegram caps bot downloads at 20 MB
const maxPhotoBytes = 20 << 20

var errPhotoTooLarge = errors.New("photo too large")

var defaultHTTPClient = &http.Client{Timeout: 30 * time.Second}

// captionSlots maps free-text captions onto meal slots
var captionSlots = map[string]domain.MealType{
	"breakfast": domain.MealMorning,
	"morning":   domain.MealMorning,
	"lunch":     domain.MealNoon,
	"noon":      domain.MealNoon,
	"dinner":    domain.MealEvening,
	"supper":    domain.MealEvening,
	"evening":   domain.MealEvening,
}

// PhotoHandler handles photo messages
type PhotoHandler struct {
	api          BotAPI
	deps         Dependencies
	stateManager state.StateManager
	views        *viewSender
}

// NewPhotoHandler creates a new photo handler
func NewPhotoHandler(api BotAPI, deps Dependencies, stateManager state.StateManager) *PhotoHandler {
	return &PhotoHandler{
		api:          api,
		deps:         deps,
		stateManager: stateManager,
		views:        &viewSender{api: api, sessions: deps.Sessions},
	}
}

// Handle processes a photo message
func (h *PhotoHandler) Handle(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	userID := message.From.ID

	slot, ok := h.resolveSlot(userID, message.Caption)
	if !ok {
		// server local time stands in for the user's
		slot = utils.MealTypeAt(message.Time())
		logger.Debug("Meal slot guessed from message time", "user_id", userID, "slot", slot)
	}

	// Get the largest photo
	photo := message.Photo[len(message.Photo)-1]
	data, err := h.download(ctx, photo.FileID)
	if errors.Is(err, errPhotoTooLarge) {
		logger.Warn("Photo rejected", "user_id", userID, "limit", h.deps.MaxImageBytes)
		return menus.SendMarkdown(h.api, chatID, "Sorry, this photo is too large. Please send a smaller one.", keyboards.BackToMenu())
	}
	if err != nil {
		logger.Error("Failed to download photo", "user_id", userID, "error", err)
		return menus.SendMarkdown(h.api, chatID, "Sorry, I could not download the photo. Please try again.", keyboards.BackToMenu())
	}

	progress, err := h.api.Send(tgbotapi.NewMessage(chatID, "🔍 Analysing your meal..."))
	if err != nil {
		return fmt.Errorf("failed to send processing message: %w", err)
	}
	defer h.views.deleteMessage(chatID, progress.MessageID)

	logger.Info("Starting meal analysis", "user_id", userID, "slot", slot, "bytes", len(data))
	meal, err := h.views.session(chatID).AddMealFromImage(ctx, slot, data, "")
	if err != nil {
		return h.views.sendError(chatID, err)
	}

	// Reset user state
	h.stateManager.SetUserState(userID, state.None)
	h.stateManager.ClearTempData(userID)

	return menus.SendMarkdown(h.api, chatID, menus.FormatMeal(*meal), keyboards.MainMenu())
}

// resolveSlot prefers an explicit caption over the slot picked in the menu
func (h *PhotoHandler) resolveSlot(userID int64, caption string) (domain.MealType, bool) {
	caption = strings.ToLower(strings.TrimSpace(caption))
	if slot, ok := captionSlots[caption]; ok {
		return slot, true
	}
	if slot, err := domain.ParseMealType(caption); err == nil {
		return slot, true
	}
	if h.stateManager.GetUserState(userID) != state.WaitingForPhoto {
		return "", false
	}
	raw, ok := h.stateManager.GetTempData(userID, state.KeySlot)
	if !ok {
		return "", false
	}
	slot, err := domain.ParseMealType(raw)
	return slot, err == nil
}

func (h *PhotoHandler) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := h.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.deps.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download file: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, h.deps.MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if int64(len(data)) > h.deps.MaxImageBytes {
		return nil, errPhotoTooLarge
	}
	return data, nil
}
