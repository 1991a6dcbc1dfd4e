package handlers

import (
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mealsnap/food-diary/internal/session"
)

// BotAPI is the subset of the Telegram client the handlers use
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Dependencies holds all service dependencies for handlers
type Dependencies struct {
	Sessions      *session.Store
	HTTPClient    *http.Client
	MaxImageBytes int64
}

// sessionID maps a Telegram chat onto its diary session
func sessionID(chatID int64) string {
	return fmt.Sprintf("tg:%d", chatID)
}
