package handlers

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mealsnap/food-diary/internal/bot/keyboards"
	"github.com/mealsnap/food-diary/internal/bot/menus"
	apperrors "github.com/mealsnap/food-diary/internal/errors"
	"github.com/mealsnap/food-diary/internal/logger"
	"github.com/mealsnap/food-diary/internal/session"
)

const chatIntro = `💬 *Nutrition advisor*

Ask anything about food and healthy eating. Send /start to leave the chat.`

// viewSender renders session views shared by commands and callbacks
type viewSender struct {
	api      BotAPI
	sessions *session.Store
}

func (v *viewSender) session(chatID int64) *session.Session {
	return v.sessions.GetOrCreate(sessionID(chatID))
}

func (v *viewSender) sendMeals(chatID int64) error {
	snap := v.session(chatID).Snapshot()
	return menus.SendMarkdown(v.api, chatID, menus.FormatMeals(snap), keyboards.MealList(snap.Meals))
}

func (v *viewSender) sendTotals(chatID int64) error {
	snap := v.session(chatID).Snapshot()
	return menus.SendMarkdown(v.api, chatID, menus.FormatTotals(snap.Totals, len(snap.Meals)), keyboards.BackToMenu())
}

func (v *viewSender) sendReport(ctx context.Context, chatID int64) error {
	progress, err := v.api.Send(tgbotapi.NewMessage(chatID, "📝 Writing your daily report..."))
	if err != nil {
		return err
	}
	defer v.deleteMessage(chatID, progress.MessageID)

	report, err := v.session(chatID).GenerateReport(ctx)
	if err != nil {
		return v.sendError(chatID, err)
	}
	return menus.SendMarkdown(v.api, chatID, menus.FormatReport(*report), keyboards.BackToMenu())
}

// sendError shows the user-facing message of err
func (v *viewSender) sendError(chatID int64, err error) error {
	logger.Warn("Request failed", "chat_id", chatID, "code", apperrors.CodeOf(err), "error", err)
	return menus.SendMarkdown(v.api, chatID, "⚠️ "+apperrors.UserMessage(err), keyboards.BackToMenu())
}

func (v *viewSender) deleteMessage(chatID int64, messageID int) {
	if _, err := v.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		logger.Debug("Failed to delete message", "chat_id", chatID, "error", err)
	}
}
