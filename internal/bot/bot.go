package bot

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mealsnap/food-diary/internal/bot/handlers"
	"github.com/mealsnap/food-diary/internal/bot/state"
	"github.com/mealsnap/food-diary/internal/domain"
	"github.com/mealsnap/food-diary/internal/logger"
	"github.com/mealsnap/food-diary/internal/session"
)

// Bot is the Telegram frontend of the food diary
type Bot struct {
	api           *tgbotapi.BotAPI
	updateHandler *handlers.UpdateHandler
	wg            sync.WaitGroup
	stopOnce      sync.Once
}

var _ domain.BotService = (*Bot)(nil)

// NewBot authorizes against Telegram and wires the update handlers
func NewBot(token string, sessions *session.Store, stateManager state.StateManager, maxImageBytes int64) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	logger.Info("Bot authorized", "account", api.Self.UserName)
	deps := handlers.Dependencies{Sessions: sessions, MaxImageBytes: maxImageBytes}
	return &Bot{
		api:           api,
		updateHandler: handlers.NewUpdateHandler(api, deps, stateManager),
	}, nil
}

// Start polls for updates until ctx is cancelled. Each update is handled
// in its own goroutine so a slow analysis never blocks other chats.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	logger.Info("Bot is now listening for updates")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Bot is shutting down")
			b.Stop()
			b.wg.Wait()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return nil
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				if err := b.updateHandler.Handle(ctx, update); err != nil {
					logger.Error("Error handling update", "update_id", update.UpdateID, "error", err)
				}
			}()
		}
	}
}

// Stop stops polling for updates. The client panics on a second stop.
func (b *Bot) Stop() {
	b.stopOnce.Do(b.api.StopReceivingUpdates)
}
