package domain

import (
	"context"
)

// NutritionGateway translates diary operations into calls against the hosted model
type NutritionGateway interface {
	AnalyzeImage(ctx context.Context, image []byte, mimeType string) (*NutritionRecord, error)
	GenerateDailyReport(ctx context.Context, totals NutritionRecord) (*DailyReport, error)
	SendChatMessage(ctx context.Context, history []ChatTurn, message string) (string, error)
}

// BotService handles telegram bot operations
type BotService interface {
	Start(ctx context.Context) error
	Stop()
}
