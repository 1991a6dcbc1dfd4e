package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mealsnap/food-diary/internal/config"
	"github.com/mealsnap/food-diary/internal/domain"
	apperrors "github.com/mealsnap/food-diary/internal/errors"
	"github.com/mealsnap/food-diary/internal/logger"
)

// ChatFallbackReply is returned when the model answers a chat turn with nothing.
const ChatFallbackReply = "Sorry, I couldn't come up with an answer to that. Could you rephrase your question?"

// jsonRequest is a schema-constrained generation request.
type jsonRequest struct {
	Operation string
	Prompt    string
	Image     []byte
	MIMEType  string
	Schema    responseSchema
}

// modelProvider is the transport to one hosted model family.
type modelProvider interface {
	Name() string
	GenerateJSON(ctx context.Context, req jsonRequest) (string, error)
	Chat(ctx context.Context, persona string, history []domain.ChatTurn, message string) (string, error)
	Close() error
}

// AIService is the gateway between the diary and the hosted model. It is
// bound to one credential for its whole life; a new credential means a new
// AIService.
type AIService struct {
	provider modelProvider
	apiKey   string
	locale   string
	timeout  time.Duration
	validate *validator.Validate
	log      *slog.Logger
}

var _ domain.NutritionGateway = (*AIService)(nil)

// NewAIService builds the gateway for the configured provider. An empty API
// key is accepted here; every call then fails with CredentialMissing.
func NewAIService(ctx context.Context, cfg config.AIConfig) (*AIService, error) {
	apiKey := strings.TrimSpace(cfg.APIKey())

	var provider modelProvider
	if apiKey != "" {
		switch cfg.Provider {
		case config.ProviderOpenAI:
			provider = newOpenAIProvider(apiKey, cfg.OpenAIModel, "")
		default:
			p, err := newGeminiProvider(ctx, apiKey, cfg.GeminiModel)
			if err != nil {
				return nil, fmt.Errorf("failed to create Gemini client: %w", err)
			}
			provider = p
		}
	}

	return newAIService(provider, apiKey, cfg.Locale, cfg.Timeout), nil
}

func newAIService(provider modelProvider, apiKey, locale string, timeout time.Duration) *AIService {
	if locale == "" {
		locale = "English"
	}
	name := "none"
	if provider != nil {
		name = provider.Name()
	}
	return &AIService{
		provider: provider,
		apiKey:   apiKey,
		locale:   locale,
		timeout:  timeout,
		validate: newResponseValidator(),
		log:      logger.Component("ai_gateway").With("provider", name),
	}
}

// Close releases the underlying client.
func (s *AIService) Close() error {
	if s.provider == nil {
		return nil
	}
	return s.provider.Close()
}

// AnalyzeImage asks the model for the nutrition facts of a meal photo.
func (s *AIService) AnalyzeImage(ctx context.Context, image []byte, mimeType string) (*domain.NutritionRecord, error) {
	const op = "analyze_image"
	if err := s.ready(); err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, apperrors.NewValidationError("The image is empty.")
	}
	mimeType = ResolveImageMIMEType(image, mimeType)
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, apperrors.NewValidationError(fmt.Sprintf("Unsupported media type %q; please choose a photo.", mimeType))
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	raw, err := s.provider.GenerateJSON(ctx, jsonRequest{
		Operation: op,
		Prompt:    analyzeImagePrompt(s.locale),
		Image:     image,
		MIMEType:  mimeType,
		Schema:    nutritionSchema,
	})
	if err != nil {
		return nil, s.fail(ctx, op, classifyProviderError(err, s.provider.Name()))
	}

	record, err := parseNutritionRecord(s.validate, raw)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	s.log.InfoContext(ctx, "Image analysed",
		"mime_type", mimeType,
		"image_bytes", len(image),
		"food_items", len(record.FoodItems),
		"calories", record.Calories,
		"duration", time.Since(start))
	return record, nil
}

// GenerateDailyReport asks the model for advice on the day's totals.
func (s *AIService) GenerateDailyReport(ctx context.Context, totals domain.NutritionRecord) (*domain.DailyReport, error) {
	const op = "generate_report"
	if err := s.ready(); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	raw, err := s.provider.GenerateJSON(ctx, jsonRequest{
		Operation: op,
		Prompt:    dailyReportPrompt(s.locale, totals),
		Schema:    dailyReportSchema,
	})
	if err != nil {
		return nil, s.fail(ctx, op, classifyProviderError(err, s.provider.Name()))
	}

	report, err := parseDailyReport(s.validate, raw)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	s.log.InfoContext(ctx, "Daily report generated", "title", report.Title, "duration", time.Since(start))
	return report, nil
}

// SendChatMessage continues a nutrition conversation. An empty model reply
// degrades to ChatFallbackReply instead of an error.
func (s *AIService) SendChatMessage(ctx context.Context, history []domain.ChatTurn, message string) (string, error) {
	const op = "chat"
	if err := s.ready(); err != nil {
		return "", err
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return "", apperrors.NewValidationError("The message is empty.")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	reply, err := s.provider.Chat(ctx, chatPersona(s.locale), history, message)
	if err != nil {
		return "", s.fail(ctx, op, classifyProviderError(err, s.provider.Name()))
	}
	if strings.TrimSpace(reply) == "" {
		s.log.WarnContext(ctx, "Empty chat reply, using fallback", "history_turns", len(history))
		return ChatFallbackReply, nil
	}
	return reply, nil
}

func (s *AIService) ready() error {
	if s.apiKey == "" || s.provider == nil {
		return apperrors.New(apperrors.ErrorTypeCredential, apperrors.CodeCredentialMissing, apperrors.ErrCredentialMissing.Message)
	}
	return nil
}

func (s *AIService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *AIService) fail(ctx context.Context, op string, err error) error {
	fields := []any{"operation", op}
	if appErr, ok := err.(*apperrors.AppError); ok {
		appErr.WithContext("operation", op)
		fields = append(fields, appErr.LogFields()...)
	} else {
		fields = append(fields, "error", err)
	}
	s.log.ErrorContext(ctx, "Model call failed", fields...)
	return err
}
