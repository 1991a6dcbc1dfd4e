package services

import (
	"context"

	"github.com/mealsnap/food-diary/internal/domain"
	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

type openAIProvider struct {
	client *openai.Client
	model  string
}

func newOpenAIProvider(apiKey, model, baseURL string) *openAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &openAIProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (p *openAIProvider) Name() string { return "openai" }

func (p *openAIProvider) Close() error { return nil }

func (p *openAIProvider) GenerateJSON(ctx context.Context, req jsonRequest) (string, error) {
	parts := []openai.ChatMessagePart{
		{
			Type: openai.ChatMessagePartTypeText,
			Text: req.Prompt,
		},
	}
	if len(req.Image) > 0 {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    EncodeDataURL(req.MIMEType, req.Image),
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}

	schema := openAISchema(req.Schema)
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:         openai.ChatMessageRoleUser,
				MultiContent: parts,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.Schema.Name,
				Schema: &schema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return "", err
	}
	return firstChoice(resp), nil
}

func (p *openAIProvider) Chat(ctx context.Context, persona string, history []domain.ChatTurn, message string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: persona,
	})
	for _, turn := range history {
		role := openai.ChatMessageRoleUser
		if turn.Role == domain.RoleModel {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Text})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	})

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	return firstChoice(resp), nil
}

func firstChoice(resp openai.ChatCompletionResponse) string {
	if len(resp.Choices) == 0 {
		return ""
	}
	return resp.Choices[0].Message.Content
}

func openAISchema(rs responseSchema) jsonschema.Definition {
	def := jsonschema.Definition{
		Type:                 jsonschema.Object,
		Properties:           make(map[string]jsonschema.Definition, len(rs.Fields)),
		Required:             rs.required(),
		AdditionalProperties: false,
	}
	for _, f := range rs.Fields {
		var prop jsonschema.Definition
		switch f.Kind {
		case kindNumber:
			prop = jsonschema.Definition{Type: jsonschema.Number}
		case kindStringList:
			prop = jsonschema.Definition{Type: jsonschema.Array, Items: &jsonschema.Definition{Type: jsonschema.String}}
		default:
			prop = jsonschema.Definition{Type: jsonschema.String}
		}
		prop.Description = f.Description
		def.Properties[f.Name] = prop
	}
	return def
}
