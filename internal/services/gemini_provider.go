package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/mealsnap/food-diary/internal/domain"
	"google.golang.org/api/option"
)

type geminiProvider struct {
	client *genai.Client
	model  string
}

func newGeminiProvider(ctx context.Context, apiKey, model string, opts ...option.ClientOption) (*geminiProvider, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &geminiProvider{client: client, model: model}, nil
}

func (p *geminiProvider) Name() string { return "gemini" }

func (p *geminiProvider) Close() error { return p.client.Close() }

func (p *geminiProvider) GenerateJSON(ctx context.Context, req jsonRequest) (string, error) {
	model := p.client.GenerativeModel(p.model)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = geminiSchema(req.Schema)

	var parts []genai.Part
	if len(req.Image) > 0 {
		parts = append(parts, genai.Blob{MIMEType: req.MIMEType, Data: req.Image})
	}
	parts = append(parts, genai.Text(req.Prompt))

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", unblock(err)
	}
	return responseText(resp), nil
}

func (p *geminiProvider) Chat(ctx context.Context, persona string, history []domain.ChatTurn, message string) (string, error) {
	model := p.client.GenerativeModel(p.model)
	model.SystemInstruction = genai.NewUserContent(genai.Text(persona))

	cs := model.StartChat()
	for _, turn := range history {
		cs.History = append(cs.History, &genai.Content{
			Role:  geminiRole(turn.Role),
			Parts: []genai.Part{genai.Text(turn.Text)},
		})
	}

	resp, err := cs.SendMessage(ctx, genai.Text(message))
	if err != nil {
		return "", unblock(err)
	}
	return responseText(resp), nil
}

// unblock turns a safety block into an empty answer so the gateway applies
// its empty-response policy.
func unblock(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return nil
	}
	return err
}

func geminiRole(role domain.ChatRole) string {
	if role == domain.RoleModel {
		return "model"
	}
	return "user"
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}

func geminiSchema(rs responseSchema) *genai.Schema {
	schema := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(rs.Fields)),
		Required:   rs.required(),
	}
	for _, f := range rs.Fields {
		var prop *genai.Schema
		switch f.Kind {
		case kindNumber:
			prop = &genai.Schema{Type: genai.TypeNumber}
		case kindStringList:
			prop = &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}}
		default:
			prop = &genai.Schema{Type: genai.TypeString}
		}
		prop.Description = f.Description
		schema.Properties[f.Name] = prop
	}
	return schema
}
