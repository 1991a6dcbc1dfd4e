package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mealsnap/food-diary/internal/domain"
	apperrors "github.com/mealsnap/food-diary/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Model          string `json:"model"`
	Messages       []json.RawMessage
	ResponseFormat *struct {
		Type       string `json:"type"`
		JSONSchema struct {
			Name   string          `json:"name"`
			Strict bool            `json:"strict"`
			Schema json.RawMessage `json:"schema"`
		} `json:"json_schema"`
	} `json:"response_format"`
}

func newOpenAITestServer(t *testing.T, status int, body string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if captured != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func completion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
	return string(b)
}

func TestOpenAIProvider_AnalyzeImage(t *testing.T) {
	var captured capturedRequest
	srv := newOpenAITestServer(t, http.StatusOK, completion(validNutritionJSON), &captured)
	svc := newAIService(newOpenAIProvider("test-key", "gpt-4o-mini", srv.URL+"/v1"), "test-key", "English", 5*time.Second)

	record, err := svc.AnalyzeImage(context.Background(), jpeg, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, 650.0, record.Calories)

	assert.Equal(t, "gpt-4o-mini", captured.Model)
	require.NotNil(t, captured.ResponseFormat)
	assert.Equal(t, "json_schema", captured.ResponseFormat.Type)
	assert.Equal(t, "nutrition_record", captured.ResponseFormat.JSONSchema.Name)
	assert.True(t, captured.ResponseFormat.JSONSchema.Strict)
	assert.Contains(t, string(captured.ResponseFormat.JSONSchema.Schema), `"healthScore"`)
	require.Len(t, captured.Messages, 1)
	assert.Contains(t, string(captured.Messages[0]), "data:image/jpeg;base64,")
}

func TestOpenAIProvider_Chat(t *testing.T) {
	var captured capturedRequest
	srv := newOpenAITestServer(t, http.StatusOK, completion("Drink water."), &captured)
	svc := newAIService(newOpenAIProvider("test-key", "gpt-4o-mini", srv.URL+"/v1"), "test-key", "English", 5*time.Second)

	history := []domain.ChatTurn{
		{Role: domain.RoleUser, Text: "Hi"},
		{Role: domain.RoleModel, Text: "Hello!"},
	}
	reply, err := svc.SendChatMessage(context.Background(), history, "Any tips?")
	require.NoError(t, err)
	assert.Equal(t, "Drink water.", reply)

	assert.Nil(t, captured.ResponseFormat)
	require.Len(t, captured.Messages, 4)
	roles := make([]string, 0, len(captured.Messages))
	for _, raw := range captured.Messages {
		var m struct {
			Role string `json:"role"`
		}
		require.NoError(t, json.Unmarshal(raw, &m))
		roles = append(roles, m.Role)
	}
	assert.Equal(t, []string{"system", "user", "assistant", "user"}, roles)
}

func TestOpenAIProvider_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"invalid key", http.StatusUnauthorized, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`, apperrors.ErrCredentialInvalid},
		{"unknown model", http.StatusNotFound, `{"error":{"message":"The model gpt-9 does not exist","type":"invalid_request_error","code":"model_not_found"}}`, apperrors.ErrModelUnavailable},
		{"server error", http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`, apperrors.ErrTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newOpenAITestServer(t, tt.status, tt.body, nil)
			svc := newAIService(newOpenAIProvider("test-key", "gpt-9", srv.URL+"/v1"), "test-key", "", 5*time.Second)

			_, err := svc.GenerateDailyReport(context.Background(), domain.NutritionRecord{})
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestOpenAIProvider_NoChoicesIsEmptyResponse(t *testing.T) {
	body := `{"id":"x","object":"chat.completion","choices":[]}`
	srv := newOpenAITestServer(t, http.StatusOK, body, nil)
	svc := newAIService(newOpenAIProvider("test-key", "gpt-4o-mini", srv.URL+"/v1"), "test-key", "", 5*time.Second)

	_, err := svc.GenerateDailyReport(context.Background(), domain.NutritionRecord{})
	assert.True(t, errors.Is(err, apperrors.ErrEmptyResponse))
}

func TestOpenAISchema(t *testing.T) {
	def := openAISchema(dailyReportSchema)
	b, err := json.Marshal(&def)
	require.NoError(t, err)

	s := string(b)
	assert.Contains(t, s, `"additionalProperties":false`)
	for _, name := range dailyReportSchema.required() {
		assert.True(t, strings.Contains(s, `"`+name+`"`), name)
	}
}
