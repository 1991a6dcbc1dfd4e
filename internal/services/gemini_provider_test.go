package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/mealsnap/food-diary/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiSchema(t *testing.T) {
	schema := geminiSchema(nutritionSchema)

	assert.Equal(t, genai.TypeObject, schema.Type)
	assert.ElementsMatch(t, nutritionSchema.required(), schema.Required)
	require.Len(t, schema.Properties, len(nutritionSchema.Fields))
	assert.Equal(t, genai.TypeNumber, schema.Properties["calories"].Type)
	assert.Equal(t, genai.TypeString, schema.Properties["summary"].Type)
	require.NotNil(t, schema.Properties["foodItems"].Items)
	assert.Equal(t, genai.TypeArray, schema.Properties["foodItems"].Type)
	assert.Equal(t, genai.TypeString, schema.Properties["foodItems"].Items.Type)
}

func TestGeminiRole(t *testing.T) {
	assert.Equal(t, "user", geminiRole(domain.RoleUser))
	assert.Equal(t, "model", geminiRole(domain.RoleModel))
}

func TestResponseText(t *testing.T) {
	assert.Empty(t, responseText(nil))
	assert.Empty(t, responseText(&genai.GenerateContentResponse{}))

	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"a":`), genai.Text(`1}`)}},
	}}}
	assert.Equal(t, `{"a":1}`, responseText(resp))
}

func TestUnblock(t *testing.T) {
	assert.NoError(t, unblock(fmt.Errorf("send: %w", &genai.BlockedError{})))

	other := errors.New("quota exceeded")
	assert.Same(t, other, unblock(other))
}
