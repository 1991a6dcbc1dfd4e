package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	apperrors "github.com/mealsnap/food-diary/internal/errors"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

func TestClassifyProviderError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"gemini invalid key", &googleapi.Error{Code: http.StatusBadRequest, Message: "API key not valid. Please pass a valid API key."}, apperrors.CodeCredentialInvalid},
		{"gemini bad request", &googleapi.Error{Code: http.StatusBadRequest, Message: "Request payload size exceeds the limit"}, apperrors.CodeTransport},
		{"gemini forbidden", &googleapi.Error{Code: http.StatusForbidden, Message: "permission denied"}, apperrors.CodeCredentialInvalid},
		{"gemini model not found", &googleapi.Error{Code: http.StatusNotFound, Message: "models/gemini-x is not found"}, apperrors.CodeModelUnavailable},
		{"gemini overloaded", &googleapi.Error{Code: http.StatusServiceUnavailable, Message: "overloaded"}, apperrors.CodeTransport},
		{"openai unauthorized", &openai.APIError{HTTPStatusCode: http.StatusUnauthorized, Message: "Incorrect API key provided"}, apperrors.CodeCredentialInvalid},
		{"openai model not found", &openai.APIError{HTTPStatusCode: http.StatusNotFound, Message: "The model does not exist"}, apperrors.CodeModelUnavailable},
		{"openai rate limit", &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "slow down"}, apperrors.CodeTransport},
		{"openai request error", &openai.RequestError{HTTPStatusCode: http.StatusBadGateway, Err: errors.New("bad gateway")}, apperrors.CodeTransport},
		{"wrapped status", fmt.Errorf("send: %w", &googleapi.Error{Code: http.StatusUnauthorized}), apperrors.CodeCredentialInvalid},
		{"message invalid key", errors.New("rpc error: API_KEY_INVALID"), apperrors.CodeCredentialInvalid},
		{"message entity not found", errors.New("Requested entity was not found."), apperrors.CodeModelUnavailable},
		{"message model not found", errors.New("model gemini-9 not found for API version v1beta"), apperrors.CodeModelUnavailable},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), apperrors.CodeTimeout},
		{"network", errors.New("dial tcp: connection refused"), apperrors.CodeTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyProviderError(tt.err, "test")
			assert.Equal(t, tt.code, apperrors.CodeOf(got))
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassifyProviderError_KeepsAppErrors(t *testing.T) {
	in := apperrors.NewSchemaViolationError(errors.New("bad"), "op")
	assert.Same(t, in, classifyProviderError(in, "test"))
	assert.Nil(t, classifyProviderError(nil, "test"))
}
