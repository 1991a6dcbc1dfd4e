package services

import (
	"context"
	"errors"
	"net/http"
	"strings"

	apperrors "github.com/mealsnap/food-diary/internal/errors"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/api/googleapi"
)

// classifyProviderError maps a transport failure onto the gateway taxonomy.
// Structured status codes win; message matching is only a fallback for
// transports that hide them.
func classifyProviderError(err error, api string) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewTimeoutError(err, api)
	}

	if status, msg, ok := statusOf(err); ok {
		switch {
		case status == http.StatusUnauthorized,
			status == http.StatusForbidden,
			status == http.StatusPaymentRequired,
			status == http.StatusBadRequest && isInvalidKeyMessage(msg):
			return apperrors.NewCredentialError(err, apperrors.CodeCredentialInvalid, apperrors.ErrCredentialInvalid.Message).
				WithContext("status", status)
		case status == http.StatusNotFound:
			return apperrors.NewExternalAPIError(err, apperrors.CodeModelUnavailable, apperrors.ErrModelUnavailable.Message, api).
				WithContext("status", status)
		default:
			return apperrors.NewExternalAPIError(err, apperrors.CodeTransport, apperrors.ErrTransport.Message, api).
				WithContext("status", status)
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case isInvalidKeyMessage(msg):
		return apperrors.NewCredentialError(err, apperrors.CodeCredentialInvalid, apperrors.ErrCredentialInvalid.Message)
	case strings.Contains(msg, "requested entity was not found"),
		strings.Contains(msg, "model") && strings.Contains(msg, "not found"):
		return apperrors.NewExternalAPIError(err, apperrors.CodeModelUnavailable, apperrors.ErrModelUnavailable.Message, api)
	}
	return apperrors.NewExternalAPIError(err, apperrors.CodeTransport, apperrors.ErrTransport.Message, api)
}

func statusOf(err error) (int, string, bool) {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Code != 0 {
		return gErr.Code, strings.ToLower(gErr.Message + " " + gErr.Body), true
	}
	var oaErr *openai.APIError
	if errors.As(err, &oaErr) && oaErr.HTTPStatusCode != 0 {
		return oaErr.HTTPStatusCode, strings.ToLower(oaErr.Message), true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return reqErr.HTTPStatusCode, strings.ToLower(reqErr.Error()), true
	}
	return 0, "", false
}

func isInvalidKeyMessage(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "api key not valid") ||
		strings.Contains(msg, "api_key_invalid") ||
		strings.Contains(msg, "invalid api key") ||
		strings.Contains(msg, "incorrect api key")
}
