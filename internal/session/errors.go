package session

import (
	apperrors "github.com/mealsnap/food-diary/internal/errors"
)

var (
	ErrUnknownSlot   = apperrors.New(apperrors.ErrorTypeValidation, "UNKNOWN_SLOT", "Unknown meal type.")
	ErrSlotBusy      = apperrors.NewConflictError("SLOT_BUSY", "This meal is still being analysed. Please wait for the current photo to finish.")
	ErrReportBusy    = apperrors.NewConflictError("REPORT_BUSY", "The daily report is already being generated.")
	ErrChatBusy      = apperrors.NewConflictError("CHAT_BUSY", "Please wait for the current answer before sending another message.")
	ErrNoMeals       = apperrors.New(apperrors.ErrorTypeValidation, "NO_MEALS", "Add at least one meal before requesting a daily report.")
	ErrEmptyMessage  = apperrors.New(apperrors.ErrorTypeValidation, "EMPTY_MESSAGE", "The message is empty.")
	ErrMealNotFound  = apperrors.NewNotFoundError("MEAL_NOT_FOUND", "Meal not found.")
	ErrStaleResult   = apperrors.NewConflictError("STALE_RESULT", "The result arrived after its request was abandoned and was discarded.")
	ErrSessionClosed = apperrors.NewConflictError("SESSION_CLOSED", "The session has been closed.")
)
