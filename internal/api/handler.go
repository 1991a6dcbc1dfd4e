package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mealsnap/food-diary/internal/domain"
	apperrors "github.com/mealsnap/food-diary/internal/errors"
	"github.com/mealsnap/food-diary/internal/logger"
	"github.com/mealsnap/food-diary/internal/services"
	"github.com/mealsnap/food-diary/internal/session"
)

type Handler struct {
	store         *session.Store
	maxImageBytes int64
	errs          *apperrors.Handler
}

func NewHandler(store *session.Store, maxImageBytes int64) *Handler {
	return &Handler{
		store:         store,
		maxImageBytes: maxImageBytes,
		errs:          apperrors.NewHandler(logger.Component("api")),
	}
}

type ChatRequest struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": h.store.Len(),
	})
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.store.Create()
	writeJSON(w, http.StatusCreated, map[string]string{"id": s.ID()})
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if !h.store.Delete(chi.URLParam(r, "sessionID")) {
		h.writeError(w, r, apperrors.NewNotFoundError("SESSION_NOT_FOUND", "Session not found."))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AddMeal(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	slot, err := domain.ParseMealType(chi.URLParam(r, "slot"))
	if err != nil {
		h.writeError(w, r, session.ErrUnknownSlot)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxImageBytes+1<<20)
	if err := r.ParseMultipartForm(h.maxImageBytes); err != nil {
		h.writeError(w, r, apperrors.NewValidationError("Could not read the uploaded photo."))
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		h.writeError(w, r, apperrors.NewValidationError("Missing image field."))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxImageBytes+1))
	if err != nil {
		h.writeError(w, r, apperrors.NewValidationError("Could not read the uploaded photo."))
		return
	}
	if int64(len(data)) > h.maxImageBytes {
		h.writeError(w, r, apperrors.NewValidationError("The photo is too large."))
		return
	}

	meal, err := s.AddMealFromImage(r.Context(), slot, data, header.Header.Get("Content-Type"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, meal)
}

func (h *Handler) MealImage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	mealID := chi.URLParam(r, "mealID")
	for _, m := range s.Meals() {
		if m.ID != mealID {
			continue
		}
		mimeType, data, err := services.DecodeDataURL(m.Image)
		if err != nil {
			h.writeError(w, r, apperrors.NewInternalError(err))
			return
		}
		w.Header().Set("Content-Type", mimeType)
		w.WriteHeader(http.StatusOK)
		w.Write(data)
		return
	}
	h.writeError(w, r, session.ErrMealNotFound)
}

func (h *Handler) DeleteMeal(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.DeleteMeal(chi.URLParam(r, "mealID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Totals(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Totals())
}

func (h *Handler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	report, err := s.GenerateReport(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) DismissSlotError(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	slot, err := domain.ParseMealType(chi.URLParam(r, "slot"))
	if err != nil {
		h.writeError(w, r, session.ErrUnknownSlot)
		return
	}
	if err := s.DismissSlotError(slot); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResetSlot abandons a pending analysis; its late result is dropped.
func (h *Handler) ResetSlot(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	slot, err := domain.ParseMealType(chi.URLParam(r, "slot"))
	if err != nil {
		h.writeError(w, r, session.ErrUnknownSlot)
		return
	}
	if err := s.ResetSlot(slot); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *Handler) DismissReportError(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.DismissReportError()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperrors.NewValidationError("Invalid request"))
		return
	}
	msg, err := s.SendChat(r.Context(), req.Text)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, ok := h.store.Get(chi.URLParam(r, "sessionID"))
	if !ok {
		h.writeError(w, r, apperrors.NewNotFoundError("SESSION_NOT_FOUND", "Session not found."))
		return nil, false
	}
	return s, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	h.errs.Handle(r.Context(), err)
	writeJSON(w, statusFor(err), errorResponse{
		Error: apperrors.UserMessage(err),
		Code:  apperrors.CodeOf(err),
	})
}

func statusFor(err error) int {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}
	switch appErr.Code {
	case apperrors.CodeModelUnavailable:
		return http.StatusServiceUnavailable
	case session.ErrNoMeals.Code:
		return http.StatusUnprocessableEntity
	}
	switch appErr.Type {
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeCredential:
		return http.StatusUnauthorized
	case apperrors.ErrorTypeConflict:
		return http.StatusConflict
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeResponse, apperrors.ErrorTypeExternal:
		return http.StatusBadGateway
	case apperrors.ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
