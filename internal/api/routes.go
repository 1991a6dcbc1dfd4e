package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the diary API under /api.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS for the web client
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding")
			if r.Method == http.MethodOptions {
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		RegisterRoutes(r, h)
	})
	return r
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/sessions", h.CreateSession)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Delete("/", h.DeleteSession)
		r.Post("/slots/{slot}/meals", h.AddMeal)
		r.Post("/slots/{slot}/reset", h.ResetSlot)
		r.Delete("/slots/{slot}/error", h.DismissSlotError)
		r.Get("/meals/{mealID}/image", h.MealImage)
		r.Delete("/meals/{mealID}", h.DeleteMeal)
		r.Get("/totals", h.Totals)
		r.Post("/report", h.GenerateReport)
		r.Delete("/report/error", h.DismissReportError)
		r.Post("/chat", h.Chat)
	})
}
