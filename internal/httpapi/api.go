// Package httpapi is the HTTP boundary: routing, request decoding,
// principal extraction, authorization policy, and mapping of domain errors
// to response codes. No business rules live here.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opinix/trading-engine/internal/auth"
	"github.com/opinix/trading-engine/internal/engine"
	"github.com/opinix/trading-engine/internal/lifecycle"
	"github.com/opinix/trading-engine/internal/metrics"
	"github.com/opinix/trading-engine/internal/model"
	"github.com/opinix/trading-engine/internal/notify"
)

// API wires the HTTP surface to the engine, lifecycle manager, and auth
// service. The hub is optional; without it /ws is not served.
type API struct {
	engine    *engine.Engine
	lifecycle *lifecycle.Manager
	auth      *auth.Service
	hub       *notify.Hub
}

// New creates the API.
func New(eng *engine.Engine, lc *lifecycle.Manager, authSvc *auth.Service, hub *notify.Hub) *API {
	return &API{engine: eng, lifecycle: lc, auth: authSvc, hub: hub}
}

// Router builds the chi router with the full route table.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"trading-engine"}`))
	})
	r.Handle("/metrics", metrics.Handler())
	if a.hub != nil {
		r.Get("/ws", a.hub.HandleWS)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", a.handleRegister)
			r.Post("/login", a.handleLogin)
			r.With(a.requireAuth).Post("/password", a.handleChangePassword)
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", a.handleListEvents)
			r.Get("/{eventID}", a.handleGetEvent)

			r.Group(func(r chi.Router) {
				r.Use(a.requireAuth, a.requireAdmin)
				r.Post("/", a.handleCreateEvent)
				r.Put("/{eventID}", a.handleUpdateEvent)
				r.Delete("/{eventID}", a.handleDeleteEvent)
				r.Post("/{eventID}/settle", a.handleSettleEvent)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(a.requireAuth)
			r.With(a.requireAdmin).Get("/", a.handleListUsers)
			r.Get("/{userID}", a.handleGetUser)
		})

		r.Route("/trades", func(r chi.Router) {
			r.Use(a.requireAuth)
			r.With(a.requireAdmin).Get("/", a.handleListTrades)
			r.Get("/{tradeID}", a.handleGetTrade)
			r.Get("/user/{userID}", a.handleTradesByUser)
			r.Get("/event/{eventID}", a.handleTradesByEvent)
			r.Post("/", a.handleCreateTrade)
			r.Put("/{tradeID}/cancel", a.handleCancelTrade)
			r.With(a.requireAdmin).Post("/settle", a.handleSettleTrades)
		})
	})

	return r
}

// writeJSON writes a JSON response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps a domain error to a response code and JSON message.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrUserNotFound),
		errors.Is(err, model.ErrEventNotFound),
		errors.Is(err, model.ErrTradeNotFound),
		errors.Is(err, model.ErrOptionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrValidation),
		errors.Is(err, model.ErrInsufficientBalance),
		errors.Is(err, model.ErrEmailTaken):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrEventNotTradable),
		errors.Is(err, model.ErrEventNotSettleable),
		errors.Is(err, model.ErrInvalidTradeState),
		errors.Is(err, model.ErrLockHeld):
		status = http.StatusConflict
	case errors.Is(err, model.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeForbidden(w http.ResponseWriter) {
	writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
}

func urlParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}
