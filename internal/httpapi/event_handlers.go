package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/opinix/trading-engine/internal/lifecycle"
	"github.com/opinix/trading-engine/internal/model"
)

func (a *API) handleListEvents(w http.ResponseWriter, r *http.Request) {
	var (
		events []model.Event
		err    error
	)
	if category := r.URL.Query().Get("category"); category != "" {
		events, err = a.lifecycle.ListEventsByCategory(r.Context(), category)
	} else {
		events, err = a.lifecycle.ListEvents(r.Context())
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (a *API) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := a.lifecycle.GetEvent(r.Context(), urlParam(r, "eventID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (a *API) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var in lifecycle.EventInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	event, err := a.lifecycle.CreateEvent(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (a *API) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var in lifecycle.EventInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	event, err := a.lifecycle.UpdateEvent(r.Context(), urlParam(r, "eventID"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (a *API) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := a.lifecycle.DeleteEvent(r.Context(), urlParam(r, "eventID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type settleEventRequest struct {
	WinningOptionID string `json:"winningOptionId"`
}

func (a *API) handleSettleEvent(w http.ResponseWriter, r *http.Request) {
	var req settleEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.WinningOptionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "winningOptionId is required"})
		return
	}

	event, err := a.lifecycle.SettleEvent(r.Context(), urlParam(r, "eventID"), req.WinningOptionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}
