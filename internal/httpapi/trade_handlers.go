package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/opinix/trading-engine/internal/auth"
	"github.com/opinix/trading-engine/internal/model"
)

func (a *API) handleListTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := a.engine.ListTrades(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if trades == nil {
		trades = []model.Trade{}
	}
	writeJSON(w, http.StatusOK, trades)
}

func (a *API) handleGetTrade(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	trade, err := a.engine.GetTrade(r.Context(), urlParam(r, "tradeID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !auth.Allow(p, trade.UserID, auth.OwnerOrAdmin) {
		writeForbidden(w)
		return
	}
	writeJSON(w, http.StatusOK, trade)
}

func (a *API) handleTradesByUser(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	userID := urlParam(r, "userID")

	if !auth.Allow(p, userID, auth.OwnerOrAdmin) {
		writeForbidden(w)
		return
	}

	trades, err := a.engine.ListTradesByUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if trades == nil {
		trades = []model.Trade{}
	}
	writeJSON(w, http.StatusOK, trades)
}

// optionSummary aggregates trades per option for the non-admin event view.
type optionSummary struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// eventTradesSummary hides individual traders' stakes from regular users.
type eventTradesSummary struct {
	TotalTrades int                      `json:"totalTrades"`
	TotalAmount decimal.Decimal          `json:"totalAmount"`
	Options     map[string]optionSummary `json:"options"`
}

func (a *API) handleTradesByEvent(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	trades, err := a.engine.ListTradesByEvent(r.Context(), urlParam(r, "eventID"))
	if err != nil {
		writeError(w, err)
		return
	}

	if p.IsAdmin() {
		if trades == nil {
			trades = []model.Trade{}
		}
		writeJSON(w, http.StatusOK, trades)
		return
	}

	summary := eventTradesSummary{
		TotalAmount: decimal.Zero,
		Options:     make(map[string]optionSummary),
	}
	for i := range trades {
		t := &trades[i]
		summary.TotalTrades++
		summary.TotalAmount = summary.TotalAmount.Add(t.Amount)

		opt := summary.Options[t.OptionID]
		opt.Count++
		opt.Amount = opt.Amount.Add(t.Amount)
		summary.Options[t.OptionID] = opt
	}
	writeJSON(w, http.StatusOK, summary)
}

type createTradeRequest struct {
	EventID  string          `json:"eventId"`
	OptionID string          `json:"optionId"`
	Amount   decimal.Decimal `json:"amount"`
}

func (a *API) handleCreateTrade(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	var req createTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.EventID == "" || req.OptionID == "" || req.Amount.IsZero() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "please provide eventId, optionId, and amount"})
		return
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be greater than 0"})
		return
	}

	trade, err := a.engine.CreateTrade(r.Context(), p.UserID, req.EventID, req.OptionID, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, trade)
}

func (a *API) handleCancelTrade(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	tradeID := urlParam(r, "tradeID")

	trade, err := a.engine.GetTrade(r.Context(), tradeID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !auth.Allow(p, trade.UserID, auth.OwnerOrAdmin) {
		writeForbidden(w)
		return
	}

	cancelled, err := a.engine.CancelTrade(r.Context(), tradeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelled)
}

type settleTradesRequest struct {
	EventID         string `json:"eventId"`
	WinningOptionID string `json:"winningOptionId"`
}

func (a *API) handleSettleTrades(w http.ResponseWriter, r *http.Request) {
	var req settleTradesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.EventID == "" || req.WinningOptionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "please provide eventId and winningOptionId"})
		return
	}

	settled, err := a.engine.SettleTrades(r.Context(), req.EventID, req.WinningOptionID)
	if err != nil {
		writeError(w, err)
		return
	}
	if settled == nil {
		settled = []model.Trade{}
	}
	writeJSON(w, http.StatusOK, settled)
}
