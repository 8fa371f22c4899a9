// Package engine implements the trade lifecycle: creation against a live
// event, cancellation with refund, and batch settlement with payout. It is a
// pure orchestrator over the store, holding no record state of its own, and
// enforces every balance and state-machine invariant of the system.
//
// All monetary values use shopspring/decimal, never float64.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/opinix/trading-engine/internal/lock"
	"github.com/opinix/trading-engine/internal/metrics"
	"github.com/opinix/trading-engine/internal/model"
	"github.com/opinix/trading-engine/internal/notify"
	"github.com/opinix/trading-engine/internal/store"
)

// fallbackOdds substitutes for a zero or negative odds value at settlement.
// Options with such odds should never exist (creation rejects them); hitting
// this path means the record was written outside the API.
var fallbackOdds = decimal.NewFromFloat(0.5)

// Engine orchestrates trades against the store. The broadcaster is
// best-effort: its errors are logged and discarded, never surfaced.
type Engine struct {
	store  store.Store
	locker lock.EventLocker
	bcast  notify.Broadcaster
}

// New creates a trading engine. All collaborators are required; pass
// notify.Nop{} when no hub is wired.
func New(st store.Store, locker lock.EventLocker, bcast notify.Broadcaster) *Engine {
	return &Engine{store: st, locker: locker, bcast: bcast}
}

// --- Reads ---

func (e *Engine) GetTrade(ctx context.Context, id string) (*model.Trade, error) {
	return e.store.GetTrade(ctx, id)
}

func (e *Engine) ListTrades(ctx context.Context) ([]model.Trade, error) {
	return e.store.ListTrades(ctx)
}

func (e *Engine) ListTradesByUser(ctx context.Context, userID string) ([]model.Trade, error) {
	return e.store.ListTradesByUser(ctx, userID)
}

func (e *Engine) ListTradesByEvent(ctx context.Context, eventID string) ([]model.Trade, error) {
	return e.store.ListTradesByEvent(ctx, eventID)
}

// --- CreateTrade ---

// eventTradePayload is what the event room sees when a trade is created.
// It omits the user id: other traders may see stake flow, not who staked.
type eventTradePayload struct {
	TradeID  string          `json:"tradeId"`
	EventID  string          `json:"eventId"`
	OptionID string          `json:"optionId"`
	Amount   decimal.Decimal `json:"amount"`
}

// CreateTrade validates and executes a stake of amount on one option of a
// live event. The user's balance is debited atomically before the trade is
// persisted; if persisting fails the debit is compensated.
func (e *Engine) CreateTrade(ctx context.Context, userID, eventID, optionID string, amount decimal.Decimal) (*model.Trade, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: amount must be greater than 0", model.ErrValidation)
	}

	user, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Balance.LessThan(amount) {
		return nil, model.ErrInsufficientBalance
	}

	event, err := e.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.Status != model.EventLive {
		return nil, model.ErrEventNotTradable
	}
	if event.Option(optionID) == nil {
		return nil, model.ErrOptionNotFound
	}

	// Debit first. The store's conditional decrement is the authoritative
	// overdraft guard; the balance check above just orders the failures.
	if _, err := e.store.DebitBalance(ctx, userID, amount); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	trade := &model.Trade{
		ID:               uuid.New().String(),
		UserID:           userID,
		EventID:          eventID,
		OptionID:         optionID,
		Amount:           amount,
		Status:           model.TradeExecuted,
		SettlementAmount: decimal.Zero,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := e.store.CreateTrade(ctx, trade); err != nil {
		// Compensate the debit so the failed request leaves no trace.
		if _, cerr := e.store.UpdateBalance(ctx, userID, amount); cerr != nil {
			slog.Error("compensating credit failed after trade persist error",
				"user", userID, "amount", amount.String(), "err", cerr)
		}
		return nil, fmt.Errorf("persist trade: %w", err)
	}

	metrics.TradesTotal.WithLabelValues(model.TradeExecuted).Inc()
	stakeF, _ := amount.Float64()
	metrics.TradeStakeTotal.Add(stakeF)

	slog.Info("trade executed",
		"trade_id", trade.ID,
		"user", userID,
		"event", eventID,
		"option", optionID,
		"amount", amount.String(),
	)

	e.notifyRoom(notify.UserRoom(userID), "trade_created", trade)
	e.notifyRoom(notify.EventRoom(eventID), "trade_created", eventTradePayload{
		TradeID:  trade.ID,
		EventID:  eventID,
		OptionID: optionID,
		Amount:   amount,
	})

	return trade, nil
}

// --- CancelTrade ---

// CancelTrade refunds an executed trade's full stake and marks it cancelled.
func (e *Engine) CancelTrade(ctx context.Context, tradeID string) (*model.Trade, error) {
	trade, err := e.store.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if trade.Status != model.TradeExecuted {
		return nil, fmt.Errorf("%w: only executed trades can be cancelled", model.ErrInvalidTradeState)
	}

	// Win the status transition before moving money, so a concurrent cancel
	// or settlement of the same trade cannot refund twice.
	cancelled, err := e.store.TransitionTrade(ctx, tradeID, model.TradeExecuted, model.TradeCancelled, "", decimal.Zero)
	if err != nil {
		if errors.Is(err, model.ErrInvalidTradeState) {
			return nil, fmt.Errorf("%w: only executed trades can be cancelled", model.ErrInvalidTradeState)
		}
		return nil, err
	}

	if _, err := e.store.UpdateBalance(ctx, trade.UserID, trade.Amount); err != nil {
		slog.Error("refund failed for cancelled trade",
			"trade_id", tradeID, "user", trade.UserID, "amount", trade.Amount.String(), "err", err)
		return nil, fmt.Errorf("refund: %w", err)
	}

	metrics.TradesTotal.WithLabelValues(model.TradeCancelled).Inc()

	slog.Info("trade cancelled",
		"trade_id", tradeID,
		"user", trade.UserID,
		"refund", trade.Amount.String(),
	)

	e.notifyRoom(notify.UserRoom(trade.UserID), "trade_cancelled", cancelled)
	e.notifyRoom(notify.EventRoom(trade.EventID), "trade_cancelled", map[string]string{
		"tradeId": cancelled.ID,
		"eventId": cancelled.EventID,
	})

	return cancelled, nil
}

// --- SettleTrades ---

// settledTradePayload is the trade_settled frame sent to the trade owner.
type settledTradePayload struct {
	*model.Trade
	Won    bool            `json:"won"`
	Payout decimal.Decimal `json:"payout"`
}

// eventSettledPayload is the event_settled frame sent to the event room.
type eventSettledPayload struct {
	EventID         string    `json:"eventId"`
	WinningOptionID string    `json:"winningOptionId"`
	SettledAt       time.Time `json:"settledAt"`
}

// SettleTrades pays out every executed trade on an event against the winning
// option, marks the trades settled, and marks the event settled. Settlement
// is serialized per event and idempotent: only trades still in the executed
// state are touched, re-running never double-pays, and an event already
// marked settled by the result-marking path is accepted. Winners are
// credited amount x (1/odds); losers receive nothing.
func (e *Engine) SettleTrades(ctx context.Context, eventID, winningOptionID string) ([]model.Trade, error) {
	unlock, err := e.locker.Acquire(ctx, "settle:"+eventID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	start := time.Now()

	event, err := e.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.Status == model.EventUpcoming {
		return nil, model.ErrEventNotSettleable
	}

	option := event.Option(winningOptionID)
	if option == nil {
		return nil, model.ErrOptionNotFound
	}

	odds := option.Odds
	if odds.LessThanOrEqual(decimal.Zero) {
		slog.Warn("winning option has invalid odds, substituting fallback",
			"event", eventID, "option", winningOptionID, "odds", odds.String())
		odds = fallbackOdds
	}

	trades, err := e.store.ListTradesByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	var settled []model.Trade
	for i := range trades {
		trade := &trades[i]
		if trade.Status != model.TradeExecuted {
			continue
		}

		won := trade.OptionID == winningOptionID
		outcome := model.OutcomeLoss
		payout := decimal.Zero
		if won {
			outcome = model.OutcomeWin
			payout = trade.Amount.Div(odds)
		}

		// Transition first, credit after: a trade that loses the
		// conditional write is being settled elsewhere and must not be
		// paid here.
		settledTrade, err := e.store.TransitionTrade(ctx, trade.ID, model.TradeExecuted, model.TradeSettled, outcome, payout)
		if err != nil {
			if errors.Is(err, model.ErrInvalidTradeState) {
				continue
			}
			return settled, fmt.Errorf("settle trade %s: %w", trade.ID, err)
		}

		if won {
			if _, err := e.store.UpdateBalance(ctx, trade.UserID, payout); err != nil {
				slog.Error("payout credit failed",
					"trade_id", trade.ID, "user", trade.UserID, "payout", payout.String(), "err", err)
				return settled, fmt.Errorf("credit payout for trade %s: %w", trade.ID, err)
			}
			payoutF, _ := payout.Float64()
			metrics.SettlementPayoutTotal.Add(payoutF)
		}

		metrics.SettlementsTotal.WithLabelValues(outcome).Inc()
		settled = append(settled, *settledTrade)

		e.notifyRoom(notify.UserRoom(trade.UserID), "trade_settled", settledTradePayload{
			Trade:  settledTrade,
			Won:    won,
			Payout: payout,
		})
	}

	if event.Status != model.EventSettled {
		if _, err := e.store.UpdateEventStatus(ctx, eventID, model.EventSettled); err != nil {
			return settled, fmt.Errorf("mark event settled: %w", err)
		}
	}

	metrics.SettlementLatency.Observe(time.Since(start).Seconds())

	slog.Info("event trades settled",
		"event", eventID,
		"winning_option", winningOptionID,
		"settled", len(settled),
	)

	e.notifyRoom(notify.EventRoom(eventID), "event_settled", eventSettledPayload{
		EventID:         eventID,
		WinningOptionID: winningOptionID,
		SettledAt:       time.Now().UTC(),
	})

	return settled, nil
}

// notifyRoom broadcasts best-effort; failures are logged and discarded.
func (e *Engine) notifyRoom(room, event string, payload any) {
	if err := e.bcast.BroadcastToRoom(room, event, payload); err != nil {
		slog.Debug("broadcast failed", "room", room, "event", event, "err", err)
	}
}
