// Package model defines the core domain types shared across the trading
// backend. All monetary values use shopspring/decimal, never float64.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Event statuses. Settled is terminal.
const (
	EventUpcoming = "upcoming"
	EventLive     = "live"
	EventClosed   = "closed"
	EventSettled  = "settled"
)

// Trade statuses. Pending is reserved by the schema but never entered by the
// creation path; cancelled and settled are terminal.
const (
	TradePending   = "pending"
	TradeExecuted  = "executed"
	TradeSettled   = "settled"
	TradeCancelled = "cancelled"
)

// Trade outcomes, set only at settlement.
const (
	OutcomeWin  = "win"
	OutcomeLoss = "loss"
)

// StartingBalance is credited to every account at registration.
var StartingBalance = decimal.NewFromInt(1000)

// User holds an account with a spendable balance. Balance is mutated only
// through the engine's debit/credit operations, never written directly.
type User struct {
	ID        string          `json:"id" db:"id"`
	Username  string          `json:"username" db:"username"`
	Email     string          `json:"email" db:"email"`
	Password  string          `json:"-" db:"password"` // bcrypt hash, never serialized
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	Role      string          `json:"role" db:"role"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// EventOption is one possible outcome of an Event. Result stays nil until
// settlement, after which exactly one option per event is true.
type EventOption struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Odds   decimal.Decimal `json:"odds"` // decimal payout multiplier, > 0
	Result *bool           `json:"result,omitempty"`
}

// Event is a real-world occurrence with mutually exclusive outcome options,
// tradable while live.
type Event struct {
	ID          string        `json:"id" db:"id"`
	Title       string        `json:"title" db:"title"`
	Description string        `json:"description" db:"description"`
	Category    string        `json:"category" db:"category"`
	StartTime   time.Time     `json:"start_time" db:"start_time"`
	EndTime     time.Time     `json:"end_time" db:"end_time"`
	Status      string        `json:"status" db:"status"`
	Options     []EventOption `json:"options" db:"options"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`
}

// Option returns the option with the given id, or nil.
func (e *Event) Option(optionID string) *EventOption {
	for i := range e.Options {
		if e.Options[i].ID == optionID {
			return &e.Options[i]
		}
	}
	return nil
}

// ResultsMarked reports whether settlement results have been recorded on any
// option. Used to decide whether the result-marking path may still run on an
// event the money path already closed.
func (e *Event) ResultsMarked() bool {
	for i := range e.Options {
		if e.Options[i].Result != nil {
			return true
		}
	}
	return false
}

// Trade is a user's stake on one option of one event. The event/option
// reference is immutable after creation.
type Trade struct {
	ID               string          `json:"id" db:"id"`
	UserID           string          `json:"user_id" db:"user_id"`
	EventID          string          `json:"event_id" db:"event_id"`
	OptionID         string          `json:"option_id" db:"option_id"`
	Amount           decimal.Decimal `json:"amount" db:"amount"`
	Status           string          `json:"status" db:"status"`
	Outcome          string          `json:"outcome,omitempty" db:"outcome"`
	SettlementAmount decimal.Decimal `json:"settlement_amount" db:"settlement_amount"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}
