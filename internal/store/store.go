// Package store defines the persistence interface for the trading backend.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/opinix/trading-engine/internal/model"
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- User operations ---

	// CreateUser persists a new user.
	CreateUser(ctx context.Context, user *model.User) error

	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, id string) (*model.User, error)

	// GetUserByEmail retrieves a user by email address.
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)

	// ListUsers returns all users.
	ListUsers(ctx context.Context) ([]model.User, error)

	// UpdateUserPassword replaces a user's password hash.
	UpdateUserPassword(ctx context.Context, id, passwordHash string) error

	// UpdateBalance applies a signed delta to a user's balance atomically
	// and returns the updated user.
	UpdateBalance(ctx context.Context, id string, delta decimal.Decimal) (*model.User, error)

	// DebitBalance subtracts amount from a user's balance only when the
	// balance covers it. Returns model.ErrInsufficientBalance otherwise.
	DebitBalance(ctx context.Context, id string, amount decimal.Decimal) (*model.User, error)

	// --- Event operations ---

	// CreateEvent persists a new event.
	CreateEvent(ctx context.Context, event *model.Event) error

	// GetEvent retrieves an event by ID.
	GetEvent(ctx context.Context, id string) (*model.Event, error)

	// ListEvents returns all events.
	ListEvents(ctx context.Context) ([]model.Event, error)

	// ListEventsByCategory returns all events in a category.
	ListEventsByCategory(ctx context.Context, category string) ([]model.Event, error)

	// UpdateEvent replaces an event's mutable fields and returns the
	// updated event.
	UpdateEvent(ctx context.Context, event *model.Event) (*model.Event, error)

	// UpdateEventStatus sets an event's status.
	UpdateEventStatus(ctx context.Context, id, status string) (*model.Event, error)

	// SetEventResults marks the winning option's result true, every other
	// option false, and the event settled.
	SetEventResults(ctx context.Context, id, winningOptionID string) (*model.Event, error)

	// DeleteEvent removes an event. Returns model.ErrEventNotFound when
	// absent. Trades referencing the event are not cascaded.
	DeleteEvent(ctx context.Context, id string) error

	// --- Trade operations ---

	// CreateTrade persists a new trade.
	CreateTrade(ctx context.Context, trade *model.Trade) error

	// GetTrade retrieves a trade by ID.
	GetTrade(ctx context.Context, id string) (*model.Trade, error)

	// ListTrades returns all trades.
	ListTrades(ctx context.Context) ([]model.Trade, error)

	// ListTradesByUser returns all trades placed by a user.
	ListTradesByUser(ctx context.Context, userID string) ([]model.Trade, error)

	// ListTradesByEvent returns all trades against an event.
	ListTradesByEvent(ctx context.Context, eventID string) ([]model.Trade, error)

	// TransitionTrade moves a trade from one status to another in a single
	// conditional write, recording outcome and settlement amount. Returns
	// model.ErrInvalidTradeState when the trade is no longer in the
	// expected from-status; this guard makes settlement idempotent per
	// trade.
	TransitionTrade(ctx context.Context, id, from, to, outcome string, settlementAmount decimal.Decimal) (*model.Trade, error)
}
