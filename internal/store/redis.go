package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/opinix/trading-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for event records. Writes go to the primary store and invalidate the
// cache; reads check Redis first then fall back to the primary. User and
// trade reads always hit the primary: balances must be current for overdraft
// checks, the password hash is excluded from JSON so a cached user would
// lose it, and settlement depends on seeing current trade status.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Users (passthrough) ---

func (s *CachedStore) CreateUser(ctx context.Context, u *model.User) error {
	return s.primary.CreateUser(ctx, u)
}

func (s *CachedStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.primary.GetUser(ctx, id)
}

func (s *CachedStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.primary.GetUserByEmail(ctx, email)
}

func (s *CachedStore) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.primary.ListUsers(ctx)
}

func (s *CachedStore) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	return s.primary.UpdateUserPassword(ctx, id, passwordHash)
}

func (s *CachedStore) UpdateBalance(ctx context.Context, id string, delta decimal.Decimal) (*model.User, error) {
	return s.primary.UpdateBalance(ctx, id, delta)
}

func (s *CachedStore) DebitBalance(ctx context.Context, id string, amount decimal.Decimal) (*model.User, error) {
	return s.primary.DebitBalance(ctx, id, amount)
}

// --- Events ---

func (s *CachedStore) CreateEvent(ctx context.Context, e *model.Event) error {
	if err := s.primary.CreateEvent(ctx, e); err != nil {
		return err
	}
	s.cacheEvent(ctx, e)
	return nil
}

func (s *CachedStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	data, err := s.rdb.Get(ctx, eventKey(id)).Bytes()
	if err == nil {
		var e model.Event
		if json.Unmarshal(data, &e) == nil {
			return &e, nil
		}
	}

	e, err := s.primary.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheEvent(ctx, e)
	return e, nil
}

func (s *CachedStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	return s.primary.ListEvents(ctx)
}

func (s *CachedStore) ListEventsByCategory(ctx context.Context, category string) ([]model.Event, error) {
	return s.primary.ListEventsByCategory(ctx, category)
}

func (s *CachedStore) UpdateEvent(ctx context.Context, e *model.Event) (*model.Event, error) {
	updated, err := s.primary.UpdateEvent(ctx, e)
	if err != nil {
		return nil, err
	}
	s.rdb.Del(ctx, eventKey(e.ID))
	return updated, nil
}

func (s *CachedStore) UpdateEventStatus(ctx context.Context, id, status string) (*model.Event, error) {
	updated, err := s.primary.UpdateEventStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	s.rdb.Del(ctx, eventKey(id))
	return updated, nil
}

func (s *CachedStore) SetEventResults(ctx context.Context, id, winningOptionID string) (*model.Event, error) {
	updated, err := s.primary.SetEventResults(ctx, id, winningOptionID)
	if err != nil {
		return nil, err
	}
	s.rdb.Del(ctx, eventKey(id))
	return updated, nil
}

func (s *CachedStore) DeleteEvent(ctx context.Context, id string) error {
	if err := s.primary.DeleteEvent(ctx, id); err != nil {
		return err
	}
	s.rdb.Del(ctx, eventKey(id))
	return nil
}

// --- Trades (passthrough) ---

func (s *CachedStore) CreateTrade(ctx context.Context, t *model.Trade) error {
	return s.primary.CreateTrade(ctx, t)
}

func (s *CachedStore) GetTrade(ctx context.Context, id string) (*model.Trade, error) {
	return s.primary.GetTrade(ctx, id)
}

func (s *CachedStore) ListTrades(ctx context.Context) ([]model.Trade, error) {
	return s.primary.ListTrades(ctx)
}

func (s *CachedStore) ListTradesByUser(ctx context.Context, userID string) ([]model.Trade, error) {
	return s.primary.ListTradesByUser(ctx, userID)
}

func (s *CachedStore) ListTradesByEvent(ctx context.Context, eventID string) ([]model.Trade, error) {
	return s.primary.ListTradesByEvent(ctx, eventID)
}

func (s *CachedStore) TransitionTrade(ctx context.Context, id, from, to, outcome string, settlementAmount decimal.Decimal) (*model.Trade, error) {
	return s.primary.TransitionTrade(ctx, id, from, to, outcome, settlementAmount)
}

// --- Cache helpers ---

func (s *CachedStore) cacheEvent(ctx context.Context, e *model.Event) {
	if data, err := json.Marshal(e); err == nil {
		s.rdb.Set(ctx, eventKey(e.ID), data, s.ttl)
	}
}

func eventKey(id string) string { return fmt.Sprintf("event:%s", id) }

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
	_ Store = (*CachedStore)(nil)
)
