package store

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opinix/trading-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu     sync.RWMutex
	users  map[string]*model.User
	events map[string]*model.Event
	trades map[string]*model.Trade
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[string]*model.User),
		events: make(map[string]*model.Event),
		trades: make(map[string]*model.Trade),
	}
}

// --- Users ---

func (s *MemoryStore) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == u.Email {
			return model.ErrEmailTaken
		}
	}

	// Store a copy to avoid external mutation.
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, model.ErrUserNotFound
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, *u)
	}
	return users, nil
}

func (s *MemoryStore) UpdateUserPassword(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return model.ErrUserNotFound
	}
	u.Password = passwordHash
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) UpdateBalance(_ context.Context, id string, delta decimal.Decimal) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	u.Balance = u.Balance.Add(delta)
	u.UpdatedAt = time.Now().UTC()
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) DebitBalance(_ context.Context, id string, amount decimal.Decimal) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	if u.Balance.LessThan(amount) {
		return nil, model.ErrInsufficientBalance
	}
	u.Balance = u.Balance.Sub(amount)
	u.UpdatedAt = time.Now().UTC()
	cp := *u
	return &cp, nil
}

// --- Events ---

func (s *MemoryStore) CreateEvent(_ context.Context, e *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := copyEvent(e)
	s.events[e.ID] = cp
	return nil
}

func (s *MemoryStore) GetEvent(_ context.Context, id string) (*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[id]
	if !ok {
		return nil, model.ErrEventNotFound
	}
	return copyEvent(e), nil
}

func (s *MemoryStore) ListEvents(_ context.Context) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]model.Event, 0, len(s.events))
	for _, e := range s.events {
		events = append(events, *copyEvent(e))
	}
	return events, nil
}

func (s *MemoryStore) ListEventsByCategory(_ context.Context, category string) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []model.Event
	for _, e := range s.events {
		if e.Category == category {
			events = append(events, *copyEvent(e))
		}
	}
	return events, nil
}

func (s *MemoryStore) UpdateEvent(_ context.Context, e *model.Event) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.events[e.ID]
	if !ok {
		return nil, model.ErrEventNotFound
	}
	cp := copyEvent(e)
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = time.Now().UTC()
	s.events[e.ID] = cp
	return copyEvent(cp), nil
}

func (s *MemoryStore) UpdateEventStatus(_ context.Context, id, status string) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return nil, model.ErrEventNotFound
	}
	e.Status = status
	e.UpdatedAt = time.Now().UTC()
	return copyEvent(e), nil
}

func (s *MemoryStore) SetEventResults(_ context.Context, id, winningOptionID string) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return nil, model.ErrEventNotFound
	}
	for i := range e.Options {
		won := e.Options[i].ID == winningOptionID
		e.Options[i].Result = &won
	}
	e.Status = model.EventSettled
	e.UpdatedAt = time.Now().UTC()
	return copyEvent(e), nil
}

func (s *MemoryStore) DeleteEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; !ok {
		return model.ErrEventNotFound
	}
	delete(s.events, id)
	return nil
}

// --- Trades ---

func (s *MemoryStore) CreateTrade(_ context.Context, t *model.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *t
	s.trades[t.ID] = &cp
	return nil
}

func (s *MemoryStore) GetTrade(_ context.Context, id string) (*model.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.trades[id]
	if !ok {
		return nil, model.ErrTradeNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) ListTrades(_ context.Context) ([]model.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trades := make([]model.Trade, 0, len(s.trades))
	for _, t := range s.trades {
		trades = append(trades, *t)
	}
	return trades, nil
}

func (s *MemoryStore) ListTradesByUser(_ context.Context, userID string) ([]model.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var trades []model.Trade
	for _, t := range s.trades {
		if t.UserID == userID {
			trades = append(trades, *t)
		}
	}
	return trades, nil
}

func (s *MemoryStore) ListTradesByEvent(_ context.Context, eventID string) ([]model.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var trades []model.Trade
	for _, t := range s.trades {
		if t.EventID == eventID {
			trades = append(trades, *t)
		}
	}
	return trades, nil
}

func (s *MemoryStore) TransitionTrade(_ context.Context, id, from, to, outcome string, settlementAmount decimal.Decimal) (*model.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trades[id]
	if !ok {
		return nil, model.ErrTradeNotFound
	}
	if t.Status != from {
		return nil, model.ErrInvalidTradeState
	}
	t.Status = to
	t.Outcome = outcome
	t.SettlementAmount = settlementAmount
	t.UpdatedAt = time.Now().UTC()
	cp := *t
	return &cp, nil
}

// copyEvent deep-copies an event including its options slice.
func copyEvent(e *model.Event) *model.Event {
	cp := *e
	cp.Options = make([]model.EventOption, len(e.Options))
	copy(cp.Options, e.Options)
	for i := range e.Options {
		if e.Options[i].Result != nil {
			r := *e.Options[i].Result
			cp.Options[i].Result = &r
		}
	}
	return &cp
}
