package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opinix/trading-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func seedUser(t *testing.T, s *MemoryStore, id string, balance decimal.Decimal) {
	t.Helper()
	now := time.Now().UTC()
	err := s.CreateUser(context.Background(), &model.User{
		ID:        id,
		Username:  id,
		Email:     id + "@example.com",
		Balance:   balance,
		Role:      model.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func TestDebitBalance_Conditional(t *testing.T) {
	s := NewMemoryStore()
	seedUser(t, s, "u1", d(100))

	u, err := s.DebitBalance(context.Background(), "u1", d(60))
	if err != nil {
		t.Fatalf("DebitBalance failed: %v", err)
	}
	if !u.Balance.Equal(d(40)) {
		t.Errorf("expected 40, got %s", u.Balance)
	}

	if _, err := s.DebitBalance(context.Background(), "u1", d(60)); !errors.Is(err, model.ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
	if _, err := s.DebitBalance(context.Background(), "nobody", d(1)); !errors.Is(err, model.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestDebitBalance_ConcurrentNeverNegative(t *testing.T) {
	s := NewMemoryStore()
	seedUser(t, s, "u1", d(100))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.DebitBalance(context.Background(), "u1", d(7))
		}()
	}
	wg.Wait()

	u, err := s.GetUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if u.Balance.IsNegative() {
		t.Errorf("balance went negative: %s", u.Balance)
	}
}

func TestTransitionTrade_Conditional(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now().UTC()
	err := s.CreateTrade(context.Background(), &model.Trade{
		ID:        "t1",
		UserID:    "u1",
		EventID:   "ev1",
		OptionID:  "opt1",
		Amount:    d(100),
		Status:    model.TradeExecuted,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateTrade failed: %v", err)
	}

	settled, err := s.TransitionTrade(context.Background(), "t1", model.TradeExecuted, model.TradeSettled, model.OutcomeWin, d(50))
	if err != nil {
		t.Fatalf("TransitionTrade failed: %v", err)
	}
	if settled.Status != model.TradeSettled || settled.Outcome != model.OutcomeWin || !settled.SettlementAmount.Equal(d(50)) {
		t.Errorf("unexpected trade %+v", settled)
	}

	// The from-state no longer matches; a second transition must lose.
	_, err = s.TransitionTrade(context.Background(), "t1", model.TradeExecuted, model.TradeCancelled, "", decimal.Zero)
	if !errors.Is(err, model.ErrInvalidTradeState) {
		t.Errorf("expected ErrInvalidTradeState, got %v", err)
	}

	_, err = s.TransitionTrade(context.Background(), "missing", model.TradeExecuted, model.TradeSettled, "", decimal.Zero)
	if !errors.Is(err, model.ErrTradeNotFound) {
		t.Errorf("expected ErrTradeNotFound, got %v", err)
	}
}

func TestEventCopyIsolation(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now().UTC()
	err := s.CreateEvent(context.Background(), &model.Event{
		ID:     "ev1",
		Title:  "Match",
		Status: model.EventLive,
		Options: []model.EventOption{
			{ID: "opt1", Name: "Yes", Odds: d(2.0)},
		},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}

	got, err := s.GetEvent(context.Background(), "ev1")
	if err != nil {
		t.Fatalf("GetEvent failed: %v", err)
	}
	// Mutating the returned copy must not leak into the store.
	got.Options[0].Odds = d(99)
	got.Status = model.EventSettled

	fresh, err := s.GetEvent(context.Background(), "ev1")
	if err != nil {
		t.Fatalf("GetEvent failed: %v", err)
	}
	if !fresh.Options[0].Odds.Equal(d(2.0)) || fresh.Status != model.EventLive {
		t.Error("store state mutated through a returned copy")
	}
}

func TestSetEventResults(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now().UTC()
	err := s.CreateEvent(context.Background(), &model.Event{
		ID:     "ev1",
		Title:  "Match",
		Status: model.EventClosed,
		Options: []model.EventOption{
			{ID: "opt1", Name: "Yes", Odds: d(2.0)},
			{ID: "opt2", Name: "No", Odds: d(1.8)},
		},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}

	settled, err := s.SetEventResults(context.Background(), "ev1", "opt1")
	if err != nil {
		t.Fatalf("SetEventResults failed: %v", err)
	}
	if settled.Status != model.EventSettled {
		t.Errorf("expected settled, got %s", settled.Status)
	}
	for _, opt := range settled.Options {
		if opt.Result == nil {
			t.Fatalf("option %s has no result", opt.ID)
		}
		if *opt.Result != (opt.ID == "opt1") {
			t.Errorf("option %s: result %v", opt.ID, *opt.Result)
		}
	}
}

func TestListTradesFilters(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now().UTC()
	mk := func(id, userID, eventID string) {
		t.Helper()
		err := s.CreateTrade(context.Background(), &model.Trade{
			ID: id, UserID: userID, EventID: eventID, OptionID: "opt1",
			Amount: d(10), Status: model.TradeExecuted,
			CreatedAt: now, UpdatedAt: now,
		})
		if err != nil {
			t.Fatalf("CreateTrade failed: %v", err)
		}
	}
	mk("t1", "u1", "ev1")
	mk("t2", "u1", "ev2")
	mk("t3", "u2", "ev1")

	byUser, err := s.ListTradesByUser(context.Background(), "u1")
	if err != nil || len(byUser) != 2 {
		t.Errorf("ListTradesByUser: %d trades, err %v", len(byUser), err)
	}
	byEvent, err := s.ListTradesByEvent(context.Background(), "ev1")
	if err != nil || len(byEvent) != 2 {
		t.Errorf("ListTradesByEvent: %d trades, err %v", len(byEvent), err)
	}
	all, err := s.ListTrades(context.Background())
	if err != nil || len(all) != 3 {
		t.Errorf("ListTrades: %d trades, err %v", len(all), err)
	}
}
