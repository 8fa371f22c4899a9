package lifecycle_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opinix/trading-engine/internal/feed"
	"github.com/opinix/trading-engine/internal/lifecycle"
	"github.com/opinix/trading-engine/internal/model"
	"github.com/opinix/trading-engine/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// recordingBroadcaster captures broadcast events for assertions.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingBroadcaster) BroadcastToAll(event string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingBroadcaster) BroadcastToRoom(_ string, event string, _ any) error {
	return r.BroadcastToAll(event, nil)
}

func (r *recordingBroadcaster) seen(event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}

func newTestEnv(t *testing.T) (*lifecycle.Manager, *store.MemoryStore, *recordingBroadcaster) {
	t.Helper()
	ms := store.NewMemoryStore()
	rec := &recordingBroadcaster{}
	return lifecycle.New(ms, rec, nil), ms, rec
}

func input(title, status string) lifecycle.EventInput {
	now := time.Now().UTC()
	return lifecycle.EventInput{
		Title:     title,
		Category:  "sports",
		StartTime: now,
		EndTime:   now.Add(2 * time.Hour),
		Status:    status,
		Options: []model.EventOption{
			{Name: "Yes", Odds: d(1.85)},
			{Name: "No", Odds: d(1.95)},
		},
	}
}

// --- CRUD ---

func TestCreateEvent_DefaultsToUpcoming(t *testing.T) {
	mgr, _, rec := newTestEnv(t)

	ev, err := mgr.CreateEvent(context.Background(), input("Chiefs vs Ravens", ""))
	if err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}
	if ev.Status != model.EventUpcoming {
		t.Errorf("expected status upcoming, got %s", ev.Status)
	}
	if len(ev.Options) != 2 {
		t.Fatalf("expected 2 options, got %d", len(ev.Options))
	}
	for _, opt := range ev.Options {
		if opt.ID == "" {
			t.Errorf("option %q has no generated id", opt.Name)
		}
	}
	if !rec.seen("event_created") {
		t.Error("expected event_created broadcast")
	}
}

func TestCreateEvent_Validation(t *testing.T) {
	mgr, _, _ := newTestEnv(t)

	cases := []struct {
		name string
		in   lifecycle.EventInput
	}{
		{"missing title", func() lifecycle.EventInput { in := input("", ""); return in }()},
		{"no options", func() lifecycle.EventInput {
			in := input("X", "")
			in.Options = nil
			return in
		}()},
		{"zero odds", func() lifecycle.EventInput {
			in := input("X", "")
			in.Options[0].Odds = decimal.Zero
			return in
		}()},
		{"negative odds", func() lifecycle.EventInput {
			in := input("X", "")
			in.Options[0].Odds = d(-1.5)
			return in
		}()},
		{"unnamed option", func() lifecycle.EventInput {
			in := input("X", "")
			in.Options[0].Name = ""
			return in
		}()},
		{"bad status", input("X", "archived")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := mgr.CreateEvent(context.Background(), tc.in); !errors.Is(err, model.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestUpdateEvent_SettledIsImmutable(t *testing.T) {
	mgr, ms, _ := newTestEnv(t)

	ev, err := mgr.CreateEvent(context.Background(), input("Final", model.EventLive))
	if err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}
	if _, err := ms.UpdateEventStatus(context.Background(), ev.ID, model.EventSettled); err != nil {
		t.Fatalf("failed to mark settled: %v", err)
	}

	_, err = mgr.UpdateEvent(context.Background(), ev.ID, input("Renamed", ""))
	if !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected ErrValidation for settled event, got %v", err)
	}
}

func TestUpdateEvent_KeepsProvidedOptionIDs(t *testing.T) {
	mgr, _, rec := newTestEnv(t)

	ev, err := mgr.CreateEvent(context.Background(), input("Game", model.EventLive))
	if err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}

	in := input("Game", model.EventLive)
	in.Options = []model.EventOption{
		{ID: ev.Options[0].ID, Name: "Yes", Odds: d(2.10)},
		{Name: "Maybe", Odds: d(3.0)},
	}
	updated, err := mgr.UpdateEvent(context.Background(), ev.ID, in)
	if err != nil {
		t.Fatalf("UpdateEvent failed: %v", err)
	}
	if updated.Options[0].ID != ev.Options[0].ID {
		t.Errorf("existing option id must be preserved")
	}
	if updated.Options[1].ID == "" {
		t.Errorf("new option must get a generated id")
	}
	if !rec.seen("event_updated") {
		t.Error("expected event_updated broadcast")
	}
}

func TestDeleteEvent(t *testing.T) {
	mgr, ms, rec := newTestEnv(t)

	ev, err := mgr.CreateEvent(context.Background(), input("Gone", ""))
	if err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}
	if err := mgr.DeleteEvent(context.Background(), ev.ID); err != nil {
		t.Fatalf("DeleteEvent failed: %v", err)
	}
	if _, err := ms.GetEvent(context.Background(), ev.ID); !errors.Is(err, model.ErrEventNotFound) {
		t.Errorf("expected ErrEventNotFound after delete, got %v", err)
	}
	if !rec.seen("event_deleted") {
		t.Error("expected event_deleted broadcast")
	}

	if err := mgr.DeleteEvent(context.Background(), "no-such-event"); !errors.Is(err, model.ErrEventNotFound) {
		t.Errorf("expected ErrEventNotFound for unknown id, got %v", err)
	}
}

// --- SettleEvent ---

func TestSettleEvent_MarksResults(t *testing.T) {
	mgr, _, rec := newTestEnv(t)

	ev, err := mgr.CreateEvent(context.Background(), input("Match", model.EventLive))
	if err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}

	settled, err := mgr.SettleEvent(context.Background(), ev.ID, ev.Options[0].ID)
	if err != nil {
		t.Fatalf("SettleEvent failed: %v", err)
	}
	if settled.Status != model.EventSettled {
		t.Errorf("expected status settled, got %s", settled.Status)
	}
	for _, opt := range settled.Options {
		if opt.Result == nil {
			t.Fatalf("option %q has no result", opt.Name)
		}
		want := opt.ID == ev.Options[0].ID
		if *opt.Result != want {
			t.Errorf("option %q: result=%v want %v", opt.Name, *opt.Result, want)
		}
	}
	if !rec.seen("event_settled") {
		t.Error("expected event_settled broadcast")
	}
}

func TestSettleEvent_Guards(t *testing.T) {
	mgr, ms, _ := newTestEnv(t)

	upcoming, _ := mgr.CreateEvent(context.Background(), input("Early", model.EventUpcoming))
	if _, err := mgr.SettleEvent(context.Background(), upcoming.ID, upcoming.Options[0].ID); !errors.Is(err, model.ErrEventNotSettleable) {
		t.Errorf("upcoming: expected ErrEventNotSettleable, got %v", err)
	}

	live, _ := mgr.CreateEvent(context.Background(), input("Live", model.EventLive))
	if _, err := mgr.SettleEvent(context.Background(), live.ID, "no-such-option"); !errors.Is(err, model.ErrOptionNotFound) {
		t.Errorf("expected ErrOptionNotFound, got %v", err)
	}

	// Settled by the payout path but results not yet marked: still allowed.
	closed, _ := mgr.CreateEvent(context.Background(), input("Closed", model.EventClosed))
	if _, err := ms.UpdateEventStatus(context.Background(), closed.ID, model.EventSettled); err != nil {
		t.Fatalf("failed to mark settled: %v", err)
	}
	if _, err := mgr.SettleEvent(context.Background(), closed.ID, closed.Options[0].ID); err != nil {
		t.Errorf("settled-without-results must be accepted, got %v", err)
	}

	// Results already marked: re-settling is rejected.
	if _, err := mgr.SettleEvent(context.Background(), closed.ID, closed.Options[0].ID); !errors.Is(err, model.ErrEventNotSettleable) {
		t.Errorf("re-settle: expected ErrEventNotSettleable, got %v", err)
	}
}

// --- External ingestion ---

// stubProvider returns a fixed batch, failing when broken is set.
type stubProvider struct {
	events []feed.ExternalEvent
	broken bool
}

func (s *stubProvider) FetchEvents(context.Context) ([]feed.ExternalEvent, error) {
	if s.broken {
		return nil, errors.New("upstream unavailable")
	}
	return s.events, nil
}

func TestFetchExternalEvents_DedupesByTitle(t *testing.T) {
	ms := store.NewMemoryStore()
	now := time.Now().UTC()
	provider := &stubProvider{events: []feed.ExternalEvent{
		{
			Title:     "Chiefs vs Ravens",
			Category:  "sports",
			StartTime: now,
			EndTime:   now.Add(3 * time.Hour),
			Options: []model.EventOption{
				{Name: "Chiefs Win", Odds: d(1.85)},
				{Name: "Ravens Win", Odds: d(1.95)},
			},
		},
	}}
	mgr := lifecycle.New(ms, &recordingBroadcaster{}, provider)

	mgr.FetchExternalEvents(context.Background())
	mgr.FetchExternalEvents(context.Background())

	events, err := ms.ListEvents(context.Background())
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event after duplicate ingestion, got %d", len(events))
	}
	if events[0].Status != model.EventUpcoming {
		t.Errorf("ingested events must be upcoming, got %s", events[0].Status)
	}
}

func TestFetchExternalEvents_SwallowsProviderFailure(t *testing.T) {
	ms := store.NewMemoryStore()
	mgr := lifecycle.New(ms, &recordingBroadcaster{}, &stubProvider{broken: true})

	// Must not panic and must not create anything.
	mgr.FetchExternalEvents(context.Background())

	events, err := ms.ListEvents(context.Background())
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
}

func TestStaticProvider_FixturesAreValid(t *testing.T) {
	ms := store.NewMemoryStore()
	mgr := lifecycle.New(ms, &recordingBroadcaster{}, feed.NewStaticProvider())

	mgr.FetchExternalEvents(context.Background())

	events, err := ms.ListEvents(context.Background())
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("expected static fixtures to be ingested")
	}
	for _, ev := range events {
		if len(ev.Options) == 0 {
			t.Errorf("event %q has no options", ev.Title)
		}
		for _, opt := range ev.Options {
			if opt.Odds.LessThanOrEqual(decimal.Zero) {
				t.Errorf("event %q option %q has non-positive odds", ev.Title, opt.Name)
			}
		}
	}
}
