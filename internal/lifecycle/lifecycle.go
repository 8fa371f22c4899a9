// Package lifecycle manages event records and their status machine
// (upcoming → live → closed → settled), including the result-marking half of
// settlement and ingestion of externally sourced events.
//
// Money never moves here: payouts are the trading engine's job. Marking
// option results and settling balances are two independently triggerable,
// independently idempotent operations against the same event.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/opinix/trading-engine/internal/feed"
	"github.com/opinix/trading-engine/internal/model"
	"github.com/opinix/trading-engine/internal/notify"
	"github.com/opinix/trading-engine/internal/store"
)

// Manager owns event CRUD and status transitions. The broadcaster is
// best-effort; the feed provider may be nil when ingestion is disabled.
type Manager struct {
	store store.Store
	bcast notify.Broadcaster
	feed  feed.Provider
}

// New creates an event lifecycle manager.
func New(st store.Store, bcast notify.Broadcaster, provider feed.Provider) *Manager {
	return &Manager{store: st, bcast: bcast, feed: provider}
}

// --- Reads ---

func (m *Manager) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	return m.store.GetEvent(ctx, id)
}

func (m *Manager) ListEvents(ctx context.Context) ([]model.Event, error) {
	return m.store.ListEvents(ctx)
}

func (m *Manager) ListEventsByCategory(ctx context.Context, category string) ([]model.Event, error) {
	return m.store.ListEventsByCategory(ctx, category)
}

// --- CRUD ---

// EventInput carries the caller-provided fields for event creation/update.
type EventInput struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Category    string              `json:"category"`
	StartTime   time.Time           `json:"start_time"`
	EndTime     time.Time           `json:"end_time"`
	Status      string              `json:"status"`
	Options     []model.EventOption `json:"options"`
}

func validateInput(in EventInput) error {
	if in.Title == "" {
		return fmt.Errorf("%w: title is required", model.ErrValidation)
	}
	if len(in.Options) == 0 {
		return fmt.Errorf("%w: event must have at least one option", model.ErrValidation)
	}
	for _, opt := range in.Options {
		if opt.Name == "" {
			return fmt.Errorf("%w: option name is required", model.ErrValidation)
		}
		if opt.Odds.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("%w: option odds must be greater than 0", model.ErrValidation)
		}
	}
	switch in.Status {
	case "", model.EventUpcoming, model.EventLive, model.EventClosed:
		return nil
	default:
		return fmt.Errorf("%w: invalid event status %q", model.ErrValidation, in.Status)
	}
}

// CreateEvent persists a new event. Options get generated ids; status
// defaults to upcoming. Odds must be positive; zero odds are rejected here
// rather than papered over at settlement time.
func (m *Manager) CreateEvent(ctx context.Context, in EventInput) (*model.Event, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	event := &model.Event{
		ID:          uuid.New().String(),
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		Status:      in.Status,
		Options:     make([]model.EventOption, len(in.Options)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if event.Status == "" {
		event.Status = model.EventUpcoming
	}
	for i, opt := range in.Options {
		event.Options[i] = model.EventOption{
			ID:   uuid.New().String(),
			Name: opt.Name,
			Odds: opt.Odds,
		}
	}

	if err := m.store.CreateEvent(ctx, event); err != nil {
		return nil, err
	}

	slog.Info("event created", "id", event.ID, "title", event.Title, "status", event.Status)
	m.notifyAll("event_created", event)
	return event, nil
}

// UpdateEvent replaces an event's mutable fields. A settled event is
// immutable.
func (m *Manager) UpdateEvent(ctx context.Context, id string, in EventInput) (*model.Event, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	existing, err := m.store.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status == model.EventSettled {
		return nil, fmt.Errorf("%w: settled events cannot be modified", model.ErrValidation)
	}

	existing.Title = in.Title
	existing.Description = in.Description
	existing.Category = in.Category
	existing.StartTime = in.StartTime
	existing.EndTime = in.EndTime
	if in.Status != "" {
		existing.Status = in.Status
	}
	// Carry over option ids where provided so trades keep valid references.
	for i := range in.Options {
		if in.Options[i].ID == "" {
			in.Options[i].ID = uuid.New().String()
		}
	}
	existing.Options = in.Options

	updated, err := m.store.UpdateEvent(ctx, existing)
	if err != nil {
		return nil, err
	}

	slog.Info("event updated", "id", id, "status", updated.Status)
	m.notifyAll("event_updated", updated)
	return updated, nil
}

// DeleteEvent removes an event. Trades referencing it are left in place.
func (m *Manager) DeleteEvent(ctx context.Context, id string) error {
	if err := m.store.DeleteEvent(ctx, id); err != nil {
		return err
	}

	slog.Info("event deleted", "id", id)
	m.notifyAll("event_deleted", map[string]string{"id": id})
	return nil
}

// --- SettleEvent ---

// settledEventPayload is the event + winning option broadcast on settlement.
type settledEventPayload struct {
	*model.Event
	WinningOptionID string `json:"winningOptionId"`
}

// SettleEvent records the outcome on the event: the winning option's result
// becomes true, every other option's false, and the event is marked settled.
// The operation is accepted while the event is live or closed, and also when
// the trading engine already marked it settled but no result has been
// recorded yet. The two settlement halves stay independently triggerable.
func (m *Manager) SettleEvent(ctx context.Context, id, winningOptionID string) (*model.Event, error) {
	event, err := m.store.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}

	switch event.Status {
	case model.EventLive, model.EventClosed:
	case model.EventSettled:
		if event.ResultsMarked() {
			return nil, model.ErrEventNotSettleable
		}
	default:
		return nil, model.ErrEventNotSettleable
	}

	if event.Option(winningOptionID) == nil {
		return nil, model.ErrOptionNotFound
	}

	settled, err := m.store.SetEventResults(ctx, id, winningOptionID)
	if err != nil {
		return nil, err
	}

	slog.Info("event settled", "id", id, "winning_option", winningOptionID)
	m.notifyAll("event_settled", settledEventPayload{
		Event:           settled,
		WinningOptionID: winningOptionID,
	})
	return settled, nil
}

// --- External ingestion ---

// FetchExternalEvents pulls the external feed and creates any event not
// already present, matched by title within the same category, in upcoming
// status. Best effort: failures are logged and swallowed, never surfaced.
func (m *Manager) FetchExternalEvents(ctx context.Context) {
	if m.feed == nil {
		return
	}

	external, err := m.feed.FetchEvents(ctx)
	if err != nil {
		slog.Warn("external feed fetch failed", "err", err)
		return
	}

	created := 0
	for _, ext := range external {
		existing, err := m.store.ListEventsByCategory(ctx, ext.Category)
		if err != nil {
			slog.Warn("external ingest lookup failed", "category", ext.Category, "err", err)
			continue
		}
		known := false
		for i := range existing {
			if existing[i].Title == ext.Title {
				known = true
				break
			}
		}
		if known {
			continue
		}

		if _, err := m.CreateEvent(ctx, EventInput{
			Title:       ext.Title,
			Description: ext.Description,
			Category:    ext.Category,
			StartTime:   ext.StartTime,
			EndTime:     ext.EndTime,
			Status:      model.EventUpcoming,
			Options:     ext.Options,
		}); err != nil {
			slog.Warn("external ingest create failed", "title", ext.Title, "err", err)
			continue
		}
		created++
	}

	if created > 0 {
		slog.Info("external events ingested", "created", created)
	}
}

// notifyAll broadcasts best-effort; failures are logged and discarded.
func (m *Manager) notifyAll(event string, payload any) {
	if err := m.bcast.BroadcastToAll(event, payload); err != nil {
		slog.Debug("broadcast failed", "event", event, "err", err)
	}
}
