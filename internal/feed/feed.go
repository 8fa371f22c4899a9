// Package feed supplies externally sourced events for ingestion. The feed is
// outside the correctness boundary of the engine: providers may fail or
// return garbage and the worst outcome is a missing upcoming event.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/opinix/trading-engine/internal/model"
)

// ExternalEvent is one event as described by the upstream feed.
type ExternalEvent struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Category    string              `json:"category"`
	StartTime   time.Time           `json:"startTime"`
	EndTime     time.Time           `json:"endTime"`
	Options     []model.EventOption `json:"options"`
}

// Provider fetches events from an external source.
type Provider interface {
	FetchEvents(ctx context.Context) ([]ExternalEvent, error)
}

// HTTPProvider reads events from GET {baseURL}/events as a JSON array.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProvider creates a provider against the given base URL.
func NewHTTPProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *HTTPProvider) FetchEvents(ctx context.Context) ([]ExternalEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/events", nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed: fetch events: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed: fetch events: unexpected status %d", resp.StatusCode)
	}

	var events []ExternalEvent
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("feed: decode events: %w", err)
	}
	return events, nil
}

var (
	_ Provider = (*HTTPProvider)(nil)
	_ Provider = (*StaticProvider)(nil)
)
