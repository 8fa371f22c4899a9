package feed

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Ingestor is implemented by the lifecycle manager.
type Ingestor interface {
	FetchExternalEvents(ctx context.Context)
}

// Poller runs external event ingestion on a cron schedule.
type Poller struct {
	cron *cron.Cron
}

// NewPoller schedules ing.FetchExternalEvents on the given cron spec
// (standard five-field format, e.g. "*/15 * * * *").
func NewPoller(spec string, ing Ingestor) (*Poller, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ing.FetchExternalEvents(context.Background())
	})
	if err != nil {
		return nil, err
	}
	slog.Info("feed poller scheduled", "spec", spec)
	return &Poller{cron: c}, nil
}

// Start begins the schedule. Non-blocking.
func (p *Poller) Start() { p.cron.Start() }

// Stop halts the schedule, waiting for a running job to finish.
func (p *Poller) Stop() {
	ctx := p.cron.Stop()
	<-ctx.Done()
}
