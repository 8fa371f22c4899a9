package feed

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opinix/trading-engine/internal/model"
)

// StaticProvider serves a fixed set of sports and market fixtures. Used for
// development and demos when no upstream feed is configured.
type StaticProvider struct{}

// NewStaticProvider creates a StaticProvider.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{}
}

func (p *StaticProvider) FetchEvents(_ context.Context) ([]ExternalEvent, error) {
	now := time.Now().UTC()
	return []ExternalEvent{
		{
			ID:          "1",
			Title:       "NFL: Chiefs vs. Ravens",
			Description: "NFL Week 1 matchup between Kansas City Chiefs and Baltimore Ravens",
			Category:    "Football",
			StartTime:   now.Add(24 * time.Hour),
			EndTime:     now.Add(28 * time.Hour),
			Options: []model.EventOption{
				{Name: "Chiefs Win", Odds: decimal.NewFromFloat(1.85)},
				{Name: "Ravens Win", Odds: decimal.NewFromFloat(1.95)},
			},
		},
		{
			ID:          "2",
			Title:       "NBA: Lakers vs. Celtics",
			Description: "NBA Regular Season game between Los Angeles Lakers and Boston Celtics",
			Category:    "Basketball",
			StartTime:   now.Add(48 * time.Hour),
			EndTime:     now.Add(52 * time.Hour),
			Options: []model.EventOption{
				{Name: "Lakers Win", Odds: decimal.NewFromFloat(2.10)},
				{Name: "Celtics Win", Odds: decimal.NewFromFloat(1.75)},
			},
		},
		{
			ID:          "3",
			Title:       "Presidential Election 2024",
			Description: "United States Presidential Election 2024",
			Category:    "Politics",
			StartTime:   now.Add(90 * 24 * time.Hour),
			EndTime:     now.Add(91 * 24 * time.Hour),
			Options: []model.EventOption{
				{Name: "Democratic Party", Odds: decimal.NewFromFloat(1.90)},
				{Name: "Republican Party", Odds: decimal.NewFromFloat(1.90)},
				{Name: "Other", Odds: decimal.NewFromFloat(15.0)},
			},
		},
		{
			ID:          "4",
			Title:       "Bitcoin Price Movement",
			Description: "Bitcoin price at end of month",
			Category:    "Cryptocurrency",
			StartTime:   now,
			EndTime:     now.Add(30 * 24 * time.Hour),
			Options: []model.EventOption{
				{Name: "Above $50,000", Odds: decimal.NewFromFloat(2.20)},
				{Name: "Below $50,000", Odds: decimal.NewFromFloat(1.70)},
			},
		},
	}, nil
}
