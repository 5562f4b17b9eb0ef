// Package daily emits the PPS/PPLNS recommendation at most once per calendar day.
package daily

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"pool-block-alerts/internal/state"
)

// DateLayout is the persisted marker format.
const DateLayout = "2006-01-02"

// Window is the time-of-day range in which the recommendation may fire.
type Window struct {
	Hour int
	Span time.Duration
}

// Contains reports whether now falls in [Hour:00, Hour:00+Span) of its own day.
func (w Window) Contains(now time.Time) bool {
	start := time.Date(now.Year(), now.Month(), now.Day(), w.Hour, 0, 0, 0, now.Location())
	return !now.Before(start) && now.Before(start.Add(w.Span))
}

// ShouldSend decides whether to fire given the last sent marker. When it
// returns true the second value is the marker to persist after sending.
func ShouldSend(now time.Time, w Window, lastSent string) (bool, string) {
	today := now.Format(DateLayout)
	if !w.Contains(now) || lastSent == today {
		return false, lastSent
	}
	return true, today
}

// Gate couples ShouldSend with a persisted marker.
type Gate struct {
	store  state.Store
	key    string
	window Window
	loc    *time.Location
	logger zerolog.Logger
}

// NewGate builds a gate. A nil location means UTC.
func NewGate(store state.Store, window Window, loc *time.Location, logger zerolog.Logger) *Gate {
	if loc == nil {
		loc = time.UTC
	}
	return &Gate{
		store:  store,
		key:    state.KeyLastRecommendationDate,
		window: window,
		loc:    loc,
		logger: logger.With().Str("component", "daily_gate").Logger(),
	}
}

// Due reports whether a recommendation would be sent at now.
func (g *Gate) Due(ctx context.Context, now time.Time) (bool, error) {
	last, err := g.store.GetString(ctx, g.key, "")
	if err != nil {
		return false, fmt.Errorf("read recommendation marker: %w", err)
	}
	due, _ := ShouldSend(now.In(g.loc), g.window, last)
	return due, nil
}

// Fire invokes send when due and records today's date once send succeeds.
// It returns whether send was called successfully.
func (g *Gate) Fire(ctx context.Context, now time.Time, send func(ctx context.Context) error) (bool, error) {
	local := now.In(g.loc)
	last, err := g.store.GetString(ctx, g.key, "")
	if err != nil {
		return false, fmt.Errorf("read recommendation marker: %w", err)
	}

	due, marker := ShouldSend(local, g.window, last)
	if !due {
		g.logger.Debug().Str("last_sent", last).Time("now", local).Msg("recommendation not due")
		return false, nil
	}

	if err := send(ctx); err != nil {
		return false, fmt.Errorf("send recommendation: %w", err)
	}
	if err := g.store.PutString(ctx, g.key, marker); err != nil {
		return true, fmt.Errorf("write recommendation marker: %w", err)
	}
	g.logger.Info().Str("date", marker).Msg("daily recommendation sent")
	return true, nil
}
