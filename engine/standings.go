package engine

import (
	"context"
	"log/slog"
	"time"

	"loyaltykit/core"
	"loyaltykit/ranking"
	"loyaltykit/refresh"
)

// StandingsSource yields the ranking input for a track.
type StandingsSource interface {
	Standings(ctx context.Context, t core.Track) ([]ranking.Participant, error)
}

type standingsByTrack map[core.Track][]ranking.Participant

// StandingsCache serves ranking input from a snapshot refreshed on an
// interval. Until the first load succeeds it reads through to the service.
type StandingsCache struct {
	live StandingsSource
	loop *refresh.Loop[standingsByTrack]
}

func NewStandingsCache(live StandingsSource, interval time.Duration, logger *slog.Logger) *StandingsCache {
	load := func(ctx context.Context) (standingsByTrack, error) {
		out := make(standingsByTrack, len(core.Tracks))
		for _, t := range core.Tracks {
			ps, err := live.Standings(ctx, t)
			if err != nil {
				return nil, err
			}
			out[t] = ps
		}
		return out, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	loop := refresh.New[standingsByTrack](load, interval, refresh.WithLogger(logger), refresh.WithName("standings"))
	loop.OnUpdate(func(s standingsByTrack) {
		logger.Debug("standings refreshed",
			"buyers", len(s[core.TrackBuyer]), "sellers", len(s[core.TrackSeller]))
	})
	return &StandingsCache{live: live, loop: loop}
}

// Start begins polling. It returns immediately.
func (c *StandingsCache) Start(ctx context.Context) { c.loop.Start(ctx) }

// Stop halts polling and waits for an in-flight load.
func (c *StandingsCache) Stop() { c.loop.Stop() }

// Refresh reloads the snapshot now.
func (c *StandingsCache) Refresh(ctx context.Context) error { return c.loop.Refresh(ctx) }

// LoadedAt reports when the current snapshot was taken.
func (c *StandingsCache) LoadedAt() (time.Time, bool) {
	_, at, ok := c.loop.Latest()
	return at, ok
}

func (c *StandingsCache) Standings(ctx context.Context, t core.Track) ([]ranking.Participant, error) {
	if snap, _, ok := c.loop.Latest(); ok {
		return snap[t], nil
	}
	return c.live.Standings(ctx, t)
}
