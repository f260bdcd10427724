package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loyaltykit/core"
	"loyaltykit/ranking"
)

type stubStandings struct {
	rows map[core.Track][]ranking.Participant
	err  error
	hits int
}

func (s *stubStandings) Standings(_ context.Context, t core.Track) ([]ranking.Participant, error) {
	s.hits++
	if s.err != nil {
		return nil, s.err
	}
	return s.rows[t], nil
}

func TestStandingsCacheReadsThroughUntilLoaded(t *testing.T) {
	src := &stubStandings{rows: map[core.Track][]ranking.Participant{
		core.TrackBuyer: {{ID: "a", Points: 10}},
	}}
	c := NewStandingsCache(src, time.Hour, nil)

	got, err := c.Standings(context.Background(), core.TrackBuyer)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, src.hits)
	_, ok := c.LoadedAt()
	assert.False(t, ok)
}

func TestStandingsCacheKeepsSnapshotOnFailure(t *testing.T) {
	src := &stubStandings{rows: map[core.Track][]ranking.Participant{
		core.TrackBuyer:  {{ID: "a", Points: 10}},
		core.TrackSeller: {{ID: "b", Points: 20}},
	}}
	c := NewStandingsCache(src, time.Hour, nil)
	require.NoError(t, c.Refresh(context.Background()))

	src.rows[core.TrackBuyer] = append(src.rows[core.TrackBuyer], ranking.Participant{ID: "c", Points: 5})
	src.err = errors.New("down")
	require.Error(t, c.Refresh(context.Background()))

	hits := src.hits
	got, err := c.Standings(context.Background(), core.TrackBuyer)
	require.NoError(t, err)
	assert.Len(t, got, 1, "served from the last good snapshot")
	assert.Equal(t, hits, src.hits)

	sellers, err := c.Standings(context.Background(), core.TrackSeller)
	require.NoError(t, err)
	assert.EqualValues(t, "b", sellers[0].ID)
}

func TestStandingsCacheStartStop(t *testing.T) {
	src := &stubStandings{rows: map[core.Track][]ranking.Participant{}}
	c := NewStandingsCache(src, 5*time.Millisecond, nil)
	c.Start(context.Background())
	require.Eventually(t, func() bool {
		_, ok := c.LoadedAt()
		return ok
	}, time.Second, time.Millisecond)
	c.Stop()
}
