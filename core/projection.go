package core

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrMalformedState marks persisted values that could not be parsed.
var ErrMalformedState = errors.New("malformed persisted state")

// Snapshot is the derived state of one participant on one track.
type Snapshot struct {
	Participant  ParticipantID    `json:"participant"`
	Track        Track            `json:"track"`
	Points       int64            `json:"points"`
	History      []LedgerEntry    `json:"history"`
	Stats        ParticipantStats `json:"stats"`
	Achievements []Achievement    `json:"achievements"`
}

// DefaultSnapshot is the state of a participant with no recorded activity:
// zero points, empty history and the catalog at zero progress.
func (r Ruleset) DefaultSnapshot(p ParticipantID, t Track) Snapshot {
	return Snapshot{
		Participant:  p,
		Track:        t,
		History:      []LedgerEntry{},
		Stats:        ParticipantStats{TotalSpentOrEarned: decimal.Zero},
		Achievements: r.CatalogFor(t).Initial(),
	}
}

// Transition describes what one event did to a snapshot.
type Transition struct {
	Delta         int64
	Entry         LedgerEntry
	Before        Level
	After         Level
	LevelChanged  bool
	Notifications []Notification
	// Fault is set when the event scored zero because a required field was
	// missing.
	Fault string
}

// Project applies one event to base and returns the next snapshot. base is
// not modified. Notifications are ordered: scoring fault, tier change, then
// the points delta.
func (r Ruleset) Project(base Snapshot, e Event, now time.Time) (Snapshot, Transition) {
	levels := r.LevelsFor(base.Track)
	delta := ComputePoints(e)
	total := base.Points + delta

	entry := LedgerEntry{Timestamp: now, PointsAwarded: delta, MonetaryAmount: ledgerAmount(e)}
	history := make([]LedgerEntry, 0, len(base.History)+1)
	history = append(history, base.History...)
	history = append(history, entry)

	stats := foldCounters(base.Stats, e)
	stats.TotalPoints = total
	stats.TotalSpentOrEarned = LedgerVolume(history)

	next := Snapshot{
		Participant:  base.Participant,
		Track:        base.Track,
		Points:       total,
		History:      history,
		Stats:        stats,
		Achievements: r.CatalogFor(base.Track).Evaluate(stats),
	}

	tr := Transition{
		Delta:  delta,
		Entry:  entry,
		Before: levels.Current(base.Points),
		After:  levels.Current(total),
	}
	if inc, ok := e.(Incomplete); ok {
		tr.Fault = "missing " + inc.Missing
		tr.Notifications = append(tr.Notifications, NewScoringFault(base.Participant, base.Track, now, inc.Of, tr.Fault))
	}
	if tr.Before.Name != tr.After.Name {
		tr.LevelChanged = true
		tr.Notifications = append(tr.Notifications, NewLevelChanged(base.Participant, base.Track, now, tr.Before, tr.After, total))
	}
	tr.Notifications = append(tr.Notifications, NewPointsAwarded(base.Participant, base.Track, now, delta, total))
	return next, tr
}

func foldCounters(s ParticipantStats, e Event) ParticipantStats {
	switch v := e.(type) {
	case Purchase:
		s.OrdersCount += orders(v.Count)
	case Sale:
		s.OrdersCount += orders(v.Count)
	case Review:
		if ValidRating(v.Rating) {
			s.RatingsCount++
			s.RatingsTotal += int64(v.Rating)
		}
	case Delivery:
		if IsFastDelivery(v.DeliveryTimeMinutes) {
			s.FastDeliveryCount++
		}
	}
	if s.RatingsCount > 0 {
		s.AverageRating = float64(s.RatingsTotal) / float64(s.RatingsCount)
	}
	return s
}

// orders is the number of orders an event closes; a missing count means one.
func orders(count int64) int64 { return max(count, 1) }

// ledgerAmount is the amount recorded for e. Negative amounts score nothing
// and are recorded as zero.
func ledgerAmount(e Event) decimal.Decimal {
	if a := e.MonetaryAmount(); a.IsPositive() {
		return a
	}
	return decimal.Zero
}

// LedgerVolume sums the monetary amounts of a ledger, skipping negative
// entries written before amounts were clamped.
func LedgerVolume(history []LedgerEntry) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range history {
		if e.MonetaryAmount.IsPositive() {
			sum = sum.Add(e.MonetaryAmount)
		}
	}
	return sum
}

// MonthlyPoints sums the points of entries in the calendar month of now,
// evaluated in loc.
func MonthlyPoints(history []LedgerEntry, now time.Time, loc *time.Location) int64 {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)
	var sum int64
	for _, e := range history {
		ts := e.Timestamp.In(loc)
		if ts.Year() == now.Year() && ts.Month() == now.Month() {
			sum += e.PointsAwarded
		}
	}
	return sum
}

// GamificationStats is the consumer-facing view of a snapshot.
type GamificationStats struct {
	Participant       ParticipantID   `json:"participant"`
	Track             Track           `json:"track"`
	Points            int64           `json:"points"`
	Level             Level           `json:"level"`
	NextLevel         *Level          `json:"nextLevel,omitempty"`
	PointsToNextLevel int64           `json:"pointsToNextLevel"`
	MonthlyPoints     int64           `json:"monthlyPoints"`
	TotalSpent        decimal.Decimal `json:"totalSpent"`
	TotalEarnings     decimal.Decimal `json:"totalEarnings"`
	Achievements      []Achievement   `json:"achievements"`
	History           []LedgerEntry   `json:"history"`
}

// View renders the consumer view of s. Buyers report their volume as
// TotalSpent, sellers as TotalEarnings.
func (r Ruleset) View(s Snapshot, now time.Time, loc *time.Location) GamificationStats {
	levels := r.LevelsFor(s.Track)
	v := GamificationStats{
		Participant:       s.Participant,
		Track:             s.Track,
		Points:            s.Points,
		Level:             levels.Current(s.Points),
		PointsToNextLevel: levels.PointsToNext(s.Points),
		MonthlyPoints:     MonthlyPoints(s.History, now, loc),
		TotalSpent:        decimal.Zero,
		TotalEarnings:     decimal.Zero,
		Achievements:      s.Achievements,
		History:           s.History,
	}
	if next, ok := levels.Next(s.Points); ok {
		v.NextLevel = &next
	}
	volume := LedgerVolume(s.History)
	if s.Track == TrackSeller {
		v.TotalEarnings = volume
	} else {
		v.TotalSpent = volume
	}
	return v
}
