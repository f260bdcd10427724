package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by stores for keys that were never written.
var ErrNotFound = errors.New("key not found")

// ErrInvalidTrack is returned for tracks other than buyer and seller.
var ErrInvalidTrack = errors.New("invalid track")

// ParticipantID uniquely identifies a marketplace participant.
type ParticipantID string

// Track is one of the two independent participant roles.
type Track string

const (
	TrackBuyer  Track = "buyer"
	TrackSeller Track = "seller"
)

// Tracks lists every track in a stable order.
var Tracks = []Track{TrackBuyer, TrackSeller}

// ParseTrack validates a raw track name.
func ParseTrack(s string) (Track, error) {
	t := Track(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case TrackBuyer, TrackSeller:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTrack, s)
}

// Field names a persisted value of a participant.
type Field string

const (
	FieldPoints        Field = "points"
	FieldHistory       Field = "history"
	FieldStats         Field = "stats"
	FieldAchievements  Field = "achievements"
	FieldNotifications Field = "notifications"
	FieldProfile       Field = "profile"
)

// Key addresses one persisted value. Track is empty for track-independent
// fields (notifications, profile).
type Key struct {
	Participant ParticipantID
	Track       Track
	Field       Field
}

// TrackKey builds a key for a per-track field.
func TrackKey(p ParticipantID, t Track, f Field) Key {
	return Key{Participant: p, Track: t, Field: f}
}

// SharedKey builds a key for a track-independent field.
func SharedKey(p ParticipantID, f Field) Key {
	return Key{Participant: p, Field: f}
}

func (k Key) String() string {
	if k.Track == "" {
		return fmt.Sprintf("%s/%s", k.Participant, k.Field)
	}
	return fmt.Sprintf("%s/%s/%s", k.Participant, k.Track, k.Field)
}

// LedgerEntry is one append-only history record, one per processed event.
type LedgerEntry struct {
	Timestamp      time.Time       `json:"timestamp"`
	PointsAwarded  int64           `json:"pointsAwarded"`
	MonetaryAmount decimal.Decimal `json:"monetaryAmount"`
}

// ParticipantStats is the aggregate view achievements are computed from.
// TotalSpentOrEarned is folded from the ledger; the counters are carried
// from event to event.
type ParticipantStats struct {
	TotalPoints        int64           `json:"totalPoints"`
	TotalSpentOrEarned decimal.Decimal `json:"totalSpentOrEarned"`
	OrdersCount        int64           `json:"ordersCount"`
	AverageRating      float64         `json:"averageRating"`
	FastDeliveryCount  int64           `json:"fastDeliveryCount"`
	RatingsCount       int64           `json:"ratingsCount"`
	RatingsTotal       int64           `json:"ratingsTotal"`
}

// Profile holds the ranking dimensions of a participant.
type Profile struct {
	Country string `json:"country"`
	City    string `json:"city"`
}

// AddSafe adds delta to base ensuring no signed overflow occurs.
func AddSafe(base int64, delta int64) (int64, error) {
	if (delta > 0 && base > math.MaxInt64-delta) || (delta < 0 && base < math.MinInt64-delta) {
		return 0, errors.New("integer overflow in AddSafe")
	}
	return base + delta, nil
}

// NormalizeParticipantID trims and lowercases participant identifiers.
func NormalizeParticipantID(id ParticipantID) (ParticipantID, error) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return "", errors.New("empty participant id")
	}
	for _, r := range s {
		if r == ':' || r == '/' {
			return "", errors.New("invalid participant id")
		}
	}
	return ParticipantID(strings.ToLower(s)), nil
}
