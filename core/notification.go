package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotificationKind classifies a notification for display.
type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationInfo    NotificationKind = "info"
	NotificationError   NotificationKind = "error"
	NotificationWarning NotificationKind = "warning"
)

// Notification is a side-channel message emitted by the engine.
// Points, Total and Level are set for machine consumers when relevant.
type Notification struct {
	ID          string           `json:"id"`
	Kind        NotificationKind `json:"kind"`
	Message     string           `json:"message"`
	Participant ParticipantID    `json:"participant"`
	Track       Track            `json:"track,omitempty"`
	Time        time.Time        `json:"time"`
	Points      int64            `json:"points,omitempty"`
	Total       int64            `json:"total,omitempty"`
	Level       string           `json:"level,omitempty"`
}

func newNotification(kind NotificationKind, p ParticipantID, t Track, now time.Time, msg string) Notification {
	return Notification{
		ID:          uuid.NewString(),
		Kind:        kind,
		Message:     msg,
		Participant: p,
		Track:       t,
		Time:        now.UTC(),
	}
}

// NewLevelChanged announces a tier change.
func NewLevelChanged(p ParticipantID, t Track, now time.Time, from, to Level, total int64) Notification {
	n := newNotification(NotificationSuccess, p, t, now, fmt.Sprintf("Nouveau niveau atteint : %s (auparavant %s)", to.Name, from.Name))
	n.Level = to.Name
	n.Total = total
	return n
}

// NewPointsAwarded reports the points delta of one event.
func NewPointsAwarded(p ParticipantID, t Track, now time.Time, delta, total int64) Notification {
	n := newNotification(NotificationInfo, p, t, now, fmt.Sprintf("+%d points gagnés", delta))
	n.Points = delta
	n.Total = total
	return n
}

// NewScoringFault warns that an event was recorded without points.
func NewScoringFault(p ParticipantID, t Track, now time.Time, kind EventKind, fault string) Notification {
	return newNotification(NotificationWarning, p, t, now, fmt.Sprintf("Activité %s enregistrée sans points : %s", kind, fault))
}

// NewIngestFailed reports an event that could not be recorded.
func NewIngestFailed(p ParticipantID, t Track, now time.Time, err error) Notification {
	return newNotification(NotificationError, p, t, now, fmt.Sprintf("Impossible d'enregistrer l'activité : %v", err))
}
