package engine

import (
	"context"

	"loyaltykit/core"
)

// ErrNotFound is returned by Repository.Get for keys never written.
var ErrNotFound = core.ErrNotFound

// Repository is the durable keyed store behind the engine. Values are text:
// integers in decimal, structured values as JSON.
type Repository interface {
	// Get returns the value stored at key or ErrNotFound.
	Get(ctx context.Context, key core.Key) (string, error)
	Set(ctx context.Context, key core.Key, value string) error
	// IncrBy atomically adds delta to the integer at key (missing counts as
	// zero) and returns the new value.
	IncrBy(ctx context.Context, key core.Key, delta int64) (int64, error)
	// Append adds a value at the end of the ordered sequence at key.
	Append(ctx context.Context, key core.Key, value string) error
	// Range returns the sequence at key, oldest first. A negative limit
	// returns everything, otherwise the newest limit values.
	Range(ctx context.Context, key core.Key, limit int) ([]string, error)
	// Participants lists every participant with stored state.
	Participants(ctx context.Context) ([]core.ParticipantID, error)
}

// Notifier receives notifications. Publish is fire-and-forget.
type Notifier interface {
	Publish(ctx context.Context, n core.Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(context.Context, core.Notification)

func (f NotifierFunc) Publish(ctx context.Context, n core.Notification) { f(ctx, n) }
