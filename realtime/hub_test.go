package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"loyaltykit/core"
)

func TestHubSubscribeBroadcastUnsubscribe(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe(1, Filter{})
	if h.Subscribers() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", h.Subscribers())
	}

	n := core.NewPointsAwarded("bob", core.TrackBuyer, time.Now(), 10, 10)
	h.Broadcast(context.Background(), n)

	received := <-ch
	if received.Participant != "bob" || received.Kind != core.NotificationInfo {
		t.Fatalf("unexpected notification: %+v", received)
	}

	h.Unsubscribe(id)
	_, ok := <-ch
	if ok {
		t.Fatal("expected channel closed after unsubscribe")
	}
}

func TestHubDropsWhenFull(t *testing.T) {
	h := NewHub()
	_, ch := h.Subscribe(1, Filter{})
	for i := 0; i < 3; i++ {
		h.Publish(context.Background(), core.NewPointsAwarded("bob", core.TrackBuyer, time.Now(), int64(i), int64(i)))
	}
	if len(ch) != 1 {
		t.Fatalf("expected buffered 1, got %d", len(ch))
	}
	if h.Dropped() != 2 {
		t.Fatalf("expected 2 dropped, got %d", h.Dropped())
	}
}

func TestHubFiltersSubscribers(t *testing.T) {
	h := NewHub()
	_, bob := h.Subscribe(4, Filter{Participant: "bob"})
	_, errs := h.Subscribe(4, Filter{Kinds: []core.NotificationKind{core.NotificationError}})
	_, all := h.Subscribe(4, Filter{})

	now := time.Now()
	h.Broadcast(context.Background(), core.NewPointsAwarded("alice", core.TrackBuyer, now, 1, 1))
	h.Broadcast(context.Background(), core.NewPointsAwarded("bob", core.TrackBuyer, now, 2, 2))
	h.Broadcast(context.Background(), core.Notification{Participant: "carl", Kind: core.NotificationError})

	if len(bob) != 1 || (<-bob).Participant != "bob" {
		t.Fatal("participant filter leaked other participants")
	}
	if len(errs) != 1 || (<-errs).Kind != core.NotificationError {
		t.Fatal("kind filter leaked other kinds")
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 for unfiltered subscriber, got %d", len(all))
	}
	if h.Dropped() != 0 {
		t.Fatalf("filtered notifications counted as dropped: %d", h.Dropped())
	}
}

func TestMarshalJSON(t *testing.T) {
	n := core.NewLevelChanged("alice", core.TrackSeller, time.Now(), core.DefaultSellerLevels[0], core.DefaultSellerLevels[1], 2000)
	b := MarshalJSON(n)
	var out core.Notification
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Level != core.DefaultSellerLevels[1].Name || out.Kind != core.NotificationSuccess {
		t.Fatalf("unexpected notification: %+v", out)
	}
}
