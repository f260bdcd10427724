package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"loyaltykit/core"
)

func TestEventBusSync(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	count, all := 0, 0
	bus.Subscribe(core.NotificationInfo, func(ctx context.Context, n core.Notification) { count++ })
	bus.SubscribeAll(func(ctx context.Context, n core.Notification) { all++ })
	bus.Publish(context.Background(), core.NewPointsAwarded("u", core.TrackBuyer, time.Now(), 1, 1))
	bus.Publish(context.Background(), core.Notification{Kind: core.NotificationError})
	if count != 1 {
		t.Fatalf("want 1 got %d", count)
	}
	if all != 2 {
		t.Fatalf("want 2 got %d", all)
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	count := 0
	unsub := bus.Subscribe(core.NotificationInfo, func(ctx context.Context, n core.Notification) { count++ })
	unsub()
	bus.Publish(context.Background(), core.NewPointsAwarded("u", core.TrackBuyer, time.Now(), 1, 1))
	if count != 0 {
		t.Fatalf("want 0 got %d", count)
	}
}

func TestEventBusAsync(t *testing.T) {
	bus := NewEventBus(DispatchAsync)
	defer bus.Close()
	ch := make(chan struct{})
	bus.Subscribe(core.NotificationInfo, func(ctx context.Context, n core.Notification) { close(ch) })
	bus.Publish(context.Background(), core.NewPointsAwarded("u", core.TrackBuyer, time.Now(), 1, 1))
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}

func TestEventBusAsyncKeepsOrder(t *testing.T) {
	bus := NewEventBus(DispatchAsync)
	var mu sync.Mutex
	var got []core.NotificationKind
	bus.SubscribeAll(func(ctx context.Context, n core.Notification) {
		if n.Kind == core.NotificationSuccess {
			time.Sleep(20 * time.Millisecond)
		}
		mu.Lock()
		got = append(got, n.Kind)
		mu.Unlock()
	})
	ctx := context.Background()
	bus.Publish(ctx, core.Notification{Kind: core.NotificationSuccess})
	bus.Publish(ctx, core.Notification{Kind: core.NotificationInfo})
	bus.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != core.NotificationSuccess || got[1] != core.NotificationInfo {
		t.Fatalf("want [success info] got %v", got)
	}
}

func TestEventBusCloseDrainsQueue(t *testing.T) {
	bus := NewEventBus(DispatchAsync)
	var count atomic.Int64
	bus.SubscribeAll(func(ctx context.Context, n core.Notification) { count.Add(1) })
	for i := 0; i < 3000; i++ {
		bus.Publish(context.Background(), core.Notification{Kind: core.NotificationInfo})
	}
	bus.Close()
	if got := count.Load(); got != 3000 {
		t.Fatalf("want 3000 got %d", got)
	}
	bus.Publish(context.Background(), core.Notification{Kind: core.NotificationInfo})
	bus.Close()
	if got := count.Load(); got != 3000 {
		t.Fatalf("publish after close delivered: %d", got)
	}
}
