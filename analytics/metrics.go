package analytics

import (
	"context"

	"loyaltykit/core"
)

// BridgeHook fans one notification source out to multiple hooks.
type BridgeHook struct{ hooks []Hook }

func NewBridge(hooks ...Hook) *BridgeHook { return &BridgeHook{hooks: hooks} }

func (b *BridgeHook) OnNotification(ctx context.Context, n core.Notification) {
	for _, h := range b.hooks {
		h.OnNotification(ctx, n)
	}
}
