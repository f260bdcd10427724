package gamify

import (
	"context"
	"log/slog"

	mem "loyaltykit/adapters/memory"
	"loyaltykit/analytics"
	"loyaltykit/core"
	"loyaltykit/engine"
	"loyaltykit/integrations/webhook"
	"loyaltykit/realtime"
)

// Option configures the loyalty service builder.
type Option func(*config)

type config struct {
	repo     engine.Repository
	mode     engine.DispatchMode
	rules    core.Ruleset
	hub      *realtime.Hub
	sinks    []*webhook.Sink
	hooks    []analytics.Hook
	procOpts []engine.ProcessorOption
}

// WithRepository sets the persistence adapter.
func WithRepository(r engine.Repository) Option { return func(c *config) { c.repo = r } }

// WithRuleset sets the level tables and achievement catalogs.
func WithRuleset(r core.Ruleset) Option { return func(c *config) { c.rules = r } }

// WithDispatchMode selects sync or async notification dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *config) { c.mode = m } }

// WithRealtime wires a realtime hub to receive every notification.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

// WithWebhook forwards notifications to an outbound webhook sink.
func WithWebhook(s *webhook.Sink) Option {
	return func(c *config) {
		if s != nil {
			c.sinks = append(c.sinks, s)
		}
	}
}

// WithAnalytics feeds notifications to an analytics hook.
func WithAnalytics(h analytics.Hook) Option {
	return func(c *config) {
		if h != nil {
			c.hooks = append(c.hooks, h)
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.procOpts = append(c.procOpts, engine.WithLogger(l)) }
}

// WithProcessorOptions passes options through to the event processor.
func WithProcessorOptions(opts ...engine.ProcessorOption) Option {
	return func(c *config) { c.procOpts = append(c.procOpts, opts...) }
}

// New builds a configured Service. If not provided, defaults are used:
//   - repository: in-memory
//   - rules: core.DefaultRuleset
//   - dispatch: sync
func New(opts ...Option) *engine.Service {
	cfg := &config{mode: engine.DispatchSync, rules: core.DefaultRuleset()}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.repo == nil {
		cfg.repo = mem.New()
	}
	bus := engine.NewEventBus(cfg.mode)
	svc := engine.NewService(cfg.repo, bus, cfg.rules, cfg.procOpts...)
	if cfg.hub != nil {
		svc.Subscribe("", cfg.hub.Broadcast)
	}
	for _, s := range cfg.sinks {
		svc.Subscribe("", s.Publish)
	}
	if len(cfg.hooks) > 0 {
		bridge := analytics.NewBridge(cfg.hooks...)
		svc.Subscribe("", func(ctx context.Context, n core.Notification) { bridge.OnNotification(ctx, n) })
	}
	return svc
}
