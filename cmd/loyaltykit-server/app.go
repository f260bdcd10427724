package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"loyaltykit/adapters/jsonfile"
	mem "loyaltykit/adapters/memory"
	redisAdapter "loyaltykit/adapters/redis"
	sqlxAdapter "loyaltykit/adapters/sqlx"
	"loyaltykit/analytics"
	"loyaltykit/api/httpapi"
	"loyaltykit/config"
	"loyaltykit/core"
	"loyaltykit/engine"
	"loyaltykit/gamify"
	"loyaltykit/integrations/webhook"
	"loyaltykit/realtime"
	"loyaltykit/rules"
	"loyaltykit/telemetry"
)

// configFileEnv names an optional JSON or YAML config file.
const configFileEnv = "LOYALTYKIT_CONFIG_FILE"

// App aggregates the assembled server components.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Tracing       telemetry.Shutdown
	Hub           *realtime.Hub
	Repository    engine.Repository
	Metrics       *analytics.Metrics
	Analytics     *analytics.AggregationEngine
	Service       *engine.Service
	Standings     *engine.StandingsCache
	Handler       http.Handler
	Server        *http.Server
	MetricsServer *MetricsServer
}

// MetricsServer serves the realtime analytics counters on their own address.
// Server is nil when metrics are disabled.
type MetricsServer struct{ Server *http.Server }

func provideConfig(ctx context.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case os.Getenv(configFileEnv) != "":
		cfg, err = config.LoadFromFile(os.Getenv(configFileEnv))
	case os.Getenv("LOYALTYKIT_PROFILE") != "":
		cfg, err = config.LoadProfile(os.Getenv("LOYALTYKIT_PROFILE"))
	default:
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if cfg.Environment == config.EnvProduction {
		if err := cfg.LoadSecrets(ctx, config.NewEnvironmentSecretStore()); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg)
}

func provideTracing(ctx context.Context, cfg *config.Config) (telemetry.Shutdown, error) {
	return telemetry.Setup(ctx, cfg.Tracing, string(cfg.Environment))
}

func provideRuleset(cfg *config.Config) (core.Ruleset, error) {
	return rules.Load(cfg.Rules.Path)
}

func provideHub() *realtime.Hub {
	return realtime.NewHub()
}

func provideRepository(ctx context.Context, cfg *config.Config) (engine.Repository, error) {
	return setupStorage(ctx, cfg)
}

func provideMetrics() *analytics.Metrics {
	return analytics.NewMetrics()
}

func provideAnalytics(cfg *config.Config, metrics *analytics.Metrics, logger *slog.Logger) *analytics.AggregationEngine {
	if !cfg.Analytics.Enabled {
		return nil
	}
	interval := cfg.Analytics.AggregationInterval
	if interval <= 0 {
		interval = time.Minute
	}
	return analytics.NewAggregationEngine(metrics, interval, logger)
}

func provideService(cfg *config.Config, logger *slog.Logger, hub *realtime.Hub, repo engine.Repository, ruleset core.Ruleset, metrics *analytics.Metrics) (*engine.Service, error) {
	loc, err := cfg.Rules.Location()
	if err != nil {
		return nil, err
	}
	mode := engine.DispatchSync
	if cfg.Notifications.DispatchMode == "async" {
		mode = engine.DispatchAsync
	}
	opts := []gamify.Option{
		gamify.WithRepository(repo),
		gamify.WithRuleset(ruleset),
		gamify.WithDispatchMode(mode),
		gamify.WithRealtime(hub),
		gamify.WithLogger(logger),
		gamify.WithProcessorOptions(engine.WithLocation(loc)),
	}
	if cfg.Analytics.Enabled || cfg.Metrics.Enabled {
		opts = append(opts, gamify.WithAnalytics(metrics))
	}
	if len(cfg.Notifications.WebhookEndpoints) > 0 {
		kinds := make([]core.NotificationKind, len(cfg.Notifications.WebhookKinds))
		for i, k := range cfg.Notifications.WebhookKinds {
			kinds[i] = core.NotificationKind(k)
		}
		opts = append(opts, gamify.WithWebhook(webhook.New(cfg.Notifications.WebhookEndpoints,
			webhook.WithClient(&http.Client{Timeout: cfg.Notifications.WebhookTimeout}),
			webhook.WithKinds(kinds...),
			webhook.WithLogger(logger),
		)))
	}
	return gamify.New(opts...), nil
}

func provideStandings(cfg *config.Config, svc *engine.Service, logger *slog.Logger) *engine.StandingsCache {
	if cfg.Rankings.RefreshInterval <= 0 {
		return nil
	}
	return engine.NewStandingsCache(svc, cfg.Rankings.RefreshInterval, logger)
}

func provideHandler(svc *engine.Service, hub *realtime.Hub, cfg *config.Config, standings *engine.StandingsCache, agg *analytics.AggregationEngine) http.Handler {
	opts := httpapi.Options{
		PathPrefix:        cfg.Server.PathPrefix,
		AllowCORSOrigin:   cfg.Server.CORSOrigin,
		APIKeys:           cfg.Security.APIKeys,
		RateLimitEnabled:  cfg.Security.EnableRateLimit,
		RateLimitRPM:      cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:    cfg.Security.RateLimit.BurstSize,
		Analytics:         agg,
		NotificationLimit: cfg.Notifications.QueueLimit,
	}
	if standings != nil {
		opts.Standings = standings
	}
	return httpapi.NewMux(svc, hub, opts)
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

func provideMetricsServer(cfg *config.Config, metrics *analytics.Metrics) *MetricsServer {
	if !cfg.Metrics.Enabled {
		return &MetricsServer{}
	}
	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Metrics.Path, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"realtime":      metrics.Realtime(),
			"points_buyer":  metrics.PointsAwardedByTrack(core.TrackBuyer),
			"points_seller": metrics.PointsAwardedByTrack(core.TrackSeller),
			"levels":        metrics.LevelsReached(),
		})
	})
	return &MetricsServer{Server: &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}}
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	var out io.Writer = os.Stdout
	if cfg.Logging.Output == "stderr" {
		out = os.Stderr
	}

	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// convertAttributes converts map[string]string to []slog.Attr.
func convertAttributes(attrs map[string]string) []slog.Attr {
	var result []slog.Attr
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}

// setupStorage creates the appropriate storage adapter based on configuration.
func setupStorage(ctx context.Context, cfg *config.Config) (engine.Repository, error) {
	switch cfg.Storage.Adapter {
	case "memory":
		return mem.New(), nil
	case "redis":
		store, err := redisAdapter.New(cfg.Storage.Redis)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "sql":
		store, err := sqlxAdapter.New(ctx, cfg.Storage.SQL)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "file":
		store, err := jsonfile.New(cfg.Storage.File.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage adapter: %s", cfg.Storage.Adapter)
	}
}
