package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"loyaltykit/core"
)

// joinErrs folds collected messages into one error, nil when there are none.
func joinErrs(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.New(strings.Join(errs, "; "))
}

func oneOf(field, value string, allowed ...string) []string {
	if slices.Contains(allowed, value) {
		return nil
	}
	return []string{fmt.Sprintf("%s must be one of: %s", field, strings.Join(allowed, ", "))}
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	var errs []string
	if s.Address == "" {
		errs = append(errs, "address cannot be empty")
	}
	for name, d := range map[string]time.Duration{
		"read_timeout":        s.ReadTimeout,
		"write_timeout":       s.WriteTimeout,
		"idle_timeout":        s.IdleTimeout,
		"read_header_timeout": s.ReadHeaderTimeout,
		"shutdown_timeout":    s.ShutdownTimeout,
	} {
		if d <= 0 {
			errs = append(errs, name+" must be positive")
		}
	}
	slices.Sort(errs)
	return joinErrs(errs)
}

// Validate validates storage configuration
func (s *StorageConfig) Validate() error {
	errs := oneOf("adapter", s.Adapter, "memory", "redis", "sql", "file")
	switch s.Adapter {
	case "file":
		if err := s.File.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("file config: %v", err))
		}
	case "sql":
		if err := s.SQL.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("sql config: %v", err))
		}
	case "redis":
		if s.Redis.Addr == "" {
			errs = append(errs, "redis config: addr cannot be empty")
		}
	}
	return joinErrs(errs)
}

// Validate validates file storage configuration
func (f *FileConfig) Validate() error {
	if f.Path == "" {
		return errors.New("path cannot be empty")
	}
	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	var errs []string
	errs = append(errs, oneOf("level", l.Level, "debug", "info", "warn", "error")...)
	errs = append(errs, oneOf("format", l.Format, "json", "text")...)
	errs = append(errs, oneOf("output", l.Output, "stdout", "stderr")...)
	return joinErrs(errs)
}

// Validate validates metrics configuration
func (m *MetricsConfig) Validate() error {
	if !m.Enabled {
		return nil
	}
	var errs []string
	if m.Address == "" {
		errs = append(errs, "address cannot be empty when metrics are enabled")
	}
	if m.Path == "" {
		errs = append(errs, "path cannot be empty when metrics are enabled")
	}
	return joinErrs(errs)
}

// Validate validates security settings.
func (s SecurityConfig) Validate() error {
	var errs []string
	if s.EnableRateLimit {
		if s.RateLimit.RequestsPerMinute <= 0 {
			errs = append(errs, "rate_limit.requests_per_minute must be > 0 when rate limiting is enabled")
		}
		if s.RateLimit.BurstSize <= 0 {
			errs = append(errs, "rate_limit.burst_size must be > 0 when rate limiting is enabled")
		}
	}
	for i, key := range s.APIKeys {
		if strings.TrimSpace(key) == "" {
			errs = append(errs, fmt.Sprintf("api_keys[%d] is empty", i))
		}
	}
	return joinErrs(errs)
}

// Validate checks that the timezone resolves.
func (r RulesConfig) Validate() error {
	if _, err := r.Location(); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	return nil
}

// Validate validates notification fan-out configuration
func (n *NotificationsConfig) Validate() error {
	var errs []string

	if n.DispatchMode != "" {
		errs = append(errs, oneOf("dispatch_mode", n.DispatchMode, "sync", "async")...)
	}

	if n.QueueLimit < 0 {
		errs = append(errs, "queue_limit cannot be negative")
	}

	for i, endpoint := range n.WebhookEndpoints {
		u, err := url.Parse(strings.TrimSpace(endpoint))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("webhook_endpoints[%d] must be an http(s) URL", i))
		}
	}

	for i, kind := range n.WebhookKinds {
		switch core.NotificationKind(kind) {
		case core.NotificationSuccess, core.NotificationInfo, core.NotificationError, core.NotificationWarning:
		default:
			errs = append(errs, fmt.Sprintf("webhook_kinds[%d] %q is not a notification kind", i, kind))
		}
	}

	return joinErrs(errs)
}

// Validate validates tracing configuration
func (t *TracingConfig) Validate() error {
	var errs []string

	if t.Enabled {
		if t.Endpoint == "" {
			errs = append(errs, "endpoint cannot be empty when tracing is enabled")
		}
		if t.ServiceName == "" {
			errs = append(errs, "service_name cannot be empty when tracing is enabled")
		}
	}

	if t.SampleRatio < 0 || t.SampleRatio > 1 {
		errs = append(errs, "sample_ratio must be within [0, 1]")
	}

	return joinErrs(errs)
}
