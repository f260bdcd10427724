package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"loyaltykit/core"
)

// AggregationPeriod represents different time periods for aggregation
type AggregationPeriod string

const (
	PeriodDaily   AggregationPeriod = "daily"
	PeriodWeekly  AggregationPeriod = "weekly"
	PeriodMonthly AggregationPeriod = "monthly"
)

// ParsePeriod accepts daily, weekly or monthly.
func ParsePeriod(s string) (AggregationPeriod, bool) {
	switch AggregationPeriod(s) {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return AggregationPeriod(s), true
	}
	return "", false
}

// AggregatedData represents aggregated analytics data
type AggregatedData struct {
	Period    AggregationPeriod `json:"period"`
	Key       string            `json:"key"` // e.g., "2024-01-01" for daily, "2024-W01" for weekly
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time"`

	ActiveParticipants int   `json:"active_participants"`
	PointsAwarded      int64 `json:"points_awarded"`
	LevelChanges       int64 `json:"level_changes"`
	IngestFailures     int64 `json:"ingest_failures"`

	CreatedAt time.Time `json:"created_at"`
}

// AggregationEngine handles periodic aggregation of analytics data
type AggregationEngine struct {
	mu sync.RWMutex

	metrics *Metrics
	logger  *slog.Logger

	aggregations map[AggregationPeriod]map[string]*AggregatedData

	aggregationInterval time.Duration
	lastAggregation     time.Time
}

func NewAggregationEngine(metrics *Metrics, aggregationInterval time.Duration, logger *slog.Logger) *AggregationEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &AggregationEngine{
		metrics: metrics,
		logger:  logger,
		aggregations: map[AggregationPeriod]map[string]*AggregatedData{
			PeriodDaily:   {},
			PeriodWeekly:  {},
			PeriodMonthly: {},
		},
		aggregationInterval: aggregationInterval,
		lastAggregation:     time.Now(),
	}
}

// OnNotification forwards notifications to the underlying metrics
func (ae *AggregationEngine) OnNotification(ctx context.Context, n core.Notification) {
	ae.metrics.OnNotification(ctx, n)
}

// AggregateNow forces an immediate aggregation of all periods
func (ae *AggregationEngine) AggregateNow() {
	ae.AggregateAt(time.Now())
}

// AggregateAt aggregates the day, week and month containing now.
func (ae *AggregationEngine) AggregateAt(now time.Time) {
	ae.mu.Lock()
	defer ae.mu.Unlock()

	now = now.UTC()
	ae.aggregateDaily(now)
	ae.aggregateWeekly(now)
	ae.aggregateMonthly(now)
	ae.lastAggregation = now
}

// sumDays folds the per-day counters of [start, end).
func (ae *AggregationEngine) sumDays(data *AggregatedData) {
	for d := data.StartTime; d.Before(data.EndTime); d = d.AddDate(0, 0, 1) {
		key := dayKey(d)
		data.PointsAwarded += ae.metrics.PointsAwardedByDay(key)
		data.LevelChanges += ae.metrics.LevelChangesByDay(key)
		data.IngestFailures += ae.metrics.FailuresByDay(key)
	}
}

func (ae *AggregationEngine) aggregateDaily(now time.Time) {
	startTime := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	data := &AggregatedData{
		Period:    PeriodDaily,
		Key:       dayKey(now),
		StartTime: startTime,
		EndTime:   startTime.AddDate(0, 0, 1),
		CreatedAt: now,
	}
	data.ActiveParticipants = ae.metrics.DailyActive(data.Key)
	ae.sumDays(data)
	ae.aggregations[PeriodDaily][data.Key] = data
}

// aggregateWeekly aggregates data for the current ISO week
func (ae *AggregationEngine) aggregateWeekly(now time.Time) {
	// Calculate week start (Monday)
	daysSinceMonday := (int(now.Weekday()) + 6) % 7
	startTime := time.Date(now.Year(), now.Month(), now.Day()-daysSinceMonday, 0, 0, 0, 0, time.UTC)
	data := &AggregatedData{
		Period:    PeriodWeekly,
		Key:       getWeekKey(now),
		StartTime: startTime,
		EndTime:   startTime.AddDate(0, 0, 7),
		CreatedAt: now,
	}
	data.ActiveParticipants = ae.metrics.WeeklyActive(data.Key)
	ae.sumDays(data)
	ae.aggregations[PeriodWeekly][data.Key] = data
}

// aggregateMonthly aggregates data for the current month
func (ae *AggregationEngine) aggregateMonthly(now time.Time) {
	startTime := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	data := &AggregatedData{
		Period:    PeriodMonthly,
		Key:       getMonthKey(now),
		StartTime: startTime,
		EndTime:   startTime.AddDate(0, 1, 0),
		CreatedAt: now,
	}
	data.ActiveParticipants = ae.metrics.MonthlyActive(data.Key)
	ae.sumDays(data)
	ae.aggregations[PeriodMonthly][data.Key] = data
}

// GetAggregatedData returns aggregated data for a specific period and key
func (ae *AggregationEngine) GetAggregatedData(period AggregationPeriod, key string) (*AggregatedData, bool) {
	ae.mu.RLock()
	defer ae.mu.RUnlock()
	data, exists := ae.aggregations[period][key]
	return data, exists
}

// GetAllAggregatedData returns all aggregated data for a period, oldest key first
func (ae *AggregationEngine) GetAllAggregatedData(period AggregationPeriod) []*AggregatedData {
	ae.mu.RLock()
	defer ae.mu.RUnlock()
	result := make([]*AggregatedData, 0, len(ae.aggregations[period]))
	for _, data := range ae.aggregations[period] {
		result = append(result, data)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result
}

// Start runs periodic aggregation until ctx is done
func (ae *AggregationEngine) Start(ctx context.Context) {
	ticker := time.NewTicker(ae.aggregationInterval)
	defer ticker.Stop()

	ae.AggregateNow()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ae.AggregateNow()
			ae.logger.Debug("analytics aggregated", "at", ae.lastAggregationTime())
		}
	}
}

func (ae *AggregationEngine) lastAggregationTime() time.Time {
	ae.mu.RLock()
	defer ae.mu.RUnlock()
	return ae.lastAggregation
}

// ExportData exports aggregated data to JSON format
func (ae *AggregationEngine) ExportData(period AggregationPeriod) ([]byte, error) {
	if _, ok := ParsePeriod(string(period)); !ok {
		return nil, fmt.Errorf("unknown period %q", period)
	}
	return json.MarshalIndent(ae.GetAllAggregatedData(period), "", "  ")
}
