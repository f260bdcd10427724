package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"loyaltykit/core"
)

// Hook receives engine notifications for KPI aggregation. The signature
// matches engine.EventBus handlers.
type Hook interface {
	OnNotification(ctx context.Context, n core.Notification)
}

// Metrics counts engagement, points and tier changes from notifications.
// Days, weeks and months are keyed in UTC.
type Metrics struct {
	mu sync.RWMutex

	// Participant engagement
	dailyActive   map[string]map[core.ParticipantID]struct{}
	weeklyActive  map[string]map[core.ParticipantID]struct{}
	monthlyActive map[string]map[core.ParticipantID]struct{}

	// Points
	pointsByDay   map[string]int64
	pointsByTrack map[core.Track]int64

	// Tier changes
	levelChangesByDay map[string]int64
	levelsReached     map[string]int64 // level name -> count

	failuresByDay map[string]int64

	// Real-time counters (last 24 hours)
	realtimeCounters struct {
		pointsAwarded int64
		levelChanges  int64
		failures      int64
		lastReset     time.Time
	}
}

func NewMetrics() *Metrics {
	m := &Metrics{
		dailyActive:       make(map[string]map[core.ParticipantID]struct{}),
		weeklyActive:      make(map[string]map[core.ParticipantID]struct{}),
		monthlyActive:     make(map[string]map[core.ParticipantID]struct{}),
		pointsByDay:       make(map[string]int64),
		pointsByTrack:     make(map[core.Track]int64),
		levelChangesByDay: make(map[string]int64),
		levelsReached:     make(map[string]int64),
		failuresByDay:     make(map[string]int64),
	}
	m.realtimeCounters.lastReset = time.Now()
	return m
}

func (m *Metrics) OnNotification(_ context.Context, n core.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()

	day := dayKey(n.Time)
	week := getWeekKey(n.Time)
	month := getMonthKey(n.Time)

	switch n.Kind {
	case core.NotificationInfo:
		m.trackEngagement(n.Participant, day, week, month)
		if n.Points > 0 {
			m.pointsByDay[day] += n.Points
			m.pointsByTrack[n.Track] += n.Points
			m.realtimeCounters.pointsAwarded += n.Points
		}
	case core.NotificationSuccess:
		if n.Level != "" {
			m.levelChangesByDay[day]++
			m.levelsReached[n.Level]++
			m.realtimeCounters.levelChanges++
		}
	case core.NotificationError:
		m.failuresByDay[day]++
		m.realtimeCounters.failures++
	}

	// Reset realtime counters if needed (every 24 hours)
	if time.Since(m.realtimeCounters.lastReset) > 24*time.Hour {
		m.realtimeCounters.pointsAwarded = 0
		m.realtimeCounters.levelChanges = 0
		m.realtimeCounters.failures = 0
		m.realtimeCounters.lastReset = time.Now()
	}
}

func (m *Metrics) trackEngagement(p core.ParticipantID, day, week, month string) {
	if m.dailyActive[day] == nil {
		m.dailyActive[day] = make(map[core.ParticipantID]struct{})
	}
	m.dailyActive[day][p] = struct{}{}

	if m.weeklyActive[week] == nil {
		m.weeklyActive[week] = make(map[core.ParticipantID]struct{})
	}
	m.weeklyActive[week][p] = struct{}{}

	if m.monthlyActive[month] == nil {
		m.monthlyActive[month] = make(map[core.ParticipantID]struct{})
	}
	m.monthlyActive[month][p] = struct{}{}
}

// DailyActive returns the number of participants who earned points on day.
func (m *Metrics) DailyActive(day string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.dailyActive[day])
}

func (m *Metrics) WeeklyActive(week string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.weeklyActive[week])
}

func (m *Metrics) MonthlyActive(month string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.monthlyActive[month])
}

func (m *Metrics) PointsAwardedByDay(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pointsByDay[day]
}

func (m *Metrics) PointsAwardedByTrack(t core.Track) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pointsByTrack[t]
}

func (m *Metrics) LevelChangesByDay(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.levelChangesByDay[day]
}

// LevelsReached returns how many times each level was entered.
func (m *Metrics) LevelsReached() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int64, len(m.levelsReached))
	for k, v := range m.levelsReached {
		out[k] = v
	}
	return out
}

func (m *Metrics) FailuresByDay(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.failuresByDay[day]
}

// Realtime holds the counters of the last 24 hours.
type Realtime struct {
	PointsAwarded int64 `json:"points_awarded"`
	LevelChanges  int64 `json:"level_changes"`
	Failures      int64 `json:"failures"`
}

func (m *Metrics) Realtime() Realtime {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Realtime{
		PointsAwarded: m.realtimeCounters.pointsAwarded,
		LevelChanges:  m.realtimeCounters.levelChanges,
		Failures:      m.realtimeCounters.failures,
	}
}

// Helper functions
func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func getWeekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func getMonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
