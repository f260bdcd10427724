package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"loyaltykit/core"
)

// ErrIngestFailed wraps every fault raised while recording an event.
var ErrIngestFailed = errors.New("ingest failed")

// Processor applies events to persisted participant state.
//
// Ingest calls for the same participant and track are serialized inside the
// process and the points total moves through Repository.IncrBy. Stats and
// achievements are still read-modify-write: two processes ingesting for the
// same participant can lose a stats update.
type Processor struct {
	repo     Repository
	notifier Notifier
	rules    core.Ruleset
	logger   *slog.Logger
	clock    func() time.Time
	loc      *time.Location
	tracer   trace.Tracer
	locks    sync.Map // map[string]*sync.Mutex
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithLogger sets the logger (defaults to slog.Default()).
func WithLogger(l *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock overrides the time source used for ledger timestamps.
func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) {
		if now != nil {
			p.clock = now
		}
	}
}

// WithLocation sets the calendar used for monthly points (defaults to time.Local).
func WithLocation(loc *time.Location) ProcessorOption {
	return func(p *Processor) { p.loc = loc }
}

func NewProcessor(repo Repository, notifier Notifier, rules core.Ruleset, opts ...ProcessorOption) *Processor {
	if repo == nil || notifier == nil {
		panic("NewProcessor requires non-nil repository and notifier")
	}
	p := &Processor{
		repo:     repo,
		notifier: notifier,
		rules:    rules,
		logger:   slog.Default(),
		clock:    time.Now,
		loc:      time.Local,
		tracer:   otel.Tracer("loyaltykit/engine"),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Processor) lock(id core.ParticipantID, t core.Track) func() {
	v, _ := p.locks.LoadOrStore(string(id)+"|"+string(t), &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Snapshot reads the current state of a participant track. Unparseable
// stored values are replaced by the default snapshot and logged.
func (p *Processor) Snapshot(ctx context.Context, id core.ParticipantID, t core.Track) (core.Snapshot, error) {
	t, err := core.ParseTrack(string(t))
	if err != nil {
		return core.Snapshot{}, err
	}
	snap, _, err := p.snapshot(ctx, id, t)
	return snap, err
}

// snapshot is Snapshot without track validation. It also reports the field
// that forced a fallback to the default snapshot.
func (p *Processor) snapshot(ctx context.Context, id core.ParticipantID, t core.Track) (core.Snapshot, core.Field, error) {
	snap, err := stateReader{repo: p.repo, rules: p.rules}.load(ctx, id, t)
	if f, ok := malformedField(err); ok {
		p.logger.Warn("discarding malformed state",
			"participant", id, "track", t, "field", f, "error", err)
		return p.rules.DefaultSnapshot(id, t), f, nil
	}
	return snap, "", err
}

// Ingest records one event: it awards points, appends the ledger, refreshes
// stats and achievements and emits notifications (tier change first, then
// the points delta). On failure an error notification is emitted and the
// returned snapshot is the zero value.
func (p *Processor) Ingest(ctx context.Context, participant core.ParticipantID, t core.Track, e core.Event) (core.Snapshot, error) {
	id, err := core.NormalizeParticipantID(participant)
	if err != nil {
		return core.Snapshot{}, err
	}
	t, err = core.ParseTrack(string(t))
	if err != nil {
		return core.Snapshot{}, err
	}
	if e == nil {
		return core.Snapshot{}, errors.New("nil event")
	}

	ctx, span := p.tracer.Start(ctx, "engine.Ingest", trace.WithAttributes(
		attribute.String("participant", string(id)),
		attribute.String("track", string(t)),
		attribute.String("event", string(e.Kind())),
	))
	defer span.End()

	unlock := p.lock(id, t)
	defer unlock()

	now := p.clock()
	next, tr, err := p.apply(ctx, id, t, e, now)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrIngestFailed, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Error("ingest failed", "participant", id, "track", t, "event", e.Kind(), "error", err)
		p.emit(ctx, core.NewIngestFailed(id, t, now, err))
		return core.Snapshot{}, err
	}

	if tr.Fault != "" {
		p.logger.Warn("event scored zero", "participant", id, "track", t, "event", e.Kind(), "fault", tr.Fault)
	}
	span.SetAttributes(attribute.Int64("delta", tr.Delta), attribute.Int64("total", next.Points))
	if tr.LevelChanged {
		p.logger.Info("level changed", "participant", id, "track", t, "from", tr.Before.Name, "to", tr.After.Name)
	}
	for _, n := range tr.Notifications {
		p.emit(ctx, n)
	}
	return next, nil
}

// apply persists one event. The points total moves first so the projection
// starts from the authoritative total; the ledger append commits the event.
// When a later write fails, the earlier ones are undone so the event leaves
// no trace and can be retried.
func (p *Processor) apply(ctx context.Context, id core.ParticipantID, t core.Track, e core.Event, now time.Time) (next core.Snapshot, tr core.Transition, err error) {
	base, bad, err := p.snapshot(ctx, id, t)
	if err != nil {
		return core.Snapshot{}, core.Transition{}, fmt.Errorf("load state: %w", err)
	}
	pointsKey := core.TrackKey(id, t, core.FieldPoints)
	if bad == core.FieldPoints {
		if err := p.repo.Set(ctx, pointsKey, "0"); err != nil {
			return core.Snapshot{}, core.Transition{}, fmt.Errorf("reset points: %w", err)
		}
	}

	var undo []func()
	defer func() {
		if err == nil {
			return
		}
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}()

	delta := core.ComputePoints(e)
	total, err := p.repo.IncrBy(ctx, pointsKey, delta)
	if err != nil {
		return core.Snapshot{}, core.Transition{}, fmt.Errorf("update points: %w", err)
	}
	undo = append(undo, func() {
		if _, err := p.repo.IncrBy(context.WithoutCancel(ctx), pointsKey, -delta); err != nil {
			p.logger.Error("revert points", "participant", id, "track", t, "delta", delta, "error", err)
		}
	})
	base.Points = total - delta

	next, tr = p.rules.Project(base, e, now)

	if err = p.save(ctx, core.TrackKey(id, t, core.FieldStats), next.Stats, base.Stats, &undo); err != nil {
		return core.Snapshot{}, core.Transition{}, fmt.Errorf("save stats: %w", err)
	}
	if err = p.save(ctx, core.TrackKey(id, t, core.FieldAchievements), next.Achievements, base.Achievements, &undo); err != nil {
		return core.Snapshot{}, core.Transition{}, fmt.Errorf("save achievements: %w", err)
	}
	entry, err := encodeJSON(tr.Entry)
	if err != nil {
		return core.Snapshot{}, core.Transition{}, err
	}
	if err = p.repo.Append(ctx, core.TrackKey(id, t, core.FieldHistory), entry); err != nil {
		return core.Snapshot{}, core.Transition{}, fmt.Errorf("append history: %w", err)
	}
	return next, tr, nil
}

// save writes v at key and registers a write of prev to undo it.
func (p *Processor) save(ctx context.Context, key core.Key, v, prev any, undo *[]func()) error {
	raw, err := encodeJSON(v)
	if err != nil {
		return err
	}
	old, err := encodeJSON(prev)
	if err != nil {
		return err
	}
	if err := p.repo.Set(ctx, key, raw); err != nil {
		return err
	}
	*undo = append(*undo, func() {
		if err := p.repo.Set(context.WithoutCancel(ctx), key, old); err != nil {
			p.logger.Error("revert state", "key", key.String(), "error", err)
		}
	})
	return nil
}

// emit queues n on the participant's notification list and publishes it.
// Queue failures are logged only.
func (p *Processor) emit(ctx context.Context, n core.Notification) {
	if b, err := json.Marshal(n); err == nil {
		if err := p.repo.Append(ctx, core.SharedKey(n.Participant, core.FieldNotifications), string(b)); err != nil {
			p.logger.Warn("queue notification", "participant", n.Participant, "kind", n.Kind, "error", err)
		}
	}
	p.notifier.Publish(ctx, n)
}
