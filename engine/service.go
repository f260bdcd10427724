package engine

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"loyaltykit/core"
	"loyaltykit/ranking"
)

// Service wires storage, the notification bus and the ruleset into the
// query and ingest surface used by transports.
type Service struct {
	repo  Repository
	bus   *EventBus
	rules core.Ruleset
	proc  *Processor
}

func NewService(repo Repository, bus *EventBus, rules core.Ruleset, opts ...ProcessorOption) *Service {
	if repo == nil || bus == nil {
		panic("NewService requires non-nil repository and bus")
	}
	return &Service{
		repo:  repo,
		bus:   bus,
		rules: rules,
		proc:  NewProcessor(repo, bus, rules, opts...),
	}
}

// Rules returns the active ruleset.
func (s *Service) Rules() core.Ruleset { return s.rules }

// Subscribe registers a handler for a notification kind ("" for all).
func (s *Service) Subscribe(kind core.NotificationKind, handler func(context.Context, core.Notification)) func() {
	return s.bus.Subscribe(kind, handler)
}

// Ingest records one event for a participant track.
func (s *Service) Ingest(ctx context.Context, p core.ParticipantID, t core.Track, e core.Event) (core.GamificationStats, error) {
	snap, err := s.proc.Ingest(ctx, p, t, e)
	if err != nil {
		return core.GamificationStats{}, err
	}
	return s.rules.View(snap, s.proc.clock(), s.proc.loc), nil
}

// Stats returns the consumer view of a participant track.
func (s *Service) Stats(ctx context.Context, p core.ParticipantID, t core.Track) (core.GamificationStats, error) {
	id, err := core.NormalizeParticipantID(p)
	if err != nil {
		return core.GamificationStats{}, err
	}
	snap, err := s.proc.Snapshot(ctx, id, t)
	if err != nil {
		return core.GamificationStats{}, err
	}
	return s.rules.View(snap, s.proc.clock(), s.proc.loc), nil
}

// SetProfile stores the ranking dimensions of a participant.
func (s *Service) SetProfile(ctx context.Context, p core.ParticipantID, prof core.Profile) error {
	id, err := core.NormalizeParticipantID(p)
	if err != nil {
		return err
	}
	prof.Country = strings.ToUpper(strings.TrimSpace(prof.Country))
	prof.City = strings.TrimSpace(prof.City)
	raw, err := encodeJSON(prof)
	if err != nil {
		return err
	}
	return s.repo.Set(ctx, core.SharedKey(id, core.FieldProfile), raw)
}

func (s *Service) Profile(ctx context.Context, p core.ParticipantID) (core.Profile, error) {
	id, err := core.NormalizeParticipantID(p)
	if err != nil {
		return core.Profile{}, err
	}
	return loadProfile(ctx, s.repo, id)
}

// Notifications returns the newest limit queued notifications, oldest first.
// Entries that no longer decode are skipped.
func (s *Service) Notifications(ctx context.Context, p core.ParticipantID, limit int) ([]core.Notification, error) {
	id, err := core.NormalizeParticipantID(p)
	if err != nil {
		return nil, err
	}
	raw, err := s.repo.Range(ctx, core.SharedKey(id, core.FieldNotifications), limit)
	if err != nil {
		return nil, err
	}
	out := make([]core.Notification, 0, len(raw))
	for _, r := range raw {
		var n core.Notification
		if err := json.Unmarshal([]byte(r), &n); err != nil {
			s.proc.logger.Warn("skipping malformed notification", "participant", id, "error", err)
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// Standings reads the points total and profile of every participant that
// has state on track t. Participants are returned in repository order.
func (s *Service) Standings(ctx context.Context, t core.Track) ([]ranking.Participant, error) {
	ids, err := s.repo.Participants(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ranking.Participant, 0, len(ids))
	for _, id := range ids {
		raw, err := s.repo.Get(ctx, core.TrackKey(id, t, core.FieldPoints))
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		points, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.proc.logger.Warn("skipping malformed points", "participant", id, "track", t, "error", err)
			continue
		}
		prof, err := loadProfile(ctx, s.repo, id)
		if err != nil {
			if !errors.Is(err, core.ErrMalformedState) {
				return nil, err
			}
			prof = core.Profile{}
		}
		out = append(out, ranking.Participant{ID: id, Points: points, Country: prof.Country, City: prof.City})
	}
	return out, nil
}

// Close stops the bus workers.
func (s *Service) Close() { s.bus.Close() }
