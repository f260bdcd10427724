package memory

import (
	"context"
	"strconv"
	"sync"

	"loyaltykit/core"
)

// Store is a concurrent in-memory repository.
type Store struct {
	mu           sync.Mutex
	values       map[core.Key]string
	lists        map[core.Key][]string
	participants []core.ParticipantID
	seen         map[core.ParticipantID]struct{}
}

func New() *Store {
	return &Store{
		values: map[core.Key]string{},
		lists:  map[core.Key][]string{},
		seen:   map[core.ParticipantID]struct{}{},
	}
}

// track records first sight of a participant. Caller holds mu.
func (s *Store) track(p core.ParticipantID) {
	if _, ok := s.seen[p]; ok {
		return
	}
	s.seen[p] = struct{}{}
	s.participants = append(s.participants, p)
}

func (s *Store) Get(_ context.Context, key core.Key) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return "", core.ErrNotFound
	}
	return v, nil
}

func (s *Store) Set(_ context.Context, key core.Key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	s.track(key.Participant)
	return nil
}

func (s *Store) IncrBy(_ context.Context, key core.Key, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var current int64
	if raw, ok := s.values[key]; ok {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, err
		}
		current = v
	}
	next, err := core.AddSafe(current, delta)
	if err != nil {
		return 0, err
	}
	s.values[key] = strconv.FormatInt(next, 10)
	s.track(key.Participant)
	return next, nil
}

func (s *Store) Append(_ context.Context, key core.Key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[key] = append(s.lists[key], value)
	s.track(key.Participant)
	return nil
}

func (s *Store) Range(_ context.Context, key core.Key, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.lists[key]
	if limit >= 0 && limit < len(list) {
		list = list[len(list)-limit:]
	}
	return append([]string(nil), list...), nil
}

// Participants returns ids in first-write order.
func (s *Store) Participants(_ context.Context) ([]core.ParticipantID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ParticipantID(nil), s.participants...), nil
}

var _ interface {
	Get(context.Context, core.Key) (string, error)
	Set(context.Context, core.Key, string) error
	IncrBy(context.Context, core.Key, int64) (int64, error)
	Append(context.Context, core.Key, string) error
	Range(context.Context, core.Key, int) ([]string, error)
	Participants(context.Context) ([]core.ParticipantID, error)
} = (*Store)(nil)
