package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"loyaltykit/core"
)

// Store persists every participant value to a single JSON file.
// Suitable for demos and small deployments.
type Store struct {
	path string
	mu   sync.Mutex
	// in-memory cache for speed
	data document
}

// document is the on-disk layout. Keys are core.Key.String().
type document struct {
	Participants []core.ParticipantID `json:"participants"`
	Values       map[string]string    `json:"values"`
	Lists        map[string][]string  `json:"lists"`
}

func New(path string) (*Store, error) {
	s := &Store{path: path, data: document{Values: map[string]string{}, Lists: map[string][]string{}}}
	if err := s.load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	if doc.Values != nil {
		s.data.Values = doc.Values
	}
	if doc.Lists != nil {
		s.data.Lists = doc.Lists
	}
	s.data.Participants = doc.Participants
	return nil
}

func (s *Store) persist() error {
	tmp := s.path + ".tmp"
	b, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) track(p core.ParticipantID) {
	for _, id := range s.data.Participants {
		if id == p {
			return
		}
	}
	s.data.Participants = append(s.data.Participants, p)
}

func (s *Store) Get(_ context.Context, key core.Key) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data.Values[key.String()]
	if !ok {
		return "", core.ErrNotFound
	}
	return v, nil
}

func (s *Store) Set(_ context.Context, key core.Key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Values[key.String()] = value
	s.track(key.Participant)
	return s.persist()
}

func (s *Store) IncrBy(_ context.Context, key core.Key, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var current int64
	if raw, ok := s.data.Values[key.String()]; ok {
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
	s.data.Values[key.String()] = strconv.FormatInt(next, 10)
	s.track(key.Participant)
	if err := s.persist(); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *Store) Append(_ context.Context, key core.Key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key.String()
	s.data.Lists[k] = append(s.data.Lists[k], value)
	s.track(key.Participant)
	return s.persist()
}

func (s *Store) Range(_ context.Context, key core.Key, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.data.Lists[key.String()]
	if limit >= 0 && limit < len(list) {
		list = list[len(list)-limit:]
	}
	return append([]string(nil), list...), nil
}

func (s *Store) Participants(_ context.Context) ([]core.ParticipantID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ParticipantID(nil), s.data.Participants...), nil
}
