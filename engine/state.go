package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"loyaltykit/core"
)

// stateReader decodes the persisted fields of one participant track.
type stateReader struct {
	repo  Repository
	rules core.Ruleset
}

// load reads the snapshot of (p, t). Store failures are returned as is;
// values that do not parse are reported wrapped in core.ErrMalformedState.
func (r stateReader) load(ctx context.Context, p core.ParticipantID, t core.Track) (core.Snapshot, error) {
	snap := r.rules.DefaultSnapshot(p, t)

	raw, err := r.repo.Get(ctx, core.TrackKey(p, t, core.FieldPoints))
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return core.Snapshot{}, err
	default:
		points, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			return core.Snapshot{}, malformed(core.FieldPoints, perr)
		}
		snap.Points = points
	}

	entries, err := r.repo.Range(ctx, core.TrackKey(p, t, core.FieldHistory), -1)
	if err != nil {
		return core.Snapshot{}, err
	}
	for _, e := range entries {
		var entry core.LedgerEntry
		if err := json.Unmarshal([]byte(e), &entry); err != nil {
			return core.Snapshot{}, malformed(core.FieldHistory, err)
		}
		snap.History = append(snap.History, entry)
	}

	raw, err = r.repo.Get(ctx, core.TrackKey(p, t, core.FieldStats))
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return core.Snapshot{}, err
	default:
		if err := json.Unmarshal([]byte(raw), &snap.Stats); err != nil {
			return core.Snapshot{}, malformed(core.FieldStats, err)
		}
	}
	snap.Stats.TotalPoints = snap.Points
	snap.Stats.TotalSpentOrEarned = core.LedgerVolume(snap.History)

	raw, err = r.repo.Get(ctx, core.TrackKey(p, t, core.FieldAchievements))
	switch {
	case errors.Is(err, ErrNotFound):
		snap.Achievements = r.rules.CatalogFor(t).Evaluate(snap.Stats)
	case err != nil:
		return core.Snapshot{}, err
	default:
		var list []core.Achievement
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			return core.Snapshot{}, malformed(core.FieldAchievements, err)
		}
		snap.Achievements = list
	}
	return snap, nil
}

// malformedError names the stored field that failed to parse.
type malformedError struct {
	field core.Field
	err   error
}

func (e *malformedError) Error() string {
	return fmt.Sprintf("%v: %s: %v", core.ErrMalformedState, e.field, e.err)
}

func (e *malformedError) Unwrap() error { return core.ErrMalformedState }

func malformed(f core.Field, err error) error {
	return &malformedError{field: f, err: err}
}

// malformedField reports which field made err, if err is a parse failure.
func malformedField(err error) (core.Field, bool) {
	var me *malformedError
	if errors.As(err, &me) {
		return me.field, true
	}
	return "", false
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// loadProfile returns the stored profile of p, empty when unset or unreadable.
func loadProfile(ctx context.Context, repo Repository, p core.ParticipantID) (core.Profile, error) {
	raw, err := repo.Get(ctx, core.SharedKey(p, core.FieldProfile))
	if errors.Is(err, ErrNotFound) {
		return core.Profile{}, nil
	}
	if err != nil {
		return core.Profile{}, err
	}
	var prof core.Profile
	if err := json.Unmarshal([]byte(raw), &prof); err != nil {
		return core.Profile{}, malformed(core.FieldProfile, err)
	}
	return prof, nil
}
