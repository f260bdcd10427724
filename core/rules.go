package core

import (
	"errors"
	"fmt"
	"strings"
)

// Ruleset bundles the level table and achievement catalog of every track.
type Ruleset struct {
	Levels       map[Track]LevelTable
	Achievements map[Track]Catalog
}

// DefaultRuleset returns the built-in buyer and seller tables.
func DefaultRuleset() Ruleset {
	return Ruleset{
		Levels: map[Track]LevelTable{
			TrackBuyer:  DefaultBuyerLevels,
			TrackSeller: DefaultSellerLevels,
		},
		Achievements: map[Track]Catalog{
			TrackBuyer:  DefaultBuyerCatalog,
			TrackSeller: DefaultSellerCatalog,
		},
	}
}

// LevelsFor returns the level table of a track.
func (r Ruleset) LevelsFor(t Track) LevelTable { return r.Levels[t] }

// CatalogFor returns the achievement catalog of a track.
func (r Ruleset) CatalogFor(t Track) Catalog { return r.Achievements[t] }

// Validate checks both tracks have valid tables and tags catalog entries
// with their track.
func (r Ruleset) Validate() error {
	var errs []string
	for _, t := range Tracks {
		if err := r.Levels[t].Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("%s levels: %v", t, err))
		}
		if err := r.Achievements[t].Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("%s achievements: %v", t, err))
		}
		for _, a := range r.Achievements[t] {
			if a.Track != "" && a.Track != t {
				errs = append(errs, fmt.Sprintf("achievement %q belongs to %s, listed under %s", a.ID, a.Track, t))
			}
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
