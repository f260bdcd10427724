package core

import (
	"errors"
	"fmt"
)

// Level is a named point band granting benefits.
type Level struct {
	Name               string   `json:"name" yaml:"name"`
	MinPoints          int64    `json:"minPoints" yaml:"min_points"`
	MaxPointsExclusive *int64   `json:"maxPointsExclusive,omitempty" yaml:"max_points_exclusive,omitempty"`
	ColorToken         string   `json:"colorToken" yaml:"color_token"`
	Benefits           []string `json:"benefits" yaml:"benefits"`
}

// Contains reports whether points fall inside the band.
func (l Level) Contains(points int64) bool {
	return points >= l.MinPoints && (l.MaxPointsExclusive == nil || points < *l.MaxPointsExclusive)
}

// LevelTable is the ordered level list of one track.
type LevelTable []Level

// Validate checks the table is non-empty, ascending, contiguous and open ended.
func (t LevelTable) Validate() error {
	if len(t) == 0 {
		return errors.New("level table is empty")
	}
	for i, l := range t {
		if l.Name == "" {
			return fmt.Errorf("level %d has no name", i)
		}
		last := i == len(t)-1
		if last {
			if l.MaxPointsExclusive != nil {
				return fmt.Errorf("last level %q must have no upper bound", l.Name)
			}
			continue
		}
		if l.MaxPointsExclusive == nil {
			return fmt.Errorf("level %q must have an upper bound", l.Name)
		}
		if *l.MaxPointsExclusive <= l.MinPoints {
			return fmt.Errorf("level %q has an empty range", l.Name)
		}
		if next := t[i+1]; *l.MaxPointsExclusive != next.MinPoints {
			return fmt.Errorf("level %q does not meet %q", l.Name, next.Name)
		}
	}
	return nil
}

// index returns the position of the level holding points. When nothing
// matches it falls back to the highest level, and to -1 for an empty table.
func (t LevelTable) index(points int64) int {
	for i, l := range t {
		if l.Contains(points) {
			return i
		}
	}
	return len(t) - 1
}

// Current returns the level holding points, the zero Level for an empty table.
func (t LevelTable) Current(points int64) Level {
	i := t.index(points)
	if i < 0 {
		return Level{}
	}
	return t[i]
}

// Next returns the level after the current one, false for the top level.
func (t LevelTable) Next(points int64) (Level, bool) {
	i := t.index(points)
	if i+1 >= len(t) {
		return Level{}, false
	}
	return t[i+1], true
}

// PointsToNext is the distance to the next level, zero at the top level.
// It is not clamped: callers clamp for display.
func (t LevelTable) PointsToNext(points int64) int64 {
	next, ok := t.Next(points)
	if !ok {
		return 0
	}
	return next.MinPoints - points
}

func bound(v int64) *int64 { return &v }

// DefaultBuyerLevels is the buyer tier table.
var DefaultBuyerLevels = LevelTable{
	{Name: "Bronze", MinPoints: 0, MaxPointsExclusive: bound(1000), ColorToken: "amber-700",
		Benefits: []string{"Suivi de commande prioritaire"}},
	{Name: "Argent", MinPoints: 1000, MaxPointsExclusive: bound(5000), ColorToken: "slate-400",
		Benefits: []string{"Suivi de commande prioritaire", "Livraison offerte dès 50 €"}},
	{Name: "Or", MinPoints: 5000, MaxPointsExclusive: bound(15000), ColorToken: "yellow-500",
		Benefits: []string{"Suivi de commande prioritaire", "Livraison offerte", "Support dédié"}},
	{Name: "Platine", MinPoints: 15000, ColorToken: "indigo-400",
		Benefits: []string{"Livraison offerte", "Support dédié", "Accès anticipé aux ventes"}},
}

// DefaultSellerLevels is the seller tier table.
var DefaultSellerLevels = LevelTable{
	{Name: "Débutant", MinPoints: 0, MaxPointsExclusive: bound(2000), ColorToken: "emerald-600",
		Benefits: []string{"Commission standard"}},
	{Name: "Confirmé", MinPoints: 2000, MaxPointsExclusive: bound(10000), ColorToken: "sky-500",
		Benefits: []string{"Commission réduite de 1 %", "Badge vendeur confirmé"}},
	{Name: "Expert", MinPoints: 10000, MaxPointsExclusive: bound(50000), ColorToken: "violet-500",
		Benefits: []string{"Commission réduite de 2 %", "Mise en avant des annonces"}},
	{Name: "Élite", MinPoints: 50000, ColorToken: "rose-500",
		Benefits: []string{"Commission réduite de 3 %", "Mise en avant des annonces", "Gestionnaire de compte"}},
}
