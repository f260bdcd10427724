package core

import (
	"errors"
	"fmt"
)

// AchievementID names an achievement and selects its progress rule.
type AchievementID string

const (
	AchievementFirstPurchase AchievementID = "first_purchase"
	AchievementFirstSale     AchievementID = "first_sale"
	AchievementBigSpender    AchievementID = "big_spender"
	AchievementBigEarner     AchievementID = "big_earner"
	AchievementLoyalCustomer AchievementID = "loyal_customer"
	AchievementFastDelivery  AchievementID = "fast_delivery"
	AchievementPerfectRating AchievementID = "perfect_rating"
)

// Achievement is a goal whose progress is a projection of ParticipantStats.
type Achievement struct {
	ID          AchievementID `json:"id" yaml:"id"`
	Title       string        `json:"title" yaml:"title"`
	Description string        `json:"description" yaml:"description"`
	Target      float64       `json:"target" yaml:"target"`
	Progress    float64       `json:"progress" yaml:"-"`
	Completed   bool          `json:"completed" yaml:"-"`
	Reward      int64         `json:"reward" yaml:"reward"`
	Track       Track         `json:"track" yaml:"-"`
}

type progressRule func(ParticipantStats) float64

var progressRules = map[AchievementID]progressRule{
	AchievementFirstPurchase: firstOrder,
	AchievementFirstSale:     firstOrder,
	AchievementBigSpender:    volume,
	AchievementBigEarner:     volume,
	AchievementLoyalCustomer: func(s ParticipantStats) float64 { return float64(s.OrdersCount) },
	AchievementFastDelivery:  func(s ParticipantStats) float64 { return float64(s.FastDeliveryCount) },
	AchievementPerfectRating: func(s ParticipantStats) float64 {
		if s.AverageRating == 5 {
			return float64(s.OrdersCount)
		}
		return 0
	},
}

func firstOrder(s ParticipantStats) float64 {
	if s.OrdersCount > 0 {
		return 1
	}
	return 0
}

func volume(s ParticipantStats) float64 {
	return s.TotalSpentOrEarned.InexactFloat64()
}

// KnownAchievement reports whether id has a progress rule.
func KnownAchievement(id AchievementID) bool {
	_, ok := progressRules[id]
	return ok
}

// Catalog is the fixed, ordered achievement list of one track.
type Catalog []Achievement

// Validate checks every entry has a rule, a positive target and a unique id.
func (c Catalog) Validate() error {
	seen := make(map[AchievementID]struct{}, len(c))
	for _, a := range c {
		if !KnownAchievement(a.ID) {
			return fmt.Errorf("achievement %q has no progress rule", a.ID)
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("achievement %q listed twice", a.ID)
		}
		seen[a.ID] = struct{}{}
		if a.Target <= 0 {
			return fmt.Errorf("achievement %q needs a positive target", a.ID)
		}
	}
	if len(c) == 0 {
		return errors.New("achievement catalog is empty")
	}
	return nil
}

// Evaluate recomputes every achievement from stats, preserving catalog order.
// It never reads previous progress, so identical stats give identical output.
func (c Catalog) Evaluate(stats ParticipantStats) []Achievement {
	out := make([]Achievement, len(c))
	for i, a := range c {
		var progress float64
		if rule, ok := progressRules[a.ID]; ok {
			progress = rule(stats)
		}
		a.Progress = progress
		a.Completed = progress >= a.Target
		out[i] = a
	}
	return out
}

// Initial returns the catalog at zero progress.
func (c Catalog) Initial() []Achievement {
	return c.Evaluate(ParticipantStats{})
}

// DefaultBuyerCatalog is the buyer achievement catalog.
var DefaultBuyerCatalog = Catalog{
	{ID: AchievementFirstPurchase, Title: "Premier achat", Description: "Effectuer votre premier achat", Target: 1, Reward: 50, Track: TrackBuyer},
	{ID: AchievementBigSpender, Title: "Grand acheteur", Description: "Dépenser 1000 € au total", Target: 1000, Reward: 200, Track: TrackBuyer},
	{ID: AchievementLoyalCustomer, Title: "Client fidèle", Description: "Passer 10 commandes", Target: 10, Reward: 300, Track: TrackBuyer},
}

// DefaultSellerCatalog is the seller achievement catalog.
var DefaultSellerCatalog = Catalog{
	{ID: AchievementFirstSale, Title: "Première vente", Description: "Réaliser votre première vente", Target: 1, Reward: 50, Track: TrackSeller},
	{ID: AchievementBigEarner, Title: "Grand vendeur", Description: "Générer 1000 € de ventes", Target: 1000, Reward: 200, Track: TrackSeller},
	{ID: AchievementFastDelivery, Title: "Livraison éclair", Description: "Livrer 10 commandes en moins de 24 h", Target: 10, Reward: 250, Track: TrackSeller},
	{ID: AchievementPerfectRating, Title: "Note parfaite", Description: "Conserver une note de 5/5 sur 10 commandes", Target: 10, Reward: 500, Track: TrackSeller},
}
