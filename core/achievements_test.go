package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func find(t *testing.T, list []Achievement, id AchievementID) Achievement {
	t.Helper()
	for _, a := range list {
		if a.ID == id {
			return a
		}
	}
	t.Fatalf("achievement %s not found", id)
	return Achievement{}
}

func TestDefaultCatalogsAreValid(t *testing.T) {
	require.NoError(t, DefaultBuyerCatalog.Validate())
	require.NoError(t, DefaultSellerCatalog.Validate())
	require.NoError(t, DefaultRuleset().Validate())
}

func TestCatalog_EvaluateIsIdempotent(t *testing.T) {
	stats := ParticipantStats{
		OrdersCount:        4,
		TotalSpentOrEarned: decimal.RequireFromString("1200.50"),
		AverageRating:      5,
		FastDeliveryCount:  10,
	}
	first := DefaultSellerCatalog.Evaluate(stats)
	second := DefaultSellerCatalog.Evaluate(stats)
	assert.Equal(t, first, second)
	assert.Len(t, first, len(DefaultSellerCatalog))
	for i := range first {
		assert.Equal(t, DefaultSellerCatalog[i].ID, first[i].ID, "order must follow the catalog")
	}
}

func TestCatalog_CompletionAtThreshold(t *testing.T) {
	at := DefaultBuyerCatalog.Evaluate(ParticipantStats{OrdersCount: 10})
	loyal := find(t, at, AchievementLoyalCustomer)
	assert.Equal(t, float64(10), loyal.Progress)
	assert.True(t, loyal.Completed)

	below := DefaultBuyerCatalog.Evaluate(ParticipantStats{OrdersCount: 9})
	assert.False(t, find(t, below, AchievementLoyalCustomer).Completed)
}

func TestCatalog_Rules(t *testing.T) {
	buyer := DefaultBuyerCatalog.Evaluate(ParticipantStats{
		OrdersCount:        1,
		TotalSpentOrEarned: decimal.RequireFromString("999.99"),
	})
	assert.Equal(t, float64(1), find(t, buyer, AchievementFirstPurchase).Progress)
	assert.True(t, find(t, buyer, AchievementFirstPurchase).Completed)
	assert.InDelta(t, 999.99, find(t, buyer, AchievementBigSpender).Progress, 1e-9)
	assert.False(t, find(t, buyer, AchievementBigSpender).Completed)

	seller := DefaultSellerCatalog.Evaluate(ParticipantStats{
		OrdersCount:       12,
		AverageRating:     4.9,
		FastDeliveryCount: 3,
	})
	assert.Equal(t, float64(0), find(t, seller, AchievementPerfectRating).Progress)
	assert.Equal(t, float64(3), find(t, seller, AchievementFastDelivery).Progress)

	perfect := DefaultSellerCatalog.Evaluate(ParticipantStats{OrdersCount: 12, AverageRating: 5})
	assert.True(t, find(t, perfect, AchievementPerfectRating).Completed)
}

func TestCatalog_InitialIsZero(t *testing.T) {
	for _, a := range DefaultBuyerCatalog.Initial() {
		assert.Zero(t, a.Progress)
		assert.False(t, a.Completed)
	}
}

func TestCatalog_Validate(t *testing.T) {
	assert.Error(t, Catalog{}.Validate())
	assert.Error(t, Catalog{{ID: "mystery", Target: 1}}.Validate())
	assert.Error(t, Catalog{{ID: AchievementFirstSale, Target: 0}}.Validate())
	assert.Error(t, Catalog{
		{ID: AchievementFirstSale, Target: 1},
		{ID: AchievementFirstSale, Target: 1},
	}.Validate())
}
