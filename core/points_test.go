package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputePoints(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  int64
	}{
		{"purchase", Purchase{Amount: decimal.NewFromInt(50)}, 100},
		{"purchase floors", Purchase{Amount: decimal.RequireFromString("10.49")}, 20},
		{"sale", Sale{Amount: decimal.NewFromInt(50)}, 150},
		{"sale floors", Sale{Amount: decimal.RequireFromString("0.99")}, 2},
		{"review", Review{Rating: 5}, 50},
		{"review low", Review{Rating: 1}, 10},
		{"review out of range", Review{Rating: 6}, 0},
		{"fast delivery", Delivery{DeliveryTimeMinutes: 20}, 50},
		{"delivery at one day", Delivery{DeliveryTimeMinutes: 24 * 60}, 50},
		{"slow delivery", Delivery{DeliveryTimeMinutes: 24*60 + 1}, 25},
		{"referral", Referral{}, 100},
		{"negative amount", Purchase{Amount: decimal.NewFromInt(-5)}, 0},
		{"incomplete", Incomplete{Of: KindPurchase, Missing: "amount"}, 0},
		{"unrecognized", Unrecognized{Tag: "gift"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputePoints(tt.event)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, ComputePoints(tt.event), "must be deterministic")
		})
	}
}

func TestComputePoints_Delivery90MinutesIsFast(t *testing.T) {
	// 90 minutes is well within a day.
	assert.Equal(t, int64(50), ComputePoints(Delivery{DeliveryTimeMinutes: 90}))
	assert.Equal(t, int64(25), ComputePoints(Delivery{DeliveryTimeMinutes: 90 * 60}))
}

func TestDecodeEvent(t *testing.T) {
	e, err := DecodeEvent([]byte(`{"type":"purchase","amount":"12.50","count":2}`))
	require.NoError(t, err)
	p, ok := e.(Purchase)
	require.True(t, ok, "got %T", e)
	assert.True(t, p.Amount.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, int64(2), p.Count)

	e, err = DecodeEvent([]byte(`{"type":"sale","amount":50}`))
	require.NoError(t, err)
	assert.Equal(t, int64(150), ComputePoints(e))

	e, err = DecodeEvent([]byte(`{"type":"review"}`))
	require.NoError(t, err)
	assert.Equal(t, Incomplete{Of: KindReview, Missing: "rating"}, e)
	assert.Equal(t, int64(0), ComputePoints(e))

	e, err = DecodeEvent([]byte(`{"type":"delivery"}`))
	require.NoError(t, err)
	assert.Equal(t, Incomplete{Of: KindDelivery, Missing: "deliveryTimeMinutes"}, e)

	e, err = DecodeEvent([]byte(`{"type":"referral"}`))
	require.NoError(t, err)
	assert.Equal(t, Referral{}, e)

	e, err = DecodeEvent([]byte(`{"type":"gift","amount":3}`))
	require.NoError(t, err)
	assert.Equal(t, Unrecognized{Tag: "gift"}, e)

	_, err = DecodeEvent([]byte(`{"type":`))
	assert.Error(t, err)
}

func TestEncodeEvent(t *testing.T) {
	b, err := EncodeEvent(Delivery{DeliveryTimeMinutes: 30})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"delivery","deliveryTimeMinutes":30}`, string(b))

	b, err = EncodeEvent(Purchase{Amount: decimal.RequireFromString("19.99")})
	require.NoError(t, err)
	e, err := DecodeEvent(b)
	require.NoError(t, err)
	assert.Equal(t, int64(39), ComputePoints(e))
}
