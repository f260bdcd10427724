package core

import "github.com/shopspring/decimal"

const (
	// FastDeliveryMinutes is the upper bound (inclusive) of a fast delivery.
	FastDeliveryMinutes = 24 * 60

	fastDeliveryPoints = 50
	slowDeliveryPoints = 25
	referralPoints     = 100
	pointsPerStar      = 10
)

var (
	purchaseMultiplier = decimal.NewFromInt(2)
	saleMultiplier     = decimal.NewFromInt(3)
)

// ComputePoints maps an event to its point award. The result is never
// negative; events missing a required field, with an unknown tag, a negative
// amount or a rating outside [1,5] score zero.
func ComputePoints(e Event) int64 {
	switch v := e.(type) {
	case Purchase:
		return amountPoints(v.Amount, purchaseMultiplier)
	case Sale:
		return amountPoints(v.Amount, saleMultiplier)
	case Review:
		if !ValidRating(v.Rating) {
			return 0
		}
		return int64(v.Rating) * pointsPerStar
	case Delivery:
		if IsFastDelivery(v.DeliveryTimeMinutes) {
			return fastDeliveryPoints
		}
		return slowDeliveryPoints
	case Referral:
		return referralPoints
	}
	return 0
}

func amountPoints(amount, multiplier decimal.Decimal) int64 {
	if amount.IsNegative() {
		return 0
	}
	return amount.Mul(multiplier).Floor().IntPart()
}

// ValidRating reports whether r is a rating in [1,5].
func ValidRating(r int) bool { return r >= 1 && r <= 5 }

// IsFastDelivery reports whether a delivery took at most a day.
func IsFastDelivery(minutes int64) bool { return minutes <= FastDeliveryMinutes }
