package core

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// EventKind is the tag of a business event.
type EventKind string

const (
	KindPurchase EventKind = "purchase"
	KindSale     EventKind = "sale"
	KindReview   EventKind = "review"
	KindDelivery EventKind = "delivery"
	KindReferral EventKind = "referral"
)

// Event is a business event raised by the marketplace. The set of
// implementations is closed: only the types in this file satisfy it.
type Event interface {
	Kind() EventKind
	// MonetaryAmount is the amount recorded on the ledger, zero when the
	// event carries none.
	MonetaryAmount() decimal.Decimal
	sealed()
}

// Purchase is raised when a buyer completes an order.
type Purchase struct {
	Amount decimal.Decimal
	Count  int64
}

// Sale is raised when a seller completes an order.
type Sale struct {
	Amount decimal.Decimal
	Count  int64
}

// Review carries a rating in [1,5].
type Review struct{ Rating int }

// Delivery carries the elapsed delivery time in minutes.
type Delivery struct{ DeliveryTimeMinutes int64 }

// Referral is raised when a participant brings in a new member.
type Referral struct{}

// Incomplete is a known event kind whose required payload field was absent.
// It scores zero.
type Incomplete struct {
	Of      EventKind
	Missing string
}

// Unrecognized is an event whose tag is unknown. It scores zero.
type Unrecognized struct{ Tag string }

func (Purchase) Kind() EventKind     { return KindPurchase }
func (Sale) Kind() EventKind         { return KindSale }
func (Review) Kind() EventKind       { return KindReview }
func (Delivery) Kind() EventKind     { return KindDelivery }
func (Referral) Kind() EventKind     { return KindReferral }
func (e Incomplete) Kind() EventKind { return e.Of }
func (e Unrecognized) Kind() EventKind {
	return EventKind(e.Tag)
}

func (e Purchase) MonetaryAmount() decimal.Decimal   { return e.Amount }
func (e Sale) MonetaryAmount() decimal.Decimal       { return e.Amount }
func (Review) MonetaryAmount() decimal.Decimal       { return decimal.Zero }
func (Delivery) MonetaryAmount() decimal.Decimal     { return decimal.Zero }
func (Referral) MonetaryAmount() decimal.Decimal     { return decimal.Zero }
func (Incomplete) MonetaryAmount() decimal.Decimal   { return decimal.Zero }
func (Unrecognized) MonetaryAmount() decimal.Decimal { return decimal.Zero }

func (Purchase) sealed()     {}
func (Sale) sealed()         {}
func (Review) sealed()       {}
func (Delivery) sealed()     {}
func (Referral) sealed()     {}
func (Incomplete) sealed()   {}
func (Unrecognized) sealed() {}

// eventEnvelope is the wire shape of an event.
type eventEnvelope struct {
	Type                string           `json:"type"`
	Amount              *decimal.Decimal `json:"amount,omitempty"`
	Count               *int64           `json:"count,omitempty"`
	Rating              *int             `json:"rating,omitempty"`
	DeliveryTimeMinutes *int64           `json:"deliveryTimeMinutes,omitempty"`
}

// DecodeEvent parses the JSON wire form of an event. Absent required fields
// yield Incomplete and unknown tags yield Unrecognized; only malformed JSON
// is an error.
func DecodeEvent(data []byte) (Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return env.event(), nil
}

func (env eventEnvelope) event() Event {
	var count int64
	if env.Count != nil {
		count = *env.Count
	}
	switch EventKind(env.Type) {
	case KindPurchase:
		if env.Amount == nil {
			return Incomplete{Of: KindPurchase, Missing: "amount"}
		}
		return Purchase{Amount: *env.Amount, Count: count}
	case KindSale:
		if env.Amount == nil {
			return Incomplete{Of: KindSale, Missing: "amount"}
		}
		return Sale{Amount: *env.Amount, Count: count}
	case KindReview:
		if env.Rating == nil {
			return Incomplete{Of: KindReview, Missing: "rating"}
		}
		return Review{Rating: *env.Rating}
	case KindDelivery:
		if env.DeliveryTimeMinutes == nil {
			return Incomplete{Of: KindDelivery, Missing: "deliveryTimeMinutes"}
		}
		return Delivery{DeliveryTimeMinutes: *env.DeliveryTimeMinutes}
	case KindReferral:
		return Referral{}
	}
	return Unrecognized{Tag: env.Type}
}

// EncodeEvent renders an event in its JSON wire form.
func EncodeEvent(e Event) ([]byte, error) {
	env := eventEnvelope{Type: string(e.Kind())}
	switch v := e.(type) {
	case Purchase:
		env.Amount, env.Count = &v.Amount, optionalCount(v.Count)
	case Sale:
		env.Amount, env.Count = &v.Amount, optionalCount(v.Count)
	case Review:
		env.Rating = &v.Rating
	case Delivery:
		env.DeliveryTimeMinutes = &v.DeliveryTimeMinutes
	}
	return json.Marshal(env)
}

func optionalCount(n int64) *int64 {
	if n == 0 {
		return nil
	}
	return &n
}
