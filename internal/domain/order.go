package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side marks an order as buy-side or sell-side.
type Side string

const (
	// SideBid buy-side order.
	SideBid Side = "bid"
	// SideAsk sell-side order.
	SideAsk Side = "ask"
)

// Order is a demo-mode order placed against a time slot. Orders are
// session-scoped: created on successful placement, immutable afterwards,
// never removed automatically.
type Order struct {
	// ID creation-time based identifier, unique within the session.
	ID int64
	// Side bid or ask.
	Side Side
	// Price per kWh in token units.
	Price decimal.Decimal
	// Quantity energy amount in kWh.
	Quantity decimal.Decimal
	// TimeSlot discrete trading period label the order targets.
	TimeSlot string
	// CreatedAt placement time.
	CreatedAt time.Time
}

// Cost returns the quote-side value of the order (price x quantity).
// For bids this is the amount locked at placement time.
func (o Order) Cost() decimal.Decimal {
	return o.Price.Mul(o.Quantity)
}
