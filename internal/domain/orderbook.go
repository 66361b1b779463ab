package domain

import "github.com/shopspring/decimal"

// BookRow is a single depth level of the order book. Rows are ephemeral:
// the aggregator rebuilds both sides on every refresh.
type BookRow struct {
	Price          decimal.Decimal
	Quantity       decimal.Decimal
	FilledQuantity decimal.Decimal
	// Total quote-side value of the row (price x quantity).
	Total decimal.Decimal
}

// Quote is a best-bid or best-ask price level.
type Quote struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// IsZero reports whether the quote carries no price level.
func (q Quote) IsZero() bool {
	return q.Price.IsZero() && q.Quantity.IsZero()
}

// Auction summarizes the slot auction state reported by the market contract.
type Auction struct {
	TimeSlot         uint64
	ClearingPrice    decimal.Decimal
	TotalBidQuantity decimal.Decimal
	TotalAskQuantity decimal.Decimal
	IsCleared        bool
}

// MarketSnapshot is the aggregator's published view for one time slot:
// ranked depth plus the best-quote summary. Bids are sorted descending by
// price, asks ascending.
type MarketSnapshot struct {
	TimeSlot uint64
	Bids     []BookRow
	Asks     []BookRow
	BestBid  Quote
	BestAsk  Quote
	// Spread best ask price minus best bid price. Meaningful only when
	// both sides are non-empty.
	Spread  decimal.Decimal
	Auction *Auction
	// Live reports whether the snapshot was built from contract reads
	// rather than the static fallback ladder.
	Live bool
}

// BalanceSnapshot is the wallet state published to the web console.
// String fields avoid precision issues when rendered in UI layers.
type BalanceSnapshot struct {
	Timestamp string `json:"ts"`
	Total     string `json:"total"`
	Available string `json:"available"`
	Locked    string `json:"locked"`
}

// BalanceSnapshotRecord bundles a snapshot with the log index it originated from.
type BalanceSnapshotRecord struct {
	Index    uint64
	Snapshot BalanceSnapshot
}
