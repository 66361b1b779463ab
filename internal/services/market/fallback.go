package market

import (
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gridset/internal/domain"
)

// Static depth ladder shown whenever no live market data is reachable.
// Bids are listed descending by price, asks ascending, matching the order
// the aggregator publishes them in.
var (
	fallbackBids = []fallbackRow{
		{price: "0.068", quantity: "150"},
		{price: "0.067", quantity: "200"},
		{price: "0.066", quantity: "180"},
		{price: "0.065", quantity: "250"},
		{price: "0.064", quantity: "120"},
	}
	fallbackAsks = []fallbackRow{
		{price: "0.069", quantity: "100"},
		{price: "0.070", quantity: "150"},
		{price: "0.071", quantity: "200"},
		{price: "0.072", quantity: "180"},
		{price: "0.073", quantity: "220"},
	}
)

type fallbackRow struct {
	price    string
	quantity string
}

// FallbackBids returns a fresh copy of the static bid ladder.
func FallbackBids() []domain.BookRow {
	return buildFallback(fallbackBids)
}

// FallbackAsks returns a fresh copy of the static ask ladder.
func FallbackAsks() []domain.BookRow {
	return buildFallback(fallbackAsks)
}

func buildFallback(rows []fallbackRow) []domain.BookRow {
	out := make([]domain.BookRow, 0, len(rows))
	for _, r := range rows {
		price := decimal.RequireFromString(r.price)
		quantity := decimal.RequireFromString(r.quantity)
		out = append(out, domain.BookRow{
			Price:    price,
			Quantity: quantity,
			Total:    price.Mul(quantity),
		})
	}
	return out
}

// fallbackSnapshot builds the full static view for a slot. Best quotes come
// from the ladder heads, so the bid price always sits below the ask price.
func fallbackSnapshot(slot uint64) domain.MarketSnapshot {
	bids := FallbackBids()
	asks := FallbackAsks()
	snapshot := domain.MarketSnapshot{
		TimeSlot: slot,
		Bids:     bids,
		Asks:     asks,
		BestBid:  domain.Quote{Price: bids[0].Price, Quantity: bids[0].Quantity},
		BestAsk:  domain.Quote{Price: asks[0].Price, Quantity: asks[0].Quantity},
	}
	snapshot.Spread = snapshot.BestAsk.Price.Sub(snapshot.BestBid.Price)
	return snapshot
}
