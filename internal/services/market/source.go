// Package market aggregates live EnergyMarket contract reads and the static
// fallback ladder into one ranked order-book view per time slot.
package market

import (
	"context"

	"github.com/vadiminshakov/gridset/internal/domain"
)

// Source is the optional live-data capability backing the aggregator: four
// asynchronous reads against the market contract for one time slot. When no
// contract is configured the aggregator runs without a Source and serves the
// fallback ladder.
type Source interface {
	// GetAuction returns the slot auction summary.
	GetAuction(ctx context.Context, slot uint64) (domain.Auction, error)
	// GetBestBid returns the highest open bid level.
	GetBestBid(ctx context.Context, slot uint64) (domain.Quote, error)
	// GetBestAsk returns the lowest open ask level.
	GetBestAsk(ctx context.Context, slot uint64) (domain.Quote, error)
	// GetOrderBook returns the full bid and ask depth for the slot.
	GetOrderBook(ctx context.Context, slot uint64) (bids, asks []domain.BookRow, err error)
}
