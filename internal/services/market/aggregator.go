package market

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gridset/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// defaultDepthLimit caps the visible rows per side. The cap is a display
// concern only: best quotes and spread are taken from the dedicated reads
// before the cap is applied.
const defaultDepthLimit = 12

// View is the aggregator's published state. Err is set when the last live
// refresh failed (the snapshot then holds fallback rows); Loading is set
// while a live refresh is in flight. The two flags are never set together
// for a committed view.
type View struct {
	Snapshot domain.MarketSnapshot
	Loading  bool
	Err      error
}

// Aggregator merges live contract reads with the static fallback ladder into
// one consistent ranked view per time slot. Output state is single-writer:
// each refresh carries a monotonic token and only the latest refresh may
// commit its result, so a slow early request never overwrites a newer one.
type Aggregator struct {
	mu         sync.RWMutex
	logger     *zap.Logger
	source     Source
	slot       uint64
	depthLimit int
	refreshSeq uint64
	view       View
}

// NewAggregator creates an aggregator for the given slot. source may be nil
// when no market contract is configured; the fallback ladder is served then.
func NewAggregator(logger *zap.Logger, source Source, slot uint64) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Aggregator{
		logger:     logger,
		source:     source,
		slot:       slot,
		depthLimit: defaultDepthLimit,
	}
	a.view = View{Snapshot: fallbackSnapshot(slot)}
	return a
}

// SetSlot switches the aggregator to another time slot. Any in-flight
// refresh loses its right to apply; the caller is expected to trigger a new
// Refresh afterwards.
func (a *Aggregator) SetSlot(slot uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if slot == a.slot {
		return
	}
	a.slot = slot
	a.refreshSeq++
	a.view = View{Snapshot: fallbackSnapshot(slot)}
}

// SetSource installs or removes the live-data capability. Removing it
// invalidates any in-flight refresh and falls back to static rows.
func (a *Aggregator) SetSource(source Source) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.source = source
	a.refreshSeq++
	if source == nil {
		a.view = View{Snapshot: fallbackSnapshot(a.slot)}
	}
}

// Slot returns the currently selected time slot.
func (a *Aggregator) Slot() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.slot
}

// View returns the last committed view.
func (a *Aggregator) View() View {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.view
}

// Refresh rebuilds the published view. Without a live source, or for slot 0,
// the fallback ladder is applied immediately with no loading state. With a
// source, the four contract reads run concurrently under one refresh token;
// the result is committed only if no newer refresh has started since.
func (a *Aggregator) Refresh(ctx context.Context) {
	a.mu.Lock()
	source := a.source
	slot := a.slot
	if source == nil || slot == 0 {
		a.refreshSeq++
		a.view = View{Snapshot: fallbackSnapshot(slot)}
		a.mu.Unlock()
		return
	}
	a.refreshSeq++
	token := a.refreshSeq
	a.view.Loading = true
	a.view.Err = nil
	a.mu.Unlock()

	snapshot, err := a.fetch(ctx, source, slot)

	a.mu.Lock()
	defer a.mu.Unlock()
	if token != a.refreshSeq {
		// superseded by a newer refresh, slot change or source change
		a.logger.Debug("discarding stale refresh",
			zap.Uint64("token", token),
			zap.Uint64("latest", a.refreshSeq))
		return
	}
	if err != nil {
		a.logger.Warn("market data refresh failed, serving fallback rows",
			zap.Uint64("slot", slot), zap.Error(err))
		a.view = View{
			Snapshot: fallbackSnapshot(slot),
			Err:      errors.Wrap(err, "market data unavailable"),
		}
		return
	}
	a.view = View{Snapshot: snapshot}
}

// fetch runs the four live reads concurrently and assembles the snapshot.
// Any single failure discards the whole batch.
func (a *Aggregator) fetch(ctx context.Context, source Source, slot uint64) (domain.MarketSnapshot, error) {
	var (
		auction    domain.Auction
		bestBid    domain.Quote
		bestAsk    domain.Quote
		bids, asks []domain.BookRow
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		auction, err = source.GetAuction(gctx, slot)
		return errors.Wrap(err, "get auction")
	})
	g.Go(func() error {
		var err error
		bestBid, err = source.GetBestBid(gctx, slot)
		return errors.Wrap(err, "get best bid")
	})
	g.Go(func() error {
		var err error
		bestAsk, err = source.GetBestAsk(gctx, slot)
		return errors.Wrap(err, "get best ask")
	})
	g.Go(func() error {
		var err error
		bids, asks, err = source.GetOrderBook(gctx, slot)
		return errors.Wrap(err, "get order book")
	})
	if err := g.Wait(); err != nil {
		return domain.MarketSnapshot{}, err
	}

	bids = normalizeRows(bids)
	asks = normalizeRows(asks)
	sort.SliceStable(bids, func(i, j int) bool { return bids[i].Price.GreaterThan(bids[j].Price) })
	sort.SliceStable(asks, func(i, j int) bool { return asks[i].Price.LessThan(asks[j].Price) })

	snapshot := domain.MarketSnapshot{
		TimeSlot: slot,
		Bids:     capDepth(bids, a.depthLimit),
		Asks:     capDepth(asks, a.depthLimit),
		BestBid:  normalizeQuote(bestBid),
		BestAsk:  normalizeQuote(bestAsk),
		Auction:  &auction,
		Live:     true,
	}
	// best quotes and spread follow the dedicated contract reads, not the
	// full book, to match the external source of truth
	if !snapshot.BestBid.IsZero() && !snapshot.BestAsk.IsZero() {
		snapshot.Spread = snapshot.BestAsk.Price.Sub(snapshot.BestBid.Price)
	}
	// an empty live book still renders the static ladder for depth, while
	// best quotes keep their live values
	if len(snapshot.Bids) == 0 && len(snapshot.Asks) == 0 {
		snapshot.Bids = FallbackBids()
		snapshot.Asks = FallbackAsks()
	}
	return snapshot, nil
}

func capDepth(rows []domain.BookRow, limit int) []domain.BookRow {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}
