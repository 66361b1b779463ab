package market

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/gridset/internal/domain"
	"go.uber.org/zap"
)

// fakeSource serves configurable results and can block all reads on a gate
// channel to simulate slow contract calls.
type fakeSource struct {
	mu      sync.Mutex
	auction domain.Auction
	bestBid domain.Quote
	bestAsk domain.Quote
	bids    []domain.BookRow
	asks    []domain.BookRow
	err     error
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeSource) set(update func(*fakeSource)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	update(f)
}

func (f *fakeSource) wait() {
	f.mu.Lock()
	gate := f.gate
	entered := f.entered
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
}

func (f *fakeSource) GetAuction(ctx context.Context, slot uint64) (domain.Auction, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.auction, f.err
}

func (f *fakeSource) GetBestBid(ctx context.Context, slot uint64) (domain.Quote, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bestBid, f.err
}

func (f *fakeSource) GetBestAsk(ctx context.Context, slot uint64) (domain.Quote, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bestAsk, f.err
}

func (f *fakeSource) GetOrderBook(ctx context.Context, slot uint64) ([]domain.BookRow, []domain.BookRow, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bids, f.asks, f.err
}

func quote(price, quantity string) domain.Quote {
	return domain.Quote{
		Price:    decimal.RequireFromString(price),
		Quantity: decimal.RequireFromString(quantity),
	}
}

func row(price, quantity string) domain.BookRow {
	return domain.BookRow{
		Price:    decimal.RequireFromString(price),
		Quantity: decimal.RequireFromString(quantity),
	}
}

func TestAggregator_NoSource_ServesFallback(t *testing.T) {
	a := NewAggregator(zap.NewNop(), nil, 1000)

	for i := 0; i < 3; i++ {
		a.Refresh(context.Background())
		view := a.View()
		require.NoError(t, view.Err)
		assert.False(t, view.Loading)
		assert.False(t, view.Snapshot.Live)
		require.Len(t, view.Snapshot.Bids, 5)
		require.Len(t, view.Snapshot.Asks, 5)
		assert.True(t, view.Snapshot.BestBid.Price.LessThan(view.Snapshot.BestAsk.Price))
	}
}

func TestAggregator_Fallback_Sorted(t *testing.T) {
	a := NewAggregator(zap.NewNop(), nil, 1000)
	a.Refresh(context.Background())

	snapshot := a.View().Snapshot
	for i := 1; i < len(snapshot.Bids); i++ {
		assert.True(t, snapshot.Bids[i].Price.LessThan(snapshot.Bids[i-1].Price),
			"bids must be strictly descending")
	}
	for i := 1; i < len(snapshot.Asks); i++ {
		assert.True(t, snapshot.Asks[i].Price.GreaterThan(snapshot.Asks[i-1].Price),
			"asks must be strictly ascending")
	}
}

func TestAggregator_SlotZero_ServesFallback(t *testing.T) {
	src := &fakeSource{bestBid: quote("0.1", "1"), bestAsk: quote("0.2", "1")}
	a := NewAggregator(zap.NewNop(), src, 0)
	a.Refresh(context.Background())

	view := a.View()
	assert.False(t, view.Snapshot.Live)
	assert.Len(t, view.Snapshot.Bids, 5)
}

func TestAggregator_LiveRefresh(t *testing.T) {
	src := &fakeSource{
		auction: domain.Auction{TimeSlot: 1000, ClearingPrice: decimal.RequireFromString("0.067"), IsCleared: true},
		bestBid: quote("0.068", "150"),
		bestAsk: quote("0.069", "100"),
		bids:    []domain.BookRow{row("0.066", "180"), row("0.068", "150"), row("0.067", "200")},
		asks:    []domain.BookRow{row("0.071", "200"), row("0.069", "100"), row("0.070", "150")},
	}
	a := NewAggregator(zap.NewNop(), src, 1000)
	a.Refresh(context.Background())

	view := a.View()
	require.NoError(t, view.Err)
	assert.False(t, view.Loading)
	assert.True(t, view.Snapshot.Live)

	// scenario: spread is exactly best ask minus best bid
	assert.True(t, view.Snapshot.Spread.Equal(decimal.RequireFromString("0.001")),
		"spread %s", view.Snapshot.Spread.String())

	// rows ranked and totals derived
	require.Len(t, view.Snapshot.Bids, 3)
	assert.True(t, view.Snapshot.Bids[0].Price.Equal(decimal.RequireFromString("0.068")))
	assert.True(t, view.Snapshot.Asks[0].Price.Equal(decimal.RequireFromString("0.069")))
	assert.True(t, view.Snapshot.Bids[0].Total.Equal(decimal.RequireFromString("10.2")))

	require.NotNil(t, view.Snapshot.Auction)
	assert.True(t, view.Snapshot.Auction.IsCleared)
}

func TestAggregator_LiveRefresh_FixedPointValues(t *testing.T) {
	// raw uint256 values scaled by 1e18 must be rescaled before display
	src := &fakeSource{
		bestBid: quote("68000000000000000", "150000000000000000000"), // 0.068, 150
		bestAsk: quote("69000000000000000", "100000000000000000000"), // 0.069, 100
		bids:    []domain.BookRow{row("68000000000000000", "150000000000000000000")},
		asks:    []domain.BookRow{row("69000000000000000", "100000000000000000000")},
	}
	a := NewAggregator(zap.NewNop(), src, 1000)
	a.Refresh(context.Background())

	snapshot := a.View().Snapshot
	assert.True(t, snapshot.BestBid.Price.Equal(decimal.RequireFromString("0.068")))
	assert.True(t, snapshot.BestBid.Quantity.Equal(decimal.NewFromInt(150)))
	assert.True(t, snapshot.Spread.Equal(decimal.RequireFromString("0.001")))
	assert.True(t, snapshot.Bids[0].Total.Equal(decimal.RequireFromString("10.2")))
}

func TestAggregator_EmptyLiveBook_KeepsLiveQuotes(t *testing.T) {
	src := &fakeSource{
		bestBid: quote("0.0685", "10"),
		bestAsk: quote("0.0695", "20"),
	}
	a := NewAggregator(zap.NewNop(), src, 1000)
	a.Refresh(context.Background())

	view := a.View()
	require.NoError(t, view.Err)
	assert.True(t, view.Snapshot.Live)
	// fallback rows fill the depth for display only
	assert.Len(t, view.Snapshot.Bids, 5)
	assert.Len(t, view.Snapshot.Asks, 5)
	// best quotes still reflect live values
	assert.True(t, view.Snapshot.BestBid.Price.Equal(decimal.RequireFromString("0.0685")))
	assert.True(t, view.Snapshot.Spread.Equal(decimal.RequireFromString("0.001")))
}

func TestAggregator_ReadFailure_FallsBackWithError(t *testing.T) {
	src := &fakeSource{err: errors.New("rpc timeout")}
	a := NewAggregator(zap.NewNop(), src, 1000)
	a.Refresh(context.Background())

	view := a.View()
	require.Error(t, view.Err)
	assert.False(t, view.Loading)
	assert.False(t, view.Snapshot.Live)
	assert.Len(t, view.Snapshot.Bids, 5)

	// a later successful refresh clears the error
	src.set(func(f *fakeSource) {
		f.err = nil
		f.bestBid = quote("0.068", "150")
		f.bestAsk = quote("0.069", "100")
	})
	a.Refresh(context.Background())
	view = a.View()
	require.NoError(t, view.Err)
	assert.True(t, view.Snapshot.Live)
}

func TestAggregator_DepthCap(t *testing.T) {
	src := &fakeSource{
		bestBid: quote("0.1", "1"),
		bestAsk: quote("0.2", "1"),
	}
	for i := 0; i < 30; i++ {
		price := decimal.NewFromFloat(0.05).Add(decimal.New(int64(i), -4))
		src.bids = append(src.bids, domain.BookRow{Price: price, Quantity: decimal.NewFromInt(10)})
		src.asks = append(src.asks, domain.BookRow{Price: price.Add(decimal.NewFromFloat(0.1)), Quantity: decimal.NewFromInt(10)})
	}
	a := NewAggregator(zap.NewNop(), src, 1000)
	a.Refresh(context.Background())

	snapshot := a.View().Snapshot
	assert.Len(t, snapshot.Bids, defaultDepthLimit)
	assert.Len(t, snapshot.Asks, defaultDepthLimit)
	// the cap must not touch the best-quote summary
	assert.True(t, snapshot.BestBid.Price.Equal(decimal.RequireFromString("0.1")))
	assert.True(t, snapshot.Spread.Equal(decimal.RequireFromString("0.1")))
}

func TestAggregator_StaleRefreshDiscarded(t *testing.T) {
	gate := make(chan struct{})
	entered := make(chan struct{}, 4)
	src := &fakeSource{
		bestBid: quote("0.0001", "1"),
		bestAsk: quote("0.0002", "1"),
		gate:    gate,
		entered: entered,
	}
	a := NewAggregator(zap.NewNop(), src, 1000)

	// refresh A blocks on the gate
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.Refresh(context.Background())
	}()
	for i := 0; i < 4; i++ {
		<-entered // all four reads of A are in flight
	}

	// refresh B starts after A and completes first
	src.set(func(f *fakeSource) {
		f.gate = nil
		f.entered = nil
		f.bestBid = quote("0.068", "150")
		f.bestAsk = quote("0.069", "100")
	})
	a.Refresh(context.Background())
	require.True(t, a.View().Snapshot.BestBid.Price.Equal(decimal.RequireFromString("0.068")))

	// A now resolves with yet different values and must be discarded
	src.set(func(f *fakeSource) {
		f.bestBid = quote("0.9", "1")
		f.bestAsk = quote("1.0", "1")
	})
	close(gate)
	wg.Wait()

	view := a.View()
	assert.False(t, view.Loading)
	assert.True(t, view.Snapshot.BestBid.Price.Equal(decimal.RequireFromString("0.068")),
		"late refresh must not overwrite the newer result")
}

func TestAggregator_SetSlot_InvalidatesInflightRefresh(t *testing.T) {
	gate := make(chan struct{})
	entered := make(chan struct{}, 4)
	src := &fakeSource{
		bestBid: quote("0.9", "1"),
		bestAsk: quote("1.0", "1"),
		gate:    gate,
		entered: entered,
	}
	a := NewAggregator(zap.NewNop(), src, 1000)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.Refresh(context.Background())
	}()
	for i := 0; i < 4; i++ {
		<-entered
	}

	a.SetSlot(2000)
	close(gate)
	wg.Wait()

	view := a.View()
	assert.Equal(t, uint64(2000), view.Snapshot.TimeSlot)
	assert.False(t, view.Snapshot.Live, "slot change must drop the in-flight result")
}

func TestAggregator_SetSource_Nil_FallsBack(t *testing.T) {
	src := &fakeSource{
		bestBid: quote("0.068", "150"),
		bestAsk: quote("0.069", "100"),
	}
	a := NewAggregator(zap.NewNop(), src, 1000)
	a.Refresh(context.Background())
	require.True(t, a.View().Snapshot.Live)

	a.SetSource(nil)
	view := a.View()
	assert.False(t, view.Snapshot.Live)
	assert.Len(t, view.Snapshot.Bids, 5)
}

func TestNormalizeAmount(t *testing.T) {
	// plain display decimals pass through
	assert.True(t, NormalizeAmount(decimal.RequireFromString("0.068")).Equal(decimal.RequireFromString("0.068")))
	assert.True(t, NormalizeAmount(decimal.NewFromInt(250)).Equal(decimal.NewFromInt(250)))
	// fixed-point integers are rescaled by 1e18
	assert.True(t, NormalizeAmount(decimal.New(1, 18)).Equal(decimal.NewFromInt(1)))
	assert.True(t, NormalizeAmount(decimal.RequireFromString("68000000000000000")).Equal(decimal.RequireFromString("0.068")))
	// the threshold itself is treated as fixed point
	assert.True(t, NormalizeAmount(decimal.New(1, 10)).Equal(decimal.New(1, -8)))
}
