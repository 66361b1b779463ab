// Package ledger implements the in-memory demo account used when no wallet
// is connected: a three-way balance, an append-only transaction log and a
// session-scoped order list, all moving together under one lock.
package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gridset/internal/domain"
	"go.uber.org/zap"
)

var (
	// ErrInvalidAmount is returned when an amount, price or quantity is
	// not positive.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInsufficientBalance is returned when a transfer or bid exceeds
	// the available balance.
	ErrInsufficientBalance = errors.New("insufficient available balance")
	// ErrUnknownSide is returned when an order side is neither bid nor ask.
	ErrUnknownSide = errors.New("unknown order side")
)

// SnapshotSink receives a balance snapshot after every successful mutation.
type SnapshotSink interface {
	Save(snapshot domain.BalanceSnapshot) error
}

// Ledger simulates a wallet-backed account without any external chain.
// All mutating operations are serialized; queries return copies, so callers
// never observe an intermediate state.
type Ledger struct {
	mu           sync.RWMutex
	logger       *zap.Logger
	balance      domain.Balance
	transactions []domain.Transaction
	orders       []domain.Order
	lastOrderID  int64
	sink         SnapshotSink
}

// New creates a demo ledger seeded with the default balance and history.
func New(logger *zap.Logger, sink SnapshotSink) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Ledger{logger: logger, sink: sink}
	l.seed()
	logger.Info("demo ledger init", zap.String("balance", l.balance.String()))
	return l
}

// seed loads the initial balance and transaction history.
// Callers must hold the write lock or have exclusive ownership.
func (l *Ledger) seed() {
	now := time.Now()
	l.balance = domain.DefaultDemoBalance()
	l.transactions = []domain.Transaction{
		{ID: uuid.New(), Kind: domain.TxMint, Amount: decimal.NewFromInt(2000), Counterparty: "Faucet", Timestamp: now},
		{ID: uuid.New(), Kind: domain.TxTransfer, Amount: decimal.NewFromInt(50), Counterparty: "0x742d...35Cc", Timestamp: now.Add(-2 * time.Hour)},
		{ID: uuid.New(), Kind: domain.TxLock, Amount: decimal.NewFromInt(100), Counterparty: "Market Order", Timestamp: now.Add(-48 * time.Hour)},
	}
	l.orders = nil
}

// Transfer sends amount to recipient, reducing both total and available.
func (l *Ledger) Transfer(amount decimal.Decimal, recipient string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return errors.Wrapf(ErrInvalidAmount, "transfer amount %s", amount.String())
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if amount.GreaterThan(l.balance.Available) {
		return errors.Wrapf(ErrInsufficientBalance, "have %s need %s",
			l.balance.Available.String(), amount.String())
	}

	l.balance.Available = l.balance.Available.Sub(amount)
	l.balance.Total = l.balance.Total.Sub(amount)
	l.prependTx(domain.Transaction{
		ID:           uuid.New(),
		Kind:         domain.TxTransfer,
		Amount:       amount,
		Counterparty: recipient,
		Timestamp:    time.Now(),
	})

	l.logger.Info("demo transfer executed",
		zap.String("amount", amount.String()),
		zap.String("recipient", recipient),
		zap.String("balance", l.balance.String()))
	l.publish()
	return nil
}

// PlaceOrder records a demo order for the given time slot. Bids lock
// price x quantity out of the available balance; asks only record the order.
func (l *Ledger) PlaceOrder(side domain.Side, price, quantity decimal.Decimal, timeSlot string) (domain.Order, error) {
	if side != domain.SideBid && side != domain.SideAsk {
		return domain.Order{}, errors.Wrapf(ErrUnknownSide, "%s", side)
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return domain.Order{}, errors.Wrapf(ErrInvalidAmount, "order price %s", price.String())
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return domain.Order{}, errors.Wrapf(ErrInvalidAmount, "order quantity %s", quantity.String())
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	order := domain.Order{
		ID:        l.nextOrderID(),
		Side:      side,
		Price:     price,
		Quantity:  quantity,
		TimeSlot:  timeSlot,
		CreatedAt: time.Now(),
	}

	if side == domain.SideBid {
		cost := order.Cost()
		if cost.GreaterThan(l.balance.Available) {
			return domain.Order{}, errors.Wrapf(ErrInsufficientBalance, "bid cost %s exceeds available %s",
				cost.String(), l.balance.Available.String())
		}
		l.balance.Available = l.balance.Available.Sub(cost)
		l.balance.Locked = l.balance.Locked.Add(cost)
		l.prependTx(domain.Transaction{
			ID:           uuid.New(),
			Kind:         domain.TxLock,
			Amount:       cost,
			Counterparty: fmt.Sprintf("Bid slot %s", timeSlot),
			Timestamp:    order.CreatedAt,
		})
	}

	l.orders = append(l.orders, order)
	l.logger.Info("demo order placed",
		zap.String("side", string(side)),
		zap.String("price", price.String()),
		zap.String("quantity", quantity.String()),
		zap.String("slot", timeSlot))
	l.publish()
	return order, nil
}

// Reset restores the seed balance, seed history and empty order list.
// The three collections are swapped under one lock, so no reader observes
// a partially reset session.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seed()
	l.logger.Info("demo ledger reset", zap.String("balance", l.balance.String()))
	l.publish()
}

// Balance returns the current balance.
func (l *Ledger) Balance() domain.Balance {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balance
}

// Transactions returns the log, most recent first.
func (l *Ledger) Transactions() []domain.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Transaction, len(l.transactions))
	copy(out, l.transactions)
	return out
}

// Orders returns all demo orders placed this session, oldest first.
func (l *Ledger) Orders() []domain.Order {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Order, len(l.orders))
	copy(out, l.orders)
	return out
}

func (l *Ledger) prependTx(tx domain.Transaction) {
	l.transactions = append([]domain.Transaction{tx}, l.transactions...)
}

// nextOrderID returns a creation-time based identifier, bumped on collision
// so two orders placed within the same nanosecond stay distinguishable.
func (l *Ledger) nextOrderID() int64 {
	id := time.Now().UnixNano()
	if id <= l.lastOrderID {
		id = l.lastOrderID + 1
	}
	l.lastOrderID = id
	return id
}

// publish pushes the committed balance to the snapshot sink.
// Callers must hold the write lock.
func (l *Ledger) publish() {
	if l.sink == nil {
		return
	}
	snapshot := domain.BalanceSnapshot{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Total:     l.balance.Total.String(),
		Available: l.balance.Available.String(),
		Locked:    l.balance.Locked.String(),
	}
	if err := l.sink.Save(snapshot); err != nil {
		l.logger.Warn("failed to persist balance snapshot", zap.Error(err))
	}
}
