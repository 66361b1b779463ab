// Package domain defines core data structures shared by the ledger,
// the order book aggregator and the web console.
package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Balance is the three-way partition of a simulated account.
// Locked funds back open bid commitments.
type Balance struct {
	// Total overall token amount held by the account.
	Total decimal.Decimal
	// Available portion that can be transferred or committed to bids.
	Available decimal.Decimal
	// Locked portion reserved for open bids.
	Locked decimal.Decimal
}

// DefaultDemoBalance is the seed balance every demo session starts from.
func DefaultDemoBalance() Balance {
	return Balance{
		Total:     decimal.NewFromInt(10000),
		Available: decimal.NewFromInt(8000),
		Locked:    decimal.NewFromInt(2000),
	}
}

// Validate checks the partition invariant: total = available + locked,
// with no negative component.
func (b Balance) Validate() error {
	if b.Available.IsNegative() {
		return fmt.Errorf("available balance is negative: %s", b.Available.String())
	}
	if b.Locked.IsNegative() {
		return fmt.Errorf("locked balance is negative: %s", b.Locked.String())
	}
	if !b.Total.Equal(b.Available.Add(b.Locked)) {
		return fmt.Errorf("balance mismatch: total %s != available %s + locked %s",
			b.Total.String(), b.Available.String(), b.Locked.String())
	}
	return nil
}

// String returns a human-readable string representation.
func (b Balance) String() string {
	return fmt.Sprintf("total: %s available: %s locked: %s",
		b.Total.String(), b.Available.String(), b.Locked.String())
}
