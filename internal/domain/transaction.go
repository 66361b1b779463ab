package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TxKind classifies a ledger transaction.
type TxKind string

const (
	// TxMint tokens credited from the protocol faucet.
	TxMint TxKind = "mint"
	// TxTransfer tokens sent to another address.
	TxTransfer TxKind = "transfer"
	// TxLock available tokens moved into the locked partition.
	TxLock TxKind = "lock"
	// TxUnlock locked tokens released back to available.
	TxUnlock TxKind = "unlock"
)

// Transaction is an append-only ledger log entry. Records are created once
// when a mutating operation succeeds and are never modified afterwards.
type Transaction struct {
	ID uuid.UUID
	// Kind mint, transfer, lock or unlock.
	Kind TxKind
	// Amount token amount moved, always positive.
	Amount decimal.Decimal
	// Counterparty recipient address, source label, or lock reason.
	Counterparty string
	// Timestamp creation time of the record.
	Timestamp time.Time
}
