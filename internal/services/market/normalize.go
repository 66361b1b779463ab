package market

import (
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gridset/internal/domain"
)

// EnergyToken accounting unit on chain: uint256 fixed point with 18 decimals.
const tokenDecimals = 18

// Values at or above this magnitude cannot be plain display decimals for this
// market, so they are treated as unscaled fixed-point integers. The chain
// client already rescales at the boundary; this guard catches values that
// arrive through a source that did not.
var fixedPointThreshold = decimal.New(1, 10) // 1e10

// NormalizeAmount converts a possibly raw fixed-point value into a plain
// display decimal. Already-scaled values pass through unchanged.
func NormalizeAmount(v decimal.Decimal) decimal.Decimal {
	if v.Abs().GreaterThanOrEqual(fixedPointThreshold) {
		return v.Shift(-tokenDecimals)
	}
	return v
}

func normalizeQuote(q domain.Quote) domain.Quote {
	return domain.Quote{
		Price:    NormalizeAmount(q.Price),
		Quantity: NormalizeAmount(q.Quantity),
	}
}

// normalizeRows rescales every row and rederives the quote-side total from
// the normalized price and quantity.
func normalizeRows(rows []domain.BookRow) []domain.BookRow {
	out := make([]domain.BookRow, 0, len(rows))
	for _, r := range rows {
		price := NormalizeAmount(r.Price)
		quantity := NormalizeAmount(r.Quantity)
		out = append(out, domain.BookRow{
			Price:          price,
			Quantity:       quantity,
			FilledQuantity: NormalizeAmount(r.FilledQuantity),
			Total:          price.Mul(quantity),
		})
	}
	return out
}
