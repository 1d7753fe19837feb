package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Currency is immutable reference data. MinorUnit is the number of decimal
// digits a display amount carries (2 for cents), so every monetary amount in
// the ledger is an integer count of minor units.
type Currency struct {
	ID        int64     `json:"id" db:"id"`
	Code      string    `json:"code" db:"code" example:"EUR"`
	Name      string    `json:"name" db:"name" example:"Euro"`
	MinorUnit int       `json:"minor_unit" db:"minor_unit" example:"2"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Display converts a minor-unit amount to its decimal display value,
// e.g. 12345 minor units of a 2-digit currency -> 123.45.
func (c Currency) Display(amountMinor int64) decimal.Decimal {
	return decimal.New(amountMinor, -int32(c.MinorUnit))
}

// DisplayString renders a minor-unit amount with the currency's full scale.
func (c Currency) DisplayString(amountMinor int64) string {
	return c.Display(amountMinor).StringFixed(int32(c.MinorUnit))
}
