package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// EntryType classifies the business event a journal entry records.
type EntryType string

const (
	EntryTypeTransfer       EntryType = "TRANSFER"
	EntryTypeCashDeposit    EntryType = "CASH_DEPOSIT"
	EntryTypeCashWithdrawal EntryType = "CASH_WITHDRAWAL"
	EntryTypeFee            EntryType = "FEE"
	EntryTypeInterest       EntryType = "INTEREST"
	EntryTypeAdjustment     EntryType = "ADJUSTMENT"
)

func (t EntryType) Valid() bool {
	switch t {
	case EntryTypeTransfer, EntryTypeCashDeposit, EntryTypeCashWithdrawal,
		EntryTypeFee, EntryTypeInterest, EntryTypeAdjustment:
		return true
	}
	return false
}

// EntryStatus is the closed set of journal entry states. Once POSTED an
// entry's lines are immutable; REVERSED marks that a compensating entry has
// undone its effect, it never removes the lines from the ledger.
type EntryStatus string

const (
	EntryStatusPending  EntryStatus = "PENDING"
	EntryStatusPosted   EntryStatus = "POSTED"
	EntryStatusReversed EntryStatus = "REVERSED"
)

func (s EntryStatus) Valid() bool {
	switch s {
	case EntryStatusPending, EntryStatusPosted, EntryStatusReversed:
		return true
	}
	return false
}

// Scan implements sql.Scanner for EntryStatus
func (s *EntryStatus) Scan(value any) error {
	switch v := value.(type) {
	case string:
		*s = EntryStatus(v)
	case []byte:
		*s = EntryStatus(v)
	default:
		return fmt.Errorf("cannot scan %T into EntryStatus", value)
	}
	if !s.Valid() {
		return fmt.Errorf("invalid entry status %q", string(*s))
	}
	return nil
}

// Value implements driver.Valuer for EntryStatus
func (s EntryStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// LineDirection is the side of the double entry a line sits on.
type LineDirection string

const (
	DirectionDebit  LineDirection = "DEBIT"
	DirectionCredit LineDirection = "CREDIT"
)

func (d LineDirection) Valid() bool {
	return d == DirectionDebit || d == DirectionCredit
}

// Opposite returns the flipped direction, used when building compensating
// entries.
func (d LineDirection) Opposite() LineDirection {
	if d == DirectionDebit {
		return DirectionCredit
	}
	return DirectionDebit
}

// SignedAmount applies the balance sign convention: CREDIT lines add to an
// account's balance, DEBIT lines subtract from it.
func (d LineDirection) SignedAmount(amountMinor int64) int64 {
	if d == DirectionCredit {
		return amountMinor
	}
	return -amountMinor
}

// JournalEntry is one balanced accounting event. Ownership is unidirectional:
// the entry owns its lines, lines reference accounts by id, and accounts know
// nothing about entries.
type JournalEntry struct {
	ID                int64              `json:"id" db:"id"`
	EntryType         EntryType          `json:"entry_type" db:"entry_type"`
	Status            EntryStatus        `json:"status" db:"status"`
	BookingDate       time.Time          `json:"booking_date" db:"booking_date"`
	ValueDate         *time.Time         `json:"value_date,omitempty" db:"value_date"`
	ExternalReference string             `json:"external_reference,omitempty" db:"external_reference"`
	Description       string             `json:"description,omitempty" db:"description"`
	CreatedByUserID   *int64             `json:"created_by_user_id,omitempty" db:"created_by_user_id"`
	ReversalOfEntryID *int64             `json:"reversal_of_entry_id,omitempty" db:"reversal_of_entry_id"`
	CreatedAt         time.Time          `json:"created_at" db:"created_at"`
	Lines             []JournalEntryLine `json:"lines,omitempty"`
}

// JournalEntryLine is one side of a journal entry. AmountMinor is always
// positive; the direction carries the sign.
type JournalEntryLine struct {
	ID          int64         `json:"id" db:"id"`
	EntryID     int64         `json:"entry_id" db:"entry_id"`
	AccountID   int64         `json:"account_id" db:"account_id"`
	Direction   LineDirection `json:"direction" db:"direction"`
	AmountMinor int64         `json:"amount_minor" db:"amount_minor"`
	ValueDate   *time.Time    `json:"value_date,omitempty" db:"value_date"`
	Description string        `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
}
