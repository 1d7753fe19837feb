package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// TransferStatus is the closed set of transfer lifecycle states. EXECUTED and
// FAILED are terminal; a transfer never leaves either.
type TransferStatus string

const (
	TransferStatusPending  TransferStatus = "PENDING"
	TransferStatusExecuted TransferStatus = "EXECUTED"
	TransferStatusFailed   TransferStatus = "FAILED"
)

func (s TransferStatus) Valid() bool {
	switch s {
	case TransferStatusPending, TransferStatusExecuted, TransferStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transition.
func (s TransferStatus) Terminal() bool {
	return s == TransferStatusExecuted || s == TransferStatusFailed
}

// Scan implements sql.Scanner for TransferStatus
func (s *TransferStatus) Scan(value any) error {
	switch v := value.(type) {
	case string:
		*s = TransferStatus(v)
	case []byte:
		*s = TransferStatus(v)
	default:
		return fmt.Errorf("cannot scan %T into TransferStatus", value)
	}
	if !s.Valid() {
		return fmt.Errorf("invalid transfer status %q", string(*s))
	}
	return nil
}

// Value implements driver.Valuer for TransferStatus
func (s TransferStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// FailureReason is the closed vocabulary of transfer rejection and abort
// causes. Business rejections resolve the transfer as FAILED with one of
// these; they are results, not errors.
type FailureReason string

const (
	ReasonAccountNotActive  FailureReason = "ACCOUNT_NOT_ACTIVE"
	ReasonCurrencyMismatch  FailureReason = "CURRENCY_MISMATCH"
	ReasonInvalidAmount     FailureReason = "INVALID_AMOUNT"
	ReasonInvalidAccounts   FailureReason = "INVALID_ACCOUNTS"
	ReasonInsufficientFunds FailureReason = "INSUFFICIENT_FUNDS"
	ReasonTimeout           FailureReason = "TIMEOUT"
	ReasonStorageFailure    FailureReason = "STORAGE_FAILURE"
)

func (r FailureReason) Valid() bool {
	switch r {
	case ReasonAccountNotActive, ReasonCurrencyMismatch, ReasonInvalidAmount,
		ReasonInvalidAccounts, ReasonInsufficientFunds, ReasonTimeout, ReasonStorageFailure:
		return true
	}
	return false
}

// Transfer is a request/intent record. It owns at most one journal entry,
// created only on successful execution. The transfers table deliberately
// carries no foreign keys to accounts so that rejections against unknown
// accounts can still be recorded as FAILED rows.
type Transfer struct {
	ID                int64          `json:"id" db:"id"`
	FromAccountID     int64          `json:"from_account_id" db:"from_account_id"`
	ToAccountID       int64          `json:"to_account_id" db:"to_account_id"`
	AmountMinor       int64          `json:"amount_minor" db:"amount_minor"`
	Currency          string         `json:"currency,omitempty" db:"currency"`
	Status            TransferStatus `json:"status" db:"status"`
	FailureReason     *FailureReason `json:"failure_reason,omitempty" db:"failure_reason"`
	JournalEntryID    *int64         `json:"journal_entry_id,omitempty" db:"journal_entry_id"`
	Description       string         `json:"description,omitempty" db:"description"`
	ExternalReference string         `json:"external_reference,omitempty" db:"external_reference"`
	RequestedByUserID *int64         `json:"requested_by_user_id,omitempty" db:"requested_by_user_id"`
	RequestedAt       time.Time      `json:"requested_at" db:"requested_at"`
	ExecutedAt        *time.Time     `json:"executed_at,omitempty" db:"executed_at"`
}
