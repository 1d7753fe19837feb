package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// AccountStatus is the closed set of account lifecycle states.
type AccountStatus string

const (
	AccountStatusPending AccountStatus = "PENDING"
	AccountStatusActive  AccountStatus = "ACTIVE"
	AccountStatusBlocked AccountStatus = "BLOCKED"
	AccountStatusClosed  AccountStatus = "CLOSED"
)

func (s AccountStatus) Valid() bool {
	switch s {
	case AccountStatusPending, AccountStatusActive, AccountStatusBlocked, AccountStatusClosed:
		return true
	}
	return false
}

// Scan implements sql.Scanner for AccountStatus
func (s *AccountStatus) Scan(value any) error {
	switch v := value.(type) {
	case string:
		*s = AccountStatus(v)
	case []byte:
		*s = AccountStatus(v)
	default:
		return fmt.Errorf("cannot scan %T into AccountStatus", value)
	}
	if !s.Valid() {
		return fmt.Errorf("invalid account status %q", string(*s))
	}
	return nil
}

// Value implements driver.Valuer for AccountStatus
func (s AccountStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// Account is the ledger's view of a customer account. BalanceMinor is a
// denormalized copy of the posted-line derivation and is mutated only by the
// posting engine, under the account's row lock, together with a Version bump.
type Account struct {
	ID                  int64         `json:"id" db:"id"`
	HolderID            int64         `json:"holder_id" db:"holder_id"`
	ProductID           int64         `json:"product_id" db:"product_id"`
	CurrencyID          int64         `json:"currency_id" db:"currency_id"`
	AccountNumber       string        `json:"account_number" db:"account_number" example:"0000000042"`
	IBAN                string        `json:"iban,omitempty" db:"iban"`
	Status              AccountStatus `json:"status" db:"status"`
	BalanceMinor        int64         `json:"balance_minor" db:"balance_minor"`
	OverdraftLimitMinor int64         `json:"overdraft_limit_minor" db:"overdraft_limit_minor"`
	Version             int           `json:"version" db:"version"` // optimistic locking
	CreatedAt           time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at" db:"updated_at"`
}

// AvailableMinor is the amount the account may still spend before breaching
// its overdraft limit. Solvency invariant: AvailableMinor() >= 0 at all times.
func (a *Account) AvailableMinor() int64 {
	return a.BalanceMinor + a.OverdraftLimitMinor
}
