package models

import "time"

// AccountType classifies an account product.
type AccountType string

const (
	AccountTypeCurrent     AccountType = "CURRENT"
	AccountTypeSavings     AccountType = "SAVINGS"
	AccountTypeTermDeposit AccountType = "TERM_DEPOSIT"
)

func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeCurrent, AccountTypeSavings, AccountTypeTermDeposit:
		return true
	}
	return false
}

// AccountProduct is reference data describing the commercial terms of an
// account. The interest rate is carried for reporting only; no interest
// accrual is computed by this service.
type AccountProduct struct {
	ID                      int64       `json:"id" db:"id"`
	Code                    string      `json:"code" db:"code" example:"CUR-STD"`
	Name                    string      `json:"name" db:"name" example:"Standard Current Account"`
	AccountType             AccountType `json:"account_type" db:"account_type"`
	InterestRateBasisPoints int         `json:"interest_rate_basis_points" db:"interest_rate_basis_points"`
	CreatedAt               time.Time   `json:"created_at" db:"created_at"`
}
