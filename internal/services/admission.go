package services

import (
	"fmt"

	"github.com/corebank/ledger/internal/models"
)

// AdmitTransfer decides whether a transfer between two locked account
// snapshots may post. Checks run in fixed order and the first failure wins:
// source status, destination status, currency, amount, funds. It reads only
// its arguments, so the verdict is stable for a given pair of snapshots.
func AdmitTransfer(from, to *models.Account, amountMinor int64) (models.FailureReason, bool) {
	if from.Status != models.AccountStatusActive {
		return models.ReasonAccountNotActive, false
	}
	if to.Status != models.AccountStatusActive {
		return models.ReasonAccountNotActive, false
	}
	if from.CurrencyID != to.CurrencyID {
		return models.ReasonCurrencyMismatch, false
	}
	if amountMinor <= 0 {
		return models.ReasonInvalidAmount, false
	}
	if from.AvailableMinor() < amountMinor {
		return models.ReasonInsufficientFunds, false
	}
	return "", true
}

// ValidateEntryLines checks that a candidate journal entry can post: at
// least two lines, every amount strictly positive, and debits equal to
// credits. Amounts are in minor units.
func ValidateEntryLines(lines []models.JournalEntryLine) error {
	if len(lines) < 2 {
		return fmt.Errorf("journal entry requires at least 2 lines, got %d", len(lines))
	}

	var debits, credits int64
	for i, line := range lines {
		if !line.Direction.Valid() {
			return fmt.Errorf("line %d: unknown direction %q", i, line.Direction)
		}
		if line.AmountMinor <= 0 {
			return fmt.Errorf("line %d: amount must be positive, got %d", i, line.AmountMinor)
		}
		switch line.Direction {
		case models.DirectionDebit:
			debits += line.AmountMinor
		case models.DirectionCredit:
			credits += line.AmountMinor
		}
	}

	if debits != credits {
		return fmt.Errorf("journal entry unbalanced: debits %d, credits %d", debits, credits)
	}
	return nil
}
