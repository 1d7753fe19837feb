package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineDirection_SignedAmount(t *testing.T) {
	t.Run("credit adds", func(t *testing.T) {
		assert.Equal(t, int64(2500), DirectionCredit.SignedAmount(2500))
	})

	t.Run("debit subtracts", func(t *testing.T) {
		assert.Equal(t, int64(-2500), DirectionDebit.SignedAmount(2500))
	})

	t.Run("opposite flips", func(t *testing.T) {
		assert.Equal(t, DirectionCredit, DirectionDebit.Opposite())
		assert.Equal(t, DirectionDebit, DirectionCredit.Opposite())
	})
}

func TestEntryStatus_Scan(t *testing.T) {
	t.Run("valid status from string", func(t *testing.T) {
		var s EntryStatus
		err := s.Scan("POSTED")
		assert.NoError(t, err)
		assert.Equal(t, EntryStatusPosted, s)
	})

	t.Run("valid status from bytes", func(t *testing.T) {
		var s EntryStatus
		err := s.Scan([]byte("REVERSED"))
		assert.NoError(t, err)
		assert.Equal(t, EntryStatusReversed, s)
	})

	t.Run("unknown status rejected", func(t *testing.T) {
		var s EntryStatus
		err := s.Scan("SETTLED")
		assert.Error(t, err)
	})

	t.Run("unsupported type rejected", func(t *testing.T) {
		var s EntryStatus
		err := s.Scan(42)
		assert.Error(t, err)
	})
}

func TestEntryType_Valid(t *testing.T) {
	for _, et := range []EntryType{
		EntryTypeTransfer, EntryTypeCashDeposit, EntryTypeCashWithdrawal,
		EntryTypeFee, EntryTypeInterest, EntryTypeAdjustment,
	} {
		assert.True(t, et.Valid(), string(et))
	}
	assert.False(t, EntryType("REFUND").Valid())
}
