package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func newTestReconciliationService(t *testing.T) (*ReconciliationService, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	service := NewReconciliationService(db)
	service.now = func() time.Time { return testClock }
	return service, mock
}

var reconciliationColumns = []string{"id", "account_number", "balance_minor", "derived_minor"}

func TestReconciliationService_Run(t *testing.T) {
	t.Run("ReportsDriftedAccounts", func(t *testing.T) {
		service, mock := newTestReconciliationService(t)

		mock.ExpectQuery(`SELECT a\.id, a\.account_number, a\.balance_minor`).
			WillReturnRows(sqlmock.NewRows(reconciliationColumns).
				AddRow(int64(1), "CASH-EUR", int64(-5000), int64(-5000)).
				AddRow(int64(9), "0000000009", int64(3500), int64(3500)).
				AddRow(int64(12), "0000000012", int64(900), int64(1000)))

		report, err := service.Run(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, 3, report.CheckedAccounts)
		assert.False(t, report.Clean)
		assert.Len(t, report.Drifts, 1)
		assert.Equal(t, int64(12), report.Drifts[0].AccountID)
		assert.Equal(t, int64(-100), report.Drifts[0].DriftMinor)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("CleanLedger", func(t *testing.T) {
		service, mock := newTestReconciliationService(t)

		mock.ExpectQuery(`SELECT a\.id, a\.account_number, a\.balance_minor`).
			WillReturnRows(sqlmock.NewRows(reconciliationColumns).
				AddRow(int64(1), "CASH-EUR", int64(0), int64(0)))

		report, err := service.Run(context.Background())

		assert.NoError(t, err)
		assert.True(t, report.Clean)
		assert.Empty(t, report.Drifts)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReconciliationService_ReconcileHandler(t *testing.T) {
	service, mock := newTestReconciliationService(t)

	mock.ExpectQuery(`SELECT a\.id, a\.account_number, a\.balance_minor`).
		WillReturnRows(sqlmock.NewRows(reconciliationColumns).
			AddRow(int64(1), "CASH-EUR", int64(0), int64(0)).
			AddRow(int64(9), "0000000009", int64(3500), int64(3500)))

	req := httptest.NewRequest("GET", "/admin/reconciliation", nil)
	w := httptest.NewRecorder()
	service.Reconcile(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["clean"])
	assert.Equal(t, float64(2), body["checked_accounts"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
