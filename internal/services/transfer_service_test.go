package services

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redismock/v8"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/corebank/ledger/internal/config"
	"github.com/corebank/ledger/internal/models"
)

func newTestTransferService(t *testing.T) (*TransferService, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := config.LoadLedgerConfig()
	ledger := NewLedgerService(db, cfg)
	ledger.now = func() time.Time { return testClock }

	service := NewTransferService(db, nil, ledger, cfg)
	service.now = func() time.Time { return testClock }
	return service, mock
}

var transferRowColumns = []string{
	"id", "from_account_id", "to_account_id", "amount_minor", "currency", "status",
	"failure_reason", "journal_entry_id", "description", "external_reference",
	"requested_by_user_id", "requested_at", "executed_at",
}

func executedTransferRow(id int64, reference string) *sqlmock.Rows {
	return sqlmock.NewRows(transferRowColumns).
		AddRow(id, int64(1), int64(2), int64(3000), "EUR", "EXECUTED",
			nil, int64(30), "Rent August", reference, nil, testClock, testClock)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func postTransfer(service *TransferService, payload string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/transfers", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	service.ExecuteTransfer(w, req)
	return w
}

func TestTransferService_ExecuteTransfer(t *testing.T) {
	t.Run("ExecutesFundedTransfer", func(t *testing.T) {
		service, mock := newTestTransferService(t)

		mock.ExpectQuery(regexp.QuoteMeta(`FROM transfers WHERE external_reference = $1`)).
			WithArgs("ref-2026-08-001").
			WillReturnError(sql.ErrNoRows)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO transfers`)).
			WithArgs(int64(1), int64(2), int64(3000), "PENDING", "Rent August", "ref-2026-08-001", nil, testClock).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(21)))
		mock.ExpectQuery(regexp.QuoteMeta(lockAccountQuery)).
			WithArgs(int64(1)).WillReturnRows(accountRow(1, 10000, 0, 1))
		mock.ExpectQuery(regexp.QuoteMeta(lockAccountQuery)).
			WithArgs(int64(2)).WillReturnRows(accountRow(2, 500, 0, 3))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT code FROM currencies WHERE id = $1`)).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("EUR"))

		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO journal_entries`)).
			WithArgs("TRANSFER", "POSTED", testClock, nil, "ref-2026-08-001", "Rent August", nil, nil).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(30), testClock))
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO journal_entry_lines`)).
			WithArgs(int64(30), int64(1), "DEBIT", int64(3000), nil, "").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(300), testClock))
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO journal_entry_lines`)).
			WithArgs(int64(30), int64(2), "CREDIT", int64(3000), nil, "").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(301), testClock))
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE accounts SET`)).
			WithArgs(int64(7000), testClock, int64(1), 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE accounts SET`)).
			WithArgs(int64(3500), testClock, int64(2), 3).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO outbox_messages`)).
			WithArgs("30", "ledger.postings", sqlmock.AnyArg(), "PENDING").
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec(regexp.QuoteMeta(`UPDATE transfers SET status = $1, journal_entry_id = $2, executed_at = $3, currency = $4 WHERE id = $5`)).
			WithArgs("EXECUTED", int64(30), testClock, "EUR", int64(21)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO outbox_messages`)).
			WithArgs("21", "ledger.transfers", sqlmock.AnyArg(), "PENDING").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		w := postTransfer(service, `{
			"from_account_id": 1,
			"to_account_id": 2,
			"amount_minor": 3000,
			"description": "Rent August",
			"external_reference": "ref-2026-08-001"
		}`)

		assert.Equal(t, http.StatusCreated, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, true, body["success"])
		transfer := body["transfer"].(map[string]interface{})
		assert.Equal(t, float64(21), transfer["id"])
		assert.Equal(t, "EXECUTED", transfer["status"])
		assert.Equal(t, float64(30), transfer["journal_entry_id"])
		assert.Equal(t, "EUR", transfer["currency"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RecordsInsufficientFundsAsFailed", func(t *testing.T) {
		service, mock := newTestTransferService(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO transfers`)).
			WithArgs(int64(1), int64(2), int64(999999), "PENDING", "", nil, nil, testClock).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(22)))
		mock.ExpectQuery(regexp.QuoteMeta(lockAccountQuery)).
			WithArgs(int64(1)).WillReturnRows(accountRow(1, 5000, 0, 1))
		mock.ExpectQuery(regexp.QuoteMeta(lockAccountQuery)).
			WithArgs(int64(2)).WillReturnRows(accountRow(2, 0, 0, 1))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT code FROM currencies WHERE id = $1`)).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("EUR"))
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE transfers SET status = $1, failure_reason = $2, currency = $3 WHERE id = $4`)).
			WithArgs("FAILED", "INSUFFICIENT_FUNDS", "EUR", int64(22)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO outbox_messages`)).
			WithArgs("22", "ledger.transfers", sqlmock.AnyArg(), "PENDING").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		w := postTransfer(service, `{"from_account_id": 1, "to_account_id": 2, "amount_minor": 999999}`)

		// A business rejection is a recorded outcome, not an HTTP error.
		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, false, body["success"])
		transfer := body["transfer"].(map[string]interface{})
		assert.Equal(t, "FAILED", transfer["status"])
		assert.Equal(t, "INSUFFICIENT_FUNDS", transfer["failure_reason"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RejectsSelfTransferWithoutLocking", func(t *testing.T) {
		service, mock := newTestTransferService(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO transfers`)).
			WithArgs(int64(5), int64(5), int64(100), "PENDING", "", nil, nil, testClock).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(23)))
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE transfers SET status = $1, failure_reason = $2, currency = $3 WHERE id = $4`)).
			WithArgs("FAILED", "INVALID_ACCOUNTS", nil, int64(23)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO outbox_messages`)).
			WithArgs("23", "ledger.transfers", sqlmock.AnyArg(), "PENDING").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		w := postTransfer(service, `{"from_account_id": 5, "to_account_id": 5, "amount_minor": 100}`)

		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		transfer := body["transfer"].(map[string]interface{})
		assert.Equal(t, "INVALID_ACCOUNTS", transfer["failure_reason"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RecordsUnknownDestinationAsFailed", func(t *testing.T) {
		service, mock := newTestTransferService(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO transfers`)).
			WithArgs(int64(1), int64(77), int64(100), "PENDING", "", nil, nil, testClock).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(24)))
		mock.ExpectQuery(regexp.QuoteMeta(lockAccountQuery)).
			WithArgs(int64(1)).WillReturnRows(accountRow(1, 5000, 0, 1))
		mock.ExpectQuery(regexp.QuoteMeta(lockAccountQuery)).
			WithArgs(int64(77)).WillReturnError(sql.ErrNoRows)
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE transfers SET status = $1, failure_reason = $2, currency = $3 WHERE id = $4`)).
			WithArgs("FAILED", "INVALID_ACCOUNTS", nil, int64(24)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO outbox_messages`)).
			WithArgs("24", "ledger.transfers", sqlmock.AnyArg(), "PENDING").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		w := postTransfer(service, `{"from_account_id": 1, "to_account_id": 77, "amount_minor": 100}`)

		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		transfer := body["transfer"].(map[string]interface{})
		assert.Equal(t, "INVALID_ACCOUNTS", transfer["failure_reason"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RecordsLockTimeoutInFreshTransaction", func(t *testing.T) {
		service, mock := newTestTransferService(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO transfers`)).
			WithArgs(int64(1), int64(2), int64(100), "PENDING", "", nil, nil, testClock).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(25)))
		mock.ExpectQuery(regexp.QuoteMeta(lockAccountQuery)).
			WithArgs(int64(1)).WillReturnRows(accountRow(1, 5000, 0, 1))
		mock.ExpectQuery(regexp.QuoteMeta(lockAccountQuery)).
			WithArgs(int64(2)).WillReturnError(&pq.Error{Code: "55P03"})
		// The attempt rolls back before the compensating FAILED row is
		// written, so the new insert cannot collide with the PENDING one.
		mock.ExpectRollback()

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO transfers`)).
			WithArgs(int64(1), int64(2), int64(100), nil, "FAILED", "TIMEOUT", "", nil, nil, testClock).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(26)))
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO outbox_messages`)).
			WithArgs("26", "ledger.transfers", sqlmock.AnyArg(), "PENDING").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		w := postTransfer(service, `{"from_account_id": 1, "to_account_id": 2, "amount_minor": 100}`)

		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, false, body["success"])
		transfer := body["transfer"].(map[string]interface{})
		assert.Equal(t, float64(26), transfer["id"])
		assert.Equal(t, "TIMEOUT", transfer["failure_reason"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ReplaysTransferForKnownReference", func(t *testing.T) {
		service, mock := newTestTransferService(t)

		mock.ExpectQuery(regexp.QuoteMeta(`FROM transfers WHERE external_reference = $1`)).
			WithArgs("ref-dup").
			WillReturnRows(executedTransferRow(50, "ref-dup"))

		w := postTransfer(service, `{"from_account_id": 1, "to_account_id": 2, "amount_minor": 3000, "external_reference": "ref-dup"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "Transfer already processed", body["message"])
		transfer := body["transfer"].(map[string]interface{})
		assert.Equal(t, float64(50), transfer["id"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("LosingInsertRaceReturnsWinnerRow", func(t *testing.T) {
		service, mock := newTestTransferService(t)

		mock.ExpectQuery(regexp.QuoteMeta(`FROM transfers WHERE external_reference = $1`)).
			WithArgs("ref-race").
			WillReturnError(sql.ErrNoRows)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO transfers`)).
			WithArgs(int64(1), int64(2), int64(3000), "PENDING", "", "ref-race", nil, testClock).
			WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectRollback()
		mock.ExpectQuery(regexp.QuoteMeta(`FROM transfers WHERE external_reference = $1`)).
			WithArgs("ref-race").
			WillReturnRows(executedTransferRow(60, "ref-race"))

		w := postTransfer(service, `{"from_account_id": 1, "to_account_id": 2, "amount_minor": 3000, "external_reference": "ref-race"}`)

		assert.Equal(t, http.StatusCreated, w.Code)
		body := decodeBody(t, w)
		transfer := body["transfer"].(map[string]interface{})
		assert.Equal(t, float64(60), transfer["id"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RejectsUnknownField", func(t *testing.T) {
		service, mock := newTestTransferService(t)

		w := postTransfer(service, `{"from_account": 1}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RejectsTrailingData", func(t *testing.T) {
		service, mock := newTestTransferService(t)

		w := postTransfer(service, `{"from_account_id": 1, "to_account_id": 2, "amount_minor": 100} {}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransferService_IdempotencyCache(t *testing.T) {
	newCachedService := func(t *testing.T) (*TransferService, sqlmock.Sqlmock, redismock.ClientMock) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("failed to create sqlmock: %v", err)
		}
		t.Cleanup(func() { db.Close() })

		redisClient, redisMock := redismock.NewClientMock()
		cfg := config.LoadLedgerConfig()
		ledger := NewLedgerService(db, cfg)
		service := NewTransferService(db, redisClient, ledger, cfg)
		service.now = func() time.Time { return testClock }
		return service, mock, redisMock
	}

	t.Run("CacheHitSkipsDatabase", func(t *testing.T) {
		service, mock, redisMock := newCachedService(t)

		executedAt := testClock
		entryID := int64(30)
		cached := models.Transfer{
			ID:                50,
			FromAccountID:     1,
			ToAccountID:       2,
			AmountMinor:       3000,
			Currency:          "EUR",
			Status:            models.TransferStatusExecuted,
			JournalEntryID:    &entryID,
			ExternalReference: "ref-cached",
			RequestedAt:       testClock,
			ExecutedAt:        &executedAt,
		}
		data, err := json.Marshal(&cached)
		assert.NoError(t, err)
		redisMock.ExpectGet("transfer:ref:ref-cached").SetVal(string(data))

		w := postTransfer(service, `{"from_account_id": 1, "to_account_id": 2, "amount_minor": 3000, "external_reference": "ref-cached"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "Transfer already processed", body["message"])
		transfer := body["transfer"].(map[string]interface{})
		assert.Equal(t, float64(50), transfer["id"])
		// No queries hit the database on a cache hit.
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("CacheMissFallsBackToTable", func(t *testing.T) {
		service, mock, redisMock := newCachedService(t)

		redisMock.ExpectGet("transfer:ref:ref-dup").RedisNil()
		mock.ExpectQuery(regexp.QuoteMeta(`FROM transfers WHERE external_reference = $1`)).
			WithArgs("ref-dup").
			WillReturnRows(executedTransferRow(50, "ref-dup"))
		// The terminal row found in the table is written back to the cache.
		redisMock.Regexp().ExpectSet("transfer:ref:ref-dup", `.*"status":"EXECUTED".*`, 24*time.Hour).SetVal("OK")

		w := postTransfer(service, `{"from_account_id": 1, "to_account_id": 2, "amount_minor": 3000, "external_reference": "ref-dup"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		transfer := body["transfer"].(map[string]interface{})
		assert.Equal(t, float64(50), transfer["id"])
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})
}

func TestTransferService_GetTransfer(t *testing.T) {
	t.Run("ReturnsTransfer", func(t *testing.T) {
		service, mock := newTestTransferService(t)

		mock.ExpectQuery(regexp.QuoteMeta(`FROM transfers WHERE id = $1`)).
			WithArgs(int64(50)).
			WillReturnRows(executedTransferRow(50, "ref-dup"))

		r := chi.NewRouter()
		r.Get("/transfers/{id}", service.GetTransfer)

		req := httptest.NewRequest("GET", "/transfers/50", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, float64(50), body["id"])
		assert.Equal(t, "EXECUTED", body["status"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		service, mock := newTestTransferService(t)

		mock.ExpectQuery(regexp.QuoteMeta(`FROM transfers WHERE id = $1`)).
			WithArgs(int64(99)).
			WillReturnError(sql.ErrNoRows)

		r := chi.NewRouter()
		r.Get("/transfers/{id}", service.GetTransfer)

		req := httptest.NewRequest("GET", "/transfers/99", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransferService_ListTransfers(t *testing.T) {
	t.Run("FiltersByAccountAndStatus", func(t *testing.T) {
		service, mock := newTestTransferService(t)

		mock.ExpectQuery(regexp.QuoteMeta(`FROM transfers WHERE from_account_id = $1 AND status = $2 ORDER BY requested_at DESC, id DESC LIMIT $3`)).
			WithArgs(int64(1), "EXECUTED", int64(50)).
			WillReturnRows(executedTransferRow(50, "ref-a").
				AddRow(int64(49), int64(1), int64(3), int64(1200), "EUR", "EXECUTED",
					nil, int64(29), "", "ref-b", nil, testClock, testClock))

		req := httptest.NewRequest("GET", "/transfers?from_account_id=1&status=executed", nil)
		w := httptest.NewRecorder()
		service.ListTransfers(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, float64(2), body["count"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RejectsUnknownStatusFilter", func(t *testing.T) {
		service, mock := newTestTransferService(t)

		req := httptest.NewRequest("GET", "/transfers?status=SETTLED", nil)
		w := httptest.NewRecorder()
		service.ListTransfers(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
