package services

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/corebank/ledger/internal/config"
	"github.com/corebank/ledger/internal/models"
)

func newTestISOService(t *testing.T) (*ISO20022Service, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := config.LoadLedgerConfig()
	ledger := NewLedgerService(db, cfg)
	service := NewISO20022Service(db, ledger, cfg)
	service.now = func() time.Time { return testClock }
	return service, mock
}

func executedTransferFixture() *models.Transfer {
	executedAt := testClock
	entryID := int64(30)
	return &models.Transfer{
		ID:                50,
		FromAccountID:     1,
		ToAccountID:       2,
		AmountMinor:       3000,
		Currency:          "EUR",
		Status:            models.TransferStatusExecuted,
		JournalEntryID:    &entryID,
		ExternalReference: "ref-2026-08-001",
		RequestedAt:       testClock,
		ExecutedAt:        &executedAt,
	}
}

func TestISO20022Service_BuildPacs008(t *testing.T) {
	service, _ := newTestISOService(t)

	from := &models.Account{ID: 1, AccountNumber: "0000000001", IBAN: "XB66CORE0000000001"}
	to := &models.Account{ID: 2, AccountNumber: "0000000002"}
	currency := &models.Currency{ID: 1, Code: "EUR", MinorUnit: 2}

	t.Run("builds credit transfer for executed transfer", func(t *testing.T) {
		transfer := executedTransferFixture()

		doc, err := service.BuildPacs008(transfer, from, to, currency)

		assert.NoError(t, err)
		assert.NotNil(t, doc)
		assert.NotEmpty(t, doc.GrpHdr.MsgId)
		assert.Equal(t, "1", string(doc.GrpHdr.NbOfTxs))
		assert.Equal(t, "EUR", string(doc.GrpHdr.TtlIntrBkSttlmAmt.Ccy))
		assert.InDelta(t, 30.00, doc.GrpHdr.TtlIntrBkSttlmAmt.Value, 0.0001)
		assert.Len(t, doc.CdtTrfTxInf, 1)

		txInfo := doc.CdtTrfTxInf[0]
		assert.Equal(t, "TRF-50", string(*txInfo.PmtId.InstrId))
		assert.Equal(t, "ref-2026-08-001", string(txInfo.PmtId.EndToEndId))
		assert.Equal(t, "COREXBNK", string(*txInfo.DbtrAgt.FinInstnId.BICFI))
		assert.NotNil(t, txInfo.DbtrAcct.Id.IBAN)
		assert.Equal(t, "XB66CORE0000000001", string(*txInfo.DbtrAcct.Id.IBAN))
		// The creditor account has no IBAN, so it identifies by number.
		assert.Nil(t, txInfo.CdtrAcct.Id.IBAN)
		assert.Equal(t, "0000000002", string(txInfo.CdtrAcct.Id.Othr.Id))
	})

	t.Run("falls back to transfer id when no reference", func(t *testing.T) {
		transfer := executedTransferFixture()
		transfer.ExternalReference = ""

		doc, err := service.BuildPacs008(transfer, from, to, currency)

		assert.NoError(t, err)
		assert.Equal(t, "TRF-50", string(doc.CdtTrfTxInf[0].PmtId.EndToEndId))
	})

	t.Run("refuses transfer that did not execute", func(t *testing.T) {
		transfer := executedTransferFixture()
		transfer.Status = models.TransferStatusFailed

		doc, err := service.BuildPacs008(transfer, from, to, currency)

		assert.Error(t, err)
		assert.Nil(t, doc)
	})
}

func TestISO20022Service_BuildPacs002(t *testing.T) {
	service, _ := newTestISOService(t)

	t.Run("accepted settlement for executed transfer", func(t *testing.T) {
		transfer := executedTransferFixture()

		doc, err := service.BuildPacs002(transfer)

		assert.NoError(t, err)
		assert.NotEmpty(t, doc.GrpHdr.MsgId)
		assert.Len(t, doc.TxInfAndSts, 1)
		assert.Equal(t, "ACSC", string(*doc.TxInfAndSts[0].TxSts))
		assert.Equal(t, "TRF-50", string(*doc.TxInfAndSts[0].OrgnlInstrId))
		assert.Equal(t, "ref-2026-08-001", string(*doc.TxInfAndSts[0].OrgnlEndToEndId))
	})

	t.Run("rejection carries the failure reason", func(t *testing.T) {
		transfer := executedTransferFixture()
		transfer.Status = models.TransferStatusFailed
		reason := models.ReasonInsufficientFunds
		transfer.FailureReason = &reason

		doc, err := service.BuildPacs002(transfer)

		assert.NoError(t, err)
		assert.Equal(t, "RJCT", string(*doc.TxInfAndSts[0].TxSts))
		assert.Len(t, doc.TxInfAndSts[0].StsRsnInf, 1)
		assert.Equal(t, "INSUFFICIENT_FUNDS", string(*doc.TxInfAndSts[0].StsRsnInf[0].Rsn.Prtry))
	})

	t.Run("refuses pending transfer", func(t *testing.T) {
		transfer := executedTransferFixture()
		transfer.Status = models.TransferStatusPending

		doc, err := service.BuildPacs002(transfer)

		assert.Error(t, err)
		assert.Nil(t, doc)
	})
}

func TestISO20022Service_ConvertToXML(t *testing.T) {
	service, _ := newTestISOService(t)

	t.Run("renders document with xml header", func(t *testing.T) {
		transfer := executedTransferFixture()
		doc, err := service.BuildPacs002(transfer)
		assert.NoError(t, err)

		xmlString, err := service.ConvertToXML(doc)

		assert.NoError(t, err)
		assert.True(t, strings.HasPrefix(xmlString, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>"))
		assert.Contains(t, xmlString, "TRF-50")
	})

	t.Run("unmarshalable value errors", func(t *testing.T) {
		xmlString, err := service.ConvertToXML(make(chan int))

		assert.Error(t, err)
		assert.Empty(t, xmlString)
		assert.Contains(t, err.Error(), "failed to marshal XML")
	})
}

func TestISO20022Service_ExportPacs008(t *testing.T) {
	t.Run("exports executed transfer", func(t *testing.T) {
		service, mock := newTestISOService(t)

		mock.ExpectQuery(regexp.QuoteMeta(`FROM transfers WHERE id = $1`)).
			WithArgs(int64(50)).
			WillReturnRows(executedTransferRow(50, "ref-2026-08-001"))
		mock.ExpectQuery(regexp.QuoteMeta(`FROM accounts WHERE id = $1`)).
			WithArgs(int64(1)).
			WillReturnRows(accountRowFull(1, "0000000001", "XB66CORE0000000001", "ACTIVE", 7000, 0, 2))
		mock.ExpectQuery(regexp.QuoteMeta(`FROM accounts WHERE id = $1`)).
			WithArgs(int64(2)).
			WillReturnRows(accountRowFull(2, "0000000002", nil, "ACTIVE", 3500, 0, 2))
		mock.ExpectQuery(regexp.QuoteMeta(`FROM currencies WHERE id = $1`)).
			WithArgs(int64(1)).
			WillReturnRows(currencyRow(1, "EUR", 2))

		r := chi.NewRouter()
		r.Get("/transfers/{id}/pacs008", service.ExportPacs008)

		req := httptest.NewRequest("GET", "/transfers/50/pacs008", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "pacs.008.001.08", body["messageType"])
		assert.Contains(t, body["xml"], "TRF-50")
		assert.Contains(t, body["xml"], "EUR")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("conflict for failed transfer", func(t *testing.T) {
		service, mock := newTestISOService(t)

		mock.ExpectQuery(regexp.QuoteMeta(`FROM transfers WHERE id = $1`)).
			WithArgs(int64(51)).
			WillReturnRows(sqlmock.NewRows(transferRowColumns).
				AddRow(int64(51), int64(1), int64(2), int64(3000), "EUR", "FAILED",
					"INSUFFICIENT_FUNDS", nil, "", "ref-f", nil, testClock, nil))

		r := chi.NewRouter()
		r.Get("/transfers/{id}/pacs008", service.ExportPacs008)

		req := httptest.NewRequest("GET", "/transfers/51/pacs008", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestISO20022Service_ExportPacs002(t *testing.T) {
	service, mock := newTestISOService(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM transfers WHERE id = $1`)).
		WithArgs(int64(51)).
		WillReturnRows(sqlmock.NewRows(transferRowColumns).
			AddRow(int64(51), int64(1), int64(2), int64(3000), "EUR", "FAILED",
				"INSUFFICIENT_FUNDS", nil, "", "ref-f", nil, testClock, nil))

	r := chi.NewRouter()
	r.Get("/transfers/{id}/pacs002", service.ExportPacs002)

	req := httptest.NewRequest("GET", "/transfers/51/pacs002", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "pacs.002.001.08", body["messageType"])
	assert.Contains(t, body["xml"], "RJCT")
	assert.Contains(t, body["xml"], "INSUFFICIENT_FUNDS")
	assert.NoError(t, mock.ExpectationsWereMet())
}
