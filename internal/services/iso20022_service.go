package services

import (
	"database/sql"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"

	"github.com/corebank/ledger/internal/config"
	"github.com/corebank/ledger/internal/models"
)

// ISO20022Service renders executed transfers as pacs.008 credit transfer
// messages and terminal transfers as pacs.002 status reports, for exchange
// with settlement partners.
type ISO20022Service struct {
	db     *sql.DB
	ledger *LedgerService
	cfg    *config.LedgerConfig

	// now is swappable in tests
	now func() time.Time
}

func NewISO20022Service(db *sql.DB, ledger *LedgerService, cfg *config.LedgerConfig) *ISO20022Service {
	return &ISO20022Service{
		db:     db,
		ledger: ledger,
		cfg:    cfg,
		now:    time.Now,
	}
}

// instructionID is the scheme-facing identifier of a transfer.
func instructionID(transfer *models.Transfer) string {
	return fmt.Sprintf("TRF-%d", transfer.ID)
}

// endToEndID prefers the client's reference and falls back to the
// transfer's own identifier.
func endToEndID(transfer *models.Transfer) string {
	if transfer.ExternalReference != "" {
		return transfer.ExternalReference
	}
	return instructionID(transfer)
}

func (iso *ISO20022Service) partyAccount(account *models.Account) *pacs_v08.CashAccount38 {
	if account.IBAN != "" {
		iban := common.IBAN2007Identifier(account.IBAN)
		return &pacs_v08.CashAccount38{
			Id: pacs_v08.AccountIdentification4Choice{IBAN: &iban},
		}
	}
	return &pacs_v08.CashAccount38{
		Id: pacs_v08.AccountIdentification4Choice{
			Othr: pacs_v08.GenericAccountIdentification1{
				Id: common.Max34Text(account.AccountNumber),
			},
		},
	}
}

// BuildPacs008 creates a pacs.008 FIToFICustomerCreditTransfer for an
// executed transfer.
func (iso *ISO20022Service) BuildPacs008(transfer *models.Transfer, from, to *models.Account, currency *models.Currency) (*pacs_v08.FIToFICustomerCreditTransferV08, error) {
	if transfer.Status != models.TransferStatusExecuted {
		return nil, fmt.Errorf("transfer %d is %s, only EXECUTED transfers settle as pacs.008", transfer.ID, transfer.Status)
	}

	amount := currency.Display(transfer.AmountMinor).InexactFloat64()
	settlementDate := transfer.RequestedAt
	if transfer.ExecutedAt != nil {
		settlementDate = *transfer.ExecutedAt
	}

	bic := common.BICFIDec2014Identifier(iso.cfg.BankBIC)
	instrID := common.Max35Text(instructionID(transfer))
	fromName := common.Max140Text(from.AccountNumber)
	toName := common.Max140Text(to.AccountNumber)

	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(uuid.New().String()),
			CreDtTm: common.ISODateTime(iso.now()),
			NbOfTxs: "1",
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(currency.Code),
				Value: amount,
			},
			IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG",
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &instrID,
					EndToEndId: common.Max35Text(endToEndID(transfer)),
					TxId:       &instrID,
				},
				IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
					Ccy:   common.ActiveCurrencyCode(currency.Code),
					Value: amount,
				},
				IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
				ChrgBr:        "SLEV",
				DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{BICFI: &bic},
				},
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &fromName,
				},
				DbtrAcct: iso.partyAccount(from),
				CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{BICFI: &bic},
				},
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &toName,
				},
				CdtrAcct: iso.partyAccount(to),
			},
		},
	}

	return doc, nil
}

// BuildPacs002 creates a pacs.002 payment status report for a terminal
// transfer: ACSC for executed, RJCT with the failure reason for failed.
func (iso *ISO20022Service) BuildPacs002(transfer *models.Transfer) (*pacs_v08.FIToFIPaymentStatusReportV08, error) {
	if !transfer.Status.Terminal() {
		return nil, fmt.Errorf("transfer %d is still %s, no status report to give", transfer.ID, transfer.Status)
	}

	status := pacs_v08.ExternalPaymentTransactionStatus1Code("ACSC")
	instrID := common.Max35Text(instructionID(transfer))
	e2e := common.Max35Text(endToEndID(transfer))

	txInfo := pacs_v08.PaymentTransaction80{
		OrgnlInstrId:    &instrID,
		OrgnlEndToEndId: &e2e,
		OrgnlTxId:       &instrID,
	}
	if transfer.Status == models.TransferStatusFailed {
		status = "RJCT"
		if transfer.FailureReason != nil {
			reason := common.Max35Text(*transfer.FailureReason)
			txInfo.StsRsnInf = []pacs_v08.StatusReasonInformation9{
				{Rsn: &pacs_v08.StatusReason6Choice{Prtry: &reason}},
			}
		}
	}
	txInfo.TxSts = &status

	doc := &pacs_v08.FIToFIPaymentStatusReportV08{
		GrpHdr: pacs_v08.GroupHeader53{
			MsgId:   common.Max35Text(uuid.New().String()),
			CreDtTm: common.ISODateTime(iso.now()),
		},
		TxInfAndSts: []pacs_v08.PaymentTransaction80{txInfo},
	}

	return doc, nil
}

// ConvertToXML renders an ISO 20022 document as an XML string.
func (iso *ISO20022Service) ConvertToXML(doc interface{}) (string, error) {
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal XML: %w", err)
	}
	return xml.Header + string(xmlData), nil
}

// loadTransfer fetches the transfer a export handler works on.
func (iso *ISO20022Service) loadTransfer(r *http.Request) (*models.Transfer, int, error) {
	transferID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("invalid transfer id")
	}

	row := iso.db.QueryRowContext(r.Context(),
		`SELECT `+transferColumns+` FROM transfers WHERE id = $1`, transferID)
	transfer, err := scanTransfer(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, http.StatusNotFound, fmt.Errorf("transfer not found")
		}
		log.Printf("[ISO20022] Failed to load transfer %d: %v", transferID, err)
		return nil, http.StatusInternalServerError, fmt.Errorf("failed to load transfer")
	}
	return transfer, http.StatusOK, nil
}

// ExportPacs008 renders an executed transfer as pacs.008 XML
// @Summary Export transfer as pacs.008
// @Description Render an executed transfer as an ISO 20022 FIToFICustomerCreditTransfer message
// @Tags iso20022
// @Produce json
// @Param id path int true "Transfer ID"
// @Success 200 {object} object{status=string,messageType=string,xml=string}
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /transfers/{id}/pacs008 [get]
func (iso *ISO20022Service) ExportPacs008(w http.ResponseWriter, r *http.Request) {
	transfer, status, err := iso.loadTransfer(r)
	if err != nil {
		SendErrorResponse(w, err.Error(), status, nil)
		return
	}

	if transfer.Status != models.TransferStatusExecuted {
		SendErrorResponse(w, "Only executed transfers can be exported as pacs.008", http.StatusConflict, nil)
		return
	}

	from, err := iso.ledger.GetAccount(r.Context(), transfer.FromAccountID)
	if err != nil {
		log.Printf("[ISO20022] Failed to load debtor account %d: %v", transfer.FromAccountID, err)
		SendErrorResponse(w, "Failed to export transfer", http.StatusInternalServerError, nil)
		return
	}
	to, err := iso.ledger.GetAccount(r.Context(), transfer.ToAccountID)
	if err != nil {
		log.Printf("[ISO20022] Failed to load creditor account %d: %v", transfer.ToAccountID, err)
		SendErrorResponse(w, "Failed to export transfer", http.StatusInternalServerError, nil)
		return
	}
	currency, err := iso.ledger.GetCurrency(r.Context(), from.CurrencyID)
	if err != nil {
		log.Printf("[ISO20022] Failed to load currency %d: %v", from.CurrencyID, err)
		SendErrorResponse(w, "Failed to export transfer", http.StatusInternalServerError, nil)
		return
	}

	doc, err := iso.BuildPacs008(transfer, from, to, currency)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusConflict, nil)
		return
	}

	xmlData, err := iso.ConvertToXML(doc)
	if err != nil {
		log.Printf("[ISO20022] Failed to render pacs.008 for transfer %d: %v", transfer.ID, err)
		SendErrorResponse(w, "Failed to export transfer", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      "converted",
		"messageType": "pacs.008.001.08",
		"xml":         xmlData,
	})
}

// ExportPacs002 renders a terminal transfer as pacs.002 XML
// @Summary Export transfer status as pacs.002
// @Description Render the outcome of a transfer as an ISO 20022 FIToFIPaymentStatusReport message
// @Tags iso20022
// @Produce json
// @Param id path int true "Transfer ID"
// @Success 200 {object} object{status=string,messageType=string,xml=string}
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /transfers/{id}/pacs002 [get]
func (iso *ISO20022Service) ExportPacs002(w http.ResponseWriter, r *http.Request) {
	transfer, status, err := iso.loadTransfer(r)
	if err != nil {
		SendErrorResponse(w, err.Error(), status, nil)
		return
	}

	doc, err := iso.BuildPacs002(transfer)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusConflict, nil)
		return
	}

	xmlData, err := iso.ConvertToXML(doc)
	if err != nil {
		log.Printf("[ISO20022] Failed to render pacs.002 for transfer %d: %v", transfer.ID, err)
		SendErrorResponse(w, "Failed to export transfer", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      "converted",
		"messageType": "pacs.002.001.08",
		"xml":         xmlData,
	})
}
