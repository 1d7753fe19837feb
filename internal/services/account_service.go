package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/corebank/ledger/internal/audit"
	"github.com/corebank/ledger/internal/config"
	"github.com/corebank/ledger/internal/middleware"
	"github.com/corebank/ledger/internal/models"
)

var (
	ErrAccountNotActive  = errors.New("account is not active")
	ErrIllegalTransition = errors.New("illegal account status transition")
	ErrBalanceNotZero    = errors.New("account balance must be zero")
)

// AccountService manages account lifecycle and over-the-counter cash
// movements. Cash deposits and withdrawals balance against the per-currency
// system cash account, so they post through the same engine as transfers.
type AccountService struct {
	db        *sql.DB
	ledger    *LedgerService
	audit     *audit.AuditLogger
	validator *ValidationHelper
	cfg       *config.LedgerConfig

	// now is swappable in tests
	now func() time.Time
}

func NewAccountService(db *sql.DB, ledger *LedgerService, cfg *config.LedgerConfig) *AccountService {
	return &AccountService{
		db:        db,
		ledger:    ledger,
		audit:     audit.NewAuditLogger(),
		validator: NewValidationHelper(),
		cfg:       cfg,
		now:       time.Now,
	}
}

type OpenAccountRequest struct {
	HolderID            int64  `json:"holder_id" validate:"required,gt=0" example:"100"`
	ProductCode         string `json:"product_code" validate:"required" example:"CURRENT-STD"`
	CurrencyCode        string `json:"currency_code" validate:"required,len=3" example:"EUR"`
	OverdraftLimitMinor int64  `json:"overdraft_limit_minor" validate:"omitempty,gte=0" example:"10000"`
	InitialDepositMinor int64  `json:"initial_deposit_minor" validate:"omitempty,gte=0" example:"50000"`
}

type CashRequest struct {
	AmountMinor int64  `json:"amount_minor" validate:"required,gt=0" example:"2500"`
	Description string `json:"description" validate:"omitempty,max=255" example:"Branch deposit"`
}

func (s *AccountService) decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	if err := s.validator.ValidateStruct(dst); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}
	return true
}

// OpenAccount opens a new account
// @Summary Open an account
// @Description Create an ACTIVE account for a holder, optionally posting an initial cash deposit
// @Tags accounts
// @Accept json
// @Produce json
// @Param account body OpenAccountRequest true "Account details"
// @Success 201 {object} models.Account
// @Failure 400 {object} services.ErrorResponse
// @Failure 500 {object} map[string]string
// @Router /accounts [post]
func (s *AccountService) OpenAccount(w http.ResponseWriter, r *http.Request) {
	var req OpenAccountRequest
	if !s.decodeRequest(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.LockTimeout)
	defer cancel()

	var productID int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT id FROM account_products WHERE code = $1`, req.ProductCode).Scan(&productID); err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Unknown product code", http.StatusBadRequest, nil)
		} else {
			log.Printf("[ACCOUNT] Product lookup failed: %v", err)
			http.Error(w, "Failed to open account", http.StatusInternalServerError)
		}
		return
	}

	var currencyID int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT id FROM currencies WHERE code = $1`, req.CurrencyCode).Scan(&currencyID); err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Unknown currency code", http.StatusBadRequest, nil)
		} else {
			log.Printf("[ACCOUNT] Currency lookup failed: %v", err)
			http.Error(w, "Failed to open account", http.StatusInternalServerError)
		}
		return
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("[ACCOUNT] Failed to begin transaction: %v", err)
		http.Error(w, "Failed to open account", http.StatusInternalServerError)
		return
	}
	defer tx.Rollback()

	// The id is drawn first so the account number and IBAN can be derived
	// from it inside the same insert.
	var accountID int64
	if err := tx.QueryRowContext(ctx,
		`SELECT nextval(pg_get_serial_sequence('accounts', 'id'))`).Scan(&accountID); err != nil {
		log.Printf("[ACCOUNT] Failed to allocate account id: %v", err)
		http.Error(w, "Failed to open account", http.StatusInternalServerError)
		return
	}

	account := &models.Account{
		ID:                  accountID,
		HolderID:            req.HolderID,
		ProductID:           productID,
		CurrencyID:          currencyID,
		AccountNumber:       fmt.Sprintf("%010d", accountID),
		Status:              models.AccountStatusActive,
		OverdraftLimitMinor: req.OverdraftLimitMinor,
		Version:             1,
	}
	account.IBAN = generateIBAN(s.cfg.IBANCountryCode, s.cfg.IBANBankCode, account.AccountNumber)

	if err := tx.QueryRowContext(ctx,
		`INSERT INTO accounts (id, holder_id, product_id, currency_id, account_number, iban, status, balance_minor, overdraft_limit_minor)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8)
		 RETURNING created_at, updated_at`,
		account.ID, account.HolderID, account.ProductID, account.CurrencyID,
		account.AccountNumber, account.IBAN, account.Status, account.OverdraftLimitMinor,
	).Scan(&account.CreatedAt, &account.UpdatedAt); err != nil {
		log.Printf("[ACCOUNT] Failed to insert account: %v", err)
		http.Error(w, "Failed to open account", http.StatusInternalServerError)
		return
	}

	if req.InitialDepositMinor > 0 {
		entry, funded, err := s.postCashTx(ctx, tx, account.ID, req.CurrencyCode,
			models.EntryTypeCashDeposit, req.InitialDepositMinor, "Initial deposit", actorFromContext(r.Context()))
		if err != nil {
			log.Printf("[ACCOUNT] Initial deposit failed for account %d: %v", account.ID, err)
			http.Error(w, "Failed to open account", http.StatusInternalServerError)
			return
		}
		account = funded
		log.Printf("[ACCOUNT] Initial deposit of %d posted as entry %d", req.InitialDepositMinor, entry.ID)
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[ACCOUNT] Failed to commit account open: %v", err)
		http.Error(w, "Failed to open account", http.StatusInternalServerError)
		return
	}

	log.Printf("[ACCOUNT] Account %d opened: number=%s holder=%d", account.ID, account.AccountNumber, account.HolderID)
	s.audit.LogAccountStatus(account.ID, "", string(account.Status))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(account)
}

// postCashTx posts a cash movement between an account and the system cash
// account for its currency. The caller owns the transaction.
func (s *AccountService) postCashTx(ctx context.Context, tx *sql.Tx, accountID int64, currencyCode string, entryType models.EntryType, amountMinor int64, description string, actorID *int64) (*models.JournalEntry, *models.Account, error) {
	var cashAccountID int64
	cashNumber := s.cfg.CashAccountPrefix + currencyCode
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM accounts WHERE account_number = $1`, cashNumber).Scan(&cashAccountID); err != nil {
		return nil, nil, fmt.Errorf("resolve cash account %s: %w", cashNumber, err)
	}

	locked, err := s.ledger.LockAccountsOrdered(ctx, tx, accountID, cashAccountID)
	if err != nil {
		return nil, nil, err
	}
	target := locked[accountID]
	cash := locked[cashAccountID]

	if target.Status != models.AccountStatusActive {
		return nil, nil, ErrAccountNotActive
	}

	var lines []models.JournalEntryLine
	switch entryType {
	case models.EntryTypeCashDeposit:
		lines = []models.JournalEntryLine{
			{AccountID: cash.ID, Direction: models.DirectionDebit, AmountMinor: amountMinor},
			{AccountID: target.ID, Direction: models.DirectionCredit, AmountMinor: amountMinor},
		}
	case models.EntryTypeCashWithdrawal:
		lines = []models.JournalEntryLine{
			{AccountID: target.ID, Direction: models.DirectionDebit, AmountMinor: amountMinor},
			{AccountID: cash.ID, Direction: models.DirectionCredit, AmountMinor: amountMinor},
		}
	default:
		return nil, nil, fmt.Errorf("entry type %s is not a cash movement", entryType)
	}

	entry := &models.JournalEntry{
		EntryType:       entryType,
		Description:     description,
		CreatedByUserID: actorID,
		Lines:           lines,
	}
	if err := s.ledger.PostEntryTx(ctx, tx, entry, locked); err != nil {
		return nil, nil, err
	}
	return entry, target, nil
}

func actorFromContext(ctx context.Context) *int64 {
	if id, ok := middleware.ActorID(ctx); ok {
		return &id
	}
	return nil
}

// cashMovement runs a deposit or withdrawal end to end and writes the
// HTTP response.
func (s *AccountService) cashMovement(w http.ResponseWriter, r *http.Request, entryType models.EntryType) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid account id", http.StatusBadRequest)
		return
	}

	var req CashRequest
	if !s.decodeRequest(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.LockTimeout)
	defer cancel()

	account, err := s.ledger.GetAccount(ctx, accountID)
	if err != nil {
		if err == sql.ErrNoRows {
			http.Error(w, "Account not found", http.StatusNotFound)
		} else {
			log.Printf("[ACCOUNT] Account lookup failed: %v", err)
			http.Error(w, "Failed to process cash movement", http.StatusInternalServerError)
		}
		return
	}

	currency, err := s.ledger.GetCurrency(ctx, account.CurrencyID)
	if err != nil {
		log.Printf("[ACCOUNT] Currency lookup failed: %v", err)
		http.Error(w, "Failed to process cash movement", http.StatusInternalServerError)
		return
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("[ACCOUNT] Failed to begin transaction: %v", err)
		http.Error(w, "Failed to process cash movement", http.StatusInternalServerError)
		return
	}
	defer tx.Rollback()

	entry, target, err := s.postCashTx(ctx, tx, accountID, currency.Code, entryType, req.AmountMinor, req.Description, actorFromContext(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, ErrAccountNotActive):
			http.Error(w, "Account is not active", http.StatusConflict)
		case errors.Is(err, ErrOverdrawn):
			http.Error(w, "Insufficient funds", http.StatusConflict)
		case errors.Is(err, sql.ErrNoRows):
			http.Error(w, "Account not found", http.StatusNotFound)
		default:
			log.Printf("[ACCOUNT] Cash movement failed for account %d: %v", accountID, err)
			http.Error(w, "Failed to process cash movement", http.StatusInternalServerError)
		}
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[ACCOUNT] Failed to commit cash movement: %v", err)
		http.Error(w, "Failed to process cash movement", http.StatusInternalServerError)
		return
	}

	log.Printf("[ACCOUNT] %s of %d posted to account %d as entry %d", entryType, req.AmountMinor, accountID, entry.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"entry_id":      entry.ID,
		"account_id":    target.ID,
		"balance_minor": target.BalanceMinor,
		"balance":       currency.DisplayString(target.BalanceMinor),
	})
}

// Deposit posts a cash deposit
// @Summary Deposit cash
// @Description Post a cash deposit to an active account
// @Tags accounts
// @Accept json
// @Produce json
// @Param id path int true "Account ID"
// @Param deposit body CashRequest true "Deposit details"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /accounts/{id}/deposits [post]
func (s *AccountService) Deposit(w http.ResponseWriter, r *http.Request) {
	s.cashMovement(w, r, models.EntryTypeCashDeposit)
}

// Withdraw posts a cash withdrawal
// @Summary Withdraw cash
// @Description Post a cash withdrawal from an active account
// @Tags accounts
// @Accept json
// @Produce json
// @Param id path int true "Account ID"
// @Param withdrawal body CashRequest true "Withdrawal details"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /accounts/{id}/withdrawals [post]
func (s *AccountService) Withdraw(w http.ResponseWriter, r *http.Request) {
	s.cashMovement(w, r, models.EntryTypeCashWithdrawal)
}

// updateStatus moves an account to the target status under a row lock.
func (s *AccountService) updateStatus(ctx context.Context, accountID int64, target models.AccountStatus, requireZeroBalance bool, allowedFrom ...models.AccountStatus) (*models.Account, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin status update: %w", err)
	}
	defer tx.Rollback()

	account, err := s.ledger.LockAccount(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}

	allowed := false
	for _, from := range allowedFrom {
		if account.Status == from {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, account.Status, target)
	}
	if requireZeroBalance && account.BalanceMinor != 0 {
		return nil, ErrBalanceNotZero
	}

	previous := account.Status
	result, err := tx.ExecContext(ctx,
		`UPDATE accounts SET status = $1, version = version + 1, updated_at = $2 WHERE id = $3 AND version = $4`,
		target, s.now(), account.ID, account.Version)
	if err != nil {
		return nil, fmt.Errorf("update account status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, fmt.Errorf("optimistic lock failed for account %d", account.ID)
	}
	account.Status = target
	account.Version++

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit status update: %w", err)
	}

	s.audit.LogAccountStatus(account.ID, string(previous), string(target))
	log.Printf("[ACCOUNT] Account %d status: %s -> %s", account.ID, previous, target)
	return account, nil
}

func (s *AccountService) statusHandler(w http.ResponseWriter, r *http.Request, target models.AccountStatus, requireZeroBalance bool, allowedFrom ...models.AccountStatus) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid account id", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.LockTimeout)
	defer cancel()

	account, err := s.updateStatus(ctx, accountID, target, requireZeroBalance, allowedFrom...)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			http.Error(w, "Account not found", http.StatusNotFound)
		case errors.Is(err, ErrIllegalTransition):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, ErrBalanceNotZero):
			http.Error(w, "Account balance must be zero before closing", http.StatusConflict)
		default:
			log.Printf("[ACCOUNT] Status update failed for account %d: %v", accountID, err)
			http.Error(w, "Failed to update account status", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(account)
}

// BlockAccount blocks an active account
// @Summary Block an account
// @Description Move an ACTIVE account to BLOCKED so it can take part in no transfers
// @Tags accounts
// @Produce json
// @Param id path int true "Account ID"
// @Success 200 {object} models.Account
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /accounts/{id}/block [post]
func (s *AccountService) BlockAccount(w http.ResponseWriter, r *http.Request) {
	s.statusHandler(w, r, models.AccountStatusBlocked, false, models.AccountStatusActive)
}

// ReinstateAccount unblocks a blocked account
// @Summary Reinstate an account
// @Description Move a BLOCKED account back to ACTIVE
// @Tags accounts
// @Produce json
// @Param id path int true "Account ID"
// @Success 200 {object} models.Account
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /accounts/{id}/reinstate [post]
func (s *AccountService) ReinstateAccount(w http.ResponseWriter, r *http.Request) {
	s.statusHandler(w, r, models.AccountStatusActive, false, models.AccountStatusBlocked)
}

// CloseAccount closes an account with zero balance
// @Summary Close an account
// @Description Move an account to CLOSED; the balance must be exactly zero
// @Tags accounts
// @Produce json
// @Param id path int true "Account ID"
// @Success 200 {object} models.Account
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /accounts/{id}/close [post]
func (s *AccountService) CloseAccount(w http.ResponseWriter, r *http.Request) {
	s.statusHandler(w, r, models.AccountStatusClosed, true, models.AccountStatusActive, models.AccountStatusBlocked)
}

// GetAccount retrieves an account by id
// @Summary Get account
// @Description Retrieve an account by id
// @Tags accounts
// @Produce json
// @Param id path int true "Account ID"
// @Success 200 {object} models.Account
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /accounts/{id} [get]
func (s *AccountService) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid account id", http.StatusBadRequest)
		return
	}

	account, err := s.ledger.GetAccount(r.Context(), accountID)
	if err != nil {
		if err == sql.ErrNoRows {
			http.Error(w, "Account not found", http.StatusNotFound)
		} else {
			log.Printf("[ACCOUNT] Failed to fetch account %d: %v", accountID, err)
			http.Error(w, "Failed to fetch account", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(account)
}

// BalanceEnquiry returns the current and available balance
// @Summary Account balance enquiry
// @Description Retrieve current and available balance in minor and display units
// @Tags accounts
// @Produce json
// @Param id path int true "Account ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /accounts/{id}/balance [get]
func (s *AccountService) BalanceEnquiry(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid account id", http.StatusBadRequest)
		return
	}

	account, err := s.ledger.GetAccount(r.Context(), accountID)
	if err != nil {
		if err == sql.ErrNoRows {
			http.Error(w, "Account not found", http.StatusNotFound)
		} else {
			log.Printf("[ACCOUNT] Balance enquiry failed for account %d: %v", accountID, err)
			http.Error(w, "Failed to fetch balance", http.StatusInternalServerError)
		}
		return
	}

	currency, err := s.ledger.GetCurrency(r.Context(), account.CurrencyID)
	if err != nil {
		log.Printf("[ACCOUNT] Currency lookup failed for account %d: %v", accountID, err)
		http.Error(w, "Failed to fetch balance", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"account_id":      account.ID,
		"account_number":  account.AccountNumber,
		"status":          account.Status,
		"currency":        currency.Code,
		"balance_minor":   account.BalanceMinor,
		"available_minor": account.AvailableMinor(),
		"balance":         currency.DisplayString(account.BalanceMinor),
	})
}

// StatementLine is one row of an account statement.
type StatementLine struct {
	EntryID     int64     `json:"entry_id"`
	EntryType   string    `json:"entry_type"`
	EntryStatus string    `json:"entry_status"`
	BookingDate time.Time `json:"booking_date"`
	Direction   string    `json:"direction"`
	AmountMinor int64     `json:"amount_minor"`
	SignedMinor int64     `json:"signed_minor"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Statement lists the journal lines touching an account
// @Summary Account statement
// @Description List the journal lines posted to an account, newest first
// @Tags accounts
// @Produce json
// @Param id path int true "Account ID"
// @Param limit query int false "Maximum rows returned"
// @Success 200 {object} object{account_id=int,lines=[]StatementLine,count=int}
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /accounts/{id}/statement [get]
func (s *AccountService) Statement(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid account id", http.StatusBadRequest)
		return
	}

	if _, err := s.ledger.GetAccount(r.Context(), accountID); err != nil {
		if err == sql.ErrNoRows {
			http.Error(w, "Account not found", http.StatusNotFound)
		} else {
			log.Printf("[ACCOUNT] Failed to fetch account %d: %v", accountID, err)
			http.Error(w, "Failed to fetch statement", http.StatusInternalServerError)
		}
		return
	}

	limit := s.cfg.StatementMaxRows
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= s.cfg.StatementMaxRows {
			limit = parsed
		}
	}

	rows, err := s.db.QueryContext(r.Context(),
		`SELECT e.id, e.entry_type, e.status, e.booking_date, l.direction, l.amount_minor, l.description, l.created_at
		 FROM journal_entry_lines l
		 JOIN journal_entries e ON e.id = l.entry_id
		 WHERE l.account_id = $1
		 ORDER BY l.id DESC
		 LIMIT $2`, accountID, limit)
	if err != nil {
		log.Printf("[ACCOUNT] Statement query failed for account %d: %v", accountID, err)
		http.Error(w, "Failed to fetch statement", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	lines := []StatementLine{}
	for rows.Next() {
		var line StatementLine
		var description sql.NullString
		var direction models.LineDirection
		if err := rows.Scan(&line.EntryID, &line.EntryType, &line.EntryStatus, &line.BookingDate,
			&direction, &line.AmountMinor, &description, &line.CreatedAt); err != nil {
			log.Printf("[ACCOUNT] Statement scan failed for account %d: %v", accountID, err)
			http.Error(w, "Failed to fetch statement", http.StatusInternalServerError)
			return
		}
		line.Direction = string(direction)
		line.SignedMinor = direction.SignedAmount(line.AmountMinor)
		line.Description = description.String
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		log.Printf("[ACCOUNT] Statement iteration failed for account %d: %v", accountID, err)
		http.Error(w, "Failed to fetch statement", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"account_id": accountID,
		"lines":      lines,
		"count":      len(lines),
	})
}

// ibanCheckDigits computes the ISO 7064 mod 97-10 check digits for a
// rearranged IBAN candidate.
func ibanCheckDigits(countryCode, bban string) string {
	rearranged := bban + countryCode + "00"
	remainder := 0
	for _, r := range rearranged {
		switch {
		case r >= '0' && r <= '9':
			remainder = (remainder*10 + int(r-'0')) % 97
		case r >= 'A' && r <= 'Z':
			remainder = (remainder*100 + int(r-'A') + 10) % 97
		}
	}
	return fmt.Sprintf("%02d", 98-remainder)
}

func generateIBAN(countryCode, bankCode, accountNumber string) string {
	bban := bankCode + accountNumber
	return countryCode + ibanCheckDigits(countryCode, bban) + bban
}
