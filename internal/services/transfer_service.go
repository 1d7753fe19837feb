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
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/lib/pq"

	"github.com/corebank/ledger/internal/audit"
	"github.com/corebank/ledger/internal/config"
	"github.com/corebank/ledger/internal/middleware"
	"github.com/corebank/ledger/internal/models"
)

// TransferService runs the transfer state machine: every request becomes a
// row that moves PENDING -> EXECUTED or PENDING -> FAILED exactly once.
// Business rejections are recorded outcomes, not errors; only storage
// failures surface as 5xx without a row.
type TransferService struct {
	db        *sql.DB
	redis     *redis.Client
	ledger    *LedgerService
	audit     *audit.AuditLogger
	validator *ValidationHelper
	cfg       *config.LedgerConfig

	// now is swappable in tests
	now func() time.Time
}

func NewTransferService(db *sql.DB, redisClient *redis.Client, ledger *LedgerService, cfg *config.LedgerConfig) *TransferService {
	return &TransferService{
		db:        db,
		redis:     redisClient,
		ledger:    ledger,
		audit:     audit.NewAuditLogger(),
		validator: NewValidationHelper(),
		cfg:       cfg,
		now:       time.Now,
	}
}

// TransferRequest is the execute-transfer payload. Account ids and amount
// are deliberately not validated here: bad values become recorded FAILED
// transfers, not 400s.
type TransferRequest struct {
	FromAccountID     int64  `json:"from_account_id" example:"1"`
	ToAccountID       int64  `json:"to_account_id" example:"2"`
	AmountMinor       int64  `json:"amount_minor" example:"3000"`
	Description       string `json:"description" validate:"omitempty,max=255" example:"Rent August"`
	ExternalReference string `json:"external_reference" validate:"omitempty,max=64" example:"ref-2026-08-001"`
}

const transferColumns = `id, from_account_id, to_account_id, amount_minor, currency, status, failure_reason, journal_entry_id, description, external_reference, requested_by_user_id, requested_at, executed_at`

func scanTransfer(scanner interface{ Scan(dest ...any) error }) (*models.Transfer, error) {
	transfer := &models.Transfer{}
	var currency, reason, description, externalRef sql.NullString
	err := scanner.Scan(
		&transfer.ID, &transfer.FromAccountID, &transfer.ToAccountID, &transfer.AmountMinor,
		&currency, &transfer.Status, &reason, &transfer.JournalEntryID, &description,
		&externalRef, &transfer.RequestedByUserID, &transfer.RequestedAt, &transfer.ExecutedAt,
	)
	if err != nil {
		return nil, err
	}
	transfer.Currency = currency.String
	transfer.Description = description.String
	transfer.ExternalReference = externalRef.String
	if reason.Valid {
		failureReason := models.FailureReason(reason.String)
		transfer.FailureReason = &failureReason
	}
	return transfer, nil
}

// ExecuteTransfer handles transfer execution
// @Summary Execute a funds transfer
// @Description Move funds between two accounts through a balanced journal entry. Rejected requests are recorded as FAILED transfers.
// @Tags transfers
// @Accept json
// @Produce json
// @Param transfer body TransferRequest true "Transfer request"
// @Success 200 {object} map[string]interface{}
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} services.ErrorResponse
// @Failure 500 {object} map[string]string
// @Router /transfers [post]
func (s *TransferService) ExecuteTransfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	// Idempotency: a reference that already has a transfer returns that
	// transfer untouched, whatever its outcome was.
	if existing := s.lookupByReference(r.Context(), req.ExternalReference); existing != nil {
		log.Printf("[TRANSFER] Duplicate reference %s, returning transfer %d", req.ExternalReference, existing.ID)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":  existing.Status == models.TransferStatusExecuted,
			"transfer": existing,
			"message":  "Transfer already processed",
		})
		return
	}

	var actorID *int64
	if id, ok := middleware.ActorID(r.Context()); ok {
		actorID = &id
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.LockTimeout)
	defer cancel()

	transfer, err := s.execute(ctx, &req, actorID)
	if err != nil {
		log.Printf("[TRANSFER] Execution failed: %v", err)
		http.Error(w, "Failed to execute transfer", http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	if transfer.Status == models.TransferStatusExecuted {
		status = http.StatusCreated
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":  transfer.Status == models.TransferStatusExecuted,
		"transfer": transfer,
	})
}

// execute drives one request through the state machine. It returns an
// error only for storage failures; every business rejection comes back as
// a committed FAILED transfer.
func (s *TransferService) execute(ctx context.Context, req *TransferRequest, actorID *int64) (*models.Transfer, error) {
	transfer := &models.Transfer{
		FromAccountID:     req.FromAccountID,
		ToAccountID:       req.ToAccountID,
		AmountMinor:       req.AmountMinor,
		Status:            models.TransferStatusPending,
		Description:       req.Description,
		ExternalReference: req.ExternalReference,
		RequestedByUserID: actorID,
		RequestedAt:       s.now(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transfer transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.insertTransferTx(ctx, tx, transfer); err != nil {
		if isUniqueViolation(err) {
			// Lost an idempotency race; the winner's row is authoritative.
			tx.Rollback()
			return s.getByReference(ctx, transfer.ExternalReference)
		}
		return nil, fmt.Errorf("insert transfer: %w", err)
	}

	// Self transfers are rejected before any locks are taken.
	if transfer.FromAccountID == transfer.ToAccountID {
		return s.failTransferTx(ctx, tx, transfer, models.ReasonInvalidAccounts)
	}

	locked, err := s.ledger.LockAccountsOrdered(ctx, tx, transfer.FromAccountID, transfer.ToAccountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.failTransferTx(ctx, tx, transfer, models.ReasonInvalidAccounts)
		}
		if isLockTimeout(err) {
			tx.Rollback()
			return s.recordTimeout(transfer)
		}
		return nil, fmt.Errorf("lock accounts: %w", err)
	}
	from := locked[transfer.FromAccountID]
	to := locked[transfer.ToAccountID]

	if err := tx.QueryRowContext(ctx,
		`SELECT code FROM currencies WHERE id = $1`, from.CurrencyID).Scan(&transfer.Currency); err != nil {
		return nil, fmt.Errorf("resolve transfer currency: %w", err)
	}

	if reason, ok := AdmitTransfer(from, to, transfer.AmountMinor); !ok {
		return s.failTransferTx(ctx, tx, transfer, reason)
	}

	entry := &models.JournalEntry{
		EntryType:         models.EntryTypeTransfer,
		ExternalReference: transfer.ExternalReference,
		Description:       transfer.Description,
		CreatedByUserID:   actorID,
		Lines: []models.JournalEntryLine{
			{AccountID: from.ID, Direction: models.DirectionDebit, AmountMinor: transfer.AmountMinor},
			{AccountID: to.ID, Direction: models.DirectionCredit, AmountMinor: transfer.AmountMinor},
		},
	}
	if err := s.ledger.PostEntryTx(ctx, tx, entry, locked); err != nil {
		if isLockTimeout(err) {
			tx.Rollback()
			return s.recordTimeout(transfer)
		}
		return nil, fmt.Errorf("post transfer entry: %w", err)
	}

	executedAt := s.now()
	transfer.Status = models.TransferStatusExecuted
	transfer.JournalEntryID = &entry.ID
	transfer.ExecutedAt = &executedAt
	if _, err := tx.ExecContext(ctx,
		`UPDATE transfers SET status = $1, journal_entry_id = $2, executed_at = $3, currency = $4 WHERE id = $5`,
		transfer.Status, entry.ID, executedAt, transfer.Currency, transfer.ID); err != nil {
		return nil, fmt.Errorf("mark transfer executed: %w", err)
	}

	event := s.transferEvent(models.EventTransferExecuted, transfer)
	if err := s.ledger.InsertOutboxTx(ctx, tx, s.cfg.TransfersTopic, strconv.FormatInt(transfer.ID, 10), event); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		if isLockTimeout(err) {
			return s.recordTimeout(transfer)
		}
		return nil, fmt.Errorf("commit transfer: %w", err)
	}

	log.Printf("[TRANSFER] Transfer %d executed: %d -> %d amount=%d %s",
		transfer.ID, transfer.FromAccountID, transfer.ToAccountID, transfer.AmountMinor, transfer.Currency)
	s.audit.LogTransfer(transfer.ID, transfer.FromAccountID, transfer.ToAccountID, transfer.AmountMinor, string(transfer.Status))
	s.cacheTransfer(transfer)
	return transfer, nil
}

func (s *TransferService) insertTransferTx(ctx context.Context, tx *sql.Tx, transfer *models.Transfer) error {
	return tx.QueryRowContext(ctx,
		`INSERT INTO transfers (from_account_id, to_account_id, amount_minor, status, description, external_reference, requested_by_user_id, requested_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		transfer.FromAccountID, transfer.ToAccountID, transfer.AmountMinor, transfer.Status,
		transfer.Description, nullString(transfer.ExternalReference), transfer.RequestedByUserID, transfer.RequestedAt,
	).Scan(&transfer.ID)
}

// failTransferTx records a business rejection and commits it. The rejected
// transfer is the successful result of the request.
func (s *TransferService) failTransferTx(ctx context.Context, tx *sql.Tx, transfer *models.Transfer, reason models.FailureReason) (*models.Transfer, error) {
	transfer.Status = models.TransferStatusFailed
	transfer.FailureReason = &reason

	if _, err := tx.ExecContext(ctx,
		`UPDATE transfers SET status = $1, failure_reason = $2, currency = $3 WHERE id = $4`,
		transfer.Status, reason, nullString(transfer.Currency), transfer.ID); err != nil {
		return nil, fmt.Errorf("record transfer rejection: %w", err)
	}

	event := s.transferEvent(models.EventTransferFailed, transfer)
	if err := s.ledger.InsertOutboxTx(ctx, tx, s.cfg.TransfersTopic, strconv.FormatInt(transfer.ID, 10), event); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transfer rejection: %w", err)
	}

	log.Printf("[TRANSFER] Transfer %d rejected: %s", transfer.ID, reason)
	s.audit.LogTransfer(transfer.ID, transfer.FromAccountID, transfer.ToAccountID, transfer.AmountMinor, string(reason))
	s.cacheTransfer(transfer)
	return transfer, nil
}

// recordTimeout writes the FAILED outcome of a timed-out attempt. The
// original transaction rolled back with its PENDING row, so this runs in a
// fresh short transaction on a fresh context.
func (s *TransferService) recordTimeout(transfer *models.Transfer) (*models.Transfer, error) {
	reason := models.ReasonTimeout
	transfer.Status = models.TransferStatusFailed
	transfer.FailureReason = &reason

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin timeout record: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO transfers (from_account_id, to_account_id, amount_minor, currency, status, failure_reason, description, external_reference, requested_by_user_id, requested_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		transfer.FromAccountID, transfer.ToAccountID, transfer.AmountMinor, nullString(transfer.Currency),
		transfer.Status, reason, transfer.Description, nullString(transfer.ExternalReference),
		transfer.RequestedByUserID, transfer.RequestedAt,
	).Scan(&transfer.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return s.getByReference(ctx, transfer.ExternalReference)
		}
		return nil, fmt.Errorf("record transfer timeout: %w", err)
	}

	event := s.transferEvent(models.EventTransferFailed, transfer)
	if err := s.ledger.InsertOutboxTx(ctx, tx, s.cfg.TransfersTopic, strconv.FormatInt(transfer.ID, 10), event); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit timeout record: %w", err)
	}

	log.Printf("[TRANSFER] Transfer %d timed out waiting for locks", transfer.ID)
	s.audit.LogTransfer(transfer.ID, transfer.FromAccountID, transfer.ToAccountID, transfer.AmountMinor, string(reason))
	s.cacheTransfer(transfer)
	return transfer, nil
}

func (s *TransferService) transferEvent(eventType string, transfer *models.Transfer) models.LedgerEvent {
	event := s.ledger.NewEvent(eventType)
	event.TransferID = &transfer.ID
	event.FromAccountID = &transfer.FromAccountID
	event.ToAccountID = &transfer.ToAccountID
	event.AmountMinor = transfer.AmountMinor
	event.Currency = transfer.Currency
	event.JournalEntryID = transfer.JournalEntryID
	event.ExecutedAt = transfer.ExecutedAt
	if transfer.FailureReason != nil {
		event.FailureReason = string(*transfer.FailureReason)
	}
	return event
}

// lookupByReference serves the idempotency fast path: Redis first, then
// the transfers table. Returns nil when the reference is new.
func (s *TransferService) lookupByReference(ctx context.Context, reference string) *models.Transfer {
	if reference == "" {
		return nil
	}

	if s.redis != nil {
		data, err := s.redis.Get(ctx, transferCacheKey(reference)).Bytes()
		if err == nil {
			var transfer models.Transfer
			if err := json.Unmarshal(data, &transfer); err == nil {
				return &transfer
			}
		}
	}

	transfer, err := s.getByReference(ctx, reference)
	if err != nil {
		return nil
	}
	s.cacheTransfer(transfer)
	return transfer
}

func (s *TransferService) getByReference(ctx context.Context, reference string) (*models.Transfer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE external_reference = $1`, reference)
	return scanTransfer(row)
}

func transferCacheKey(reference string) string {
	return "transfer:ref:" + reference
}

func (s *TransferService) cacheTransfer(transfer *models.Transfer) {
	if s.redis == nil || transfer.ExternalReference == "" || !transfer.Status.Terminal() {
		return
	}
	data, err := json.Marshal(transfer)
	if err != nil {
		return
	}
	if err := s.redis.Set(context.Background(), transferCacheKey(transfer.ExternalReference), string(data), 24*time.Hour).Err(); err != nil {
		log.Printf("[TRANSFER] Failed to cache transfer %d: %v", transfer.ID, err)
	}
}

// GetTransfer retrieves a transfer by id
// @Summary Get transfer by ID
// @Description Retrieve a transfer with its outcome
// @Tags transfers
// @Produce json
// @Param id path int true "Transfer ID"
// @Success 200 {object} models.Transfer
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /transfers/{id} [get]
func (s *TransferService) GetTransfer(w http.ResponseWriter, r *http.Request) {
	transferID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid transfer id", http.StatusBadRequest)
		return
	}

	transfer, err := s.getTransfer(r.Context(), transferID)
	if err != nil {
		if err == sql.ErrNoRows {
			http.Error(w, "Transfer not found", http.StatusNotFound)
		} else {
			log.Printf("[TRANSFER] Failed to fetch transfer %d: %v", transferID, err)
			http.Error(w, "Failed to fetch transfer", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(transfer)
}

func (s *TransferService) getTransfer(ctx context.Context, transferID int64) (*models.Transfer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE id = $1`, transferID)
	return scanTransfer(row)
}

// ListTransfers retrieves transfers with optional filters
// @Summary List transfers
// @Description Get transfers filtered by account, status or reference
// @Tags transfers
// @Produce json
// @Param from_account_id query int false "Filter by source account"
// @Param to_account_id query int false "Filter by destination account"
// @Param status query string false "Filter by status (PENDING, EXECUTED, FAILED)"
// @Param reference query string false "Filter by external reference"
// @Param limit query int false "Maximum rows returned (default 50)"
// @Success 200 {object} object{transfers=[]models.Transfer,count=int}
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /transfers [get]
func (s *TransferService) ListTransfers(w http.ResponseWriter, r *http.Request) {
	query := `SELECT ` + transferColumns + ` FROM transfers`
	var conditions []string
	var args []any
	argIndex := 1

	if v := r.URL.Query().Get("from_account_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			http.Error(w, "Invalid from_account_id filter", http.StatusBadRequest)
			return
		}
		conditions = append(conditions, fmt.Sprintf("from_account_id = $%d", argIndex))
		args = append(args, id)
		argIndex++
	}
	if v := r.URL.Query().Get("to_account_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			http.Error(w, "Invalid to_account_id filter", http.StatusBadRequest)
			return
		}
		conditions = append(conditions, fmt.Sprintf("to_account_id = $%d", argIndex))
		args = append(args, id)
		argIndex++
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := models.TransferStatus(strings.ToUpper(v))
		if !status.Valid() {
			http.Error(w, "Invalid status filter", http.StatusBadRequest)
			return
		}
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, status)
		argIndex++
	}
	if v := r.URL.Query().Get("reference"); v != "" {
		conditions = append(conditions, fmt.Sprintf("external_reference = $%d", argIndex))
		args = append(args, v)
		argIndex++
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY requested_at DESC, id DESC LIMIT $%d", argIndex)
	args = append(args, limit)

	rows, err := s.db.QueryContext(r.Context(), query, args...)
	if err != nil {
		log.Printf("[TRANSFER] Failed to list transfers: %v", err)
		http.Error(w, "Failed to fetch transfers", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	transfers := []models.Transfer{}
	for rows.Next() {
		transfer, err := scanTransfer(rows)
		if err != nil {
			log.Printf("[TRANSFER] Failed to scan transfer row: %v", err)
			http.Error(w, "Failed to fetch transfers", http.StatusInternalServerError)
			return
		}
		transfers = append(transfers, *transfer)
	}
	if err := rows.Err(); err != nil {
		log.Printf("[TRANSFER] Transfer row iteration failed: %v", err)
		http.Error(w, "Failed to fetch transfers", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"transfers": transfers,
		"count":     len(transfers),
	})
}

// isLockTimeout reports whether the error means a row lock could not be
// acquired inside the attempt deadline.
func isLockTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "55P03" // lock_not_available
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505" // unique_violation
}
