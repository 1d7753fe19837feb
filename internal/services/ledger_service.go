package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/corebank/ledger/internal/audit"
	"github.com/corebank/ledger/internal/config"
	"github.com/corebank/ledger/internal/middleware"
	"github.com/corebank/ledger/internal/models"
)

// Domain errors surfaced by the posting engine. Handlers map these to
// conflict responses instead of generic storage failures.
var (
	ErrAccountNotLocked = errors.New("account not locked for posting")
	ErrOverdrawn        = errors.New("posting would overdraw account past its limit")
	ErrEntryNotPosted   = errors.New("journal entry is not in POSTED status")
	ErrAlreadyReversed  = errors.New("journal entry has already been reversed")
)

// LedgerService owns the journal: it locks accounts, posts balanced
// entries, and is the only writer of account balances. The stored balance
// is a cache of the journal; every mutation goes through PostEntryTx, so
// the signed sum of posted lines always reproduces the stored value.
type LedgerService struct {
	db    *sql.DB
	cfg   *config.LedgerConfig
	audit *audit.AuditLogger

	// now is swappable in tests
	now func() time.Time
}

func NewLedgerService(db *sql.DB, cfg *config.LedgerConfig) *LedgerService {
	return &LedgerService{
		db:    db,
		cfg:   cfg,
		audit: audit.NewAuditLogger(),
		now:   time.Now,
	}
}

const accountColumns = `id, holder_id, product_id, currency_id, account_number, iban, status, balance_minor, overdraft_limit_minor, version, created_at, updated_at`

func scanAccount(row *sql.Row) (*models.Account, error) {
	account := &models.Account{}
	var iban sql.NullString
	err := row.Scan(
		&account.ID, &account.HolderID, &account.ProductID, &account.CurrencyID,
		&account.AccountNumber, &iban, &account.Status, &account.BalanceMinor,
		&account.OverdraftLimitMinor, &account.Version, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	account.IBAN = iban.String
	return account, nil
}

// LockAccount loads one account under a row lock. Lock waits are bounded
// by the caller's context deadline.
func (s *LedgerService) LockAccount(ctx context.Context, tx *sql.Tx, accountID int64) (*models.Account, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, accountID)
	return scanAccount(row)
}

// LockAccountsOrdered locks a set of accounts in ascending id order.
// Every caller acquiring multiple row locks goes through here, so two
// concurrent postings can never hold locks in opposite order.
func (s *LedgerService) LockAccountsOrdered(ctx context.Context, tx *sql.Tx, accountIDs ...int64) (map[int64]*models.Account, error) {
	ids := make([]int64, 0, len(accountIDs))
	seen := make(map[int64]bool, len(accountIDs))
	for _, id := range accountIDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	locked := make(map[int64]*models.Account, len(ids))
	for _, id := range ids {
		account, err := s.LockAccount(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = account
	}
	return locked, nil
}

// PostEntryTx atomically records a balanced journal entry and applies it
// to the locked account balances. Every line's account must be in the
// locked set, and no account may end below the negative of its overdraft
// limit. On success the entry and its lines carry their assigned ids and
// the locked snapshots reflect the new balances.
func (s *LedgerService) PostEntryTx(ctx context.Context, tx *sql.Tx, entry *models.JournalEntry, locked map[int64]*models.Account) error {
	if !entry.EntryType.Valid() {
		return fmt.Errorf("unknown entry type %q", entry.EntryType)
	}
	if err := ValidateEntryLines(entry.Lines); err != nil {
		return err
	}

	net := make(map[int64]int64)
	for _, line := range entry.Lines {
		if _, ok := locked[line.AccountID]; !ok {
			return fmt.Errorf("account %d: %w", line.AccountID, ErrAccountNotLocked)
		}
		net[line.AccountID] += line.Direction.SignedAmount(line.AmountMinor)
	}
	for accountID, delta := range net {
		account := locked[accountID]
		if account.BalanceMinor+delta+account.OverdraftLimitMinor < 0 {
			return fmt.Errorf("account %d: %w", accountID, ErrOverdrawn)
		}
	}

	if entry.BookingDate.IsZero() {
		entry.BookingDate = s.now()
	}
	entry.Status = models.EntryStatusPosted

	err := tx.QueryRowContext(ctx,
		`INSERT INTO journal_entries (entry_type, status, booking_date, value_date, external_reference, description, created_by_user_id, reversal_of_entry_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		entry.EntryType, entry.Status, entry.BookingDate, entry.ValueDate,
		nullString(entry.ExternalReference), entry.Description, entry.CreatedByUserID, entry.ReversalOfEntryID,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}

	for i := range entry.Lines {
		line := &entry.Lines[i]
		line.EntryID = entry.ID
		err := tx.QueryRowContext(ctx,
			`INSERT INTO journal_entry_lines (entry_id, account_id, direction, amount_minor, value_date, description)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id, created_at`,
			line.EntryID, line.AccountID, line.Direction, line.AmountMinor, line.ValueDate, line.Description,
		).Scan(&line.ID, &line.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert journal line: %w", err)
		}
	}

	ids := make([]int64, 0, len(net))
	for id := range net {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		account := locked[id]
		if err := s.updateAccountBalance(ctx, tx, account, account.BalanceMinor+net[id]); err != nil {
			return err
		}
	}

	event := s.NewEvent(models.EventEntryPosted)
	event.JournalEntryID = &entry.ID
	event.EntryType = string(entry.EntryType)
	if err := s.InsertOutboxTx(ctx, tx, s.cfg.PostingsTopic, strconv.FormatInt(entry.ID, 10), event); err != nil {
		return err
	}

	s.audit.LogPosting(entry.ID, string(entry.EntryType), string(entry.Status))
	return nil
}

// updateAccountBalance writes the new balance guarded by the version
// column. The row is already locked, so a version miss means a hole in
// the locking discipline rather than a lost race, and the transaction
// aborts.
func (s *LedgerService) updateAccountBalance(ctx context.Context, tx *sql.Tx, account *models.Account, newBalance int64) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance_minor = $1, version = version + 1, updated_at = $2 WHERE id = $3 AND version = $4`,
		newBalance, s.now(), account.ID, account.Version)
	if err != nil {
		return fmt.Errorf("update balance for account %d: %w", account.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("optimistic lock failed for account %d", account.ID)
	}

	account.BalanceMinor = newBalance
	account.Version++
	return nil
}

// InsertOutboxTx stages an event in the same transaction as its ledger
// effect. The outbox publisher delivers it after commit.
func (s *LedgerService) InsertOutboxTx(ctx context.Context, tx *sql.Tx, topic, key string, event models.LedgerEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal ledger event: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO outbox_messages (message_key, topic, payload, status) VALUES ($1, $2, $3, $4)`,
		key, topic, string(payload), models.OutboxStatusPending); err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

// NewEvent builds the envelope for an outbox payload.
func (s *LedgerService) NewEvent(eventType string) models.LedgerEvent {
	return models.LedgerEvent{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: s.now(),
	}
}

// GetAccount loads an account without locking it.
func (s *LedgerService) GetAccount(ctx context.Context, accountID int64) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID)
	return scanAccount(row)
}

// GetAccountByNumber loads an account by its account number.
func (s *LedgerService) GetAccountByNumber(ctx context.Context, accountNumber string) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE account_number = $1`, accountNumber)
	return scanAccount(row)
}

// GetCurrency loads a currency by id.
func (s *LedgerService) GetCurrency(ctx context.Context, currencyID int64) (*models.Currency, error) {
	currency := &models.Currency{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, code, name, minor_unit, created_at FROM currencies WHERE id = $1`, currencyID).
		Scan(&currency.ID, &currency.Code, &currency.Name, &currency.MinorUnit, &currency.CreatedAt)
	if err != nil {
		return nil, err
	}
	return currency, nil
}

const entryColumns = `id, entry_type, status, booking_date, value_date, external_reference, description, created_by_user_id, reversal_of_entry_id, created_at`

// GetEntry loads a journal entry with its lines.
func (s *LedgerService) GetEntry(ctx context.Context, entryID int64) (*models.JournalEntry, error) {
	entry, err := scanEntry(s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM journal_entries WHERE id = $1`, entryID))
	if err != nil {
		return nil, err
	}

	entry.Lines, err = s.fetchEntryLines(ctx, s.db.QueryContext, entryID)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// LockEntry loads a journal entry with its lines under a row lock on the
// entry. Reversals lock the entry before its accounts, so two concurrent
// reversals of the same entry serialize here.
func (s *LedgerService) LockEntry(ctx context.Context, tx *sql.Tx, entryID int64) (*models.JournalEntry, error) {
	entry, err := scanEntry(tx.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM journal_entries WHERE id = $1 FOR UPDATE`, entryID))
	if err != nil {
		return nil, err
	}

	entry.Lines, err = s.fetchEntryLines(ctx, tx.QueryContext, entryID)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func scanEntry(row *sql.Row) (*models.JournalEntry, error) {
	entry := &models.JournalEntry{}
	var externalRef, description sql.NullString
	err := row.Scan(
		&entry.ID, &entry.EntryType, &entry.Status, &entry.BookingDate, &entry.ValueDate,
		&externalRef, &description, &entry.CreatedByUserID, &entry.ReversalOfEntryID, &entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	entry.ExternalReference = externalRef.String
	entry.Description = description.String
	return entry, nil
}

type queryFunc func(ctx context.Context, query string, args ...any) (*sql.Rows, error)

func (s *LedgerService) fetchEntryLines(ctx context.Context, query queryFunc, entryID int64) ([]models.JournalEntryLine, error) {
	rows, err := query(ctx,
		`SELECT id, entry_id, account_id, direction, amount_minor, value_date, description, created_at
		 FROM journal_entry_lines WHERE entry_id = $1 ORDER BY id`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []models.JournalEntryLine
	for rows.Next() {
		var line models.JournalEntryLine
		var description sql.NullString
		if err := rows.Scan(&line.ID, &line.EntryID, &line.AccountID, &line.Direction,
			&line.AmountMinor, &line.ValueDate, &description, &line.CreatedAt); err != nil {
			return nil, err
		}
		line.Description = description.String
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// ReverseEntryTx posts a compensating ADJUSTMENT entry that flips every
// line of the original, then marks the original REVERSED. The original
// must be POSTED and not previously reversed, and all affected accounts
// must already be locked. The compensating entry goes through the normal
// posting checks, so a reversal that would overdraw an account fails.
func (s *LedgerService) ReverseEntryTx(ctx context.Context, tx *sql.Tx, original *models.JournalEntry, locked map[int64]*models.Account, actorID *int64) (*models.JournalEntry, error) {
	if original.Status == models.EntryStatusReversed {
		return nil, ErrAlreadyReversed
	}
	if original.Status != models.EntryStatusPosted {
		return nil, ErrEntryNotPosted
	}

	reversal := &models.JournalEntry{
		EntryType:         models.EntryTypeAdjustment,
		Description:       fmt.Sprintf("Reversal of entry %d", original.ID),
		CreatedByUserID:   actorID,
		ReversalOfEntryID: &original.ID,
		Lines:             make([]models.JournalEntryLine, 0, len(original.Lines)),
	}
	for _, line := range original.Lines {
		reversal.Lines = append(reversal.Lines, models.JournalEntryLine{
			AccountID:   line.AccountID,
			Direction:   line.Direction.Opposite(),
			AmountMinor: line.AmountMinor,
			Description: line.Description,
		})
	}

	if err := s.PostEntryTx(ctx, tx, reversal, locked); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE journal_entries SET status = $1 WHERE id = $2`, models.EntryStatusReversed, original.ID); err != nil {
		return nil, fmt.Errorf("mark entry reversed: %w", err)
	}
	original.Status = models.EntryStatusReversed

	event := s.NewEvent(models.EventEntryReversed)
	event.JournalEntryID = &original.ID
	event.EntryType = string(original.EntryType)
	if err := s.InsertOutboxTx(ctx, tx, s.cfg.PostingsTopic, strconv.FormatInt(original.ID, 10), event); err != nil {
		return nil, err
	}

	return reversal, nil
}

// DeriveBalance recomputes an account balance from the journal: the sum
// of signed line amounts over POSTED and REVERSED entries. A reversed
// entry still counts because its compensating entry carries the flipped
// lines.
func (s *LedgerService) DeriveBalance(ctx context.Context, accountID int64) (int64, error) {
	var derived int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE WHEN l.direction = 'CREDIT' THEN l.amount_minor ELSE -l.amount_minor END), 0)
		 FROM journal_entry_lines l
		 JOIN journal_entries e ON e.id = l.entry_id
		 WHERE l.account_id = $1 AND e.status IN ('POSTED', 'REVERSED')`, accountID).
		Scan(&derived)
	if err != nil {
		return 0, fmt.Errorf("derive balance for account %d: %w", accountID, err)
	}
	return derived, nil
}

// GetEntryHandler retrieves a journal entry
// @Summary Get journal entry
// @Description Retrieve a journal entry and its lines by id
// @Tags entries
// @Produce json
// @Param id path int true "Journal entry ID"
// @Success 200 {object} models.JournalEntry
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /entries/{id} [get]
func (s *LedgerService) GetEntryHandler(w http.ResponseWriter, r *http.Request) {
	entryID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid entry id", http.StatusBadRequest)
		return
	}

	entry, err := s.GetEntry(r.Context(), entryID)
	if err != nil {
		if err == sql.ErrNoRows {
			http.Error(w, "Journal entry not found", http.StatusNotFound)
		} else {
			log.Printf("[LEDGER] Failed to fetch entry %d: %v", entryID, err)
			http.Error(w, "Failed to fetch journal entry", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entry)
}

// ReverseEntryHandler reverses a posted journal entry
// @Summary Reverse a journal entry
// @Description Post a compensating adjustment entry and mark the original as reversed
// @Tags entries
// @Produce json
// @Param id path int true "Journal entry ID"
// @Success 201 {object} models.JournalEntry
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /admin/entries/{id}/reverse [post]
func (s *LedgerService) ReverseEntryHandler(w http.ResponseWriter, r *http.Request) {
	entryID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid entry id", http.StatusBadRequest)
		return
	}

	var actorID *int64
	if id, ok := middleware.ActorID(r.Context()); ok {
		actorID = &id
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.LockTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("[LEDGER] Failed to begin reversal transaction: %v", err)
		http.Error(w, "Failed to reverse journal entry", http.StatusInternalServerError)
		return
	}
	defer tx.Rollback()

	original, err := s.LockEntry(ctx, tx, entryID)
	if err != nil {
		switch {
		case err == sql.ErrNoRows:
			http.Error(w, "Journal entry not found", http.StatusNotFound)
		case isLockTimeout(err):
			http.Error(w, "Reversal timed out waiting for locks", http.StatusConflict)
		default:
			log.Printf("[LEDGER] Failed to lock entry %d: %v", entryID, err)
			http.Error(w, "Failed to reverse journal entry", http.StatusInternalServerError)
		}
		return
	}

	accountIDs := make([]int64, 0, len(original.Lines))
	for _, line := range original.Lines {
		accountIDs = append(accountIDs, line.AccountID)
	}
	locked, err := s.LockAccountsOrdered(ctx, tx, accountIDs...)
	if err != nil {
		if isLockTimeout(err) {
			http.Error(w, "Reversal timed out waiting for locks", http.StatusConflict)
			return
		}
		log.Printf("[LEDGER] Failed to lock accounts for reversal of entry %d: %v", entryID, err)
		http.Error(w, "Failed to reverse journal entry", http.StatusInternalServerError)
		return
	}

	reversal, err := s.ReverseEntryTx(ctx, tx, original, locked, actorID)
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyReversed), errors.Is(err, ErrEntryNotPosted), errors.Is(err, ErrOverdrawn):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			log.Printf("[LEDGER] Failed to reverse entry %d: %v", entryID, err)
			http.Error(w, "Failed to reverse journal entry", http.StatusInternalServerError)
		}
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[LEDGER] Failed to commit reversal of entry %d: %v", entryID, err)
		http.Error(w, "Failed to reverse journal entry", http.StatusInternalServerError)
		return
	}

	log.Printf("[LEDGER] Entry %d reversed by entry %d", original.ID, reversal.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(reversal)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
