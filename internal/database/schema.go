package database

import (
	"database/sql"
	"fmt"
	"log"
)

// Schema DDL for the ledger. Statements are idempotent so Migrate can be
// re-run against an existing database.
const (
	schemaCurrencies = `CREATE TABLE IF NOT EXISTS currencies (
		id         BIGSERIAL   PRIMARY KEY,
		code       CHAR(3)     NOT NULL UNIQUE,
		name       TEXT        NOT NULL,
		minor_unit SMALLINT    NOT NULL DEFAULT 2 CHECK (minor_unit BETWEEN 0 AND 4),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

	schemaAccountProducts = `CREATE TABLE IF NOT EXISTS account_products (
		id                         BIGSERIAL   PRIMARY KEY,
		code                       VARCHAR(32) NOT NULL UNIQUE,
		name                       TEXT        NOT NULL,
		account_type               VARCHAR(16) NOT NULL CHECK (account_type IN ('CURRENT', 'SAVINGS', 'TERM_DEPOSIT')),
		interest_rate_basis_points INTEGER     NOT NULL DEFAULT 0,
		created_at                 TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

	schemaAccounts = `CREATE TABLE IF NOT EXISTS accounts (
		id                    BIGSERIAL   PRIMARY KEY,
		holder_id             BIGINT      NOT NULL,
		product_id            BIGINT      NOT NULL REFERENCES account_products (id),
		currency_id           BIGINT      NOT NULL REFERENCES currencies (id),
		account_number        VARCHAR(34) NOT NULL UNIQUE,
		iban                  VARCHAR(34) UNIQUE,
		status                VARCHAR(16) NOT NULL DEFAULT 'ACTIVE' CHECK (status IN ('PENDING', 'ACTIVE', 'BLOCKED', 'CLOSED')),
		balance_minor         BIGINT      NOT NULL DEFAULT 0,
		overdraft_limit_minor BIGINT      NOT NULL DEFAULT 0 CHECK (overdraft_limit_minor >= 0),
		version               INTEGER     NOT NULL DEFAULT 1,
		created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at            TIMESTAMPTZ NOT NULL DEFAULT now(),

		CONSTRAINT accounts_solvent CHECK (balance_minor + overdraft_limit_minor >= 0)
	)`

	schemaJournalEntries = `CREATE TABLE IF NOT EXISTS journal_entries (
		id                   BIGSERIAL   PRIMARY KEY,
		entry_type           VARCHAR(32) NOT NULL CHECK (entry_type IN ('TRANSFER', 'CASH_DEPOSIT', 'CASH_WITHDRAWAL', 'FEE', 'INTEREST', 'ADJUSTMENT')),
		status               VARCHAR(16) NOT NULL DEFAULT 'POSTED' CHECK (status IN ('PENDING', 'POSTED', 'REVERSED')),
		booking_date         DATE        NOT NULL,
		value_date           DATE,
		external_reference   VARCHAR(64),
		description          TEXT,
		created_by_user_id   BIGINT,
		reversal_of_entry_id BIGINT      UNIQUE REFERENCES journal_entries (id),
		created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

	schemaJournalEntryLines = `CREATE TABLE IF NOT EXISTS journal_entry_lines (
		id           BIGSERIAL   PRIMARY KEY,
		entry_id     BIGINT      NOT NULL REFERENCES journal_entries (id),
		account_id   BIGINT      NOT NULL REFERENCES accounts (id),
		direction    VARCHAR(6)  NOT NULL CHECK (direction IN ('DEBIT', 'CREDIT')),
		amount_minor BIGINT      NOT NULL CHECK (amount_minor > 0),
		value_date   DATE,
		description  TEXT,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

	// transfers intentionally carries no foreign keys to accounts and no
	// positivity check on amount_minor: rejected requests are recorded as
	// FAILED rows, including those naming unknown accounts or bad amounts.
	schemaTransfers = `CREATE TABLE IF NOT EXISTS transfers (
		id                   BIGSERIAL   PRIMARY KEY,
		from_account_id      BIGINT      NOT NULL,
		to_account_id        BIGINT      NOT NULL,
		amount_minor         BIGINT      NOT NULL,
		currency             CHAR(3),
		status               VARCHAR(16) NOT NULL DEFAULT 'PENDING' CHECK (status IN ('PENDING', 'EXECUTED', 'FAILED')),
		failure_reason       VARCHAR(32),
		journal_entry_id     BIGINT      REFERENCES journal_entries (id),
		description          TEXT,
		external_reference   VARCHAR(64),
		requested_by_user_id BIGINT,
		requested_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
		executed_at          TIMESTAMPTZ
	)`

	schemaOutboxMessages = `CREATE TABLE IF NOT EXISTS outbox_messages (
		id          BIGSERIAL   PRIMARY KEY,
		message_key VARCHAR(64) NOT NULL,
		topic       VARCHAR(64) NOT NULL,
		payload     TEXT        NOT NULL,
		status      VARCHAR(16) NOT NULL DEFAULT 'PENDING',
		retry_count INTEGER     NOT NULL DEFAULT 0,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
)

var schemaIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS transfers_external_reference_idx
		ON transfers (external_reference) WHERE external_reference IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS transfers_from_account_idx ON transfers (from_account_id, requested_at)`,
	`CREATE INDEX IF NOT EXISTS transfers_to_account_idx ON transfers (to_account_id, requested_at)`,
	`CREATE INDEX IF NOT EXISTS journal_entry_lines_account_idx ON journal_entry_lines (account_id, entry_id)`,
	`CREATE INDEX IF NOT EXISTS journal_entries_external_reference_idx ON journal_entries (external_reference)`,
	`CREATE INDEX IF NOT EXISTS accounts_holder_idx ON accounts (holder_id)`,
	`CREATE INDEX IF NOT EXISTS outbox_messages_status_idx ON outbox_messages (status, id)`,
}

// Migrate creates all ledger tables and indexes
func Migrate(db *sql.DB) error {
	tables := []string{
		schemaCurrencies,
		schemaAccountProducts,
		schemaAccounts,
		schemaJournalEntries,
		schemaJournalEntryLines,
		schemaTransfers,
		schemaOutboxMessages,
	}

	for _, ddl := range tables {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	for _, idx := range schemaIndexes {
		if _, err := db.Exec(idx); err != nil {
			return fmt.Errorf("migrate index: %w", err)
		}
	}

	log.Println("[SCHEMA] Migration complete")
	return nil
}

// CashOverdraftMinor keeps the system cash accounts solvent under the
// accounts_solvent check: customer deposits debit the cash account, so its
// signed balance only falls as money enters the bank.
const CashOverdraftMinor = int64(1) << 62

// Seed inserts the reference data a fresh ledger needs: currencies, account
// products and one system cash account per currency. Safe to re-run.
func Seed(db *sql.DB) error {
	seedCurrencies := `INSERT INTO currencies (code, name, minor_unit) VALUES
		('EUR', 'Euro', 2),
		('USD', 'US Dollar', 2),
		('GBP', 'Pound Sterling', 2),
		('JPY', 'Japanese Yen', 0)
		ON CONFLICT (code) DO NOTHING`

	seedProducts := `INSERT INTO account_products (code, name, account_type, interest_rate_basis_points) VALUES
		('SYSTEM', 'System Account', 'CURRENT', 0),
		('CURRENT-STD', 'Standard Current Account', 'CURRENT', 0),
		('SAVINGS-STD', 'Standard Savings Account', 'SAVINGS', 150),
		('TERM-12M', '12 Month Term Deposit', 'TERM_DEPOSIT', 320)
		ON CONFLICT (code) DO NOTHING`

	seedCashAccounts := fmt.Sprintf(`INSERT INTO accounts
		(holder_id, product_id, currency_id, account_number, status, balance_minor, overdraft_limit_minor)
		SELECT 0, p.id, c.id, 'CASH-' || c.code, 'ACTIVE', 0, %d
		FROM account_products p, currencies c
		WHERE p.code = 'SYSTEM'
		ON CONFLICT (account_number) DO NOTHING`, CashOverdraftMinor)

	for _, stmt := range []string{seedCurrencies, seedProducts, seedCashAccounts} {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	log.Println("[SCHEMA] Seed data loaded")
	return nil
}
