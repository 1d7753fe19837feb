package models

import "time"

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// Event types carried on the outbox topics.
const (
	EventTransferExecuted = "TRANSFER_EXECUTED"
	EventTransferFailed   = "TRANSFER_FAILED"
	EventEntryPosted      = "ENTRY_POSTED"
	EventEntryReversed    = "ENTRY_REVERSED"
)

// OutboxMessage is a transactional outbox row, written in the same database
// transaction as the financial effect it announces and drained asynchronously
// by the publisher job.
type OutboxMessage struct {
	ID         int64     `json:"id" db:"id"`
	MessageKey string    `json:"message_key" db:"message_key"`
	Topic      string    `json:"topic" db:"topic"`
	Payload    string    `json:"payload" db:"payload"`
	Status     string    `json:"status" db:"status"`
	RetryCount int       `json:"retry_count" db:"retry_count"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// LedgerEvent is the payload published for posting and transfer outcomes.
type LedgerEvent struct {
	EventID        string     `json:"event_id"`
	EventType      string     `json:"event_type"`
	OccurredAt     time.Time  `json:"occurred_at"`
	TransferID     *int64     `json:"transfer_id,omitempty"`
	JournalEntryID *int64     `json:"journal_entry_id,omitempty"`
	EntryType      string     `json:"entry_type,omitempty"`
	FromAccountID  *int64     `json:"from_account_id,omitempty"`
	ToAccountID    *int64     `json:"to_account_id,omitempty"`
	AmountMinor    int64      `json:"amount_minor,omitempty"`
	Currency       string     `json:"currency,omitempty"`
	FailureReason  string     `json:"failure_reason,omitempty"`
	ExecutedAt     *time.Time `json:"executed_at,omitempty"`
}
