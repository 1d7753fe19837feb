package audit

import (
	"encoding/json"
	"log"
	"time"
)

type AuditEvent struct {
	Timestamp  time.Time `json:"timestamp"`
	EventType  string    `json:"event_type"`
	TransferID int64     `json:"transfer_id,omitempty"`
	EntryID    int64     `json:"entry_id,omitempty"`
	AccountID  int64     `json:"account_id,omitempty"`
	Amount     int64     `json:"amount,omitempty"`
	Status     string    `json:"status"`
	Details    any       `json:"details,omitempty"`
}

type AuditLogger struct{}

func NewAuditLogger() *AuditLogger {
	return &AuditLogger{}
}

func (a *AuditLogger) LogTransfer(transferID, fromAccountID, toAccountID, amountMinor int64, status string) {
	event := AuditEvent{
		Timestamp:  time.Now(),
		EventType:  "TRANSFER",
		TransferID: transferID,
		Amount:     amountMinor,
		Status:     status,
		Details: map[string]int64{
			"from_account_id": fromAccountID,
			"to_account_id":   toAccountID,
		},
	}
	a.log(event)
}

func (a *AuditLogger) LogPosting(entryID int64, entryType, status string) {
	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: "POSTING",
		EntryID:   entryID,
		Status:    status,
		Details:   map[string]string{"entry_type": entryType},
	}
	a.log(event)
}

func (a *AuditLogger) LogAccountStatus(accountID int64, fromStatus, toStatus string) {
	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: "ACCOUNT_STATUS",
		AccountID: accountID,
		Status:    toStatus,
		Details:   map[string]string{"previous_status": fromStatus},
	}
	a.log(event)
}

func (a *AuditLogger) LogError(eventType string, id int64, err error) {
	event := AuditEvent{
		Timestamp:  time.Now(),
		EventType:  eventType,
		TransferID: id,
		Status:     "FAILED",
		Details:    map[string]string{"error": err.Error()},
	}
	a.log(event)
}

func (a *AuditLogger) log(event AuditEvent) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
