package jobs

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/corebank/ledger/internal/messaging"
	"github.com/corebank/ledger/internal/models"
)

// OutboxPublisher drains pending outbox rows to Kafka. Rows are written in
// the same transaction as their ledger effect, so polling committed rows
// gives at-least-once delivery without dual writes.
type OutboxPublisher struct {
	db         *sql.DB
	interval   time.Duration
	batchSize  int
	maxRetries int
	stopCh     chan struct{}

	// send is swappable in tests
	send func(topic, key, value string) error
}

// minPublishInterval is the floor for the polling ticker, which panics on
// non-positive periods.
const minPublishInterval = 10 * time.Millisecond

func NewOutboxPublisher(db *sql.DB, interval time.Duration, batchSize, maxRetries int) *OutboxPublisher {
	if interval < minPublishInterval {
		interval = minPublishInterval
	}
	return &OutboxPublisher{
		db:         db,
		interval:   interval,
		batchSize:  batchSize,
		maxRetries: maxRetries,
		stopCh:     make(chan struct{}),
		send:       messaging.SendMessage,
	}
}

// Start polls until the context is cancelled or Stop is called.
func (p *OutboxPublisher) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	log.Printf("[OUTBOX] Publisher started interval=%s batch=%d", p.interval, p.batchSize)

	for {
		select {
		case <-ctx.Done():
			log.Println("[OUTBOX] Publisher stopped: context cancelled")
			return
		case <-p.stopCh:
			log.Println("[OUTBOX] Publisher stopped")
			return
		case <-ticker.C:
			if err := p.publishPending(ctx); err != nil {
				log.Printf("[OUTBOX] Publish cycle error: %v", err)
			}
		}
	}
}

func (p *OutboxPublisher) Stop() {
	close(p.stopCh)
}

func (p *OutboxPublisher) publishPending(ctx context.Context) error {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, message_key, topic, payload, retry_count
		 FROM outbox_messages
		 WHERE status = $1
		 ORDER BY id
		 LIMIT $2`,
		models.OutboxStatusPending, p.batchSize)
	if err != nil {
		return err
	}
	defer rows.Close()

	var pending []models.OutboxMessage
	for rows.Next() {
		var m models.OutboxMessage
		if err := rows.Scan(&m.ID, &m.MessageKey, &m.Topic, &m.Payload, &m.RetryCount); err != nil {
			return err
		}
		pending = append(pending, m)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, m := range pending {
		p.publishOne(ctx, m)
	}
	return nil
}

func (p *OutboxPublisher) publishOne(ctx context.Context, m models.OutboxMessage) {
	if err := p.send(m.Topic, m.MessageKey, m.Payload); err != nil {
		log.Printf("[OUTBOX] Send failed for message %d: %v", m.ID, err)
		p.recordFailure(ctx, m)
		return
	}

	if _, err := p.db.ExecContext(ctx,
		`UPDATE outbox_messages SET status = $1, updated_at = now() WHERE id = $2`,
		models.OutboxStatusSent, m.ID); err != nil {
		// The event is already on the broker; the next cycle resends it and
		// consumers dedupe on event_id.
		log.Printf("[OUTBOX] Mark sent failed for message %d: %v", m.ID, err)
	}
}

func (p *OutboxPublisher) recordFailure(ctx context.Context, m models.OutboxMessage) {
	status := models.OutboxStatusPending
	if m.RetryCount+1 >= p.maxRetries {
		status = models.OutboxStatusFailed
		log.Printf("[OUTBOX] Message %d exceeded %d retries, marking failed", m.ID, p.maxRetries)
	}

	if _, err := p.db.ExecContext(ctx,
		`UPDATE outbox_messages SET retry_count = retry_count + 1, status = $1, updated_at = now() WHERE id = $2`,
		status, m.ID); err != nil {
		log.Printf("[OUTBOX] Retry update failed for message %d: %v", m.ID, err)
	}
}
