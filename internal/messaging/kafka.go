package messaging

import (
	"fmt"
	"log"

	"github.com/IBM/sarama"
)

var producer sarama.SyncProducer

// InitKafka connects a synchronous producer for ledger events. Delivery is
// acknowledged by all in-sync replicas before an outbox row is marked sent,
// so a crash between publish and mark can only duplicate, never lose.
func InitKafka(brokers []string) error {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Return.Successes = true

	p, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return fmt.Errorf("kafka producer init: %w", err)
	}
	producer = p

	log.Println("Kafka producer initialized")
	return nil
}

// SendMessage publishes one event keyed for per-aggregate ordering.
func SendMessage(topic, key, value string) error {
	if producer == nil {
		return fmt.Errorf("kafka producer not initialized")
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(value),
	}

	partition, offset, err := producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("kafka send: %w", err)
	}

	log.Printf("[KAFKA] Published topic=%s partition=%d offset=%d key=%s", topic, partition, offset, key)
	return nil
}

func CloseKafka() {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		log.Printf("[KAFKA] Producer close error: %v", err)
	}
}
