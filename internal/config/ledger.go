package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type LedgerConfig struct {
	LockTimeout       time.Duration
	CashAccountPrefix string
	IBANCountryCode   string
	IBANBankCode      string
	BankBIC           string
	StatementMaxRows  int
	OutboxInterval    time.Duration
	OutboxBatchSize   int
	OutboxMaxRetries  int
	KafkaBrokers      []string
	PostingsTopic     string
	TransfersTopic    string
}

func LoadLedgerConfig() *LedgerConfig {
	return &LedgerConfig{
		LockTimeout:       getEnvAsDuration("LEDGER_LOCK_TIMEOUT", 5*time.Second),
		CashAccountPrefix: getEnv("LEDGER_CASH_ACCOUNT_PREFIX", "CASH-"),
		IBANCountryCode:   getEnv("LEDGER_IBAN_COUNTRY", "XB"),
		IBANBankCode:      getEnv("LEDGER_IBAN_BANK_CODE", "CORE"),
		BankBIC:           getEnv("LEDGER_BANK_BIC", "COREXBNK"),
		StatementMaxRows:  getEnvAsInt("LEDGER_STATEMENT_MAX_ROWS", 100),
		OutboxInterval:    getEnvAsDuration("LEDGER_OUTBOX_INTERVAL", 100*time.Millisecond),
		OutboxBatchSize:   getEnvAsInt("LEDGER_OUTBOX_BATCH_SIZE", 100),
		OutboxMaxRetries:  getEnvAsInt("LEDGER_OUTBOX_MAX_RETRIES", 5),
		KafkaBrokers:      getEnvAsSlice("LEDGER_KAFKA_BROKERS", []string{"localhost:9092"}),
		PostingsTopic:     getEnv("LEDGER_POSTINGS_TOPIC", "ledger.postings"),
		TransfersTopic:    getEnv("LEDGER_TRANSFERS_TOPIC", "ledger.transfers"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsSlice(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		parts := strings.Split(val, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultVal
}
