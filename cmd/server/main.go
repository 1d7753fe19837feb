package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/corebank/ledger/docs"
	"github.com/corebank/ledger/internal/config"
	"github.com/corebank/ledger/internal/database"
	"github.com/corebank/ledger/internal/jobs"
	"github.com/corebank/ledger/internal/messaging"
	mW "github.com/corebank/ledger/internal/middleware"
	"github.com/corebank/ledger/internal/services"
)

// @title Core Ledger API
// @version 1.0
// @description Double-entry ledger and funds transfer API
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "Core Ledger API"
	docs.SwaggerInfo.Description = "Double-entry ledger and funds transfer API"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	cfg := config.LoadLedgerConfig()

	// Initialize storage
	db := database.InitDatabase()
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	if err := database.Seed(db); err != nil {
		log.Printf("Warning: Failed to seed reference data: %v", err)
	}

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Kafka is best-effort: the outbox keeps undelivered events until the
	// broker comes back.
	if err := messaging.InitKafka(cfg.KafkaBrokers); err != nil {
		log.Printf("Warning: Kafka unavailable, outbox delivery deferred: %v", err)
	}
	defer messaging.CloseKafka()

	// Initialize services
	ledgerService := services.NewLedgerService(db, cfg)
	transferService := services.NewTransferService(db, redisClient, ledgerService, cfg)
	accountService := services.NewAccountService(db, ledgerService, cfg)
	currencyService := services.NewCurrencyService(db, cfg)
	reconciliationService := services.NewReconciliationService(db)
	isoService := services.NewISO20022Service(db, ledgerService, cfg)

	// Outbox publisher drains committed events to Kafka in the background.
	publisher := jobs.NewOutboxPublisher(db, cfg.OutboxInterval, cfg.OutboxBatchSize, cfg.OutboxMaxRetries)
	publisherCtx, cancelPublisher := context.WithCancel(context.Background())
	defer cancelPublisher()
	go publisher.Start(publisherCtx)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(mW.ActorContext)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Reference data
		r.Get("/currencies", currencyService.ListCurrencies)
		r.Get("/currencies/{code}", currencyService.GetCurrency)
		r.Get("/products", currencyService.ListProducts)

		// Accounts
		r.Post("/accounts", accountService.OpenAccount)
		r.Get("/accounts/{id}", accountService.GetAccount)
		r.Get("/accounts/{id}/balance", accountService.BalanceEnquiry)
		r.Get("/accounts/{id}/statement", accountService.Statement)
		r.Post("/accounts/{id}/deposits", accountService.Deposit)
		r.Post("/accounts/{id}/withdrawals", accountService.Withdraw)
		r.Post("/accounts/{id}/block", accountService.BlockAccount)
		r.Post("/accounts/{id}/reinstate", accountService.ReinstateAccount)
		r.Post("/accounts/{id}/close", accountService.CloseAccount)

		// Transfers
		r.Post("/transfers", transferService.ExecuteTransfer)
		r.Get("/transfers", transferService.ListTransfers)
		r.Get("/transfers/{id}", transferService.GetTransfer)
		r.Get("/transfers/{id}/pacs008", isoService.ExportPacs008)
		r.Get("/transfers/{id}/pacs002", isoService.ExportPacs002)

		// Journal
		r.Get("/entries/{id}", ledgerService.GetEntryHandler)

		// Back-office endpoints require an authenticated actor id from the
		// upstream gateway.
		r.Group(func(r chi.Router) {
			r.Use(mW.RequireActor)

			r.Post("/currencies", currencyService.CreateCurrency)
			r.Post("/products", currencyService.CreateProduct)
			r.Post("/admin/entries/{id}/reverse", ledgerService.ReverseEntryHandler)
			r.Get("/admin/reconciliation", reconciliationService.Reconcile)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	publisher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
