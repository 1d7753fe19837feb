package services

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/corebank/ledger/internal/config"
	"github.com/corebank/ledger/internal/database"
	"github.com/corebank/ledger/internal/models"
)

// CurrencyService serves the ledger's reference data: supported currencies
// and account products. Both tables are seeded at migration time and extended
// through the back-office create endpoints, so the read responses are safe to
// cache for a day.
type CurrencyService struct {
	db        *sql.DB
	cfg       *config.LedgerConfig
	validator *ValidationHelper
}

func NewCurrencyService(db *sql.DB, cfg *config.LedgerConfig) *CurrencyService {
	return &CurrencyService{
		db:        db,
		cfg:       cfg,
		validator: NewValidationHelper(),
	}
}

// ListCurrencies lists supported currencies
// @Summary List currencies
// @Description List the currencies accounts can be denominated in
// @Tags reference
// @Produce json
// @Success 200 {array} models.Currency
// @Failure 500 {object} map[string]string
// @Router /currencies [get]
func (cs *CurrencyService) ListCurrencies(w http.ResponseWriter, r *http.Request) {
	rows, err := cs.db.QueryContext(r.Context(),
		`SELECT id, code, name, minor_unit, created_at FROM currencies ORDER BY code`)
	if err != nil {
		log.Printf("[REFERENCE] Failed to list currencies: %v", err)
		http.Error(w, "Failed to fetch currencies", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	currencies := []models.Currency{}
	for rows.Next() {
		var currency models.Currency
		if err := rows.Scan(&currency.ID, &currency.Code, &currency.Name, &currency.MinorUnit, &currency.CreatedAt); err != nil {
			log.Printf("[REFERENCE] Failed to scan currency: %v", err)
			http.Error(w, "Failed to fetch currencies", http.StatusInternalServerError)
			return
		}
		currencies = append(currencies, currency)
	}
	if err := rows.Err(); err != nil {
		log.Printf("[REFERENCE] Currency iteration failed: %v", err)
		http.Error(w, "Failed to fetch currencies", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	json.NewEncoder(w).Encode(currencies)
}

// GetCurrency fetches one currency by code
// @Summary Get currency
// @Description Fetch a currency by its ISO 4217 code
// @Tags reference
// @Produce json
// @Param code path string true "Currency code" example(EUR)
// @Success 200 {object} models.Currency
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /currencies/{code} [get]
func (cs *CurrencyService) GetCurrency(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "code"))

	var currency models.Currency
	err := cs.db.QueryRowContext(r.Context(),
		`SELECT id, code, name, minor_unit, created_at FROM currencies WHERE code = $1`, code).
		Scan(&currency.ID, &currency.Code, &currency.Name, &currency.MinorUnit, &currency.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			http.Error(w, "Currency not found", http.StatusNotFound)
		} else {
			log.Printf("[REFERENCE] Failed to fetch currency %s: %v", code, err)
			http.Error(w, "Failed to fetch currency", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	json.NewEncoder(w).Encode(currency)
}

// ListProducts lists account products
// @Summary List account products
// @Description List the account products new accounts can be opened under
// @Tags reference
// @Produce json
// @Success 200 {array} models.AccountProduct
// @Failure 500 {object} map[string]string
// @Router /products [get]
func (cs *CurrencyService) ListProducts(w http.ResponseWriter, r *http.Request) {
	rows, err := cs.db.QueryContext(r.Context(),
		`SELECT id, code, name, account_type, interest_rate_basis_points, created_at FROM account_products ORDER BY code`)
	if err != nil {
		log.Printf("[REFERENCE] Failed to list products: %v", err)
		http.Error(w, "Failed to fetch products", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	products := []models.AccountProduct{}
	for rows.Next() {
		var product models.AccountProduct
		if err := rows.Scan(&product.ID, &product.Code, &product.Name, &product.AccountType,
			&product.InterestRateBasisPoints, &product.CreatedAt); err != nil {
			log.Printf("[REFERENCE] Failed to scan product: %v", err)
			http.Error(w, "Failed to fetch products", http.StatusInternalServerError)
			return
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		log.Printf("[REFERENCE] Product iteration failed: %v", err)
		http.Error(w, "Failed to fetch products", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	json.NewEncoder(w).Encode(products)
}

type CreateCurrencyRequest struct {
	Code      string `json:"code" validate:"required,len=3,alpha" example:"CHF"`
	Name      string `json:"name" validate:"required,max=64" example:"Swiss Franc"`
	MinorUnit int    `json:"minor_unit" validate:"gte=0,lte=4" example:"2"`
}

type CreateProductRequest struct {
	Code                    string `json:"code" validate:"required,max=32" example:"SAVINGS-PLUS"`
	Name                    string `json:"name" validate:"required,max=64" example:"Plus Savings Account"`
	AccountType             string `json:"account_type" validate:"required,oneof=CURRENT SAVINGS TERM_DEPOSIT" example:"SAVINGS"`
	InterestRateBasisPoints int    `json:"interest_rate_basis_points" validate:"gte=0" example:"220"`
}

func (cs *CurrencyService) decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1_048_576))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	if err := cs.validator.ValidateStruct(dst); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}
	return true
}

// CreateCurrency registers a new currency
// @Summary Create a currency
// @Description Register a currency and open its system cash account
// @Tags reference
// @Accept json
// @Produce json
// @Param currency body CreateCurrencyRequest true "Currency details"
// @Success 201 {object} models.Currency
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /currencies [post]
func (cs *CurrencyService) CreateCurrency(w http.ResponseWriter, r *http.Request) {
	var req CreateCurrencyRequest
	if !cs.decodeRequest(w, r, &req) {
		return
	}
	code := strings.ToUpper(req.Code)

	tx, err := cs.db.BeginTx(r.Context(), nil)
	if err != nil {
		log.Printf("[REFERENCE] Failed to begin transaction: %v", err)
		SendErrorResponse(w, "Failed to create currency", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	var currency models.Currency
	err = tx.QueryRowContext(r.Context(),
		`INSERT INTO currencies (code, name, minor_unit) VALUES ($1, $2, $3)
		 RETURNING id, code, name, minor_unit, created_at`,
		code, req.Name, req.MinorUnit).
		Scan(&currency.ID, &currency.Code, &currency.Name, &currency.MinorUnit, &currency.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			SendErrorResponse(w, "Currency already exists", http.StatusConflict, nil)
			return
		}
		log.Printf("[REFERENCE] Failed to insert currency %s: %v", code, err)
		SendErrorResponse(w, "Failed to create currency", http.StatusInternalServerError, nil)
		return
	}

	// Cash movements in the new currency post against this account, so it
	// must exist before the first deposit.
	if _, err := tx.ExecContext(r.Context(),
		`INSERT INTO accounts
		 (holder_id, product_id, currency_id, account_number, status, balance_minor, overdraft_limit_minor)
		 SELECT 0, p.id, $1, $2, 'ACTIVE', 0, $3
		 FROM account_products p WHERE p.code = 'SYSTEM'`,
		currency.ID, cs.cfg.CashAccountPrefix+code, database.CashOverdraftMinor); err != nil {
		log.Printf("[REFERENCE] Failed to open cash account for %s: %v", code, err)
		SendErrorResponse(w, "Failed to create currency", http.StatusInternalServerError, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[REFERENCE] Failed to commit currency %s: %v", code, err)
		SendErrorResponse(w, "Failed to create currency", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[REFERENCE] Currency created: %s (minor unit %d)", code, req.MinorUnit)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(currency)
}

// CreateProduct registers a new account product
// @Summary Create an account product
// @Description Register a product new accounts can be opened under
// @Tags reference
// @Accept json
// @Produce json
// @Param product body CreateProductRequest true "Product details"
// @Success 201 {object} models.AccountProduct
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /products [post]
func (cs *CurrencyService) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if !cs.decodeRequest(w, r, &req) {
		return
	}
	code := strings.ToUpper(req.Code)

	var product models.AccountProduct
	err := cs.db.QueryRowContext(r.Context(),
		`INSERT INTO account_products (code, name, account_type, interest_rate_basis_points)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, code, name, account_type, interest_rate_basis_points, created_at`,
		code, req.Name, req.AccountType, req.InterestRateBasisPoints).
		Scan(&product.ID, &product.Code, &product.Name, &product.AccountType,
			&product.InterestRateBasisPoints, &product.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			SendErrorResponse(w, "Product already exists", http.StatusConflict, nil)
			return
		}
		log.Printf("[REFERENCE] Failed to insert product %s: %v", code, err)
		SendErrorResponse(w, "Failed to create product", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[REFERENCE] Product created: %s (%s)", code, req.AccountType)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(product)
}
