package main

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mcclellann/emiledger/pkg/ledger"
	"github.com/mcclellann/emiledger/pkg/models"
	"github.com/mcclellann/emiledger/pkg/store"
	"github.com/shopspring/decimal"
)

// Server holds the ledger instance.
type Server struct {
	ledger  *ledger.Ledger
	limiter *RateLimiter // nil disables rate limiting
}

func NewServer(s store.Storage, limiter *RateLimiter) *Server {
	return &Server{
		ledger:  ledger.NewLedger(s),
		limiter: limiter,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(recoverer, requestLogger)
	if s.limiter != nil {
		router.Use(s.limiter.Middleware)
	}

	router.HandleFunc("/health", s.healthHandler).Methods("GET")
	router.HandleFunc("/summary", s.portfolioSummaryHandler).Methods("GET")

	router.HandleFunc("/customers", s.createCustomerHandler).Methods("POST")
	router.HandleFunc("/customers", s.listCustomersHandler).Methods("GET")
	router.HandleFunc("/customers/{id}", s.getCustomerHandler).Methods("GET")
	router.HandleFunc("/customers/{id}/loans", s.listCustomerLoansHandler).Methods("GET")
	router.HandleFunc("/customers/{id}/summary", s.customerSummaryHandler).Methods("GET")

	router.HandleFunc("/quotes", s.quoteHandler).Methods("POST")

	router.HandleFunc("/loans", s.createLoanHandler).Methods("POST")
	router.HandleFunc("/loans", s.listLoansHandler).Methods("GET")
	router.HandleFunc("/loans/{id}", s.getLoanHandler).Methods("GET")
	router.HandleFunc("/loans/{id}/payments", s.recordPaymentHandler).Methods("POST")
	router.HandleFunc("/loans/{id}/payments", s.listPaymentsHandler).Methods("GET")
	router.HandleFunc("/loans/{id}/emi-suggestion", s.suggestEMIHandler).Methods("GET")

	return router
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) createCustomerHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Phone   string `json:"phone"`
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	customer, err := s.ledger.CreateCustomer(r.Context(), req.Name, req.Email, req.Phone, req.Address)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, customer)
}

func (s *Server) listCustomersHandler(w http.ResponseWriter, r *http.Request) {
	customers, err := s.ledger.ListCustomers(r.Context())
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	if customers == nil {
		customers = []*models.Customer{}
	}
	writeJSON(w, http.StatusOK, customers)
}

func (s *Server) getCustomerHandler(w http.ResponseWriter, r *http.Request) {
	customer, err := s.ledger.GetCustomer(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

func (s *Server) listCustomerLoansHandler(w http.ResponseWriter, r *http.Request) {
	loans, err := s.ledger.ListLoansByCustomer(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	if loans == nil {
		loans = []*models.Loan{}
	}
	writeJSON(w, http.StatusOK, loans)
}

func (s *Server) customerSummaryHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := s.ledger.CustomerSummary(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) portfolioSummaryHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := s.ledger.PortfolioSummary(r.Context())
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type termsRequest struct {
	LoanAmount         decimal.Decimal `json:"loan_amount"`
	LoanPeriodYears    decimal.Decimal `json:"loan_period_years"`
	InterestRateYearly decimal.Decimal `json:"interest_rate_yearly"`
}

func (s *Server) quoteHandler(w http.ResponseWriter, r *http.Request) {
	var req termsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	terms, err := s.ledger.QuoteTerms(req.LoanAmount, req.LoanPeriodYears, req.InterestRateYearly)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, terms)
}

func (s *Server) createLoanHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID string `json:"customer_id"`
		termsRequest
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	loan, err := s.ledger.CreateLoan(r.Context(), req.CustomerID, req.LoanAmount, req.LoanPeriodYears, req.InterestRateYearly)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

func (s *Server) listLoansHandler(w http.ResponseWriter, r *http.Request) {
	var status models.LoanStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := models.ParseLoanStatus(raw)
		if err != nil {
			writeLedgerError(w, r, err)
			return
		}
		status = parsed
	}

	loans, err := s.ledger.ListLoans(r.Context(), status)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	if loans == nil {
		loans = []*models.Loan{}
	}
	writeJSON(w, http.StatusOK, loans)
}

func (s *Server) getLoanHandler(w http.ResponseWriter, r *http.Request) {
	loan, err := s.ledger.GetLoan(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) recordPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount      decimal.Decimal    `json:"amount"`
		PaymentType models.PaymentType `json:"payment_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	receipt, err := s.ledger.RecordPayment(r.Context(), mux.Vars(r)["id"], req.Amount, req.PaymentType)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (s *Server) listPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	payments, err := s.ledger.ListPayments(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	if payments == nil {
		payments = []*models.Payment{}
	}
	writeJSON(w, http.StatusOK, payments)
}

func (s *Server) suggestEMIHandler(w http.ResponseWriter, r *http.Request) {
	loanID := mux.Vars(r)["id"]
	amount, err := s.ledger.SuggestEMI(r.Context(), loanID)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"loan_id":      loanID,
		"amount":       amount,
		"payment_type": models.PaymentTypeEMI,
	})
}
