package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcclellann/emiledger/pkg/ledger"
	"github.com/mcclellann/emiledger/pkg/models"
	"github.com/rs/zerolog/log"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeLedgerError maps a ledger error to its HTTP status. Unexpected errors are
// logged and reported without detail.
func writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapError(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func mapError(err error) int {
	switch {
	case errors.Is(err, ledger.ErrLoanNotFound), errors.Is(err, ledger.ErrCustomerNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidTerms),
		errors.Is(err, ledger.ErrInvalidPayment),
		errors.Is(err, ledger.ErrInvalidPaymentType),
		errors.Is(err, ledger.ErrInvalidCustomer),
		errors.Is(err, models.ErrInvalidLoanStatus):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrLoanPaidOff), errors.Is(err, ledger.ErrConcurrentUpdate):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrOverpaymentRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrInvalidLoanTerms), errors.Is(err, models.ErrInvalidStatusTransition):
		// Stored loan data is corrupt. The caller cannot fix it.
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
