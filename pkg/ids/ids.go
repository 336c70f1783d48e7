// Package ids issues the opaque identifiers used for customers, loans and payments.
package ids

import (
	"github.com/google/uuid"
)

const (
	CustomerPrefix = "CUST"
	LoanPrefix     = "LOAN"
	PaymentPrefix  = "PAY"
)

// New returns prefix_<uuid>.
func New(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

func NewCustomerID() string { return New(CustomerPrefix) }

func NewLoanID() string { return New(LoanPrefix) }

func NewPaymentID() string { return New(PaymentPrefix) }
