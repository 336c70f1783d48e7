package ledger

import (
	"errors"
	"fmt"

	"github.com/mcclellann/emiledger/pkg/models"
)

var (
	// Accounting engine failures. All are deterministic validation errors.
	ErrInvalidTerms        = errors.New("invalid loan terms")
	ErrInvalidLoanTerms    = errors.New("corrupt loan terms")
	ErrInvalidPayment      = errors.New("invalid payment")
	ErrOverpaymentRejected = errors.New("payment exceeds remaining balance")

	// ErrInstallmentTooSmall is an ErrInvalidTerms for valid inputs whose monthly
	// installment rounds to zero cents.
	ErrInstallmentTooSmall = fmt.Errorf("%w: monthly installment rounds to zero", ErrInvalidTerms)

	ErrInvalidCustomer    = errors.New("invalid customer")
	ErrInvalidPaymentType = models.ErrInvalidPaymentType
	ErrCustomerNotFound   = errors.New("customer not found")
	ErrLoanNotFound       = errors.New("loan not found")
	ErrLoanPaidOff        = errors.New("loan is already paid off")
	ErrConcurrentUpdate   = errors.New("loan was modified concurrently")
)
