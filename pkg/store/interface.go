package store

import (
	"context"
	"errors"
	"time"

	"github.com/mcclellann/emiledger/pkg/models"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrStale is returned when a conditional loan update finds the loan's
	// amount_paid no longer matches what the caller last read.
	ErrStale = errors.New("record changed since it was read")
)

// LoanFilter narrows ListLoans. Zero values match everything.
type LoanFilter struct {
	CustomerID string
	Status     models.LoanStatus
}

// LoanUpdate replaces a loan's derived fields, guarded by the amount_paid the
// caller based its reconciliation on.
type LoanUpdate struct {
	LoanID             string
	ExpectedAmountPaid decimal.Decimal
	State              models.Reconciliation
	UpdatedAt          time.Time
}

// Storage defines the interface for database operations related to customers, loans and payments.
type Storage interface {
	CreateCustomer(ctx context.Context, customer *models.Customer) error
	GetCustomer(ctx context.Context, id string) (*models.Customer, error)
	ListCustomers(ctx context.Context) ([]*models.Customer, error)

	CreateLoan(ctx context.Context, loan *models.Loan) error
	GetLoan(ctx context.Context, id string) (*models.Loan, error)
	ListLoans(ctx context.Context, filter LoanFilter) ([]*models.Loan, error)
	UpdateLoanDerived(ctx context.Context, update LoanUpdate) error

	// AppendPayment records the payment and applies the update atomically.
	AppendPayment(ctx context.Context, payment *models.Payment, update LoanUpdate) error
	ListPaymentsForLoan(ctx context.Context, loanID string) ([]*models.Payment, error)

	Close() error
}
