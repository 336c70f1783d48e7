package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidLoanStatus       = errors.New("invalid loan status")
	ErrInvalidPaymentType      = errors.New("invalid payment type")
	ErrInvalidStatusTransition = errors.New("invalid loan status transition")
)

// LoanStatus is the lifecycle state of a loan. ACTIVE is initial, PAID_OFF is terminal.
type LoanStatus string

const (
	LoanStatusActive  LoanStatus = "ACTIVE"
	LoanStatusPaidOff LoanStatus = "PAID_OFF"
)

// ParseLoanStatus validates a raw status string.
func ParseLoanStatus(s string) (LoanStatus, error) {
	switch LoanStatus(s) {
	case LoanStatusActive, LoanStatusPaidOff:
		return LoanStatus(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLoanStatus, s)
}

// CanTransitionTo reports whether a loan in status s may move to next.
// Staying in the same state is always allowed; the only real transition is ACTIVE -> PAID_OFF.
func (s LoanStatus) CanTransitionTo(next LoanStatus) bool {
	if s == next {
		return true
	}
	return s == LoanStatusActive && next == LoanStatusPaidOff
}

type PaymentType string

const (
	PaymentTypeEMI     PaymentType = "EMI"
	PaymentTypeLumpSum PaymentType = "LUMP_SUM"
)

// ParsePaymentType validates a raw payment type string.
func ParsePaymentType(s string) (PaymentType, error) {
	switch PaymentType(s) {
	case PaymentTypeEMI, PaymentTypeLumpSum:
		return PaymentType(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPaymentType, s)
}

type Customer struct {
	ID        string    `json:"customer_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// LoanTerms are the fixed attributes a loan is reconciled against.
type LoanTerms struct {
	TotalAmount decimal.Decimal `json:"total_amount"`
	MonthlyEMI  decimal.Decimal `json:"monthly_emi"`
}

// Reconciliation is the amortization state derived from a loan's payment history.
type Reconciliation struct {
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	BalanceAmount decimal.Decimal `json:"balance_amount"`
	EMIsLeft      int64           `json:"emis_left"`
	Status        LoanStatus      `json:"status"`
}

// Equal reports whether two reconciliations describe the same state.
func (r Reconciliation) Equal(other Reconciliation) bool {
	return r.AmountPaid.Equal(other.AmountPaid) &&
		r.BalanceAmount.Equal(other.BalanceAmount) &&
		r.EMIsLeft == other.EMIsLeft &&
		r.Status == other.Status
}

type Loan struct {
	ID            string          `json:"loan_id"`
	CustomerID    string          `json:"customer_id"`
	Principal     decimal.Decimal `json:"principal_amount"`
	InterestRate  decimal.Decimal `json:"interest_rate"` // yearly, in percent
	PeriodYears   decimal.Decimal `json:"loan_period_years"`
	MonthlyEMI    decimal.Decimal `json:"monthly_emi"`  // fixed at creation
	TotalAmount   decimal.Decimal `json:"total_amount"` // fixed at creation
	Status        LoanStatus      `json:"status"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	BalanceAmount decimal.Decimal `json:"balance_amount"`
	EMIsLeft      int64           `json:"emis_left"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Terms returns the loan's fixed repayment terms.
func (l *Loan) Terms() LoanTerms {
	return LoanTerms{TotalAmount: l.TotalAmount, MonthlyEMI: l.MonthlyEMI}
}

// Derived returns the loan's currently stored derived state.
func (l *Loan) Derived() Reconciliation {
	return Reconciliation{
		AmountPaid:    l.AmountPaid,
		BalanceAmount: l.BalanceAmount,
		EMIsLeft:      l.EMIsLeft,
		Status:        l.Status,
	}
}

// Apply overwrites the derived fields with a reconciliation result. It is the
// only place a loan's status changes.
func (l *Loan) Apply(r Reconciliation, at time.Time) error {
	if !l.Status.CanTransitionTo(r.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, l.Status, r.Status)
	}
	l.AmountPaid = r.AmountPaid
	l.BalanceAmount = r.BalanceAmount
	l.EMIsLeft = r.EMIsLeft
	l.Status = r.Status
	l.UpdatedAt = at
	return nil
}

type Payment struct {
	ID          string          `json:"payment_id"`
	LoanID      string          `json:"loan_id"`
	Amount      decimal.Decimal `json:"amount"`
	Type        PaymentType     `json:"payment_type"`
	PaymentDate time.Time       `json:"payment_date"`
}
