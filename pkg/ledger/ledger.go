package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mcclellann/emiledger/pkg/ids"
	"github.com/mcclellann/emiledger/pkg/models"
	"github.com/mcclellann/emiledger/pkg/store"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Ledger handles the business logic for customers, loans and payments. It owns
// every write of a loan's derived fields and serializes them per loan.
type Ledger struct {
	storage store.Storage
	locks   *loanLocks
	now     func() time.Time
}

// NewLedger creates a new Ledger with a given Storage implementation.
func NewLedger(s store.Storage) *Ledger {
	return &Ledger{
		storage: s,
		locks:   newLoanLocks(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Receipt is the outcome of a recorded payment.
type Receipt struct {
	Payment *models.Payment `json:"payment"`
	Loan    *models.Loan    `json:"loan"`
}

// ReconcileReport summarizes a ReconcileAll run.
type ReconcileReport struct {
	Checked  int `json:"checked"`
	Repaired int `json:"repaired"`
	Failed   int `json:"failed"`
}

// CreateCustomer registers a new customer.
func (l *Ledger) CreateCustomer(ctx context.Context, name, email, phone, address string) (*models.Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidCustomer)
	}

	customer := &models.Customer{
		ID:        ids.NewCustomerID(),
		Name:      name,
		Email:     strings.TrimSpace(email),
		Phone:     strings.TrimSpace(phone),
		Address:   strings.TrimSpace(address),
		CreatedAt: l.now(),
	}
	if err := l.storage.CreateCustomer(ctx, customer); err != nil {
		return nil, fmt.Errorf("failed to store customer: %w", err)
	}

	log.Info().Str("customer_id", customer.ID).Msg("customer created")
	return customer, nil
}

// GetCustomer retrieves a customer by its ID.
func (l *Ledger) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	c, err := l.storage.GetCustomer(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCustomerNotFound, id)
		}
		return nil, err
	}
	return c, nil
}

// ListCustomers returns all customers, newest first.
func (l *Ledger) ListCustomers(ctx context.Context) ([]*models.Customer, error) {
	return l.storage.ListCustomers(ctx)
}

// QuoteTerms previews the terms a loan would be created with.
func (l *Ledger) QuoteTerms(principal, periodYears, yearlyRatePercent decimal.Decimal) (Terms, error) {
	return ComputeTerms(principal, periodYears, yearlyRatePercent)
}

// CreateLoan issues a new loan to an existing customer. The initial derived
// state is the reconciliation of an empty payment history.
func (l *Ledger) CreateLoan(ctx context.Context, customerID string, principal, periodYears, yearlyRatePercent decimal.Decimal) (*models.Loan, error) {
	if _, err := l.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}

	terms, err := ComputeTerms(principal, periodYears, yearlyRatePercent)
	if err != nil {
		return nil, err
	}

	now := l.now()
	loan := &models.Loan{
		ID:           ids.NewLoanID(),
		CustomerID:   customerID,
		Principal:    principal,
		InterestRate: yearlyRatePercent,
		PeriodYears:  periodYears,
		MonthlyEMI:   terms.MonthlyEMI,
		TotalAmount:  terms.TotalAmount,
		Status:       models.LoanStatusActive,
		CreatedAt:    now,
	}

	initial, err := Reconcile(loan.Terms(), nil)
	if err != nil {
		return nil, err
	}
	if err := loan.Apply(initial, now); err != nil {
		return nil, err
	}

	if err := l.storage.CreateLoan(ctx, loan); err != nil {
		return nil, fmt.Errorf("failed to store loan: %w", err)
	}

	log.Info().
		Str("loan_id", loan.ID).
		Str("customer_id", customerID).
		Str("total_amount", loan.TotalAmount.StringFixed(2)).
		Str("monthly_emi", loan.MonthlyEMI.StringFixed(2)).
		Msg("loan created")
	return loan, nil
}

// GetLoan retrieves a loan by its ID.
func (l *Ledger) GetLoan(ctx context.Context, id string) (*models.Loan, error) {
	loan, err := l.storage.GetLoan(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrLoanNotFound, id)
		}
		return nil, err
	}
	return loan, nil
}

// ListLoans returns loans, newest first. An empty status matches all loans.
func (l *Ledger) ListLoans(ctx context.Context, status models.LoanStatus) ([]*models.Loan, error) {
	return l.storage.ListLoans(ctx, store.LoanFilter{Status: status})
}

// ListLoansByCustomer returns a customer's loans, newest first.
func (l *Ledger) ListLoansByCustomer(ctx context.Context, customerID string) ([]*models.Loan, error) {
	if _, err := l.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	return l.storage.ListLoans(ctx, store.LoanFilter{CustomerID: customerID})
}

// ListPayments returns a loan's payment history, newest first.
func (l *Ledger) ListPayments(ctx context.Context, loanID string) ([]*models.Payment, error) {
	if _, err := l.GetLoan(ctx, loanID); err != nil {
		return nil, err
	}
	return l.storage.ListPaymentsForLoan(ctx, loanID)
}

// SuggestEMI returns the amount a regular installment payment should be: the
// monthly EMI, or the remaining balance when that is smaller.
func (l *Ledger) SuggestEMI(ctx context.Context, loanID string) (decimal.Decimal, error) {
	loan, err := l.GetLoan(ctx, loanID)
	if err != nil {
		return decimal.Zero, err
	}
	if loan.Status == models.LoanStatusPaidOff {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrLoanPaidOff, loanID)
	}
	return decimal.Min(loan.MonthlyEMI, loan.BalanceAmount), nil
}

// RecordPayment applies a payment to an active loan. The loan's derived state is
// recomputed from its full payment history, and the payment and new state are
// persisted together.
func (l *Ledger) RecordPayment(ctx context.Context, loanID string, amount decimal.Decimal, paymentType models.PaymentType) (*Receipt, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidPayment, amount)
	}
	if _, err := models.ParsePaymentType(string(paymentType)); err != nil {
		return nil, err
	}

	unlock := l.locks.lock(loanID)
	defer unlock()

	loan, err := l.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status == models.LoanStatusPaidOff {
		return nil, fmt.Errorf("%w: %s", ErrLoanPaidOff, loanID)
	}

	history, err := l.storage.ListPaymentsForLoan(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment history: %w", err)
	}

	current, err := Reconcile(loan.Terms(), history)
	if err != nil {
		return nil, err
	}
	if current.Status == models.LoanStatusPaidOff {
		return nil, fmt.Errorf("%w: %s", ErrLoanPaidOff, loanID)
	}
	if amount.GreaterThan(current.BalanceAmount) {
		return nil, fmt.Errorf("%w: amount %s, balance %s", ErrOverpaymentRejected, amount, current.BalanceAmount)
	}

	now := l.now()
	payment := &models.Payment{
		ID:          ids.NewPaymentID(),
		LoanID:      loanID,
		Amount:      amount,
		Type:        paymentType,
		PaymentDate: now,
	}

	next, err := Reconcile(loan.Terms(), append(history, payment))
	if err != nil {
		return nil, err
	}

	expected := loan.AmountPaid
	if err := loan.Apply(next, now); err != nil {
		return nil, err
	}

	update := store.LoanUpdate{LoanID: loanID, ExpectedAmountPaid: expected, State: next, UpdatedAt: now}
	if err := l.storage.AppendPayment(ctx, payment, update); err != nil {
		if errors.Is(err, store.ErrStale) {
			return nil, fmt.Errorf("%w: %s", ErrConcurrentUpdate, loanID)
		}
		return nil, fmt.Errorf("failed to store payment: %w", err)
	}

	log.Info().
		Str("loan_id", loanID).
		Str("payment_id", payment.ID).
		Str("amount", amount.StringFixed(2)).
		Str("balance", loan.BalanceAmount.StringFixed(2)).
		Int64("emis_left", loan.EMIsLeft).
		Msg("payment recorded")
	if loan.Status == models.LoanStatusPaidOff {
		log.Info().Str("loan_id", loanID).Msg("loan paid off")
	}

	return &Receipt{Payment: payment, Loan: loan}, nil
}

// ReconcileAll re-derives every active loan from its payment history and
// repairs any stored state that has drifted. Failures are logged and counted,
// and do not stop the run.
func (l *Ledger) ReconcileAll(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	loans, err := l.storage.ListLoans(ctx, store.LoanFilter{Status: models.LoanStatusActive})
	if err != nil {
		return report, fmt.Errorf("failed to list active loans: %w", err)
	}

	for _, loan := range loans {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++

		repaired, err := l.reconcileLoan(ctx, loan.ID)
		if err != nil {
			report.Failed++
			log.Error().Err(err).Str("loan_id", loan.ID).Msg("reconciliation failed")
			continue
		}
		if repaired {
			report.Repaired++
		}
	}

	return report, nil
}

func (l *Ledger) reconcileLoan(ctx context.Context, loanID string) (bool, error) {
	unlock := l.locks.lock(loanID)
	defer unlock()

	loan, err := l.GetLoan(ctx, loanID)
	if err != nil {
		return false, err
	}
	history, err := l.storage.ListPaymentsForLoan(ctx, loanID)
	if err != nil {
		return false, fmt.Errorf("failed to load payment history: %w", err)
	}
	state, err := Reconcile(loan.Terms(), history)
	if err != nil {
		return false, err
	}
	if state.Equal(loan.Derived()) {
		return false, nil
	}

	stored := loan.Derived()
	now := l.now()
	if err := loan.Apply(state, now); err != nil {
		return false, err
	}
	update := store.LoanUpdate{LoanID: loanID, ExpectedAmountPaid: stored.AmountPaid, State: state, UpdatedAt: now}
	if err := l.storage.UpdateLoanDerived(ctx, update); err != nil {
		if errors.Is(err, store.ErrStale) {
			return false, fmt.Errorf("%w: %s", ErrConcurrentUpdate, loanID)
		}
		return false, fmt.Errorf("failed to update loan: %w", err)
	}

	log.Warn().
		Str("loan_id", loanID).
		Str("stored_amount_paid", stored.AmountPaid.String()).
		Str("amount_paid", state.AmountPaid.String()).
		Str("status", string(state.Status)).
		Msg("repaired drifted loan state")
	return true, nil
}
