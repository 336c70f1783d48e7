package ledger

import (
	"fmt"

	"github.com/mcclellann/emiledger/pkg/models"
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// Reconcile derives a loan's amortization state from its terms and its complete
// payment history. The result depends only on the set of payment amounts, never
// on their order, and there is no partial result on error.
//
// Overpayment is clamped to a zero balance rather than rejected; rejecting it is
// the caller's job.
func Reconcile(terms models.LoanTerms, payments []*models.Payment) (models.Reconciliation, error) {
	if !terms.MonthlyEMI.IsPositive() {
		return models.Reconciliation{}, fmt.Errorf("%w: monthly installment must be positive, got %s", ErrInvalidLoanTerms, terms.MonthlyEMI)
	}
	if terms.TotalAmount.IsNegative() {
		return models.Reconciliation{}, fmt.Errorf("%w: total amount must not be negative, got %s", ErrInvalidLoanTerms, terms.TotalAmount)
	}

	paid := decimal.Zero
	for i, p := range payments {
		if p == nil {
			return models.Reconciliation{}, fmt.Errorf("%w: payment #%d is missing", ErrInvalidPayment, i)
		}
		if !p.Amount.IsPositive() {
			return models.Reconciliation{}, fmt.Errorf("%w: payment %s has non-positive amount %s", ErrInvalidPayment, p.ID, p.Amount)
		}
		paid = paid.Add(p.Amount)
	}

	raw := terms.TotalAmount.Sub(paid)
	balance := decimal.Max(decimal.Zero, raw)

	status := models.LoanStatusActive
	if balance.IsZero() {
		status = models.LoanStatusPaidOff
	}

	return models.Reconciliation{
		AmountPaid:    paid,
		BalanceAmount: balance,
		EMIsLeft:      installmentsLeft(raw, terms.MonthlyEMI),
		Status:        status,
	}, nil
}

// installmentsLeft is ceil(balance / emi) for a positive balance, else zero.
// Integer division with remainder keeps the ceiling exact.
func installmentsLeft(balance, emi decimal.Decimal) int64 {
	if !balance.IsPositive() {
		return 0
	}
	q, r := balance.QuoRem(emi, 0)
	if r.IsPositive() {
		q = q.Add(one)
	}
	return q.IntPart()
}
