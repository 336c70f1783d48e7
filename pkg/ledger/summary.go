package ledger

import (
	"context"
	"fmt"

	"github.com/mcclellann/emiledger/pkg/models"
	"github.com/mcclellann/emiledger/pkg/store"
	"github.com/shopspring/decimal"
)

// progressPlaces is the precision of PaymentProgress.
const progressPlaces = 2

var hundred = decimal.NewFromInt(100)

// LoanTotals are the sums over a set of loans.
type LoanTotals struct {
	TotalLoans     int             `json:"total_loans"`
	ActiveLoans    int             `json:"active_loans"`
	TotalPrincipal decimal.Decimal `json:"total_principal"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	TotalPaid      decimal.Decimal `json:"total_paid"`
	TotalBalance   decimal.Decimal `json:"total_balance"`
	// PaymentProgress is TotalPaid as a percentage of TotalAmount, 0 when there is nothing owed.
	PaymentProgress decimal.Decimal `json:"payment_progress"`
}

// CustomerSummary aggregates one customer's loans.
type CustomerSummary struct {
	CustomerID string `json:"customer_id"`
	LoanTotals
}

// PortfolioSummary aggregates every loan in the ledger.
type PortfolioSummary struct {
	Customers int `json:"customers"`
	LoanTotals
}

func sumLoans(loans []*models.Loan) LoanTotals {
	t := LoanTotals{
		TotalPrincipal:  decimal.Zero,
		TotalAmount:     decimal.Zero,
		TotalPaid:       decimal.Zero,
		TotalBalance:    decimal.Zero,
		PaymentProgress: decimal.Zero,
	}
	for _, loan := range loans {
		t.TotalLoans++
		if loan.Status == models.LoanStatusActive {
			t.ActiveLoans++
		}
		t.TotalPrincipal = t.TotalPrincipal.Add(loan.Principal)
		t.TotalAmount = t.TotalAmount.Add(loan.TotalAmount)
		t.TotalPaid = t.TotalPaid.Add(loan.AmountPaid)
		t.TotalBalance = t.TotalBalance.Add(loan.BalanceAmount)
	}
	if t.TotalAmount.IsPositive() {
		t.PaymentProgress = t.TotalPaid.Mul(hundred).DivRound(t.TotalAmount, progressPlaces)
	}
	return t
}

// CustomerSummary totals a customer's loans.
func (l *Ledger) CustomerSummary(ctx context.Context, customerID string) (*CustomerSummary, error) {
	loans, err := l.ListLoansByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return &CustomerSummary{CustomerID: customerID, LoanTotals: sumLoans(loans)}, nil
}

// PortfolioSummary totals every loan and counts customers.
func (l *Ledger) PortfolioSummary(ctx context.Context) (*PortfolioSummary, error) {
	customers, err := l.storage.ListCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	loans, err := l.storage.ListLoans(ctx, store.LoanFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	return &PortfolioSummary{Customers: len(customers), LoanTotals: sumLoans(loans)}, nil
}
