package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// emiPlaces is the precision the monthly installment is rounded to (cents).
const emiPlaces = 2

var monthsInYear = decimal.NewFromInt(12)

// Terms are the repayment terms of a simple-interest loan.
type Terms struct {
	TotalInterest decimal.Decimal `json:"total_interest"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	MonthlyEMI    decimal.Decimal `json:"monthly_emi"`
}

// ComputeTerms derives the simple-interest terms of a loan:
//
//	interest = principal * years * rate / 100
//	total    = principal + interest
//	emi      = total / (years * 12)
//
// Interest and total are exact. The installment is rounded half-up to cents.
func ComputeTerms(principal, periodYears, yearlyRatePercent decimal.Decimal) (Terms, error) {
	if !principal.IsPositive() {
		return Terms{}, fmt.Errorf("%w: principal must be positive, got %s", ErrInvalidTerms, principal)
	}
	if !periodYears.IsPositive() {
		return Terms{}, fmt.Errorf("%w: period must be positive, got %s", ErrInvalidTerms, periodYears)
	}
	if yearlyRatePercent.IsNegative() {
		return Terms{}, fmt.Errorf("%w: interest rate must not be negative, got %s", ErrInvalidTerms, yearlyRatePercent)
	}

	totalInterest := principal.Mul(periodYears).Mul(yearlyRatePercent.Shift(-2))
	totalAmount := principal.Add(totalInterest)
	monthlyEMI := totalAmount.DivRound(periodYears.Mul(monthsInYear), emiPlaces)
	if !monthlyEMI.IsPositive() {
		return Terms{}, fmt.Errorf("%w: total %s over %s years", ErrInstallmentTooSmall, totalAmount, periodYears)
	}

	return Terms{
		TotalInterest: totalInterest,
		TotalAmount:   totalAmount,
		MonthlyEMI:    monthlyEMI,
	}, nil
}
