package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/mcclellann/emiledger/pkg/models"
	"github.com/mcclellann/emiledger/pkg/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockStore is a simple in-memory implementation of the Storage interface for testing.
type MockStore struct {
	mu        sync.Mutex
	customers map[string]*models.Customer
	loans     map[string]*models.Loan
	payments  []*models.Payment

	// afterListPayments runs with the store locked once a loan's history has been read.
	afterListPayments func(loanID string)
}

func NewMockStore() *MockStore {
	return &MockStore{
		customers: make(map[string]*models.Customer),
		loans:     make(map[string]*models.Loan),
	}
}

func (m *MockStore) CreateCustomer(_ context.Context, c *models.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.customers[c.ID] = &cp
	return nil
}

func (m *MockStore) GetCustomer(_ context.Context, id string) (*models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MockStore) ListCustomers(_ context.Context) ([]*models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	customers := []*models.Customer{}
	for _, c := range m.customers {
		cp := *c
		customers = append(customers, &cp)
	}
	return customers, nil
}

func (m *MockStore) CreateLoan(_ context.Context, loan *models.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *loan
	m.loans[loan.ID] = &cp
	return nil
}

func (m *MockStore) GetLoan(_ context.Context, id string) (*models.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	loan, ok := m.loans[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *loan
	return &cp, nil
}

func (m *MockStore) ListLoans(_ context.Context, filter store.LoanFilter) ([]*models.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	loans := []*models.Loan{}
	for _, l := range m.loans {
		if filter.CustomerID != "" && l.CustomerID != filter.CustomerID {
			continue
		}
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		cp := *l
		loans = append(loans, &cp)
	}
	sort.Slice(loans, func(i, j int) bool { return loans[i].ID < loans[j].ID })
	return loans, nil
}

func (m *MockStore) applyLocked(u store.LoanUpdate) error {
	loan, ok := m.loans[u.LoanID]
	if !ok {
		return store.ErrNotFound
	}
	if !loan.AmountPaid.Equal(u.ExpectedAmountPaid) {
		return store.ErrStale
	}
	loan.AmountPaid = u.State.AmountPaid
	loan.BalanceAmount = u.State.BalanceAmount
	loan.EMIsLeft = u.State.EMIsLeft
	loan.Status = u.State.Status
	loan.UpdatedAt = u.UpdatedAt
	return nil
}

func (m *MockStore) UpdateLoanDerived(_ context.Context, u store.LoanUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyLocked(u)
}

func (m *MockStore) AppendPayment(_ context.Context, p *models.Payment, u store.LoanUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.applyLocked(u); err != nil {
		return err
	}
	cp := *p
	m.payments = append(m.payments, &cp)
	return nil
}

func (m *MockStore) ListPaymentsForLoan(_ context.Context, loanID string) ([]*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ps := []*models.Payment{}
	for _, p := range m.payments {
		if p.LoanID == loanID {
			cp := *p
			ps = append(ps, &cp)
		}
	}
	if m.afterListPayments != nil {
		m.afterListPayments(loanID)
	}
	return ps, nil
}

func (m *MockStore) Close() error {
	return nil
}

func newTestLedger(t *testing.T) (*Ledger, *MockStore, *models.Customer) {
	t.Helper()
	s := NewMockStore()
	l := NewLedger(s)
	c, err := l.CreateCustomer(context.Background(), "Ravi Kumar", "ravi@example.com", "", "")
	require.NoError(t, err)
	return l, s, c
}

func TestCreateCustomer(t *testing.T) {
	l, s, c := newTestLedger(t)

	assert.Contains(t, c.ID, "CUST_")
	assert.Equal(t, "Ravi Kumar", c.Name)
	assert.Len(t, s.customers, 1)

	_, err := l.CreateCustomer(context.Background(), "   ", "", "", "")
	assert.True(t, errors.Is(err, ErrInvalidCustomer))
}

func TestCreateLoan(t *testing.T) {
	l, s, c := newTestLedger(t)
	ctx := context.Background()

	loan, err := l.CreateLoan(ctx, c.ID, d("500000"), d("3"), d("10"))
	require.NoError(t, err)

	assert.Contains(t, loan.ID, "LOAN_")
	assert.True(t, loan.TotalAmount.Equal(d("650000")))
	assert.True(t, loan.MonthlyEMI.Equal(d("18055.56")))
	assert.True(t, loan.AmountPaid.IsZero())
	assert.True(t, loan.BalanceAmount.Equal(d("650000")))
	assert.Equal(t, int64(36), loan.EMIsLeft)
	assert.Equal(t, models.LoanStatusActive, loan.Status)

	stored, ok := s.loans[loan.ID]
	require.True(t, ok)
	assert.True(t, stored.TotalAmount.Equal(loan.TotalAmount))
}

func TestCreateLoan_Rejections(t *testing.T) {
	l, s, c := newTestLedger(t)
	ctx := context.Background()

	_, err := l.CreateLoan(ctx, "CUST_missing", d("1000"), d("1"), d("10"))
	assert.True(t, errors.Is(err, ErrCustomerNotFound))

	_, err = l.CreateLoan(ctx, c.ID, d("-1"), d("3"), d("10"))
	assert.True(t, errors.Is(err, ErrInvalidTerms))

	assert.Empty(t, s.loans)
}

func TestRecordPayment(t *testing.T) {
	l, s, c := newTestLedger(t)
	ctx := context.Background()
	loan, err := l.CreateLoan(ctx, c.ID, d("500000"), d("3"), d("10"))
	require.NoError(t, err)

	for _, amount := range []string{"18055.56", "18055.56"} {
		_, err := l.RecordPayment(ctx, loan.ID, d(amount), models.PaymentTypeEMI)
		require.NoError(t, err)
	}
	receipt, err := l.RecordPayment(ctx, loan.ID, d("36111.12"), models.PaymentTypeLumpSum)
	require.NoError(t, err)

	assert.Contains(t, receipt.Payment.ID, "PAY_")
	assert.Equal(t, models.PaymentTypeLumpSum, receipt.Payment.Type)
	assert.True(t, receipt.Loan.AmountPaid.Equal(d("72222.24")))
	assert.True(t, receipt.Loan.BalanceAmount.Equal(d("577777.76")))
	assert.Equal(t, int64(32), receipt.Loan.EMIsLeft)
	assert.Equal(t, models.LoanStatusActive, receipt.Loan.Status)

	stored := s.loans[loan.ID]
	assert.True(t, stored.AmountPaid.Equal(d("72222.24")))
	assert.Len(t, s.payments, 3)
}

func TestRecordPayment_PaysOff(t *testing.T) {
	l, s, c := newTestLedger(t)
	ctx := context.Background()
	loan, err := l.CreateLoan(ctx, c.ID, d("500000"), d("3"), d("10"))
	require.NoError(t, err)

	_, err = l.RecordPayment(ctx, loan.ID, d("400000"), models.PaymentTypeLumpSum)
	require.NoError(t, err)
	receipt, err := l.RecordPayment(ctx, loan.ID, d("250000"), models.PaymentTypeLumpSum)
	require.NoError(t, err)

	assert.Equal(t, models.LoanStatusPaidOff, receipt.Loan.Status)
	assert.True(t, receipt.Loan.BalanceAmount.IsZero())
	assert.Equal(t, int64(0), receipt.Loan.EMIsLeft)

	// Terminal: no further payments are accepted.
	_, err = l.RecordPayment(ctx, loan.ID, d("1"), models.PaymentTypeEMI)
	assert.True(t, errors.Is(err, ErrLoanPaidOff))
	assert.Len(t, s.payments, 2)
}

func TestRecordPayment_Rejections(t *testing.T) {
	l, s, c := newTestLedger(t)
	ctx := context.Background()
	loan, err := l.CreateLoan(ctx, c.ID, d("1000"), d("1"), d("0"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		loanID  string
		amount  string
		typ     models.PaymentType
		wantErr error
	}{
		{"zero amount", loan.ID, "0", models.PaymentTypeEMI, ErrInvalidPayment},
		{"negative amount", loan.ID, "-10", models.PaymentTypeEMI, ErrInvalidPayment},
		{"unknown type", loan.ID, "10", models.PaymentType("CHEQUE"), ErrInvalidPaymentType},
		{"overpayment", loan.ID, "1000.01", models.PaymentTypeLumpSum, ErrOverpaymentRejected},
		{"unknown loan", "LOAN_missing", "10", models.PaymentTypeEMI, ErrLoanNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.RecordPayment(ctx, tt.loanID, d(tt.amount), tt.typ)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}

	assert.Empty(t, s.payments)
	assert.True(t, s.loans[loan.ID].AmountPaid.IsZero())
}

func TestRecordPayment_StaleUpdate(t *testing.T) {
	l, s, c := newTestLedger(t)
	ctx := context.Background()
	loan, err := l.CreateLoan(ctx, c.ID, d("1000"), d("1"), d("0"))
	require.NoError(t, err)

	// Another writer moves amount_paid after the ledger has read the loan.
	s.afterListPayments = func(loanID string) {
		s.loans[loanID].AmountPaid = d("5")
	}

	_, err = l.RecordPayment(ctx, loan.ID, d("10"), models.PaymentTypeEMI)
	assert.True(t, errors.Is(err, ErrConcurrentUpdate), "got %v", err)
	assert.Empty(t, s.payments)
	assert.True(t, s.loans[loan.ID].AmountPaid.Equal(d("5")))
}

func TestRecordPayment_ConcurrentSameLoan(t *testing.T) {
	l, s, c := newTestLedger(t)
	ctx := context.Background()
	loan, err := l.CreateLoan(ctx, c.ID, d("500000"), d("3"), d("10"))
	require.NoError(t, err)

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.RecordPayment(ctx, loan.ID, d("1000"), models.PaymentTypeEMI); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("payment failed: %v", err)
	}

	stored := s.loans[loan.ID]
	assert.True(t, stored.AmountPaid.Equal(d("20000")), "amount paid %s", stored.AmountPaid)
	assert.True(t, stored.BalanceAmount.Equal(d("630000")))
	assert.Len(t, s.payments, workers)
}

func TestSuggestEMI(t *testing.T) {
	l, _, c := newTestLedger(t)
	ctx := context.Background()
	loan, err := l.CreateLoan(ctx, c.ID, d("1200"), d("1"), d("0"))
	require.NoError(t, err)

	amount, err := l.SuggestEMI(ctx, loan.ID)
	require.NoError(t, err)
	assert.True(t, amount.Equal(d("100")))

	_, err = l.RecordPayment(ctx, loan.ID, d("1150"), models.PaymentTypeLumpSum)
	require.NoError(t, err)

	amount, err = l.SuggestEMI(ctx, loan.ID)
	require.NoError(t, err)
	assert.True(t, amount.Equal(d("50")), "suggestion capped at balance, got %s", amount)
}

func TestListLoansByCustomer(t *testing.T) {
	l, _, c := newTestLedger(t)
	ctx := context.Background()
	other, err := l.CreateCustomer(ctx, "Meera", "", "", "")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := l.CreateLoan(ctx, c.ID, d("1000"), d("1"), d("5"))
		require.NoError(t, err)
	}
	_, err = l.CreateLoan(ctx, other.ID, d("1000"), d("1"), d("5"))
	require.NoError(t, err)

	loans, err := l.ListLoansByCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, loans, 2)

	_, err = l.ListLoansByCustomer(ctx, "CUST_missing")
	assert.True(t, errors.Is(err, ErrCustomerNotFound))
}

func TestReconcileAll_RepairsDrift(t *testing.T) {
	l, s, c := newTestLedger(t)
	ctx := context.Background()

	healthy, err := l.CreateLoan(ctx, c.ID, d("1200"), d("1"), d("0"))
	require.NoError(t, err)
	_, err = l.RecordPayment(ctx, healthy.ID, d("100"), models.PaymentTypeEMI)
	require.NoError(t, err)

	drifted, err := l.CreateLoan(ctx, c.ID, d("1200"), d("1"), d("0"))
	require.NoError(t, err)
	_, err = l.RecordPayment(ctx, drifted.ID, d("1100"), models.PaymentTypeLumpSum)
	require.NoError(t, err)
	// The history is the source of truth; corrupt the stored summary.
	s.payments = append(s.payments, &models.Payment{ID: "PAY_imported", LoanID: drifted.ID, Amount: d("100"), Type: models.PaymentTypeEMI})

	report, err := l.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Checked: 2, Repaired: 1, Failed: 0}, report)

	fixed := s.loans[drifted.ID]
	assert.True(t, fixed.AmountPaid.Equal(d("1200")))
	assert.Equal(t, models.LoanStatusPaidOff, fixed.Status)

	// A second pass finds nothing to do.
	report, err = l.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Checked: 1, Repaired: 0, Failed: 0}, report)
}

func TestReconcileAll_CountsFailures(t *testing.T) {
	l, s, c := newTestLedger(t)
	ctx := context.Background()
	loan, err := l.CreateLoan(ctx, c.ID, d("1200"), d("1"), d("0"))
	require.NoError(t, err)

	s.loans[loan.ID].MonthlyEMI = decimal.Zero

	report, err := l.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed, fmt.Sprintf("%+v", report))
}
