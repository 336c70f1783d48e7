package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/mcclellann/emiledger/pkg/models"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and initializes the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	// A single connection serializes writers; SQLite allows only one at a time anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	log.Debug().Str("path", path).Msg("database connection established and schema initialized")
	return s, nil
}

// initSchema creates the tables if they don't already exist.
// Monetary columns are TEXT so no decimal precision is lost.
func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS customers (
		customer_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		address TEXT,
		created_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS loans (
		loan_id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		principal_amount TEXT NOT NULL,
		interest_rate TEXT NOT NULL,
		loan_period_years TEXT NOT NULL,
		monthly_emi TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		status TEXT NOT NULL,
		amount_paid TEXT NOT NULL DEFAULT '0',
		balance_amount TEXT NOT NULL,
		emis_left INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY(customer_id) REFERENCES customers(customer_id)
	);
	CREATE INDEX IF NOT EXISTS idx_loans_customer ON loans(customer_id);
	CREATE TABLE IF NOT EXISTS payments (
		payment_id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		payment_type TEXT NOT NULL,
		payment_date DATETIME NOT NULL,
		FOREIGN KEY(loan_id) REFERENCES loans(loan_id)
	);
	CREATE INDEX IF NOT EXISTS idx_payments_loan ON payments(loan_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// CreateCustomer inserts a new customer.
func (s *SQLiteStore) CreateCustomer(ctx context.Context, c *models.Customer) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO customers (customer_id, name, email, phone, address, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, nullString(c.Email), nullString(c.Phone), nullString(c.Address), c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}
	return nil
}

const customerColumns = `customer_id, name, email, phone, address, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (*models.Customer, error) {
	var c models.Customer
	var email, phone, address sql.NullString
	if err := row.Scan(&c.ID, &c.Name, &email, &phone, &address, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Email, c.Phone, c.Address = email.String, phone.String, address.String
	return &c, nil
}

// GetCustomer retrieves a customer by its ID.
func (s *SQLiteStore) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE customer_id = ?`, id)
	c, err := scanCustomer(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("customer %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return c, nil
}

// ListCustomers returns all customers, newest first.
func (s *SQLiteStore) ListCustomers(ctx context.Context) ([]*models.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY created_at DESC, customer_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	var customers []*models.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer row: %w", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return customers, nil
}

const loanColumns = `loan_id, customer_id, principal_amount, interest_rate, loan_period_years, monthly_emi, total_amount, status, amount_paid, balance_amount, emis_left, created_at, updated_at`

func scanLoan(row rowScanner) (*models.Loan, error) {
	var l models.Loan
	err := row.Scan(&l.ID, &l.CustomerID, &l.Principal, &l.InterestRate, &l.PeriodYears, &l.MonthlyEMI, &l.TotalAmount,
		&l.Status, &l.AmountPaid, &l.BalanceAmount, &l.EMIsLeft, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// CreateLoan inserts a new loan.
func (s *SQLiteStore) CreateLoan(ctx context.Context, l *models.Loan) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO loans (`+loanColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.CustomerID, l.Principal, l.InterestRate, l.PeriodYears, l.MonthlyEMI, l.TotalAmount,
		l.Status, l.AmountPaid, l.BalanceAmount, l.EMIsLeft, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

// GetLoan retrieves a loan by its ID.
func (s *SQLiteStore) GetLoan(ctx context.Context, id string) (*models.Loan, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE loan_id = ?`, id)
	l, err := scanLoan(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("loan %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return l, nil
}

// ListLoans returns loans matching filter, newest first.
func (s *SQLiteStore) ListLoans(ctx context.Context, filter LoanFilter) ([]*models.Loan, error) {
	var where []string
	var args []any
	if filter.CustomerID != "" {
		where = append(where, "customer_id = ?")
		args = append(args, filter.CustomerID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := `SELECT ` + loanColumns + ` FROM loans`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, loan_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	defer rows.Close()

	var loans []*models.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan row: %w", err)
		}
		loans = append(loans, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return loans, nil
}

// UpdateLoanDerived applies update if the loan's amount_paid still matches.
func (s *SQLiteStore) UpdateLoanDerived(ctx context.Context, update LoanUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := updateDerived(ctx, tx, update); err != nil {
		return err
	}
	return tx.Commit()
}

// AppendPayment inserts the payment and updates the loan's derived fields in one transaction.
func (s *SQLiteStore) AppendPayment(ctx context.Context, p *models.Payment, update LoanUpdate) error {
	if p.LoanID != update.LoanID {
		return fmt.Errorf("payment loan %s does not match update loan %s", p.LoanID, update.LoanID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := updateDerived(ctx, tx, update); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO payments (payment_id, loan_id, amount, payment_type, payment_date) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.LoanID, p.Amount, p.Type, p.PaymentDate,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return tx.Commit()
}

func updateDerived(ctx context.Context, tx *sql.Tx, u LoanUpdate) error {
	var current decimal.Decimal
	err := tx.QueryRowContext(ctx, `SELECT amount_paid FROM loans WHERE loan_id = ?`, u.LoanID).Scan(&current)
	if err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("loan %s: %w", u.LoanID, ErrNotFound)
		}
		return fmt.Errorf("failed to read loan: %w", err)
	}
	if !current.Equal(u.ExpectedAmountPaid) {
		return fmt.Errorf("loan %s amount paid is %s, expected %s: %w", u.LoanID, current, u.ExpectedAmountPaid, ErrStale)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE loans SET amount_paid = ?, balance_amount = ?, emis_left = ?, status = ?, updated_at = ? WHERE loan_id = ?`,
		u.State.AmountPaid, u.State.BalanceAmount, u.State.EMIsLeft, u.State.Status, u.UpdatedAt, u.LoanID,
	)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	return nil
}

// ListPaymentsForLoan returns every payment recorded against a loan, newest first.
func (s *SQLiteStore) ListPaymentsForLoan(ctx context.Context, loanID string) ([]*models.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payment_id, loan_id, amount, payment_type, payment_date FROM payments WHERE loan_id = ? ORDER BY payment_date DESC, payment_id`,
		loanID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments for loan %s: %w", loanID, err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.LoanID, &p.Amount, &p.Type, &p.PaymentDate); err != nil {
			return nil, fmt.Errorf("failed to scan payment row: %w", err)
		}
		payments = append(payments, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration for loan payments: %w", err)
	}
	return payments, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
