package txlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// ErrDuplicate is returned when an (employee, date) record already exists.
var ErrDuplicate = errors.New("txlog: transaction already recorded")

const uniqueViolation = "23505"

// PostgresStore persists profiles and transactions in PostgreSQL. The schema
// is owned by the goose migrations in migrations/.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) PutProfiles(ctx context.Context, profiles []EmployeeProfile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin profile upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO employee_profiles
			(employee_id, department, job_level, salary_monthly, tenure_days, savings_balance, other_loans, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (employee_id) DO UPDATE SET
			department      = EXCLUDED.department,
			job_level       = EXCLUDED.job_level,
			salary_monthly  = EXCLUDED.salary_monthly,
			tenure_days     = EXCLUDED.tenure_days,
			savings_balance = EXCLUDED.savings_balance,
			other_loans     = EXCLUDED.other_loans,
			updated_at      = NOW()
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare profile upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("profile %s: %w", p.EmployeeID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			p.EmployeeID, p.Department, p.JobLevel, p.SalaryMonthly,
			p.TenureDays, p.SavingsBalance, p.OtherLoans,
		); err != nil {
			return fmt.Errorf("failed to upsert profile %s: %w", p.EmployeeID, err)
		}
	}
	return tx.Commit()
}

// AppendTransactions bulk-loads records with COPY inside one transaction.
// Existing (employee, date) pairs make the whole batch fail with ErrDuplicate.
func (s *PostgresStore) AppendTransactions(ctx context.Context, records []TransactionRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("transactions",
		"employee_id", "date", "deposit", "spend", "category",
		"balance", "ewa_used", "ewa_amount", "repayment",
	))
	if err != nil {
		return fmt.Errorf("failed to prepare copy: %w", err)
	}

	for _, r := range records {
		if err := r.Validate(); err != nil {
			_ = stmt.Close()
			return fmt.Errorf("transaction %s/%s: %w", r.EmployeeID, r.Date.Format(time.DateOnly), err)
		}
		if _, err := stmt.ExecContext(ctx,
			r.EmployeeID, Truncate(r.Date), r.Deposit, r.Spend, string(r.Category),
			r.Balance, r.EWAUsed, r.EWAAmount, r.Repayment,
		); err != nil {
			_ = stmt.Close()
			return fmt.Errorf("failed to buffer transaction: %w", err)
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return mapCopyError(err)
	}
	if err := stmt.Close(); err != nil {
		return mapCopyError(err)
	}
	return tx.Commit()
}

func mapCopyError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Detail)
	}
	return fmt.Errorf("failed to copy transactions: %w", err)
}

func (s *PostgresStore) Profile(ctx context.Context, employeeID string) (*EmployeeProfile, error) {
	var p EmployeeProfile
	err := s.db.QueryRowContext(ctx, `
		SELECT employee_id, department, job_level, salary_monthly, tenure_days, savings_balance, other_loans
		FROM employee_profiles
		WHERE employee_id = $1
	`, employeeID).Scan(&p.EmployeeID, &p.Department, &p.JobLevel, &p.SalaryMonthly,
		&p.TenureDays, &p.SavingsBalance, &p.OtherLoans)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) ListProfiles(ctx context.Context) ([]EmployeeProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, department, job_level, salary_monthly, tenure_days, savings_balance, other_loans
		FROM employee_profiles
		ORDER BY employee_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []EmployeeProfile
	for rows.Next() {
		var p EmployeeProfile
		if err := rows.Scan(&p.EmployeeID, &p.Department, &p.JobLevel, &p.SalaryMonthly,
			&p.TenureDays, &p.SavingsBalance, &p.OtherLoans); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) History(ctx context.Context, employeeID string) (History, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, date, deposit, spend, category, balance, ewa_used, ewa_amount, repayment
		FROM transactions
		WHERE employee_id = $1
		ORDER BY date
	`, employeeID)
	if err != nil {
		return History{}, fmt.Errorf("failed to load history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var recs []TransactionRecord
	for rows.Next() {
		var r TransactionRecord
		var category string
		if err := rows.Scan(&r.EmployeeID, &r.Date, &r.Deposit, &r.Spend, &category,
			&r.Balance, &r.EWAUsed, &r.EWAAmount, &r.Repayment); err != nil {
			return History{}, fmt.Errorf("failed to scan transaction: %w", err)
		}
		r.Category = Category(category)
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return History{}, fmt.Errorf("failed to iterate history: %w", err)
	}

	if len(recs) == 0 {
		if _, err := s.Profile(ctx, employeeID); err != nil {
			return History{}, err
		}
	}
	return NewHistory(employeeID, recs)
}
