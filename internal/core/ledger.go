package core

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/printdesk/printdesk/internal/db"
)

// Ledger owns billing account balances. Every mutation is a single
// conditional UPDATE, so two concurrent operations against the same account
// can never both act on a stale balance: the precondition is re-checked by
// the database at write time and the loser affects zero rows.
type Ledger struct {
	db *sql.DB
}

func NewLedger(database *sql.DB) *Ledger {
	return &Ledger{db: database}
}

// dbtx is the slice of database/sql shared by *sql.DB and *sql.Tx, letting
// ledger operations run standalone or inside a caller's transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// CreateAccount opens a zero-balance account for username.
func (l *Ledger) CreateAccount(ctx context.Context, username string) error {
	_, err := l.db.ExecContext(ctx, db.InsertBilling, username, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to create billing account: %w", err)
	}
	return nil
}

// Account returns the current state of username's billing account.
func (l *Ledger) Account(ctx context.Context, username string) (*db.BillingAccount, error) {
	return accountIn(ctx, l.db, username)
}

func accountIn(ctx context.Context, q dbtx, username string) (*db.BillingAccount, error) {
	a := &db.BillingAccount{}
	err := q.QueryRowContext(ctx, db.GetBillingByUsername, username).Scan(
		&a.Username, &a.CurrentBalance, &a.LockedBalance,
		&a.TotalSpent, &a.TotalPrints, &a.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get billing account: %w", err)
	}
	return a, nil
}

// Reserve moves amount from the spendable balance to the locked balance.
// Returns ErrInsufficientFunds when the spendable balance cannot cover it.
func (l *Ledger) Reserve(ctx context.Context, username string, amount int64) error {
	return l.inTx(ctx, func(tx *sql.Tx) error {
		return l.ReserveTx(ctx, tx, username, amount)
	})
}

// ReserveTx is Reserve running inside the caller's transaction.
func (l *Ledger) ReserveTx(ctx context.Context, tx *sql.Tx, username string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	result, err := tx.ExecContext(ctx, db.ReserveBalance, amount, amount, username, amount)
	if err != nil {
		return fmt.Errorf("failed to reserve balance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		// Either the account does not exist or it cannot afford the
		// reservation; the caller gets to know which.
		if _, err := accountIn(ctx, tx, username); err != nil {
			return err
		}
		return ErrInsufficientFunds
	}
	return nil
}

// Release reverses a reservation on the cancellation path. The amount must
// come from the cancelled entry's bill; releasing more than is locked is an
// integrity violation, never a user error.
func (l *Ledger) Release(ctx context.Context, username string, amount int64) error {
	return l.inTx(ctx, func(tx *sql.Tx) error {
		return l.ReleaseTx(ctx, tx, username, amount)
	})
}

// ReleaseTx is Release running inside the caller's transaction.
func (l *Ledger) ReleaseTx(ctx context.Context, tx *sql.Tx, username string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	result, err := tx.ExecContext(ctx, db.ReleaseBalance, amount, amount, username, amount)
	if err != nil {
		return fmt.Errorf("failed to release balance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: release of %d exceeds locked balance for %s", ErrLedgerIntegrity, amount, username)
	}
	return nil
}

// Settle converts a reservation into a permanent expenditure on the print
// success path, bumping total_spent and total_prints.
func (l *Ledger) Settle(ctx context.Context, username string, amount int64) error {
	return l.inTx(ctx, func(tx *sql.Tx) error {
		return l.SettleTx(ctx, tx, username, amount)
	})
}

// SettleTx is Settle running inside the caller's transaction.
func (l *Ledger) SettleTx(ctx context.Context, tx *sql.Tx, username string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	result, err := tx.ExecContext(ctx, db.SettleBalance, amount, amount, username, amount)
	if err != nil {
		return fmt.Errorf("failed to settle balance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: settlement of %d exceeds locked balance for %s", ErrLedgerIntegrity, amount, username)
	}
	return nil
}

// Credit adds amount to the spendable balance (operator top-up).
func (l *Ledger) Credit(ctx context.Context, username string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	result, err := l.db.ExecContext(ctx, db.CreditBalance, amount, username)
	if err != nil {
		return fmt.Errorf("failed to credit balance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (l *Ledger) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
