package core

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/printdesk/printdesk/internal/db"
)

const unitCostParam = "PRINT_COST"

// Queue owns the lifecycle of pending print jobs. An entry is never created
// without a matching reservation and never destroyed without the matching
// release or settlement in the same transaction.
type Queue struct {
	db     *sql.DB
	ledger *Ledger
}

func NewQueue(database *sql.DB, ledger *Ledger) *Queue {
	return &Queue{db: database, ledger: ledger}
}

// UnitCost returns the configured credits-per-page price.
func (q *Queue) UnitCost(ctx context.Context) (int64, error) {
	var value string
	err := q.db.QueryRowContext(ctx, db.GetParam, unitCostParam).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("failed to get unit cost: %w", err)
	}
	cost, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid unit cost %q: %w", value, err)
	}
	return cost, nil
}

// Submit reserves pages*unitCost credits and creates the queue entry in one
// transaction. On ErrInsufficientFunds nothing is mutated and the caller is
// responsible for discarding the already-stored document.
func (q *Queue) Submit(ctx context.Context, username, filename, fileID string, pages, unitCost int64) (*db.QueueEntry, error) {
	if pages <= 0 {
		return nil, fmt.Errorf("%w: pages must be positive", ErrInvalidAmount)
	}
	if unitCost <= 0 {
		return nil, fmt.Errorf("%w: unit cost must be positive", ErrInvalidAmount)
	}
	bill := pages * unitCost

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := q.ledger.ReserveTx(ctx, tx, username, bill); err != nil {
		return nil, err
	}

	uploadedAt := time.Now().Unix()
	result, err := tx.ExecContext(ctx, db.InsertQueueEntry,
		username, filename, fileID, uploadedAt, bill, pages)
	if err != nil {
		return nil, fmt.Errorf("failed to insert queue entry: %w", err)
	}
	printID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get print id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit submission: %w", err)
	}

	return &db.QueueEntry{
		PrintID:    printID,
		Username:   username,
		Filename:   filename,
		FileID:     fileID,
		UploadedAt: uploadedAt,
		Bill:       bill,
		Pages:      pages,
	}, nil
}

// Cancel releases the entry's reservation and deletes it in one
// transaction. Only the owner may cancel; a cancel losing the race against
// a concurrent dispatch observes ErrJobNotFound.
func (q *Queue) Cancel(ctx context.Context, printID int64, username string) (*db.QueueEntry, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	entry := &db.QueueEntry{}
	err = tx.QueryRowContext(ctx, db.GetQueueEntry, printID).Scan(
		&entry.PrintID, &entry.Username, &entry.Filename, &entry.FileID,
		&entry.UploadedAt, &entry.Bill, &entry.Pages, &entry.Priority)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get queue entry: %w", err)
	}
	if entry.Username != username {
		return nil, ErrJobNotFound
	}

	if err := q.ledger.ReleaseTx(ctx, tx, username, entry.Bill); err != nil {
		return nil, err
	}

	result, err := tx.ExecContext(ctx, db.DeleteQueueEntry, printID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete queue entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return nil, ErrJobNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit cancellation: %w", err)
	}
	return entry, nil
}

// ListFor returns username's queued entries, oldest first.
func (q *Queue) ListFor(ctx context.Context, username string) ([]*db.QueueEntry, error) {
	rows, err := q.db.QueryContext(ctx, db.ListQueueForUser, username)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	defer rows.Close()

	var entries []*db.QueueEntry
	for rows.Next() {
		e := &db.QueueEntry{}
		if err := rows.Scan(
			&e.PrintID, &e.Username, &e.Filename, &e.FileID,
			&e.UploadedAt, &e.Bill, &e.Pages, &e.Priority); err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// HistoryFor returns username's completed prints joined with the display
// name of the terminal that printed them.
func (q *Queue) HistoryFor(ctx context.Context, username string) ([]*db.HistoryEntry, error) {
	rows, err := q.db.QueryContext(ctx, db.ListHistoryForUser, username)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []*db.HistoryEntry
	for rows.Next() {
		h := &db.HistoryEntry{}
		if err := rows.Scan(
			&h.PrintID, &h.TerminalID, &h.TerminalName, &h.Username, &h.Filename,
			&h.FileID, &h.UploadedAt, &h.PrintedAt, &h.Pages, &h.Bill); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, h)
	}
	return entries, rows.Err()
}

// SetPriority stores a priority value on the owner's entry. Dispatch does
// not read it; selection stays strictly oldest-first.
func (q *Queue) SetPriority(ctx context.Context, fileID, username string, priority int64) error {
	result, err := q.db.ExecContext(ctx, db.UpdateQueuePriority, priority, fileID, username)
	if err != nil {
		return fmt.Errorf("failed to update priority: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// GetByFileID looks up a queued entry by its stored-document id.
func (q *Queue) GetByFileID(ctx context.Context, fileID string) (*db.QueueEntry, error) {
	e := &db.QueueEntry{}
	err := q.db.QueryRowContext(ctx, db.GetQueueEntryByFileID, fileID).Scan(
		&e.PrintID, &e.Username, &e.Filename, &e.FileID,
		&e.UploadedAt, &e.Bill, &e.Pages, &e.Priority)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get queue entry: %w", err)
	}
	return e, nil
}
