package core

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/printdesk/printdesk/internal/db"
)

// PrintExecutor is the physical print driver. It is external to the
// consistency boundary: Printdesk treats its success as the point of no
// return and only then commits the settlement.
type PrintExecutor interface {
	Print(ctx context.Context, fileID, printer string) error
}

// Dispatcher converts one queued job into one history record when a badge
// is presented at a terminal. Scans against the same terminal are
// serialized; different terminals dispatch in parallel.
type Dispatcher struct {
	db       *sql.DB
	ledger   *Ledger
	registry *Registry
	executor PrintExecutor

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewDispatcher(database *sql.DB, ledger *Ledger, registry *Registry, executor PrintExecutor) *Dispatcher {
	return &Dispatcher{
		db:       database,
		ledger:   ledger,
		registry: registry,
		executor: executor,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (d *Dispatcher) terminalLock(terminalID string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	lock, ok := d.locks[terminalID]
	if !ok {
		lock = &sync.Mutex{}
		d.locks[terminalID] = lock
	}
	return lock
}

// Scan authenticates the terminal, selects the oldest queued job owned by
// the badge's account, prints it, and settles the ledger. The settlement
// transaction claims the queue row with a guarded delete: if a concurrent
// cancel got there first the whole transaction aborts with ErrJobNotFound,
// so a bill can never be both released and settled. A crash between the
// physical print and the commit leaves the job queued and the funds locked;
// the job is simply eligible for the next scan.
func (d *Dispatcher) Scan(ctx context.Context, terminalID, authKey, rfid string) (*db.HistoryEntry, error) {
	terminal, err := d.registry.Authenticate(ctx, terminalID, authKey)
	if err != nil {
		return nil, err
	}
	if terminal.Status != db.TerminalActive {
		return nil, ErrTerminalInactive
	}

	lock := d.terminalLock(terminalID)
	lock.Lock()
	defer lock.Unlock()

	entry := &db.QueueEntry{}
	err = d.db.QueryRowContext(ctx, db.OldestQueuedForBadge, rfid).Scan(
		&entry.PrintID, &entry.Username, &entry.Filename, &entry.FileID,
		&entry.UploadedAt, &entry.Bill, &entry.Pages, &entry.Priority)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to select queued job: %w", err)
	}

	if err := d.executor.Print(ctx, entry.FileID, terminal.Printer); err != nil {
		return nil, &PrintError{Err: err}
	}

	return d.commitPrint(ctx, terminal, entry)
}

func (d *Dispatcher) commitPrint(ctx context.Context, terminal *db.Terminal, entry *db.QueueEntry) (*db.HistoryEntry, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Claim the row first. Zero rows means a cancel won the race while the
	// document was printing; nothing below may happen in that case.
	result, err := tx.ExecContext(ctx, db.DeleteQueueEntry, entry.PrintID)
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

	printedAt := time.Now().Unix()
	if _, err := tx.ExecContext(ctx, db.InsertHistoryEntry,
		entry.PrintID, terminal.TerminalID, entry.Username, entry.Filename,
		entry.FileID, entry.UploadedAt, printedAt, entry.Pages, entry.Bill); err != nil {
		return nil, fmt.Errorf("failed to insert history entry: %w", err)
	}

	if err := d.ledger.SettleTx(ctx, tx, entry.Username, entry.Bill); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, db.UpdateTerminalLastPrint, printedAt, terminal.TerminalID); err != nil {
		return nil, fmt.Errorf("failed to update last print: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit print: %w", err)
	}

	return &db.HistoryEntry{
		PrintID:      entry.PrintID,
		TerminalID:   terminal.TerminalID,
		TerminalName: terminal.Name,
		Username:     entry.Username,
		Filename:     entry.Filename,
		FileID:       entry.FileID,
		UploadedAt:   entry.UploadedAt,
		PrintedAt:    printedAt,
		Pages:        entry.Pages,
		Bill:         entry.Bill,
	}, nil
}
