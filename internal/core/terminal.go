package core

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/printdesk/printdesk/internal/db"
)

// Registry owns terminal identity, credentials and canonical configuration.
// Configuration flows to devices lazily: the server marks a terminal stale
// (update_flag=1) and the device pulls the full canonical set on its next
// ping, confirming what it applied through ApplyReport.
type Registry struct {
	db *sql.DB
}

func NewRegistry(database *sql.DB) *Registry {
	return &Registry{db: database}
}

// PingResult is the server's answer to a terminal heartbeat. Config is
// populated only while the terminal is stale.
type PingResult struct {
	UpdateFlag int64             `json:"update_flag"`
	LastPing   int64             `json:"last_ping"`
	Config     map[string]string `json:"config,omitempty"`
}

// ReportResult acknowledges a configuration report.
type ReportResult struct {
	UpdateFlag int64 `json:"update_flag"`
	LastPing   int64 `json:"last_ping"`
}

// Authenticate requires an exact match on both terminal id and auth key.
func (r *Registry) Authenticate(ctx context.Context, terminalID, authKey string) (*db.Terminal, error) {
	t := &db.Terminal{}
	err := r.db.QueryRowContext(ctx, db.GetTerminalByCredentials, terminalID, authKey).Scan(
		&t.TerminalID, &t.AuthKey, &t.Name, &t.Printer, &t.Location,
		&t.Endpoint, &t.SSID, &t.Password, &t.UpdateFlag,
		&t.LastPing, &t.LastPrint, &t.Status, &t.Comment)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTerminalAuth
		}
		return nil, fmt.Errorf("failed to authenticate terminal: %w", err)
	}
	return t, nil
}

// Ping refreshes the terminal's liveness stamp and, while the terminal is
// stale, delivers the full canonical configuration. Ping never clears the
// flag; only a matching report does.
func (r *Registry) Ping(ctx context.Context, terminalID, authKey string) (*PingResult, error) {
	t, err := r.Authenticate(ctx, terminalID, authKey)
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	if _, err := r.db.ExecContext(ctx, db.UpdateTerminalLastPing, now, terminalID); err != nil {
		return nil, fmt.Errorf("failed to update last ping: %w", err)
	}

	result := &PingResult{UpdateFlag: t.UpdateFlag, LastPing: now}
	if t.UpdateFlag == 1 {
		result.Config = t.Config()
	}
	return result, nil
}

// ApplyReport compares the device's reported settings against the canonical
// configuration, field by field over the canonical set. A terminal that
// omits a field or reports a stale value stays marked stale. Repeating a
// report has no effect beyond refreshing the liveness stamp.
func (r *Registry) ApplyReport(ctx context.Context, terminalID, authKey string, reported map[string]string) (*ReportResult, error) {
	t, err := r.Authenticate(ctx, terminalID, authKey)
	if err != nil {
		return nil, err
	}

	var newFlag int64
	for key, want := range t.Config() {
		if got, ok := reported[key]; !ok || got != want {
			newFlag = 1
			break
		}
	}

	now := time.Now().Unix()
	if _, err := r.db.ExecContext(ctx, db.UpdateTerminalFlagAndPing, newFlag, now, terminalID); err != nil {
		return nil, fmt.Errorf("failed to update terminal flag: %w", err)
	}

	return &ReportResult{UpdateFlag: newFlag, LastPing: now}, nil
}

// Get returns a terminal by id regardless of credentials (operator surface).
func (r *Registry) Get(ctx context.Context, terminalID string) (*db.Terminal, error) {
	t := &db.Terminal{}
	err := r.db.QueryRowContext(ctx, db.GetTerminalByID, terminalID).Scan(
		&t.TerminalID, &t.AuthKey, &t.Name, &t.Printer, &t.Location,
		&t.Endpoint, &t.SSID, &t.Password, &t.UpdateFlag,
		&t.LastPing, &t.LastPrint, &t.Status, &t.Comment)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get terminal: %w", err)
	}
	return t, nil
}

// Provision creates a terminal. New terminals start stale so the device
// pulls its configuration on first ping.
func (r *Registry) Provision(ctx context.Context, t *db.Terminal) error {
	_, err := r.db.ExecContext(ctx, db.InsertTerminal,
		t.TerminalID, t.AuthKey, t.Name, t.Printer, t.Location,
		t.Endpoint, t.SSID, t.Password, t.Status, t.Comment)
	if err != nil {
		return fmt.Errorf("failed to provision terminal: %w", err)
	}
	t.UpdateFlag = 1
	return nil
}

// UpdateConfig replaces the canonical configuration and marks the terminal
// stale; the device converges on its next ping/report cycle.
func (r *Registry) UpdateConfig(ctx context.Context, terminalID string, cfg map[string]string) error {
	t, err := r.Get(ctx, terminalID)
	if err != nil {
		return err
	}

	canonical := t.Config()
	for key, value := range cfg {
		if _, ok := canonical[key]; !ok {
			return fmt.Errorf("unknown terminal config field: %s", key)
		}
		canonical[key] = value
	}

	_, err = r.db.ExecContext(ctx, db.UpdateTerminalConfig,
		canonical["name"], canonical["printer"], canonical["location"],
		canonical["endpoint"], canonical["ssid"], canonical["password"],
		terminalID)
	if err != nil {
		return fmt.Errorf("failed to update terminal config: %w", err)
	}
	return nil
}

// SetStatus sets the operator-facing status and comment.
func (r *Registry) SetStatus(ctx context.Context, terminalID string, status int64, comment string) error {
	result, err := r.db.ExecContext(ctx, db.UpdateTerminalStatus, status, comment, terminalID)
	if err != nil {
		return fmt.Errorf("failed to update terminal status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
