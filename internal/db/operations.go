package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type UserOperations struct{}

// CreateUser inserts the user row and its zero-balance billing account as
// one unit. Either both exist afterwards or neither does.
func (o *UserOperations) CreateUser(ctx context.Context, u *User) error {
	tx, err := GetDB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	result, err := tx.ExecContext(ctx, InsertUser,
		u.Username, u.RFID, u.Name, u.Mobile, u.Email, u.Password, now)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get user id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, InsertBilling, u.Username, now); err != nil {
		return fmt.Errorf("failed to create billing account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit user creation: %w", err)
	}

	u.ID = id
	u.CreatedAt = now
	return nil
}

func (o *UserOperations) GetByUsername(ctx context.Context, username string) (*User, error) {
	return o.getUser(ctx, GetUserByUsername, username)
}

func (o *UserOperations) GetByRFID(ctx context.Context, rfid string) (*User, error) {
	return o.getUser(ctx, GetUserByRFID, rfid)
}

func (o *UserOperations) GetByMobile(ctx context.Context, mobile string) (*User, error) {
	return o.getUser(ctx, GetUserByMobile, mobile)
}

func (o *UserOperations) GetByEmail(ctx context.Context, email string) (*User, error) {
	return o.getUser(ctx, GetUserByEmail, email)
}

func (o *UserOperations) getUser(ctx context.Context, query, arg string) (*User, error) {
	u := &User{}
	err := GetDB().QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.RFID, &u.Name, &u.Mobile, &u.Email, &u.Password, &u.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (o *UserOperations) UpdatePassword(ctx context.Context, username, hashed string) error {
	_, err := GetDB().ExecContext(ctx, UpdateUserPassword, hashed, username)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

type ParamOperations struct{}

func (o *ParamOperations) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := GetDB().QueryRowContext(ctx, GetParam, key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", sql.ErrNoRows
		}
		return "", fmt.Errorf("failed to get param: %w", err)
	}
	return value, nil
}

func (o *ParamOperations) Set(ctx context.Context, key, value string) error {
	_, err := GetDB().ExecContext(ctx, SetParam, key, value)
	if err != nil {
		return fmt.Errorf("failed to set param: %w", err)
	}
	return nil
}

type TerminalOperations struct{}

// List returns the operator-facing terminal overview. Credentials and
// network settings are not included.
func (o *TerminalOperations) List(ctx context.Context) ([]*Terminal, error) {
	rows, err := GetDB().QueryContext(ctx, ListTerminals)
	if err != nil {
		return nil, fmt.Errorf("failed to list terminals: %w", err)
	}
	defer rows.Close()

	var terminals []*Terminal
	for rows.Next() {
		t := &Terminal{}
		if err := rows.Scan(
			&t.TerminalID, &t.Name, &t.Location, &t.Status,
			&t.LastPing, &t.LastPrint, &t.Comment); err != nil {
			return nil, fmt.Errorf("failed to scan terminal: %w", err)
		}
		terminals = append(terminals, t)
	}
	return terminals, rows.Err()
}

var (
	Users     = &UserOperations{}
	Params    = &ParamOperations{}
	Terminals = &TerminalOperations{}
)
