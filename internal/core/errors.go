package core

import (
	"errors"
	"fmt"
)

var (
	ErrAccountNotFound   = errors.New("billing account not found")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrLedgerIntegrity   = errors.New("ledger integrity violation")
	ErrJobNotFound       = errors.New("no matching queued job")
	ErrTerminalAuth      = errors.New("invalid terminal or auth key")
	ErrTerminalInactive  = errors.New("terminal is not active")
)

// PrintError reports a failed physical print. The job stays queued and no
// ledger state changes when this is returned.
type PrintError struct {
	Err error
}

func (e *PrintError) Error() string {
	return fmt.Sprintf("print execution failed: %v", e.Err)
}

func (e *PrintError) Unwrap() error {
	return e.Err
}
