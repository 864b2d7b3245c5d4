package core

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerReserve(t *testing.T) {
	ctx := context.Background()

	t.Run("moves funds from spendable to locked", func(t *testing.T) {
		conn := newTestDB(t)
		seedUser(t, conn, "alice", "1001", 100)
		ledger := NewLedger(conn)

		require.NoError(t, ledger.Reserve(ctx, "alice", 30))

		a := account(t, conn, "alice")
		assert.Equal(t, int64(70), a.CurrentBalance)
		assert.Equal(t, int64(30), a.LockedBalance)
	})

	t.Run("rejects amounts exceeding the spendable balance", func(t *testing.T) {
		conn := newTestDB(t)
		seedUser(t, conn, "alice", "1001", 20)
		ledger := NewLedger(conn)

		err := ledger.Reserve(ctx, "alice", 30)
		assert.ErrorIs(t, err, ErrInsufficientFunds)

		a := account(t, conn, "alice")
		assert.Equal(t, int64(20), a.CurrentBalance)
		assert.Equal(t, int64(0), a.LockedBalance)
	})

	t.Run("locked funds are not spendable", func(t *testing.T) {
		conn := newTestDB(t)
		seedUser(t, conn, "alice", "1001", 50)
		ledger := NewLedger(conn)

		require.NoError(t, ledger.Reserve(ctx, "alice", 40))
		assert.ErrorIs(t, ledger.Reserve(ctx, "alice", 20), ErrInsufficientFunds)
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		conn := newTestDB(t)
		seedUser(t, conn, "alice", "1001", 100)
		ledger := NewLedger(conn)

		assert.ErrorIs(t, ledger.Reserve(ctx, "alice", 0), ErrInvalidAmount)
		assert.ErrorIs(t, ledger.Reserve(ctx, "alice", -5), ErrInvalidAmount)
	})

	t.Run("unknown account", func(t *testing.T) {
		conn := newTestDB(t)
		ledger := NewLedger(conn)

		assert.ErrorIs(t, ledger.Reserve(ctx, "ghost", 10), ErrAccountNotFound)
	})
}

func TestLedgerReleaseRestoresBalance(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	seedUser(t, conn, "alice", "1001", 100)
	ledger := NewLedger(conn)

	require.NoError(t, ledger.Reserve(ctx, "alice", 30))
	require.NoError(t, ledger.Release(ctx, "alice", 30))

	a := account(t, conn, "alice")
	assert.Equal(t, int64(100), a.CurrentBalance)
	assert.Equal(t, int64(0), a.LockedBalance)
	assert.Equal(t, int64(0), a.TotalSpent)
}

func TestLedgerReleaseBeyondLockedIsIntegrityError(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	seedUser(t, conn, "alice", "1001", 100)
	ledger := NewLedger(conn)

	require.NoError(t, ledger.Reserve(ctx, "alice", 30))
	assert.ErrorIs(t, ledger.Release(ctx, "alice", 31), ErrLedgerIntegrity)
}

func TestLedgerSettle(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	seedUser(t, conn, "alice", "1001", 100)
	ledger := NewLedger(conn)

	require.NoError(t, ledger.Reserve(ctx, "alice", 30))
	require.NoError(t, ledger.Settle(ctx, "alice", 30))

	a := account(t, conn, "alice")
	assert.Equal(t, int64(70), a.CurrentBalance)
	assert.Equal(t, int64(0), a.LockedBalance)
	assert.Equal(t, int64(30), a.TotalSpent)
	assert.Equal(t, int64(1), a.TotalPrints)

	assert.ErrorIs(t, ledger.Settle(ctx, "alice", 30), ErrLedgerIntegrity)
}

func TestLedgerConcurrentReservesNoDoubleSpend(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	seedUser(t, conn, "alice", "1001", 50)
	ledger := NewLedger(conn)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = ledger.Reserve(ctx, "alice", 30)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrInsufficientFunds)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one of two concurrent reserves may win")

	a := account(t, conn, "alice")
	assert.Equal(t, int64(20), a.CurrentBalance)
	assert.Equal(t, int64(30), a.LockedBalance)
	assert.Equal(t, int64(50), a.CurrentBalance+a.LockedBalance)
}

func TestLedgerCredit(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	seedUser(t, conn, "alice", "1001", 10)
	ledger := NewLedger(conn)

	require.NoError(t, ledger.Credit(ctx, "alice", 90))
	a := account(t, conn, "alice")
	assert.Equal(t, int64(100), a.CurrentBalance)

	assert.ErrorIs(t, ledger.Credit(ctx, "ghost", 10), ErrAccountNotFound)
	assert.ErrorIs(t, ledger.Credit(ctx, "alice", 0), ErrInvalidAmount)
}

func TestLedgerBalancesNeverNegative(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	seedUser(t, conn, "alice", "1001", 25)
	ledger := NewLedger(conn)

	// Drain through partial reserves and settles, probing each boundary.
	require.NoError(t, ledger.Reserve(ctx, "alice", 25))
	assert.ErrorIs(t, ledger.Reserve(ctx, "alice", 1), ErrInsufficientFunds)
	require.NoError(t, ledger.Settle(ctx, "alice", 25))
	assert.ErrorIs(t, ledger.Settle(ctx, "alice", 1), ErrLedgerIntegrity)

	a := account(t, conn, "alice")
	assert.GreaterOrEqual(t, a.CurrentBalance, int64(0))
	assert.GreaterOrEqual(t, a.LockedBalance, int64(0))
	assert.Equal(t, int64(25), a.TotalSpent)
}
