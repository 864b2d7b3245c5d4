package core

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("reserves the bill and creates the entry", func(t *testing.T) {
		conn := newTestDB(t)
		seedUser(t, conn, "alice", "1001", 100)
		queue := NewQueue(conn, NewLedger(conn))

		entry, err := queue.Submit(ctx, "alice", "thesis.pdf", "f-1.pdf", 3, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(30), entry.Bill)
		assert.Equal(t, int64(3), entry.Pages)
		assert.NotZero(t, entry.PrintID)
		assert.NotZero(t, entry.UploadedAt)

		a := account(t, conn, "alice")
		assert.Equal(t, int64(70), a.CurrentBalance)
		assert.Equal(t, int64(30), a.LockedBalance)
		assert.Equal(t, 1, queueCount(t, conn, "alice"))
	})

	t.Run("insufficient funds leaves no trace", func(t *testing.T) {
		conn := newTestDB(t)
		seedUser(t, conn, "alice", "1001", 20)
		queue := NewQueue(conn, NewLedger(conn))

		_, err := queue.Submit(ctx, "alice", "thesis.pdf", "f-1.pdf", 3, 10)
		assert.ErrorIs(t, err, ErrInsufficientFunds)

		a := account(t, conn, "alice")
		assert.Equal(t, int64(20), a.CurrentBalance)
		assert.Equal(t, int64(0), a.LockedBalance)
		assert.Equal(t, 0, queueCount(t, conn, "alice"))
	})

	t.Run("rejects invalid pages and cost", func(t *testing.T) {
		conn := newTestDB(t)
		seedUser(t, conn, "alice", "1001", 100)
		queue := NewQueue(conn, NewLedger(conn))

		_, err := queue.Submit(ctx, "alice", "a.pdf", "f-1.pdf", 0, 10)
		assert.ErrorIs(t, err, ErrInvalidAmount)
		_, err = queue.Submit(ctx, "alice", "a.pdf", "f-1.pdf", 3, 0)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("concurrent submissions cannot overdraw", func(t *testing.T) {
		conn := newTestDB(t)
		seedUser(t, conn, "alice", "1001", 50)
		queue := NewQueue(conn, NewLedger(conn))

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = queue.Submit(ctx, "alice", "doc.pdf", "f-concurrent.pdf", 3, 10)
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
		assert.Equal(t, 1, succeeded)

		a := account(t, conn, "alice")
		assert.Equal(t, int64(50), a.CurrentBalance+a.LockedBalance)
		assert.Equal(t, int64(30), a.LockedBalance)
		assert.Equal(t, 1, queueCount(t, conn, "alice"))
	})
}

func TestQueueCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("releases the reservation and removes the entry", func(t *testing.T) {
		conn := newTestDB(t)
		seedUser(t, conn, "alice", "1001", 100)
		queue := NewQueue(conn, NewLedger(conn))

		entry, err := queue.Submit(ctx, "alice", "thesis.pdf", "f-1.pdf", 3, 10)
		require.NoError(t, err)

		cancelled, err := queue.Cancel(ctx, entry.PrintID, "alice")
		require.NoError(t, err)
		assert.Equal(t, entry.FileID, cancelled.FileID)

		a := account(t, conn, "alice")
		assert.Equal(t, int64(100), a.CurrentBalance)
		assert.Equal(t, int64(0), a.LockedBalance)
		assert.Equal(t, 0, queueCount(t, conn, "alice"))
	})

	t.Run("only the owner may cancel", func(t *testing.T) {
		conn := newTestDB(t)
		seedUser(t, conn, "alice", "1001", 100)
		seedUser(t, conn, "bob", "1002", 100)
		queue := NewQueue(conn, NewLedger(conn))

		entry, err := queue.Submit(ctx, "alice", "thesis.pdf", "f-1.pdf", 3, 10)
		require.NoError(t, err)

		_, err = queue.Cancel(ctx, entry.PrintID, "bob")
		assert.ErrorIs(t, err, ErrJobNotFound)
		assert.Equal(t, 1, queueCount(t, conn, "alice"))
	})

	t.Run("unknown job", func(t *testing.T) {
		conn := newTestDB(t)
		seedUser(t, conn, "alice", "1001", 100)
		queue := NewQueue(conn, NewLedger(conn))

		_, err := queue.Cancel(ctx, 9999, "alice")
		assert.ErrorIs(t, err, ErrJobNotFound)
	})

	t.Run("cancel is not repeatable", func(t *testing.T) {
		conn := newTestDB(t)
		seedUser(t, conn, "alice", "1001", 100)
		queue := NewQueue(conn, NewLedger(conn))

		entry, err := queue.Submit(ctx, "alice", "thesis.pdf", "f-1.pdf", 3, 10)
		require.NoError(t, err)

		_, err = queue.Cancel(ctx, entry.PrintID, "alice")
		require.NoError(t, err)
		_, err = queue.Cancel(ctx, entry.PrintID, "alice")
		assert.ErrorIs(t, err, ErrJobNotFound)

		a := account(t, conn, "alice")
		assert.Equal(t, int64(100), a.CurrentBalance)
	})
}

func TestQueueListFor(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	seedUser(t, conn, "alice", "1001", 100)
	seedUser(t, conn, "bob", "1002", 100)
	queue := NewQueue(conn, NewLedger(conn))

	first, err := queue.Submit(ctx, "alice", "one.pdf", "f-1.pdf", 1, 10)
	require.NoError(t, err)
	second, err := queue.Submit(ctx, "alice", "two.pdf", "f-2.pdf", 1, 10)
	require.NoError(t, err)
	_, err = queue.Submit(ctx, "bob", "other.pdf", "f-3.pdf", 1, 10)
	require.NoError(t, err)

	entries, err := queue.ListFor(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, first.PrintID, entries[0].PrintID)
	assert.Equal(t, second.PrintID, entries[1].PrintID)
}

func TestQueueSetPriorityDoesNotAffectDispatchOrder(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	seedUser(t, conn, "alice", "1001", 100)
	queue := NewQueue(conn, NewLedger(conn))

	first, err := queue.Submit(ctx, "alice", "one.pdf", "f-1.pdf", 1, 10)
	require.NoError(t, err)
	second, err := queue.Submit(ctx, "alice", "two.pdf", "f-2.pdf", 1, 10)
	require.NoError(t, err)

	require.NoError(t, queue.SetPriority(ctx, second.FileID, "alice", 99))
	assert.ErrorIs(t, queue.SetPriority(ctx, "nope.pdf", "alice", 1), ErrJobNotFound)

	// Selection stays strictly oldest-first regardless of priority.
	entries, err := queue.ListFor(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, first.PrintID, entries[0].PrintID)
	assert.Equal(t, int64(99), entries[1].Priority)
}

func TestQueueUnitCost(t *testing.T) {
	conn := newTestDB(t)
	queue := NewQueue(conn, NewLedger(conn))

	cost, err := queue.UnitCost(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(10), cost)
}
