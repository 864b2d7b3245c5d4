package core

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/printdesk/printdesk/internal/db"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func seedUser(t *testing.T, conn *sql.DB, username, rfid string, balance int64) {
	t.Helper()
	_, err := conn.Exec(
		"INSERT INTO users (username, rfid, name, mobile, email, password) VALUES (?, ?, ?, ?, ?, ?)",
		username, rfid, username+" test", "070000"+rfid, username+"@example.com", "hash")
	require.NoError(t, err)
	_, err = conn.Exec(
		"INSERT INTO billings (username, current_balance) VALUES (?, ?)",
		username, balance)
	require.NoError(t, err)
}

func seedTerminal(t *testing.T, conn *sql.DB, terminalID, authKey string, status int64) {
	t.Helper()
	_, err := conn.Exec(db.InsertTerminal,
		terminalID, authKey, "Library kiosk", "hp-laserjet", "library", "http://server", "campus", "wifipass", status, "")
	require.NoError(t, err)
}

func account(t *testing.T, conn *sql.DB, username string) *db.BillingAccount {
	t.Helper()
	a := &db.BillingAccount{}
	err := conn.QueryRow(db.GetBillingByUsername, username).Scan(
		&a.Username, &a.CurrentBalance, &a.LockedBalance,
		&a.TotalSpent, &a.TotalPrints, &a.CreatedAt)
	require.NoError(t, err)
	return a
}

func queueCount(t *testing.T, conn *sql.DB, username string) int {
	t.Helper()
	var n int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM queue WHERE username = ?", username).Scan(&n))
	return n
}

func historyCount(t *testing.T, conn *sql.DB, username string) int {
	t.Helper()
	var n int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM history WHERE username = ?", username).Scan(&n))
	return n
}
