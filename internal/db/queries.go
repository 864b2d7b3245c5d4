package db

const (
	InsertUser = `
		INSERT INTO users (username, rfid, name, mobile, email, password, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	GetUserByUsername = `
		SELECT id, username, rfid, name, mobile, email, password, created_at
		FROM users WHERE username = ?
	`

	GetUserByRFID = `
		SELECT id, username, rfid, name, mobile, email, password, created_at
		FROM users WHERE rfid = ?
	`

	GetUserByMobile = `
		SELECT id, username, rfid, name, mobile, email, password, created_at
		FROM users WHERE mobile = ?
	`

	GetUserByEmail = `
		SELECT id, username, rfid, name, mobile, email, password, created_at
		FROM users WHERE email = ?
	`

	UpdateUserPassword = `UPDATE users SET password = ? WHERE username = ?`
)

const (
	InsertBilling = `
		INSERT INTO billings (username, created_at) VALUES (?, ?)
	`

	GetBillingByUsername = `
		SELECT username, current_balance, locked_balance, total_spent, total_prints, created_at
		FROM billings WHERE username = ?
	`

	// Conditional updates: each fails with zero rows affected when the
	// precondition no longer holds, which is how lost updates are excluded.
	ReserveBalance = `
		UPDATE billings
		SET current_balance = current_balance - ?, locked_balance = locked_balance + ?
		WHERE username = ? AND current_balance >= ?
	`

	ReleaseBalance = `
		UPDATE billings
		SET current_balance = current_balance + ?, locked_balance = locked_balance - ?
		WHERE username = ? AND locked_balance >= ?
	`

	SettleBalance = `
		UPDATE billings
		SET locked_balance = locked_balance - ?, total_spent = total_spent + ?, total_prints = total_prints + 1
		WHERE username = ? AND locked_balance >= ?
	`

	CreditBalance = `
		UPDATE billings SET current_balance = current_balance + ? WHERE username = ?
	`
)

const (
	InsertQueueEntry = `
		INSERT INTO queue (username, filename, file_id, uploaded_at, bill, pages)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	GetQueueEntry = `
		SELECT print_id, username, filename, file_id, uploaded_at, bill, pages, priority
		FROM queue WHERE print_id = ?
	`

	GetQueueEntryByFileID = `
		SELECT print_id, username, filename, file_id, uploaded_at, bill, pages, priority
		FROM queue WHERE file_id = ?
	`

	ListQueueForUser = `
		SELECT print_id, username, filename, file_id, uploaded_at, bill, pages, priority
		FROM queue WHERE username = ? ORDER BY uploaded_at ASC, print_id ASC
	`

	DeleteQueueEntry = `DELETE FROM queue WHERE print_id = ?`

	UpdateQueuePriority = `
		UPDATE queue SET priority = ? WHERE file_id = ? AND username = ?
	`

	// Oldest queued job for the owner of a badge. Priority is deliberately
	// absent from the ordering: dispatch is strictly FIFO.
	OldestQueuedForBadge = `
		SELECT q.print_id, q.username, q.filename, q.file_id, q.uploaded_at, q.bill, q.pages, q.priority
		FROM users u
		JOIN queue q ON u.username = q.username
		WHERE u.rfid = ?
		ORDER BY q.uploaded_at ASC, q.print_id ASC
		LIMIT 1
	`
)

const (
	InsertHistoryEntry = `
		INSERT INTO history (print_id, terminal_id, username, filename, file_id, uploaded_at, printed_at, pages, bill)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	ListHistoryForUser = `
		SELECT h.print_id, h.terminal_id, COALESCE(t.name, ''), h.username, h.filename, h.file_id, h.uploaded_at, h.printed_at, h.pages, h.bill
		FROM history h
		LEFT JOIN terminals t ON h.terminal_id = t.terminal_id
		WHERE h.username = ?
		ORDER BY h.printed_at ASC, h.print_id ASC
	`
)

const (
	InsertTerminal = `
		INSERT INTO terminals (terminal_id, auth_key, name, printer, location, endpoint, ssid, password, status, comment)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	GetTerminalByCredentials = `
		SELECT terminal_id, auth_key, name, printer, location, endpoint, ssid, password, update_flag, last_ping, last_print, status, comment
		FROM terminals WHERE terminal_id = ? AND auth_key = ?
	`

	GetTerminalByID = `
		SELECT terminal_id, auth_key, name, printer, location, endpoint, ssid, password, update_flag, last_ping, last_print, status, comment
		FROM terminals WHERE terminal_id = ?
	`

	ListTerminals = `
		SELECT terminal_id, name, location, status, last_ping, last_print, comment
		FROM terminals ORDER BY terminal_id ASC
	`

	UpdateTerminalLastPing = `UPDATE terminals SET last_ping = ? WHERE terminal_id = ?`

	UpdateTerminalFlagAndPing = `UPDATE terminals SET update_flag = ?, last_ping = ? WHERE terminal_id = ?`

	UpdateTerminalLastPrint = `UPDATE terminals SET last_print = ? WHERE terminal_id = ?`

	UpdateTerminalStatus = `UPDATE terminals SET status = ?, comment = ? WHERE terminal_id = ?`

	UpdateTerminalConfig = `
		UPDATE terminals SET
			name = ?, printer = ?, location = ?, endpoint = ?, ssid = ?, password = ?,
			update_flag = 1
		WHERE terminal_id = ?
	`
)

const (
	GetParam = `SELECT value FROM params WHERE key = ?`

	SetParam = `
		INSERT INTO params (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
)
