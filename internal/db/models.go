package db

// User is an account holder. The rfid value is the badge presented at a
// terminal and maps to exactly one user.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	RFID      string `json:"rfid"`
	Name      string `json:"name"`
	Mobile    string `json:"mobile"`
	Email     string `json:"email"`
	Password  string `json:"-"`
	CreatedAt int64  `json:"created_at"`
}

// BillingAccount is the credit ledger row for one user. CurrentBalance is
// spendable, LockedBalance is reserved against queued jobs. All amounts are
// integer credits.
type BillingAccount struct {
	Username       string `json:"username"`
	CurrentBalance int64  `json:"current_balance"`
	LockedBalance  int64  `json:"locked_balance"`
	TotalSpent     int64  `json:"total_spent"`
	TotalPrints    int64  `json:"total_prints"`
	CreatedAt      int64  `json:"created_at"`
}

// QueueEntry is one submitted, not-yet-printed document. Bill equals the
// reservation held in the owner's locked balance.
type QueueEntry struct {
	PrintID    int64  `json:"print_id"`
	Username   string `json:"username"`
	Filename   string `json:"filename"`
	FileID     string `json:"file_id"`
	UploadedAt int64  `json:"uploaded_at"`
	Bill       int64  `json:"bill"`
	Pages      int64  `json:"pages"`
	Priority   int64  `json:"priority"`
}

// HistoryEntry is the immutable record of a completed print.
type HistoryEntry struct {
	PrintID      int64  `json:"print_id"`
	TerminalID   string `json:"terminal_id"`
	TerminalName string `json:"terminal_name,omitempty"`
	Username     string `json:"username"`
	Filename     string `json:"filename"`
	FileID       string `json:"file_id"`
	UploadedAt   int64  `json:"uploaded_at"`
	PrintedAt    int64  `json:"printed_at"`
	Pages        int64  `json:"pages"`
	Bill         int64  `json:"bill"`
}

// Terminal statuses. Operators may park a terminal in any non-active state;
// dispatch only proceeds on TerminalActive.
const (
	TerminalInactive int64 = 0
	TerminalActive   int64 = 1
)

// Terminal is one physical print kiosk. UpdateFlag is 1 whenever the
// device's last reported settings differ from the canonical ones.
type Terminal struct {
	TerminalID string `json:"terminal_id"`
	AuthKey    string `json:"-"`
	Name       string `json:"name"`
	Printer    string `json:"printer"`
	Location   string `json:"location"`
	Endpoint   string `json:"endpoint"`
	SSID       string `json:"ssid"`
	Password   string `json:"-"`
	UpdateFlag int64  `json:"update_flag"`
	LastPing   int64  `json:"last_ping"`
	LastPrint  int64  `json:"last_print"`
	Status     int64  `json:"status"`
	Comment    string `json:"comment"`
}

// Config returns the canonical configuration set used by the
// reconciliation protocol, keyed by field name.
func (t *Terminal) Config() map[string]string {
	return map[string]string{
		"name":     t.Name,
		"printer":  t.Printer,
		"location": t.Location,
		"endpoint": t.Endpoint,
		"ssid":     t.SSID,
		"password": t.Password,
	}
}

type Param struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
