// Package notify holds the live push connections browsers keep open to
// learn that their queue changed. Delivery is best-effort: the registry is
// never a source of ledger or queue truth, and clients reconcile by
// re-querying.
package notify

import (
	"log"
	"sync"
)

type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

const (
	EventQueueChanged   = "queue_changed"
	EventBalanceChanged = "balance_changed"
)

// Conn is one live connection to a user's browser. The transport behind it
// is out of scope here; anything that can push a JSON-serializable event
// qualifies.
type Conn interface {
	Send(event Event) error
}

type Registry struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]Conn)}
}

// Register associates a connection with username, replacing any previous
// one. Call on connection open.
func (r *Registry) Register(username string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[username] = conn
}

// Unregister drops the connection only if it is still the registered one,
// so a reconnect racing a close never loses the fresh connection.
func (r *Registry) Unregister(username string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns[username] == conn {
		delete(r.conns, username)
	}
}

// Notify sends event to username's connection if one is present. Absent or
// failing connections are ignored; a missed notification is indistinguishable
// from a slow one and clients must not treat either as a missed state change.
func (r *Registry) Notify(username string, event Event) {
	r.mu.RLock()
	conn := r.conns[username]
	r.mu.RUnlock()

	if conn == nil {
		return
	}
	if err := conn.Send(event); err != nil {
		log.Printf("notify: dropping send to %s: %v", username, err)
	}
}

// Count reports how many connections are registered.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
