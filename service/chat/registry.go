package chat

import (
	"sync"
)

// Registry tracks which connections are open and derives per-user presence.
// A user is online iff they have at least one registered connection. All
// mutations are synchronous; nothing blocks while the lock is held.
type Registry struct {
	mu     sync.RWMutex
	byConn map[string]*Client            // conn_id -> client
	byUser map[string]map[string]*Client // user_id -> conn_id -> client
}

func NewRegistry() *Registry {
	return &Registry{
		byConn: make(map[string]*Client),
		byUser: make(map[string]map[string]*Client),
	}
}

// Register records the client and reports whether this was the user's first
// open connection (the online transition). Re-registering the same conn id
// overwrites without double-counting.
func (r *Registry) Register(c *Client) (becameOnline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	connID := c.Session.ConnID
	userID := c.Session.UserID

	if prev, ok := r.byConn[connID]; ok {
		if prev.Session.UserID == userID {
			// same connection re-registered: overwrite, no transition
			r.byConn[connID] = c
			r.byUser[userID][connID] = c
			return false
		}
		// conn id reused by a different user: detach the old index entry
		if mm := r.byUser[prev.Session.UserID]; mm != nil {
			delete(mm, connID)
			if len(mm) == 0 {
				delete(r.byUser, prev.Session.UserID)
			}
		}
	}

	r.byConn[connID] = c
	mm := r.byUser[userID]
	becameOnline = len(mm) == 0
	if mm == nil {
		mm = make(map[string]*Client)
		r.byUser[userID] = mm
	}
	mm[connID] = c
	return becameOnline
}

// Unregister removes the connection, returning the freed session and whether
// this was the user's last connection (the offline transition). Unknown conn
// ids return (nil, false).
func (r *Registry) Unregister(connID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byConn[connID]
	if !ok {
		return nil, false
	}
	delete(r.byConn, connID)

	userID := c.Session.UserID
	becameOffline := false
	if mm := r.byUser[userID]; mm != nil {
		delete(mm, connID)
		if len(mm) == 0 {
			delete(r.byUser, userID)
			becameOffline = true
		}
	}
	return c.Session, becameOffline
}

func (r *Registry) Get(connID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byConn[connID]
	return c, ok
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

func (r *Registry) ListOnline() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byUser))
	for userID := range r.byUser {
		out = append(out, userID)
	}
	return out
}

// ConnsOf lists the user's open connections.
func (r *Registry) ConnsOf(userID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mm := r.byUser[userID]
	if len(mm) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(mm))
	for _, c := range mm {
		out = append(out, c)
	}
	return out
}

// Snapshot lists every registered connection. Presence transitions are
// broadcast hub-wide through it.
func (r *Registry) Snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.byConn))
	for _, c := range r.byConn {
		out = append(out, c)
	}
	return out
}
