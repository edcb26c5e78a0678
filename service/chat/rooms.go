package chat

import (
	"context"
	"sync"

	"ChatWave/tools/errs"
)

// Rooms holds the per-conversation broadcast groups. A connection becomes
// broadcast-reachable for a conversation only through an explicit, authorized
// Join; persisted participation alone never implies membership.
type Rooms struct {
	checker MembershipChecker

	mu     sync.RWMutex
	groups map[string]map[string]*Client  // conversation_id -> conn_id -> client
	byConn map[string]map[string]struct{} // conn_id -> conversation_ids
}

func NewRooms(checker MembershipChecker) *Rooms {
	return &Rooms{
		checker: checker,
		groups:  make(map[string]map[string]*Client),
		byConn:  make(map[string]map[string]struct{}),
	}
}

// Join verifies the client's user is a participant of the conversation, then
// adds the connection to the group. On authorization failure nothing changes.
// The membership check is the only awaited step; the map mutation after it is
// synchronous.
func (g *Rooms) Join(ctx context.Context, c *Client, conversationID string) error {
	if conversationID == "" {
		return errs.ErrArgs.WrapMsg("empty conversationId")
	}
	ok, err := g.checker.IsParticipant(ctx, conversationID, c.Session.UserID)
	if err != nil {
		return errs.WrapMsg(err, "membership check", "conversation", conversationID)
	}
	if !ok {
		return errs.ErrNotAuthorized.WrapMsg("join refused",
			"conversation", conversationID, "user", c.Session.UserID)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	grp := g.groups[conversationID]
	if grp == nil {
		grp = make(map[string]*Client)
		g.groups[conversationID] = grp
	}
	grp[c.Session.ConnID] = c

	convs := g.byConn[c.Session.ConnID]
	if convs == nil {
		convs = make(map[string]struct{})
		g.byConn[c.Session.ConnID] = convs
	}
	convs[conversationID] = struct{}{}
	return nil
}

// Leave removes the connection from the group. Leaving a room one is not in
// is a no-op.
func (g *Rooms) Leave(connID, conversationID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.leaveLocked(connID, conversationID)
}

// LeaveAll removes the connection from every group it joined and returns the
// affected conversation ids. Used for disconnect reconciliation.
func (g *Rooms) LeaveAll(connID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	convs := g.byConn[connID]
	if len(convs) == 0 {
		delete(g.byConn, connID)
		return nil
	}
	out := make([]string, 0, len(convs))
	for conversationID := range convs {
		out = append(out, conversationID)
		g.leaveLocked(connID, conversationID)
	}
	return out
}

func (g *Rooms) leaveLocked(connID, conversationID string) {
	if grp := g.groups[conversationID]; grp != nil {
		delete(grp, connID)
		if len(grp) == 0 {
			delete(g.groups, conversationID)
		}
	}
	if convs := g.byConn[connID]; convs != nil {
		delete(convs, conversationID)
		if len(convs) == 0 {
			delete(g.byConn, connID)
		}
	}
}

// MembersOf returns the connections currently joined to the conversation.
func (g *Rooms) MembersOf(conversationID string) []*Client {
	g.mu.RLock()
	defer g.mu.RUnlock()
	grp := g.groups[conversationID]
	if len(grp) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(grp))
	for _, c := range grp {
		out = append(out, c)
	}
	return out
}

// UserJoined reports whether any of the user's connections is in the group.
func (g *Rooms) UserJoined(conversationID, userID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, c := range g.groups[conversationID] {
		if c.Session.UserID == userID {
			return true
		}
	}
	return false
}

// Contains reports whether the connection has joined the conversation.
func (g *Rooms) Contains(conversationID, connID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	grp := g.groups[conversationID]
	if grp == nil {
		return false
	}
	_, ok := grp[connID]
	return ok
}
