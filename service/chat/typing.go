package chat

import (
	"sync"
)

// Typing tracks the ephemeral per-conversation sets of currently-typing
// users. Nothing here is persisted; process restart clears everything.
type Typing struct {
	mu     sync.Mutex
	byConv map[string]map[string]struct{} // conversation_id -> user_ids
	byUser map[string]map[string]struct{} // user_id -> conversation_ids
}

func NewTyping() *Typing {
	return &Typing{
		byConv: make(map[string]map[string]struct{}),
		byUser: make(map[string]map[string]struct{}),
	}
}

// Start flags the user as typing in the conversation. Returns false if the
// flag was already set (no re-broadcast needed).
func (t *Typing) Start(conversationID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	users := t.byConv[conversationID]
	if users == nil {
		users = make(map[string]struct{})
		t.byConv[conversationID] = users
	}
	if _, ok := users[userID]; ok {
		return false
	}
	users[userID] = struct{}{}

	convs := t.byUser[userID]
	if convs == nil {
		convs = make(map[string]struct{})
		t.byUser[userID] = convs
	}
	convs[conversationID] = struct{}{}
	return true
}

// Stop clears the flag. Removing an absent entry is a no-op and returns
// false.
func (t *Typing) Stop(conversationID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopLocked(conversationID, userID)
}

func (t *Typing) stopLocked(conversationID, userID string) bool {
	users := t.byConv[conversationID]
	if users == nil {
		return false
	}
	if _, ok := users[userID]; !ok {
		return false
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(t.byConv, conversationID)
	}
	if convs := t.byUser[userID]; convs != nil {
		delete(convs, conversationID)
		if len(convs) == 0 {
			delete(t.byUser, userID)
		}
	}
	return true
}

// Disconnect clears the user from every conversation's typing set and returns
// the conversations that were affected, so the caller can broadcast "stopped"
// in each one.
func (t *Typing) Disconnect(userID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	convs := t.byUser[userID]
	if len(convs) == 0 {
		return nil
	}
	out := make([]string, 0, len(convs))
	for conversationID := range convs {
		out = append(out, conversationID)
	}
	for _, conversationID := range out {
		t.stopLocked(conversationID, userID)
	}
	return out
}

// IsTyping is a pure read.
func (t *Typing) IsTyping(conversationID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	users := t.byConv[conversationID]
	if users == nil {
		return false
	}
	_, ok := users[userID]
	return ok
}
