package storage

import (
	"context"
	"sync"
	"time"

	"ChatWave/service/chat"
	"ChatWave/tools/errs"
	"ChatWave/tools/ids"
)

// MemStore is a map-backed MessageStore. It backs the gateway when no Mongo
// URI is configured and doubles as the store in tests.
type MemStore struct {
	mu   sync.RWMutex
	msgs map[string]*chat.Message
}

func NewMemStore() *MemStore {
	return &MemStore{msgs: make(map[string]*chat.Message)}
}

func (s *MemStore) Create(_ context.Context, conversationID string, sender chat.Identity, content string, typ chat.MessageType) (*chat.Message, error) {
	now := time.Now().UnixMilli()
	m := &chat.Message{
		ID:             ids.GenerateString(),
		ConversationID: conversationID,
		Sender:         sender,
		Content:        content,
		Type:           typ,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.mu.Lock()
	s.msgs[m.ID] = m
	s.mu.Unlock()
	out := *m
	return &out, nil
}

func (s *MemStore) Get(_ context.Context, messageID string) (*chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.msgs[messageID]
	if !ok {
		return nil, errs.ErrNotFound.WrapMsg("message", "id", messageID)
	}
	out := *m
	return &out, nil
}

func (s *MemStore) MarkEdited(_ context.Context, messageID, actorID, content string) (*chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[messageID]
	if !ok {
		return nil, errs.ErrNotFound.WrapMsg("message", "id", messageID)
	}
	if m.Deleted {
		return nil, errs.ErrInvalidState.WrapMsg("message is deleted", "id", messageID)
	}
	if m.Sender.ID != actorID {
		return nil, errs.ErrForbidden.WrapMsg("only the sender may edit", "id", messageID)
	}
	m.Content = content
	m.Edited = true
	m.UpdatedAt = time.Now().UnixMilli()
	out := *m
	return &out, nil
}

func (s *MemStore) MarkDeleted(_ context.Context, messageID, actorID string) (*chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[messageID]
	if !ok {
		return nil, errs.ErrNotFound.WrapMsg("message", "id", messageID)
	}
	if m.Deleted {
		return nil, errs.ErrInvalidState.WrapMsg("message already deleted", "id", messageID)
	}
	if m.Sender.ID != actorID {
		return nil, errs.ErrForbidden.WrapMsg("only the sender may delete", "id", messageID)
	}
	m.Content = chat.Tombstone
	m.Deleted = true
	m.UpdatedAt = time.Now().UnixMilli()
	out := *m
	return &out, nil
}

// MemMembership is a map-backed MembershipChecker for dev mode and tests.
type MemMembership struct {
	mu    sync.RWMutex
	convs map[string]map[string]struct{} // conversation_id -> user_ids
}

func NewMemMembership() *MemMembership {
	return &MemMembership{convs: make(map[string]map[string]struct{})}
}

func (m *MemMembership) AddParticipant(conversationID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := m.convs[conversationID]
	if users == nil {
		users = make(map[string]struct{})
		m.convs[conversationID] = users
	}
	users[userID] = struct{}{}
}

func (m *MemMembership) IsParticipant(_ context.Context, conversationID, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := m.convs[conversationID]
	if users == nil {
		return false, nil
	}
	_, ok := users[userID]
	return ok, nil
}
