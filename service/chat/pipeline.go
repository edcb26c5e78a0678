package chat

import (
	"context"
	"sync"

	"ChatWave/tools/errs"
)

// Pipeline runs the send/edit/delete state machine: authorize, persist, then
// fan the resulting event out to the conversation's joined connections. A
// per-conversation mutex holds each action to completion so delivery order
// matches the order mutations were accepted by the store. Conversations do
// not contend with each other.
type Pipeline struct {
	store   MessageStore
	members MembershipChecker
	rooms   *Rooms
	fanout  *Fanout
	relay   EventRelay // optional

	mu        sync.Mutex
	convLocks map[string]*sync.Mutex
}

func NewPipeline(store MessageStore, members MembershipChecker, rooms *Rooms, fanout *Fanout) *Pipeline {
	return &Pipeline{
		store:     store,
		members:   members,
		rooms:     rooms,
		fanout:    fanout,
		convLocks: make(map[string]*sync.Mutex),
	}
}

// SetRelay attaches an optional external event mirror. Must be called before
// the server starts accepting connections.
func (p *Pipeline) SetRelay(r EventRelay) { p.relay = r }

// Send persists a new message and broadcasts message:new.
func (p *Pipeline) Send(ctx context.Context, sess *Session, conversationID, content string, typ MessageType) (*Message, error) {
	if conversationID == "" || content == "" {
		return nil, errs.ErrArgs.WrapMsg("conversationId and content are required")
	}
	switch typ {
	case MessageText, MessageImage, MessageVideo, MessageFile:
	case "":
		typ = MessageText
	default:
		return nil, errs.ErrArgs.WrapMsg("unknown message type", "type", typ)
	}

	lock := p.lockConv(conversationID)
	lock.Lock()
	defer lock.Unlock()

	if err := p.authorize(ctx, conversationID, sess.UserID); err != nil {
		return nil, err
	}
	msg, err := p.store.Create(ctx, conversationID, sess.Identity(), content, typ)
	if err != nil {
		return nil, err
	}
	p.broadcast(EventMessageNew, msg)
	return msg, nil
}

// Edit persists a content change and broadcasts message:edit. The store
// rejects edits by non-senders and edits of deleted messages.
func (p *Pipeline) Edit(ctx context.Context, sess *Session, messageID, content string) (*Message, error) {
	if messageID == "" || content == "" {
		return nil, errs.ErrArgs.WrapMsg("messageId and content are required")
	}
	conversationID, err := p.conversationOf(ctx, messageID)
	if err != nil {
		return nil, err
	}

	lock := p.lockConv(conversationID)
	lock.Lock()
	defer lock.Unlock()

	if err := p.authorize(ctx, conversationID, sess.UserID); err != nil {
		return nil, err
	}
	msg, err := p.store.MarkEdited(ctx, messageID, sess.UserID, content)
	if err != nil {
		return nil, err
	}
	p.broadcast(EventMessageEdit, msg)
	return msg, nil
}

// Delete tombstones the message and broadcasts message:delete. Deleting an
// already-deleted message fails with invalid state and broadcasts nothing.
func (p *Pipeline) Delete(ctx context.Context, sess *Session, messageID string) (*Message, error) {
	if messageID == "" {
		return nil, errs.ErrArgs.WrapMsg("messageId is required")
	}
	conversationID, err := p.conversationOf(ctx, messageID)
	if err != nil {
		return nil, err
	}

	lock := p.lockConv(conversationID)
	lock.Lock()
	defer lock.Unlock()

	if err := p.authorize(ctx, conversationID, sess.UserID); err != nil {
		return nil, err
	}
	msg, err := p.store.MarkDeleted(ctx, messageID, sess.UserID)
	if err != nil {
		return nil, err
	}
	p.broadcast(EventMessageDelete, msg)
	return msg, nil
}

func (p *Pipeline) authorize(ctx context.Context, conversationID, userID string) error {
	ok, err := p.members.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return errs.WrapMsg(err, "membership check", "conversation", conversationID)
	}
	if !ok {
		return errs.ErrNotAuthorized.WrapMsg("action refused",
			"conversation", conversationID, "user", userID)
	}
	return nil
}

func (p *Pipeline) conversationOf(ctx context.Context, messageID string) (string, error) {
	msg, err := p.store.Get(ctx, messageID)
	if err != nil {
		return "", err
	}
	return msg.ConversationID, nil
}

func (p *Pipeline) broadcast(typ string, msg *Message) {
	payload := buildMessageEvent(typ, msg)
	p.fanout.Broadcast(msg.ConversationID, p.rooms.MembersOf(msg.ConversationID), payload)
	if p.relay != nil {
		p.relay.Publish(msg.ConversationID, payload)
	}
}

func (p *Pipeline) lockConv(conversationID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock := p.convLocks[conversationID]
	if lock == nil {
		lock = &sync.Mutex{}
		p.convLocks[conversationID] = lock
	}
	return lock
}
