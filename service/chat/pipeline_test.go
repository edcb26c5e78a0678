package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ChatWave/tools/decode"
	"ChatWave/tools/errs"
	"ChatWave/tools/ids"
)

type fakeStore struct {
	mu   sync.Mutex
	msgs map[string]*Message
}

func newFakeStore() *fakeStore {
	return &fakeStore{msgs: make(map[string]*Message)}
}

func (s *fakeStore) Create(_ context.Context, conversationID string, sender Identity, content string, typ MessageType) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UnixMilli()
	m := &Message{
		ID:             ids.GenerateString(),
		ConversationID: conversationID,
		Sender:         sender,
		Content:        content,
		Type:           typ,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.msgs[m.ID] = m
	out := *m
	return &out, nil
}

func (s *fakeStore) Get(_ context.Context, messageID string) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[messageID]
	if !ok {
		return nil, errs.ErrNotFound.WrapMsg("message", "id", messageID)
	}
	out := *m
	return &out, nil
}

func (s *fakeStore) MarkEdited(_ context.Context, messageID, actorID, content string) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[messageID]
	if !ok {
		return nil, errs.ErrNotFound.WrapMsg("message", "id", messageID)
	}
	if m.Deleted {
		return nil, errs.ErrInvalidState.WrapMsg("message is deleted")
	}
	if m.Sender.ID != actorID {
		return nil, errs.ErrForbidden.WrapMsg("only the sender may edit")
	}
	m.Content = content
	m.Edited = true
	m.UpdatedAt = time.Now().UnixMilli()
	out := *m
	return &out, nil
}

func (s *fakeStore) MarkDeleted(_ context.Context, messageID, actorID string) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[messageID]
	if !ok {
		return nil, errs.ErrNotFound.WrapMsg("message", "id", messageID)
	}
	if m.Deleted {
		return nil, errs.ErrInvalidState.WrapMsg("message already deleted")
	}
	if m.Sender.ID != actorID {
		return nil, errs.ErrForbidden.WrapMsg("only the sender may delete")
	}
	m.Content = Tombstone
	m.Deleted = true
	m.UpdatedAt = time.Now().UnixMilli()
	out := *m
	return &out, nil
}

// recvEvent waits for one event on the client's send queue and parses it.
func recvEvent(t *testing.T, c *Client) *Frame {
	t.Helper()
	select {
	case b := <-c.send:
		f, err := ParseFrameJSON(b)
		if err != nil {
			t.Fatalf("parse event: %v", err)
		}
		return f
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func expectNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case b := <-c.send:
		t.Fatalf("unexpected event delivered: %s", b)
	case <-time.After(100 * time.Millisecond):
	}
}

func eventMessage(t *testing.T, f *Frame) *Message {
	t.Helper()
	m, err := decode.Map[Message](f.Data)
	if err != nil {
		t.Fatalf("decode message event: %v", err)
	}
	return m
}

func newTestPipeline(members *fakeMembership) (*Pipeline, *Rooms) {
	rooms := NewRooms(members)
	return NewPipeline(newFakeStore(), members, rooms, NewFanout(2, 64)), rooms
}

func TestPipelineSendDeliversToJoinedOnly(t *testing.T) {
	members := newFakeMembership()
	for _, u := range []string{"u1", "u2", "u3"} {
		members.add("conv1", u)
	}
	p, rooms := newTestPipeline(members)
	ctx := context.Background()

	cX := testClient("cX", "u1")
	cJoined := testClient("cJ", "u2")
	cNotJoined := testClient("cN", "u3") // participant, but never joined the live room
	for _, c := range []*Client{cX, cJoined} {
		if err := rooms.Join(ctx, c, "conv1"); err != nil {
			t.Fatalf("join: %v", err)
		}
	}

	sent, err := p.Send(ctx, cX.Session, "conv1", "hello", MessageText)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	for _, c := range []*Client{cX, cJoined} {
		f := recvEvent(t, c)
		if f.Type != EventMessageNew {
			t.Fatalf("expected %s, got %s", EventMessageNew, f.Type)
		}
		m := eventMessage(t, f)
		if m.ID != sent.ID || m.Content != "hello" || m.Sender.ID != "u1" || m.Edited {
			t.Fatalf("unexpected message event: %+v", m)
		}
	}
	expectNoEvent(t, cNotJoined)
}

func TestPipelineSendUnauthorized(t *testing.T) {
	members := newFakeMembership()
	members.add("conv1", "u1")
	p, rooms := newTestPipeline(members)
	ctx := context.Background()

	cMember := testClient("c1", "u1")
	if err := rooms.Join(ctx, cMember, "conv1"); err != nil {
		t.Fatalf("join: %v", err)
	}

	outsider := &Session{ConnID: "c9", UserID: "u9"}
	_, err := p.Send(ctx, outsider, "conv1", "sneaky", MessageText)
	if !errors.Is(err, errs.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	expectNoEvent(t, cMember)
}

func TestPipelineEditFlow(t *testing.T) {
	members := newFakeMembership()
	members.add("conv1", "u1")
	members.add("conv1", "u2")
	p, rooms := newTestPipeline(members)
	ctx := context.Background()

	cX := testClient("cX", "u1")
	cOther := testClient("cO", "u2")
	for _, c := range []*Client{cX, cOther} {
		if err := rooms.Join(ctx, c, "conv1"); err != nil {
			t.Fatalf("join: %v", err)
		}
	}

	sent, err := p.Send(ctx, cX.Session, "conv1", "hello", MessageText)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	recvEvent(t, cX)
	recvEvent(t, cOther)

	edited, err := p.Edit(ctx, cX.Session, sent.ID, "hello there")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if !edited.Edited || edited.Content != "hello there" {
		t.Fatalf("unexpected edit result: %+v", edited)
	}
	for _, c := range []*Client{cX, cOther} {
		f := recvEvent(t, c)
		if f.Type != EventMessageEdit {
			t.Fatalf("expected %s, got %s", EventMessageEdit, f.Type)
		}
		m := eventMessage(t, f)
		if !m.Edited || m.Content != "hello there" {
			t.Fatalf("unexpected edit event: %+v", m)
		}
	}
}

func TestPipelineEditByNonSender(t *testing.T) {
	members := newFakeMembership()
	members.add("conv1", "u1")
	members.add("conv1", "u2")
	p, rooms := newTestPipeline(members)
	ctx := context.Background()

	cX := testClient("cX", "u1")
	if err := rooms.Join(ctx, cX, "conv1"); err != nil {
		t.Fatalf("join: %v", err)
	}
	sent, err := p.Send(ctx, cX.Session, "conv1", "hello", MessageText)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	recvEvent(t, cX)

	intruder := &Session{ConnID: "c2", UserID: "u2"}
	if _, err := p.Edit(ctx, intruder, sent.ID, "hijacked"); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	expectNoEvent(t, cX)
}

func TestPipelineDeleteTombstoneOnce(t *testing.T) {
	members := newFakeMembership()
	members.add("conv1", "u1")
	p, rooms := newTestPipeline(members)
	ctx := context.Background()

	cX := testClient("cX", "u1")
	if err := rooms.Join(ctx, cX, "conv1"); err != nil {
		t.Fatalf("join: %v", err)
	}
	sent, err := p.Send(ctx, cX.Session, "conv1", "hello", MessageText)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	recvEvent(t, cX)

	deleted, err := p.Delete(ctx, cX.Session, sent.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted.Deleted || deleted.Content != Tombstone {
		t.Fatalf("unexpected delete result: %+v", deleted)
	}
	f := recvEvent(t, cX)
	if f.Type != EventMessageDelete {
		t.Fatalf("expected %s, got %s", EventMessageDelete, f.Type)
	}
	if m := eventMessage(t, f); m.Content != Tombstone || !m.Deleted {
		t.Fatalf("unexpected delete event: %+v", m)
	}

	// second delete: rejected, nothing broadcast
	if _, err := p.Delete(ctx, cX.Session, sent.ID); !errors.Is(err, errs.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	expectNoEvent(t, cX)

	// editing a deleted message is also rejected
	if _, err := p.Edit(ctx, cX.Session, sent.ID, "resurrect"); !errors.Is(err, errs.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestPipelineEditUnknownMessage(t *testing.T) {
	p, _ := newTestPipeline(newFakeMembership())
	sess := &Session{ConnID: "c1", UserID: "u1"}
	if _, err := p.Edit(context.Background(), sess, "missing", "x"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPipelineSendBadArgs(t *testing.T) {
	p, _ := newTestPipeline(newFakeMembership())
	sess := &Session{ConnID: "c1", UserID: "u1"}

	if _, err := p.Send(context.Background(), sess, "", "hi", MessageText); !errors.Is(err, errs.ErrArgs) {
		t.Fatalf("expected ErrArgs for empty conversation, got %v", err)
	}
	if _, err := p.Send(context.Background(), sess, "conv1", "hi", "carrier-pigeon"); !errors.Is(err, errs.ErrArgs) {
		t.Fatalf("expected ErrArgs for unknown type, got %v", err)
	}
}
