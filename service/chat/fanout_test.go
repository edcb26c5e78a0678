package chat

import (
	"testing"
)

func TestFanoutDelivers(t *testing.T) {
	f := NewFanout(2, 16)
	defer f.Close()

	c := testClient("c1", "u1")
	f.Broadcast("conv1", []*Client{c}, []byte(`{"type":"message:new"}`))

	ev := recvEvent(t, c)
	if ev.Type != EventMessageNew {
		t.Fatalf("expected %s, got %s", EventMessageNew, ev.Type)
	}
}

func TestFanoutBroadcastAfterClose(t *testing.T) {
	f := NewFanout(2, 16)
	f.Close()

	// shutdown race: a connection tearing down after Close must not panic
	c := testClient("c1", "u1")
	f.Broadcast("conv1", []*Client{c}, []byte(`{"type":"presence:update"}`))
	expectNoEvent(t, c)

	// repeated Close is a no-op
	f.Close()
}
