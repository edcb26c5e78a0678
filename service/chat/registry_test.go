package chat

import (
	"testing"
	"time"
)

func testClient(connID, userID string) *Client {
	sess := &Session{
		ConnID:      connID,
		UserID:      userID,
		DisplayName: "user " + userID,
		AuthedAt:    time.Now(),
	}
	return newClient(sess, nil, 8)
}

func TestRegistryOnlineTransitionOnce(t *testing.T) {
	r := NewRegistry()

	c1 := testClient("c1", "u1")
	c2 := testClient("c2", "u1")

	if !r.Register(c1) {
		t.Fatal("first connection should report became online")
	}
	if r.Register(c2) {
		t.Fatal("second connection of the same user must not report became online")
	}
	if !r.IsOnline("u1") {
		t.Fatal("u1 should be online with two connections")
	}

	if _, becameOffline := r.Unregister("c2"); becameOffline {
		t.Fatal("closing one of two connections must not report became offline")
	}
	if !r.IsOnline("u1") {
		t.Fatal("u1 should still be online with one connection left")
	}

	sess, becameOffline := r.Unregister("c1")
	if sess == nil || sess.UserID != "u1" {
		t.Fatalf("expected freed session for u1, got %+v", sess)
	}
	if !becameOffline {
		t.Fatal("closing the last connection must report became offline")
	}
	if r.IsOnline("u1") {
		t.Fatal("u1 should be offline")
	}
}

func TestRegistryUnregisterUnknown(t *testing.T) {
	r := NewRegistry()
	sess, becameOffline := r.Unregister("missing")
	if sess != nil || becameOffline {
		t.Fatalf("unknown conn id must return (nil, false), got (%+v, %v)", sess, becameOffline)
	}
}

func TestRegistryRegisterIdempotent(t *testing.T) {
	r := NewRegistry()
	c := testClient("c1", "u1")

	if !r.Register(c) {
		t.Fatal("first register should report became online")
	}
	if r.Register(c) {
		t.Fatal("re-registering the same conn id must not double-count the online transition")
	}
	if _, becameOffline := r.Unregister("c1"); !becameOffline {
		t.Fatal("single unregister should still report became offline")
	}
	if r.IsOnline("u1") {
		t.Fatal("u1 should be offline after the only connection closed")
	}
}

func TestRegistryListOnline(t *testing.T) {
	r := NewRegistry()
	r.Register(testClient("c1", "u1"))
	r.Register(testClient("c2", "u2"))
	r.Register(testClient("c3", "u2"))

	online := r.ListOnline()
	if len(online) != 2 {
		t.Fatalf("expected 2 online users, got %v", online)
	}
	if got := len(r.ConnsOf("u2")); got != 2 {
		t.Fatalf("expected 2 connections for u2, got %d", got)
	}
	if got := len(r.Snapshot()); got != 3 {
		t.Fatalf("expected 3 connections total, got %d", got)
	}
}
