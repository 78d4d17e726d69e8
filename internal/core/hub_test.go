package core

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestHub(fs *fakeStore) *Hub {
	logger := zerolog.Nop()
	return NewHub(fs, &logger)
}

func TestBindDeliversRosterAndAnnounces(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore("alice", "bob")
	hub := newTestHub(fs)

	alice := NewClient("ca")
	if cerr := hub.Bind(ctx, alice, 1, "alice"); cerr != nil {
		t.Fatalf("bind alice: %v", cerr)
	}

	// The registering session receives its own presence change.
	presence := mustEvent(t, alice.Events, EventPresence)
	if presence.User.UserID != 1 || !presence.User.Online {
		t.Fatalf("unexpected presence event: %+v", presence)
	}

	roster := mustEvent(t, alice.Events, EventRoster)
	if len(roster.Roster) != 1 || roster.Roster[0].Username != "bob" || roster.Roster[0].Online {
		t.Fatalf("unexpected roster: %+v", roster.Roster)
	}

	bob := NewClient("cb")
	if cerr := hub.Bind(ctx, bob, 2, "bob"); cerr != nil {
		t.Fatalf("bind bob: %v", cerr)
	}

	// Everyone already registered sees bob come online.
	bobOnline := mustEvent(t, alice.Events, EventPresence)
	if bobOnline.User.UserID != 2 || !bobOnline.User.Online {
		t.Fatalf("unexpected presence event: %+v", bobOnline)
	}

	// Bob's roster reflects the live registry, not the stored flag.
	bobRoster := mustEvent(t, bob.Events, EventRoster)
	if len(bobRoster.Roster) != 1 || bobRoster.Roster[0].Username != "alice" || !bobRoster.Roster[0].Online {
		t.Fatalf("unexpected roster: %+v", bobRoster.Roster)
	}
}

func TestBindRejectsSecondRegisterOnSameConnection(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub(newFakeStore("alice"))

	alice := NewClient("ca")
	if cerr := hub.Bind(ctx, alice, 1, "alice"); cerr != nil {
		t.Fatalf("bind: %v", cerr)
	}

	cerr := hub.Bind(ctx, alice, 1, "alice")
	if cerr == nil || cerr.Code != ErrCodeBadRequest {
		t.Fatalf("expected bad_request, got %v", cerr)
	}
}

func TestBindSupersedesOldConnection(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub(newFakeStore("alice", "bob"))

	old := NewClient("c-old")
	if cerr := hub.Bind(ctx, old, 1, "alice"); cerr != nil {
		t.Fatalf("bind old: %v", cerr)
	}

	fresh := NewClient("c-new")
	if cerr := hub.Bind(ctx, fresh, 1, "alice"); cerr != nil {
		t.Fatalf("bind fresh: %v", cerr)
	}

	ev := mustEvent(t, old.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeSuperseded {
		t.Fatalf("expected superseded error, got %+v", ev)
	}
	select {
	case <-old.Done():
	default:
		t.Fatalf("expected superseded client to be closed")
	}

	if got := hub.Registry().Lookup(1); got != fresh {
		t.Fatalf("registry points at %v, want the fresh client", got)
	}

	// Drain the fresh client's own registration events.
	mustEvent(t, fresh.Events, EventPresence)
	mustEvent(t, fresh.Events, EventRoster)

	// The old connection's disconnect arrives late; the new registration
	// must survive it and no offline event may be announced.
	hub.Disconnect(ctx, old)
	if got := hub.Registry().Lookup(1); got != fresh {
		t.Fatalf("stale disconnect removed the fresh registration")
	}
	noEvent(t, fresh.Events, EventPresence)
}

func TestDisconnectAnnouncesOffline(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub(newFakeStore("alice", "bob"))

	alice := NewClient("ca")
	bob := NewClient("cb")
	if cerr := hub.Bind(ctx, alice, 1, "alice"); cerr != nil {
		t.Fatalf("bind alice: %v", cerr)
	}
	if cerr := hub.Bind(ctx, bob, 2, "bob"); cerr != nil {
		t.Fatalf("bind bob: %v", cerr)
	}
	mustEvent(t, alice.Events, EventPresence) // alice online
	mustEvent(t, alice.Events, EventPresence) // bob online

	hub.Disconnect(ctx, bob)

	offline := mustEvent(t, alice.Events, EventPresence)
	if offline.User.UserID != 2 || offline.User.Online {
		t.Fatalf("unexpected presence event: %+v", offline)
	}
	if hub.Registry().Lookup(2) != nil {
		t.Fatalf("expected bob removed from registry")
	}
}

func TestDisconnectBeforeRegisterHasNoEffect(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub(newFakeStore("alice", "bob"))

	alice := NewClient("ca")
	if cerr := hub.Bind(ctx, alice, 1, "alice"); cerr != nil {
		t.Fatalf("bind alice: %v", cerr)
	}
	mustEvent(t, alice.Events, EventPresence)

	ghost := NewClient("cg")
	hub.Disconnect(ctx, ghost)

	noEvent(t, alice.Events, EventPresence)
}

func TestSendDirectRejectsUnregisteredSender(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore("alice", "bob")
	hub := newTestHub(fs)

	stranger := NewClient("cs")
	cerr := hub.SendDirect(ctx, stranger, 2, "hi")
	if cerr == nil || cerr.Code != ErrCodeNotRegistered {
		t.Fatalf("expected not_registered, got %v", cerr)
	}
	if fs.savedCount() != 0 {
		t.Fatalf("expected no persisted record")
	}
}

func TestSendDirectRejectsEmptyText(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore("alice", "bob")
	hub := newTestHub(fs)

	alice := NewClient("ca")
	bob := NewClient("cb")
	if cerr := hub.Bind(ctx, alice, 1, "alice"); cerr != nil {
		t.Fatalf("bind alice: %v", cerr)
	}
	if cerr := hub.Bind(ctx, bob, 2, "bob"); cerr != nil {
		t.Fatalf("bind bob: %v", cerr)
	}

	for _, text := range []string{"", "   ", "\t\n"} {
		cerr := hub.SendDirect(ctx, alice, 2, text)
		if cerr == nil || cerr.Code != ErrCodeBadRequest {
			t.Fatalf("text %q: expected bad_request, got %v", text, cerr)
		}
	}
	if fs.savedCount() != 0 {
		t.Fatalf("expected no persisted record, got %d", fs.savedCount())
	}
	noEvent(t, bob.Events, EventDirectMessage)
}

func TestSendDirectOfflineReceiverPersistsWithoutDelivery(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore("alice", "bob")
	hub := newTestHub(fs)

	alice := NewClient("ca")
	if cerr := hub.Bind(ctx, alice, 1, "alice"); cerr != nil {
		t.Fatalf("bind alice: %v", cerr)
	}

	if cerr := hub.SendDirect(ctx, alice, 2, "hi bob"); cerr != nil {
		t.Fatalf("send: %v", cerr)
	}

	if fs.savedCount() != 1 {
		t.Fatalf("expected exactly one persisted record, got %d", fs.savedCount())
	}
	noEvent(t, alice.Events, EventDirectMessage)

	history, err := fs.ListConversation(ctx, 1, 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Body != "hi bob" {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestSendDirectOnlineDeliversToReceiverOnly(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore("alice", "bob", "carol")
	hub := newTestHub(fs)

	alice := NewClient("ca")
	bob := NewClient("cb")
	carol := NewClient("cc")
	for _, b := range []struct {
		c    *Client
		id   int64
		name string
	}{{alice, 1, "alice"}, {bob, 2, "bob"}, {carol, 3, "carol"}} {
		if cerr := hub.Bind(ctx, b.c, b.id, b.name); cerr != nil {
			t.Fatalf("bind %s: %v", b.name, cerr)
		}
	}

	if cerr := hub.SendDirect(ctx, alice, 2, "  hi bob  "); cerr != nil {
		t.Fatalf("send: %v", cerr)
	}

	ev := mustEvent(t, bob.Events, EventDirectMessage)
	if ev.Message.SenderID != 1 || ev.Message.ReceiverID != 2 || ev.Message.Text != "hi bob" {
		t.Fatalf("unexpected message event: %+v", ev.Message)
	}
	if ev.Message.ID == 0 {
		t.Fatalf("expected persisted ID on delivered message")
	}

	if fs.savedCount() != 1 {
		t.Fatalf("expected exactly one persisted record, got %d", fs.savedCount())
	}
	noEvent(t, carol.Events, EventDirectMessage)
	noEvent(t, alice.Events, EventDirectMessage)
}

func TestSendDirectStoreFailureAbortsDelivery(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore("alice", "bob")
	hub := newTestHub(fs)

	alice := NewClient("ca")
	bob := NewClient("cb")
	if cerr := hub.Bind(ctx, alice, 1, "alice"); cerr != nil {
		t.Fatalf("bind alice: %v", cerr)
	}
	if cerr := hub.Bind(ctx, bob, 2, "bob"); cerr != nil {
		t.Fatalf("bind bob: %v", cerr)
	}

	fs.mu.Lock()
	fs.failSave = true
	fs.mu.Unlock()

	cerr := hub.SendDirect(ctx, alice, 2, "hi")
	if cerr == nil || cerr.Code != ErrCodeStoreUnavailable {
		t.Fatalf("expected store_unavailable, got %v", cerr)
	}
	if fs.savedCount() != 0 {
		t.Fatalf("expected no persisted record")
	}
	noEvent(t, bob.Events, EventDirectMessage)
}

func TestPresenceFanoutReachesEveryRegisteredSession(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub(newFakeStore("alice", "bob", "carol"))

	clients := []*Client{NewClient("ca"), NewClient("cb")}
	if cerr := hub.Bind(ctx, clients[0], 1, "alice"); cerr != nil {
		t.Fatalf("bind alice: %v", cerr)
	}
	if cerr := hub.Bind(ctx, clients[1], 2, "bob"); cerr != nil {
		t.Fatalf("bind bob: %v", cerr)
	}

	// Drain the registration events.
	mustEvent(t, clients[0].Events, EventPresence)
	mustEvent(t, clients[0].Events, EventPresence)
	mustEvent(t, clients[1].Events, EventPresence)

	carol := NewClient("cc")
	if cerr := hub.Bind(ctx, carol, 3, "carol"); cerr != nil {
		t.Fatalf("bind carol: %v", cerr)
	}

	// Every registered session, including carol's own, sees exactly one
	// online transition for carol.
	for i, c := range append(clients, carol) {
		ev := mustEvent(t, c.Events, EventPresence)
		if ev.User.UserID != 3 || !ev.User.Online {
			t.Fatalf("client %d: unexpected presence event %+v", i, ev)
		}
		noEvent(t, c.Events, EventPresence)
	}
}

func TestSlowConsumerDoesNotBlockFanout(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub(newFakeStore("alice", "bob", "carol"))

	slow := NewClient("cs")
	if cerr := hub.Bind(ctx, slow, 1, "alice"); cerr != nil {
		t.Fatalf("bind: %v", cerr)
	}
	// Fill the slow client's buffer; nobody drains it.
	for i := 0; i < cap(slow.Events)+8; i++ {
		slow.TrySend(&Event{Kind: EventPresence})
	}

	bob := NewClient("cb")
	done := make(chan struct{})
	go func() {
		defer close(done)
		if cerr := hub.Bind(ctx, bob, 2, "bob"); cerr != nil {
			t.Errorf("bind bob: %v", cerr)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("fanout blocked on a slow consumer")
	}
	mustEvent(t, bob.Events, EventRoster)
}
