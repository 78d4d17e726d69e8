package core

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/pingline/pingline-server/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// noEvent drains everything currently queued and fails if any event of the
// given kind shows up.
func noEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()

	time.Sleep(50 * time.Millisecond)
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event kind %v: %+v", kind, ev)
			}
		default:
			return
		}
	}
}

// fakeStore is an in-memory store.Store for hub tests.
type fakeStore struct {
	mu       sync.Mutex
	users    map[int64]*store.User
	messages []*store.Message
	nextMsg  int64

	failSave  bool
	failUsers bool
}

func newFakeStore(usernames ...string) *fakeStore {
	fs := &fakeStore{users: make(map[int64]*store.User)}
	for i, name := range usernames {
		id := int64(i + 1)
		fs.users[id] = &store.User{ID: id, Username: name}
	}
	return fs
}

func (f *fakeStore) CreateUser(_ context.Context, username, passwordHash string) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := int64(len(f.users) + 1)
	u := &store.User{ID: id, Username: username, PasswordHash: passwordHash}
	f.users[id] = u
	return u, nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id int64) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) GetUserByUsername(_ context.Context, username string) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListUsersExcept(_ context.Context, id int64) ([]*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUsers {
		return nil, store.ErrNotFound
	}
	users := make([]*store.User, 0, len(f.users))
	for _, u := range f.users {
		if u.ID != id {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (f *fakeStore) SetOnline(_ context.Context, id int64, online bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		u.Online = online
	}
	return nil
}

func (f *fakeStore) SaveMessage(_ context.Context, msg *store.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return store.ErrNotFound
	}
	f.nextMsg++
	msg.ID = f.nextMsg
	saved := *msg
	f.messages = append(f.messages, &saved)
	return nil
}

func (f *fakeStore) ListConversation(_ context.Context, userA, userB int64) ([]*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*store.Message, 0)
	for _, m := range f.messages {
		if (m.SenderID == userA && m.ReceiverID == userB) ||
			(m.SenderID == userB && m.ReceiverID == userA) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) savedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}
