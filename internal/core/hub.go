package core

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pingline/pingline-server/internal/store"
)

// Hub routes direct messages and coordinates presence for all live
// connections. Each connection drives the hub from its own goroutine; the
// registry's lock is the only shared serialization point, and no store call
// is ever made while it is held.
type Hub struct {
	registry *Registry
	store    store.Store
	log      *zerolog.Logger

	// tsMu guards lastTS so message timestamps are non-decreasing even if
	// the wall clock steps backwards.
	tsMu   sync.Mutex
	lastTS time.Time
}

// NewHub creates a hub backed by the given store.
func NewHub(st store.Store, logger *zerolog.Logger) *Hub {
	return &Hub{
		registry: NewRegistry(),
		store:    st,
		log:      logger,
	}
}

// Registry exposes the presence registry for read-side consumers
// (e.g. the REST roster endpoint).
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Bind associates the client with the authenticated user identity, records
// the user online, announces the change to everyone, and delivers the
// initial roster to this client only.
//
// If another connection already serves the same user it is superseded:
// removed from the registry atomically by Register and force-closed here.
// A second Bind on the same connection is rejected; a client wishing to
// change identity must open a new connection.
func (h *Hub) Bind(ctx context.Context, c *Client, userID int64, username string) *CoreError {
	if c.Registered() {
		return coreError(ErrCodeBadRequest, "connection already registered")
	}
	if userID == 0 {
		return coreError(ErrCodeBadRequest, "user id is required")
	}

	c.userID = userID
	c.username = username

	if prior := h.registry.Register(userID, c); prior != nil {
		h.log.Info().
			Int64("user_id", userID).
			Str("old_conn", prior.ID).
			Str("new_conn", c.ID).
			Msg("connection superseded by newer registration")
		prior.TrySend(&Event{Kind: EventError, Error: coreError(ErrCodeSuperseded, "registered from another connection")})
		prior.Close()
	}

	// Best effort: the registry is the presence authority, the stored flag
	// only survives restarts for roster defaults.
	if err := h.store.SetOnline(ctx, userID, true); err != nil {
		h.log.Warn().Err(err).Int64("user_id", userID).Msg("failed to persist online flag")
	}

	h.announce(userID, username, true)

	roster, err := h.roster(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("failed to load roster")
		return coreError(ErrCodeStoreUnavailable, "failed to load roster")
	}
	c.TrySend(&Event{Kind: EventRoster, Roster: roster})

	h.log.Info().
		Int64("user_id", userID).
		Str("username", username).
		Str("conn", c.ID).
		Int("online", h.registry.Count()).
		Msg("user registered")
	return nil
}

// Disconnect releases the client's presence entry. The unregister is guarded
// by connection identity: if the user already re-registered from a newer
// connection, the stale disconnect leaves the new entry untouched and emits
// no offline event.
func (h *Hub) Disconnect(ctx context.Context, c *Client) {
	defer c.Close()

	if !c.Registered() {
		return
	}

	if !h.registry.Unregister(c.userID, c) {
		h.log.Debug().
			Int64("user_id", c.userID).
			Str("conn", c.ID).
			Msg("stale disconnect ignored")
		return
	}

	if err := h.store.SetOnline(ctx, c.userID, false); err != nil {
		h.log.Warn().Err(err).Int64("user_id", c.userID).Msg("failed to persist offline flag")
	}

	h.announce(c.userID, c.username, false)

	h.log.Info().
		Int64("user_id", c.userID).
		Str("conn", c.ID).
		Int("online", h.registry.Count()).
		Msg("user disconnected")
}

// SendDirect validates, persists and routes one direct message. Persistence
// happens before any delivery attempt; a store failure aborts the send and
// nothing is delivered. Delivery itself is best effort: if the receiver is
// offline the message stays retrievable via history only.
func (h *Hub) SendDirect(ctx context.Context, c *Client, receiverID int64, text string) *CoreError {
	if !c.Registered() {
		return coreError(ErrCodeNotRegistered, "register before sending messages")
	}
	if receiverID == 0 {
		return coreError(ErrCodeBadRequest, "receiver id is required")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return coreError(ErrCodeBadRequest, "message text is required")
	}

	record := &store.Message{
		SenderID:   c.userID,
		ReceiverID: receiverID,
		Body:       text,
		CreatedAt:  h.now(),
	}
	if err := h.store.SaveMessage(ctx, record); err != nil {
		h.log.Error().Err(err).
			Int64("sender_id", c.userID).
			Int64("receiver_id", receiverID).
			Msg("failed to persist message")
		return coreError(ErrCodeStoreUnavailable, "failed to save message")
	}

	if receiver := h.registry.Lookup(receiverID); receiver != nil {
		receiver.TrySend(&Event{
			Kind: EventDirectMessage,
			Message: Message{
				ID:         record.ID,
				SenderID:   record.SenderID,
				ReceiverID: record.ReceiverID,
				Text:       record.Body,
				CreatedAt:  record.CreatedAt,
			},
		})
	}

	return nil
}

// announce fans a presence change out to every registered connection,
// including the one whose status just changed. Dispatch is independent and
// non-blocking per recipient; a backed-up client drops the event instead of
// stalling the rest.
func (h *Hub) announce(userID int64, username string, online bool) {
	ev := &Event{
		Kind: EventPresence,
		User: RosterEntry{UserID: userID, Username: username, Online: online},
	}
	for _, c := range h.registry.Clients() {
		if !c.TrySend(ev) {
			h.log.Debug().Str("conn", c.ID).Msg("presence event dropped for slow consumer")
		}
	}
}

// roster builds the initial user list for a freshly registered client:
// every known user except the client itself, with liveness taken from the
// registry rather than the stored flag.
func (h *Hub) roster(ctx context.Context, userID int64) ([]RosterEntry, error) {
	users, err := h.store.ListUsersExcept(ctx, userID)
	if err != nil {
		return nil, err
	}

	roster := make([]RosterEntry, 0, len(users))
	for _, u := range users {
		roster = append(roster, RosterEntry{
			UserID:   u.ID,
			Username: u.Username,
			Online:   h.registry.Online(u.ID),
		})
	}
	return roster, nil
}

func (h *Hub) now() time.Time {
	h.tsMu.Lock()
	defer h.tsMu.Unlock()

	ts := time.Now().UTC()
	if ts.Before(h.lastTS) {
		ts = h.lastTS
	}
	h.lastTS = ts
	return ts
}
