package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pingline/pingline-server/internal/auth"
	"github.com/pingline/pingline-server/internal/config"
	"github.com/pingline/pingline-server/internal/core"
	"github.com/pingline/pingline-server/internal/proto"
)

// errSuperseded signals that a newer connection took over this identity.
var errSuperseded = errors.New("superseded by newer connection")

// WSHandler upgrades HTTP connections and bridges them to core.Client.
// The JWT is validated before the upgrade; the register event then binds the
// connection to the identity carried by the token.
type WSHandler struct {
	hub  *core.Hub
	auth *auth.Service
	cfg  *config.Config
	log  *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, authService *auth.Service, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, auth: authService, cfg: cfg, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	claims, err := h.authenticate(r)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws auth rejected")
		stdhttp.Error(w, "unauthorized", stdhttp.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	client := core.NewClient(uuid.NewString())

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Presence cleanup must run even after the request context is gone.
	defer func() {
		dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer dcancel()
		h.hub.Disconnect(dctx, client)
	}()

	limiter := newRateLimiter(h.cfg.MessageRateLimit)
	limiter.startReset(ctx.Done())

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, claims, limiter)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	client.Close()
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if errors.Is(err, errSuperseded) {
		reason = "superseded"
		err = nil
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// authenticate extracts the JWT from the token query parameter or the
// Authorization header.
func (h *WSHandler) authenticate(r *stdhttp.Request) (*auth.Claims, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		header := r.Header.Get("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			token = parts[1]
		}
	}
	if token == "" {
		return nil, errors.New("missing token")
	}
	return h.auth.ValidateToken(token)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, claims *auth.Claims, limiter *rateLimiter) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		if !limiter.allow() {
			client.TrySend(&core.Event{Kind: core.EventError, Error: &core.CoreError{
				Code:    core.ErrCodeRateLimited,
				Message: "message rate limit exceeded",
			}})
			continue
		}

		cmd, protoErr, err := inboundToCommand(inbound)
		if err != nil {
			h.log.Warn().Err(err).Str("conn", client.ID).Msg("failed to decode inbound")
			return err
		}
		if protoErr != nil {
			client.TrySend(&core.Event{Kind: core.EventError, Error: &core.CoreError{
				Code:    protoErr.Code,
				Message: protoErr.Msg,
			}})
			continue
		}

		switch cmd.Kind {
		case core.CommandRegister:
			if cerr := h.hub.Bind(ctx, client, claims.UserID, claims.Username); cerr != nil {
				client.TrySend(&core.Event{Kind: core.EventError, Error: cerr})
			}
		case core.CommandSendMessage:
			if cerr := h.hub.SendDirect(ctx, client, cmd.ReceiverID, cmd.Text); cerr != nil {
				client.TrySend(&core.Event{Kind: core.EventError, Error: cerr})
			}
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event := <-client.Events:
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("conn", client.ID).Msg("write ws event")
				return err
			}
		case <-client.Done():
			// Drain anything already queued (e.g. the superseded error)
			// before tearing the connection down.
			for {
				select {
				case event := <-client.Events:
					if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
						return errSuperseded
					}
				default:
					return errSuperseded
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
