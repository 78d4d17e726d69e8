package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/pingline/pingline-server/internal/auth"
	"github.com/pingline/pingline-server/internal/config"
	"github.com/pingline/pingline-server/internal/core"
	"github.com/pingline/pingline-server/internal/proto"
	"github.com/pingline/pingline-server/internal/store/sqlite"
)

// outbound mirrors proto.Outbound with raw data for assertions.
type outbound struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func startTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.JWTSecret = "test-secret-change-me"
	cfg.JWTIssuer = "test"
	cfg.JWTAudience = "test"

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      24 * time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)

	logger := zerolog.Nop()
	hub := core.NewHub(st, &logger)

	server := NewServer(hub, authService, st, &cfg, &logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return ts
}

func registerUser(t *testing.T, ts *httptest.Server, username, password string) string {
	t.Helper()

	body, _ := json.Marshal(RegisterRequest{Username: username, Password: password})
	resp, err := ts.Client().Post(ts.URL+"/api/register", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: unexpected status %d", username, resp.StatusCode)
	}

	var authResp AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		t.Fatalf("decode auth response: %v", err)
	}
	return authResp.Token
}

func getJSON(t *testing.T, ts *httptest.Server, path, token string, out any) int {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request %s: %v", path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func dialWS(t *testing.T, ctx context.Context, ts *httptest.Server, token string) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws?token=" + token
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func sendInbound(t *testing.T, ctx context.Context, conn *websocket.Conn, msgType string, data any) {
	t.Helper()

	var raw json.RawMessage
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			t.Fatalf("marshal %s data: %v", msgType, err)
		}
		raw = payload
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: msgType, Data: raw}); err != nil {
		t.Fatalf("send %s: %v", msgType, err)
	}
}

// readUntil skips outbound messages until one of the wanted type arrives.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, msgType string) outbound {
	t.Helper()

	for {
		var out outbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			t.Fatalf("read while waiting for %s: %v", msgType, err)
		}
		if out.Type == msgType {
			return out
		}
	}
}
