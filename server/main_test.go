package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"tuimessenger/internal/chat"
	"tuimessenger/internal/netsec"
	"tuimessenger/internal/relay"
)

type testClient struct {
	t  *testing.T
	ws *websocket.Conn
}

func startTestServer(t *testing.T, cfg serverConfig, store *sqliteStore) (string, *Server) {
	t.Helper()
	s, err := NewServer(cfg, store, nil)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	srv := httptest.NewServer(s.routes())
	t.Cleanup(func() {
		s.shutdown()
		srv.Close()
	})
	return srv.URL, s
}

func newTestClient(t *testing.T, baseURL string) *testClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(baseURL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	c := &testClient{t: t, ws: ws}
	t.Cleanup(c.close)
	welcome := c.expect(func(env relay.Envelope) bool {
		return env.Type == relay.TypeSystem && strings.HasPrefix(env.Content, "welcome, you are guest-")
	})
	if welcome.Content == "" {
		t.Fatalf("missing welcome")
	}
	return c
}

func (c *testClient) close() {
	_ = c.ws.Close()
}

func (c *testClient) send(text string) {
	c.t.Helper()
	if err := c.ws.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		c.t.Fatalf("write failed: %v", err)
	}
}

func (c *testClient) read() (relay.Envelope, error) {
	_ = c.ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := c.ws.ReadMessage()
	if err != nil {
		return relay.Envelope{}, err
	}
	var env relay.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return relay.Envelope{}, err
	}
	return env, nil
}

// expect reads until match accepts an envelope.
func (c *testClient) expect(match func(relay.Envelope) bool) relay.Envelope {
	c.t.Helper()
	for {
		env, err := c.read()
		if err != nil {
			c.t.Fatalf("read failed before expected envelope: %v", err)
		}
		if match(env) {
			return env
		}
	}
}

func isChat(sender, content string) func(relay.Envelope) bool {
	return func(env relay.Envelope) bool {
		return env.Type == relay.TypeChat && env.Sender == sender && env.Content == content
	}
}

func isSystem(content string) func(relay.Envelope) bool {
	return func(env relay.Envelope) bool {
		return env.Type == relay.TypeSystem && env.Content == content
	}
}

func hasSystemPrefix(prefix string) func(relay.Envelope) bool {
	return func(env relay.Envelope) bool {
		return env.Type == relay.TypeSystem && strings.HasPrefix(env.Content, prefix)
	}
}

func TestChatIsBroadcastToEveryoneIncludingSender(t *testing.T) {
	url, _ := startTestServer(t, serverConfig{}, nil)
	a := newTestClient(t, url)
	b := newTestClient(t, url)

	a.send("/name alice")
	b.expect(func(env relay.Envelope) bool {
		return env.Type == relay.TypeSystem && strings.HasSuffix(env.Content, " is now known as alice")
	})

	a.send("hello all")
	got := a.expect(func(env relay.Envelope) bool { return env.Type == relay.TypeChat })
	if got.Sender != "alice" || got.Content != "hello all" {
		t.Fatalf("echo got=%+v want sender=alice content=hello all", got)
	}
	b.expect(isChat("alice", "hello all"))
}

func TestJoinAndLeaveAreAnnounced(t *testing.T) {
	url, _ := startTestServer(t, serverConfig{}, nil)
	a := newTestClient(t, url)
	b := newTestClient(t, url)
	b.send("/name bob")

	joined := a.expect(hasSystemPrefix("guest-"))
	if !strings.HasSuffix(joined.Content, " joined") {
		t.Fatalf("join notice got=%q", joined.Content)
	}
	a.expect(func(env relay.Envelope) bool { return strings.HasSuffix(env.Content, " is now known as bob") })

	b.close()
	a.expect(isSystem("bob left"))
}

func TestRenameRejectsTakenAndEmptyNames(t *testing.T) {
	url, _ := startTestServer(t, serverConfig{}, nil)
	a := newTestClient(t, url)
	b := newTestClient(t, url)

	a.send("/name alice")
	b.expect(func(env relay.Envelope) bool { return strings.HasSuffix(env.Content, " is now known as alice") })

	b.send("/name alice")
	b.expect(isSystem("name alice is taken"))

	b.send("/name")
	b.expect(isSystem("usage: /name <username>"))

	b.send("/name two words")
	b.expect(isSystem(`name "two words" must not contain spaces or control characters`))
}

func isIdentity(env relay.Envelope) bool {
	return env.Type == relay.TypeIdentity
}

func TestRenameAlwaysReportsIdentity(t *testing.T) {
	url, _ := startTestServer(t, serverConfig{}, nil)
	a := newTestClient(t, url)
	guest := a.expect(isIdentity).Name
	if !strings.HasPrefix(guest, "guest-") {
		t.Fatalf("initial identity got=%q want guest-*", guest)
	}
	b := newTestClient(t, url)

	b.send("/name alice")
	if got := b.expect(isIdentity).Name; got != "alice" {
		t.Fatalf("identity after rename got=%q want=alice", got)
	}

	a.send("/name alice")
	a.expect(isSystem("name alice is taken"))
	if got := a.expect(isIdentity).Name; got != guest {
		t.Fatalf("identity after rejected rename got=%q want=%q", got, guest)
	}

	a.send("/name bad\x07name")
	a.expect(hasSystemPrefix("name "))
	if got := a.expect(isIdentity).Name; got != guest {
		t.Fatalf("identity after invalid rename got=%q want=%q", got, guest)
	}
}

func TestHistoryIsReplayedToNewConnections(t *testing.T) {
	url, _ := startTestServer(t, serverConfig{historySize: 2}, nil)
	a := newTestClient(t, url)
	for _, msg := range []string{"one", "two", "three"} {
		a.send(msg)
		a.expect(func(env relay.Envelope) bool { return env.Type == relay.TypeChat && env.Content == msg })
	}

	c := newTestClient(t, url)
	first, err := c.read()
	if err != nil {
		t.Fatalf("read history: %v", err)
	}
	second, err := c.read()
	if err != nil {
		t.Fatalf("read history: %v", err)
	}
	if first.Content != "two" || second.Content != "three" {
		t.Fatalf("history got=[%s %s] want=[two three]", first.Content, second.Content)
	}
}

func TestRateLimitDropsMessages(t *testing.T) {
	url, _ := startTestServer(t, serverConfig{msgsPerSec: 0.001, burst: 1}, nil)
	a := newTestClient(t, url)

	a.send("first")
	a.expect(func(env relay.Envelope) bool { return env.Type == relay.TypeChat && env.Content == "first" })
	a.send("second")
	a.expect(isSystem("rate limit exceeded, message dropped"))
}

func TestOversizedMessageClosesConnection(t *testing.T) {
	url, _ := startTestServer(t, serverConfig{maxMessageBytes: 64}, nil)
	a := newTestClient(t, url)

	a.send(strings.Repeat("x", 256))
	for {
		_, err := a.read()
		if err == nil {
			continue
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			t.Fatalf("connection stayed open after oversized message")
		}
		return
	}
}

func TestHealthz(t *testing.T) {
	url, s := startTestServer(t, serverConfig{}, nil)
	newTestClient(t, url)

	resp, err := http.Get(url + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status got=%d want=%d", resp.StatusCode, http.StatusOK)
	}
	var body struct {
		Status      string `json:"status"`
		RelayID     string `json:"relay_id"`
		Connections int    `json:"connections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.RelayID != s.id || body.Connections != 1 {
		t.Fatalf("healthz got=%+v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	url, _ := startTestServer(t, serverConfig{}, nil)
	resp, err := http.Get(url + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(data), "tuimessenger_relay_connections_active") {
		t.Fatalf("metrics output missing relay gauge")
	}
}

func TestSQLiteHistorySurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.db")
	store, err := openSQLiteStore(path, 3)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	for _, msg := range []string{"a", "b", "c", "d"} {
		if err := store.appendMessage(chat.ChatMessage("bob", msg)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	id, err := store.relayID("first-id")
	if err != nil {
		t.Fatalf("relayID: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	store, err = openSQLiteStore(path, 3)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer store.Close()

	s, err := NewServer(serverConfig{historySize: 10}, store, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if s.id != id || id != "first-id" {
		t.Fatalf("relay id got=%s want=%s", s.id, id)
	}
	var got []string
	for _, msg := range s.history {
		got = append(got, msg.Content)
	}
	if strings.Join(got, ",") != "b,c,d" {
		t.Fatalf("history got=%v want=[b c d]", got)
	}
}

func TestEnqueueReportsFullQueue(t *testing.T) {
	c := &client{send: make(chan []byte, 1), done: make(chan struct{})}
	if !c.enqueue([]byte("one")) {
		t.Fatalf("first enqueue should fit")
	}
	if c.enqueue([]byte("two")) {
		t.Fatalf("second enqueue should report a full queue")
	}
	c.close()
	c.close()
	if !c.closing() {
		t.Fatalf("client should be closing after close")
	}
}

func TestParseNameCommand(t *testing.T) {
	tests := []struct {
		in   string
		name string
		ok   bool
	}{
		{in: "/name alice", name: "alice", ok: true},
		{in: "/name   bob  ", name: "bob", ok: true},
		{in: "/name", name: "", ok: true},
		{in: "/names", ok: false},
		{in: "hello /name x", ok: false},
	}
	for _, tt := range tests {
		name, ok := parseNameCommand(tt.in)
		if name != tt.name || ok != tt.ok {
			t.Errorf("parseNameCommand(%q) got=(%q,%v) want=(%q,%v)", tt.in, name, ok, tt.name, tt.ok)
		}
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s, err := NewServer(serverConfig{}, nil, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	srv := &http.Server{Handler: s.routes()}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, srv, ln, s, s.logger) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server did not stop")
	}
}

func TestPrepareTLSGeneratesSelfSignedPair(t *testing.T) {
	dir := t.TempDir()
	f := &relayFlags{
		addr:       "127.0.0.1:0",
		tlsCert:    filepath.Join(dir, "relay_cert.pem"),
		tlsKey:     filepath.Join(dir, "relay_key.pem"),
		selfSigned: true,
	}
	logger := slog.New(slog.DiscardHandler)
	if err := f.prepareTLS(logger); err != nil {
		t.Fatalf("prepareTLS failed: %v", err)
	}
	if _, err := netsec.ServerTLSConfig(f.tlsCert, f.tlsKey); err != nil {
		t.Fatalf("generated pair does not load: %v", err)
	}

	half := &relayFlags{addr: "127.0.0.1:0", tlsCert: f.tlsCert}
	if err := half.prepareTLS(logger); err == nil {
		t.Fatalf("expected error when only --tls-cert is set")
	}
	if err := (&relayFlags{addr: "127.0.0.1:0"}).prepareTLS(logger); err != nil {
		t.Fatalf("plain relay should need no TLS: %v", err)
	}
}
