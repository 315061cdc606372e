package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"tuimessenger/internal/chat"
	"tuimessenger/internal/relay"
)

const (
	defaultHistory         = 50
	defaultMaxMessageBytes = 16 * 1024
	defaultMsgsPerSec      = 5
	defaultBurstMessages   = 10
	defaultSendBuffer      = 64
	maxNameRunes           = 32
)

type serverConfig struct {
	historySize     int
	maxMessageBytes int64
	msgsPerSec      float64
	burst           int
	sendBuffer      int
}

func (c serverConfig) withDefaults() serverConfig {
	if c.historySize < 0 {
		c.historySize = 0
	}
	if c.maxMessageBytes <= 0 {
		c.maxMessageBytes = defaultMaxMessageBytes
	}
	if c.msgsPerSec <= 0 {
		c.msgsPerSec = defaultMsgsPerSec
	}
	if c.burst <= 0 {
		c.burst = defaultBurstMessages
	}
	if c.sendBuffer <= 0 {
		c.sendBuffer = defaultSendBuffer
	}
	// A new client receives the whole backlog before its writer catches up.
	c.sendBuffer = max(c.sendBuffer, c.historySize+16)
	return c
}

// Server is the relay hub. Every broadcast happens under mu, so all
// clients observe chat in the same order.
type Server struct {
	id       string
	cfg      serverConfig
	store    *sqliteStore
	logger   *slog.Logger
	started  time.Time
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	names   map[string]*client
	history []chat.Message
}

// NewServer builds a hub. store may be nil, in which case history lives
// only in memory.
func NewServer(cfg serverConfig, store *sqliteStore, logger *slog.Logger) (*Server, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		id:      uuid.NewString(),
		cfg:     cfg,
		store:   store,
		logger:  logger,
		started: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
		names:   make(map[string]*client),
	}
	if store != nil {
		id, err := store.relayID(s.id)
		if err != nil {
			return nil, fmt.Errorf("load relay id: %w", err)
		}
		s.id = id
		backlog, err := store.recent(cfg.historySize)
		if err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}
		s.history = backlog
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/ws", s.handleWS)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	n := len(s.clients)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":      "ok",
		"relay_id":    s.id,
		"connections": n,
		"uptime":      time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	id := uuid.NewString()
	c := &client{
		id:      id,
		ws:      ws,
		send:    make(chan []byte, s.cfg.sendBuffer),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(s.cfg.msgsPerSec), s.cfg.burst),
		logger:  s.logger.With("conn", id, "remote", r.RemoteAddr),
	}
	metricActiveConnections.Inc()
	go c.writePump()

	s.register(c)
	c.readPump(s)
	s.unregister(c)
	metricActiveConnections.Dec()
}

// guestName picks an unused guest-<8 hex> name. Callers hold mu.
func (s *Server) guestName() string {
	for {
		name := "guest-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		if _, taken := s.names[name]; !taken {
			return name
		}
	}
}

func (s *Server) register(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.name = s.guestName()
	s.clients[c] = struct{}{}
	s.names[c.name] = c

	s.notifyLocked(c, fmt.Sprintf("welcome, you are %s. Use /name <username> to change it", c.name))
	for _, msg := range s.history {
		s.deliverLocked(c, msg)
	}
	s.identifyLocked(c)
	s.broadcastLocked(chat.SystemMessage(c.name+" joined"), c)
	c.logger.Info("client connected", "name", c.name)
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	if s.names[c.name] == c {
		delete(s.names, c.name)
	}
	c.close()
	s.broadcastLocked(chat.SystemMessage(c.name+" left"), nil)
	c.logger.Info("client disconnected", "name", c.name)
}

// handleText processes one inbound text frame from c.
func (s *Server) handleText(c *client, text string) {
	if !c.limiter.Allow() {
		metricMessagesDropped.WithLabelValues(dropRateLimited).Inc()
		s.mu.Lock()
		s.notifyLocked(c, "rate limit exceeded, message dropped")
		s.mu.Unlock()
		return
	}
	if name, ok := parseNameCommand(text); ok {
		s.rename(c, name)
		return
	}
	if strings.TrimSpace(text) == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	msg := chat.ChatMessage(c.name, text)
	s.rememberLocked(msg)
	s.broadcastLocked(msg, nil)
	metricMessagesRelayed.Inc()
}

// parseNameCommand recognises "/name <username>" and a bare "/name".
func parseNameCommand(text string) (string, bool) {
	if text == strings.TrimSpace(chat.NameCommandPrefix) {
		return "", true
	}
	rest, ok := strings.CutPrefix(text, chat.NameCommandPrefix)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

func validName(name string) error {
	if name == "" {
		return fmt.Errorf("usage: /name <username>")
	}
	if utf8.RuneCountInString(name) > maxNameRunes {
		return fmt.Errorf("name is longer than %d characters", maxNameRunes)
	}
	if strings.IndexFunc(name, func(r rune) bool { return unicode.IsSpace(r) || !unicode.IsPrint(r) }) >= 0 {
		return fmt.Errorf("name %q must not contain spaces or control characters", name)
	}
	return nil
}

// rename always ends by telling c the name it holds, so a client that
// already switched to a rejected name switches back.
func (s *Server) rename(c *client, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.identifyLocked(c)

	if err := validName(name); err != nil {
		s.notifyLocked(c, err.Error())
		return
	}
	if name == c.name {
		return
	}
	if _, taken := s.names[name]; taken {
		s.notifyLocked(c, fmt.Sprintf("name %s is taken", name))
		return
	}
	old := c.name
	delete(s.names, old)
	c.name = name
	s.names[name] = c
	s.broadcastLocked(chat.SystemMessage(old+" is now known as "+name), nil)
	c.logger.Info("client renamed", "from", old, "to", name)
}

func (s *Server) rememberLocked(msg chat.Message) {
	if s.cfg.historySize == 0 {
		return
	}
	s.history = append(s.history, msg)
	if over := len(s.history) - s.cfg.historySize; over > 0 {
		s.history = append(s.history[:0:0], s.history[over:]...)
	}
	if s.store != nil {
		if err := s.store.appendMessage(msg); err != nil {
			s.logger.Error("persist message failed", "err", err)
		}
	}
}

func (s *Server) notifyLocked(c *client, text string) {
	s.deliverLocked(c, chat.SystemMessage(text))
}

func (s *Server) identifyLocked(c *client) {
	payload, err := relay.EncodeIdentity(c.name)
	if err != nil {
		s.logger.Error("encode identity failed", "err", err)
		return
	}
	s.enqueueLocked(c, payload)
}

// broadcastLocked sends msg to every client except skip.
func (s *Server) broadcastLocked(msg chat.Message, skip *client) {
	payload, err := relay.Encode(msg)
	if err != nil {
		s.logger.Error("encode envelope failed", "err", err)
		return
	}
	for c := range s.clients {
		if c == skip {
			continue
		}
		s.enqueueLocked(c, payload)
	}
}

func (s *Server) deliverLocked(c *client, msg chat.Message) {
	payload, err := relay.Encode(msg)
	if err != nil {
		s.logger.Error("encode envelope failed", "err", err)
		return
	}
	s.enqueueLocked(c, payload)
}

// enqueueLocked disconnects clients whose send queue is full.
func (s *Server) enqueueLocked(c *client, payload []byte) {
	if c.closing() || c.enqueue(payload) {
		return
	}
	metricMessagesDropped.WithLabelValues(dropSlowConsumer).Inc()
	c.logger.Warn("send queue full, dropping client", "name", c.name, "bytes", len(payload))
	c.close()
}

// shutdown closes every client connection.
func (s *Server) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.close()
	}
}
