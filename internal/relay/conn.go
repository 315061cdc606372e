// Package relay is the client side of the relay connection: a websocket
// whose inbound half is drained by one reader goroutine into a channel, and
// whose outbound half is written by the caller.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tuimessenger/internal/chat"
	"tuimessenger/internal/netsec"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("relay: connection closed")

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	defaultBuffer           = 64
	closeGrace              = time.Second
)

type Options struct {
	// InsecureSkipVerify accepts any certificate on wss:// URLs, for relays
	// running with a self-signed certificate.
	InsecureSkipVerify bool
	// CertFingerprint pins the relay's certificate by its SHA-256
	// fingerprint instead of verifying it against system roots.
	CertFingerprint  string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// Buffer bounds the inbound event channel.
	Buffer int
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = defaultHandshakeTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = defaultWriteTimeout
	}
	if o.Buffer <= 0 {
		o.Buffer = defaultBuffer
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

type Conn struct {
	ws           *websocket.Conn
	events       chan chat.RelayEvent
	writeTimeout time.Duration
	logger       *slog.Logger

	writeMu   sync.Mutex
	closed    chan struct{}
	closeOnce sync.Once
}

// Dial opens a relay connection at rawURL (ws:// or wss://).
func Dial(ctx context.Context, rawURL string, opts Options) (*Conn, error) {
	opts = opts.withDefaults()
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse relay url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("relay url %q: scheme must be ws or wss", rawURL)
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: opts.HandshakeTimeout,
	}
	if u.Scheme == "wss" {
		tlsCfg, err := netsec.ClientTLSConfig(opts.InsecureSkipVerify, opts.CertFingerprint)
		if err != nil {
			return nil, err
		}
		dialer.TLSClientConfig = tlsCfg
	}
	ws, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay %s: %w", u.Redacted(), err)
	}
	opts.Logger.Info("relay connected", "url", u.Redacted())
	return newConn(ws, opts), nil
}

func newConn(ws *websocket.Conn, opts Options) *Conn {
	c := &Conn{
		ws:           ws,
		events:       make(chan chat.RelayEvent, opts.Buffer),
		writeTimeout: opts.WriteTimeout,
		logger:       opts.Logger,
		closed:       make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Events yields decoded inbound messages. The last event before the channel
// closes carries the error that ended the connection; a clean close from the
// relay is reported as io.EOF.
func (c *Conn) Events() <-chan chat.RelayEvent {
	return c.events
}

func (c *Conn) readLoop() {
	defer close(c.events)
	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = io.EOF
			}
			c.push(chat.RelayEvent{Err: err})
			return
		}
		c.push(DecodeEvent(payload))
	}
}

func (c *Conn) push(ev chat.RelayEvent) {
	select {
	case c.events <- ev:
	case <-c.closed:
	}
}

// Send writes one text payload. Writes are serialized and bounded by the
// write timeout or the context deadline, whichever comes first.
func (c *Conn) Send(ctx context.Context, text string) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("relay write: %w", err)
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return fmt.Errorf("relay write: %w", err)
	}
	return nil
}

// Close sends a close frame best-effort and releases the socket. It is safe
// to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
		c.writeMu.Unlock()
		err = c.ws.Close()
		c.logger.Info("relay connection closed")
	})
	return err
}
