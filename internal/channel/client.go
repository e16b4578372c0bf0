// Package channel owns the single live push-channel connection of a
// session: connect, identity registration, room membership, bounded
// reconnection, and dispatch of inbound events.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/luispaiva/chatsync/internal/api"
	"github.com/luispaiva/chatsync/internal/model"
	"github.com/luispaiva/chatsync/internal/status"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const dialTimeout = 10 * time.Second

var errClosed = errors.New("channel closed")

// Handlers are the session callbacks for inbound events. None of them
// fires after Close returns.
type Handlers struct {
	Connected       func()
	Disconnected    func(reason string)
	MessageReceived func(model.Message)
	MessagesRead    func(ReadEvent)
}

// Client is the live-channel client. One per session.
type Client struct {
	url      string
	self     model.Identity
	creds    api.CredentialProvider
	machine  *status.Machine
	logger   *zap.Logger
	handlers Handlers
	recon    *reconnector

	mu     sync.Mutex
	conn   *websocket.Conn
	joined string
	closed bool
	cancel context.CancelFunc
}

// New creates a client for the given websocket URL. Handlers must be
// set before Start.
func New(url string, self model.Identity, creds api.CredentialProvider, machine *status.Machine, logger *zap.Logger) *Client {
	return &Client{
		url:     url,
		self:    self,
		creds:   creds,
		machine: machine,
		logger:  logger,
		recon:   newReconnector(),
	}
}

// SetHandlers installs the session callbacks.
func (c *Client) SetHandlers(h Handlers) {
	c.handlers = h
}

// Start launches the connect/reconnect loop in the background.
func (c *Client) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	go c.run(ctx)
}

func (c *Client) run(ctx context.Context) {
	for {
		if c.isClosed() || ctx.Err() != nil {
			return
		}

		err := c.connect(ctx)
		if err == nil {
			c.recon.markConnected()
			_ = c.machine.Transition(status.Connected)
			c.logger.Info("channel connected")
			if h := c.handlers.Connected; h != nil && !c.isClosed() {
				h()
			}
			err = c.readLoop(ctx)
			if c.isClosed() || ctx.Err() != nil {
				return
			}
			c.logger.Warn("channel dropped", zap.Error(err))
			_ = c.machine.Transition(status.Reconnecting)
			if h := c.handlers.Disconnected; h != nil {
				h(errReason(err))
			}
		} else {
			if errors.Is(err, api.ErrAuthRequired) {
				// No credential: the channel stops; no local retry.
				c.logger.Warn("channel auth required, not reconnecting")
				_ = c.machine.Transition(status.Disconnected)
				return
			}
			if c.isClosed() || ctx.Err() != nil {
				return
			}
			c.logger.Warn("channel connect failed", zap.Error(err))
			_ = c.machine.Transition(status.Reconnecting)
		}

		if !c.recon.shouldReconnect() {
			c.logger.Warn("channel reconnect attempts exhausted")
			_ = c.machine.Transition(status.Disconnected)
			return
		}
		delay := c.recon.nextDelay()
		c.logger.Info("channel reconnecting", zap.Duration("delay", delay))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) connect(ctx context.Context) error {
	_ = c.machine.Transition(status.Connecting)

	token, err := c.creds.Token(ctx)
	if err != nil {
		return api.ErrAuthRequired
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, c.url+"?token="+token, nil)
	if err != nil {
		return fmt.Errorf("channel dial: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "closed")
		return errClosed
	}
	c.conn = conn
	joined := c.joined
	c.mu.Unlock()

	// Register the local identity, then rejoin the active room if the
	// session had one before the drop.
	if err := c.send(ctx, EventSetup, setupPayload{UserID: c.self.ID, Name: c.self.Name}); err != nil {
		c.dropConn(conn)
		return fmt.Errorf("channel setup: %w", err)
	}
	if joined != "" {
		if err := c.send(ctx, EventJoin, joinPayload{ConversationID: joined}); err != nil {
			c.dropConn(conn)
			return fmt.Errorf("channel rejoin: %w", err)
		}
	}
	return nil
}

func (c *Client) readLoop(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errClosed
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			c.dropConn(conn)
			return err
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Debug("undecodable channel frame", zap.Error(err))
			continue
		}
		c.dispatch(env)
	}
}

func (c *Client) dispatch(env Envelope) {
	// Liveness check: a torn-down session must see no further events.
	if c.isClosed() {
		return
	}

	switch env.Event {
	case EventMessageReceived:
		var wire model.WireMessage
		if err := json.Unmarshal(env.Data, &wire); err != nil {
			c.logger.Warn("bad message-received payload", zap.Error(err))
			return
		}
		if h := c.handlers.MessageReceived; h != nil {
			h(wire.ToMessage())
		}
	case EventMessagesMarkedRead:
		var p readEventPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.logger.Warn("bad messages-marked-read payload", zap.Error(err))
			return
		}
		if h := c.handlers.MessagesRead; h != nil {
			h(p.toEvent())
		}
	default:
		c.logger.Debug("ignoring channel event", zap.String("event", env.Event))
	}
}

// Join registers the active conversation room. The room is rejoined
// automatically after every reconnect until Join is called again.
func (c *Client) Join(ctx context.Context, conversationID string) error {
	c.mu.Lock()
	c.joined = conversationID
	connected := c.conn != nil
	c.mu.Unlock()
	if !connected {
		return nil // joined on next connect
	}
	return c.send(ctx, EventJoin, joinPayload{ConversationID: conversationID})
}

// Typing forwards a typing or stop-typing indicator.
func (c *Client) Typing(ctx context.Context, conversationID string, typing bool) error {
	event := EventTyping
	if !typing {
		event = EventStopTyping
	}
	return c.send(ctx, event, typingPayload{ConversationID: conversationID, UserID: c.self.ID})
}

// AnnounceRead broadcasts that the local user read a conversation.
func (c *Client) AnnounceRead(ctx context.Context, conversationID string) error {
	return c.send(ctx, EventMessageRead, readAnnouncePayload{ConversationID: conversationID, UserID: c.self.ID})
}

func (c *Client) send(ctx context.Context, event string, payload any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errClosed
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, frame)
}

// Close tears the channel down. Idempotent; after it returns no
// handler fires again.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	cancel := c.cancel
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "session closed")
	}
	_ = c.machine.Transition(status.Closed)
	c.logger.Info("channel closed")
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) dropConn(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func errReason(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
