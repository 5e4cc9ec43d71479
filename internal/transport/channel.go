package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/websocket"
	"github.com/feiralink/chat/internal/bus"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotConnected is returned by emits attempted while the channel is down.
var ErrNotConnected = errors.New("channel not connected")

// Channel wraps the single persistent push connection for an
// authenticated session. It dials with the session's bearer credential,
// publishes parsed inbound events on the bus under "channel.", and keeps
// redialing with backoff until Disconnect. It never queues or replays
// events across a gap; the engine refreshes explicitly after reconnect.
type Channel struct {
	endpoint string
	bus      *bus.Bus
	logger   *zap.Logger

	// newBackoff is swappable in tests to avoid real reconnect delays.
	newBackoff func() backoff.BackOff

	mu         sync.Mutex
	conn       *websocket.Conn
	credential string
	running    bool
	cancel     context.CancelFunc
}

// NewChannel creates a channel for the given server origin. The websocket
// endpoint is derived from the origin ("https://x" -> "wss://x/chat/ws").
func NewChannel(serverURL string, b *bus.Bus, logger *zap.Logger) *Channel {
	return &Channel{
		endpoint:   wsEndpoint(serverURL),
		bus:        b,
		logger:     logger,
		newBackoff: defaultBackoff,
	}
}

func wsEndpoint(serverURL string) string {
	u := strings.TrimRight(serverURL, "/")
	u = strings.Replace(u, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	return u + "/chat/ws"
}

func defaultBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0 // retry for as long as the session lives
	bo.MaxInterval = 30 * time.Second
	return bo
}

// Connect starts the connection loop with the given credential. The
// credential is keyed to the authenticated identity; an identity change
// requires Disconnect and a fresh Connect.
func (c *Channel) Connect(ctx context.Context, credential string) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errors.New("channel already running")
	}
	c.running = true
	c.credential = credential
	ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	go c.run(ctx)
	return nil
}

// Disconnect tears the connection down and stops reconnecting. Intentional
// teardown does not publish a disconnected event.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.running = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
}

// Connected reports whether the channel currently has a live connection.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Channel) run(ctx context.Context) {
	bo := c.newBackoff()
	down := false
	for {
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !down {
				// The first failed dial of an outage is surfaced so the
				// engine knows the channel is absent; retries stay quiet.
				down = true
				c.publish(Disconnected{Reason: err.Error()})
			}
			wait := bo.NextBackOff()
			c.logger.Warn("channel dial failed, retrying",
				zap.Error(err), zap.Duration("backoff", wait))
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return
			}
		}

		bo.Reset()
		down = false
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		c.publish(Connected{})

		err = c.readLoop(ctx, conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		reason := ""
		if err != nil {
			reason = err.Error()
		}
		down = true
		c.logger.Warn("channel connection lost", zap.Error(err))
		c.publish(Disconnected{Reason: reason})
	}
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	c.mu.Lock()
	credential := c.credential
	c.mu.Unlock()

	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer "+credential)

	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, c.endpoint, &websocket.DialOptions{HTTPHeader: hdr})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.endpoint, err)
	}
	return conn, nil
}

func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		evt, err := parseInbound(data)
		if err != nil {
			if errors.Is(err, errUnknownEvent) {
				c.logger.Debug("skipping unhandled event", zap.Error(err))
			} else {
				c.logger.Warn("malformed channel payload", zap.Error(err))
			}
			continue
		}
		c.publish(evt)
	}
}

func (c *Channel) publish(evt InboundEvent) {
	c.bus.Publish(bus.Event{Kind: evt.Kind(), Timestamp: time.Now(), Payload: evt})
}

// Emit sends a named event with a JSON payload over the live connection.
func (c *Channel) Emit(ctx context.Context, event string, payload any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	env := envelope{Event: event, RequestID: uuid.NewString()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", event, err)
		}
		env.Data = data
	}
	buf, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, websocket.MessageText, buf); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

type sendMessageData struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
}

type conversationData struct {
	ConversationID string `json:"conversation_id"`
}

// SendMessage emits a send_message event. The server persists the message
// and echoes it back via new_message to both parties.
func (c *Channel) SendMessage(ctx context.Context, conversationID, content string) error {
	return c.Emit(ctx, evtSendMessage, sendMessageData{ConversationID: conversationID, Content: content})
}

// Join announces interest in a conversation's room-scoped events.
func (c *Channel) Join(ctx context.Context, conversationID string) error {
	return c.Emit(ctx, evtJoinConversation, conversationData{ConversationID: conversationID})
}

// Leave withdraws from a conversation's room scope.
func (c *Channel) Leave(ctx context.Context, conversationID string) error {
	return c.Emit(ctx, evtLeaveConversation, conversationData{ConversationID: conversationID})
}

// StartTyping emits a typing signal. Skipped silently while disconnected;
// presence is ephemeral and has no fallback path.
func (c *Channel) StartTyping(ctx context.Context, conversationID string) error {
	err := c.Emit(ctx, evtTyping, conversationData{ConversationID: conversationID})
	if errors.Is(err, ErrNotConnected) {
		return nil
	}
	return err
}

// StopTyping emits a stop_typing signal. Skipped silently while disconnected.
func (c *Channel) StopTyping(ctx context.Context, conversationID string) error {
	err := c.Emit(ctx, evtStopTyping, conversationData{ConversationID: conversationID})
	if errors.Is(err, ErrNotConnected) {
		return nil
	}
	return err
}
