// Package engine orchestrates the realtime messaging subsystem: it owns
// the transport channel, the fallback API, the conversation and message
// stores and the presence tracker, and exposes the contract the
// presentation surfaces consume. It is the sole mutator of the stores.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/feiralink/chat/internal/bus"
	"github.com/feiralink/chat/internal/presence"
	"github.com/feiralink/chat/internal/session"
	"github.com/feiralink/chat/internal/status"
	"github.com/feiralink/chat/internal/store"
	"github.com/feiralink/chat/internal/transport"
	"go.uber.org/zap"
)

// Channel is the push connection the engine drives. Implemented by
// transport.Channel; faked in tests.
type Channel interface {
	Connect(ctx context.Context, credential string) error
	Disconnect()
	SendMessage(ctx context.Context, conversationID, content string) error
	Join(ctx context.Context, conversationID string) error
	Leave(ctx context.Context, conversationID string) error
	Connected() bool
}

// API is the fallback request/response surface. Implemented by
// fallback.Client.
type API interface {
	ListConversations(ctx context.Context) ([]store.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]store.Message, error)
	SendMessage(ctx context.Context, conversationID, content string) (*store.Message, error)
	MarkRead(ctx context.Context, conversationID string) error
	UnreadCount(ctx context.Context) (int, error)
	StartConversation(ctx context.Context, otherPartyID string) (*store.Conversation, error)
}

var (
	// ErrEmptyMessage is returned for sends whose trimmed content is empty.
	ErrEmptyMessage = errors.New("message content is empty")
	// ErrNoConversation is returned for actions that need a selected
	// conversation when none is selected.
	ErrNoConversation = errors.New("no conversation selected")
)

// Engine is constructed once per authenticated session and passed to
// presentation code explicitly; there is no ambient singleton.
type Engine struct {
	channel       Channel
	api           API
	conversations *store.ConversationStore
	messages      *store.MessageStore
	presence      *presence.Tracker
	machine       *status.Machine
	bus           *bus.Bus
	logger        *zap.Logger

	mu            sync.Mutex
	self          session.Identity
	active        string
	joined        string
	selectGen     uint64
	everConnected bool
	cancel        context.CancelFunc
}

// New creates an engine over its collaborators. Nothing runs until Start.
func New(
	channel Channel,
	api API,
	conversations *store.ConversationStore,
	messages *store.MessageStore,
	tracker *presence.Tracker,
	machine *status.Machine,
	b *bus.Bus,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		channel:       channel,
		api:           api,
		conversations: conversations,
		messages:      messages,
		presence:      tracker,
		machine:       machine,
		bus:           b,
		logger:        logger,
	}
}

// Start attaches the authenticated identity, opens the push channel and
// fetches the initial state. The conversation snapshot and aggregate
// unread fetches run regardless of whether the channel comes up.
func (e *Engine) Start(ctx context.Context, identity session.Identity, credential string) error {
	if err := e.machine.Transition(status.Connecting); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.self = identity
	e.cancel = cancel
	e.mu.Unlock()

	ch, unsub := e.bus.Subscribe("channel.", 256)
	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(ctx, evt)
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		if err := e.refreshConversations(ctx); err != nil {
			e.logger.Warn("initial conversation snapshot failed", zap.Error(err))
		}
		e.reconcileUnread(ctx)
	}()

	if err := e.channel.Connect(ctx, credential); err != nil {
		// The channel retries on its own; the engine just stays degraded.
		e.logger.Warn("channel connect failed", zap.Error(err))
		_ = e.machine.Transition(status.Degraded)
	}
	return nil
}

// Logout closes the channel, clears every store and enters the terminal
// state. The engine instance is not reusable for another identity; a new
// session constructs a new engine with its own credential.
func (e *Engine) Logout() {
	_ = e.machine.Transition(status.Unauthenticated)

	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.active = ""
	e.joined = ""
	e.self = session.Identity{}
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.channel.Disconnect()
	e.conversations.Clear()
	e.messages.Reset("")
	e.presence.Reset()

	e.publish("chat.conversations_updated", nil)
	e.publish("chat.messages_updated", nil)
	e.publish("chat.unread_updated", 0)
	e.logger.Info("session ended, stores cleared")
}

// handleEvent is the exhaustive match over the channel's inbound events.
func (e *Engine) handleEvent(ctx context.Context, evt bus.Event) {
	switch p := evt.Payload.(type) {
	case transport.Connected:
		e.handleConnected(ctx)
	case transport.Disconnected:
		// Expected and recoverable: fallback becomes authoritative until
		// the channel redials.
		_ = e.machine.Transition(status.Degraded)
	case transport.NewMessage:
		e.handleNewMessage(ctx, p.Message)
	case transport.MessageNotification:
		e.handleNotification(ctx, p.ConversationID, p.Message)
	case transport.UserTyping:
		if e.isSelf(p.UserID) {
			return
		}
		if e.presence.RemoteStart(p.ConversationID, p.UserID) {
			e.publish("chat.typing_updated", e.presence.Typing())
		}
	case transport.UserStopTyping:
		if e.presence.RemoteStop(p.ConversationID, p.UserID) {
			e.publish("chat.typing_updated", e.presence.Typing())
		}
	}
}

func (e *Engine) handleConnected(ctx context.Context) {
	_ = e.machine.Transition(status.Connected)

	e.mu.Lock()
	first := !e.everConnected
	e.everConnected = true
	active := e.active
	e.mu.Unlock()

	if !first {
		// The channel delivers nothing while down and replays nothing on
		// reconnect, so state is re-derived from the fallback snapshot.
		if err := e.refreshConversations(ctx); err != nil {
			e.logger.Warn("post-reconnect snapshot failed", zap.Error(err))
		}
		e.reconcileUnread(ctx)
		if active != "" {
			e.reloadActive(ctx, active)
		}
	}

	if active != "" {
		e.join(ctx, active)
	}
}

func (e *Engine) handleNewMessage(ctx context.Context, msg store.Message) {
	e.mu.Lock()
	active := e.active
	e.mu.Unlock()

	if msg.ConversationID != active || active == "" {
		// new_message is room-scoped; seeing one for a non-open
		// conversation means our room state drifted. Degrade it to a
		// notification rather than drop it.
		e.handleNotification(ctx, msg.ConversationID, msg)
		return
	}

	if e.messages.Append(msg) {
		e.publish("chat.messages_updated", active)
	}
	if !e.conversations.SetLastMessage(msg.ConversationID, msg) {
		e.selfHeal(ctx, "new message for unknown conversation")
		return
	}
	if e.presence.RemoteStop(msg.ConversationID, msg.SenderID) {
		// A delivered message implies the sender stopped typing.
		e.publish("chat.typing_updated", e.presence.Typing())
	}
	e.publish("chat.conversations_updated", nil)
}

func (e *Engine) handleNotification(ctx context.Context, convID string, msg store.Message) {
	e.mu.Lock()
	active := e.active
	joined := e.joined
	e.mu.Unlock()

	// Policy: the conversation the viewer has open and joined is treated
	// as implicitly read, so its badge does not increment on push.
	if convID == active && convID == joined {
		if !e.conversations.SetLastMessage(convID, msg) {
			e.selfHeal(ctx, "notification for unknown conversation")
			return
		}
		e.publish("chat.conversations_updated", nil)
		return
	}

	if !e.conversations.ApplyNotification(convID, msg) {
		e.selfHeal(ctx, "notification for unknown conversation")
		return
	}
	e.publish("chat.conversations_updated", nil)
	e.publish("chat.unread_updated", e.conversations.TotalUnread())
}

// selfHeal falls back to the authoritative snapshot instead of failing on
// an invariant violation.
func (e *Engine) selfHeal(ctx context.Context, reason string) {
	e.logger.Warn("refreshing snapshot to self-heal", zap.String("reason", reason))
	if err := e.refreshConversations(ctx); err != nil {
		e.logger.Warn("self-heal refresh failed", zap.Error(err))
	}
}

// refreshConversations replaces the conversation store with a full
// fallback snapshot.
func (e *Engine) refreshConversations(ctx context.Context) error {
	convs, err := e.api.ListConversations(ctx)
	if err != nil {
		return err
	}
	e.conversations.ReplaceAll(convs)
	e.publish("chat.conversations_updated", nil)
	e.publish("chat.unread_updated", e.conversations.TotalUnread())
	return nil
}

// reconcileUnread compares the server's aggregate unread count with the
// local per-conversation sum and refreshes the snapshot on mismatch.
func (e *Engine) reconcileUnread(ctx context.Context) {
	serverTotal, err := e.api.UnreadCount(ctx)
	if err != nil {
		e.logger.Warn("unread count fetch failed", zap.Error(err))
		return
	}
	local := e.conversations.TotalUnread()
	if serverTotal != local {
		e.logger.Warn("unread count drift",
			zap.Int("server", serverTotal), zap.Int("local", local))
		if err := e.refreshConversations(ctx); err != nil {
			e.logger.Warn("drift refresh failed", zap.Error(err))
		}
	}
}

// reloadActive refreshes the open conversation's log after a reconnect,
// honoring the stale-select guard.
func (e *Engine) reloadActive(ctx context.Context, convID string) {
	e.mu.Lock()
	gen := e.selectGen
	e.mu.Unlock()

	msgs, err := e.api.ListMessages(ctx, convID)
	if err != nil {
		e.logger.Warn("message reload failed", zap.Error(err))
		return
	}

	e.mu.Lock()
	stale := gen != e.selectGen
	e.mu.Unlock()
	if stale {
		return
	}
	if e.messages.Replace(convID, msgs) {
		e.publish("chat.messages_updated", convID)
	}
}

func (e *Engine) join(ctx context.Context, convID string) {
	e.mu.Lock()
	prev := e.joined
	e.mu.Unlock()

	if prev != "" && prev != convID {
		if err := e.channel.Leave(ctx, prev); err != nil {
			e.logger.Warn("leave failed", zap.String("conversation", prev), zap.Error(err))
		}
	}
	if err := e.channel.Join(ctx, convID); err != nil {
		e.logger.Warn("join failed", zap.String("conversation", convID), zap.Error(err))
		return
	}
	e.mu.Lock()
	e.joined = convID
	e.mu.Unlock()
}

func (e *Engine) isSelf(userID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return userID != "" && userID == e.self.ID
}

func (e *Engine) publish(kind string, payload any) {
	e.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}
