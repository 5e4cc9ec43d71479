package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/feiralink/chat/internal/store"
	"go.uber.org/zap"
)

// Select opens a conversation: its log replaces the previous one, the
// room scope moves over when connected, and presence state resets. A load
// response that arrives after a newer Select is discarded, so a slow
// fetch can never leak another conversation's messages into the view.
func (e *Engine) Select(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return ErrNoConversation
	}

	e.mu.Lock()
	e.selectGen++
	gen := e.selectGen
	e.active = conversationID
	e.mu.Unlock()

	e.messages.Reset(conversationID)
	e.presence.SetActive(ctx, conversationID)
	e.publish("chat.messages_updated", conversationID)
	e.publish("chat.typing_updated", e.presence.Typing())

	if e.channel.Connected() {
		e.join(ctx, conversationID)
	}

	msgs, err := e.api.ListMessages(ctx, conversationID)

	e.mu.Lock()
	stale := gen != e.selectGen
	e.mu.Unlock()
	if stale {
		// The user has moved on; this result belongs to a view that no
		// longer exists.
		return nil
	}
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	if e.messages.Replace(conversationID, msgs) {
		e.publish("chat.messages_updated", conversationID)
	}
	return nil
}

// Deselect closes the open conversation and leaves its room scope.
func (e *Engine) Deselect(ctx context.Context) {
	e.mu.Lock()
	e.selectGen++
	e.active = ""
	prev := e.joined
	e.joined = ""
	e.mu.Unlock()

	e.messages.Reset("")
	e.presence.SetActive(ctx, "")
	e.publish("chat.messages_updated", "")

	if prev != "" && e.channel.Connected() {
		if err := e.channel.Leave(ctx, prev); err != nil {
			e.logger.Warn("leave failed", zap.String("conversation", prev), zap.Error(err))
		}
	}
}

// Send delivers trimmed text to the open conversation. The strategy is
// picked once per call: a live channel emits and waits for the server
// echo (no optimistic insert), otherwise the fallback send appends the
// returned message locally. On failure the caller keeps the composed
// text for retry.
func (e *Engine) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	e.mu.Lock()
	convID := e.active
	e.mu.Unlock()
	if convID == "" {
		return ErrNoConversation
	}

	e.presence.StopNow(ctx)

	if e.channel.Connected() {
		err := e.channel.SendMessage(ctx, convID, text)
		if err == nil {
			return nil
		}
		e.logger.Warn("channel send failed, using fallback", zap.Error(err))
	}

	msg, err := e.api.SendMessage(ctx, convID, text)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	if e.messages.Append(*msg) {
		e.publish("chat.messages_updated", convID)
	}
	e.conversations.SetLastMessage(convID, *msg)
	e.publish("chat.conversations_updated", nil)

	// The snapshot keeps the list consistent with whatever else happened
	// while the channel was down.
	if err := e.refreshConversations(ctx); err != nil {
		e.logger.Warn("post-send refresh failed", zap.Error(err))
	}
	return nil
}

// MarkRead clears the open conversation's unread count, server first. No
// local state changes when the server call fails.
func (e *Engine) MarkRead(ctx context.Context) error {
	e.mu.Lock()
	convID := e.active
	e.mu.Unlock()
	if convID == "" {
		return ErrNoConversation
	}

	if err := e.api.MarkRead(ctx, convID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if cleared := e.conversations.MarkRead(convID); cleared > 0 {
		e.publish("chat.conversations_updated", nil)
		e.publish("chat.unread_updated", e.conversations.TotalUnread())
	}
	return nil
}

// StartConversation lazily creates the thread with another party and
// makes it known locally. The server returns the existing conversation if
// the pair already has one.
func (e *Engine) StartConversation(ctx context.Context, otherPartyID string) (*store.Conversation, error) {
	conv, err := e.api.StartConversation(ctx, otherPartyID)
	if err != nil {
		return nil, fmt.Errorf("start conversation: %w", err)
	}
	e.conversations.Upsert(*conv)
	e.publish("chat.conversations_updated", nil)
	return conv, nil
}

// TypingKeystroke records composer activity for the open conversation.
func (e *Engine) TypingKeystroke(ctx context.Context) {
	e.mu.Lock()
	convID := e.active
	e.mu.Unlock()
	if convID == "" {
		return
	}
	e.presence.Keystroke(ctx, convID)
}

// StopTyping transmits stop_typing immediately if typing was in progress.
func (e *Engine) StopTyping(ctx context.Context) {
	e.presence.StopNow(ctx)
}
