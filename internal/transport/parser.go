package transport

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/feiralink/chat/internal/store"
)

// Wire event names, shared with the server.
const (
	evtNewMessage          = "new_message"
	evtMessageNotification = "message_notification"
	evtUserTyping          = "user_typing"
	evtUserStopTyping      = "user_stop_typing"

	evtSendMessage       = "send_message"
	evtTyping            = "typing"
	evtStopTyping        = "stop_typing"
	evtJoinConversation  = "join_conversation"
	evtLeaveConversation = "leave_conversation"
)

// envelope is the wire format in both directions.
type envelope struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// errUnknownEvent marks events this client does not handle; they are
// skipped, not surfaced.
var errUnknownEvent = errors.New("unknown event")

type notificationData struct {
	ConversationID string        `json:"conversation_id"`
	Message        store.Message `json:"message"`
}

type typingData struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

// parseInbound maps a raw wire envelope to a typed inbound event.
func parseInbound(raw []byte) (InboundEvent, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Event {
	case evtNewMessage:
		var msg store.Message
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Event, err)
		}
		return NewMessage{Message: msg}, nil
	case evtMessageNotification:
		var d notificationData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Event, err)
		}
		if d.Message.ConversationID == "" {
			d.Message.ConversationID = d.ConversationID
		}
		return MessageNotification{ConversationID: d.ConversationID, Message: d.Message}, nil
	case evtUserTyping:
		var d typingData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Event, err)
		}
		return UserTyping{ConversationID: d.ConversationID, UserID: d.UserID}, nil
	case evtUserStopTyping:
		var d typingData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Event, err)
		}
		return UserStopTyping{ConversationID: d.ConversationID, UserID: d.UserID}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownEvent, env.Event)
	}
}
