package store

import (
	"testing"
)

func conv(id string, lastAt int64, unread int) Conversation {
	return Conversation{
		ID:            id,
		Customer:      Party{ID: "c-" + id, Name: "Customer " + id},
		Seller:        Party{ID: "s-" + id, Name: "Seller " + id, Market: "Box " + id},
		LastMessageAt: lastAt,
		UnreadCount:   unread,
	}
}

func msg(id, convID string, at int64) Message {
	return Message{ID: id, ConversationID: convID, SenderID: "u-1", Content: "m-" + id, SentAt: at}
}

func TestReplaceAllCompleteness(t *testing.T) {
	s := NewConversationStore()
	s.ReplaceAll([]Conversation{conv("a", 10, 0), conv("b", 20, 1), conv("c", 30, 0)})

	// A second snapshot without "b" must drop it and add nothing extra.
	s.ReplaceAll([]Conversation{conv("a", 10, 0), conv("c", 30, 0), conv("d", 40, 2)})

	got := s.List()
	ids := map[string]bool{}
	for _, c := range got {
		ids[c.ID] = true
	}
	for _, want := range []string{"a", "c", "d"} {
		if !ids[want] {
			t.Errorf("snapshot missing %q", want)
		}
	}
	if ids["b"] {
		t.Error("conversation b should be gone after snapshot replace")
	}
	if len(got) != 3 {
		t.Errorf("len = %d, want exactly the snapshot ids", len(got))
	}
}

func TestListOrdering(t *testing.T) {
	s := NewConversationStore()
	s.ReplaceAll([]Conversation{conv("b", 20, 0), conv("a", 30, 0), conv("z", 20, 0)})

	got := s.List()
	wantOrder := []string{"a", "b", "z"} // 30 first, then the 20s tie-broken by id
	for i, want := range wantOrder {
		if got[i].ID != want {
			t.Errorf("List()[%d] = %q, want %q", i, got[i].ID, want)
		}
	}
}

func TestApplyNotification(t *testing.T) {
	s := NewConversationStore()
	s.ReplaceAll([]Conversation{conv("a", 10, 1)})

	if ok := s.ApplyNotification("a", msg("m9", "a", 99)); !ok {
		t.Fatal("ApplyNotification for known conversation should succeed")
	}
	c := s.Get("a")
	if c.UnreadCount != 2 {
		t.Errorf("UnreadCount = %d, want 2", c.UnreadCount)
	}
	if c.LastMessage == nil || c.LastMessage.ID != "m9" || c.LastMessageAt != 99 {
		t.Errorf("last message not advanced: %+v", c.LastMessage)
	}

	if ok := s.ApplyNotification("ghost", msg("m1", "ghost", 1)); ok {
		t.Error("ApplyNotification for unknown conversation should report false")
	}
}

func TestSetLastMessageLeavesUnread(t *testing.T) {
	s := NewConversationStore()
	s.ReplaceAll([]Conversation{conv("a", 10, 3)})

	if ok := s.SetLastMessage("a", msg("m2", "a", 50)); !ok {
		t.Fatal("SetLastMessage should succeed")
	}
	c := s.Get("a")
	if c.UnreadCount != 3 {
		t.Errorf("UnreadCount = %d, want unchanged 3", c.UnreadCount)
	}
	if c.LastMessageAt != 50 {
		t.Errorf("LastMessageAt = %d, want 50", c.LastMessageAt)
	}
}

func TestUnreadInvariant(t *testing.T) {
	s := NewConversationStore()
	s.ReplaceAll([]Conversation{conv("a", 10, 3), conv("b", 20, 0)})

	if got := s.TotalUnread(); got != 3 {
		t.Fatalf("TotalUnread = %d, want 3", got)
	}

	s.ApplyNotification("b", msg("m1", "b", 30))
	s.ApplyNotification("b", msg("m2", "b", 31))
	if got := s.TotalUnread(); got != 5 {
		t.Fatalf("TotalUnread = %d, want 5", got)
	}

	cleared := s.MarkRead("a")
	if cleared != 3 {
		t.Errorf("MarkRead cleared = %d, want 3", cleared)
	}
	if got := s.TotalUnread(); got != 2 {
		t.Errorf("TotalUnread = %d, want 2 after mark-read", got)
	}

	// Invariant: aggregate always equals the per-conversation sum.
	sum := 0
	for _, c := range s.List() {
		sum += c.UnreadCount
	}
	if got := s.TotalUnread(); got != sum {
		t.Errorf("TotalUnread = %d, sum = %d; must match", got, sum)
	}
}

func TestMarkReadUnknown(t *testing.T) {
	s := NewConversationStore()
	if cleared := s.MarkRead("ghost"); cleared != 0 {
		t.Errorf("MarkRead(unknown) = %d, want 0", cleared)
	}
}

func TestMessageAppendIdempotent(t *testing.T) {
	s := NewMessageStore()
	s.Reset("a")

	if ok := s.Append(msg("m1", "a", 1)); !ok {
		t.Fatal("first append should succeed")
	}
	if ok := s.Append(msg("m1", "a", 1)); ok {
		t.Error("duplicate append should be a no-op")
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestMessageAppendWrongConversation(t *testing.T) {
	s := NewMessageStore()
	s.Reset("a")

	if ok := s.Append(msg("m1", "b", 1)); ok {
		t.Error("append for non-active conversation should be ignored")
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestMessageOrdering(t *testing.T) {
	s := NewMessageStore()
	s.Reset("a")
	s.Replace("a", []Message{msg("m1", "a", 1), msg("m2", "a", 2)})
	s.Append(msg("m3", "a", 3))
	s.Append(msg("m2", "a", 2)) // late duplicate, dropped
	s.Append(msg("m4", "a", 4))

	got := s.Messages()
	var prev int64
	for i, m := range got {
		if m.SentAt < prev {
			t.Errorf("message %d out of order: %d < %d", i, m.SentAt, prev)
		}
		prev = m.SentAt
	}
	if len(got) != 4 {
		t.Errorf("len = %d, want 4", len(got))
	}
}

func TestResetDiscardsLog(t *testing.T) {
	s := NewMessageStore()
	s.Reset("a")
	s.Append(msg("m1", "a", 1))

	s.Reset("b")
	if s.Len() != 0 {
		t.Errorf("Len = %d after switch, want 0", s.Len())
	}
	if s.ActiveID() != "b" {
		t.Errorf("ActiveID = %q, want b", s.ActiveID())
	}
	// The old conversation's id space must not collide with the new log.
	if ok := s.Append(msg("m1", "b", 1)); !ok {
		t.Error("same message id in a different conversation should append")
	}
}

func TestReplaceStaleGuard(t *testing.T) {
	s := NewMessageStore()
	s.Reset("a")
	s.Reset("b") // user switched before a's load finished

	if ok := s.Replace("a", []Message{msg("m1", "a", 1)}); ok {
		t.Fatal("stale load for a should be refused after switching to b")
	}
	if s.Len() != 0 {
		t.Errorf("b's log mutated by a's stale load: len = %d", s.Len())
	}
}
