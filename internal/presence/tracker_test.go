package presence

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeEmitter struct {
	mu     sync.Mutex
	starts []string
	stops  []string
}

func (f *fakeEmitter) StartTyping(_ context.Context, convID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, convID)
	return nil
}

func (f *fakeEmitter) StopTyping(_ context.Context, convID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops = append(f.stops, convID)
	return nil
}

func (f *fakeEmitter) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.starts), len(f.stops)
}

func newTestTracker(idle time.Duration) (*Tracker, *fakeEmitter) {
	e := &fakeEmitter{}
	return NewTracker(e, idle, zap.NewNop()), e
}

func TestKeystrokeTransmitsOnce(t *testing.T) {
	tr, e := newTestTracker(time.Hour)
	ctx := context.Background()

	tr.Keystroke(ctx, "c1")
	tr.Keystroke(ctx, "c1")
	tr.Keystroke(ctx, "c1")

	starts, stops := e.counts()
	if starts != 1 {
		t.Errorf("starts = %d, want 1 (re-arm must not re-transmit)", starts)
	}
	if stops != 0 {
		t.Errorf("stops = %d, want 0", stops)
	}
}

func TestIdleExpiryTransmitsExactlyOneStop(t *testing.T) {
	tr, e := newTestTracker(30 * time.Millisecond)
	ctx := context.Background()

	tr.Keystroke(ctx, "c1")
	time.Sleep(150 * time.Millisecond)

	starts, stops := e.counts()
	if starts != 1 || stops != 1 {
		t.Errorf("starts/stops = %d/%d, want 1/1", starts, stops)
	}

	// Idle with no typing in progress must not transmit again.
	time.Sleep(100 * time.Millisecond)
	if _, stops := e.counts(); stops != 1 {
		t.Errorf("stops = %d after extra idle, want still 1", stops)
	}
}

func TestKeystrokeReArmsTimer(t *testing.T) {
	tr, e := newTestTracker(60 * time.Millisecond)
	ctx := context.Background()

	tr.Keystroke(ctx, "c1")
	time.Sleep(30 * time.Millisecond)
	tr.Keystroke(ctx, "c1") // within the window: re-arm
	time.Sleep(30 * time.Millisecond)

	if _, stops := e.counts(); stops != 0 {
		t.Fatalf("stops = %d before the re-armed window elapsed, want 0", stops)
	}

	time.Sleep(100 * time.Millisecond)
	if _, stops := e.counts(); stops != 1 {
		t.Errorf("stops = %d after expiry, want 1", stops)
	}
}

func TestStopNowCancelsTimer(t *testing.T) {
	tr, e := newTestTracker(30 * time.Millisecond)
	ctx := context.Background()

	tr.Keystroke(ctx, "c1")
	tr.StopNow(ctx)

	time.Sleep(100 * time.Millisecond)
	if _, stops := e.counts(); stops != 1 {
		t.Errorf("stops = %d, want exactly 1 (expiry after StopNow must be a no-op)", stops)
	}
}

func TestSwitchingConversationStopsPrevious(t *testing.T) {
	tr, e := newTestTracker(time.Hour)
	ctx := context.Background()

	tr.Keystroke(ctx, "c1")
	tr.Keystroke(ctx, "c2")

	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.stops) != 1 || e.stops[0] != "c1" {
		t.Errorf("stops = %v, want [c1]", e.stops)
	}
	if len(e.starts) != 2 || e.starts[1] != "c2" {
		t.Errorf("starts = %v, want [c1 c2]", e.starts)
	}
}

func TestRemoteSetScopedToActive(t *testing.T) {
	tr, _ := newTestTracker(time.Hour)
	ctx := context.Background()
	tr.SetActive(ctx, "c1")

	if changed := tr.RemoteStart("c2", "u9"); changed {
		t.Error("typing in a non-active conversation must be ignored")
	}
	tr.RemoteStart("c1", "u2")
	tr.RemoteStart("c1", "u2") // duplicate collapses
	got := tr.Typing()
	if len(got) != 1 || got[0] != "u2" {
		t.Errorf("Typing() = %v, want [u2]", got)
	}

	tr.RemoteStop("c1", "u2")
	if len(tr.Typing()) != 0 {
		t.Errorf("Typing() = %v after stop, want empty", tr.Typing())
	}
	// No underflow: a second stop is a no-op.
	if changed := tr.RemoteStop("c1", "u2"); changed {
		t.Error("stop for an identity not typing must be a no-op")
	}
}

func TestSetActiveClearsRemote(t *testing.T) {
	tr, _ := newTestTracker(time.Hour)
	ctx := context.Background()
	tr.SetActive(ctx, "c1")
	tr.RemoteStart("c1", "u2")

	tr.SetActive(ctx, "c2")
	if len(tr.Typing()) != 0 {
		t.Errorf("Typing() = %v after switch, want empty (no carry-over)", tr.Typing())
	}
}

func TestDoubleStartSingleStop(t *testing.T) {
	// Two user_typing events for the same identity followed by one
	// user_stop_typing leave the set empty.
	tr, _ := newTestTracker(time.Hour)
	tr.SetActive(context.Background(), "c1")

	tr.RemoteStart("c1", "u2")
	tr.RemoteStart("c1", "u2")
	tr.RemoteStop("c1", "u2")

	if got := tr.Typing(); len(got) != 0 {
		t.Errorf("Typing() = %v, want empty", got)
	}
}
