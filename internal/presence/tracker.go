// Package presence tracks ephemeral typing state: the local debounce that
// decides when to transmit typing/stop_typing, and the set of remote
// identities typing in the active conversation. Nothing here persists.
package presence

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Emitter transmits typing signals. Implementations are best-effort; the
// tracker logs failures and carries on.
type Emitter interface {
	StartTyping(ctx context.Context, conversationID string) error
	StopTyping(ctx context.Context, conversationID string) error
}

// Tracker owns the local typing timer and the remote typing set. The
// timer is a scoped resource: it is cancelled whenever typing stops or
// the active conversation changes.
type Tracker struct {
	emitter Emitter
	idle    time.Duration
	logger  *zap.Logger

	mu       sync.Mutex
	active   string
	typingIn string
	timer    *time.Timer
	armGen   uint64
	remote   map[string]struct{}
}

// NewTracker creates a tracker with the given idle window (how long the
// composer may sit untouched before stop_typing is transmitted).
func NewTracker(emitter Emitter, idle time.Duration, logger *zap.Logger) *Tracker {
	return &Tracker{
		emitter: emitter,
		idle:    idle,
		logger:  logger,
		remote:  make(map[string]struct{}),
	}
}

// Keystroke records local composer activity for a conversation. The first
// keystroke transmits typing and arms the idle timer; keystrokes within
// the window only re-arm it.
func (t *Tracker) Keystroke(ctx context.Context, conversationID string) {
	if conversationID == "" {
		return
	}

	t.mu.Lock()
	if t.typingIn == conversationID {
		t.armGen++
		gen := t.armGen
		t.timer.Stop()
		t.timer = time.AfterFunc(t.idle, func() { t.expire(gen) })
		t.mu.Unlock()
		return
	}
	prev := t.stopLocked()
	t.typingIn = conversationID
	t.armGen++
	gen := t.armGen
	t.timer = time.AfterFunc(t.idle, func() { t.expire(gen) })
	t.mu.Unlock()

	if prev != "" {
		t.emitStop(ctx, prev)
	}
	if err := t.emitter.StartTyping(ctx, conversationID); err != nil {
		t.logger.Warn("typing signal failed", zap.Error(err))
	}
}

// StopNow cancels the idle timer and transmits stop_typing immediately if
// typing was in progress. Called on send and on conversation switch.
func (t *Tracker) StopNow(ctx context.Context) {
	t.mu.Lock()
	prev := t.stopLocked()
	t.mu.Unlock()

	if prev != "" {
		t.emitStop(ctx, prev)
	}
}

// expire is the idle timer callback. The generation guard makes a timer
// that lost a re-arm race a no-op, so each idle period transmits exactly
// one stop_typing.
func (t *Tracker) expire(gen uint64) {
	t.mu.Lock()
	if gen != t.armGen || t.typingIn == "" {
		t.mu.Unlock()
		return
	}
	conv := t.typingIn
	t.typingIn = ""
	t.timer = nil
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	t.emitStop(ctx, conv)
}

// stopLocked clears local typing state and returns the conversation that
// was being typed in, or "".
func (t *Tracker) stopLocked() string {
	prev := t.typingIn
	t.typingIn = ""
	t.armGen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	return prev
}

func (t *Tracker) emitStop(ctx context.Context, conversationID string) {
	if err := t.emitter.StopTyping(ctx, conversationID); err != nil {
		t.logger.Warn("stop typing signal failed", zap.Error(err))
	}
}

// SetActive switches the conversation remote state is scoped to. The
// remote set never carries over between conversations, and any local
// typing in the previous conversation is stopped.
func (t *Tracker) SetActive(ctx context.Context, conversationID string) {
	t.mu.Lock()
	t.active = conversationID
	t.remote = make(map[string]struct{})
	prev := t.stopLocked()
	t.mu.Unlock()

	if prev != "" {
		t.emitStop(ctx, prev)
	}
}

// RemoteStart marks a remote identity as typing. Events for non-active
// conversations are ignored; duplicates collapse. Returns whether the set
// changed.
func (t *Tracker) RemoteStart(conversationID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if conversationID != t.active || t.active == "" {
		return false
	}
	if _, ok := t.remote[userID]; ok {
		return false
	}
	t.remote[userID] = struct{}{}
	return true
}

// RemoteStop clears a remote identity's typing state. Stopping an
// identity that was never typing is a no-op, never an underflow.
func (t *Tracker) RemoteStop(conversationID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if conversationID != t.active {
		return false
	}
	if _, ok := t.remote[userID]; !ok {
		return false
	}
	delete(t.remote, userID)
	return true
}

// Typing returns the identities currently typing in the active
// conversation, sorted for deterministic rendering.
func (t *Tracker) Typing() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.remote))
	for id := range t.remote {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Reset drops all state without transmitting anything (logout).
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.active = ""
	t.typingIn = ""
	t.armGen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.remote = make(map[string]struct{})
	t.mu.Unlock()
}
