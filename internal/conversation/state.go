// Package conversation tracks the short-lived per-user dialogue state
// between a swap command and the amount that answers it.
package conversation

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultTTL is how long a pending prompt stays answerable.
const DefaultTTL = 5 * time.Minute

// Side distinguishes buy and sell dialogues.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ErrNoPending is returned by Answer when the user has no live prompt.
var ErrNoPending = errors.New("conversation: no pending prompt")

// ErrExpired is returned by Answer when the user's prompt outlived the
// TTL. The prompt is dropped; the reply is not interpreted as an amount.
var ErrExpired = errors.New("conversation: prompt expired")

// ErrBadAmount is returned by Answer when the reply is not a positive
// decimal number.
var ErrBadAmount = errors.New("conversation: amount must be a positive number")

// Pending is a prompt awaiting an amount reply.
type Pending struct {
	Side    Side
	Mint    string
	AskedAt time.Time
}

// Tracker holds pending prompts per user. Prompts expire after the TTL;
// an expired prompt behaves exactly like no prompt at all.
type Tracker struct {
	mu      sync.Mutex
	pending map[int64]Pending
	ttl     time.Duration
	now     func() time.Time
}

// Option configures Tracker.
type Option func(*Tracker)

// WithTTL overrides the prompt lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(t *Tracker) {
		t.ttl = ttl
	}
}

// WithClock overrides the time source (used in tests).
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker creates a Tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		pending: make(map[int64]Pending),
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Ask records a prompt for userID. Any previous pending prompt is
// replaced, including its mint binding.
func (t *Tracker) Ask(userID int64, side Side, mint string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[userID] = Pending{Side: side, Mint: mint, AskedAt: t.now()}
}

// Answer consumes the pending prompt for userID with the given reply
// text. On success the prompt is cleared and the parsed amount (in the
// user-facing decimal unit) is returned alongside the prompt.
//
// A malformed amount keeps the prompt alive so the user can retry.
func (t *Tracker) Answer(userID int64, text string) (Pending, float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.pending[userID]
	if !ok {
		return Pending{}, 0, ErrNoPending
	}
	if t.now().Sub(p.AskedAt) > t.ttl {
		delete(t.pending, userID)
		return Pending{}, 0, ErrExpired
	}

	amount, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return Pending{}, 0, ErrBadAmount
	}

	delete(t.pending, userID)
	return p, amount, nil
}

// Cancel drops any pending prompt for userID.
func (t *Tracker) Cancel(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, userID)
}
