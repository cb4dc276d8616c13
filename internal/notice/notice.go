// Package notice keeps short-lived user-facing messages about failures that
// were absorbed at a boundary, and abstracts interactive confirmation.
package notice

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// ErrUserCancelled is returned when a destructive action was declined.
var ErrUserCancelled = errors.New("action cancelled by user")

// Kind classifies a notice.
type Kind string

const (
	KindNetworkFailure    Kind = "NETWORK_FAILURE"
	KindMalformedResponse Kind = "MALFORMED_RESPONSE"
	KindStorageCorruption Kind = "STORAGE_CORRUPTION"
	KindClipboardDenied   Kind = "CLIPBOARD_DENIED"
	KindUserCancelled     Kind = "USER_CANCELLED"
	KindInfo              Kind = "INFO"
)

// ParseKind maps a wire value to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch k := Kind(s); k {
	case KindNetworkFailure, KindMalformedResponse, KindStorageCorruption,
		KindClipboardDenied, KindUserCancelled, KindInfo:
		return k, true
	}
	return "", false
}

// DefaultTTL is how long a notice stays visible.
const DefaultTTL = 5 * time.Second

// Notice is one transient message.
type Notice struct {
	ID        string
	Kind      Kind
	Message   string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Poster accepts notices. Components that only report depend on this.
type Poster interface {
	Post(kind Kind, message string) Notice
}

// BoardConfig holds configuration for a Board.
type BoardConfig struct {
	// TTL defaults to DefaultTTL.
	TTL time.Duration

	// Clock defaults to the real clock.
	Clock clockwork.Clock

	Logger zerolog.Logger
}

// Board holds active notices. Expired notices are pruned on access.
type Board struct {
	ttl    time.Duration
	clock  clockwork.Clock
	logger zerolog.Logger

	mu      sync.Mutex
	notices map[string]Notice
}

// NewBoard creates a notice board.
func NewBoard(cfg BoardConfig) *Board {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Board{
		ttl:     cfg.TTL,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		notices: make(map[string]Notice),
	}
}

// Post adds a notice and returns it.
func (b *Board) Post(kind Kind, message string) Notice {
	now := b.clock.Now()
	n := Notice{
		ID:        uuid.New().String(),
		Kind:      kind,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(b.ttl),
	}

	b.mu.Lock()
	b.pruneLocked(now)
	b.notices[n.ID] = n
	b.mu.Unlock()

	b.logger.Info().
		Str("notice_id", n.ID).
		Str("kind", string(kind)).
		Str("message", message).
		Msg("notice posted")
	return n
}

// Active returns unexpired notices, oldest first.
func (b *Board) Active() []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pruneLocked(b.clock.Now())
	out := make([]Notice, 0, len(b.notices))
	for _, n := range b.notices {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Dismiss removes a notice early. It reports whether the notice was active.
func (b *Board) Dismiss(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pruneLocked(b.clock.Now())
	if _, ok := b.notices[id]; !ok {
		return false
	}
	delete(b.notices, id)
	return true
}

func (b *Board) pruneLocked(now time.Time) {
	for id, n := range b.notices {
		if !now.Before(n.ExpiresAt) {
			delete(b.notices, id)
		}
	}
}

// Confirmer asks the user to confirm a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) bool

// Confirm calls f.
func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool {
	return f(ctx, prompt)
}

// Static answers every prompt with the same value.
type Static bool

// Confirm returns the static answer.
func (s Static) Confirm(context.Context, string) bool {
	return bool(s)
}
