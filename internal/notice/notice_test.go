package notice_test

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/airdash/internal/notice"
)

func TestBoard_PostAndExpire(t *testing.T) {
	clock := clockwork.NewFakeClock()
	board := notice.NewBoard(notice.BoardConfig{Clock: clock, TTL: 4 * time.Second})

	first := board.Post(notice.KindNetworkFailure, "Could not reach the air quality service")
	clock.Advance(2 * time.Second)
	second := board.Post(notice.KindInfo, "Satellite tiles unavailable")

	active := board.Active()
	require.Len(t, active, 2)
	assert.Equal(t, first.ID, active[0].ID)
	assert.Equal(t, second.ID, active[1].ID)

	clock.Advance(2 * time.Second)
	active = board.Active()
	require.Len(t, active, 1)
	assert.Equal(t, notice.KindInfo, active[0].Kind)

	clock.Advance(2 * time.Second)
	assert.Empty(t, board.Active())
}

func TestBoard_DefaultTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	board := notice.NewBoard(notice.BoardConfig{Clock: clock})

	n := board.Post(notice.KindClipboardDenied, "Copy the link manually")
	assert.Equal(t, notice.DefaultTTL, n.ExpiresAt.Sub(n.CreatedAt))
	assert.NotEmpty(t, n.ID)
}

func TestBoard_Dismiss(t *testing.T) {
	board := notice.NewBoard(notice.BoardConfig{Clock: clockwork.NewFakeClock()})
	n := board.Post(notice.KindMalformedResponse, "Unexpected data")

	assert.True(t, board.Dismiss(n.ID))
	assert.False(t, board.Dismiss(n.ID))
	assert.Empty(t, board.Active())
}

func TestParseKind(t *testing.T) {
	k, ok := notice.ParseKind("CLIPBOARD_DENIED")
	assert.True(t, ok)
	assert.Equal(t, notice.KindClipboardDenied, k)

	_, ok = notice.ParseKind("clipboard")
	assert.False(t, ok)
}

func TestConfirmers(t *testing.T) {
	ctx := context.Background()
	assert.True(t, notice.Static(true).Confirm(ctx, "Clear everything?"))
	assert.False(t, notice.Static(false).Confirm(ctx, "Clear everything?"))

	var prompt string
	f := notice.ConfirmFunc(func(_ context.Context, p string) bool {
		prompt = p
		return true
	})
	assert.True(t, f.Confirm(ctx, "Remove Delhi?"))
	assert.Equal(t, "Remove Delhi?", prompt)
}
