package geocoding_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/airdash/internal/geocoding"
)

func TestCachedProvider_Hit(t *testing.T) {
	inner := &fakeProvider{}
	cached := geocoding.NewCachedProvider(inner, 10)
	ctx := context.Background()

	r1, err := cached.Search(ctx, "Austin", 5)
	require.NoError(t, err)
	r2, err := cached.Search(ctx, "austin", 5)
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	assert.Len(t, inner.Queries(), 1)
}

func TestCachedProvider_EvictsLeastRecentlyUsed(t *testing.T) {
	inner := &fakeProvider{}
	cached := geocoding.NewCachedProvider(inner, 2)
	ctx := context.Background()

	for _, q := range []string{"Oslo", "Rome", "Oslo", "Kyiv", "Oslo", "Rome"} {
		_, err := cached.Search(ctx, q, 5)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"Oslo", "Rome", "Kyiv", "Rome"}, inner.Queries())
	assert.Equal(t, 2, cached.Len())
}

func TestCachedProvider_SkipsEmptyAndErrors(t *testing.T) {
	inner := &fakeProvider{results: func(string) []geocoding.Candidate { return nil }}
	cached := geocoding.NewCachedProvider(inner, 10)
	ctx := context.Background()

	_, _ = cached.Search(ctx, "Nowhere", 5)
	_, _ = cached.Search(ctx, "Nowhere", 5)
	assert.Len(t, inner.Queries(), 2)

	inner.err = errors.New("boom")
	_, err := cached.Search(ctx, "Elsewhere", 5)
	assert.Error(t, err)
	assert.Zero(t, cached.Len())
}

func TestCachedProvider_DefaultSizeAndPurge(t *testing.T) {
	inner := &fakeProvider{}
	cached := geocoding.NewCachedProvider(inner, 0)
	ctx := context.Background()

	_, err := cached.Search(ctx, "Lahore", 5)
	require.NoError(t, err)
	assert.Equal(t, 1, cached.Len())

	cached.Purge()
	assert.Zero(t, cached.Len())

	_, err = cached.Search(ctx, "Lahore", 5)
	require.NoError(t, err)
	assert.Len(t, inner.Queries(), 2)
}
