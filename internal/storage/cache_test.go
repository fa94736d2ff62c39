package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/spoiler/internal/picker"
)

var errUpstream = errors.New("upstream down")

type countingResolver struct {
	calls int
	rec   picker.Record
	err   error
}

func (r *countingResolver) Resolve(_ context.Context, id int64) (picker.Record, error) {
	r.calls++
	if r.err != nil {
		return picker.Record{}, r.err
	}
	rec := r.rec
	rec.ID = id
	return rec, nil
}

func TestCachedRecord_SetGet(t *testing.T) {
	store := newTestStore(t)
	store.now = func() time.Time { return time.UnixMilli(10_000) }
	ctx := context.Background()
	rec := picker.Record{ID: 3, Title: "Ending", Content: "<p>twist</p>"}

	require.NoError(t, store.SetCachedRecord(ctx, "spoiler", rec, time.Minute))

	got, err := store.GetCachedRecord(ctx, "spoiler", 3, false)
	require.NoError(t, err)
	assert.Equal(t, rec, got.Record)
	assert.Equal(t, int64(10_000+60_000), got.ExpiresAtUnixMs)

	_, err = store.GetCachedRecord(ctx, "post", 3, false)
	assert.ErrorIs(t, err, ErrCacheNotFound)
}

func TestCachedRecord_HitCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SetCachedRecord(ctx, "spoiler", picker.Record{ID: 1}, time.Hour))

	for i := 0; i < 3; i++ {
		_, err := store.GetCachedRecord(ctx, "spoiler", 1, false)
		require.NoError(t, err)
	}
	got, err := store.GetCachedRecord(ctx, "spoiler", 1, false)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.HitCount)
}

func TestCachedRecord_Expired(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.UnixMilli(1_000_000)
	store.now = func() time.Time { return now }
	require.NoError(t, store.SetCachedRecord(ctx, "spoiler", picker.Record{ID: 1, Title: "old"}, time.Second))

	now = now.Add(2 * time.Second)

	_, err := store.GetCachedRecord(ctx, "spoiler", 1, false)
	assert.ErrorIs(t, err, ErrCacheNotFound)

	stale, err := store.GetCachedRecord(ctx, "spoiler", 1, true)
	require.NoError(t, err)
	assert.Equal(t, "old", stale.Record.Title)

	n, err := store.PruneExpiredRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = store.GetCachedRecord(ctx, "spoiler", 1, true)
	assert.ErrorIs(t, err, ErrCacheNotFound)
}

func TestCachedRecord_Validation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	assert.Error(t, store.SetCachedRecord(ctx, "", picker.Record{ID: 1}, time.Minute))
	assert.Error(t, store.SetCachedRecord(ctx, "spoiler", picker.Record{ID: 1}, 0))
	_, err := store.GetCachedRecord(ctx, "", 1, false)
	assert.Error(t, err)
}

func TestCachedResolver_CachesFreshRecords(t *testing.T) {
	store := newTestStore(t)
	next := &countingResolver{rec: picker.Record{Title: "Ending", Content: "<p>x</p>"}}
	r := NewCachedResolver(next, store, "spoiler", time.Minute)
	ctx := context.Background()

	first, err := r.Resolve(ctx, 9)
	require.NoError(t, err)
	second, err := r.Resolve(ctx, 9)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(9), second.ID)
	assert.Equal(t, 1, next.calls)
}

func TestCachedResolver_RefreshesExpired(t *testing.T) {
	store := newTestStore(t)
	now := time.UnixMilli(1_000_000)
	store.now = func() time.Time { return now }
	next := &countingResolver{rec: picker.Record{Title: "v1"}}
	r := NewCachedResolver(next, store, "spoiler", time.Second)
	ctx := context.Background()

	_, err := r.Resolve(ctx, 1)
	require.NoError(t, err)

	now = now.Add(time.Minute)
	next.rec.Title = "v2"
	got, err := r.Resolve(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Title)
	assert.Equal(t, 2, next.calls)
}

func TestCachedResolver_ServesStaleOnError(t *testing.T) {
	store := newTestStore(t)
	now := time.UnixMilli(1_000_000)
	store.now = func() time.Time { return now }
	next := &countingResolver{rec: picker.Record{Title: "kept"}}
	r := NewCachedResolver(next, store, "spoiler", time.Second)
	ctx := context.Background()

	_, err := r.Resolve(ctx, 1)
	require.NoError(t, err)

	now = now.Add(time.Minute)
	next.err = errUpstream
	got, err := r.Resolve(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "kept", got.Title)
}

func TestCachedResolver_MissAndErrorPropagates(t *testing.T) {
	store := newTestStore(t)
	r := NewCachedResolver(&countingResolver{err: errUpstream}, store, "spoiler", time.Minute)

	_, err := r.Resolve(context.Background(), 1)
	assert.ErrorIs(t, err, errUpstream)
}

func TestCachedResolver_ZeroTTLBypassesCache(t *testing.T) {
	store := newTestStore(t)
	next := &countingResolver{}
	r := NewCachedResolver(next, store, "spoiler", 0)
	ctx := context.Background()

	_, _ = r.Resolve(ctx, 1)
	_, _ = r.Resolve(ctx, 1)
	assert.Equal(t, 2, next.calls)

	_, err := store.GetCachedRecord(ctx, "spoiler", 1, true)
	assert.ErrorIs(t, err, ErrCacheNotFound)
}
