package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskgrid/taskgrid/internal/clock"
)

func TestCache_LoadAndHit(t *testing.T) {
	ctx := context.Background()
	aCache := New[string, string](time.Minute)

	var loads int32
	loader := func(ctx context.Context, key string) (string, error) {
		atomic.AddInt32(&loads, 1)
		return "value-" + key, nil
	}

	value, cached, err := aCache.Load(ctx, "k1", loader)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "value-k1", value)

	value, cached, err = aCache.Load(ctx, "k1", loader)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, "value-k1", value)
	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))
}

func TestCache_TTLExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock.NowFunc = func() time.Time { return now }
	defer func() { clock.NowFunc = time.Now }()

	ctx := context.Background()
	aCache := New[string, int](10 * time.Minute)

	var loads int32
	loader := func(ctx context.Context, key string) (int, error) {
		return int(atomic.AddInt32(&loads, 1)), nil
	}

	value, _, err := aCache.Load(ctx, "k", loader)
	require.NoError(t, err)
	assert.Equal(t, 1, value)

	now = now.Add(9 * time.Minute)
	value, cached, err := aCache.Load(ctx, "k", loader)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, 1, value)

	now = now.Add(2 * time.Minute)
	value, cached, err = aCache.Load(ctx, "k", loader)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 2, value)
}

func TestCache_SingleFlight(t *testing.T) {
	ctx := context.Background()
	aCache := New[string, string](time.Minute)

	var loads int32
	release := make(chan struct{})
	loader := func(ctx context.Context, key string) (string, error) {
		atomic.AddInt32(&loads, 1)
		<-release
		return "shared", nil
	}

	const callers = 50
	var wg sync.WaitGroup
	results := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, errs[i] = aCache.Load(ctx, "shared-key", loader)
		}(i)
	}

	// Give every caller a chance to join the in-flight load before release.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "shared", results[i])
	}
}

func TestCache_LoaderErrorNotCached(t *testing.T) {
	ctx := context.Background()
	aCache := New[string, string](time.Minute)

	var loads int32
	boom := errors.New("fetch failed")
	loader := func(ctx context.Context, key string) (string, error) {
		if atomic.AddInt32(&loads, 1) == 1 {
			return "", boom
		}
		return "recovered", nil
	}

	_, _, err := aCache.Load(ctx, "k", loader)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, aCache.Len())

	value, cached, err := aCache.Load(ctx, "k", loader)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "recovered", value)
}

func TestCache_PutEvict(t *testing.T) {
	aCache := New[string, int](0)
	aCache.Put("a", 1)
	value, ok := aCache.Lookup("a")
	assert.True(t, ok)
	assert.Equal(t, 1, value)

	aCache.Evict("a")
	_, ok = aCache.Lookup("a")
	assert.False(t, ok)

	aCache.Put("b", 2)
	aCache.Clear()
	assert.Equal(t, 0, aCache.Len())
}
