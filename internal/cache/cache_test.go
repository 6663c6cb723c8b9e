package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchCachesFreshValue(t *testing.T) {
	c := New()
	var calls atomic.Int32
	fn := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return "squad night", nil
	}

	v, err := c.Fetch(context.Background(), "sessions/detail/s1", fn)
	require.NoError(t, err)
	assert.Equal(t, "squad night", v)

	v, err = c.Fetch(context.Background(), "sessions/detail/s1", fn)
	require.NoError(t, err)
	assert.Equal(t, "squad night", v)
	assert.Equal(t, int32(1), calls.Load(), "second read should hit the cache")
}

func TestInvalidateForcesRefetch(t *testing.T) {
	c := New()
	var calls atomic.Int32
	fn := func(ctx context.Context) (any, error) {
		return int(calls.Add(1)), nil
	}

	v, err := c.Fetch(context.Background(), "squads/list", fn)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	c.Invalidate("squads/list")

	v, err = c.Fetch(context.Background(), "squads/list", fn)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestInvalidateIsIdempotent(t *testing.T) {
	c := New()
	var calls atomic.Int32
	fn := func(ctx context.Context) (any, error) {
		return int(calls.Add(1)), nil
	}

	_, err := c.Fetch(context.Background(), "squads/list", fn)
	require.NoError(t, err)

	c.Invalidate("squads/list")
	c.Invalidate("squads/list")
	c.Invalidate("squads/list")

	v, err := c.Fetch(context.Background(), "squads/list", fn)
	require.NoError(t, err)
	assert.Equal(t, 2, v, "repeated invalidation triggers one refetch, not three")
}

func TestInvalidateUnknownKeyIsSafe(t *testing.T) {
	c := New()
	c.Invalidate("sessions/detail/ghost")

	_, ok := c.Get("sessions/detail/ghost")
	assert.False(t, ok)
}

func TestInvalidatePrefix(t *testing.T) {
	c := New()
	c.Set("sessions/list/sq1", "a")
	c.Set("sessions/detail/s1", "b")
	c.Set("sessions/upcoming", "c")
	c.Set("squads/list", "d")

	c.InvalidatePrefix(SessionsKey())

	var calls atomic.Int32
	fn := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return "fresh", nil
	}
	for _, key := range []Key{"sessions/list/sq1", "sessions/detail/s1", "sessions/upcoming"} {
		_, err := c.Fetch(context.Background(), key, fn)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), calls.Load(), "all session entries refetch")

	v, err := c.Fetch(context.Background(), "squads/list", fn)
	require.NoError(t, err)
	assert.Equal(t, "d", v, "squad entry untouched")
}

func TestConcurrentFetchesCollapse(t *testing.T) {
	c := New()
	var calls atomic.Int32
	release := make(chan struct{})
	fn := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return "once", nil
	}

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Fetch(context.Background(), "profile/u1", fn)
			assert.NoError(t, err)
			assert.Equal(t, "once", v)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "overlapping fetches share one load")
}

func TestLateFetchCannotClearNewerInvalidation(t *testing.T) {
	c := New()
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	slow := func(ctx context.Context) (any, error) {
		calls.Add(1)
		close(started)
		<-release
		return "stale payload", nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		v, err := c.Fetch(context.Background(), "squads/detail/sq1", slow)
		assert.NoError(t, err)
		assert.Equal(t, "stale payload", v)
	}()

	<-started
	c.Invalidate("squads/detail/sq1")
	close(release)
	<-done

	// The late write-back must not have marked the entry fresh.
	fresh := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return "current payload", nil
	}
	v, err := c.Fetch(context.Background(), "squads/detail/sq1", fresh)
	require.NoError(t, err)
	assert.Equal(t, "current payload", v)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchErrorIsNotCached(t *testing.T) {
	c := New()
	var calls atomic.Int32
	fn := func(ctx context.Context) (any, error) {
		if calls.Add(1) == 1 {
			return nil, assert.AnError
		}
		return "recovered", nil
	}

	_, err := c.Fetch(context.Background(), "squads/list", fn)
	require.Error(t, err)

	v, err := c.Fetch(context.Background(), "squads/list", fn)
	require.NoError(t, err)
	assert.Equal(t, "recovered", v)
}

func TestFetchAsTypeMismatch(t *testing.T) {
	c := New()
	c.Set("squads/list", 42)

	_, err := FetchAs(context.Background(), c, "squads/list", func(ctx context.Context) (string, error) {
		return "", nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "holds int")
}

func TestUpdateAsAbsentEntry(t *testing.T) {
	c := New()
	UpdateAs(c, "squads/list", func(old []string, ok bool) []string {
		assert.False(t, ok)
		return append(old, "new squad")
	})

	v, ok := c.Get("squads/list")
	require.True(t, ok)
	assert.Equal(t, []string{"new squad"}, v)
}
