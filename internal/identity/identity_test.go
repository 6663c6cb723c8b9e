package identity

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squadup/squadup/internal/metrics"
)

func TestRequestCacheResolvesOnce(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	rc := NewRequestCache(ProviderFunc(func(ctx context.Context) (*Identity, error) {
		calls.Add(1)
		<-release
		return &Identity{UserID: "u1", Handle: "gamer_jay"}, nil
	}))

	var wg sync.WaitGroup
	results := make([]*Identity, 3)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := rc.WhoAmI(context.Background())
			assert.NoError(t, err)
			results[i] = id
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "three concurrent checks share one resolution")
	for _, id := range results {
		require.NotNil(t, id)
		assert.Equal(t, "u1", id.UserID)
		assert.Same(t, results[0], id)
	}
}

func TestRequestCacheSharesFailure(t *testing.T) {
	var calls atomic.Int32
	rc := NewRequestCache(ProviderFunc(func(ctx context.Context) (*Identity, error) {
		calls.Add(1)
		return nil, ErrNotAuthenticated
	}))

	for range 3 {
		_, err := rc.WhoAmI(context.Background())
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	}
	assert.Equal(t, int32(1), calls.Load(), "a failed resolution is memoized, not retried")
}

func TestResolveWithoutMiddleware(t *testing.T) {
	_, err := Resolve(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestResolveThroughContext(t *testing.T) {
	rc := NewRequestCache(ProviderFunc(func(ctx context.Context) (*Identity, error) {
		return &Identity{UserID: "u2"}, nil
	}))
	ctx := WithRequestCache(context.Background(), rc)

	id, err := Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u2", id.UserID)
}

func TestCheckCounterTracksProviderCallsOnly(t *testing.T) {
	checksBefore := testutil.ToFloat64(metrics.IdentityChecks)
	dedupedBefore := testutil.ToFloat64(metrics.IdentityDeduped)

	rc := NewRequestCache(ProviderFunc(func(ctx context.Context) (*Identity, error) {
		return &Identity{UserID: "u1"}, nil
	}))
	for range 3 {
		_, err := rc.WhoAmI(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.IdentityChecks)-checksBefore,
		"one provider round trip counts as one check")
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.IdentityDeduped)-dedupedBefore,
		"memoized answers count as deduped, not as checks")
}
