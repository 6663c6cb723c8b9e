package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type leaveVars struct {
	squadID string
}

func leaveMutation() Mutation[leaveVars] {
	return Mutation[leaveVars]{
		Keys: func(v leaveVars) []Key {
			return []Key{SquadListKey("u1"), SquadDetailKey(v.squadID)}
		},
		Update: func(c *Cache, v leaveVars) {
			UpdateAs(c, SquadListKey("u1"), func(old []string, ok bool) []string {
				if !ok {
					return nil
				}
				out := make([]string, 0, len(old))
				for _, id := range old {
					if id != v.squadID {
						out = append(out, id)
					}
				}
				return out
			})
		},
		InvalidateKeys: func(v leaveVars) []Key {
			return []Key{SquadListKey("u1"), SquadDetailKey(v.squadID)}
		},
	}
}

func TestRunAppliesSpeculativeUpdateBeforeOperation(t *testing.T) {
	c := New()
	c.Set(SquadListKey("u1"), []string{"sq1", "sq2", "sq3"})

	var seenDuringOp any
	err := Run(context.Background(), c, leaveMutation(), leaveVars{squadID: "sq2"}, func(ctx context.Context) error {
		seenDuringOp, _ = c.Get(SquadListKey("u1"))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"sq1", "sq3"}, seenDuringOp, "readers see the optimistic value while the operation is in flight")
}

func TestRunRollsBackExactlyOnFailure(t *testing.T) {
	c := New()
	before := []string{"sq1", "sq2", "sq3"}
	c.Set(SquadListKey("u1"), before)
	c.Set(SquadDetailKey("sq2"), "detail")

	opErr := errors.New("squad is busy")
	err := Run(context.Background(), c, leaveMutation(), leaveVars{squadID: "sq2"}, func(ctx context.Context) error {
		return opErr
	})
	require.ErrorIs(t, err, opErr)

	v, ok := c.Get(SquadListKey("u1"))
	require.True(t, ok)
	assert.Equal(t, before, v, "failed mutation restores the snapshot exactly")
}

func TestRunKeepsUntouchedAbsentKeysAbsent(t *testing.T) {
	c := New()
	// Only the list is populated; the detail key has never been loaded.
	c.Set(SquadListKey("u1"), []string{"sq1", "sq2"})

	err := Run(context.Background(), c, leaveMutation(), leaveVars{squadID: "sq2"}, func(ctx context.Context) error {
		return errors.New("boom")
	})
	require.Error(t, err)

	_, ok := c.Get(SquadDetailKey("sq2"))
	assert.False(t, ok, "an entry absent at snapshot time stays absent after rollback")

	v, ok := c.Get(SquadListKey("u1"))
	require.True(t, ok)
	assert.Equal(t, []string{"sq1", "sq2"}, v)
}

func joinMutation() Mutation[string] {
	return Mutation[string]{
		Keys: func(squadID string) []Key {
			return []Key{SquadListKey("u1")}
		},
		Update: func(c *Cache, squadID string) {
			UpdateAs(c, SquadListKey("u1"), func(old []string, ok bool) []string {
				out := make([]string, 0, len(old)+1)
				out = append(out, old...)
				return append(out, squadID)
			})
		},
		InvalidateKeys: func(squadID string) []Key {
			return []Key{SquadListKey("u1")}
		},
	}
}

// A speculative update that creates an entry on a never-loaded key
// must not survive a failed operation: rollback restores absence, and
// a later mutation's speculative base starts from the server's truth,
// not from the rejected value.
func TestRunRemovesEntriesCreatedOnAbsentKeys(t *testing.T) {
	c := New()

	err := Run(context.Background(), c, joinMutation(), "rejected-squad", func(ctx context.Context) error {
		return errors.New("invite revoked")
	})
	require.Error(t, err)

	_, ok := c.Get(SquadListKey("u1"))
	assert.False(t, ok, "entry created by the speculative update is removed on rollback")

	err = Run(context.Background(), c, joinMutation(), "real-squad", func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)

	var calls atomic.Int32
	v, err := c.Fetch(context.Background(), SquadListKey("u1"), func(ctx context.Context) (any, error) {
		calls.Add(1)
		return []string{"real-squad"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []string{"real-squad"}, v, "rejected value never leaks into later mutations")
}

func TestRunInvalidatesOnSuccess(t *testing.T) {
	c := New()
	c.Set(SquadListKey("u1"), []string{"sq1", "sq2"})

	err := Run(context.Background(), c, leaveMutation(), leaveVars{squadID: "sq2"}, func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)

	var calls atomic.Int32
	v, err := c.Fetch(context.Background(), SquadListKey("u1"), func(ctx context.Context) (any, error) {
		calls.Add(1)
		return []string{"sq1"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "settled mutation leaves the entry stale")
	assert.Equal(t, []string{"sq1"}, v)
}

func TestRunInvalidatesOnFailureToo(t *testing.T) {
	c := New()
	c.Set(SquadListKey("u1"), []string{"sq1", "sq2"})

	_ = Run(context.Background(), c, leaveMutation(), leaveVars{squadID: "sq2"}, func(ctx context.Context) error {
		return errors.New("boom")
	})

	var calls atomic.Int32
	_, err := c.Fetch(context.Background(), SquadListKey("u1"), func(ctx context.Context) (any, error) {
		calls.Add(1)
		return []string{"sq1", "sq2"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "even a rolled-back mutation refetches authoritative state")
}

// Sequential duration edits 60 -> 90 -> 120 must settle on the
// server's final value even though the first operation's settlement
// lands after the second's.
func TestSequentialMutationsConvergeOnFinalValue(t *testing.T) {
	c := New()
	key := SessionDetailKey("s1")
	var server atomic.Int64
	server.Store(60)
	c.Set(key, int64(60))

	durationMutation := Mutation[int64]{
		Keys: func(minutes int64) []Key { return []Key{key} },
		Update: func(c *Cache, minutes int64) {
			c.Set(key, minutes)
		},
		InvalidateKeys: func(minutes int64) []Key { return []Key{key} },
	}

	settleFirst := make(chan struct{})
	firstApplied := make(chan struct{})
	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		_ = Run(context.Background(), c, durationMutation, 90, func(ctx context.Context) error {
			server.Store(90)
			close(firstApplied)
			<-settleFirst
			return nil
		})
	}()

	// The server has applied the first edit but its settlement is
	// still in flight when the second edit is issued.
	select {
	case <-firstApplied:
	case <-time.After(time.Second):
		t.Fatal("first mutation never reached the server")
	}
	v, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, int64(90), v, "speculative value visible while settling")

	err := Run(context.Background(), c, durationMutation, 120, func(ctx context.Context) error {
		server.Store(120)
		return nil
	})
	require.NoError(t, err)

	close(settleFirst)
	<-firstDone

	final, err := c.Fetch(context.Background(), key, func(ctx context.Context) (any, error) {
		return server.Load(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(120), final, "cache converges on the last committed value")
}

func TestRunWithNilPhases(t *testing.T) {
	c := New()
	err := Run(context.Background(), c, Mutation[struct{}]{}, struct{}{}, func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, err)
}
