package ratelimit_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ineyio/llmgateway/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCheck_AdmitsCapacityWithinWindow(t *testing.T) {
	clock := newFakeClock()
	l := ratelimit.New(3, time.Minute, ratelimit.WithClock(clock.Now))

	for i := 0; i < 3; i++ {
		ok, info := l.Check("alice", 1)
		require.True(t, ok, "check %d", i)
		assert.Equal(t, 2-i, info.TokensRemaining)
		assert.Equal(t, 3, info.Limit)
		assert.Equal(t, time.Minute, info.ResetIn)
	}

	ok, info := l.Check("alice", 1)
	assert.False(t, ok)
	assert.False(t, info.Allowed)
	assert.Equal(t, 0, info.TokensRemaining)
	assert.Equal(t, time.Minute, info.ResetIn)
}

func TestCheck_PrincipalsAreIndependent(t *testing.T) {
	clock := newFakeClock()
	l := ratelimit.New(1, time.Minute, ratelimit.WithClock(clock.Now))

	ok, _ := l.Check("alice", 1)
	require.True(t, ok)
	ok, _ = l.Check("alice", 1)
	require.False(t, ok)

	ok, _ = l.Check("bob", 1)
	assert.True(t, ok)
}

func TestCheck_RefillsProportionally(t *testing.T) {
	clock := newFakeClock()
	l := ratelimit.New(60, time.Minute, ratelimit.WithClock(clock.Now))

	ok, _ := l.Check("alice", 60)
	require.True(t, ok)
	ok, _ = l.Check("alice", 1)
	require.False(t, ok)

	// 10s of a 60/min bucket refills 10 tokens.
	clock.Advance(10 * time.Second)
	ok, info := l.Check("alice", 1)
	require.True(t, ok)
	assert.Equal(t, 9, info.TokensRemaining)
}

func TestCheck_RefillNeverExceedsCapacity(t *testing.T) {
	clock := newFakeClock()
	l := ratelimit.New(5, time.Minute, ratelimit.WithClock(clock.Now))

	ok, _ := l.Check("alice", 1)
	require.True(t, ok)

	clock.Advance(24 * time.Hour)
	ok, info := l.Check("alice", 1)
	require.True(t, ok)
	assert.Equal(t, 4, info.TokensRemaining)

	ok, _ = l.Check("alice", 5)
	assert.False(t, ok, "capacity is capped at 5, only 4 remain")
}

func TestCheck_NonPositiveCostCountsAsOne(t *testing.T) {
	clock := newFakeClock()
	l := ratelimit.New(2, time.Minute, ratelimit.WithClock(clock.Now))

	_, info := l.Check("alice", 0)
	assert.Equal(t, 1, info.TokensRemaining)
	_, info = l.Check("alice", -5)
	assert.Equal(t, 0, info.TokensRemaining)
}

func TestCheck_ConcurrentSamePrincipalNeverOverAdmits(t *testing.T) {
	clock := newFakeClock()
	l := ratelimit.New(50, time.Minute, ratelimit.WithClock(clock.Now))

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Check("alice", 1); ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), admitted.Load())
}

func TestPrune_RemovesIdleBuckets(t *testing.T) {
	clock := newFakeClock()
	l := ratelimit.New(2, time.Minute, ratelimit.WithClock(clock.Now))

	l.Check("alice", 1)
	clock.Advance(30 * time.Minute)
	l.Check("bob", 1)
	require.Equal(t, 2, l.Len())

	removed := l.Prune(10 * time.Minute)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, l.Len())

	// A pruned principal starts over with a full bucket.
	_, info := l.Check("alice", 1)
	assert.Equal(t, 1, info.TokensRemaining)
}

func TestPrune_ConcurrentWithCheck(t *testing.T) {
	l := ratelimit.New(1000, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				l.Check("alice", 1)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 100; j++ {
			l.Prune(0)
		}
	}()
	wg.Wait()

	assert.LessOrEqual(t, l.Len(), 1)
}
