package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinelingua-service/internal/metrics"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(ttl time.Duration) (*Store, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New(ttl, WithClock(clock.Now)), clock
}

func TestGetRespectsTTL(t *testing.T) {
	s, clock := newTestStore(time.Hour)
	s.Put("k", []byte(`"v"`))

	got, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, `"v"`, string(got))

	clock.Advance(59 * time.Minute)
	_, ok = s.Get("k")
	assert.True(t, ok)

	clock.Advance(time.Minute)
	_, ok = s.Get("k")
	assert.False(t, ok, "an entry exactly TTL old has expired")

	assert.Equal(t, Stats{Hits: 2, Misses: 1, Keys: 1}, s.Stats())
}

func TestGetReturnsCopies(t *testing.T) {
	s, _ := newTestStore(time.Hour)
	payload := []byte("abc")
	s.Put("k", payload)
	payload[0] = 'X'

	first, _ := s.Get("k")
	first[1] = 'Y'
	second, _ := s.Get("k")
	assert.Equal(t, "abc", string(second))
}

func TestNewDefaultsTTL(t *testing.T) {
	assert.Equal(t, DefaultTTL, New(0).TTL())
}

func TestFetchCachesAndRefreshes(t *testing.T) {
	s, clock := newTestStore(time.Hour)
	ctx := context.Background()
	calls := 0
	compute := func(context.Context) ([]string, error) {
		calls++
		return []string{"en", "fr"}, nil
	}

	got, err := Fetch(ctx, s, "languages", "languages", false, compute)
	require.NoError(t, err)
	assert.Equal(t, []string{"en", "fr"}, got)

	got[0] = "mutated"
	again, err := Fetch(ctx, s, "languages", "languages", false, compute)
	require.NoError(t, err)
	assert.Equal(t, []string{"en", "fr"}, again, "callers get independent copies")
	assert.Equal(t, 1, calls)

	_, err = Fetch(ctx, s, "languages", "languages", true, compute)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "refresh always recomputes")

	clock.Advance(2 * time.Hour)
	_, err = Fetch(ctx, s, "languages", "languages", false, compute)
	require.NoError(t, err)
	assert.Equal(t, 3, calls, "expired entries are recomputed")
}

func TestFetchDoesNotCacheErrors(t *testing.T) {
	s, _ := newTestStore(time.Hour)
	boom := errors.New("db down")

	_, err := Fetch(context.Background(), s, "stats", "stats", false, func(context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, s.Len())

	v, err := Fetch(context.Background(), s, "stats", "stats", false, func(context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestFetchSharesConcurrentComputation(t *testing.T) {
	s, _ := newTestStore(time.Hour)
	var calls atomic.Int32
	release := make(chan struct{})

	compute := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	const workers = 8
	var wg sync.WaitGroup
	results := make([]int, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := Fetch(context.Background(), s, "picks", "picks", false, compute)
			assert.NoError(t, err)
			results[i] = v
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, v := range results {
		assert.Equal(t, 42, v)
	}
	assert.LessOrEqual(t, calls.Load(), int32(workers))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestFetchCancelledCallerDoesNotFailOthers(t *testing.T) {
	s, _ := newTestStore(time.Hour)
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	compute := func(ctx context.Context) (int, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		return 42, nil
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := Fetch(firstCtx, s, "stats", "stats", false, compute)
		firstErr <- err
	}()
	<-started

	type result struct {
		v   int
		err error
	}
	second := make(chan result, 1)
	go func() {
		v, err := Fetch(context.Background(), s, "stats", "stats", false, compute)
		second <- result{v, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting on the shared computation")
	}

	close(release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, 42, got.v)
	assert.Equal(t, int32(1), calls.Load())

	cached, ok := s.Get("stats")
	require.True(t, ok, "the shared result is stored even though its first caller left")
	assert.Equal(t, "42", string(cached))
}

func TestFetchRecordsMetrics(t *testing.T) {
	m := metrics.New()
	s := New(time.Hour, WithMetrics(m))
	compute := func(context.Context) (string, error) { return "x", nil }

	_, _ = Fetch(context.Background(), s, "genres", "g:1", false, compute)
	_, _ = Fetch(context.Background(), s, "genres", "g:1", false, compute)
	_, _ = Fetch(context.Background(), s, "genres", "g:1", true, compute)

	expected := `
# HELP cinelingua_cache_requests_total Aggregate cache lookups by namespace and result (hit, miss, bypass)
# TYPE cinelingua_cache_requests_total counter
cinelingua_cache_requests_total{namespace="genres",result="bypass"} 1
cinelingua_cache_requests_total{namespace="genres",result="hit"} 1
cinelingua_cache_requests_total{namespace="genres",result="miss"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry, strings.NewReader(expected), "cinelingua_cache_requests_total"))

	_, _ = Fetch(context.Background(), s, "genres", "g:2", false, compute)
	entries := `
# HELP cinelingua_cache_entries Entries held by the aggregate cache, expired ones included
# TYPE cinelingua_cache_entries gauge
cinelingua_cache_entries 2
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry, strings.NewReader(entries), "cinelingua_cache_entries"))
}

func TestGenerateKey(t *testing.T) {
	a := GenerateKey("genres", "fr")
	b := GenerateKey("genres", "fr")
	c := GenerateKey("genres", "en")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Regexp(t, `^genres:[0-9a-f]{32}$`, a)
	assert.Equal(t, "stats", GenerateKey("stats", nil))
}
