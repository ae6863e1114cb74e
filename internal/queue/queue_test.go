package queue

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	url := os.Getenv("PAYID_TEST_REDIS_URL")
	if url == "" {
		t.Skip("PAYID_TEST_REDIS_URL not set")
	}
	q, err := New(url)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := q.Ping(ctx); err != nil {
		t.Skipf("redis unavailable (%s): %v", url, err)
	}
	require.NoError(t, q.client.Del(context.Background(), livenessJobsKey, livenessRetryKey).Err())
	t.Cleanup(func() {
		_ = q.client.Del(context.Background(), livenessJobsKey, livenessRetryKey).Err()
		_ = q.Close()
	})
	return q
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New("not a url")
	assert.Error(t, err)
}

func TestPushPopIsFIFO(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.PushLivenessJob(ctx, "alice$example.com"))
	require.NoError(t, q.PushLivenessJob(ctx, "bob$example.com"))
	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, depth)

	got, err := q.PopLivenessJob(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "alice$example.com", got)
	got, err = q.PopLivenessJob(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "bob$example.com", got)

	_, err = q.PopLivenessJob(ctx, 100*time.Millisecond)
	assert.True(t, errors.Is(err, ErrEmpty))
}

func TestPromoteDue(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, q.ScheduleRetry(ctx, "due$example.com", now.Add(-time.Second)))
	require.NoError(t, q.ScheduleRetry(ctx, "later$example.com", now.Add(time.Hour)))

	moved, err := q.PromoteDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	pending, err := q.Pending(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending)

	got, err := q.PopLivenessJob(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "due$example.com", got)
}

func TestPromoteDueMovesEachRetryOnce(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	now := time.Now()
	for _, canonical := range []string{"a$example.com", "b$example.com", "c$example.com"} {
		require.NoError(t, q.ScheduleRetry(ctx, canonical, now.Add(-time.Minute)))
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			moved, err := q.PromoteDue(ctx, now)
			assert.NoError(t, err)
			mu.Lock()
			total += moved
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, total)
	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, depth)
	pending, err := q.Pending(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, pending)
}

func TestPromoteDueKeepsRetryWhenNothingMoved(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, q.ScheduleRetry(ctx, "later$example.com", now.Add(time.Minute)))

	moved, err := q.PromoteDue(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, moved)

	moved, err = q.PromoteDue(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, moved)
	pending, err := q.Pending(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, pending)
}
