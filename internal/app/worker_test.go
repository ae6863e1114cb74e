package app

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payidcheck/internal/liveness"
	"payidcheck/internal/payid"
	"payidcheck/internal/store"
)

func newTestWorker(t *testing.T, inputs ...string) (*Worker, *fakeRegistry, *fakeQueue, *fakeChecker, *time.Time) {
	t.Helper()
	a, reg, q, checker := newTestApp()
	a.Config.Liveness.RetryDelay = time.Minute
	a.Config.Liveness.MaxAttempts = 2
	for _, in := range inputs {
		id, err := payid.Validate(in)
		require.NoError(t, err)
		_, err = reg.UpsertPayID(context.Background(), id)
		require.NoError(t, err)
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := a.Worker()
	w.Now = func() time.Time { return now }
	return w, reg, q, checker, &now
}

func TestWorkerMarksUsable(t *testing.T) {
	w, reg, q, checker, _ := newTestWorker(t, "alice$bücher.de")
	checker.answers["xn--bcher-kva.de"] = liveness.MX

	require.NoError(t, w.Process(context.Background(), "alice$bücher.de"))

	rec, err := reg.GetPayID(context.Background(), "alice$bücher.de")
	require.NoError(t, err)
	assert.Equal(t, store.StatusUsable, rec.Status)
	assert.Equal(t, "MX", rec.RecordType)
	assert.Equal(t, 1, rec.Attempts)
	assert.Equal(t, []string{"xn--bcher-kva.de"}, checker.calls)
	assert.Empty(t, q.retries)
	assert.Equal(t, 1.0, testutil.ToFloat64(w.Metrics.LivenessCheck.WithLabelValues("usable")))
}

func TestWorkerRetriesThenGivesUp(t *testing.T) {
	w, reg, q, _, now := newTestWorker(t, "bob$nowhere.example")
	ctx := context.Background()

	require.NoError(t, w.Process(ctx, "bob$nowhere.example"))
	rec, err := reg.GetPayID(ctx, "bob$nowhere.example")
	require.NoError(t, err)
	assert.Equal(t, store.StatusPending, rec.Status)
	assert.Contains(t, rec.LastError, "no MX, A or AAAA records found")
	assert.Equal(t, now.Add(time.Minute), q.retries["bob$nowhere.example"])

	delete(q.retries, "bob$nowhere.example")
	require.NoError(t, w.Process(ctx, "bob$nowhere.example"))
	rec, err = reg.GetPayID(ctx, "bob$nowhere.example")
	require.NoError(t, err)
	assert.Equal(t, store.StatusUnusable, rec.Status)
	assert.Equal(t, 2, rec.Attempts)
	assert.Empty(t, q.retries)
	assert.Equal(t, 1.0, testutil.ToFloat64(w.Metrics.LivenessCheck.WithLabelValues("retry")))
	assert.Equal(t, 1.0, testutil.ToFloat64(w.Metrics.LivenessCheck.WithLabelValues("unusable")))
}

func TestWorkerResolverErrorDoesNotCountAttempt(t *testing.T) {
	w, reg, q, checker, _ := newTestWorker(t, "carol$flaky.example")
	checker.errs["flaky.example"] = errResolverDown

	err := w.Process(context.Background(), "carol$flaky.example")
	assert.ErrorIs(t, err, errResolverDown)

	rec, getErr := reg.GetPayID(context.Background(), "carol$flaky.example")
	require.NoError(t, getErr)
	assert.Equal(t, 0, rec.Attempts)
	assert.Contains(t, q.retries, "carol$flaky.example")
}

func TestWorkerDropsUnknownPayID(t *testing.T) {
	w, _, q, checker, _ := newTestWorker(t)
	require.NoError(t, w.Process(context.Background(), "ghost$example.com"))
	assert.Empty(t, checker.calls)
	assert.Empty(t, q.retries)
}

func TestWorkerRunDrainsQueue(t *testing.T) {
	w, reg, q, checker, _ := newTestWorker(t, "a$example.com", "b$example.org")
	checker.answers["example.com"] = liveness.A
	checker.answers["example.org"] = liveness.AAAA
	q.jobs = []string{"a$example.com", "b$example.org"}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		a, _ := reg.GetPayID(context.Background(), "a$example.com")
		b, _ := reg.GetPayID(context.Background(), "b$example.org")
		return a.Status == store.StatusUsable && b.Status == store.StatusUsable
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
