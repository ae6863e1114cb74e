package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"payidcheck/internal/config"
	"payidcheck/internal/liveness"
	"payidcheck/internal/observability"
	"payidcheck/internal/payid"
	"payidcheck/internal/queue"
	"payidcheck/internal/store"
)

type fakeRegistry struct {
	mu      sync.Mutex
	records map[string]store.Record
	pingErr error
	nextID  int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{records: map[string]store.Record{}}
}

func (f *fakeRegistry) Ping(context.Context) error { return f.pingErr }

func (f *fakeRegistry) UpsertPayID(_ context.Context, id payid.Identifier) (store.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id.Canonical()]
	if !ok {
		f.nextID++
		rec = store.Record{ID: "rec-" + strconv.Itoa(f.nextID), Canonical: id.Canonical(), CreatedAt: time.Now()}
	}
	ascii, _ := id.ASCII()
	rec.ASCII = ascii
	rec.Account = id.Account().Canonical()
	rec.Domain = id.Domain().Canonical()
	rec.DomainACE = id.Domain().ACE()
	rec.Original = id.Original()
	rec.Status = store.StatusPending
	rec.Attempts = 0
	rec.UpdatedAt = time.Now()
	f.records[id.Canonical()] = rec
	return rec, nil
}

func (f *fakeRegistry) GetPayID(_ context.Context, canonical string) (store.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[canonical]
	if !ok {
		return store.Record{}, store.ErrNotFound
	}
	return rec, nil
}

func (f *fakeRegistry) RecordLiveness(_ context.Context, canonical string, result store.LivenessResult) (store.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[canonical]
	if !ok {
		return store.Record{}, store.ErrNotFound
	}
	rec.Status = result.Status
	rec.RecordType = result.RecordType
	rec.LastError = result.Error
	rec.Attempts++
	checked := result.CheckedAt
	rec.CheckedAt = &checked
	f.records[canonical] = rec
	return rec, nil
}

func (f *fakeRegistry) ListPayIDs(_ context.Context, status store.Status, limit int) ([]store.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Record
	for _, rec := range f.records {
		if status == "" || rec.Status == status {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Canonical < out[j].Canonical })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeQueue struct {
	mu      sync.Mutex
	jobs    []string
	retries map[string]time.Time
	pushErr error
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{retries: map[string]time.Time{}}
}

func (f *fakeQueue) Ping(context.Context) error { return nil }

func (f *fakeQueue) PushLivenessJob(_ context.Context, canonical string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return f.pushErr
	}
	f.jobs = append(f.jobs, canonical)
	return nil
}

func (f *fakeQueue) PopLivenessJob(ctx context.Context, _ time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(f.jobs) == 0 {
		f.mu.Unlock()
		time.Sleep(time.Millisecond)
		f.mu.Lock()
		return "", queue.ErrEmpty
	}
	job := f.jobs[0]
	f.jobs = f.jobs[1:]
	return job, nil
}

func (f *fakeQueue) ScheduleRetry(_ context.Context, canonical string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retries[canonical] = at
	return nil
}

func (f *fakeQueue) PromoteDue(_ context.Context, now time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	moved := 0
	for canonical, at := range f.retries {
		if !at.After(now) {
			delete(f.retries, canonical)
			f.jobs = append(f.jobs, canonical)
			moved++
		}
	}
	return moved, nil
}

func (f *fakeQueue) Depth(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.jobs)), nil
}

// fakeChecker answers from a per-domain table; unknown domains have no records.
type fakeChecker struct {
	mu      sync.Mutex
	answers map[string]liveness.RecordType
	errs    map[string]error
	calls   []string
}

func (f *fakeChecker) Check(_ context.Context, domain string) (liveness.RecordType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, domain)
	if err, ok := f.errs[domain]; ok {
		return "", err
	}
	if t, ok := f.answers[domain]; ok {
		return t, nil
	}
	return "", payid.UsableError("no MX, A or AAAA records found for " + domain)
}

var errResolverDown = errors.New("resolver down")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestApp() (*App, *fakeRegistry, *fakeQueue, *fakeChecker) {
	reg := newFakeRegistry()
	q := newFakeQueue()
	checker := &fakeChecker{answers: map[string]liveness.RecordType{}, errs: map[string]error{}}
	a := &App{
		Config:    config.Default(),
		Logger:    discardLogger(),
		Metrics:   observability.NewMetrics(),
		Validator: payid.New(),
		Store:     reg,
		Queue:     q,
		Checker:   checker,
	}
	return a, reg, q, checker
}
