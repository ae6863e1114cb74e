package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"payidcheck/internal/observability"
	"payidcheck/internal/payid"
	"payidcheck/internal/queue"
	"payidcheck/internal/store"
)

// Worker drains the liveness queue and records each outcome.
type Worker struct {
	Store       Registry
	Queue       JobQueue
	Checker     DomainChecker
	Metrics     *observability.Metrics
	Logger      *slog.Logger
	RetryDelay  time.Duration
	MaxAttempts int
	PopTimeout  time.Duration
	Now         func() time.Time
}

func (a *App) Worker() *Worker {
	return &Worker{
		Store:       a.Store,
		Queue:       a.Queue,
		Checker:     a.Checker,
		Metrics:     a.Metrics,
		Logger:      a.logger(),
		RetryDelay:  a.Config.Liveness.RetryDelay,
		MaxAttempts: a.Config.Liveness.MaxAttempts,
		PopTimeout:  a.Config.Liveness.PopTimeout,
	}
}

// Run processes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.Logger.Info("liveness worker started", "retry_delay", w.RetryDelay, "max_attempts", w.MaxAttempts)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if moved, err := w.Queue.PromoteDue(ctx, w.now()); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.Logger.Warn("promote retries failed", "error", err)
		} else if moved > 0 {
			w.Logger.Debug("promoted liveness retries", "count", moved)
		}
		if depth, err := w.Queue.Depth(ctx); err == nil {
			w.Metrics.SetQueueDepth(depth)
		}

		job, err := w.Queue.PopLivenessJob(ctx, w.popTimeout())
		if errors.Is(err, queue.ErrEmpty) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.Logger.Error("pop liveness job failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		if err := w.Process(ctx, job); err != nil {
			w.Logger.Error("liveness job failed", "payid", job, "error", err)
		}
	}
}

// Process runs one liveness check for canonical. Usable failures are retried
// after RetryDelay until MaxAttempts, then the record is marked unusable.
func (w *Worker) Process(ctx context.Context, canonical string) error {
	rec, err := w.Store.GetPayID(ctx, canonical)
	if errors.Is(err, store.ErrNotFound) {
		w.Logger.Warn("dropping liveness job for unknown payid", "payid", canonical)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", canonical, err)
	}

	now := w.now()
	recordType, checkErr := w.Checker.Check(ctx, rec.DomainACE)
	if checkErr == nil {
		if _, err := w.Store.RecordLiveness(ctx, canonical, store.LivenessResult{
			Status:     store.StatusUsable,
			RecordType: string(recordType),
			CheckedAt:  now,
		}); err != nil {
			return err
		}
		w.Metrics.ObserveLiveness("usable")
		w.Logger.Info("payid usable", "payid", canonical, "record_type", recordType)
		return nil
	}

	if kind, ok := payid.KindOf(checkErr); !ok || kind != payid.KindUsable {
		// Not an answer about the domain; try again later without counting it.
		w.Metrics.ObserveLiveness("error")
		if err := w.Queue.ScheduleRetry(ctx, canonical, now.Add(w.RetryDelay)); err != nil {
			return errors.Join(checkErr, err)
		}
		return checkErr
	}

	attempt := rec.Attempts + 1
	status := store.StatusPending
	if attempt >= w.maxAttempts() {
		status = store.StatusUnusable
	}
	if _, err := w.Store.RecordLiveness(ctx, canonical, store.LivenessResult{
		Status:    status,
		Error:     checkErr.Error(),
		CheckedAt: now,
	}); err != nil {
		return err
	}
	if status == store.StatusUnusable {
		w.Metrics.ObserveLiveness("unusable")
		w.Logger.Info("payid unusable", "payid", canonical, "attempts", attempt, "error", checkErr)
		return nil
	}
	w.Metrics.ObserveLiveness("retry")
	w.Logger.Info("payid liveness retry scheduled", "payid", canonical, "attempt", attempt, "error", checkErr)
	return w.Queue.ScheduleRetry(ctx, canonical, now.Add(w.RetryDelay))
}

func (w *Worker) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now().UTC()
}

func (w *Worker) popTimeout() time.Duration {
	if w.PopTimeout <= 0 {
		return 5 * time.Second
	}
	return w.PopTimeout
}

func (w *Worker) maxAttempts() int {
	if w.MaxAttempts < 1 {
		return 1
	}
	return w.MaxAttempts
}
