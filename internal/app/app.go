package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"payidcheck/internal/config"
	"payidcheck/internal/liveness"
	"payidcheck/internal/observability"
	"payidcheck/internal/payid"
	"payidcheck/internal/queue"
	"payidcheck/internal/store"
)

// Registry is the persistence the service needs. *store.Store implements it.
type Registry interface {
	Ping(ctx context.Context) error
	UpsertPayID(ctx context.Context, id payid.Identifier) (store.Record, error)
	GetPayID(ctx context.Context, canonical string) (store.Record, error)
	RecordLiveness(ctx context.Context, canonical string, result store.LivenessResult) (store.Record, error)
	ListPayIDs(ctx context.Context, status store.Status, limit int) ([]store.Record, error)
}

// JobQueue carries liveness jobs. *queue.Queue implements it.
type JobQueue interface {
	Ping(ctx context.Context) error
	PushLivenessJob(ctx context.Context, canonical string) error
	PopLivenessJob(ctx context.Context, timeout time.Duration) (string, error)
	ScheduleRetry(ctx context.Context, canonical string, at time.Time) error
	PromoteDue(ctx context.Context, now time.Time) (int, error)
	Depth(ctx context.Context) (int64, error)
}

// DomainChecker is satisfied by *liveness.Checker.
type DomainChecker interface {
	Check(ctx context.Context, domain string) (liveness.RecordType, error)
}

type App struct {
	Config    config.Config
	Logger    *slog.Logger
	Metrics   *observability.Metrics
	Validator *payid.Validator
	Store     Registry
	Queue     JobQueue
	Checker   DomainChecker
}

// New opens Postgres and Redis, applies migrations and builds the liveness checker.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.RequireBackends(); err != nil {
		return nil, err
	}
	checker, err := NewChecker(cfg)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.Database.DSN, cfg.DatabasePool())
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	q, err := queue.New(cfg.Redis.URL)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		Config:    cfg,
		Logger:    logger,
		Metrics:   observability.NewMetrics(),
		Validator: payid.New(),
		Store:     st,
		Queue:     q,
		Checker:   checker,
	}, nil
}

// NewChecker builds a DNS checker from the liveness section.
func NewChecker(cfg config.Config) (*liveness.Checker, error) {
	types, err := liveness.ParseTypes(cfg.Liveness.RecordTypes)
	if err != nil {
		return nil, err
	}
	return liveness.NewChecker(nil, cfg.Liveness.Timeout, types), nil
}

func (a *App) Close() error {
	var errs []error
	if c, ok := a.Store.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if c, ok := a.Queue.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /readyz", a.handleReady)
	mux.HandleFunc("POST /v1/validate", a.handleValidate)
	mux.HandleFunc("POST /v1/payids", a.handleRegister)
	mux.HandleFunc("GET /v1/payids", a.handleList)
	mux.HandleFunc("GET /v1/payids/{payid}", a.handleGet)
	mux.Handle("GET /metrics", a.Metrics.Handler())
	return mux
}

func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.HTTP.Addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       a.Config.HTTP.ReadTimeout,
		WriteTimeout:      a.Config.HTTP.WriteTimeout,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	a.Logger.Info("http server listening", "addr", a.Config.HTTP.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}

var defaultValidator = payid.New()

func (a *App) validator() *payid.Validator {
	if a.Validator == nil {
		return defaultValidator
	}
	return a.Validator
}
