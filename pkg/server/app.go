package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"MarketSignal/pkg/config"
	xhttp "MarketSignal/pkg/http"
	pkgkafka "MarketSignal/pkg/kafka"
	applogger "MarketSignal/pkg/logger"
)

// Task is a background loop that returns when its context is cancelled.
type Task struct {
	Name string
	Run  func(ctx context.Context)
}

// App encapsulates the serve lifecycle: HTTP API, Kafka consumer and
// background tasks. Clients are closed by the injector cleanup after Run returns.
type App struct {
	cfg      *config.Config
	l        *applogger.Logger
	http     *xhttp.Server
	consumer *pkgkafka.Consumer
	handlers []pkgkafka.MessageHandler
	tasks    []Task
}

type Option func(*App)

// WithConsumer attaches a consumer and the handlers it dispatches to. A nil consumer is ignored.
func WithConsumer(c *pkgkafka.Consumer, handlers ...pkgkafka.MessageHandler) Option {
	return func(a *App) {
		if c != nil {
			a.consumer = c
			a.handlers = append(a.handlers, handlers...)
		}
	}
}

func WithTask(name string, run func(ctx context.Context)) Option {
	return func(a *App) { a.tasks = append(a.tasks, Task{Name: name, Run: run}) }
}

func New(cfg *config.Config, l *applogger.Logger, srv *xhttp.Server, opts ...Option) *App {
	a := &App{cfg: cfg, l: l, http: srv}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts every component and blocks until ctx is cancelled or the
// HTTP listener fails.
func (a *App) Run(ctx context.Context) error {
	taskCtx, cancelTasks := context.WithCancel(context.Background())
	defer cancelTasks()

	var wg sync.WaitGroup
	for _, t := range a.tasks {
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()
			t.Run(taskCtx)
			a.l.Debug("background task stopped", applogger.String("task", t.Name))
		}(t)
		a.l.Info("background task started", applogger.String("task", t.Name))
	}

	if a.consumer != nil {
		topics := make([]string, 0, len(a.handlers))
		for _, h := range a.handlers {
			a.consumer.RegisterHandler(h)
			topics = append(topics, h.Topic())
		}
		if err := a.consumer.Start(taskCtx); err != nil {
			cancelTasks()
			wg.Wait()
			return fmt.Errorf("kafka consumer: %w", err)
		}
		a.l.Info("kafka consumer started", applogger.Strings("topics", topics))
	}

	var runErr error
	httpErr := a.http.Start()
	select {
	case <-ctx.Done():
		a.l.Info("shutdown signal received")
	case err, ok := <-httpErr:
		if ok && err != nil {
			a.l.Error("http server error", applogger.Error(err))
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	a.shutdown(cancelTasks, &wg)
	return runErr
}

func (a *App) shutdown(cancelTasks context.CancelFunc, wg *sync.WaitGroup) {
	timeout := 10 * time.Second
	if a.cfg != nil && a.cfg.Server.ShutdownTimeout > 0 {
		timeout = a.cfg.Server.ShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.http.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	cancelTasks()
	wg.Wait()
	a.l.Info("shutdown complete")
}
