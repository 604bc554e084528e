package server

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	xhttp "SessionOverlay/pkg/http"
	pkgkafka "SessionOverlay/pkg/kafka"
	applogger "SessionOverlay/pkg/logger"
)

// Worker is a long running loop bound to the app context.
type Worker func(ctx context.Context) error

type namedWorker struct {
	name string
	run  Worker
}

type namedCloser struct {
	name string
	c    io.Closer
}

// App encapsulates the application lifecycle: workers, an optional Kafka
// consumer and the HTTP server, stopped in reverse order on shutdown.
type App struct {
	log             *applogger.Logger
	httpServer      *xhttp.Server
	shutdownTimeout time.Duration

	workers  []namedWorker
	consumer *pkgkafka.Consumer
	handlers []pkgkafka.MessageHandler
	closers  []namedCloser
}

type Option func(*App)

func WithWorker(name string, w Worker) Option {
	return func(a *App) { a.workers = append(a.workers, namedWorker{name: name, run: w}) }
}

// WithConsumer starts c with the given handlers. A nil consumer is ignored.
func WithConsumer(c *pkgkafka.Consumer, handlers ...pkgkafka.MessageHandler) Option {
	return func(a *App) {
		if c != nil {
			a.consumer = c
			a.handlers = handlers
		}
	}
}

// WithCloser registers a resource closed after everything else has stopped.
func WithCloser(name string, c io.Closer) Option {
	return func(a *App) {
		if c != nil {
			a.closers = append(a.closers, namedCloser{name: name, c: c})
		}
	}
}

func WithShutdownTimeout(d time.Duration) Option {
	return func(a *App) {
		if d > 0 {
			a.shutdownTimeout = d
		}
	}
}

// New creates a new App instance with all dependencies.
func New(log *applogger.Logger, httpServer *xhttp.Server, opts ...Option) *App {
	a := &App{log: log, httpServer: httpServer, shutdownTimeout: 10 * time.Second}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts the application and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.Serve(ctx)
}

// Serve starts everything and blocks until ctx is done, then shuts down.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, w := range a.workers {
		wg.Add(1)
		go func(w namedWorker) {
			defer wg.Done()
			if err := w.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.log.Error("worker stopped", applogger.String("worker", w.name), applogger.Error(err))
			}
		}(w)
		a.log.Info("worker started", applogger.String("worker", w.name))
	}

	if a.consumer != nil {
		for _, h := range a.handlers {
			a.consumer.RegisterHandler(h)
		}
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
			cancel()
			wg.Wait()
			a.closeAll()
			return err
		}
		for _, h := range a.handlers {
			a.log.Info("kafka consumer started", applogger.String("topic", h.Topic()))
		}
	}

	if a.httpServer != nil {
		if err := a.httpServer.Start(); err != nil {
			a.log.Error("http server start error", applogger.Error(err))
			return err
		}
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown(&wg)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(wg *sync.WaitGroup) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	var errs []error
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("workers did not stop in time")
	}

	a.closeAll()
	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.c.Close(); err != nil {
			a.log.Warn("close error", applogger.String("resource", c.name), applogger.Error(err))
		}
	}
}
