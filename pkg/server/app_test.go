package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	applogger "SessionOverlay/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderedCloser struct {
	name  string
	mu    *sync.Mutex
	order *[]string
	err   error
}

func (c orderedCloser) Close() error {
	c.mu.Lock()
	*c.order = append(*c.order, c.name)
	c.mu.Unlock()
	return c.err
}

func TestApp_ServeStopsWorkersAndClosesInReverse(t *testing.T) {
	var mu sync.Mutex
	var order []string
	stopped := make(chan struct{})

	app := New(applogger.Nop(), nil,
		WithWorker("loop", func(ctx context.Context) error {
			<-ctx.Done()
			mu.Lock()
			order = append(order, "loop")
			mu.Unlock()
			close(stopped)
			return ctx.Err()
		}),
		WithCloser("cache", orderedCloser{name: "cache", mu: &mu, order: &order}),
		WithCloser("broker", orderedCloser{name: "broker", mu: &mu, order: &order, err: errors.New("already closed")}),
		WithCloser("nil", nil),
		WithConsumer(nil),
		WithShutdownTimeout(time.Second),
	)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- app.Serve(ctx) }()

	cancel()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
	<-stopped

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"loop", "broker", "cache"}, order)
}

func TestApp_SlowWorkerDoesNotBlockShutdown(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	app := New(applogger.Nop(), nil,
		WithWorker("stuck", func(context.Context) error {
			<-release
			return nil
		}),
		WithShutdownTimeout(20*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	require.NoError(t, app.Serve(ctx))
	assert.Less(t, time.Since(start), time.Second)
}
