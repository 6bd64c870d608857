package client

import (
	"context"
	"log/slog"
	"time"
)

// call is one queued outbound request. A call with a non-nil barrier is a
// flush marker and carries no request.
type call struct {
	method  string
	do      func(ctx context.Context) error
	barrier chan struct{}
}

// dispatcher delivers queued calls one at a time, in enqueue order.
type dispatcher struct {
	queue   chan call
	done    chan struct{}
	timeout time.Duration
	logger  *slog.Logger
	appID   string
}

func newDispatcher(appID string, size int, timeout time.Duration, logger *slog.Logger) *dispatcher {
	return &dispatcher{
		queue:   make(chan call, size),
		done:    make(chan struct{}),
		timeout: timeout,
		logger:  logger,
		appID:   appID,
	}
}

// run is the event loop. It returns once the queue is closed and drained.
func (d *dispatcher) run() {
	defer close(d.done)

	for c := range d.queue {
		if c.barrier != nil {
			close(c.barrier)
			continue
		}
		d.deliver(c)
	}
}

func (d *dispatcher) deliver(c call) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	start := time.Now()
	if err := c.do(ctx); err != nil {
		d.logger.Warn("messaging menu call failed",
			"method", c.method,
			"app_id", d.appID,
			"error", err,
		)
		return
	}
	d.logger.Debug("messaging menu call delivered",
		"method", c.method,
		"app_id", d.appID,
		"elapsed", time.Since(start),
	)
}

// enqueue adds c to the queue, blocking while it is full.
func (d *dispatcher) enqueue(ctx context.Context, c call) error {
	select {
	case d.queue <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stop closes the queue and waits for the loop to drain it.
func (d *dispatcher) stop() {
	close(d.queue)
	<-d.done
}
