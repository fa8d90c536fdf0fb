package audit

import (
	"context"
	"log/slog"
)

// AsyncPublisher queues events and drains them on a background goroutine so
// slow sinks stay off the request path. Events are dropped when the queue
// is full.
type AsyncPublisher struct {
	next   Publisher
	inbox  chan Event
	logger *slog.Logger
	done   chan struct{}
}

func NewAsyncPublisher(next Publisher, buffer int, logger *slog.Logger) *AsyncPublisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &AsyncPublisher{
		next:   next,
		inbox:  make(chan Event, buffer),
		logger: logger,
		done:   make(chan struct{}),
	}
}

func (a *AsyncPublisher) Publish(ctx context.Context, e Event) error {
	select {
	case a.inbox <- e:
	default:
		a.logger.WarnContext(ctx, "audit queue full, dropping event", "action", string(e.Action))
	}
	return nil
}

// Run drains the queue until ctx is cancelled, then flushes what is left.
func (a *AsyncPublisher) Run(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case <-ctx.Done():
			a.flush()
			return
		case e := <-a.inbox:
			a.deliver(ctx, e)
		}
	}
}

// Wait blocks until Run has returned.
func (a *AsyncPublisher) Wait() {
	<-a.done
}

func (a *AsyncPublisher) flush() {
	for {
		select {
		case e := <-a.inbox:
			a.deliver(context.Background(), e)
		default:
			return
		}
	}
}

func (a *AsyncPublisher) deliver(ctx context.Context, e Event) {
	if err := a.next.Publish(ctx, e); err != nil {
		a.logger.WarnContext(ctx, "audit delivery failed", "action", string(e.Action), "error", err)
	}
}
