package audit

import (
	"context"
	"log/slog"
	"time"
)

// Publisher delivers audit events to a sink.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// LogPublisher writes events as structured log records.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, e Event) error {
	p.logger.InfoContext(ctx, "audit",
		"action", string(e.Action),
		"request_id", e.RequestID,
		"subject_hash", e.SubjectHash,
		"credential_id", e.CredentialID,
		"score", e.Score,
		"accepted", e.Accepted,
		"status", e.Status,
	)
	return nil
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Emitter stamps events and swallows sink failures so audit never fails the
// request that produced it.
type Emitter struct {
	sink   Publisher
	logger *slog.Logger
	now    func() time.Time
}

func NewEmitter(sink Publisher, logger *slog.Logger) *Emitter {
	if sink == nil {
		sink = NopPublisher{}
	}
	return &Emitter{sink: sink, logger: logger, now: time.Now}
}

func (e *Emitter) Emit(ctx context.Context, ev Event) {
	if e == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.now()
	}
	if err := e.sink.Publish(ctx, ev); err != nil && e.logger != nil {
		e.logger.WarnContext(ctx, "audit publish failed",
			"action", string(ev.Action),
			"error", err,
		)
	}
}
