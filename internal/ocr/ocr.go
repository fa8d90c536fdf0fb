// Package ocr is the boundary to external text recognizers. Recognition
// quality is the recognizer's concern; callers must tolerate empty text.
package ocr

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	dErrors "attestor/pkg/domain-errors"
)

// Mode selects the recognition engine.
type Mode string

const (
	ModePrinted     Mode = "printed"
	ModeHandwritten Mode = "handwritten"
)

// ParseMode defaults to printed text.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModePrinted:
		return ModePrinted, nil
	case ModeHandwritten:
		return ModeHandwritten, nil
	default:
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown recognition mode %q", s)
	}
}

// Recognizer turns one page image into text.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte, mode Mode) (string, error)
}

// Builder constructs a recognizer, possibly at a large one-time cost.
type Builder func(ctx context.Context) (Recognizer, error)

// Lazy defers building the recognizer until the first page needs it. A failed
// build is retried on the next call.
type Lazy struct {
	mu     sync.Mutex
	build  Builder
	inner  Recognizer
	logger *slog.Logger
}

// NewLazy wraps build.
func NewLazy(build Builder, logger *slog.Logger) *Lazy {
	return &Lazy{build: build, logger: logger}
}

func (l *Lazy) get(ctx context.Context) (Recognizer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inner != nil {
		return l.inner, nil
	}

	start := time.Now()
	r, err := l.build(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "text recognizer unavailable")
	}
	l.inner = r
	if l.logger != nil {
		l.logger.InfoContext(ctx, "text recognizer ready", "warmup_ms", time.Since(start).Milliseconds())
	}
	return r, nil
}

// Recognize builds on first use, then delegates.
func (l *Lazy) Recognize(ctx context.Context, image []byte, mode Mode) (string, error) {
	r, err := l.get(ctx)
	if err != nil {
		return "", err
	}
	return r.Recognize(ctx, image, mode)
}

// Ready reports whether the recognizer has been built.
func (l *Lazy) Ready() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner != nil
}

// Close releases the built recognizer, if any.
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
