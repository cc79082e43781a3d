package observability

import (
	"context"
	"sync"
	"time"
)

// Tracer opens spans around generation stages.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Span is one timed stage. Finish may be called more than once; only the
// first call counts.
type Span interface {
	SetTag(key string, value interface{})
	SetError(err error)
	Finish()
}

// Span names emitted by the generator.
const (
	SpanGenerate = "overlay.generate"
	SpanBuild    = "overlay.build"
	SpanMerge    = "overlay.merge"
)

type nopTracer struct{}

func (nopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, nopSpan{}
}

// NopTracer returns a tracer that does nothing.
func NopTracer() Tracer { return nopTracer{} }

type nopSpan struct{}

func (nopSpan) SetTag(string, interface{}) {}
func (nopSpan) SetError(error)             {}
func (nopSpan) Finish()                    {}

type spanKey struct{}

// LogTracer reports every finished span as a debug entry on Logger with the
// span name, its parent, the elapsed time, its tags and any error.
type LogTracer struct {
	Logger Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewLogTracer returns a LogTracer writing to log.
func NewLogTracer(log Logger) *LogTracer {
	return &LogTracer{Logger: log}
}

func (t *LogTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	now := t.Now
	if now == nil {
		now = time.Now
	}
	log := t.Logger
	if log == nil {
		log = NopLogger{}
	}
	s := &logSpan{log: log, now: now, name: name, start: now()}
	if parent, ok := ctx.Value(spanKey{}).(*logSpan); ok {
		s.parent = parent.name
	}
	return context.WithValue(ctx, spanKey{}, s), s
}

type logSpan struct {
	log    Logger
	now    func() time.Time
	name   string
	parent string
	start  time.Time

	mu       sync.Mutex
	tags     []Field
	err      error
	finished bool
}

func (s *logSpan) SetTag(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags = append(s.tags, Any(key, value))
}

func (s *logSpan) SetError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *logSpan) Finish() {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	fields := []Field{String("span", s.name), Duration("elapsed", s.now().Sub(s.start))}
	if s.parent != "" {
		fields = append(fields, String("parent", s.parent))
	}
	fields = append(fields, s.tags...)
	if s.err != nil {
		fields = append(fields, Error("error", s.err))
	}
	s.mu.Unlock()

	if s.err != nil {
		s.log.Debug("span failed", fields...)
		return
	}
	s.log.Debug("span finished", fields...)
}
