package worker

import (
	"context"
	"log/slog"
	"time"

	audit "clearance/pkg/platform/audit"
)

const (
	defaultInterval    = 5 * time.Second
	defaultBatchSize   = 100
	defaultMaxAttempts = 5
)

// Worker drains the recorder's retry buffer back into the audit store.
// Entries that keep failing are handed to the dead-letter sink, so an audit
// gap always ends in a durable, alertable place.
type Worker struct {
	store       audit.Store
	buffer      *audit.RingBuffer
	sink        audit.DeadLetterSink
	logger      *slog.Logger
	metrics     *audit.Metrics
	interval    time.Duration
	batchSize   int
	maxAttempts int
}

// Option configures the Worker.
type Option func(*Worker)

func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.maxAttempts = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

func WithMetrics(m *audit.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// NewWorker creates a retry worker.
func NewWorker(store audit.Store, buffer *audit.RingBuffer, sink audit.DeadLetterSink, opts ...Option) *Worker {
	w := &Worker{
		store:       store,
		buffer:      buffer,
		sink:        sink,
		logger:      slog.Default(),
		interval:    defaultInterval,
		batchSize:   defaultBatchSize,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.sink == nil {
		w.sink = audit.NewLogSink(w.logger)
	}
	return w
}

// Run drains the buffer every interval until ctx is cancelled, then hands
// whatever is still buffered to the dead-letter sink.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Flush(context.WithoutCancel(ctx))
			return ctx.Err()
		case <-ticker.C:
			w.Drain(ctx)
		}
	}
}

// Drain makes one retry pass over at most one batch. Returns the number of
// entries persisted.
func (w *Worker) Drain(ctx context.Context) int {
	batch := w.buffer.DequeueBatch(w.batchSize)
	if len(batch) == 0 {
		return 0
	}

	persisted := 0
	for _, p := range batch {
		if err := w.store.Append(ctx, p.Entry); err != nil {
			p.Attempts++
			p.LastError = err.Error()
			if p.Attempts >= w.maxAttempts {
				w.deadLetter(ctx, p)
				continue
			}
			w.requeue(ctx, p)
			continue
		}
		persisted++
		w.metrics.IncRetried()
		w.logger.InfoContext(ctx, "buffered audit entry persisted",
			"audit_id", p.Entry.ID.String(),
			"action", p.Entry.Action,
			"attempts", p.Attempts+1,
		)
	}
	w.metrics.SetBufferDepth(w.buffer.Len())
	return persisted
}

// Flush hands every buffered entry to the dead-letter sink.
func (w *Worker) Flush(ctx context.Context) {
	for {
		batch := w.buffer.DequeueBatch(w.batchSize)
		if len(batch) == 0 {
			break
		}
		for _, p := range batch {
			if err := w.publish(ctx, p); err != nil {
				// Shutting down with nowhere left to put it.
				w.metrics.IncDropped()
				w.logger.ErrorContext(ctx, "CRITICAL: audit entry lost at shutdown",
					"audit_id", p.Entry.ID.String(),
					"action", p.Entry.Action,
					"entity_id", p.Entry.EntityID,
					"error", err,
				)
			}
		}
	}
	w.metrics.SetBufferDepth(w.buffer.Len())
}

func (w *Worker) deadLetter(ctx context.Context, p audit.Pending) {
	if err := w.publish(ctx, p); err != nil {
		// Keep it buffered; the sink may recover before the buffer overflows.
		w.requeue(ctx, p)
	}
}

func (w *Worker) publish(ctx context.Context, p audit.Pending) error {
	if err := w.sink.Publish(ctx, p); err != nil {
		w.metrics.IncSinkFailures()
		w.logger.ErrorContext(ctx, "dead-letter publish failed",
			"audit_id", p.Entry.ID.String(),
			"error", err,
		)
		return err
	}
	w.metrics.IncDeadLettered()
	w.logger.WarnContext(ctx, "audit entry dead-lettered",
		"audit_id", p.Entry.ID.String(),
		"action", p.Entry.Action,
		"entity_id", p.Entry.EntityID,
		"attempts", p.Attempts,
		"last_error", p.LastError,
	)
	return nil
}

func (w *Worker) requeue(ctx context.Context, p audit.Pending) {
	evicted, ok := w.buffer.Enqueue(p)
	if !ok {
		return
	}
	if err := w.publish(ctx, evicted); err != nil {
		w.metrics.IncDropped()
		w.logger.ErrorContext(ctx, "CRITICAL: audit entry lost after buffer overflow",
			"audit_id", evicted.Entry.ID.String(),
			"action", evicted.Entry.Action,
			"entity_id", evicted.Entry.EntityID,
		)
	}
}
