package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	id "clearance/pkg/domain"
	"clearance/pkg/platform/circuit"
	"clearance/pkg/requestcontext"
)

const defaultWriteTimeout = 3 * time.Second

// Recorder appends audit entries on a best-effort basis.
//
// Log never returns an error and never blocks the calling business operation
// on a degraded audit store. Entries that cannot be written are logged,
// counted, and moved to a bounded retry buffer; the retry worker drains the
// buffer and hands exhausted entries to the dead-letter sink. Nothing is
// dropped silently.
type Recorder struct {
	store        Store
	users        UserDirectory
	buffer       *RingBuffer
	sink         DeadLetterSink
	breaker      *circuit.Breaker
	logger       *slog.Logger
	metrics      *Metrics
	writeTimeout time.Duration
}

// Option configures the Recorder.
type Option func(*Recorder)

// WithUserDirectory sets the directory used to resolve display names.
func WithUserDirectory(users UserDirectory) Option {
	return func(r *Recorder) { r.users = users }
}

// WithBuffer sets the retry buffer shared with the retry worker.
func WithBuffer(buffer *RingBuffer) Option {
	return func(r *Recorder) { r.buffer = buffer }
}

// WithDeadLetterSink sets where buffer overflow is routed.
func WithDeadLetterSink(sink DeadLetterSink) Option {
	return func(r *Recorder) { r.sink = sink }
}

// WithCircuitBreaker skips the store while it is known to be failing.
func WithCircuitBreaker(b *circuit.Breaker) Option {
	return func(r *Recorder) { r.breaker = b }
}

// WithLogger sets the operational logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) { r.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// WithWriteTimeout bounds each store write.
func WithWriteTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.writeTimeout = d
		}
	}
}

// NewRecorder creates a Recorder writing to store.
func NewRecorder(store Store, opts ...Option) *Recorder {
	r := &Recorder{
		store:        store,
		logger:       slog.Default(),
		writeTimeout: defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.buffer == nil {
		r.buffer = NewRingBuffer(0)
	}
	if r.sink == nil {
		r.sink = NewLogSink(r.logger)
	}
	return r
}

// Buffer returns the retry buffer so the retry worker can share it.
func (r *Recorder) Buffer() *RingBuffer {
	return r.buffer
}

// Log resolves the actor's display name, stamps the entry, and appends it.
// Returns true when the entry reached the primary store.
func (r *Recorder) Log(ctx context.Context, entry Entry) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "CRITICAL: audit recorder panicked",
				"action", entry.Action,
				"entity_id", entry.EntityID,
				"panic", fmt.Sprint(rec),
			)
			r.deadLetter(ctx, entry, "panic", fmt.Sprint(rec))
			ok = false
		}
	}()

	entry = r.prepare(ctx, entry)

	if r.breaker != nil && !r.breaker.Allow() {
		r.deadLetter(ctx, entry, "circuit_open", "audit store circuit open")
		return false
	}

	// The audit write must outlive a cancelled request: the business
	// operation it records has already committed.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.writeTimeout)
	defer cancel()

	if err := r.store.Append(writeCtx, entry); err != nil {
		if r.breaker != nil {
			_, change := r.breaker.RecordFailure()
			if change.Opened {
				r.metrics.SetCircuitOpen(true)
				r.logger.ErrorContext(ctx, "audit store circuit opened",
					"breaker", r.breaker.Name(),
				)
			}
		}
		r.deadLetter(ctx, entry, "store_error", err.Error())
		return false
	}

	if r.breaker != nil {
		if _, change := r.breaker.RecordSuccess(); change.Closed {
			r.metrics.SetCircuitOpen(false)
			r.logger.InfoContext(ctx, "audit store circuit closed", "breaker", r.breaker.Name())
		}
	}
	r.metrics.IncWritten(entry.Action)
	return true
}

func (r *Recorder) prepare(ctx context.Context, entry Entry) Entry {
	if entry.ID.IsNil() {
		entry.ID = id.NewAuditEntryID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = requestcontext.Now(ctx).UTC()
	}
	if entry.RequestID == "" {
		entry.RequestID = requestcontext.RequestID(ctx)
	}
	entry.OldValues = cloneValues(entry.OldValues)
	entry.AfterValues = cloneValues(entry.AfterValues)

	if entry.UserID != nil && r.users != nil {
		name, err := r.users.DisplayName(ctx, *entry.UserID)
		switch {
		case err != nil:
			r.logger.WarnContext(ctx, "audit user name lookup failed",
				"user_id", entry.UserID.String(),
				"error", err,
			)
		case name != "":
			entry.UserName = name
		}
	}
	if entry.UserName == "" {
		entry.UserName = entry.UserEmail
		r.metrics.IncNameResolveMiss()
	}
	return entry
}

func (r *Recorder) deadLetter(ctx context.Context, entry Entry, reason, cause string) {
	r.metrics.IncWriteFailure(entry.Action, reason)
	r.logger.ErrorContext(ctx, "audit write failed; entry queued for retry",
		"action", entry.Action,
		"entity_type", entry.EntityType,
		"entity_id", entry.EntityID,
		"audit_id", entry.ID.String(),
		"reason", reason,
		"error", cause,
	)

	evicted, ok := r.buffer.Enqueue(Pending{
		Entry:         entry,
		Attempts:      1,
		LastError:     cause,
		FirstFailedAt: time.Now().UTC(),
	})
	r.metrics.SetBufferDepth(r.buffer.Len())
	if !ok {
		return
	}

	if err := r.sink.Publish(context.WithoutCancel(ctx), evicted); err != nil {
		r.metrics.IncSinkFailures()
		r.metrics.IncDropped()
		r.logger.ErrorContext(ctx, "CRITICAL: audit entry lost after buffer overflow",
			"audit_id", evicted.Entry.ID.String(),
			"action", evicted.Entry.Action,
			"entity_id", evicted.Entry.EntityID,
			"error", err,
		)
		return
	}
	r.metrics.IncDeadLettered()
}

// cloneValues deep-copies a value map through JSON so later mutation by the
// caller cannot alter an entry that is already queued.
func cloneValues(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	raw, err := json.Marshal(in)
	if err != nil {
		out := make(map[string]any, len(in))
		for k, v := range in {
			out[k] = v
		}
		return out
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return in
	}
	return out
}
