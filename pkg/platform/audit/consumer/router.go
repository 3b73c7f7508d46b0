package consumer

import (
	"context"
	"log/slog"

	"clearance/internal/platform/kafka/consumer"
)

// Router dispatches consumed records to the handler registered for their
// topic. Records on unknown topics are logged and committed.
type Router struct {
	handlers map[string]consumer.Handler
	logger   *slog.Logger
}

// NewRouter creates an empty topic router.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		handlers: make(map[string]consumer.Handler),
		logger:   logger,
	}
}

// Register binds a handler to a topic, replacing any previous binding.
func (r *Router) Register(topic string, h consumer.Handler) {
	r.handlers[topic] = h
}

// Topics lists the registered topics.
func (r *Router) Topics() []string {
	topics := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		topics = append(topics, t)
	}
	return topics
}

// Handle implements consumer.Handler.
func (r *Router) Handle(ctx context.Context, msg *consumer.Message) error {
	h, ok := r.handlers[msg.Topic]
	if !ok {
		r.logger.WarnContext(ctx, "no handler for topic, skipping record",
			"topic", msg.Topic,
			"key", string(msg.Key),
		)
		return nil
	}
	return h.Handle(ctx, msg)
}
