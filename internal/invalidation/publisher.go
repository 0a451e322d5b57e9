package invalidation

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Publisher forwards a signal to downstream cache owners.
type Publisher interface {
	Publish(ctx context.Context, signal Signal) error
}

// Message is the wire form of a published signal.
type Message struct {
	ExternalIDs []string  `json:"external_ids"`
	RequestID   string    `json:"request_id,omitempty"`
	EmittedAt   time.Time `json:"emitted_at"`
}

func encode(signal Signal, requestID string, now time.Time) ([]byte, error) {
	return json.Marshal(Message{
		ExternalIDs: signal.ExternalIDs,
		RequestID:   requestID,
		EmittedAt:   now.UTC(),
	})
}

// Dispatcher fans a signal out to every configured publisher. Delivery is best
// effort: failures are logged and never reach the caller.
type Dispatcher struct {
	publishers []Publisher
	timeout    time.Duration
	logger     *slog.Logger
}

func NewDispatcher(logger *slog.Logger, timeout time.Duration, publishers ...Publisher) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	active := make([]Publisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			active = append(active, p)
		}
	}
	return &Dispatcher{publishers: active, timeout: timeout, logger: logger}
}

// Dispatch publishes signal synchronously with a bounded timeout. Empty signals
// are dropped. A nil Dispatcher is a no-op.
func (d *Dispatcher) Dispatch(ctx context.Context, signal Signal) {
	if d == nil || signal.IsEmpty() || len(d.publishers) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	for _, p := range d.publishers {
		if err := p.Publish(ctx, signal); err != nil {
			d.logger.WarnContext(ctx, "failed to publish invalidation signal",
				"error", err,
				"external_ids", signal.ExternalIDs,
			)
		}
	}
}
