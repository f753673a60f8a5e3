package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/sentra-orders/sentra/internal/observability"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueSweeps isolates periodic maintenance passes so a backlog of
	// ad-hoc jobs never starves the expiration sweep.
	QueueSweeps = "sweeps"
	// TaskTypeQuoteExpire is the periodic sweep that reclassifies overdue
	// quotes as expired.
	TaskTypeQuoteExpire = "quotes:expire"
)

// QuoteExpirePayload bounds one sweep pass.
type QuoteExpirePayload struct {
	Limit int `json:"limit"`
}

// NewQuoteExpireTask constructs the sweep task.
func NewQuoteExpireTask(payload QuoteExpirePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeQuoteExpire, data), nil
}

// QuoteExpirer is the slice of the negotiation service the sweep needs.
type QuoteExpirer interface {
	ExpireDue(ctx context.Context, limit int) (int, error)
}

// NewQuoteExpireHandler builds the Asynq handler for TaskTypeQuoteExpire.
// The sweep itself is idempotent, so retries after partial failures are safe.
func NewQuoteExpireHandler(expirer QuoteExpirer, metrics *observability.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload QuoteExpirePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		n, err := expirer.ExpireDue(ctx, payload.Limit)
		if err != nil {
			return err
		}
		metrics.ObserveQuotesExpired(n)
		if n > 0 {
			logger.Info("quote expiry sweep", slog.Int("expired", n))
		}
		return nil
	}
}
