package analytics

import (
	"context"
	"fmt"
	"time"

	"onboarding-backend/internal/domains/onboarding"
	"onboarding-backend/internal/infrastructure/queue"
	"onboarding-backend/internal/shared"
)

// QueueEmitter implements onboarding.Analytics by handing validated
// events to the worker
type QueueEmitter struct {
	queue queue.Enqueuer
	now   func() time.Time
}

func NewQueueEmitter(q queue.Enqueuer) *QueueEmitter {
	return &QueueEmitter{queue: q, now: time.Now}
}

func (e *QueueEmitter) Emit(ctx context.Context, event onboarding.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("analytics event %s: %w", event.Name, err)
	}

	return queue.EnqueueJSON(ctx, e.queue, shared.TypeEmitAnalyticsEvent, shared.AnalyticsEventPayload{
		Name:       event.Name,
		ClientID:   event.ClientID,
		Params:     event.Params,
		OccurredAt: e.now().UTC(),
	}, queue.Options{
		Queue:    shared.QueueLow,
		MaxRetry: 3,
		Timeout:  30 * time.Second,
	})
}
