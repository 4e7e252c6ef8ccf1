package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"onboarding-backend/internal/domains/onboarding"
	"onboarding-backend/internal/shared"
)

// EventSender forwards one analytics hit to the analytics backend
type EventSender interface {
	Send(ctx context.Context, payload shared.AnalyticsEventPayload) error
}

type AnalyticsEventHandler struct {
	sender EventSender
}

func NewAnalyticsEventHandler(sender EventSender) *AnalyticsEventHandler {
	return &AnalyticsEventHandler{sender: sender}
}

func (h *AnalyticsEventHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload shared.AnalyticsEventPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		log.Error().Err(err).Msg("Failed to unmarshal analytics payload")
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	// Producers validate too; a task enqueued by an older build may not match
	event := onboarding.Event{Name: payload.Name, ClientID: payload.ClientID, Params: payload.Params}
	if err := event.Validate(); err != nil {
		log.Warn().Err(err).Str("event", payload.Name).Msg("Dropping analytics event with invalid schema")
		return fmt.Errorf("invalid event: %v: %w", err, asynq.SkipRetry)
	}

	if err := h.sender.Send(ctx, payload); err != nil {
		log.Error().Err(err).Str("event", payload.Name).Msg("Failed to send analytics event")
		return fmt.Errorf("send analytics event: %w", err)
	}

	log.Debug().
		Str("event", payload.Name).
		Str("client_id", payload.ClientID).
		Msg("Analytics event sent")
	return nil
}
