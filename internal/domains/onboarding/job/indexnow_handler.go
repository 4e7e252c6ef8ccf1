package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"onboarding-backend/internal/shared"
)

// URLSubmitter announces changed URLs to search engines
type URLSubmitter interface {
	Submit(ctx context.Context, urls ...string) error
}

// permanent is implemented by submitter errors that retrying cannot fix
type permanent interface {
	Permanent() bool
}

type IndexNowHandler struct {
	submitter URLSubmitter
}

func NewIndexNowHandler(submitter URLSubmitter) *IndexNowHandler {
	return &IndexNowHandler{submitter: submitter}
}

func (h *IndexNowHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload shared.IndexNowPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		log.Error().Err(err).Msg("Failed to unmarshal IndexNow payload")
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.ProfileURL == "" {
		return fmt.Errorf("payload without profile url: %w", asynq.SkipRetry)
	}

	if err := h.submitter.Submit(ctx, payload.ProfileURL); err != nil {
		var p permanent
		if errors.As(err, &p) && p.Permanent() {
			log.Warn().Err(err).Str("url", payload.ProfileURL).Msg("IndexNow rejected profile URL")
			return fmt.Errorf("submit %s: %v: %w", payload.ProfileURL, err, asynq.SkipRetry)
		}
		log.Error().Err(err).Str("url", payload.ProfileURL).Msg("Failed to submit profile URL")
		return fmt.Errorf("submit %s: %w", payload.ProfileURL, err)
	}

	log.Info().
		Str("username", payload.Username).
		Str("url", payload.ProfileURL).
		Msg("Profile URL submitted to IndexNow")
	return nil
}
