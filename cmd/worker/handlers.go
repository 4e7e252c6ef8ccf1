package main

import (
	"github.com/hibiken/asynq"

	onboardingJob "onboarding-backend/internal/domains/onboarding/job"
	"onboarding-backend/internal/infrastructure/analytics"
	"onboarding-backend/internal/infrastructure/indexnow"
	"onboarding-backend/internal/shared"
)

// HandlerRegistry holds all job handlers
type HandlerRegistry struct {
	analyticsEvent *onboardingJob.AnalyticsEventHandler
	indexNow       *onboardingJob.IndexNowHandler
}

// initializeHandlers creates all job handlers with their dependencies
func initializeHandlers(cfg *Config) *HandlerRegistry {
	return &HandlerRegistry{
		analyticsEvent: onboardingJob.NewAnalyticsEventHandler(analytics.NewMeasurementClient(cfg.Analytics)),
		indexNow:       onboardingJob.NewIndexNowHandler(indexnow.NewClient(cfg.IndexNow)),
	}
}

// RegisterHandlers registers all handlers with the mux
func (h *HandlerRegistry) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(shared.TypeEmitAnalyticsEvent, h.analyticsEvent.ProcessTask)
	mux.HandleFunc(shared.TypeNotifyIndexNow, h.indexNow.ProcessTask)
}
