package onboarding

import (
	"context"
	"time"
)

// Service hosts wizard sessions for the HTTP layer
type Service interface {
	// Session lifecycle
	Start(ctx context.Context, req StartRequest, upstreamToken string) (*SessionStarted, error)
	GetState(ctx context.Context, sessionID string) (*State, error)
	Discard(ctx context.Context, sessionID string) error

	// Editing
	UpdateFields(ctx context.Context, sessionID string, req UpdateFieldsRequest) (*State, error)
	UploadPicture(ctx context.Context, sessionID string, upload PictureUpload) (*State, error)

	// Navigation; Next submits when leaving the last step
	Next(ctx context.Context, sessionID string) (*StepResult, error)
	Back(ctx context.Context, sessionID string) (*State, error)
	Submit(ctx context.Context, sessionID string) (*StepResult, error)

	// Sweep closes wizards idle for longer than idle; drafts survive
	Sweep(idle time.Duration) int
}
