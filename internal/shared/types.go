package shared

import "time"

// Task types processed by cmd/worker
const (
	TypeEmitAnalyticsEvent = "onboarding:analytics_event"
	TypeNotifyIndexNow     = "onboarding:indexnow"
)

// Queues, matching the weights in cmd/worker
const (
	QueueHigh    = "high"
	QueueDefault = "default"
	QueueLow     = "low"
)

// AnalyticsEventPayload is one validated analytics hit
type AnalyticsEventPayload struct {
	Name       string            `json:"name"`
	ClientID   string            `json:"clientId"`
	Params     map[string]string `json:"params"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// IndexNowPayload announces a new public creator profile
type IndexNowPayload struct {
	Username    string    `json:"username"`
	ProfileURL  string    `json:"profileUrl"`
	RequestedAt time.Time `json:"requestedAt"`
}
