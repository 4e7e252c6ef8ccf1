package onboarding

import (
	"encoding/json"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ========================================
// REQUEST DTOs
// ========================================

// StartRequest opens a new wizard session
type StartRequest struct {
	Flow FlowID `json:"flow" binding:"required"`
}

func (r StartRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Flow,
			validation.Required.Error("flow is required"),
			validation.In(FlowCreatorProfile, FlowCreatorSignup, FlowBrandSignup).Error("unknown flow"),
		),
	)
}

// UpdateFieldsRequest carries raw JSON values keyed by field name
type UpdateFieldsRequest struct {
	Fields map[string]json.RawMessage `json:"fields"`
}

func (r UpdateFieldsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Fields, validation.Required.Error("fields is required")),
	)
}

// ========================================
// RESPONSE DTOs
// ========================================

// SessionStarted is returned once per new session
type SessionStarted struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
	State     State  `json:"-"`
}

// StepResult reports a navigation outcome. Result is set once submitted.
type StepResult struct {
	State     State               `json:"-"`
	Submitted bool                `json:"submitted"`
	Result    *RegistrationResult `json:"result,omitempty"`
}

// StateView is the JSON shape of a wizard sent to the browser
type StateView struct {
	SessionID        string            `json:"session_id"`
	Flow             FlowID            `json:"flow"`
	Role             Role              `json:"role"`
	CurrentStep      int               `json:"current_step"`
	StepCount        int               `json:"step_count"`
	StepName         string            `json:"step_name"`
	Fields           map[string]Value  `json:"fields"`
	FieldErrors      map[string]string `json:"field_errors"`
	SubmissionStatus SubmissionStatus  `json:"submission_status"`
	Notice           string            `json:"notice,omitempty"`
	PendingChecks    []string          `json:"pending_checks"`
	RateCard         *RateCardView     `json:"rate_card,omitempty"`
}

// RateCardView is display only
type RateCardView struct {
	Currency string `json:"currency"`
	Gross    string `json:"gross"`
	Fee      string `json:"fee"`
	Net      string `json:"net"`
}

// NewStateView converts a snapshot; secrets are never echoed back
func NewStateView(s State) StateView {
	view := StateView{
		SessionID:        s.SessionID,
		Flow:             s.Flow,
		Role:             s.Role,
		CurrentStep:      s.CurrentStep,
		StepCount:        s.StepCount,
		StepName:         s.StepName,
		Fields:           make(map[string]Value, len(s.Fields)),
		FieldErrors:      make(map[string]string, len(s.FieldErrors)),
		SubmissionStatus: s.SubmissionStatus,
		Notice:           s.Notice,
		PendingChecks:    make([]string, 0, len(s.PendingChecks)),
	}

	for k, v := range s.Fields {
		if !SpecOf(k).Persist && v.Kind() == KindText {
			if v.(Text) != "" {
				v = Text("********")
			}
		}
		view.Fields[string(k)] = v
	}
	for k, msg := range s.FieldErrors {
		view.FieldErrors[string(k)] = msg
	}
	for _, k := range s.PendingChecks {
		view.PendingChecks = append(view.PendingChecks, string(k))
	}
	sort.Strings(view.PendingChecks)
	return view
}
