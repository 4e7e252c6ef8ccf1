package onboarding

import (
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Analytics event names
const (
	EventSignUp             = "sign_up"
	EventSignupStep         = "signup_step"
	EventOnboardingComplete = "onboarding_complete"
)

// eventSchema lists the parameters each event must carry
var eventSchema = map[string][]string{
	EventSignUp:             {"method", "role"},
	EventSignupStep:         {"flow", "step", "step_name"},
	EventOnboardingComplete: {"flow", "role", "user_id"},
}

// Event is one analytics hit. ClientID groups hits of one session.
type Event struct {
	Name     string            `json:"name"`
	ClientID string            `json:"client_id"`
	Params   map[string]string `json:"params"`
}

// Validate enforces the fixed parameter schema per event name
func (e Event) Validate() error {
	names := make([]interface{}, 0, len(eventSchema))
	for name := range eventSchema {
		names = append(names, name)
	}

	if err := validation.ValidateStruct(&e,
		validation.Field(&e.Name, validation.Required, validation.In(names...)),
		validation.Field(&e.ClientID, validation.Required),
	); err != nil {
		return err
	}

	// Map rejects keys that are not listed
	required := eventSchema[e.Name]
	rules := make([]*validation.KeyRules, 0, len(required))
	for _, p := range required {
		rules = append(rules, validation.Key(p, validation.Required))
	}
	return validation.Validate(e.Params, validation.Map(rules...))
}

func SignUpEvent(sessionID string, role Role) Event {
	return Event{
		Name:     EventSignUp,
		ClientID: sessionID,
		Params:   map[string]string{"method": "email", "role": string(role)},
	}
}

// SignupStepEvent reports the step that was just completed
func SignupStepEvent(sessionID string, flow FlowID, step int, stepName string) Event {
	return Event{
		Name:     EventSignupStep,
		ClientID: sessionID,
		Params: map[string]string{
			"flow":      string(flow),
			"step":      strconv.Itoa(step),
			"step_name": stepName,
		},
	}
}

func OnboardingCompleteEvent(sessionID string, flow FlowID, role Role, userID string) Event {
	return Event{
		Name:     EventOnboardingComplete,
		ClientID: sessionID,
		Params: map[string]string{
			"flow":    string(flow),
			"role":    string(role),
			"user_id": userID,
		},
	}
}
