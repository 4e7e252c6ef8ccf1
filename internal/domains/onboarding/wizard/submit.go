package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"onboarding-backend/internal/domains/onboarding"
	"onboarding-backend/internal/shared/utils"
	"onboarding-backend/pkg/logger"
)

// Submit sends the completed wizard to the registration API. It requires
// the last step with every step's local rules passing.
func (w *Wizard) Submit(ctx context.Context) (*onboarding.RegistrationResult, error) {
	w.mu.Lock()
	if err := w.navGuardLocked(); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	if w.deps.Registrar == nil || w.step != w.flow.StepCount()-1 {
		w.mu.Unlock()
		return nil, onboarding.ErrNotReady
	}

	if verr, data, version, moved := w.fullGateLocked(); verr != nil {
		w.mu.Unlock()
		if moved {
			w.persist(onboarding.DraftKeyStep, data, version)
		}
		return nil, verr
	}

	w.status = onboarding.StatusSubmitting
	w.notice = ""
	req, pic, hasPic := w.buildRequestLocked()
	w.mu.Unlock()

	result, err := w.send(ctx, req, pic, hasPic)
	if err != nil {
		return nil, w.fail(err)
	}

	w.succeed(result, pic, hasPic)
	return result, nil
}

// fullGateLocked checks every step locally and routes to the first failing one
func (w *Wizard) fullGateLocked() (verr error, data []byte, version uint64, moved bool) {
	all := make(map[onboarding.FieldKey]string)
	first := -1
	for i := range w.flow.Steps {
		errs, _ := w.gateLocked(i, false)
		if len(errs) > 0 && first < 0 {
			first = i
		}
		for k, msg := range errs {
			all[k] = msg
			w.errs[k] = msg
		}
	}
	if first < 0 {
		return nil, nil, 0, false
	}

	w.notice = onboarding.MsgCorrectErrors
	data, version, moved = w.moveToLocked(first)
	return &onboarding.ValidationError{Fields: all, Message: onboarding.MsgCorrectErrors}, data, version, moved
}

// buildRequestLocked snapshots the fields into multipart values
func (w *Wizard) buildRequestLocked() (onboarding.RegistrationRequest, onboarding.Picture, bool) {
	values := map[string]string{"role": string(w.flow.Role)}

	for _, key := range w.flow.FieldKeys() {
		spec := onboarding.SpecOf(key)
		value, ok := w.fields[key]
		if !ok || spec.FormName == "" {
			continue
		}

		switch v := value.(type) {
		case onboarding.Text:
			s := strings.TrimSpace(string(v))
			if key == onboarding.FieldPassword {
				s = string(v)
			}
			if key == onboarding.FieldWebsite {
				s = utils.NormalizeURL(s)
			}
			if s != "" {
				values[spec.FormName] = s
			}
		case onboarding.Number:
			values[spec.FormName] = strconv.FormatInt(int64(v), 10)
		case onboarding.Flag:
			values[spec.FormName] = strconv.FormatBool(bool(v))
		case onboarding.List:
			values[spec.FormName] = encodeList(key, v)
		case onboarding.SocialLinks:
			values[spec.FormName] = encodeSocialLinks(v)
		}
	}

	pic, hasPic := w.fields.Picture(onboarding.FieldProfilePicture)
	return onboarding.RegistrationRequest{
		Flow:   w.flow.ID,
		Role:   w.flow.Role,
		Values: values,
	}, pic, hasPic
}

func encodeList(key onboarding.FieldKey, list onboarding.List) string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if key == onboarding.FieldPortfolioLinks {
			item = utils.NormalizeURL(item)
		}
		out = append(out, item)
	}
	data, _ := json.Marshal(out)
	return string(data)
}

func encodeSocialLinks(links onboarding.SocialLinks) string {
	out := make([]onboarding.SocialLinkRecord, 0, len(links))
	for _, l := range links {
		if !l.HasURL() {
			continue
		}
		l.URL = utils.NormalizeURL(l.URL)
		out = append(out, l)
	}
	data, _ := json.Marshal(out)
	return string(data)
}

// send performs the network part without holding the lock
func (w *Wizard) send(ctx context.Context, req onboarding.RegistrationRequest, pic onboarding.Picture, hasPic bool) (*onboarding.RegistrationResult, error) {
	if w.flow.RequiresAuth {
		if w.deps.Credentials == nil {
			return nil, &onboarding.APIError{Status: http.StatusUnauthorized, Message: "missing credentials"}
		}
		token, err := w.deps.Credentials.AccessToken(ctx)
		if errors.Is(err, onboarding.ErrAuthRequired) || (err == nil && token == "") {
			return nil, &onboarding.APIError{Status: http.StatusUnauthorized, Message: "missing credentials"}
		}
		if err != nil {
			return nil, &onboarding.TransportError{Err: err}
		}
		req.AccessToken = token
	}

	if hasPic && w.deps.Pictures != nil {
		data, err := w.deps.Pictures.Fetch(ctx, pic.Key)
		if err != nil {
			return nil, &onboarding.TransportError{Err: fmt.Errorf("fetch profile picture: %w", err)}
		}
		req.File = &onboarding.FilePart{
			FieldName:   onboarding.SpecOf(onboarding.FieldProfilePicture).FormName,
			FileName:    pic.FileName,
			ContentType: pic.ContentType,
			Data:        data,
		}
	}

	return w.deps.Registrar.Register(ctx, req)
}

// ========================================
// OUTCOMES
// ========================================

func (w *Wizard) succeed(result *onboarding.RegistrationResult, pic onboarding.Picture, hasPic bool) {
	w.mu.Lock()
	w.status = onboarding.StatusSucceeded
	w.errs = make(map[onboarding.FieldKey]string)
	w.notice = ""
	username := w.fields.Text(onboarding.FieldUsername)
	w.mu.Unlock()

	// Drafts are cleared even if the wizard was closed meanwhile
	w.clearDrafts()

	logger.Info("[Wizard] onboarding submitted", map[string]interface{}{
		"session_id": w.id,
		"flow":       string(w.flow.ID),
		"user_id":    result.UserID,
	})

	if w.flow.SignUp {
		w.emit(onboarding.SignUpEvent(w.id, w.flow.Role))
	}
	w.emit(onboarding.OnboardingCompleteEvent(w.id, w.flow.ID, w.flow.Role, result.UserID))

	if w.flow.Role == onboarding.RoleCreator && username != "" && w.deps.Indexer != nil {
		w.sideEffect("index creator profile", func(ctx context.Context) error {
			return w.deps.Indexer.NotifyProfile(ctx, username)
		})
	}
	if hasPic && w.deps.Pictures != nil {
		w.sideEffect("remove staged picture", func(ctx context.Context) error {
			return w.deps.Pictures.Remove(ctx, pic.Key)
		})
	}
}

// fail maps a submission error onto the taxonomy and routes the wizard.
// Fields are never touched and drafts are kept.
func (w *Wizard) fail(err error) error {
	var apiErr *onboarding.APIError
	isAPI := errors.As(err, &apiErr)

	if isAPI && apiErr.Status == http.StatusUnauthorized {
		if w.deps.Credentials != nil {
			w.sideEffect("clear credentials", w.deps.Credentials.Clear)
		}
		w.mu.Lock()
		w.status = onboarding.StatusFailed
		if !w.closed {
			w.notice = onboarding.MsgSessionExpired
		}
		w.mu.Unlock()
		return &onboarding.AuthExpiredError{RedirectURL: w.deps.LoginURL}
	}

	var mapped error
	switch {
	case isAPI && apiErr.Status >= 500:
		mapped = &onboarding.ServerError{Status: apiErr.Status, Err: apiErr}
	case isAPI && apiErr.Status == http.StatusTooManyRequests:
		mapped = &onboarding.TransportError{Err: apiErr}
	case isAPI:
		// resolved under the lock below
	case errors.Is(err, onboarding.ErrMalformedResponse):
		mapped = &onboarding.ServerError{Status: http.StatusOK, Err: err}
	default:
		var te *onboarding.TransportError
		if errors.As(err, &te) {
			mapped = te
		} else {
			mapped = &onboarding.TransportError{Err: err}
		}
	}

	logger.ErrorWithFields("[Wizard] submission failed", err, map[string]interface{}{
		"session_id": w.id,
		"flow":       string(w.flow.ID),
	})

	w.mu.Lock()
	w.status = onboarding.StatusFailed
	if w.closed {
		w.mu.Unlock()
		if mapped == nil {
			mapped = w.apiFieldError(apiErr)
		}
		return mapped
	}

	if mapped != nil {
		w.notice = onboarding.MsgGenericRetry
		w.mu.Unlock()
		return mapped
	}

	mapped = w.apiFieldError(apiErr)
	var data []byte
	var version uint64
	var moved bool
	switch e := mapped.(type) {
	case *onboarding.AvailabilityConflictError:
		w.errs[e.Field] = e.Message
		if onboarding.SpecOf(e.Field).Remote {
			w.results[e.Field] = checkResult{value: w.fields.Text(e.Field)}
		}
		w.notice = e.Message
		data, version, moved = w.moveToLocked(e.Step)
	case *onboarding.ValidationError:
		for key, msg := range e.Fields {
			w.errs[key] = msg
			if step, ok := w.flow.StepOf(key); ok {
				data, version, moved = w.moveToLocked(step)
			}
		}
		w.notice = e.Message
	}
	w.mu.Unlock()

	if moved {
		w.persist(onboarding.DraftKeyStep, data, version)
	}
	return mapped
}

// apiFieldError resolves which field a 4xx reply blames. A structured
// field from the API wins; free text is matched as a fallback.
func (w *Wizard) apiFieldError(apiErr *onboarding.APIError) error {
	msg := strings.ToLower(apiErr.Message)
	kind := strings.ToLower(apiErr.Kind)
	conflict := apiErr.Status == http.StatusConflict ||
		kind == "conflict" || kind == "taken" ||
		strings.Contains(msg, "taken") || strings.Contains(msg, "exists") || strings.Contains(msg, "already")

	key, found := w.blamedField(apiErr, msg)
	if !found {
		text := apiErr.Message
		if text == "" {
			text = onboarding.MsgGenericRetry
		}
		return &onboarding.ValidationError{Fields: map[onboarding.FieldKey]string{}, Message: text}
	}
	step, _ := w.flow.StepOf(key)

	if conflict && onboarding.SpecOf(key).Remote {
		message := onboarding.MsgUsernameTaken
		if key == onboarding.FieldEmail {
			message = onboarding.MsgEmailTaken
		}
		return &onboarding.AvailabilityConflictError{Field: key, Step: step, Message: message}
	}

	fieldMsg := apiErr.Message
	if strings.HasPrefix(msg, "missing") || kind == "required" {
		fieldMsg = onboarding.SpecOf(key).Label + " is required"
	}
	return &onboarding.ValidationError{
		Fields:  map[onboarding.FieldKey]string{key: fieldMsg},
		Message: onboarding.MsgCorrectErrors,
	}
}

func (w *Wizard) blamedField(apiErr *onboarding.APIError, msg string) (onboarding.FieldKey, bool) {
	if apiErr.Field != "" {
		if key, err := onboarding.ParseFieldKey(apiErr.Field); err == nil && w.flow.Owns(key) {
			return key, true
		}
		if key, ok := onboarding.FieldByFormName(apiErr.Field); ok && w.flow.Owns(key) {
			return key, true
		}
		if key, ok := onboarding.MatchFieldKeyword(strings.ReplaceAll(apiErr.Field, "_", " ")); ok && w.flow.Owns(key) {
			return key, true
		}
	}

	if apiErr.Status == http.StatusConflict {
		if strings.Contains(msg, "email") && w.flow.Owns(onboarding.FieldEmail) {
			return onboarding.FieldEmail, true
		}
		if w.flow.Owns(onboarding.FieldUsername) {
			return onboarding.FieldUsername, true
		}
		if w.flow.Owns(onboarding.FieldEmail) {
			return onboarding.FieldEmail, true
		}
	}

	if key, ok := onboarding.MatchFieldKeyword(msg); ok && w.flow.Owns(key) {
		return key, true
	}
	return "", false
}
