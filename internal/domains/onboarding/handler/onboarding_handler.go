package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"onboarding-backend/internal/domains/onboarding"
	"onboarding-backend/internal/shared/middleware"
	"onboarding-backend/internal/shared/response"
	"onboarding-backend/pkg/logger"
	"onboarding-backend/pkg/money"
)

// maxPictureUpload bounds the multipart file read; the image processor
// enforces the real limit
const maxPictureUpload = 8 << 20

type OnboardingHandler struct {
	service  onboarding.Service
	fees     *money.FeeCalculator
	currency string
}

// NewOnboardingHandler builds the handler. fees may be nil to omit rate cards.
func NewOnboardingHandler(service onboarding.Service, fees *money.FeeCalculator, currency string) *OnboardingHandler {
	return &OnboardingHandler{
		service:  service,
		fees:     fees,
		currency: currency,
	}
}

// ========================================
// SESSION LIFECYCLE
// ========================================

// StartSession handles POST /onboarding/sessions
func (h *OnboardingHandler) StartSession(c *gin.Context) {
	var req onboarding.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	started, err := h.service.Start(c.Request.Context(), req, middleware.BearerToken(c))
	if err != nil {
		h.handleError(c, "", err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"session_id": started.SessionID,
		"token":      started.Token,
		"state":      h.view(started.State),
	})
}

// GetSession handles GET /onboarding/session
func (h *OnboardingHandler) GetSession(c *gin.Context) {
	sessionID := c.GetString(middleware.ContextSessionID)

	state, err := h.service.GetState(c.Request.Context(), sessionID)
	if err != nil {
		h.handleError(c, sessionID, err)
		return
	}
	response.Success(c, http.StatusOK, h.view(*state))
}

// DiscardSession handles DELETE /onboarding/session
func (h *OnboardingHandler) DiscardSession(c *gin.Context) {
	sessionID := c.GetString(middleware.ContextSessionID)

	if err := h.service.Discard(c.Request.Context(), sessionID); err != nil {
		h.handleError(c, sessionID, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"discarded": true})
}

// ========================================
// EDITING
// ========================================

// UpdateFields handles PATCH /onboarding/session/fields
func (h *OnboardingHandler) UpdateFields(c *gin.Context) {
	sessionID := c.GetString(middleware.ContextSessionID)

	var req onboarding.UpdateFieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	state, err := h.service.UpdateFields(c.Request.Context(), sessionID, req)
	if err != nil {
		h.handleError(c, sessionID, err)
		return
	}
	response.Success(c, http.StatusOK, h.view(*state))
}

// UploadPicture handles POST /onboarding/session/picture (multipart "file")
func (h *OnboardingHandler) UploadPicture(c *gin.Context) {
	sessionID := c.GetString(middleware.ContextSessionID)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}
	if fileHeader.Size > maxPictureUpload {
		response.BadRequest(c, "file is too large")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.BadRequest(c, "cannot read file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxPictureUpload))
	if err != nil {
		response.BadRequest(c, "cannot read file")
		return
	}

	state, err := h.service.UploadPicture(c.Request.Context(), sessionID, onboarding.PictureUpload{
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		h.handleError(c, sessionID, err)
		return
	}
	response.Success(c, http.StatusOK, h.view(*state))
}

// ========================================
// NAVIGATION
// ========================================

// Next handles POST /onboarding/session/next
func (h *OnboardingHandler) Next(c *gin.Context) {
	sessionID := c.GetString(middleware.ContextSessionID)

	result, err := h.service.Next(c.Request.Context(), sessionID)
	if err != nil {
		h.handleError(c, sessionID, err)
		return
	}
	response.Success(c, http.StatusOK, h.stepView(result))
}

// Back handles POST /onboarding/session/back
func (h *OnboardingHandler) Back(c *gin.Context) {
	sessionID := c.GetString(middleware.ContextSessionID)

	state, err := h.service.Back(c.Request.Context(), sessionID)
	if err != nil {
		h.handleError(c, sessionID, err)
		return
	}
	response.Success(c, http.StatusOK, h.view(*state))
}

// Submit handles POST /onboarding/session/submit
func (h *OnboardingHandler) Submit(c *gin.Context) {
	sessionID := c.GetString(middleware.ContextSessionID)

	result, err := h.service.Submit(c.Request.Context(), sessionID)
	if err != nil {
		h.handleError(c, sessionID, err)
		return
	}
	response.Success(c, http.StatusOK, h.stepView(result))
}

// ========================================
// VIEWS
// ========================================

func (h *OnboardingHandler) stepView(r *onboarding.StepResult) gin.H {
	return gin.H{
		"submitted": r.Submitted,
		"result":    r.Result,
		"state":     h.view(r.State),
	}
}

func (h *OnboardingHandler) view(s onboarding.State) onboarding.StateView {
	view := onboarding.NewStateView(s)
	view.RateCard = h.rateCard(s)
	return view
}

// rateCard is display only; an unparsable rate just hides the card
func (h *OnboardingHandler) rateCard(s onboarding.State) *onboarding.RateCardView {
	if h.fees == nil {
		return nil
	}
	v, ok := s.Fields[onboarding.FieldRatePerPost]
	if !ok || v.Kind() != onboarding.KindText {
		return nil
	}
	amount, err := money.ParseAmount(string(v.(onboarding.Text)))
	if err != nil {
		return nil
	}
	split := h.fees.Split(amount)
	return &onboarding.RateCardView{
		Currency: h.currency,
		Gross:    money.Format(split.Gross),
		Fee:      money.Format(split.Fee),
		Net:      money.Format(split.Net),
	}
}

// ========================================
// ERROR MAPPING
// ========================================

func (h *OnboardingHandler) handleError(c *gin.Context, sessionID string, err error) {
	var (
		validationErr *onboarding.ValidationError
		conflictErr   *onboarding.AvailabilityConflictError
		authErr       *onboarding.AuthExpiredError
		transportErr  *onboarding.TransportError
		serverErr     *onboarding.ServerError
	)

	switch {
	// 422 - field scoped, user recoverable
	case errors.As(err, &validationErr):
		response.ErrorWithDetails(c, http.StatusUnprocessableEntity, "VALIDATION_FAILED", validationErr.Error(), gin.H{
			"fields": fieldErrors(validationErr.Fields),
			"state":  h.currentState(c, sessionID),
		})

	// 409 - username or email taken
	case errors.As(err, &conflictErr):
		response.ErrorWithDetails(c, http.StatusConflict, "ALREADY_REGISTERED", conflictErr.Error(), gin.H{
			"field": string(conflictErr.Field),
			"step":  conflictErr.Step,
			"state": h.currentState(c, sessionID),
		})

	// 401 - the upstream account session expired
	case errors.As(err, &authErr):
		response.ErrorWithDetails(c, http.StatusUnauthorized, "AUTH_EXPIRED", authErr.Error(), gin.H{
			"redirect_url": authErr.RedirectURL,
		})

	case errors.As(err, &transportErr):
		logger.Warn("[Onboarding] registration unreachable", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		response.ErrorWithDetails(c, http.StatusServiceUnavailable, "REGISTRATION_UNAVAILABLE", onboarding.MsgGenericRetry, gin.H{
			"state": h.currentState(c, sessionID),
		})

	case errors.As(err, &serverErr):
		logger.ErrorWithFields("[Onboarding] registration server error", err, map[string]interface{}{
			"session_id": sessionID,
		})
		response.ErrorWithDetails(c, http.StatusBadGateway, "REGISTRATION_FAILED", onboarding.MsgGenericRetry, gin.H{
			"state": h.currentState(c, sessionID),
		})

	// 409 - the wizard is busy or already done
	case errors.Is(err, onboarding.ErrTransitionInProgress),
		errors.Is(err, onboarding.ErrSubmissionInProgress),
		errors.Is(err, onboarding.ErrCheckPending),
		errors.Is(err, onboarding.ErrNotReady),
		errors.Is(err, onboarding.ErrAlreadySubmitted):
		response.Conflict(c, err.Error())

	// 400 - bad input
	case errors.Is(err, onboarding.ErrUnknownFlow),
		errors.Is(err, onboarding.ErrUnknownField),
		errors.Is(err, onboarding.ErrFieldNotInFlow),
		errors.Is(err, onboarding.ErrInvalidValue),
		errors.Is(err, onboarding.ErrPictureUnsupported):
		response.BadRequest(c, err.Error())

	case errors.Is(err, onboarding.ErrAuthRequired):
		response.Unauthorized(c, err.Error())

	case errors.Is(err, onboarding.ErrSessionNotFound),
		errors.Is(err, onboarding.ErrWizardClosed):
		response.NotFound(c, err.Error())

	// 500 - unexpected errors
	default:
		logger.ErrorWithFields("[Onboarding] unexpected error", err, map[string]interface{}{
			"session_id": sessionID,
			"path":       c.FullPath(),
		})
		response.InternalServerError(c, "Internal server error")
	}
}

// currentState lets the client re-render after a failed action
func (h *OnboardingHandler) currentState(c *gin.Context, sessionID string) *onboarding.StateView {
	if sessionID == "" {
		return nil
	}
	state, err := h.service.GetState(c.Request.Context(), sessionID)
	if err != nil {
		return nil
	}
	view := h.view(*state)
	return &view
}

func fieldErrors(fields map[onboarding.FieldKey]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, msg := range fields {
		out[string(k)] = msg
	}
	return out
}
