package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"onboarding-backend/internal/domains/onboarding"
	"onboarding-backend/internal/shared/middleware"
	"onboarding-backend/pkg/jwt"
	"onboarding-backend/pkg/money"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) Start(ctx context.Context, req onboarding.StartRequest, upstreamToken string) (*onboarding.SessionStarted, error) {
	args := m.Called(ctx, req, upstreamToken)
	started, _ := args.Get(0).(*onboarding.SessionStarted)
	return started, args.Error(1)
}

func (m *mockService) GetState(ctx context.Context, sessionID string) (*onboarding.State, error) {
	args := m.Called(ctx, sessionID)
	state, _ := args.Get(0).(*onboarding.State)
	return state, args.Error(1)
}

func (m *mockService) Discard(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

func (m *mockService) UpdateFields(ctx context.Context, sessionID string, req onboarding.UpdateFieldsRequest) (*onboarding.State, error) {
	args := m.Called(ctx, sessionID, req)
	state, _ := args.Get(0).(*onboarding.State)
	return state, args.Error(1)
}

func (m *mockService) UploadPicture(ctx context.Context, sessionID string, upload onboarding.PictureUpload) (*onboarding.State, error) {
	args := m.Called(ctx, sessionID, upload)
	state, _ := args.Get(0).(*onboarding.State)
	return state, args.Error(1)
}

func (m *mockService) Next(ctx context.Context, sessionID string) (*onboarding.StepResult, error) {
	args := m.Called(ctx, sessionID)
	result, _ := args.Get(0).(*onboarding.StepResult)
	return result, args.Error(1)
}

func (m *mockService) Back(ctx context.Context, sessionID string) (*onboarding.State, error) {
	args := m.Called(ctx, sessionID)
	state, _ := args.Get(0).(*onboarding.State)
	return state, args.Error(1)
}

func (m *mockService) Submit(ctx context.Context, sessionID string) (*onboarding.StepResult, error) {
	args := m.Called(ctx, sessionID)
	result, _ := args.Get(0).(*onboarding.StepResult)
	return result, args.Error(1)
}

func (m *mockService) Sweep(idle time.Duration) int {
	return m.Called(idle).Int(0)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

// stateJSON mirrors StateView with generic field values
type stateJSON struct {
	SessionID   string                   `json:"session_id"`
	CurrentStep int                      `json:"current_step"`
	Fields      map[string]interface{}   `json:"fields"`
	FieldErrors map[string]string        `json:"field_errors"`
	RateCard    *onboarding.RateCardView `json:"rate_card"`
}

type fixture struct {
	svc    *mockService
	tokens *jwt.Manager
	router *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := &mockService{}
	fees, err := money.NewFeeCalculator("0.15")
	require.NoError(t, err)
	tokens := jwt.NewManager("test-secret", time.Hour)
	h := NewOnboardingHandler(svc, fees, "USD")

	r := gin.New()
	r.POST("/sessions", h.StartSession)
	s := r.Group("/session", middleware.OnboardingSession(tokens))
	s.GET("", h.GetSession)
	s.DELETE("", h.DiscardSession)
	s.PATCH("/fields", h.UpdateFields)
	s.POST("/next", h.Next)
	s.POST("/back", h.Back)
	s.POST("/picture", h.UploadPicture)
	s.POST("/submit", h.Submit)

	t.Cleanup(func() { svc.AssertExpectations(t) })
	return &fixture{svc: svc, tokens: tokens, router: r}
}

func (f *fixture) do(t *testing.T, method, path string, body []byte, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func (f *fixture) session(t *testing.T, id string) map[string]string {
	t.Helper()
	token, err := f.tokens.GenerateSessionToken(id, string(onboarding.FlowCreatorSignup))
	require.NoError(t, err)
	return map[string]string{middleware.SessionTokenHeader: token}
}

func sampleState(id string) *onboarding.State {
	return &onboarding.State{
		SessionID:   id,
		Flow:        onboarding.FlowCreatorSignup,
		Role:        onboarding.RoleCreator,
		CurrentStep: 1,
		StepCount:   5,
		StepName:    "about",
		Fields: onboarding.Fields{
			onboarding.FieldUsername:    onboarding.Text("jane"),
			onboarding.FieldPassword:    onboarding.Text("hunter22"),
			onboarding.FieldRatePerPost: onboarding.Text("150"),
		},
		FieldErrors:      map[onboarding.FieldKey]string{},
		SubmissionStatus: onboarding.StatusIdle,
	}
}

func TestStartSession(t *testing.T) {
	f := newFixture(t)
	f.svc.On("Start", mock.Anything, onboarding.StartRequest{Flow: onboarding.FlowCreatorProfile}, "upstream").
		Return(&onboarding.SessionStarted{SessionID: "s1", Token: "tok", State: *sampleState("s1")}, nil)

	w, env := f.do(t, http.MethodPost, "/sessions", []byte(`{"flow":"creator_profile"}`),
		map[string]string{"Authorization": "Bearer upstream"})

	assert.Equal(t, http.StatusCreated, w.Code)
	var data struct {
		SessionID string    `json:"session_id"`
		Token     string    `json:"token"`
		State     stateJSON `json:"state"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "s1", data.SessionID)
	assert.Equal(t, "tok", data.Token)
	assert.Equal(t, 1, data.State.CurrentStep)
}

func TestStartSession_Errors(t *testing.T) {
	f := newFixture(t)
	f.svc.On("Start", mock.Anything, onboarding.StartRequest{Flow: "nope"}, "").
		Return(nil, fmt.Errorf("%w: nope", onboarding.ErrUnknownFlow))
	f.svc.On("Start", mock.Anything, onboarding.StartRequest{Flow: onboarding.FlowCreatorProfile}, "").
		Return(nil, onboarding.ErrAuthRequired)

	w, env := f.do(t, http.MethodPost, "/sessions", []byte(`{"flow":"nope"}`), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)

	w, _ = f.do(t, http.MethodPost, "/sessions", []byte(`{"flow":"creator_profile"}`), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = f.do(t, http.MethodPost, "/sessions", []byte(`{`), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionTokenRequired(t *testing.T) {
	f := newFixture(t)

	w, env := f.do(t, http.MethodGet, "/session", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "SESSION_TOKEN_MISSING", env.Error.Code)

	w, env = f.do(t, http.MethodGet, "/session", nil, map[string]string{middleware.SessionTokenHeader: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "SESSION_TOKEN_INVALID", env.Error.Code)
}

func TestGetSession_MasksSecretsAndAddsRateCard(t *testing.T) {
	f := newFixture(t)
	f.svc.On("GetState", mock.Anything, "s1").Return(sampleState("s1"), nil)

	w, env := f.do(t, http.MethodGet, "/session", nil, f.session(t, "s1"))

	require.Equal(t, http.StatusOK, w.Code)
	var view stateJSON
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "********", view.Fields["password"])
	assert.Equal(t, "jane", view.Fields["username"])
	require.NotNil(t, view.RateCard)
	assert.Equal(t, onboarding.RateCardView{Currency: "USD", Gross: "150.00", Fee: "22.50", Net: "127.50"}, *view.RateCard)
}

func TestGetSession_NotFound(t *testing.T) {
	f := newFixture(t)
	f.svc.On("GetState", mock.Anything, "gone").Return(nil, onboarding.ErrSessionNotFound)

	w, _ := f.do(t, http.MethodGet, "/session", nil, f.session(t, "gone"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateFields(t *testing.T) {
	f := newFixture(t)
	f.svc.On("UpdateFields", mock.Anything, "s1", mock.MatchedBy(func(req onboarding.UpdateFieldsRequest) bool {
		return string(req.Fields["username"]) == `"jane"`
	})).Return(sampleState("s1"), nil).Once()
	f.svc.On("UpdateFields", mock.Anything, "s1", mock.MatchedBy(func(req onboarding.UpdateFieldsRequest) bool {
		_, ok := req.Fields["shoeSize"]
		return ok
	})).Return(nil, fmt.Errorf("%w: shoeSize", onboarding.ErrUnknownField)).Once()

	w, _ := f.do(t, http.MethodPatch, "/session/fields", []byte(`{"fields":{"username":"jane"}}`), f.session(t, "s1"))
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = f.do(t, http.MethodPatch, "/session/fields", []byte(`{"fields":{"shoeSize":44}}`), f.session(t, "s1"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNext_ValidationFailure(t *testing.T) {
	f := newFixture(t)
	state := sampleState("s1")
	state.FieldErrors = map[onboarding.FieldKey]string{onboarding.FieldAge: "Age is required"}
	f.svc.On("Next", mock.Anything, "s1").Return(nil, &onboarding.ValidationError{
		Fields: map[onboarding.FieldKey]string{onboarding.FieldAge: "Age is required"},
	})
	f.svc.On("GetState", mock.Anything, "s1").Return(state, nil)

	w, env := f.do(t, http.MethodPost, "/session/next", nil, f.session(t, "s1"))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	assert.Equal(t, onboarding.MsgCorrectErrors, env.Error.Message)
	assert.Equal(t, map[string]interface{}{"age": "Age is required"}, env.Error.Details["fields"])
	assert.NotNil(t, env.Error.Details["state"])
}

func TestNext_Submitted(t *testing.T) {
	f := newFixture(t)
	f.svc.On("Next", mock.Anything, "s1").Return(&onboarding.StepResult{
		State:     *sampleState("s1"),
		Submitted: true,
		Result:    &onboarding.RegistrationResult{RedirectURL: "/dashboard", UserID: "u1"},
	}, nil)

	w, env := f.do(t, http.MethodPost, "/session/next", nil, f.session(t, "s1"))

	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Submitted bool                           `json:"submitted"`
		Result    *onboarding.RegistrationResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.True(t, data.Submitted)
	assert.Equal(t, "/dashboard", data.Result.RedirectURL)
}

func TestSubmit_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"conflict", &onboarding.AvailabilityConflictError{Field: onboarding.FieldUsername, Message: onboarding.MsgUsernameTaken}, http.StatusConflict, "ALREADY_REGISTERED"},
		{"auth expired", &onboarding.AuthExpiredError{RedirectURL: "/login"}, http.StatusUnauthorized, "AUTH_EXPIRED"},
		{"transport", &onboarding.TransportError{Err: errors.New("dial tcp")}, http.StatusServiceUnavailable, "REGISTRATION_UNAVAILABLE"},
		{"server", &onboarding.ServerError{Status: 500, Err: errors.New("boom")}, http.StatusBadGateway, "REGISTRATION_FAILED"},
		{"in progress", onboarding.ErrSubmissionInProgress, http.StatusConflict, "CONFLICT"},
		{"check pending", onboarding.ErrCheckPending, http.StatusConflict, "CONFLICT"},
		{"already submitted", onboarding.ErrAlreadySubmitted, http.StatusConflict, "CONFLICT"},
		{"closed", onboarding.ErrWizardClosed, http.StatusNotFound, "NOT_FOUND"},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.svc.On("Submit", mock.Anything, "s1").Return(nil, tt.err)
			f.svc.On("GetState", mock.Anything, "s1").Return(sampleState("s1"), nil).Maybe()

			w, env := f.do(t, http.MethodPost, "/session/submit", nil, f.session(t, "s1"))

			assert.Equal(t, tt.status, w.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestSubmit_AuthExpiredCarriesRedirect(t *testing.T) {
	f := newFixture(t)
	f.svc.On("Submit", mock.Anything, "s1").Return(nil, &onboarding.AuthExpiredError{RedirectURL: "/login"})

	_, env := f.do(t, http.MethodPost, "/session/submit", nil, f.session(t, "s1"))

	require.NotNil(t, env.Error)
	assert.Equal(t, "/login", env.Error.Details["redirect_url"])
}

func TestBackAndDiscard(t *testing.T) {
	f := newFixture(t)
	f.svc.On("Back", mock.Anything, "s1").Return(sampleState("s1"), nil)
	f.svc.On("Discard", mock.Anything, "s1").Return(nil)

	w, _ := f.do(t, http.MethodPost, "/session/back", nil, f.session(t, "s1"))
	assert.Equal(t, http.StatusOK, w.Code)

	w, env := f.do(t, http.MethodDelete, "/session", nil, f.session(t, "s1"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
}

func TestUploadPicture(t *testing.T) {
	f := newFixture(t)
	f.svc.On("UploadPicture", mock.Anything, "s1", mock.MatchedBy(func(u onboarding.PictureUpload) bool {
		return u.FileName == "me.png" && string(u.Data) == "png-bytes"
	})).Return(sampleState("s1"), nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "me.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/session/picture", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for k, v := range f.session(t, "s1") {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUploadPicture_MissingFile(t *testing.T) {
	f := newFixture(t)

	w, _ := f.do(t, http.MethodPost, "/session/picture", []byte(`{}`), f.session(t, "s1"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
