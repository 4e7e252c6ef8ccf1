package registration

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboarding-backend/internal/config"
	"onboarding-backend/internal/domains/onboarding"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.RegistrationConfig{
		BaseURL:           srv.URL,
		CreatorPath:       "/api/creators/register",
		BrandPath:         "/api/brands/register",
		ProfilePath:       "/api/creators/profile",
		CheckUsernamePath: "/api/check-username",
		CheckEmailPath:    "/api/check-email",
		Timeout:           5 * time.Second,
		CheckRPS:          100,
		CheckBurst:        10,
	})
}

func TestRegister_SendsMultipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/creators/profile", r.URL.Path)
		assert.Equal(t, "Bearer upstream", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "creator", r.FormValue("role"))
		assert.Equal(t, `["travel"]`, r.FormValue("interests"))

		file, header, err := r.FormFile("profile_picture")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "me.jpg", header.Filename)
		assert.Equal(t, "image/jpeg", header.Header.Get("Content-Type"))
		assert.Equal(t, []byte("jpeg"), data)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"redirect_url": "/creator/dashboard",
			"user_role":    "creator",
			"user_id":      "u-1",
			"creator_id":   "c-1",
		})
	})

	result, err := c.Register(context.Background(), onboarding.RegistrationRequest{
		Flow:        onboarding.FlowCreatorProfile,
		Role:        onboarding.RoleCreator,
		AccessToken: "upstream",
		Values:      map[string]string{"role": "creator", "interests": `["travel"]`},
		File:        &onboarding.FilePart{FieldName: "profile_picture", FileName: "me.jpg", ContentType: "image/jpeg", Data: []byte("jpeg")},
	})
	require.NoError(t, err)
	assert.Equal(t, "/creator/dashboard", result.RedirectURL)
	assert.Equal(t, "c-1", result.CreatorID)
}

func TestRegister_DecodesErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   onboarding.APIError
	}{
		{"error key", http.StatusConflict, `{"error":"username taken"}`,
			onboarding.APIError{Status: 409, Message: "username taken"}},
		{"message key", http.StatusBadRequest, `{"message":"missing age"}`,
			onboarding.APIError{Status: 400, Message: "missing age"}},
		{"structured", http.StatusBadRequest, `{"error":"invalid","field":"email","kind":"invalid"}`,
			onboarding.APIError{Status: 400, Message: "invalid", Field: "email", Kind: "invalid"}},
		{"plain text", http.StatusBadGateway, "upstream down\n",
			onboarding.APIError{Status: 502, Message: "upstream down"}},
		{"empty", http.StatusUnauthorized, "",
			onboarding.APIError{Status: 401, Message: "Unauthorized"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := c.Register(context.Background(), onboarding.RegistrationRequest{Flow: onboarding.FlowBrandSignup})

			var apiErr *onboarding.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.want, *apiErr)
		})
	}
}

func TestRegister_MalformedSuccess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>ok</html>")
	})

	_, err := c.Register(context.Background(), onboarding.RegistrationRequest{Flow: onboarding.FlowCreatorSignup})
	assert.ErrorIs(t, err, onboarding.ErrMalformedResponse)
}

func TestRegister_EmptySuccessIsMalformed(t *testing.T) {
	for _, body := range []string{"null", "{}", `{"message":"ok"}`} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, body)
		})

		_, err := c.Register(context.Background(), onboarding.RegistrationRequest{Flow: onboarding.FlowCreatorSignup})
		assert.ErrorIs(t, err, onboarding.ErrMalformedResponse, body)
	}
}

func TestRegister_TransportFailure(t *testing.T) {
	c := NewClient(config.RegistrationConfig{BaseURL: "http://127.0.0.1:1", CreatorPath: "/x", Timeout: time.Second})

	_, err := c.Register(context.Background(), onboarding.RegistrationRequest{Flow: onboarding.FlowCreatorSignup})

	var terr *onboarding.TransportError
	assert.ErrorAs(t, err, &terr)
}

func TestRegister_UnknownFlow(t *testing.T) {
	c := NewClient(config.RegistrationConfig{BaseURL: "http://127.0.0.1:1"})
	_, err := c.Register(context.Background(), onboarding.RegistrationRequest{Flow: "agency"})
	assert.True(t, errors.Is(err, onboarding.ErrUnknownFlow))
}

func TestCheckAvailability(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/check-username":
			available := r.URL.Query().Get("username") != "taken"
			_ = json.NewEncoder(w).Encode(map[string]bool{"available": available})
		case "/api/check-email":
			assert.Equal(t, "a+b@x.io", r.URL.Query().Get("email"))
			_, _ = io.WriteString(w, `{}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	ok, err := c.CheckAvailability(ctx, onboarding.FieldUsername, "free")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.CheckAvailability(ctx, onboarding.FieldUsername, "taken")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.CheckAvailability(ctx, onboarding.FieldEmail, "a+b@x.io")
	assert.Error(t, err, "a reply without the flag is not an answer")

	_, err = c.CheckAvailability(ctx, onboarding.FieldBio, "x")
	assert.Error(t, err)
}
