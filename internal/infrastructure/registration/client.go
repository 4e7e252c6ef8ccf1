package registration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"onboarding-backend/internal/config"
	"onboarding-backend/internal/domains/onboarding"
	"onboarding-backend/pkg/logger"
)

// maxErrorBody caps how much of a failed reply is read
const maxErrorBody = 64 << 10

// Client talks to the external registration API. It implements
// onboarding.Registrar and onboarding.AvailabilityChecker.
type Client struct {
	cfg     config.RegistrationConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewClient(cfg config.RegistrationConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.CheckRPS
	if rps <= 0 {
		rps = 20
	}
	burst := cfg.CheckBurst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// ========================================
// REGISTRATION
// ========================================

func (c *Client) pathFor(flow onboarding.FlowID) (string, error) {
	switch flow {
	case onboarding.FlowCreatorSignup:
		return c.cfg.CreatorPath, nil
	case onboarding.FlowBrandSignup:
		return c.cfg.BrandPath, nil
	case onboarding.FlowCreatorProfile:
		return c.cfg.ProfilePath, nil
	}
	return "", onboarding.ErrUnknownFlow
}

// Register posts the wizard as multipart/form-data
func (c *Client) Register(ctx context.Context, req onboarding.RegistrationRequest) (*onboarding.RegistrationResult, error) {
	path, err := c.pathFor(req.Flow)
	if err != nil {
		return nil, err
	}

	body, contentType, err := encodeMultipart(req)
	if err != nil {
		return nil, fmt.Errorf("encode registration form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build registration request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	if req.AccessToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.AccessToken)
	}

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &onboarding.TransportError{Err: err}
	}
	defer resp.Body.Close()

	logger.Debug("[Registration] response", map[string]interface{}{
		"flow":     string(req.Flow),
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	})

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeAPIError(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &onboarding.TransportError{Err: fmt.Errorf("read registration reply: %w", err)}
	}
	var result onboarding.RegistrationResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", onboarding.ErrMalformedResponse, err)
	}
	if result.RedirectURL == "" && result.UserID == "" {
		return nil, fmt.Errorf("%w: reply has neither redirect_url nor user_id", onboarding.ErrMalformedResponse)
	}
	return &result, nil
}

// encodeMultipart writes values in a stable order, then the file part
func encodeMultipart(req onboarding.RegistrationRequest) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	names := make([]string, 0, len(req.Values))
	for name := range req.Values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writer.WriteField(name, req.Values[name]); err != nil {
			return nil, "", err
		}
	}

	if req.File != nil {
		contentType := strings.TrimSpace(req.File.ContentType)
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			escapeQuotes(req.File.FieldName), escapeQuotes(req.File.FileName)))
		header.Set("Content-Type", contentType)

		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(req.File.Data); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// apiErrorBody covers both {"error": "..."} and {"message": "..."} replies
type apiErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field"`
	Kind    string `json:"kind"`
}

func decodeAPIError(resp *http.Response) *onboarding.APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &onboarding.APIError{Status: resp.StatusCode}

	var body apiErrorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		apiErr.Message = body.Error
		if apiErr.Message == "" {
			apiErr.Message = body.Message
		}
		apiErr.Field = body.Field
		apiErr.Kind = body.Kind
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}

	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// ========================================
// AVAILABILITY
// ========================================

type availabilityReply struct {
	Available *bool `json:"available"`
}

// CheckAvailability asks whether a username or email is still free
func (c *Client) CheckAvailability(ctx context.Context, field onboarding.FieldKey, value string) (bool, error) {
	var path, param string
	switch field {
	case onboarding.FieldUsername:
		path, param = c.cfg.CheckUsernamePath, "username"
	case onboarding.FieldEmail:
		path, param = c.cfg.CheckEmailPath, "email"
	default:
		return false, fmt.Errorf("no availability check for %s", field)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("availability rate limit: %w", err)
	}

	endpoint := c.cfg.BaseURL + path + "?" + url.Values{param: {value}}.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return false, &onboarding.TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, decodeAPIError(resp)
	}

	var reply availabilityReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return false, fmt.Errorf("%w: %v", onboarding.ErrMalformedResponse, err)
	}
	if reply.Available == nil {
		return false, errors.New("availability reply without available flag")
	}
	return *reply.Available, nil
}
