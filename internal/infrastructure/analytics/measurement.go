package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"onboarding-backend/internal/config"
	"onboarding-backend/internal/shared"
	"onboarding-backend/pkg/logger"
)

// MeasurementClient posts events to the GA4 measurement protocol
type MeasurementClient struct {
	cfg    config.AnalyticsConfig
	client *http.Client
}

func NewMeasurementClient(cfg config.AnalyticsConfig) *MeasurementClient {
	return &MeasurementClient{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type measurementEvent struct {
	Name   string            `json:"name"`
	Params map[string]string `json:"params,omitempty"`
}

type measurementBody struct {
	ClientID        string             `json:"client_id"`
	TimestampMicros int64              `json:"timestamp_micros,omitempty"`
	Events          []measurementEvent `json:"events"`
}

// Enabled reports whether events are forwarded at all
func (c *MeasurementClient) Enabled() bool {
	return c.cfg.MeasurementID != "" && c.cfg.APISecret != ""
}

// Send forwards one event; it is a no-op when analytics is not configured
func (c *MeasurementClient) Send(ctx context.Context, payload shared.AnalyticsEventPayload) error {
	if !c.Enabled() {
		logger.Debug("[Analytics] not configured, dropping event", map[string]interface{}{"event": payload.Name})
		return nil
	}

	body := measurementBody{
		ClientID: payload.ClientID,
		Events:   []measurementEvent{{Name: payload.Name, Params: payload.Params}},
	}
	if !payload.OccurredAt.IsZero() {
		body.TimestampMicros = payload.OccurredAt.UnixMicro()
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	endpoint := c.cfg.Endpoint + "?" + url.Values{
		"measurement_id": {c.cfg.MeasurementID},
		"api_secret":     {c.cfg.APISecret},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("measurement protocol failed (%s): %s", resp.Status, strings.TrimSpace(string(respBody)))
}
