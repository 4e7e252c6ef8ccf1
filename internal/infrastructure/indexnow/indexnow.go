package indexnow

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
	"onboarding-backend/internal/infrastructure/queue"
	"onboarding-backend/internal/shared"
	"onboarding-backend/internal/shared/utils"
	"onboarding-backend/pkg/logger"
)

// ProfileURL is the public page of a creator
func ProfileURL(siteURL, username string) string {
	return strings.TrimRight(siteURL, "/") + "/creators/" + url.PathEscape(username)
}

// ========================================
// PRODUCER
// ========================================

// QueueNotifier implements onboarding.IndexNotifier by enqueueing the ping
type QueueNotifier struct {
	queue   queue.Enqueuer
	siteURL string
	now     func() time.Time
}

func NewQueueNotifier(q queue.Enqueuer, siteURL string) *QueueNotifier {
	return &QueueNotifier{queue: q, siteURL: siteURL, now: time.Now}
}

func (n *QueueNotifier) NotifyProfile(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("indexnow: empty username")
	}

	return queue.EnqueueJSON(ctx, n.queue, shared.TypeNotifyIndexNow, shared.IndexNowPayload{
		Username:    username,
		ProfileURL:  ProfileURL(n.siteURL, username),
		RequestedAt: n.now().UTC(),
	}, queue.Options{
		Queue:    shared.QueueLow,
		MaxRetry: 5,
		Timeout:  30 * time.Second,
	})
}

// ========================================
// CLIENT
// ========================================

// Client submits URLs to an IndexNow endpoint
type Client struct {
	cfg    config.IndexNowConfig
	client *http.Client
}

func NewClient(cfg config.IndexNowConfig) *Client {
	return &Client{cfg: cfg, client: &http.Client{Timeout: 10 * time.Second}}
}

type submission struct {
	Host        string   `json:"host"`
	Key         string   `json:"key"`
	KeyLocation string   `json:"keyLocation,omitempty"`
	URLList     []string `json:"urlList"`
}

func (c *Client) Enabled() bool {
	return c.cfg.Key != ""
}

// Submit announces urls, which must share one host
func (c *Client) Submit(ctx context.Context, urls ...string) error {
	if !c.Enabled() {
		logger.Debug("[IndexNow] not configured, skipping", map[string]interface{}{"urls": urls})
		return nil
	}
	if len(urls) == 0 {
		return nil
	}

	host := utils.HostOf(urls[0])
	if host == "" {
		return fmt.Errorf("indexnow: no host in %q", urls[0])
	}
	body, err := json.Marshal(submission{
		Host:        host,
		Key:         c.cfg.Key,
		KeyLocation: c.cfg.KeyLocation,
		URLList:     urls,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// 200 and 202 both mean accepted
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
}

// StatusError is a rejected submission. 4xx replies other than 429 will
// not succeed on retry.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("indexnow rejected submission (%d): %s", e.Status, e.Body)
}

func (e *StatusError) Permanent() bool {
	return e.Status >= 400 && e.Status < 500 && e.Status != http.StatusTooManyRequests
}
