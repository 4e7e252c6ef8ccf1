package job

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboarding-backend/internal/shared"
)

type fakeSender struct {
	sent []shared.AnalyticsEventPayload
	err  error
}

func (f *fakeSender) Send(ctx context.Context, p shared.AnalyticsEventPayload) error {
	f.sent = append(f.sent, p)
	return f.err
}

type fakeSubmitter struct {
	urls []string
	err  error
}

func (f *fakeSubmitter) Submit(ctx context.Context, urls ...string) error {
	f.urls = append(f.urls, urls...)
	return f.err
}

type rejected struct{}

func (rejected) Error() string   { return "rejected" }
func (rejected) Permanent() bool { return true }

func task(t *testing.T, typ string, payload interface{}) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(typ, data)
}

func TestAnalyticsEventHandler(t *testing.T) {
	sender := &fakeSender{}
	h := NewAnalyticsEventHandler(sender)

	err := h.ProcessTask(context.Background(), task(t, shared.TypeEmitAnalyticsEvent, shared.AnalyticsEventPayload{
		Name: "sign_up", ClientID: "s1", Params: map[string]string{"method": "email", "role": "brand"},
	}))
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "brand", sender.sent[0].Params["role"])
}

func TestAnalyticsEventHandler_SkipsRetryOnBadPayload(t *testing.T) {
	h := NewAnalyticsEventHandler(&fakeSender{})

	err := h.ProcessTask(context.Background(), asynq.NewTask(shared.TypeEmitAnalyticsEvent, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = h.ProcessTask(context.Background(), task(t, shared.TypeEmitAnalyticsEvent, shared.AnalyticsEventPayload{Name: "page_view", ClientID: "s1"}))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestAnalyticsEventHandler_RetriesSendFailures(t *testing.T) {
	h := NewAnalyticsEventHandler(&fakeSender{err: errors.New("timeout")})

	err := h.ProcessTask(context.Background(), task(t, shared.TypeEmitAnalyticsEvent, shared.AnalyticsEventPayload{
		Name: "sign_up", ClientID: "s1", Params: map[string]string{"method": "email", "role": "brand"},
	}))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestIndexNowHandler(t *testing.T) {
	sub := &fakeSubmitter{}
	h := NewIndexNowHandler(sub)
	payload := shared.IndexNowPayload{Username: "janedoe", ProfileURL: "https://example.com/creators/janedoe"}

	require.NoError(t, h.ProcessTask(context.Background(), task(t, shared.TypeNotifyIndexNow, payload)))
	assert.Equal(t, []string{payload.ProfileURL}, sub.urls)

	sub.err = rejected{}
	assert.ErrorIs(t, h.ProcessTask(context.Background(), task(t, shared.TypeNotifyIndexNow, payload)), asynq.SkipRetry)

	sub.err = errors.New("connection reset")
	err := h.ProcessTask(context.Background(), task(t, shared.TypeNotifyIndexNow, payload))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)

	err = h.ProcessTask(context.Background(), task(t, shared.TypeNotifyIndexNow, shared.IndexNowPayload{Username: "x"}))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
