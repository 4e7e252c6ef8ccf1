package indexnow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboarding-backend/internal/config"
	"onboarding-backend/internal/shared"
)

type recordingQueue struct {
	tasks []*asynq.Task
}

func (q *recordingQueue) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: "t1"}, nil
}

func TestProfileURL(t *testing.T) {
	assert.Equal(t, "https://example.com/creators/jane.doe", ProfileURL("https://example.com/", "jane.doe"))
}

func TestQueueNotifier(t *testing.T) {
	q := &recordingQueue{}
	n := NewQueueNotifier(q, "https://example.com")

	require.NoError(t, n.NotifyProfile(context.Background(), "janedoe"))
	require.Len(t, q.tasks, 1)
	assert.Equal(t, shared.TypeNotifyIndexNow, q.tasks[0].Type())

	var payload shared.IndexNowPayload
	require.NoError(t, json.Unmarshal(q.tasks[0].Payload(), &payload))
	assert.Equal(t, "https://example.com/creators/janedoe", payload.ProfileURL)

	assert.Error(t, n.NotifyProfile(context.Background(), "  "))
}

func TestClient_Submit(t *testing.T) {
	var got submission
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient(config.IndexNowConfig{Endpoint: srv.URL, Key: "k123", KeyLocation: "https://example.com/k123.txt"})
	require.NoError(t, c.Submit(context.Background(), "https://example.com/creators/janedoe"))

	assert.Equal(t, "example.com", got.Host)
	assert.Equal(t, "k123", got.Key)
	assert.Equal(t, []string{"https://example.com/creators/janedoe"}, got.URLList)
}

func TestClient_Rejected(t *testing.T) {
	status := http.StatusUnprocessableEntity
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()
	c := NewClient(config.IndexNowConfig{Endpoint: srv.URL, Key: "k123"})

	err := c.Submit(context.Background(), "https://example.com/creators/janedoe")
	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.True(t, serr.Permanent())

	status = http.StatusTooManyRequests
	err = c.Submit(context.Background(), "https://example.com/creators/janedoe")
	require.ErrorAs(t, err, &serr)
	assert.False(t, serr.Permanent())
}

func TestClient_DisabledWithoutKey(t *testing.T) {
	c := NewClient(config.IndexNowConfig{Endpoint: "http://127.0.0.1:1"})
	assert.NoError(t, c.Submit(context.Background(), "https://example.com/x"))
}
