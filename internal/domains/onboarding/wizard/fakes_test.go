package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"onboarding-backend/internal/domains/onboarding"
	"onboarding-backend/internal/domains/onboarding/repository"
)

// ========================================
// SCHEDULER
// ========================================

type manualTask struct {
	fn      func()
	fired   bool
	stopped bool
}

// manualScheduler never fires on its own; tests decide when debounce ends
type manualScheduler struct {
	mu    sync.Mutex
	tasks []*manualTask
}

func (s *manualScheduler) schedule(d time.Duration, fn func()) func() bool {
	t := &manualTask{fn: fn}
	s.mu.Lock()
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()

	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if t.fired || t.stopped {
			return false
		}
		t.stopped = true
		return true
	}
}

// fireLast runs the most recent task if it is still armed
func (s *manualScheduler) fireLast() {
	s.mu.Lock()
	if len(s.tasks) == 0 {
		s.mu.Unlock()
		return
	}
	t := s.tasks[len(s.tasks)-1]
	if t.fired || t.stopped {
		s.mu.Unlock()
		return
	}
	t.fired = true
	s.mu.Unlock()
	go t.fn()
}

// ========================================
// AVAILABILITY
// ========================================

type fakeAvailability struct {
	mu      sync.Mutex
	taken   map[string]bool
	failing map[string]error
	gates   map[string]chan struct{}
	calls   []string
	started chan string
}

func newFakeAvailability() *fakeAvailability {
	return &fakeAvailability{
		taken:   make(map[string]bool),
		failing: make(map[string]error),
		gates:   make(map[string]chan struct{}),
		started: make(chan string, 16),
	}
}

// hold makes lookups of value block until release is called
func (f *fakeAvailability) hold(value string) {
	f.mu.Lock()
	f.gates[value] = make(chan struct{})
	f.mu.Unlock()
}

func (f *fakeAvailability) release(value string) {
	f.mu.Lock()
	close(f.gates[value])
	f.mu.Unlock()
}

func (f *fakeAvailability) setFailing(value string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failing, value)
		return
	}
	f.failing[value] = err
}

func (f *fakeAvailability) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeAvailability) CheckAvailability(ctx context.Context, field onboarding.FieldKey, value string) (bool, error) {
	f.mu.Lock()
	f.calls = append(f.calls, value)
	gate := f.gates[value]
	f.mu.Unlock()

	select {
	case f.started <- value:
	default:
	}
	if gate != nil {
		// a slow server answers even if the caller gave up
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing[value]; err != nil {
		return false, err
	}
	return !f.taken[value], nil
}

// ========================================
// REGISTRATION
// ========================================

type fakeRegistrar struct {
	mu      sync.Mutex
	result  *onboarding.RegistrationResult
	err     error
	gate    chan struct{}
	entered chan struct{}
	reqs    []onboarding.RegistrationRequest
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{
		result: &onboarding.RegistrationResult{
			RedirectURL: "/dashboard",
			UserRole:    "creator",
			UserID:      "u-1",
			Message:     "Welcome",
		},
		entered: make(chan struct{}, 4),
	}
}

func (f *fakeRegistrar) Register(ctx context.Context, req onboarding.RegistrationRequest) (*onboarding.RegistrationResult, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	gate := f.gate
	result, err := f.result, f.err
	f.mu.Unlock()

	select {
	case f.entered <- struct{}{}:
	default:
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (f *fakeRegistrar) lastRequest(t *testing.T) onboarding.RegistrationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.reqs)
	return f.reqs[len(f.reqs)-1]
}

// ========================================
// SIDE CALLS
// ========================================

type fakeAnalytics struct {
	mu     sync.Mutex
	events []onboarding.Event
	gate   chan struct{}
	err    error
}

func (f *fakeAnalytics) Emit(ctx context.Context, e onboarding.Event) error {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return f.err
}

func (f *fakeAnalytics) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.events))
	for _, e := range f.events {
		names = append(names, e.Name)
	}
	return names
}

type fakeIndexer struct {
	mu        sync.Mutex
	usernames []string
	err       error
}

func (f *fakeIndexer) NotifyProfile(ctx context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.usernames = append(f.usernames, username)
	return f.err
}

type fakePictures struct {
	mu      sync.Mutex
	staged  map[string][]byte
	removed []string
	n       int
}

func newFakePictures() *fakePictures {
	return &fakePictures{staged: make(map[string][]byte)}
}

func (f *fakePictures) Stage(ctx context.Context, ns string, up onboarding.PictureUpload) (onboarding.Picture, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	key := fmt.Sprintf("%s/%d.jpg", ns, f.n)
	f.staged[key] = up.Data
	return onboarding.Picture{Key: key, URL: "http://pics/" + key, FileName: up.FileName, ContentType: "image/jpeg"}, nil
}

func (f *fakePictures) Fetch(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.staged[key]
	if !ok {
		return nil, errors.New("no such picture")
	}
	return data, nil
}

func (f *fakePictures) Remove(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.staged, key)
	f.removed = append(f.removed, key)
	return nil
}

type fakeCredentials struct {
	mu      sync.Mutex
	token   string
	cleared bool
}

func (f *fakeCredentials) AccessToken(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.token == "" {
		return "", onboarding.ErrAuthRequired
	}
	return f.token, nil
}

func (f *fakeCredentials) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	f.cleared = true
	return nil
}

// failingDrafts wraps a store and fails selected operations
type failingDrafts struct {
	onboarding.DraftStore
	getErr error
	putErr error
}

func (f *failingDrafts) Get(ctx context.Context, ns, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.DraftStore.Get(ctx, ns, key)
}

func (f *failingDrafts) Put(ctx context.Context, ns, key string, value []byte) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.DraftStore.Put(ctx, ns, key, value)
}

// ========================================
// HARNESS
// ========================================

type harness struct {
	drafts       onboarding.DraftStore
	sched        *manualScheduler
	availability *fakeAvailability
	registrar    *fakeRegistrar
	analytics    *fakeAnalytics
	indexer      *fakeIndexer
	pictures     *fakePictures
	credentials  *fakeCredentials
}

func newHarness() *harness {
	return &harness{
		drafts:       repository.NewMemoryDraftStore(),
		sched:        &manualScheduler{},
		availability: newFakeAvailability(),
		registrar:    newFakeRegistrar(),
		analytics:    &fakeAnalytics{},
		indexer:      &fakeIndexer{},
		pictures:     newFakePictures(),
		credentials:  &fakeCredentials{token: "upstream-token"},
	}
}

func (h *harness) deps() Deps {
	return Deps{
		Drafts:       h.drafts,
		Availability: h.availability,
		Registrar:    h.registrar,
		Analytics:    h.analytics,
		Indexer:      h.indexer,
		Pictures:     h.pictures,
		Credentials:  h.credentials,
		LoginURL:     "/login",
		Schedule:     h.sched.schedule,
	}
}

func (h *harness) open(t *testing.T, id string, flow onboarding.FlowID) *Wizard {
	t.Helper()
	f, err := onboarding.LookupFlow(flow)
	require.NoError(t, err)
	w, err := New(context.Background(), id, f, h.deps())
	require.NoError(t, err)
	t.Cleanup(w.Close)
	return w
}

func set(t *testing.T, w *Wizard, key onboarding.FieldKey, v onboarding.Value) {
	t.Helper()
	require.NoError(t, w.SetField(context.Background(), key, v))
}

func next(t *testing.T, w *Wizard) Outcome {
	t.Helper()
	out, err := w.GoNext(context.Background())
	require.NoError(t, err)
	return out
}

func followers(n int64) *int64 { return &n }

// fillCreatorProfile completes every step of creator_profile and walks to the last one
func fillCreatorProfile(t *testing.T, w *Wizard) {
	t.Helper()
	set(t, w, onboarding.FieldUsername, onboarding.Text("janedoe"))
	set(t, w, onboarding.FieldBio, onboarding.Text("Travel and food"))
	require.Equal(t, Advanced, next(t, w))

	set(t, w, onboarding.FieldAge, onboarding.Number(27))
	set(t, w, onboarding.FieldRegion, onboarding.Text("California"))
	set(t, w, onboarding.FieldInterests, onboarding.List{"travel", "food"})
	require.Equal(t, Advanced, next(t, w))

	set(t, w, onboarding.FieldSocialLinks, onboarding.SocialLinks{
		{Platform: onboarding.PlatformInstagram, URL: "instagram.com/janedoe", FollowersCount: followers(1200)},
	})
	set(t, w, onboarding.FieldPortfolioLinks, onboarding.List{"janedoe.com/work"})
	set(t, w, onboarding.FieldRatePerPost, onboarding.Text("150.00"))
	require.Equal(t, 2, w.State().CurrentStep)
}

// checkOf returns the lookup currently registered for key
func checkOf(t *testing.T, w *Wizard, key onboarding.FieldKey) *check {
	t.Helper()
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.checks[key]
	require.True(t, ok, "no lookup registered for %s", key)
	return c
}

func waitStarted(t *testing.T, f *fakeAvailability, value string) {
	t.Helper()
	select {
	case got := <-f.started:
		require.Equal(t, value, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("lookup of %q never started", value)
	}
}

func waitDone(t *testing.T, c *check) {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatal("lookup never finished")
	}
}
