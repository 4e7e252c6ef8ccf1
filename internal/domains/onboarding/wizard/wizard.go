package wizard

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"onboarding-backend/internal/domains/onboarding"
	"onboarding-backend/pkg/logger"
)

// MinDebounce is the shortest delay between an edit and its availability lookup
const MinDebounce = 400 * time.Millisecond

// Scheduler runs fn after d; stop reports whether fn was prevented from running
type Scheduler func(d time.Duration, fn func()) (stop func() bool)

// AfterFunc schedules on the runtime timer
func AfterFunc(d time.Duration, fn func()) func() bool {
	return time.AfterFunc(d, fn).Stop
}

// Deps are the collaborators a wizard talks to. Only Drafts is mandatory;
// a nil side-call dependency disables that call.
type Deps struct {
	Drafts       onboarding.DraftStore
	Availability onboarding.AvailabilityChecker
	Registrar    onboarding.Registrar
	Analytics    onboarding.Analytics
	Indexer      onboarding.IndexNotifier
	Pictures     onboarding.PictureStore
	Credentials  onboarding.Credentials

	LoginURL string

	Debounce          time.Duration
	CheckTimeout      time.Duration
	DraftTimeout      time.Duration
	SideEffectTimeout time.Duration
	Schedule          Scheduler
}

func (d *Deps) applyDefaults() {
	if d.Debounce < MinDebounce {
		d.Debounce = MinDebounce
	}
	if d.CheckTimeout <= 0 {
		d.CheckTimeout = 10 * time.Second
	}
	if d.DraftTimeout <= 0 {
		d.DraftTimeout = 5 * time.Second
	}
	if d.SideEffectTimeout <= 0 {
		d.SideEffectTimeout = 10 * time.Second
	}
	if d.Schedule == nil {
		d.Schedule = AfterFunc
	}
	if d.LoginURL == "" {
		d.LoginURL = "/login"
	}
}

// Outcome of a successful GoNext
type Outcome int

const (
	Advanced Outcome = iota
	ReadyToSubmit
)

// Wizard owns one WizardState. All methods are safe for concurrent use;
// network calls run without holding the lock.
type Wizard struct {
	id   string
	flow *onboarding.Flow
	deps Deps

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	step          int
	fields        onboarding.Fields
	errs          map[onboarding.FieldKey]string
	status        onboarding.SubmissionStatus
	notice        string
	transitioning bool
	closed        bool
	discarded     bool

	nextToken uint64
	checks    map[onboarding.FieldKey]*check
	results   map[onboarding.FieldKey]checkResult

	// draft write ordering, see persist
	persistMu sync.Mutex
	versions  map[string]uint64

	sideEffects sync.WaitGroup
}

// New creates the wizard of session id, hydrated from whatever drafts exist
// under that namespace. A store failure (not a miss) aborts creation.
func New(ctx context.Context, id string, flow *onboarding.Flow, deps Deps) (*Wizard, error) {
	deps.applyDefaults()
	wctx, cancel := context.WithCancel(context.Background())

	w := &Wizard{
		id:       id,
		flow:     flow,
		deps:     deps,
		ctx:      wctx,
		cancel:   cancel,
		fields:   make(onboarding.Fields),
		errs:     make(map[onboarding.FieldKey]string),
		status:   onboarding.StatusIdle,
		checks:   make(map[onboarding.FieldKey]*check),
		results:  make(map[onboarding.FieldKey]checkResult),
		versions: make(map[string]uint64),
	}

	if err := w.hydrate(ctx); err != nil {
		cancel()
		return nil, err
	}

	w.mu.Lock()
	data, version := w.stageLocked(onboarding.DraftKeyFlow, encodeFlow(flow.ID))
	w.mu.Unlock()
	w.persist(onboarding.DraftKeyFlow, data, version)

	return w, nil
}

func (w *Wizard) ID() string { return w.id }

func (w *Wizard) Flow() *onboarding.Flow { return w.flow }

// State returns an immutable snapshot
func (w *Wizard) State() onboarding.State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stateLocked()
}

func (w *Wizard) stateLocked() onboarding.State {
	errs := make(map[onboarding.FieldKey]string, len(w.errs))
	for k, v := range w.errs {
		errs[k] = v
	}
	pending := w.pendingLocked()
	sort.Slice(pending, func(i, j int) bool { return pending[i] < pending[j] })

	return onboarding.State{
		SessionID:        w.id,
		Flow:             w.flow.ID,
		Role:             w.flow.Role,
		CurrentStep:      w.step,
		StepCount:        w.flow.StepCount(),
		StepName:         w.flow.Steps[w.step].Name,
		Fields:           w.fields.Clone(),
		FieldErrors:      errs,
		SubmissionStatus: w.status,
		Notice:           w.notice,
		PendingChecks:    pending,
	}
}

// Closed reports whether Close was called
func (w *Wizard) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// Close cancels pending lookups and stops applying async results.
// Drafts are left in place so the session can be restored later.
func (w *Wizard) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	for key := range w.checks {
		w.cancelCheckLocked(key)
	}
	w.mu.Unlock()
	w.cancel()
}

// Discard closes the wizard and deletes its drafts and staged picture
func (w *Wizard) Discard(ctx context.Context) error {
	w.mu.Lock()
	if w.status == onboarding.StatusSubmitting {
		w.mu.Unlock()
		return onboarding.ErrSubmissionInProgress
	}
	w.discarded = true
	pic, hasPic := w.fields.Picture(onboarding.FieldProfilePicture)
	w.mu.Unlock()

	w.Close()

	if hasPic && w.deps.Pictures != nil {
		w.sideEffect("remove staged picture", func(ctx context.Context) error {
			return w.deps.Pictures.Remove(ctx, pic.Key)
		})
	}

	w.persistMu.Lock()
	defer w.persistMu.Unlock()
	return w.deps.Drafts.Delete(ctx, w.id, w.flow.DraftKeys()...)
}

// ========================================
// FIELD EDITS
// ========================================

// editGuardLocked rejects edits once the wizard can no longer change
func (w *Wizard) editGuardLocked() error {
	switch {
	case w.closed:
		return onboarding.ErrWizardClosed
	case w.status == onboarding.StatusSubmitting:
		return onboarding.ErrSubmissionInProgress
	case w.status == onboarding.StatusSucceeded:
		return onboarding.ErrAlreadySubmitted
	}
	return nil
}

// SetField stores one value, re-validates it locally, schedules its
// availability lookup and writes only that key to the draft store
func (w *Wizard) SetField(ctx context.Context, key onboarding.FieldKey, value onboarding.Value) error {
	return w.SetFields(ctx, map[onboarding.FieldKey]onboarding.Value{key: value})
}

// SetFields applies a patch atomically: every value is checked for kind and
// flow ownership first, and nothing is stored when one of them fails.
func (w *Wizard) SetFields(ctx context.Context, values map[onboarding.FieldKey]onboarding.Value) error {
	keys := make([]onboarding.FieldKey, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	normalized := make(map[onboarding.FieldKey]onboarding.Value, len(keys))
	for _, key := range keys {
		value := values[key]
		if value == nil || value.Kind() != onboarding.SpecOf(key).Kind {
			return fmt.Errorf("%w: %s", onboarding.ErrInvalidValue, key)
		}
		if !w.flow.Owns(key) {
			return fmt.Errorf("%w: %s", onboarding.ErrFieldNotInFlow, key)
		}
		normalized[key] = normalizeValue(value)
	}

	type staged struct {
		key     string
		data    []byte
		version uint64
	}

	w.mu.Lock()
	if err := w.editGuardLocked(); err != nil {
		w.mu.Unlock()
		return err
	}

	writes := make([]staged, 0, len(keys))
	for _, key := range keys {
		w.fields[key] = normalized[key]
	}
	w.notice = ""
	for _, key := range keys {
		w.revalidateLocked(key)
		if onboarding.SpecOf(key).Persist {
			data, version := w.stageLocked(key.DraftKey(), encodeValue(normalized[key]))
			writes = append(writes, staged{key: key.DraftKey(), data: data, version: version})
		}
	}
	if _, ok := normalized[onboarding.FieldPassword]; ok && w.fields.Text(onboarding.FieldConfirmPassword) != "" {
		w.revalidateLocked(onboarding.FieldConfirmPassword)
	}
	w.mu.Unlock()

	for _, s := range writes {
		w.persist(s.key, s.data, s.version)
	}
	return nil
}

// revalidateLocked refreshes the error of key after an edit. Remote fields
// get a fresh debounced lookup only when their local rules pass.
func (w *Wizard) revalidateLocked(key onboarding.FieldKey) {
	msg := w.localErrorLocked(key)
	if msg != "" {
		w.errs[key] = msg
	} else {
		delete(w.errs, key)
	}

	if !onboarding.SpecOf(key).Remote {
		return
	}
	delete(w.results, key)
	if msg != "" || !w.needsRemote(key) {
		w.cancelCheckLocked(key)
		return
	}
	w.dispatchCheckLocked(key, w.fields.Text(key), w.deps.Debounce)
}

// AttachPicture stages an uploaded image and records it as the profile picture
func (w *Wizard) AttachPicture(ctx context.Context, upload onboarding.PictureUpload) (onboarding.Picture, error) {
	if !w.flow.Owns(onboarding.FieldProfilePicture) || w.deps.Pictures == nil {
		return onboarding.Picture{}, onboarding.ErrPictureUnsupported
	}

	w.mu.Lock()
	err := w.editGuardLocked()
	previous, hadPrevious := w.fields.Picture(onboarding.FieldProfilePicture)
	w.mu.Unlock()
	if err != nil {
		return onboarding.Picture{}, err
	}

	pic, err := w.deps.Pictures.Stage(ctx, w.id, upload)
	if err != nil {
		return onboarding.Picture{}, err
	}
	if err := w.SetField(ctx, onboarding.FieldProfilePicture, pic); err != nil {
		return onboarding.Picture{}, err
	}

	if hadPrevious && previous.Key != pic.Key {
		w.sideEffect("remove replaced picture", func(ctx context.Context) error {
			return w.deps.Pictures.Remove(ctx, previous.Key)
		})
	}
	return pic, nil
}

// ========================================
// SIDE EFFECTS
// ========================================

// sideEffect runs fn detached from the caller with its own timeout.
// Failures are logged and never reach the user.
func (w *Wizard) sideEffect(name string, fn func(ctx context.Context) error) {
	w.sideEffects.Add(1)
	go func() {
		defer w.sideEffects.Done()
		ctx, cancel := context.WithTimeout(context.Background(), w.deps.SideEffectTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			logger.ErrorWithFields("[Wizard] side call failed", err, map[string]interface{}{
				"session_id": w.id,
				"call":       name,
			})
		}
	}()
}

func (w *Wizard) emit(event onboarding.Event) {
	if w.deps.Analytics == nil {
		return
	}
	w.sideEffect("analytics "+event.Name, func(ctx context.Context) error {
		return w.deps.Analytics.Emit(ctx, event)
	})
}

// waitSideEffects blocks until every fire-and-forget call returned
func (w *Wizard) waitSideEffects() {
	w.sideEffects.Wait()
}
