package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"onboarding-backend/internal/domains/onboarding"
	"onboarding-backend/internal/domains/onboarding/wizard"
	"onboarding-backend/pkg/jwt"
	"onboarding-backend/pkg/logger"
)

// Options tunes the wizards created by the service
type Options struct {
	Debounce     time.Duration
	CheckTimeout time.Duration
	LoginURL     string
}

// Dependencies are shared by every session
type Dependencies struct {
	Drafts       onboarding.DraftStore
	Availability onboarding.AvailabilityChecker
	Registrar    onboarding.Registrar
	Analytics    onboarding.Analytics
	Indexer      onboarding.IndexNotifier
	Pictures     onboarding.PictureStore
	Credentials  *CredentialStore
	Tokens       *jwt.Manager
}

type entry struct {
	wizard   *wizard.Wizard
	lastUsed time.Time
}

// onboardingService implements onboarding.Service. Live wizards are kept in
// memory; an unknown session is restored from its drafts.
type onboardingService struct {
	deps Dependencies
	opts Options
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

// NewOnboardingService creates a new onboarding service instance
func NewOnboardingService(deps Dependencies, opts Options) onboarding.Service {
	return &onboardingService{
		deps:     deps,
		opts:     opts,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// ========================================
// SESSION LIFECYCLE
// ========================================

func (s *onboardingService) Start(ctx context.Context, req onboarding.StartRequest, upstreamToken string) (*onboarding.SessionStarted, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", onboarding.ErrUnknownFlow, err)
	}
	flow, err := onboarding.LookupFlow(req.Flow)
	if err != nil {
		return nil, err
	}
	if flow.RequiresAuth && upstreamToken == "" {
		return nil, onboarding.ErrAuthRequired
	}

	id := uuid.NewString()
	if upstreamToken != "" && s.deps.Credentials != nil {
		if err := s.deps.Credentials.Save(ctx, id, upstreamToken); err != nil {
			return nil, err
		}
	}

	w, err := wizard.New(ctx, id, flow, s.wizardDeps(id))
	if err != nil {
		return nil, fmt.Errorf("create wizard: %w", err)
	}

	token, err := s.deps.Tokens.GenerateSessionToken(id, string(flow.ID))
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	s.mu.Lock()
	s.sessions[id] = &entry{wizard: w, lastUsed: s.now()}
	s.mu.Unlock()

	logger.Info("[Onboarding] session started", map[string]interface{}{
		"session_id": id,
		"flow":       string(flow.ID),
	})

	return &onboarding.SessionStarted{SessionID: id, Token: token, State: w.State()}, nil
}

func (s *onboardingService) GetState(ctx context.Context, sessionID string) (*onboarding.State, error) {
	w, err := s.wizard(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	state := w.State()
	return &state, nil
}

// Discard deletes the session with its drafts and credentials
func (s *onboardingService) Discard(ctx context.Context, sessionID string) error {
	w, err := s.wizard(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := w.Discard(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if s.deps.Credentials != nil {
		if err := s.deps.Credentials.For(sessionID).Clear(ctx); err != nil {
			logger.Error("[Onboarding] failed to clear credentials", err)
		}
	}
	return nil
}

// ========================================
// EDITING
// ========================================

// UpdateFields checks and decodes every value before applying any of them
func (s *onboardingService) UpdateFields(ctx context.Context, sessionID string, req onboarding.UpdateFieldsRequest) (*onboarding.State, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", onboarding.ErrInvalidValue, err)
	}
	w, err := s.wizard(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(req.Fields))
	for name := range req.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	updates := make(map[onboarding.FieldKey]onboarding.Value, len(names))
	for _, name := range names {
		key, err := onboarding.ParseFieldKey(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", err, name)
		}
		if !w.Flow().Owns(key) {
			return nil, fmt.Errorf("%w: %s", onboarding.ErrFieldNotInFlow, name)
		}
		spec := onboarding.SpecOf(key)
		if spec.Kind == onboarding.KindPicture {
			return nil, fmt.Errorf("%w: %s is set by uploading a file", onboarding.ErrInvalidValue, name)
		}
		value, err := onboarding.DecodeValue(spec.Kind, req.Fields[name])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", onboarding.ErrInvalidValue, name, err)
		}
		updates[key] = value
	}

	if err := w.SetFields(ctx, updates); err != nil {
		return nil, err
	}

	state := w.State()
	return &state, nil
}

func (s *onboardingService) UploadPicture(ctx context.Context, sessionID string, upload onboarding.PictureUpload) (*onboarding.State, error) {
	w, err := s.wizard(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := w.AttachPicture(ctx, upload); err != nil {
		return nil, err
	}
	state := w.State()
	return &state, nil
}

// ========================================
// NAVIGATION
// ========================================

func (s *onboardingService) Next(ctx context.Context, sessionID string) (*onboarding.StepResult, error) {
	w, err := s.wizard(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	outcome, err := w.GoNext(ctx)
	if err != nil {
		return nil, err
	}
	if outcome == wizard.ReadyToSubmit {
		return s.submit(ctx, w)
	}
	return &onboarding.StepResult{State: w.State()}, nil
}

func (s *onboardingService) Back(ctx context.Context, sessionID string) (*onboarding.State, error) {
	w, err := s.wizard(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := w.GoBack(ctx); err != nil {
		return nil, err
	}
	state := w.State()
	return &state, nil
}

func (s *onboardingService) Submit(ctx context.Context, sessionID string) (*onboarding.StepResult, error) {
	w, err := s.wizard(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, w)
}

func (s *onboardingService) submit(ctx context.Context, w *wizard.Wizard) (*onboarding.StepResult, error) {
	result, err := w.Submit(ctx)
	if err != nil {
		return nil, err
	}
	return &onboarding.StepResult{State: w.State(), Submitted: true, Result: result}, nil
}

// ========================================
// REGISTRY
// ========================================

// Sweep closes wizards idle for longer than idle. Drafts stay so a later
// request restores the session.
func (s *onboardingService) Sweep(idle time.Duration) int {
	cutoff := s.now().Add(-idle)

	s.mu.Lock()
	var stale []*wizard.Wizard
	for id, e := range s.sessions {
		if e.lastUsed.After(cutoff) {
			continue
		}
		if e.wizard.State().SubmissionStatus == onboarding.StatusSubmitting {
			continue
		}
		stale = append(stale, e.wizard)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, w := range stale {
		w.Close()
	}
	if len(stale) > 0 {
		logger.Debug("[Onboarding] swept idle sessions", map[string]interface{}{"count": len(stale)})
	}
	return len(stale)
}

// wizard returns the live wizard of sessionID, restoring it from drafts
func (s *onboardingService) wizard(ctx context.Context, sessionID string) (*wizard.Wizard, error) {
	if sessionID == "" {
		return nil, onboarding.ErrSessionNotFound
	}

	s.mu.Lock()
	if e, ok := s.sessions[sessionID]; ok && !e.wizard.Closed() {
		e.lastUsed = s.now()
		s.mu.Unlock()
		return e.wizard, nil
	}
	s.mu.Unlock()

	raw, err := s.deps.Drafts.Get(ctx, sessionID, onboarding.DraftKeyFlow)
	if errors.Is(err, onboarding.ErrDraftNotFound) {
		return nil, onboarding.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	flowID, err := wizard.DecodeFlow(raw)
	if err != nil {
		return nil, onboarding.ErrSessionNotFound
	}
	flow, err := onboarding.LookupFlow(flowID)
	if err != nil {
		return nil, onboarding.ErrSessionNotFound
	}

	w, err := wizard.New(ctx, sessionID, flow, s.wizardDeps(sessionID))
	if err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[sessionID]; ok && !e.wizard.Closed() {
		// a concurrent request restored it first
		w.Close()
		e.lastUsed = s.now()
		return e.wizard, nil
	}
	s.sessions[sessionID] = &entry{wizard: w, lastUsed: s.now()}

	logger.Info("[Onboarding] session restored from drafts", map[string]interface{}{
		"session_id": sessionID,
		"flow":       string(flow.ID),
		"step":       w.State().CurrentStep,
	})
	return w, nil
}

func (s *onboardingService) wizardDeps(sessionID string) wizard.Deps {
	deps := wizard.Deps{
		Drafts:       s.deps.Drafts,
		Availability: s.deps.Availability,
		Registrar:    s.deps.Registrar,
		Analytics:    s.deps.Analytics,
		Indexer:      s.deps.Indexer,
		Pictures:     s.deps.Pictures,
		LoginURL:     s.opts.LoginURL,
		Debounce:     s.opts.Debounce,
		CheckTimeout: s.opts.CheckTimeout,
	}
	if s.deps.Credentials != nil {
		deps.Credentials = s.deps.Credentials.For(sessionID)
	}
	return deps
}
