package wizard

import (
	"context"

	"onboarding-backend/internal/domains/onboarding"
)

// navGuardLocked rejects navigation while another long operation owns the wizard
func (w *Wizard) navGuardLocked() error {
	if err := w.editGuardLocked(); err != nil {
		return err
	}
	if w.transitioning {
		return onboarding.ErrTransitionInProgress
	}
	return nil
}

// GoNext runs the gate of the current step and advances when it passes.
// On the last step it advances nothing and reports ReadyToSubmit.
func (w *Wizard) GoNext(ctx context.Context) (Outcome, error) {
	w.mu.Lock()
	if err := w.navGuardLocked(); err != nil {
		w.mu.Unlock()
		return Advanced, err
	}
	w.transitioning = true
	step := w.step
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.transitioning = false
		w.mu.Unlock()
	}()

	if err := w.settleChecks(ctx, step); err != nil {
		return Advanced, err
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return Advanced, onboarding.ErrWizardClosed
	}

	errs, pending := w.gateLocked(step, true)
	if len(errs) > 0 {
		for key, msg := range errs {
			w.errs[key] = msg
		}
		w.notice = onboarding.MsgCorrectErrors
		w.mu.Unlock()
		return Advanced, &onboarding.ValidationError{Fields: errs, Message: onboarding.MsgCorrectErrors}
	}
	if len(pending) > 0 {
		// The value changed while its lookup was awaited
		w.notice = onboarding.MsgCheckingAvailability
		w.mu.Unlock()
		return Advanced, onboarding.ErrCheckPending
	}

	for _, key := range w.flow.Steps[step].FieldKeys() {
		delete(w.errs, key)
	}
	w.notice = ""
	event := onboarding.SignupStepEvent(w.id, w.flow.ID, step, w.flow.Steps[step].Name)

	if step == w.flow.StepCount()-1 {
		w.mu.Unlock()
		w.emit(event)
		return ReadyToSubmit, nil
	}

	w.step = step + 1
	data, version := w.persistStepLocked()
	w.mu.Unlock()

	w.persist(onboarding.DraftKeyStep, data, version)
	w.emit(event)
	return Advanced, nil
}

// GoBack moves one step back without validating or touching fields
func (w *Wizard) GoBack(ctx context.Context) error {
	w.mu.Lock()
	if err := w.navGuardLocked(); err != nil {
		w.mu.Unlock()
		return err
	}
	if w.step == 0 {
		w.mu.Unlock()
		return nil
	}

	w.step--
	w.notice = ""
	data, version := w.persistStepLocked()
	w.mu.Unlock()

	w.persist(onboarding.DraftKeyStep, data, version)
	return nil
}

// moveToLocked jumps to step; used only by failure routing
func (w *Wizard) moveToLocked(step int) (data []byte, version uint64, moved bool) {
	if step < 0 || step >= w.flow.StepCount() || step == w.step {
		return nil, 0, false
	}
	w.step = step
	data, version = w.persistStepLocked()
	return data, version, true
}
