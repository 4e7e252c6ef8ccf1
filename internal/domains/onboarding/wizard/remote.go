package wizard

import (
	"context"
	"time"

	"onboarding-backend/internal/domains/onboarding"
	"onboarding-backend/pkg/logger"
)

// check is one debounced availability lookup. token identifies it among
// later lookups of the same field; value is the field text at dispatch.
type check struct {
	token   uint64
	value   string
	started bool
	stop    func() bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// checkResult is the last applied availability answer of a field
type checkResult struct {
	value     string
	available bool
	failed    bool
}

func (r checkResult) message(key onboarding.FieldKey) string {
	switch {
	case r.failed:
		return onboarding.MsgCheckFailed
	case r.available:
		return ""
	case key == onboarding.FieldEmail:
		return onboarding.MsgEmailTaken
	default:
		return onboarding.MsgUsernameTaken
	}
}

// dispatchCheckLocked replaces any lookup of key with a new one that
// runs after delay. delay <= 0 starts it right away.
func (w *Wizard) dispatchCheckLocked(key onboarding.FieldKey, value string, delay time.Duration) *check {
	w.cancelCheckLocked(key)

	w.nextToken++
	ctx, cancel := context.WithTimeout(w.ctx, w.deps.CheckTimeout)
	c := &check{
		token:  w.nextToken,
		value:  value,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	w.checks[key] = c

	run := func() { w.runCheck(ctx, key, c) }
	if delay <= 0 {
		go run()
	} else {
		c.stop = w.deps.Schedule(delay, run)
	}
	return c
}

// cancelCheckLocked drops the lookup of key. A lookup that never started
// is completed here so nobody waits on it forever.
func (w *Wizard) cancelCheckLocked(key onboarding.FieldKey) {
	c, ok := w.checks[key]
	if !ok {
		return
	}
	delete(w.checks, key)
	if c.stop != nil && c.stop() {
		close(c.done)
	}
	c.cancel()
}

func (w *Wizard) runCheck(ctx context.Context, key onboarding.FieldKey, c *check) {
	defer close(c.done)
	defer c.cancel()

	w.mu.Lock()
	if w.closed || w.checks[key] != c {
		w.mu.Unlock()
		return
	}
	c.started = true
	w.mu.Unlock()

	available, err := w.deps.Availability.CheckAvailability(ctx, key, c.value)

	w.mu.Lock()
	defer w.mu.Unlock()

	// Discard answers for a closed wizard, a superseded lookup or a value
	// the user has changed since dispatch
	if w.closed || w.checks[key] != c || w.fields.Text(key) != c.value {
		return
	}
	delete(w.checks, key)

	res := checkResult{value: c.value, available: available}
	if err != nil {
		res = checkResult{value: c.value, failed: true}
		logger.ErrorWithFields("[Wizard] availability check failed", err, map[string]interface{}{
			"session_id": w.id,
			"field":      string(key),
		})
	}
	w.results[key] = res

	if msg := res.message(key); msg != "" {
		w.errs[key] = msg
	} else if w.localErrorLocked(key) == "" {
		delete(w.errs, key)
	}
}

// settleChecks makes sure every remote field of step has an answer for its
// current value. Lookups still waiting on the debounce timer are started
// now and awaited; a lookup already on the wire yields ErrCheckPending.
func (w *Wizard) settleChecks(ctx context.Context, step int) error {
	w.mu.Lock()
	var wait []*check
	for _, key := range w.flow.Steps[step].FieldKeys() {
		if !w.needsRemote(key) || w.localErrorLocked(key) != "" {
			continue
		}
		value := w.fields.Text(key)
		if res, ok := w.results[key]; ok && res.value == value && !res.failed {
			continue
		}
		if c, ok := w.checks[key]; ok && c.started {
			w.notice = onboarding.MsgCheckingAvailability
			w.mu.Unlock()
			return onboarding.ErrCheckPending
		}
		wait = append(wait, w.dispatchCheckLocked(key, value, 0))
	}
	w.mu.Unlock()

	for _, c := range wait {
		select {
		case <-c.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// pendingLocked lists fields with a lookup scheduled or on the wire
func (w *Wizard) pendingLocked() []onboarding.FieldKey {
	keys := make([]onboarding.FieldKey, 0, len(w.checks))
	for k := range w.checks {
		keys = append(keys, k)
	}
	return keys
}
