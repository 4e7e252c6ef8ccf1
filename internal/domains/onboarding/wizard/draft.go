package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"onboarding-backend/internal/domains/onboarding"
	"onboarding-backend/pkg/logger"
)

// ========================================
// ENCODING
// ========================================

func encodeValue(v onboarding.Value) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// Every Value kind is plain data; this cannot fail
		panic(fmt.Sprintf("encode draft value: %v", err))
	}
	return data
}

func encodeStep(step int) []byte {
	return []byte(strconv.Itoa(step))
}

func encodeFlow(id onboarding.FlowID) []byte {
	return encodeValue(onboarding.Text(id))
}

// decodeStep accepts a JSON number or numeric string; anything else is -1
func decodeStep(raw []byte) int {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}

// DecodeFlow reads the flow id stored under DraftKeyFlow
func DecodeFlow(raw []byte) (onboarding.FlowID, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", err
	}
	return onboarding.FlowID(s), nil
}

// normalizeValue copies caller owned slices and fills defaults
func normalizeValue(v onboarding.Value) onboarding.Value {
	switch tv := v.(type) {
	case onboarding.List:
		out := make(onboarding.List, len(tv))
		copy(out, tv)
		return out
	case onboarding.SocialLinks:
		out := make(onboarding.SocialLinks, len(tv))
		for i, r := range tv {
			out[i] = r
			out[i].Platform = onboarding.ParsePlatform(string(r.Platform))
			if r.FollowersCount != nil {
				n := *r.FollowersCount
				out[i].FollowersCount = &n
			}
		}
		return out
	}
	return v
}

// ========================================
// HYDRATION
// ========================================

// hydrate reads every key independently. A corrupt key is logged and
// dropped (lists fall back to empty) without touching the others.
func (w *Wizard) hydrate(ctx context.Context) error {
	for _, key := range w.flow.FieldKeys() {
		spec := onboarding.SpecOf(key)
		if !spec.Persist {
			continue
		}

		raw, err := w.deps.Drafts.Get(ctx, w.id, key.DraftKey())
		if errors.Is(err, onboarding.ErrDraftNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("load draft %s: %w", key.DraftKey(), err)
		}

		value, err := onboarding.DecodeValue(spec.Kind, raw)
		if err != nil {
			logger.Warn("[Wizard] ignoring corrupt draft key", map[string]interface{}{
				"session_id": w.id,
				"key":        key.DraftKey(),
				"error":      err.Error(),
			})
			switch spec.Kind {
			case onboarding.KindList:
				w.fields[key] = onboarding.List{}
			case onboarding.KindSocialLinks:
				w.fields[key] = onboarding.SocialLinks{}
			}
			continue
		}
		w.fields[key] = normalizeValue(value)
	}

	raw, err := w.deps.Drafts.Get(ctx, w.id, onboarding.DraftKeyStep)
	switch {
	case errors.Is(err, onboarding.ErrDraftNotFound):
	case err != nil:
		return fmt.Errorf("load draft %s: %w", onboarding.DraftKeyStep, err)
	default:
		step := decodeStep(raw)
		if step < 0 || step >= w.flow.StepCount() {
			logger.Warn("[Wizard] stored step out of range, restarting at step 0", map[string]interface{}{
				"session_id": w.id,
				"stored":     string(raw),
			})
			step = 0
		}
		w.step = step
	}
	return nil
}

// ========================================
// WRITES
// ========================================

// Snapshot returns the exact bytes the wizard keeps in the draft store
func (w *Wizard) Snapshot() map[string][]byte {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := map[string][]byte{
		onboarding.DraftKeyFlow: encodeFlow(w.flow.ID),
		onboarding.DraftKeyStep: encodeStep(w.step),
	}
	for key, value := range w.fields {
		if onboarding.SpecOf(key).Persist {
			snap[key.DraftKey()] = encodeValue(value)
		}
	}
	return snap
}

// stageLocked bumps the write version of key; persist skips writes that
// lost the race to a newer version
func (w *Wizard) stageLocked(key string, data []byte) ([]byte, uint64) {
	w.versions[key]++
	return data, w.versions[key]
}

// persist writes one draft key. The write outlives a cancelled request
// and errors are logged; editing continues with the in-memory state.
func (w *Wizard) persist(key string, data []byte, version uint64) {
	w.persistMu.Lock()
	defer w.persistMu.Unlock()

	w.mu.Lock()
	stale := version < w.versions[key] || w.status == onboarding.StatusSucceeded || w.discarded
	w.mu.Unlock()
	if stale {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(w.ctx), w.deps.DraftTimeout)
	defer cancel()
	if err := w.deps.Drafts.Put(ctx, w.id, key, data); err != nil {
		logger.ErrorWithFields("[Wizard] draft write failed", err, map[string]interface{}{
			"session_id": w.id,
			"key":        key,
		})
	}
}

func (w *Wizard) persistStepLocked() (data []byte, version uint64) {
	return w.stageLocked(onboarding.DraftKeyStep, encodeStep(w.step))
}

// clearDrafts deletes every key this session may have written
func (w *Wizard) clearDrafts() {
	w.persistMu.Lock()
	defer w.persistMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), w.deps.DraftTimeout)
	defer cancel()
	if err := w.deps.Drafts.Delete(ctx, w.id, w.flow.DraftKeys()...); err != nil {
		logger.ErrorWithFields("[Wizard] draft cleanup failed", err, map[string]interface{}{
			"session_id": w.id,
		})
	}
}
