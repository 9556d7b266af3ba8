package settings

import (
	"context"
	"sync"

	common_models "go-staffhub/internal/common/models"
	"go-staffhub/internal/features/audit"

	"go.uber.org/zap"
)

// Engine coordinates load, edit, validate and submit across every section of
// one user's settings record. It is the only writer of the canonical record;
// presentation reads snapshots and dispatches intents.
type Engine struct {
	userID     string
	gateway    Gateway
	lifecycles *LifecycleStore
	audit      audit.AuditService
	log        *zap.Logger

	mu        sync.RWMutex
	record    SettingsRecord
	recordErr string
	loaded    bool
}

func newEngine(userID string, gateway Gateway, auditService audit.AuditService, log *zap.Logger) *Engine {
	return &Engine{
		userID:     userID,
		gateway:    gateway,
		lifecycles: NewLifecycleStore(),
		audit:      auditService,
		log:        log,
		record:     DefaultRecord(),
	}
}

// Lifecycles exposes the per-section state machine store.
func (e *Engine) Lifecycles() *LifecycleStore { return e.lifecycles }

// Loaded reports whether a LoadAll has succeeded at least once.
func (e *Engine) Loaded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loaded
}

// RecordError returns the record-level load error, if any. Sections stay
// usable on defaults while it is set.
func (e *Engine) RecordError() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.recordErr
}

// Record returns a snapshot of the last committed state. No read observes a
// half-merged section.
func (e *Engine) Record() SettingsRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(SettingsRecord, len(e.record))
	for id, data := range e.record {
		out[id] = cloneSection(data)
	}
	return out
}

// LoadAll fetches the full record and fills every section to its declared
// shape. Defaults fill gaps; stored values win. Re-running with the same
// remote payload is idempotent. On failure the record-level error is set and
// sections keep their defaulted data so the user is not fully blocked.
func (e *Engine) LoadAll(ctx context.Context) error {
	remote, err := e.gateway.FetchSettings(ctx, e.userID)
	if err != nil {
		e.log.Warn("settings record load failed",
			zap.String("user_id", e.userID), zap.Error(err))
		e.mu.Lock()
		e.recordErr = err.Error()
		e.mu.Unlock()
		return err
	}

	e.mu.Lock()
	for _, id := range AllSections {
		e.record[id] = MergeSection(DefaultShape(id), remote[id])
	}
	e.recordErr = ""
	e.loaded = true
	e.mu.Unlock()

	for _, id := range AllSections {
		e.lifecycles.Reset(id)
	}
	return nil
}

// PreviewSection merges a draft into the current canonical section without
// committing anything. The actual merge happens only after the gateway
// confirms a submit.
func (e *Engine) PreviewSection(sectionID SectionID, draft SectionData) (SectionData, error) {
	if !IsKnownSection(sectionID) {
		return nil, ErrUnknownSection
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return MergeSection(e.record[sectionID], draft), nil
}

// ResetSection returns a section's lifecycle to idle so the user can retry
// after an error. An in-flight submit cannot be aborted.
func (e *Engine) ResetSection(sectionID SectionID) error {
	if !IsKnownSection(sectionID) {
		return ErrUnknownSection
	}
	e.lifecycles.Reset(sectionID)
	return nil
}

// SubmitSection runs the full submit pipeline for one section: busy check,
// validation, role strip, gateway dispatch, merge-on-success. A non-empty
// ValidationResult means the draft never reached the gateway. The canonical
// record is untouched on any failure.
func (e *Engine) SubmitSection(ctx context.Context, sectionID SectionID, draft SectionData, role string) (ValidationResult, error) {
	if !IsKnownSection(sectionID) {
		return nil, ErrUnknownSection
	}
	if e.lifecycles.Busy(sectionID) {
		return nil, ErrSectionBusy
	}

	if result := Validate(sectionID, draft); !result.Valid() {
		return result, nil
	}

	// Advisory strip of role-gated fields. The gateway re-checks with its own
	// authority, so a bypassed client gains nothing.
	payload := stripRestricted(sectionID, draft, role)

	if err := e.lifecycles.BeginSubmit(sectionID); err != nil {
		return nil, err
	}

	before := e.sectionSnapshot(sectionID)

	confirmed, err := e.dispatch(ctx, sectionID, payload)
	if err != nil {
		e.lifecycles.CompleteFailure(sectionID, err.Error())
		e.log.Warn("section submit failed",
			zap.String("user_id", e.userID),
			zap.String("section", string(sectionID)),
			zap.Error(err))
		return nil, err
	}

	// Optimistic draft first, server-confirmed values on top: the server's
	// normalization and clamping win.
	merged := MergeSection(before, payload)
	if confirmed != nil {
		merged = MergeSection(merged, confirmed)
	}
	delete(merged, "password")

	e.mu.Lock()
	e.record[sectionID] = merged
	e.mu.Unlock()
	e.lifecycles.CompleteSuccess(sectionID)

	if err := e.audit.LogChange(ctx, common_models.AuditActionSettings, "user_settings", e.userID,
		map[string]common_models.Change{
			string(sectionID): {Old: before, New: merged},
		}); err != nil {
		e.log.Warn("audit write failed",
			zap.String("user_id", e.userID),
			zap.String("section", string(sectionID)),
			zap.Error(err))
	}
	e.log.Info("section submitted",
		zap.String("user_id", e.userID),
		zap.String("section", string(sectionID)))
	return nil, nil
}

// dispatch sends a section payload to the gateway. The security section fans
// out into independent password, MFA and privacy calls with their own payload
// shapes, under the one shared lifecycle; submitting one never sends the
// others' fields.
func (e *Engine) dispatch(ctx context.Context, sectionID SectionID, payload SectionData) (SectionData, error) {
	if sectionID != SectionSecurity {
		return e.gateway.UpdateSection(ctx, e.userID, sectionID, payload)
	}

	confirmed := SectionData{}

	if block, ok := asSectionData(payload["password"]); ok && len(block) > 0 {
		current, _ := block["current"].(string)
		next, _ := block["new"].(string)
		_, err := e.gateway.UpdateSection(ctx, e.userID, sectionID, SectionData{
			"passwordChange": map[string]any{
				"currentPassword": current,
				"newPassword":     next,
			},
		})
		if err != nil {
			return nil, err
		}
	}

	if block, ok := asSectionData(payload["mfa"]); ok && len(block) > 0 {
		part, err := e.gateway.UpdateSection(ctx, e.userID, sectionID, SectionData{"mfa": block})
		if err != nil {
			return nil, err
		}
		confirmed = MergeSection(confirmed, part)
	}

	if block, ok := asSectionData(payload["privacySettings"]); ok && len(block) > 0 {
		part, err := e.gateway.UpdateSection(ctx, e.userID, sectionID, SectionData{"privacySettings": block})
		if err != nil {
			return nil, err
		}
		confirmed = MergeSection(confirmed, part)
	}

	if len(confirmed) == 0 {
		return nil, nil
	}
	return confirmed, nil
}

func (e *Engine) sectionSnapshot(sectionID SectionID) SectionData {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return cloneSection(e.record[sectionID])
}

// EngineRegistry hands out one engine per user and keeps it for the session.
type EngineRegistry struct {
	mu      sync.Mutex
	engines map[string]*Engine

	gateway Gateway
	hub     *StatusHub
	audit   audit.AuditService
	log     *zap.Logger
}

func NewEngineRegistry(gateway Gateway, hub *StatusHub, auditService audit.AuditService, log *zap.Logger) *EngineRegistry {
	return &EngineRegistry{
		engines: make(map[string]*Engine),
		gateway: gateway,
		hub:     hub,
		audit:   auditService,
		log:     log,
	}
}

// For returns the engine owning userID's record, creating it on first use and
// wiring its lifecycle transitions into the status stream.
func (r *EngineRegistry) For(userID string) *Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	if engine, ok := r.engines[userID]; ok {
		return engine
	}
	engine := newEngine(userID, r.gateway, r.audit, r.log)
	engine.lifecycles.OnChange(func(event StatusEvent) {
		r.hub.Broadcast(userID, event)
	})
	r.engines[userID] = engine
	return engine
}
