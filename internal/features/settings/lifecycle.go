package settings

import (
	"sync"
	"time"
)

// StatusEvent is emitted on every lifecycle transition.
type StatusEvent struct {
	Section   SectionID `json:"section"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// LifecycleStore tracks one SectionLifecycle per section. Lifecycles are
// created up front and only ever reset, never destroyed. All transitions are
// serialized per store; a submit against a loading section is rejected, not
// queued.
type LifecycleStore struct {
	mu       sync.Mutex
	states   map[SectionID]*SectionLifecycle
	onChange func(StatusEvent)
	now      func() time.Time
}

func NewLifecycleStore() *LifecycleStore {
	states := make(map[SectionID]*SectionLifecycle, len(AllSections))
	for _, id := range AllSections {
		states[id] = &SectionLifecycle{Status: StatusIdle}
	}
	return &LifecycleStore{states: states, now: time.Now}
}

// OnChange registers a transition listener. The listener runs outside the
// store lock.
func (s *LifecycleStore) OnChange(fn func(StatusEvent)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Busy reports whether a submit is in flight for the section.
func (s *LifecycleStore) Busy(sectionID SectionID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[sectionID]
	return ok && state.Status == StatusLoading
}

// BeginSubmit transitions idle/success/error -> loading. Returns ErrSectionBusy
// if a submit is already in flight; the caller must retry after it resolves.
func (s *LifecycleStore) BeginSubmit(sectionID SectionID) error {
	s.mu.Lock()
	state, ok := s.states[sectionID]
	if !ok {
		s.mu.Unlock()
		return ErrUnknownSection
	}
	if state.Status == StatusLoading {
		s.mu.Unlock()
		return ErrSectionBusy
	}
	state.Status = StatusLoading
	state.Error = ""
	event := s.eventLocked(sectionID)
	s.mu.Unlock()

	s.emit(event)
	return nil
}

// CompleteSuccess transitions loading -> success and stamps lastSyncedAt.
func (s *LifecycleStore) CompleteSuccess(sectionID SectionID) {
	s.mu.Lock()
	state, ok := s.states[sectionID]
	if !ok {
		s.mu.Unlock()
		return
	}
	now := s.now()
	state.Status = StatusSuccess
	state.Error = ""
	state.LastSyncedAt = &now
	event := s.eventLocked(sectionID)
	s.mu.Unlock()

	s.emit(event)
}

// CompleteFailure transitions loading -> error and records the message.
func (s *LifecycleStore) CompleteFailure(sectionID SectionID, message string) {
	s.mu.Lock()
	state, ok := s.states[sectionID]
	if !ok {
		s.mu.Unlock()
		return
	}
	state.Status = StatusError
	state.Error = message
	event := s.eventLocked(sectionID)
	s.mu.Unlock()

	s.emit(event)
}

// Reset returns a section to idle, clearing the error but preserving
// lastSyncedAt.
func (s *LifecycleStore) Reset(sectionID SectionID) {
	s.mu.Lock()
	state, ok := s.states[sectionID]
	if !ok {
		s.mu.Unlock()
		return
	}
	state.Status = StatusIdle
	state.Error = ""
	event := s.eventLocked(sectionID)
	s.mu.Unlock()

	s.emit(event)
}

// Get returns a copy of one section's lifecycle.
func (s *LifecycleStore) Get(sectionID SectionID) SectionLifecycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[sectionID]
	if !ok {
		return SectionLifecycle{Status: StatusIdle}
	}
	return *state
}

// Snapshot returns a copy of every section's lifecycle.
func (s *LifecycleStore) Snapshot() map[SectionID]SectionLifecycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[SectionID]SectionLifecycle, len(s.states))
	for id, state := range s.states {
		out[id] = *state
	}
	return out
}

func (s *LifecycleStore) eventLocked(sectionID SectionID) StatusEvent {
	state := s.states[sectionID]
	return StatusEvent{
		Section:   sectionID,
		Status:    state.Status,
		Error:     state.Error,
		Timestamp: s.now(),
	}
}

func (s *LifecycleStore) emit(event StatusEvent) {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn(event)
	}
}
