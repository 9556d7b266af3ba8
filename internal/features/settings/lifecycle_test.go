package settings

import (
	"errors"
	"testing"
)

func TestLifecycleSubmitFlow(t *testing.T) {
	store := NewLifecycleStore()

	if got := store.Get(SectionProfile).Status; got != StatusIdle {
		t.Fatalf("initial status = %v, want idle", got)
	}

	if err := store.BeginSubmit(SectionProfile); err != nil {
		t.Fatalf("BeginSubmit() error = %v", err)
	}
	if got := store.Get(SectionProfile).Status; got != StatusLoading {
		t.Errorf("status after begin = %v, want loading", got)
	}

	store.CompleteSuccess(SectionProfile)
	state := store.Get(SectionProfile)
	if state.Status != StatusSuccess {
		t.Errorf("status after success = %v", state.Status)
	}
	if state.LastSyncedAt == nil {
		t.Error("lastSyncedAt not stamped")
	}
}

func TestLifecycleBusyRejection(t *testing.T) {
	store := NewLifecycleStore()

	if err := store.BeginSubmit(SectionSecurity); err != nil {
		t.Fatalf("first BeginSubmit() error = %v", err)
	}
	if err := store.BeginSubmit(SectionSecurity); !errors.Is(err, ErrSectionBusy) {
		t.Errorf("second BeginSubmit() error = %v, want ErrSectionBusy", err)
	}

	// A sibling section is unaffected.
	if err := store.BeginSubmit(SectionProfile); err != nil {
		t.Errorf("sibling BeginSubmit() error = %v", err)
	}
}

func TestLifecycleResubmitFromTerminalStates(t *testing.T) {
	store := NewLifecycleStore()

	store.BeginSubmit(SectionProfile)
	store.CompleteFailure(SectionProfile, "boom")
	if err := store.BeginSubmit(SectionProfile); err != nil {
		t.Errorf("resubmit from error state rejected: %v", err)
	}
	store.CompleteSuccess(SectionProfile)
	if err := store.BeginSubmit(SectionProfile); err != nil {
		t.Errorf("resubmit from success state rejected: %v", err)
	}
}

func TestLifecycleFailureRecordsMessage(t *testing.T) {
	store := NewLifecycleStore()

	store.BeginSubmit(SectionNotifications)
	store.CompleteFailure(SectionNotifications, "network unreachable")

	state := store.Get(SectionNotifications)
	if state.Status != StatusError || state.Error != "network unreachable" {
		t.Errorf("state = %+v", state)
	}
}

func TestLifecycleResetPreservesLastSyncedAt(t *testing.T) {
	store := NewLifecycleStore()

	store.BeginSubmit(SectionProfile)
	store.CompleteSuccess(SectionProfile)
	synced := store.Get(SectionProfile).LastSyncedAt

	store.BeginSubmit(SectionProfile)
	store.CompleteFailure(SectionProfile, "boom")
	store.Reset(SectionProfile)

	state := store.Get(SectionProfile)
	if state.Status != StatusIdle || state.Error != "" {
		t.Errorf("reset state = %+v", state)
	}
	if state.LastSyncedAt == nil || !state.LastSyncedAt.Equal(*synced) {
		t.Errorf("lastSyncedAt not preserved across reset: %v", state.LastSyncedAt)
	}
}

func TestLifecycleEmitsTransitions(t *testing.T) {
	store := NewLifecycleStore()

	var events []StatusEvent
	store.OnChange(func(e StatusEvent) { events = append(events, e) })

	store.BeginSubmit(SectionProfile)
	store.CompleteSuccess(SectionProfile)
	store.Reset(SectionProfile)

	want := []Status{StatusLoading, StatusSuccess, StatusIdle}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i, status := range want {
		if events[i].Status != status || events[i].Section != SectionProfile {
			t.Errorf("event %d = %+v, want status %v", i, events[i], status)
		}
	}
}

func TestLifecycleSnapshotCoversAllSections(t *testing.T) {
	store := NewLifecycleStore()
	snapshot := store.Snapshot()

	if len(snapshot) != len(AllSections) {
		t.Fatalf("snapshot has %d sections, want %d", len(snapshot), len(AllSections))
	}
	for _, id := range AllSections {
		if snapshot[id].Status != StatusIdle {
			t.Errorf("section %s initial status = %v", id, snapshot[id].Status)
		}
	}
}
