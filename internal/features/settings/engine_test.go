package settings

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	common_models "go-staffhub/internal/common/models"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type gatewayCall struct {
	Section SectionID
	Payload SectionData
}

// MockGateway captures calls and can block inside UpdateSection to simulate
// an in-flight request.
type MockGateway struct {
	mu           sync.Mutex
	FetchResult  SettingsRecord
	FetchErr     error
	UpdateResult SectionData
	UpdateErr    error
	Calls        []gatewayCall

	entered chan struct{}
	release chan struct{}
}

func (m *MockGateway) FetchSettings(ctx context.Context, userID string) (SettingsRecord, error) {
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	if m.FetchResult == nil {
		return SettingsRecord{}, nil
	}
	return m.FetchResult, nil
}

func (m *MockGateway) UpdateSection(ctx context.Context, userID string, sectionID SectionID, payload SectionData) (SectionData, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, gatewayCall{Section: sectionID, Payload: payload})
	entered, release := m.entered, m.release
	m.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
		<-release
	}
	if m.UpdateErr != nil {
		return nil, m.UpdateErr
	}
	return m.UpdateResult, nil
}

func (m *MockGateway) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

type MockAuditService struct {
	mu      sync.Mutex
	Changes []map[string]common_models.Change
	Err     error
}

func (m *MockAuditService) LogChange(ctx context.Context, action common_models.AuditAction, module string, recordID string, changes map[string]common_models.Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Changes = append(m.Changes, changes)
	return m.Err
}

func (m *MockAuditService) ListLogs(ctx context.Context, filters map[string]interface{}, page, limit int64) ([]common_models.AuditLog, error) {
	return nil, nil
}

func newTestEngine(gateway *MockGateway) *Engine {
	return newEngine("user-1", gateway, &MockAuditService{}, zap.NewNop())
}

func TestLoadAllFillsDeclaredDefaults(t *testing.T) {
	gateway := &MockGateway{
		FetchResult: SettingsRecord{
			SectionAdminSettings: SectionData{
				"scheduling": map[string]any{"minHoursPerShift": float64(6)},
			},
		},
	}
	engine := newTestEngine(gateway)

	if err := engine.LoadAll(context.Background()); err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}

	record := engine.Record()
	if v, _ := lookupPath(record[SectionAdminSettings], "scheduling.minHoursPerShift"); v != float64(6) {
		t.Errorf("stored value lost: %v", v)
	}
	if v, _ := lookupPath(record[SectionAdminSettings], "scheduling.minBreakTime"); v != 30 {
		t.Errorf("missing key not default-filled: %v", v)
	}
	if v, _ := lookupPath(record[SectionNotifications], "channels.email"); v != true {
		t.Errorf("untouched section not defaulted: %v", v)
	}
}

func TestLoadAllIsIdempotent(t *testing.T) {
	gateway := &MockGateway{
		FetchResult: SettingsRecord{
			SectionProfile: SectionData{"firstName": "Ann"},
		},
	}
	engine := newTestEngine(gateway)

	if err := engine.LoadAll(context.Background()); err != nil {
		t.Fatalf("first LoadAll() error = %v", err)
	}
	first := engine.Record()

	if err := engine.LoadAll(context.Background()); err != nil {
		t.Fatalf("second LoadAll() error = %v", err)
	}
	second := engine.Record()

	if !reflect.DeepEqual(first, second) {
		t.Error("repeated LoadAll with the same remote payload drifted")
	}
}

func TestLoadAllFailureKeepsDefaultsUsable(t *testing.T) {
	gateway := &MockGateway{FetchErr: errors.New("connection refused")}
	engine := newTestEngine(gateway)

	if err := engine.LoadAll(context.Background()); err == nil {
		t.Fatal("LoadAll() expected error")
	}

	if engine.RecordError() == "" {
		t.Error("record-level error not set")
	}
	// Sections stay usable on declared defaults.
	record := engine.Record()
	if v, _ := lookupPath(record[SectionNotifications], "channels.email"); v != true {
		t.Errorf("defaults unavailable after failed load: %v", v)
	}
	for id, state := range engine.Lifecycles().Snapshot() {
		if state.Status != StatusIdle {
			t.Errorf("section %s not idle after failed load: %v", id, state.Status)
		}
	}

	// A retry can succeed and clears the banner.
	gateway.FetchErr = nil
	if err := engine.LoadAll(context.Background()); err != nil {
		t.Fatalf("retry LoadAll() error = %v", err)
	}
	if engine.RecordError() != "" {
		t.Errorf("record error not cleared: %q", engine.RecordError())
	}
}

func TestSubmitSectionSuccessMergesAndCompletes(t *testing.T) {
	gateway := &MockGateway{
		FetchResult: SettingsRecord{
			SectionProfile: SectionData{"firstName": "Ann", "lastName": "Lee"},
		},
	}
	engine := newTestEngine(gateway)
	engine.LoadAll(context.Background())

	result, err := engine.SubmitSection(context.Background(), SectionProfile,
		SectionData{"firstName": "Bob"}, "member")
	if err != nil {
		t.Fatalf("SubmitSection() error = %v", err)
	}
	if !result.Valid() {
		t.Fatalf("unexpected validation errors: %v", result)
	}

	record := engine.Record()
	if record[SectionProfile]["firstName"] != "Bob" {
		t.Errorf("draft not merged: %v", record[SectionProfile]["firstName"])
	}
	if record[SectionProfile]["lastName"] != "Lee" {
		t.Errorf("untouched key lost: %v", record[SectionProfile]["lastName"])
	}
	if state := engine.Lifecycles().Get(SectionProfile); state.Status != StatusSuccess {
		t.Errorf("lifecycle = %v, want success", state.Status)
	}
}

func TestSubmitSectionPrefersServerValues(t *testing.T) {
	gateway := &MockGateway{
		UpdateResult: SectionData{
			"scheduling": map[string]any{"maxHoursPerShift": float64(24)},
		},
	}
	engine := newTestEngine(gateway)
	engine.LoadAll(context.Background())

	// Draft inside client range, server clamps differently anyway.
	_, err := engine.SubmitSection(context.Background(), SectionAdminSettings,
		SectionData{"scheduling": map[string]any{"maxHoursPerShift": float64(23)}}, "admin")
	if err != nil {
		t.Fatalf("SubmitSection() error = %v", err)
	}

	record := engine.Record()
	if v, _ := lookupPath(record[SectionAdminSettings], "scheduling.maxHoursPerShift"); v != float64(24) {
		t.Errorf("server-confirmed value did not win: %v", v)
	}
}

func TestSubmitSectionFailureLeavesCanonicalUntouched(t *testing.T) {
	gateway := &MockGateway{
		FetchResult: SettingsRecord{
			SectionProfile: SectionData{"firstName": "Ann"},
		},
	}
	engine := newTestEngine(gateway)
	engine.LoadAll(context.Background())

	gateway.UpdateErr = errors.New("gateway timeout")
	_, err := engine.SubmitSection(context.Background(), SectionProfile,
		SectionData{"firstName": "Bob"}, "member")
	if err == nil {
		t.Fatal("SubmitSection() expected error")
	}

	if got := engine.Record()[SectionProfile]["firstName"]; got != "Ann" {
		t.Errorf("canonical state changed on failure: %v", got)
	}
	state := engine.Lifecycles().Get(SectionProfile)
	if state.Status != StatusError || state.Error != "gateway timeout" {
		t.Errorf("lifecycle = %+v", state)
	}
}

func TestSubmitSectionBusyRejection(t *testing.T) {
	gateway := &MockGateway{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	engine := newTestEngine(gateway)
	engine.LoadAll(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := engine.SubmitSection(context.Background(), SectionProfile,
			SectionData{"firstName": "First"}, "member")
		done <- err
	}()

	<-gateway.entered // first submit is now in flight

	_, err := engine.SubmitSection(context.Background(), SectionProfile,
		SectionData{"firstName": "Second"}, "member")
	if !errors.Is(err, ErrSectionBusy) {
		t.Errorf("second submit error = %v, want ErrSectionBusy", err)
	}

	close(gateway.release)
	if err := <-done; err != nil {
		t.Fatalf("first submit error = %v", err)
	}

	// Canonical state reflects only the first call's outcome.
	if got := engine.Record()[SectionProfile]["firstName"]; got != "First" {
		t.Errorf("canonical firstName = %v, want First", got)
	}
	if gateway.callCount() != 1 {
		t.Errorf("gateway called %d times, want 1", gateway.callCount())
	}
}

func TestSubmitSectionValidationNeverReachesGateway(t *testing.T) {
	gateway := &MockGateway{}
	engine := newTestEngine(gateway)
	engine.LoadAll(context.Background())

	result, err := engine.SubmitSection(context.Background(), SectionSecurity,
		passwordDraft("old", "weak", "weak"), "member")
	if err != nil {
		t.Fatalf("SubmitSection() error = %v", err)
	}
	if result.Valid() {
		t.Fatal("expected validation errors")
	}
	if gateway.callCount() != 0 {
		t.Errorf("gateway contacted despite validation errors: %d calls", gateway.callCount())
	}
	if state := engine.Lifecycles().Get(SectionSecurity); state.Status != StatusIdle {
		t.Errorf("lifecycle moved on a local validation failure: %v", state.Status)
	}
}

func TestSubmitSectionStripsAdminFieldsForMembers(t *testing.T) {
	gateway := &MockGateway{}
	engine := newTestEngine(gateway)
	engine.LoadAll(context.Background())

	_, err := engine.SubmitSection(context.Background(), SectionProfile,
		SectionData{"firstName": "Ann", "jobTitle": "CTO", "employmentStatus": "terminated"}, "member")
	if err != nil {
		t.Fatalf("SubmitSection() error = %v", err)
	}

	payload := gateway.Calls[0].Payload
	if _, ok := payload["jobTitle"]; ok {
		t.Error("jobTitle reached the gateway from a non-admin draft")
	}
	if _, ok := payload["employmentStatus"]; ok {
		t.Error("employmentStatus reached the gateway from a non-admin draft")
	}
	if payload["firstName"] != "Ann" {
		t.Errorf("open field lost: %v", payload)
	}
}

func TestSubmitSecurityFansOutIndependentCalls(t *testing.T) {
	gateway := &MockGateway{}
	engine := newTestEngine(gateway)
	engine.LoadAll(context.Background())

	draft := SectionData{
		"password": map[string]any{
			"current": "old-secret",
			"new":     "Str0ng!pass",
			"confirm": "Str0ng!pass",
		},
		"mfa":             map[string]any{"enabled": true, "method": "sms", "phone": "555-0100"},
		"privacySettings": map[string]any{"profileVisibility": "everyone"},
	}

	_, err := engine.SubmitSection(context.Background(), SectionSecurity, draft, "member")
	if err != nil {
		t.Fatalf("SubmitSection() error = %v", err)
	}

	if gateway.callCount() != 3 {
		t.Fatalf("gateway called %d times, want 3", gateway.callCount())
	}

	// Each call carries only its own payload shape.
	for _, call := range gateway.Calls {
		keys := make([]string, 0, len(call.Payload))
		for k := range call.Payload {
			keys = append(keys, k)
		}
		if len(keys) != 1 {
			t.Errorf("mixed payload shape: %v", keys)
		}
	}
	change, _ := asSectionData(gateway.Calls[0].Payload["passwordChange"])
	if change["currentPassword"] != "old-secret" || change["newPassword"] != "Str0ng!pass" {
		t.Errorf("password payload shape wrong: %v", gateway.Calls[0].Payload)
	}

	// One shared lifecycle, and secrets never land in canonical state.
	if state := engine.Lifecycles().Get(SectionSecurity); state.Status != StatusSuccess {
		t.Errorf("security lifecycle = %v", state.Status)
	}
	if _, ok := engine.Record()[SectionSecurity]["password"]; ok {
		t.Error("password block stored in canonical record")
	}
	if v, _ := lookupPath(engine.Record()[SectionSecurity], "mfa.phone"); v != "555-0100" {
		t.Errorf("mfa settings not merged: %v", v)
	}
}

func TestSubmitSecurityStopsFanOutOnFailure(t *testing.T) {
	gateway := &MockGateway{UpdateErr: errors.New("current password is incorrect")}
	engine := newTestEngine(gateway)
	engine.LoadAll(context.Background())

	draft := SectionData{
		"password": map[string]any{
			"current": "wrong",
			"new":     "Str0ng!pass",
			"confirm": "Str0ng!pass",
		},
		"mfa": map[string]any{"enabled": true},
	}

	_, err := engine.SubmitSection(context.Background(), SectionSecurity, draft, "member")
	if err == nil {
		t.Fatal("expected error")
	}
	if gateway.callCount() != 1 {
		t.Errorf("fan-out continued after failure: %d calls", gateway.callCount())
	}
	if state := engine.Lifecycles().Get(SectionSecurity); state.Status != StatusError {
		t.Errorf("lifecycle = %v, want error", state.Status)
	}
}

func TestSubmitUnknownSection(t *testing.T) {
	engine := newTestEngine(&MockGateway{})

	_, err := engine.SubmitSection(context.Background(), "nonsense", SectionData{}, "admin")
	if !errors.Is(err, ErrUnknownSection) {
		t.Errorf("error = %v, want ErrUnknownSection", err)
	}
}

func TestPreviewSectionDoesNotCommit(t *testing.T) {
	gateway := &MockGateway{
		FetchResult: SettingsRecord{
			SectionProfile: SectionData{"firstName": "Ann"},
		},
	}
	engine := newTestEngine(gateway)
	engine.LoadAll(context.Background())

	preview, err := engine.PreviewSection(SectionProfile, SectionData{"firstName": "Bob"})
	if err != nil {
		t.Fatalf("PreviewSection() error = %v", err)
	}
	if preview["firstName"] != "Bob" {
		t.Errorf("preview = %v", preview["firstName"])
	}
	if engine.Record()[SectionProfile]["firstName"] != "Ann" {
		t.Error("preview leaked into canonical state")
	}
}

func TestIndependentSectionsSubmitConcurrently(t *testing.T) {
	gateway := &MockGateway{}
	engine := newTestEngine(gateway)
	engine.LoadAll(context.Background())

	var wg sync.WaitGroup
	sections := []SectionID{SectionProfile, SectionNotifications, SectionAvailability}
	for _, id := range sections {
		wg.Add(1)
		go func(sectionID SectionID) {
			defer wg.Done()
			_, err := engine.SubmitSection(context.Background(), sectionID,
				SectionData{"preferOvertime": true}, "member")
			if err != nil {
				t.Errorf("section %s submit error = %v", sectionID, err)
			}
		}(id)
	}
	wg.Wait()

	for _, id := range sections {
		if state := engine.Lifecycles().Get(id); state.Status != StatusSuccess {
			t.Errorf("section %s = %v, want success", id, state.Status)
		}
	}
}

func TestSubmitSectionWritesAuditTrail(t *testing.T) {
	gateway := &MockGateway{}
	auditService := &MockAuditService{}
	engine := newEngine("user-1", gateway, auditService, zap.NewNop())
	engine.LoadAll(context.Background())

	engine.SubmitSection(context.Background(), SectionProfile,
		SectionData{"firstName": "Bob"}, "member")

	if len(auditService.Changes) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(auditService.Changes))
	}
	change, ok := auditService.Changes[0][string(SectionProfile)]
	if !ok {
		t.Fatalf("no change recorded for profile: %v", auditService.Changes[0])
	}
	after, _ := change.New.(SectionData)
	if after["firstName"] != "Bob" {
		t.Errorf("audit new value = %v", after)
	}
}

func TestSubmitSectionSurvivesAuditSinkFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	gateway := &MockGateway{}
	auditService := &MockAuditService{Err: errors.New("audit collection unavailable")}
	engine := newEngine("user-1", gateway, auditService, zap.New(core))
	engine.LoadAll(context.Background())

	result, err := engine.SubmitSection(context.Background(), SectionProfile,
		SectionData{"firstName": "Bob"}, "member")
	if err != nil {
		t.Fatalf("SubmitSection() error = %v", err)
	}
	if !result.Valid() {
		t.Fatalf("unexpected validation errors: %v", result)
	}

	// The submit itself committed.
	if got := engine.Record()[SectionProfile]["firstName"]; got != "Bob" {
		t.Errorf("canonical firstName = %v, want Bob", got)
	}
	if state := engine.Lifecycles().Get(SectionProfile); state.Status != StatusSuccess {
		t.Errorf("lifecycle = %v, want success", state.Status)
	}

	// And the dead sink is reported, not swallowed.
	if entries := logs.FilterMessage("audit write failed").All(); len(entries) != 1 {
		t.Errorf("warn entries = %d, want 1", len(entries))
	}
}
