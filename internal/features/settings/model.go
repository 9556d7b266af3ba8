package settings

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SectionID identifies one independently saved grouping of settings fields.
type SectionID string

const (
	SectionProfile          SectionID = "profile"
	SectionJobSettings      SectionID = "jobSettings"
	SectionAvailability     SectionID = "availability"
	SectionNotifications    SectionID = "notifications"
	SectionSecurity         SectionID = "security"
	SectionAdminSettings    SectionID = "adminSettings"
	SectionOptionalSettings SectionID = "optionalSettings"
)

// AllSections lists every section in render order.
var AllSections = []SectionID{
	SectionProfile,
	SectionJobSettings,
	SectionAvailability,
	SectionNotifications,
	SectionSecurity,
	SectionAdminSettings,
	SectionOptionalSettings,
}

// SectionData is one section's document: field name -> scalar, nested map or list.
type SectionData = map[string]any

// SettingsRecord is the full per-user settings document, keyed by section.
type SettingsRecord = map[SectionID]SectionData

// UserSettings is the persisted shape of a SettingsRecord.
type UserSettings struct {
	ID        primitive.ObjectID        `json:"id" bson:"_id,omitempty"`
	UserID    string                    `json:"user_id" bson:"user_id"` // Unique index
	Sections  map[SectionID]SectionData `json:"sections" bson:"sections"`
	CreatedAt time.Time                 `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time                 `json:"updated_at" bson:"updated_at"`
}

// Status is a section lifecycle state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// SectionLifecycle tracks one section's save state. Never destroyed, only reset.
type SectionLifecycle struct {
	Status       Status     `json:"status"`
	Error        string     `json:"error,omitempty"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}

// ValidationResult maps field path -> error message. Empty means valid.
type ValidationResult map[string]string

// Valid reports whether the draft passed every rule.
func (r ValidationResult) Valid() bool { return len(r) == 0 }

// AccessDecision is the policy verdict for one (role, section, field).
type AccessDecision struct {
	Editable bool `json:"editable"`
	Visible  bool `json:"visible"`
}

// IsKnownSection reports whether id names a declared section.
func IsKnownSection(id SectionID) bool {
	for _, s := range AllSections {
		if s == id {
			return true
		}
	}
	return false
}

// defaultShapes holds the declared shape of every section: the seed values used
// to fill gaps on first load. Keys present here must survive every merge.
var defaultShapes = map[SectionID]SectionData{
	SectionProfile: {
		"firstName":        "",
		"lastName":         "",
		"preferredName":    "",
		"email":            "",
		"phone":            "",
		"jobTitle":         "",
		"employeeId":       "",
		"startDate":        "",
		"endDate":          "",
		"employmentStatus": "",
		"emergencyContact": map[string]any{
			"name":         "",
			"relationship": "",
			"phone":        "",
		},
		"preferences": map[string]any{
			"language":    "english",
			"timezone":    "America/New_York",
			"dateFormat":  "MM/DD/YYYY",
			"displayMode": "light",
		},
	},
	SectionJobSettings: {
		"role":           "",
		"permissions":    []any{},
		"departments":    []any{},
		"groups":         []any{},
		"skills":         []any{},
		"payRate":        "",
		"payType":        "hourly",
		"certifications": []any{},
	},
	SectionAvailability: {
		"weeklyAvailability": map[string]any{
			"monday":    []any{},
			"tuesday":   []any{},
			"wednesday": []any{},
			"thursday":  []any{},
			"friday":    []any{},
			"saturday":  []any{},
			"sunday":    []any{},
		},
		"preferredShifts": []any{},
		"maxHoursPerWeek": "",
		"minHoursPerWeek": "",
		"preferOvertime":  false,
		"timeOffRequests": []any{},
		"timeOffBalances": map[string]any{
			"vacation": "",
			"sick":     "",
			"personal": "",
		},
	},
	SectionNotifications: {
		"channels": map[string]any{
			"email": true,
			"push":  false,
			"sms":   false,
		},
		"types": map[string]any{
			"schedule_changes":    true,
			"shift_reminders":     true,
			"time_off_updates":    true,
			"shift_swap_requests": true,
			"announcements":       true,
			"payroll":             true,
		},
		"quietHours": map[string]any{
			"enabled": false,
			"start":   "22:00",
			"end":     "08:00",
		},
	},
	SectionSecurity: {
		"mfa": map[string]any{
			"enabled": false,
			"method":  "app",
			"phone":   "",
		},
		"privacySettings": map[string]any{
			"profileVisibility": "team",
			"shareContactInfo":  false,
		},
		"loginHistory": []any{},
	},
	SectionAdminSettings: {
		"scheduling": map[string]any{
			"minHoursPerShift":   4,
			"maxHoursPerShift":   12,
			"minHoursPerWeek":    0,
			"maxHoursPerWeek":    40,
			"maxConsecutiveDays": 6,
			"minBreakTime":       30,
			"overtimeThreshold":  40,
		},
		"shiftSwaps": map[string]any{
			"requireApproval":    true,
			"allowDirectSwaps":   false,
			"maxAdvanceSwapDays": 14,
		},
		"compliance": map[string]any{
			"enforceMinimumRest": true,
			"minimumRestHours":   10,
			"laborLawRegion":     "us_federal",
			"unionRules":         false,
		},
		"departments": []any{},
		"groups":      []any{},
	},
	SectionOptionalSettings: {
		"customFields": map[string]any{},
		"devices":      []any{},
		"multiSiteAccess": map[string]any{
			"enabled":         false,
			"defaultSite":     "",
			"accessibleSites": []any{},
		},
	},
}

// DefaultShape returns a fresh deep copy of a section's declared shape.
func DefaultShape(id SectionID) SectionData {
	shape, ok := defaultShapes[id]
	if !ok {
		return SectionData{}
	}
	return cloneSection(shape)
}

// DefaultRecord builds a full record from declared shapes.
func DefaultRecord() SettingsRecord {
	record := make(SettingsRecord, len(AllSections))
	for _, id := range AllSections {
		record[id] = DefaultShape(id)
	}
	return record
}
