package settings

import (
	"strings"
	"testing"
)

func passwordDraft(current, next, confirm string) SectionData {
	return SectionData{
		"password": map[string]any{
			"current": current,
			"new":     next,
			"confirm": confirm,
		},
	}
}

func TestValidatePasswordReportsEveryViolation(t *testing.T) {
	result := Validate(SectionSecurity, passwordDraft("old-secret", "abc", "abc"))

	msg, ok := result["password.new"]
	if !ok {
		t.Fatalf("expected error on password.new, got %v", result)
	}
	for _, want := range []string{"8 characters", "uppercase", "number", "special"} {
		if !strings.Contains(msg, want) {
			t.Errorf("password.new error %q missing %q", msg, want)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name       string
		draft      SectionData
		wantFields []string
	}{
		{
			name:       "valid change",
			draft:      passwordDraft("old-secret", "Str0ng!pass", "Str0ng!pass"),
			wantFields: nil,
		},
		{
			name:       "current required",
			draft:      passwordDraft("", "Str0ng!pass", "Str0ng!pass"),
			wantFields: []string{"password.current"},
		},
		{
			name:       "new required",
			draft:      passwordDraft("old-secret", "", ""),
			wantFields: []string{"password.new"},
		},
		{
			name:       "confirm mismatch",
			draft:      passwordDraft("old-secret", "Str0ng!pass", "different"),
			wantFields: []string{"password.confirm"},
		},
		{
			name:       "everything wrong at once",
			draft:      passwordDraft("", "abc", "xyz"),
			wantFields: []string{"password.current", "password.new", "password.confirm"},
		},
		{
			name:       "no password block skips password rules",
			draft:      SectionData{"mfa": map[string]any{"enabled": true}},
			wantFields: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(SectionSecurity, tt.draft)
			if len(result) != len(tt.wantFields) {
				t.Errorf("got %d errors (%v), want %d", len(result), result, len(tt.wantFields))
			}
			for _, field := range tt.wantFields {
				if _, ok := result[field]; !ok {
					t.Errorf("missing error for %s in %v", field, result)
				}
			}
		})
	}
}

func TestValidateNumericRanges(t *testing.T) {
	draft := SectionData{
		"scheduling": map[string]any{
			"minHoursPerShift":   float64(4),
			"maxHoursPerShift":   float64(30), // out of range
			"maxConsecutiveDays": float64(0),  // out of range
		},
	}

	result := Validate(SectionAdminSettings, draft)

	if _, ok := result["scheduling.maxHoursPerShift"]; !ok {
		t.Errorf("maxHoursPerShift=30 not flagged: %v", result)
	}
	if _, ok := result["scheduling.maxConsecutiveDays"]; !ok {
		t.Errorf("maxConsecutiveDays=0 not flagged: %v", result)
	}
	if _, ok := result["scheduling.minHoursPerShift"]; ok {
		t.Errorf("in-range field flagged: %v", result)
	}
}

func TestValidateRangeViolationDoesNotBlockOtherFields(t *testing.T) {
	draft := SectionData{
		"scheduling": map[string]any{
			"minBreakTime":      float64(500),
			"overtimeThreshold": float64(200),
		},
	}

	result := Validate(SectionAdminSettings, draft)

	if len(result) != 2 {
		t.Errorf("want both range violations reported, got %v", result)
	}
}

func TestValidateCrossFieldFlagsMaxField(t *testing.T) {
	draft := SectionData{
		"scheduling": map[string]any{
			"minHoursPerWeek": float64(50),
			"maxHoursPerWeek": float64(40),
		},
	}

	result := Validate(SectionAdminSettings, draft)

	if _, ok := result["scheduling.maxHoursPerWeek"]; !ok {
		t.Errorf("violation not flagged on max field: %v", result)
	}
	if _, ok := result["scheduling.minHoursPerWeek"]; ok {
		t.Errorf("violation flagged on min field: %v", result)
	}
}

func TestValidateAvailabilityCrossField(t *testing.T) {
	// Form inputs arrive as strings.
	draft := SectionData{
		"minHoursPerWeek": "30",
		"maxHoursPerWeek": "20",
	}

	result := Validate(SectionAvailability, draft)

	if _, ok := result["maxHoursPerWeek"]; !ok {
		t.Errorf("string-typed hours not compared: %v", result)
	}
}

func TestValidateProfile(t *testing.T) {
	tests := []struct {
		name      string
		draft     SectionData
		wantField string
	}{
		{"blank first name", SectionData{"firstName": "  "}, "firstName"},
		{"bad email", SectionData{"email": "not-an-email"}, "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(SectionProfile, tt.draft)
			if _, ok := result[tt.wantField]; !ok {
				t.Errorf("missing error for %s: %v", tt.wantField, result)
			}
		})
	}

	t.Run("partial draft skips absent fields", func(t *testing.T) {
		result := Validate(SectionProfile, SectionData{"phone": "555-0100"})
		if !result.Valid() {
			t.Errorf("absent required fields flagged on partial draft: %v", result)
		}
	})
}
