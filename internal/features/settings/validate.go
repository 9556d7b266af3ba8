package settings

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// rangeRule declares a numeric bound for one field path within a section.
type rangeRule struct {
	Section SectionID
	Path    string
	Min     float64
	Max     float64
}

// crossRule declares min <= max between two sibling fields. Violations are
// flagged on the max field.
type crossRule struct {
	Section SectionID
	MinPath string
	MaxPath string
}

var rangeRules = []rangeRule{
	{SectionAdminSettings, "scheduling.minHoursPerShift", 0, 24},
	{SectionAdminSettings, "scheduling.maxHoursPerShift", 0, 24},
	{SectionAdminSettings, "scheduling.minHoursPerWeek", 0, 168},
	{SectionAdminSettings, "scheduling.maxHoursPerWeek", 0, 168},
	{SectionAdminSettings, "scheduling.maxConsecutiveDays", 1, 14},
	{SectionAdminSettings, "scheduling.minBreakTime", 0, 120},
	{SectionAdminSettings, "scheduling.overtimeThreshold", 0, 168},
	{SectionAdminSettings, "compliance.minimumRestHours", 0, 24},
	{SectionAvailability, "minHoursPerWeek", 0, 168},
	{SectionAvailability, "maxHoursPerWeek", 0, 168},
}

var crossRules = []crossRule{
	{SectionAdminSettings, "scheduling.minHoursPerShift", "scheduling.maxHoursPerShift"},
	{SectionAdminSettings, "scheduling.minHoursPerWeek", "scheduling.maxHoursPerWeek"},
	{SectionAvailability, "minHoursPerWeek", "maxHoursPerWeek"},
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const passwordSymbols = `!@#$%^&*(),.?":{}|<>`

// Validate runs the section's rule set against a draft and returns every
// violated rule in one pass. Rules never cross sections.
func Validate(sectionID SectionID, draft SectionData) ValidationResult {
	result := ValidationResult{}

	switch sectionID {
	case SectionProfile:
		validateProfile(draft, result)
	case SectionSecurity:
		validateSecurity(draft, result)
	}

	for _, rule := range rangeRules {
		if rule.Section != sectionID {
			continue
		}
		value, ok := lookupPath(draft, rule.Path)
		if !ok {
			continue
		}
		n, ok := asNumber(value)
		if !ok {
			continue
		}
		if n < rule.Min || n > rule.Max {
			result[rule.Path] = fmt.Sprintf("Must be between %s and %s",
				formatBound(rule.Min), formatBound(rule.Max))
		}
	}

	for _, rule := range crossRules {
		if rule.Section != sectionID {
			continue
		}
		minVal, okMin := lookupPath(draft, rule.MinPath)
		maxVal, okMax := lookupPath(draft, rule.MaxPath)
		if !okMin || !okMax {
			continue
		}
		minN, okMin := asNumber(minVal)
		maxN, okMax := asNumber(maxVal)
		if !okMin || !okMax {
			continue
		}
		if minN > maxN {
			result[rule.MaxPath] = "Must be greater than or equal to the minimum"
		}
	}

	return result
}

func validateProfile(draft SectionData, result ValidationResult) {
	for _, field := range []string{"firstName", "lastName", "email"} {
		value, ok := lookupPath(draft, field)
		if !ok {
			continue
		}
		if s, isStr := value.(string); isStr && strings.TrimSpace(s) == "" {
			result[field] = "This field is required"
		}
	}
	if value, ok := lookupPath(draft, "email"); ok {
		if s, isStr := value.(string); isStr && s != "" && !emailPattern.MatchString(s) {
			result["email"] = "Invalid email address"
		}
	}
}

// validateSecurity applies the password-change rules when the draft carries a
// password block. Every check runs unconditionally so all violations are
// reported together.
func validateSecurity(draft SectionData, result ValidationResult) {
	block, ok := lookupPath(draft, "password")
	if !ok {
		return
	}
	password, ok := asSectionData(block)
	if !ok || len(password) == 0 {
		return
	}

	current, _ := password["current"].(string)
	next, _ := password["new"].(string)
	confirm, _ := password["confirm"].(string)

	if current == "" {
		result["password.current"] = "Current password is required"
	}

	if next == "" {
		result["password.new"] = "New password is required"
	} else {
		var problems []string
		if len(next) < 8 {
			problems = append(problems, "at least 8 characters")
		}
		if !strings.ContainsFunc(next, func(r rune) bool { return r >= 'A' && r <= 'Z' }) {
			problems = append(problems, "an uppercase letter")
		}
		if !strings.ContainsFunc(next, func(r rune) bool { return r >= 'a' && r <= 'z' }) {
			problems = append(problems, "a lowercase letter")
		}
		if !strings.ContainsFunc(next, func(r rune) bool { return r >= '0' && r <= '9' }) {
			problems = append(problems, "a number")
		}
		if !strings.ContainsAny(next, passwordSymbols) {
			problems = append(problems, "a special character")
		}
		if len(problems) > 0 {
			result["password.new"] = "Password must include " + strings.Join(problems, ", ")
		}
	}

	if next != confirm {
		result["password.confirm"] = "Passwords do not match"
	}
}

// asNumber coerces the numeric shapes produced by JSON decoding. Form inputs
// arrive as strings, so numeric strings count too; empty strings do not.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		if n == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func formatBound(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
