package settings

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// RoleAdmin is the role claim that unlocks admin-only fields and sections.
const RoleAdmin = "admin"

// fieldRule is one row of the access table. AdminOnly fields stay visible to
// everyone but editable only by admins. ConditionalOn is an expression
// evaluated against the current section document; when it is false the field
// is hidden (hidden, not deleted: the stored value survives).
type fieldRule struct {
	AdminOnly     bool
	ConditionalOn string
}

// accessTable maps (section, field path) -> rule. The empty path "" gates the
// whole section. Fields without a row are visible and editable by everyone.
var accessTable = map[SectionID]map[string]fieldRule{
	SectionProfile: {
		"jobTitle":         {AdminOnly: true},
		"employeeId":       {AdminOnly: true},
		"startDate":        {AdminOnly: true},
		"employmentStatus": {AdminOnly: true},
		"endDate":          {AdminOnly: true, ConditionalOn: `employmentStatus == "terminated"`},
	},
	SectionJobSettings: {
		"role":           {AdminOnly: true},
		"permissions":    {AdminOnly: true},
		"departments":    {AdminOnly: true},
		"groups":         {AdminOnly: true},
		"skills":         {AdminOnly: true},
		"payRate":        {AdminOnly: true},
		"payType":        {AdminOnly: true},
		"certifications": {AdminOnly: true},
	},
	SectionSecurity: {
		"mfa.phone": {ConditionalOn: `mfa.method == "sms"`},
	},
	SectionAdminSettings: {
		"":                            {AdminOnly: true},
		"compliance.minimumRestHours": {AdminOnly: true, ConditionalOn: `compliance.enforceMinimumRest == true`},
	},
}

// conditionPrograms holds the compiled predicates, keyed by expression source.
var conditionPrograms = map[string]*vm.Program{}

func init() {
	for _, fields := range accessTable {
		for _, rule := range fields {
			if rule.ConditionalOn == "" {
				continue
			}
			program, err := expr.Compile(rule.ConditionalOn, expr.AllowUndefinedVariables(), expr.AsBool())
			if err != nil {
				panic(fmt.Sprintf("settings: bad access predicate %q: %v", rule.ConditionalOn, err))
			}
			conditionPrograms[rule.ConditionalOn] = program
		}
	}
}

// Decide evaluates the access policy for one field. This is a UX convenience
// for presentation; the gateway enforces authorization independently.
func Decide(role string, sectionID SectionID, fieldPath string, state SectionData) AccessDecision {
	isAdmin := role == RoleAdmin

	rule, ok := lookupRule(sectionID, fieldPath)
	if !ok {
		return AccessDecision{Editable: true, Visible: true}
	}

	decision := AccessDecision{Editable: true, Visible: true}
	if rule.AdminOnly && !isAdmin {
		decision.Editable = false
	}
	if rule.ConditionalOn != "" && !evalCondition(rule.ConditionalOn, state) {
		decision.Visible = false
		decision.Editable = false
	}
	return decision
}

// lookupRule finds the row for a field path, falling back to the section-wide
// row and then to ancestor paths so nested fields inherit their parent's gate.
func lookupRule(sectionID SectionID, fieldPath string) (fieldRule, bool) {
	fields, ok := accessTable[sectionID]
	if !ok {
		return fieldRule{}, false
	}
	path := fieldPath
	for {
		if rule, ok := fields[path]; ok {
			return rule, true
		}
		idx := strings.LastIndexByte(path, '.')
		if idx < 0 {
			break
		}
		path = path[:idx]
	}
	if rule, ok := fields[""]; ok {
		return rule, true
	}
	return fieldRule{}, false
}

func evalCondition(expression string, state SectionData) bool {
	program, ok := conditionPrograms[expression]
	if !ok {
		return false
	}
	env := state
	if env == nil {
		env = SectionData{}
	}
	out, err := expr.Run(program, map[string]any(env))
	if err != nil {
		return false
	}
	result, _ := out.(bool)
	return result
}

// sectionAdminOnly reports whether the whole section is gated behind admin.
func sectionAdminOnly(sectionID SectionID) bool {
	rule, ok := accessTable[sectionID][""]
	return ok && rule.AdminOnly
}

// stripRestricted returns a copy of the draft with every field the role may
// not edit removed. The policy table is advisory for presentation, but this
// strip runs on every submit so a crafted draft cannot smuggle gated fields.
func stripRestricted(sectionID SectionID, draft SectionData, role string) SectionData {
	if role == RoleAdmin {
		return cloneSection(draft)
	}
	out := cloneSection(draft)
	for path, rule := range accessTable[sectionID] {
		if path == "" || !rule.AdminOnly {
			continue
		}
		removePath(out, path)
	}
	return out
}
