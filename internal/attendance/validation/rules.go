package validation

import (
	"strings"

	"github.com/punchflow/punchflow/internal/attendance/domain"
)

// Type is the semantic type a field must decode to.
type Type string

const (
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeDate    Type = "date"
	TypeTime    Type = "time"
	TypeEnum    Type = "enum"
)

// Rule declares what a valid value of one field looks like.
type Rule struct {
	Field    domain.Field
	Type     Type
	Required bool
	// Constraint is a go-playground/validator tag checked against the
	// canonical value, e.g. "max=64".
	Constraint string
	// Allowed maps accepted spellings (case folded) to the canonical enum value.
	Allowed map[string]string
}

// Overrides carries the per entity layout settings that refine the
// built-in rules.
type Overrides struct {
	Required         []domain.Field
	DateFields       []domain.Field
	TimeFields       []domain.Field
	DirectionAliases map[string]string
}

// DefaultRules returns the rules for an entity with overrides applied.
func DefaultRules(entity domain.Entity, o Overrides) []Rule {
	var rules []Rule
	switch entity {
	case domain.EntityPunch:
		rules = []Rule{
			{Field: domain.FieldSeqNo, Type: TypeInteger, Constraint: "gte=0"},
			{Field: domain.FieldEmployeeID, Type: TypeString, Constraint: "max=32"},
			{Field: domain.FieldAccountID, Type: TypeString, Required: true, Constraint: "max=64"},
			{Field: domain.FieldName, Type: TypeString, Constraint: "max=100"},
			{Field: domain.FieldPunchDate, Type: TypeDate, Required: true},
			{Field: domain.FieldPunchTime, Type: TypeTime, Required: true},
			{Field: domain.FieldGateName, Type: TypeString, Constraint: "max=100"},
			{Field: domain.FieldDirection, Type: TypeEnum, Allowed: directionValues(o.DirectionAliases)},
		}
	case domain.EntityShift:
		rules = []Rule{
			{Field: domain.FieldAccountID, Type: TypeString, Required: true, Constraint: "max=64"},
			{Field: domain.FieldShiftClass, Type: TypeString, Required: true, Constraint: "max=64"},
			{Field: domain.FieldEmployeeID, Type: TypeString, Constraint: "max=32"},
			{Field: domain.FieldName, Type: TypeString, Constraint: "max=100"},
			{Field: domain.FieldShiftID, Type: TypeString, Constraint: "max=64"},
		}
	case domain.EntityDriver:
		rules = []Rule{
			{Field: domain.FieldAccountID, Type: TypeString, Constraint: "max=64"},
			{Field: domain.FieldEmployeeID, Type: TypeString, Constraint: "max=32"},
			{Field: domain.FieldName, Type: TypeString, Constraint: "max=100"},
		}
	}

	// Key fields stay optional per row: any one of them addresses the row,
	// and a required column only has to exist in the header.
	keys := KeyFields(entity)
	for i := range rules {
		f := rules[i].Field
		if contains(o.Required, f) && !contains(keys, f) {
			rules[i].Required = true
		}
		if contains(o.DateFields, f) {
			rules[i].Type = TypeDate
		}
		if contains(o.TimeFields, f) {
			rules[i].Type = TypeTime
		}
	}
	return rules
}

// KeyFields returns the fields of which at least one must be present for a
// row to be addressable.
func KeyFields(entity domain.Entity) []domain.Field {
	if entity == domain.EntityDriver {
		return []domain.Field{domain.FieldAccountID, domain.FieldEmployeeID}
	}
	return nil
}

func directionValues(aliases map[string]string) map[string]string {
	allowed := map[string]string{
		string(domain.DirectionIn):  string(domain.DirectionIn),
		string(domain.DirectionOut): string(domain.DirectionOut),
	}
	for spelling, canonical := range aliases {
		allowed[foldValue(spelling)] = canonical
	}
	return allowed
}

func foldValue(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func contains(fields []domain.Field, f domain.Field) bool {
	for _, x := range fields {
		if x == f {
			return true
		}
	}
	return false
}
