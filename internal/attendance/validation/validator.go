// Package validation checks standardized rows against declarative field
// rules. By default it never removes rows: every violation becomes a
// diagnostic and the dataset flows on unchanged apart from canonicalized
// values. Hard mode drops rows that produced any diagnostic.
package validation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/punchflow/punchflow/internal/attendance/domain"
	"github.com/punchflow/punchflow/internal/attendance/normalize"
)

// Mode selects whether invalid rows are kept.
type Mode string

const (
	ModeSoft Mode = "soft"
	ModeHard Mode = "hard"
)

// ParseMode accepts "soft" and "hard"; anything else is an error.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeSoft, "":
		return ModeSoft, nil
	case ModeHard:
		return ModeHard, nil
	}
	return "", fmt.Errorf("unknown validation mode %q", s)
}

// Options tune a RuleSet.
type Options struct {
	Mode  Mode
	Dates normalize.DateOptions
}

// Dataset is the validator's output.
type Dataset struct {
	Entity domain.Entity
	Rows   []domain.Row
	// Invalid counts rows with at least one diagnostic.
	Invalid int
	// Filtered counts rows dropped in hard mode.
	Filtered int
}

// RuleSet validates rows of one entity.
type RuleSet struct {
	entity domain.Entity
	rules  []Rule
	keys   []domain.Field
	opts   Options
}

var validate = validator.New()

// NewRuleSet compiles rules. Constraint tags are exercised once here so a
// malformed tag fails at startup instead of panicking mid-run.
func NewRuleSet(entity domain.Entity, rules []Rule, opts Options) (*RuleSet, error) {
	if opts.Mode == "" {
		opts.Mode = ModeSoft
	}
	for _, r := range rules {
		if !domain.HasField(entity, r.Field) {
			return nil, fmt.Errorf("rule for unknown %s field %q", entity, r.Field)
		}
		if r.Type == TypeEnum && len(r.Allowed) == 0 {
			return nil, fmt.Errorf("enum rule for %q has no allowed values", r.Field)
		}
		if err := checkTag(r.Constraint); err != nil {
			return nil, fmt.Errorf("rule for %q: %w", r.Field, err)
		}
	}
	return &RuleSet{entity: entity, rules: rules, keys: KeyFields(entity), opts: opts}, nil
}

func checkTag(tag string) (err error) {
	if tag == "" {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid constraint %q: %v", tag, r)
		}
	}()
	_ = validate.Var("", tag)
	return nil
}

// Entity returns the entity the rules apply to.
func (rs *RuleSet) Entity() domain.Entity {
	return rs.entity
}

// Mode returns whether invalid rows are kept.
func (rs *RuleSet) Mode() Mode {
	return rs.opts.Mode
}

// Validate applies every rule to every row. The input rows are not modified.
func (rs *RuleSet) Validate(rows []domain.Row) (*Dataset, []domain.Diagnostic) {
	ds := &Dataset{Entity: rs.entity, Rows: make([]domain.Row, 0, len(rows))}
	var diags []domain.Diagnostic

	for _, in := range rows {
		row := in
		row.Values = make(map[domain.Field]string, len(in.Values))
		for k, v := range in.Values {
			row.Values[k] = v
		}

		found := rs.validateRow(&row)
		diags = append(diags, found...)

		if len(found) > 0 {
			ds.Invalid++
			if rs.opts.Mode == ModeHard {
				ds.Filtered++
				continue
			}
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds, diags
}

func (rs *RuleSet) validateRow(row *domain.Row) []domain.Diagnostic {
	var diags []domain.Diagnostic
	report := func(f domain.Field, rule, value, msg string) {
		diags = append(diags, domain.Diagnostic{
			Entity:  rs.entity,
			Row:     row.Index,
			Sheet:   row.Sheet,
			Line:    row.Line,
			Field:   f,
			Rule:    rule,
			Value:   value,
			Message: msg,
		})
	}

	for _, r := range rs.rules {
		raw := row.Get(r.Field)
		if raw == "" {
			if r.Required {
				report(r.Field, domain.RuleRequired, "", "value is required")
			}
			continue
		}

		canonical, typed, rule, err := rs.coerce(r, raw)
		if err != nil {
			report(r.Field, rule, raw, err.Error())
			continue
		}
		row.Set(r.Field, canonical)

		if r.Constraint != "" {
			if err := validate.Var(typed, r.Constraint); err != nil {
				report(r.Field, domain.RuleConstraint, raw, constraintMessage(err))
			}
		}
	}

	if len(rs.keys) > 0 {
		present := false
		for _, f := range rs.keys {
			if row.Get(f) != "" {
				present = true
				break
			}
		}
		if !present {
			report(rs.keys[0], domain.RuleRequired, "", fmt.Sprintf("one of %s is required", joinFields(rs.keys)))
		}
	}

	return diags
}

// coerce decodes raw per the rule type. It returns the canonical text, the
// typed value constraints are checked against, and on failure the violated rule.
func (rs *RuleSet) coerce(r Rule, raw string) (string, any, string, error) {
	switch r.Type {
	case TypeInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return "", nil, domain.RuleInteger, fmt.Errorf("not an integer")
		}
		return strconv.FormatInt(n, 10), n, "", nil
	case TypeDate:
		d, err := normalize.CanonicalDate(raw, rs.opts.Dates)
		if err != nil {
			return "", nil, domain.RuleDate, err
		}
		return d.String(), d.String(), "", nil
	case TypeTime:
		t, err := normalize.CanonicalTime(raw)
		if err != nil {
			return "", nil, domain.RuleTime, err
		}
		return t.String(), t.String(), "", nil
	case TypeEnum:
		v, ok := r.Allowed[foldValue(raw)]
		if !ok {
			return "", nil, domain.RuleEnum, fmt.Errorf("not one of the accepted values")
		}
		return v, v, "", nil
	}
	return raw, raw, "", nil
}

func constraintMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}
	e := verrs[0]
	switch e.Tag() {
	case "max":
		return "must be at most " + e.Param() + " characters"
	case "min":
		return "must be at least " + e.Param() + " characters"
	case "gte":
		return "must be at least " + e.Param()
	case "lte":
		return "must be at most " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	case "alphanum":
		return "must be alphanumeric"
	default:
		return "failed " + e.Tag() + " check"
	}
}

func joinFields(fields []domain.Field) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
