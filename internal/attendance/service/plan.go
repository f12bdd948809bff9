package service

import (
	"fmt"

	"github.com/punchflow/punchflow/internal/attendance/domain"
	"github.com/punchflow/punchflow/internal/attendance/normalize"
	"github.com/punchflow/punchflow/internal/attendance/reader"
	"github.com/punchflow/punchflow/internal/attendance/standardize"
	"github.com/punchflow/punchflow/internal/attendance/validation"
	"github.com/punchflow/punchflow/pkg/config"
)

// Plan is the compiled configuration for one entity.
type Plan struct {
	Entity    domain.Entity
	Layout    reader.Layout
	Delimited reader.DelimitedOptions
	Mapping   *standardize.Mapping
	Required  []domain.Field
	Rules     *validation.RuleSet
	// Optional sources may be absent without failing the run.
	Optional bool
}

// CompilePlans validates every layout and mapping up front so a bad
// configuration fails before any file is read.
func CompilePlans(entities config.EntitiesConfig, v config.ValidationConfig) (map[domain.Entity]*Plan, error) {
	mode, err := validation.ParseMode(v.Mode)
	if err != nil {
		return nil, err
	}
	opts := validation.Options{
		Mode:  mode,
		Dates: normalize.DateOptions{AcceptGregorian: v.AcceptGregorianDates},
	}

	layouts := map[domain.Entity]config.LayoutConfig{
		domain.EntityPunch:  entities.Punch,
		domain.EntityShift:  entities.Shift,
		domain.EntityDriver: entities.Driver,
	}

	plans := make(map[domain.Entity]*Plan, len(layouts))
	for _, entity := range domain.Entities {
		lc := layouts[entity]
		plan, err := compilePlan(entity, lc, v.DirectionAliases, opts)
		if err != nil {
			return nil, fmt.Errorf("%s layout: %w", entity, err)
		}
		plans[entity] = plan
	}
	return plans, nil
}

func compilePlan(entity domain.Entity, lc config.LayoutConfig, aliases map[string]string, opts validation.Options) (*Plan, error) {
	mapping, err := standardize.NewMapping(entity, lc.ColumnMapping)
	if err != nil {
		return nil, err
	}
	required, err := standardize.ParseFields(entity, lc.RequiredColumns)
	if err != nil {
		return nil, err
	}
	dateFields, err := standardize.ParseFields(entity, lc.DateFields)
	if err != nil {
		return nil, err
	}
	timeFields, err := standardize.ParseFields(entity, lc.TimeFields)
	if err != nil {
		return nil, err
	}

	rules := validation.DefaultRules(entity, validation.Overrides{
		Required:         required,
		DateFields:       dateFields,
		TimeFields:       timeFields,
		DirectionAliases: aliases,
	})
	ruleSet, err := validation.NewRuleSet(entity, rules, opts)
	if err != nil {
		return nil, err
	}

	return &Plan{
		Entity: entity,
		Layout: reader.Layout{
			SkipRows:      lc.SkipRows,
			HeaderRow:     lc.HeaderRow,
			Sheets:        lc.Sheets,
			FilterColumn:  lc.FilterColumn,
			RemoveUnnamed: lc.RemoveUnnamedColumns,
		},
		Delimited: reader.DelimitedOptions{Delimiter: lc.Delimiter, Encoding: lc.Encoding},
		Mapping:   mapping,
		Required:  required,
		Rules:     ruleSet,
		Optional:  entity == domain.EntityDriver,
	}, nil
}
