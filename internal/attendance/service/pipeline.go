// Package service runs the attendance ETL: read, standardize, validate and
// load each source, then rebuild the integrated view.
package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/punchflow/punchflow/internal/attendance/domain"
	"github.com/punchflow/punchflow/internal/attendance/integrate"
	"github.com/punchflow/punchflow/internal/attendance/reader"
	"github.com/punchflow/punchflow/internal/attendance/repository"
	"github.com/punchflow/punchflow/pkg/errors"
	"github.com/punchflow/punchflow/pkg/logger"
)

// ProgressFunc receives human readable status lines. It is called
// synchronously from Run; nil disables progress reporting.
type ProgressFunc func(status string)

// Sources names the input files of one run. DriverFile may be empty.
type Sources struct {
	PunchFile  string
	ShiftFile  string
	DriverFile string
}

// Store is the persistence the pipeline needs.
type Store interface {
	EnsureSchema(ctx context.Context) error
	UpsertPunches(ctx context.Context, punches []domain.PunchRecord) (*repository.LoadResult, error)
	UpsertShifts(ctx context.Context, shifts []domain.ShiftAssignment) (*repository.LoadResult, error)
	UpsertDrivers(ctx context.Context, drivers []domain.DriverRosterEntry) (*repository.LoadResult, error)
	ListPunches(ctx context.Context) ([]domain.PunchRecord, error)
	ListShifts(ctx context.Context) ([]domain.ShiftAssignment, error)
	ListDrivers(ctx context.Context) ([]domain.DriverRosterEntry, error)
	ReplaceIntegrated(ctx context.Context, records []domain.IntegratedDailyRecord) (int, error)
}

// Notifier is told about every run, finished or aborted.
type Notifier interface {
	RunFinished(ctx context.Context, res *domain.RunResult)
	RunAborted(ctx context.Context, res *domain.RunResult, cause error)
}

// Pipeline wires the stages together for one configuration.
type Pipeline struct {
	store    Store
	plans    map[domain.Entity]*Plan
	mode     string
	notifier Notifier
	progress ProgressFunc
	logger   *logger.Logger
	now      func() time.Time
}

// NewPipeline creates a pipeline. plans usually come from CompilePlans.
func NewPipeline(store Store, plans map[domain.Entity]*Plan, notifier Notifier, log *logger.Logger) *Pipeline {
	mode := "soft"
	if p, ok := plans[domain.EntityPunch]; ok {
		mode = string(p.Rules.Mode())
	}
	return &Pipeline{
		store:    store,
		plans:    plans,
		mode:     mode,
		notifier: notifier,
		logger:   log.WithComponent("pipeline"),
		now:      time.Now,
	}
}

// OnProgress sets the progress callback.
func (p *Pipeline) OnProgress(fn ProgressFunc) {
	p.progress = fn
}

// Run loads every source and rebuilds the integrated view. A failing
// entity is recorded and the others still load; integration always runs
// over whatever the store holds. The returned error joins the entity
// failures and is nil when every entity loaded.
func (p *Pipeline) Run(ctx context.Context, src Sources) (*domain.RunResult, error) {
	started := p.now()
	res := domain.NewRunResult(uuid.NewString(), started, p.mode)
	log := p.logger.WithRunID(res.RunID)

	log.Info().
		Str("punch_file", src.PunchFile).
		Str("shift_file", src.ShiftFile).
		Str("driver_file", src.DriverFile).
		Str("mode", p.mode).
		Msg("run started")

	if err := p.store.EnsureSchema(ctx); err != nil {
		res.Duration = p.now().Sub(started)
		err = fmt.Errorf("prepare store: %w", err)
		log.Error().Err(err).Msg("run aborted")
		if p.notifier != nil {
			p.notifier.RunAborted(ctx, res, err)
		}
		p.report(log, fmt.Sprintf("aborted: %v", err))
		return res, err
	}

	files := map[domain.Entity]string{
		domain.EntityPunch:  src.PunchFile,
		domain.EntityShift:  src.ShiftFile,
		domain.EntityDriver: src.DriverFile,
	}
	for _, entity := range domain.Entities {
		plan, ok := p.plans[entity]
		if !ok {
			continue
		}
		path := files[entity]
		stats := res.Entities[entity]
		stats.Source = path

		if plan.Optional && !exists(path) {
			stats.Skipped = true
			p.report(log, fmt.Sprintf("%s source %q not found, skipping", entity, path))
			continue
		}

		if err := p.load(ctx, plan, path, res); err != nil {
			res.Failures = append(res.Failures, domain.EntityFailure{Entity: entity, File: path, Err: err})
			log.Error().Err(err).Str("entity", string(entity)).Msg("entity load failed")
			p.report(log, fmt.Sprintf("%s failed: %v", entity, err))
		}
	}

	if err := p.integrate(ctx, res); err != nil {
		res.Failures = append(res.Failures, domain.EntityFailure{Entity: repository.TableIntegrated, File: repository.TableIntegrated, Err: err})
		log.Error().Err(err).Msg("integration failed")
		p.report(log, fmt.Sprintf("integration failed: %v", err))
	}

	res.Duration = p.now().Sub(started)
	log.Info().
		Dur("duration", res.Duration).
		Int("integrated", res.Integrated).
		Int("diagnostics", len(res.Diagnostics)).
		Int("failures", len(res.Failures)).
		Msg("run finished")

	if p.notifier != nil {
		p.notifier.RunFinished(ctx, res)
	}
	p.report(log, fmt.Sprintf("done: %d integrated records, %d diagnostics", res.Integrated, len(res.Diagnostics)))

	errs := make([]error, 0, len(res.Failures))
	for _, f := range res.Failures {
		errs = append(errs, f)
	}
	return res, errors.Join(errs...)
}

func (p *Pipeline) load(ctx context.Context, plan *Plan, path string, res *domain.RunResult) error {
	log := p.logger.WithRunID(res.RunID).WithEntity(string(plan.Entity))
	stats := res.Entities[plan.Entity]

	p.report(log, fmt.Sprintf("reading %s from %s", plan.Entity, path))
	wb, err := reader.Open(path, plan.Delimited)
	if err != nil {
		return err
	}
	table, err := reader.ReadTable(wb, plan.Layout, nil)
	if err != nil {
		return err
	}
	for _, sheet := range table.Unfiltered {
		p.report(log, fmt.Sprintf("%s sheet %q has no %s column, read without it", plan.Entity, sheet, plan.Layout.FilterColumn))
	}

	rows, err := plan.Mapping.Apply(table, plan.Required)
	if err != nil {
		return err
	}
	stats.Read = len(rows)

	p.report(log, fmt.Sprintf("validating %d %s rows", len(rows), plan.Entity))
	ds, diags := plan.Rules.Validate(rows)
	stats.Invalid = ds.Invalid
	stats.Filtered = ds.Filtered
	res.Diagnostics = append(res.Diagnostics, diags...)

	p.report(log, fmt.Sprintf("loading %d %s rows", len(ds.Rows), plan.Entity))
	loaded, kept, err := p.upsert(ctx, plan.Entity, ds.Rows)
	if err != nil {
		return err
	}

	stats.Loaded = loaded.Loaded
	stats.Duplicates = len(loaded.Duplicates)
	for _, i := range loaded.Duplicates {
		row := kept[i]
		res.Diagnostics = append(res.Diagnostics, domain.Diagnostic{
			Entity:  plan.Entity,
			Row:     row.Index,
			Sheet:   row.Sheet,
			Line:    row.Line,
			Rule:    domain.RuleDuplicateKey,
			Message: "duplicate natural key, first occurrence kept",
		})
	}

	log.Info().
		Int("read", stats.Read).
		Int("invalid", stats.Invalid).
		Int("filtered", stats.Filtered).
		Int("duplicates", stats.Duplicates).
		Int("loaded", stats.Loaded).
		Msg("entity loaded")
	return nil
}

// upsert projects rows onto the entity's relation. It returns the rows
// that were handed to the store so duplicate positions can be traced back.
func (p *Pipeline) upsert(ctx context.Context, entity domain.Entity, rows []domain.Row) (*repository.LoadResult, []domain.Row, error) {
	switch entity {
	case domain.EntityPunch:
		punches := make([]domain.PunchRecord, len(rows))
		for i, r := range rows {
			punches[i] = domain.PunchFromRow(r)
		}
		res, err := p.store.UpsertPunches(ctx, punches)
		return res, rows, err

	case domain.EntityShift:
		shifts := make([]domain.ShiftAssignment, len(rows))
		for i, r := range rows {
			shifts[i] = domain.ShiftFromRow(r)
		}
		res, err := p.store.UpsertShifts(ctx, shifts)
		return res, rows, err

	case domain.EntityDriver:
		// Rows without any key were reported by the validator and cannot be stored.
		kept := make([]domain.Row, 0, len(rows))
		drivers := make([]domain.DriverRosterEntry, 0, len(rows))
		for _, r := range rows {
			d := domain.DriverFromRow(r)
			if d.RosterKey == "" {
				continue
			}
			kept = append(kept, r)
			drivers = append(drivers, d)
		}
		res, err := p.store.UpsertDrivers(ctx, drivers)
		return res, kept, err
	}
	return nil, nil, fmt.Errorf("unknown entity %q", entity)
}

func (p *Pipeline) integrate(ctx context.Context, res *domain.RunResult) error {
	log := p.logger.WithRunID(res.RunID)
	p.report(log, "integrating punches, shifts and drivers")

	punches, err := p.store.ListPunches(ctx)
	if err != nil {
		return err
	}
	shifts, err := p.store.ListShifts(ctx)
	if err != nil {
		return err
	}
	drivers, err := p.store.ListDrivers(ctx)
	if err != nil {
		return err
	}

	records, diags := integrate.Build(punches, shifts, drivers)
	res.Diagnostics = append(res.Diagnostics, diags...)

	slots, err := p.store.ReplaceIntegrated(ctx, records)
	if err != nil {
		return err
	}
	res.Integrated = len(records)
	res.PunchSlots = slots
	return nil
}

func (p *Pipeline) report(log *logger.Logger, status string) {
	log.Debug().Msg(status)
	if p.progress != nil {
		p.progress(status)
	}
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
