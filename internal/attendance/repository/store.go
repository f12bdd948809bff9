// Package repository persists the attendance relations. Source relations
// are upserted by natural key so reloading the same files is idempotent;
// the integrated relation is rebuilt from scratch on every run.
package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/punchflow/punchflow/internal/attendance/domain"
	"github.com/punchflow/punchflow/pkg/database"
	"github.com/punchflow/punchflow/pkg/logger"
)

// Store handles persistence of punches, shifts, drivers and the integrated view.
type Store struct {
	db     *database.DB
	logger *logger.Logger
}

// NewStore creates a new store
func NewStore(db *database.DB, log *logger.Logger) *Store {
	return &Store{db: db, logger: log.WithComponent("repository")}
}

// LoadResult reports what an upsert did. Duplicates holds the input
// positions that were collapsed into an earlier row with the same key.
type LoadResult struct {
	Loaded     int
	Duplicates []int
}

const upsertPunchQuery = `
	INSERT INTO punch (seq_no, emp_id, account_id, name, punch_date, punch_time, gate_name, direction)
	VALUES (:seq_no, :emp_id, :account_id, :name, :punch_date, :punch_time, :gate_name, :direction)
	ON CONFLICT (account_id, punch_date, punch_time, seq_no) DO UPDATE SET
		emp_id = excluded.emp_id,
		name = excluded.name,
		gate_name = excluded.gate_name,
		direction = excluded.direction
`

const upsertShiftQuery = `
	INSERT INTO shift_class (account_id, shift_class, emp_id, name, shift_id, source_order)
	VALUES (:account_id, :shift_class, :emp_id, :name, :shift_id, :source_order)
	ON CONFLICT (account_id, shift_class) DO UPDATE SET
		emp_id = excluded.emp_id,
		name = excluded.name,
		shift_id = excluded.shift_id,
		source_order = excluded.source_order
`

const upsertDriverQuery = `
	INSERT INTO driver_list (roster_key, account_id, emp_id, name, is_driver)
	VALUES (:roster_key, :account_id, :emp_id, :name, :is_driver)
	ON CONFLICT (roster_key) DO UPDATE SET
		account_id = excluded.account_id,
		emp_id = excluded.emp_id,
		name = excluded.name,
		is_driver = excluded.is_driver
`

// UpsertPunches writes punches in one transaction.
func (s *Store) UpsertPunches(ctx context.Context, punches []domain.PunchRecord) (*LoadResult, error) {
	return upsert(ctx, s, TablePunch, upsertPunchQuery, punches, func(p domain.PunchRecord) string {
		return fmt.Sprintf("%s|%s|%s|%d", p.AccountID, p.PunchDate, p.PunchTime, p.SeqNo)
	})
}

// UpsertShifts writes shift assignments in one transaction.
func (s *Store) UpsertShifts(ctx context.Context, shifts []domain.ShiftAssignment) (*LoadResult, error) {
	return upsert(ctx, s, TableShift, upsertShiftQuery, shifts, func(a domain.ShiftAssignment) string {
		return a.AccountID + "|" + a.ShiftClass
	})
}

// UpsertDrivers writes the driver roster in one transaction.
func (s *Store) UpsertDrivers(ctx context.Context, drivers []domain.DriverRosterEntry) (*LoadResult, error) {
	return upsert(ctx, s, TableDriver, upsertDriverQuery, drivers, func(d domain.DriverRosterEntry) string {
		return d.RosterKey
	})
}

// upsert collapses in-batch duplicates (first occurrence kept) and writes the
// rest. Any failed statement rolls back the whole entity.
func upsert[T any](ctx context.Context, s *Store, relation, query string, records []T, key func(T) string) (*LoadResult, error) {
	res := &LoadResult{}
	seen := make(map[string]struct{}, len(records))
	batch := make([]T, 0, len(records))
	for i, rec := range records {
		k := key(rec)
		if _, dup := seen[k]; dup {
			res.Duplicates = append(res.Duplicates, i)
			continue
		}
		seen[k] = struct{}{}
		batch = append(batch, rec)
	}

	if len(batch) == 0 {
		return res, nil
	}

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		for i := range batch {
			if _, err := tx.NamedExecContext(ctx, query, batch[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if appErr := database.MapError(relation, err); appErr != nil {
			return nil, appErr
		}
		return nil, fmt.Errorf("failed to load %s: %w", relation, err)
	}

	res.Loaded = len(batch)
	s.logger.Debug().
		Str("relation", relation).
		Int("loaded", res.Loaded).
		Int("duplicates", len(res.Duplicates)).
		Msg("relation upserted")

	return res, nil
}

// ListPunches returns every stored punch in key order.
func (s *Store) ListPunches(ctx context.Context) ([]domain.PunchRecord, error) {
	var punches []domain.PunchRecord
	query := `
		SELECT seq_no, emp_id, account_id, name, punch_date, punch_time, gate_name, direction
		FROM punch
		ORDER BY account_id, punch_date, punch_time, seq_no
	`
	if err := s.db.SelectContext(ctx, &punches, query); err != nil {
		return nil, err
	}
	return punches, nil
}

// ListShifts returns shift assignments in source order.
func (s *Store) ListShifts(ctx context.Context) ([]domain.ShiftAssignment, error) {
	var shifts []domain.ShiftAssignment
	query := `
		SELECT account_id, shift_class, emp_id, name, shift_id, source_order
		FROM shift_class
		ORDER BY source_order, account_id, shift_class
	`
	if err := s.db.SelectContext(ctx, &shifts, query); err != nil {
		return nil, err
	}
	return shifts, nil
}

// ListDrivers returns the roster.
func (s *Store) ListDrivers(ctx context.Context) ([]domain.DriverRosterEntry, error) {
	var drivers []domain.DriverRosterEntry
	query := `
		SELECT roster_key, account_id, emp_id, name, is_driver
		FROM driver_list
		ORDER BY roster_key
	`
	if err := s.db.SelectContext(ctx, &drivers, query); err != nil {
		return nil, err
	}
	return drivers, nil
}
