package repository

import (
	"context"
	"fmt"
)

// Relation names
const (
	TablePunch      = "punch"
	TableShift      = "shift_class"
	TableDriver     = "driver_list"
	TableIntegrated = "integrated_punch"
)

// Dates and times are TEXT so soft-validated rows can keep values that
// failed conversion. Canonical values sort correctly as text.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS punch (
		seq_no      BIGINT NOT NULL DEFAULT 0,
		emp_id      TEXT NOT NULL DEFAULT '',
		account_id  TEXT NOT NULL,
		name        TEXT NOT NULL DEFAULT '',
		punch_date  TEXT NOT NULL,
		punch_time  TEXT NOT NULL,
		gate_name   TEXT NOT NULL DEFAULT '',
		direction   TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (account_id, punch_date, punch_time, seq_no)
	)`,
	`CREATE TABLE IF NOT EXISTS shift_class (
		account_id    TEXT NOT NULL,
		shift_class   TEXT NOT NULL,
		emp_id        TEXT NOT NULL DEFAULT '',
		name          TEXT NOT NULL DEFAULT '',
		shift_id      TEXT NOT NULL DEFAULT '',
		source_order  INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (account_id, shift_class)
	)`,
	`CREATE TABLE IF NOT EXISTS driver_list (
		roster_key  TEXT PRIMARY KEY,
		account_id  TEXT NOT NULL DEFAULT '',
		emp_id      TEXT NOT NULL DEFAULT '',
		name        TEXT NOT NULL DEFAULT '',
		is_driver   BOOLEAN NOT NULL DEFAULT TRUE
	)`,
}

// EnsureSchema creates the source relations when they do not exist yet.
// The integrated relation is created by ReplaceIntegrated because its
// width depends on the data.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

func integratedDDL(slots int) string {
	ddl := `CREATE TABLE integrated_punch (
		account_id   TEXT NOT NULL,
		emp_id       TEXT NOT NULL DEFAULT '',
		name         TEXT NOT NULL DEFAULT '',
		shift_class  TEXT,
		punch_date   TEXT NOT NULL,
		is_driver    BOOLEAN NOT NULL DEFAULT FALSE,
		punch_count  INTEGER NOT NULL DEFAULT 0,
		last_punch   TEXT`
	for i := 1; i <= slots; i++ {
		ddl += fmt.Sprintf(",\n\t\tpunch_time_%d TEXT", i)
	}
	return ddl + ",\n\t\tPRIMARY KEY (account_id, punch_date)\n\t)"
}
