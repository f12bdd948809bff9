package repository

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/punchflow/punchflow/internal/attendance/domain"
	"github.com/punchflow/punchflow/pkg/database"
)

// DateCount is one available date of the integrated view.
type DateCount struct {
	Date    domain.CalendarDate `json:"date"`
	Weekday string              `json:"weekday"`
	Records int                 `json:"records"`
}

// ReplaceIntegrated drops and recreates integrated_punch with one punch
// column per slot and writes records into it, all in one transaction.
// It returns the number of punch slots.
func (s *Store) ReplaceIntegrated(ctx context.Context, records []domain.IntegratedDailyRecord) (int, error) {
	slots := 0
	for _, r := range records {
		if len(r.PunchTimes) > slots {
			slots = len(r.PunchTimes)
		}
	}

	cols := []string{"account_id", "emp_id", "name", "shift_class", "punch_date", "is_driver", "punch_count", "last_punch"}
	for i := 1; i <= slots; i++ {
		cols = append(cols, "punch_time_"+strconv.Itoa(i))
	}
	insert := fmt.Sprintf("INSERT INTO integrated_punch (%s) VALUES (%s)",
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS integrated_punch"); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, integratedDDL(slots)); err != nil {
			return err
		}

		query := tx.Rebind(insert)
		for _, r := range records {
			args := make([]any, 0, len(cols))
			var shiftClass, last any
			if r.ShiftClass != nil {
				shiftClass = *r.ShiftClass
			}
			if t, ok := r.LastPunch(); ok {
				last = t.String()
			}
			args = append(args, r.AccountID, r.EmployeeID, r.Name, shiftClass,
				r.PunchDate.String(), r.IsDriver, len(r.PunchTimes), last)
			for i := 0; i < slots; i++ {
				if i < len(r.PunchTimes) {
					args = append(args, r.PunchTimes[i].String())
				} else {
					args = append(args, nil)
				}
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if appErr := database.MapError(TableIntegrated, err); appErr != nil {
			return 0, appErr
		}
		return 0, fmt.Errorf("failed to rebuild %s: %w", TableIntegrated, err)
	}

	s.logger.Debug().Int("records", len(records)).Int("slots", slots).Msg("integrated relation rebuilt")
	return slots, nil
}

// ListDates returns the dates present in the integrated view with their record counts.
func (s *Store) ListDates(ctx context.Context) ([]DateCount, error) {
	var rows []struct {
		Date  string `db:"punch_date"`
		Count int    `db:"records"`
	}
	query := `
		SELECT punch_date, COUNT(*) AS records
		FROM integrated_punch
		GROUP BY punch_date
		ORDER BY punch_date
	`
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}

	dates := make([]DateCount, 0, len(rows))
	for _, r := range rows {
		d, err := domain.ParseCalendarDate(r.Date)
		if err != nil {
			return nil, fmt.Errorf("corrupt punch_date %q: %w", r.Date, err)
		}
		dates = append(dates, DateCount{Date: d, Weekday: d.Weekday().String(), Records: r.Count})
	}
	return dates, nil
}

// ListByDate returns the records of one day ordered by shift class then employee id.
func (s *Store) ListByDate(ctx context.Context, date domain.CalendarDate) ([]domain.IntegratedDailyRecord, error) {
	return s.queryIntegrated(ctx, "WHERE punch_date = ?", date.String())
}

// ListIntegrated returns the whole integrated view.
func (s *Store) ListIntegrated(ctx context.Context) ([]domain.IntegratedDailyRecord, error) {
	return s.queryIntegrated(ctx, "")
}

// FullRange returns one record per account per day for every day between
// the earliest and latest punch date, ordered by account then date. Days
// without punches carry an empty punch list.
func (s *Store) FullRange(ctx context.Context) ([]domain.IntegratedDailyRecord, error) {
	records, err := s.queryIntegrated(ctx, "")
	if err != nil {
		return nil, err
	}
	return fillRange(records), nil
}

func fillRange(records []domain.IntegratedDailyRecord) []domain.IntegratedDailyRecord {
	if len(records) == 0 {
		return nil
	}

	first, last := records[0].PunchDate, records[0].PunchDate
	byAccount := make(map[string]map[domain.CalendarDate]domain.IntegratedDailyRecord)
	var accounts []string
	for _, r := range records {
		if r.PunchDate.Before(first) {
			first = r.PunchDate
		}
		if last.Before(r.PunchDate) {
			last = r.PunchDate
		}
		days, ok := byAccount[r.AccountID]
		if !ok {
			days = make(map[domain.CalendarDate]domain.IntegratedDailyRecord)
			byAccount[r.AccountID] = days
			accounts = append(accounts, r.AccountID)
		}
		days[r.PunchDate] = r
	}
	sort.Strings(accounts)

	span := int(last.Time().Sub(first.Time()).Hours()/24) + 1
	out := make([]domain.IntegratedDailyRecord, 0, len(accounts)*span)
	for _, account := range accounts {
		days := byAccount[account]
		// Identity fields come from the account's earliest record.
		var ident domain.IntegratedDailyRecord
		for d := first; !last.Before(d); d = d.AddDays(1) {
			if r, ok := days[d]; ok {
				ident = r
				break
			}
		}
		for d := first; !last.Before(d); d = d.AddDays(1) {
			if r, ok := days[d]; ok {
				out = append(out, r)
				continue
			}
			out = append(out, domain.IntegratedDailyRecord{
				AccountID:  ident.AccountID,
				EmployeeID: ident.EmployeeID,
				Name:       ident.Name,
				ShiftClass: ident.ShiftClass,
				PunchDate:  d,
				IsDriver:   ident.IsDriver,
				PunchTimes: []domain.TimeOfDay{},
			})
		}
	}
	return out
}

// NightMeal returns records whose last punch is strictly later than
// threshold. A zero date selects every date.
func (s *Store) NightMeal(ctx context.Context, date domain.CalendarDate, threshold domain.TimeOfDay) ([]domain.IntegratedDailyRecord, error) {
	if date.IsZero() {
		return s.queryIntegrated(ctx, "WHERE last_punch > ?", threshold.String())
	}
	return s.queryIntegrated(ctx, "WHERE punch_date = ? AND last_punch > ?", date.String(), threshold.String())
}

func (s *Store) queryIntegrated(ctx context.Context, where string, args ...any) ([]domain.IntegratedDailyRecord, error) {
	query := s.db.Rebind(fmt.Sprintf(`
		SELECT * FROM integrated_punch
		%s
		ORDER BY punch_date, COALESCE(shift_class, ''), emp_id, account_id
	`, where))

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var records []domain.IntegratedDailyRecord
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, err
		}
		rec, err := decodeIntegrated(cols, values)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// decodeIntegrated maps a row of unknown width back to a record. Slot
// columns are read in numeric order and NULL slots end the list.
func decodeIntegrated(cols []string, values []any) (domain.IntegratedDailyRecord, error) {
	var rec domain.IntegratedDailyRecord
	slots := map[int]string{}
	for i, col := range cols {
		v := values[i]
		switch col {
		case "account_id":
			rec.AccountID = asString(v)
		case "emp_id":
			rec.EmployeeID = asString(v)
		case "name":
			rec.Name = asString(v)
		case "shift_class":
			if v != nil {
				sc := asString(v)
				rec.ShiftClass = &sc
			}
		case "punch_date":
			d, err := domain.ParseCalendarDate(asString(v))
			if err != nil {
				return rec, fmt.Errorf("corrupt punch_date %q: %w", asString(v), err)
			}
			rec.PunchDate = d
		case "is_driver":
			rec.IsDriver = asBool(v)
		default:
			if n, ok := strings.CutPrefix(col, "punch_time_"); ok && v != nil {
				idx, err := strconv.Atoi(n)
				if err == nil {
					slots[idx] = asString(v)
				}
			}
		}
	}

	for i := 1; ; i++ {
		raw, ok := slots[i]
		if !ok {
			break
		}
		t, err := domain.ParseTimeOfDay(raw)
		if err != nil {
			return rec, fmt.Errorf("corrupt punch_time_%d %q: %w", i, raw, err)
		}
		rec.PunchTimes = append(rec.PunchTimes, t)
	}
	return rec, nil
}

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func asBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case int64:
		return x != 0
	case string:
		b, _ := strconv.ParseBool(x)
		return b
	case []byte:
		b, _ := strconv.ParseBool(string(x))
		return b
	}
	return false
}
