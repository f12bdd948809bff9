package domain_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/punchflow/punchflow/internal/attendance/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// CALENDAR
// ============================================================================

func TestNewCalendarDate(t *testing.T) {
	d, err := domain.NewCalendarDate(2024, time.February, 29)
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", d.String())
	assert.Equal(t, time.Thursday, d.Weekday())

	_, err = domain.NewCalendarDate(2025, time.February, 29)
	assert.Error(t, err)
	_, err = domain.NewCalendarDate(2025, 13, 1)
	assert.Error(t, err)
	_, err = domain.NewCalendarDate(2025, time.April, 0)
	assert.Error(t, err)
}

func TestParseCalendarDate(t *testing.T) {
	d, err := domain.ParseCalendarDate("2025-02-10")
	require.NoError(t, err)
	assert.Equal(t, domain.CalendarDate{Year: 2025, Month: time.February, Day: 10}, d)
	assert.False(t, d.IsZero())

	_, err = domain.ParseCalendarDate("1140210")
	assert.Error(t, err)
}

func TestCalendarDate_AddDays(t *testing.T) {
	d := domain.CalendarDate{Year: 2024, Month: time.February, Day: 28}
	assert.Equal(t, "2024-02-29", d.AddDays(1).String())
	assert.Equal(t, "2024-03-01", d.AddDays(2).String())
	assert.Equal(t, "2023-12-31", domain.CalendarDate{Year: 2024, Month: time.January, Day: 1}.AddDays(-1).String())
	assert.True(t, d.Before(d.AddDays(1)))
	assert.False(t, d.Before(d))
}

func TestTimeOfDay(t *testing.T) {
	a, err := domain.NewTimeOfDay(8, 30, 0)
	require.NoError(t, err)
	b, err := domain.ParseTimeOfDay("21:00:01")
	require.NoError(t, err)

	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.Equal(t, 30600, a.Seconds())
	assert.Equal(t, "21:00:01", b.String())

	_, err = domain.NewTimeOfDay(24, 0, 0)
	assert.Error(t, err)
	_, err = domain.NewTimeOfDay(0, 60, 0)
	assert.Error(t, err)
}

func TestIntegratedDailyRecord_JSON(t *testing.T) {
	rec := domain.IntegratedDailyRecord{
		AccountID:  "A001",
		PunchDate:  domain.CalendarDate{Year: 2025, Month: time.February, Day: 10},
		PunchTimes: []domain.TimeOfDay{{Hour: 8, Minute: 30}, {Hour: 17, Minute: 45, Second: 12}},
	}

	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"punch_date":"2025-02-10"`)
	assert.Contains(t, string(raw), `"punch_times":["08:30:00","17:45:12"]`)
	assert.Contains(t, string(raw), `"shift_class":null`)

	last, ok := rec.LastPunch()
	assert.True(t, ok)
	assert.Equal(t, "17:45:12", last.String())

	_, ok = domain.IntegratedDailyRecord{}.LastPunch()
	assert.False(t, ok)
}

// ============================================================================
// ROW PROJECTIONS
// ============================================================================

func TestFromRow(t *testing.T) {
	row := domain.Row{Index: 3, Values: map[domain.Field]string{
		domain.FieldSeqNo:      " 12 ",
		domain.FieldAccountID:  "A001",
		domain.FieldEmployeeID: "C1",
		domain.FieldShiftClass: "日班",
	}}

	p := domain.PunchFromRow(row)
	assert.Equal(t, int64(12), p.SeqNo)
	assert.Equal(t, "A001", p.AccountID)

	s := domain.ShiftFromRow(row)
	assert.Equal(t, 3, s.SourceOrder)
	assert.Equal(t, "日班", s.ShiftClass)

	d := domain.DriverFromRow(row)
	assert.Equal(t, "A001", d.RosterKey)
	assert.True(t, d.IsDriver)

	delete(row.Values, domain.FieldAccountID)
	assert.Equal(t, "C1", domain.DriverFromRow(row).RosterKey)
}

func TestFieldsOf(t *testing.T) {
	assert.True(t, domain.HasField(domain.EntityShift, domain.FieldShiftClass))
	assert.False(t, domain.HasField(domain.EntityPunch, domain.FieldShiftClass))
	assert.Nil(t, domain.FieldsOf("payroll"))
	assert.False(t, domain.Entity("payroll").Valid())
}

// ============================================================================
// RUN RESULT
// ============================================================================

func TestRunResult_Summary(t *testing.T) {
	r := domain.NewRunResult("run-1", time.Now(), "soft")
	r.Duration = 1500 * time.Millisecond
	r.Entities[domain.EntityPunch].Read = 5
	r.Entities[domain.EntityPunch].Loaded = 5
	r.Entities[domain.EntityDriver].Skipped = true
	r.Integrated = 2
	r.PunchSlots = 3
	for i := 0; i < 3; i++ {
		r.Diagnostics = append(r.Diagnostics, domain.Diagnostic{
			Entity: domain.EntityPunch, Row: i, Field: domain.FieldPunchTime, Rule: domain.RuleTime, Message: "bad", Value: "2460",
		})
	}
	r.Failures = append(r.Failures, domain.EntityFailure{Entity: domain.EntityShift, File: "shift.xlsx", Err: errors.New("boom")})

	out := r.Summary(2)
	assert.Contains(t, out, "run run-1 (soft mode) finished in 1.5s")
	assert.Contains(t, out, "punch  read=5 invalid=0 filtered=0 duplicates=0 loaded=5")
	assert.Contains(t, out, "driver skipped")
	assert.Contains(t, out, "integrated records=2 punch slots=3")
	assert.Contains(t, out, "FAILED shift (shift.xlsx): boom")
	assert.Contains(t, out, "3 diagnostics:")
	assert.Contains(t, out, `punch row 1 field punch_time [time] bad (value "2460")`)
	assert.Contains(t, out, "... and 1 more")
	assert.NotContains(t, out, "punch row 2")

	assert.False(t, r.Succeeded())
	assert.Len(t, r.DiagnosticsFor(domain.EntityPunch), 3)
	assert.Empty(t, r.DiagnosticsFor(domain.EntityShift))
}
