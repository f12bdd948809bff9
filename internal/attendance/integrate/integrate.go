// Package integrate joins punches, shift assignments and the driver roster
// into one record per account per day. Build is pure: the same inputs give
// the same output regardless of input order.
package integrate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/punchflow/punchflow/internal/attendance/domain"
	"github.com/punchflow/punchflow/pkg/errors"
)

type dayKey struct {
	account string
	date    domain.CalendarDate
}

// Build left-joins shifts and drivers onto punches. Punches whose date or
// time never converted cannot be placed on a day and are reported instead.
// When an account has several shift assignments the one with the lowest
// SourceOrder is used and the rest are reported.
func Build(punches []domain.PunchRecord, shifts []domain.ShiftAssignment, drivers []domain.DriverRosterEntry) ([]domain.IntegratedDailyRecord, []domain.Diagnostic) {
	var diags []domain.Diagnostic

	shiftOf, shiftDiags := resolveShifts(shifts)
	diags = append(diags, shiftDiags...)

	driverAccounts := make(map[string]bool)
	driverEmployees := make(map[string]bool)
	for _, d := range drivers {
		if !d.IsDriver {
			continue
		}
		if d.AccountID != "" {
			driverAccounts[d.AccountID] = true
		}
		if d.EmployeeID != "" {
			driverEmployees[d.EmployeeID] = true
		}
	}

	days := make(map[dayKey]*domain.IntegratedDailyRecord)
	for i, p := range punches {
		date, err := domain.ParseCalendarDate(p.PunchDate)
		if err != nil {
			diags = append(diags, unusable(i, p, domain.FieldPunchDate, p.PunchDate))
			continue
		}
		tm, err := domain.ParseTimeOfDay(p.PunchTime)
		if err != nil {
			diags = append(diags, unusable(i, p, domain.FieldPunchTime, p.PunchTime))
			continue
		}

		k := dayKey{account: p.AccountID, date: date}
		rec, ok := days[k]
		if !ok {
			rec = &domain.IntegratedDailyRecord{AccountID: p.AccountID, PunchDate: date}
			days[k] = rec
		}
		rec.PunchTimes = append(rec.PunchTimes, tm)
		if rec.EmployeeID == "" {
			rec.EmployeeID = p.EmployeeID
		}
		if rec.Name == "" {
			rec.Name = p.Name
		}
	}

	records := make([]domain.IntegratedDailyRecord, 0, len(days))
	for _, rec := range days {
		if s, ok := shiftOf[rec.AccountID]; ok {
			class := s.ShiftClass
			rec.ShiftClass = &class
			if s.EmployeeID != "" {
				rec.EmployeeID = s.EmployeeID
			}
			if s.Name != "" {
				rec.Name = s.Name
			}
		}
		rec.IsDriver = driverAccounts[rec.AccountID] || (rec.EmployeeID != "" && driverEmployees[rec.EmployeeID])

		sort.Slice(rec.PunchTimes, func(a, b int) bool {
			return rec.PunchTimes[a].Before(rec.PunchTimes[b])
		})
		records = append(records, *rec)
	}

	sort.Slice(records, func(a, b int) bool {
		if records[a].AccountID != records[b].AccountID {
			return records[a].AccountID < records[b].AccountID
		}
		return records[a].PunchDate.Time().Before(records[b].PunchDate.Time())
	})

	return records, diags
}

func resolveShifts(shifts []domain.ShiftAssignment) (map[string]domain.ShiftAssignment, []domain.Diagnostic) {
	ordered := make([]domain.ShiftAssignment, len(shifts))
	copy(ordered, shifts)
	sort.SliceStable(ordered, func(a, b int) bool {
		if ordered[a].SourceOrder != ordered[b].SourceOrder {
			return ordered[a].SourceOrder < ordered[b].SourceOrder
		}
		return ordered[a].ShiftClass < ordered[b].ShiftClass
	})

	chosen := make(map[string]domain.ShiftAssignment)
	dropped := make(map[string][]string)
	var accounts []string
	for _, s := range ordered {
		if s.AccountID == "" {
			continue
		}
		if _, ok := chosen[s.AccountID]; ok {
			if len(dropped[s.AccountID]) == 0 {
				accounts = append(accounts, s.AccountID)
			}
			dropped[s.AccountID] = append(dropped[s.AccountID], s.ShiftClass)
			continue
		}
		chosen[s.AccountID] = s
	}

	sort.Strings(accounts)
	diags := make([]domain.Diagnostic, 0, len(accounts))
	for _, account := range accounts {
		ie := &errors.IntegrationError{
			AccountID: account,
			Reason: fmt.Sprintf("%d shift assignments, using %q and ignoring %s",
				len(dropped[account])+1, chosen[account].ShiftClass, quoteAll(dropped[account])),
		}
		diags = append(diags, domain.Diagnostic{
			Entity:  domain.EntityShift,
			Row:     chosen[account].SourceOrder,
			Field:   domain.FieldShiftClass,
			Rule:    domain.RuleDuplicateShift,
			Value:   account,
			Message: ie.Error(),
		})
	}
	return chosen, diags
}

func unusable(i int, p domain.PunchRecord, f domain.Field, value string) domain.Diagnostic {
	return domain.Diagnostic{
		Entity:  domain.EntityPunch,
		Row:     -1,
		Field:   f,
		Rule:    domain.RuleUnusable,
		Value:   value,
		Message: fmt.Sprintf("punch %d of account %s excluded from integration: %s is not canonical", i, p.AccountID, f),
	}
}

func quoteAll(ss []string) string {
	q := make([]string, len(ss))
	for i, s := range ss {
		q[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(q, ", ")
}
