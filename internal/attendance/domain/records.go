package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Row is one standardized source row. Values holds mapped fields; Extra holds
// columns that had no mapping and never reach the store.
type Row struct {
	Index  int
	Sheet  string
	Line   int
	Values map[Field]string
	Extra  map[string]string
}

// Get returns the trimmed value for f or "".
func (r Row) Get(f Field) string {
	return strings.TrimSpace(r.Values[f])
}

// Set stores v under f.
func (r *Row) Set(f Field, v string) {
	if r.Values == nil {
		r.Values = make(map[Field]string)
	}
	r.Values[f] = v
}

// PunchRecord is one gate passage as stored in the punch relation. Date and
// time hold canonical text when they converted and the raw value otherwise.
type PunchRecord struct {
	SeqNo      int64  `db:"seq_no" json:"seq_no"`
	EmployeeID string `db:"emp_id" json:"emp_id"`
	AccountID  string `db:"account_id" json:"account_id"`
	Name       string `db:"name" json:"name"`
	PunchDate  string `db:"punch_date" json:"punch_date"`
	PunchTime  string `db:"punch_time" json:"punch_time"`
	GateName   string `db:"gate_name" json:"gate_name"`
	Direction  string `db:"direction" json:"direction"`
}

// ShiftAssignment links an account to a shift class. SourceOrder is the
// position of the row in the source so precedence survives the round trip
// through the store.
type ShiftAssignment struct {
	AccountID   string `db:"account_id" json:"account_id"`
	EmployeeID  string `db:"emp_id" json:"emp_id"`
	Name        string `db:"name" json:"name"`
	ShiftClass  string `db:"shift_class" json:"shift_class"`
	ShiftID     string `db:"shift_id" json:"shift_id"`
	SourceOrder int    `db:"source_order" json:"source_order"`
}

// DriverRosterEntry marks an employee as a driver by membership.
type DriverRosterEntry struct {
	RosterKey  string `db:"roster_key" json:"roster_key"`
	AccountID  string `db:"account_id" json:"account_id"`
	EmployeeID string `db:"emp_id" json:"emp_id"`
	Name       string `db:"name" json:"name"`
	IsDriver   bool   `db:"is_driver" json:"is_driver"`
}

// IntegratedDailyRecord is the per account per day view.
type IntegratedDailyRecord struct {
	AccountID  string       `json:"account_id"`
	EmployeeID string       `json:"emp_id"`
	Name       string       `json:"name"`
	ShiftClass *string      `json:"shift_class"`
	PunchDate  CalendarDate `json:"punch_date"`
	IsDriver   bool         `json:"is_driver"`
	PunchTimes []TimeOfDay  `json:"punch_times"`
}

// LastPunch returns the latest punch of the day.
func (r IntegratedDailyRecord) LastPunch() (TimeOfDay, bool) {
	if len(r.PunchTimes) == 0 {
		return TimeOfDay{}, false
	}
	return r.PunchTimes[len(r.PunchTimes)-1], true
}

// PunchFromRow projects a validated row onto the punch relation. Unparseable
// sequence numbers become 0; the validator has already reported them.
func PunchFromRow(r Row) PunchRecord {
	seq, _ := strconv.ParseInt(r.Get(FieldSeqNo), 10, 64)
	return PunchRecord{
		SeqNo:      seq,
		EmployeeID: r.Get(FieldEmployeeID),
		AccountID:  r.Get(FieldAccountID),
		Name:       r.Get(FieldName),
		PunchDate:  r.Get(FieldPunchDate),
		PunchTime:  r.Get(FieldPunchTime),
		GateName:   r.Get(FieldGateName),
		Direction:  r.Get(FieldDirection),
	}
}

func ShiftFromRow(r Row) ShiftAssignment {
	return ShiftAssignment{
		AccountID:   r.Get(FieldAccountID),
		EmployeeID:  r.Get(FieldEmployeeID),
		Name:        r.Get(FieldName),
		ShiftClass:  r.Get(FieldShiftClass),
		ShiftID:     r.Get(FieldShiftID),
		SourceOrder: r.Index,
	}
}

// DriverFromRow keys the entry by account id, falling back to employee id.
func DriverFromRow(r Row) DriverRosterEntry {
	e := DriverRosterEntry{
		AccountID:  r.Get(FieldAccountID),
		EmployeeID: r.Get(FieldEmployeeID),
		Name:       r.Get(FieldName),
		IsDriver:   true,
	}
	e.RosterKey = e.AccountID
	if e.RosterKey == "" {
		e.RosterKey = e.EmployeeID
	}
	return e
}

func (d CalendarDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}
