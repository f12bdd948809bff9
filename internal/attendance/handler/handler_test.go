package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/punchflow/punchflow/internal/attendance/domain"
	"github.com/punchflow/punchflow/internal/attendance/handler"
	"github.com/punchflow/punchflow/internal/attendance/repository"
	"github.com/punchflow/punchflow/pkg/httputil"
	"github.com/punchflow/punchflow/pkg/logger"
	"github.com/punchflow/punchflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	dates   []repository.DateCount
	records []domain.IntegratedDailyRecord
	err     error

	gotDate      domain.CalendarDate
	gotThreshold domain.TimeOfDay
}

func (f *fakeStore) ListDates(context.Context) ([]repository.DateCount, error) {
	return f.dates, f.err
}

func (f *fakeStore) ListByDate(_ context.Context, date domain.CalendarDate) ([]domain.IntegratedDailyRecord, error) {
	f.gotDate = date
	return f.records, f.err
}

func (f *fakeStore) NightMeal(_ context.Context, date domain.CalendarDate, threshold domain.TimeOfDay) ([]domain.IntegratedDailyRecord, error) {
	f.gotDate = date
	f.gotThreshold = threshold
	return f.records, f.err
}

func (f *fakeStore) FullRange(context.Context) ([]domain.IntegratedDailyRecord, error) {
	return f.records, f.err
}

type envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *httputil.ErrorBody `json:"error"`
	Meta    *httputil.Meta      `json:"meta"`
}

var cutoff = domain.TimeOfDay{Hour: 21}

func newRouter(store *fakeStore) http.Handler {
	h := handler.NewAttendanceHandler(store, cutoff, logger.Nop())
	r := chi.NewRouter()
	r.Use(httputil.RequestID)
	h.Routes(r)
	return r
}

func record(account string, times ...domain.TimeOfDay) domain.IntegratedDailyRecord {
	class := "日班"
	return domain.IntegratedDailyRecord{
		AccountID:  account,
		EmployeeID: "C" + account,
		Name:       "王小明",
		ShiftClass: &class,
		PunchDate:  domain.CalendarDate{Year: 2025, Month: 2, Day: 10},
		PunchTimes: times,
	}
}

// ============================================================================
// DATES
// ============================================================================

func TestDates(t *testing.T) {
	store := &fakeStore{dates: []repository.DateCount{
		{Date: domain.CalendarDate{Year: 2025, Month: 2, Day: 10}, Weekday: "Monday", Records: 3},
	}}

	rr := testutil.ExecuteRequest(newRouter(store), testutil.NewHTTPRequest(http.MethodGet, "/dates", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertBodyContains(t, rr, `"date":"2025-02-10"`)
	testutil.AssertBodyContains(t, rr, `"weekday":"Monday"`)

	var body envelope
	testutil.ParseJSONBody(t, rr, &body)
	assert.True(t, body.Success)
	require.NotNil(t, body.Meta)
	assert.Equal(t, 1, body.Meta.Total)
}

func TestDates_EmptyViewIsAnEmptyList(t *testing.T) {
	rr := testutil.ExecuteRequest(newRouter(&fakeStore{}), testutil.NewHTTPRequest(http.MethodGet, "/dates", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var body envelope
	testutil.ParseJSONBody(t, rr, &body)
	assert.JSONEq(t, `[]`, string(body.Data))
}

// ============================================================================
// RECORDS
// ============================================================================

func TestRecords(t *testing.T) {
	store := &fakeStore{records: []domain.IntegratedDailyRecord{
		record("A001", domain.TimeOfDay{Hour: 8, Minute: 30}, domain.TimeOfDay{Hour: 17, Minute: 30}),
	}}

	req := testutil.WithRequestID(testutil.NewHTTPRequest(http.MethodGet, "/records?date=2025-02-10", nil), "req-1")
	rr := testutil.ExecuteRequest(newRouter(store), req)

	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Equal(t, "req-1", rr.Header().Get("X-Request-ID"))
	assert.Equal(t, domain.CalendarDate{Year: 2025, Month: 2, Day: 10}, store.gotDate)

	var body envelope
	testutil.ParseJSONBody(t, rr, &body)
	assert.Equal(t, "2025-02-10", body.Meta.Date)

	var records []map[string]any
	require.NoError(t, json.Unmarshal(body.Data, &records))
	require.Len(t, records, 1)
	assert.Equal(t, "A001", records[0]["account_id"])
	assert.Equal(t, "日班", records[0]["shift_class"])
	assert.Equal(t, []any{"08:30:00", "17:30:00"}, records[0]["punch_times"])
}

func TestRecords_BadQuery(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		message string
	}{
		{name: "missing date", path: "/records", message: "this field is required"},
		{name: "roc date", path: "/records?date=1140210", message: "must match the layout 2006-01-02"},
		{name: "impossible date", path: "/records?date=2025-02-30", message: "must match the layout 2006-01-02"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := testutil.ExecuteRequest(newRouter(&fakeStore{}), testutil.NewHTTPRequest(http.MethodGet, tt.path, nil))
			testutil.AssertStatus(t, rr, http.StatusBadRequest)

			var body envelope
			testutil.ParseJSONBody(t, rr, &body)
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
			assert.Equal(t, tt.message, body.Error.Details["date"])
		})
	}
}

func TestRecords_StoreFailureIsOpaque(t *testing.T) {
	store := &fakeStore{err: fmt.Errorf("no such table: integrated_punch")}

	rr := testutil.ExecuteRequest(newRouter(store), testutil.NewHTTPRequest(http.MethodGet, "/records?date=2025-02-10", nil))
	testutil.AssertStatus(t, rr, http.StatusInternalServerError)
	assert.NotContains(t, rr.Body.String(), "integrated_punch")
	testutil.AssertBodyContains(t, rr, "INTERNAL_ERROR")
}

// ============================================================================
// NIGHT MEAL
// ============================================================================

func TestNightMeal(t *testing.T) {
	tests := []struct {
		name          string
		path          string
		wantDate      domain.CalendarDate
		wantThreshold domain.TimeOfDay
	}{
		{name: "all dates with default threshold", path: "/night-meal", wantThreshold: cutoff},
		{name: "one date", path: "/night-meal?date=2025-02-10", wantDate: domain.CalendarDate{Year: 2025, Month: 2, Day: 10}, wantThreshold: cutoff},
		{name: "threshold override", path: "/night-meal?threshold=20:30:00", wantThreshold: domain.TimeOfDay{Hour: 20, Minute: 30}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{records: []domain.IntegratedDailyRecord{
				record("A001", domain.TimeOfDay{Hour: 8}, domain.TimeOfDay{Hour: 22, Minute: 15}),
			}}

			rr := testutil.ExecuteRequest(newRouter(store), testutil.NewHTTPRequest(http.MethodGet, tt.path, nil))
			testutil.AssertStatus(t, rr, http.StatusOK)
			testutil.AssertBodyContains(t, rr, `"22:15:00"`)
			assert.Equal(t, tt.wantDate, store.gotDate)
			assert.Equal(t, tt.wantThreshold, store.gotThreshold)
		})
	}
}

func TestNightMeal_BadThreshold(t *testing.T) {
	rr := testutil.ExecuteRequest(newRouter(&fakeStore{}), testutil.NewHTTPRequest(http.MethodGet, "/night-meal?threshold=9pm", nil))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)

	var body envelope
	testutil.ParseJSONBody(t, rr, &body)
	assert.Equal(t, "must match the layout 15:04:05", body.Error.Details["threshold"])
}

// ============================================================================
// FULL RANGE
// ============================================================================

func TestFull(t *testing.T) {
	gap := record("A001")
	gap.PunchDate = domain.CalendarDate{Year: 2025, Month: 2, Day: 11}
	gap.PunchTimes = []domain.TimeOfDay{}
	store := &fakeStore{records: []domain.IntegratedDailyRecord{
		record("A001", domain.TimeOfDay{Hour: 8, Minute: 30}),
		gap,
	}}

	rr := testutil.ExecuteRequest(newRouter(store), testutil.NewHTTPRequest(http.MethodGet, "/full", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var body envelope
	testutil.ParseJSONBody(t, rr, &body)
	require.NotNil(t, body.Meta)
	assert.Equal(t, 2, body.Meta.Total)

	var records []struct {
		PunchDate  string   `json:"punch_date"`
		PunchTimes []string `json:"punch_times"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &records))
	require.Len(t, records, 2)
	assert.Equal(t, "2025-02-11", records[1].PunchDate)
	assert.NotNil(t, records[1].PunchTimes)
	assert.Empty(t, records[1].PunchTimes)
}

func TestFull_StoreFailure(t *testing.T) {
	store := &fakeStore{err: fmt.Errorf("no such table: integrated_punch")}

	rr := testutil.ExecuteRequest(newRouter(store), testutil.NewHTTPRequest(http.MethodGet, "/full", nil))
	testutil.AssertStatus(t, rr, http.StatusInternalServerError)
}
