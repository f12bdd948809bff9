// Package handler exposes the integrated attendance view over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/punchflow/punchflow/internal/attendance/domain"
	"github.com/punchflow/punchflow/internal/attendance/repository"
	"github.com/punchflow/punchflow/pkg/errors"
	"github.com/punchflow/punchflow/pkg/httputil"
	"github.com/punchflow/punchflow/pkg/logger"
)

// QueryStore is the read side of the attendance store.
type QueryStore interface {
	ListDates(ctx context.Context) ([]repository.DateCount, error)
	ListByDate(ctx context.Context, date domain.CalendarDate) ([]domain.IntegratedDailyRecord, error)
	NightMeal(ctx context.Context, date domain.CalendarDate, threshold domain.TimeOfDay) ([]domain.IntegratedDailyRecord, error)
	FullRange(ctx context.Context) ([]domain.IntegratedDailyRecord, error)
}

// AttendanceHandler handles the query endpoints
type AttendanceHandler struct {
	store     QueryStore
	threshold domain.TimeOfDay
	logger    *logger.Logger
}

// NewAttendanceHandler creates a new attendance handler. threshold is the
// default night meal cut-off.
func NewAttendanceHandler(store QueryStore, threshold domain.TimeOfDay, log *logger.Logger) *AttendanceHandler {
	return &AttendanceHandler{
		store:     store,
		threshold: threshold,
		logger:    log.WithComponent("query-api"),
	}
}

// Routes mounts the query endpoints on r.
func (h *AttendanceHandler) Routes(r chi.Router) {
	r.Get("/dates", h.Dates)
	r.Get("/records", h.Records)
	r.Get("/night-meal", h.NightMeal)
	r.Get("/full", h.Full)
}

type recordsQuery struct {
	Date string `query:"date" validate:"required,datetime=2006-01-02"`
}

type nightMealQuery struct {
	Date      string `query:"date" validate:"omitempty,datetime=2006-01-02"`
	Threshold string `query:"threshold" validate:"omitempty,datetime=15:04:05"`
}

// Dates lists the dates present in the integrated view
func (h *AttendanceHandler) Dates(w http.ResponseWriter, r *http.Request) {
	dates, err := h.store.ListDates(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if dates == nil {
		dates = []repository.DateCount{}
	}

	httputil.JSONWithMeta(w, http.StatusOK, dates, &httputil.Meta{Total: len(dates)})
}

// Records lists the integrated records of one date
func (h *AttendanceHandler) Records(w http.ResponseWriter, r *http.Request) {
	q := recordsQuery{Date: r.URL.Query().Get("date")}
	if err := httputil.Validate(q); err != nil {
		httputil.Error(w, err)
		return
	}

	date, err := domain.ParseCalendarDate(q.Date)
	if err != nil {
		httputil.Error(w, errors.BadRequest("invalid date format, expected YYYY-MM-DD"))
		return
	}

	records, err := h.store.ListByDate(r.Context(), date)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.list(w, records, q.Date)
}

// NightMeal lists the records whose last punch is later than the threshold.
// Without a date every date is considered.
func (h *AttendanceHandler) NightMeal(w http.ResponseWriter, r *http.Request) {
	q := nightMealQuery{
		Date:      r.URL.Query().Get("date"),
		Threshold: r.URL.Query().Get("threshold"),
	}
	if err := httputil.Validate(q); err != nil {
		httputil.Error(w, err)
		return
	}

	var date domain.CalendarDate
	if q.Date != "" {
		d, err := domain.ParseCalendarDate(q.Date)
		if err != nil {
			httputil.Error(w, errors.BadRequest("invalid date format, expected YYYY-MM-DD"))
			return
		}
		date = d
	}

	threshold := h.threshold
	if q.Threshold != "" {
		t, err := domain.ParseTimeOfDay(q.Threshold)
		if err != nil {
			httputil.Error(w, errors.BadRequest("invalid threshold format, expected HH:MM:SS"))
			return
		}
		threshold = t
	}

	records, err := h.store.NightMeal(r.Context(), date, threshold)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.list(w, records, q.Date)
}

// Full lists every account for every day of the punch date range,
// including days without punches.
func (h *AttendanceHandler) Full(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.FullRange(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.list(w, records, "")
}

func (h *AttendanceHandler) list(w http.ResponseWriter, records []domain.IntegratedDailyRecord, date string) {
	if records == nil {
		records = []domain.IntegratedDailyRecord{}
	}
	httputil.JSONWithMeta(w, http.StatusOK, records, &httputil.Meta{Total: len(records), Date: date})
}

func (h *AttendanceHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.WithRequestID(httputil.GetRequestID(r.Context())).Error().
		Err(err).
		Str("path", r.URL.Path).
		Msg("query failed")
	httputil.Error(w, err)
}
