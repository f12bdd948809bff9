package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/punchflow/punchflow/internal/attendance/domain"
	"github.com/punchflow/punchflow/internal/attendance/handler"
	"github.com/punchflow/punchflow/internal/attendance/repository"
	"github.com/punchflow/punchflow/internal/cli"
	"github.com/punchflow/punchflow/pkg/config"
	"github.com/punchflow/punchflow/pkg/database"
	"github.com/punchflow/punchflow/pkg/logger"
	"github.com/punchflow/punchflow/pkg/messaging"
	"github.com/punchflow/punchflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sources struct {
	punch, shift, driver string
	db                   string
}

func punchRow(seq int, emp, account, date, tm string) []any {
	return []any{seq, emp, account, "A123456789", "員工" + account, date, tm, "大門", "進", nil}
}

// writeSources creates the three exports and points the store at a fresh
// SQLite file through the environment.
func writeSources(t *testing.T) sources {
	t.Helper()
	dir := t.TempDir()

	src := sources{
		punch: testutil.WriteWorkbook(t, dir, "punch.xlsx", testutil.PunchSheet("Page1", 3,
			punchRow(1, "C1", "A001", "1140210", "0830"),
			punchRow(2, "C1", "A001", "1140210", "1730"),
			punchRow(3, "C2", "A002", "1140210", "1300"),
			punchRow(4, "C2", "A002", "1140210", "2215"),
			punchRow(5, "C3", "A003", "1140211", "2460"),
			punchRow(6, "C3", "A003", "1140211", "0900"),
		)),
		shift: testutil.WriteWorkbook(t, dir, "shift_class.xlsx",
			testutil.SheetFixture{Name: "日班", Rows: [][]any{
				{"班別", "卡號", "姓名", "公務帳號"},
				{"日班", "C1", "甲", "A001"},
				{"日班", "C3", "丙", "A003"},
			}},
			testutil.SheetFixture{Name: "夜班", Rows: [][]any{
				{"公務帳號", "班別", "姓名", "卡號"},
				{"A002", "夜班", "乙", "C2"},
			}},
		),
		driver: filepath.Join(dir, "driver_list.csv"),
		db:     filepath.Join(dir, "db", "source.db"),
	}
	require.NoError(t, os.WriteFile(src.driver, []byte("公務帳號,卡號,姓名\nA002,C2,乙\n"), 0o600))

	t.Setenv("PUNCHFLOW_DATABASE_DRIVER", config.DriverSQLite)
	t.Setenv("PUNCHFLOW_DATABASE_PATH", src.db)
	t.Setenv("PUNCHFLOW_SERVER_ENVIRONMENT", config.EnvTest)
	return src
}

func (s sources) runArgs(extra ...string) []string {
	return append([]string{"run", "--punch", s.punch, "--shift", s.shift, "--driver", s.driver}, extra...)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := cli.NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// ============================================================================
// RUN
// ============================================================================

func TestRun(t *testing.T) {
	src := writeSources(t)

	out, err := execute(t, src.runArgs()...)
	require.NoError(t, err)

	assert.Contains(t, out, "reading punch from "+src.punch)
	assert.Contains(t, out, "read=6 invalid=1 filtered=0 duplicates=0 loaded=6")
	assert.Contains(t, out, "integrated records=3 punch slots=2")
	assert.Contains(t, out, "diagnostics:")
	assert.Contains(t, out, "punch_time")
}

func TestRun_HardModeAndQuiet(t *testing.T) {
	src := writeSources(t)

	out, err := execute(t, src.runArgs("--hard", "--quiet")...)
	require.NoError(t, err)

	assert.NotContains(t, out, "reading punch")
	assert.Contains(t, out, "(hard mode)")
	assert.Contains(t, out, "read=6 invalid=1 filtered=1 duplicates=0 loaded=5")
}

func TestRun_ReportsEntityFailure(t *testing.T) {
	src := writeSources(t)

	out, err := execute(t, "run", "--punch", src.punch, "--shift", filepath.Join(t.TempDir(), "missing.xlsx"), "--driver", src.driver)
	require.Error(t, err)

	assert.Contains(t, out, "FAILED shift")
	assert.Contains(t, out, "read=6 invalid=1", "the other entities still load")
}

func TestRun_InvalidConfiguration(t *testing.T) {
	src := writeSources(t)
	t.Setenv("PUNCHFLOW_VALIDATION_MODE", "strict")

	_, err := execute(t, src.runArgs()...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

// ============================================================================
// QUERY
// ============================================================================

func TestQuery(t *testing.T) {
	src := writeSources(t)
	_, err := execute(t, src.runArgs("--quiet")...)
	require.NoError(t, err)

	t.Run("dates", func(t *testing.T) {
		out, err := execute(t, "query", "dates")
		require.NoError(t, err)
		assert.Contains(t, out, "DATE")
		assert.Regexp(t, `2025-02-10\s+Monday\s+2`, out)
		assert.Regexp(t, `2025-02-11\s+Tuesday\s+1`, out)
	})

	t.Run("records by encoded date", func(t *testing.T) {
		out, err := execute(t, "query", "records", "1140210", "-o", "json")
		require.NoError(t, err)

		var records []map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &records))
		require.Len(t, records, 2)

		accounts := []any{records[0]["account_id"], records[1]["account_id"]}
		assert.ElementsMatch(t, []any{"A001", "A002"}, accounts)
	})

	t.Run("night meal", func(t *testing.T) {
		out, err := execute(t, "query", "night-meal")
		require.NoError(t, err)
		assert.Contains(t, out, "A002")
		assert.Contains(t, out, "22:15:00")
		assert.NotContains(t, out, "A001")
	})

	t.Run("night meal with lower threshold", func(t *testing.T) {
		out, err := execute(t, "query", "night-meal", "2025-02-10", "--threshold", "1700")
		require.NoError(t, err)
		assert.Contains(t, out, "A001")
		assert.Contains(t, out, "A002")
	})

	t.Run("full range fills days without punches", func(t *testing.T) {
		out, err := execute(t, "query", "full", "-o", "json")
		require.NoError(t, err)

		var records []struct {
			AccountID  string   `json:"account_id"`
			PunchDate  string   `json:"punch_date"`
			PunchTimes []string `json:"punch_times"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &records))
		require.Len(t, records, 6)

		assert.Equal(t, "A003", records[4].AccountID)
		assert.Equal(t, "2025-02-10", records[4].PunchDate)
		assert.Empty(t, records[4].PunchTimes)
		assert.Equal(t, "A003", records[5].AccountID)
		assert.Equal(t, []string{"09:00:00"}, records[5].PunchTimes)
	})

	t.Run("bad date", func(t *testing.T) {
		_, err := execute(t, "query", "records", "20250230")
		require.Error(t, err)
	})

	t.Run("bad output", func(t *testing.T) {
		_, err := execute(t, "query", "dates", "-o", "xml")
		require.Error(t, err)
	})
}

// ============================================================================
// CONFIG
// ============================================================================

func TestConfigShow(t *testing.T) {
	writeSources(t)
	t.Setenv("PUNCHFLOW_DATABASE_PASSWORD", "s3cret")

	out, err := execute(t, "config", "show")
	require.NoError(t, err)

	assert.Contains(t, out, "driver: sqlite")
	assert.Contains(t, out, "filter_column: 序號")
	assert.NotContains(t, out, "s3cret")
}

func TestConfigCheck(t *testing.T) {
	writeSources(t)

	out, err := execute(t, "config", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "configuration OK")

	t.Setenv("PUNCHFLOW_VALIDATION_MODE", "strict")
	_, err = execute(t, "config", "check")
	require.Error(t, err)
}

// ============================================================================
// WORKER
// ============================================================================

func requestDelivery(t *testing.T, req messaging.ETLRequestedEvent, redelivered bool) messaging.Delivery {
	t.Helper()
	event, err := messaging.NewEvent(messaging.EventETLRequested, "test", "corr-1", req)
	require.NoError(t, err)
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return messaging.Delivery{Body: body, Redelivered: redelivered}
}

func TestRequestHandler(t *testing.T) {
	src := writeSources(t)
	cfg, err := config.Load("cli-test")
	require.NoError(t, err)

	pub := testutil.NewMockPublisher()
	consumer, err := messaging.NewConsumer(nil, "punchflow.etl.requests", logger.Nop())
	require.NoError(t, err)
	consumer.RegisterHandler(messaging.EventETLRequested, cli.RequestHandler(cfg, pub, logger.Nop()))

	t.Run("successful run is acked", func(t *testing.T) {
		pub.Reset()
		d := requestDelivery(t, messaging.ETLRequestedEvent{PunchFile: src.punch, ShiftFile: src.shift, DriverFile: src.driver}, false)

		assert.Equal(t, messaging.Ack, consumer.Process(context.Background(), d))
		pub.AssertEventPublished(t, messaging.EventETLCompleted)
	})

	t.Run("entity failure is announced and acked", func(t *testing.T) {
		pub.Reset()
		d := requestDelivery(t, messaging.ETLRequestedEvent{PunchFile: filepath.Join(t.TempDir(), "none.xlsx"), ShiftFile: src.shift, DriverFile: src.driver}, false)

		assert.Equal(t, messaging.Ack, consumer.Process(context.Background(), d))
		pub.AssertEventPublished(t, messaging.EventETLFailed)
	})

	t.Run("unusable request is retried once", func(t *testing.T) {
		pub.Reset()
		req := messaging.ETLRequestedEvent{PunchFile: src.punch, Mode: "strict"}

		assert.Equal(t, messaging.Requeue, consumer.Process(context.Background(), requestDelivery(t, req, false)))
		assert.Equal(t, messaging.DeadLetter, consumer.Process(context.Background(), requestDelivery(t, req, true)))
		pub.AssertNoEventsPublished(t)
	})
}

// ============================================================================
// SERVE
// ============================================================================

func TestRouter(t *testing.T) {
	src := writeSources(t)
	_, err := execute(t, src.runArgs("--quiet")...)
	require.NoError(t, err)

	cfg, err := config.Load("cli-test")
	require.NoError(t, err)

	db, err := database.New(&cfg.Database, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := handler.NewAttendanceHandler(repository.NewStore(db, logger.Nop()), domain.TimeOfDay{Hour: 21}, logger.Nop())
	router := cli.NewRouter(cfg.Server, h, db, logger.Nop())

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/health", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertBodyContains(t, rr, `"status":"up"`)

	rr = testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/api/v1/attendance/night-meal?date=2025-02-10", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertBodyContains(t, rr, `"account_id":"A002"`)
	testutil.AssertBodyContains(t, rr, `"is_driver":true`)

	req := testutil.NewHTTPRequest(http.MethodOptions, "/api/v1/attendance/dates", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr = testutil.ExecuteRequest(router, req)
	assert.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))
}
