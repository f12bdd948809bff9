package repository_test

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/punchflow/punchflow/internal/attendance/domain"
	"github.com/punchflow/punchflow/internal/attendance/repository"
	"github.com/punchflow/punchflow/pkg/config"
	"github.com/punchflow/punchflow/pkg/database"
	"github.com/punchflow/punchflow/pkg/logger"
	"github.com/punchflow/punchflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) (*repository.Store, *database.DB) {
	t.Helper()
	cfg := &config.DatabaseConfig{Driver: config.DriverSQLite, Path: filepath.Join(t.TempDir(), "db", "source.db")}
	db, err := database.New(cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := repository.NewStore(db, logger.Nop())
	require.NoError(t, store.EnsureSchema(context.Background()))
	return store, db
}

func samplePunches() []domain.PunchRecord {
	return []domain.PunchRecord{
		{SeqNo: 1, EmployeeID: "C1", AccountID: "A001", Name: "甲", PunchDate: "2025-02-10", PunchTime: "08:30:00", GateName: "大門", Direction: "in"},
		{SeqNo: 2, EmployeeID: "C1", AccountID: "A001", Name: "甲", PunchDate: "2025-02-10", PunchTime: "17:30:00", GateName: "大門", Direction: "out"},
		{SeqNo: 3, EmployeeID: "C2", AccountID: "A002", Name: "乙", PunchDate: "2025-02-10", PunchTime: "07:45:00", GateName: "側門", Direction: "in"},
	}
}

func count(t *testing.T, db *database.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.GetContext(context.Background(), &n, "SELECT COUNT(*) FROM "+table))
	return n
}

// ============================================================================
// UPSERT
// ============================================================================

func TestUpsertPunches_Idempotent(t *testing.T) {
	ctx := context.Background()
	store, db := newSQLiteStore(t)

	first, err := store.UpsertPunches(ctx, samplePunches())
	require.NoError(t, err)
	assert.Equal(t, 3, first.Loaded)

	second, err := store.UpsertPunches(ctx, samplePunches())
	require.NoError(t, err)
	assert.Equal(t, 3, second.Loaded)

	assert.Equal(t, 3, count(t, db, repository.TablePunch))
}

func TestUpsertPunches_UpdatesNonKeyColumns(t *testing.T) {
	ctx := context.Background()
	store, _ := newSQLiteStore(t)

	_, err := store.UpsertPunches(ctx, samplePunches())
	require.NoError(t, err)

	changed := samplePunches()[:1]
	changed[0].GateName = "後門"
	_, err = store.UpsertPunches(ctx, changed)
	require.NoError(t, err)

	punches, err := store.ListPunches(ctx)
	require.NoError(t, err)
	require.Len(t, punches, 3)
	assert.Equal(t, "後門", punches[0].GateName)
}

func TestUpsertPunches_CollapsesBatchDuplicates(t *testing.T) {
	ctx := context.Background()
	store, db := newSQLiteStore(t)

	punches := samplePunches()
	dup := punches[0]
	dup.GateName = "second copy"
	punches = append(punches, dup)

	res, err := store.UpsertPunches(ctx, punches)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Loaded)
	assert.Equal(t, []int{3}, res.Duplicates)
	assert.Equal(t, 3, count(t, db, repository.TablePunch))

	stored, err := store.ListPunches(ctx)
	require.NoError(t, err)
	assert.Equal(t, "大門", stored[0].GateName, "first occurrence wins")
}

func TestUpsertShiftsAndDrivers(t *testing.T) {
	ctx := context.Background()
	store, _ := newSQLiteStore(t)

	shifts := []domain.ShiftAssignment{
		{AccountID: "A002", ShiftClass: "夜班", EmployeeID: "C2", SourceOrder: 1},
		{AccountID: "A001", ShiftClass: "日班", EmployeeID: "C1", SourceOrder: 0},
	}
	res, err := store.UpsertShifts(ctx, shifts)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Loaded)

	got, err := store.ListShifts(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A001", got[0].AccountID, "shifts come back in source order")

	drivers := []domain.DriverRosterEntry{{RosterKey: "A002", AccountID: "A002", IsDriver: true}}
	_, err = store.UpsertDrivers(ctx, drivers)
	require.NoError(t, err)
	_, err = store.UpsertDrivers(ctx, drivers)
	require.NoError(t, err)

	roster, err := store.ListDrivers(ctx)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.True(t, roster[0].IsDriver)
}

func TestUpsert_EmptyBatchSkipsTransaction(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	store := repository.NewStore(mockDB.Database(), logger.Nop())
	res, err := store.UpsertDrivers(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, res.Loaded)
	mockDB.ExpectationsWereMet(t)
}

func TestUpsert_FailureRollsBackEntity(t *testing.T) {
	suite := testutil.NewUnitTestSuite(t)
	defer suite.Cleanup()

	suite.MockDB.ExpectFailedUpsert("punch", 2, stderrors.New("disk I/O error"))

	store := repository.NewStore(suite.MockDB.Database(), logger.Nop())
	res, err := store.UpsertPunches(context.Background(), samplePunches())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "failed to load punch")
}

func TestUpsert_CommitsOneTransactionPerEntity(t *testing.T) {
	suite := testutil.NewUnitTestSuite(t)
	defer suite.Cleanup()

	suite.MockDB.ExpectUpsert("shift_class", 2)

	store := repository.NewStore(suite.MockDB.Database(), logger.Nop())
	res, err := store.UpsertShifts(context.Background(), []domain.ShiftAssignment{
		{AccountID: "A001", ShiftClass: "日班"},
		{AccountID: "A001", ShiftClass: "夜班"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Loaded)
}

func TestListDates_RejectsCorruptDates(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("SELECT punch_date, COUNT(*) AS records").
		WillReturnRows(testutil.MockRows("punch_date", "records").AddRow("1140210", 2))

	store := repository.NewStore(mockDB.Database(), logger.Nop())
	_, err := store.ListDates(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `corrupt punch_date "1140210"`)
	mockDB.ExpectationsWereMet(t)
}

// ============================================================================
// INTEGRATED VIEW
// ============================================================================

func tod(h, m, s int) domain.TimeOfDay { return domain.TimeOfDay{Hour: h, Minute: m, Second: s} }

func day(d int) domain.CalendarDate {
	return domain.CalendarDate{Year: 2025, Month: time.February, Day: d}
}

func integratedFixture() []domain.IntegratedDailyRecord {
	return []domain.IntegratedDailyRecord{
		{AccountID: "A001", EmployeeID: "C1", Name: "甲", ShiftClass: testutil.PtrString("日班"), PunchDate: day(10),
			PunchTimes: []domain.TimeOfDay{tod(8, 30, 0), tod(17, 30, 0)}},
		{AccountID: "A002", EmployeeID: "C2", Name: "乙", ShiftClass: testutil.PtrString("夜班"), PunchDate: day(10), IsDriver: true,
			PunchTimes: []domain.TimeOfDay{tod(13, 0, 0), tod(18, 0, 0), tod(22, 15, 0)}},
		{AccountID: "A003", EmployeeID: "C3", Name: "丙", PunchDate: day(11),
			PunchTimes: []domain.TimeOfDay{tod(21, 0, 0)}},
	}
}

func TestReplaceIntegrated_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, db := newSQLiteStore(t)

	slots, err := store.ReplaceIntegrated(ctx, integratedFixture())
	require.NoError(t, err)
	assert.Equal(t, 3, slots)

	all, err := store.ListIntegrated(ctx)
	require.NoError(t, err)
	assert.Equal(t, integratedFixture()[1], all[0], "夜班 sorts before 日班")
	assert.Equal(t, integratedFixture()[0], all[1])
	assert.Equal(t, integratedFixture()[2], all[2])
	assert.Nil(t, all[2].ShiftClass)

	// A second run with fewer slots replaces the relation entirely.
	slots, err = store.ReplaceIntegrated(ctx, integratedFixture()[:1])
	require.NoError(t, err)
	assert.Equal(t, 2, slots)
	assert.Equal(t, 1, count(t, db, repository.TableIntegrated))
}

func TestReplaceIntegrated_Empty(t *testing.T) {
	ctx := context.Background()
	store, _ := newSQLiteStore(t)

	slots, err := store.ReplaceIntegrated(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, slots)

	dates, err := store.ListDates(ctx)
	require.NoError(t, err)
	assert.Empty(t, dates)
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	store, _ := newSQLiteStore(t)
	_, err := store.ReplaceIntegrated(ctx, integratedFixture())
	require.NoError(t, err)

	dates, err := store.ListDates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []repository.DateCount{
		{Date: day(10), Weekday: "Monday", Records: 2},
		{Date: day(11), Weekday: "Tuesday", Records: 1},
	}, dates)

	byDate, err := store.ListByDate(ctx, day(11))
	require.NoError(t, err)
	require.Len(t, byDate, 1)
	assert.Equal(t, "A003", byDate[0].AccountID)

	threshold := tod(21, 0, 0)
	eligible, err := store.NightMeal(ctx, domain.CalendarDate{}, threshold)
	require.NoError(t, err)
	require.Len(t, eligible, 1, "a last punch exactly at the threshold is not eligible")
	assert.Equal(t, "A002", eligible[0].AccountID)

	eligible, err = store.NightMeal(ctx, day(11), threshold)
	require.NoError(t, err)
	assert.Empty(t, eligible)
}

func TestFullRange_FillsDaysWithoutPunches(t *testing.T) {
	ctx := context.Background()
	store, _ := newSQLiteStore(t)

	_, err := store.ReplaceIntegrated(ctx, []domain.IntegratedDailyRecord{
		{AccountID: "A002", EmployeeID: "C2", Name: "乙", PunchDate: day(11), IsDriver: true,
			PunchTimes: []domain.TimeOfDay{tod(22, 15, 0)}},
		{AccountID: "A001", EmployeeID: "C1", Name: "甲", ShiftClass: testutil.PtrString("日班"), PunchDate: day(10),
			PunchTimes: []domain.TimeOfDay{tod(8, 30, 0)}},
		{AccountID: "A001", EmployeeID: "C1", Name: "甲", ShiftClass: testutil.PtrString("日班"), PunchDate: day(12),
			PunchTimes: []domain.TimeOfDay{tod(8, 0, 0), tod(17, 0, 0)}},
	})
	require.NoError(t, err)

	full, err := store.FullRange(ctx)
	require.NoError(t, err)
	require.Len(t, full, 6)

	type slot struct {
		account string
		date    domain.CalendarDate
		punches int
	}
	var got []slot
	for _, r := range full {
		got = append(got, slot{r.AccountID, r.PunchDate, len(r.PunchTimes)})
	}
	assert.Equal(t, []slot{
		{"A001", day(10), 1},
		{"A001", day(11), 0},
		{"A001", day(12), 2},
		{"A002", day(10), 0},
		{"A002", day(11), 1},
		{"A002", day(12), 0},
	}, got)

	gap := full[1]
	assert.Equal(t, "C1", gap.EmployeeID)
	assert.Equal(t, "甲", gap.Name)
	require.NotNil(t, gap.ShiftClass)
	assert.Equal(t, "日班", *gap.ShiftClass)
	assert.NotNil(t, gap.PunchTimes)
	assert.True(t, full[3].IsDriver)
}

func TestFullRange_Empty(t *testing.T) {
	ctx := context.Background()
	store, _ := newSQLiteStore(t)
	_, err := store.ReplaceIntegrated(ctx, nil)
	require.NoError(t, err)

	full, err := store.FullRange(ctx)
	require.NoError(t, err)
	assert.Empty(t, full)
}
