package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupSchedulesMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresDoorSchedulesRepo) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewPostgresDoorSchedulesRepo(db, logger)

	return db, mock, repo
}

func scheduleRows(id int64, doorID, name string, start, end, weekdays string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "door_id", "schedule_name", "is_active", "start_time_utc", "end_time_utc",
		"weekdays", "access_type", "created_at",
	}).AddRow(id, doorID, name, true, start, end, weekdays, "allow_all", time.Now())
}

func TestWeekdayIndex(t *testing.T) {
	// 2026-08-31 是周一，掩码下标为1（SQL substr 1基）
	monday := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, weekdayIndex(monday))

	sunday := time.Date(2026, 9, 6, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 7, weekdayIndex(sunday))
}

func TestActiveWindow_Hit(t *testing.T) {
	db, mock, repo := setupSchedulesMockDB(t)
	defer db.Close()

	now := time.Date(2026, 8, 31, 10, 30, 0, 0, time.UTC) // Monday

	mock.ExpectQuery(`BETWEEN start_time_utc AND end_time_utc`).
		WithArgs("door-1", "10:30", 1).
		WillReturnRows(scheduleRows(5, "door-1", "business-hours", "09:00", "17:00", "1111100"))

	window, err := repo.ActiveWindow(context.Background(), "door-1", now)

	require.NoError(t, err)
	require.NotNil(t, window)
	assert.Equal(t, "business-hours", window.ScheduleName)
	assert.True(t, window.InWindow(now))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActiveWindow_Miss(t *testing.T) {
	db, mock, repo := setupSchedulesMockDB(t)
	defer db.Close()

	now := time.Date(2026, 9, 6, 3, 0, 0, 0, time.UTC) // Sunday

	mock.ExpectQuery(`SELECT`).
		WithArgs("door-1", "03:00", 7).
		WillReturnError(sql.ErrNoRows)

	window, err := repo.ActiveWindow(context.Background(), "door-1", now)

	require.NoError(t, err)
	assert.Nil(t, window)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDoorIDsWithActiveSchedules(t *testing.T) {
	db, mock, repo := setupSchedulesMockDB(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"door_id"}).
		AddRow("door-1").
		AddRow("door-2")

	mock.ExpectQuery(`SELECT DISTINCT door_id`).WillReturnRows(rows)

	ids, err := repo.DoorIDsWithActiveSchedules(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"door-1", "door-2"}, ids)

	require.NoError(t, mock.ExpectationsWereMet())
}
