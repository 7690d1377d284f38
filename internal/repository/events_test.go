package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"firo-access/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupEventsMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresEventsRepo) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewPostgresEventsRepo(db, logger)

	return db, mock, repo
}

func TestAppend_Success(t *testing.T) {
	db, mock, repo := setupEventsMockDB(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO logs`).
		WithArgs("door-1", "alice", "Access granted", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Append(context.Background(), &models.AuditEvent{
		Device:   "door-1",
		Identity: "alice",
		Message:  "Access granted",
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestList_WithFilters(t *testing.T) {
	db, mock, repo := setupEventsMockDB(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "device", "identity", "message", "time"}).
		AddRow(int64(2), "door-1", "alice", "Access granted", time.Now()).
		AddRow(int64(1), "door-1", "alice", "Access denied", time.Now().Add(-time.Minute))

	mock.ExpectQuery(`ORDER BY time DESC`).
		WithArgs("%alice%", "%Access%", sqlmock.AnyArg(), 100).
		WillReturnRows(rows)

	events, err := repo.List(context.Background(), EventsFilter{
		Identity: "alice",
		Message:  "Access",
		Period:   "today",
		Limit:    100,
	})

	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Access granted", events[0].Message)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestList_Unfiltered(t *testing.T) {
	db, mock, repo := setupEventsMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, device, identity, message, time FROM logs`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "device", "identity", "message", "time"}))

	events, err := repo.List(context.Background(), EventsFilter{})

	require.NoError(t, err)
	assert.Empty(t, events)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodStart(t *testing.T) {
	now := time.Date(2026, 9, 1, 15, 30, 0, 0, time.UTC)

	assert.Equal(t, now.Add(-time.Hour), periodStart("hour", now))
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), periodStart("today", now))
	assert.Equal(t, now.AddDate(0, 0, -7), periodStart("week", now))
	assert.Equal(t, now.AddDate(0, -1, 0), periodStart("month", now))
	assert.True(t, periodStart("bogus", now).IsZero())
}
