package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"firo-access/internal/models"

	"go.uber.org/zap"
)

// DoorSchedulesRepository 门通行排程仓库接口
type DoorSchedulesRepository interface {
	// SaveSchedule 写入排程，(door_id, schedule_name) 冲突时覆盖
	SaveSchedule(ctx context.Context, schedule *models.DoorSchedule) error
	DeleteSchedule(ctx context.Context, id int64) error
	ListSchedules(ctx context.Context, doorID string) ([]models.DoorSchedule, error)
	// ActiveWindow 查找给定时刻命中的排程窗口
	// 多窗口重叠时取 start_time_utc 最早者（再按 id），保证确定性
	ActiveWindow(ctx context.Context, doorID string, now time.Time) (*models.DoorSchedule, error)
	// DoorIDsWithActiveSchedules 列出存在启用排程的门ID
	DoorIDsWithActiveSchedules(ctx context.Context) ([]string, error)
}

// PostgresDoorSchedulesRepo 门通行排程仓库 PostgreSQL 实现
type PostgresDoorSchedulesRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresDoorSchedulesRepo 创建排程仓库
func NewPostgresDoorSchedulesRepo(db *sql.DB, logger *zap.Logger) *PostgresDoorSchedulesRepo {
	return &PostgresDoorSchedulesRepo{db: db, logger: logger}
}

const scheduleColumns = `id, door_id, schedule_name, is_active, start_time_utc, end_time_utc, weekdays, access_type, created_at`

// weekdayIndex 把 Go 的周日=0 映射为掩码的周一=1..周日=7（SQL substr 为 1 基）
func weekdayIndex(t time.Time) int {
	return (int(t.UTC().Weekday())+6)%7 + 1
}

func (r *PostgresDoorSchedulesRepo) SaveSchedule(ctx context.Context, schedule *models.DoorSchedule) error {
	query := `
		INSERT INTO door_access_schedules
			(door_id, schedule_name, is_active, start_time_utc, end_time_utc, weekdays, access_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (door_id, schedule_name)
		DO UPDATE SET is_active = EXCLUDED.is_active,
		              start_time_utc = EXCLUDED.start_time_utc,
		              end_time_utc = EXCLUDED.end_time_utc,
		              weekdays = EXCLUDED.weekdays,
		              access_type = EXCLUDED.access_type
	`
	_, err := r.db.ExecContext(ctx, query,
		schedule.DoorID, schedule.ScheduleName, schedule.IsActive,
		schedule.StartTimeUTC, schedule.EndTimeUTC, schedule.Weekdays, schedule.AccessType,
	)
	if err != nil {
		return fmt.Errorf("failed to save schedule %q for door %s: %w", schedule.ScheduleName, schedule.DoorID, err)
	}
	return nil
}

func (r *PostgresDoorSchedulesRepo) DeleteSchedule(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM door_access_schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule %d: %w", id, err)
	}
	return nil
}

func (r *PostgresDoorSchedulesRepo) ListSchedules(ctx context.Context, doorID string) ([]models.DoorSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM door_access_schedules`
	args := []any{}
	if doorID != "" {
		query += ` WHERE door_id = $1`
		args = append(args, doorID)
	}
	query += ` ORDER BY door_id, start_time_utc`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer rows.Close()

	var schedules []models.DoorSchedule
	for rows.Next() {
		var s models.DoorSchedule
		if err := rows.Scan(
			&s.ID, &s.DoorID, &s.ScheduleName, &s.IsActive,
			&s.StartTimeUTC, &s.EndTimeUTC, &s.Weekdays, &s.AccessType, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		schedules = append(schedules, s)
	}

	return schedules, rows.Err()
}

func (r *PostgresDoorSchedulesRepo) ActiveWindow(ctx context.Context, doorID string, now time.Time) (*models.DoorSchedule, error) {
	// "HH:MM" 零填充文本上 BETWEEN 即为时间比较
	query := `
		SELECT ` + scheduleColumns + `
		FROM door_access_schedules
		WHERE door_id = $1
		  AND is_active = TRUE
		  AND $2 BETWEEN start_time_utc AND end_time_utc
		  AND substr(weekdays, $3, 1) = '1'
		ORDER BY start_time_utc, id
		LIMIT 1
	`

	var s models.DoorSchedule
	err := r.db.QueryRowContext(ctx, query, doorID, now.UTC().Format("15:04"), weekdayIndex(now)).Scan(
		&s.ID, &s.DoorID, &s.ScheduleName, &s.IsActive,
		&s.StartTimeUTC, &s.EndTimeUTC, &s.Weekdays, &s.AccessType, &s.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query active window for door %s: %w", doorID, err)
	}
	return &s, nil
}

func (r *PostgresDoorSchedulesRepo) DoorIDsWithActiveSchedules(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT door_id FROM door_access_schedules WHERE is_active = TRUE`)
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduled doors: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan door id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
