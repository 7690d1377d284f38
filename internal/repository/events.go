package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"firo-access/internal/models"

	"go.uber.org/zap"
)

// EventsFilter 审计日志查询条件
// Period 取 hour/today/week/month，空串表示不限时间
type EventsFilter struct {
	Identity string
	Message  string
	Period   string
	Limit    int
}

// EventsRepository 审计日志仓库接口
type EventsRepository interface {
	Append(ctx context.Context, event *models.AuditEvent) error
	List(ctx context.Context, filter EventsFilter) ([]models.AuditEvent, error)
}

// PostgresEventsRepo 审计日志仓库 PostgreSQL 实现
type PostgresEventsRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresEventsRepo 创建审计日志仓库
func NewPostgresEventsRepo(db *sql.DB, logger *zap.Logger) *PostgresEventsRepo {
	return &PostgresEventsRepo{db: db, logger: logger}
}

func (r *PostgresEventsRepo) Append(ctx context.Context, event *models.AuditEvent) error {
	t := event.Time
	if t.IsZero() {
		t = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO logs (device, identity, message, time) VALUES ($1, $2, $3, $4)`,
		event.Device, event.Identity, event.Message, t,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}

// periodStart 把时间段名翻译为起始时刻，未知名字返回零值（不过滤）
func periodStart(period string, now time.Time) time.Time {
	now = now.UTC()
	switch period {
	case "hour":
		return now.Add(-time.Hour)
	case "today":
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	case "week":
		return now.AddDate(0, 0, -7)
	case "month":
		return now.AddDate(0, -1, 0)
	}
	return time.Time{}
}

func (r *PostgresEventsRepo) List(ctx context.Context, filter EventsFilter) ([]models.AuditEvent, error) {
	query := `SELECT id, device, identity, message, time FROM logs WHERE 1=1`
	args := []any{}
	argN := 1

	if filter.Identity != "" {
		query += fmt.Sprintf(" AND identity ILIKE $%d", argN)
		args = append(args, "%"+filter.Identity+"%")
		argN++
	}
	if filter.Message != "" {
		query += fmt.Sprintf(" AND message ILIKE $%d", argN)
		args = append(args, "%"+filter.Message+"%")
		argN++
	}
	if since := periodStart(filter.Period, time.Now()); !since.IsZero() {
		query += fmt.Sprintf(" AND time >= $%d", argN)
		args = append(args, since)
		argN++
	}

	query += " ORDER BY time DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argN)
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []models.AuditEvent
	for rows.Next() {
		var e models.AuditEvent
		if err := rows.Scan(&e.ID, &e.Device, &e.Identity, &e.Message, &e.Time); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		events = append(events, e)
	}

	return events, rows.Err()
}
