package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"firo-access/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PermissionsRepository 门权限仓库接口
type PermissionsRepository interface {
	// SetPermission 写入 (group, door) 权限边，已存在则覆盖
	SetPermission(ctx context.Context, perm *models.DoorPermission) error
	DeletePermission(ctx context.Context, id int64) error
	DeletePermissionByIDs(ctx context.Context, groupID, deviceID string) error
	// ListPermissions 按门/群组过滤列出权限（带群组名与门名）
	ListPermissions(ctx context.Context, deviceID, groupID string) ([]models.DoorPermission, error)
	// FindForDoor 在给定群组集合内查找目标门的权限
	// deny 权限排在 allow 之前，取第一条即实现 deny 优先
	FindForDoor(ctx context.Context, groupIDs []string, deviceID string) (*models.DoorPermission, error)
}

// PostgresPermissionsRepo 门权限仓库 PostgreSQL 实现
type PostgresPermissionsRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresPermissionsRepo 创建门权限仓库
func NewPostgresPermissionsRepo(db *sql.DB, logger *zap.Logger) *PostgresPermissionsRepo {
	return &PostgresPermissionsRepo{db: db, logger: logger}
}

func marshalSchedule(s *models.PermissionSchedule) ([]byte, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s)
}

func unmarshalSchedule(raw []byte) *models.PermissionSchedule {
	if len(raw) == 0 {
		return nil
	}
	var s models.PermissionSchedule
	if err := json.Unmarshal(raw, &s); err != nil {
		// 坏的排程数据按"无排程"处理，不让决策流程崩溃
		return nil
	}
	if !s.Always && s.TimeRange == nil {
		return nil
	}
	return &s
}

func (r *PostgresPermissionsRepo) SetPermission(ctx context.Context, perm *models.DoorPermission) error {
	scheduleJSON, err := marshalSchedule(perm.Schedule)
	if err != nil {
		return fmt.Errorf("failed to marshal permission schedule: %w", err)
	}

	query := `
		INSERT INTO door_permissions (group_id, device_id, permission_type, schedule)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (group_id, device_id)
		DO UPDATE SET permission_type = EXCLUDED.permission_type,
		              schedule = EXCLUDED.schedule,
		              updated_at = NOW()
	`
	_, err = r.db.ExecContext(ctx, query, perm.GroupID, perm.DeviceID, perm.PermissionType, scheduleJSON)
	if err != nil {
		return fmt.Errorf("failed to set permission (%s, %s): %w", perm.GroupID, perm.DeviceID, err)
	}
	return nil
}

func (r *PostgresPermissionsRepo) DeletePermission(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM door_permissions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete permission %d: %w", id, err)
	}
	return nil
}

func (r *PostgresPermissionsRepo) DeletePermissionByIDs(ctx context.Context, groupID, deviceID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM door_permissions WHERE group_id = $1 AND device_id = $2`, groupID, deviceID)
	if err != nil {
		return fmt.Errorf("failed to delete permission (%s, %s): %w", groupID, deviceID, err)
	}
	return nil
}

func (r *PostgresPermissionsRepo) ListPermissions(ctx context.Context, deviceID, groupID string) ([]models.DoorPermission, error) {
	query := `
		SELECT dp.id, dp.group_id, dp.device_id, dp.permission_type, dp.schedule,
		       dp.created_at, dp.updated_at,
		       COALESCE(g.name, '') AS group_name,
		       COALESCE(d.name, '') AS door_name
		FROM door_permissions dp
		LEFT JOIN groups g ON dp.group_id = g.id
		LEFT JOIN doors d ON dp.device_id = d.device_id
		WHERE 1=1
	`
	args := []any{}
	argN := 1

	if deviceID != "" {
		query += fmt.Sprintf(" AND dp.device_id = $%d", argN)
		args = append(args, deviceID)
		argN++
	}
	if groupID != "" {
		query += fmt.Sprintf(" AND dp.group_id = $%d", argN)
		args = append(args, groupID)
		argN++
	}
	query += ` ORDER BY g.name, d.name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query permissions: %w", err)
	}
	defer rows.Close()

	var perms []models.DoorPermission
	for rows.Next() {
		var p models.DoorPermission
		var scheduleRaw []byte
		if err := rows.Scan(
			&p.ID, &p.GroupID, &p.DeviceID, &p.PermissionType, &scheduleRaw,
			&p.CreatedAt, &p.UpdatedAt, &p.GroupName, &p.DoorName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		p.Schedule = unmarshalSchedule(scheduleRaw)
		perms = append(perms, p)
	}

	return perms, rows.Err()
}

func (r *PostgresPermissionsRepo) FindForDoor(ctx context.Context, groupIDs []string, deviceID string) (*models.DoorPermission, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, group_id, device_id, permission_type, schedule, created_at, updated_at
		FROM door_permissions
		WHERE group_id = ANY($1) AND device_id = $2
		ORDER BY CASE WHEN permission_type = 'deny' THEN 1 ELSE 2 END
		LIMIT 1
	`

	var p models.DoorPermission
	var scheduleRaw []byte
	err := r.db.QueryRowContext(ctx, query, pq.Array(groupIDs), deviceID).Scan(
		&p.ID, &p.GroupID, &p.DeviceID, &p.PermissionType, &scheduleRaw,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query permission for door %s: %w", deviceID, err)
	}
	p.Schedule = unmarshalSchedule(scheduleRaw)
	return &p, nil
}
