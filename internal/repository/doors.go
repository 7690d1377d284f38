package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"firo-access/internal/models"

	"go.uber.org/zap"
)

// DoorsRepository 门/设备仓库接口
type DoorsRepository interface {
	ListDoors(ctx context.Context) ([]models.Door, error)
	GetDoor(ctx context.Context, deviceID string) (*models.Door, error)
	CreateDoor(ctx context.Context, door *models.Door) error
	UpdateDoor(ctx context.Context, door *models.Door) error
	// DeleteDoor 删除门并级联删除引用它的权限
	DeleteDoor(ctx context.Context, deviceID string) error
	// RegisterDevice 设备首次出现时自动建档（已存在则不变）
	RegisterDevice(ctx context.Context, deviceID, ip string) error
	UpdateLastSeen(ctx context.Context, deviceID string) error
}

// PostgresDoorsRepo 门仓库 PostgreSQL 实现
type PostgresDoorsRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresDoorsRepo 创建门仓库
func NewPostgresDoorsRepo(db *sql.DB, logger *zap.Logger) *PostgresDoorsRepo {
	return &PostgresDoorsRepo{db: db, logger: logger}
}

const doorColumns = `device_id, name, location, description, status, auto_created, last_seen, created_at, updated_at`

func scanDoorRow(scan func(dest ...any) error) (*models.Door, error) {
	var d models.Door
	var lastSeen sql.NullTime
	err := scan(
		&d.DeviceID,
		&d.Name,
		&d.Location,
		&d.Description,
		&d.Status,
		&d.AutoCreated,
		&lastSeen,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastSeen.Valid {
		t := lastSeen.Time
		d.LastSeen = &t
	}
	return &d, nil
}

func (r *PostgresDoorsRepo) ListDoors(ctx context.Context) ([]models.Door, error) {
	query := `SELECT ` + doorColumns + ` FROM doors ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query doors: %w", err)
	}
	defer rows.Close()

	var doors []models.Door
	for rows.Next() {
		d, err := scanDoorRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan door: %w", err)
		}
		doors = append(doors, *d)
	}

	return doors, rows.Err()
}

func (r *PostgresDoorsRepo) GetDoor(ctx context.Context, deviceID string) (*models.Door, error) {
	query := `SELECT ` + doorColumns + ` FROM doors WHERE device_id = $1`

	d, err := scanDoorRow(r.db.QueryRowContext(ctx, query, deviceID).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query door %s: %w", deviceID, err)
	}
	return d, nil
}

func (r *PostgresDoorsRepo) CreateDoor(ctx context.Context, door *models.Door) error {
	query := `
		INSERT INTO doors (device_id, name, location, description, status, auto_created)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		door.DeviceID, door.Name, door.Location, door.Description, door.Status, door.AutoCreated,
	)
	if err != nil {
		return fmt.Errorf("failed to create door %s: %w", door.DeviceID, err)
	}
	return nil
}

func (r *PostgresDoorsRepo) UpdateDoor(ctx context.Context, door *models.Door) error {
	query := `
		UPDATE doors
		SET name = $2, location = $3, description = $4, status = $5, updated_at = NOW()
		WHERE device_id = $1
	`
	_, err := r.db.ExecContext(ctx, query,
		door.DeviceID, door.Name, door.Location, door.Description, door.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to update door %s: %w", door.DeviceID, err)
	}
	return nil
}

// DeleteDoor 先删权限再删门，保持引用完整
func (r *PostgresDoorsRepo) DeleteDoor(ctx context.Context, deviceID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM door_permissions WHERE device_id = $1`, deviceID); err != nil {
		return fmt.Errorf("failed to delete permissions for door %s: %w", deviceID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM doors WHERE device_id = $1`, deviceID); err != nil {
		return fmt.Errorf("failed to delete door %s: %w", deviceID, err)
	}

	return tx.Commit()
}

func (r *PostgresDoorsRepo) RegisterDevice(ctx context.Context, deviceID, ip string) error {
	description := "Auto-registered"
	if ip != "" {
		description = fmt.Sprintf("Auto-registered from %s", ip)
	}

	query := `
		INSERT INTO doors (device_id, name, description, status, auto_created, last_seen)
		VALUES ($1, $2, $3, 'active', TRUE, $4)
		ON CONFLICT (device_id) DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, query,
		deviceID, fmt.Sprintf("Door %s", deviceID), description, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to register device %s: %w", deviceID, err)
	}

	if n, err := result.RowsAffected(); err == nil && n > 0 && r.logger != nil {
		r.logger.Info("Auto-registered new door",
			zap.String("device_id", deviceID),
			zap.String("ip", ip),
		)
	}
	return nil
}

func (r *PostgresDoorsRepo) UpdateLastSeen(ctx context.Context, deviceID string) error {
	query := `UPDATE doors SET last_seen = $2, updated_at = NOW() WHERE device_id = $1`
	_, err := r.db.ExecContext(ctx, query, deviceID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update last_seen for %s: %w", deviceID, err)
	}
	return nil
}
