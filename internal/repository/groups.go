package repository

import (
	"context"
	"database/sql"
	"fmt"

	"firo-access/internal/models"

	"go.uber.org/zap"
)

// GroupsRepository 群组仓库接口
type GroupsRepository interface {
	ListGroups(ctx context.Context) ([]models.Group, error)
	GetGroupByID(ctx context.Context, id string) (*models.Group, error)
	CreateGroup(ctx context.Context, group *models.Group) error
	UpdateGroup(ctx context.Context, group *models.Group) error
	DeleteGroup(ctx context.Context, id string) error
}

// PostgresGroupsRepo 群组仓库 PostgreSQL 实现
type PostgresGroupsRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresGroupsRepo 创建群组仓库
func NewPostgresGroupsRepo(db *sql.DB, logger *zap.Logger) *PostgresGroupsRepo {
	return &PostgresGroupsRepo{db: db, logger: logger}
}

const groupColumns = `id, name, status, peo, description, created_at, updated_at`

func (r *PostgresGroupsRepo) ListGroups(ctx context.Context) ([]models.Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	var groups []models.Group
	for rows.Next() {
		var g models.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Status, &g.Peo, &g.Description, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}

	return groups, rows.Err()
}

func (r *PostgresGroupsRepo) GetGroupByID(ctx context.Context, id string) (*models.Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups WHERE id = $1`

	var g models.Group
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&g.ID, &g.Name, &g.Status, &g.Peo, &g.Description, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query group %s: %w", id, err)
	}
	return &g, nil
}

func (r *PostgresGroupsRepo) CreateGroup(ctx context.Context, group *models.Group) error {
	query := `
		INSERT INTO groups (id, name, status, peo, description)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query, group.ID, group.Name, group.Status, group.Peo, group.Description)
	if err != nil {
		return fmt.Errorf("failed to create group %s: %w", group.ID, err)
	}
	return nil
}

func (r *PostgresGroupsRepo) UpdateGroup(ctx context.Context, group *models.Group) error {
	query := `
		UPDATE groups
		SET name = $2, status = $3, peo = $4, description = $5, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, group.ID, group.Name, group.Status, group.Peo, group.Description)
	if err != nil {
		return fmt.Errorf("failed to update group %s: %w", group.ID, err)
	}
	return nil
}

func (r *PostgresGroupsRepo) DeleteGroup(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group %s: %w", id, err)
	}
	return nil
}
