package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"firo-access/internal/models"

	"go.uber.org/zap"
)

// UsersRepository 用户仓库接口
// 查询未命中时返回 (nil, nil)，便于决策引擎把"用户不存在"当作正常结果处理
type UsersRepository interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByCard(ctx context.Context, cardNumber string) (*models.User, error)
	GetUserByPIN(ctx context.Context, pin int) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id string) error
	AddUserToGroup(ctx context.Context, userID, groupID string) error
	RemoveUserFromGroup(ctx context.Context, userID, groupID string) error
}

// PostgresUsersRepo 用户仓库 PostgreSQL 实现
type PostgresUsersRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresUsersRepo 创建用户仓库
func NewPostgresUsersRepo(db *sql.DB, logger *zap.Logger) *PostgresUsersRepo {
	return &PostgresUsersRepo{db: db, logger: logger}
}

const userColumns = `id, name, status, groups, pin, cardcode, liplate, role, created_at, updated_at`

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Status,
		&u.Groups,
		&u.PIN,
		&u.CardCode,
		&u.Liplate,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}

func (r *PostgresUsersRepo) ListUsers(ctx context.Context) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(
			&u.ID,
			&u.Name,
			&u.Status,
			&u.Groups,
			&u.PIN,
			&u.CardCode,
			&u.Liplate,
			&u.Role,
			&u.CreatedAt,
			&u.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

// GetUserByID 按ID查询（ID比较不区分大小写）
func (r *PostgresUsersRepo) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(id) = LOWER($1)`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetUserByCard 按卡号精确查询
func (r *PostgresUsersRepo) GetUserByCard(ctx context.Context, cardNumber string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE cardcode = $1 AND cardcode <> ''`
	return scanUser(r.db.QueryRowContext(ctx, query, cardNumber))
}

// GetUserByPIN 按PIN查询
// pin = 0 表示未设置，永远不参与匹配
func (r *PostgresUsersRepo) GetUserByPIN(ctx context.Context, pin int) (*models.User, error) {
	if pin == 0 {
		return nil, nil
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE pin = $1 AND pin <> 0`
	return scanUser(r.db.QueryRowContext(ctx, query, pin))
}

func (r *PostgresUsersRepo) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, name, status, groups, pin, cardcode, liplate, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Name, user.Status, user.Groups,
		user.PIN, user.CardCode, user.Liplate, user.Role,
	)
	if err != nil {
		return fmt.Errorf("failed to create user %s: %w", user.ID, err)
	}
	return nil
}

func (r *PostgresUsersRepo) UpdateUser(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET name = $2, status = $3, groups = $4, pin = $5,
		    cardcode = $6, liplate = $7, role = $8, updated_at = NOW()
		WHERE LOWER(id) = LOWER($1)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Name, user.Status, user.Groups,
		user.PIN, user.CardCode, user.Liplate, user.Role,
	)
	if err != nil {
		return fmt.Errorf("failed to update user %s: %w", user.ID, err)
	}
	return nil
}

func (r *PostgresUsersRepo) DeleteUser(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE LOWER(id) = LOWER($1)`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user %s: %w", id, err)
	}
	return nil
}

// AddUserToGroup 把群组ID加入用户的群组列表（已存在则不变）
func (r *PostgresUsersRepo) AddUserToGroup(ctx context.Context, userID, groupID string) error {
	user, err := r.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("user not found: %s", userID)
	}

	for _, g := range user.GroupIDs() {
		if g == groupID {
			return nil
		}
	}

	groups := append(user.GroupIDs(), groupID)
	_, err = r.db.ExecContext(ctx,
		`UPDATE users SET groups = $2, updated_at = NOW() WHERE LOWER(id) = LOWER($1)`,
		userID, strings.Join(groups, ","),
	)
	if err != nil {
		return fmt.Errorf("failed to add user %s to group %s: %w", userID, groupID, err)
	}
	return nil
}

// RemoveUserFromGroup 把群组ID从用户的群组列表移除
func (r *PostgresUsersRepo) RemoveUserFromGroup(ctx context.Context, userID, groupID string) error {
	user, err := r.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("user not found: %s", userID)
	}

	groups := make([]string, 0)
	for _, g := range user.GroupIDs() {
		if g != groupID {
			groups = append(groups, g)
		}
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE users SET groups = $2, updated_at = NOW() WHERE LOWER(id) = LOWER($1)`,
		userID, strings.Join(groups, ","),
	)
	if err != nil {
		return fmt.Errorf("failed to remove user %s from group %s: %w", userID, groupID, err)
	}
	return nil
}
