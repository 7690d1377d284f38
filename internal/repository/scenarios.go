package repository

import (
	"context"
	"database/sql"
	"fmt"

	"firo-access/internal/models"

	"go.uber.org/zap"
)

// ScenariosRepository 场景规则仓库接口
type ScenariosRepository interface {
	ListScenarios(ctx context.Context) ([]models.Scenario, error)
	GetScenario(ctx context.Context, id int64) (*models.Scenario, error)
	CreateScenario(ctx context.Context, scenario *models.Scenario) error
	UpdateScenario(ctx context.Context, scenario *models.Scenario) error
	DeleteScenario(ctx context.Context, id int64) error
	// ListEnabledByTriggerValue 按触发类型与触发值精确匹配（刷卡触发）
	ListEnabledByTriggerValue(ctx context.Context, triggerType, triggerValue string) ([]models.Scenario, error)
	// ListEnabledByTrigger 列出某触发类型下所有启用的场景（设备事件触发，值匹配在内存中做）
	ListEnabledByTrigger(ctx context.Context, triggerType string) ([]models.Scenario, error)
}

// PostgresScenariosRepo 场景仓库 PostgreSQL 实现
type PostgresScenariosRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresScenariosRepo 创建场景仓库
func NewPostgresScenariosRepo(db *sql.DB, logger *zap.Logger) *PostgresScenariosRepo {
	return &PostgresScenariosRepo{db: db, logger: logger}
}

const scenarioColumns = `id, name, description, trigger_type, trigger_value, action_type, action_value, enabled, created_at`

func scanScenarios(rows *sql.Rows) ([]models.Scenario, error) {
	var scenarios []models.Scenario
	for rows.Next() {
		var s models.Scenario
		if err := rows.Scan(
			&s.ID, &s.Name, &s.Description, &s.TriggerType, &s.TriggerValue,
			&s.ActionType, &s.ActionValue, &s.Enabled, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan scenario: %w", err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, rows.Err()
}

func (r *PostgresScenariosRepo) ListScenarios(ctx context.Context) ([]models.Scenario, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+scenarioColumns+` FROM scenarios ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenarios: %w", err)
	}
	defer rows.Close()
	return scanScenarios(rows)
}

func (r *PostgresScenariosRepo) GetScenario(ctx context.Context, id int64) (*models.Scenario, error) {
	var s models.Scenario
	err := r.db.QueryRowContext(ctx,
		`SELECT `+scenarioColumns+` FROM scenarios WHERE id = $1`, id).Scan(
		&s.ID, &s.Name, &s.Description, &s.TriggerType, &s.TriggerValue,
		&s.ActionType, &s.ActionValue, &s.Enabled, &s.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query scenario %d: %w", id, err)
	}
	return &s, nil
}

func (r *PostgresScenariosRepo) CreateScenario(ctx context.Context, scenario *models.Scenario) error {
	query := `
		INSERT INTO scenarios (name, description, trigger_type, trigger_value, action_type, action_value, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		scenario.Name, scenario.Description, scenario.TriggerType, scenario.TriggerValue,
		scenario.ActionType, scenario.ActionValue, scenario.Enabled,
	).Scan(&scenario.ID)
	if err != nil {
		return fmt.Errorf("failed to create scenario %q: %w", scenario.Name, err)
	}
	return nil
}

func (r *PostgresScenariosRepo) UpdateScenario(ctx context.Context, scenario *models.Scenario) error {
	query := `
		UPDATE scenarios
		SET name = $2, description = $3, trigger_type = $4, trigger_value = $5,
		    action_type = $6, action_value = $7, enabled = $8
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query,
		scenario.ID, scenario.Name, scenario.Description, scenario.TriggerType, scenario.TriggerValue,
		scenario.ActionType, scenario.ActionValue, scenario.Enabled,
	)
	if err != nil {
		return fmt.Errorf("failed to update scenario %d: %w", scenario.ID, err)
	}
	return nil
}

func (r *PostgresScenariosRepo) DeleteScenario(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM scenarios WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete scenario %d: %w", id, err)
	}
	return nil
}

func (r *PostgresScenariosRepo) ListEnabledByTriggerValue(ctx context.Context, triggerType, triggerValue string) ([]models.Scenario, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+scenarioColumns+` FROM scenarios
		 WHERE enabled = TRUE AND trigger_type = $1 AND trigger_value = $2
		 ORDER BY id`,
		triggerType, triggerValue,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenarios for trigger %s/%s: %w", triggerType, triggerValue, err)
	}
	defer rows.Close()
	return scanScenarios(rows)
}

func (r *PostgresScenariosRepo) ListEnabledByTrigger(ctx context.Context, triggerType string) ([]models.Scenario, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+scenarioColumns+` FROM scenarios
		 WHERE enabled = TRUE AND trigger_type = $1
		 ORDER BY id`,
		triggerType,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenarios for trigger %s: %w", triggerType, err)
	}
	defer rows.Close()
	return scanScenarios(rows)
}
