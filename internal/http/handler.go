package httpapi

import (
	"context"

	"firo-access/internal/audit"
	"firo-access/internal/engine"
	"firo-access/internal/models"
	"firo-access/internal/repository"
	"firo-access/internal/state"
	"firo-access/internal/ws"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// DeviceCommander 管理面需要的下行命令出口
type DeviceCommander interface {
	OpenDoor(deviceID string) error
	CloseDoor(deviceID string) error
	OpenDoorScheduled(deviceID string) error
	CloseDoorScheduled(deviceID string) error
	Reboot(deviceID string) error
	Beep(deviceID string, count int) error
}

// Decider 决策引擎的测试评估入口
type Decider interface {
	Decide(ctx context.Context, req *models.AccessRequestMessage) (*engine.Decision, error)
}

// Handler 管理API处理器，持有核心各部件
type Handler struct {
	users     repository.UsersRepository
	groups    repository.GroupsRepository
	doors     repository.DoorsRepository
	perms     repository.PermissionsRepository
	schedules repository.DoorSchedulesRepository
	scenarios repository.ScenariosRepository
	events    repository.EventsRepository

	registry  *state.DeviceRegistry
	emergency *state.EmergencyState
	commander DeviceCommander
	decider   Decider
	notifier  *ws.Notifier
	audit     *audit.Sink
	logger    *zap.Logger
}

// NewHandler 创建管理API处理器
func NewHandler(
	users repository.UsersRepository,
	groups repository.GroupsRepository,
	doors repository.DoorsRepository,
	perms repository.PermissionsRepository,
	schedules repository.DoorSchedulesRepository,
	scenarios repository.ScenariosRepository,
	events repository.EventsRepository,
	registry *state.DeviceRegistry,
	emergency *state.EmergencyState,
	commander DeviceCommander,
	decider Decider,
	notifier *ws.Notifier,
	auditSink *audit.Sink,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		users:     users,
		groups:    groups,
		doors:     doors,
		perms:     perms,
		schedules: schedules,
		scenarios: scenarios,
		events:    events,
		registry:  registry,
		emergency: emergency,
		commander: commander,
		decider:   decider,
		notifier:  notifier,
		audit:     auditSink,
		logger:    logger,
	}
}
