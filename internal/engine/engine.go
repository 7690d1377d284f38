package engine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"firo-access/internal/models"
	"firo-access/internal/repository"
	"firo-access/internal/state"

	"go.uber.org/zap"
)

// Decision 决策结果
// 业务层面的拒绝不是错误，Decide 只在存储层故障时返回 error
type Decision struct {
	Allowed bool
	Message string
	User    *models.User
}

// CardScanHook 刷卡事件旁路钩子
// 凭证解析阶段一旦识别到卡号即触发，与最终判定结果无关
type CardScanHook interface {
	OnCardScanned(ctx context.Context, cardNumber, deviceID string)
}

// AccessEngine 通行决策引擎
// 纯读取评估，除刷卡钩子外没有副作用
type AccessEngine struct {
	users     repository.UsersRepository
	doors     repository.DoorsRepository
	perms     repository.PermissionsRepository
	schedules repository.DoorSchedulesRepository
	emergency *state.EmergencyState
	hook      CardScanHook
	logger    *zap.Logger
}

// NewAccessEngine 创建决策引擎，hook 可为 nil
func NewAccessEngine(
	users repository.UsersRepository,
	doors repository.DoorsRepository,
	perms repository.PermissionsRepository,
	schedules repository.DoorSchedulesRepository,
	emergency *state.EmergencyState,
	hook CardScanHook,
	logger *zap.Logger,
) *AccessEngine {
	return &AccessEngine{
		users:     users,
		doors:     doors,
		perms:     perms,
		schedules: schedules,
		emergency: emergency,
		hook:      hook,
		logger:    logger,
	}
}

// Decide 评估一次通行请求
// 规则按固定顺序求值，命中即停；返回 error 仅代表存储层故障
func (e *AccessEngine) Decide(ctx context.Context, req *models.AccessRequestMessage) (*Decision, error) {
	now := time.Now().UTC()

	// 规则1：免验证通行时段，门处于激活状态时跳过一切凭证检查
	door, err := e.doors.GetDoor(ctx, req.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("door lookup failed: %w", err)
	}
	if door != nil && door.IsActive() {
		window, err := e.schedules.ActiveWindow(ctx, req.DeviceID, now)
		if err != nil {
			return nil, fmt.Errorf("schedule lookup failed: %w", err)
		}
		if window != nil && window.AccessType == models.AccessTypeAllowAll {
			return &Decision{Allowed: true, Message: "Free access, open hours"}, nil
		}
	}

	// 规则2：封锁模式下无条件拒绝，不查任何凭证
	if e.emergency.IsLockdown() {
		return &Decision{Allowed: false, Message: "Access denied, lockdown active"}, nil
	}

	// 规则3：凭证解析
	var user *models.User
	switch {
	case req.CardNumber != "":
		// 卡号一旦到达解析阶段就触发场景钩子，与判定结果无关
		if e.hook != nil {
			e.hook.OnCardScanned(ctx, req.CardNumber, req.DeviceID)
		}
		user, err = e.users.GetUserByCard(ctx, req.CardNumber)
		if err != nil {
			return nil, fmt.Errorf("card lookup failed: %w", err)
		}
	case req.PinCode != "":
		// 坏格式的PIN归一化为0，0永远不命中真实用户
		pin, convErr := strconv.Atoi(req.PinCode)
		if convErr != nil {
			pin = 0
		}
		user, err = e.users.GetUserByPIN(ctx, pin)
		if err != nil {
			return nil, fmt.Errorf("pin lookup failed: %w", err)
		}
	default:
		return &Decision{Allowed: false, Message: "User not found"}, nil
	}

	// 规则4：用户存在且激活
	if user == nil {
		return &Decision{Allowed: false, Message: "User not found"}, nil
	}
	if !user.IsActive() {
		return &Decision{Allowed: false, Message: "User is inactive", User: user}, nil
	}

	// 规则5：凭证类型必须在用户档案上有对应字段
	if req.CardNumber != "" && user.CardCode == "" {
		return &Decision{Allowed: false, Message: "User has no card assigned", User: user}, nil
	}
	if req.CardNumber == "" && user.PIN == 0 {
		return &Decision{Allowed: false, Message: "User has no PIN assigned", User: user}, nil
	}

	// 规则6：门解析，未知门先自动建档再查一次
	if door == nil {
		if err := e.doors.RegisterDevice(ctx, req.DeviceID, ""); err != nil {
			return nil, fmt.Errorf("device registration failed: %w", err)
		}
		door, err = e.doors.GetDoor(ctx, req.DeviceID)
		if err != nil {
			return nil, fmt.Errorf("door lookup failed: %w", err)
		}
	}
	if door == nil {
		return &Decision{Allowed: false, Message: "Door not found", User: user}, nil
	}
	if !door.IsActive() {
		return &Decision{Allowed: false, Message: "Door is inactive", User: user}, nil
	}

	// 规则7：用户必须属于至少一个群组
	groupIDs := user.GroupIDs()
	if len(groupIDs) == 0 {
		return &Decision{Allowed: false, Message: "User has no groups", User: user}, nil
	}

	// 规则8：查权限边，deny 压过 allow
	perm, err := e.perms.FindForDoor(ctx, groupIDs, req.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("permission lookup failed: %w", err)
	}

	// 规则10：没有任何权限边即拒绝
	if perm == nil {
		return &Decision{Allowed: false, Message: "No permissions for this door", User: user}, nil
	}
	if perm.PermissionType == models.PermissionDeny {
		return &Decision{Allowed: false, Message: "Access denied by permission", User: user}, nil
	}

	// 规则9：allow 权限还要过内嵌排程，空排程 = 永久允许
	if !perm.Schedule.AllowsAt(now) {
		return &Decision{Allowed: false, Message: "Outside allowed time range", User: user}, nil
	}

	return &Decision{Allowed: true, Message: "Access granted", User: user}, nil
}
