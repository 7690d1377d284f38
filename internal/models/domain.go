package models

import (
	"strings"
	"time"
)

// 状态常量（用户、群组、门共用）
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// 权限类型
const (
	PermissionAllow = "allow"
	PermissionDeny  = "deny"
)

// AccessTypeAllowAll 免验证通行时段（排程时段内跳过凭证检查）
const AccessTypeAllowAll = "allow_all"

// User 用户
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Groups    string    `json:"groups"` // 逗号分隔的群组ID列表
	PIN       int       `json:"pin"`    // 0 = 未设置
	CardCode  string    `json:"cardcode"`
	Liplate   string    `json:"liplate"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GroupIDs 解析群组ID列表（忽略空项）
func (u *User) GroupIDs() []string {
	if u.Groups == "" {
		return nil
	}
	parts := strings.Split(u.Groups, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsActive 用户是否处于激活状态
func (u *User) IsActive() bool {
	return strings.EqualFold(u.Status, StatusActive)
}

// Group 群组（连接用户与门权限）
type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	Peo         string    `json:"peo"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Door 门/设备
type Door struct {
	DeviceID    string     `json:"device_id"`
	Name        string     `json:"name"`
	Location    string     `json:"location"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	AutoCreated bool       `json:"auto_created"`
	LastSeen    *time.Time `json:"last_seen,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsActive 门是否处于激活状态
func (d *Door) IsActive() bool {
	return strings.EqualFold(d.Status, StatusActive)
}

// TimeRange 时间段（UTC，分钟精度，"HH:MM" 格式）
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// PermissionSchedule 权限内嵌的时间规则
// 空规则 = 永久允许；time_range 规则仅在 [start, end] 内允许（含边界）
type PermissionSchedule struct {
	Always    bool       `json:"always,omitempty"`
	TimeRange *TimeRange `json:"time_range,omitempty"`
}

// AllowsAt 判断给定时刻是否在允许范围内
func (s *PermissionSchedule) AllowsAt(t time.Time) bool {
	if s == nil {
		return true
	}
	if s.TimeRange == nil {
		// 空规则或显式 always 都视为永久允许
		return true
	}
	now := t.UTC().Format("15:04")
	start := s.TimeRange.Start
	end := s.TimeRange.End
	if start == "" {
		start = "00:00"
	}
	if end == "" {
		end = "23:59"
	}
	// "HH:MM" 零填充格式下字符串比较等价于时间比较
	return start <= now && now <= end
}

// DoorPermission 群组-门权限边
type DoorPermission struct {
	ID             int64               `json:"id"`
	GroupID        string              `json:"group_id"`
	DeviceID       string              `json:"device_id"`
	PermissionType string              `json:"permission_type"`
	Schedule       *PermissionSchedule `json:"schedule,omitempty"`
	GroupName      string              `json:"group_name,omitempty"`
	DoorName       string              `json:"door_name,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// DoorSchedule 门的自主通行排程（每周时间表）
type DoorSchedule struct {
	ID           int64     `json:"id"`
	DoorID       string    `json:"door_id"`
	ScheduleName string    `json:"schedule_name"`
	IsActive     bool      `json:"is_active"`
	StartTimeUTC string    `json:"start_time_utc"` // "HH:MM"
	EndTimeUTC   string    `json:"end_time_utc"`   // "HH:MM"，同日内晚于 start，不支持跨夜
	Weekdays     string    `json:"weekdays"`       // 7位掩码，下标0=周一..6=周日，'1'=生效
	AccessType   string    `json:"access_type"`
	CreatedAt    time.Time `json:"created_at"`
}

// InWindow 判断给定时刻（UTC）是否落在排程窗口内
func (s *DoorSchedule) InWindow(t time.Time) bool {
	if !s.IsActive {
		return false
	}
	t = t.UTC()
	// Go 的 Weekday 以周日为0，掩码以周一为0
	idx := (int(t.Weekday()) + 6) % 7
	if idx >= len(s.Weekdays) || s.Weekdays[idx] != '1' {
		return false
	}
	now := t.Format("15:04")
	return s.StartTimeUTC <= now && now <= s.EndTimeUTC
}

// 场景触发类型
const (
	TriggerCardScanned = "card_scanned"
)

// 场景触发值通配符（设备事件触发）
const TriggerValueAny = "any"

// 场景动作类型
const (
	ActionWebhook          = "webhook"
	ActionOpenDoor         = "open_door"
	ActionSendNotification = "send_notification"
)

// ValidActionType 动作类型是否属于封闭集合
func ValidActionType(t string) bool {
	switch t {
	case ActionWebhook, ActionOpenDoor, ActionSendNotification:
		return true
	}
	return false
}

// Scenario 触发/动作自动化规则
type Scenario struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	TriggerType  string    `json:"trigger_type"`
	TriggerValue string    `json:"trigger_value"`
	ActionType   string    `json:"action_type"`
	ActionValue  string    `json:"action_value"`
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"created_at"`
}

// MatchesDevice 设备事件触发值匹配：any、空串或精确设备ID
func (s *Scenario) MatchesDevice(deviceID string) bool {
	return s.TriggerValue == TriggerValueAny || s.TriggerValue == "" || s.TriggerValue == deviceID
}

// AuditEvent 审计日志条目
type AuditEvent struct {
	ID       int64     `json:"num"`
	Device   string    `json:"device"`
	Identity string    `json:"id"`
	Message  string    `json:"levent"`
	Time     time.Time `json:"time"`
}
