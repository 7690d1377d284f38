package ws

import (
	"encoding/json"

	"go.uber.org/zap"
)

// 面板事件名
const (
	EventDevicesUpdate        = "devices_update"
	EventEmergencyStatus      = "emergency_status"
	EventEmergencyEvacuation  = "emergency_evacuation"
	EventEmergencyLockdown    = "emergency_lockdown"
	EventScenarioNotification = "scenario_notification"
)

// Envelope 面板消息信封
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Broadcaster 消息广播抽象，便于在测试里替换 Hub
type Broadcaster interface {
	Broadcast(message []byte)
}

// Notifier 面向业务层的面板事件出口
type Notifier struct {
	hub    Broadcaster
	logger *zap.Logger
}

// NewNotifier 创建面板事件出口
func NewNotifier(hub Broadcaster, logger *zap.Logger) *Notifier {
	return &Notifier{hub: hub, logger: logger}
}

func (n *Notifier) emit(event string, data any) {
	payload, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		n.logger.Error("Failed to marshal panel event", zap.String("event", event), zap.Error(err))
		return
	}
	n.hub.Broadcast(payload)
}

// DevicesUpdate 推送设备在线状态变化
func (n *Notifier) DevicesUpdate(devices any) {
	n.emit(EventDevicesUpdate, devices)
}

// EmergencyStatus 推送当前紧急状态
func (n *Notifier) EmergencyStatus(status map[string]bool) {
	n.emit(EventEmergencyStatus, status)
}

// EmergencyEvacuation 推送疏散通告
func (n *Notifier) EmergencyEvacuation(active bool) {
	n.emit(EventEmergencyEvacuation, map[string]bool{"active": active})
}

// EmergencyLockdown 推送封锁通告
func (n *Notifier) EmergencyLockdown(active bool) {
	n.emit(EventEmergencyLockdown, map[string]bool{"active": active})
}

// ScenarioNotification 推送场景触发通知
func (n *Notifier) ScenarioNotification(scenarioName, message string) {
	n.emit(EventScenarioNotification, map[string]string{
		"scenario": scenarioName,
		"message":  message,
	})
}
