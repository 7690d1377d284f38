package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"firo-access/internal/audit"
	"firo-access/internal/engine"
	"firo-access/internal/models"
	"firo-access/internal/mqtt"
	"firo-access/internal/repository"
	"firo-access/internal/state"

	"go.uber.org/zap"
)

// Topics 门禁主题集（固定五个）
type Topics struct {
	Events    string
	Requests  string
	Status    string
	Commands  string
	Responses string
}

// Bus 消息总线能力
type Bus interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Publish(topic string, qos byte, payload []byte) error
}

// DecisionEngine 通行决策入口
type DecisionEngine interface {
	Decide(ctx context.Context, req *models.AccessRequestMessage) (*engine.Decision, error)
}

// DeviceEventEvaluator 设备事件触发的场景评估入口
type DeviceEventEvaluator interface {
	EvaluateDeviceEvent(ctx context.Context, eventType, deviceID, description string)
}

// PanelNotifier 操作面板设备状态推送
type PanelNotifier interface {
	DevicesUpdate(devices any)
}

// AccessConsumer 门禁协议消费者
// 订阅固定主题集，按主题分发到各自的类型化处理函数
// 消息体解析失败只丢弃并记日志，绝不让接收循环崩溃
type AccessConsumer struct {
	bus      Bus
	topics   Topics
	qos      byte
	engine   DecisionEngine
	scenario DeviceEventEvaluator
	registry *state.DeviceRegistry
	doors    repository.DoorsRepository
	audit    *audit.Sink
	notifier PanelNotifier
	stream   *StreamPublisher
	logger   *zap.Logger
}

// NewAccessConsumer 创建协议消费者
func NewAccessConsumer(
	bus Bus,
	topics Topics,
	qos byte,
	decisionEngine DecisionEngine,
	scenarioEngine DeviceEventEvaluator,
	registry *state.DeviceRegistry,
	doors repository.DoorsRepository,
	auditSink *audit.Sink,
	notifier PanelNotifier,
	stream *StreamPublisher,
	logger *zap.Logger,
) *AccessConsumer {
	return &AccessConsumer{
		bus:      bus,
		topics:   topics,
		qos:      qos,
		engine:   decisionEngine,
		scenario: scenarioEngine,
		registry: registry,
		doors:    doors,
		audit:    auditSink,
		notifier: notifier,
		stream:   stream,
		logger:   logger,
	}
}

// Start 订阅全部门禁主题
func (c *AccessConsumer) Start() error {
	subscriptions := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{c.topics.Requests, c.handleRequest},
		{c.topics.Status, c.handleStatus},
		{c.topics.Events, c.handleEvent},
		{c.topics.Responses, c.handleResponse},
		{c.topics.Commands, c.handleCommand},
	}

	for _, sub := range subscriptions {
		if err := c.bus.Subscribe(sub.topic, c.qos, sub.handler); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", sub.topic, err)
		}
		c.logger.Info("Subscribed to topic", zap.String("topic", sub.topic))
	}

	return nil
}

// handleRequest 处理门禁请求：决策、响应、审计
func (c *AccessConsumer) handleRequest(topic string, payload []byte) error {
	var req models.AccessRequestMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		c.logger.Warn("Dropping malformed access request", zap.Error(err))
		return nil
	}
	if req.DeviceID == "" {
		c.logger.Warn("Dropping access request without device_id")
		return nil
	}

	ctx := context.Background()

	decision, err := c.engine.Decide(ctx, &req)
	if err != nil {
		// 存储层故障：回"服务器错误"，绝不静默放行
		c.logger.Error("Access decision failed",
			zap.String("request_id", req.RequestID),
			zap.String("device_id", req.DeviceID),
			zap.Error(err),
		)
		decision = &engine.Decision{Allowed: false, Message: "Server error"}
	}

	c.publishResponse(&req, decision)

	identity := credentialIdentity(&req, decision)
	c.audit.Record(ctx, req.DeviceID, identity, decision.Message)

	c.stream.Publish(ctx, map[string]any{
		"type":      "access_request",
		"device_id": req.DeviceID,
		"identity":  identity,
		"success":   decision.Allowed,
		"message":   decision.Message,
	})

	return nil
}

func (c *AccessConsumer) publishResponse(req *models.AccessRequestMessage, decision *engine.Decision) {
	resp := models.AccessResponseMessage{
		RequestID: req.RequestID,
		DeviceID:  req.DeviceID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Success:   decision.Allowed,
		Message:   decision.Message,
	}
	if decision.User != nil {
		resp.User = &models.ResponseUser{ID: decision.User.ID, Name: decision.User.Name}
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("Failed to marshal access response", zap.Error(err))
		return
	}
	if err := c.bus.Publish(c.topics.Responses, c.qos, payload); err != nil {
		c.logger.Error("Failed to publish access response",
			zap.String("request_id", req.RequestID),
			zap.Error(err),
		)
	}
}

// handleStatus 处理设备状态上报：更新在线表，首次出现自动建档
func (c *AccessConsumer) handleStatus(topic string, payload []byte) error {
	var msg models.DeviceStatusMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.logger.Warn("Dropping malformed status message", zap.Error(err))
		return nil
	}
	if msg.DeviceID == "" {
		return nil
	}

	ctx := context.Background()
	now := time.Now().UTC()

	firstSeen := c.registry.UpdateStatus(msg.DeviceID, msg.Status, msg.IP, now)
	if firstSeen {
		if err := c.doors.RegisterDevice(ctx, msg.DeviceID, msg.IP); err != nil {
			c.logger.Error("Device auto-registration failed",
				zap.String("device_id", msg.DeviceID),
				zap.Error(err),
			)
		}
	}
	if err := c.doors.UpdateLastSeen(ctx, msg.DeviceID); err != nil {
		c.logger.Error("Failed to update last_seen",
			zap.String("device_id", msg.DeviceID),
			zap.Error(err),
		)
	}

	c.notifier.DevicesUpdate(c.registry.Snapshot())

	c.stream.Publish(ctx, map[string]any{
		"type":      "device_status",
		"device_id": msg.DeviceID,
		"status":    msg.Status,
		"ip":        msg.IP,
	})

	return nil
}

// handleEvent 处理设备事件：刷新在线状态并转发场景引擎
func (c *AccessConsumer) handleEvent(topic string, payload []byte) error {
	var msg models.DeviceEventMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.logger.Warn("Dropping malformed device event", zap.Error(err))
		return nil
	}
	if msg.DeviceID == "" || msg.EventType == "" {
		return nil
	}

	ctx := context.Background()
	now := time.Now().UTC()

	c.registry.NoteEvent(msg.DeviceID, msg.EventType, now)
	if err := c.doors.UpdateLastSeen(ctx, msg.DeviceID); err != nil {
		c.logger.Error("Failed to update last_seen",
			zap.String("device_id", msg.DeviceID),
			zap.Error(err),
		)
	}

	c.scenario.EvaluateDeviceEvent(ctx, msg.EventType, msg.DeviceID, msg.Description)

	c.audit.Record(ctx, msg.DeviceID, "", fmt.Sprintf("Device event: %s", msg.EventType))
	c.notifier.DevicesUpdate(c.registry.Snapshot())

	c.stream.Publish(ctx, map[string]any{
		"type":        "device_event",
		"device_id":   msg.DeviceID,
		"event_type":  msg.EventType,
		"description": msg.Description,
	})

	return nil
}

// handleResponse 设备对命令的确认，只记日志，不改状态
func (c *AccessConsumer) handleResponse(topic string, payload []byte) error {
	var ack models.CommandAckMessage
	if err := json.Unmarshal(payload, &ack); err != nil {
		return nil
	}
	if ack.Command == "" && ack.Result == "" {
		// 自己发出的门禁响应也会回流到这个主题，忽略
		return nil
	}
	c.logger.Info("Device command acknowledged",
		zap.String("device_id", ack.DeviceID),
		zap.String("command", ack.Command),
		zap.String("result", ack.Result),
	)
	return nil
}

// handleCommand 回流的下行命令，只记日志
func (c *AccessConsumer) handleCommand(topic string, payload []byte) error {
	var msg models.CommandMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil
	}
	c.logger.Debug("Command observed on bus",
		zap.String("command", string(msg.Command)),
		zap.String("device_id", msg.DeviceID),
	)
	return nil
}

// credentialIdentity 推导审计用的身份标识
func credentialIdentity(req *models.AccessRequestMessage, decision *engine.Decision) string {
	if decision.User != nil {
		return decision.User.ID
	}
	if req.CardNumber != "" {
		return "card:" + req.CardNumber
	}
	if req.PinCode != "" {
		return "pin"
	}
	return "unknown"
}
