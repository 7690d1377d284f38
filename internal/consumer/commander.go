package consumer

import (
	"encoding/json"
	"fmt"
	"time"

	"firo-access/internal/models"

	"go.uber.org/zap"
)

// Publisher 命令出口需要的发布能力
type Publisher interface {
	Publish(topic string, qos byte, payload []byte) error
}

// Commander 下行设备命令出口
// 所有命令都是 fire-and-forget，投递可靠性完全依赖 broker 的 QoS
type Commander struct {
	publisher Publisher
	topic     string
	qos       byte
	logger    *zap.Logger
}

// NewCommander 创建命令出口
func NewCommander(publisher Publisher, topic string, qos byte, logger *zap.Logger) *Commander {
	return &Commander{publisher: publisher, topic: topic, qos: qos, logger: logger}
}

func (c *Commander) send(command models.CommandKind, deviceID string, count int) error {
	msg := models.CommandMessage{
		Command:   command,
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Count:     count,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal command %s: %w", command, err)
	}

	if err := c.publisher.Publish(c.topic, c.qos, payload); err != nil {
		c.logger.Error("Failed to publish device command",
			zap.String("command", string(command)),
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		return err
	}

	c.logger.Info("Device command published",
		zap.String("command", string(command)),
		zap.String("device_id", deviceID),
	)
	return nil
}

// OpenDoor 开门
func (c *Commander) OpenDoor(deviceID string) error {
	return c.send(models.CommandOpenDoor, deviceID, 0)
}

// CloseDoor 关门
func (c *Commander) CloseDoor(deviceID string) error {
	return c.send(models.CommandCloseDoor, deviceID, 0)
}

// OpenDoorScheduled 排程开门（免验证时段开始）
func (c *Commander) OpenDoorScheduled(deviceID string) error {
	return c.send(models.CommandOpenDoorScheduled, deviceID, 0)
}

// CloseDoorScheduled 排程关门（免验证时段结束）
func (c *Commander) CloseDoorScheduled(deviceID string) error {
	return c.send(models.CommandCloseDoorScheduled, deviceID, 0)
}

// Reboot 重启设备
func (c *Commander) Reboot(deviceID string) error {
	return c.send(models.CommandReboot, deviceID, 0)
}

// Beep 蜂鸣 count 次
func (c *Commander) Beep(deviceID string, count int) error {
	if count <= 0 {
		count = 1
	}
	return c.send(models.CommandBeep, deviceID, count)
}
