package mqtt

import (
	"fmt"
	"time"

	"firo-access/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// 握手等待：最多 connectAttempts 次，每次间隔 connectWait
const (
	connectAttempts = 5
	connectWait     = 500 * time.Millisecond
)

// MessageHandler 消息处理函数类型
type MessageHandler func(topic string, payload []byte) error

// Client MQTT客户端封装
type Client struct {
	client mqtt.Client
	config *config.MQTTConfig
	logger *zap.Logger
}

// NewClient 创建MQTT客户端（不建立连接）
func NewClient(cfg *config.MQTTConfig, logger *zap.Logger) *Client {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	// 不自动重连：重连由显式的 Connect 调用驱动
	opts.SetAutoReconnect(false)
	opts.SetCleanSession(true)

	return &Client{
		client: mqtt.NewClient(opts),
		config: cfg,
		logger: logger,
	}
}

// Connect 建立会话，有界等待握手完成
// 等待若干个固定间隔后仍未连上即宣告失败，不会无限重试
func (c *Client) Connect() error {
	token := c.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker %s: %w", c.config.Broker, err)
	}

	for i := 0; i < connectAttempts; i++ {
		if c.client.IsConnected() {
			return nil
		}
		time.Sleep(connectWait)
	}

	return fmt.Errorf("MQTT handshake with %s did not complete", c.config.Broker)
}

// Subscribe 订阅主题
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	token := c.client.Subscribe(topic, qos, func(client mqtt.Client, msg mqtt.Message) {
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			// 记录错误，但不中断接收循环
			c.logger.Error("Error handling MQTT message",
				zap.String("topic", msg.Topic()),
				zap.Error(err),
			)
		}
	})
	if token.Wait(); token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, token.Error())
	}

	return nil
}

// Publish 发布消息
func (c *Client) Publish(topic string, qos byte, payload []byte) error {
	if !c.client.IsConnected() {
		return fmt.Errorf("cannot publish to %s: client not connected", topic)
	}

	token := c.client.Publish(topic, qos, false, payload)
	token.Wait()

	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}

	return nil
}

// Unsubscribe 取消订阅
func (c *Client) Unsubscribe(topics ...string) error {
	token := c.client.Unsubscribe(topics...)
	token.Wait()

	if token.Error() != nil {
		return fmt.Errorf("failed to unsubscribe: %w", token.Error())
	}

	return nil
}

// IsConnected 检查连接状态
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Disconnect 断开连接
func (c *Client) Disconnect() {
	c.client.Disconnect(250) // 250ms等待时间
}
