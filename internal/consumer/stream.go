package consumer

import (
	"context"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// StreamPublisher 把归一化后的门禁事件镜像到 Redis Stream
// 供下游分析/告警系统消费，写入失败只记日志
type StreamPublisher struct {
	client *redis.Client
	stream string
	logger *zap.Logger
}

// NewStreamPublisher 创建事件流发布器，client 为 nil 时所有写入为空操作
func NewStreamPublisher(client *redis.Client, stream string, logger *zap.Logger) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream, logger: logger}
}

// Publish 追加一条事件到流
func (p *StreamPublisher) Publish(ctx context.Context, values map[string]any) {
	if p.client == nil {
		return
	}
	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: values,
	}).Err()
	if err != nil {
		p.logger.Error("Failed to publish event to stream",
			zap.String("stream", p.stream),
			zap.Error(err),
		)
	}
}
