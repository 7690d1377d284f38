package audit

import (
	"context"
	"time"

	"firo-access/internal/models"
	"firo-access/internal/repository"

	"go.uber.org/zap"
)

// Sink 审计日志写入口
// 写入失败只记日志，不向调用方冒泡，审计不能阻塞业务路径
type Sink struct {
	events repository.EventsRepository
	logger *zap.Logger
}

// NewSink 创建审计写入口
func NewSink(events repository.EventsRepository, logger *zap.Logger) *Sink {
	return &Sink{events: events, logger: logger}
}

// Record 记录一条审计事件
func (s *Sink) Record(ctx context.Context, device, identity, message string) {
	event := &models.AuditEvent{
		Device:   device,
		Identity: identity,
		Message:  message,
		Time:     time.Now().UTC(),
	}
	if err := s.events.Append(ctx, event); err != nil {
		s.logger.Error("Failed to write audit event",
			zap.String("device", device),
			zap.String("identity", identity),
			zap.String("message", message),
			zap.Error(err),
		)
	}
}
