package scenario

import (
	"context"
	"sync"
	"time"

	"firo-access/internal/models"
	"firo-access/internal/repository"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// DoorOpener 场景动作需要的开门出口
type DoorOpener interface {
	OpenDoor(deviceID string) error
}

// Notifier 操作面板通知出口
type Notifier interface {
	ScenarioNotification(scenarioName, message string)
}

// task 一次待执行的场景动作
type task struct {
	scenario models.Scenario
	context  map[string]any
}

// WebhookEnvelope webhook 动作的 POST 载荷
type WebhookEnvelope struct {
	EventType    string         `json:"event_type"`
	Timestamp    string         `json:"timestamp"`
	Data         map[string]any `json:"data"`
	ScenarioName string         `json:"scenario_name"`
}

// Engine 场景自动化引擎
// 触发评估在调用方协程内完成，动作执行派发到工作池
// 慢 webhook 不会拖住协议接收循环
type Engine struct {
	scenarios repository.ScenariosRepository
	opener    DoorOpener
	notifier  Notifier
	http      *resty.Client
	logger    *zap.Logger

	tasks chan task
	wg    sync.WaitGroup
}

// NewEngine 创建场景引擎
// workers 是动作执行协程数，webhookTimeout 限定单次 HTTP 调用时长
func NewEngine(
	scenarios repository.ScenariosRepository,
	opener DoorOpener,
	notifier Notifier,
	workers int,
	webhookTimeout time.Duration,
	logger *zap.Logger,
) *Engine {
	if workers <= 0 {
		workers = 1
	}
	e := &Engine{
		scenarios: scenarios,
		opener:    opener,
		notifier:  notifier,
		http:      resty.New().SetTimeout(webhookTimeout),
		logger:    logger,
		tasks:     make(chan task, 256),
	}
	e.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go e.worker()
	}
	return e
}

// Stop 停止工作池，排空已入队的动作
func (e *Engine) Stop() {
	close(e.tasks)
	e.wg.Wait()
}

func (e *Engine) worker() {
	defer e.wg.Done()
	for t := range e.tasks {
		e.execute(t)
	}
}

// OnCardScanned 决策引擎的刷卡旁路钩子入口
func (e *Engine) OnCardScanned(ctx context.Context, cardNumber, deviceID string) {
	e.EvaluateCardScan(ctx, cardNumber, deviceID)
}

// EvaluateCardScan 评估刷卡触发的场景
// trigger_value 必须与卡号精确相等才算命中
func (e *Engine) EvaluateCardScan(ctx context.Context, cardNumber, deviceID string) {
	scenarios, err := e.scenarios.ListEnabledByTriggerValue(ctx, models.TriggerCardScanned, cardNumber)
	if err != nil {
		e.logger.Error("Failed to load card scan scenarios", zap.Error(err))
		return
	}

	eventContext := map[string]any{
		"trigger":     models.TriggerCardScanned,
		"card_number": cardNumber,
		"device_id":   deviceID,
	}
	for _, s := range scenarios {
		e.enqueue(s, eventContext)
	}
}

// EvaluateDeviceEvent 评估设备事件触发的场景
// trigger_value 为 any/空串时通配，否则要求设备ID精确匹配
func (e *Engine) EvaluateDeviceEvent(ctx context.Context, eventType, deviceID, description string) {
	scenarios, err := e.scenarios.ListEnabledByTrigger(ctx, eventType)
	if err != nil {
		e.logger.Error("Failed to load device event scenarios", zap.String("event_type", eventType), zap.Error(err))
		return
	}

	eventContext := map[string]any{
		"trigger":     eventType,
		"device_id":   deviceID,
		"description": description,
	}
	for _, s := range scenarios {
		if s.MatchesDevice(deviceID) {
			e.enqueue(s, eventContext)
		}
	}
}

func (e *Engine) enqueue(s models.Scenario, eventContext map[string]any) {
	select {
	case e.tasks <- task{scenario: s, context: eventContext}:
	default:
		e.logger.Warn("Scenario queue full, dropping action",
			zap.String("scenario", s.Name),
			zap.String("action_type", s.ActionType),
		)
	}
}

// execute 执行单个动作，任何失败只记日志，不影响其它场景
func (e *Engine) execute(t task) {
	s := t.scenario
	e.logger.Info("Scenario triggered",
		zap.String("scenario", s.Name),
		zap.String("action_type", s.ActionType),
	)

	switch s.ActionType {
	case models.ActionWebhook:
		e.fireWebhook(s, t.context)
	case models.ActionOpenDoor:
		if err := e.opener.OpenDoor(s.ActionValue); err != nil {
			e.logger.Error("Scenario open_door action failed",
				zap.String("scenario", s.Name),
				zap.String("device_id", s.ActionValue),
				zap.Error(err),
			)
		}
	case models.ActionSendNotification:
		e.notifier.ScenarioNotification(s.Name, s.ActionValue)
	default:
		e.logger.Warn("Unknown scenario action type",
			zap.String("scenario", s.Name),
			zap.String("action_type", s.ActionType),
		)
	}
}

func (e *Engine) fireWebhook(s models.Scenario, eventContext map[string]any) {
	envelope := WebhookEnvelope{
		EventType:    "scenario_triggered",
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Data:         eventContext,
		ScenarioName: s.Name,
	}

	resp, err := e.http.R().
		SetHeader("Content-Type", "application/json").
		SetBody(envelope).
		Post(s.ActionValue)
	if err != nil {
		e.logger.Error("Scenario webhook failed",
			zap.String("scenario", s.Name),
			zap.String("url", s.ActionValue),
			zap.Error(err),
		)
		return
	}
	if resp.IsError() {
		e.logger.Error("Scenario webhook returned error status",
			zap.String("scenario", s.Name),
			zap.String("url", s.ActionValue),
			zap.Int("status", resp.StatusCode()),
		)
	}
}
