package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"firo-access/internal/audit"
	"firo-access/internal/config"
	"firo-access/internal/consumer"
	"firo-access/internal/database"
	"firo-access/internal/engine"
	httpapi "firo-access/internal/http"
	"firo-access/internal/mqtt"
	"firo-access/internal/repository"
	"firo-access/internal/scenario"
	"firo-access/internal/scheduler"
	"firo-access/internal/state"
	"firo-access/internal/ws"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// AccessService 门禁服务组合根
type AccessService struct {
	config *config.Config
	logger *zap.Logger

	db         *sql.DB
	redis      *redis.Client
	mqttClient *mqtt.Client

	emergency *state.EmergencyState
	registry  *state.DeviceRegistry

	hub       *ws.Hub
	scenario  *scenario.Engine
	consumer  *consumer.AccessConsumer
	scheduler *scheduler.DoorScheduler
	httpSrv   *http.Server

	cancel context.CancelFunc
}

// NewAccessService 创建门禁服务并装配全部部件
func NewAccessService(cfg *config.Config, logger *zap.Logger) (*AccessService, error) {
	// 初始化数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 初始化Redis（事件流镜像，可禁用）
	var redisClient *redis.Client
	if cfg.Access.Stream.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	// 初始化MQTT（连接在 Start 时建立）
	mqttClient := mqtt.NewClient(&cfg.MQTT, logger)

	// 创建Repository
	usersRepo := repository.NewPostgresUsersRepo(db, logger)
	groupsRepo := repository.NewPostgresGroupsRepo(db, logger)
	doorsRepo := repository.NewPostgresDoorsRepo(db, logger)
	permsRepo := repository.NewPostgresPermissionsRepo(db, logger)
	schedulesRepo := repository.NewPostgresDoorSchedulesRepo(db, logger)
	scenariosRepo := repository.NewPostgresScenariosRepo(db, logger)
	eventsRepo := repository.NewPostgresEventsRepo(db, logger)

	// 共享状态
	emergency := state.NewEmergencyState()
	registry := state.NewDeviceRegistry()

	auditSink := audit.NewSink(eventsRepo, logger)

	// 面板集线器：新连接推送当前设备与紧急状态快照
	hub := ws.NewHub(logger, func() [][]byte {
		return panelSnapshot(registry, emergency, logger)
	})
	notifier := ws.NewNotifier(hub, logger)

	// 下行命令出口
	commander := consumer.NewCommander(mqttClient, cfg.Access.Topics.Commands, cfg.MQTT.QoS, logger)

	// 场景引擎（动作在工作池执行）
	scenarioEngine := scenario.NewEngine(
		scenariosRepo,
		commander,
		notifier,
		cfg.Access.Scenario.Workers,
		time.Duration(cfg.Access.Scenario.WebhookTimeout)*time.Second,
		logger,
	)

	// 决策引擎，刷卡旁路钩子接到场景引擎
	accessEngine := engine.NewAccessEngine(
		usersRepo, doorsRepo, permsRepo, schedulesRepo,
		emergency, scenarioEngine, logger,
	)

	// 事件流镜像
	stream := consumer.NewStreamPublisher(redisClient, cfg.Access.Stream.Name, logger)

	// 协议消费者
	accessConsumer := consumer.NewAccessConsumer(
		mqttClient,
		consumer.Topics{
			Events:    cfg.Access.Topics.Events,
			Requests:  cfg.Access.Topics.Requests,
			Status:    cfg.Access.Topics.Status,
			Commands:  cfg.Access.Topics.Commands,
			Responses: cfg.Access.Topics.Responses,
		},
		cfg.MQTT.QoS,
		accessEngine,
		scenarioEngine,
		registry,
		doorsRepo,
		auditSink,
		notifier,
		stream,
		logger,
	)

	// 排程调度器
	doorScheduler := scheduler.NewDoorScheduler(
		schedulesRepo,
		commander,
		time.Duration(cfg.Access.Scheduler.PollInterval)*time.Second,
		logger,
	)

	// 管理API
	apiHandler := httpapi.NewHandler(
		usersRepo, groupsRepo, doorsRepo, permsRepo, schedulesRepo, scenariosRepo, eventsRepo,
		registry, emergency, commander, accessEngine, notifier, auditSink, logger,
	)
	router := httpapi.NewRouter(logger)
	router.RegisterRoutes(apiHandler)
	router.Handle("/ws", hub.ServeWS)

	return &AccessService{
		config:     cfg,
		logger:     logger,
		db:         db,
		redis:      redisClient,
		mqttClient: mqttClient,
		emergency:  emergency,
		registry:   registry,
		hub:        hub,
		scenario:   scenarioEngine,
		consumer:   accessConsumer,
		scheduler:  doorScheduler,
		httpSrv: &http.Server{
			Addr:    cfg.HTTP.Addr,
			Handler: router,
		},
	}, nil
}

// Start 启动服务各部件
func (s *AccessService) Start(ctx context.Context) error {
	s.logger.Info("Starting access service components")

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if err := s.mqttClient.Connect(); err != nil {
		cancel()
		return fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	if err := s.consumer.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start MQTT consumer: %w", err)
	}

	go s.hub.Run(runCtx)
	go s.scheduler.Run(runCtx)

	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.httpSrv.Addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	s.logger.Info("Access service started successfully")
	return nil
}

// Stop 按依赖逆序停止各部件
func (s *AccessService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping access service")

	if s.cancel != nil {
		s.cancel()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Error shutting down HTTP server", zap.Error(err))
	}

	if s.scenario != nil {
		s.scenario.Stop()
	}

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Error closing redis", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := database.Close(s.db); err != nil {
			s.logger.Error("Error closing database", zap.Error(err))
		}
	}

	s.logger.Info("Access service stopped")
	return nil
}

// panelSnapshot 新面板连接的初始消息批
func panelSnapshot(registry *state.DeviceRegistry, emergency *state.EmergencyState, logger *zap.Logger) [][]byte {
	capture := &snapshotBuffer{}
	n := ws.NewNotifier(capture, logger)
	n.DevicesUpdate(registry.Snapshot())
	n.EmergencyStatus(emergency.Snapshot())
	return capture.messages
}

type snapshotBuffer struct {
	messages [][]byte
}

func (b *snapshotBuffer) Broadcast(message []byte) {
	b.messages = append(b.messages, message)
}
