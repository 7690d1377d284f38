package scheduler

import (
	"context"
	"sync"
	"time"

	"firo-access/internal/repository"

	"go.uber.org/zap"
)

// Commander 调度器需要的设备命令出口
type Commander interface {
	OpenDoorScheduled(deviceID string) error
	CloseDoorScheduled(deviceID string) error
}

// trackedWindow 正在生效的排程窗口
// closed 标志保证轮询路径与定时器路径只有一方发出关门命令
type trackedWindow struct {
	timer  *time.Timer
	closed bool
}

// DoorScheduler 门排程调度器
// 固定间隔轮询排程表，窗口开始发 open_door_sh，窗口结束发 close_door_sh
// 活动窗口只在内存里跟踪，重启后由下一次轮询重新推导
type DoorScheduler struct {
	schedules repository.DoorSchedulesRepository
	commander Commander
	interval  time.Duration
	logger    *zap.Logger

	mu     sync.Mutex
	active map[string]*trackedWindow
}

// NewDoorScheduler 创建调度器
func NewDoorScheduler(schedules repository.DoorSchedulesRepository, commander Commander, interval time.Duration, logger *zap.Logger) *DoorScheduler {
	return &DoorScheduler{
		schedules: schedules,
		commander: commander,
		interval:  interval,
		logger:    logger,
		active:    make(map[string]*trackedWindow),
	}
}

// Run 运行轮询循环，ctx 取消后关闭所有仍在生效的窗口
func (s *DoorScheduler) Run(ctx context.Context) {
	s.logger.Info("Door scheduler started", zap.Duration("interval", s.interval))

	s.poll(ctx, time.Now().UTC())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			s.logger.Info("Door scheduler stopped")
			return
		case now := <-ticker.C:
			s.poll(ctx, now.UTC())
		}
	}
}

// poll 逐门重新推导"现在是否在窗口内"并收敛内存状态
func (s *DoorScheduler) poll(ctx context.Context, now time.Time) {
	doorIDs, err := s.schedules.DoorIDsWithActiveSchedules(ctx)
	if err != nil {
		s.logger.Error("Scheduler poll failed", zap.Error(err))
		return
	}

	inWindow := make(map[string]bool, len(doorIDs))
	for _, doorID := range doorIDs {
		window, err := s.schedules.ActiveWindow(ctx, doorID, now)
		if err != nil {
			s.logger.Error("Schedule window lookup failed", zap.String("door_id", doorID), zap.Error(err))
			continue
		}
		if window == nil {
			continue
		}
		inWindow[doorID] = true
		s.activate(doorID, window.EndTimeUTC, now)
	}

	// 配置变化或窗口被手动停用时，轮询路径负责收尾
	s.mu.Lock()
	var stale []string
	for doorID := range s.active {
		if !inWindow[doorID] {
			stale = append(stale, doorID)
		}
	}
	s.mu.Unlock()

	for _, doorID := range stale {
		s.deactivate(doorID, "poll")
	}
}

// activate 进入窗口：发开门命令并武装窗口结束定时器
// 已跟踪的门不重复处理
func (s *DoorScheduler) activate(doorID, endTime string, now time.Time) {
	s.mu.Lock()
	if _, ok := s.active[doorID]; ok {
		s.mu.Unlock()
		return
	}

	delta := untilEndOfWindow(endTime, now)
	w := &trackedWindow{}
	w.timer = time.AfterFunc(delta, func() {
		s.deactivate(doorID, "timer")
	})
	s.active[doorID] = w
	s.mu.Unlock()

	s.logger.Info("Schedule window opened",
		zap.String("door_id", doorID),
		zap.String("end_time", endTime),
		zap.Duration("closes_in", delta),
	)

	if err := s.commander.OpenDoorScheduled(doorID); err != nil {
		s.logger.Error("Failed to issue scheduled open", zap.String("door_id", doorID), zap.Error(err))
	}
}

// deactivate 退出窗口：检查并清除跟踪项，只有第一个到达的路径发出关门命令
func (s *DoorScheduler) deactivate(doorID, source string) {
	s.mu.Lock()
	w, ok := s.active[doorID]
	if !ok || w.closed {
		s.mu.Unlock()
		return
	}
	w.closed = true
	delete(s.active, doorID)
	timer := w.timer
	s.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}

	s.logger.Info("Schedule window closed",
		zap.String("door_id", doorID),
		zap.String("source", source),
	)

	if err := s.commander.CloseDoorScheduled(doorID); err != nil {
		s.logger.Error("Failed to issue scheduled close", zap.String("door_id", doorID), zap.Error(err))
	}
}

func (s *DoorScheduler) closeAll() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.active))
	for doorID := range s.active {
		ids = append(ids, doorID)
	}
	s.mu.Unlock()

	for _, doorID := range ids {
		s.deactivate(doorID, "shutdown")
	}
}

// ActiveDoors 当前处于窗口内的门（API与面板用）
func (s *DoorScheduler) ActiveDoors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.active))
	for doorID := range s.active {
		ids = append(ids, doorID)
	}
	return ids
}

// untilEndOfWindow 计算到窗口结束的时长
// 结束时刻已过"今天"时按滚动到次日处理
func untilEndOfWindow(endTime string, now time.Time) time.Duration {
	parsed, err := time.Parse("15:04", endTime)
	if err != nil {
		return time.Minute
	}
	end := time.Date(now.Year(), now.Month(), now.Day(), parsed.Hour(), parsed.Minute(), 0, 0, time.UTC)
	delta := end.Sub(now)
	if delta < 0 {
		delta += 24 * time.Hour
	}
	return delta
}
