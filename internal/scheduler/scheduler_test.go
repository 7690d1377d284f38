package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"firo-access/internal/models"
	"firo-access/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingCommander struct {
	mu     sync.Mutex
	opens  []string
	closes []string
}

func (c *countingCommander) OpenDoorScheduled(deviceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opens = append(c.opens, deviceID)
	return nil
}

func (c *countingCommander) CloseDoorScheduled(deviceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes = append(c.closes, deviceID)
	return nil
}

func (c *countingCommander) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.closes)
}

type fakeScheduleStore struct {
	repository.DoorSchedulesRepository
	mu      sync.Mutex
	windows map[string]*models.DoorSchedule
}

func (f *fakeScheduleStore) setWindow(doorID string, w *models.DoorSchedule) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.windows == nil {
		f.windows = map[string]*models.DoorSchedule{}
	}
	if w == nil {
		delete(f.windows, doorID)
	} else {
		f.windows[doorID] = w
	}
}

func (f *fakeScheduleStore) DoorIDsWithActiveSchedules(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.windows))
	for id := range f.windows {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeScheduleStore) ActiveWindow(ctx context.Context, doorID string, now time.Time) (*models.DoorSchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.windows[doorID], nil
}

func newTestScheduler(store *fakeScheduleStore, cmd *countingCommander) *DoorScheduler {
	return NewDoorScheduler(store, cmd, time.Minute, zap.NewNop())
}

func TestPoll_OpensDoorOnceWhileWindowActive(t *testing.T) {
	store := &fakeScheduleStore{}
	store.setWindow("door-1", &models.DoorSchedule{
		DoorID: "door-1", IsActive: true, EndTimeUTC: "23:59", AccessType: models.AccessTypeAllowAll,
	})
	cmd := &countingCommander{}
	s := newTestScheduler(store, cmd)

	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	s.poll(context.Background(), now)
	s.poll(context.Background(), now.Add(time.Minute))

	assert.Equal(t, []string{"door-1"}, cmd.opens)
	assert.Empty(t, cmd.closes)
	assert.Equal(t, []string{"door-1"}, s.ActiveDoors())
}

func TestPoll_ClosesDoorWhenWindowEnds(t *testing.T) {
	store := &fakeScheduleStore{}
	store.setWindow("door-1", &models.DoorSchedule{
		DoorID: "door-1", IsActive: true, EndTimeUTC: "23:59", AccessType: models.AccessTypeAllowAll,
	})
	cmd := &countingCommander{}
	s := newTestScheduler(store, cmd)

	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	s.poll(context.Background(), now)

	store.setWindow("door-1", nil)
	s.poll(context.Background(), now.Add(time.Minute))

	assert.Equal(t, []string{"door-1"}, cmd.closes)
	assert.Empty(t, s.ActiveDoors())
}

func TestDeactivate_IdempotentAcrossPollAndTimer(t *testing.T) {
	store := &fakeScheduleStore{}
	store.setWindow("door-1", &models.DoorSchedule{
		DoorID: "door-1", IsActive: true, EndTimeUTC: "23:59", AccessType: models.AccessTypeAllowAll,
	})
	cmd := &countingCommander{}
	s := newTestScheduler(store, cmd)

	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	s.poll(context.Background(), now)

	// 定时器路径与轮询路径竞争收尾，只能有一条关门命令
	s.deactivate("door-1", "timer")
	s.deactivate("door-1", "poll")

	require.Equal(t, 1, cmd.closeCount())
}

func TestDeactivate_UntrackedDoorIsNoop(t *testing.T) {
	cmd := &countingCommander{}
	s := newTestScheduler(&fakeScheduleStore{}, cmd)

	s.deactivate("door-never-seen", "poll")

	assert.Zero(t, cmd.closeCount())
}

func TestUntilEndOfWindow(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, 7*time.Hour, untilEndOfWindow("17:00", now))
	// 结束时刻已过"今天"，滚到次日
	assert.Equal(t, 23*time.Hour, untilEndOfWindow("09:00", now))
}

func TestRun_ClosesActiveWindowsOnShutdown(t *testing.T) {
	store := &fakeScheduleStore{}
	store.setWindow("door-1", &models.DoorSchedule{
		DoorID: "door-1", IsActive: true, EndTimeUTC: "23:59", AccessType: models.AccessTypeAllowAll,
	})
	cmd := &countingCommander{}
	s := newTestScheduler(store, cmd)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	// 等首次轮询把窗口开起来
	require.Eventually(t, func() bool {
		return len(s.ActiveDoors()) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done

	assert.Equal(t, 1, cmd.closeCount())
}
