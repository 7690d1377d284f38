package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"firo-access/internal/audit"
	"firo-access/internal/engine"
	"firo-access/internal/models"
	"firo-access/internal/repository"
	"firo-access/internal/state"
	"firo-access/internal/ws"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCommander struct {
	opened   []string
	closed   []string
	rebooted []string
}

func (f *fakeCommander) OpenDoor(deviceID string) error {
	f.opened = append(f.opened, deviceID)
	return nil
}

func (f *fakeCommander) CloseDoor(deviceID string) error {
	f.closed = append(f.closed, deviceID)
	return nil
}

func (f *fakeCommander) OpenDoorScheduled(deviceID string) error {
	f.opened = append(f.opened, deviceID)
	return nil
}

func (f *fakeCommander) CloseDoorScheduled(deviceID string) error {
	f.closed = append(f.closed, deviceID)
	return nil
}

func (f *fakeCommander) Reboot(deviceID string) error {
	f.rebooted = append(f.rebooted, deviceID)
	return nil
}

func (f *fakeCommander) Beep(deviceID string, count int) error { return nil }

type fakeDecider struct {
	requests []*models.AccessRequestMessage
	decision *engine.Decision
}

func (f *fakeDecider) Decide(ctx context.Context, req *models.AccessRequestMessage) (*engine.Decision, error) {
	f.requests = append(f.requests, req)
	return f.decision, nil
}

type fakeDoorsRepo struct {
	repository.DoorsRepository
	doors []models.Door
}

func (f *fakeDoorsRepo) ListDoors(ctx context.Context) ([]models.Door, error) {
	return f.doors, nil
}

type nullEvents struct {
	repository.EventsRepository
}

func (nullEvents) Append(ctx context.Context, event *models.AuditEvent) error { return nil }

type nullBroadcaster struct{}

func (nullBroadcaster) Broadcast(message []byte) {}

type apiFixture struct {
	handler   *Handler
	router    *Router
	commander *fakeCommander
	decider   *fakeDecider
	emergency *state.EmergencyState
	registry  *state.DeviceRegistry
	doors     *fakeDoorsRepo
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	logger := zap.NewNop()
	f := &apiFixture{
		commander: &fakeCommander{},
		decider:   &fakeDecider{decision: &engine.Decision{Allowed: true, Message: "Access granted"}},
		emergency: state.NewEmergencyState(),
		registry:  state.NewDeviceRegistry(),
		doors:     &fakeDoorsRepo{},
	}
	f.handler = NewHandler(
		nil, nil, f.doors, nil, nil, nil, nil,
		f.registry, f.emergency, f.commander, f.decider,
		ws.NewNotifier(nullBroadcaster{}, logger),
		audit.NewSink(nullEvents{}, logger),
		logger,
	)
	f.router = NewRouter(logger)
	f.router.RegisterRoutes(f.handler)
	return f
}

func (f *apiFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) Result[any] {
	t.Helper()
	var res Result[any]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func TestCheckAccess_DefaultsToTestDevice(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/check_access", `{"card_number":"A1B2"}`)

	res := decodeResult(t, rec)
	assert.Equal(t, ResultSuccess, res.Code)
	require.Len(t, f.decider.requests, 1)
	assert.Equal(t, "test_device", f.decider.requests[0].DeviceID)
	assert.NotEmpty(t, f.decider.requests[0].RequestID)
}

func TestCheckAccess_RequiresCredential(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/check_access", `{}`)

	res := decodeResult(t, rec)
	assert.Equal(t, ResultError, res.Code)
	assert.Empty(t, f.decider.requests)
}

func TestDoorCommand_OpenBlockedDuringLockdown(t *testing.T) {
	f := newAPIFixture(t)
	f.emergency.Set(state.ModeLockdown)

	rec := f.do(t, http.MethodPost, "/api/doors/door-1/command", `{"command":"open_door"}`)

	res := decodeResult(t, rec)
	assert.Equal(t, ResultError, res.Code)
	assert.Contains(t, res.Message, "lockdown")
	assert.Empty(t, f.commander.opened)
}

func TestDoorCommand_CloseBlockedDuringEvacuation(t *testing.T) {
	f := newAPIFixture(t)
	f.emergency.Set(state.ModeEvacuation)

	rec := f.do(t, http.MethodPost, "/api/doors/door-1/command", `{"command":"close_door"}`)

	res := decodeResult(t, rec)
	assert.Equal(t, ResultError, res.Code)
	assert.Empty(t, f.commander.closed)
}

func TestDoorCommand_OpenAllowedInNormalMode(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/doors/door-1/command", `{"command":"open_door"}`)

	res := decodeResult(t, rec)
	assert.Equal(t, ResultSuccess, res.Code)
	assert.Equal(t, []string{"door-1"}, f.commander.opened)
}

func TestEmergencyEvacuation_OpensAllKnownDoors(t *testing.T) {
	f := newAPIFixture(t)
	f.doors.doors = []models.Door{{DeviceID: "door-1"}, {DeviceID: "door-2"}}
	// 只在在线表里出现的设备也要开
	f.registry.UpdateStatus("door-3", "online", "", time.Now().UTC())

	rec := f.do(t, http.MethodPost, "/api/emergency/evacuation", "")

	res := decodeResult(t, rec)
	assert.Equal(t, ResultSuccess, res.Code)
	assert.True(t, f.emergency.IsEvacuation())
	assert.ElementsMatch(t, []string{"door-1", "door-2", "door-3"}, f.commander.opened)
}

func TestEmergencyLockdown_ClosesAllKnownDoors(t *testing.T) {
	f := newAPIFixture(t)
	f.doors.doors = []models.Door{{DeviceID: "door-1"}}

	rec := f.do(t, http.MethodPost, "/api/emergency/lockdown", "")

	res := decodeResult(t, rec)
	assert.Equal(t, ResultSuccess, res.Code)
	assert.True(t, f.emergency.IsLockdown())
	assert.Equal(t, []string{"door-1"}, f.commander.closed)
}

func TestEmergencyNormal_ClearsState(t *testing.T) {
	f := newAPIFixture(t)
	f.emergency.Set(state.ModeLockdown)

	rec := f.do(t, http.MethodPost, "/api/emergency/normal", "")

	res := decodeResult(t, rec)
	assert.Equal(t, ResultSuccess, res.Code)
	assert.Equal(t, state.ModeNormal, f.emergency.Mode())
}

func TestEmergencyStatus_ReportsFlags(t *testing.T) {
	f := newAPIFixture(t)
	f.emergency.Set(state.ModeEvacuation)

	rec := f.do(t, http.MethodGet, "/api/emergency/status", "")

	var res Result[map[string]bool]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Result["evacuation"])
	assert.False(t, res.Result["normal"])
	assert.False(t, res.Result["lockdown"])
}

func TestSchedules_RejectsOvernightWindow(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/schedules",
		`{"door_id":"door-1","schedule_name":"night","start_time_utc":"22:00","end_time_utc":"06:00","weekdays":"1111100"}`)

	res := decodeResult(t, rec)
	assert.Equal(t, ResultError, res.Code)
	assert.Contains(t, res.Message, "later than")
}

func TestSchedules_RejectsBadWeekdayMask(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/schedules",
		`{"door_id":"door-1","schedule_name":"x","start_time_utc":"09:00","end_time_utc":"17:00","weekdays":"11111"}`)

	res := decodeResult(t, rec)
	assert.Equal(t, ResultError, res.Code)
	assert.Contains(t, res.Message, "bitmask")
}
