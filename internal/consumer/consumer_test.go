package consumer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"firo-access/internal/audit"
	"firo-access/internal/engine"
	"firo-access/internal/models"
	"firo-access/internal/mqtt"
	"firo-access/internal/repository"
	"firo-access/internal/state"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBus struct {
	published map[string][][]byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{published: map[string][][]byte{}}
}

func (f *fakeBus) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	return nil
}

func (f *fakeBus) Publish(topic string, qos byte, payload []byte) error {
	f.published[topic] = append(f.published[topic], payload)
	return nil
}

type fakeEngine struct {
	decision *engine.Decision
	err      error
	requests []*models.AccessRequestMessage
}

func (f *fakeEngine) Decide(ctx context.Context, req *models.AccessRequestMessage) (*engine.Decision, error) {
	f.requests = append(f.requests, req)
	return f.decision, f.err
}

type fakeEvaluator struct {
	events []string
}

func (f *fakeEvaluator) EvaluateDeviceEvent(ctx context.Context, eventType, deviceID, description string) {
	f.events = append(f.events, eventType+"@"+deviceID)
}

type fakeDoorStore struct {
	repository.DoorsRepository
	registered []string
	seen       []string
}

func (f *fakeDoorStore) RegisterDevice(ctx context.Context, deviceID, ip string) error {
	f.registered = append(f.registered, deviceID)
	return nil
}

func (f *fakeDoorStore) UpdateLastSeen(ctx context.Context, deviceID string) error {
	f.seen = append(f.seen, deviceID)
	return nil
}

type fakeEventStore struct {
	repository.EventsRepository
	appended []*models.AuditEvent
}

func (f *fakeEventStore) Append(ctx context.Context, event *models.AuditEvent) error {
	f.appended = append(f.appended, event)
	return nil
}

type fakePanel struct {
	updates int
}

func (f *fakePanel) DevicesUpdate(devices any) {
	f.updates++
}

var testTopics = Topics{
	Events:    "access/events",
	Requests:  "access/requests",
	Status:    "access/status",
	Commands:  "access/commands",
	Responses: "access/responses",
}

type consumerFixture struct {
	bus       *fakeBus
	engine    *fakeEngine
	evaluator *fakeEvaluator
	doors     *fakeDoorStore
	events    *fakeEventStore
	panel     *fakePanel
	registry  *state.DeviceRegistry
	consumer  *AccessConsumer
}

func newFixture(t *testing.T, stream *StreamPublisher) *consumerFixture {
	t.Helper()
	f := &consumerFixture{
		bus:       newFakeBus(),
		engine:    &fakeEngine{decision: &engine.Decision{Allowed: true, Message: "Access granted"}},
		evaluator: &fakeEvaluator{},
		doors:     &fakeDoorStore{},
		events:    &fakeEventStore{},
		panel:     &fakePanel{},
		registry:  state.NewDeviceRegistry(),
	}
	if stream == nil {
		stream = NewStreamPublisher(nil, "", zap.NewNop())
	}
	f.consumer = NewAccessConsumer(
		f.bus, testTopics, 1,
		f.engine, f.evaluator, f.registry, f.doors,
		audit.NewSink(f.events, zap.NewNop()),
		f.panel, stream, zap.NewNop(),
	)
	return f
}

func TestHandleRequest_PublishesDecision(t *testing.T) {
	f := newFixture(t, nil)
	f.engine.decision = &engine.Decision{
		Allowed: true, Message: "Access granted",
		User: &models.User{ID: "alice", Name: "Alice"},
	}

	payload, _ := json.Marshal(models.AccessRequestMessage{
		RequestID: "req-1", DeviceID: "door-1", CardNumber: "A1B2",
	})
	require.NoError(t, f.consumer.handleRequest(testTopics.Requests, payload))

	responses := f.bus.published[testTopics.Responses]
	require.Len(t, responses, 1)

	var resp models.AccessResponseMessage
	require.NoError(t, json.Unmarshal(responses[0], &resp))
	assert.Equal(t, "req-1", resp.RequestID)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.User)
	assert.Equal(t, "alice", resp.User.ID)

	// 审计落了一条
	require.Len(t, f.events.appended, 1)
	assert.Equal(t, "alice", f.events.appended[0].Identity)
}

func TestHandleRequest_MalformedPayloadDropped(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.consumer.handleRequest(testTopics.Requests, []byte("{not json")))

	assert.Empty(t, f.bus.published[testTopics.Responses])
	assert.Empty(t, f.engine.requests)
}

func TestHandleRequest_StoreFailureBecomesServerError(t *testing.T) {
	f := newFixture(t, nil)
	f.engine.decision = nil
	f.engine.err = assert.AnError

	payload, _ := json.Marshal(models.AccessRequestMessage{
		RequestID: "req-1", DeviceID: "door-1", CardNumber: "A1B2",
	})
	require.NoError(t, f.consumer.handleRequest(testTopics.Requests, payload))

	responses := f.bus.published[testTopics.Responses]
	require.Len(t, responses, 1)

	var resp models.AccessResponseMessage
	require.NoError(t, json.Unmarshal(responses[0], &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "Server error", resp.Message)
}

func TestHandleStatus_AutoRegistersFirstSeenDevice(t *testing.T) {
	f := newFixture(t, nil)

	payload, _ := json.Marshal(models.DeviceStatusMessage{
		DeviceID: "door_9", Status: "online", IP: "10.0.0.9",
	})
	require.NoError(t, f.consumer.handleStatus(testTopics.Status, payload))
	require.NoError(t, f.consumer.handleStatus(testTopics.Status, payload))

	// 只有首次出现触发建档
	assert.Equal(t, []string{"door_9"}, f.doors.registered)
	assert.Equal(t, []string{"door_9", "door_9"}, f.doors.seen)
	assert.Equal(t, 2, f.panel.updates)

	info, ok := f.registry.Get("door_9")
	require.True(t, ok)
	assert.Equal(t, "online", info.Status)
}

func TestHandleEvent_ForwardsToScenarioEngine(t *testing.T) {
	f := newFixture(t, nil)

	payload, _ := json.Marshal(models.DeviceEventMessage{
		DeviceID: "door-1", EventType: "door_forced", Description: "held open",
	})
	require.NoError(t, f.consumer.handleEvent(testTopics.Events, payload))

	assert.Equal(t, []string{"door_forced@door-1"}, f.evaluator.events)

	info, ok := f.registry.Get("door-1")
	require.True(t, ok)
	assert.Equal(t, "online", info.Status)
	assert.Equal(t, "door_forced", info.LastEvent)
}

func TestHandleRequest_MirrorsToStream(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	stream := NewStreamPublisher(client, "access:events:stream", zap.NewNop())

	f := newFixture(t, stream)

	payload, _ := json.Marshal(models.AccessRequestMessage{
		RequestID: "req-1", DeviceID: "door-1", CardNumber: "A1B2",
	})
	require.NoError(t, f.consumer.handleRequest(testTopics.Requests, payload))

	entries, err := client.XRange(context.Background(), "access:events:stream", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "access_request", entries[0].Values["type"])
	assert.Equal(t, "door-1", entries[0].Values["device_id"])
}

func TestCommander_PublishesCommandEnvelope(t *testing.T) {
	bus := newFakeBus()
	cmd := NewCommander(bus, testTopics.Commands, 1, zap.NewNop())

	require.NoError(t, cmd.OpenDoor("door-1"))
	require.NoError(t, cmd.Beep("door-1", 3))

	published := bus.published[testTopics.Commands]
	require.Len(t, published, 2)

	var open models.CommandMessage
	require.NoError(t, json.Unmarshal(published[0], &open))
	assert.Equal(t, models.CommandOpenDoor, open.Command)
	assert.Equal(t, "door-1", open.DeviceID)

	ts, err := time.Parse(time.RFC3339, open.Timestamp)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), ts, time.Minute)

	var beep models.CommandMessage
	require.NoError(t, json.Unmarshal(published[1], &beep))
	assert.Equal(t, models.CommandBeep, beep.Command)
	assert.Equal(t, 3, beep.Count)
}
