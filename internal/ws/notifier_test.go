package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captureBroadcaster struct {
	messages [][]byte
}

func (c *captureBroadcaster) Broadcast(message []byte) {
	c.messages = append(c.messages, message)
}

func TestNotifier_EmitsEnvelope(t *testing.T) {
	capture := &captureBroadcaster{}
	n := NewNotifier(capture, zap.NewNop())

	n.ScenarioNotification("after-hours", "Side door opened")

	require.Len(t, capture.messages, 1)

	var env Envelope
	require.NoError(t, json.Unmarshal(capture.messages[0], &env))
	assert.Equal(t, EventScenarioNotification, env.Event)

	data, ok := env.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "after-hours", data["scenario"])
	assert.Equal(t, "Side door opened", data["message"])
}

func TestNotifier_EmergencyEvents(t *testing.T) {
	capture := &captureBroadcaster{}
	n := NewNotifier(capture, zap.NewNop())

	n.EmergencyLockdown(true)
	n.EmergencyEvacuation(false)
	n.EmergencyStatus(map[string]bool{"normal": true, "evacuation": false, "lockdown": false})

	require.Len(t, capture.messages, 3)

	var env Envelope
	require.NoError(t, json.Unmarshal(capture.messages[0], &env))
	assert.Equal(t, EventEmergencyLockdown, env.Event)

	require.NoError(t, json.Unmarshal(capture.messages[2], &env))
	assert.Equal(t, EventEmergencyStatus, env.Event)
}
