package switchbot

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doneToken struct{}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (doneToken) Error() error { return nil }

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeMQTT struct {
	mqtt.Client

	mu        sync.Mutex
	published []published
	handlers  map[string]mqtt.MessageHandler
}

func (f *fakeMQTT) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, published{topic: topic, retained: retained, payload: payload.([]byte)})
	return doneToken{}
}

func (f *fakeMQTT) Subscribe(topic string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers == nil {
		f.handlers = make(map[string]mqtt.MessageHandler)
	}
	f.handlers[topic] = cb
	return doneToken{}
}

type fakeMessage struct {
	mqtt.Message
	topic   string
	payload []byte
}

func (m fakeMessage) Topic() string   { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }

func TestMQTTPublishesRetainedState(t *testing.T) {
	client := &fakeMQTT{}
	publisher := newMQTTPublisher(client, "gohome/switchbot/", nil)

	publisher.Observe(Device{ID: "D1"}, VacuumState{State: StateDocked, Battery: intPtr(77)})

	require.Len(t, client.published, 1)
	msg := client.published[0]
	assert.Equal(t, "gohome/switchbot/vacuum/D1/state", msg.topic)
	assert.True(t, msg.retained)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(msg.payload, &payload))
	assert.Equal(t, "docked", payload["state"])
	assert.Equal(t, float64(77), payload["battery"])
}

func TestMQTTParseCommand(t *testing.T) {
	publisher := newMQTTPublisher(&fakeMQTT{}, "gohome/switchbot", nil)

	id, cmd, ok := publisher.parseCommand("gohome/switchbot/vacuum/D1/command", []byte(" Start\n"))
	require.True(t, ok)
	assert.Equal(t, "D1", id)
	assert.Equal(t, CommandStart, cmd)

	_, cmd, ok = publisher.parseCommand("gohome/switchbot/vacuum/D1/command", []byte("return_to_base"))
	require.True(t, ok)
	assert.Equal(t, CommandDock, cmd)

	_, _, ok = publisher.parseCommand("gohome/switchbot/vacuum/D1/command", []byte("explode"))
	assert.False(t, ok)
	_, _, ok = publisher.parseCommand("other/vacuum/D1/command", []byte("start"))
	assert.False(t, ok)
	_, _, ok = publisher.parseCommand("gohome/switchbot/vacuum/D1/state", []byte("start"))
	assert.False(t, ok)
}

func TestMQTTCommandsReachVacuum(t *testing.T) {
	api := hubAPI()
	hub := NewHub(api.factory(), time.Hour, nil)
	require.NoError(t, hub.Load(context.Background(), testEntry(t, "e1", nil)))

	client := &fakeMQTT{}
	publisher := newMQTTPublisher(client, "gohome/switchbot", nil)
	hub.Observe(publisher.Observe)
	require.NoError(t, publisher.HandleCommands(hub))

	handler := client.handlers["gohome/switchbot/vacuum/+/command"]
	require.NotNil(t, handler)
	handler(client, fakeMessage{topic: "gohome/switchbot/vacuum/D1/command", payload: []byte("start")})

	v, _ := hub.Vacuum("D1")
	require.Eventually(t, func() bool {
		state, ok := v.State()
		return ok && state.State == StateCleaning
	}, time.Second, 10*time.Millisecond)
}
