package switchbot

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshp123/gohome-switchbot/internal/config"
	"github.com/joshp123/gohome-switchbot/internal/core"
)

func TestNewPluginDisabledWithoutConfig(t *testing.T) {
	_, ok := NewPlugin(Options{})
	assert.False(t, ok)
}

func TestNewPluginInvalidConfig(t *testing.T) {
	plugin, ok := NewPlugin(Options{Config: &config.SwitchBotConfig{}})
	require.True(t, ok)
	assert.Equal(t, core.HealthError, plugin.Health())
	assert.Nil(t, plugin.Collectors())
	assert.Nil(t, plugin.Flow())
}

func TestPluginContract(t *testing.T) {
	plugin := newTestPlugin(t, hubAPI(), &memStore{})

	require.NoError(t, core.ValidatePlugins([]core.Plugin{plugin}))
	assert.Equal(t, PluginID, plugin.Manifest().PluginID)
	assert.Contains(t, plugin.AgentsMD(), "SwitchBotService")
	require.Len(t, plugin.Dashboards(), 1)
	assert.True(t, json.Valid(plugin.Dashboards()[0].JSON))
	assert.Len(t, plugin.Collectors(), 1)
}

func TestPluginRunLoadsStoredEntries(t *testing.T) {
	store := &memStore{}
	_, err := store.Create(context.Background(), testEntry(t, "e1", nil))
	require.NoError(t, err)

	plugin := newTestPlugin(t, hubAPI(), store)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- plugin.Run(ctx) }()

	require.Eventually(t, func() bool {
		v, ok := plugin.Hub().Vacuum("C271111EC0AB")
		if !ok {
			return false
		}
		state, known := v.State()
		return known && state.State == StateDocked
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, core.HealthHealthy, plugin.Health())

	cancel()
	require.NoError(t, <-done)
}

func TestPluginRunWithoutEntriesIsDegraded(t *testing.T) {
	plugin := newTestPlugin(t, hubAPI(), &memStore{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- plugin.Run(ctx) }()

	require.Eventually(t, func() bool { return plugin.Health() == core.HealthDegraded }, time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestPluginRunRetriesUnreachableEntries(t *testing.T) {
	store := &memStore{}
	_, err := store.Create(context.Background(), testEntry(t, "e1", strPtr("hook-1")))
	require.NoError(t, err)

	api := hubAPI()
	api.setListErr(HTTPStatusError{Status: 503, Body: "unavailable"})
	plugin := newTestPlugin(t, api, store)
	plugin.retryDelay = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- plugin.Run(ctx) }()

	require.Eventually(t, func() bool { return api.listDevicesCalls() >= 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, core.HealthDegraded, plugin.Health())
	assert.Empty(t, plugin.Hub().Vacuums())

	api.setListErr(nil)
	require.Eventually(t, func() bool {
		return len(plugin.Hub().Vacuums()) == 2 && plugin.Health() == core.HealthHealthy
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, plugin.Hub().HandleWebhook("hook-1", &Snapshot{DeviceID: "D1", WorkingStatus: strPtr("Paused")}))

	cancel()
	require.NoError(t, <-done)
}

func TestPluginRunDoesNotRetryRejectedCredentials(t *testing.T) {
	store := &memStore{}
	_, err := store.Create(context.Background(), testEntry(t, "e1", nil))
	require.NoError(t, err)

	api := hubAPI()
	api.setListErr(HTTPStatusError{Status: 401})
	plugin := newTestPlugin(t, api, store)
	plugin.retryDelay = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- plugin.Run(ctx) }()

	require.Eventually(t, func() bool { return plugin.Health() == core.HealthDegraded }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, api.listDevicesCalls())
	assert.Empty(t, plugin.Hub().Vacuums())

	cancel()
	require.NoError(t, <-done)
}
