package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshp123/gohome-switchbot/plugins/switchbot"
)

func TestResolveNamedID(t *testing.T) {
	options := map[string]string{"Living Room": "C271111EC0AB", "Bed-room": "D1"}

	id, err := resolveNamedID("vacuum", "living room", options)
	require.NoError(t, err)
	assert.Equal(t, "C271111EC0AB", id)

	id, err = resolveNamedID("vacuum", "bed_room", options)
	require.NoError(t, err)
	assert.Equal(t, "D1", id)

	_, err = resolveNamedID("vacuum", "garage", options)
	assert.EqualError(t, err, `vacuum "garage" not found. Available: Bed-room, Living Room`)
}

func TestVacuumRow(t *testing.T) {
	assert.Equal(t, []string{"Kitchen", "D1", "docked", "80%"},
		vacuumRow(map[string]any{"name": "Kitchen", "device_id": "D1", "state": "docked", "battery_percent": float64(80)}))
	assert.Equal(t, []string{"Kitchen", "D1", "unknown", "-"},
		vacuumRow(map[string]any{"name": "Kitchen", "device_id": "D1"}))
}

func TestSwitchBotServiceName(t *testing.T) {
	assert.Equal(t, switchbot.ServicePackage+"."+switchbot.ServiceName, switchbotService)
}
