package switchbot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCollectorExportsCachedState(t *testing.T) {
	hub := NewHub(hubAPI().factory(), time.Hour, nil)
	require.NoError(t, hub.Load(context.Background(), testEntry(t, "e1", nil)))
	coord, _ := hub.Coordinator("D1")
	require.NoError(t, coord.Refresh(context.Background()))

	collector := NewMetricsCollector(hub)

	expected := `
# HELP gohome_switchbot_vacuum_battery_percent Battery percentage (0-100)
# TYPE gohome_switchbot_vacuum_battery_percent gauge
gohome_switchbot_vacuum_battery_percent{device_id="D1",device_name="Bedroom"} 30
`
	require.NoError(t, testutil.CollectAndCompare(collector, strings.NewReader(expected), "gohome_switchbot_vacuum_battery_percent"))
	assert.Equal(t, len(States), testutil.CollectAndCount(collector, "gohome_switchbot_vacuum_state"))
	assert.Equal(t, 2, testutil.CollectAndCount(collector, "gohome_switchbot_scrape_success"))

	active := `
# HELP gohome_switchbot_scrape_success Last status poll success (1=ok, 0=error)
# TYPE gohome_switchbot_scrape_success gauge
gohome_switchbot_scrape_success{device_id="C271111EC0AB",device_name="Kitchen"} 0
gohome_switchbot_scrape_success{device_id="D1",device_name="Bedroom"} 1
`
	require.NoError(t, testutil.CollectAndCompare(collector, strings.NewReader(active), "gohome_switchbot_scrape_success"))
}
