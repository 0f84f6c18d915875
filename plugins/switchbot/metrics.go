package switchbot

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector exports the cached vacuum state. It never calls the vendor.
type MetricsCollector struct {
	hub *Hub

	success        *prometheus.GaugeVec
	state          *prometheus.GaugeVec
	batteryPercent *prometheus.GaugeVec
}

func NewMetricsCollector(hub *Hub) *MetricsCollector {
	labels := []string{"device_id", "device_name"}
	return &MetricsCollector{
		hub: hub,
		success: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gohome_switchbot_scrape_success",
			Help: "Last status poll success (1=ok, 0=error)",
		}, labels),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gohome_switchbot_vacuum_state",
			Help: "Vacuum state (1 for the current state label)",
		}, append(labels, "state")),
		batteryPercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gohome_switchbot_vacuum_battery_percent",
			Help: "Battery percentage (0-100)",
		}, labels),
	}
}

func (c *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	c.success.Describe(ch)
	c.state.Describe(ch)
	c.batteryPercent.Describe(ch)
}

func (c *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	c.success.Reset()
	c.state.Reset()
	c.batteryPercent.Reset()

	for _, vacuum := range c.hub.Vacuums() {
		device := vacuum.Device()
		if coord, ok := c.hub.Coordinator(device.ID); ok {
			c.success.WithLabelValues(device.ID, device.Name).Set(boolToFloat(coord.LastUpdateSuccess()))
		}

		current, known := vacuum.State()
		if !known {
			continue
		}
		for _, state := range States {
			value := 0.0
			if state == current.State {
				value = 1
			}
			c.state.WithLabelValues(device.ID, device.Name, string(state)).Set(value)
		}
		if current.Battery != nil {
			c.batteryPercent.WithLabelValues(device.ID, device.Name).Set(float64(*current.Battery))
		}
	}

	c.success.Collect(ch)
	c.state.Collect(ch)
	c.batteryPercent.Collect(ch)
}

func boolToFloat(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
