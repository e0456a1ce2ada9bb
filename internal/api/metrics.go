package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/abode-bridge/internal/device"
	"github.com/nerrad567/abode-bridge/internal/platform"
)

// SystemMetrics is the body of GET /api/v1/metrics.
type SystemMetrics struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	Core          platform.Status `json:"core"`
	Devices       DeviceMetrics   `json:"devices"`
	WebSocket     WSMetrics       `json:"websocket"`
	MQTT          *LinkMetrics    `json:"mqtt,omitempty"`
	InfluxDB      *LinkMetrics    `json:"influxdb,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// DeviceMetrics counts supported devices.
type DeviceMetrics struct {
	Total  int            `json:"total"`
	On     int            `json:"on"`
	ByKind map[string]int `json:"by_kind"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// LinkMetrics reports an optional downstream connection.
type LinkMetrics struct {
	Connected bool `json:"connected"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Core:      s.core.Status(),
		Devices:   deviceMetrics(s.core.Devices()),
		WebSocket: WSMetrics{ConnectedClients: s.hub.ClientCount()},
	}

	if s.mqtt != nil {
		metrics.MQTT = &LinkMetrics{Connected: s.mqtt.IsConnected()}
	}
	if s.influx != nil {
		metrics.InfluxDB = &LinkMetrics{Connected: s.influx.IsConnected()}
	}

	writeJSON(w, http.StatusOK, metrics)
}

func deviceMetrics(states []device.State) DeviceMetrics {
	m := DeviceMetrics{Total: len(states), ByKind: make(map[string]int)}
	for _, st := range states {
		m.ByKind[st.Kind.String()]++
		if st.On {
			m.On++
		}
	}
	return m
}
