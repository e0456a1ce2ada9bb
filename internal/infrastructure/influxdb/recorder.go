package influxdb

import "github.com/nerrad567/abode-bridge/internal/device"

// StateWriter is the write side of Client used by StateRecorder.
type StateWriter interface {
	WriteDeviceState(st device.State)
}

// StateRecorder is an accessory host that records every published device
// state as a time-series point.
type StateRecorder struct {
	writer StateWriter
}

// NewStateRecorder returns a recorder writing through w.
func NewStateRecorder(w StateWriter) *StateRecorder {
	return &StateRecorder{writer: w}
}

// Name identifies the host in logs.
func (r *StateRecorder) Name() string { return "influxdb" }

// Register records the initial state of a newly discovered device.
func (r *StateRecorder) Register(m device.Model) error {
	r.writer.WriteDeviceState(m.State())
	return nil
}

// Update records a refreshed device state.
func (r *StateRecorder) Update(st device.State) {
	r.writer.WriteDeviceState(st)
}
