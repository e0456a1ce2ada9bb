package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/abode-bridge/internal/device"
)

// measurementDeviceState is the measurement every device snapshot lands in.
const measurementDeviceState = "device_state"

// WriteDeviceState records one snapshot of a device. Optional attributes
// the kind does not carry are left out of the point.
func (c *Client) WriteDeviceState(st device.State) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(statePoint(st, time.Now()))
}

func statePoint(st device.State, ts time.Time) *write.Point {
	tags := map[string]string{
		"device_id": st.ID,
		"kind":      st.Kind.String(),
	}
	if st.Name != "" {
		tags["name"] = st.Name
	}

	fields := map[string]any{"on": st.On}
	if st.Brightness != nil {
		fields["brightness"] = *st.Brightness
	}
	if st.Hue != nil {
		fields["hue"] = *st.Hue
	}
	if st.Saturation != nil {
		fields["saturation"] = *st.Saturation
	}
	if st.ColorTemperature != nil {
		fields["color_temperature_mired"] = *st.ColorTemperature
	}

	return write.NewPoint(measurementDeviceState, tags, fields, ts)
}

// WritePoint writes a custom point timestamped now.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
