// Package influxdb records Abode device state history in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library for connection
// management and batched non-blocking writes, and provides StateRecorder,
// an accessory host that writes one "device_state" point every time the
// bridge registers or refreshes a device.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	plat.AddHost(influxdb.NewStateRecorder(client))
//
// # Error Handling
//
// Writes are batched; failures arrive asynchronously through SetOnError.
// Connection and health check errors are returned directly.
package influxdb
