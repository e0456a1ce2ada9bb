// Package abode is the MQTT accessory host for Abode devices.
//
// It mirrors every device the bridge core discovers onto MQTT and accepts
// commands back:
//
//	abode/state/<device_id>     retained StateMessage, published on every refresh
//	abode/command/<device_id>   CommandMessage in, applied via ApplyLocalCommand
//	abode/ack/<device_id>       AckMessage out, one per command
//	abode/health                retained HealthMessage, periodic
//
// Command payloads carry the same {"command": ..., "value": ...} shape the
// HTTP API accepts, plus an optional "id" echoed in the acknowledgement:
//
//	{"id": "c-42", "command": "brightness", "value": 60}
//
// The health reporter reports degraded while the broker, the Abode session
// or the realtime channel is down. The MQTT client's Last Will covers
// unexpected exits.
package abode
