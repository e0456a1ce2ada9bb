// Package mqtt provides the MQTT client used by the bridge's MQTT host.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS guarantees
//   - Subscriptions that survive reconnects
//   - A retained health topic with a Last Will for offline detection
//
// # Topics
//
// All topics sit under a configurable prefix (default "abode"):
//
//	abode/state/<device_id>     retained device state
//	abode/command/<device_id>   commands into the bridge
//	abode/ack/<device_id>       command results
//	abode/health                retained bridge health, LWT offline
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	err = client.Subscribe(topics.AllCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        id, _ := topics.DeviceFromCommand(topic)
//	        ...
//	    })
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS) when the broker is not on localhost
//   - Credentials come from ABODEBRIDGE_MQTT_USERNAME/PASSWORD
package mqtt
