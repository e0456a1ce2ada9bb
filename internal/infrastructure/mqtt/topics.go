package mqtt

import "strings"

// DefaultTopicPrefix is used when the configuration leaves the prefix empty.
const DefaultTopicPrefix = "abode"

// Topics builds the bridge's topic names under a common prefix.
//
//	topics := mqtt.NewTopics("abode")
//	topics.State("ZB:00000305") // "abode/state/ZB:00000305"
type Topics struct {
	prefix string
}

// NewTopics returns a builder for prefix. Surrounding slashes are trimmed.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the normalised prefix.
func (t Topics) Prefix() string { return t.prefix }

// State returns the retained state topic for a device.
func (t Topics) State(deviceID string) string {
	return t.prefix + "/state/" + deviceID
}

// Command returns the command topic for a device.
func (t Topics) Command(deviceID string) string {
	return t.prefix + "/command/" + deviceID
}

// Ack returns the command acknowledgement topic for a device.
func (t Topics) Ack(deviceID string) string {
	return t.prefix + "/ack/" + deviceID
}

// Health returns the retained bridge health topic.
func (t Topics) Health() string {
	return t.prefix + "/health"
}

// AllCommands returns the subscription pattern for every device command.
func (t Topics) AllCommands() string {
	return t.prefix + "/command/+"
}

// DeviceFromCommand extracts the device id from a command topic.
func (t Topics) DeviceFromCommand(topic string) (string, bool) {
	id, ok := strings.CutPrefix(topic, t.prefix+"/command/")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
