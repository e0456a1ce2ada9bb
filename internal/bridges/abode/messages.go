package abode

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	abodeapi "github.com/nerrad567/abode-bridge/internal/abode"
	"github.com/nerrad567/abode-bridge/internal/device"
	"github.com/nerrad567/abode-bridge/internal/platform"
)

// CommandMessage is received on <prefix>/command/<device_id>.
// Command and Value are decoded by device.ParseCommand.
type CommandMessage struct {
	// ID correlates the acknowledgement. Optional.
	ID string `json:"id,omitempty"`

	Command string          `json:"command"`
	Value   json.RawMessage `json:"value,omitempty"`

	// Source names the originator for logs ("automation", "dashboard", ...).
	Source string `json:"source,omitempty"`
}

// AckStatus is the outcome of a command.
type AckStatus string

const (
	// AckAccepted means the vendor accepted the control call.
	AckAccepted AckStatus = "accepted"

	// AckFailed means the command could not be applied.
	AckFailed AckStatus = "failed"
)

// AckMessage is published on <prefix>/ack/<device_id>.
type AckMessage struct {
	CommandID string    `json:"command_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Status    AckStatus `json:"status"`
	Error     *AckError `json:"error,omitempty"`
}

// AckError describes a failed command.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for failed commands.
const (
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeUnknownDevice     = "UNKNOWN_DEVICE"
	ErrCodeNotReady          = "NOT_READY"
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeBridgeError       = "BRIDGE_ERROR"
)

// StateMessage is published retained on <prefix>/state/<device_id>.
type StateMessage struct {
	DeviceID  string       `json:"device_id"`
	Timestamp time.Time    `json:"timestamp"`
	State     device.State `json:"state"`
}

// HealthStatus is the bridge health reported on <prefix>/health.
type HealthStatus string

const (
	HealthStarting HealthStatus = "starting"
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is published retained on <prefix>/health.
type HealthMessage struct {
	Status          HealthStatus `json:"status"`
	Timestamp       time.Time    `json:"timestamp"`
	Version         string       `json:"version,omitempty"`
	UptimeSeconds   int64        `json:"uptime_seconds"`
	Devices         int          `json:"devices"`
	Auth            string       `json:"auth"`
	SocketConnected bool         `json:"socket_connected"`
	Reason          string       `json:"reason,omitempty"`
}

// NewStateMessage wraps a device state for publishing.
func NewStateMessage(st device.State) StateMessage {
	return StateMessage{DeviceID: st.ID, Timestamp: time.Now().UTC(), State: st}
}

// NewAckMessage builds the acknowledgement for a command result.
func NewAckMessage(deviceID, commandID string, err error) AckMessage {
	ack := AckMessage{
		CommandID: commandID,
		Timestamp: time.Now().UTC(),
		DeviceID:  deviceID,
		Status:    AckAccepted,
	}
	if err != nil {
		ack.Status = AckFailed
		ack.Error = &AckError{Code: errorCode(err), Message: err.Error()}
	}
	return ack
}

// errorCode classifies a command failure.
func errorCode(err error) string {
	switch {
	case errors.Is(err, device.ErrInvalidCommand):
		return ErrCodeInvalidCommand
	case errors.Is(err, device.ErrUnknownDevice):
		return ErrCodeUnknownDevice
	case errors.Is(err, platform.ErrNotInitialised),
		errors.Is(err, abodeapi.ErrMissingSession),
		errors.Is(err, abodeapi.ErrMissingAPIKey),
		errors.Is(err, abodeapi.ErrMissingOAuth):
		return ErrCodeNotReady
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	case errors.Is(err, abodeapi.ErrTransport):
		return ErrCodeDeviceUnreachable
	default:
		return ErrCodeBridgeError
	}
}
